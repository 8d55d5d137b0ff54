// Package cryptox holds the credential primitives of the messenger: the
// password hash both sides derive from the user's password and the HMAC
// digests exchanged during the challenge handshake.
package cryptox

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/dmitrijs2005/gomessenger/internal/common"
)

const (
	pbkdf2Iterations = 10000
	pbkdf2KeyLength  = 64

	// NonceSize is the number of random bytes behind a challenge nonce.
	NonceSize = 64
)

// PasswordHash derives the stored credential from a password. The salt is
// the lowercased username, so the hash is reproducible on the client without
// a salt exchange. Returned as lowercase hex bytes: the hex string, not the
// raw key, is what the server stores and what the HMAC exchange keys on.
func PasswordHash(password, username string) []byte {
	salt := []byte(strings.ToLower(username))
	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, pbkdf2KeyLength, sha512.New)

	out := make([]byte, hex.EncodedLen(len(key)))
	hex.Encode(out, key)
	return out
}

// NewNonce returns a fresh single-use challenge nonce: the hex encoding of
// NonceSize random bytes, safe to embed in a JSON string field.
func NewNonce() (string, error) {
	s, err := common.MakeRandHexString(NonceSize)
	if err != nil {
		return "", err
	}
	return s, nil
}

// ChallengeDigest computes HMAC-SHA256 over the nonce keyed by the password
// hash. Both sides compute it; the handshake succeeds iff they match.
func ChallengeDigest(passwordHash []byte, nonce string) []byte {
	mac := hmac.New(sha256.New, passwordHash)
	mac.Write([]byte(nonce))
	return mac.Sum(nil)
}

// DigestsEqual compares two digests in constant time.
func DigestsEqual(a, b []byte) bool {
	return hmac.Equal(a, b)
}
