package cryptox

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const rsaKeyBits = 2048

// LoadOrCreateKey returns the account's RSA keypair, generating one under
// dir on first use. The second return value is the public key in PEM form,
// which the client presents during the handshake so other users can fetch
// it for end-to-end encryption.
func LoadOrCreateKey(dir, name string) (*rsa.PrivateKey, string, error) {
	path := filepath.Join(dir, name+".key")

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		key, err := parsePrivateKey(data)
		if err != nil {
			return nil, "", fmt.Errorf("key file %s: %w", path, err)
		}
		pub, err := publicPEM(key)
		if err != nil {
			return nil, "", err
		}
		return key, pub, nil
	case errors.Is(err, os.ErrNotExist):
		// first run for this account
	default:
		return nil, "", fmt.Errorf("key file %s: %w", path, err)
	}

	key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, "", fmt.Errorf("generate key: %w", err)
	}

	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, "", fmt.Errorf("marshal key: %w", err)
	}
	block := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	if err := os.WriteFile(path, block, 0o600); err != nil {
		return nil, "", fmt.Errorf("save key %s: %w", path, err)
	}

	pub, err := publicPEM(key)
	if err != nil {
		return nil, "", err
	}
	return key, pub, nil
}

func parsePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("not a PEM file")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("not an RSA key")
	}
	return key, nil
}

func publicPEM(key *rsa.PrivateKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return "", fmt.Errorf("marshal public key: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}
