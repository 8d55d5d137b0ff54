package proto

import "time"

// Envelope is one complete JSON message unit exchanged over the wire.
// It is transient: built per call, sent, and discarded.
type Envelope map[string]any

// now is a test seam for envelope timestamps.
var now = func() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// Builder constructs and inspects envelopes using one fixed key set.
// It is cheap to copy and safe for concurrent use.
type Builder struct {
	k Keys
}

func NewBuilder(k Keys) Builder {
	return Builder{k: k}
}

// Keys returns the key set the builder was created with.
func (b Builder) Keys() Keys {
	return b.k
}

// ---------- requests ----------

// Presence builds the handshake opener carrying the account name and the
// client's public key inside the nested user object.
func (b Builder) Presence(name, pubkey string) Envelope {
	return Envelope{
		b.k.Action: ActionPresence.String(),
		b.k.Time:   now(),
		b.k.User: map[string]any{
			b.k.AccountName: name,
			b.k.PublicKey:   pubkey,
		},
	}
}

func (b Builder) Message(from, to, text string) Envelope {
	return Envelope{
		b.k.Action:      ActionMessage.String(),
		b.k.Time:        now(),
		b.k.From:        from,
		b.k.To:          to,
		b.k.MessageText: text,
	}
}

func (b Builder) Exit(name string) Envelope {
	return Envelope{
		b.k.Action:      ActionExit.String(),
		b.k.Time:        now(),
		b.k.AccountName: name,
	}
}

func (b Builder) GetContacts(name string) Envelope {
	return Envelope{
		b.k.Action: ActionGetContacts.String(),
		b.k.Time:   now(),
		b.k.User:   name,
	}
}

func (b Builder) AddContact(name, contact string) Envelope {
	return Envelope{
		b.k.Action:      ActionAddContact.String(),
		b.k.Time:        now(),
		b.k.User:        name,
		b.k.AccountName: contact,
	}
}

func (b Builder) RemoveContact(name, contact string) Envelope {
	return Envelope{
		b.k.Action:      ActionRemoveContact.String(),
		b.k.Time:        now(),
		b.k.User:        name,
		b.k.AccountName: contact,
	}
}

func (b Builder) UsersRequest(name string) Envelope {
	return Envelope{
		b.k.Action:      ActionUsersRequest.String(),
		b.k.Time:        now(),
		b.k.AccountName: name,
	}
}

func (b Builder) PublicKeyRequest(target string) Envelope {
	return Envelope{
		b.k.Action:      ActionPublicKeyRequest.String(),
		b.k.Time:        now(),
		b.k.AccountName: target,
	}
}

// ---------- responses ----------

func (b Builder) OK() Envelope {
	return Envelope{b.k.Response: CodeOK}
}

func (b Builder) ListResponse(list []string) Envelope {
	return Envelope{b.k.Response: CodeList, b.k.ListInfo: list}
}

func (b Builder) Refresh() Envelope {
	return Envelope{b.k.Response: CodeRefresh}
}

func (b Builder) BadRequest(text string) Envelope {
	return Envelope{b.k.Response: CodeBadRequest, b.k.Error: text}
}

// AuthData builds the 511 envelope used in both directions of the challenge
// exchange: the server's nonce and the client's digest both travel in data.
func (b Builder) AuthData(data string) Envelope {
	return Envelope{b.k.Response: CodeAuthData, b.k.Data: data}
}

// ---------- accessors ----------

func (b Builder) str(e Envelope, key string) string {
	s, _ := e[key].(string)
	return s
}

// Action returns the parsed action of e, or ActionUnknown if the field is
// missing or not a string.
func (b Builder) Action(e Envelope) Action {
	return ParseAction(b.str(e, b.k.Action))
}

// ResponseCode reports the response code of e, if e is a response envelope.
// JSON numbers arrive as float64.
func (b Builder) ResponseCode(e Envelope) (int, bool) {
	switch v := e[b.k.Response].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

// PresenceUser extracts the account name and public key from the nested
// user object of a presence envelope.
func (b Builder) PresenceUser(e Envelope) (name, pubkey string, ok bool) {
	u, ok := e[b.k.User].(map[string]any)
	if !ok {
		return "", "", false
	}
	name, ok = u[b.k.AccountName].(string)
	if !ok || name == "" {
		return "", "", false
	}
	pubkey, _ = u[b.k.PublicKey].(string)
	return name, pubkey, true
}

func (b Builder) User(e Envelope) string        { return b.str(e, b.k.User) }
func (b Builder) AccountName(e Envelope) string { return b.str(e, b.k.AccountName) }
func (b Builder) From(e Envelope) string        { return b.str(e, b.k.From) }
func (b Builder) To(e Envelope) string          { return b.str(e, b.k.To) }
func (b Builder) MessageText(e Envelope) string { return b.str(e, b.k.MessageText) }
func (b Builder) Data(e Envelope) string        { return b.str(e, b.k.Data) }
func (b Builder) ErrorText(e Envelope) string   { return b.str(e, b.k.Error) }

// ListInfo returns the string list of a 202 response.
func (b Builder) ListInfo(e Envelope) []string {
	raw, ok := e[b.k.ListInfo].([]any)
	if !ok {
		return nil
	}
	list := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			list = append(list, s)
		}
	}
	return list
}
