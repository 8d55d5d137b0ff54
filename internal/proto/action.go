package proto

// Action is the closed set of envelope kinds the router dispatches on.
// A typed enum instead of raw wire strings keeps the handler table closed
// and lets the compiler catch a missing case.
type Action int

const (
	ActionUnknown Action = iota
	ActionPresence
	ActionMessage
	ActionExit
	ActionGetContacts
	ActionAddContact
	ActionRemoveContact
	ActionUsersRequest
	ActionPublicKeyRequest
)

var actionWire = map[Action]string{
	ActionPresence:         "presence",
	ActionMessage:          "message",
	ActionExit:             "exit",
	ActionGetContacts:      "get_contacts",
	ActionAddContact:       "add_contact",
	ActionRemoveContact:    "remove_contact",
	ActionUsersRequest:     "users_request",
	ActionPublicKeyRequest: "public_key_request",
}

var wireAction = func() map[string]Action {
	m := make(map[string]Action, len(actionWire))
	for a, s := range actionWire {
		m[s] = a
	}
	return m
}()

// ParseAction maps a wire string to its Action. Unknown strings map to
// ActionUnknown; the router answers those with 400.
func ParseAction(s string) Action {
	return wireAction[s]
}

func (a Action) String() string {
	if s, ok := actionWire[a]; ok {
		return s
	}
	return "unknown"
}

// Response codes.
const (
	CodeOK         = 200 // plain acknowledgment
	CodeList       = 202 // acknowledgment carrying list_info
	CodeRefresh    = 205 // server push: re-fetch user and contact lists
	CodeBadRequest = 400 // client error, error field set
	CodeAuthData   = 511 // auth challenge/response, data field set
)

// Error texts sent in 400 replies. The client classifies handshake failures
// by these strings, so both sides share the constants.
const (
	TextNameTaken         = "name already taken"
	TextUserNotRegistered = "user not registered"
	TextWrongPassword     = "wrong password"
	TextUnauthorized      = "unauthorized"
	TextBadRequest        = "bad request"
	TextNoPublicKey       = "no public key on record"
)
