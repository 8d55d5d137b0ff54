// Package proto implements the messenger wire protocol: JSON envelopes
// exchanged over a TCP stream, the closed set of actions and response codes,
// and the framing codec.
package proto

// Keys holds the JSON field names used on the wire. The set is fixed at
// startup and injected into every component that builds or inspects
// envelopes, so deployments with legacy field names stay interoperable.
type Keys struct {
	Action      string
	Time        string
	User        string
	AccountName string
	PublicKey   string
	To          string
	From        string
	MessageText string
	Response    string
	Error       string
	Data        string
	ListInfo    string
}

// DefaultKeys returns the standard field names.
func DefaultKeys() Keys {
	return Keys{
		Action:      "action",
		Time:        "time",
		User:        "user",
		AccountName: "account_name",
		PublicKey:   "public_key",
		To:          "to",
		From:        "from",
		MessageText: "message_text",
		Response:    "response",
		Error:       "error",
		Data:        "data",
		ListInfo:    "list_info",
	}
}
