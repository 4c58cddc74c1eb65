// Package msg defines the wire messages of the server-directed
// authentication conversation. Every message is a JSON object carrying
// an "@type" discriminator and, where applicable, a "~thread" envelope
// with the correlation token issued by the server.
package msg

import (
	"encoding/json"
	"fmt"
)

// Type discriminates the message union. The set is closed; anything
// else coming from the server is an integration error, not a parse
// error.
type Type string

const (
	TypeLogical  Type = "logical"
	TypeForm     Type = "form"
	TypeAction   Type = "action"
	TypeOidc     Type = "oidc"
	TypeWebauthn Type = "webauthn"
	TypeQr       Type = "qr"
	TypeMessage  Type = "message"
	TypeVerifier Type = "verifier"
	TypeSuccess  Type = "success"
	TypeFail     Type = "fail"
)

// Known reports whether t belongs to the closed message union.
func (t Type) Known() bool {
	switch t {
	case TypeLogical, TypeForm, TypeAction, TypeOidc, TypeWebauthn,
		TypeQr, TypeMessage, TypeVerifier, TypeSuccess, TypeFail:
		return true
	}
	return false
}

// Thread is the "~thread" correlation envelope.
type Thread struct {
	Thid string `json:"thid"`
}

// Error is the "~error" payload. The server reports errors either this
// way or as an HTTP-level error body; both implement error on the
// client side.
type Error struct {
	Code        string `json:"code,omitempty"`
	Label       string `json:"label,omitempty"`
	Description string `json:"msg,omitempty"`
}

func (e *Error) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// FormField describes one input of a form message, in render order.
type FormField struct {
	ID           string `json:"@id"`
	Type         string `json:"@type,omitempty"`
	Hint         string `json:"hint,omitempty"`
	Label        string `json:"label,omitempty"`
	Autocomplete bool   `json:"autocomplete,omitempty"`
	Required     bool   `json:"required,omitempty"`
}

// Well-known action hints. Servers may send arbitrary custom hints;
// these are the ones with fixed semantics.
const (
	HintLogin     = "login"
	HintRegister  = "register"
	HintForgotten = "forgotten"
	HintPong      = "pong"
)

// Message is one protocol message. It is a flattened union: only the
// fields belonging to Type are populated. Options of a logical message
// are themselves messages, each with its own "@type" and "~ord".
type Message struct {
	Type   Type    `json:"@type"`
	ID     string  `json:"@id,omitempty"`
	Thread *Thread `json:"~thread,omitempty"`
	Err    *Error  `json:"~error,omitempty"`
	Ord    int     `json:"~ord,omitempty"`

	// logical
	Op   string    `json:"op,omitempty"`
	Opts []Message `json:"opts,omitempty"`

	// form
	Fields []FormField `json:"fields,omitempty"`

	// action options, messages
	Hint  string `json:"hint,omitempty"`
	Label string `json:"label,omitempty"`

	// oidc
	Prv  string `json:"prv,omitempty"`
	URL  string `json:"url,omitempty"`
	Name string `json:"name,omitempty"`

	// webauthn: creation options when "rp" is present, assertion
	// options when "rpId" is present; kept raw for the ceremony
	// adapter to decode
	PublicKey json.RawMessage `json:"publicKey,omitempty"`

	// message
	Msg   string `json:"msg,omitempty"`
	Style string `json:"style,omitempty"`

	// success
	Token          string `json:"token,omitempty"`
	RefreshToken   string `json:"refresh_token,omitempty"`
	TokenType      string `json:"token_type,omitempty"`
	ExpirationTime int64  `json:"expiration_time,omitempty"`
	Verifier       string `json:"verifier,omitempty"`
	RedirectTo     string `json:"redirect_to,omitempty"`
}

// Thid returns the thread id of the message, or "" when the envelope
// is absent.
func (m *Message) Thid() string {
	if m == nil || m.Thread == nil {
		return ""
	}
	return m.Thread.Thid
}

// Terminal reports whether the message ends a conversation.
func (m *Message) Terminal() bool {
	return m.Type == TypeSuccess || m.Type == TypeFail
}

// Parse decodes a single message from its wire form. An unknown
// "@type" is not a parse error; callers decide how to treat it.
func Parse(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unable to parse message: %w", err)
	}
	if m.Type == "" {
		return nil, fmt.Errorf("message carries no @type")
	}
	return &m, nil
}
