// Package session holds the client-side state of authentication
// conversations: correlation tokens, OIDC authorization state and the
// single pending response used to resume a flow after an external
// redirect. Flows hold no state of their own; everything goes through
// a Store.
package session

import (
	"net/url"

	"github.com/indykite/indykite-sdk-web-sub001/pkg/msg"
)

// ThreadSlot separates the correlation tokens of conversations that
// may be nested. A forgotten-password flow launched while an OIDC flow
// is paused must not clobber the main thread id.
type ThreadSlot string

const (
	SlotMain      ThreadSlot = "main"
	SlotForgotten ThreadSlot = "forgotten"
)

// Credentials is what a terminal success message leaves behind.
type Credentials struct {
	Token          string `json:"token"`
	RefreshToken   string `json:"refresh_token,omitempty"`
	TokenType      string `json:"token_type,omitempty"`
	ExpirationTime int64  `json:"expiration_time,omitempty"`
}

// Store is the persistent key/value holder behind every flow. Getters
// read the cached state; setters may also persist, so they return
// errors.
type Store interface {
	// ThreadID returns the most recently stored correlation token
	// for the slot, or "".
	ThreadID(slot ThreadSlot) string
	SetThreadID(slot ThreadSlot, thid string) error

	// CodeVerifier is the PKCE-style secret of a pending OIDC
	// conversation.
	CodeVerifier() string
	SetCodeVerifier(cv string) error

	// OidcOriginalParams are the caller's OAuth2 query parameters,
	// present only when this client brokers identity for a third
	// party.
	OidcOriginalParams() url.Values
	SetOidcOriginalParams(params url.Values) error

	// AuthFlowStartPoint is the URL a paused flow resumes to.
	AuthFlowStartPoint() string
	SetAuthFlowStartPoint(u string) error

	// ClearOidcData drops original params, code verifier and flow
	// start point in one step; called exactly once per callback
	// resolution.
	ClearOidcData() error

	// PendingResponse is the single cached message of a flow paused
	// for an external redirect. Setting a new one overwrites the
	// previous; nil clears.
	PendingResponse() *msg.Message
	SetPendingResponse(m *msg.Message) error

	// StoreOnLoginSuccess persists the credentials of a terminal
	// success message.
	StoreOnLoginSuccess(m *msg.Message) error

	// Credentials returns what the last successful login left
	// behind, or nil.
	Credentials() *Credentials
}
