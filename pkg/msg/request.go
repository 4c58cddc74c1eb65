package msg

import (
	"encoding/json"
)

// Flow names the conversation being bootstrapped by a setup request.
type Flow string

const (
	FlowLogin     Flow = "login"
	FlowRegister  Flow = "register"
	FlowForgotten Flow = "forgotten"
)

// Request is an outgoing protocol message body. Form values and extra
// OIDC callback parameters are flattened into the top-level object on
// marshalling, which is how the wire format carries them.
type Request struct {
	Type   Type    `json:"@type"`
	ID     string  `json:"@id,omitempty"`
	Thread *Thread `json:"~thread,omitempty"`

	// setup
	Flow Flow `json:"flow,omitempty"`

	// action
	Action string `json:"action,omitempty"`

	// oidc
	RedirectURI         string `json:"redirectUri,omitempty"`
	LoginApp            string `json:"loginApp,omitempty"`
	State               string `json:"state,omitempty"`
	Code                string `json:"code,omitempty"`
	CodeChallenge       string `json:"code_challenge,omitempty"`
	CodeChallengeMethod string `json:"code_challenge_method,omitempty"`

	// verifier
	Cv string `json:"cv,omitempty"`

	// webauthn
	PublicKeyCredential any `json:"publicKeyCredential,omitempty"`

	// flattened on marshalling
	Values map[string]string `json:"-"`
}

func (r *Request) MarshalJSON() ([]byte, error) {
	type alias Request
	base, err := json.Marshal((*alias)(r))
	if err != nil {
		return nil, err
	}
	if len(r.Values) == 0 {
		return base, nil
	}
	flat := map[string]json.RawMessage{}
	if err := json.Unmarshal(base, &flat); err != nil {
		return nil, err
	}
	for k, v := range r.Values {
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		flat[k] = encoded
	}
	return json.Marshal(flat)
}

// SetThread attaches the correlation token. An empty thid leaves the
// envelope absent, which is only legal on the first request of a
// conversation.
func (r *Request) SetThread(thid string) {
	if thid == "" {
		return
	}
	r.Thread = &Thread{Thid: thid}
}

// NewSetupRequest bootstraps a conversation for the given flow.
func NewSetupRequest(flow Flow) *Request {
	return &Request{Type: "setup", Flow: flow}
}

// NewFormRequest submits collected form values.
func NewFormRequest(id string, values map[string]string) *Request {
	return &Request{Type: TypeForm, ID: id, Values: values}
}

// NewActionRequest activates one option of an action message.
func NewActionRequest(id, action string) *Request {
	return &Request{Type: TypeAction, ID: id, Action: action}
}

// NewPingRequest is the polling heartbeat of the QR login flow.
func NewPingRequest() *Request {
	return &Request{Type: TypeAction, Action: "ping"}
}

// NewVerifierRequest confirms a pending credential submission. cv is
// the side-channel code verifier, empty outside OIDC conversations.
func NewVerifierRequest(cv string) *Request {
	return &Request{Type: TypeVerifier, Cv: cv}
}

// NewWebauthnRequest carries a platform credential back to the server.
func NewWebauthnRequest(credential any) *Request {
	return &Request{Type: TypeWebauthn, PublicKeyCredential: credential}
}
