// Package ui is the rendering contract between the authentication
// flows and the host application. The flows decide WHAT to show and in
// which order; the host decides how. Nodes are opaque to the flows,
// no layout or styling semantics live here.
package ui

import "context"

// Field is one input of a rendered form.
type Field struct {
	ID    string
	Hint  string
	Label string
	// Confirm marks a client-generated confirmation duplicate of a
	// password field.
	Confirm bool
}

// Form asks the user for input. The host collects values keyed by
// field ID and calls Submit; validation and protocol work happen
// behind the callback.
type Form struct {
	ID     string
	Fields []Field
	Submit func(ctx context.Context, values map[string]string) error
}

// Trigger is a single activatable element: an action option, an OIDC
// provider button, a WebAuthn prompt.
type Trigger struct {
	ID       string
	Kind     string
	Label    string
	Activate func(ctx context.Context) error
}

// Separator visually divides option groups; Label is empty for a plain
// divider.
type Separator struct {
	Label string
}

// Notice is a passive message; Style follows the server's hint.
type Notice struct {
	Text  string
	Style string
}

// QrCode is the passive visual of the polling login flow.
type QrCode struct {
	URL string
}

// Surface receives render instructions in order. Implementations run
// on the host's event thread; the flows never call them concurrently
// within one conversation.
type Surface interface {
	ShowForm(f *Form)
	ShowTrigger(tr *Trigger)
	ShowSeparator(sep *Separator)
	ShowNotice(n *Notice)
	ShowQr(qr *QrCode)

	// ShowError presents the single user-facing failure message in
	// the dedicated notification area.
	ShowError(text string)

	// Navigate performs an external redirect, leaving the current
	// conversation paused.
	Navigate(url string)
}
