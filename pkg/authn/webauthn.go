package authn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-webauthn/webauthn/protocol"

	"github.com/indykite/indykite-sdk-web-sub001/pkg/msg"
)

// Authenticator is the platform credential API. Implementations wrap
// whatever the host environment offers; the conversation layer only
// sees decoded options and raw ceremony responses.
type Authenticator interface {
	// Create runs the attestation ceremony for a new credential.
	Create(ctx context.Context, opts *protocol.PublicKeyCredentialCreationOptions) (*protocol.CredentialCreationResponse, error)
	// Get runs the assertion ceremony against an existing credential.
	Get(ctx context.Context, opts *protocol.PublicKeyCredentialRequestOptions) (*protocol.CredentialAssertionResponse, error)
}

// normalizeCeremonyError folds the ceremony failure classes users can
// cause themselves into one message.
func normalizeCeremonyError(err error) error {
	if errors.Is(err, ErrNotAllowed) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return ErrCeremonyAborted
	}
	return err
}

// attestationFormat peeks at the format tag of a CBOR attestation
// object, for diagnostics only.
func attestationFormat(raw []byte) string {
	var att struct {
		Fmt string `cbor:"fmt"`
	}
	if err := cbor.Unmarshal(raw, &att); err != nil {
		return ""
	}
	return att.Fmt
}

// runWebauthn executes one ceremony. The options object tells the
// direction: an rp entity means registration, an rpId means assertion.
// The ceremony result feeds straight into the credential exchange.
func (f *Flow) runWebauthn(ctx context.Context, m *msg.Message, dctx *DispatchContext) error {
	if f.authenticator == nil {
		err := errors.New("no webauthn authenticator configured")
		slog.Error("cannot run ceremony", "error", err)
		f.failure(dctx, err)
		return err
	}
	if len(m.PublicKey) == 0 {
		return f.notifyError(dctx, errors.New("webauthn option carries no publicKey options"))
	}

	var peek struct {
		RP   json.RawMessage `json:"rp"`
		RPID string          `json:"rpId"`
	}
	if err := json.Unmarshal(m.PublicKey, &peek); err != nil {
		return f.notifyError(dctx, fmt.Errorf("unable to decode publicKey options: %w", err))
	}

	var credential any
	switch {
	case len(peek.RP) > 0:
		var opts protocol.PublicKeyCredentialCreationOptions
		if err := json.Unmarshal(m.PublicKey, &opts); err != nil {
			return f.notifyError(dctx, fmt.Errorf("unable to decode creation options: %w", err))
		}
		if opts.User.DisplayName == "" {
			opts.User.DisplayName = opts.User.Name
		}
		cctx, cancel := ceremonyContext(ctx, opts.Timeout)
		defer cancel()
		result, err := f.authenticator.Create(cctx, &opts)
		if err != nil {
			return f.notifyError(dctx, normalizeCeremonyError(err))
		}
		if format := attestationFormat(result.AttestationResponse.AttestationObject); format != "" {
			slog.Debug("credential created", "attestationFormat", format)
		}
		credential = result
	case peek.RPID != "":
		var opts protocol.PublicKeyCredentialRequestOptions
		if err := json.Unmarshal(m.PublicKey, &opts); err != nil {
			return f.notifyError(dctx, fmt.Errorf("unable to decode request options: %w", err))
		}
		cctx, cancel := ceremonyContext(ctx, opts.Timeout)
		defer cancel()
		result, err := f.authenticator.Get(cctx, &opts)
		if err != nil {
			return f.notifyError(dctx, normalizeCeremonyError(err))
		}
		credential = result
	default:
		return f.notifyError(dctx, errors.New("publicKey options name neither rp nor rpId"))
	}

	return f.exchange(ctx, msg.NewWebauthnRequest(credential), dctx)
}

// ceremonyContext applies the server-side ceremony timeout, given in
// milliseconds.
func ceremonyContext(ctx context.Context, timeout int) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(timeout)*time.Millisecond)
}
