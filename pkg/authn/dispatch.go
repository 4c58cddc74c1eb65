package authn

import (
	"context"
	"log/slog"

	"github.com/indykite/indykite-sdk-web-sub001/pkg/msg"
	"github.com/indykite/indykite-sdk-web-sub001/pkg/ui"
)

// Dispatch interprets one server message. Compound (logical) messages
// expand recursively; concrete ones route to their handler. An unknown
// type tag is an integration error, not a fatal one: it is logged and
// skipped so the remaining options still render.
func (f *Flow) Dispatch(ctx context.Context, m *msg.Message, dctx *DispatchContext) error {
	if dctx == nil {
		dctx = &DispatchContext{}
	}

	switch m.Type {
	case msg.TypeLogical:
		return f.dispatchLogical(ctx, m, dctx)
	case msg.TypeForm:
		return f.renderForm(m, dctx)
	case msg.TypeAction:
		return f.renderAction(m, dctx)
	case msg.TypeOidc:
		return f.renderOidcTrigger(m, dctx)
	case msg.TypeWebauthn:
		return f.runWebauthn(ctx, m, dctx)
	case msg.TypeQr:
		return f.pollQr(ctx, m, dctx)
	case msg.TypeMessage:
		text := m.Msg
		if text == "" {
			text = m.Label
		}
		f.surface.ShowNotice(&ui.Notice{Text: text, Style: m.Style})
		return nil
	case msg.TypeVerifier:
		return f.confirmVerifier(ctx, m, dctx)
	case msg.TypeSuccess:
		return f.finishExchange(ctx, m, dctx)
	case msg.TypeFail:
		// a bare fail carries no detail; never inspect it
		f.notifyError(dctx, ErrUnableToRetrieveOptions)
		return nil
	default:
		slog.Warn("ignoring message of unknown type", "type", m.Type, "id", m.ID)
		return nil
	}
}
