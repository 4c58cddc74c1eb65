package authn

import (
	"context"
	"log/slog"

	"github.com/indykite/indykite-sdk-web-sub001/pkg/msg"
	"github.com/indykite/indykite-sdk-web-sub001/pkg/transport"
	"github.com/indykite/indykite-sdk-web-sub001/pkg/ui"
)

func defaultActionLabelKey(hint string) string {
	switch hint {
	case msg.HintLogin:
		return LabelLoginAction
	case msg.HintRegister:
		return LabelRegisterAction
	case msg.HintForgotten:
		return LabelForgottenAction
	default:
		return "action_" + hint
	}
}

// renderAction turns every action option into a trigger. Activating a
// trigger sends the action and hands the server's state change to the
// success callback, which is expected to switch the embedding UI to
// the named flow.
func (f *Flow) renderAction(m *msg.Message, dctx *DispatchContext) error {
	actionID := m.ID
	for i := range m.Opts {
		opt := m.Opts[i]
		key := defaultActionLabelKey(opt.Hint)
		trigger := &ui.Trigger{
			ID:    actionID,
			Kind:  opt.Hint,
			Label: dctx.label(key, defaultLabel(key)),
			Activate: func(ctx context.Context) error {
				if dctx.LegacyActionRedirect {
					return f.legacyActionRedirect(ctx, actionID, opt.Hint, dctx)
				}
				resp, err := f.roundTrip(ctx, dctx.slot(), msg.NewActionRequest(actionID, opt.Hint),
					transport.WithActionName("action:"+opt.Hint))
				if err != nil {
					slog.Error("action failed", "action", opt.Hint, "error", err)
					f.failure(dctx, err)
					return err
				}
				f.succeed(dctx, resp)
				return nil
			},
		}
		f.surface.ShowTrigger(trigger)
	}
	return nil
}

// legacyActionRedirect is the deprecated activation path: the server
// response is cached as the pending response and the embedding page
// navigates away, expecting the target page to resume it.
func (f *Flow) legacyActionRedirect(ctx context.Context, id, hint string, dctx *DispatchContext) error {
	slog.Warn("legacy action redirect is deprecated, switch to callback-based action handling",
		"action", hint)

	resp, err := f.roundTrip(ctx, dctx.slot(), msg.NewActionRequest(id, hint),
		transport.WithActionName("action:"+hint))
	if err != nil {
		slog.Error("action failed", "action", hint, "error", err)
		f.failure(dctx, err)
		return err
	}
	if err := f.store.SetPendingResponse(resp); err != nil {
		return err
	}
	f.surface.Navigate(dctx.RedirectURI)
	return nil
}
