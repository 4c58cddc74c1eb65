package authn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/indykite/indykite-sdk-web-sub001/pkg/msg"
	"github.com/indykite/indykite-sdk-web-sub001/pkg/ui"
)

// renderForm turns a form message into a UI form whose submit handler
// feeds the collected values back into the conversation. In a
// registration context every password field is doubled with a
// confirmation input that never leaves the client.
func (f *Flow) renderForm(m *msg.Message, dctx *DispatchContext) error {
	fields := make([]ui.Field, 0, len(m.Fields)+1)
	var passwordID string
	for _, fd := range m.Fields {
		fields = append(fields, ui.Field{
			ID:    fd.ID,
			Hint:  fd.Hint,
			Label: fd.Label,
		})
		if dctx.PasswordCheck && fd.Hint == "password" {
			passwordID = fd.ID
			fields = append(fields, ui.Field{
				ID:      fd.ID + "_confirm",
				Hint:    "password",
				Label:   dctx.label(LabelConfirmPassword, defaultLabel(LabelConfirmPassword)),
				Confirm: true,
			})
		}
	}

	declared := m.Fields
	formID := m.ID
	form := &ui.Form{
		ID:     formID,
		Fields: fields,
		Submit: func(ctx context.Context, values map[string]string) error {
			if passwordID != "" && values[passwordID] != values[passwordID+"_confirm"] {
				err := errors.New("passwords do not match")
				f.surface.ShowError(err.Error())
				return err
			}
			for _, fd := range declared {
				if fd.Required && values[fd.ID] == "" {
					err := fmt.Errorf("field %q must not be empty", fd.ID)
					f.surface.ShowError(err.Error())
					return err
				}
			}
			// only declared fields go over the wire
			submit := make(map[string]string, len(declared))
			for _, fd := range declared {
				if v, ok := values[fd.ID]; ok {
					submit[fd.ID] = v
				}
			}
			req := msg.NewFormRequest(formID, submit)
			if dctx.Flow == msg.FlowForgotten {
				return f.submitForgotten(ctx, req, dctx)
			}
			return f.exchange(ctx, req, dctx)
		},
	}
	f.surface.ShowForm(form)
	return nil
}

// submitForgotten sends a forgotten-password form. The flow stays in a
// conversational state: the server answers with a status message or
// the next step, never with a login success.
func (f *Flow) submitForgotten(ctx context.Context, req *msg.Request, dctx *DispatchContext) error {
	resp, err := f.roundTrip(ctx, dctx.slot(), req)
	if err != nil {
		slog.Error("forgotten password step failed", "error", err)
		f.notifyError(dctx, err)
		return err
	}
	if resp.Type == msg.TypeMessage {
		text := resp.Msg
		if text == "" {
			text = resp.Label
		}
		f.surface.ShowNotice(&ui.Notice{Text: text, Style: resp.Style})
		return nil
	}
	return f.Dispatch(ctx, resp, dctx)
}
