package authn

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/indykite/indykite-sdk-web-sub001/pkg/msg"
	"github.com/indykite/indykite-sdk-web-sub001/pkg/transport"
)

// exchange submits credentials and drives the response to a terminal
// state. This is the entry point of the two-phase exchange: submitted
// credentials usually come back as a verifier challenge that a second
// request must confirm.
func (f *Flow) exchange(ctx context.Context, req *msg.Request, dctx *DispatchContext) error {
	resp, err := f.roundTrip(ctx, dctx.slot(), req)
	if err != nil {
		slog.Error("credential submission failed", "error", err)
		f.notifyError(dctx, err)
		return err
	}
	return f.finishExchange(ctx, resp, dctx)
}

// finishExchange routes a submit response. A verifier challenge enters
// the confirm phase, a success resolves, a bare fail ends the flow,
// and anything else continues the conversation.
func (f *Flow) finishExchange(ctx context.Context, resp *msg.Message, dctx *DispatchContext) error {
	switch resp.Type {
	case msg.TypeVerifier:
		vresp, err := f.confirm(ctx, resp.Thid(), dctx)
		if err != nil {
			f.notifyError(dctx, err)
			return err
		}
		return f.resolve(vresp, dctx)
	case msg.TypeSuccess:
		if err := f.store.StoreOnLoginSuccess(resp); err != nil {
			return fmt.Errorf("unable to persist credentials: %w", err)
		}
		return f.resolve(resp, dctx)
	case msg.TypeFail:
		return f.notifyError(dctx, ErrAuthenticationFailed)
	default:
		return f.Dispatch(ctx, resp, dctx)
	}
}

// confirm is the verifier phase of the exchange. thid is the thread id
// issued by the submit response, not the one the submit request was
// sent under.
func (f *Flow) confirm(ctx context.Context, thid string, dctx *DispatchContext) (*msg.Message, error) {
	req := msg.NewVerifierRequest(f.store.CodeVerifier())
	req.SetThread(thid)

	resp, err := f.roundTrip(ctx, dctx.slot(), req, transport.WithActionName("verifier"))
	if err != nil {
		return nil, err
	}
	switch resp.Type {
	case msg.TypeSuccess:
		if err := f.store.StoreOnLoginSuccess(resp); err != nil {
			return nil, fmt.Errorf("unable to persist credentials: %w", err)
		}
		return resp, nil
	case msg.TypeFail:
		return nil, ErrAuthenticationFailed
	default:
		return nil, fmt.Errorf("unexpected %s response to verifier confirmation", resp.Type)
	}
}

// confirmVerifier handles a verifier challenge arriving through the
// dispatcher rather than as a submit response.
func (f *Flow) confirmVerifier(ctx context.Context, m *msg.Message, dctx *DispatchContext) error {
	vresp, err := f.confirm(ctx, m.Thid(), dctx)
	if err != nil {
		return f.notifyError(dctx, err)
	}
	return f.resolve(vresp, dctx)
}

// resolve routes a terminal success payload. A conversation brokered
// for a third-party caller redirects back to that caller with the
// issued login verifier; everything else reaches the success callback.
// Either way the OIDC session state is consumed.
func (f *Flow) resolve(resp *msg.Message, dctx *DispatchContext) error {
	orig := f.store.OidcOriginalParams()
	if len(orig) > 0 {
		target := f.brokerRedirectURL(resp.Verifier, orig)
		if err := f.store.ClearOidcData(); err != nil {
			return err
		}
		f.surface.Navigate(target)
		return nil
	}
	if err := f.store.ClearOidcData(); err != nil {
		return err
	}
	f.succeed(dctx, resp)
	return nil
}

// brokerRedirectURL rebuilds the original caller's authorization
// request with the login verifier attached.
func (f *Flow) brokerRedirectURL(verifier string, orig url.Values) string {
	base := f.store.AuthFlowStartPoint()
	if base == "" {
		base = f.client.BaseURL() + "/o/oauth2/auth"
	}
	q := url.Values{}
	for k, v := range orig {
		q[k] = v
	}
	q.Set("login_verifier", verifier)
	return base + "?" + q.Encode()
}
