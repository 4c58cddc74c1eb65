package authn

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/indykite/indykite-sdk-web-sub001/pkg/msg"
	"github.com/indykite/indykite-sdk-web-sub001/pkg/session"
	"github.com/indykite/indykite-sdk-web-sub001/pkg/transport"
	"github.com/indykite/indykite-sdk-web-sub001/pkg/ui"
)

// Query parameters a brokered authorization request must carry.
var defaultAuthorizationFields = []string{
	"login_app",
	"redirect_uri",
	"response_type",
	"client_id",
	"state",
	"scope",
	"nonce",
}

// InitOidcAuthorizationRequest validates an incoming third-party
// authorization request, remembers the caller's parameters for the
// final redirect back, and navigates to the hosted authorization
// endpoint. required overrides the default parameter list. A missing
// parameter yields an error and no navigation.
func (f *Flow) InitOidcAuthorizationRequest(params url.Values, required ...string) error {
	if len(required) == 0 {
		required = defaultAuthorizationFields
	}
	var missing []string
	for _, field := range required {
		if err := validate.Var(params.Get(field), "required"); err != nil {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		err := missingFieldsError(missing)
		slog.Error("invalid authorization request", "error", err)
		return err
	}

	if err := f.store.SetOidcOriginalParams(params); err != nil {
		return err
	}
	if err := f.store.SetAuthFlowStartPoint(params.Get("login_app")); err != nil {
		return err
	}
	f.surface.Navigate(f.client.BaseURL() + "/o/oauth2/auth?" + params.Encode())
	return nil
}

// renderOidcTrigger shows one external provider as a trigger; its
// activation starts the provider conversation.
func (f *Flow) renderOidcTrigger(m *msg.Message, dctx *DispatchContext) error {
	label := m.Name
	if label == "" {
		label = m.Prv
	}
	trigger := &ui.Trigger{
		ID:    m.ID,
		Kind:  "oidc:" + m.Prv,
		Label: label,
		Activate: func(ctx context.Context) error {
			return f.OidcSetup(ctx, OidcSetupOptions{
				ID:          m.ID,
				RedirectURI: dctx.RedirectURI,
				LoginApp:    dctx.loginApp(m.Prv),
				URL:         m.URL,
			}, dctx)
		},
	}
	f.surface.ShowTrigger(trigger)
	return nil
}

// OidcSetupOptions parameterizes the start of an external provider
// conversation.
type OidcSetupOptions struct {
	// ID selects the provider option of the opening message.
	ID string
	// RedirectURI is where the provider sends the browser back.
	RedirectURI string
	// ThreadID overrides the stored correlation token.
	ThreadID string
	// LoginApp is the hosted login page resumed after the hop.
	LoginApp string
	// URL, when set, is a precomputed authorization URL; the setup
	// request is skipped and the browser navigates directly.
	URL string
}

// OidcSetup starts an external provider conversation. A fresh PKCE
// verifier is generated and stored before the request so the later
// callback can complete the exchange in a new page load.
func (f *Flow) OidcSetup(ctx context.Context, opts OidcSetupOptions, dctx *DispatchContext) error {
	if dctx == nil {
		dctx = &DispatchContext{}
	}
	if opts.URL != "" {
		// record which option the flow leaves through; the page
		// loading after the hop correlates against this
		departed := &msg.Message{Type: msg.TypeOidc, ID: opts.ID, URL: opts.URL}
		if err := f.store.SetPendingResponse(departed); err != nil {
			return err
		}
		f.surface.Navigate(opts.URL)
		return nil
	}

	cv := GenerateCodeVerifier()
	if err := f.store.SetCodeVerifier(cv); err != nil {
		return err
	}

	req := &msg.Request{
		Type:                msg.TypeOidc,
		ID:                  opts.ID,
		RedirectURI:         opts.RedirectURI,
		LoginApp:            opts.LoginApp,
		CodeChallenge:       S256ChallengeFromVerifier(cv),
		CodeChallengeMethod: "S256",
	}
	if opts.ThreadID != "" {
		req.SetThread(opts.ThreadID)
	}

	resp, err := f.roundTrip(ctx, session.SlotMain, req, transport.WithActionName("oidc:setup"))
	if err != nil {
		slog.Error("oidc setup failed", "error", err)
		f.failure(dctx, err)
		return err
	}
	return f.routeOidcSetup(ctx, resp, dctx)
}

// routeOidcSetup handles the setup response. A success carrying a
// verifier means the provider session is already authenticated and the
// login UI is skipped entirely.
func (f *Flow) routeOidcSetup(ctx context.Context, resp *msg.Message, dctx *DispatchContext) error {
	switch {
	case resp.Type == msg.TypeSuccess && resp.Verifier != "":
		if orig := f.store.OidcOriginalParams(); len(orig) > 0 {
			target := f.brokerRedirectURL(resp.Verifier, orig)
			if err := f.store.ClearOidcData(); err != nil {
				return err
			}
			f.surface.Navigate(target)
			return nil
		}
		return f.finishExchange(ctx, resp, dctx)
	case resp.Type == msg.TypeOidc && resp.URL != "":
		f.surface.Navigate(resp.URL)
		return nil
	default:
		return f.Dispatch(ctx, resp, dctx)
	}
}

// OidcCallback resumes a conversation paused for an external provider
// redirect. callbackURL is the full URL the provider navigated back
// to; its state and code parameters are forwarded, everything else is
// passed through untouched. Errors leave the stored OIDC state intact
// so the flow can be retried.
func (f *Flow) OidcCallback(ctx context.Context, callbackURL string) (*msg.Message, error) {
	parsed, err := url.Parse(callbackURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse callback URL: %w", err)
	}
	query := parsed.Query()

	req := &msg.Request{
		Type:  msg.TypeOidc,
		State: query.Get("state"),
		Code:  query.Get("code"),
	}
	extras := make(map[string]string)
	for k := range query {
		if k == "state" || k == "code" {
			continue
		}
		extras[k] = query.Get(k)
	}
	if len(extras) > 0 {
		req.Values = extras
	}

	resp, err := f.roundTrip(ctx, session.SlotMain, req, transport.WithActionName("oidc:callback"))
	if err != nil {
		slog.Error("oidc callback failed", "error", err)
		return nil, err
	}

	switch resp.Type {
	case msg.TypeFail:
		rerr := &ResponseError{Response: resp}
		slog.Error("oidc callback rejected", "error", rerr)
		return nil, rerr
	case msg.TypeVerifier:
		return f.oidcCallbackConfirm(ctx, resp.Thid())
	case msg.TypeOidc:
		// the conversation hops to another provider; cache the hop
		// and send the browser back through the flow start page
		cached := *resp
		if err := f.store.SetPendingResponse(&cached); err != nil {
			return nil, err
		}
		resp.RedirectTo = f.store.AuthFlowStartPoint()
		return resp, nil
	default:
		return resp, nil
	}
}

func (f *Flow) oidcCallbackConfirm(ctx context.Context, thid string) (*msg.Message, error) {
	req := msg.NewVerifierRequest(f.store.CodeVerifier())
	req.SetThread(thid)

	resp, err := f.roundTrip(ctx, session.SlotMain, req, transport.WithActionName("verifier"))
	if err != nil {
		slog.Error("oidc verifier exchange failed", "error", err)
		return nil, err
	}
	if resp.Type != msg.TypeSuccess {
		return nil, ErrAuthenticationFailed
	}
	if err := f.store.StoreOnLoginSuccess(resp); err != nil {
		return nil, fmt.Errorf("unable to persist credentials: %w", err)
	}
	if orig := f.store.OidcOriginalParams(); len(orig) > 0 {
		resp.RedirectTo = f.brokerRedirectURL(resp.Verifier, orig)
		if err := f.store.ClearOidcData(); err != nil {
			return nil, err
		}
	}
	return resp, nil
}
