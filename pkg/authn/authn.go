// Package authn drives server-directed authentication conversations:
// the server decides what happens next, the flow interprets each typed
// message, performs the side effect it demands (render a form, follow
// a redirect, run a platform credential ceremony, poll) and feeds the
// result back under the correct correlation thread.
package authn

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/indykite/indykite-sdk-web-sub001/pkg/msg"
	"github.com/indykite/indykite-sdk-web-sub001/pkg/session"
	"github.com/indykite/indykite-sdk-web-sub001/pkg/transport"
	"github.com/indykite/indykite-sdk-web-sub001/pkg/ui"
)

var validate = validator.New()

type Config struct {
	BaseURL       string        `yaml:"base_url" validate:"required,url"`
	ApplicationID string        `yaml:"application_id" validate:"required"`
	TenantID      string        `yaml:"tenant_id"`
	// LoginApp routes external providers back into a hosted login
	// application, keyed by provider; "*" is the fallback.
	LoginApp    map[string]string `yaml:"login_app"`
	RedirectURI string            `yaml:"redirect_uri" validate:"omitempty,url"`
	Timeout     time.Duration     `yaml:"timeout"`
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unable to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Flow interprets the conversation. It holds no conversation state of
// its own; correlation tokens, OIDC state and pending responses all
// live in the session store.
type Flow struct {
	cfg           Config
	store         session.Store
	client        *transport.Client
	surface       ui.Surface
	authenticator Authenticator

	onSuccess func(*msg.Message)
	onFail    func(error)

	// sleep is replaced in tests to avoid real polling waits.
	sleep func(ctx context.Context, d time.Duration) error
}

type FlowOption func(*Flow)

// WithAuthenticator injects the platform credential API used by
// WebAuthn ceremonies.
func WithAuthenticator(a Authenticator) FlowOption {
	return func(f *Flow) {
		f.authenticator = a
	}
}

// WithGlobalCallbacks registers fallback terminal callbacks used when
// a dispatch context does not supply its own.
func WithGlobalCallbacks(onSuccess func(*msg.Message), onFail func(error)) FlowOption {
	return func(f *Flow) {
		f.onSuccess = onSuccess
		f.onFail = onFail
	}
}

// WithHTTPClient passes a custom HTTP client to the transport.
func WithHTTPClient(hc *http.Client) FlowOption {
	return func(f *Flow) {
		f.client, _ = transport.New(transport.Config{
			BaseURL:       f.cfg.BaseURL,
			ApplicationID: f.cfg.ApplicationID,
			TenantID:      f.cfg.TenantID,
			Timeout:       f.cfg.Timeout,
		}, transport.WithHTTPClient(hc))
	}
}

func New(cfg Config, store session.Store, surface ui.Surface, opts ...FlowOption) (*Flow, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := transport.New(transport.Config{
		BaseURL:       cfg.BaseURL,
		ApplicationID: cfg.ApplicationID,
		TenantID:      cfg.TenantID,
		Timeout:       cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	f := &Flow{
		cfg:     cfg,
		store:   store,
		client:  client,
		surface: surface,
		sleep:   sleepCtx,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// DispatchContext carries per-conversation options and terminal
// callbacks through the dispatcher and its handlers.
type DispatchContext struct {
	// Flow names the conversation; it selects the thread slot and
	// the form submit routing.
	Flow msg.Flow

	OnSuccess func(*msg.Message)
	OnFail    func(error)

	// Labels overrides user-facing texts by key; see the label*
	// constants.
	Labels map[string]string

	// RedirectURI and LoginApp are handed to the OIDC setup when a
	// provider trigger fires. LoginApp is keyed by provider, "*" is
	// the fallback.
	RedirectURI string
	LoginApp    map[string]string

	// PasswordCheck duplicates password fields with a confirmation
	// input; set for registration and password-change forms.
	PasswordCheck bool

	// LegacyActionRedirect switches action options to the deprecated
	// client-side redirect behavior.
	LegacyActionRedirect bool
}

func (d *DispatchContext) slot() session.ThreadSlot {
	if d.Flow == msg.FlowForgotten {
		return session.SlotForgotten
	}
	return session.SlotMain
}

func (d *DispatchContext) label(key, fallback string) string {
	if d.Labels != nil {
		if v, ok := d.Labels[key]; ok {
			return v
		}
	}
	return fallback
}

func (d *DispatchContext) loginApp(provider string) string {
	if d.LoginApp == nil {
		return ""
	}
	if v, ok := d.LoginApp[provider]; ok {
		return v
	}
	return d.LoginApp["*"]
}

// succeed routes a terminal payload to the local callback, falling
// back to the flow-wide one.
func (f *Flow) succeed(dctx *DispatchContext, m *msg.Message) {
	switch {
	case dctx != nil && dctx.OnSuccess != nil:
		dctx.OnSuccess(m)
	case f.onSuccess != nil:
		f.onSuccess(m)
	default:
		slog.Warn("no success callback registered", "type", m.Type)
	}
}

func (f *Flow) failure(dctx *DispatchContext, err error) {
	switch {
	case dctx != nil && dctx.OnFail != nil:
		dctx.OnFail(err)
	case f.onFail != nil:
		f.onFail(err)
	default:
		slog.Warn("no failure callback registered", "error", err)
	}
}

// roundTrip sends one request under the slot's correlation token and
// stores the thread id of the response before returning it. Request
// N+1 of a conversation is therefore never built before response N
// has updated the store.
func (f *Flow) roundTrip(ctx context.Context, slot session.ThreadSlot, req *msg.Request, opts ...transport.SendOption) (*msg.Message, error) {
	if req.Thread == nil {
		req.SetThread(f.store.ThreadID(slot))
	}

	resp, err := f.client.Send(ctx, req, opts...)
	if err != nil {
		return nil, err
	}
	if thid := resp.Thid(); thid != "" {
		if err := f.store.SetThreadID(slot, thid); err != nil {
			return nil, fmt.Errorf("unable to store thread id: %w", err)
		}
	}
	return resp, nil
}

// setup bootstraps a conversation on the server and returns the first
// message of the flow.
func (f *Flow) setup(ctx context.Context, slot session.ThreadSlot, flow msg.Flow) (*msg.Message, error) {
	return f.roundTrip(ctx, slot, msg.NewSetupRequest(flow), transport.WithActionName("setup:"+string(flow)))
}

// Login starts a password/compound login conversation and dispatches
// the server's opening message.
func (f *Flow) Login(ctx context.Context, dctx *DispatchContext) error {
	if dctx == nil {
		dctx = &DispatchContext{}
	}
	dctx.Flow = msg.FlowLogin
	resp, err := f.setup(ctx, dctx.slot(), msg.FlowLogin)
	if err != nil {
		slog.Error("login setup failed", "error", err)
		return err
	}
	return f.Dispatch(ctx, resp, dctx)
}

// Register starts a registration conversation. When the correlation
// thread was never established, which happens when a deep link lands
// directly here, the setup is retried once after a login setup repairs
// the thread.
func (f *Flow) Register(ctx context.Context, dctx *DispatchContext) error {
	if dctx == nil {
		dctx = &DispatchContext{}
	}
	dctx.Flow = msg.FlowRegister
	dctx.PasswordCheck = true

	var resp *msg.Message
	err := retryWithRecovery(ctx, 1,
		func(ctx context.Context) error {
			var err error
			resp, err = f.setup(ctx, dctx.slot(), msg.FlowRegister)
			return err
		},
		func(ctx context.Context) error {
			_, err := f.setup(ctx, session.SlotMain, msg.FlowLogin)
			return err
		},
	)
	if err != nil {
		slog.Error("register setup failed", "error", err)
		return err
	}
	return f.Dispatch(ctx, resp, dctx)
}

// ForgottenPassword starts the password recovery conversation. Its
// thread lives in a separate slot so a paused OIDC or login flow keeps
// its own correlation token.
func (f *Flow) ForgottenPassword(ctx context.Context, dctx *DispatchContext) error {
	if dctx == nil {
		dctx = &DispatchContext{}
	}
	dctx.Flow = msg.FlowForgotten

	var resp *msg.Message
	err := retryWithRecovery(ctx, 1,
		func(ctx context.Context) error {
			var err error
			resp, err = f.setup(ctx, dctx.slot(), msg.FlowForgotten)
			return err
		},
		func(ctx context.Context) error {
			_, err := f.setup(ctx, session.SlotMain, msg.FlowLogin)
			return err
		},
	)
	if err != nil {
		slog.Error("forgotten password setup failed", "error", err)
		return err
	}
	return f.Dispatch(ctx, resp, dctx)
}

// ResumePending dispatches the cached response of a flow that was
// paused for an external redirect, if one exists. The cache is cleared
// before dispatching; at most one pending response exists at a time.
func (f *Flow) ResumePending(ctx context.Context, dctx *DispatchContext) (bool, error) {
	pending := f.store.PendingResponse()
	if pending == nil {
		return false, nil
	}
	if err := f.store.SetPendingResponse(nil); err != nil {
		return false, err
	}
	return true, f.Dispatch(ctx, pending, dctx)
}
