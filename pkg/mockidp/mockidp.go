// Package mockidp is a self-contained identity server speaking the
// conversation protocol. It exists for local development and for
// end-to-end tests of the client flows; nothing in it is fit for
// production use.
package mockidp

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/segmentio/ksuid"

	"github.com/indykite/indykite-sdk-web-sub001/pkg/msg"
)

type Config struct {
	// Issuer lands in the iss claim of minted tokens.
	Issuer string `yaml:"issuer"`
	// Users maps usernames to passwords accepted by the login form.
	Users map[string]string `yaml:"users"`
	// Providers lists the external OIDC providers offered next to
	// the password form.
	Providers []string `yaml:"providers"`
	// QrLogin adds the out-of-band polling option to the login
	// message.
	QrLogin bool `yaml:"qr_login"`
}

type Server struct {
	cfg    Config
	e      *echo.Echo
	convs  *conversationStore
	nonces *nonceService
	sigKey jwk.Key
}

func New(cfg Config) (*Server, error) {
	if cfg.Issuer == "" {
		cfg.Issuer = "https://mockidp.invalid"
	}
	nonces, err := newNonceService()
	if err != nil {
		return nil, err
	}
	raw, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("unable to generate signing key: %w", err)
	}
	sigKey, err := jwk.FromRaw(raw)
	if err != nil {
		return nil, fmt.Errorf("unable to wrap signing key: %w", err)
	}
	sigKey.Set(jwk.KeyIDKey, ksuid.New().String())

	s := &Server{
		cfg:    cfg,
		convs:  newConversationStore(),
		nonces: nonces,
		sigKey: sigKey,
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.POST("/auth/:app", s.handleAuth)
	e.GET("/qr/:thid", s.handleQrScan)
	e.GET("/ws/conversations/:thid", s.handleConversationFeed)
	s.e = e
	return s, nil
}

// Handler exposes the routes for embedding into httptest servers.
func (s *Server) Handler() http.Handler {
	return s.e
}

func (s *Server) Start(addr string) error {
	slog.Info("mock identity server listening", "addr", addr, "issuer", s.cfg.Issuer)
	return s.e.Start(addr)
}

func (s *Server) handleAuth(c echo.Context) error {
	req, err := parseRequest(c)
	if err != nil {
		slog.Warn("rejecting malformed request", "error", err)
		return c.JSON(http.StatusBadRequest, &msg.Error{Code: "bad_request", Description: err.Error()})
	}

	slog.Debug("conversation request", "type", req.Type, "thid", req.thid(), "app", c.Param("app"))

	switch req.Type {
	case "setup":
		return s.handleSetup(c, req)
	case msg.TypeForm:
		return s.handleFormSubmit(c, req)
	case msg.TypeAction:
		return s.handleAction(c, req)
	case msg.TypeOidc:
		return s.handleOidc(c, req)
	case msg.TypeVerifier:
		return s.handleVerifier(c, req)
	case msg.TypeWebauthn:
		return s.handleWebauthn(c, req)
	default:
		return c.JSON(http.StatusOK, &msg.Message{Type: msg.TypeFail})
	}
}

func (s *Server) handleSetup(c echo.Context, req *request) error {
	switch req.Flow {
	case msg.FlowLogin:
		conv := s.convs.create(msg.FlowLogin)
		return c.JSON(http.StatusOK, s.loginOptions(conv))
	case msg.FlowRegister:
		// registration needs an established conversation; a deep
		// link lands here without one and must recover via login
		if req.thid() == "" || s.convs.get(req.thid()) == nil {
			return c.JSON(http.StatusOK, &msg.Message{Type: msg.TypeFail})
		}
		conv := s.convs.derive(req.thid(), msg.FlowRegister)
		return c.JSON(http.StatusOK, registerForm(conv))
	case msg.FlowForgotten:
		conv := s.convs.create(msg.FlowForgotten)
		return c.JSON(http.StatusOK, forgottenForm(conv))
	default:
		return c.JSON(http.StatusOK, &msg.Message{Type: msg.TypeFail})
	}
}

// loginOptions is the opening compound message: the password form,
// secondary actions, the configured providers and optionally the QR
// option. Ordinals are deliberately shuffled; clients sort on render.
func (s *Server) loginOptions(conv *conversation) *msg.Message {
	opts := []msg.Message{
		{
			Type: msg.TypeForm,
			ID:   "login-form",
			Fields: []msg.FormField{
				{ID: "username", Hint: "email", Required: true},
				{ID: "password", Hint: "password", Required: true},
			},
		},
		{
			Type: msg.TypeAction,
			ID:   "login-actions",
			Opts: []msg.Message{
				{Type: msg.TypeAction, Hint: msg.HintRegister},
				{Type: msg.TypeAction, Hint: msg.HintForgotten},
			},
		},
	}
	for i, prv := range s.cfg.Providers {
		opts = append(opts, msg.Message{
			Type: msg.TypeOidc,
			ID:   "oidc-" + prv,
			Prv:  prv,
			Name: prv,
			Ord:  i,
		})
	}
	if s.cfg.QrLogin {
		opts = append(opts, msg.Message{
			Type: msg.TypeQr,
			ID:   "qr-login",
			URL:  s.cfg.Issuer + "/qr/" + conv.thid,
		})
	}
	return &msg.Message{
		Type:   msg.TypeLogical,
		Op:     "or",
		Thread: &msg.Thread{Thid: conv.thid},
		Opts:   opts,
	}
}

func registerForm(conv *conversation) *msg.Message {
	return &msg.Message{
		Type:   msg.TypeForm,
		ID:     "register-form",
		Thread: &msg.Thread{Thid: conv.thid},
		Fields: []msg.FormField{
			{ID: "username", Hint: "email", Required: true},
			{ID: "password", Hint: "password", Required: true},
		},
	}
}

func forgottenForm(conv *conversation) *msg.Message {
	return &msg.Message{
		Type:   msg.TypeForm,
		ID:     "forgotten-form",
		Thread: &msg.Thread{Thid: conv.thid},
		Fields: []msg.FormField{
			{ID: "email", Hint: "email", Required: true},
		},
	}
}

func (s *Server) handleFormSubmit(c echo.Context, req *request) error {
	conv := s.convs.get(req.thid())
	if conv == nil {
		return c.JSON(http.StatusOK, &msg.Message{Type: msg.TypeFail})
	}

	switch conv.flow {
	case msg.FlowForgotten:
		conv.broadcast("reset_requested")
		return c.JSON(http.StatusOK, &msg.Message{
			Type:   msg.TypeMessage,
			Thread: &msg.Thread{Thid: conv.thid},
			Msg:    "If the address exists, a reset link is on its way.",
			Style:  "info",
		})
	case msg.FlowRegister:
		conv.setUser(req.values["username"])
		return s.issueVerifierChallenge(c, conv)
	default:
		username := req.values["username"]
		if password, ok := s.cfg.Users[username]; !ok || password != req.values["password"] {
			slog.Debug("rejecting credentials", "username", username)
			return c.JSON(http.StatusOK, &msg.Message{
				Type:   msg.TypeFail,
				Thread: &msg.Thread{Thid: conv.thid},
			})
		}
		conv.setUser(username)
		return s.issueVerifierChallenge(c, conv)
	}
}

// issueVerifierChallenge rotates the conversation onto a one-time
// thread. The verifier confirmation must arrive under that thread and
// can be redeemed exactly once.
func (s *Server) issueVerifierChallenge(c echo.Context, conv *conversation) error {
	nonce, err := s.nonces.issue()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, &msg.Error{Code: "server_error", Description: err.Error()})
	}
	s.convs.alias(nonce, conv)
	return c.JSON(http.StatusOK, &msg.Message{
		Type:   msg.TypeVerifier,
		Thread: &msg.Thread{Thid: nonce},
	})
}

func (s *Server) handleVerifier(c echo.Context, req *request) error {
	conv := s.convs.get(req.thid())
	if conv == nil || !s.nonces.redeem(req.thid()) {
		slog.Warn("verifier thread rejected", "thid", req.thid())
		return c.JSON(http.StatusOK, &msg.Message{Type: msg.TypeFail})
	}
	if challenge := conv.pkceChallenge(); challenge != "" && !challengeMatches(challenge, req.Cv) {
		slog.Warn("code verifier mismatch", "thid", req.thid())
		return c.JSON(http.StatusOK, &msg.Message{Type: msg.TypeFail})
	}

	token, err := s.issueToken(conv)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, &msg.Error{Code: "server_error", Description: err.Error()})
	}
	conv.broadcast("completed")
	return c.JSON(http.StatusOK, &msg.Message{
		Type:           msg.TypeSuccess,
		Thread:         &msg.Thread{Thid: ksuid.New().String()},
		Token:          token,
		TokenType:      "Bearer",
		ExpirationTime: tokenExpiry().Unix(),
		Verifier:       ksuid.New().String(),
	})
}

func (s *Server) handleAction(c echo.Context, req *request) error {
	conv := s.convs.get(req.thid())
	if conv == nil {
		return c.JSON(http.StatusOK, &msg.Message{Type: msg.TypeFail})
	}

	switch req.Action {
	case "ping":
		if !conv.isApproved() {
			return c.JSON(http.StatusOK, &msg.Message{
				Type:   msg.TypeAction,
				Thread: &msg.Thread{Thid: conv.thid},
				Opts:   []msg.Message{{Type: msg.TypeAction, Hint: msg.HintPong}},
			})
		}
		return s.issueVerifierChallenge(c, conv)
	case msg.HintRegister:
		derived := s.convs.derive(conv.thid, msg.FlowRegister)
		return c.JSON(http.StatusOK, registerForm(derived))
	case msg.HintForgotten:
		derived := s.convs.derive(conv.thid, msg.FlowForgotten)
		return c.JSON(http.StatusOK, forgottenForm(derived))
	case msg.HintLogin:
		return c.JSON(http.StatusOK, s.loginOptions(conv))
	default:
		return c.JSON(http.StatusOK, &msg.Message{Type: msg.TypeFail})
	}
}

func (s *Server) handleOidc(c echo.Context, req *request) error {
	// a callback carries the provider's code; everything else starts
	// a provider hop
	if req.Code != "" {
		conv := s.convs.get(req.State)
		if conv == nil || !conv.stateMatches(req.State) {
			return c.JSON(http.StatusOK, &msg.Message{Type: msg.TypeFail})
		}
		conv.setUser("oidc-user")
		return s.issueVerifierChallenge(c, conv)
	}

	conv := s.convs.get(req.thid())
	if conv == nil {
		conv = s.convs.create(msg.FlowLogin)
	}
	// the "provider" is this server itself: the authorize URL calls
	// straight back with a code
	state := ksuid.New().String()
	conv.beginOidc(req.CodeChallenge, state)
	s.convs.alias(state, conv)
	return c.JSON(http.StatusOK, &msg.Message{
		Type:   msg.TypeOidc,
		Thread: &msg.Thread{Thid: conv.thid},
		URL:    s.cfg.Issuer + "/authorize?state=" + state + "&code=" + ksuid.New().String(),
	})
}

func (s *Server) handleWebauthn(c echo.Context, req *request) error {
	conv := s.convs.get(req.thid())
	if conv == nil || len(req.PublicKeyCredential) == 0 {
		return c.JSON(http.StatusOK, &msg.Message{Type: msg.TypeFail})
	}
	return s.issueVerifierChallenge(c, conv)
}

// handleQrScan plays the out-of-band device: opening the QR URL
// approves the pending conversation.
func (s *Server) handleQrScan(c echo.Context) error {
	conv := s.convs.get(c.Param("thid"))
	if conv == nil {
		return c.NoContent(http.StatusNotFound)
	}
	conv.approve()
	slog.Info("conversation approved out of band", "thid", conv.thid)
	return c.String(http.StatusOK, "login approved, return to your first device")
}
