package authn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indykite/indykite-sdk-web-sub001/pkg/msg"
	"github.com/indykite/indykite-sdk-web-sub001/pkg/session"
)

func submitForm(t *testing.T, surface *fakeSurface, values map[string]string) error {
	t.Helper()
	require.NotEmpty(t, surface.forms, "no form was rendered")
	form := surface.forms[len(surface.forms)-1]
	return form.Submit(context.Background(), values)
}

func TestExchangeConfirmsVerifierUnderNewThread(t *testing.T) {
	srv := newScriptServer(t,
		`{"@type": "verifier", "~thread": {"thid": "thread-2"}}`,
		`{"@type": "success", "~thread": {"thid": "thread-3"}, "token": "tok", "verifier": "lv"}`,
	)
	surface := &fakeSurface{}

	var got *msg.Message
	f, store := newTestFlow(t, srv, surface)
	require.NoError(t, store.SetThreadID(session.SlotMain, "thread-1"))
	require.NoError(t, store.SetCodeVerifier("cv-abc"))

	form := parseMessage(t, `{"@type": "form", "@id": "login", "fields": [
		{"@id": "username", "hint": "email"},
		{"@id": "password", "hint": "password"}
	]}`)
	require.NoError(t, f.Dispatch(context.Background(), form, &DispatchContext{
		OnSuccess: func(m *msg.Message) { got = m },
	}))

	require.NoError(t, submitForm(t, surface, map[string]string{
		"username": "ada@example.com",
		"password": "hunter2",
	}))

	// the submit goes out under the stored thread
	submit := srv.request(0)
	assert.Equal(t, "thread-1", reqThid(submit))
	assert.Equal(t, "ada@example.com", submit["username"])

	// the confirmation uses the thread issued by the submit response
	confirm := srv.request(1)
	assert.Equal(t, "thread-2", reqThid(confirm))
	assert.Equal(t, "cv-abc", confirm["cv"])

	require.NotNil(t, got)
	assert.Equal(t, "tok", got.Token)
	assert.Equal(t, "thread-3", store.ThreadID(session.SlotMain))
	require.NotNil(t, store.Credentials())
	assert.Equal(t, "tok", store.Credentials().Token)
}

func TestExchangeBareFailBecomesAuthenticationFailed(t *testing.T) {
	srv := newScriptServer(t, `{"@type": "fail"}`)
	surface := &fakeSurface{}

	var got error
	f, _ := newTestFlow(t, srv, surface)

	form := parseMessage(t, `{"@type": "form", "@id": "login", "fields": [{"@id": "username"}]}`)
	require.NoError(t, f.Dispatch(context.Background(), form, &DispatchContext{
		OnFail: func(err error) { got = err },
	}))

	err := submitForm(t, surface, map[string]string{"username": "ada"})
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
	assert.ErrorIs(t, got, ErrAuthenticationFailed)
}

func TestExchangeServerErrorPassesThroughUnchanged(t *testing.T) {
	srv := newScriptServer(t,
		`{"@type": "fail", "~error": {"code": "invalid_credentials", "msg": "wrong password"}}`,
	)
	surface := &fakeSurface{}

	f, _ := newTestFlow(t, srv, surface)
	form := parseMessage(t, `{"@type": "form", "@id": "login", "fields": [{"@id": "username"}]}`)
	require.NoError(t, f.Dispatch(context.Background(), form, nil))

	err := submitForm(t, surface, map[string]string{"username": "ada"})
	require.Error(t, err)

	var serr *msg.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "invalid_credentials", serr.Code)
}

func TestFormRequiresDeclaredRequiredFields(t *testing.T) {
	srv := newScriptServer(t)
	surface := &fakeSurface{}

	f, _ := newTestFlow(t, srv, surface)
	form := parseMessage(t, `{"@type": "form", "@id": "login", "fields": [
		{"@id": "username", "required": true}
	]}`)
	require.NoError(t, f.Dispatch(context.Background(), form, nil))

	err := submitForm(t, surface, map[string]string{"username": ""})
	require.Error(t, err)
	assert.Zero(t, srv.requestCount())
}

func TestRegistrationFormDuplicatesPasswordField(t *testing.T) {
	srv := newScriptServer(t)
	surface := &fakeSurface{}

	f, _ := newTestFlow(t, srv, surface)
	form := parseMessage(t, `{"@type": "form", "@id": "register", "fields": [
		{"@id": "username", "hint": "email"},
		{"@id": "password", "hint": "password"}
	]}`)
	require.NoError(t, f.Dispatch(context.Background(), form, &DispatchContext{PasswordCheck: true}))

	require.Len(t, surface.forms, 1)
	fields := surface.forms[0].Fields
	require.Len(t, fields, 3)
	assert.Equal(t, "password_confirm", fields[2].ID)
	assert.True(t, fields[2].Confirm)

	// mismatching confirmation never reaches the wire
	err := submitForm(t, surface, map[string]string{
		"username":         "ada@example.com",
		"password":         "hunter2",
		"password_confirm": "hunter3",
	})
	require.Error(t, err)
	assert.Zero(t, srv.requestCount())
}

func TestRegistrationFormStripsConfirmationBeforeSending(t *testing.T) {
	srv := newScriptServer(t, `{"@type": "success", "token": "tok"}`)
	surface := &fakeSurface{}

	f, _ := newTestFlow(t, srv, surface, WithGlobalCallbacks(func(*msg.Message) {}, nil))
	form := parseMessage(t, `{"@type": "form", "@id": "register", "fields": [
		{"@id": "password", "hint": "password"}
	]}`)
	require.NoError(t, f.Dispatch(context.Background(), form, &DispatchContext{PasswordCheck: true}))

	require.NoError(t, submitForm(t, surface, map[string]string{
		"password":         "hunter2",
		"password_confirm": "hunter2",
	}))

	sent := srv.request(0)
	assert.Equal(t, "hunter2", sent["password"])
	_, leaked := sent["password_confirm"]
	assert.False(t, leaked)
}

func TestForgottenFormRoutesToNotice(t *testing.T) {
	srv := newScriptServer(t, `{"@type": "message", "msg": "reset link sent", "style": "info"}`)
	surface := &fakeSurface{}

	f, store := newTestFlow(t, srv, surface)
	require.NoError(t, store.SetThreadID(session.SlotForgotten, "forgot-1"))

	form := parseMessage(t, `{"@type": "form", "@id": "forgotten", "fields": [{"@id": "email"}]}`)
	dctx := &DispatchContext{Flow: msg.FlowForgotten}
	require.NoError(t, f.Dispatch(context.Background(), form, dctx))

	require.NoError(t, submitForm(t, surface, map[string]string{"email": "ada@example.com"}))

	assert.Equal(t, "forgot-1", reqThid(srv.request(0)))
	require.Len(t, surface.notices, 1)
	assert.Equal(t, "reset link sent", surface.notices[0].Text)
}

func TestActionForwardsResponseToCallback(t *testing.T) {
	srv := newScriptServer(t, `{"@type": "logical", "op": "or", "~thread": {"thid": "t-2"}, "opts": []}`)
	surface := &fakeSurface{}

	var got *msg.Message
	f, store := newTestFlow(t, srv, surface)
	require.NoError(t, store.SetThreadID(session.SlotMain, "t-1"))

	action := parseMessage(t, `{"@type": "action", "@id": "act", "opts": [
		{"@type": "action", "hint": "register"}
	]}`)
	require.NoError(t, f.Dispatch(context.Background(), action, &DispatchContext{
		OnSuccess: func(m *msg.Message) { got = m },
	}))

	require.Len(t, surface.triggers, 1)
	require.NoError(t, surface.triggers[0].Activate(context.Background()))

	sent := srv.request(0)
	assert.Equal(t, "register", sent["action"])
	assert.Equal(t, "t-1", reqThid(sent))
	require.NotNil(t, got)
	assert.Equal(t, msg.TypeLogical, got.Type)
	assert.Equal(t, "t-2", store.ThreadID(session.SlotMain))
}

func TestLegacyActionRedirectCachesPendingResponse(t *testing.T) {
	srv := newScriptServer(t, `{"@type": "logical", "op": "or", "opts": []}`)
	surface := &fakeSurface{}

	f, store := newTestFlow(t, srv, surface)
	action := parseMessage(t, `{"@type": "action", "@id": "act", "opts": [
		{"@type": "action", "hint": "forgotten"}
	]}`)
	require.NoError(t, f.Dispatch(context.Background(), action, &DispatchContext{
		LegacyActionRedirect: true,
		RedirectURI:          "https://app.example.com/forgotten",
	}))

	require.Len(t, surface.triggers, 1)
	require.NoError(t, surface.triggers[0].Activate(context.Background()))

	require.NotNil(t, store.PendingResponse())
	require.Len(t, surface.navigations, 1)
	assert.Equal(t, "https://app.example.com/forgotten", surface.navigations[0])
}
