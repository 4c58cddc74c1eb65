package authn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchSortsOptionsByBucketAndOrdinal(t *testing.T) {
	srv := newScriptServer(t)
	surface := &fakeSurface{}
	f, _ := newTestFlow(t, srv, surface)

	m := parseMessage(t, `{
		"@type": "logical",
		"op": "or",
		"~thread": {"thid": "t-1"},
		"opts": [
			{"@type": "oidc", "@id": "google", "prv": "google", "name": "Google", "~ord": 0},
			{"@type": "action", "@id": "a1", "opts": [{"@type": "action", "hint": "register"}], "~ord": 1},
			{"@type": "form", "@id": "login", "fields": [{"@id": "username"}], "~ord": 0},
			{"@type": "oidc", "@id": "fb", "prv": "facebook", "name": "Facebook", "~ord": 1},
			{"@type": "action", "@id": "a0", "opts": [{"@type": "action", "hint": "forgotten"}], "~ord": 0}
		]
	}`)

	require.NoError(t, f.Dispatch(context.Background(), m, &DispatchContext{}))

	// forms first, actions by ordinal, providers last
	assert.Equal(t, []string{
		"form:login",
		"sep:or",
		"trigger:forgotten",
		"trigger:register",
		"sep:or",
		"sep:or other options",
		"trigger:oidc:google",
		"trigger:oidc:facebook",
	}, surface.order)
}

func TestDispatchKeepsFixedOptionsInPlace(t *testing.T) {
	srv := newScriptServer(t)
	surface := &fakeSurface{}
	f, _ := newTestFlow(t, srv, surface)

	m := parseMessage(t, `{
		"@type": "logical",
		"op": "or",
		"opts": [
			{"@type": "oidc", "@id": "google", "prv": "google"},
			{"@type": "message", "msg": "maintenance window tonight"},
			{"@type": "form", "@id": "login", "fields": [{"@id": "username"}]}
		]
	}`)

	require.NoError(t, f.Dispatch(context.Background(), m, nil))

	// sortable options swap around the message, which stays second
	assert.Equal(t, []string{
		"form:login",
		"notice",
		"sep:or",
		"sep:or other options",
		"trigger:oidc:google",
	}, surface.order)
}

func TestDispatchNoSeparatorWithinOneBucket(t *testing.T) {
	srv := newScriptServer(t)
	surface := &fakeSurface{}
	f, _ := newTestFlow(t, srv, surface)

	m := parseMessage(t, `{
		"@type": "logical",
		"op": "or",
		"opts": [
			{"@type": "form", "@id": "login", "fields": [{"@id": "username"}]},
			{"@type": "form", "@id": "other", "fields": [{"@id": "email"}]}
		]
	}`)

	require.NoError(t, f.Dispatch(context.Background(), m, nil))
	assert.Empty(t, surface.separators)
}

func TestDispatchRejectsUnknownCombinator(t *testing.T) {
	srv := newScriptServer(t)
	surface := &fakeSurface{}
	f, _ := newTestFlow(t, srv, surface)

	m := parseMessage(t, `{
		"@type": "logical",
		"op": "and",
		"opts": [{"@type": "form", "@id": "login", "fields": [{"@id": "username"}]}]
	}`)

	err := f.Dispatch(context.Background(), m, nil)
	require.Error(t, err)
	// nothing was rendered
	assert.Empty(t, surface.order)
}

func TestDispatchIgnoresUnknownType(t *testing.T) {
	srv := newScriptServer(t)
	surface := &fakeSurface{}
	f, _ := newTestFlow(t, srv, surface)

	m := parseMessage(t, `{
		"@type": "logical",
		"op": "or",
		"opts": [
			{"@type": "holographic", "@id": "x"},
			{"@type": "form", "@id": "login", "fields": [{"@id": "username"}]}
		]
	}`)

	require.NoError(t, f.Dispatch(context.Background(), m, nil))
	require.Len(t, surface.forms, 1)
}

func TestDispatchShowsMessageNotice(t *testing.T) {
	srv := newScriptServer(t)
	surface := &fakeSurface{}
	f, _ := newTestFlow(t, srv, surface)

	m := parseMessage(t, `{"@type": "message", "msg": "check your inbox", "style": "info"}`)
	require.NoError(t, f.Dispatch(context.Background(), m, nil))

	require.Len(t, surface.notices, 1)
	assert.Equal(t, "check your inbox", surface.notices[0].Text)
	assert.Equal(t, "info", surface.notices[0].Style)
}

func TestDispatchBareFailFiresCallback(t *testing.T) {
	srv := newScriptServer(t)
	surface := &fakeSurface{}
	f, _ := newTestFlow(t, srv, surface)

	var got error
	m := parseMessage(t, `{"@type": "fail"}`)
	require.NoError(t, f.Dispatch(context.Background(), m, &DispatchContext{
		OnFail: func(err error) { got = err },
	}))

	assert.ErrorIs(t, got, ErrUnableToRetrieveOptions)
	require.Len(t, surface.errorTexts, 1)
	assert.Equal(t, defaultLabel(LabelGenericError), surface.errorTexts[0])
}

func TestDispatchLabelsAreOverridable(t *testing.T) {
	srv := newScriptServer(t)
	surface := &fakeSurface{}
	f, _ := newTestFlow(t, srv, surface)

	m := parseMessage(t, `{
		"@type": "logical",
		"op": "or",
		"opts": [
			{"@type": "form", "@id": "login", "fields": [{"@id": "username"}]},
			{"@type": "oidc", "@id": "google", "prv": "google"}
		]
	}`)

	require.NoError(t, f.Dispatch(context.Background(), m, &DispatchContext{
		Labels: map[string]string{
			LabelSeparator:    "oder",
			LabelOtherOptions: "weitere Optionen",
		},
	}))

	require.Len(t, surface.separators, 2)
	assert.Equal(t, "oder", surface.separators[0].Label)
	assert.Equal(t, "weitere Optionen", surface.separators[1].Label)
}

func TestResumePendingClearsTheCache(t *testing.T) {
	srv := newScriptServer(t)
	surface := &fakeSurface{}
	f, store := newTestFlow(t, srv, surface)

	pending := parseMessage(t, `{"@type": "message", "msg": "welcome back"}`)
	require.NoError(t, store.SetPendingResponse(pending))

	resumed, err := f.ResumePending(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, resumed)
	require.Len(t, surface.notices, 1)

	resumed, err = f.ResumePending(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, resumed)
}
