package authn

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indykite/indykite-sdk-web-sub001/pkg/msg"
)

const pongReply = `{"@type": "action", "opts": [{"@type": "action", "hint": "pong"}]}`

func TestQrPollsUntilTerminal(t *testing.T) {
	srv := newScriptServer(t,
		pongReply,
		pongReply,
		`{"@type": "success", "token": "tok"}`,
	)
	surface := &fakeSurface{}

	var got *msg.Message
	f, _ := newTestFlow(t, srv, surface)
	sl := &instantSleep{}
	f.sleep = sl.sleep

	qr := parseMessage(t, `{"@type": "qr", "~thread": {"thid": "qr-1"}, "url": "https://idp.example.com/qr/abc"}`)
	require.NoError(t, f.Dispatch(context.Background(), qr, &DispatchContext{
		OnSuccess: func(m *msg.Message) { got = m },
	}))

	require.Len(t, surface.qrs, 1)
	assert.Equal(t, "https://idp.example.com/qr/abc", surface.qrs[0].URL)

	assert.Equal(t, 3, srv.requestCount())
	for i := 0; i < 3; i++ {
		assert.Equal(t, "ping", srv.request(i)["action"])
	}
	assert.Equal(t, []time.Duration{
		pingInterval, pingInterval, pingInterval,
	}, sl.waits)

	require.NotNil(t, got)
	assert.Equal(t, "tok", got.Token)
}

func TestQrShortensWaitAfterTransportError(t *testing.T) {
	srv := newScriptServer(t,
		"!",
		`{"@type": "success", "token": "tok"}`,
	)
	surface := &fakeSurface{}

	f, _ := newTestFlow(t, srv, surface, WithGlobalCallbacks(func(*msg.Message) {}, nil))
	sl := &instantSleep{}
	f.sleep = sl.sleep

	qr := parseMessage(t, `{"@type": "qr", "url": "https://idp.example.com/qr/abc"}`)
	require.NoError(t, f.Dispatch(context.Background(), qr, nil))

	assert.Equal(t, 2, srv.requestCount())
	assert.Equal(t, []time.Duration{pingInterval, pingRetryInterval}, sl.waits)
}

func TestQrStopsOnCancelledContext(t *testing.T) {
	srv := newScriptServer(t)
	surface := &fakeSurface{}

	f, _ := newTestFlow(t, srv, surface)
	sl := &instantSleep{}
	f.sleep = sl.sleep

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	qr := parseMessage(t, `{"@type": "qr", "url": "https://idp.example.com/qr/abc"}`)
	err := f.Dispatch(ctx, qr, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, srv.requestCount())
}
