package authn

import (
	"context"
	"log/slog"
	"time"

	"github.com/indykite/indykite-sdk-web-sub001/pkg/msg"
	"github.com/indykite/indykite-sdk-web-sub001/pkg/transport"
	"github.com/indykite/indykite-sdk-web-sub001/pkg/ui"
)

const (
	// pingInterval separates two pings while the server keeps
	// answering pong.
	pingInterval = 5 * time.Second
	// pingRetryInterval is the shortened wait after a transport
	// error; the loop never gives up on its own.
	pingRetryInterval = 2 * time.Second
	// pingTimeout bounds a single long-poll request.
	pingTimeout = 20 * time.Second
)

// isPong reports whether a ping response only re-arms the poll.
func isPong(m *msg.Message) bool {
	return m.Type == msg.TypeAction && len(m.Opts) == 1 && m.Opts[0].Hint == msg.HintPong
}

// pollQr renders the out-of-band login visual and polls until another
// device completes the conversation. Transport errors are tolerated
// indefinitely; the only way out without a server state change is
// cancelling ctx, which the embedding UI does when the option leaves
// the screen.
func (f *Flow) pollQr(ctx context.Context, m *msg.Message, dctx *DispatchContext) error {
	f.surface.ShowQr(&ui.QrCode{URL: m.URL})

	wait := pingInterval
	for {
		if err := f.sleep(ctx, wait); err != nil {
			return err
		}
		resp, err := f.roundTrip(ctx, dctx.slot(), msg.NewPingRequest(),
			transport.WithTimeout(pingTimeout), transport.WithActionName("ping"))
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Debug("ping failed, retrying", "error", err)
			wait = pingRetryInterval
			continue
		}
		if isPong(resp) {
			wait = pingInterval
			continue
		}
		return f.finishExchange(ctx, resp, dctx)
	}
}
