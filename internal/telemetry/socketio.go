package telemetry

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/specialistvlad/rendergraph/internal/ctxlog"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// FrameStatsEvent is the socket.io event name frames are emitted under.
const FrameStatsEvent = "frame_stats"

// SocketIOOptions configures DialSocketIO.
type SocketIOOptions struct {
	URL                string
	Namespace          string
	InsecureSkipVerify bool
	// ConnectTimeout defaults to 15s.
	ConnectTimeout time.Duration
}

// SocketIO emits frame statistics over a socket.io connection.
type SocketIO struct {
	io *socket.Socket
}

var _ Publisher = (*SocketIO)(nil)

// DialSocketIO connects to a socket.io server over websockets and waits
// for the connection to be accepted.
func DialSocketIO(ctx context.Context, opts SocketIOOptions) (*SocketIO, error) {
	logger := ctxlog.FromContext(ctx).With("telemetry", "socketio", "url", opts.URL)

	parsedURL, err := url.Parse(opts.URL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing telemetry URL")
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, errors.Newf("telemetry URL %q needs a scheme and host", opts.URL)
	}
	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	sopts := socket.DefaultOptions()
	sopts.SetPath(parsedURL.Path)
	if opts.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		sopts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	sopts.SetTransports(types.NewSet(transports.WebSocket))

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, sopts)
	io := manager.Socket(opts.Namespace, sopts)

	connected := make(chan error, 1)
	io.Once(types.EventName("connect"), func(...any) {
		connected <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		connected <- connectError(errs)
	})
	io.Connect()

	select {
	case err := <-connected:
		if err != nil {
			io.Disconnect()
			return nil, errors.Wrap(err, "socket.io connection failed")
		}
		logger.Info("telemetry connected", "sid", io.Id())
		return &SocketIO{io: io}, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, errors.Wrap(ctx.Err(), "waiting for socket.io connection")
	case <-time.After(timeout):
		io.Disconnect()
		return nil, errors.Newf("timed out after %s waiting for socket.io connection", timeout)
	}
}

// connectError turns the arguments of a connect_error event into an error.
func connectError(args []any) error {
	if len(args) == 0 {
		return errors.New("connect_error without a reason")
	}
	if err, ok := args[0].(error); ok && err != nil {
		return err
	}
	return errors.Newf("connect_error: %v", args[0])
}

// Publish implements Publisher. Frames are dropped while disconnected.
func (p *SocketIO) Publish(ctx context.Context, stats FrameStats) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !p.io.Connected() {
		return errors.New("telemetry socket is not connected")
	}
	p.io.Emit(FrameStatsEvent, stats)
	return nil
}

// Close implements Publisher.
func (p *SocketIO) Close() error {
	p.io.Disconnect()
	return nil
}
