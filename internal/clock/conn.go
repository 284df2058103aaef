// Package clock implements the JSON command protocol spoken by the clock
// display over a persistent WebSocket.
package clock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/gixiebright/internal/config"
)

var (
	// ErrNetwork wraps URL, dial, read and write failures.
	ErrNetwork = errors.New("network error")
	// ErrTimeout is returned (alongside ErrNetwork) when a socket deadline expires.
	ErrTimeout = errors.New("device timed out")
	// ErrProtocol wraps encoding and decoding failures.
	ErrProtocol = errors.New("protocol error")
	// ErrMissingData is returned when a Get reply carries no data.
	ErrMissingData = errors.New("missing data key in json response")
)

// The device sends an empty line followed by a greeting right after the upgrade
const handshakeMessages = 2

// Conn is a connection to the clock. It allows one outstanding request at a
// time; replies are matched to requests by order.
type Conn struct {
	ws      *websocket.Conn
	num     uint8
	timeout time.Duration
	mu      sync.Mutex
}

// Connect dials clock.server and consumes the greeting. Requests are tagged
// with brightness.num.
func Connect(ctx context.Context, cfg *config.Config) (*Conn, error) {
	u, err := url.Parse(cfg.Clock.Server)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return nil, fmt.Errorf("%w: cannot parse url %q", ErrNetwork, cfg.Clock.Server)
	}

	timeout := cfg.Clock.Timeout.Duration()
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: timeout,
	}

	ws, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			log.Debug().Int("status", resp.StatusCode).Msg("Upgrade rejected")
		}
		return nil, fmt.Errorf("%w: cannot connect to server %s: %w", ErrNetwork, u.Redacted(), err)
	}

	if e := log.Debug(); e.Enabled() {
		headers := make(map[string]string, len(resp.Header))
		for name := range resp.Header {
			headers[name] = resp.Header.Get(name)
		}
		e.Int("status", resp.StatusCode).Interface("headers", headers).Msg("Upgrade response")
	}

	c := &Conn{
		ws:      ws,
		num:     cfg.Brightness.Num,
		timeout: timeout,
	}
	if err := c.handshake(ctx); err != nil {
		ws.Close()
		return nil, err
	}

	log.Debug().Str("server", u.Redacted()).Msg("Connected to clock")
	return c, nil
}

func (c *Conn) handshake(ctx context.Context) error {
	stop := c.interruptOn(ctx)
	defer stop()

	for i := 0; i < handshakeMessages; i++ {
		if err := c.ws.SetReadDeadline(c.deadline(ctx)); err != nil {
			return c.wrap(ctx, "cannot set read deadline", err)
		}
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return c.wrap(ctx, "cannot read message", err)
		}
		log.Debug().Str("data", string(data)).Msg("Recv handshake")
	}
	return nil
}

// Get returns the current brightness of the configured channel
func (c *Conn) Get(ctx context.Context) (uint8, error) {
	resp, err := c.roundTrip(ctx, getRequest(c.num))
	if err != nil {
		return 0, err
	}
	if resp.Data == nil {
		return 0, fmt.Errorf("%w: %w", ErrProtocol, ErrMissingData)
	}
	return *resp.Data, nil
}

// Set writes a brightness value and reports whether the device accepted it.
// A rejection is not an error.
func (c *Conn) Set(ctx context.Context, value uint8) (bool, error) {
	resp, err := c.roundTrip(ctx, setRequest(c.num, value))
	if err != nil {
		return false, err
	}
	if resp.ResCode != StatusOK {
		log.Debug().Uint16("res_code", resp.ResCode).Uint8("value", value).Msg("Set rejected by clock")
	}
	return resp.ResCode == StatusOK, nil
}

// Close sends a close frame and releases the socket
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.ws.Close()
}

// roundTrip sends one request and blocks for exactly one reply
func (c *Conn) roundTrip(ctx context.Context, req Request) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, c.wrap(ctx, "request not sent", err)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot serialize json: %w", ErrProtocol, err)
	}

	stop := c.interruptOn(ctx)
	defer stop()

	deadline := c.deadline(ctx)
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return nil, c.wrap(ctx, "cannot set write deadline", err)
	}
	log.Debug().Str("data", string(payload)).Msg("Send data")
	if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
		return nil, c.wrap(ctx, "cannot send message", err)
	}

	if err := c.ws.SetReadDeadline(deadline); err != nil {
		return nil, c.wrap(ctx, "cannot set read deadline", err)
	}
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, c.wrap(ctx, "cannot read message", err)
	}
	log.Debug().Str("data", string(data)).Msg("Recv data")

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: cannot parse json response: %w", ErrProtocol, err)
	}

	if resp.CmdType != req.CmdType || resp.CmdNum != req.CmdNum {
		log.Warn().
			Stringer("sent_cmd", req.CmdType).
			Uint8("sent_num", req.CmdNum).
			Stringer("recv_cmd", resp.CmdType).
			Uint8("recv_num", resp.CmdNum).
			Msg("Reply does not match request")
	}

	return &resp, nil
}

// deadline is the configured timeout from now, or the context deadline if sooner
func (c *Conn) deadline(ctx context.Context) time.Time {
	var d time.Time
	if c.timeout > 0 {
		d = time.Now().Add(c.timeout)
	}
	if ctxDeadline, ok := ctx.Deadline(); ok && (d.IsZero() || ctxDeadline.Before(d)) {
		d = ctxDeadline
	}
	return d
}

// interruptOn unblocks pending socket calls when ctx is cancelled
func (c *Conn) interruptOn(ctx context.Context) (stop func() bool) {
	return context.AfterFunc(ctx, func() {
		now := time.Now()
		_ = c.ws.SetReadDeadline(now)
		_ = c.ws.SetWriteDeadline(now)
	})
}

func (c *Conn) wrap(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		// The socket deadline may have come from the context deadline
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w: %s: %w", ErrNetwork, ErrTimeout, op, ctxErr)
		}
		return fmt.Errorf("%w: %s: %w", ErrNetwork, op, ctxErr)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w: %s: %w", ErrNetwork, ErrTimeout, op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrNetwork, op, err)
}
