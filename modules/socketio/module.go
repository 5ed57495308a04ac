// Package socketio provides the SocketIO kind, a one-shot Socket.IO
// request/reply client.
package socketio

import (
	"context"
	"crypto/tls"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/specialistvlad/propshell/internal/kind"
	"github.com/specialistvlad/propshell/internal/manifest"
	"github.com/specialistvlad/propshell/internal/registry"
	"github.com/specialistvlad/propshell/internal/shellerr"
	"github.com/zclconf/go-cty/cty"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

//go:embed manifest.hcl
var manifestSrc []byte

const (
	URL kind.PropID = iota
	Namespace
	OnEvent
	EmitEvent
	EmitData
	Timeout
	InsecureSkipVerify
	Response
)

const Send kind.SignalID = 0

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the kind.
func (m *Module) Register(r *registry.Registry) error {
	return r.RegisterKind(&registry.Kind{
		Spec:    manifest.MustParse("socketio/manifest.hcl", manifestSrc),
		Factory: New,
		Claims: &registry.Claims{
			Properties: []string{"url", "namespace", "on-event", "emit-event", "emit-data", "timeout", "insecure-skip-verify", "response"},
			Signals:    []string{"send"},
		},
		Source: "modules/socketio",
	})
}

// Client is a live SocketIO object.
type Client struct {
	*kind.Values
	env kind.Env
}

// New is the SocketIO factory.
func New(spec *kind.Spec, env kind.Env) (kind.Instance, error) {
	return &Client{Values: kind.NewValues(spec), env: env}, nil
}

// Set validates emit-data and timeout before storing them.
func (c *Client) Set(ctx context.Context, p kind.PropID, v cty.Value) ([]kind.PropID, error) {
	switch p {
	case EmitData:
		if !json.Valid([]byte(v.AsString())) {
			return nil, fmt.Errorf("%w: emit-data is not valid JSON", shellerr.ErrTypeMismatch)
		}
	case Timeout:
		d, err := time.ParseDuration(v.AsString())
		if err != nil {
			return nil, fmt.Errorf("%w: timeout: %v", shellerr.ErrTypeMismatch, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("%w: timeout must be positive", shellerr.ErrRange)
		}
	}
	c.Put(p, v)
	return nil, nil
}

// Emit implements kind.Instance.
func (c *Client) Emit(ctx context.Context, s kind.SignalID) ([]kind.PropID, error) {
	if s != Send {
		return nil, nil
	}
	reply, err := c.send(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: socket.io %s: %w", shellerr.ErrUnavailable, c.String(URL), err)
	}
	c.Put(Response, cty.StringVal(reply))
	return []kind.PropID{Response}, nil
}

// opResult passes the outcome of the exchange through the done channel.
type opResult struct {
	reply string
	err   error
}

func (c *Client) send(ctx context.Context) (string, error) {
	onEvent, emitEvent := c.String(OnEvent), c.String(EmitEvent)
	logger := c.env.Logger.With("url", c.String(URL), "onEvent", onEvent, "emitEvent", emitEvent)
	if onEvent == "" {
		return "", fmt.Errorf("on-event is not set")
	}

	var payload any
	if err := json.Unmarshal([]byte(c.String(EmitData)), &payload); err != nil {
		return "", fmt.Errorf("decode emit-data: %w", err)
	}
	timeout, err := time.ParseDuration(c.String(Timeout))
	if err != nil {
		return "", fmt.Errorf("parse timeout: %w", err)
	}

	parsedURL, err := url.Parse(c.String(URL))
	if err != nil || parsedURL.Host == "" {
		return "", fmt.Errorf("invalid url %q", c.String(URL))
	}

	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if c.Bool(InsecureSkipVerify) {
		logger.Warn("Skipping TLS certificate verification.")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host), opts)
	io := manager.Socket(c.String(Namespace), opts)
	defer func() {
		logger.Debug("Disconnecting socket client.")
		io.Disconnect()
	}()

	var connected atomic.Bool
	done := make(chan opResult, 1)
	finish := func(r opResult) {
		select {
		case done <- r:
		default:
		}
	}

	io.On(types.EventName("connect"), func(...any) {
		connected.Store(true)
		logger.Debug("Connected.", "sid", io.Id())
		if emitEvent != "" {
			io.Emit(emitEvent, payload)
		}
	})
	io.On(types.EventName("connect_error"), func(errs ...any) {
		if len(errs) > 0 {
			if err, ok := errs[0].(error); ok {
				finish(opResult{err: err})
				return
			}
		}
		finish(opResult{err: fmt.Errorf("connect error")})
	})
	io.On(types.EventName(onEvent), func(data ...any) {
		var reply any
		if len(data) > 0 {
			reply = data[0]
		}
		raw, err := json.Marshal(reply)
		finish(opResult{reply: string(raw), err: err})
	})

	io.Connect()

	select {
	case <-opCtx.Done():
		if connected.Load() {
			return "", fmt.Errorf("timed out after connecting while waiting for event '%s'", onEvent)
		}
		return "", fmt.Errorf("timed out while waiting for initial connection")
	case res := <-done:
		if res.err == nil {
			logger.Info("Reply received.", "bytes", len(res.reply))
		}
		return res.reply, res.err
	}
}
