package remote

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/specialistvlad/propshell/internal/command"
	"github.com/specialistvlad/propshell/internal/ctxlog"
	"github.com/specialistvlad/propshell/internal/session"
	"github.com/specialistvlad/propshell/internal/shellerr"
)

// Origin is the batch origin recorded for remote batches.
const Origin = "remote"

// idleTimeout closes connections that send nothing for this long.
const idleTimeout = 10 * time.Minute

// Executor runs batches. *session.Session implements it.
type Executor interface {
	Execute(ctx context.Context, b session.Batch) error
	Discard(source string)
}

// Reply is the JSON answer to one batch.
type Reply struct {
	OK     bool        `json:"ok"`
	Output string      `json:"output"`
	Error  *ReplyError `json:"error,omitempty"`
}

// ReplyError describes the command that stopped a batch.
type ReplyError struct {
	Line    int    `json:"line"`
	Command string `json:"command"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Handler upgrades requests to WebSocket connections and executes what they
// send.
type Handler struct {
	exec     Executor
	ctx      context.Context
	upgrader websocket.Upgrader
}

// NewHandler creates a Handler. ctx carries the logger and bounds the
// lifetime of every connection.
func NewHandler(ctx context.Context, exec Executor) *Handler {
	return &Handler{
		exec: exec,
		ctx:  ctx,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := ctxlog.FromContext(h.ctx).With("remote_addr", r.RemoteAddr)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("WebSocket upgrade failed.", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	// Each connection continues only its own `on` blocks.
	source := Origin + ":" + uuid.NewString()
	defer h.exec.Discard(source)

	logger = logger.With("source", source)
	logger.Info("Remote shell connected.")
	ctx := ctxlog.WithLogger(h.ctx, logger)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(idleTimeout))
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("Remote shell read failed.", "error", err)
			} else {
				logger.Info("Remote shell disconnected.")
			}
			return
		}
		if msgType != websocket.TextMessage {
			logger.Debug("Ignoring non-text message.", "type", msgType)
			continue
		}

		reply := h.run(ctx, source, string(data))
		if err := conn.WriteJSON(reply); err != nil {
			logger.Warn("Remote shell write failed.", "error", err)
			return
		}
	}
}

// run executes one batch and builds its reply.
func (h *Handler) run(ctx context.Context, source, text string) Reply {
	var out bytes.Buffer
	err := h.exec.Execute(ctx, session.Batch{Origin: Origin, Source: source, Text: text, Out: &out})

	reply := Reply{OK: err == nil, Output: out.String()}
	if err == nil {
		return reply
	}

	reply.Error = &ReplyError{Code: shellerr.Code(err), Message: err.Error()}
	var be *command.BatchError
	if errors.As(err, &be) {
		reply.Error.Line = be.Line
		reply.Error.Command = be.Command
		reply.Error.Message = be.Err.Error()
	}
	return reply
}
