// Package session wires one shell session together: the object registry,
// the binding engine and the command interpreter, behind a single lock.
//
// Every batch, whether typed, read from a script or received over the remote
// shell, and every asynchronous update posted by an object runs while
// holding that lock, so propagation always sees a consistent graph.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/propshell/internal/binding"
	"github.com/specialistvlad/propshell/internal/command"
	"github.com/specialistvlad/propshell/internal/ctxlog"
	"github.com/specialistvlad/propshell/internal/journal"
	"github.com/specialistvlad/propshell/internal/kind"
	"github.com/specialistvlad/propshell/internal/metrics"
	"github.com/specialistvlad/propshell/internal/objects"
	"github.com/specialistvlad/propshell/internal/registry"
	"github.com/specialistvlad/propshell/internal/shellerr"
)

// ErrClosed is returned by Execute after Close.
var ErrClosed = errors.New("session is closed")

// Recorder stores executed batches.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) error
}

// Config holds the collaborators of a Session.
type Config struct {
	Kinds *registry.Registry
	// Out receives command and object output unless a batch supplies its own.
	Out io.Writer
	// Level is changed by the log command. It may be nil.
	Level   *slog.LevelVar
	Metrics *metrics.Metrics
	// Journal may be nil.
	Journal Recorder
}

// Batch is one unit of input.
type Batch struct {
	// Origin names where the batch came from: "script", "repl" or "remote".
	Origin string
	// Source keys the `on` block a batch may leave open. Only batches from
	// the same source continue it. Empty means Origin.
	Source string
	Text   string
	// Out, when set, receives the output produced while the batch runs.
	Out io.Writer
}

func (b Batch) source() string {
	if b.Source != "" {
		return b.Source
	}
	return b.Origin
}

// Session is a live shell session.
type Session struct {
	id      string
	ctx     context.Context
	metrics *metrics.Metrics
	journal Recorder
	out     *router

	// mu is the exclusive path: it guards everything below and is held for
	// the whole of every batch and posted update.
	mu      sync.Mutex
	objects *objects.Registry
	engine  *binding.Engine
	interp  *command.Interpreter
	closed  bool

	// postMu guards the fields below.
	postMu   sync.Mutex
	closing  bool
	inflight int
	idle     *sync.Cond
	// lastAsync is closed once the most recently scheduled command is done.
	lastAsync chan struct{}
}

// New creates a session. ctx supplies the logger used for posted updates and
// must outlive the session.
func New(ctx context.Context, cfg Config) *Session {
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}

	id := uuid.NewString()
	ctx, logger := ctxlog.With(ctx, "session", id)

	s := &Session{
		id:      id,
		ctx:     ctx,
		metrics: cfg.Metrics,
		journal: cfg.Journal,
		out:     &router{base: cfg.Out},
	}
	s.idle = sync.NewCond(&s.postMu)

	s.objects = objects.New(cfg.Kinds, func(name string) kind.Env {
		return kind.Env{
			Name:   name,
			Out:    s.out,
			Logger: logger.With("object", name),
			Post:   s.poster(name),
		}
	})
	s.engine = binding.New(s.objects, cfg.Metrics)
	s.interp = command.New(command.Config{
		Kinds:   cfg.Kinds,
		Objects: s.objects,
		Engine:  s.engine,
		Out:     s.out,
		Level:     cfg.Level,
		Metrics:   cfg.Metrics,
		Scheduler: s,
	})

	logger.Debug("Session created.")
	return s
}

// ID returns the session's unique id.
func (s *Session) ID() string {
	return s.id
}

// Execute runs one batch on the exclusive path.
func (s *Session) Execute(ctx context.Context, b Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	ctx = ctxlog.WithLogger(ctx, ctxlog.FromContext(ctx).With("session", s.id, "origin", b.Origin))
	if b.Out != nil {
		s.out.redirect(b.Out)
		defer func() { s.out.redirect(nil) }()
	}

	start := time.Now()
	err := s.interp.Execute(ctx, b.source(), b.Text)
	s.metrics.Batch(b.Origin, time.Since(start), err)
	s.record(ctx, b, start, err)
	return err
}

// Pending reports whether source has an `on` block waiting for its `end`.
func (s *Session) Pending(source string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interp.Pending(source)
}

// Discard drops the unfinished `on` block of source.
func (s *Session) Discard(source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interp.Reset(source)
}

// Objects returns the live object names in creation order.
func (s *Session) Objects() []string {
	return s.objects.Names()
}

// Close destroys every object and waits for in-flight posted updates.
func (s *Session) Close(ctx context.Context) error {
	s.postMu.Lock()
	s.closing = true
	s.postMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for _, name := range s.objects.Names() {
		s.engine.Forget(name)
	}
	err := s.objects.Close(ctx)
	s.metrics.SetObjects(0)
	s.metrics.SetBindings(0)
	s.mu.Unlock()

	<-s.drained()
	ctxlog.FromContext(ctx).Debug("Session closed.", "session", s.id)
	return err
}

// poster returns the Post function handed to the object called name.
func (s *Session) poster(name string) func(kind.Update) {
	return func(u kind.Update) {
		if !s.track() {
			return
		}
		s.metrics.Post()
		go func() {
			defer s.untrack()
			s.applyUpdate(name, u)
		}()
	}
}

// Schedule implements command.Scheduler.
func (s *Session) Schedule(fn func(ctx context.Context) error) {
	s.postMu.Lock()
	if s.closing {
		s.postMu.Unlock()
		return
	}
	s.inflight++
	prev := s.lastAsync
	done := make(chan struct{})
	s.lastAsync = done
	s.postMu.Unlock()

	s.metrics.Post()
	go func() {
		defer s.untrack()
		defer close(done)
		if prev != nil {
			<-prev
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return
		}
		if err := fn(s.ctx); err != nil {
			ctxlog.FromContext(s.ctx).Warn("Asynchronous command failed.", "code", shellerr.Code(err), "error", err)
		}
	}()
}

// Wait implements command.Scheduler. The sync command calls it from inside
// a batch: the exclusive path is released until nothing is in flight, so
// the queued work can run, and taken back before the batch continues.
func (s *Session) Wait(ctx context.Context) error {
	batchOut := s.out.redirect(nil)
	s.mu.Unlock()

	var err error
	select {
	case <-s.drained():
	case <-ctx.Done():
		err = ctx.Err()
	}

	s.mu.Lock()
	s.out.redirect(batchOut)
	if err == nil && s.closed {
		err = ErrClosed
	}
	return err
}

func (s *Session) track() bool {
	s.postMu.Lock()
	defer s.postMu.Unlock()
	if s.closing {
		return false
	}
	s.inflight++
	return true
}

func (s *Session) untrack() {
	s.postMu.Lock()
	defer s.postMu.Unlock()
	s.inflight--
	if s.inflight == 0 {
		s.idle.Broadcast()
	}
}

// drained returns a channel that is closed once no posted update or
// scheduled command is in flight.
func (s *Session) drained() <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		s.postMu.Lock()
		for s.inflight > 0 {
			s.idle.Wait()
		}
		s.postMu.Unlock()
		close(ch)
	}()
	return ch
}

func (s *Session) applyUpdate(name string, u kind.Update) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	logger := ctxlog.FromContext(s.ctx).With("object", name)

	if _, err := s.objects.Get(name); err != nil {
		logger.Debug("Dropping update for destroyed object.")
		return
	}
	changed, err := u(s.ctx)
	if err == nil {
		err = s.engine.Notify(s.ctx, name, changed...)
	}
	if err != nil {
		logger.Warn("Asynchronous update failed.", "code", shellerr.Code(err), "error", err)
	}
}

func (s *Session) record(ctx context.Context, b Batch, start time.Time, err error) {
	if s.journal == nil {
		return
	}
	e := journal.Entry{
		SessionID: s.id,
		Origin:    b.Origin,
		Text:      b.Text,
		At:        start,
		Duration:  time.Since(start),
	}
	if err != nil {
		e.Code = shellerr.Code(err)
		e.Error = err.Error()
	}
	if jerr := s.journal.Record(ctx, e); jerr != nil {
		ctxlog.FromContext(ctx).Warn("Failed to journal batch.", "error", jerr)
	}
}

// router sends writes to the current batch's writer, or to base.
type router struct {
	mu       sync.Mutex
	base     io.Writer
	override io.Writer
}

// redirect replaces the current override and returns the previous one.
func (r *router) redirect(w io.Writer) io.Writer {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.override
	r.override = w
	return prev
}

func (r *router) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w := r.base
	if r.override != nil {
		w = r.override
	}
	n, err := w.Write(p)
	if err != nil {
		return n, fmt.Errorf("write output: %w", err)
	}
	return n, nil
}
