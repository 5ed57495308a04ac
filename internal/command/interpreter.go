package command

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/specialistvlad/propshell/internal/binding"
	"github.com/specialistvlad/propshell/internal/ctxlog"
	"github.com/specialistvlad/propshell/internal/metrics"
	"github.com/specialistvlad/propshell/internal/objects"
	"github.com/specialistvlad/propshell/internal/registry"
	"github.com/specialistvlad/propshell/internal/shellerr"
	"github.com/specialistvlad/propshell/internal/value"
)

// MaxHandlerDepth bounds how deeply `on` handlers may trigger each other.
const MaxHandlerDepth = 16

// Config holds the collaborators of an Interpreter.
type Config struct {
	Kinds   *registry.Registry
	Objects *objects.Registry
	Engine  *binding.Engine
	// Out receives the output of get and dump.
	Out io.Writer
	// Level is changed by the log command. It may be nil.
	Level   *slog.LevelVar
	Metrics *metrics.Metrics
	// Scheduler serves async and sync. Without one both verbs fail with
	// Unavailable.
	Scheduler Scheduler
}

// Scheduler defers work for the async and sync verbs.
type Scheduler interface {
	// Schedule queues fn to run after the current batch. Queued functions
	// run one at a time, in order.
	Schedule(fn func(ctx context.Context) error)
	// Wait blocks until every queued function and every pending object
	// update has been applied.
	Wait(ctx context.Context) error
}

// Interpreter executes command batches against one session's objects. It is
// not safe for concurrent use.
type Interpreter struct {
	cfg      Config
	handlers *handlerTable
	// captures holds the open `on` block of each input source.
	captures map[string]*capture
	depth    int
}

// New creates an Interpreter and subscribes it to the engine's events.
func New(cfg Config) *Interpreter {
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}
	i := &Interpreter{cfg: cfg, handlers: newHandlerTable(), captures: make(map[string]*capture)}
	cfg.Engine.Listen(i.dispatch)
	return i
}

// Pending reports whether source has an `on` block still waiting for its
// `end`.
func (i *Interpreter) Pending(source string) bool {
	return i.captures[source] != nil
}

// Reset discards the unfinished `on` block of source.
func (i *Interpreter) Reset(source string) {
	delete(i.captures, source)
}

// Execute runs a batch read from source. It returns a *BatchError for the
// first command that fails. An `on` block may be left open at the end of a
// batch and continued by the next batch from the same source; other sources
// never see it.
func (i *Interpreter) Execute(ctx context.Context, source, text string) error {
	logger := ctxlog.FromContext(ctx)

	for n, raw := range strings.Split(text, "\n") {
		lineNo := n + 1
		line := strings.TrimRight(raw, "\r")

		if c := i.captures[source]; c != nil {
			if err := i.captureLine(ctx, source, c, line, lineNo); err != nil {
				return &BatchError{Line: lineNo, Command: strings.TrimSpace(line), Err: err}
			}
			continue
		}
		if Skip(line) {
			continue
		}

		cmd, err := Parse(line, lineNo)
		if err != nil {
			i.cfg.Metrics.Command("invalid", err)
			return &BatchError{Line: lineNo, Command: strings.TrimSpace(line), Err: err}
		}

		logger.Debug("Executing command.", "line", lineNo, "command", cmd.Text)
		if cmd.Verb == On {
			err = i.open(source, cmd)
		} else {
			err = i.run(ctx, cmd)
		}
		i.cfg.Metrics.Command(string(cmd.Verb), err)
		if err != nil {
			return &BatchError{Line: lineNo, Command: cmd.Text, Err: err}
		}
	}
	return nil
}

// open starts capturing an `on` block for source.
func (i *Interpreter) open(source string, cmd Command) error {
	if err := i.checkEvent(cmd.Target); err != nil {
		return err
	}
	i.captures[source] = &capture{event: cmd.Target, line: cmd.Line}
	return nil
}

func (i *Interpreter) run(ctx context.Context, cmd Command) error {
	e := i.cfg.Engine

	switch cmd.Verb {
	case Create:
		_, err := i.cfg.Objects.Create(ctx, cmd.Kind, cmd.Name)
		i.cfg.Metrics.SetObjects(i.cfg.Objects.Len())
		return err

	case Destroy:
		if _, err := i.cfg.Objects.Get(cmd.Name); err != nil {
			return err
		}
		removed := e.Forget(cmd.Name)
		dropped := i.handlers.forget(cmd.Name)
		err := i.cfg.Objects.Destroy(ctx, cmd.Name)
		i.cfg.Metrics.SetObjects(i.cfg.Objects.Len())
		ctxlog.FromContext(ctx).Debug("Destroyed object with its bindings and handlers.",
			"name", cmd.Name, "bindings", len(removed), "handlers", dropped)
		return err

	case Set:
		return e.SetText(ctx, cmd.Target, cmd.Value)

	case Get:
		v, err := e.Get(cmd.Target)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(i.cfg.Out, "%s = %s\n", cmd.Target, value.Format(v))
		return err

	case Call:
		return e.Call(ctx, cmd.Target.Object, cmd.Target.Member)

	case Bind:
		return e.Bind(ctx, cmd.Target, cmd.Dest)

	case Unbind:
		return e.Unbind(ctx, cmd.Target, cmd.Dest)

	case On:
		return shellerr.Parsef("'on' blocks cannot be opened inside a handler")

	case End:
		return shellerr.Parsef("'end' without a matching 'on'")

	case Dump:
		return i.dump(cmd.Name)

	case Log:
		return i.setLevel(ctx, cmd.Value)

	case Async:
		if i.cfg.Scheduler == nil {
			return fmt.Errorf("%w: nothing can run deferred commands", shellerr.ErrUnavailable)
		}
		inner := *cmd.Inner
		i.cfg.Scheduler.Schedule(func(ctx context.Context) error {
			err := i.run(ctx, inner)
			i.cfg.Metrics.Command(string(inner.Verb), err)
			if err != nil {
				return fmt.Errorf("async %s: %w", inner.Text, err)
			}
			return nil
		})
		return nil

	case Sync:
		if i.depth > 0 {
			return shellerr.Parsef("'sync' cannot run inside a handler")
		}
		if i.cfg.Scheduler == nil {
			return fmt.Errorf("%w: nothing to wait for", shellerr.ErrUnavailable)
		}
		return i.cfg.Scheduler.Wait(ctx)

	default:
		return shellerr.Parsef("unknown command %q", cmd.Verb)
	}
}

func (i *Interpreter) setLevel(ctx context.Context, name string) error {
	var level slog.Level
	switch name {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return shellerr.Parsef("unknown log level %q", name)
	}
	if i.cfg.Level != nil {
		i.cfg.Level.Set(level)
	}
	ctxlog.FromContext(ctx).Info("Log level changed.", "level", level.String())
	return nil
}
