package command

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/specialistvlad/propshell/internal/ref"
	"github.com/specialistvlad/propshell/internal/shellerr"
)

// Verb selects what a command does.
type Verb string

const (
	Create  Verb = "create"
	Destroy Verb = "destroy"
	Set     Verb = "set"
	Get     Verb = "get"
	Call    Verb = "call"
	Bind    Verb = "bind"
	Unbind  Verb = "unbind"
	On      Verb = "on"
	End     Verb = "end"
	Dump    Verb = "dump"
	Log     Verb = "log"
	Async   Verb = "async"
	Sync    Verb = "sync"
)

// Command is one parsed line.
type Command struct {
	Verb Verb
	// Line is the 1-based line number within its batch.
	Line int
	// Text is the trimmed source line.
	Text string

	// Kind and Name are set by create; Name also by destroy and dump.
	Kind string
	Name string
	// Target is the reference of set, get, call and on, and the source of
	// bind and unbind.
	Target ref.Ref
	// Dest is the target of bind and unbind.
	Dest ref.Ref
	// Value is the raw value of set, or the level of log.
	Value string
	// Inner is the command deferred by async.
	Inner *Command
}

// arity is the number of words after the verb, or -1 when the remainder is
// free text.
var arity = map[Verb][2]int{
	Create:  {2, 2},
	Destroy: {1, 1},
	Set:     {2, -1},
	Get:     {1, 1},
	Call:    {1, 1},
	Bind:    {2, 2},
	Unbind:  {2, 2},
	On:      {1, 1},
	End:     {0, 0},
	Dump:    {0, 1},
	Log:     {1, 1},
	Async:   {1, -1},
	Sync:    {0, 0},
}

// Skip reports whether a line holds no command.
func Skip(line string) bool {
	t := strings.TrimSpace(line)
	return t == "" || strings.HasPrefix(t, "#")
}

// Parse parses one line. It must not be a line Skip accepts.
func Parse(line string, lineNo int) (Command, error) {
	text := strings.TrimSpace(line)
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Command{}, shellerr.Parsef("empty command")
	}

	cmd := Command{Verb: Verb(fields[0]), Line: lineNo, Text: text}
	bounds, ok := arity[cmd.Verb]
	if !ok {
		return Command{}, shellerr.Parsef("unknown command %q", fields[0])
	}
	args := fields[1:]
	if len(args) < bounds[0] || (bounds[1] >= 0 && len(args) > bounds[1]) {
		return Command{}, shellerr.Parsef("'%s' expects %s", cmd.Verb, usage(cmd.Verb))
	}

	var err error
	switch cmd.Verb {
	case Create:
		cmd.Kind, cmd.Name = args[0], args[1]
		err = ref.ValidateName(cmd.Name)
	case Destroy:
		cmd.Name = args[0]
		err = ref.ValidateName(cmd.Name)
	case Dump:
		if len(args) == 1 {
			cmd.Name = args[0]
		}
	case Log:
		cmd.Value = args[0]
	case Set:
		if cmd.Target, err = ref.Parse(args[0]); err == nil {
			cmd.Value = valueAfter(text, 2)
		}
	case Get, Call, On:
		cmd.Target, err = ref.Parse(args[0])
		if err == nil && cmd.Verb != On && cmd.Target.IsNotify() {
			err = shellerr.Parsef("'%s' cannot address event %s", cmd.Verb, cmd.Target)
		}
	case Bind, Unbind:
		if cmd.Target, err = ref.Parse(args[0]); err == nil {
			cmd.Dest, err = ref.Parse(args[1])
		}
	case Async:
		cmd.Inner, err = parseDeferred(valueAfter(text, 1), lineNo)
	}
	if err != nil {
		return Command{}, err
	}
	return cmd, nil
}

// parseDeferred parses the command wrapped by async. Block and scheduling
// verbs cannot be deferred.
func parseDeferred(line string, lineNo int) (*Command, error) {
	inner, err := Parse(line, lineNo)
	if err != nil {
		return nil, err
	}
	switch inner.Verb {
	case On, End, Async, Sync:
		return nil, shellerr.Parsef("'%s' cannot be deferred with 'async'", inner.Verb)
	}
	return &inner, nil
}

// valueAfter returns what follows the first n words of text, dropping the
// single separator character after the last of them.
func valueAfter(text string, n int) string {
	rest := text
	for i := 0; i < n; i++ {
		rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
		end := strings.IndexFunc(rest, unicode.IsSpace)
		if end < 0 {
			return ""
		}
		rest = rest[end:]
	}
	_, size := utf8.DecodeRuneInString(rest)
	return rest[size:]
}

func usage(v Verb) string {
	switch v {
	case Create:
		return "<Kind> <name>"
	case Destroy:
		return "<name>"
	case Set:
		return "<object>.<property> <value>"
	case Get:
		return "<object>.<property>"
	case Call:
		return "<object>.<signal>"
	case Bind, Unbind:
		return "<object>.<property> <object>.<property>"
	case On:
		return "<object>.<signal|notify::property>"
	case Dump:
		return "[<Kind>|<object>]"
	case Log:
		return "<debug|info|warn|error>"
	case Async:
		return "<command>"
	default:
		return "no arguments"
	}
}
