package geordon

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/danmuck/geordon/internal/protocol/message"
)

var (
	ErrUsage          = errors.New("geordon: usage")
	ErrUnknownCommand = errors.New("geordon: unrecognized command")
)

// UsageError is a recognized command with the wrong shape.
type UsageError struct {
	Usage  string
	Reason string
}

func (e *UsageError) Error() string {
	if e.Reason == "" {
		return "usage: " + e.Usage
	}
	return fmt.Sprintf("usage: %s (%s)", e.Usage, e.Reason)
}

func (e *UsageError) Unwrap() error {
	return ErrUsage
}

// Command is one parsed operator line.
type Command interface {
	Name() string
}

type MoveCommand struct {
	Point message.Point
}

// TurnCommand adds Delta to the tracked heading.
type TurnCommand struct {
	Delta float64
}

// RowsCommand fetches half-rows [Start, End).
type RowsCommand struct {
	Start int
	End   int
}

type FakeRowCommand struct{}

type PingCommand struct{}

// ControlCommand sends a payload-free control message.
type ControlCommand struct {
	Word    string
	Message message.Message
}

type InitCommand struct {
	NT     uint32
	X      float64
	Y      float64
	Border []message.Coordinate
}

type HelpCommand struct{}

func (MoveCommand) Name() string      { return "move" }
func (TurnCommand) Name() string      { return "turn" }
func (RowsCommand) Name() string      { return "rows" }
func (FakeRowCommand) Name() string   { return "fakerow" }
func (PingCommand) Name() string      { return "ping" }
func (c ControlCommand) Name() string { return c.Word }
func (InitCommand) Name() string      { return "init" }
func (HelpCommand) Name() string      { return "help" }

var commandUsage = []struct {
	word  string
	usage string
}{
	{"move", "move <x> <y> <v> <angle> <av>"},
	{"turn", "turn <angle>"},
	{"rows", "rows <n> [m]"},
	{"fakerow", "fakerow"},
	{"ping", "ping"},
	{"finish", "finish"},
	{"aligned", "aligned"},
	{"build", "build"},
	{"init", "init <nt> <x> <y> [<bx> <by>]..."},
	{"help", "help"},
}

// HelpText lists every accepted command, one per line.
func HelpText() string {
	var b strings.Builder
	b.WriteString("commands:\n")
	for _, c := range commandUsage {
		b.WriteString("  ")
		b.WriteString(c.usage)
		b.WriteByte('\n')
	}
	return b.String()
}

func usageFor(word string) string {
	for _, c := range commandUsage {
		if c.word == word {
			return c.usage
		}
	}
	return word
}

func usageErr(word, reason string) error {
	return &UsageError{Usage: usageFor(word), Reason: reason}
}

// ParseCommand tokenizes one line. A blank line returns a nil command and
// no error. Parsing never partially succeeds.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, nil
	}
	word, args := fields[0], fields[1:]
	switch word {
	case "move":
		return parseMove(args)
	case "turn":
		if len(args) != 1 {
			return nil, usageErr(word, "expected 1 argument")
		}
		delta, err := parseFloat(args[0])
		if err != nil {
			return nil, usageErr(word, err.Error())
		}
		return TurnCommand{Delta: delta}, nil
	case "rows":
		return parseRows(args)
	case "fakerow":
		if len(args) != 0 {
			return nil, usageErr(word, "takes no arguments")
		}
		return FakeRowCommand{}, nil
	case "ping":
		if len(args) != 0 {
			return nil, usageErr(word, "takes no arguments")
		}
		return PingCommand{}, nil
	case "finish", "aligned", "build":
		if len(args) != 0 {
			return nil, usageErr(word, "takes no arguments")
		}
		return ControlCommand{Word: word, Message: controlMessage(word)}, nil
	case "init":
		return parseInit(args)
	case "help":
		return HelpCommand{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, word)
}

func controlMessage(word string) message.Message {
	switch word {
	case "finish":
		return message.GDFinish{}
	case "aligned":
		return message.GDAligned{}
	}
	return message.GDBuild{}
}

func parseMove(args []string) (Command, error) {
	if len(args) != 5 {
		return nil, usageErr("move", fmt.Sprintf("expected 5 arguments, got %d", len(args)))
	}
	var vals [5]float64
	for i, a := range args {
		v, err := parseFloat(a)
		if err != nil {
			return nil, usageErr("move", err.Error())
		}
		vals[i] = v
	}
	return MoveCommand{Point: message.Point{X: vals[0], Y: vals[1], V: vals[2], Angle: vals[3], AV: vals[4]}}, nil
}

func parseRows(args []string) (Command, error) {
	if len(args) != 1 && len(args) != 2 {
		return nil, usageErr("rows", "expected 1 or 2 arguments")
	}
	start, err := parseIndex(args[0], 0, HalfRowCount-1)
	if err != nil {
		return nil, usageErr("rows", err.Error())
	}
	end := start + 1
	if len(args) == 2 {
		end, err = parseIndex(args[1], 0, HalfRowCount)
		if err != nil {
			return nil, usageErr("rows", err.Error())
		}
		if start >= end {
			return nil, usageErr("rows", fmt.Sprintf("n must be less than m, got %d >= %d", start, end))
		}
	}
	return RowsCommand{Start: start, End: end}, nil
}

func parseInit(args []string) (Command, error) {
	if len(args) < 3 {
		return nil, usageErr("init", "expected at least 3 arguments")
	}
	if (len(args)-3)%2 != 0 {
		return nil, usageErr("init", "border coordinates must come in pairs")
	}
	nt, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return nil, usageErr("init", fmt.Sprintf("invalid target count %q", args[0]))
	}
	x, err := parseFloat(args[1])
	if err != nil {
		return nil, usageErr("init", err.Error())
	}
	y, err := parseFloat(args[2])
	if err != nil {
		return nil, usageErr("init", err.Error())
	}
	border := make([]message.Coordinate, 0, (len(args)-3)/2)
	for i := 3; i < len(args); i += 2 {
		bx, err := parseFloat(args[i])
		if err != nil {
			return nil, usageErr("init", err.Error())
		}
		by, err := parseFloat(args[i+1])
		if err != nil {
			return nil, usageErr("init", err.Error())
		}
		border = append(border, message.Coordinate{X: bx, Y: by})
	}
	return InitCommand{NT: uint32(nt), X: x, Y: y, Border: border}, nil
}

func parseFloat(tok string) (float64, error) {
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid number %q", tok)
	}
	return v, nil
}

func parseIndex(tok string, lo, hi int) (int, error) {
	v, err := strconv.Atoi(tok)
	if err != nil {
		return 0, fmt.Errorf("invalid index %q", tok)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("index %d outside %d..%d", v, lo, hi)
	}
	return v, nil
}
