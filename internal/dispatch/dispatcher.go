package dispatch

import (
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	minierrors "github.com/rama-kairi/minios/internal/errors"
	"github.com/rama-kairi/minios/internal/history"
	"github.com/rama-kairi/minios/internal/logger"
)

// Recorder receives every dispatched line before it runs
type Recorder interface {
	Append(text string) history.Entry
}

// Dispatcher runs commands from a Table
type Dispatcher struct {
	table   *Table
	history Recorder
	out     io.Writer
	logger  *logger.Logger
}

// New creates a dispatcher. Failures are rendered to out.
func New(table *Table, history Recorder, out io.Writer, log *logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.Nop()
	}

	return &Dispatcher{
		table:   table,
		history: history,
		out:     out,
		logger:  log.WithComponent("dispatch"),
	}
}

// SetLogger replaces the logger used for command records, e.g. with one
// carrying the logged-in session
func (d *Dispatcher) SetLogger(log *logger.Logger) {
	if log == nil {
		log = logger.Nop()
	}
	d.logger = log.WithComponent("dispatch")
}

// Table returns the command table
func (d *Dispatcher) Table() *Table {
	return d.table
}

// Dispatch records tokens in the history, then runs the named command.
// Any failure, including a panic inside the command, is printed as a single
// line and also returned. An empty token list does nothing.
func (d *Dispatcher) Dispatch(tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}

	if d.history != nil {
		d.history.Append(strings.Join(tokens, " "))
	}

	name, args := tokens[0], tokens[1:]

	cmd, ok := d.table.Lookup(name)
	if !ok {
		err := minierrors.UnknownCommand(name)
		fmt.Fprintln(d.out, err.Message)
		d.logger.Debug("Unknown command", map[string]interface{}{"command": name})
		return err
	}

	start := time.Now()
	err := d.run(cmd, args)
	d.logger.LogCommand(name, args, time.Since(start), err)

	if err != nil {
		Render(d.out, name, err)
	}

	return err
}

// DispatchLine tokenizes line and dispatches it
func (d *Dispatcher) DispatchLine(line string) error {
	return d.Dispatch(Tokenize(line))
}

func (d *Dispatcher) run(cmd Command, args []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := make([]byte, 4096)
			n := runtime.Stack(stack, false)

			d.logger.Debug("Recovered command panic", map[string]interface{}{
				"command": cmd.Name,
				"stack":   string(stack[:n]),
			})

			err = minierrors.Internal(fmt.Errorf("%v", r), "")
		}
	}()

	if !cmd.checkArity(args) {
		return minierrors.Usage(cmd.Usage).WithContext("args", len(args))
	}

	return cmd.Run(args)
}

// Render prints err for the named command. Validation, not-found and auth
// failures are user-level reports and print their message alone. An unknown
// command has already been reported. Everything else, arity failures
// included, is prefixed with the command name.
func Render(w io.Writer, command string, err error) {
	if err == nil {
		return
	}

	switch minierrors.GetCode(err) {
	case minierrors.ErrCodeValidation, minierrors.ErrCodeNotFound, minierrors.ErrCodeAuth:
		fmt.Fprintln(w, minierrors.UserMessage(err))
	case minierrors.ErrCodeUnknownCommand:
	default:
		fmt.Fprintf(w, "Error executing %s: %s\n", command, minierrors.UserMessage(err))
	}
}
