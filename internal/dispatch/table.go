// Package dispatch resolves a tokenized input line to a command and runs it
// behind a failure boundary, so no command can take the shell down.
package dispatch

import (
	"fmt"
	"strings"
)

// Unlimited marks a command that accepts any number of arguments
const Unlimited = -1

// Runner executes a command with its positional arguments
type Runner func(args []string) error

// Command binds a name to a runner and its arity
type Command struct {
	Name    string
	Summary string
	// Usage is shown when the arity check fails; it defaults to the name
	Usage   string
	MinArgs int
	MaxArgs int
	Run     Runner
}

// Table is the immutable set of commands, in registration order
type Table struct {
	byName map[string]Command
	order  []string
}

// NewTable builds a table. Names must be unique and non-empty and every
// command needs a runner.
func NewTable(cmds ...Command) (*Table, error) {
	t := &Table{
		byName: make(map[string]Command, len(cmds)),
		order:  make([]string, 0, len(cmds)),
	}

	for _, cmd := range cmds {
		if cmd.Name == "" || strings.ContainsAny(cmd.Name, " \t\n") {
			return nil, fmt.Errorf("invalid command name %q", cmd.Name)
		}
		if cmd.Run == nil {
			return nil, fmt.Errorf("command %s has no runner", cmd.Name)
		}
		if cmd.MaxArgs != Unlimited && cmd.MaxArgs < cmd.MinArgs {
			return nil, fmt.Errorf("command %s: max args %d below min args %d", cmd.Name, cmd.MaxArgs, cmd.MinArgs)
		}
		if _, exists := t.byName[cmd.Name]; exists {
			return nil, fmt.Errorf("duplicate command %s", cmd.Name)
		}
		if cmd.Usage == "" {
			cmd.Usage = cmd.Name
		}

		t.byName[cmd.Name] = cmd
		t.order = append(t.order, cmd.Name)
	}

	return t, nil
}

// Lookup returns the command registered under name
func (t *Table) Lookup(name string) (Command, bool) {
	cmd, ok := t.byName[name]
	return cmd, ok
}

// Names returns the command names in registration order
func (t *Table) Names() []string {
	return append([]string(nil), t.order...)
}

// Commands returns the commands in registration order
func (t *Table) Commands() []Command {
	cmds := make([]Command, 0, len(t.order))
	for _, name := range t.order {
		cmds = append(cmds, t.byName[name])
	}
	return cmds
}

// Len returns the number of commands
func (t *Table) Len() int {
	return len(t.order)
}

// checkArity validates the argument count for cmd
func (c Command) checkArity(args []string) bool {
	if len(args) < c.MinArgs {
		return false
	}
	return c.MaxArgs == Unlimited || len(args) <= c.MaxArgs
}

// Tokenize splits a line on whitespace
func Tokenize(line string) []string {
	return strings.Fields(line)
}
