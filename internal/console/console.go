// Package console owns the shell's blocking input points: reading a command
// line, reading a reply to a prompt, and reading a secret with echo disabled
// when the input is a terminal.
package console

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Console couples an input stream with the output the prompts are written to
type Console struct {
	in  *bufio.Reader
	out io.Writer
	fd  int
	tty bool
}

// New creates a new console reading from in and writing to out
func New(in io.Reader, out io.Writer) *Console {
	c := &Console{
		in:  bufio.NewReader(in),
		out: out,
		fd:  -1,
	}

	if f, ok := in.(*os.File); ok {
		c.fd = int(f.Fd())
		c.tty = term.IsTerminal(c.fd)
	}

	return c
}

// Out returns the writer used for prompts and command output
func (c *Console) Out() io.Writer {
	return c.out
}

// IsTerminal reports whether the input is an interactive terminal
func (c *Console) IsTerminal() bool {
	return c.tty
}

// Printf writes formatted output
func (c *Console) Printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

// Println writes a line of output
func (c *Console) Println(args ...any) {
	fmt.Fprintln(c.out, args...)
}

// ReadLine prints prompt and blocks until a full line is available. The
// trailing newline is stripped. A final unterminated line is returned
// normally; io.EOF is returned only when nothing was read.
func (c *Console) ReadLine(prompt string) (string, error) {
	if prompt != "" {
		fmt.Fprint(c.out, prompt)
	}

	line, err := c.in.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}

	return strings.TrimRight(line, "\r\n"), nil
}

// ReadSecret prints prompt and reads a line without echo when the input is
// a terminal. Piped input falls back to ReadLine.
func (c *Console) ReadSecret(prompt string) (string, error) {
	if !c.tty || c.in.Buffered() > 0 {
		return c.ReadLine(prompt)
	}

	fmt.Fprint(c.out, prompt)
	secret, err := term.ReadPassword(c.fd)
	fmt.Fprintln(c.out)
	if err != nil {
		return "", fmt.Errorf("reading secret: %w", err)
	}

	return string(secret), nil
}

// Confirm prints prompt and returns the trimmed reply
func (c *Console) Confirm(prompt string) (string, error) {
	reply, err := c.ReadLine(prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}
