package dispatch

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	minierrors "github.com/rama-kairi/minios/internal/errors"
	"github.com/rama-kairi/minios/internal/history"
	"github.com/rama-kairi/minios/internal/logger"
)

func newTestDispatcher(t *testing.T, cmds ...Command) (*Dispatcher, *history.Log, *bytes.Buffer) {
	t.Helper()
	table, err := NewTable(cmds...)
	require.NoError(t, err)

	log := history.NewLog(nil, nil)
	var out bytes.Buffer
	return New(table, log, &out, nil), log, &out
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		description string
		line        string
		expected    []string
	}{
		{description: "empty", line: "", expected: []string{}},
		{description: "blank", line: "   \t ", expected: []string{}},
		{description: "single", line: "ls", expected: []string{"ls"}},
		{description: "padded", line: "  kill   42  ", expected: []string{"kill", "42"}},
		{description: "tabs", line: "echo\thi\t>\tf.txt", expected: []string{"echo", "hi", ">", "f.txt"}},
	}

	for _, tc := range tests {
		t.Run(tc.description, func(t *testing.T) {
			got := Tokenize(tc.line)
			assert.Len(t, got, len(tc.expected))
			for i := range tc.expected {
				assert.Equal(t, tc.expected[i], got[i])
			}
		})
	}
}

func TestNewTableRejectsBadCommands(t *testing.T) {
	noop := func([]string) error { return nil }

	_, err := NewTable(Command{Name: "ls", Run: noop}, Command{Name: "ls", Run: noop})
	assert.Error(t, err)

	_, err = NewTable(Command{Name: "", Run: noop})
	assert.Error(t, err)

	_, err = NewTable(Command{Name: "ls"})
	assert.Error(t, err)

	_, err = NewTable(Command{Name: "ls", MinArgs: 2, MaxArgs: 1, Run: noop})
	assert.Error(t, err)
}

func TestTableOrder(t *testing.T) {
	noop := func([]string) error { return nil }
	table, err := NewTable(
		Command{Name: "help", Run: noop},
		Command{Name: "ls", Run: noop},
		Command{Name: "exit", Run: noop},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"help", "ls", "exit"}, table.Names())
	assert.Equal(t, 3, table.Len())

	cmd, ok := table.Lookup("ls")
	require.True(t, ok)
	assert.Equal(t, "ls", cmd.Usage)

	_, ok = table.Lookup("LS")
	assert.False(t, ok)
}

func TestDispatchUnknownCommand(t *testing.T) {
	tests := []struct {
		description string
		tokens      []string
		expected    string
	}{
		{description: "single word", tokens: []string{"frobnicate", "x"}, expected: "Unknown command: frobnicate. Type 'help' for a list of commands.\n"},
		{description: "garbage", tokens: []string{"%%", "a", "b", "c"}, expected: "Unknown command: %%. Type 'help' for a list of commands.\n"},
		{description: "case differs", tokens: []string{"LS"}, expected: "Unknown command: LS. Type 'help' for a list of commands.\n"},
	}

	for _, tc := range tests {
		t.Run(tc.description, func(t *testing.T) {
			ran := false
			d, log, out := newTestDispatcher(t, Command{Name: "ls", MaxArgs: Unlimited, Run: func([]string) error {
				ran = true
				return nil
			}})

			err := d.Dispatch(tc.tokens)
			require.Error(t, err)
			assert.True(t, minierrors.Is(err, minierrors.ErrCodeUnknownCommand))
			assert.Equal(t, tc.expected, out.String())
			assert.False(t, ran)

			require.Equal(t, 1, log.Len())
		})
	}
}

func TestDispatchRecordsHistory(t *testing.T) {
	var got []string
	d, log, _ := newTestDispatcher(t, Command{Name: "echo", MaxArgs: Unlimited, Run: func(args []string) error {
		got = args
		return nil
	}})

	require.NoError(t, d.DispatchLine("  echo  hello   world "))
	assert.Equal(t, []string{"hello", "world"}, got)

	require.NoError(t, d.DispatchLine("   "))

	entries := log.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "echo hello world", entries[0].Text)
	assert.Equal(t, 1, entries[0].Sequence)
}

func TestDispatchArity(t *testing.T) {
	ran := false
	d, _, out := newTestDispatcher(t, Command{
		Name:    "kill",
		Usage:   "kill <pid>",
		MinArgs: 1,
		MaxArgs: 1,
		Run: func([]string) error {
			ran = true
			return nil
		},
	})

	err := d.Dispatch([]string{"kill"})
	assert.True(t, minierrors.Is(err, minierrors.ErrCodeUsage))
	assert.Equal(t, "Error executing kill: Usage: kill <pid>\n", out.String())

	out.Reset()
	err = d.Dispatch([]string{"kill", "1", "2"})
	assert.True(t, minierrors.Is(err, minierrors.ErrCodeUsage))
	assert.Equal(t, "Error executing kill: Usage: kill <pid>\n", out.String())
	assert.False(t, ran)

	require.NoError(t, d.Dispatch([]string{"kill", "1"}))
	assert.True(t, ran)
}

func TestDispatchRendersErrorKinds(t *testing.T) {
	tests := []struct {
		description string
		err         error
		expected    string
	}{
		{description: "validation", err: minierrors.Validation("Invalid PID."), expected: "Invalid PID.\n"},
		{description: "not found", err: minierrors.NotFound("No process with PID 7 found."), expected: "No process with PID 7 found.\n"},
		{description: "auth", err: minierrors.Auth("denied"), expected: "denied\n"},
		{description: "usage", err: minierrors.Usage("job <name>"), expected: "Error executing job: Usage: job <name>\n"},
		{description: "io", err: minierrors.IO(errors.New("disk full"), "a.txt"), expected: "Error executing job: failed to access 'a.txt': disk full\n"},
		{description: "plain", err: errors.New("boom"), expected: "Error executing job: boom\n"},
	}

	for _, tc := range tests {
		t.Run(tc.description, func(t *testing.T) {
			d, _, out := newTestDispatcher(t, Command{Name: "job", Run: func([]string) error {
				return tc.err
			}})

			err := d.Dispatch([]string{"job"})
			assert.Equal(t, tc.err, err)
			assert.Equal(t, tc.expected, out.String())
		})
	}
}

func TestDispatchRecoversPanic(t *testing.T) {
	d, log, out := newTestDispatcher(t,
		Command{Name: "crash", Run: func([]string) error { panic("index out of range") }},
		Command{Name: "ok", Run: func([]string) error { return nil }},
	)

	err := d.Dispatch([]string{"crash"})
	require.Error(t, err)
	assert.True(t, minierrors.Is(err, minierrors.ErrCodeInternal))
	assert.Equal(t, "Error executing crash: index out of range\n", out.String())

	// The dispatcher keeps working after a panic
	assert.NoError(t, d.Dispatch([]string{"ok"}))
	assert.Equal(t, 2, log.Len())
}

func TestSetLoggerTagsCommandRecords(t *testing.T) {
	d, _, _ := newTestDispatcher(t, Command{Name: "ls", Run: func([]string) error { return nil }})

	var buf bytes.Buffer
	d.SetLogger(logger.New(&buf, "debug", "json", "").WithSession("s-1", "alice"))
	require.NoError(t, d.Dispatch([]string{"ls"}))

	record := buf.String()
	assert.Contains(t, record, `"session_id":"s-1"`)
	assert.Contains(t, record, `"user":"alice"`)
	assert.Contains(t, record, `"command":"ls"`)

	// A nil logger silences records
	buf.Reset()
	d.SetLogger(nil)
	require.NoError(t, d.Dispatch([]string{"ls"}))
	assert.Empty(t, buf.String())
}
