package shell

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rama-kairi/minios/internal/config"
	"github.com/rama-kairi/minios/internal/database"
	"github.com/rama-kairi/minios/internal/logger"
	"github.com/rama-kairi/minios/internal/session"
)

const signUp = "register\nalice\nsecret\nlogin\nalice\nsecret\n"

// stackedDealer deals a fixed sequence of cards
type stackedDealer struct {
	cards []int
}

func (d *stackedDealer) Draw() int {
	card := d.cards[0]
	d.cards = d.cards[1:]
	return card
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.App.WorkingDir = t.TempDir()
	cfg.App.Banner = false
	cfg.Process.Interpreter = "/bin/sh"
	return cfg
}

func newShell(t *testing.T, cfg *config.Config, input string) (*Shell, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	s, err := New(Options{
		Config: cfg,
		In:     strings.NewReader(input),
		Out:    &out,
		Dealer: &stackedDealer{cards: []int{10, 10, 10, 8}},
	})
	require.NoError(t, err)
	t.Cleanup(s.Supervisor().Shutdown)
	return s, &out
}

// loggedIn returns a shell with alice logged in, for driving Dispatch directly
func loggedIn(t *testing.T, cfg *config.Config, input string) (*Shell, *bytes.Buffer) {
	t.Helper()
	s, out := newShell(t, cfg, input)
	require.NoError(t, s.Session().Register("alice", "secret"))
	require.NoError(t, s.Session().Login("alice", "secret"))
	return s, out
}

func TestRunSessionFlow(t *testing.T) {
	s, out := newShell(t, testConfig(t), signUp+"help\nfrobnicate x\n\nhistory\nexit\n")

	require.NoError(t, s.Run(context.Background()))

	text := out.String()
	assert.Contains(t, text, "Registration successful! You can now log in.")
	assert.Contains(t, text, "Registered users: alice")
	assert.Contains(t, text, "Welcome, alice!")
	assert.Contains(t, text, "alice> ")
	assert.Contains(t, text, "Available commands:")
	assert.Contains(t, text, "delete_users")
	assert.Contains(t, text, "Unknown command: frobnicate. Type 'help' for a list of commands.")
	assert.Contains(t, text, "Command History:\n1: help\n2: frobnicate x\n3: history\n")
	assert.True(t, strings.HasSuffix(text, "Shutting down MiniOS...\n"))
	assert.False(t, s.Running())
	assert.Equal(t, 4, s.History().Len())
}

func TestRunBanner(t *testing.T) {
	cfg := testConfig(t)
	cfg.App.Banner = true
	s, out := newShell(t, cfg, "")

	require.NoError(t, s.Run(context.Background()))
	assert.Contains(t, out.String(), "Welcome to MiniOS")
}

func TestRunEndOfInputExits(t *testing.T) {
	s, out := newShell(t, testConfig(t), signUp+"help\n")

	require.NoError(t, s.Run(context.Background()))
	assert.False(t, s.Running())
	assert.Contains(t, out.String(), "Shutting down MiniOS...")
}

func TestRunCancelled(t *testing.T) {
	s, _ := newShell(t, testConfig(t), signUp)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Run(ctx), context.Canceled)
}

func TestLogoutReturnsToLogin(t *testing.T) {
	s, out := newShell(t, testConfig(t), signUp+"logout\nlogin\nalice\nwrong\nlogin\nalice\nsecret\nhistory\nexit\n")

	require.NoError(t, s.Run(context.Background()))

	text := out.String()
	assert.Contains(t, text, "Logging out alice...")
	assert.Contains(t, text, "Invalid username or password. Please try again.")
	assert.Equal(t, 2, strings.Count(text, "Welcome, alice!"))
	// history spans logins
	assert.Contains(t, text, "1: logout\n2: history\n")
}

func TestCorruptedUsersFileWarning(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.App.WorkingDir, "users.json"), []byte("{not json"), 0o644))

	s, out := newShell(t, cfg, "")
	require.NoError(t, s.Run(context.Background()))

	assert.Contains(t, out.String(), "Error: The user data file is corrupted. Resetting to an empty user list.")
	assert.Equal(t, 0, s.Store().Len())
}

func TestFileCommands(t *testing.T) {
	cfg := testConfig(t)
	s, out := loggedIn(t, cfg, "")

	lines := []string{
		"touch a.txt b.txt",
		"echo hello world > a.txt",
		"cat a.txt missing.txt",
		"rm b.txt missing.txt",
		"ls",
		"echo nothing",
		"touch sub/c.txt",
		"echo hi > sub/c.txt",
	}
	for _, line := range lines {
		_ = s.Dispatch(line)
	}

	text := out.String()
	assert.Contains(t, text, "Created file 'a.txt'\nCreated file 'b.txt'\n")
	assert.Contains(t, text, "Message written to 'a.txt'\n")
	assert.Contains(t, text, "hello world\nFile 'missing.txt' not found.\n")
	assert.Contains(t, text, "Deleted file 'b.txt'\nFile 'missing.txt' not found.\n")
	assert.Contains(t, text, "Listing files:\na.txt\nusers.json\n")
	assert.Contains(t, text, "Usage: echo <message> > <filename>\n")
	assert.Contains(t, text, "Error creating file 'sub/c.txt': open sub/c.txt: no such file or directory\n")
	assert.Contains(t, text, "Error writing to file 'sub/c.txt': open sub/c.txt: no such file or directory\n")
	assert.NoDirExists(t, filepath.Join(cfg.App.WorkingDir, "sub"))

	data, err := os.ReadFile(filepath.Join(cfg.App.WorkingDir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestProcessCommands(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.App.WorkingDir, "job.sh"), []byte("sleep 30\n"), 0o644))
	s, out := loggedIn(t, cfg, "")

	_ = s.Dispatch("ps")
	assert.Contains(t, out.String(), "No running processes.\n")

	require.NoError(t, s.Dispatch("run job.sh"))
	list := s.Supervisor().List()
	require.Len(t, list, 1)
	pid := strconv.Itoa(list[0].PID)

	_ = s.Dispatch("ps")
	_ = s.Dispatch("kill abc")
	_ = s.Dispatch("kill 99999999")
	_ = s.Dispatch("run missing.sh")
	_ = s.Dispatch("run")
	require.NoError(t, s.Dispatch("kill "+pid))

	text := out.String()
	assert.Contains(t, text, "Started process with PID "+pid+"\n")
	assert.Contains(t, text, "PID   Command\n"+pid+"   /bin/sh job.sh\n")
	assert.Contains(t, text, "Invalid PID.\n")
	assert.Contains(t, text, "No process with PID 99999999 found.\n")
	assert.Contains(t, text, "Script 'missing.sh' not found.\n")
	assert.Contains(t, text, "Error executing run: Usage: run <script>\n")
	assert.Contains(t, text, "Terminated process with PID "+pid+"\n")
	assert.Equal(t, 0, s.Supervisor().Len())
}

func TestTelemetryCommands(t *testing.T) {
	s, out := loggedIn(t, testConfig(t), "")

	_ = s.Dispatch("uptime")
	_ = s.Dispatch("memory")

	text := out.String()
	assert.Contains(t, text, "System Uptime: 0 hours, 0 minutes, ")
	assert.True(t, strings.Contains(text, "Memory Usage: ") || strings.Contains(text, "Error retrieving memory usage: "))
}

func TestCalcCommand(t *testing.T) {
	s, out := loggedIn(t, testConfig(t), "5 + 3 * 2\n1 / 0\n__import__('os')\n")

	_ = s.Dispatch("calc")
	_ = s.Dispatch("calc")
	_ = s.Dispatch("calc")
	_ = s.Dispatch("calc")

	text := out.String()
	assert.Contains(t, text, "Enter expression (e.g., 5 + 3 * 2): Result: 11\n")
	assert.Contains(t, text, "Calculation error: division by zero\n")
	assert.Contains(t, text, "Calculation error: name '__import__' is not defined\n")
}

func TestBlackjackCommand(t *testing.T) {
	s, out := loggedIn(t, testConfig(t), "stand\nno\n")

	require.NoError(t, s.Dispatch("blackjack"))

	text := out.String()
	assert.Contains(t, text, "Welcome to Blackjack!")
	assert.Contains(t, text, "You win!")
	assert.Contains(t, text, "Thanks for playing Blackjack!")
}

func TestDeleteUsers(t *testing.T) {
	cfg := testConfig(t)
	s, out := loggedIn(t, cfg, "no\nYES\n")

	_ = s.Dispatch("delete_users")
	assert.Contains(t, out.String(), "Action canceled.\n")
	assert.Equal(t, 1, s.Store().Len())

	_ = s.Dispatch("delete_users")
	assert.Contains(t, out.String(), "All users have been deleted.\n")
	assert.Equal(t, 0, s.Store().Len())

	data, err := os.ReadFile(filepath.Join(cfg.App.WorkingDir, "users.json"))
	require.NoError(t, err)
	assert.Empty(t, data)

	// the current user stays logged in
	assert.Equal(t, session.LoggedIn, s.Session().State())
}

func TestArityIsChecked(t *testing.T) {
	s, out := loggedIn(t, testConfig(t), "")

	err := s.Dispatch("help me")
	require.Error(t, err)
	assert.Equal(t, "Error executing help: Usage: help\n", out.String())

	// echo reports its own usage without the prefix
	out.Reset()
	require.Error(t, s.Dispatch("echo hi"))
	assert.Equal(t, "Usage: echo <message> > <filename>\n", out.String())
}

func TestJournal(t *testing.T) {
	cfg := testConfig(t)
	db, err := database.NewDB(filepath.Join(cfg.App.WorkingDir, ".minios"))
	require.NoError(t, err)
	defer db.Close()

	var out bytes.Buffer
	s, err := New(Options{
		Config: cfg,
		In:     strings.NewReader(signUp + "help\nexit\n"),
		Out:    &out,
		DB:     db,
	})
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background()))

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats["total_sessions"])
	assert.Equal(t, 2, stats["total_commands"])
}

// logLine returns the first log record whose message is message
func logLine(t *testing.T, records, message string) string {
	t.Helper()
	for _, line := range strings.Split(records, "\n") {
		if strings.Contains(line, `"message":"`+message+`"`) {
			return line
		}
	}
	t.Fatalf("no %q record in %s", message, records)
	return ""
}

func TestSessionLogging(t *testing.T) {
	cfg := testConfig(t)
	db, err := database.NewDB(filepath.Join(cfg.App.WorkingDir, ".minios"))
	require.NoError(t, err)
	defer db.Close()

	var out, logs bytes.Buffer
	s, err := New(Options{
		Config: cfg,
		In:     strings.NewReader(signUp + "help\nlogout\n"),
		Out:    &out,
		Logger: logger.New(&logs, "debug", "json", ""),
		DB:     db,
	})
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background()))

	records := logs.String()

	started := logLine(t, records, "Shell started")
	assert.Contains(t, started, `"working_dir":`)

	command := logLine(t, records, "Command finished")
	assert.Contains(t, command, `"component":"dispatch"`)
	assert.Contains(t, command, `"user":"alice"`)
	assert.Contains(t, command, `"session_id":"`)

	closed := logLine(t, records, "Session closed")
	assert.Contains(t, closed, `"user":"alice"`)
	assert.Contains(t, closed, `"commands":2`)
	assert.Contains(t, closed, `"duration":`)

	stopped := logLine(t, records, "Shell stopped")
	assert.Contains(t, stopped, `"cpu_percent":`)
	assert.Contains(t, stopped, `"uptime_seconds":`)

	totals := logLine(t, records, "Journal totals")
	assert.Contains(t, totals, `"total_sessions":1`)
	assert.Contains(t, totals, `"total_commands":2`)
}
