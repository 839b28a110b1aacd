package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rama-kairi/minios/internal/console"
	"github.com/rama-kairi/minios/internal/credentials"
	minierrors "github.com/rama-kairi/minios/internal/errors"
)

type recordingObserver struct {
	started []string
	ended   []string
	fail    bool
}

func (o *recordingObserver) StartSession(sessionID, username string) error {
	o.started = append(o.started, username)
	if o.fail {
		return errors.New("journal unavailable")
	}
	return nil
}

func (o *recordingObserver) EndSession(sessionID string) error {
	o.ended = append(o.ended, sessionID)
	return nil
}

func newManager(t *testing.T, input string, opts Options) (*Manager, *credentials.Store, *bytes.Buffer) {
	t.Helper()
	store := credentials.Open(filepath.Join(t.TempDir(), "users.json"), credentials.Options{})
	var out bytes.Buffer
	con := console.New(strings.NewReader(input), &out)
	return NewManager(store, con, opts), store, &out
}

func TestLoginLogout(t *testing.T) {
	observer := &recordingObserver{}
	m, store, _ := newManager(t, "", Options{Observer: observer})

	_, err := store.Register("alice", "secret")
	require.NoError(t, err)

	assert.Equal(t, LoggedOut, m.State())

	err = m.Login("alice", "wrong")
	require.Error(t, err)
	assert.True(t, minierrors.Is(err, minierrors.ErrCodeAuth))
	assert.Equal(t, LoggedOut, m.State())

	require.NoError(t, m.Login("alice", "secret"))
	user, ok := m.CurrentUser()
	assert.True(t, ok)
	assert.Equal(t, "alice", user)
	assert.NotEmpty(t, m.SessionID())
	sessionID := m.SessionID()

	user, ok = m.Logout()
	assert.True(t, ok)
	assert.Equal(t, "alice", user)
	assert.Equal(t, LoggedOut, m.State())
	assert.Empty(t, m.SessionID())

	assert.Equal(t, []string{"alice"}, observer.started)
	assert.Equal(t, []string{sessionID}, observer.ended)
}

func TestLogoutWhenLoggedOut(t *testing.T) {
	m, _, _ := newManager(t, "", Options{})

	user, ok := m.Logout()
	assert.False(t, ok)
	assert.Empty(t, user)
	assert.Equal(t, LoggedOut, m.State())
}

func TestRegisterDoesNotLogin(t *testing.T) {
	m, _, _ := newManager(t, "", Options{})

	require.NoError(t, m.Register("alice", "secret"))
	assert.Equal(t, LoggedOut, m.State())

	err := m.Register("alice", "other")
	require.Error(t, err)
	assert.True(t, minierrors.Is(err, minierrors.ErrCodeValidation))

	err = m.Register("  ", "secret")
	assert.True(t, minierrors.Is(err, minierrors.ErrCodeValidation))
}

func TestObserverFailureDoesNotBlockLogin(t *testing.T) {
	m, store, _ := newManager(t, "", Options{Observer: &recordingObserver{fail: true}})
	_, err := store.Register("alice", "secret")
	require.NoError(t, err)

	assert.NoError(t, m.Login("alice", "secret"))
	assert.Equal(t, LoggedIn, m.State())
}

func TestPromptFlow(t *testing.T) {
	input := strings.Join([]string{
		"dance",
		" REGISTER ",
		"alice",
		"secret",
		"register",
		"alice",
		"again",
		"login",
		"alice",
		"wrong",
		"login",
		"alice",
		"secret",
	}, "\n") + "\n"

	m, _, out := newManager(t, input, Options{ShowUsers: true})

	require.NoError(t, m.Prompt(context.Background()))

	user, ok := m.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, "alice", user)

	text := out.String()
	assert.Contains(t, text, "Invalid action. Please type 'login' or 'register'.")
	assert.Contains(t, text, "Registration successful! You can now log in.")
	assert.Contains(t, text, "Username already exists. Please choose a different username.")
	assert.Contains(t, text, "Invalid username or password. Please try again.")
	assert.Contains(t, text, "Registered users: alice")
	assert.Contains(t, text, "Welcome, alice!")
}

func TestPromptEndOfInput(t *testing.T) {
	m, _, _ := newManager(t, "login\nalice\n", Options{})

	err := m.Prompt(context.Background())
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, LoggedOut, m.State())
}

func TestPromptCancelled(t *testing.T) {
	m, _, _ := newManager(t, "login\n", Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, m.Prompt(ctx), context.Canceled)
}
