// Package session gates the shell behind a login. It owns the single
// current-user slot and the login/register prompt shown while it is empty.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/rama-kairi/minios/internal/console"
	"github.com/rama-kairi/minios/internal/credentials"
	minierrors "github.com/rama-kairi/minios/internal/errors"
	"github.com/rama-kairi/minios/internal/logger"
)

// State is the login state of the shell
type State int

const (
	LoggedOut State = iota
	LoggedIn
)

// String returns the state name
func (s State) String() string {
	switch s {
	case LoggedOut:
		return "logged_out"
	case LoggedIn:
		return "logged_in"
	default:
		return "unknown"
	}
}

// Observer is told when a session starts and ends. The audit journal
// implements it.
type Observer interface {
	StartSession(sessionID, username string) error
	EndSession(sessionID string) error
}

// Options configures a Manager
type Options struct {
	// ShowUsers prints the registered usernames above the action prompt
	ShowUsers bool
	Logger    *logger.Logger
	Observer  Observer
}

// Manager tracks the authenticated user
type Manager struct {
	mu        sync.RWMutex
	store     *credentials.Store
	console   *console.Console
	opts      Options
	logger    *logger.Logger
	state     State
	user      string
	sessionID string
}

// NewManager creates a new session manager in the LoggedOut state
func NewManager(store *credentials.Store, con *console.Console, opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	return &Manager{
		store:   store,
		console: con,
		opts:    opts,
		logger:  opts.Logger.WithComponent("session"),
		state:   LoggedOut,
	}
}

// State returns the current login state
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// CurrentUser returns the logged in user, if any
func (m *Manager) CurrentUser() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user, m.state == LoggedIn
}

// SessionID returns the id of the current login, or "" when logged out
func (m *Manager) SessionID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessionID
}

// Login authenticates the pair and, on success, makes username current
func (m *Manager) Login(username, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == LoggedIn {
		return minierrors.Validation(fmt.Sprintf("User '%s' is already logged in.", m.user))
	}

	if !m.store.Authenticate(username, secret) {
		m.logger.LogAuthEvent("login", username, false)
		return minierrors.Auth("Invalid username or password. Please try again.").
			WithContext("user", username)
	}

	m.state = LoggedIn
	m.user = username
	m.sessionID = uuid.New().String()

	m.logger.LogAuthEvent("login", username, true, map[string]interface{}{
		"session_id": m.sessionID,
	})

	if m.opts.Observer != nil {
		if err := m.opts.Observer.StartSession(m.sessionID, username); err != nil {
			m.logger.Error("Failed to record session start", err, map[string]interface{}{
				"session_id": m.sessionID,
			})
		}
	}

	return nil
}

// Register adds a new user. It never logs the user in.
func (m *Manager) Register(username, secret string) error {
	if strings.TrimSpace(username) == "" {
		return minierrors.Validation("Username must not be empty.")
	}

	ok, err := m.store.Register(username, secret)
	if err != nil {
		m.logger.Error("Registration failed", err, map[string]interface{}{"user": username})
		return err
	}
	if !ok {
		m.logger.LogAuthEvent("register", username, false)
		return minierrors.Validation("Username already exists. Please choose a different username.").
			WithContext("user", username)
	}

	m.logger.LogAuthEvent("register", username, true)
	return nil
}

// Logout clears the current user and returns who was logged out. It
// returns false and changes nothing when no one is logged in.
func (m *Manager) Logout() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != LoggedIn {
		return "", false
	}

	user, sessionID := m.user, m.sessionID
	m.state = LoggedOut
	m.user = ""
	m.sessionID = ""

	m.logger.LogAuthEvent("logout", user, true, map[string]interface{}{
		"session_id": sessionID,
	})

	if m.opts.Observer != nil {
		if err := m.opts.Observer.EndSession(sessionID); err != nil {
			m.logger.Error("Failed to record session end", err, map[string]interface{}{
				"session_id": sessionID,
			})
		}
	}

	return user, true
}

// Prompt runs the login/register loop until a user is logged in. There is
// no attempt limit. It returns the console's error (io.EOF at end of input)
// or the context's error if the context is cancelled between prompts.
func (m *Manager) Prompt(ctx context.Context) error {
	for m.State() != LoggedIn {
		if err := ctx.Err(); err != nil {
			return err
		}

		if m.opts.ShowUsers {
			if names := m.store.Usernames(); len(names) > 0 {
				m.console.Println("Registered users:", strings.Join(names, ", "))
			}
		}

		action, err := m.console.ReadLine("Would you like to 'login' or 'register'? ")
		if err != nil {
			return err
		}

		switch strings.ToLower(strings.TrimSpace(action)) {
		case "login":
			if err := m.promptLogin(); err != nil {
				return err
			}
		case "register":
			if err := m.promptRegister(); err != nil {
				return err
			}
		default:
			m.console.Println("Invalid action. Please type 'login' or 'register'.")
		}
	}

	return nil
}

// promptLogin returns only console errors; rejected credentials are printed
func (m *Manager) promptLogin() error {
	username, err := m.console.ReadLine("Username: ")
	if err != nil {
		return err
	}
	secret, err := m.console.ReadSecret("Password: ")
	if err != nil {
		return err
	}

	if err := m.Login(username, secret); err != nil {
		m.console.Println(minierrors.UserMessage(err))
		return nil
	}

	m.console.Printf("Welcome, %s!\n", username)
	return nil
}

func (m *Manager) promptRegister() error {
	username, err := m.console.ReadLine("Choose a username: ")
	if err != nil {
		return err
	}
	secret, err := m.console.ReadSecret("Choose a password: ")
	if err != nil {
		return err
	}

	if err := m.Register(username, secret); err != nil {
		m.console.Println(minierrors.UserMessage(err))
		return nil
	}

	m.console.Println("Registration successful! You can now log in.")
	return nil
}
