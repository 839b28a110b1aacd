// Package credentials persists the username to secret registry that gates
// the shell. The whole registry lives in memory and is rewritten to a single
// JSON file on every mutation.
package credentials

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"golang.org/x/crypto/bcrypt"

	minierrors "github.com/rama-kairi/minios/internal/errors"
	"github.com/rama-kairi/minios/internal/logger"
)

// Options controls how secrets are stored
type Options struct {
	// HashSecrets stores new secrets as bcrypt hashes instead of plaintext
	HashSecrets  bool
	BcryptRounds int
	FileMode     os.FileMode
	Logger       *logger.Logger
}

// Store is the in-memory view of the credential file
type Store struct {
	mu      sync.Mutex
	path    string
	users   map[string]string
	opts    Options
	warning error
	logger  *logger.Logger
}

// Open creates a store for path and loads it. A corrupted file never fails
// Open: the store starts empty and the problem is available from Warning.
func Open(path string, opts Options) *Store {
	if opts.FileMode == 0 {
		opts.FileMode = 0o644
	}
	if opts.BcryptRounds == 0 {
		opts.BcryptRounds = bcrypt.DefaultCost
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	s := &Store{
		path:   path,
		opts:   opts,
		logger: opts.Logger.WithComponent("credentials"),
	}

	users, err := s.Load()
	s.users = users
	if err != nil {
		s.warning = err
		s.logger.Warn("Credential file could not be loaded", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
	} else {
		s.logger.Debug("Credential file loaded", map[string]interface{}{
			"path":  path,
			"users": len(users),
		})
	}

	return s
}

// Path returns the backing file
func (s *Store) Path() string {
	return s.path
}

// Warning returns the problem encountered by the initial load, if any
func (s *Store) Warning() error {
	return s.warning
}

// Load reads the backing file. A missing or blank file is an empty registry.
// Unparseable contents also yield an empty registry, together with a
// CREDENTIALS_CORRUPTED error the caller should treat as a warning.
func (s *Store) Load() (map[string]string, error) {
	users := make(map[string]string)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return users, nil
		}
		return users, minierrors.CredentialsCorrupted(err, s.path)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return users, nil
	}

	if !gjson.ValidBytes(data) {
		return users, minierrors.CredentialsCorrupted(fmt.Errorf("invalid JSON"), s.path)
	}

	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return users, minierrors.CredentialsCorrupted(fmt.Errorf("expected a JSON object, got %s", root.Type), s.path)
	}

	root.ForEach(func(key, value gjson.Result) bool {
		if value.Type != gjson.String {
			s.logger.Warn("Skipping credential with non-string secret", map[string]interface{}{
				"path": s.path,
				"user": key.String(),
			})
			return true
		}
		users[key.String()] = value.String()
		return true
	})

	return users, nil
}

func (s *Store) save() error {
	data, err := json.MarshalIndent(s.users, "", "    ")
	if err != nil {
		return minierrors.Internal(err, "failed to encode credentials")
	}

	if err := os.WriteFile(s.path, data, s.opts.FileMode); err != nil {
		return minierrors.IO(err, s.path)
	}
	return nil
}

// Authenticate reports whether username exists with exactly this secret.
// Hashed entries are compared with bcrypt; plaintext entries byte for byte.
func (s *Store) Authenticate(username, secret string) bool {
	s.mu.Lock()
	stored, ok := s.users[username]
	s.mu.Unlock()

	if !ok {
		return false
	}

	// A hash only ever matches through bcrypt, never as typed text
	if isHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(secret)) == nil
	}

	return stored == secret
}

// Register adds a new user and persists the registry. It returns false
// without touching anything when the username is already taken. If the file
// cannot be written the insert is rolled back.
func (s *Store) Register(username, secret string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[username]; exists {
		return false, nil
	}

	value := secret
	if s.opts.HashSecrets {
		hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.opts.BcryptRounds)
		if err != nil {
			return false, minierrors.Internal(err, "failed to hash secret")
		}
		value = string(hash)
	}

	s.users[username] = value
	if err := s.save(); err != nil {
		delete(s.users, username)
		return false, err
	}

	s.logger.Info("User registered", map[string]interface{}{
		"user":   username,
		"hashed": s.opts.HashSecrets,
	})
	return true, nil
}

// DeleteAll removes every user when confirmation is "yes" (any case,
// surrounding whitespace ignored). Any other confirmation is a no-op and
// returns false.
func (s *Store) DeleteAll(confirmation string) (bool, error) {
	if !strings.EqualFold(strings.TrimSpace(confirmation), "yes") {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(s.path, nil, s.opts.FileMode); err != nil {
		return false, minierrors.IO(err, s.path)
	}

	count := len(s.users)
	s.users = make(map[string]string)

	s.logger.Warn("All users deleted", map[string]interface{}{
		"count": count,
	})
	return true, nil
}

// Usernames returns the registered usernames in sorted order
func (s *Store) Usernames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.users))
	for name := range s.users {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered users
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

func isHash(stored string) bool {
	_, err := bcrypt.Cost([]byte(stored))
	return err == nil
}
