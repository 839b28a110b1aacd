// Package shell is the MiniOS application context. A Shell owns every piece
// of mutable state (credential store, login session, process table, command
// history, running flag) and drives the read-dispatch loop.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/rama-kairi/minios/internal/blackjack"
	"github.com/rama-kairi/minios/internal/config"
	"github.com/rama-kairi/minios/internal/console"
	"github.com/rama-kairi/minios/internal/credentials"
	"github.com/rama-kairi/minios/internal/database"
	"github.com/rama-kairi/minios/internal/dispatch"
	minierrors "github.com/rama-kairi/minios/internal/errors"
	"github.com/rama-kairi/minios/internal/files"
	"github.com/rama-kairi/minios/internal/history"
	"github.com/rama-kairi/minios/internal/logger"
	"github.com/rama-kairi/minios/internal/monitoring"
	"github.com/rama-kairi/minios/internal/process"
	"github.com/rama-kairi/minios/internal/session"
)

const bannerText = "✩₊˚.⋆☾⋆⁺₊✧- Welcome to MiniOS ᕕ( ᐛ )ᕗ! -✩₊˚.⋆☾⋆⁺₊✧\n\t\tMade by: Tai /ᐠ-˕-マ"

// Options configures a Shell
type Options struct {
	Config *config.Config
	In     io.Reader
	Out    io.Writer
	Logger *logger.Logger
	// DB is the optional audit journal
	DB *database.DB
	// Dealer overrides the blackjack card source
	Dealer blackjack.Dealer
}

// Shell is the interactive command interpreter
type Shell struct {
	cfg        *config.Config
	console    *console.Console
	store      *credentials.Store
	session    *session.Manager
	supervisor *process.Supervisor
	history    *history.Log
	dispatcher *dispatch.Dispatcher
	files      *files.Service
	monitor    *monitoring.ResourceMonitor
	dealer     blackjack.Dealer
	db         *database.DB
	logger     *logger.Logger
	styles     styles
	running    bool
}

type styles struct {
	banner lipgloss.Style
	header lipgloss.Style
	dim    lipgloss.Style
}

// New creates a shell with a loaded credential store and an empty process
// table and history
func New(opts Options) (*Shell, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	s := &Shell{
		cfg:     cfg,
		console: console.New(opts.In, opts.Out),
		db:      opts.DB,
		logger:  log.WithComponent("shell"),
		styles:  newStyles(opts.Out),
		running: true,
	}

	s.store = credentials.Open(s.resolve(cfg.Credentials.UsersFile), credentials.Options{
		HashSecrets:  cfg.Credentials.HashSecrets,
		BcryptRounds: cfg.Credentials.BcryptRounds,
		FileMode:     os.FileMode(cfg.Credentials.FileMode),
		Logger:       log,
	})

	sessionOpts := session.Options{
		ShowUsers: cfg.Credentials.ShowUsers,
		Logger:    log,
	}
	var sink history.Sink
	if s.db != nil {
		sessionOpts.Observer = s.db
		if cfg.History.Journal {
			sink = s.db
		}
	}
	s.session = session.NewManager(s.store, s.console, sessionOpts)
	s.history = history.NewLog(sink, log)

	s.supervisor = process.NewSupervisor(process.Options{
		Interpreter:     cfg.Process.Interpreter,
		InterpreterArgs: cfg.Process.InterpreterArgs,
		MaxProcesses:    cfg.Process.MaxProcesses,
		PurgeExited:     cfg.Process.PurgeExited,
		UseProcessGroup: cfg.Process.UseProcessGroup,
		WorkingDir:      cfg.App.WorkingDir,
		Stdout:          s.console.Out(),
		Stderr:          s.console.Out(),
		Logger:          log,
	})

	fileService, err := files.New(cfg.App.WorkingDir, log)
	if err != nil {
		return nil, err
	}
	s.files = fileService

	s.monitor = monitoring.NewResourceMonitor(log, 100*time.Millisecond)
	s.monitor.SetProcessCounter(s.supervisor.Len)

	s.dealer = opts.Dealer
	if s.dealer == nil {
		s.dealer = blackjack.NewRandomDealer(nil)
	}

	table, err := dispatch.NewTable(s.commands()...)
	if err != nil {
		return nil, fmt.Errorf("failed to build command table: %w", err)
	}
	s.dispatcher = dispatch.New(table, s.history, s.console.Out(), log)

	return s, nil
}

func newStyles(out io.Writer) styles {
	r := lipgloss.NewRenderer(out)
	return styles{
		banner: r.NewStyle().Bold(true).Foreground(lipgloss.Color("213")),
		header: r.NewStyle().Bold(true),
		dim:    r.NewStyle().Faint(true),
	}
}

// Running reports whether the loop will read another command
func (s *Shell) Running() bool {
	return s.running
}

// History returns the command history
func (s *Shell) History() *history.Log {
	return s.history
}

// Supervisor returns the process supervisor
func (s *Shell) Supervisor() *process.Supervisor {
	return s.supervisor
}

// Session returns the session manager
func (s *Shell) Session() *session.Manager {
	return s.session
}

// Store returns the credential store
func (s *Shell) Store() *credentials.Store {
	return s.store
}

// Run prints the banner and loops until exit or end of input. While no one
// is logged in it runs the login/register prompt; otherwise it reads one
// command line and dispatches it. Command failures never end the loop.
func (s *Shell) Run(ctx context.Context) error {
	defer s.shutdown()

	if warning := s.store.Warning(); minierrors.Is(warning, minierrors.ErrCodeCredentialsCorrupted) {
		s.console.Println("Error: The user data file is corrupted. Resetting to an empty user list.")
	}

	if s.cfg.App.Banner {
		s.console.Println(s.styles.banner.Render(bannerText))
	}

	s.logger.Info("Shell started", map[string]interface{}{
		"users_file":  s.store.Path(),
		"users":       s.store.Len(),
		"working_dir": s.files.BaseDir(),
	})

	for s.running {
		if err := ctx.Err(); err != nil {
			return err
		}

		if s.session.State() != session.LoggedIn {
			if err := s.session.Prompt(ctx); err != nil {
				return s.stopOnEOF(err)
			}
			user, _ := s.session.CurrentUser()
			s.history.SetScope(s.session.SessionID(), user)
			s.dispatcher.SetLogger(s.logger.WithSession(s.session.SessionID(), user))
		}

		user, _ := s.session.CurrentUser()
		line, err := s.console.ReadLine(user + "> ")
		if err != nil {
			return s.stopOnEOF(err)
		}

		// Failures are already rendered
		_ = s.dispatcher.DispatchLine(line)
	}

	return nil
}

// Dispatch runs one command line as if it were typed at the prompt
func (s *Shell) Dispatch(line string) error {
	return s.dispatcher.DispatchLine(line)
}

// stopOnEOF treats end of input as the exit command
func (s *Shell) stopOnEOF(err error) error {
	if errors.Is(err, io.EOF) {
		s.console.Println()
		s.exit()
		return nil
	}
	return err
}

func (s *Shell) exit() {
	s.running = false
	s.console.Println("Shutting down MiniOS...")
}

// endSession logs the current user out and drops the per-session scope
// from history and command records
func (s *Shell) endSession() (string, bool) {
	id := s.session.SessionID()
	user, ok := s.session.Logout()
	if !ok {
		return "", false
	}

	s.history.SetScope("", "")
	s.dispatcher.SetLogger(s.logger)
	s.logJournalSession(id)
	return user, true
}

func (s *Shell) logJournalSession(id string) {
	if s.db == nil || id == "" {
		return
	}

	record, err := s.db.GetSession(id)
	if err != nil {
		s.logger.Warn("Journal session unavailable", map[string]interface{}{
			"session_id": id,
			"error":      err.Error(),
		})
		return
	}

	fields := map[string]interface{}{
		"session_id": record.ID,
		"user":       record.Username,
		"commands":   record.CommandCount,
	}
	if record.EndedAt != nil {
		fields["duration"] = record.EndedAt.Sub(record.StartedAt).String()
	}
	s.logger.Info("Session closed", fields)
}

func (s *Shell) shutdown() {
	// Close the journal session of a user who exits without logging out
	s.endSession()

	if s.cfg.Process.KillOnExit {
		s.supervisor.Shutdown()
	}

	stats := s.history.GetStats()
	fields := s.monitor.GetResourceSummary()
	fields["commands"] = stats.TotalCommands
	s.logger.Info("Shell stopped", fields)

	if s.db == nil {
		return
	}
	totals, err := s.db.Stats()
	if err != nil {
		s.logger.Warn("Journal totals unavailable", map[string]interface{}{"error": err.Error()})
		return
	}
	s.logger.Info("Journal totals", totals)
}

func (s *Shell) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || s.cfg.App.WorkingDir == "" {
		return path
	}
	return filepath.Join(s.cfg.App.WorkingDir, path)
}
