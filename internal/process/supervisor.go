// Package process supervises the scripts started from the shell. Children
// run concurrently with the shell and are never waited on by the caller; a
// single goroutine per child reaps it and records that it exited.
package process

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	minierrors "github.com/rama-kairi/minios/internal/errors"
	"github.com/rama-kairi/minios/internal/logger"
)

// State is the liveness of a supervised child
type State string

const (
	StateRunning State = "running"
	StateExited  State = "exited"
)

// Options configures a Supervisor
type Options struct {
	Interpreter     string
	InterpreterArgs []string
	// MaxProcesses caps concurrently running children; 0 means no limit
	MaxProcesses int
	// PurgeExited drops exited children from the table when it is listed
	PurgeExited     bool
	UseProcessGroup bool
	WorkingDir      string
	Stdout          io.Writer
	Stderr          io.Writer
	Logger          *logger.Logger
}

// Handle wraps a started child process
type Handle struct {
	PID       int
	Argv      []string
	StartedAt time.Time

	cmd      *exec.Cmd
	group    bool
	done     chan struct{}
	mu       sync.RWMutex
	exited   bool
	exitCode int
}

// Alive reports whether the child has not been reaped yet
func (h *Handle) Alive() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return !h.exited
}

// State returns running or exited
func (h *Handle) State() State {
	if h.Alive() {
		return StateRunning
	}
	return StateExited
}

// ExitCode returns the exit code once the child has exited, or -1
func (h *Handle) ExitCode() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.exited {
		return -1
	}
	return h.exitCode
}

// Done is closed when the child has exited and been reaped
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

func (h *Handle) markExited(code int) {
	h.mu.Lock()
	h.exited = true
	h.exitCode = code
	h.mu.Unlock()
	close(h.done)
}

// Snapshot is a read-only view of a table entry
type Snapshot struct {
	PID       int       `json:"pid"`
	Argv      []string  `json:"argv"`
	State     State     `json:"state"`
	StartedAt time.Time `json:"started_at"`
	ExitCode  int       `json:"exit_code"`
}

// Command returns the argv joined for display
func (s Snapshot) Command() string {
	return strings.Join(s.Argv, " ")
}

// Supervisor owns the process table
type Supervisor struct {
	mu     sync.Mutex
	table  map[int]*Handle
	order  []int
	opts   Options
	logger *logger.Logger
}

// NewSupervisor creates a supervisor with an empty table
func NewSupervisor(opts Options) *Supervisor {
	if opts.Interpreter == "" {
		opts.Interpreter = "python3"
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	return &Supervisor{
		table:  make(map[int]*Handle),
		opts:   opts,
		logger: opts.Logger.WithComponent("process"),
	}
}

// Spawn starts the interpreter on scriptPath and adds the child to the
// table. A missing script is a NOT_FOUND error and nothing is started.
func (s *Supervisor) Spawn(scriptPath string) (*Handle, error) {
	if _, err := os.Stat(s.resolve(scriptPath)); err != nil {
		if os.IsNotExist(err) {
			return nil, minierrors.NotFound(fmt.Sprintf("Script '%s' not found.", scriptPath)).
				WithContext("script", scriptPath)
		}
		return nil, minierrors.IO(err, scriptPath)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opts.MaxProcesses > 0 && s.runningLocked() >= s.opts.MaxProcesses {
		return nil, minierrors.Validation(fmt.Sprintf("Maximum number of processes (%d) reached.", s.opts.MaxProcesses))
	}

	argv := make([]string, 0, len(s.opts.InterpreterArgs)+2)
	argv = append(argv, s.opts.Interpreter)
	argv = append(argv, s.opts.InterpreterArgs...)
	argv = append(argv, scriptPath)

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = s.opts.WorkingDir
	cmd.Stdout = s.opts.Stdout
	cmd.Stderr = s.opts.Stderr
	if s.opts.UseProcessGroup {
		setProcessGroup(cmd)
	}

	if err := cmd.Start(); err != nil {
		s.logger.Error("Failed to start process", err, map[string]interface{}{
			"command": strings.Join(argv, " "),
		})
		return nil, minierrors.Wrap(err, minierrors.ErrCodeIO, "failed to start process").
			WithContext("script", scriptPath)
	}

	h := &Handle{
		PID:       cmd.Process.Pid,
		Argv:      argv,
		StartedAt: time.Now(),
		cmd:       cmd,
		group:     s.opts.UseProcessGroup,
		done:      make(chan struct{}),
	}

	s.table[h.PID] = h
	s.order = append(s.order, h.PID)

	go s.reap(h)

	s.logger.Info("Process started", map[string]interface{}{
		"pid":     h.PID,
		"command": strings.Join(argv, " "),
	})

	return h, nil
}

// reap waits for the child so its OS resources are released
func (s *Supervisor) reap(h *Handle) {
	err := h.cmd.Wait()

	code := 0
	if h.cmd.ProcessState != nil {
		code = h.cmd.ProcessState.ExitCode()
	}
	h.markExited(code)

	fields := map[string]interface{}{
		"pid":       h.PID,
		"exit_code": code,
	}
	if err != nil {
		fields["wait_error"] = err.Error()
	}
	s.logger.Debug("Process exited", fields)
}

// List returns the table in insertion order. Exited children are included
// with state exited unless PurgeExited is set.
func (s *Supervisor) List() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opts.PurgeExited {
		s.purgeExitedLocked()
	}

	snapshots := make([]Snapshot, 0, len(s.order))
	for _, pid := range s.order {
		h := s.table[pid]
		snapshots = append(snapshots, Snapshot{
			PID:       h.PID,
			Argv:      append([]string(nil), h.Argv...),
			State:     h.State(),
			StartedAt: h.StartedAt,
			ExitCode:  h.ExitCode(),
		})
	}

	return snapshots
}

// Len returns the number of table entries
func (s *Supervisor) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.table)
}

// Terminate parses pidToken, sends SIGTERM to that child and removes it
// from the table. It does not wait for the child to exit. A child that has
// already exited is removed without being signalled.
func (s *Supervisor) Terminate(pidToken string) (int, error) {
	pid, err := strconv.Atoi(strings.TrimSpace(pidToken))
	if err != nil {
		return 0, minierrors.Validation("Invalid PID.").WithContext("token", pidToken)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.table[pid]
	if !ok {
		return pid, minierrors.Newf(minierrors.ErrCodeNotFound, "No process with PID %d found.", pid).
			WithContext("pid", pid)
	}

	if h.Alive() {
		if err := terminate(h); err != nil && !errors.Is(err, os.ErrProcessDone) {
			s.logger.Error("Failed to terminate process", err, map[string]interface{}{"pid": pid})
			return pid, minierrors.Wrap(err, minierrors.ErrCodeInternal, "failed to terminate process").
				WithContext("pid", pid)
		}
	}

	s.removeLocked(pid)

	s.logger.Info("Process terminated", map[string]interface{}{"pid": pid})
	return pid, nil
}

// Shutdown signals every child still running and empties the table
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, pid := range s.order {
		h := s.table[pid]
		if !h.Alive() {
			continue
		}
		if err := terminate(h); err != nil && !errors.Is(err, os.ErrProcessDone) {
			s.logger.Warn("Failed to terminate process on shutdown", map[string]interface{}{
				"pid":   pid,
				"error": err.Error(),
			})
		}
	}

	s.table = make(map[int]*Handle)
	s.order = nil
}

func (s *Supervisor) resolve(path string) string {
	if s.opts.WorkingDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.opts.WorkingDir, path)
}

func (s *Supervisor) runningLocked() int {
	count := 0
	for _, h := range s.table {
		if h.Alive() {
			count++
		}
	}
	return count
}

func (s *Supervisor) purgeExitedLocked() {
	for _, pid := range append([]int(nil), s.order...) {
		if !s.table[pid].Alive() {
			s.removeLocked(pid)
			s.logger.Debug("Purged exited process", map[string]interface{}{"pid": pid})
		}
	}
}

func (s *Supervisor) removeLocked(pid int) {
	delete(s.table, pid)
	for i, p := range s.order {
		if p == pid {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}
