// Package files backs the shell's ls, touch, rm, cat and echo commands.
// Paths are resolved against the shell's working directory.
package files

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"

	minierrors "github.com/rama-kairi/minios/internal/errors"
	"github.com/rama-kairi/minios/internal/logger"
)

// Entry is one item of a directory listing
type Entry struct {
	Name    string
	IsDir   bool
	Size    int64
	ModTime time.Time
}

// Service performs file operations relative to a base directory
type Service struct {
	fs      afs.Service
	baseDir string
	logger  *logger.Logger
}

// New creates a file service rooted at baseDir ("" means the current directory)
func New(baseDir string, log *logger.Logger) (*Service, error) {
	if baseDir == "" {
		baseDir = "."
	}

	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}

	if log == nil {
		log = logger.Nop()
	}

	return &Service{
		fs:      afs.New(),
		baseDir: abs,
		logger:  log.WithComponent("files"),
	}, nil
}

// BaseDir returns the absolute directory paths are resolved against
func (s *Service) BaseDir() string {
	return s.baseDir
}

// List returns the entries of the base directory sorted by name
func (s *Service) List(ctx context.Context) ([]Entry, error) {
	objects, err := s.fs.List(ctx, s.baseDir)
	if err != nil {
		return nil, minierrors.IO(err, s.baseDir)
	}

	entries := make([]Entry, 0, len(objects))
	for _, obj := range objects {
		// The listing includes the directory itself
		if filepath.Clean(url.Path(obj.URL())) == s.baseDir {
			continue
		}
		entries = append(entries, Entry{
			Name:    obj.Name(),
			IsDir:   obj.IsDir(),
			Size:    obj.Size(),
			ModTime: obj.ModTime(),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})

	return entries, nil
}

// Touch creates name if it does not exist. Existing contents are kept.
// It reports whether a new file was created.
func (s *Service) Touch(ctx context.Context, name string) (bool, error) {
	p := s.path(name)

	exists, err := s.fs.Exists(ctx, p)
	if err != nil {
		return false, minierrors.IO(err, name)
	}
	if exists {
		return false, nil
	}

	if err := s.parentMustExist(ctx, name, p); err != nil {
		return false, err
	}

	if err := s.fs.Upload(ctx, p, file.DefaultFileOsMode, strings.NewReader("")); err != nil {
		return false, minierrors.IO(err, name)
	}

	s.logger.Debug("File created", map[string]interface{}{"path": p})
	return true, nil
}

// Remove deletes the regular file name
func (s *Service) Remove(ctx context.Context, name string) error {
	p := s.path(name)

	if err := s.mustBeFile(ctx, name, p); err != nil {
		return err
	}

	if err := s.fs.Delete(ctx, p); err != nil {
		return minierrors.IO(err, name)
	}

	s.logger.Debug("File deleted", map[string]interface{}{"path": p})
	return nil
}

// Read returns the contents of name
func (s *Service) Read(ctx context.Context, name string) ([]byte, error) {
	p := s.path(name)

	if err := s.mustBeFile(ctx, name, p); err != nil {
		return nil, err
	}

	data, err := s.fs.DownloadWithURL(ctx, p)
	if err != nil {
		return nil, minierrors.IO(err, name)
	}
	return data, nil
}

// Write replaces the contents of name with content, creating it if needed
func (s *Service) Write(ctx context.Context, name, content string) error {
	p := s.path(name)

	if err := s.parentMustExist(ctx, name, p); err != nil {
		return err
	}

	if err := s.fs.Upload(ctx, p, file.DefaultFileOsMode, strings.NewReader(content)); err != nil {
		return minierrors.IO(err, name)
	}

	s.logger.Debug("File written", map[string]interface{}{
		"path":  p,
		"bytes": len(content),
	})
	return nil
}

// parentMustExist fails when the directory holding p is missing. Upload
// would otherwise create it.
func (s *Service) parentMustExist(ctx context.Context, name, p string) error {
	dir := filepath.Dir(p)
	exists, err := s.fs.Exists(ctx, dir)
	if err != nil {
		return minierrors.IO(err, name)
	}
	if !exists {
		return minierrors.IO(&os.PathError{Op: "open", Path: name, Err: syscall.ENOENT}, name)
	}
	return nil
}

func (s *Service) mustBeFile(ctx context.Context, name, p string) error {
	exists, err := s.fs.Exists(ctx, p)
	if err != nil {
		return minierrors.IO(err, name)
	}
	if !exists {
		return NotFound(name)
	}

	obj, err := s.fs.Object(ctx, p)
	if err != nil {
		return minierrors.IO(err, name)
	}
	if obj.IsDir() {
		return minierrors.Validation(fmt.Sprintf("'%s' is a directory", name)).
			WithContext("path", name)
	}
	return nil
}

func (s *Service) path(name string) string {
	if filepath.IsAbs(name) {
		return filepath.Clean(name)
	}
	return filepath.Join(s.baseDir, name)
}

// NotFound is the error reported for a missing file
func NotFound(name string) error {
	return minierrors.NotFound(fmt.Sprintf("File '%s' not found.", name)).
		WithContext("path", name)
}
