package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"mercator-hq/drivetwin/pkg/policy/engine"
)

// DefaultMaxFileSize is the largest policy file FileSource reads.
const DefaultMaxFileSize = 1 << 20

// ReusedCodeProvider supplies definitions that run before a program's own code.
type ReusedCodeProvider interface {
	ReusedCode() (string, error)
}

// FileError describes a policy file that could not be read.
type FileError struct {
	// Path is the file that failed to load
	Path string

	// Message describes the error
	Message string

	// Cause is the underlying error, if any
	Cause error
}

// Error implements the error interface.
func (e *FileError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load policy file %q: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load policy file %q: %s", e.Path, e.Message)
}

// Unwrap implements the errors.Unwrap interface for error chain support.
func (e *FileError) Unwrap() error {
	return e.Cause
}

// FileSource loads a program from a Lua file on disk.
type FileSource struct {
	path        string
	reused      ReusedCodeProvider
	maxFileSize int64
	logger      *slog.Logger
}

// NewFileSource creates a file-based program source.
// reused may be nil, in which case programs carry no reused code.
func NewFileSource(path string, reused ReusedCodeProvider, logger *slog.Logger) *FileSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{
		path:        path,
		reused:      reused,
		maxFileSize: DefaultMaxFileSize,
		logger:      logger,
	}
}

// WithMaxFileSize overrides the file size limit.
func (s *FileSource) WithMaxFileSize(n int64) *FileSource {
	s.maxFileSize = n
	return s
}

// Path returns the watched file path.
func (s *FileSource) Path() string {
	return s.path
}

// Load reads the file and returns it as a program named after the file.
func (s *FileSource) Load(ctx context.Context) (engine.Program, error) {
	if err := ctx.Err(); err != nil {
		return engine.Program{}, err
	}

	code, err := s.readFile()
	if err != nil {
		return engine.Program{}, err
	}

	program := engine.Program{
		Name:    ProgramName(s.path),
		NewCode: code,
	}
	if s.reused != nil {
		reused, err := s.reused.ReusedCode()
		if err != nil {
			return engine.Program{}, fmt.Errorf("failed to load reused code: %w", err)
		}
		program.ReusedCode = reused
	}

	s.logger.Debug("loaded policy file",
		"path", s.path,
		"program", program.Name,
		"source_bytes", program.Size(),
	)
	return program, nil
}

func (s *FileSource) readFile() (string, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		switch {
		case os.IsNotExist(err):
			return "", &FileError{Path: s.path, Message: "file not found", Cause: err}
		case os.IsPermission(err):
			return "", &FileError{Path: s.path, Message: "permission denied", Cause: err}
		default:
			return "", &FileError{Path: s.path, Message: "failed to access file", Cause: err}
		}
	}
	if !info.Mode().IsRegular() {
		return "", &FileError{Path: s.path, Message: "not a regular file"}
	}
	if info.Size() > s.maxFileSize {
		return "", &FileError{
			Path:    s.path,
			Message: fmt.Sprintf("file size %d bytes exceeds maximum %d bytes", info.Size(), s.maxFileSize),
		}
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", &FileError{Path: s.path, Message: "failed to read file", Cause: err}
	}
	if !utf8.Valid(data) {
		return "", &FileError{Path: s.path, Message: "file contains invalid UTF-8 encoding"}
	}
	return string(data), nil
}

// ProgramName derives a program name from a file path.
func ProgramName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
