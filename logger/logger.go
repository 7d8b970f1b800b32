package logger

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/rs/zerolog"
)

const (
	// DefaultDir is where the log files go when Options.Dir is empty.
	DefaultDir = "logs"

	InfoFile  = "info.log"
	ErrorFile = "error.log"

	// KeepBackups is the number of rotated files retained per log.
	KeepBackups = 7

	// retainedFiles is what rotatelogs keeps in total: the live file plus the backups.
	retainedFiles = KeepBackups + 1
)

// Options configures the process logger.
type Options struct {
	Dir          string        // directory for info.log / error.log (default: ./logs)
	ConsoleLevel zerolog.Level // minimum level written to the console
	Pretty       bool          // human-readable console output
	Console      io.Writer     // console destination (default: os.Stdout)
	DisableFiles bool          // console only
}

// DefaultOptions returns the options used by EnsureInitialized.
// The console level comes from LOG_LEVEL and LOG_DIR overrides the directory.
func DefaultOptions() Options {
	dir := os.Getenv("LOG_DIR")
	if dir == "" {
		dir = DefaultDir
	}
	return Options{
		Dir:          dir,
		ConsoleLevel: parseLogLevel(os.Getenv("LOG_LEVEL")),
	}
}

var (
	mu          sync.Mutex
	initialized bool
	root        zerolog.Logger
	closers     []io.Closer
)

// Init configures the process-wide logger. Only the first call has an effect;
// later calls return the logger built by the first one.
func Init(opts Options) (zerolog.Logger, error) {
	mu.Lock()
	defer mu.Unlock()

	if initialized {
		return root, nil
	}

	log, files, err := New(opts)
	if err != nil {
		return zerolog.Logger{}, err
	}
	root = log
	closers = files
	initialized = true

	root.Info().
		Str("dir", opts.Dir).
		Bool("files", !opts.DisableFiles).
		Str("level", opts.ConsoleLevel.String()).
		Msg("Logger initialized")
	return root, nil
}

// EnsureInitialized runs Init with DefaultOptions if nothing has initialized
// the logger yet.
func EnsureInitialized() (zerolog.Logger, error) {
	return Init(DefaultOptions())
}

// Named returns the root logger tagged with a logger name.
// Before initialization it returns a disabled logger.
func Named(name string) zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()

	if !initialized {
		return zerolog.Nop()
	}
	return root.With().Str("logger", name).Logger()
}

// Close releases the log files opened by Init.
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	var errs []error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	closers = nil
	return errors.Join(errs...)
}

// New builds a logger from opts without touching the process-wide state.
// The returned closers own the rotating log files.
//
// The console receives records at or above opts.ConsoleLevel. info.log gets
// exactly the INFO records and error.log exactly the ERROR records; both
// rotate at local midnight.
func New(opts Options) (zerolog.Logger, []io.Closer, error) {
	console := opts.Console
	if console == nil {
		console = os.Stdout
	}
	if opts.Pretty {
		console = zerolog.ConsoleWriter{Out: console, TimeFormat: time.DateTime}
	}

	writers := []io.Writer{minLevelWriter{w: console, min: opts.ConsoleLevel}}
	var files []io.Closer

	if !opts.DisableFiles {
		dir := opts.Dir
		if dir == "" {
			dir = DefaultDir
		}
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return zerolog.Logger{}, nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
		}

		for _, target := range []struct {
			name  string
			level zerolog.Level
		}{
			{InfoFile, zerolog.InfoLevel},
			{ErrorFile, zerolog.ErrorLevel},
		} {
			rl, err := newRotatingFile(filepath.Join(dir, target.name))
			if err != nil {
				for _, f := range files {
					_ = f.Close()
				}
				return zerolog.Logger{}, nil, err
			}
			files = append(files, rl)
			writers = append(writers, exactLevelWriter{w: rl, level: target.level})
		}
	}

	level := opts.ConsoleLevel
	if !opts.DisableFiles && level > zerolog.InfoLevel {
		level = zerolog.InfoLevel
	}

	log := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()
	return log, files, nil
}

// newRotatingFile opens path as a daily rotating log. path itself is a link
// to the current file; rotated files carry a date suffix.
func newRotatingFile(path string) (*rotatelogs.RotateLogs, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve log path %s: %w", path, err)
	}
	rl, err := rotatelogs.New(
		abs+".%Y-%m-%d",
		rotatelogs.WithLinkName(abs),
		rotatelogs.WithRotationTime(24*time.Hour),
		rotatelogs.WithRotationCount(retainedFiles),
		rotatelogs.WithClock(rotatelogs.Local),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open rotating log %s: %w", abs, err)
	}
	return rl, nil
}

// minLevelWriter drops records below min.
type minLevelWriter struct {
	w   io.Writer
	min zerolog.Level
}

func (m minLevelWriter) Write(p []byte) (int, error) {
	return m.w.Write(p)
}

func (m minLevelWriter) WriteLevel(l zerolog.Level, p []byte) (int, error) {
	if l < m.min {
		return len(p), nil
	}
	return m.w.Write(p)
}

// exactLevelWriter keeps only records at level.
type exactLevelWriter struct {
	w     io.Writer
	level zerolog.Level
}

func (e exactLevelWriter) Write(p []byte) (int, error) {
	return e.w.Write(p)
}

func (e exactLevelWriter) WriteLevel(l zerolog.Level, p []byte) (int, error) {
	if l != e.level {
		return len(p), nil
	}
	return e.w.Write(p)
}

// ParseLevel maps a level name to a zerolog level. Unknown names are info.
func ParseLevel(level string) zerolog.Level {
	return parseLogLevel(level)
}

// Helper functions
func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "trace":
		return zerolog.TraceLevel
	default:
		return zerolog.InfoLevel
	}
}
