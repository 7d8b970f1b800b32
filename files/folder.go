// Package files holds folder and file helpers: applying a function to every entry
// of a directory, and saving files without losing the cause of a failure.
package files

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/aschepis/backscratcher/galaxy/concurrent"
	"github.com/aschepis/backscratcher/galaxy/metrics"
)

// ErrNotDirectory is returned when a folder helper is given a path that is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// Less orders directory entries.
type Less func(a, b fs.DirEntry) bool

// ByName orders entries by name, which is also the order os.ReadDir returns.
func ByName(a, b fs.DirEntry) bool {
	return a.Name() < b.Name()
}

// DirsFirst orders directories before files, then by name.
func DirsFirst(a, b fs.DirEntry) bool {
	if a.IsDir() != b.IsDir() {
		return a.IsDir()
	}
	return a.Name() < b.Name()
}

// MapOptions configures MapFolder.
type MapOptions struct {
	// Concurrency of 1 or less maps sequentially.
	Concurrency int
	// Less sorts the listing; nil keeps the os.ReadDir order.
	Less Less
	Mode concurrent.Mode

	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

// ListFolder returns the absolute paths of the entries of dir, without recursing,
// sorted with less when it is non-nil.
func ListFolder(dir string, less Less) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &fs.PathError{Op: "readdir", Path: dir, Err: ErrNotDirectory}
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}

	entries, err := os.ReadDir(absDir)
	if err != nil {
		return nil, err
	}
	if less != nil {
		slices.SortStableFunc(entries, func(a, b fs.DirEntry) int {
			switch {
			case less(a, b):
				return -1
			case less(b, a):
				return 1
			default:
				return 0
			}
		})
	}

	return lo.Map(entries, func(e fs.DirEntry, _ int) string {
		return filepath.Join(absDir, e.Name())
	}), nil
}

// MapFolder applies fn to the absolute path of every entry of dir and returns
// the results in listing order.
//
// Sequential mapping stops at the first error. Concurrent mapping hands the
// paths to concurrent.Map with Concurrency workers and stops the same way. In
// both cases the error is a *concurrent.TaskError carrying the entry index.
func MapFolder[R any](ctx context.Context, fn func(ctx context.Context, path string) (R, error), dir string, opts MapOptions) ([]R, error) {
	paths, err := ListFolder(dir, opts.Less)
	if err != nil {
		return nil, err
	}

	log := opts.Logger.With().Str("component", "mapFolder").Str("dir", dir).Logger()
	log.Debug().Int("entries", len(paths)).Int("concurrency", opts.Concurrency).Msg("Mapping folder")

	if opts.Concurrency <= 1 {
		results := make([]R, 0, len(paths))
		for i, path := range paths {
			if err := ctx.Err(); err != nil {
				return nil, &concurrent.TaskError{Index: i, Err: err}
			}
			r, err := fn(ctx, path)
			if err != nil {
				return nil, &concurrent.TaskError{Index: i, Err: fmt.Errorf("%s: %w", path, err)}
			}
			results = append(results, r)
		}
		return results, nil
	}

	return concurrent.Map(ctx, fn, paths, concurrent.Options{
		MaxWorkers: opts.Concurrency,
		Mode:       opts.Mode,
		Logger:     opts.Logger,
		Metrics:    opts.Metrics,
	})
}

// MapFolderWith is MapFolder for functions that take one extra argument,
// passed identically to every call.
func MapFolderWith[A, R any](ctx context.Context, fn func(ctx context.Context, path string, arg A) (R, error), dir string, arg A, opts MapOptions) ([]R, error) {
	return MapFolder(ctx, func(ctx context.Context, path string) (R, error) {
		return fn(ctx, path, arg)
	}, dir, opts)
}
