package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Source implements ports.WritableSource and ports.Watchable over a local file.
type Source struct {
	path     string
	logger   *slog.Logger
	debounce time.Duration
}

// Option configures a Source.
type Option func(*Source)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDebounce sets how long a burst of file events is coalesced (default 50ms).
func WithDebounce(d time.Duration) Option {
	return func(s *Source) {
		s.debounce = d
	}
}

// New creates a Source reading path.
func New(path string, opts ...Option) *Source {
	s := &Source{
		path:     path,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		debounce: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the watched file path.
func (s *Source) Path() string {
	return s.path
}

// Fetch reads the whole file.
func (s *Source) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow source: %w", err)
	}
	return data, nil
}

// Write replaces the file atomically.
// It writes to a temporary file first, syncs via fsync, and then renames it to the destination.
func (s *Source) Write(ctx context.Context, data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to ensure source directory: %w", err)
	}

	// Same directory, so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(s.path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath) // no-op once renamed
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Cannot rename an open file on Windows.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to replace flow source: %w", err)
	}

	s.logger.Info("flow source replaced", "path", s.path, "bytes", len(data))
	return nil
}

// Watch signals when the file is written, created, renamed over or removed.
// The parent directory is watched so that atomic replacements are seen.
// The channel is closed when ctx is done.
func (s *Source) Watch(ctx context.Context) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	out := make(chan struct{}, 1)
	go s.run(ctx, watcher, out)
	return out, nil
}

func (s *Source) run(ctx context.Context, watcher *fsnotify.Watcher, out chan struct{}) {
	var (
		mu    sync.Mutex
		timer *time.Timer
		done  bool
	)
	signal := func() {
		mu.Lock()
		defer mu.Unlock()
		if done {
			return
		}
		select {
		case out <- struct{}{}:
		default:
		}
	}
	defer func() {
		mu.Lock()
		done = true
		if timer != nil {
			timer.Stop()
		}
		close(out)
		mu.Unlock()
		_ = watcher.Close()
	}()

	target := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			s.logger.Debug("flow source changed", "path", event.Name, "op", event.Op.String())

			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(s.debounce, signal)
			mu.Unlock()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				signal()
			}
			s.logger.Error("fsnotify error", "err", err)
		}
	}
}
