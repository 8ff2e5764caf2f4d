package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// DefaultStopTimeout bounds how long StopRecording waits for a transcript.
const DefaultStopTimeout = time.Second

// Coordinator enforces mutual exclusion between recording and playback.
// Safe for concurrent use.
type Coordinator struct {
	recognizer  Recognizer
	synthesizer Synthesizer
	stopTimeout time.Duration
	logger      *slog.Logger

	mu        sync.Mutex
	recording bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithStopTimeout overrides DefaultStopTimeout.
func WithStopTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.stopTimeout = d
		}
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCoordinator creates a Coordinator. Nil devices are treated as unsupported.
func NewCoordinator(rec Recognizer, syn Synthesizer, opts ...Option) *Coordinator {
	if rec == nil {
		rec = NoRecognizer()
	}
	if syn == nil {
		syn = NoSynthesizer()
	}
	c := &Coordinator{
		recognizer:  rec,
		synthesizer: syn,
		stopTimeout: DefaultStopTimeout,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CanListen reports whether speech input is available.
func (c *Coordinator) CanListen() bool { return c.recognizer.Supported() }

// CanSpeak reports whether speech output is available.
func (c *Coordinator) CanSpeak() bool { return c.synthesizer.Supported() }

// Recording reports whether a recording is in progress.
func (c *Coordinator) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recording
}

// StartRecording interrupts playback and starts the recognizer.
// Starting while already recording is a no-op.
func (c *Coordinator) StartRecording(ctx context.Context, language string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.recording {
		return nil
	}
	if !c.recognizer.Supported() {
		return ErrUnsupported
	}
	if c.synthesizer.Speaking() {
		if err := c.synthesizer.Stop(); err != nil {
			c.logger.Warn("failed to interrupt playback", "err", err)
		}
	}
	if err := c.recognizer.Start(ctx, language); err != nil {
		return fmt.Errorf("start recording: %w", err)
	}
	c.recording = true
	c.logger.Debug("recording started", "language", language)
	return nil
}

// StopRecording stops the recognizer and returns the transcript.
// When the recognizer does not answer within the stop timeout the transcript
// is empty and no error is returned.
func (c *Coordinator) StopRecording(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.recording {
		return "", ErrNotRecording
	}
	c.recording = false

	ctx, cancel := context.WithTimeout(ctx, c.stopTimeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := c.recognizer.Stop(ctx)
		done <- result{text, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			if errors.Is(r.err, context.DeadlineExceeded) {
				return "", nil
			}
			return "", fmt.Errorf("stop recording: %w", r.err)
		}
		return r.text, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			c.logger.Warn("recognizer did not stop in time", "timeout", c.stopTimeout)
			return "", nil
		}
		return "", ctx.Err()
	}
}

// Speak plays u unless a recording is in progress.
// It reports whether playback happened.
func (c *Coordinator) Speak(ctx context.Context, u Utterance) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.recording {
		return false, nil
	}
	if !c.synthesizer.Supported() {
		return false, ErrUnsupported
	}
	if err := c.synthesizer.Speak(ctx, u); err != nil {
		return false, fmt.Errorf("speak: %w", err)
	}
	return true, nil
}

// StopSpeaking interrupts playback.
func (c *Coordinator) StopSpeaking() error {
	return c.synthesizer.Stop()
}
