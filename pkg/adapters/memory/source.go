package memory

import (
	"context"
	"errors"
	"sync"
)

// ErrNoData is returned by a Source that holds no document.
var ErrNoData = errors.New("memory source is empty")

// Source implements ports.WritableSource and ports.Watchable over a byte slice.
// It is mostly used by tests and by hosts that receive the document out of band.
type Source struct {
	mu       sync.RWMutex
	data     []byte
	err      error
	watchers []chan struct{}
}

// NewSource creates a source holding data.
func NewSource(data []byte) *Source {
	return &Source{data: clone(data)}
}

// Fetch returns a copy of the current bytes.
func (s *Source) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.err != nil {
		return nil, s.err
	}
	if len(s.data) == 0 {
		return nil, ErrNoData
	}
	return clone(s.data), nil
}

// Write replaces the document and signals watchers.
func (s *Source) Write(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = clone(data)
	s.err = nil
	notify(s.watchers)
	return nil
}

// Fail makes subsequent fetches return err until the next Write.
// Passing nil clears the failure.
func (s *Source) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Watch returns a channel signaled after every Write.
// The channel is closed when ctx is done.
func (s *Source) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	s.watchers = append(s.watchers, ch)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, w := range s.watchers {
			if w == ch {
				s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch, nil
}

func notify(watchers []chan struct{}) {
	for _, ch := range watchers {
		// Non-blocking: a pending signal already means "reload".
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
