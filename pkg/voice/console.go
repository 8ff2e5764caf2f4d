package voice

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Console is a Synthesizer that prints utterances, used by the terminal chat.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole creates a Console writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// Speak writes the utterance, tagged with its audio key when present.
func (c *Console) Speak(ctx context.Context, u Utterance) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if u.AudioKey != "" {
		_, err := fmt.Fprintf(c.w, "🔊 [%s] %s\n", u.AudioKey, u.Text)
		return err
	}
	_, err := fmt.Fprintf(c.w, "🔊 %s\n", u.Text)
	return err
}

func (c *Console) Stop() error     { return nil }
func (c *Console) Speaking() bool  { return false }
func (c *Console) Supported() bool { return true }
