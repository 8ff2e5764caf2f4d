package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/kiosk/pkg/domain"
)

// TextHandler implements the line-based terminal interface.
//
// Lines starting with ':' are commands (":restart en", ":quit"); "exit" and
// "quit" also end the chat. Anything else is free text.
type TextHandler struct {
	Reader   *bufio.Reader
	Writer   io.Writer
	Renderer ContentRenderer

	inputChan chan inputResult
	startOnce sync.Once
}

type inputResult struct {
	text string
	err  error
}

// TextHandlerOption defines configuration for TextHandler.
type TextHandlerOption func(*TextHandler)

// WithTextHandlerRenderer configures the content renderer.
func WithTextHandlerRenderer(renderer ContentRenderer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Renderer = renderer
	}
}

// NewTextHandler creates a handler for standard text IO.
func NewTextHandler(r io.Reader, w io.Writer, opts ...TextHandlerOption) *TextHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	h := &TextHandler{
		Reader: bufio.NewReader(r),
		Writer: w,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// initPump starts the background reader once, so Input can honor ctx while a
// read is blocked.
func (h *TextHandler) initPump() {
	h.startOnce.Do(func() {
		h.inputChan = make(chan inputResult)
		go h.pump()
	})
}

func (h *TextHandler) pump() {
	for {
		text, err := h.Reader.ReadString('\n')
		if text != "" {
			h.inputChan <- inputResult{text: text}
		}
		if err != nil {
			if err == io.EOF {
				close(h.inputChan)
				return
			}
			h.inputChan <- inputResult{err: err}
			// Backoff for non-fatal errors to prevent CPU spikes on persistent failure
			time.Sleep(50 * time.Millisecond)
		}
	}
}

func (h *TextHandler) Output(ctx context.Context, view *domain.View, fresh []domain.Record) error {
	for _, rec := range fresh {
		if rec.Type != domain.SpeakerBot || rec.Content == "" {
			continue
		}
		fmt.Fprintln(h.Writer, h.render(rec.Content))
	}

	switch {
	case view.PendingConfirmation != nil:
		fmt.Fprintln(h.Writer, "  (yes / no)")
	case len(view.Choices) > 0:
		for i, c := range view.Choices {
			fmt.Fprintf(h.Writer, "  %d) %s\n", i+1, c.Text)
		}
	case view.ConfirmValue != "":
		fmt.Fprintf(h.Writer, "  [%s] (yes / no)\n", view.ConfirmValue)
	}

	if r := view.Receipt; r != nil {
		fmt.Fprintf(h.Writer, "  ┌ %s\n", r.TransactionID)
		if r.Password != "" {
			fmt.Fprintf(h.Writer, "  │ PIN %s\n", r.Password)
		}
		fmt.Fprintf(h.Writer, "  └ valid until %s\n", r.ExpiresAt.Format("15:04"))
	}
	return nil
}

func (h *TextHandler) render(content string) string {
	if h.Renderer == nil {
		return content
	}
	rendered, err := h.Renderer(content)
	if err != nil {
		return content
	}
	return strings.TrimSpace(rendered)
}

func (h *TextHandler) Input(ctx context.Context) (Command, error) {
	h.initPump()

	for {
		select {
		case <-ctx.Done():
			return Command{}, ctx.Err()
		default:
			fmt.Fprint(h.Writer, "> ")
		}

		select {
		case <-ctx.Done():
			return Command{}, ctx.Err()
		case res, ok := <-h.inputChan:
			if !ok {
				return Command{}, io.EOF
			}
			if res.err != nil {
				return Command{}, res.err
			}
			clean, err := SanitizeInput(strings.TrimSpace(res.text))
			if err != nil {
				fmt.Fprintf(h.Writer, "Error: %v. Please try again.\n", err)
				continue
			}
			return ParseCommand(clean), nil
		}
	}
}

func (h *TextHandler) SystemOutput(ctx context.Context, msg string) error {
	_, err := fmt.Fprintf(h.Writer, "[!] %s\n", msg)
	return err
}

// ParseCommand turns a terminal line into a Command.
func ParseCommand(line string) Command {
	switch strings.ToLower(line) {
	case "exit", "quit":
		return Command{Action: ActionQuit}
	}
	if !strings.HasPrefix(line, ":") {
		return Command{Action: ActionText, Value: line}
	}

	name, arg, _ := strings.Cut(strings.TrimPrefix(line, ":"), " ")
	arg = strings.TrimSpace(arg)
	switch Action(strings.ToLower(name)) {
	case ActionRestart, "lang":
		return Command{Action: ActionRestart, Value: arg}
	case ActionQuit, "q":
		return Command{Action: ActionQuit}
	case ActionSelect:
		return Command{Action: ActionSelect, Value: arg}
	case ActionAdvance, "next":
		return Command{Action: ActionAdvance}
	}
	return Command{Action: ActionText, Value: line}
}
