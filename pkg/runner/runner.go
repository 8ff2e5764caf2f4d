package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/aretw0/kiosk/pkg/domain"
	"github.com/aretw0/kiosk/pkg/intent"
	"github.com/aretw0/kiosk/pkg/session"
)

// ErrUnknownAction is returned for commands the Runner does not understand.
var ErrUnknownAction = errors.New("unknown action")

// Runner drives a Session from an IOHandler until the conversation reaches a
// terminal node or the user quits.
type Runner struct {
	session *session.Session
	handler IOHandler
	logger  *slog.Logger
	speak   bool
	signals bool
}

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithHandler configures the IOHandler (default: TextHandler on stdin/stdout).
func WithHandler(h IOHandler) Option {
	return func(r *Runner) {
		if h != nil {
			r.handler = h
		}
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithSpeech plays every new bot record that carries an audio key through the
// session's synthesizer.
func WithSpeech(enabled bool) Option {
	return func(r *Runner) {
		r.speak = enabled
	}
}

// WithSignals makes SIGINT and SIGTERM end the loop cleanly.
func WithSignals(enabled bool) Option {
	return func(r *Runner) {
		r.signals = enabled
	}
}

// New creates a Runner for s.
func New(s *session.Session, opts ...Option) *Runner {
	r := &Runner{
		session: s,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.handler == nil {
		r.handler = NewTextHandler(nil, nil)
	}
	return r
}

// Run executes the loop: render, output, speak, read, dispatch.
func (r *Runner) Run(ctx context.Context) error {
	var signals *SignalManager
	if r.signals {
		signals = NewSignalManager(ctx)
		defer signals.Stop()
		ctx = signals.Context()
	}

	conversation, seen := "", 0
	for {
		view, err := r.session.View()
		if err != nil {
			return fmt.Errorf("render error: %w", err)
		}
		if id := r.session.ID(); id != conversation {
			conversation, seen = id, 0
		}
		fresh := view.History[min(seen, len(view.History)):]
		seen = len(view.History)

		if err := r.handler.Output(ctx, view, fresh); err != nil {
			return fmt.Errorf("output error: %w", err)
		}
		for _, n := range view.Notices {
			if err := r.handler.SystemOutput(ctx, n.Message); err != nil {
				return fmt.Errorf("output error: %w", err)
			}
			r.session.DismissNotice(n.ID)
		}
		if r.speak {
			if err := r.session.SpeakPending(ctx); err != nil {
				r.logger.Warn("speech failed", "conversation_id", conversation, "err", err)
			}
		}
		if view.Terminal {
			r.logger.Debug("conversation finished", "conversation_id", conversation, "node", view.CurrentNode.ID)
			return nil
		}

		cmd, err := r.handler.Input(ctx)
		if err != nil {
			if signals != nil {
				signals.CheckRace()
			}
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				r.logger.Debug("chat ended", "conversation_id", conversation, "reason", err)
				return nil
			}
			if errors.Is(err, ErrInputTooLarge) || errors.Is(err, ErrInvalidUTF8) {
				if err := r.handler.SystemOutput(ctx, err.Error()); err != nil {
					return fmt.Errorf("output error: %w", err)
				}
				continue
			}
			return fmt.Errorf("input error: %w", err)
		}
		if cmd.Action == ActionQuit {
			return nil
		}

		if err := r.dispatch(ctx, view, cmd); err != nil {
			switch {
			case domain.IsRecoverable(err):
				// The session raised a notice; it is shown on the next turn.
			case errors.Is(err, ErrUnknownAction), errors.Is(err, domain.ErrUnknownLanguage):
				if err := r.handler.SystemOutput(ctx, err.Error()); err != nil {
					return fmt.Errorf("output error: %w", err)
				}
			default:
				return err
			}
		}
	}
}

func (r *Runner) dispatch(ctx context.Context, view *domain.View, cmd Command) error {
	switch cmd.Action {
	case ActionText:
		return r.resolveText(ctx, view, cmd.Value)
	case ActionSelect:
		return r.session.SelectChoice(ctx, cmd.Value)
	case ActionSuggestion:
		accepted, err := parseAnswer(cmd.Value)
		if err != nil {
			return err
		}
		return r.session.RespondToConfirmation(ctx, accepted)
	case ActionInput:
		return r.session.SubmitInput(ctx, cmd.Value)
	case ActionConfirm:
		accepted, err := parseAnswer(cmd.Value)
		if err != nil {
			return err
		}
		return r.session.SubmitConfirmation(ctx, accepted)
	case ActionAdvance:
		return r.session.Advance(ctx)
	case ActionRestart:
		return r.session.Restart(ctx, cmd.Value)
	}
	return fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
}

// resolveText maps free text to the operation the current node accepts.
// A choice number picks that choice; any line continues a message node.
func (r *Runner) resolveText(ctx context.Context, view *domain.View, text string) error {
	if view.CurrentNode.Type == domain.NodeTypeMessage {
		return r.session.Advance(ctx)
	}
	if view.PendingConfirmation == nil && len(view.Choices) > 0 {
		if n, err := strconv.Atoi(text); err == nil && n >= 1 && n <= len(view.Choices) {
			return r.session.SelectChoice(ctx, view.Choices[n-1].ID)
		}
	}
	return r.session.SubmitText(ctx, text)
}

func parseAnswer(v string) (bool, error) {
	if accepted, ok := intent.Affirmation(v); ok {
		return accepted, nil
	}
	accepted, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: answer %q is neither yes nor no", ErrUnknownAction, v)
	}
	return accepted, nil
}
