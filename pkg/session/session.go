package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/aretw0/kiosk/internal/logging"
	"github.com/aretw0/kiosk/internal/runtime"
	"github.com/aretw0/kiosk/pkg/domain"
	"github.com/aretw0/kiosk/pkg/voice"
	"github.com/google/uuid"
)

// ChangeFunc observes every state change of a session.
type ChangeFunc func(old, new *domain.ConversationState)

// Session is one kiosk conversation.
// All events (user input, speech, document swaps) are serialized: each runs to
// completion before the next starts.
type Session struct {
	engine   *runtime.Engine
	voice    *voice.Coordinator
	logger   *slog.Logger
	onChange ChangeFunc

	mu      sync.Mutex
	doc     *domain.FlowDocument
	flow    *domain.LanguageFlow
	state   *domain.ConversationState
	notices []domain.Notice
}

// Option configures a Session.
type Option func(*Session)

// WithVoice attaches a speech coordinator.
func WithVoice(c *voice.Coordinator) Option {
	return func(s *Session) {
		if c != nil {
			s.voice = c
		}
	}
}

// WithLogger configures a logger for the Session.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithOnChange registers an observer of state changes.
func WithOnChange(fn ChangeFunc) Option {
	return func(s *Session) {
		s.onChange = fn
	}
}

// New starts a conversation in language on doc.
func New(ctx context.Context, engine *runtime.Engine, doc *domain.FlowDocument, language string, opts ...Option) (*Session, error) {
	s := &Session{
		engine: engine,
		voice:  voice.NewCoordinator(nil, nil),
		logger: logging.NewNop(), // Default to no-op
	}
	for _, opt := range opts {
		opt(s)
	}

	lf, err := doc.Language(language)
	if err != nil {
		return nil, err
	}
	state, err := engine.Start(ctx, lf, language)
	if err != nil {
		return nil, err
	}
	s.doc, s.flow, s.state = doc, lf, state
	return s, nil
}

// ID returns the conversation id.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ID
}

// Language returns the conversation language.
func (s *Session) Language() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Language
}

// State returns a copy of the conversation state.
func (s *Session) State() *domain.ConversationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Snapshot()
}

// Document returns the flow document the session runs on.
func (s *Session) Document() *domain.FlowDocument {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// View renders the current state together with the open notices.
func (s *Session) View() (*domain.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	view, err := s.engine.Render(s.flow, s.state)
	if err != nil {
		return nil, err
	}
	view.Notices = slices.Clone(s.notices)
	if !s.voice.CanListen() {
		view.VoiceInput = false
	}
	return view, nil
}

// SelectChoice picks a declared choice.
func (s *Session) SelectChoice(ctx context.Context, choiceID string) error {
	return s.apply(func(flow *domain.LanguageFlow, st *domain.ConversationState) (*domain.ConversationState, error) {
		return s.engine.SelectChoice(ctx, flow, st, choiceID)
	})
}

// SubmitText handles typed or transcribed text.
func (s *Session) SubmitText(ctx context.Context, text string) error {
	return s.apply(func(flow *domain.LanguageFlow, st *domain.ConversationState) (*domain.ConversationState, error) {
		return s.engine.SubmitText(ctx, flow, st, text)
	})
}

// RespondToConfirmation answers a pending suggestion.
func (s *Session) RespondToConfirmation(ctx context.Context, accepted bool) error {
	return s.apply(func(flow *domain.LanguageFlow, st *domain.ConversationState) (*domain.ConversationState, error) {
		return s.engine.RespondToConfirmation(ctx, flow, st, accepted)
	})
}

// SubmitInput stores a value for the current input node.
func (s *Session) SubmitInput(ctx context.Context, value string) error {
	return s.apply(func(flow *domain.LanguageFlow, st *domain.ConversationState) (*domain.ConversationState, error) {
		return s.engine.SubmitInput(ctx, flow, st, value)
	})
}

// SubmitConfirmation accepts or declines the value shown by a confirmation node.
func (s *Session) SubmitConfirmation(ctx context.Context, accepted bool) error {
	return s.apply(func(flow *domain.LanguageFlow, st *domain.ConversationState) (*domain.ConversationState, error) {
		return s.engine.SubmitConfirmation(ctx, flow, st, accepted)
	})
}

// Advance continues from a message node.
func (s *Session) Advance(ctx context.Context) error {
	return s.apply(func(flow *domain.LanguageFlow, st *domain.ConversationState) (*domain.ConversationState, error) {
		return s.engine.Advance(ctx, flow, st)
	})
}

// Restart discards the conversation and starts over, optionally in another language.
func (s *Session) Restart(ctx context.Context, language string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if language == "" {
		language = s.state.Language
	}
	lf, err := s.doc.Language(language)
	if err != nil {
		return err
	}
	next, err := s.engine.Start(ctx, lf, language)
	if err != nil {
		return err
	}
	if err := s.voice.StopSpeaking(); err != nil {
		s.logger.Warn("failed to stop playback on restart", "err", err)
	}
	s.flow = lf
	s.notices = nil
	s.commit(next)
	return nil
}

// SwapDocument replaces the flow document and reconciles the conversation.
// It reports whether the conversation had to change.
func (s *Session) SwapDocument(ctx context.Context, doc *domain.FlowDocument) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lf, err := doc.Language(s.state.Language)
	if err != nil {
		// Keep running on the old document rather than strand the user.
		s.logger.Warn("swapped flow lacks the session language", "conversation_id", s.state.ID, "err", err)
		return false, err
	}
	next, changed, err := s.engine.Reconcile(ctx, lf, s.state)
	if err != nil {
		s.logger.Warn("swapped flow rejected", "conversation_id", s.state.ID, "err", err)
		return false, err
	}

	s.doc, s.flow = doc, lf
	if !changed {
		return false, nil
	}
	if next.CurrentNodeID != s.state.CurrentNodeID {
		s.notify(domain.NoticeFlowChanged, s.engine.Messages(s.state.Language).FlowChanged)
	}
	s.commit(next)
	return true, nil
}

// SpeakPending plays the latest bot record once. Records are never replayed,
// and nothing is played while a recording is in progress. A record without an
// audio key is marked spoken without playback.
func (s *Session) SpeakPending(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.state.Unspoken()
	if idx < 0 {
		return nil
	}
	rec := s.state.History[idx]

	// Records without an audio key (no-match replies, limit retries) stay silent.
	if rec.AudioKey != "" {
		spoken, err := s.voice.Speak(ctx, voice.Utterance{
			Text:     rec.Content,
			AudioKey: rec.AudioKey,
			Language: s.state.Language,
			Speed:    s.flow.Settings.VoiceSpeed,
		})
		switch {
		case errors.Is(err, voice.ErrUnsupported):
			// Nothing will ever play it; do not keep it pending.
		case err != nil:
			s.logger.Warn("speech synthesis failed", "conversation_id", s.state.ID, "record", rec.ID, "err", err)
			s.notify(domain.NoticeSpeechSynthesis, s.engine.Messages(s.state.Language).SynthesisFailed)
		case !spoken:
			return nil // suppressed while recording; retried later
		}
	}

	next, err := s.engine.MarkSpoken(s.state, rec.ID)
	if err != nil {
		return err
	}
	s.commit(next)
	return nil
}

// StartListening begins speech capture.
func (s *Session) StartListening(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.voice.StartRecording(ctx, s.state.Language); err != nil {
		s.logger.Warn("speech recognition failed to start", "conversation_id", s.state.ID, "err", err)
		s.notify(domain.NoticeSpeechRecognition, s.engine.Messages(s.state.Language).RecognitionFailed)
		return err
	}
	return nil
}

// StopListening ends speech capture and submits the transcript, if any.
// It returns the transcript.
func (s *Session) StopListening(ctx context.Context) (string, error) {
	s.mu.Lock()
	transcript, err := s.voice.StopRecording(ctx)
	if err != nil {
		s.logger.Warn("speech recognition failed", "conversation_id", s.state.ID, "err", err)
		s.notify(domain.NoticeSpeechRecognition, s.engine.Messages(s.state.Language).RecognitionFailed)
		s.mu.Unlock()
		return "", err
	}
	s.mu.Unlock()

	if transcript == "" {
		return "", nil
	}
	return transcript, s.SubmitText(ctx, transcript)
}

// Notices returns the open notices.
func (s *Session) Notices() []domain.Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.notices)
}

// DismissNotice removes a notice. Unknown ids are ignored.
func (s *Session) DismissNotice(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = slices.DeleteFunc(s.notices, func(n domain.Notice) bool { return n.ID == id })
}

// apply runs one transition under the session lock.
// Recoverable errors keep the previous state and raise a notice.
func (s *Session) apply(fn func(*domain.LanguageFlow, *domain.ConversationState) (*domain.ConversationState, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := fn(s.flow, s.state)
	if err != nil {
		if domain.IsRecoverable(err) {
			s.notify(domain.NoticeInvalidInput, s.engine.Messages(s.state.Language).ActionRejected)
			s.logger.Debug("transition rejected", "conversation_id", s.state.ID, "node", s.state.CurrentNodeID, "err", err)
		} else {
			s.logger.Error("transition failed", "conversation_id", s.state.ID, "node", s.state.CurrentNodeID, "err", err)
		}
		return fmt.Errorf("conversation %s: %w", s.state.ID, err)
	}
	s.commit(next)
	return nil
}

// commit installs next. Caller holds mu.
func (s *Session) commit(next *domain.ConversationState) {
	old := s.state
	s.state = next
	if s.onChange != nil {
		s.onChange(old, next)
	}
}

// notify appends a notice. Caller holds mu.
func (s *Session) notify(kind domain.NoticeKind, msg string) {
	s.notices = append(s.notices, domain.Notice{
		ID:      uuid.NewString(),
		Kind:    kind,
		Message: msg,
	})
}
