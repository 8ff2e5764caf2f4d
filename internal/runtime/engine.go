package runtime

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/kiosk/pkg/domain"
	"github.com/aretw0/kiosk/pkg/intent"
)

// Matcher selects a choice for free-text input.
type Matcher interface {
	Match(input string, choices []domain.Choice) intent.Result
}

// Engine is the conversation state machine.
// It holds no per-conversation data: every operation receives the flow and the
// state, and returns a new state without mutating its input.
type Engine struct {
	matcher     Matcher
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	entryNodeID string
	messages    Catalog
	now         func() time.Time
}

// EngineOption defines a functional option for configuring the Engine.
type EngineOption func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithEntryNode configures the initial node ID (default: "start").
func WithEntryNode(nodeID string) EngineOption {
	return func(e *Engine) {
		if nodeID != "" {
			e.entryNodeID = nodeID
		}
	}
}

// WithMatcher replaces the default intent matcher.
func WithMatcher(m Matcher) EngineOption {
	return func(e *Engine) {
		if m != nil {
			e.matcher = m
		}
	}
}

// WithMessages replaces the catalog of system messages.
func WithMessages(c Catalog) EngineOption {
	return func(e *Engine) {
		if c != nil {
			e.messages = c
		}
	}
}

// WithClock overrides the time source used for record timestamps and receipts.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates a new engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		matcher:     intent.New(),
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		entryNodeID: domain.EntryNodeID,
		messages:    DefaultCatalog(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EntryNode returns the node id conversations start at.
func (e *Engine) EntryNode() string {
	return e.entryNodeID
}

// Messages returns the system texts for lang.
func (e *Engine) Messages(lang string) Messages {
	return e.messages.For(lang)
}

// Start creates a conversation and enters the entry node.
func (e *Engine) Start(ctx context.Context, flow *domain.LanguageFlow, language string) (*domain.ConversationState, error) {
	state := domain.NewConversation(language, e.entryNodeID)
	if _, ok := flow.Node(e.entryNodeID); !ok {
		return nil, &domain.IntegrityError{
			Language: language,
			Ref:      e.entryNodeID,
			Reason:   "entry node not found",
		}
	}
	if err := e.enter(ctx, flow, state, nil, e.entryNodeID); err != nil {
		return nil, err
	}
	e.logger.Debug("conversation started", "conversation_id", state.ID, "language", language)
	return state, nil
}

// Restart discards the conversation and starts a fresh one in the same language.
func (e *Engine) Restart(ctx context.Context, flow *domain.LanguageFlow, state *domain.ConversationState) (*domain.ConversationState, error) {
	return e.Start(ctx, flow, state.Language)
}

// current resolves the node the state points at.
func (e *Engine) current(flow *domain.LanguageFlow, state *domain.ConversationState) (*domain.Node, error) {
	node, ok := flow.Node(state.CurrentNodeID)
	if !ok {
		return nil, &domain.IntegrityError{
			Language: state.Language,
			NodeID:   state.CurrentNodeID,
			Reason:   "current node not found",
		}
	}
	return node, nil
}

// enter moves next to targetID and appends the bot record of the target node.
// next must already be a private copy.
func (e *Engine) enter(ctx context.Context, flow *domain.LanguageFlow, next *domain.ConversationState, from *domain.Node, targetID string) error {
	target, ok := flow.Node(targetID)
	if !ok {
		ierr := &domain.IntegrityError{Language: next.Language, Ref: targetID, Reason: "unresolved reference"}
		if from != nil {
			ierr.NodeID = from.ID
		}
		e.logger.Error("transition failed", "error", ierr, "conversation_id", next.ID)
		return ierr
	}

	if from != nil {
		e.emitNodeLeave(ctx, next, from)
	}

	next.CurrentNodeID = target.ID
	rec := next.Append(domain.SpeakerBot, target.Content, e.now())
	rec.NodeID = target.ID
	rec.AudioKey = target.VoiceFile

	e.emitNodeEnter(ctx, next, target)
	return nil
}

// bot appends a system message that belongs to the current node.
func (e *Engine) bot(next *domain.ConversationState, content string) {
	rec := next.Append(domain.SpeakerBot, content, e.now())
	rec.NodeID = next.CurrentNodeID
}

func (e *Engine) user(next *domain.ConversationState, content string) {
	next.Append(domain.SpeakerUser, content, e.now())
}

func (e *Engine) base(state *domain.ConversationState, t domain.EventType) domain.EventBase {
	return domain.EventBase{
		Timestamp:      e.now(),
		Type:           t,
		ConversationID: state.ID,
		Language:       state.Language,
	}
}

func (e *Engine) emitNodeEnter(ctx context.Context, state *domain.ConversationState, node *domain.Node) {
	if e.hooks.OnNodeEnter == nil {
		return
	}
	e.hooks.OnNodeEnter(ctx, &domain.NodeEvent{
		EventBase: e.base(state, domain.EventNodeEnter),
		NodeID:    node.ID,
		NodeType:  node.Type,
	})
}

func (e *Engine) emitNodeLeave(ctx context.Context, state *domain.ConversationState, node *domain.Node) {
	if e.hooks.OnNodeLeave == nil {
		return
	}
	e.hooks.OnNodeLeave(ctx, &domain.NodeEvent{
		EventBase: e.base(state, domain.EventNodeLeave),
		NodeID:    node.ID,
		NodeType:  node.Type,
	})
}

func (e *Engine) emitMatch(ctx context.Context, state *domain.ConversationState, node *domain.Node, res intent.Result) {
	if e.hooks.OnMatch == nil {
		return
	}
	e.hooks.OnMatch(ctx, &domain.MatchEvent{
		EventBase:  e.base(state, domain.EventMatch),
		NodeID:     node.ID,
		Kind:       res.Kind,
		ChoiceID:   res.Choice.ID,
		Confidence: res.Confidence,
	})
}

func (e *Engine) emitReroot(ctx context.Context, state *domain.ConversationState, from, to string) {
	if e.hooks.OnReroot == nil {
		return
	}
	e.hooks.OnReroot(ctx, &domain.RerootEvent{
		EventBase:  e.base(state, domain.EventReroot),
		FromNodeID: from,
		ToNodeID:   to,
	})
}
