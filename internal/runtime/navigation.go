package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/kiosk/pkg/domain"
	"github.com/aretw0/kiosk/pkg/intent"
)

// SelectChoice picks a declared choice of the current choice node.
func (e *Engine) SelectChoice(ctx context.Context, flow *domain.LanguageFlow, state *domain.ConversationState, choiceID string) (*domain.ConversationState, error) {
	node, err := e.expect(flow, state, "selectChoice", domain.NodeTypeChoice)
	if err != nil {
		return nil, err
	}
	choice, ok := node.Choice(choiceID)
	if !ok {
		return nil, fmt.Errorf("%w: %q on node %q", domain.ErrUnknownChoice, choiceID, node.ID)
	}
	return e.selectChoice(ctx, flow, state, node, choice)
}

func (e *Engine) selectChoice(ctx context.Context, flow *domain.LanguageFlow, state *domain.ConversationState, node *domain.Node, choice domain.Choice) (*domain.ConversationState, error) {
	if choice.Next == "" {
		return nil, &domain.IntegrityError{
			Language: state.Language,
			NodeID:   node.ID,
			Ref:      choice.ID,
			Reason:   "choice has no next",
		}
	}

	next := state.Snapshot()
	e.user(next, choice.Text)
	next.PendingConfirmation = nil
	if err := e.enter(ctx, flow, next, node, choice.Next); err != nil {
		return nil, err
	}
	e.logger.Debug("choice selected", "conversation_id", state.ID, "node", node.ID, "choice", choice.ID)
	return next, nil
}

// SubmitText handles typed or transcribed input on the current node.
func (e *Engine) SubmitText(ctx context.Context, flow *domain.LanguageFlow, state *domain.ConversationState, text string) (*domain.ConversationState, error) {
	node, err := e.current(flow, state)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	msgs := e.messages.For(state.Language)

	if state.PendingConfirmation != nil {
		if accepted, ok := intent.Affirmation(text); ok {
			return e.respond(ctx, flow, state, node, accepted, text)
		}
		// Anything else is a new request: drop the suggestion and match afresh.
		cleared := state.Snapshot()
		cleared.PendingConfirmation = nil
		state = cleared
	}

	switch node.Type {
	case domain.NodeTypeChoice:
		return e.matchChoice(ctx, flow, state, node, text)
	case domain.NodeTypeInput:
		return e.SubmitInput(ctx, flow, state, text)
	case domain.NodeTypeConfirmation:
		if accepted, ok := intent.Affirmation(text); ok {
			return e.confirm(ctx, flow, state, node, accepted, text)
		}
		next := state.Snapshot()
		if text != "" {
			e.user(next, text)
		}
		e.bot(next, msgs.AnswerYesNo)
		return next, nil
	default:
		return nil, &domain.TransitionError{Op: "submitText", NodeID: node.ID, NodeType: node.Type}
	}
}

func (e *Engine) matchChoice(ctx context.Context, flow *domain.LanguageFlow, state *domain.ConversationState, node *domain.Node, text string) (*domain.ConversationState, error) {
	res := e.matcher.Match(text, node.Choices)
	e.emitMatch(ctx, state, node, res)
	e.logger.Debug("input matched",
		"conversation_id", state.ID,
		"node", node.ID,
		"kind", res.Kind,
		"choice", res.Choice.ID,
		"confidence", res.Confidence,
	)

	msgs := e.messages.For(state.Language)
	switch res.Kind {
	case domain.MatchDirect:
		return e.selectChoice(ctx, flow, state, node, res.Choice)
	case domain.MatchAmbiguous:
		next := state.Snapshot()
		e.user(next, text)
		next.PendingConfirmation = &domain.PendingConfirmation{
			Choice:     res.Choice,
			Confidence: res.Confidence,
		}
		e.bot(next, msgs.didYouMean(res.Choice.Text))
		return next, nil
	default:
		next := state.Snapshot()
		if text != "" {
			e.user(next, text)
		}
		e.bot(next, msgs.NotUnderstood)
		return next, nil
	}
}

// RespondToConfirmation answers a pending suggestion.
func (e *Engine) RespondToConfirmation(ctx context.Context, flow *domain.LanguageFlow, state *domain.ConversationState, accepted bool) (*domain.ConversationState, error) {
	node, err := e.current(flow, state)
	if err != nil {
		return nil, err
	}
	return e.respond(ctx, flow, state, node, accepted, "")
}

func (e *Engine) respond(ctx context.Context, flow *domain.LanguageFlow, state *domain.ConversationState, node *domain.Node, accepted bool, said string) (*domain.ConversationState, error) {
	pending := state.PendingConfirmation
	if pending == nil {
		return nil, domain.ErrNoPendingConfirmation
	}

	if accepted {
		choice := pending.Choice
		// Prefer the declaration of the current document over the stored copy.
		if declared, ok := node.Choice(choice.ID); ok {
			choice = declared
		}
		return e.selectChoice(ctx, flow, state, node, choice)
	}

	next := state.Snapshot()
	next.PendingConfirmation = nil
	if said == "" {
		said = e.messages.For(state.Language).answer(false)
	}
	e.user(next, said)
	e.bot(next, node.Content)
	return next, nil
}

// SubmitInput stores a value for the current input node and advances.
func (e *Engine) SubmitInput(ctx context.Context, flow *domain.LanguageFlow, state *domain.ConversationState, value string) (*domain.ConversationState, error) {
	node, err := e.expect(flow, state, "submitInput", domain.NodeTypeInput)
	if err != nil {
		return nil, err
	}

	value = strings.TrimSpace(value)
	if value == "" {
		next := state.Snapshot()
		e.bot(next, e.messages.For(state.Language).EmptyInput)
		return next, nil
	}

	target := node.Next
	if node.Limit > 0 && node.OverLimitNext != "" {
		amount, ok := ParseAmount(value)
		if !ok {
			// A limit cannot be checked on something that is not an amount.
			next := state.Snapshot()
			e.user(next, value)
			e.bot(next, e.messages.For(state.Language).invalidAmount())
			return next, nil
		}
		if amount > node.Limit {
			target = node.OverLimitNext
		}
	}
	if target == "" {
		return nil, &domain.IntegrityError{Language: state.Language, NodeID: node.ID, Reason: "input node has no next"}
	}

	field := fieldOf(node)
	next := state.Snapshot()
	next.UserInputs[field] = value
	next.FieldOrigins[field] = node.ID
	e.user(next, value)
	if err := e.enter(ctx, flow, next, node, target); err != nil {
		return nil, err
	}
	return next, nil
}

// SubmitConfirmation accepts or declines the value shown by a confirmation node.
// Declining returns to the input node that captured the field.
func (e *Engine) SubmitConfirmation(ctx context.Context, flow *domain.LanguageFlow, state *domain.ConversationState, accepted bool) (*domain.ConversationState, error) {
	node, err := e.expect(flow, state, "submitConfirmation", domain.NodeTypeConfirmation)
	if err != nil {
		return nil, err
	}
	return e.confirm(ctx, flow, state, node, accepted, "")
}

func (e *Engine) confirm(ctx context.Context, flow *domain.LanguageFlow, state *domain.ConversationState, node *domain.Node, accepted bool, said string) (*domain.ConversationState, error) {
	target := node.Next
	if !accepted {
		origin, err := e.originOf(flow, state, node)
		if err != nil {
			return nil, err
		}
		target = origin
	}
	if target == "" {
		return nil, &domain.IntegrityError{Language: state.Language, NodeID: node.ID, Reason: "confirmation node has no next"}
	}

	next := state.Snapshot()
	if said == "" {
		said = e.messages.For(state.Language).answer(accepted)
	}
	e.user(next, said)
	if err := e.enter(ctx, flow, next, node, target); err != nil {
		return nil, err
	}
	return next, nil
}

func (e *Engine) originOf(flow *domain.LanguageFlow, state *domain.ConversationState, node *domain.Node) (string, error) {
	if id, ok := state.FieldOrigins[node.Field]; ok && id != "" {
		return id, nil
	}
	if input, ok := flow.InputFor(node.Field); ok {
		return input.ID, nil
	}
	return "", &domain.IntegrityError{
		Language: state.Language,
		NodeID:   node.ID,
		Ref:      node.Field,
		Reason:   "no input node captures the confirmed field",
	}
}

// Advance continues from a message node to its next node.
func (e *Engine) Advance(ctx context.Context, flow *domain.LanguageFlow, state *domain.ConversationState) (*domain.ConversationState, error) {
	node, err := e.expect(flow, state, "advance", domain.NodeTypeMessage)
	if err != nil {
		return nil, err
	}
	if node.Next == "" {
		return nil, domain.ErrTerminal
	}
	next := state.Snapshot()
	if err := e.enter(ctx, flow, next, node, node.Next); err != nil {
		return nil, err
	}
	return next, nil
}

// MarkSpoken flags a record as played. The flag never flips back.
func (e *Engine) MarkSpoken(state *domain.ConversationState, recordID string) (*domain.ConversationState, error) {
	for i, r := range state.History {
		if r.ID != recordID {
			continue
		}
		if r.HasBeenSpoken {
			return state, nil
		}
		next := state.Snapshot()
		next.History[i].HasBeenSpoken = true
		return next, nil
	}
	return nil, fmt.Errorf("record %q not found in conversation %q", recordID, state.ID)
}

func (e *Engine) expect(flow *domain.LanguageFlow, state *domain.ConversationState, op string, t domain.NodeType) (*domain.Node, error) {
	node, err := e.current(flow, state)
	if err != nil {
		return nil, err
	}
	if node.Type != t {
		return nil, &domain.TransitionError{Op: op, NodeID: node.ID, NodeType: node.Type}
	}
	return node, nil
}

func fieldOf(node *domain.Node) string {
	if node.Field != "" {
		return node.Field
	}
	return node.ID
}
