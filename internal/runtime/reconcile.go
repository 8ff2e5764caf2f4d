package runtime

import (
	"context"

	"github.com/aretw0/kiosk/pkg/domain"
)

// Reconcile validates a state against a freshly swapped flow.
//
// When the current node no longer exists, the conversation is re-rooted at the
// entry node: the pending suggestion is dropped, captured inputs are kept, and
// a notice record is appended before the entry node's own record. A pending
// suggestion whose target vanished is dropped as well.
//
// The returned bool reports whether the state changed.
func (e *Engine) Reconcile(ctx context.Context, flow *domain.LanguageFlow, state *domain.ConversationState) (*domain.ConversationState, bool, error) {
	node, ok := flow.Node(state.CurrentNodeID)
	if ok {
		p := state.PendingConfirmation
		if p == nil {
			return state, false, nil
		}
		choice, declared := node.Choice(p.Choice.ID)
		if _, resolves := flow.Node(choice.Next); declared && resolves {
			return state, false, nil
		}
		next := state.Snapshot()
		next.PendingConfirmation = nil
		e.bot(next, node.Content)
		e.logger.Info("pending suggestion dropped after flow swap",
			"conversation_id", state.ID, "node", node.ID, "choice", p.Choice.ID)
		return next, true, nil
	}

	if _, ok := flow.Node(e.entryNodeID); !ok {
		return nil, false, &domain.IntegrityError{
			Language: state.Language,
			Ref:      e.entryNodeID,
			Reason:   "entry node not found",
		}
	}

	next := state.Snapshot()
	next.PendingConfirmation = nil
	notice := next.Append(domain.SpeakerBot, e.messages.For(state.Language).FlowChanged, e.now())
	notice.HasBeenSpoken = true
	if err := e.enter(ctx, flow, next, nil, e.entryNodeID); err != nil {
		return nil, false, err
	}

	e.logger.Warn("conversation re-rooted after flow swap",
		"conversation_id", state.ID,
		"stale_node", state.CurrentNodeID,
		"entry", e.entryNodeID,
	)
	e.emitReroot(ctx, next, state.CurrentNodeID, e.entryNodeID)
	return next, true, nil
}
