package runtime

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/aretw0/kiosk/pkg/domain"
)

// Render projects the state into a read-only View. It never transitions.
func (e *Engine) Render(flow *domain.LanguageFlow, state *domain.ConversationState) (*domain.View, error) {
	node, err := e.current(flow, state)
	if err != nil {
		return nil, err
	}

	current := *node
	current.Choices = slices.Clone(node.Choices)

	view := &domain.View{
		Language:    state.Language,
		CurrentNode: &current,
		Choices:     []domain.Choice{},
		History:     slices.Clone(state.History),
		UserInputs:  maps.Clone(state.UserInputs),
		Terminal:    node.IsTerminal(),
		Settings:    flow.Settings,
	}
	if view.History == nil {
		view.History = []domain.Record{}
	}
	if view.UserInputs == nil {
		view.UserInputs = map[string]string{}
	}
	if state.PendingConfirmation != nil {
		p := *state.PendingConfirmation
		view.PendingConfirmation = &p
	}

	switch node.Type {
	case domain.NodeTypeChoice:
		view.Choices = slices.Clone(node.Choices)
		view.VoiceInput = len(node.Choices) > 0
	case domain.NodeTypeInput:
		view.VoiceInput = true
	case domain.NodeTypeConfirmation:
		view.ConfirmValue = state.UserInputs[node.Field]
	}

	if node.ID == flow.Settings.ReceiptNode() {
		view.Receipt = e.receipt(flow.Settings, state, node.ID)
	}
	return view, nil
}

// receipt derives the pseudo-QR payload from the record that entered the
// receipt node, so repeated renders show the same transaction id.
func (e *Engine) receipt(settings domain.Settings, state *domain.ConversationState, nodeID string) *domain.Receipt {
	issued := e.now()
	for i := len(state.History) - 1; i >= 0; i-- {
		r := state.History[i]
		if r.Type == domain.SpeakerBot && r.NodeID == nodeID && !r.Timestamp.IsZero() {
			issued = r.Timestamp
			break
		}
	}
	return IssueReceipt(settings, state.UserInputs, issued)
}

// IssueReceipt builds the transaction receipt shown at the end of a flow.
// The id is "TXN-" followed by the last 8 digits of the epoch milliseconds.
func IssueReceipt(settings domain.Settings, inputs map[string]string, issued time.Time) *domain.Receipt {
	ms := fmt.Sprintf("%08d", issued.UnixMilli())
	expiry := time.Duration(settings.QRExpiryMinutes) * time.Minute
	return &domain.Receipt{
		TransactionID: "TXN-" + ms[len(ms)-8:],
		Password:      settings.QRPassword,
		ExpiresAt:     issued.Add(expiry),
		Inputs:        maps.Clone(inputs),
	}
}
