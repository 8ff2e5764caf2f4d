package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/kiosk/internal/presentation/graph"
	"github.com/aretw0/kiosk/pkg/domain"
	"github.com/aretw0/kiosk/pkg/flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flowOf(nodes ...*domain.Node) *domain.LanguageFlow {
	lf := &domain.LanguageFlow{Nodes: map[string]*domain.Node{}}
	for _, n := range nodes {
		lf.Nodes[n.ID] = n
	}
	return lf
}

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		flow     *domain.LanguageFlow
		contains []string
	}{
		{
			name: "Node Shapes",
			flow: flowOf(
				&domain.Node{ID: "start", Type: domain.NodeTypeMessage, Next: "menu"},
				&domain.Node{ID: "menu", Type: domain.NodeTypeChoice, Choices: []domain.Choice{{ID: "a", Text: "A", Next: "amount"}}},
				&domain.Node{ID: "amount", Type: domain.NodeTypeInput, Field: "amt", Next: "check"},
				&domain.Node{ID: "check", Type: domain.NodeTypeConfirmation, Field: "amt", Next: "bye"},
				&domain.Node{ID: "bye", Type: domain.NodeTypeMessage},
			),
			contains: []string{
				`start(("start"))`,
				`menu{"menu"}`,
				`amount[/"amount <br/> amt"/]`,
				`check{{"check <br/> amt"}}`,
				`bye["bye"]`,
				"start --> menu",
				`menu -- "A" --> amount`,
			},
		},
		{
			name: "Over Limit Edge",
			flow: flowOf(
				&domain.Node{ID: "payout", Type: domain.NodeTypeInput, Field: "p", Limit: 200000, Next: "ok", OverLimitNext: "staff"},
			),
			contains: []string{
				"payout --> ok",
				`payout -. "over limit" .-> staff`,
				"≤ 200000",
			},
		},
		{
			name: "Label Escaping",
			flow: flowOf(
				&domain.Node{ID: "q-1", Type: domain.NodeTypeChoice, Choices: []domain.Choice{{ID: "x", Text: "say \"hi\"\nnow", Next: "z.z"}}},
			),
			contains: []string{
				`q_1 -- "say 'hi' now" --> z_z`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(tt.flow, domain.EntryNodeID, nil)
			assert.True(t, strings.HasPrefix(got, "graph TD\n"))
			for _, want := range tt.contains {
				assert.Contains(t, got, want)
			}
			assert.NotContains(t, got, "classDef")
		})
	}
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	lf, err := flow.Fallback().Language("en")
	require.NoError(t, err)

	state := domain.NewConversation("en", "transaction_type")
	state.History = []domain.Record{
		{Type: domain.SpeakerBot, NodeID: "start"},
		{Type: domain.SpeakerBot, NodeID: "language_selection"},
		{Type: domain.SpeakerBot, NodeID: "removed_by_swap"},
		{Type: domain.SpeakerBot, NodeID: "transaction_type"},
	}

	got := graph.GenerateMermaid(lf, domain.EntryNodeID, graph.OverlayFor(state))
	assert.Contains(t, got, "class start visited;")
	assert.Contains(t, got, "class language_selection visited;")
	assert.Contains(t, got, "class transaction_type current;")
	assert.NotContains(t, got, "removed_by_swap")
	assert.Equal(t, 1, strings.Count(got, "class start visited;"))
}

func TestOverlayFor_Nil(t *testing.T) {
	assert.Nil(t, graph.OverlayFor(nil))
}
