package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/kiosk/pkg/domain"
)

// GraphOverlay contains conversation data to visualize on the graph.
type GraphOverlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// OverlayFor builds the overlay of a conversation.
func OverlayFor(state *domain.ConversationState) *GraphOverlay {
	if state == nil {
		return nil
	}
	return &GraphOverlay{
		VisitedNodes: state.Visited(),
		CurrentNode:  state.CurrentNodeID,
	}
}

// GenerateMermaid produces a Mermaid flowchart of one language flow.
// It applies semantic styling:
// - Entry: ((Circle))
// - Choice: {Rhombus}
// - Input: [/Parallelogram/]
// - Confirmation: {{Hexagon}}
// - Message: [Rectangle]
// Choice edges are labelled with the choice text; over-limit edges are dotted.
func GenerateMermaid(flow *domain.LanguageFlow, entryNodeID string, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, id := range flow.NodeIDs() {
		node := flow.Nodes[id]
		if node == nil {
			continue
		}
		safeID := sanitizeMermaidID(id)

		opener, closer := "[", "]"
		switch {
		case id == entryNodeID:
			opener, closer = "((", "))"
		case node.Type == domain.NodeTypeChoice:
			opener, closer = "{", "}"
		case node.Type == domain.NodeTypeInput:
			opener, closer = "[/", "/]"
		case node.Type == domain.NodeTypeConfirmation:
			opener, closer = "{{", "}}"
		}

		label := id
		if node.Field != "" {
			label = fmt.Sprintf("%s <br/> %s", id, node.Field)
		}
		if node.Limit > 0 {
			label = fmt.Sprintf("%s <br/> ≤ %d", label, node.Limit)
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, label, closer)

		if node.Next != "" {
			fmt.Fprintf(&sb, "    %s --> %s\n", safeID, sanitizeMermaidID(node.Next))
		}
		if node.OverLimitNext != "" {
			fmt.Fprintf(&sb, "    %s -. \"over limit\" .-> %s\n", safeID, sanitizeMermaidID(node.OverLimitNext))
		}
		for _, c := range node.Choices {
			text := c.Text
			if text == "" {
				text = c.ID
			}
			fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", safeID, escapeLabel(text), sanitizeMermaidID(c.Next))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			// Nodes removed by a flow swap stay in the history; skip them.
			if _, ok := flow.Node(id); !ok {
				continue
			}
			safeID := sanitizeMermaidID(id)
			if !visitedSet[safeID] {
				visitedSet[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}

		if _, ok := flow.Node(overlay.CurrentNode); ok {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode))
		}
	}

	return sb.String()
}

func escapeLabel(s string) string {
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.ReplaceAll(s, "\n", " ")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
