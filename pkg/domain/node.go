package domain

// NodeType defines the control flow behavior of a node.
type NodeType string

const (
	// NodeTypeMessage displays content and continues on Advance.
	NodeTypeMessage NodeType = "message"
	// NodeTypeChoice presents an ordered set of choices and waits for a selection.
	NodeTypeChoice NodeType = "choice"
	// NodeTypeInput captures a free value into a named field.
	NodeTypeInput NodeType = "input"
	// NodeTypeConfirmation asks the user to confirm a previously captured field.
	NodeTypeConfirmation NodeType = "confirmation"
)

// Valid reports whether t is one of the known node types.
func (t NodeType) Valid() bool {
	switch t {
	case NodeTypeMessage, NodeTypeChoice, NodeTypeInput, NodeTypeConfirmation:
		return true
	}
	return false
}

// Node represents one step of the dialogue graph.
type Node struct {
	ID      string   `json:"id" yaml:"id"`
	Type    NodeType `json:"type" yaml:"type"`
	Content string   `json:"content" yaml:"content"`

	// Next is the follow-up node. Empty means terminal (unless Choices are set).
	Next string `json:"next,omitempty" yaml:"next,omitempty"`

	// VoiceFile is an opaque audio key, not a filesystem path.
	VoiceFile string `json:"voiceFile,omitempty" yaml:"voiceFile,omitempty"`

	Choices []Choice `json:"choices,omitempty" yaml:"choices,omitempty"`

	// Input and confirmation nodes
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
	Field string `json:"field,omitempty" yaml:"field,omitempty"`

	// Limit is an optional numeric ceiling for input nodes. Values above it
	// are routed to OverLimitNext instead of Next.
	Limit         int64  `json:"limit,omitempty" yaml:"limit,omitempty"`
	OverLimitNext string `json:"overLimitNext,omitempty" yaml:"overLimitNext,omitempty"`
}

// Choice is a selectable branch of a choice node.
type Choice struct {
	ID              string   `json:"id" yaml:"id"`
	Text            string   `json:"text" yaml:"text"`
	Keywords        []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	ExcludeKeywords []string `json:"excludeKeywords,omitempty" yaml:"excludeKeywords,omitempty"`
	Next            string   `json:"next" yaml:"next"`
}

// IsTerminal reports whether the node ends the reachable conversation.
func (n *Node) IsTerminal() bool {
	return n.Next == "" && len(n.Choices) == 0
}

// Prompt returns the text shown for input-like nodes, preferring the label.
func (n *Node) Prompt() string {
	if n.Label != "" {
		return n.Label
	}
	return n.Content
}

// Choice returns the choice with the given id.
func (n *Node) Choice(id string) (Choice, bool) {
	for _, c := range n.Choices {
		if c.ID == id {
			return c, true
		}
	}
	return Choice{}, false
}

// References lists every node id this node can transition to, in declaration order.
func (n *Node) References() []string {
	var refs []string
	if n.Next != "" {
		refs = append(refs, n.Next)
	}
	if n.OverLimitNext != "" {
		refs = append(refs, n.OverLimitNext)
	}
	for _, c := range n.Choices {
		refs = append(refs, c.Next)
	}
	return refs
}
