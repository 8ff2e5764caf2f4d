package dsl

import "github.com/aretw0/kiosk/pkg/domain"

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	node domain.Node
}

// Message sets the content of the node and marks it as a message node.
func (n *NodeBuilder) Message(content string) *NodeBuilder {
	n.node.Type = domain.NodeTypeMessage
	n.node.Content = content
	return n
}

// Choice sets the content of the node and marks it as a choice node.
func (n *NodeBuilder) Choice(content string) *NodeBuilder {
	n.node.Type = domain.NodeTypeChoice
	n.node.Content = content
	return n
}

// Input marks the node as capturing a value into field.
func (n *NodeBuilder) Input(content, field string) *NodeBuilder {
	n.node.Type = domain.NodeTypeInput
	n.node.Content = content
	n.node.Field = field
	return n
}

// Confirm marks the node as confirming a previously captured field.
func (n *NodeBuilder) Confirm(content, field string) *NodeBuilder {
	n.node.Type = domain.NodeTypeConfirmation
	n.node.Content = content
	n.node.Field = field
	return n
}

// Label sets the prompt shown instead of the content on input-like nodes.
func (n *NodeBuilder) Label(label string) *NodeBuilder {
	n.node.Label = label
	return n
}

// Voice sets the audio key played for the node.
func (n *NodeBuilder) Voice(key string) *NodeBuilder {
	n.node.VoiceFile = key
	return n
}

// Option appends a choice leading to next, matched by keywords.
func (n *NodeBuilder) Option(id, text, next string, keywords ...string) *NodeBuilder {
	n.node.Choices = append(n.node.Choices, domain.Choice{
		ID:       id,
		Text:     text,
		Keywords: keywords,
		Next:     next,
	})
	return n
}

// Except adds exclusion keywords to the last option.
func (n *NodeBuilder) Except(keywords ...string) *NodeBuilder {
	if len(n.node.Choices) == 0 {
		return n
	}
	last := &n.node.Choices[len(n.node.Choices)-1]
	last.ExcludeKeywords = append(last.ExcludeKeywords, keywords...)
	return n
}

// Go sets the follow-up node.
func (n *NodeBuilder) Go(target string) *NodeBuilder {
	n.node.Next = target
	return n
}

// Limit routes numeric input above ceiling to target.
func (n *NodeBuilder) Limit(ceiling int64, target string) *NodeBuilder {
	n.node.Limit = ceiling
	n.node.OverLimitNext = target
	return n
}

// Terminal marks the node as the end of the flow.
func (n *NodeBuilder) Terminal() *NodeBuilder {
	n.node.Next = ""
	return n
}

// Build returns the underlying domain.Node.
func (n *NodeBuilder) Build() domain.Node {
	n2 := n.node
	n2.Choices = append([]domain.Choice(nil), n.node.Choices...)
	return n2
}
