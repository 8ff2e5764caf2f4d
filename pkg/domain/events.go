package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeEnter EventType = "node_enter"
	EventNodeLeave EventType = "node_leave"
	EventMatch     EventType = "match"
	EventReroot    EventType = "reroot"
)

// MatchKind is the confidence band produced by the intent matcher.
type MatchKind string

const (
	MatchDirect    MatchKind = "direct"
	MatchAmbiguous MatchKind = "ambiguous"
	MatchNone      MatchKind = "none"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp      time.Time `json:"timestamp"`
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversation_id"`
	Language       string    `json:"language"`
}

// NodeEvent represents entry or exit from a node.
type NodeEvent struct {
	EventBase
	NodeID   string   `json:"node_id"`
	NodeType NodeType `json:"node_type"`
}

// MatchEvent reports the verdict of free-text matching on a choice node.
type MatchEvent struct {
	EventBase
	NodeID     string    `json:"node_id"`
	Kind       MatchKind `json:"kind"`
	ChoiceID   string    `json:"choice_id,omitempty"`
	Confidence float64   `json:"confidence"`
}

// RerootEvent reports a conversation moved back to the entry node after a
// document swap removed its current node.
type RerootEvent struct {
	EventBase
	FromNodeID string `json:"from_node_id"`
	ToNodeID   string `json:"to_node_id"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnNodeEnter func(context.Context, *NodeEvent)
	OnNodeLeave func(context.Context, *NodeEvent)
	OnMatch     func(context.Context, *MatchEvent)
	OnReroot    func(context.Context, *RerootEvent)
}
