package domain

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Speaker identifies who produced a history record.
type Speaker string

const (
	SpeakerUser Speaker = "user"
	SpeakerBot  Speaker = "bot"
)

// Record is one entry of the conversation history.
// Insertion order is the display and playback order.
type Record struct {
	ID            string    `json:"id"`
	Type          Speaker   `json:"type"`
	Content       string    `json:"content"`
	NodeID        string    `json:"nodeId,omitempty"`
	AudioKey      string    `json:"audioKey,omitempty"`
	HasBeenSpoken bool      `json:"hasBeenSpoken"`
	Timestamp     time.Time `json:"timestamp"`
}

// PendingConfirmation is set when a choice was matched with medium confidence
// and the user has to confirm the suggestion.
type PendingConfirmation struct {
	Choice     Choice  `json:"choice"`
	Confidence float64 `json:"confidence"`
}

// ConversationState represents the snapshot of one conversation.
// Transitions never mutate a state in place; they return a modified clone.
type ConversationState struct {
	ID       string `json:"id"`
	Language string `json:"language"`

	// CurrentNodeID is the identifier of the active node.
	CurrentNodeID string `json:"currentNodeId"`

	// History is append-only.
	History []Record `json:"history"`

	// UserInputs holds captured field values. Resubmission overwrites.
	UserInputs map[string]string `json:"userInputs"`

	// FieldOrigins maps a field to the input node that captured it.
	FieldOrigins map[string]string `json:"fieldOrigins,omitempty"`

	PendingConfirmation *PendingConfirmation `json:"pendingConfirmation,omitempty"`
}

// NewConversation creates a clean state positioned at the entry node.
func NewConversation(language, entryNodeID string) *ConversationState {
	return &ConversationState{
		ID:            uuid.NewString(),
		Language:      language,
		CurrentNodeID: entryNodeID,
		History:       []Record{},
		UserInputs:    make(map[string]string),
		FieldOrigins:  make(map[string]string),
	}
}

// Snapshot returns a deep copy of the state.
func (s *ConversationState) Snapshot() *ConversationState {
	if s == nil {
		return nil
	}
	c := *s
	c.History = slices.Clone(s.History)
	if c.History == nil {
		c.History = []Record{}
	}
	c.UserInputs = maps.Clone(s.UserInputs)
	if c.UserInputs == nil {
		c.UserInputs = make(map[string]string)
	}
	c.FieldOrigins = maps.Clone(s.FieldOrigins)
	if c.FieldOrigins == nil {
		c.FieldOrigins = make(map[string]string)
	}
	if s.PendingConfirmation != nil {
		p := *s.PendingConfirmation
		c.PendingConfirmation = &p
	}
	return &c
}

// AwaitingConfirmation reports whether a suggested choice waits for a yes/no.
func (s *ConversationState) AwaitingConfirmation() bool {
	return s.PendingConfirmation != nil
}

// Append adds a record to the history and returns it.
// The pointer is only valid until the next Append.
func (s *ConversationState) Append(speaker Speaker, content string, at time.Time) *Record {
	s.History = append(s.History, Record{
		ID:        uuid.NewString(),
		Type:      speaker,
		Content:   content,
		Timestamp: at,
	})
	return &s.History[len(s.History)-1]
}

// Unspoken returns the index of the last bot record that was not played yet, or -1.
func (s *ConversationState) Unspoken() int {
	if len(s.History) == 0 {
		return -1
	}
	last := len(s.History) - 1
	r := s.History[last]
	if r.Type != SpeakerBot || r.HasBeenSpoken || r.Content == "" {
		return -1
	}
	return last
}

// Visited returns the distinct node ids that appear in the bot history.
func (s *ConversationState) Visited() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, r := range s.History {
		if r.NodeID != "" && !seen[r.NodeID] {
			seen[r.NodeID] = true
			ids = append(ids, r.NodeID)
		}
	}
	return ids
}
