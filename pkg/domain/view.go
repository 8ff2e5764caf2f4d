package domain

import "time"

// NoticeKind classifies a dismissible notice.
type NoticeKind string

const (
	NoticeSpeechRecognition NoticeKind = "speech_recognition"
	NoticeSpeechSynthesis   NoticeKind = "speech_synthesis"
	NoticeFlowChanged       NoticeKind = "flow_changed"
	NoticeInvalidInput      NoticeKind = "invalid_input"
)

// Notice is a non-fatal, user-visible message. It never changes the conversation.
type Notice struct {
	ID      string     `json:"id"`
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
}

// Receipt is the pseudo-QR payload shown at the end of a transaction.
// It is an identifier for the staff desk, not a cryptographic token.
type Receipt struct {
	TransactionID string            `json:"transactionId"`
	Password      string            `json:"password,omitempty"`
	ExpiresAt     time.Time         `json:"expiresAt"`
	Inputs        map[string]string `json:"inputs,omitempty"`
}

// View is the read-only snapshot handed to renderers.
type View struct {
	Language            string               `json:"language"`
	CurrentNode         *Node                `json:"currentNode"`
	Choices             []Choice             `json:"choices"`
	PendingConfirmation *PendingConfirmation `json:"pendingConfirmation,omitempty"`
	History             []Record             `json:"history"`
	UserInputs          map[string]string    `json:"userInputs"`

	// ConfirmValue is the captured value a confirmation node asks about.
	ConfirmValue string `json:"confirmValue,omitempty"`

	Terminal   bool     `json:"terminal"`
	VoiceInput bool     `json:"voiceInput"`
	Settings   Settings `json:"settings"`
	Receipt    *Receipt `json:"receipt,omitempty"`
	Notices    []Notice `json:"notices,omitempty"`
}
