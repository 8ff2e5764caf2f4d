package domain

import (
	"errors"
	"fmt"
)

// ErrIntegrity marks configuration integrity failures: a reference that does
// not resolve, a missing entry node or a malformed node.
var ErrIntegrity = errors.New("configuration integrity error")

// ErrUnknownLanguage is returned when a flow has no graph for the requested language.
var ErrUnknownLanguage = errors.New("unknown language")

// ErrUnknownChoice is returned when a choice id is not declared on the current node.
var ErrUnknownChoice = errors.New("unknown choice")

// ErrNoPendingConfirmation is returned when a suggestion is answered but none is pending.
var ErrNoPendingConfirmation = errors.New("no pending confirmation")

// ErrTerminal is returned when a transition is requested on a terminal node.
var ErrTerminal = errors.New("conversation reached a terminal node")

// ErrLockNotAcquired is returned when a distributed lock is held by someone else.
var ErrLockNotAcquired = errors.New("lock not acquired")

// ErrCacheMiss is returned by a flow cache that holds no document.
var ErrCacheMiss = errors.New("flow cache miss")

// ErrSourceNotWritable is returned when a flow source cannot accept a replacement.
var ErrSourceNotWritable = errors.New("source is not writable")

// IntegrityError describes a configuration integrity failure.
type IntegrityError struct {
	Language string
	NodeID   string
	Ref      string
	Reason   string
}

func (e *IntegrityError) Error() string {
	msg := fmt.Sprintf("%s: %s", ErrIntegrity, e.Reason)
	if e.Language != "" {
		msg += fmt.Sprintf(" (lang=%s", e.Language)
		if e.NodeID != "" {
			msg += fmt.Sprintf(" node=%s", e.NodeID)
		}
		if e.Ref != "" {
			msg += fmt.Sprintf(" ref=%s", e.Ref)
		}
		msg += ")"
	}
	return msg
}

func (e *IntegrityError) Unwrap() error { return ErrIntegrity }

// LanguageError is returned when a language is not present in a FlowDocument.
type LanguageError struct {
	Language string
}

func (e *LanguageError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnknownLanguage, e.Language)
}

func (e *LanguageError) Unwrap() error { return ErrUnknownLanguage }

// TransitionError is returned when an operation does not apply to the current node.
type TransitionError struct {
	Op       string
	NodeID   string
	NodeType NodeType
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s is not allowed on %s node %q", e.Op, e.NodeType, e.NodeID)
}

// IsRecoverable reports whether err leaves the conversation usable, so the
// caller can keep the previous state and show a notice.
func IsRecoverable(err error) bool {
	var te *TransitionError
	return errors.As(err, &te) ||
		errors.Is(err, ErrUnknownChoice) ||
		errors.Is(err, ErrNoPendingConfirmation) ||
		errors.Is(err, ErrTerminal)
}
