package domain

// StateDiff represents the changes between two conversation states.
// It is serialized to JSON for partial updates on subscribed renderers.
type StateDiff struct {
	// ConversationID is always present to identify the target.
	ConversationID string `json:"conversation_id"`

	CurrentNodeID *string `json:"current_node_id,omitempty"`

	// Inputs contains only changed, added or deleted fields.
	// For deletions, the key is present with an empty value.
	Inputs map[string]string `json:"inputs,omitempty"`

	// Appended contains the records added to the history.
	Appended []Record `json:"appended,omitempty"`

	// Spoken lists records whose speech flag flipped.
	Spoken []string `json:"spoken,omitempty"`

	// Pending is set when the pending confirmation changed. A cleared
	// confirmation is reported through PendingCleared.
	Pending        *PendingConfirmation `json:"pending,omitempty"`
	PendingCleared bool                 `json:"pending_cleared,omitempty"`
}

// Diff calculates the difference between oldState and newState.
// If oldState is nil, it returns a diff representing the entire newState.
// It returns nil when nothing changed.
func Diff(oldState, newState *ConversationState) *StateDiff {
	if newState == nil {
		return nil
	}

	diff := &StateDiff{ConversationID: newState.ID}

	if oldState == nil || oldState.CurrentNodeID != newState.CurrentNodeID {
		id := newState.CurrentNodeID
		diff.CurrentNodeID = &id
	}

	diff.Inputs = diffInputs(oldState, newState)
	diff.Appended, diff.Spoken = diffHistory(oldState, newState)

	switch {
	case newState.PendingConfirmation != nil:
		if oldState == nil || oldState.PendingConfirmation == nil ||
			oldState.PendingConfirmation.Choice.ID != newState.PendingConfirmation.Choice.ID {
			p := *newState.PendingConfirmation
			diff.Pending = &p
		}
	case oldState != nil && oldState.PendingConfirmation != nil:
		diff.PendingCleared = true
	}

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffInputs(old, new *ConversationState) map[string]string {
	delta := make(map[string]string)

	if old == nil {
		for k, v := range new.UserInputs {
			delta[k] = v
		}
	} else {
		for k, v := range new.UserInputs {
			if ov, ok := old.UserInputs[k]; !ok || ov != v {
				delta[k] = v
			}
		}
		for k := range old.UserInputs {
			if _, ok := new.UserInputs[k]; !ok {
				delta[k] = ""
			}
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}

// diffHistory assumes append-only history. Records present in both states are
// only compared for their speech flag.
func diffHistory(old, new *ConversationState) ([]Record, []string) {
	if len(new.History) == 0 {
		return nil, nil
	}
	if old == nil {
		return new.History, nil
	}

	var spoken []string
	shared := min(len(old.History), len(new.History))
	for i := 0; i < shared; i++ {
		if !old.History[i].HasBeenSpoken && new.History[i].HasBeenSpoken {
			spoken = append(spoken, new.History[i].ID)
		}
	}

	var appended []Record
	if len(new.History) > len(old.History) {
		appended = new.History[len(old.History):]
	}
	return appended, spoken
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *StateDiff) IsEmpty() bool {
	return d.CurrentNodeID == nil &&
		len(d.Inputs) == 0 &&
		len(d.Appended) == 0 &&
		len(d.Spoken) == 0 &&
		d.Pending == nil &&
		!d.PendingCleared
}
