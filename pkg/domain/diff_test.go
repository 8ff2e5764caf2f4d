package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseState() *ConversationState {
	return &ConversationState{
		ID:            "conv-1",
		Language:      "ja",
		CurrentNodeID: "transaction_type",
		History: []Record{
			{ID: "r1", Type: SpeakerBot, Content: "ご希望の取引を選択してください。"},
		},
		UserInputs: map[string]string{"depositAmount": "1000"},
	}
}

func TestDiff(t *testing.T) {
	t.Run("Initial Load (Old is Nil)", func(t *testing.T) {
		s := baseState()
		d := Diff(nil, s)
		require.NotNil(t, d)
		assert.Equal(t, "conv-1", d.ConversationID)
		require.NotNil(t, d.CurrentNodeID)
		assert.Equal(t, "transaction_type", *d.CurrentNodeID)
		assert.Len(t, d.Appended, 1)
		assert.Equal(t, map[string]string{"depositAmount": "1000"}, d.Inputs)
	})

	t.Run("No Changes", func(t *testing.T) {
		assert.Nil(t, Diff(baseState(), baseState()))
	})

	t.Run("Node Change and Append", func(t *testing.T) {
		old := baseState()
		next := old.Snapshot()
		next.CurrentNodeID = "deposit_amount"
		next.History = append(next.History, Record{ID: "r2", Type: SpeakerUser, Content: "預入"})

		d := Diff(old, next)
		require.NotNil(t, d)
		assert.Equal(t, "deposit_amount", *d.CurrentNodeID)
		require.Len(t, d.Appended, 1)
		assert.Equal(t, "r2", d.Appended[0].ID)
		assert.Nil(t, d.Inputs)
	})

	t.Run("Inputs Modified and Deleted", func(t *testing.T) {
		old := baseState()
		old.UserInputs["accountNumber"] = "1234567"
		next := old.Snapshot()
		next.UserInputs["depositAmount"] = "30000"
		delete(next.UserInputs, "accountNumber")

		d := Diff(old, next)
		require.NotNil(t, d)
		assert.Equal(t, map[string]string{"depositAmount": "30000", "accountNumber": ""}, d.Inputs)
	})

	t.Run("Spoken Flag", func(t *testing.T) {
		old := baseState()
		next := old.Snapshot()
		next.History[0].HasBeenSpoken = true

		d := Diff(old, next)
		require.NotNil(t, d)
		assert.Equal(t, []string{"r1"}, d.Spoken)
		assert.Nil(t, d.CurrentNodeID)
	})

	t.Run("Pending Set and Cleared", func(t *testing.T) {
		old := baseState()
		next := old.Snapshot()
		next.PendingConfirmation = &PendingConfirmation{Choice: Choice{ID: "deposit"}, Confidence: 0.4}

		d := Diff(old, next)
		require.NotNil(t, d)
		require.NotNil(t, d.Pending)
		assert.Equal(t, "deposit", d.Pending.Choice.ID)

		cleared := Diff(next, old)
		require.NotNil(t, cleared)
		assert.True(t, cleared.PendingCleared)
	})
}

func TestDiff_JSON(t *testing.T) {
	old := baseState()
	next := old.Snapshot()
	next.CurrentNodeID = "deposit_amount"

	data, err := json.Marshal(Diff(old, next))
	require.NoError(t, err)
	assert.JSONEq(t, `{"conversation_id":"conv-1","current_node_id":"deposit_amount"}`, string(data))
}
