package runner_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/aretw0/kiosk/internal/runtime"
	"github.com/aretw0/kiosk/pkg/flow"
	"github.com/aretw0/kiosk/pkg/runner"
	"github.com/aretw0/kiosk/pkg/session"
	"github.com/aretw0/kiosk/pkg/voice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T, lang string, opts ...session.Option) *session.Session {
	t.Helper()
	s, err := session.New(context.Background(), runtime.NewEngine(), flow.Fallback(), lang, opts...)
	require.NoError(t, err)
	return s
}

func TestRunner_DepositToFinish(t *testing.T) {
	s := newSession(t, "en")
	script := strings.Join([]string{
		"",        // welcome
		"2",       // English
		"deposit", // matched directly
		"30000",
		"yes",
		"", // transaction complete
		"", // receipt
		"2", // finish
	}, "\n") + "\n"

	var out bytes.Buffer
	r := runner.New(s, runner.WithHandler(runner.NewTextHandler(strings.NewReader(script), &out)))
	require.NoError(t, r.Run(context.Background()))

	state := s.State()
	assert.Equal(t, "thank_you", state.CurrentNodeID)
	assert.Equal(t, "30000", state.UserInputs["depositAmount"])

	text := out.String()
	assert.Contains(t, text, "Welcome to our AI Assistant")
	assert.Contains(t, text, "  1) 日本語")
	assert.Contains(t, text, "[30000] (yes / no)")
	assert.Contains(t, text, "TXN-")
	assert.Contains(t, text, "PIN 1234")
	assert.Contains(t, text, "Thank you for using our service")
}

func TestRunner_NoticesAndRecovery(t *testing.T) {
	s := newSession(t, "en")
	script := "\n:select mortgage\n:frobnicate\n:restart fr\nquit\n"

	var out bytes.Buffer
	r := runner.New(s, runner.WithHandler(runner.NewTextHandler(strings.NewReader(script), &out)))
	require.NoError(t, r.Run(context.Background()))

	text := out.String()
	assert.Contains(t, text, "[!] "+runtime.DefaultCatalog()["en"].ActionRejected)
	assert.Contains(t, text, `unknown language: "fr"`)
	assert.Empty(t, s.Notices(), "shown notices are dismissed")
	assert.Equal(t, "language_selection", s.State().CurrentNodeID)
}

func TestRunner_RestartChangesLanguage(t *testing.T) {
	s := newSession(t, "en")

	var out bytes.Buffer
	r := runner.New(s, runner.WithHandler(runner.NewTextHandler(strings.NewReader(":restart ja\n"), &out)))
	require.NoError(t, r.Run(context.Background()), "EOF ends the chat")

	assert.Equal(t, "ja", s.Language())
	assert.Equal(t, "start", s.State().CurrentNodeID)
}

func TestRunner_Speech(t *testing.T) {
	var spoken bytes.Buffer
	s := newSession(t, "ja", session.WithVoice(voice.NewCoordinator(nil, voice.NewConsole(&spoken))))

	r := runner.New(s,
		runner.WithHandler(runner.NewTextHandler(strings.NewReader("\n"), &bytes.Buffer{})),
		runner.WithSpeech(true),
	)
	require.NoError(t, r.Run(context.Background()))

	assert.Equal(t, 2, strings.Count(spoken.String(), "🔊"), "one utterance per bot record")
	assert.True(t, strings.HasPrefix(spoken.String(), "🔊 [start_3] "))
	assert.Contains(t, spoken.String(), "🔊 [language_selection_3] ")
}

func TestRunner_JSON(t *testing.T) {
	s := newSession(t, "en")
	in := strings.Join([]string{
		`{"action":"advance"}`,
		`{"action":"select","value":"english"}`,
		`"redeposit"`,
		`{"action":"suggestion","value":"yes"}`,
		`{"action":"quit"}`,
	}, "\n") + "\n"

	var out bytes.Buffer
	r := runner.New(s, runner.WithHandler(runner.NewJSONHandler(strings.NewReader(in), &out)))
	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, "deposit_amount", s.State().CurrentNodeID)

	dec := json.NewDecoder(&out)
	var frames []runner.Frame
	for dec.More() {
		var f runner.Frame
		require.NoError(t, dec.Decode(&f))
		frames = append(frames, f)
	}
	require.Len(t, frames, 5)
	first := frames[0]
	assert.Equal(t, "view", first.Type)
	assert.Equal(t, "start", first.View.CurrentNode.ID)
	assert.Len(t, first.Records, 1)
	require.NotNil(t, frames[3].View.PendingConfirmation)
	assert.Equal(t, "deposit", frames[3].View.PendingConfirmation.Choice.ID)
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want runner.Command
	}{
		{"I want to deposit", runner.Command{Action: runner.ActionText, Value: "I want to deposit"}},
		{"", runner.Command{Action: runner.ActionText}},
		{"exit", runner.Command{Action: runner.ActionQuit}},
		{"QUIT", runner.Command{Action: runner.ActionQuit}},
		{":q", runner.Command{Action: runner.ActionQuit}},
		{":restart en", runner.Command{Action: runner.ActionRestart, Value: "en"}},
		{":lang ja", runner.Command{Action: runner.ActionRestart, Value: "ja"}},
		{":restart", runner.Command{Action: runner.ActionRestart}},
		{":select deposit", runner.Command{Action: runner.ActionSelect, Value: "deposit"}},
		{":next", runner.Command{Action: runner.ActionAdvance}},
		{":unknown", runner.Command{Action: runner.ActionText, Value: ":unknown"}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, runner.ParseCommand(tt.line))
		})
	}
}
