package dsl_test

import (
	"context"
	"testing"

	"github.com/aretw0/kiosk"
	"github.com/aretw0/kiosk/pkg/adapters/memory"
	"github.com/aretw0/kiosk/pkg/domain"
	"github.com/aretw0/kiosk/pkg/dsl"
	"github.com/aretw0/kiosk/pkg/flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func depositFlow() *dsl.Builder {
	b := dsl.New().Store("DSL Branch").Version("2.0")
	en := b.Language("en")

	en.Add("start").
		Choice("What would you like to do?").
		Option("deposit", "Deposit", "deposit_amount", "deposit").
		Option("staff", "Call staff", "staff_call", "help").Except("no help")

	en.Add("deposit_amount").
		Input("How much?", "amount").
		Label("Amount").
		Limit(200000, "staff_call").
		Go("thanks")

	en.Add("thanks").Message("Thank you.").Voice("thanks_1")
	en.Add("staff_call").Message("A member of staff is on the way.")
	return b
}

func TestBuilder_SimpleFlow(t *testing.T) {
	doc, err := depositFlow().Build()
	require.NoError(t, err)

	assert.Equal(t, "DSL Branch", doc.StoreName)
	assert.Equal(t, "2.0", doc.Version)
	lf, err := doc.Language("en")
	require.NoError(t, err)
	assert.Equal(t, flow.DefaultSettings(), lf.Settings)

	start := lf.Nodes["start"]
	assert.Equal(t, domain.NodeTypeChoice, start.Type)
	require.Len(t, start.Choices, 2)
	assert.Equal(t, []string{"no help"}, start.Choices[1].ExcludeKeywords)
	assert.Empty(t, start.Choices[0].ExcludeKeywords)

	amount := lf.Nodes["deposit_amount"]
	assert.Equal(t, domain.NodeTypeInput, amount.Type)
	assert.Equal(t, "Amount", amount.Prompt())
	assert.Equal(t, []string{"thanks", "staff_call"}, amount.References())
	assert.True(t, lf.Nodes["thanks"].IsTerminal())
}

func TestBuilder_AddReturnsExistingNode(t *testing.T) {
	b := dsl.New()
	en := b.Language("en")
	en.Add("start").Message("Hello").Go("end")
	en.Add("start").Terminal()
	en.Add("end").Message("Bye")
	assert.Same(t, en, b.Language("en"))

	doc, err := b.Build()
	require.NoError(t, err)
	assert.True(t, doc.Languages["en"].Nodes["start"].IsTerminal())
}

func TestBuilder_RejectsDanglingReferences(t *testing.T) {
	b := dsl.New()
	b.Language("en").Add("start").Message("Hello").Go("missing")

	_, err := b.Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIntegrity)

	_, err = dsl.New().Build()
	assert.ErrorIs(t, err, domain.ErrIntegrity, "a document needs at least one language")
}

func TestBuilder_SourceRunsThroughTheLoader(t *testing.T) {
	ctx := context.Background()
	src, err := depositFlow().Source()
	require.NoError(t, err)

	k := kiosk.New(memory.NewSource(src))
	_, err = k.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, "DSL Branch", k.Document().StoreName)

	s, err := k.NewSession(ctx, "en")
	require.NoError(t, err)
	require.NoError(t, s.SelectChoice(ctx, "deposit"))
	require.NoError(t, s.SubmitInput(ctx, "250,000"))
	assert.Equal(t, "staff_call", s.State().CurrentNodeID, "over the limit")

	require.NoError(t, s.Restart(ctx, "en"))
	require.NoError(t, s.SelectChoice(ctx, "deposit"))
	require.NoError(t, s.SubmitInput(ctx, "30000"))
	assert.Equal(t, "thanks", s.State().CurrentNodeID)
	assert.Equal(t, "30000", s.State().UserInputs["amount"])
}
