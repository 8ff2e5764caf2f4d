package flow

import (
	"errors"
	"testing"

	"github.com/aretw0/kiosk/internal/validator"
	"github.com/aretw0/kiosk/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var documentedNodes = []string{
	"start", "language_selection", "transaction_type",
	"deposit_amount", "deposit_confirmation",
	"payout_amount", "payout_limit_check", "payout_confirmation",
	"transfer_country", "financial_institution", "financial_search",
	"branch_search_method", "branch_name_search", "branch_code_search",
	"account_number", "transfer_amount", "transfer_limit_check", "transfer_confirmation",
	"transfer_not_available", "transaction_complete", "qr_code_display",
	"staff_assistance_amount", "call_staff", "end_options", "thank_you",
}

func TestFallback_Integrity(t *testing.T) {
	doc := Fallback()
	require.NoError(t, validator.ValidateDocument(doc, domain.EntryNodeID))
	assert.Equal(t, []string{"en", "ja"}, doc.LanguageCodes())

	for _, lang := range []string{"ja", "en"} {
		t.Run(lang, func(t *testing.T) {
			lf, err := doc.Language(lang)
			require.NoError(t, err)
			assert.True(t, lf.LanguageSelection)
			assert.Equal(t, 30, lf.Settings.QRExpiryMinutes)
			assert.Equal(t, "1234", lf.Settings.QRPassword)

			for id, node := range lf.Nodes {
				for _, ref := range node.References() {
					_, ok := lf.Nodes[ref]
					assert.True(t, ok, "%s: %s references missing %q", lang, id, ref)
				}
			}

			reachable := validator.Reachable(lf, domain.EntryNodeID)
			for _, id := range documentedNodes {
				assert.True(t, reachable[id], "%s: %q not reachable from start", lang, id)
			}
			assert.Len(t, lf.Nodes, len(documentedNodes))
		})
	}
}

func TestFallback_Content(t *testing.T) {
	doc := Fallback()
	ja := doc.Languages["ja"]

	assert.Equal(t, "start_3", ja.Nodes["start"].VoiceFile)
	assert.Equal(t, "transaction_type_3", ja.Nodes["transaction_type"].VoiceFile)
	assert.Equal(t, domain.NodeTypeInput, ja.Nodes["deposit_amount"].Type)
	assert.Equal(t, "depositAmount", ja.Nodes["deposit_amount"].Field)
	assert.Equal(t, "預入金額", ja.Nodes["deposit_amount"].Label)
	assert.Equal(t, int64(200000), ja.Nodes["payout_amount"].Limit)
	assert.Equal(t, "staff_assistance_amount", ja.Nodes["payout_amount"].OverLimitNext)

	deposit, ok := ja.Nodes["transaction_type"].Choice("deposit")
	require.True(t, ok)
	assert.Contains(t, deposit.Keywords, "預入")
	assert.Contains(t, deposit.ExcludeKeywords, "出金")

	assert.Empty(t, doc.Languages["en"].Nodes["start"].VoiceFile)
}

func TestFallback_ReturnsCopies(t *testing.T) {
	a := Fallback()
	a.Languages["ja"].Nodes["start"].Content = "changed"
	a.Languages["ja"].Nodes["transaction_type"].Choices[0].Keywords[0] = "changed"

	b := Fallback()
	assert.NotEqual(t, "changed", b.Languages["ja"].Nodes["start"].Content)
	assert.NotEqual(t, "changed", b.Languages["ja"].Nodes["transaction_type"].Choices[0].Keywords[0])
	assert.Equal(t, Fallback().Fingerprint(), b.Fingerprint())
}

func TestLoad_FallbackSourceRoundTrip(t *testing.T) {
	doc, err := Load(FallbackSource())
	require.NoError(t, err)
	assert.Equal(t, Fallback().Fingerprint(), doc.Fingerprint())
	assert.Equal(t, "1.0", doc.Version)
}

func TestDecode_LegacyShapes(t *testing.T) {
	src := []byte(`
en:
  settings:
    autoStopSeconds: "5"
  nodes:
    - id: start
      type: text
      content: Welcome
      next: menu
    - id: menu
      content: Pick one
      choices:
        - text: Deposit
          keywords: deposit, put money
          next: amount
    - id: amount
      field: depositAmount
      content: How much?
      next: done
      limit: "200000"
      overLimitNext: done
    - id: done
      content: Bye
`)
	doc, err := Load(src)
	require.NoError(t, err)

	en := doc.Languages["en"]
	require.NotNil(t, en)
	assert.Equal(t, 5, en.Settings.AutoStopSeconds)
	assert.Equal(t, 30, en.Settings.QRExpiryMinutes, "defaults survive partial settings")

	assert.Equal(t, domain.NodeTypeMessage, en.Nodes["start"].Type)
	assert.Equal(t, domain.NodeTypeChoice, en.Nodes["menu"].Type)
	assert.Equal(t, domain.NodeTypeInput, en.Nodes["amount"].Type)
	assert.Equal(t, int64(200000), en.Nodes["amount"].Limit)

	c := en.Nodes["menu"].Choices[0]
	assert.Equal(t, "choice_1", c.ID)
	assert.Equal(t, []string{"deposit", " put money"}, c.Keywords)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load([]byte(``))
	assert.ErrorIs(t, err, ErrEmptySource)

	_, err = Load([]byte(`{"languages": "nope"}`))
	assert.Error(t, err)

	_, err = Load([]byte(`{"en": {"nodes": {"start": {"type": "message", "next": "ghost"}}}}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrIntegrity))

	_, err = Load([]byte(`{"en": {"nodes": 42}}`))
	assert.Error(t, err)

	_, err = Load([]byte(`{ not yaml`))
	assert.Error(t, err)
}
