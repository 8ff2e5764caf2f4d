package kiosk_test

import (
	"context"
	"strings"
	"testing"

	"github.com/aretw0/kiosk"
	"github.com/aretw0/kiosk/pkg/adapters/memory"
	"github.com/aretw0/kiosk/pkg/domain"
	"github.com/aretw0/kiosk/pkg/flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const branchFlow = `
storeName: Test Branch
languages:
  en:
    nodes:
      start:
        type: choice
        content: Pick one
        choices:
          - id: a
            text: A
            keywords: [alpha]
            next: done
      done:
        type: message
        content: Bye
`

func TestNew_ServesFallbackWithoutSource(t *testing.T) {
	k := kiosk.New(nil)
	assert.Equal(t, flow.Fallback().Fingerprint(), k.Document().Fingerprint())

	changed, err := k.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, flow.Fallback().StoreName, k.Document().StoreName)
}

func TestFollow_ReconcilesLiveSessions(t *testing.T) {
	ctx := context.Background()
	src := memory.NewSource([]byte(branchFlow))
	k := kiosk.New(src)
	_, err := k.Refresh(ctx)
	require.NoError(t, err)

	s, err := k.NewSession(ctx, "en")
	require.NoError(t, err)
	stop := k.Follow(ctx, s)
	defer stop()

	require.NoError(t, s.SubmitText(ctx, "alpha"))
	assert.Equal(t, "done", s.State().CurrentNodeID)

	renamed := strings.Replace(strings.Replace(branchFlow, "next: done", "next: bye", 1), "      done:", "      bye:", 1)
	require.NoError(t, src.Write(ctx, []byte(renamed)))
	changed, err := k.Refresh(ctx)
	require.NoError(t, err)
	require.True(t, changed)

	assert.Equal(t, "start", s.State().CurrentNodeID, "re-rooted at the entry node")
	require.Len(t, s.Notices(), 1)
	assert.Equal(t, domain.NoticeFlowChanged, s.Notices()[0].Kind)

	stop()
	require.NoError(t, src.Write(ctx, []byte(branchFlow)))
	_, err = k.Refresh(ctx)
	require.NoError(t, err)
	assert.Same(t, k.Document(), k.Refresher().Current())
	assert.Equal(t, "bye", s.Document().Languages["en"].Nodes["start"].Choices[0].Next, "no longer following")
}

func TestWithThresholds(t *testing.T) {
	ctx := context.Background()
	k := kiosk.New(nil, kiosk.WithThresholds(0.95, 0.9))

	s, err := k.NewSession(ctx, "en")
	require.NoError(t, err)
	require.NoError(t, s.Advance(ctx))
	require.NoError(t, s.SelectChoice(ctx, "english"))
	require.NoError(t, s.SubmitText(ctx, "redeposit"))

	assert.Nil(t, s.State().PendingConfirmation, "0.4 is below the raised low threshold")
	assert.Equal(t, "transaction_type", s.State().CurrentNodeID)
}
