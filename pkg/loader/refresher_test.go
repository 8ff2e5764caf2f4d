package loader_test

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/kiosk/pkg/adapters/memory"
	"github.com/aretw0/kiosk/pkg/domain"
	"github.com/aretw0/kiosk/pkg/flow"
	"github.com/aretw0/kiosk/pkg/loader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefresher_Refresh(t *testing.T) {
	ctx := context.Background()
	src := memory.NewSource([]byte(smallFlow))
	r := loader.NewRefresher(loader.New(src))

	assert.Equal(t, flow.Fallback().Fingerprint(), r.Current().Fingerprint(), "fallback before the first load")

	var swaps atomic.Int32
	unsubscribe := r.Subscribe(func(*domain.FlowDocument) { swaps.Add(1) })

	changed, err := r.Refresh(ctx)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "Test Branch", r.Current().StoreName)

	changed, err = r.Refresh(ctx)
	require.NoError(t, err)
	assert.False(t, changed, "same fingerprint, no swap")

	require.NoError(t, src.Write(ctx, []byte(strings.Replace(smallFlow, "Bye", "Goodbye", 1))))
	changed, err = r.Refresh(ctx)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "Goodbye", r.Current().Languages["en"].Nodes["done"].Content)
	assert.Equal(t, int32(2), swaps.Load())

	unsubscribe()
	require.NoError(t, src.Write(ctx, []byte(smallFlow)))
	_, err = r.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), swaps.Load(), "unsubscribed")
}

func TestRefresher_Run(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := memory.NewSource([]byte(smallFlow))
	r := loader.NewRefresher(loader.New(src),
		loader.WithInterval(time.Hour), // only the watch can trigger
		loader.WithWatch(true),
	)

	swapped := make(chan *domain.FlowDocument, 4)
	r.Subscribe(func(doc *domain.FlowDocument) { swapped <- doc })

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	select {
	case doc := <-swapped:
		assert.Equal(t, "Test Branch", doc.StoreName)
	case <-time.After(2 * time.Second):
		t.Fatal("initial refresh did not publish")
	}

	require.NoError(t, src.Write(ctx, []byte(strings.Replace(smallFlow, "Test Branch", "Other Branch", 1))))
	select {
	case doc := <-swapped:
		assert.Equal(t, "Other Branch", doc.StoreName)
	case <-time.After(2 * time.Second):
		t.Fatal("source change did not publish")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}
