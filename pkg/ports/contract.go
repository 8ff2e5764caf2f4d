package ports

import (
	"context"
	"testing"

	"github.com/aretw0/kiosk/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contractDocument(content string) *domain.FlowDocument {
	return &domain.FlowDocument{
		Version:   "1.0",
		StoreName: "contract",
		Languages: map[string]*domain.LanguageFlow{
			"en": {
				LanguageSelection: true,
				Settings:          domain.Settings{AutoStopSeconds: 3, VoiceSpeed: 1, QRExpiryMinutes: 30},
				Nodes: map[string]*domain.Node{
					"start": {ID: "start", Type: domain.NodeTypeChoice, Content: content, Choices: []domain.Choice{
						{ID: "go", Text: "Go", Keywords: []string{"go", "next"}, Next: "end"},
					}},
					"end": {ID: "end", Type: domain.NodeTypeMessage, Content: "Bye", VoiceFile: "bye_1"},
				},
			},
		},
	}
}

// RunFlowCacheContract runs a suite of tests to verify that a FlowCache implementation
// adheres to the defined interface contract. The cache must start empty.
func RunFlowCacheContract(t *testing.T, cache FlowCache) {
	ctx := context.Background()

	t.Run("Get Empty", func(t *testing.T) {
		_, err := cache.Get(ctx)
		assert.ErrorIs(t, err, domain.ErrCacheMiss)
	})

	t.Run("Set and Get", func(t *testing.T) {
		doc := contractDocument("Hello")
		require.NoError(t, cache.Set(ctx, doc), "Set should not return error")

		loaded, err := cache.Get(ctx)
		require.NoError(t, err, "Get should not return error")
		assert.Equal(t, doc.Fingerprint(), loaded.Fingerprint())
		assert.Equal(t, "bye_1", loaded.Languages["en"].Nodes["end"].VoiceFile)
		assert.Equal(t, []string{"go", "next"}, loaded.Languages["en"].Nodes["start"].Choices[0].Keywords)
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, contractDocument("First")))
		require.NoError(t, cache.Set(ctx, contractDocument("Second")))

		loaded, err := cache.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Second", loaded.Languages["en"].Nodes["start"].Content)
	})

	t.Run("Returned Document Is Isolated", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, contractDocument("Original")))

		loaded, err := cache.Get(ctx)
		require.NoError(t, err)
		loaded.Languages["en"].Nodes["start"].Content = "mutated"

		again, err := cache.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Original", again.Languages["en"].Nodes["start"].Content)
	})

	t.Run("Clear", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, contractDocument("Hello")))
		require.NoError(t, cache.Clear(ctx), "Clear should not return error")

		_, err := cache.Get(ctx)
		assert.ErrorIs(t, err, domain.ErrCacheMiss, "Get after Clear should miss")

		assert.NoError(t, cache.Clear(ctx), "Clear on an empty cache is a no-op")
	})
}
