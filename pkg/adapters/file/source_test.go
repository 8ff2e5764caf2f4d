package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/kiosk/pkg/adapters/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSource_FetchAndWrite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "flows", "flow.yaml")
	src := file.New(path)

	_, err := src.Fetch(ctx)
	assert.Error(t, err, "missing file")

	require.NoError(t, src.Write(ctx, []byte("en: {}\n")))
	data, err := src.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "en: {}\n", string(data))

	require.NoError(t, src.Write(ctx, []byte("ja: {}\n")))
	data, err = src.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ja: {}\n", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files are left behind")
}

func TestSource_Watch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	path := filepath.Join(dir, "flow.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0644))

	src := file.New(path, file.WithDebounce(10*time.Millisecond))
	ch, err := src.Watch(ctx)
	require.NoError(t, err)

	// Unrelated files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte(`{}`), 0644))
	select {
	case <-ch:
		t.Fatal("unexpected signal for another file")
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, src.Write(ctx, []byte(`{"en":{}}`)))
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a change signal")
	}

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}
