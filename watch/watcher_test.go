package watch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// startWatcher starts a watcher on root with a short debounce.
func startWatcher(t *testing.T, root string, config Config) *Watcher {
	t.Helper()
	if config.DebounceDelay == 0 {
		config.DebounceDelay = 50 * time.Millisecond
	}

	w, err := New(config, root, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	require.NoError(t, w.Start(ctx))
	t.Cleanup(func() { _ = w.Stop() })

	// Give watcher time to set up
	time.Sleep(100 * time.Millisecond)
	return w
}

func nextBatch(t *testing.T, w *Watcher) Batch {
	t.Helper()
	select {
	case batch, ok := <-w.Batches():
		require.True(t, ok, "batches channel closed")
		return batch
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for batch")
		return nil
	}
}

func expectNoBatch(t *testing.T, w *Watcher) {
	t.Helper()
	select {
	case batch := <-w.Batches():
		t.Errorf("unexpected batch: %+v", batch)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestNew(t *testing.T) {
	w, err := New(Config{}, t.TempDir(), nil)
	require.NoError(t, err)
	defer w.Stop()

	assert.Equal(t, DefaultDebounceDelay, w.config.debounceDelay())
	assert.Zero(t, w.DroppedBatches())

	_, err = New(Config{Exclude: []string{"[bad"}}, t.TempDir(), nil)
	assert.ErrorContains(t, err, "invalid exclude pattern")
}

func TestStart_MissingRoot(t *testing.T) {
	w, err := New(Config{}, filepath.Join(t.TempDir(), "missing"), nil)
	require.NoError(t, err)
	defer w.Stop()

	assert.Error(t, w.Start(context.Background()))
}

func TestWatcher_FileCreation(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root, Config{})

	require.NoError(t, os.WriteFile(filepath.Join(root, "petstore.yaml"), []byte("openapi: 3.0.0"), 0644))

	batch := nextBatch(t, w)
	require.Len(t, batch, 1)
	assert.Equal(t, "petstore.yaml", batch[0].Path)
	assert.Equal(t, OpCreate, batch[0].Op)
}

func TestWatcher_FileModification(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "api.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"a": 1}`), 0644))

	w := startWatcher(t, root, Config{})
	_, ok := w.GetHash("api.json")
	assert.True(t, ok, "existing specs are hashed on start")

	require.NoError(t, os.WriteFile(path, []byte(`{"a": 2}`), 0644))

	batch := nextBatch(t, w)
	require.Len(t, batch, 1)
	assert.Equal(t, OpModify, batch[0].Op)
}

func TestWatcher_FileDeletion(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "gone.yml")
	require.NoError(t, os.WriteFile(path, []byte("x: 1"), 0644))

	w := startWatcher(t, root, Config{})
	require.NoError(t, os.Remove(path))

	batch := nextBatch(t, w)
	require.Len(t, batch, 1)
	assert.Equal(t, "gone.yml", batch[0].Path)
	assert.Equal(t, OpDelete, batch[0].Op)

	_, ok := w.GetHash("gone.yml")
	assert.False(t, ok)
}

func TestWatcher_UnchangedContentIgnored(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "same.yaml")
	require.NoError(t, os.WriteFile(path, []byte("same"), 0644))

	w := startWatcher(t, root, Config{})
	require.NoError(t, os.WriteFile(path, []byte("same"), 0644))

	expectNoBatch(t, w)
}

func TestWatcher_IgnoresOtherExtensions(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root, Config{})

	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("# hi"), 0644))

	expectNoBatch(t, w)
}

func TestWatcher_IgnoresExcludedAndHidden(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "drafts"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "dist"), 0755))

	w := startWatcher(t, root, Config{
		Exclude:  []string{"drafts/**"},
		SkipDirs: []string{filepath.Join(root, "dist")},
	})

	require.NoError(t, os.WriteFile(filepath.Join(root, "drafts", "wip.yaml"), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "x.json"), []byte("b"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "dist", "copy.yaml"), []byte("c"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".hidden.yaml"), []byte("d"), 0644))

	expectNoBatch(t, w)
}

func TestWatcher_NewDirectory(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root, Config{})

	dir := filepath.Join(root, "v2")
	require.NoError(t, os.MkdirAll(dir, 0755))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "orders.yaml"), []byte("orders"), 0644))

	batch := nextBatch(t, w)
	require.Len(t, batch, 1)
	assert.Equal(t, "v2/orders.yaml", batch[0].Path)
	assert.Equal(t, OpCreate, batch[0].Op)
}

func TestWatcher_SetGetHash(t *testing.T) {
	w, err := New(Config{}, t.TempDir(), nil)
	require.NoError(t, err)
	defer w.Stop()

	w.SetHash("file.yaml", "abc123")
	hash, ok := w.GetHash("file.yaml")
	assert.True(t, ok)
	assert.Equal(t, "abc123", hash)

	_, ok = w.GetHash("nonexistent.yaml")
	assert.False(t, ok)
}

func TestContentHash(t *testing.T) {
	assert.Equal(t, ContentHash([]byte("a")), ContentHash([]byte("a")))
	assert.NotEqual(t, ContentHash([]byte("a")), ContentHash([]byte("b")))
	assert.Len(t, ContentHash(nil), 64)
}

func TestBatch_Paths(t *testing.T) {
	b := Batch{{Path: "a.yaml"}, {Path: "v2/b.json"}}
	assert.Equal(t, []string{"a.yaml", "v2/b.json"}, b.Paths())
}

func TestRun(t *testing.T) {
	batches := make(chan Batch, 3)
	batches <- Batch{{Path: "a.yaml", Op: OpCreate}}
	batches <- Batch{{Path: "b.yaml", Op: OpModify}}
	batches <- Batch{{Path: "c.yaml", Op: OpDelete}}
	close(batches)

	var mu sync.Mutex
	var seen []string
	Run(context.Background(), batches, func(ctx context.Context, batch Batch) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, batch[0].Path)
		if batch[0].Path == "b.yaml" {
			return errors.New("broken spec")
		}
		return nil
	}, nil)

	assert.Equal(t, []string{"a.yaml", "b.yaml", "c.yaml"}, seen, "a failed rebuild does not stop the loop")
}

func TestRun_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	Run(ctx, make(chan Batch), func(context.Context, Batch) error {
		called = true
		return nil
	}, nil)
	assert.False(t, called)
}
