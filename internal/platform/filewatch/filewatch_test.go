package filewatch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dailysender/internal/platform/jsonfile"
)

func startWatcher(t *testing.T, w *Watcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("watcher did not stop")
		}
	})
	// give the backend a moment to register the directory
	time.Sleep(50 * time.Millisecond)
}

func TestWatcher_CallsHandlerForWatchedFile(t *testing.T) {
	dir := t.TempDir()
	var groups, other atomic.Int32

	w := New(dir, WithDebounce(20*time.Millisecond))
	w.Handle("message_groups.json", func(context.Context) { groups.Add(1) })
	w.Handle("schedules.json", func(context.Context) { other.Add(1) })
	startWatcher(t, w)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "message_groups.json"), []byte(`{"groups":[]}`), 0o644))

	require.Eventually(t, func() bool { return groups.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Never(t, func() bool { return other.Load() != 0 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32

	w := New(dir, WithDebounce(100*time.Millisecond))
	w.Handle("schedules.json", func(context.Context) { calls.Add(1) })
	startWatcher(t, w)

	path := filepath.Join(dir, "schedules.json")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte(`{"schedules":[]}`), 0o644))
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Never(t, func() bool { return calls.Load() > 1 }, 250*time.Millisecond, 20*time.Millisecond)
}

func TestWatcher_SeesAtomicReplace(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32

	w := New(dir, WithDebounce(20*time.Millisecond))
	w.Handle("schedules.json", func(context.Context) { calls.Add(1) })
	startWatcher(t, w)

	f := jsonfile.New[map[string]int](filepath.Join(dir, "schedules.json"))
	_, err := f.Save(map[string]int{"hour": 9})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_IgnoresUnknownFiles(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32

	w := New(dir, WithDebounce(20*time.Millisecond))
	w.Handle("schedules.json", func(context.Context) { calls.Add(1) })
	startWatcher(t, w)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	assert.Never(t, func() bool { return calls.Load() != 0 }, 150*time.Millisecond, 10*time.Millisecond)
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "absent"))
	w.retry.MaxAttempts = 2
	w.retry.InitialDelay = time.Millisecond
	w.retry.MaxDelay = 2 * time.Millisecond

	err := w.Run(context.Background())
	assert.Error(t, err)
}

func TestWatcher_CanceledBeforeSetup(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "absent"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, w.Run(ctx))
}
