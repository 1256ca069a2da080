package app

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dailysender/internal/broadcast"
	"dailysender/internal/config"
	"dailysender/internal/content"
	"dailysender/internal/coordinator"
	"dailysender/internal/schedule"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	var cfg config.Config
	cfg.Env = "dev"
	cfg.DataDir = t.TempDir()
	cfg.Location = time.UTC
	cfg.Broadcast.Workers = 2
	cfg.Broadcast.Rate = 0
	return &App{cfg: cfg, log: slog.New(slog.DiscardHandler)}
}

func TestOpenStores_SQLite(t *testing.T) {
	a := newTestApp(t)
	require.NoError(t, os.WriteFile(a.cfg.UsersFile(), []byte(`[5, 6]`), 0o644))

	s, err := a.OpenStores(context.Background())
	require.NoError(t, err)
	defer s.Close()

	ids, err := s.Recipients.ListAll(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{5, 6}, ids)
	assert.FileExists(t, filepath.Join(a.cfg.DataDir, "dailysender.db"))
	assert.Equal(t, a.cfg.GroupsFile(), s.Groups.Path())
	assert.Equal(t, schedule.Defaults(), s.Schedules.List())

	s.Close()
	s.Close()
}

func TestOpenStores_ReopenKeepsRecipients(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	s, err := a.OpenStores(ctx)
	require.NoError(t, err)
	_, err = s.Recipients.Add(ctx, 42)
	require.NoError(t, err)
	s.Close()

	s, err = a.OpenStores(ctx)
	require.NoError(t, err)
	defer s.Close()
	ok, err := s.Recipients.Contains(ctx, 42)
	require.NoError(t, err)
	assert.True(t, ok)
}

type stubRunner struct{}

func (stubRunner) Run(context.Context) broadcast.Report { return broadcast.Report{} }

func TestWatcher_ReloadsEditsFromDisk(t *testing.T) {
	a := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := a.OpenStores(ctx)
	require.NoError(t, err)
	defer s.Close()

	coord := coordinator.New(s.Schedules, stubRunner{}, coordinator.Config{Logger: a.log, Location: time.UTC})
	coord.Start()
	defer func() { _ = coord.Stop(context.Background()) }()
	require.NoError(t, coord.Reconcile(ctx))

	w := a.newWatcher(s, coord)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// A second process editing the same files, as the CLI does.
	other := content.NewPool(a.cfg.GroupsFile(), a.log)
	otherSchedules := schedule.NewStore(a.cfg.SchedulesFile(), a.log)

	require.Eventually(t, func() bool {
		_, _ = other.Add(content.Group{Text: "from cli"})
		return s.Groups.Len() > 0
	}, 5*time.Second, 300*time.Millisecond)
	assert.Equal(t, "from cli", s.Groups.List()[0].Text)

	require.NoError(t, otherSchedules.Add(6, 45))
	assert.Eventually(t, func() bool {
		return len(coord.Triggers()) == 4
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
