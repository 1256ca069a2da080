package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	repopg "dailysender/internal/adapter/repository/pg"
	reposqlite "dailysender/internal/adapter/repository/sqlite"
	"dailysender/internal/content"
	"dailysender/internal/platform/pg"
	"dailysender/internal/platform/sqlite"
	"dailysender/internal/recipient"
	"dailysender/internal/schedule"
	"dailysender/migrations"
	"dailysender/pkg/retry"
)

// Stores are the persistent collections shared by the server and the CLI.
type Stores struct {
	Groups     *content.Pool
	Schedules  *schedule.Store
	Recipients *recipient.Registry

	closeDB func()
}

// Close releases the database.
func (s *Stores) Close() {
	if s.closeDB != nil {
		s.closeDB()
		s.closeDB = nil
	}
}

// OpenStores opens the recipient database, applies migrations, imports a
// legacy users.json once and loads the JSON documents from DataDir.
func (a *App) OpenStores(ctx context.Context) (*Stores, error) {
	if err := os.MkdirAll(a.cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	repo, closeDB, err := a.openRepository(ctx)
	if err != nil {
		return nil, err
	}

	reg := recipient.NewRegistry(repo, a.log)
	if n, err := reg.ImportLegacy(ctx, a.cfg.UsersFile()); err != nil {
		a.log.Warn("legacy users import failed", "path", a.cfg.UsersFile(), "error", err)
	} else if n > 0 {
		a.log.Info("imported legacy users", "path", a.cfg.UsersFile(), "count", n)
	}

	return &Stores{
		Groups:     content.NewPool(a.cfg.GroupsFile(), a.log),
		Schedules:  schedule.NewStore(a.cfg.SchedulesFile(), a.log),
		Recipients: reg,
		closeDB:    closeDB,
	}, nil
}

func (a *App) openRepository(ctx context.Context) (recipient.Repository, func(), error) {
	dsn := a.cfg.DatabaseDSN()
	if pg.IsURL(dsn) {
		return a.openPostgres(ctx, dsn)
	}
	return a.openSQLite(ctx, dsn)
}

func (a *App) openPostgres(ctx context.Context, dsn string) (recipient.Repository, func(), error) {
	log := a.log.With("database", "postgres", "target", pg.Redact(dsn))

	rc := retry.DefaultConfig()
	rc.MaxAttempts = 5
	rc.OnRetry = func(attempt int, err error, delay time.Duration) {
		log.Warn("postgres not ready, retrying", "attempt", attempt, "delay", delay, "error", err)
	}

	var pool *pgxpool.Pool
	err := retry.Do(ctx, rc, func(ctx context.Context) error {
		p, err := pg.NewPool(ctx, dsn)
		if err != nil {
			return err
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}

	info, err := pg.ApplyMigrationsFromFS(dsn, migrations.FS, migrations.PostgresDir)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate postgres: %w", err)
	}
	log.Info("database ready", "version", info.FinalVersion, "migrated", info.Applied)

	return repopg.NewRecipients(pg.NewTxRunner(pool)), pool.Close, nil
}

func (a *App) openSQLite(ctx context.Context, path string) (recipient.Repository, func(), error) {
	log := a.log.With("database", "sqlite", "path", path)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create database dir: %w", err)
	}
	db, err := sqlite.NewDB(ctx, path)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}
	info, err := sqlite.ApplyMigrations(db, migrations.FS, migrations.SQLiteDir)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	log.Info("database ready", "version", info.FinalVersion, "migrated", info.Applied)

	closeDB := func() {
		if err := db.Close(); err != nil {
			log.Warn("close database", "error", err)
		}
	}
	return reposqlite.NewRecipients(sqlite.NewTxRunner(db)), closeDB, nil
}
