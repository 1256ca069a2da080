// Package retry runs an operation with exponential backoff and jitter.
//
// It backs the SQLite busy-retry loop, the startup connection to PostgreSQL
// and the file watcher setup:
//
//	cfg := retry.DefaultConfig()
//	cfg.MaxAttempts = 5
//	err := retry.Do(ctx, cfg, func(ctx context.Context) error {
//	    return pool.Ping(ctx)
//	})
//
// DoWithRetryable takes a custom predicate for errors that are not network
// failures, such as SQLITE_BUSY.
package retry
