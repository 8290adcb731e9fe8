package recorder

import (
	"context"
	"fmt"
	"time"

	"RSIPipeline/internal/logger"

	_ "modernc.org/sqlite"
)

const sqliteConnectTimeout = 5 * time.Second

// SQLiteStore persists RSI records to a SQLite database.
type SQLiteStore struct {
	*sqlStore
}

// NewSQLiteStore opens (or creates) the SQLite database and migrates table.
func NewSQLiteStore(ctx context.Context, dbPath, table string, batchSize int) (*SQLiteStore, error) {
	log := logger.Component("sqlite_store")
	db, err := openWithRetry(ctx, "sqlite", dbPath, sqliteConnectTimeout, log)
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	// WAL mode so readers are not blocked while a batch is written.
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{newSQLStore(db, sqliteDialect, batchSize, log)}
	if table != "" {
		if err := s.EnsureTable(ctx, table); err != nil {
			db.Close()
			return nil, err
		}
	}

	log.Info().Str("path", dbPath).Msg("sqlite store opened")
	return s, nil
}
