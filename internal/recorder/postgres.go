package recorder

import (
	"context"
	"time"

	"RSIPipeline/internal/logger"

	_ "github.com/lib/pq"
)

const postgresConnectTimeout = 30 * time.Second

// PostgresStore persists RSI records to PostgreSQL.
type PostgresStore struct {
	*sqlStore
}

// NewPostgresStore connects to dsn, retrying for up to 30 seconds, and
// migrates table.
func NewPostgresStore(ctx context.Context, dsn, table string, batchSize int) (*PostgresStore, error) {
	log := logger.Component("postgres_store")
	db, err := openWithRetry(ctx, "postgres", dsn, postgresConnectTimeout, log)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)

	s := &PostgresStore{newSQLStore(db, postgresDialect, batchSize, log)}
	if table != "" {
		if err := s.EnsureTable(ctx, table); err != nil {
			db.Close()
			return nil, err
		}
	}

	log.Info().Msg("postgres store connected")
	return s, nil
}
