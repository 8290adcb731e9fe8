package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// DefaultBatchSize bounds the rows per INSERT statement.
const DefaultBatchSize = 100

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

var columns = []string{
	"symbol", "date", "rsi_value", "rsi_period",
	"open", "high", "low", "close", "volume", "created_at",
}

// dialect holds the SQL that differs between backends.
type dialect struct {
	name        string
	placeholder func(n int) string
	createTable string // %s is the table name
}

var sqliteDialect = dialect{
	name:        "sqlite",
	placeholder: func(int) string { return "?" },
	createTable: `CREATE TABLE IF NOT EXISTS %s (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol     TEXT    NOT NULL,
		date       TEXT    NOT NULL,
		rsi_value  REAL    NOT NULL,
		rsi_period INTEGER NOT NULL,
		open       REAL    NOT NULL,
		high       REAL    NOT NULL,
		low        REAL    NOT NULL,
		close      REAL    NOT NULL,
		volume     INTEGER,
		created_at TEXT    NOT NULL
	)`,
}

var postgresDialect = dialect{
	name:        "postgres",
	placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	createTable: `CREATE TABLE IF NOT EXISTS %s (
		id         BIGSERIAL PRIMARY KEY,
		symbol     TEXT             NOT NULL,
		date       DATE             NOT NULL,
		rsi_value  DOUBLE PRECISION NOT NULL,
		rsi_period INTEGER          NOT NULL,
		open       DOUBLE PRECISION NOT NULL,
		high       DOUBLE PRECISION NOT NULL,
		low        DOUBLE PRECISION NOT NULL,
		close      DOUBLE PRECISION NOT NULL,
		volume     BIGINT,
		created_at TIMESTAMPTZ      NOT NULL
	)`,
}

// sqlStore is the Store shared by the SQL backends.
type sqlStore struct {
	db        *sql.DB
	dialect   dialect
	batchSize int
	log       zerolog.Logger

	mu    sync.Mutex
	ready map[string]bool
}

func newSQLStore(db *sql.DB, d dialect, batchSize int, log zerolog.Logger) *sqlStore {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &sqlStore{
		db:        db,
		dialect:   d,
		batchSize: batchSize,
		log:       log,
		ready:     make(map[string]bool),
	}
}

// openWithRetry opens the database and pings it with exponential backoff.
func openWithRetry(ctx context.Context, driver, dsn string, maxElapsed time.Duration, log zerolog.Logger) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	operation := func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			log.Warn().Err(err).Str("driver", driver).Msg("database not reachable, retrying")
			return err
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxElapsed
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	return db, nil
}

func validTable(table string) error {
	if !tableNameRe.MatchString(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	return nil
}

// EnsureTable creates table and its unique key if they do not exist.
func (s *sqlStore) EnsureTable(ctx context.Context, table string) error {
	if err := validTable(table); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready[table] {
		return nil
	}

	stmts := []string{
		fmt.Sprintf(s.dialect.createTable, table),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s_symbol_date_period_key ON %s(symbol, date, rsi_period)`, table, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_date_idx ON %s(date)`, table, table),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", table, err)
		}
	}
	s.ready[table] = true
	return nil
}

func (s *sqlStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InsertBatch upserts records in one transaction, batchSize rows per statement.
// Records repeating a (symbol, date, rsi_period) key keep the last occurrence.
func (s *sqlStore) InsertBatch(ctx context.Context, table string, records []Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	if err := s.EnsureTable(ctx, table); err != nil {
		return 0, err
	}
	records = uniqueByKey(records)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for start := 0; start < len(records); start += s.batchSize {
		end := min(start+s.batchSize, len(records))
		chunk := records[start:end]
		query := s.upsertQuery(table, len(chunk))
		if _, err := tx.ExecContext(ctx, query, recordArgs(chunk)...); err != nil {
			return 0, fmt.Errorf("insert rows %d-%d: %w", start, end-1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	s.log.Debug().Str("table", table).Int("rows", len(records)).Msg("batch written")
	return len(records), nil
}

// DeleteOlderThan removes rows dated before cutoff's UTC day.
func (s *sqlStore) DeleteOlderThan(ctx context.Context, table string, cutoff time.Time) (int64, error) {
	if err := s.EnsureTable(ctx, table); err != nil {
		return 0, err
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE date < %s", table, s.dialect.placeholder(1))
	res, err := s.db.ExecContext(ctx, query, cutoff.UTC().Format(time.DateOnly))
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", table, err)
	}
	return res.RowsAffected()
}

func (s *sqlStore) Close() error {
	s.log.Info().Str("driver", s.dialect.name).Msg("closing store")
	return s.db.Close()
}

func (s *sqlStore) upsertQuery(table string, rows int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", table, strings.Join(columns, ", "))

	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := range columns {
			if c > 0 {
				b.WriteString(", ")
			}
			b.WriteString(s.dialect.placeholder(n))
			n++
		}
		b.WriteByte(')')
	}

	b.WriteString(" ON CONFLICT (symbol, date, rsi_period) DO UPDATE SET ")
	first := true
	for _, col := range columns {
		if col == "symbol" || col == "date" || col == "rsi_period" {
			continue
		}
		if !first {
			b.WriteString(", ")
		}
		first = false
		fmt.Fprintf(&b, "%s = excluded.%s", col, col)
	}
	return b.String()
}

func recordArgs(records []Record) []any {
	args := make([]any, 0, len(records)*len(columns))
	for _, r := range records {
		var volume any
		if r.Volume != nil {
			volume = *r.Volume
		}
		args = append(args,
			r.Symbol, r.Date, r.RSIValue, r.RSIPeriod,
			r.Open, r.High, r.Low, r.Close, volume, r.CreatedAt,
		)
	}
	return args
}

func uniqueByKey(records []Record) []Record {
	type key struct {
		symbol string
		date   string
		period int
	}
	index := make(map[key]int, len(records))
	out := make([]Record, 0, len(records))
	for _, r := range records {
		k := key{r.Symbol, r.Date, r.RSIPeriod}
		if i, ok := index[k]; ok {
			out[i] = r
			continue
		}
		index[k] = len(out)
		out = append(out, r)
	}
	return out
}
