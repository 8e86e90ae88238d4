package tokenstats

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // "sqlite3" driver (cgo)
	_ "modernc.org/sqlite"          // "sqlite" driver (pure Go)

	"hindsight-hq/hindsight/pkg/telemetry/metrics"
)

// SQLite driver names accepted in SQLiteConfig.Driver.
const (
	DriverModernc = "sqlite"
	DriverMattn   = "sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS token_samples (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	batch_id    TEXT    NOT NULL,
	provider    TEXT    NOT NULL,
	model       TEXT    NOT NULL,
	scope       TEXT    NOT NULL,
	direction   TEXT    NOT NULL,
	tokens      INTEGER NOT NULL,
	recorded_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_token_samples_recorded_at ON token_samples(recorded_at);
CREATE INDEX IF NOT EXISTS idx_token_samples_series ON token_samples(provider, model, scope, direction);
`

// SQLiteConfig contains configuration for the SQLite store.
type SQLiteConfig struct {
	// Path is the database file path. Parent directories are created.
	Path string

	// Driver is DriverModernc (default) or DriverMattn.
	Driver string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 4
	MaxOpenConns int

	// WALMode enables write-ahead logging.
	WALMode bool

	// BusyTimeout is how long to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// SQLiteStore implements Store on SQLite. Timestamps are stored as Unix
// nanoseconds so both drivers read them back identically.
type SQLiteStore struct {
	db     *sql.DB
	config SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStore opens the database and creates the schema if needed.
func NewSQLiteStore(cfg SQLiteConfig, logger *slog.Logger) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, NewStorageError("sqlite", "open", fmt.Errorf("db path cannot be empty"))
	}
	if cfg.Driver == "" {
		cfg.Driver = DriverModernc
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 4
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "tokenstats.sqlite")

	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, NewStorageError("sqlite", "open", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, NewStorageError("sqlite", "open", err)
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, NewStorageError("sqlite", "open", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)

	s := &SQLiteStore{db: db, config: cfg, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("token sample store initialized",
		"path", cfg.Path,
		"driver", cfg.Driver,
		"wal_mode", cfg.WALMode,
	)
	return s, nil
}

// buildDSN puts the pragmas in the DSN so every pooled connection gets them.
// The two drivers spell them differently.
func buildDSN(cfg SQLiteConfig) (string, error) {
	busy := cfg.BusyTimeout.Milliseconds()

	switch cfg.Driver {
	case DriverModernc:
		params := []string{fmt.Sprintf("_pragma=busy_timeout(%d)", busy)}
		if cfg.WALMode {
			params = append(params, "_pragma=journal_mode(WAL)")
		}
		return "file:" + cfg.Path + "?" + strings.Join(params, "&"), nil

	case DriverMattn:
		params := []string{fmt.Sprintf("_busy_timeout=%d", busy)}
		if cfg.WALMode {
			params = append(params, "_journal_mode=WAL")
		}
		return "file:" + cfg.Path + "?" + strings.Join(params, "&"), nil

	default:
		return "", fmt.Errorf("unsupported sqlite driver %q", cfg.Driver)
	}
}

func (s *SQLiteStore) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.BusyTimeout+5*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return NewStorageError("sqlite", "open", err)
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return NewStorageError("sqlite", "create_schema", err)
	}
	s.logger.Debug("database schema created")
	return nil
}

// Append stores samples in one transaction.
func (s *SQLiteStore) Append(ctx context.Context, samples []Sample) error {
	if len(samples) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return NewStorageError("sqlite", "append", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO token_samples (batch_id, provider, model, scope, direction, tokens, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return NewStorageError("sqlite", "append", err)
	}
	defer stmt.Close()

	batchID := ""
	for _, sample := range samples {
		id := sample.BatchID
		if id == "" {
			if batchID == "" {
				batchID = uuid.NewString()
			}
			id = batchID
		}
		if _, err := stmt.ExecContext(ctx,
			id, sample.Provider, sample.Model, string(sample.Scope), string(sample.Direction),
			sample.Tokens, sample.RecordedAt.UnixNano(),
		); err != nil {
			return NewStorageError("sqlite", "append", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return NewStorageError("sqlite", "append", err)
	}
	return nil
}

// Samples returns matching samples ordered by time.
func (s *SQLiteStore) Samples(ctx context.Context, filter Filter) ([]Sample, error) {
	where, args := buildWhereClause(filter)
	rows, err := s.db.QueryContext(ctx, `
		SELECT batch_id, provider, model, scope, direction, tokens, recorded_at
		FROM token_samples`+where+`
		ORDER BY recorded_at, id`, args...)
	if err != nil {
		return nil, NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	var out []Sample
	for rows.Next() {
		var (
			sample           Sample
			scope, direction string
			recordedAt       int64
		)
		if err := rows.Scan(&sample.BatchID, &sample.Provider, &sample.Model,
			&scope, &direction, &sample.Tokens, &recordedAt); err != nil {
			return nil, NewStorageError("sqlite", "scan", err)
		}
		sample.Scope = metrics.Scope(scope)
		sample.Direction = metrics.TokenDirection(direction)
		sample.RecordedAt = time.Unix(0, recordedAt).UTC()
		out = append(out, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "query", err)
	}
	return out, nil
}

// Count returns the number of matching samples.
func (s *SQLiteStore) Count(ctx context.Context, filter Filter) (int64, error) {
	where, args := buildWhereClause(filter)

	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM token_samples"+where, args...).Scan(&n); err != nil {
		return 0, NewStorageError("sqlite", "count", err)
	}
	return n, nil
}

// Prune deletes samples recorded before cutoff.
func (s *SQLiteStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM token_samples WHERE recorded_at < ?", cutoff.UnixNano())
	if err != nil {
		return 0, NewStorageError("sqlite", "prune", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, NewStorageError("sqlite", "prune", err)
	}
	return n, nil
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return NewStorageError("sqlite", "ping", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return NewStorageError("sqlite", "close", err)
	}
	s.logger.Info("token sample store closed")
	return nil
}

func buildWhereClause(f Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		conds = append(conds, cond)
		args = append(args, arg)
	}

	if f.Provider != "" {
		add("provider = ?", f.Provider)
	}
	if f.Model != "" {
		add("model = ?", f.Model)
	}
	if f.Scope != "" {
		add("scope = ?", string(f.Scope))
	}
	if f.Direction != "" {
		add("direction = ?", string(f.Direction))
	}
	if !f.Since.IsZero() {
		add("recorded_at >= ?", f.Since.UnixNano())
	}
	if !f.Until.IsZero() {
		add("recorded_at < ?", f.Until.UnixNano())
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
