package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/cagewatch/internal/keyword"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresConfig controls the pool used for the keyword state table.
type PostgresConfig struct {
	DSN      string
	Table    string
	Key      string
	MaxConns int32
}

type pgxPool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// PostgresStore keeps one row per watched target holding the keyword set as
// a JSON array.
type PostgresStore struct {
	pool  pgxPool
	table string
	key   string
	now   func() time.Time

	// schemaMu guards schemaPending; the table is created on first use so
	// an unreachable database surfaces in Load and Save.
	schemaMu      sync.Mutex
	schemaPending bool
}

// NewPostgresStore parses the DSN and prepares a pool. No connection is made
// until the first Load or Save, which also creates the state table.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("state.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewPostgresStoreWithPool(pool, cfg.Table, cfg.Key)
	if err != nil {
		pool.Close()
		return nil, err
	}
	store.schemaPending = true
	return store, nil
}

// NewPostgresStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewPostgresStoreWithPool(pool pgxPool, table, key string) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "keyword_state"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if key == "" {
		key = "default"
	}
	return &PostgresStore{
		pool:  pool,
		table: table,
		key:   key,
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

// EnsureSchema creates the state table when it is missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id         TEXT PRIMARY KEY,
	keywords   JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create state table: %w", err)
	}
	return nil
}

func (s *PostgresStore) ensureReady(ctx context.Context) error {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()
	if !s.schemaPending {
		return nil
	}
	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}
	s.schemaPending = false
	return nil
}

// Close releases the underlying pool resources.
func (s *PostgresStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Load reads the keyword row for the configured key.
func (s *PostgresStore) Load(ctx context.Context) (keyword.Set, error) {
	if err := s.ensureReady(ctx); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT keywords FROM %s WHERE id = $1`, s.table)
	var raw []byte
	if err := s.pool.QueryRow(ctx, query, s.key).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoState
		}
		return nil, fmt.Errorf("select state: %w", err)
	}
	var keywords []string
	if err := json.Unmarshal(raw, &keywords); err != nil {
		return nil, fmt.Errorf("parse state row: %w", err)
	}
	return keyword.NewSet(keywords...), nil
}

// Save upserts the row, replacing any previous keyword list.
func (s *PostgresStore) Save(ctx context.Context, keywords []string) error {
	if err := s.ensureReady(ctx); err != nil {
		return err
	}
	if keywords == nil {
		keywords = []string{}
	}
	payload, err := json.Marshal(keywords)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, keywords, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET keywords = EXCLUDED.keywords, updated_at = EXCLUDED.updated_at`, s.table)
	if _, err := s.pool.Exec(ctx, query, s.key, payload, s.now()); err != nil {
		return fmt.Errorf("upsert state: %w", err)
	}
	return nil
}
