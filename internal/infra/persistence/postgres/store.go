// Package postgres provides a Postgres-backed persistent store that mirrors
// the in-memory semantics, persisting the full snapshot as JSONB bucket
// payloads after every successful transaction.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"sheltercore/internal/infra/persistence/memory"
	"sheltercore/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	// Default DSN keeps parity with OpenPersistentStore defaults while allowing overrides via env.
	defaultDSN = "postgres://localhost/sheltercore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

var postgresBuckets = []string{"animals", "users", "adoptions", "requests", "meta"}

type meta struct {
	Sequence int64  `json:"sequence"`
	Revision uint64 `json:"revision"`
}

// Store persists state to Postgres while reusing the in-memory implementation
// for transactions.
type Store struct {
	*memory.Store
	db           *sql.DB
	mu           sync.Mutex
	lastRevision uint64
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back to
// defaultDSN), ensures the snapshot table exists, and hydrates the in-memory
// store from any existing snapshot.
func NewStore(dsn string, engine *domain.RulesEngine) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w (%w)", err, domain.ErrStoreUnavailable)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w (%w)", err, domain.ErrStoreUnavailable)
	}
	if err := ensureStateTable(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	snapshot, err := loadSnapshot(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	mem := memory.NewStore(engine)
	mem.ImportState(snapshot)
	return &Store{Store: mem, db: db, lastRevision: snapshot.Revision}, nil
}

// RunInTransaction applies fn within a transaction, then snapshots to Postgres
// if successful. A revision mismatch rehydrates from the stored snapshot and
// reports domain.ErrConflict.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if err := s.persist(ctx); err != nil {
		return res, err
	}
	return res, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

func ensureStateTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure state table: %w (%w)", err, domain.ErrStoreUnavailable)
	}
	return nil
}

func loadSnapshot(ctx context.Context, db *sql.DB) (memory.Snapshot, error) {
	rows, err := db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return memory.Snapshot{}, fmt.Errorf("select state: %w (%w)", err, domain.ErrStoreUnavailable)
	}
	defer func() { _ = rows.Close() }()

	var snapshot memory.Snapshot
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return memory.Snapshot{}, fmt.Errorf("scan state: %w (%w)", err, domain.ErrStoreUnavailable)
		}
		if len(payload) == 0 {
			continue
		}
		var target any
		var m meta
		switch bucket {
		case "animals":
			target = &snapshot.Animals
		case "users":
			target = &snapshot.Users
		case "adoptions":
			target = &snapshot.Adoptions
		case "requests":
			target = &snapshot.Requests
		case "meta":
			target = &m
		default:
			continue
		}
		if err := json.Unmarshal(payload, target); err != nil {
			return memory.Snapshot{}, fmt.Errorf("decode %s: %w (%w)", bucket, err, domain.ErrStoreCorrupt)
		}
		if bucket == "meta" {
			snapshot.Sequence = m.Sequence
			snapshot.Revision = m.Revision
		}
	}
	if err := rows.Err(); err != nil {
		return memory.Snapshot{}, fmt.Errorf("iterate state: %w (%w)", err, domain.ErrStoreUnavailable)
	}
	return snapshot, nil
}

func (s *Store) persist(ctx context.Context) error {
	snapshot := s.ExportState()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w (%w)", err, domain.ErrStoreUnavailable)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var storedPayload []byte
	row := tx.QueryRowContext(ctx, `SELECT payload FROM state WHERE bucket = 'meta'`)
	switch err := row.Scan(&storedPayload); {
	case errors.Is(err, sql.ErrNoRows):
		// first persist into a fresh database
	case err != nil:
		return fmt.Errorf("read meta: %w (%w)", err, domain.ErrStoreUnavailable)
	default:
		var stored meta
		if err := json.Unmarshal(storedPayload, &stored); err != nil {
			return fmt.Errorf("decode meta: %w (%w)", err, domain.ErrStoreCorrupt)
		}
		if stored.Revision != s.lastRevision {
			return s.rehydrate(ctx, tx)
		}
	}

	for _, bucket := range postgresBuckets {
		var data []byte
		switch bucket {
		case "animals":
			data, err = json.Marshal(snapshot.Animals)
		case "users":
			data, err = json.Marshal(snapshot.Users)
		case "adoptions":
			data, err = json.Marshal(snapshot.Adoptions)
		case "requests":
			data, err = json.Marshal(snapshot.Requests)
		case "meta":
			data, err = json.Marshal(meta{Sequence: snapshot.Sequence, Revision: snapshot.Revision})
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload`, bucket, data); err != nil {
			return fmt.Errorf("upsert %s: %w (%w)", bucket, err, domain.ErrStoreUnavailable)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w (%w)", err, domain.ErrStoreUnavailable)
	}
	committed = true
	s.lastRevision = snapshot.Revision
	return nil
}

func (s *Store) rehydrate(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("select state: %w (%w)", err, domain.ErrStoreUnavailable)
	}
	defer func() { _ = rows.Close() }()

	var snapshot memory.Snapshot
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return fmt.Errorf("scan state: %w (%w)", err, domain.ErrStoreUnavailable)
		}
		var target any
		var m meta
		switch bucket {
		case "animals":
			target = &snapshot.Animals
		case "users":
			target = &snapshot.Users
		case "adoptions":
			target = &snapshot.Adoptions
		case "requests":
			target = &snapshot.Requests
		case "meta":
			target = &m
		default:
			continue
		}
		if err := json.Unmarshal(payload, target); err != nil {
			return fmt.Errorf("decode %s: %w (%w)", bucket, err, domain.ErrStoreCorrupt)
		}
		if bucket == "meta" {
			snapshot.Sequence = m.Sequence
			snapshot.Revision = m.Revision
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate state: %w (%w)", err, domain.ErrStoreUnavailable)
	}
	s.ImportState(snapshot)
	s.lastRevision = snapshot.Revision
	return domain.ErrConflict
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
