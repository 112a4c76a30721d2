// Package sqlite provides a SQLite-backed persistent store that mirrors the
// in-memory semantics. The full state is snapshotted to a single table as
// JSON blobs after every successful transaction, guarded by an optimistic
// revision check so concurrent processes sharing one file cannot silently
// overwrite each other.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"sheltercore/internal/infra/persistence/memory"
	"sheltercore/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

var sqliteBuckets = []string{"animals", "users", "adoptions", "requests", "meta"}

// meta carries the snapshot counters persisted alongside the entity buckets.
type meta struct {
	Sequence int64  `json:"sequence"`
	Revision uint64 `json:"revision"`
}

// Store persists the in-memory state to a single SQLite table as JSON blobs.
type Store struct {
	*memory.Store
	db           *sql.DB
	mu           sync.Mutex
	path         string
	lastRevision uint64
}

// NewStore constructs a snapshotting SQLite-backed persistent store. An absent
// database file is bootstrapped with an empty snapshot. A present file whose
// payloads do not decode reports domain.ErrStoreCorrupt; a file that cannot be
// opened or read reports domain.ErrStoreUnavailable.
func NewStore(path string, engine *domain.RulesEngine) (*Store, error) {
	if path == "" {
		path = "sheltercore.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w (%w)", err, domain.ErrStoreUnavailable)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w (%w)", err, domain.ErrStoreUnavailable)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state table: %w (%w)", err, domain.ErrStoreUnavailable)
	}
	s := &Store{Store: memory.NewStore(engine), db: db, path: path}
	if err := s.load(); err != nil {
		if !errors.Is(err, domain.ErrStoreCorrupt) {
			_ = db.Close()
			return nil, err
		}
		// Undecodable payloads are unrecoverable; start over from an empty
		// snapshot rather than refuse to open.
		if _, clearErr := db.Exec(`DELETE FROM state`); clearErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("clear corrupt state: %w (%w)", clearErr, domain.ErrStoreUnavailable)
		}
		s.ImportState(memory.Snapshot{})
		s.lastRevision = 0
	}
	if err := s.persistLocked(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("select state: %w (%w)", err, domain.ErrStoreUnavailable)
	}
	defer func() { _ = rows.Close() }()

	snapshot, found, err := decodeSnapshot(rows)
	if err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate state: %w (%w)", err, domain.ErrStoreUnavailable)
	}
	if !found {
		return nil
	}
	s.ImportState(snapshot)
	s.lastRevision = snapshot.Revision
	return nil
}

func decodeSnapshot(rows *sql.Rows) (memory.Snapshot, bool, error) {
	var snapshot memory.Snapshot
	found := false
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return memory.Snapshot{}, false, fmt.Errorf("scan state: %w (%w)", err, domain.ErrStoreUnavailable)
		}
		found = true
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
			return memory.Snapshot{}, false, fmt.Errorf("decode %s: %w (%w)", bucket, err, domain.ErrStoreCorrupt)
		}
		if bucket == "meta" {
			snapshot.Sequence = m.Sequence
			snapshot.Revision = m.Revision
		}
	}
	return snapshot, found, nil
}

// RunInTransaction applies fn within a transaction, then snapshots state to
// SQLite if successful. A revision mismatch against the stored snapshot means
// another process committed since this one last loaded; the in-memory state is
// rehydrated from disk and domain.ErrConflict is returned so the caller can
// retry against fresh state.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if pErr := s.persistLocked(); pErr != nil {
		return res, pErr
	}
	return res, nil
}

func (s *Store) persistLocked() (retErr error) {
	snapshot := s.ExportState()

	tx, err := s.db.Begin()
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
	row := tx.QueryRow(`SELECT payload FROM state WHERE bucket = 'meta'`)
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
			return s.rehydrate(tx)
		}
	}

	for _, bucket := range sqliteBuckets {
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
		if _, err = tx.Exec(`INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, bucket, data); err != nil {
			return fmt.Errorf("upsert %s: %w (%w)", bucket, err, domain.ErrStoreUnavailable)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w (%w)", err, domain.ErrStoreUnavailable)
	}
	committed = true
	s.lastRevision = snapshot.Revision
	return nil
}

// rehydrate replaces the in-memory state with the snapshot another writer
// committed, then reports the conflict.
func (s *Store) rehydrate(tx *sql.Tx) error {
	rows, err := tx.Query(`SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("select state: %w (%w)", err, domain.ErrStoreUnavailable)
	}
	defer func() { _ = rows.Close() }()
	snapshot, _, err := decodeSnapshot(rows)
	if err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate state: %w (%w)", err, domain.ErrStoreUnavailable)
	}
	s.ImportState(snapshot)
	s.lastRevision = snapshot.Revision
	return domain.ErrConflict
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close flushes nothing further and releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
