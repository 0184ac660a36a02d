// Package state persists the local-scope key-value state (the last Snapshot and
// the SeenMap) in a SQLite database.
package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/h0rv/prwatch/internal/domain"
	_ "modernc.org/sqlite"
)

// Keys of the persisted layout.
const (
	KeyPreviousItems = "previousItems"
	KeySeenItems     = "seenItems"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
    key         TEXT PRIMARY KEY,
    value       TEXT NOT NULL,
    updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
);
`

// Store is a key-value store over SQLite. Values are JSON documents.
type Store struct {
	db *sql.DB
}

// Open opens (and creates if needed) the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating state directory: %w", err)
		}
	}

	// Transactions take the write lock up front so a read-modify-write cannot
	// interleave with another process sharing the file.
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("opening state database: %w", err)
	}
	// SQLite allows one writer; a single connection keeps transactions simple
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running schema migration: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the raw JSON stored under each key. Missing keys are absent from the result.
func (s *Store) Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM kv WHERE key IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "get", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, &domain.PersistenceError{Op: "get", Err: err}
		}
		out[key] = json.RawMessage(value)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "get", Err: err}
	}
	return out, nil
}

// Set writes every entry of values in one transaction: all of them land or none do.
func (s *Store) Set(ctx context.Context, values map[string]any) error {
	encoded := make(map[string]string, len(values))
	for key, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return &domain.PersistenceError{Op: "set", Err: fmt.Errorf("encoding %s: %w", key, err)}
		}
		encoded[key] = string(data)
	}

	return s.inTx(ctx, "set", func(tx *sql.Tx) error {
		for key, value := range encoded {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO kv (key, value) VALUES (?, ?)
				 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = datetime('now')`,
				key, value,
			); err != nil {
				return fmt.Errorf("writing %s: %w", key, err)
			}
		}
		return nil
	})
}

// Remove deletes keys in one transaction. Missing keys are ignored.
func (s *Store) Remove(ctx context.Context, keys ...string) error {
	return s.inTx(ctx, "remove", func(tx *sql.Tx) error {
		for _, key := range keys {
			if _, err := tx.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
				return fmt.Errorf("deleting %s: %w", key, err)
			}
		}
		return nil
	})
}

func (s *Store) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &domain.PersistenceError{Op: op, Err: err}
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return &domain.PersistenceError{Op: op, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &domain.PersistenceError{Op: op, Err: err}
	}
	return nil
}

// Load returns the persisted snapshot and seen-map. hasSnapshot is false when
// no cycle has completed yet; the seen-map is then empty rather than nil.
func (s *Store) Load(ctx context.Context) (snap domain.Snapshot, seen domain.SeenMap, hasSnapshot bool, err error) {
	raw, err := s.Get(ctx, KeyPreviousItems, KeySeenItems)
	if err != nil {
		return domain.Snapshot{}, nil, false, err
	}

	seen = domain.SeenMap{}
	if v, ok := raw[KeySeenItems]; ok {
		if err := json.Unmarshal(v, &seen); err != nil {
			return domain.Snapshot{}, nil, false, &domain.PersistenceError{Op: "load", Err: fmt.Errorf("decoding %s: %w", KeySeenItems, err)}
		}
		if seen == nil {
			seen = domain.SeenMap{}
		}
	}

	if v, ok := raw[KeyPreviousItems]; ok {
		if err := json.Unmarshal(v, &snap); err != nil {
			return domain.Snapshot{}, nil, false, &domain.PersistenceError{Op: "load", Err: fmt.Errorf("decoding %s: %w", KeyPreviousItems, err)}
		}
		hasSnapshot = true
	}

	return snap, seen, hasSnapshot, nil
}

// LoadSeen returns only the seen-map.
func (s *Store) LoadSeen(ctx context.Context) (domain.SeenMap, error) {
	_, seen, _, err := s.Load(ctx)
	return seen, err
}

// SaveCycle persists the snapshot and seen-map together.
func (s *Store) SaveCycle(ctx context.Context, snap domain.Snapshot, seen domain.SeenMap) error {
	if seen == nil {
		seen = domain.SeenMap{}
	}
	return s.Set(ctx, map[string]any{
		KeyPreviousItems: snap,
		KeySeenItems:     seen,
	})
}

// Reconcile reads the seen-map, hands it to fn, and persists the snapshot and
// seen-map fn returns, all in one transaction. A MarkSeen from another process
// lands either before the read or after the write, never in between.
func (s *Store) Reconcile(ctx context.Context, fn func(seen domain.SeenMap) (domain.Snapshot, domain.SeenMap, error)) error {
	return s.inTx(ctx, "reconcile", func(tx *sql.Tx) error {
		seen, err := readSeen(ctx, tx)
		if err != nil {
			return err
		}
		snap, next, err := fn(seen)
		if err != nil {
			return err
		}
		if next == nil {
			next = domain.SeenMap{}
		}
		if err := writeValue(ctx, tx, KeyPreviousItems, snap); err != nil {
			return err
		}
		return writeValue(ctx, tx, KeySeenItems, next)
	})
}

// MarkSeen records that the user observed item id at the given instant.
// The read and the write share one transaction.
func (s *Store) MarkSeen(ctx context.Context, id string, at time.Time) error {
	return s.inTx(ctx, "mark seen", func(tx *sql.Tx) error {
		seen, err := readSeen(ctx, tx)
		if err != nil {
			return err
		}
		seen[id] = at.UTC()
		return writeValue(ctx, tx, KeySeenItems, seen)
	})
}

func readSeen(ctx context.Context, tx *sql.Tx) (domain.SeenMap, error) {
	seen := domain.SeenMap{}
	var value string
	err := tx.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, KeySeenItems).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return seen, nil
	case err != nil:
		return nil, fmt.Errorf("reading %s: %w", KeySeenItems, err)
	}
	if err := json.Unmarshal([]byte(value), &seen); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", KeySeenItems, err)
	}
	if seen == nil {
		seen = domain.SeenMap{}
	}
	return seen, nil
}

func writeValue(ctx context.Context, tx *sql.Tx, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = datetime('now')`,
		key, string(data),
	); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// Clear removes the snapshot and seen-map.
func (s *Store) Clear(ctx context.Context) error {
	return s.Remove(ctx, KeyPreviousItems, KeySeenItems)
}
