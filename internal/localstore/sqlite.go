// Package localstore persists the wallet snapshot on the local device using
// SQLite. The store is the always-available side of the sync pair: reads and
// writes are synchronous, never touch the network, and corrupt entries are
// dropped rather than treated as fatal.
package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/rishavrajjain/recipewallet/internal/wallet"
)

// Keys for the three serialized lists and the first-run flag.
const (
	keyRecipes      = "recipes"
	keyCollections  = "collections"
	keyShoppingList = "shopping_list"
	keyFirstRunDone = "first_run_done"
)

// schema contains the DDL executed on first open. Using IF NOT EXISTS makes
// it safe to run on every startup.
const schema = `
CREATE TABLE IF NOT EXISTS wallet (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Store is the durable local key/value store for the wallet snapshot.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database at dbPath, enables WAL mode and
// a busy timeout, and creates the schema if it does not exist.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("localstore: create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("localstore: open database: %w", err)
	}

	// Limit to one connection. SQLite only supports a single writer; one
	// connection avoids SQLITE_BUSY contention between pooled connections.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("localstore: enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("localstore: set busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("localstore: create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// LoadSnapshot reads the three lists. A missing or corrupt entry yields an
// empty list for that slot; it never fails the whole load.
func (s *Store) LoadSnapshot(ctx context.Context) (wallet.Snapshot, error) {
	var snap wallet.Snapshot
	if err := s.loadList(ctx, keyRecipes, &snap.Recipes); err != nil {
		return wallet.Snapshot{}, err
	}
	if err := s.loadList(ctx, keyCollections, &snap.Collections); err != nil {
		return wallet.Snapshot{}, err
	}
	if err := s.loadList(ctx, keyShoppingList, &snap.ShoppingList); err != nil {
		return wallet.Snapshot{}, err
	}
	return snap, nil
}

// loadList decodes one serialized list into dest. Decode errors leave dest
// untouched: corrupt data is discarded, not fatal.
func (s *Store) loadList(ctx context.Context, key string, dest any) error {
	raw, ok, err := s.get(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		// Corrupt entry. Treat as absent.
		return nil
	}
	return nil
}

// SaveRecipes persists the recipe list.
func (s *Store) SaveRecipes(ctx context.Context, recipes []wallet.Recipe) error {
	return s.saveList(ctx, keyRecipes, recipes)
}

// SaveCollections persists the collection list.
func (s *Store) SaveCollections(ctx context.Context, collections []wallet.Collection) error {
	return s.saveList(ctx, keyCollections, collections)
}

// SaveShoppingList persists the shopping list.
func (s *Store) SaveShoppingList(ctx context.Context, items []wallet.ShoppingListItem) error {
	return s.saveList(ctx, keyShoppingList, items)
}

// SaveSnapshot persists all three lists in a single transaction.
func (s *Store) SaveSnapshot(ctx context.Context, snap wallet.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("localstore: begin tx for snapshot: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	lists := []struct {
		key   string
		value any
	}{
		{keyRecipes, snap.Recipes},
		{keyCollections, snap.Collections},
		{keyShoppingList, snap.ShoppingList},
	}
	for _, l := range lists {
		raw, err := json.Marshal(l.value)
		if err != nil {
			return fmt.Errorf("localstore: marshal %s: %w", l.key, err)
		}
		if _, err := tx.ExecContext(ctx, upsertQuery, l.key, string(raw)); err != nil {
			return fmt.Errorf("localstore: save %s: %w", l.key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("localstore: commit snapshot: %w", err)
	}
	return nil
}

const upsertQuery = `
	INSERT INTO wallet (key, value, updated_at)
	VALUES (?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`

func (s *Store) saveList(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("localstore: marshal %s: %w", key, err)
	}
	if _, err := s.db.ExecContext(ctx, upsertQuery, key, string(raw)); err != nil {
		return fmt.Errorf("localstore: save %s: %w", key, err)
	}
	return nil
}

// FirstRunDone reports whether the first-run flag has been set. A corrupt
// flag value reads as false.
func (s *Store) FirstRunDone(ctx context.Context) (bool, error) {
	raw, ok, err := s.get(ctx, keyFirstRunDone)
	if err != nil {
		return false, err
	}
	return ok && raw == "true", nil
}

// MarkFirstRunDone sets the first-run flag. The flag is monotonic; there is
// no way to clear it.
func (s *Store) MarkFirstRunDone(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, upsertQuery, keyFirstRunDone, "true"); err != nil {
		return fmt.Errorf("localstore: mark first run done: %w", err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string) (string, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM wallet WHERE key = ?", key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("localstore: get %s: %w", key, err)
	}
	return raw, true, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
