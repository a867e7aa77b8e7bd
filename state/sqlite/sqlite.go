// Package sqlite is a SQLite-backed state.Store: every committed
// snapshot's accounts, keyed by the block id that produced them.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lightchain-network/lightchain/identifier"
	"github.com/lightchain-network/lightchain/model"
)

// Store is a SQLite-backed implementation of state.Store.
type Store struct {
	db *sql.DB
}

// Config holds configuration for SQLite.
type Config struct {
	DBPath string // Path to SQLite database file
}

// New creates a new SQLite-backed state store.
func New(config *Config) (*Store, error) {
	if config.DBPath == "" {
		return nil, fmt.Errorf("DBPath is required")
	}

	db, err := sql.Open("sqlite3", config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	store := &Store{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshot_blocks (
		block_id   BLOB PRIMARY KEY,
		height     INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_snapshot_blocks_height ON snapshot_blocks(height);

	CREATE TABLE IF NOT EXISTS accounts (
		block_id    BLOB NOT NULL,
		account_id  BLOB NOT NULL,
		data        BLOB NOT NULL,

		PRIMARY KEY (block_id, account_id),
		FOREIGN KEY (block_id) REFERENCES snapshot_blocks(block_id) ON DELETE CASCADE
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// PutSnapshot persists accounts as the committed account set as of
// blockID/height, atomically.
func (s *Store) PutSnapshot(ctx context.Context, blockID identifier.Identifier, height uint64, accounts map[identifier.Identifier]model.Account) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO snapshot_blocks (block_id, height) VALUES (?, ?)`,
		blockID.Bytes(), height,
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot block: %w", err)
	}

	for id, account := range accounts {
		encoded, err := model.EncodeAccount(account)
		if err != nil {
			return fmt.Errorf("failed to encode account %s: %w", id, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO accounts (block_id, account_id, data) VALUES (?, ?, ?)`,
			blockID.Bytes(), id.Bytes(), encoded,
		)
		if err != nil {
			return fmt.Errorf("failed to insert account %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Accounts returns the account set committed as of blockID, or
// (nil, 0, nil) if blockID is not a known snapshot block.
func (s *Store) Accounts(ctx context.Context, blockID identifier.Identifier) (map[identifier.Identifier]model.Account, uint64, error) {
	var height uint64
	err := s.db.QueryRowContext(ctx,
		`SELECT height FROM snapshot_blocks WHERE block_id = ?`, blockID.Bytes(),
	).Scan(&height)
	if err == sql.ErrNoRows {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query snapshot block: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT account_id, data FROM accounts WHERE block_id = ?`, blockID.Bytes(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	accounts := make(map[identifier.Identifier]model.Account)
	for rows.Next() {
		var idBytes, data []byte
		if err := rows.Scan(&idBytes, &data); err != nil {
			return nil, 0, fmt.Errorf("failed to scan account: %w", err)
		}
		id, err := identifier.New(idBytes)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid account id: %w", err)
		}
		account, err := model.DecodeAccount(data)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to decode account: %w", err)
		}
		accounts[id] = account
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, height, nil
}

// Close releases all database resources.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
