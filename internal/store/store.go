package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mdcards/mdcards/pkg/logger"
)

var (
	ErrDeckNotFound = errors.New("deck not found")
	ErrCardNotFound = errors.New("card not found")
)

// Store is the application's deck/card repository on a local SQLite file.
// Distinct from the Anki collection databases the codec reads and writes.
type Store struct {
	db  *sql.DB
	log *logger.Logger
}

func Open(path string, log *logger.Logger) (*Store, error) {
	// pragmas go in the DSN so every pooled connection gets them
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, log: log}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) init() error {
	if _, err := s.db.Exec(initialSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	for key, value := range defaultMetaEntries {
		if _, err := s.db.Exec(
			"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO NOTHING",
			key, value); err != nil {
			return fmt.Errorf("failed to seed meta: %w", err)
		}
	}
	s.log.Debug("store ready (schema version %d)", schemaVersion)
	return nil
}

// nextID claims the next counter value from the meta table inside tx.
func nextID(tx *sql.Tx, key string) (int64, error) {
	var raw string
	if err := tx.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&raw); err != nil {
		return 0, fmt.Errorf("failed to read counter %s: %w", key, err)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt counter %s: %w", key, err)
	}
	if _, err := tx.Exec("UPDATE meta SET value = ? WHERE key = ?",
		strconv.FormatInt(id+1, 10), key); err != nil {
		return 0, fmt.Errorf("failed to bump counter %s: %w", key, err)
	}
	return id, nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
