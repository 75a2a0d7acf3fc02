// Package store persists conversation state between sessions: per-slot
// private globals and the shared quest flags.
package store

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// GlobalStore is the SQLite-backed save layer.
type GlobalStore struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens or creates the save database at path.
func Open(path string) (*GlobalStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS conv_globals (
		slot  INTEGER NOT NULL,
		idx   INTEGER NOT NULL,
		value INTEGER NOT NULL,
		PRIMARY KEY (slot, idx)
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating conv_globals: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS quest_flags (
		id    INTEGER PRIMARY KEY,
		value INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating quest_flags: %w", err)
	}

	return &GlobalStore{db: db}, nil
}

// Close closes the database connection.
func (s *GlobalStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveSlot replaces the saved private globals for one conversation slot.
func (s *GlobalStore) SaveSlot(slot int, values []uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM conv_globals WHERE slot = ?", slot); err != nil {
		return fmt.Errorf("clearing slot %d: %w", slot, err)
	}
	stmt, err := tx.Prepare("INSERT INTO conv_globals (slot, idx, value) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, v := range values {
		if _, err := stmt.Exec(slot, i, v); err != nil {
			return fmt.Errorf("saving slot %d cell %d: %w", slot, i, err)
		}
	}
	return tx.Commit()
}

// LoadSlot returns the saved private globals for a slot, nil when the slot
// has never been saved.
func (s *GlobalStore) LoadSlot(slot int) ([]uint16, error) {
	rows, err := s.db.Query(
		"SELECT idx, value FROM conv_globals WHERE slot = ? ORDER BY idx", slot)
	if err != nil {
		return nil, fmt.Errorf("querying slot %d: %w", slot, err)
	}
	defer rows.Close()

	var values []uint16
	for rows.Next() {
		var idx, value int
		if err := rows.Scan(&idx, &value); err != nil {
			return nil, fmt.Errorf("scanning slot %d: %w", slot, err)
		}
		for len(values) < idx {
			values = append(values, 0)
		}
		values = append(values, uint16(value))
	}
	return values, rows.Err()
}

// SaveQuests writes every quest flag in the map.
func (s *GlobalStore) SaveQuests(flags map[int]uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for id, v := range flags {
		if _, err := tx.Exec(
			"INSERT OR REPLACE INTO quest_flags (id, value) VALUES (?, ?)",
			id, v,
		); err != nil {
			return fmt.Errorf("saving quest %d: %w", id, err)
		}
	}
	return tx.Commit()
}

// LoadQuests reads all saved quest flags.
func (s *GlobalStore) LoadQuests() (map[int]uint16, error) {
	rows, err := s.db.Query("SELECT id, value FROM quest_flags")
	if err != nil {
		return nil, fmt.Errorf("querying quests: %w", err)
	}
	defer rows.Close()

	flags := make(map[int]uint16)
	for rows.Next() {
		var id, value int
		if err := rows.Scan(&id, &value); err != nil {
			return nil, fmt.Errorf("scanning quest: %w", err)
		}
		flags[id] = uint16(value)
	}
	return flags, rows.Err()
}
