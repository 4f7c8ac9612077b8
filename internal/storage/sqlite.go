package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// SQLiteStorage keeps report snapshots in a local SQLite database
type SQLiteStorage struct {
	db *sql.DB
}

var _ StorageInterface = (*SQLiteStorage)(nil)

// NewSQLiteStorage opens (and migrates) the database at path. Use
// ":memory:" for a throwaway store.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite database: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS snapshots (
		name TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		stored_at DATETIME NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate sqlite database: %w", err)
	}

	logrus.Debugf("Opened snapshot database %s", path)
	return &SQLiteStorage{db: db}, nil
}

// Close releases the database handle
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) Store(filename string, data []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO snapshots (name, data, stored_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET data = excluded.data, stored_at = excluded.stored_at`,
		filename, data, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to store snapshot %s: %w", filename, err)
	}
	return nil
}

func (s *SQLiteStorage) Retrieve(filename string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM snapshots WHERE name = ?`, filename).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Name: filename}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", filename, err)
	}
	return data, nil
}

func (s *SQLiteStorage) List(prefix string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT name FROM snapshots WHERE substr(name, 1, ?) = ? ORDER BY name`,
		len(prefix), prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *SQLiteStorage) Delete(filename string) error {
	res, err := s.db.Exec(`DELETE FROM snapshots WHERE name = ?`, filename)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot %s: %w", filename, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &NotFoundError{Name: strings.TrimSpace(filename)}
	}
	return nil
}
