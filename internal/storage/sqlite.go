package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/webmip/postbank/internal/model"

	_ "modernc.org/sqlite"
)

const (
	dbFile = "postbank.db"

	// Secure file permissions - owner read/write only
	secureFileMode = 0600 // -rw-------
	secureDirMode  = 0700 // drwx------
)

// migrations are applied in order; index i brings the schema to version i+1.
// Entries are additive only: existing tables are never altered or dropped.
var migrations = []string{
	// v1: core record stores
	`
	CREATE TABLE IF NOT EXISTS collections (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		requests TEXT NOT NULL DEFAULT '[]'
	);

	CREATE TABLE IF NOT EXISTS history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp INTEGER NOT NULL,
		request TEXT NOT NULL,
		response TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_history_timestamp ON history(timestamp DESC);

	CREATE TABLE IF NOT EXISTS saved_requests (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		request TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS environments (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		variables TEXT NOT NULL DEFAULT '[]'
	);
	`,
	// v2: cookies keyed by (domain, name)
	`
	CREATE TABLE IF NOT EXISTS cookies (
		domain TEXT NOT NULL,
		name TEXT NOT NULL,
		value TEXT NOT NULL DEFAULT '',
		enabled INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY (domain, name)
	);
	`,
}

// SchemaVersion is the version an opened database is migrated to.
var SchemaVersion = len(migrations)

// ensureSecureFile creates a file with secure permissions if it doesn't exist,
// or verifies/fixes permissions if it does exist.
func ensureSecureFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, secureFileMode)
		if err != nil {
			return fmt.Errorf("failed to create secure file: %w", err)
		}
		f.Close()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	if info.Mode().Perm() != secureFileMode {
		if err := os.Chmod(path, secureFileMode); err != nil {
			return fmt.Errorf("failed to set secure permissions: %w", err)
		}
	}
	return nil
}

// decodeColumn unmarshals a JSON column. An empty column leaves dst untouched.
func decodeColumn(raw string, dst any) error {
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("failed to parse JSON column: %w", err)
	}
	return nil
}

func encodeColumn(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode JSON column: %w", err)
	}
	return string(data), nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx so list reads can run
// inside a write transaction.
type queryer interface {
	Query(query string, args ...any) (*sql.Rows, error)
}

// SQLiteStorage is the versioned record store: collections, history, saved
// requests, environments and cookies. Every write runs in one transaction
// and returns the authoritative list re-read inside that transaction.
type SQLiteStorage struct {
	db      *sql.DB
	dataDir string
}

// Open opens (creating if needed) the database under dataDir and migrates
// it to SchemaVersion.
func Open(dataDir string) (*SQLiteStorage, error) {
	if err := os.MkdirAll(dataDir, secureDirMode); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFile)
	if err := ensureSecureFile(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// Single connection: sqlite serializes writers anyway and reads issued
	// through a Tx must not wait on a second connection.
	db.SetMaxOpenConns(1)

	s := &SQLiteStorage{db: db, dataDir: dataDir}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// DataDir returns the directory holding the database file.
func (s *SQLiteStorage) DataDir() string {
	return s.dataDir
}

// Version returns the schema version recorded in the database.
func (s *SQLiteStorage) Version() (int, error) {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}

// migrate runs every pending migration and bumps user_version in one
// transaction, so a failed upgrade leaves the previous version intact.
func (s *SQLiteStorage) migrate() error {
	current, err := s.Version()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if current >= len(migrations) {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for v := current; v < len(migrations); v++ {
		if _, err := tx.Exec(migrations[v]); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", v+1, err)
		}
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", len(migrations))); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}
	return tx.Commit()
}

// =============================================================================
// Collection Operations
// =============================================================================

// LoadCollections returns all collections in insertion order.
func (s *SQLiteStorage) LoadCollections() ([]model.Collection, error) {
	return listCollections(s.db)
}

func listCollections(q queryer) ([]model.Collection, error) {
	rows, err := q.Query("SELECT id, name, requests FROM collections ORDER BY rowid")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	collections := []model.Collection{}
	for rows.Next() {
		var c model.Collection
		var requestsJSON string
		if err := rows.Scan(&c.ID, &c.Name, &requestsJSON); err != nil {
			return nil, err
		}
		if err := decodeColumn(requestsJSON, &c.Requests); err != nil {
			return nil, err
		}
		if c.Requests == nil {
			c.Requests = []model.Request{}
		}
		collections = append(collections, c)
	}
	return collections, rows.Err()
}

// SaveCollection inserts or replaces c by id and returns the full list.
// A replaced collection keeps its position.
func (s *SQLiteStorage) SaveCollection(c model.Collection) ([]model.Collection, error) {
	requests := c.Requests
	if requests == nil {
		requests = []model.Request{}
	}
	requestsJSON, err := encodeColumn(requests)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO collections (id, name, requests) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, requests = excluded.requests`,
		c.ID, c.Name, requestsJSON)
	if err != nil {
		return nil, err
	}

	collections, err := listCollections(tx)
	if err != nil {
		return nil, err
	}
	return collections, tx.Commit()
}

// DeleteCollection removes the collection with id and returns the full list.
func (s *SQLiteStorage) DeleteCollection(id string) ([]model.Collection, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM collections WHERE id = ?", id); err != nil {
		return nil, err
	}

	collections, err := listCollections(tx)
	if err != nil {
		return nil, err
	}
	return collections, tx.Commit()
}

// =============================================================================
// History Operations
// =============================================================================

// LoadHistory returns every history entry, newest first.
func (s *SQLiteStorage) LoadHistory() ([]model.HistoryEntry, error) {
	return listHistory(s.db)
}

func listHistory(q queryer) ([]model.HistoryEntry, error) {
	rows, err := q.Query(`
		SELECT id, timestamp, request, response
		FROM history
		ORDER BY timestamp DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := []model.HistoryEntry{}
	for rows.Next() {
		var e model.HistoryEntry
		var requestJSON, responseJSON string
		if err := rows.Scan(&e.ID, &e.Timestamp, &requestJSON, &responseJSON); err != nil {
			return nil, err
		}
		if err := decodeColumn(requestJSON, &e.Request); err != nil {
			return nil, err
		}
		if err := decodeColumn(responseJSON, &e.Response); err != nil {
			return nil, err
		}
		history = append(history, e)
	}
	return history, rows.Err()
}

// AddHistory appends an entry with the given timestamp. The id is assigned
// by the database. Returns the full history, newest first.
func (s *SQLiteStorage) AddHistory(timestamp int64, req model.Request, resp model.Response) ([]model.HistoryEntry, error) {
	requestJSON, err := encodeColumn(req)
	if err != nil {
		return nil, err
	}
	responseJSON, err := encodeColumn(resp)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		"INSERT INTO history (timestamp, request, response) VALUES (?, ?, ?)",
		timestamp, requestJSON, responseJSON)
	if err != nil {
		return nil, err
	}

	history, err := listHistory(tx)
	if err != nil {
		return nil, err
	}
	return history, tx.Commit()
}

// ClearHistory removes every history entry.
func (s *SQLiteStorage) ClearHistory() error {
	_, err := s.db.Exec("DELETE FROM history")
	return err
}

// =============================================================================
// Saved Request Operations
// =============================================================================

// LoadSavedRequests returns saved requests in insertion order.
func (s *SQLiteStorage) LoadSavedRequests() ([]model.SavedRequest, error) {
	return listSavedRequests(s.db)
}

func listSavedRequests(q queryer) ([]model.SavedRequest, error) {
	rows, err := q.Query("SELECT id, name, request, created_at FROM saved_requests ORDER BY rowid")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	saved := []model.SavedRequest{}
	for rows.Next() {
		var sr model.SavedRequest
		var requestJSON string
		if err := rows.Scan(&sr.ID, &sr.Name, &requestJSON, &sr.CreatedAt); err != nil {
			return nil, err
		}
		if err := decodeColumn(requestJSON, &sr.Request); err != nil {
			return nil, err
		}
		saved = append(saved, sr)
	}
	return saved, rows.Err()
}

// SaveRequest inserts or replaces sr by id and returns the full list.
func (s *SQLiteStorage) SaveRequest(sr model.SavedRequest) ([]model.SavedRequest, error) {
	requestJSON, err := encodeColumn(sr.Request)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO saved_requests (id, name, request, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			request = excluded.request,
			created_at = excluded.created_at`,
		sr.ID, sr.Name, requestJSON, sr.CreatedAt)
	if err != nil {
		return nil, err
	}

	saved, err := listSavedRequests(tx)
	if err != nil {
		return nil, err
	}
	return saved, tx.Commit()
}

// DeleteSavedRequest removes the saved request with id and returns the full list.
func (s *SQLiteStorage) DeleteSavedRequest(id string) ([]model.SavedRequest, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM saved_requests WHERE id = ?", id); err != nil {
		return nil, err
	}

	saved, err := listSavedRequests(tx)
	if err != nil {
		return nil, err
	}
	return saved, tx.Commit()
}

// =============================================================================
// Environment Operations
// =============================================================================

// LoadEnvironments returns environments in insertion order.
func (s *SQLiteStorage) LoadEnvironments() ([]model.Environment, error) {
	return listEnvironments(s.db)
}

func listEnvironments(q queryer) ([]model.Environment, error) {
	rows, err := q.Query("SELECT id, name, variables FROM environments ORDER BY rowid")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	envs := []model.Environment{}
	for rows.Next() {
		var env model.Environment
		var variablesJSON string
		if err := rows.Scan(&env.ID, &env.Name, &variablesJSON); err != nil {
			return nil, err
		}
		if err := decodeColumn(variablesJSON, &env.Variables); err != nil {
			return nil, err
		}
		if env.Variables == nil {
			env.Variables = []model.Variable{}
		}
		envs = append(envs, env)
	}
	return envs, rows.Err()
}

// SaveEnvironment inserts or replaces env by id and returns the full list.
func (s *SQLiteStorage) SaveEnvironment(env model.Environment) ([]model.Environment, error) {
	variables := env.Variables
	if variables == nil {
		variables = []model.Variable{}
	}
	variablesJSON, err := encodeColumn(variables)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO environments (id, name, variables) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, variables = excluded.variables`,
		env.ID, env.Name, variablesJSON)
	if err != nil {
		return nil, err
	}

	envs, err := listEnvironments(tx)
	if err != nil {
		return nil, err
	}
	return envs, tx.Commit()
}

// DeleteEnvironment removes the environment with id and returns the full list.
func (s *SQLiteStorage) DeleteEnvironment(id string) ([]model.Environment, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM environments WHERE id = ?", id); err != nil {
		return nil, err
	}

	envs, err := listEnvironments(tx)
	if err != nil {
		return nil, err
	}
	return envs, tx.Commit()
}

// =============================================================================
// Cookie Operations
// =============================================================================

// LoadCookies returns the flat cookie record set in insertion order.
func (s *SQLiteStorage) LoadCookies() ([]model.Cookie, error) {
	return listCookies(s.db)
}

func listCookies(q queryer) ([]model.Cookie, error) {
	rows, err := q.Query("SELECT domain, name, value, enabled FROM cookies ORDER BY rowid")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cookies := []model.Cookie{}
	for rows.Next() {
		var c model.Cookie
		if err := rows.Scan(&c.Domain, &c.Name, &c.Value, &c.Enabled); err != nil {
			return nil, err
		}
		cookies = append(cookies, c)
	}
	return cookies, rows.Err()
}

// UpsertCookie inserts c or replaces the cookie with the same (domain, name).
func (s *SQLiteStorage) UpsertCookie(c model.Cookie) ([]model.Cookie, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO cookies (domain, name, value, enabled) VALUES (?, ?, ?, ?)
		ON CONFLICT(domain, name) DO UPDATE SET value = excluded.value, enabled = excluded.enabled`,
		c.Domain, c.Name, c.Value, c.Enabled)
	if err != nil {
		return nil, err
	}

	cookies, err := listCookies(tx)
	if err != nil {
		return nil, err
	}
	return cookies, tx.Commit()
}

// DeleteCookie removes the cookie identified by (domain, name).
func (s *SQLiteStorage) DeleteCookie(domain, name string) ([]model.Cookie, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM cookies WHERE domain = ? AND name = ?", domain, name); err != nil {
		return nil, err
	}

	cookies, err := listCookies(tx)
	if err != nil {
		return nil, err
	}
	return cookies, tx.Commit()
}

// =============================================================================
// Bulk Operations
// =============================================================================

// ClearAll empties every record store in one transaction.
func (s *SQLiteStorage) ClearAll() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"collections", "history", "saved_requests", "environments", "cookies"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return tx.Commit()
}
