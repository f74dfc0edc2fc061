// Package sqlite implements the repository interfaces on top of SQLite.
//
// WHY modernc.org/sqlite?
// It is a pure Go translation of SQLite: no CGo, no C toolchain, and the whole
// "document store" is a single file next to the binary.
//
// LAYOUT:
// DB owns the connection pool. Each collection gets a small store type that
// shares the pool:
//
//	db.Users()      → *UserStore      (repository.UserRepository)
//	db.Codespaces() → *CodespaceStore (repository.CodespaceRepository)
//	db.Sessions()   → *SessionStore   (session.Store)
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DB wraps a sql.DB connection pool.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/codespaces.db" → file-based database
//   - ":memory:"           → in-memory database for tests
//
// PRAGMAS IN THE DSN:
// database/sql hands out several connections, and `PRAGMA foreign_keys` is a
// per-connection setting. Passing it through the `_pragma` DSN parameter makes
// the driver apply it to every connection it opens, not just the first one.
func New(dbPath string) (*DB, error) {
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every connection to ":memory:" is a separate, empty database.
	// Pin the pool to one connection so all queries see the same tables.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in flight.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the database is reachable. Used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Users returns the user collection.
func (db *DB) Users() *UserStore {
	return &UserStore{conn: db.conn}
}

// Codespaces returns the codespace collection.
func (db *DB) Codespaces() *CodespaceStore {
	return &CodespaceStore{conn: db.conn}
}

// Sessions returns the server-side session table.
func (db *DB) Sessions() *SessionStore {
	return &SessionStore{conn: db.conn}
}

// migrate creates the schema. Every statement is idempotent.
//
// UNIQUENESS LIVES IN THE SCHEMA:
// Services pre-check username/email/title before inserting, but two concurrent
// requests can both pass the pre-check. The UNIQUE constraints below are what
// actually prevent the double insert; the losing request gets a CONFLICT error.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id               TEXT PRIMARY KEY,
			name             TEXT NOT NULL DEFAULT '',
			username         TEXT NOT NULL UNIQUE,
			username_lower   TEXT NOT NULL DEFAULT '',
			email            TEXT NOT NULL UNIQUE,
			password_hash    TEXT NOT NULL,
			avatar           TEXT NOT NULL DEFAULT '',
			followers        INTEGER NOT NULL DEFAULT 0 CHECK (followers >= 0),
			codespaces_count INTEGER NOT NULL DEFAULT 0 CHECK (codespaces_count >= 0),
			github_id        INTEGER UNIQUE,
			created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	if err := db.backfillUsernameLower(); err != nil {
		return err
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS codespaces (
			id           TEXT PRIMARY KEY,
			owner_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			title        TEXT NOT NULL,
			description  TEXT NOT NULL DEFAULT '',
			code         TEXT NOT NULL,
			language     TEXT NOT NULL,
			is_public    INTEGER NOT NULL DEFAULT 0,
			stars        INTEGER NOT NULL DEFAULT 0 CHECK (stars >= 0),
			views        INTEGER NOT NULL DEFAULT 0 CHECK (views >= 0),
			downloads    INTEGER NOT NULL DEFAULT 0 CHECK (downloads >= 0),
			contributors INTEGER NOT NULL DEFAULT 0 CHECK (contributors >= 0),
			commits      INTEGER NOT NULL DEFAULT 0 CHECK (commits >= 0),
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (owner_id, title)
		);
		CREATE INDEX IF NOT EXISTS idx_codespaces_title_public ON codespaces(title, is_public);
	`)
	if err != nil {
		return fmt.Errorf("creating codespaces table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			expires_at DATETIME NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating sessions table: %w", err)
	}

	return nil
}

// backfillUsernameLower adds users.username_lower to databases created before
// it existed and fills it in Go. SQLite's lower() folds ASCII only.
func (db *DB) backfillUsernameLower() error {
	var n int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info('users') WHERE name = 'username_lower'`,
	).Scan(&n)
	if err != nil {
		return fmt.Errorf("inspecting users table: %w", err)
	}
	if n == 0 {
		if _, err := db.conn.Exec(`ALTER TABLE users ADD COLUMN username_lower TEXT NOT NULL DEFAULT ''`); err != nil {
			return fmt.Errorf("adding username_lower: %w", err)
		}
	}

	rows, err := db.conn.Query(`SELECT id, username FROM users WHERE username_lower = ''`)
	if err != nil {
		return fmt.Errorf("listing users to backfill: %w", err)
	}
	pending := map[string]string{}
	for rows.Next() {
		var id, username string
		if err := rows.Scan(&id, &username); err != nil {
			rows.Close()
			return fmt.Errorf("scanning user to backfill: %w", err)
		}
		pending[id] = username
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating users to backfill: %w", err)
	}

	for id, username := range pending {
		if _, err := db.conn.Exec(`UPDATE users SET username_lower = ? WHERE id = ?`, strings.ToLower(username), id); err != nil {
			return fmt.Errorf("backfilling username_lower: %w", err)
		}
	}

	_, err = db.conn.Exec(`CREATE INDEX IF NOT EXISTS idx_users_username_lower ON users(username_lower)`)
	if err != nil {
		return fmt.Errorf("indexing username_lower: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is SQLite rejecting a duplicate key.
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
			return true
		}
	}
	// Fallback for drivers/versions that only report the primary result code.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// escapeLike escapes LIKE wildcards so user input is matched literally.
// Queries using it must declare ESCAPE '\'.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
