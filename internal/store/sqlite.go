package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps one row per identity. The document contract is unchanged:
// Load reads every row, Update runs inside a single transaction.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection keeps writes ordered and avoids SQLITE_BUSY between our own goroutines.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS users (
		identity   TEXT PRIMARY KEY,
		record     TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	var raw string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&raw)
	switch {
	case err == sql.ErrNoRows:
		_, err = s.db.Exec(`INSERT INTO meta (key, value) VALUES ('schema_version', ?)`, strconv.Itoa(SchemaVersion))
		return err
	case err != nil:
		return err
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("bad schema_version %q: %w", raw, err)
	}
	return checkVersion(&Document{Version: v})
}

func (s *SQLiteStore) Load(ctx context.Context) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, _, err := loadRows(ctx, s.db)
	return doc, err
}

func (s *SQLiteStore) Save(ctx context.Context, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, prev, err := loadRows(ctx, tx)
		if err != nil {
			return err
		}
		return writeRows(ctx, tx, doc, prev)
	})
}

func (s *SQLiteStore) Update(ctx context.Context, fn func(doc *Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		doc, prev, err := loadRows(ctx, tx)
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
		return writeRows(ctx, tx, doc, prev)
	})
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// loadRows returns the document and the raw JSON per identity, used to skip unchanged rows on write.
func loadRows(ctx context.Context, q queryer) (*Document, map[string]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT identity, record FROM users`)
	if err != nil {
		return nil, nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	doc := NewDocument()
	raw := make(map[string]string)
	for rows.Next() {
		var identity, record string
		if err := rows.Scan(&identity, &record); err != nil {
			return nil, nil, fmt.Errorf("scan user: %w", err)
		}
		var rec UserRecord
		if err := json.Unmarshal([]byte(record), &rec); err != nil {
			return nil, nil, fmt.Errorf("decode user %s: %w", identity, err)
		}
		doc.Users[identity] = &rec
		raw[identity] = record
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate users: %w", err)
	}
	prepare(doc)
	return doc, raw, nil
}

func writeRows(ctx context.Context, tx *sql.Tx, doc *Document, prev map[string]string) error {
	prepare(doc)
	now := time.Now().UnixMilli()
	for identity, rec := range doc.Users {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode user %s: %w", identity, err)
		}
		if prev[identity] == string(data) {
			continue
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO users (identity, record, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(identity) DO UPDATE SET record = excluded.record, updated_at = excluded.updated_at`,
			identity, string(data), now)
		if err != nil {
			return fmt.Errorf("upsert user %s: %w", identity, err)
		}
	}
	for identity := range prev {
		if _, ok := doc.Users[identity]; ok {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE identity = ?`, identity); err != nil {
			return fmt.Errorf("delete user %s: %w", identity, err)
		}
	}
	return nil
}
