package cachestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS caches (
  id         INTEGER PRIMARY KEY AUTOINCREMENT,
  name       TEXT NOT NULL UNIQUE,
  created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS entries (
  cache_id  INTEGER NOT NULL,
  url_key   TEXT NOT NULL,
  url       TEXT NOT NULL,
  status    INTEGER NOT NULL,
  header    TEXT NOT NULL,
  body      BLOB,
  stored_at INTEGER NOT NULL,
  PRIMARY KEY (cache_id, url_key)
);
CREATE INDEX IF NOT EXISTS entries_url_key ON entries(url_key);
`

// SQLiteStorage persists caches in a SQLite database.
type SQLiteStorage struct {
	db *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// OpenSQLite opens a SQLite storage at path and applies the schema.
func OpenSQLite(path string) (*SQLiteStorage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("cachestore: sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cachestore: open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cachestore: ping sqlite db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cachestore: apply schema: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

// Close closes the database handle.
func (s *SQLiteStorage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Open returns the named cache, inserting it if absent.
func (s *SQLiteStorage) Open(ctx context.Context, name string) (Cache, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO caches (name, created_at) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		name, toMillis(time.Now()),
	); err != nil {
		return nil, fmt.Errorf("cachestore: create cache: %w", err)
	}
	return &SQLiteCache{db: s.db, name: name}, nil
}

// Lookup returns the named cache without inserting it.
func (s *SQLiteStorage) Lookup(ctx context.Context, name string) (Cache, bool, error) {
	ok, err := s.Has(ctx, name)
	if err != nil || !ok {
		return nil, false, err
	}
	return &SQLiteCache{db: s.db, name: name}, true, nil
}

// Has reports whether the named cache exists.
func (s *SQLiteStorage) Has(ctx context.Context, name string) (bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM caches WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cachestore: lookup cache: %w", err)
	}
	return true, nil
}

// Keys lists cache names in creation order.
func (s *SQLiteStorage) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM caches ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("cachestore: list caches: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("cachestore: scan cache: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Delete removes the cache row and its entries in one transaction.
func (s *SQLiteStorage) Delete(ctx context.Context, name string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("cachestore: begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM caches WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cachestore: lookup cache: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE cache_id = ?`, id); err != nil {
		return false, fmt.Errorf("cachestore: delete entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM caches WHERE id = ?`, id); err != nil {
		return false, fmt.Errorf("cachestore: delete cache: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("cachestore: commit delete: %w", err)
	}
	return true, nil
}

// Match returns the entry for url from the oldest cache holding it.
func (s *SQLiteStorage) Match(ctx context.Context, url string) (*Response, bool, error) {
	key, err := Key(url)
	if err != nil {
		return nil, false, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT e.url, e.status, e.header, e.body, e.stored_at
		   FROM entries e JOIN caches c ON c.id = e.cache_id
		  WHERE e.url_key = ?
		  ORDER BY c.id
		  LIMIT 1`, key)
	return scanResponse(row)
}

// SQLiteCache is a single cache row and its entries.
type SQLiteCache struct {
	db   *sql.DB
	name string
}

// Name returns the cache name.
func (c *SQLiteCache) Name() string {
	return c.name
}

// Put stores a single response.
func (c *SQLiteCache) Put(ctx context.Context, url string, resp *Response) error {
	return c.PutAll(ctx, []Entry{{URL: url, Response: resp}})
}

// PutAll upserts every entry in a single transaction.
func (c *SQLiteCache) PutAll(ctx context.Context, entries []Entry) error {
	prepared, err := prepareEntries(entries, time.Now())
	if err != nil {
		return err
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cachestore: begin put: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	id, err := cacheID(ctx, tx, c.name)
	if err != nil {
		return err
	}
	for _, p := range prepared {
		header, err := json.Marshal(p.resp.Header)
		if err != nil {
			return fmt.Errorf("cachestore: encode header: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO entries (cache_id, url_key, url, status, header, body, stored_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(cache_id, url_key) DO UPDATE SET
			   url = excluded.url,
			   status = excluded.status,
			   header = excluded.header,
			   body = excluded.body,
			   stored_at = excluded.stored_at`,
			id, p.key, p.resp.URL, p.resp.Status, string(header), p.resp.Body, toMillis(p.resp.StoredAt),
		); err != nil {
			return fmt.Errorf("cachestore: put entry: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("cachestore: commit put: %w", err)
	}
	return nil
}

// Match returns the stored response for url.
func (c *SQLiteCache) Match(ctx context.Context, url string) (*Response, bool, error) {
	key, err := Key(url)
	if err != nil {
		return nil, false, err
	}
	row := c.db.QueryRowContext(ctx,
		`SELECT e.url, e.status, e.header, e.body, e.stored_at
		   FROM entries e JOIN caches c ON c.id = e.cache_id
		  WHERE c.name = ? AND e.url_key = ?`, c.name, key)
	return scanResponse(row)
}

// Delete removes the entry for url.
func (c *SQLiteCache) Delete(ctx context.Context, url string) (bool, error) {
	key, err := Key(url)
	if err != nil {
		return false, err
	}
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM entries
		  WHERE url_key = ? AND cache_id = (SELECT id FROM caches WHERE name = ?)`, key, c.name)
	if err != nil {
		return false, fmt.Errorf("cachestore: delete entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cachestore: delete entry: %w", err)
	}
	return n > 0, nil
}

// Keys lists canonical keys, sorted.
func (c *SQLiteCache) Keys(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT e.url_key FROM entries e JOIN caches c ON c.id = e.cache_id
		  WHERE c.name = ? ORDER BY e.url_key`, c.name)
	if err != nil {
		return nil, fmt.Errorf("cachestore: list entries: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("cachestore: scan entry: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func cacheID(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM caches WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrCacheNotFound, name)
	}
	if err != nil {
		return 0, fmt.Errorf("cachestore: lookup cache: %w", err)
	}
	return id, nil
}

func scanResponse(row *sql.Row) (*Response, bool, error) {
	var (
		resp     Response
		header   string
		storedAt int64
	)
	err := row.Scan(&resp.URL, &resp.Status, &header, &resp.Body, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cachestore: scan response: %w", err)
	}
	if err := json.Unmarshal([]byte(header), &resp.Header); err != nil {
		return nil, false, fmt.Errorf("cachestore: decode header: %w", err)
	}
	resp.StoredAt = fromMillis(storedAt)
	return &resp, true, nil
}

// Ensure SQLiteStorage implements Storage
var _ Storage = (*SQLiteStorage)(nil)

// Ensure SQLiteCache implements Cache
var _ Cache = (*SQLiteCache)(nil)
