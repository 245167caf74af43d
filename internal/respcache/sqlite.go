package respcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/glassboxhq/glassbox/internal/entity"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS gen_cache (
	fingerprint      TEXT PRIMARY KEY,
	request_payload  BLOB,
	response         BLOB NOT NULL,
	cost_usd         REAL NOT NULL DEFAULT 0,
	hit_count        INTEGER NOT NULL DEFAULT 0,
	created_at       TIMESTAMP NOT NULL,
	last_accessed_at TIMESTAMP NOT NULL
);`

// SQLiteStore persists cache entries across restarts. The sqlite
// driver serializes writes internally; reads stay concurrent.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, fingerprint string) (*entity.CacheEntry, bool, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE gen_cache SET hit_count = hit_count + 1, last_accessed_at = ? WHERE fingerprint = ?`,
		now, fingerprint)
	if err != nil {
		return nil, false, fmt.Errorf("touch cache entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, false, nil
	}

	e := &entity.CacheEntry{}
	err = s.db.QueryRowContext(ctx,
		`SELECT fingerprint, request_payload, response, cost_usd, hit_count, created_at, last_accessed_at
		 FROM gen_cache WHERE fingerprint = ?`, fingerprint).
		Scan(&e.FingerprintHash, &e.RequestPayload, &e.Response, &e.CostUSD, &e.HitCount, &e.CreatedAt, &e.LastAccessedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache entry: %w", err)
	}
	return e, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, fingerprint string, request, response []byte, costUSD float64) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO gen_cache (fingerprint, request_payload, response, cost_usd, hit_count, created_at, last_accessed_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?)
		 ON CONFLICT(fingerprint) DO UPDATE SET
			request_payload = excluded.request_payload,
			response = excluded.response,
			cost_usd = excluded.cost_usd,
			last_accessed_at = excluded.last_accessed_at`,
		fingerprint, request, response, costUSD, now, now)
	if err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
