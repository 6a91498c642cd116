package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/m3usync/internal/shared"
)

// CacheStats summarises the contents of the response cache.
type CacheStats struct {
	Total   int
	Expired int
	Bytes   int64
}

// ResponseCache stores GET response bodies in the responses table.
// It satisfies the cache interface expected by the request layer.
type ResponseCache struct {
	db *sql.DB
}

// NewResponseCache creates a new [ResponseCache] with the given database connection
func NewResponseCache(db *sql.DB) *ResponseCache {
	return &ResponseCache{db: db}
}

// Get returns the body stored under key if it has not expired.
func (c *ResponseCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	query := `SELECT body, expires_at FROM responses WHERE cache_key = ?`

	var (
		body      []byte
		expiresAt time.Time
	)

	err := c.db.QueryRowContext(ctx, query, key).Scan(&body, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query response: %w", err)
	}

	if !expiresAt.After(time.Now()) {
		return nil, false, nil
	}
	return body, true, nil
}

// Set stores body under key, replacing any previous entry.
func (c *ResponseCache) Set(ctx context.Context, key, method, rawURL string, body []byte, ttl time.Duration) error {
	created := now()
	query := `
		INSERT INTO responses (id, cache_key, method, url, body, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			body = excluded.body,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
	`

	if body == nil {
		body = []byte{}
	}

	_, err := c.db.ExecContext(ctx, query, shared.GenerateID(), key, method, rawURL, body, created, stamp(created.Add(ttl)))
	if err != nil {
		return fmt.Errorf("failed to store response: %w", err)
	}
	return nil
}

// Delete removes the entry stored under key.
func (c *ResponseCache) Delete(ctx context.Context, key string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM responses WHERE cache_key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete response: %w", err)
	}
	return nil
}

// Purge removes expired entries and returns how many were deleted.
func (c *ResponseCache) Purge(ctx context.Context) (int64, error) {
	result, err := c.db.ExecContext(ctx, `DELETE FROM responses WHERE expires_at <= ?`, now())
	if err != nil {
		return 0, fmt.Errorf("failed to purge responses: %w", err)
	}
	return affected(result)
}

// Clear removes every entry and returns how many were deleted.
func (c *ResponseCache) Clear(ctx context.Context) (int64, error) {
	result, err := c.db.ExecContext(ctx, `DELETE FROM responses`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear responses: %w", err)
	}
	return affected(result)
}

// Stats counts stored and expired entries.
func (c *ResponseCache) Stats(ctx context.Context) (CacheStats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN expires_at <= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(LENGTH(body)), 0)
		FROM responses
	`

	var stats CacheStats
	if err := c.db.QueryRowContext(ctx, query, now()).Scan(&stats.Total, &stats.Expired, &stats.Bytes); err != nil {
		return stats, fmt.Errorf("failed to query cache stats: %w", err)
	}
	return stats, nil
}
