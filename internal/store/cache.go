// Package store persists the content-addressed AI response cache.
//
// The cache outlives individual stop/continue cycles but not the debug
// session: Clear is called on detach. Entries are keyed by a hash of the
// prompt content, so identical analysis reports resolve to the same cached
// response across passes.
package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"codebugger/internal/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS responses (
	content_hash  TEXT PRIMARY KEY,
	response      TEXT NOT NULL,
	created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_accessed TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	access_count  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_responses_last_accessed ON responses(last_accessed);
`

// ResponseCache is a SQLite-backed content-addressed cache.
type ResponseCache struct {
	db         *sql.DB
	mu         sync.Mutex
	dbPath     string
	maxEntries int
}

// NewResponseCache opens (creating if needed) the cache database at path.
func NewResponseCache(path string, maxEntries int) (*ResponseCache, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewResponseCache")
	defer timer.Stop()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("failed to set sqlite journal_mode=WAL: %v", err)
	}
	// NORMAL is safe under WAL and much faster than FULL.
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("failed to set sqlite synchronous=NORMAL: %v", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}

	logging.Store("response cache opened at %s (max %d entries)", path, maxEntries)
	return &ResponseCache{db: db, dbPath: path, maxEntries: maxEntries}, nil
}

// Key derives the content address for a set of prompt parts.
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get looks up a cached response and records the access.
func (c *ResponseCache) Get(hash string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var response string
	err := c.db.QueryRow("SELECT response FROM responses WHERE content_hash = ?", hash).Scan(&response)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache lookup failed: %w", err)
	}

	if _, err := c.db.Exec(
		"UPDATE responses SET last_accessed = CURRENT_TIMESTAMP, access_count = access_count + 1 WHERE content_hash = ?",
		hash); err != nil {
		logging.StoreDebug("failed to record cache access: %v", err)
	}
	return response, true, nil
}

// Put stores a response, evicting least-recently-accessed entries when the
// cache grows past its cap.
func (c *ResponseCache) Put(hash, response string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.Exec(`
		INSERT INTO responses (content_hash, response) VALUES (?, ?)
		ON CONFLICT(content_hash) DO UPDATE SET
			response = excluded.response,
			last_accessed = CURRENT_TIMESTAMP,
			access_count = access_count + 1`,
		hash, response)
	if err != nil {
		return fmt.Errorf("cache insert failed: %w", err)
	}
	return c.evictLocked()
}

// evictLocked trims the cache down to maxEntries by last access time.
func (c *ResponseCache) evictLocked() error {
	if c.maxEntries <= 0 {
		return nil
	}
	res, err := c.db.Exec(`
		DELETE FROM responses WHERE content_hash IN (
			SELECT content_hash FROM responses
			ORDER BY last_accessed DESC, rowid DESC
			LIMIT -1 OFFSET ?
		)`, c.maxEntries)
	if err != nil {
		return fmt.Errorf("cache eviction failed: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		logging.StoreDebug("evicted %d cache entries", n)
	}
	return nil
}

// Len returns the number of cached entries.
func (c *ResponseCache) Len() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var n int
	if err := c.db.QueryRow("SELECT COUNT(*) FROM responses").Scan(&n); err != nil {
		return 0, fmt.Errorf("cache count failed: %w", err)
	}
	return n, nil
}

// Clear drops every entry. Called on session detach.
func (c *ResponseCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.Exec("DELETE FROM responses"); err != nil {
		return fmt.Errorf("cache clear failed: %w", err)
	}
	logging.Store("response cache cleared")
	return nil
}

// Close releases the database handle.
func (c *ResponseCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db.Close()
}
