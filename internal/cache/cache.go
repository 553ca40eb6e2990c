// Package cache implements the persistent result cache: a
// content-addressed SQLite table mapping a hash of
// (version, instruction, raw input) to a previously validated
// extraction result.
//
// The cache is a performance optimization, never a correctness
// dependency: every I/O failure degrades to a miss and is only logged.
// Entries are never expired or evicted; unbounded growth is accepted.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/loclean/loclean/internal/logger"
)

// versionTag is part of every hash key. Bump it whenever the hashing
// scheme or the cached payload contract changes so stale entries can
// never be returned as hits.
const versionTag = "v3"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS inference_cache (
	hash_key      TEXT PRIMARY KEY,
	json_response TEXT,
	last_access   TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`

// Cache is a persistent key-value store for validated extraction
// results, safe for concurrent batch writers through SQLite WAL
// journaling.
type Cache struct {
	db   *sql.DB
	path string
}

// Open creates or opens the cache database under dir (one cache.db per
// directory).
func Open(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	path := filepath.Join(dir, "cache.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}

	return &Cache{db: db, path: path}, nil
}

// Path returns the location of the cache database file.
func (c *Cache) Path() string {
	return c.path
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Key derives the content-addressed hash for one (instruction, raw
// value) pair. The hash is over the exact strings: casing and
// whitespace changes produce different keys.
func Key(text, instruction string) string {
	sum := sha256.Sum256([]byte(versionTag + "::" + instruction + "::" + text))
	return hex.EncodeToString(sum[:])
}

// GetBatch returns the cached results for the subset of items present
// in the cache. Absent keys are implicitly misses, as are corrupt
// entries and any read failure.
func (c *Cache) GetBatch(items []string, instruction string) map[string]json.RawMessage {
	results := make(map[string]json.RawMessage)
	if len(items) == 0 {
		return results
	}

	byHash := make(map[string]string, len(items))
	hashes := make([]any, 0, len(items))
	for _, item := range items {
		h := Key(item, instruction)
		byHash[h] = item
		hashes = append(hashes, h)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(hashes)), ",")
	query := "SELECT hash_key, json_response FROM inference_cache WHERE hash_key IN (" + placeholders + ")"

	rows, err := c.db.Query(query, hashes...)
	if err != nil {
		logger.Error("cache read failed", "error", err)
		return results
	}
	defer rows.Close()

	for rows.Next() {
		var hashKey, response string
		if err := rows.Scan(&hashKey, &response); err != nil {
			logger.Error("cache row scan failed", "error", err)
			continue
		}
		original, ok := byHash[hashKey]
		if !ok {
			continue
		}
		if !json.Valid([]byte(response)) {
			logger.Warn("corrupt JSON in cache, treating as miss", "hash", hashKey)
			continue
		}
		results[original] = json.RawMessage(response)
	}
	if err := rows.Err(); err != nil {
		logger.Error("cache read failed", "error", err)
	}

	return results
}

// SetBatch stores the non-nil results for the given items. Inserts use
// INSERT OR IGNORE: an existing entry for the same key is never
// overwritten (first writer wins). Write failures are logged and
// swallowed.
func (c *Cache) SetBatch(items []string, instruction string, results map[string]any) {
	if len(items) == 0 || len(results) == 0 {
		return
	}

	type row struct {
		hash string
		data string
	}
	toInsert := make([]row, 0, len(results))
	for _, item := range items {
		result, ok := results[item]
		if !ok || result == nil {
			continue
		}
		data, err := json.Marshal(result)
		if err != nil {
			logger.Warn("failed to serialize cache entry", "item", item, "error", err)
			continue
		}
		toInsert = append(toInsert, row{hash: Key(item, instruction), data: string(data)})
	}
	if len(toInsert) == 0 {
		return
	}

	tx, err := c.db.Begin()
	if err != nil {
		logger.Error("cache write failed", "error", err)
		return
	}
	stmt, err := tx.Prepare("INSERT OR IGNORE INTO inference_cache (hash_key, json_response) VALUES (?, ?)")
	if err != nil {
		logger.Error("cache write failed", "error", err)
		tx.Rollback()
		return
	}
	defer stmt.Close()

	for _, r := range toInsert {
		if _, err := stmt.Exec(r.hash, r.data); err != nil {
			logger.Error("cache insert failed", "hash", r.hash, "error", err)
		}
	}
	if err := tx.Commit(); err != nil {
		logger.Error("cache commit failed", "error", err)
	}
}
