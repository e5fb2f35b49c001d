// Copyright 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: histindex/histindex.go
// Summary: SQLite FTS5 full-text search over scrollback history.
//
// Provides substring search over a history buffer's logical lines with:
//   - Trigram tokenization for arbitrary substring matches
//   - Async batch indexing with an observer hook
//   - BM25 relevance ranking

package histindex

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/framegrace/texelhist/histbuf"
)

// Index provides full-text search over history logical lines.
type Index interface {
	// IndexLine queues one logical line for indexing. Lines are
	// numbered chronologically, oldest first.
	IndexLine(lineNum int64, text string) error

	// IndexBuffer replaces the index contents with the buffer's logical
	// lines and blocks until they are searchable.
	IndexBuffer(hb *histbuf.HistoryBuffer) error

	// Search executes a substring query using trigram matching and
	// returns up to limit results, best match first.
	Search(query string, limit int) ([]Result, error)

	// Flush blocks until all queued lines are indexed.
	Flush() error

	// Close flushes pending writes and closes the database.
	Close() error
}

// Result is a single search match.
type Result struct {
	LineNum int64
	Content string
}

// IndexObserver receives batch indexing metrics.
type IndexObserver interface {
	ObserveBatch(lines int, duration time.Duration)
}

// BatchLogger logs batch metrics to the provided logger.
type BatchLogger struct {
	logger *log.Logger
}

// NewBatchLogger returns an observer that logs batch stats.
func NewBatchLogger(l *log.Logger) *BatchLogger {
	if l == nil {
		l = log.Default()
	}
	return &BatchLogger{logger: l}
}

func (b *BatchLogger) ObserveBatch(lines int, duration time.Duration) {
	if b == nil || b.logger == nil {
		return
	}
	b.logger.Printf("[HIST_INDEX] batch lines=%d duration=%s", lines, duration)
}

// IndexConfig holds configuration for the search index.
type IndexConfig struct {
	// BatchSize is the number of lines to accumulate before flushing.
	// Default: 100
	BatchSize int

	// BatchTimeout is how long to wait before flushing a partial batch.
	// Default: 5s
	BatchTimeout time.Duration

	// ChannelBuffer is the size of the async indexing channel.
	// Default: 1000
	ChannelBuffer int

	// Observer receives batch metrics. Nil disables observation.
	Observer IndexObserver
}

// DefaultIndexConfig returns sensible defaults.
func DefaultIndexConfig() IndexConfig {
	return IndexConfig{
		BatchSize:     100,
		BatchTimeout:  5 * time.Second,
		ChannelBuffer: 1000,
	}
}

// indexEntry is a queued line waiting for the batch writer.
type indexEntry struct {
	lineNum int64
	text    string
}

// SQLiteIndex implements Index using SQLite FTS5.
type SQLiteIndex struct {
	config IndexConfig
	db     *sql.DB

	// Async batching
	batchChan chan indexEntry
	stopCh    chan struct{}
	doneCh    chan struct{}
	flushCh   chan chan struct{}

	mu sync.RWMutex
}

// Current schema version - increment when schema changes require reindexing
const indexSchemaVersion = 1

const indexSchema = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);

-- Main content table, one row per logical line, oldest first
CREATE TABLE IF NOT EXISTS lines (
    id INTEGER PRIMARY KEY,           -- Chronological line number
    content TEXT NOT NULL
);
`

// FTS schema - separate so we can rebuild it on version changes
const indexFTSSchema = `
-- FTS5 virtual table with trigram tokenizer.
-- Trigram enables substring matching (e.g. "ls -ls", partial paths).
CREATE VIRTUAL TABLE IF NOT EXISTS lines_fts USING fts5(
    content,
    content='lines',
    content_rowid='id',
    tokenize='trigram'
);

-- Triggers to keep FTS5 in sync
CREATE TRIGGER IF NOT EXISTS lines_ai AFTER INSERT ON lines BEGIN
    INSERT INTO lines_fts(rowid, content) VALUES (new.id, new.content);
END;

CREATE TRIGGER IF NOT EXISTS lines_au AFTER UPDATE ON lines BEGIN
    INSERT INTO lines_fts(lines_fts, rowid, content) VALUES ('delete', old.id, old.content);
    INSERT INTO lines_fts(rowid, content) VALUES (new.id, new.content);
END;

CREATE TRIGGER IF NOT EXISTS lines_ad AFTER DELETE ON lines BEGIN
    INSERT INTO lines_fts(lines_fts, rowid, content) VALUES ('delete', old.id, old.content);
END;
`

// Open creates or opens a search index at dbPath.
func Open(dbPath string, config IndexConfig) (*SQLiteIndex, error) {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultIndexConfig().BatchSize
	}
	if config.BatchTimeout <= 0 {
		config.BatchTimeout = DefaultIndexConfig().BatchTimeout
	}
	if config.ChannelBuffer <= 0 {
		config.ChannelBuffer = DefaultIndexConfig().ChannelBuffer
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// Open database with pragmas for performance and concurrency
	dsn := dbPath +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=cache_size(-8000)" + // 8MB cache
		"&_pragma=temp_store(MEMORY)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Base schema first (tables, not FTS)
	if _, err := db.Exec(indexSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	needsReindex, err := checkAndMigrateSchema(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to check schema version: %w", err)
	}

	if _, err := db.Exec(indexFTSSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create FTS schema: %w", err)
	}

	if needsReindex {
		log.Printf("[HIST_INDEX] Schema version changed, rebuilding FTS index...")
		if err := rebuildFTS(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to rebuild FTS index: %w", err)
		}
		log.Printf("[HIST_INDEX] FTS index rebuild complete")
	}

	si := &SQLiteIndex{
		config:    config,
		db:        db,
		batchChan: make(chan indexEntry, config.ChannelBuffer),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
		flushCh:   make(chan chan struct{}),
	}

	// Start background batch indexer
	go si.batchIndexer()

	return si, nil
}

// checkAndMigrateSchema compares the stored schema version against the
// current one and drops the FTS side when they differ. Returns true if
// reindexing is needed.
func checkAndMigrateSchema(db *sql.DB) (bool, error) {
	var currentVersion int
	err := db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&currentVersion)
	if err != nil {
		// No row or no table yet, treat as version 0
		currentVersion = 0
	}

	if currentVersion == indexSchemaVersion {
		return false, nil
	}

	log.Printf("[HIST_INDEX] Migrating schema from version %d to %d", currentVersion, indexSchemaVersion)

	migrations := []string{
		"DROP TRIGGER IF EXISTS lines_ai",
		"DROP TRIGGER IF EXISTS lines_au",
		"DROP TRIGGER IF EXISTS lines_ad",
		"DROP TABLE IF EXISTS lines_fts",
	}
	for _, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return false, fmt.Errorf("migration failed on '%s': %w", stmt, err)
		}
	}

	_, err = db.Exec("INSERT OR REPLACE INTO schema_version (version) VALUES (?)", indexSchemaVersion)
	if err != nil {
		return false, fmt.Errorf("failed to update schema version: %w", err)
	}

	return true, nil
}

// rebuildFTS repopulates the FTS table from the lines table.
func rebuildFTS(db *sql.DB) error {
	var count int64
	db.QueryRow("SELECT COUNT(*) FROM lines").Scan(&count)
	log.Printf("[HIST_INDEX] Rebuilding index for %d lines...", count)

	_, err := db.Exec("INSERT INTO lines_fts(rowid, content) SELECT id, content FROM lines")
	if err != nil {
		return fmt.Errorf("failed to populate FTS index: %w", err)
	}
	return nil
}

// batchIndexer runs in a background goroutine, batching entries and
// flushing periodically.
func (si *SQLiteIndex) batchIndexer() {
	defer close(si.doneCh)

	batch := make([]indexEntry, 0, si.config.BatchSize)
	timer := time.NewTimer(si.config.BatchTimeout)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		si.flushBatch(batch)
		batch = batch[:0]
	}

	for {
		select {
		case entry := <-si.batchChan:
			batch = append(batch, entry)
			if len(batch) >= si.config.BatchSize {
				flush()
				timer.Reset(si.config.BatchTimeout)
			}

		case <-timer.C:
			flush()
			timer.Reset(si.config.BatchTimeout)

		case done := <-si.flushCh:
			// Manual flush request - drain channel first
			draining := true
			for draining {
				select {
				case entry := <-si.batchChan:
					batch = append(batch, entry)
				default:
					draining = false
				}
			}
			flush()
			close(done)

		case <-si.stopCh:
			// Drain channel and flush before exit
			for {
				select {
				case entry := <-si.batchChan:
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}

// flushBatch writes a batch of entries in a single transaction.
func (si *SQLiteIndex) flushBatch(batch []indexEntry) {
	if len(batch) == 0 {
		return
	}
	start := time.Now()

	si.mu.Lock()
	defer si.mu.Unlock()

	tx, err := si.db.Begin()
	if err != nil {
		log.Printf("[HIST_INDEX] Failed to begin transaction: %v", err)
		return
	}

	stmt, err := tx.Prepare("INSERT OR REPLACE INTO lines (id, content) VALUES (?, ?)")
	if err != nil {
		log.Printf("[HIST_INDEX] Failed to prepare statement: %v", err)
		tx.Rollback()
		return
	}
	defer stmt.Close()

	for _, e := range batch {
		if _, err := stmt.Exec(e.lineNum, e.text); err != nil {
			log.Printf("[HIST_INDEX] Failed to insert line %d: %v", e.lineNum, err)
			tx.Rollback()
			return
		}
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[HIST_INDEX] Failed to commit batch: %v", err)
		return
	}

	if si.config.Observer != nil {
		si.config.Observer.ObserveBatch(len(batch), time.Since(start))
	}
}

// IndexLine queues a logical line for batch indexing. Empty lines are
// skipped.
func (si *SQLiteIndex) IndexLine(lineNum int64, text string) error {
	if text == "" {
		return nil
	}
	select {
	case si.batchChan <- indexEntry{lineNum: lineNum, text: text}:
		return nil
	case <-si.stopCh:
		return fmt.Errorf("histindex: index closed")
	}
}

// IndexBuffer replaces the index contents with the buffer's logical
// lines, numbered chronologically from 0, and blocks until they are
// searchable.
func (si *SQLiteIndex) IndexBuffer(hb *histbuf.HistoryBuffer) error {
	si.mu.Lock()
	if _, err := si.db.Exec("DELETE FROM lines"); err != nil {
		si.mu.Unlock()
		return fmt.Errorf("failed to clear index: %w", err)
	}
	si.mu.Unlock()

	for i, line := range hb.LogicalLines() {
		if err := si.IndexLine(int64(i), line); err != nil {
			return err
		}
	}
	return si.Flush()
}

// Search executes a substring query. Results are ordered by BM25
// relevance. Queries shorter than 3 characters fall back to LIKE since
// the trigram tokenizer needs at least 3 characters.
func (si *SQLiteIndex) Search(query string, limit int) ([]Result, error) {
	if query == "" {
		return nil, nil
	}

	si.mu.RLock()
	defer si.mu.RUnlock()

	var rows *sql.Rows
	var err error

	if len(query) < 3 {
		likePattern := "%" + strings.ReplaceAll(strings.ReplaceAll(query, "%", "\\%"), "_", "\\_") + "%"
		rows, err = si.db.Query(`
			SELECT id, content
			FROM lines
			WHERE content LIKE ? ESCAPE '\'
			ORDER BY id
			LIMIT ?
		`, likePattern, limit)
	} else {
		// Wrap the query in double quotes for literal substring matching,
		// so patterns like "ls -ls" survive FTS5 query syntax.
		quotedQuery := `"` + strings.ReplaceAll(query, `"`, `""`) + `"`
		rows, err = si.db.Query(`
			SELECT l.id, l.content
			FROM lines_fts
			JOIN lines l ON l.id = lines_fts.rowid
			WHERE lines_fts MATCH ?
			ORDER BY bm25(lines_fts)
			LIMIT ?
		`, quotedQuery, limit)
	}

	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.LineNum, &r.Content); err != nil {
			continue // Skip malformed rows
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Flush blocks until all pending entries are indexed.
func (si *SQLiteIndex) Flush() error {
	done := make(chan struct{})
	select {
	case si.flushCh <- done:
		<-done
	case <-si.stopCh:
		// Already stopped
	}
	return nil
}

// Close flushes pending writes and closes the database.
func (si *SQLiteIndex) Close() error {
	close(si.stopCh)
	<-si.doneCh
	return si.db.Close()
}

// Compile-time interface check
var _ Index = (*SQLiteIndex)(nil)
