// Package mysql provides the MySQL implementation of the memory store.
//
// It targets stock MySQL 8+ (and MySQL-compatible databases such as
// OceanBase). Vectors are stored as JSON text and similarity is computed in
// memory over the owner's rows, matching the SQLite backend's behavior.
package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/memgrid/memgrid-go/pkg/storage"
)

// Client implements storage.Store using MySQL as the backend.
type Client struct {
	db         *sql.DB
	tableName  string
	dimensions int
}

// Config contains MySQL configuration.
type Config struct {
	Host          string
	Port          int
	User          string
	Password      string
	DBName        string
	TableName     string
	EmbeddingDims int
}

// NewClient creates a new MySQL store client.
func NewClient(cfg *Config) (*Client, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("NewMySQLClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewMySQLClient: %w", err)
	}

	tableName := cfg.TableName
	if tableName == "" {
		tableName = "memories"
	}

	client := &Client{
		db:         db,
		tableName:  tableName,
		dimensions: cfg.EmbeddingDims,
	}

	if err := client.initTables(context.Background()); err != nil {
		return nil, err
	}

	return client, nil
}

// initTables initializes the database table.
func (c *Client) initTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			owner_id VARCHAR(255) NOT NULL,
			tier VARCHAR(32) NOT NULL,
			content LONGTEXT NOT NULL,
			embedding LONGTEXT,
			category_path JSON NOT NULL,
			category_root VARCHAR(255) NOT NULL,
			fact_type VARCHAR(32) NOT NULL,
			confidence DOUBLE NOT NULL,
			related_ids JSON,
			created_at DATETIME NOT NULL,
			accessed_at DATETIME NOT NULL,
			access_count BIGINT NOT NULL DEFAULT 0,
			INDEX idx_owner_tier (owner_id, tier),
			INDEX idx_tier_created (tier, created_at)
		)
	`, c.tableName)

	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	return nil
}

// Insert inserts a memory.
// checkDimensions rejects vectors that disagree with the configured
// embedding dimension. Nil embeddings are allowed (pending backfill).
func (c *Client) checkDimensions(embedding []float64) error {
	if embedding != nil && c.dimensions > 0 && len(embedding) != c.dimensions {
		return fmt.Errorf("%w: got %d, want %d",
			storage.ErrDimensionMismatch, len(embedding), c.dimensions)
	}
	return nil
}

func (c *Client) Insert(ctx context.Context, memory *storage.Memory) error {
	if err := c.checkDimensions(memory.Embedding); err != nil {
		return fmt.Errorf("Insert: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s
		(id, owner_id, tier, content, embedding, category_path, category_root,
		 fact_type, confidence, related_ids, created_at, accessed_at, access_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.tableName)

	var embeddingArg interface{}
	if memory.Embedding != nil {
		data, err := json.Marshal(memory.Embedding)
		if err != nil {
			return fmt.Errorf("Insert: %w", err)
		}
		embeddingArg = string(data)
	}

	categoryJSON, err := json.Marshal(memory.CategoryPath)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}

	relatedJSON, err := json.Marshal(memory.RelatedIDs)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}

	createdAt := memory.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	accessedAt := memory.AccessedAt
	if accessedAt.IsZero() {
		accessedAt = createdAt
	}

	_, err = c.db.ExecContext(ctx, query,
		memory.ID,
		memory.OwnerID,
		memory.Tier,
		memory.Content,
		embeddingArg,
		string(categoryJSON),
		categoryRoot(memory.CategoryPath),
		memory.FactType,
		memory.Confidence,
		string(relatedJSON),
		createdAt,
		accessedAt,
		memory.AccessCount,
	)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}

	return nil
}

// Get retrieves a memory by ID.
func (c *Client) Get(ctx context.Context, id int64) (*storage.Memory, error) {
	query := fmt.Sprintf(`
		SELECT id, owner_id, tier, content, embedding, category_path,
		       fact_type, confidence, related_ids, created_at, accessed_at, access_count
		FROM %s
		WHERE id = ?
	`, c.tableName)

	row := c.db.QueryRowContext(ctx, query, id)

	memory, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}

	return memory, nil
}

// SearchVector performs vector similarity search using cosine similarity
// computed in memory over the owner's embedded rows.
func (c *Client) SearchVector(ctx context.Context, embedding []float64, opts *storage.VectorOptions) ([]*storage.Memory, error) {
	whereClause, args := buildWhereClause(opts.OwnerID, opts.Tiers)
	if whereClause == "" {
		whereClause = "WHERE embedding IS NOT NULL"
	} else {
		whereClause += " AND embedding IS NOT NULL"
	}

	rows, err := c.queryMemories(ctx, whereClause, "ORDER BY id", args)
	if err != nil {
		return nil, fmt.Errorf("SearchVector: %w", err)
	}

	var memories []*storage.Memory
	for _, memory := range rows {
		score := storage.CosineSimilarity(embedding, memory.Embedding)
		if score >= opts.MinScore {
			memory.Score = score
			memories = append(memories, memory)
		}
	}

	return storage.SortByScore(memories, opts.Limit), nil
}

// SearchLexical ranks the owner's memories against the query terms with BM25.
func (c *Client) SearchLexical(ctx context.Context, terms []string, opts *storage.LexicalOptions) ([]*storage.Memory, error) {
	whereClause, args := buildWhereClause(opts.OwnerID, opts.Tiers)

	rows, err := c.queryMemories(ctx, whereClause, "ORDER BY id", args)
	if err != nil {
		return nil, fmt.Errorf("SearchLexical: %w", err)
	}

	ranked := storage.RankBM25(rows, terms)
	if opts.Limit > 0 && len(ranked) > opts.Limit {
		ranked = ranked[:opts.Limit]
	}
	return ranked, nil
}

// SearchCategory returns memories whose category path contains the terms.
func (c *Client) SearchCategory(ctx context.Context, terms []string, matchAll bool, opts *storage.CategoryOptions) ([]*storage.Memory, error) {
	whereClause, args := buildWhereClause(opts.OwnerID, opts.Tiers)

	rows, err := c.queryMemories(ctx, whereClause, "ORDER BY created_at DESC", args)
	if err != nil {
		return nil, fmt.Errorf("SearchCategory: %w", err)
	}

	var memories []*storage.Memory
	for _, memory := range rows {
		matched, ok := storage.MatchCategories(memory.CategoryPath, terms, matchAll)
		if !ok {
			continue
		}
		memory.Score = float64(matched) / float64(len(terms))
		memories = append(memories, memory)
	}

	return storage.SortByScore(memories, opts.Limit), nil
}

// SearchTimeRange returns memories created within [from, to], newest first.
func (c *Client) SearchTimeRange(ctx context.Context, from, to time.Time, opts *storage.RangeOptions) ([]*storage.Memory, error) {
	whereClause, args := buildWhereClause(opts.OwnerID, opts.Tiers)

	timeCond := "created_at <= ?"
	timeArgs := []interface{}{to}
	if !from.IsZero() {
		timeCond = "created_at >= ? AND created_at <= ?"
		timeArgs = []interface{}{from, to}
	}
	if whereClause == "" {
		whereClause = "WHERE " + timeCond
	} else {
		whereClause += " AND " + timeCond
	}
	args = append(args, timeArgs...)

	order := "ORDER BY created_at DESC"
	if opts.Limit > 0 {
		order += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}

	rows, err := c.queryMemories(ctx, whereClause, order, args)
	if err != nil {
		return nil, fmt.Errorf("SearchTimeRange: %w", err)
	}

	return rows, nil
}

// UpdateEmbedding replaces a memory's embedding vector.
func (c *Client) UpdateEmbedding(ctx context.Context, id int64, embedding []float64) error {
	if err := c.checkDimensions(embedding); err != nil {
		return fmt.Errorf("UpdateEmbedding: %w", err)
	}

	var embeddingArg interface{}
	if embedding != nil {
		data, err := json.Marshal(embedding)
		if err != nil {
			return fmt.Errorf("UpdateEmbedding: %w", err)
		}
		embeddingArg = string(data)
	}

	query := fmt.Sprintf("UPDATE %s SET embedding = ? WHERE id = ?", c.tableName)
	result, err := c.db.ExecContext(ctx, query, embeddingArg, id)
	if err != nil {
		return fmt.Errorf("UpdateEmbedding: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateEmbedding: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Touch updates accessed_at and increments access_count atomically.
func (c *Client) Touch(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := make([]string, len(ids))
	args := []interface{}{time.Now()}
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET accessed_at = ?, access_count = access_count + 1
		WHERE id IN (%s)
	`, c.tableName, strings.Join(placeholders, ", "))

	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("Touch: %w", err)
	}

	return nil
}

// AppendRelated appends ids to a memory's related set inside a transaction.
func (c *Client) AppendRelated(ctx context.Context, id int64, related []int64) error {
	if len(related) == 0 {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("AppendRelated: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var relatedStr sql.NullString
	selectQuery := fmt.Sprintf("SELECT related_ids FROM %s WHERE id = ? FOR UPDATE", c.tableName)
	if err := tx.QueryRowContext(ctx, selectQuery, id).Scan(&relatedStr); err != nil {
		if err == sql.ErrNoRows {
			return storage.ErrNotFound
		}
		return fmt.Errorf("AppendRelated: %w", err)
	}

	var existing []int64
	if relatedStr.Valid && relatedStr.String != "" && relatedStr.String != "null" {
		if err := json.Unmarshal([]byte(relatedStr.String), &existing); err != nil {
			return fmt.Errorf("AppendRelated: parse related_ids: %w", err)
		}
	}

	merged := mergeIDs(existing, related, id)

	mergedJSON, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("AppendRelated: %w", err)
	}

	updateQuery := fmt.Sprintf("UPDATE %s SET related_ids = ? WHERE id = ?", c.tableName)
	if _, err := tx.ExecContext(ctx, updateQuery, string(mergedJSON), id); err != nil {
		return fmt.Errorf("AppendRelated: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("AppendRelated: %w", err)
	}

	return nil
}

// Delete deletes a memory by ID.
func (c *Client) Delete(ctx context.Context, id int64) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", c.tableName)

	result, err := c.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}

	if rowsAffected == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// DeleteExpired deletes memories of the tier created strictly before the cutoff.
func (c *Client) DeleteExpired(ctx context.Context, tier string, before time.Time) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE tier = ? AND created_at < ?", c.tableName)

	result, err := c.db.ExecContext(ctx, query, tier, before)
	if err != nil {
		return 0, fmt.Errorf("DeleteExpired: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("DeleteExpired: %w", err)
	}

	return rowsAffected, nil
}

// Stats aggregates counts by tier and top-level category plus embedding coverage.
func (c *Client) Stats(ctx context.Context, ownerID string) (*storage.Stats, error) {
	whereClause, args := buildWhereClause(ownerID, nil)

	stats := &storage.Stats{
		ByTier:     make(map[string]int64),
		ByCategory: make(map[string]int64),
	}

	tierQuery := fmt.Sprintf(`
		SELECT tier, COUNT(*), SUM(CASE WHEN embedding IS NOT NULL THEN 1 ELSE 0 END)
		FROM %s %s GROUP BY tier
	`, c.tableName, whereClause)

	rows, err := c.db.QueryContext(ctx, tierQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("Stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var tier string
		var count, embedded int64
		if err := rows.Scan(&tier, &count, &embedded); err != nil {
			return nil, fmt.Errorf("Stats: %w", err)
		}
		stats.ByTier[tier] = count
		stats.Total += count
		stats.WithEmbedding += embedded
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Stats: %w", err)
	}

	categoryQuery := fmt.Sprintf(`
		SELECT category_root, COUNT(*) FROM %s %s GROUP BY category_root
	`, c.tableName, whereClause)

	catRows, err := c.db.QueryContext(ctx, categoryQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("Stats: %w", err)
	}
	defer func() { _ = catRows.Close() }()

	for catRows.Next() {
		var root string
		var count int64
		if err := catRows.Scan(&root, &count); err != nil {
			return nil, fmt.Errorf("Stats: %w", err)
		}
		stats.ByCategory[root] = count
	}
	if err := catRows.Err(); err != nil {
		return nil, fmt.Errorf("Stats: %w", err)
	}

	return stats, nil
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// queryMemories runs a SELECT with the given WHERE clause and scans all rows.
func (c *Client) queryMemories(ctx context.Context, whereClause, order string, args []interface{}) ([]*storage.Memory, error) {
	query := fmt.Sprintf(`
		SELECT id, owner_id, tier, content, embedding, category_path,
		       fact_type, confidence, related_ids, created_at, accessed_at, access_count
		FROM %s
		%s
		%s
	`, c.tableName, whereClause, order)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var memories []*storage.Memory
	for rows.Next() {
		memory, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		memories = append(memories, memory)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return memories, nil
}

// rowScanner abstracts sql.Row and sql.Rows for scanMemory.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanMemory scans a memory from a database row or rows.
func scanMemory(scanner rowScanner) (*storage.Memory, error) {
	var memory storage.Memory
	var embeddingStr sql.NullString
	var categoryStr string
	var relatedStr sql.NullString

	err := scanner.Scan(
		&memory.ID,
		&memory.OwnerID,
		&memory.Tier,
		&memory.Content,
		&embeddingStr,
		&categoryStr,
		&memory.FactType,
		&memory.Confidence,
		&relatedStr,
		&memory.CreatedAt,
		&memory.AccessedAt,
		&memory.AccessCount,
	)
	if err != nil {
		return nil, err
	}

	if embeddingStr.Valid && embeddingStr.String != "" {
		if err := json.Unmarshal([]byte(embeddingStr.String), &memory.Embedding); err != nil {
			return nil, fmt.Errorf("parse embedding: %w", err)
		}
	}

	if err := json.Unmarshal([]byte(categoryStr), &memory.CategoryPath); err != nil {
		return nil, fmt.Errorf("parse category_path: %w", err)
	}

	if relatedStr.Valid && relatedStr.String != "" && relatedStr.String != "null" {
		if err := json.Unmarshal([]byte(relatedStr.String), &memory.RelatedIDs); err != nil {
			return nil, fmt.Errorf("parse related_ids: %w", err)
		}
	}

	return &memory, nil
}

// categoryRoot returns the first category level, or "uncategorized".
func categoryRoot(path []string) string {
	if len(path) == 0 {
		return "uncategorized"
	}
	return path[0]
}

// mergeIDs merges new ids into existing, skipping duplicates and self.
func mergeIDs(existing, incoming []int64, self int64) []int64 {
	seen := make(map[int64]bool, len(existing)+1)
	seen[self] = true
	merged := make([]int64, 0, len(existing)+len(incoming))
	for _, id := range existing {
		if !seen[id] {
			seen[id] = true
			merged = append(merged, id)
		}
	}
	for _, id := range incoming {
		if !seen[id] {
			seen[id] = true
			merged = append(merged, id)
		}
	}
	return merged
}
