package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureRAGSchema creates the pgvector tables. Collections are partitioned
// by user_id so one database can serve every user.
func EnsureRAGSchema(ctx context.Context, pool *pgxpool.Pool, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive")
	}
	if pool == nil {
		return errors.New("postgres pool is nil")
	}

	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		`CREATE TABLE IF NOT EXISTS rag_collections (
			user_id TEXT NOT NULL,
			id TEXT NOT NULL,
			source TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, id)
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS rag_chunks (
			user_id TEXT NOT NULL,
			collection_id TEXT NOT NULL,
			chunk_index INT NOT NULL,
			source TEXT NOT NULL,
			start_offset INT NOT NULL,
			end_offset INT NOT NULL,
			content TEXT NOT NULL,
			embedding VECTOR(%d) NOT NULL,
			PRIMARY KEY (user_id, collection_id, chunk_index),
			FOREIGN KEY (user_id, collection_id) REFERENCES rag_collections(user_id, id) ON DELETE CASCADE
		)`, dimension),
		"CREATE INDEX IF NOT EXISTS idx_rag_chunks_collection ON rag_chunks(user_id, collection_id)",
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}

	return nil
}

// EnsureSQLiteSchema creates the per-user index tables. Embeddings are stored
// as little-endian float32 blobs.
func EnsureSQLiteSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS collections (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			collection_id TEXT NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
			chunk_index INTEGER NOT NULL,
			source TEXT NOT NULL,
			start_offset INTEGER NOT NULL,
			end_offset INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding BLOB NOT NULL,
			PRIMARY KEY (collection_id, chunk_index)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute sqlite schema statement: %w", err)
		}
	}
	return nil
}
