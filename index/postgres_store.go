package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PostgresStore serves one user's slice of the shared pgvector tables. The
// pool is owned by the caller and outlives the store.
type PostgresStore struct {
	pool   *pgxpool.Pool
	userID string
}

func NewPostgresStore(pool *pgxpool.Pool, userID string) *PostgresStore {
	return &PostgresStore{pool: pool, userID: userID}
}

// Close is a no-op; the shared pool is closed by its owner.
func (s *PostgresStore) Close() error { return nil }

func (s *PostgresStore) Replace(ctx context.Context, collectionID, source string, records []Record) (err error) {
	if s.pool == nil {
		return errors.New("postgres pool is nil")
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `DELETE FROM rag_collections WHERE user_id = $1 AND id = $2`, s.userID, collectionID); err != nil {
		return fmt.Errorf("clear collection: %w", err)
	}
	if _, err = tx.Exec(ctx, `
		INSERT INTO rag_collections (user_id, id, source, created_at)
		VALUES ($1, $2, $3, NOW())
	`, s.userID, collectionID, source); err != nil {
		return fmt.Errorf("insert collection: %w", err)
	}

	batch := &pgx.Batch{}
	for _, rec := range records {
		c := rec.Chunk
		batch.Queue(`
			INSERT INTO rag_chunks (user_id, collection_id, chunk_index, source, start_offset, end_offset, content, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, s.userID, collectionID, c.Index, c.Source, c.Start, c.End, c.Text, pgvector.NewVector(rec.Embedding))
	}
	if err = tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert chunks: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) Exists(ctx context.Context, collectionID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM rag_collections WHERE user_id = $1 AND id = $2)
	`, s.userID, collectionID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query collection: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) Search(ctx context.Context, collectionID string, query []float32, k int) ([]Match, error) {
	if len(query) == 0 {
		return nil, errors.New("query embedding is empty")
	}

	// The materialized CTE pins the scan to the collection's rows, so ranking
	// is exact and never starved by an approximate index over other users'
	// chunks.
	rows, err := s.pool.Query(ctx, `
		WITH candidates AS MATERIALIZED (
			SELECT chunk_index, source, start_offset, end_offset, content, embedding
			FROM rag_chunks
			WHERE user_id = $1 AND collection_id = $2
		)
		SELECT chunk_index, source, start_offset, end_offset, content,
		       (embedding <=> $3::vector) AS distance
		FROM candidates
		ORDER BY distance, chunk_index
		LIMIT $4
	`, s.userID, collectionID, pgvector.NewVector(query), k)
	if err != nil {
		return nil, fmt.Errorf("query similar chunks: %w", err)
	}
	defer rows.Close()

	matches := make([]Match, 0, k)
	for rows.Next() {
		var (
			m        Match
			distance float64
		)
		if err := rows.Scan(&m.Chunk.Index, &m.Chunk.Source, &m.Chunk.Start, &m.Chunk.End, &m.Chunk.Text, &distance); err != nil {
			return nil, fmt.Errorf("scan similar chunk: %w", err)
		}
		m.Score = 1 - distance
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate similar chunks: %w", err)
	}
	return matches, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]CollectionInfo, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.source, c.created_at, COUNT(k.chunk_index)
		FROM rag_collections c
		LEFT JOIN rag_chunks k ON k.user_id = c.user_id AND k.collection_id = c.id
		WHERE c.user_id = $1
		GROUP BY c.id, c.source, c.created_at
		ORDER BY c.created_at, c.id
	`, s.userID)
	if err != nil {
		return nil, fmt.Errorf("query collections: %w", err)
	}
	defer rows.Close()

	var out []CollectionInfo
	for rows.Next() {
		var info CollectionInfo
		if err := rows.Scan(&info.ID, &info.Source, &info.CreatedAt, &info.Chunks); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Delete(ctx context.Context, collectionID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM rag_collections WHERE user_id = $1 AND id = $2`, s.userID, collectionID); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	return nil
}

var _ VectorStore = (*PostgresStore)(nil)
