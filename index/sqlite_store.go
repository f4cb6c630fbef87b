package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fabfab/quizrag/database"
	"github.com/fabfab/quizrag/ingestion"
)

// SQLiteStore keeps one user's collections in a single SQLite file and ranks
// chunks by exact cosine similarity.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens the index database in dir, the user's embeddings
// directory.
func OpenSQLiteStore(ctx context.Context, dir string) (*SQLiteStore, error) {
	db, err := database.NewSQLite(ctx, dir)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Replace(ctx context.Context, collectionID, source string, records []Record) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM collections WHERE id = ?`, collectionID); err != nil {
		return fmt.Errorf("clear collection: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO collections (id, source, created_at) VALUES (?, ?, ?)`,
		collectionID, source, time.Now().UTC().UnixNano()); err != nil {
		return fmt.Errorf("insert collection: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (collection_id, chunk_index, source, start_offset, end_offset, content, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		c := rec.Chunk
		if _, err = stmt.ExecContext(ctx, collectionID, c.Index, c.Source, c.Start, c.End, c.Text, encodeVector(rec.Embedding)); err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.Index, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Exists(ctx context.Context, collectionID string) (bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM collections WHERE id = ?`, collectionID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query collection: %w", err)
	}
	return true, nil
}

func (s *SQLiteStore) Search(ctx context.Context, collectionID string, query []float32, k int) ([]Match, error) {
	if len(query) == 0 {
		return nil, errors.New("query embedding is empty")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_index, source, start_offset, end_offset, content, embedding
		FROM chunks
		WHERE collection_id = ?
		ORDER BY chunk_index
	`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var (
			c    ingestion.Chunk
			blob []byte
		)
		if err := rows.Scan(&c.Index, &c.Source, &c.Start, &c.End, &c.Text, &blob); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		vec := decodeVector(blob)
		if len(vec) != len(query) {
			return nil, fmt.Errorf("chunk %d has dimension %d, query has %d", c.Index, len(vec), len(query))
		}
		matches = append(matches, Match{Chunk: c, Score: cosine(query, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}

	return topK(matches, k), nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]CollectionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.source, c.created_at, COUNT(k.chunk_index)
		FROM collections c
		LEFT JOIN chunks k ON k.collection_id = c.id
		GROUP BY c.id, c.source, c.created_at
		ORDER BY c.created_at, c.id
	`)
	if err != nil {
		return nil, fmt.Errorf("query collections: %w", err)
	}
	defer rows.Close()

	var out []CollectionInfo
	for rows.Next() {
		var (
			info    CollectionInfo
			created int64
		)
		if err := rows.Scan(&info.ID, &info.Source, &created, &info.Chunks); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		info.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, info)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Delete(ctx context.Context, collectionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM collections WHERE id = ?`, collectionID); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	return nil
}

var _ VectorStore = (*SQLiteStore)(nil)
