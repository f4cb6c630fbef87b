package index

import (
	"context"
	"time"

	"github.com/fabfab/quizrag/ingestion"
)

// Record is a chunk paired with its embedding.
type Record struct {
	Chunk     ingestion.Chunk
	Embedding []float32
}

// Match is a retrieved chunk and its similarity to the query, higher is
// closer.
type Match struct {
	Chunk ingestion.Chunk
	Score float64
}

// CollectionInfo summarises one stored collection.
type CollectionInfo struct {
	ID        string
	Source    string
	Chunks    int
	CreatedAt time.Time
}

// VectorStore persists one user's collections.
type VectorStore interface {
	// Replace stores records under collectionID, discarding any previous
	// contents of that collection.
	Replace(ctx context.Context, collectionID, source string, records []Record) error
	Exists(ctx context.Context, collectionID string) (bool, error)
	// Search returns at most k matches ordered by descending score.
	Search(ctx context.Context, collectionID string, query []float32, k int) ([]Match, error)
	List(ctx context.Context) ([]CollectionInfo, error)
	Delete(ctx context.Context, collectionID string) error
	Close() error
}
