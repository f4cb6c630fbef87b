// Package index embeds chunks into per-user collections and answers
// similarity queries against them.
package index

import (
	"context"
	"strings"
	"time"

	"github.com/fabfab/quizrag/apperr"
	"github.com/fabfab/quizrag/embeddings"
	"github.com/fabfab/quizrag/ingestion"
	"github.com/fabfab/quizrag/logger"
)

// Index binds an embedder to one user's vector store.
type Index struct {
	store    VectorStore
	embedder embeddings.Embedder
	timeout  time.Duration
	logger   *logger.Logger
}

// New returns an Index. A non-positive timeout disables the per-call deadline.
func New(store VectorStore, embedder embeddings.Embedder, timeout time.Duration, log *logger.Logger) *Index {
	return &Index{
		store:    store,
		embedder: embedder,
		timeout:  timeout,
		logger:   logger.OrNop(log),
	}
}

func (ix *Index) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ix.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, ix.timeout)
}

// Create embeds chunks and stores them as collectionID. An existing
// collection with the same id is replaced.
func (ix *Index) Create(ctx context.Context, collectionID string, chunks []ingestion.Chunk) error {
	const op = "create collection"

	if strings.TrimSpace(collectionID) == "" {
		return apperr.Newf(apperr.ErrIndex, op, "collection id is required")
	}
	if len(chunks) == 0 {
		return apperr.Newf(apperr.ErrIndex, op, "no chunks to index")
	}

	ctx, cancel := ix.withTimeout(ctx)
	defer cancel()

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return apperr.Classify(apperr.ErrIndex, op, err)
	}
	if len(vectors) != len(chunks) {
		return apperr.Newf(apperr.ErrIndex, op, "embedding count mismatch: have %d chunks, %d embeddings", len(chunks), len(vectors))
	}

	records := make([]Record, len(chunks))
	for i := range chunks {
		records[i] = Record{Chunk: chunks[i], Embedding: vectors[i]}
	}

	if err := ix.store.Replace(ctx, collectionID, chunks[0].Source, records); err != nil {
		return apperr.Classify(apperr.ErrIndex, op, err)
	}

	ix.logger.Info("collection indexed", "collection_id", collectionID, "chunks", len(records))
	return nil
}

// Retrieve returns up to k chunks of collectionID most similar to query,
// best first.
func (ix *Index) Retrieve(ctx context.Context, collectionID, query string, k int) ([]Match, error) {
	const op = "retrieve"

	if k <= 0 {
		return nil, apperr.Newf(apperr.ErrConfiguration, op, "k must be positive, got %d", k)
	}

	ctx, cancel := ix.withTimeout(ctx)
	defer cancel()

	exists, err := ix.store.Exists(ctx, collectionID)
	if err != nil {
		return nil, apperr.Classify(apperr.ErrIndex, op, err)
	}
	if !exists {
		return nil, apperr.Newf(apperr.ErrCollectionNotFound, op, "%q", collectionID)
	}

	vectors, err := ix.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, apperr.Classify(apperr.ErrIndex, op, err)
	}
	if len(vectors) != 1 {
		return nil, apperr.Newf(apperr.ErrIndex, op, "expected 1 query embedding, got %d", len(vectors))
	}

	matches, err := ix.store.Search(ctx, collectionID, vectors[0], k)
	if err != nil {
		return nil, apperr.Classify(apperr.ErrIndex, op, err)
	}

	ix.logger.Debug("retrieved chunks", "collection_id", collectionID, "k", k, "matches", len(matches))
	return matches, nil
}

// List reports the user's collections, oldest first.
func (ix *Index) List(ctx context.Context) ([]CollectionInfo, error) {
	ctx, cancel := ix.withTimeout(ctx)
	defer cancel()

	infos, err := ix.store.List(ctx)
	if err != nil {
		return nil, apperr.Classify(apperr.ErrIndex, "list collections", err)
	}
	return infos, nil
}

// Delete removes collectionID, failing with ErrCollectionNotFound if it does
// not exist.
func (ix *Index) Delete(ctx context.Context, collectionID string) error {
	const op = "delete collection"

	ctx, cancel := ix.withTimeout(ctx)
	defer cancel()

	exists, err := ix.store.Exists(ctx, collectionID)
	if err != nil {
		return apperr.Classify(apperr.ErrIndex, op, err)
	}
	if !exists {
		return apperr.Newf(apperr.ErrCollectionNotFound, op, "%q", collectionID)
	}
	if err := ix.store.Delete(ctx, collectionID); err != nil {
		return apperr.Classify(apperr.ErrIndex, op, err)
	}

	ix.logger.Info("collection deleted", "collection_id", collectionID)
	return nil
}

func (ix *Index) Close() error {
	return ix.store.Close()
}
