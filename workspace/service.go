package workspace

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fabfab/quizrag/index"
	"github.com/fabfab/quizrag/ingestion"
	"github.com/fabfab/quizrag/knowledge"
	"github.com/fabfab/quizrag/logger"
	"github.com/fabfab/quizrag/prompts"
	"github.com/fabfab/quizrag/rag"
)

// Service runs the pipeline for a single user.
type Service struct {
	userID    string
	layout    Layout
	ingest    *ingestion.Service
	index     *index.Index
	responder *rag.Responder
	graph     *knowledge.Graph
	lock      *sync.Mutex
	logger    *logger.Logger
}

func (s *Service) Layout() Layout { return s.layout }

// Ingest extracts, chunks and indexes doc into a new collection and returns
// its id. Every upload gets a fresh id, even for identical content.
func (s *Service) Ingest(ctx context.Context, doc ingestion.UploadedDocument) (string, error) {
	started := time.Now()

	if _, err := s.ingest.Resolve(doc.Filename); err != nil {
		s.logger.Warn("upload rejected", "source", doc.Filename, "error", err)
		return "", err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	chunks, err := s.ingest.Prepare(ctx, doc)
	if err != nil {
		s.logger.Error("ingest failed", "source", doc.Filename, "stage", "prepare", "error", err)
		return "", err
	}

	collectionID := uuid.NewString()
	if err := s.index.Create(ctx, collectionID, chunks); err != nil {
		s.logger.Error("ingest failed", "source", doc.Filename, "stage", "index", "error", err)
		return "", err
	}

	s.syncGraph(ctx, collectionID, doc.Filename, chunks)

	s.logger.Info("ingest completed",
		"source", doc.Filename,
		"collection_id", collectionID,
		"chunks", len(chunks),
		"duration_ms", time.Since(started).Milliseconds())
	return collectionID, nil
}

// syncGraph records lineage when a graph is configured and checks the stored
// chunk count. Failures are logged and do not fail the ingest.
func (s *Service) syncGraph(ctx context.Context, collectionID, source string, chunks []ingestion.Chunk) {
	if s.graph == nil {
		return
	}
	nodes := make([]knowledge.Chunk, len(chunks))
	for i, c := range chunks {
		nodes[i] = knowledge.Chunk{Index: c.Index, Start: c.Start, End: c.End, Text: c.Text}
	}
	err := s.graph.SyncCollection(ctx, knowledge.Collection{
		UserID: s.userID,
		ID:     collectionID,
		Source: source,
		Chunks: nodes,
	})
	if err != nil {
		s.logger.Warn("lineage sync failed", "collection_id", collectionID, "error", err)
		return
	}

	stored, err := s.graph.ChunkCount(ctx, s.userID, collectionID)
	if err != nil {
		s.logger.Warn("lineage check failed", "collection_id", collectionID, "error", err)
		return
	}
	if stored != len(chunks) {
		s.logger.Warn("lineage incomplete", "collection_id", collectionID, "chunks", len(chunks), "graph_chunks", stored)
	}
}

func (s *Service) Ask(ctx context.Context, collectionID, prompt string) (rag.Response, error) {
	resp, err := s.responder.Ask(ctx, collectionID, prompt)
	if err != nil {
		s.logger.Error("ask failed", "collection_id", collectionID, "error", err)
	}
	return resp, err
}

func (s *Service) GenerateQuestions(ctx context.Context, collectionID string, count int, complexity prompts.Complexity) ([]string, error) {
	questions, err := s.responder.GenerateQuestions(ctx, collectionID, count, complexity)
	if err != nil {
		s.logger.Error("question generation failed", "collection_id", collectionID, "error", err)
	}
	return questions, err
}

func (s *Service) ValidateAnswer(ctx context.Context, collectionID, question, answer string) (rag.Validation, error) {
	v, err := s.responder.ValidateAnswer(ctx, collectionID, question, answer)
	if err != nil {
		s.logger.Error("answer validation failed", "collection_id", collectionID, "error", err)
	}
	return v, err
}

func (s *Service) Collections(ctx context.Context) ([]index.CollectionInfo, error) {
	return s.index.List(ctx)
}

// Forget deletes a collection and its lineage.
func (s *Service) Forget(ctx context.Context, collectionID string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := s.index.Delete(ctx, collectionID); err != nil {
		return err
	}
	if s.graph != nil {
		if err := s.graph.DeleteCollection(ctx, s.userID, collectionID); err != nil {
			s.logger.Warn("lineage delete failed", "collection_id", collectionID, "error", err)
		}
	}
	return nil
}

func (s *Service) Close() error {
	return s.index.Close()
}
