package ingestion

import (
	"context"
	"strings"

	"github.com/fabfab/quizrag/apperr"
	"github.com/fabfab/quizrag/logger"
)

// Service turns one upload into chunks.
type Service struct {
	extractor *TextExtractor
	splitter  *Splitter
	logger    *logger.Logger
}

func NewService(extractor *TextExtractor, splitter *Splitter, log *logger.Logger) *Service {
	return &Service{
		extractor: extractor,
		splitter:  splitter,
		logger:    logger.OrNop(log),
	}
}

// Prepare extracts and splits doc. A document that yields no text fails with
// ErrExtraction.
func (s *Service) Prepare(ctx context.Context, doc UploadedDocument) ([]Chunk, error) {
	extracted, err := s.extractor.Extract(ctx, doc)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(extracted.Text) == "" {
		return nil, apperr.Newf(apperr.ErrExtraction, "prepare document", "no content could be extracted from %q", doc.Filename)
	}

	chunks := s.splitter.Split(extracted)
	s.logger.Info("document prepared",
		"source", doc.Filename,
		"chunks", len(chunks),
		"chunk_size", s.splitter.Size(),
		"chunk_overlap", s.splitter.Overlap())
	return chunks, nil
}

// Resolve exposes the extractor's type check so callers can reject an upload
// before doing any other work.
func (s *Service) Resolve(filename string) (DocumentType, error) {
	return s.extractor.Resolve(filename)
}
