// Package rag answers prompts, generates questions and grades answers against
// a single collection, using retrieved chunks as the model's context.
package rag

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fabfab/quizrag/apperr"
	"github.com/fabfab/quizrag/index"
	"github.com/fabfab/quizrag/llm"
	"github.com/fabfab/quizrag/logger"
	"github.com/fabfab/quizrag/prompts"
)

// ErrEmptyPrompt is returned when a prompt, question or answer is blank.
var ErrEmptyPrompt = apperr.New(apperr.ErrInvalidInput, "check input", errors.New("prompt cannot be empty"))

const snippetLimit = 300

type Responder struct {
	retriever Retriever
	llm       llm.Client
	k         int
	timeout   time.Duration
	logger    *logger.Logger
}

// NewResponder retrieves k chunks per request and bounds every model call by
// timeout when it is positive.
func NewResponder(retriever Retriever, client llm.Client, k int, timeout time.Duration, log *logger.Logger) (*Responder, error) {
	const op = "new responder"
	if retriever == nil {
		return nil, apperr.Newf(apperr.ErrConfiguration, op, "retriever is not configured")
	}
	if client == nil {
		return nil, apperr.Newf(apperr.ErrConfiguration, op, "llm client is not configured")
	}
	if k <= 0 {
		return nil, apperr.Newf(apperr.ErrConfiguration, op, "k must be positive, got %d", k)
	}
	return &Responder{
		retriever: retriever,
		llm:       client,
		k:         k,
		timeout:   timeout,
		logger:    logger.OrNop(log),
	}, nil
}

// Ask answers prompt from the collection's most relevant chunks. The model
// output is returned verbatim.
func (r *Responder) Ask(ctx context.Context, collectionID, prompt string) (Response, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Response{}, ErrEmptyPrompt
	}
	return r.complete(ctx, "ask", collectionID, prompt, prompt)
}

// GenerateQuestions asks for count questions at the given complexity. The
// result is whatever the model produced, one question per line, minus blank
// and preamble lines; it may hold more or fewer than count entries.
func (r *Responder) GenerateQuestions(ctx context.Context, collectionID string, count int, complexity prompts.Complexity) ([]string, error) {
	const op = "generate questions"

	if count < 1 {
		return nil, apperr.Newf(apperr.ErrConfiguration, op, "question count must be positive, got %d", count)
	}
	complexity, known := prompts.ParseComplexity(string(complexity))
	if !known {
		r.logger.Warn("unknown complexity requested", "collection_id", collectionID, "complexity", string(complexity))
	}

	prompt := prompts.QuestionPrompt(count, complexity)
	resp, err := r.complete(ctx, op, collectionID, prompt, prompt)
	if err != nil {
		return nil, err
	}

	questions := ParseQuestions(resp.Answer)
	if len(questions) != count {
		r.logger.Debug("question count differs from request", "collection_id", collectionID, "requested", count, "received", len(questions))
	}
	return questions, nil
}

// ValidateAnswer grades answer against question using chunks retrieved for
// the question. Output that cannot be parsed degrades to an Unknown verdict
// carrying the raw text rather than failing.
func (r *Responder) ValidateAnswer(ctx context.Context, collectionID, question, answer string) (Validation, error) {
	const op = "validate answer"

	question = strings.TrimSpace(question)
	if question == "" || strings.TrimSpace(answer) == "" {
		return Validation{}, ErrEmptyPrompt
	}

	resp, err := r.complete(ctx, op, collectionID, question, prompts.ValidationPrompt(question, answer))
	if err != nil {
		return Validation{}, err
	}

	v := ParseValidation(resp.Answer)
	if v.Verdict == Unknown {
		r.logger.Warn("validation output not understood",
			"collection_id", collectionID,
			"error", apperr.Newf(apperr.ErrParse, op, "no verdict in %d characters of output", len(v.Raw)))
	}
	return v, nil
}

// complete retrieves context for query and sends prompt to the model with
// that context stuffed into the system message.
func (r *Responder) complete(ctx context.Context, op, collectionID, query, prompt string) (Response, error) {
	matches, err := r.retriever.Retrieve(ctx, collectionID, query, r.k)
	if err != nil {
		return Response{}, err
	}

	texts := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = m.Chunk.Text
	}
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: prompts.ContextSystemPrompt(texts)},
		{Role: llm.RoleUser, Content: prompt},
	}

	callCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	started := time.Now()
	answer, err := r.llm.Generate(callCtx, messages)
	if err != nil {
		r.logger.Error("model call failed", "op", op, "collection_id", collectionID, "error", err)
		return Response{}, apperr.Classify(apperr.ErrModelCall, op, err)
	}

	r.logger.Info("model call completed", "op", op, "collection_id", collectionID,
		"chunks", len(matches), "duration_ms", time.Since(started).Milliseconds())
	return Response{Answer: answer, Sources: toSources(matches)}, nil
}

func (r *Responder) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

func toSources(matches []index.Match) []Source {
	sources := make([]Source, 0, len(matches))
	for _, m := range matches {
		snippet := strings.TrimSpace(m.Chunk.Text)
		if runes := []rune(snippet); len(runes) > snippetLimit {
			snippet = string(runes[:snippetLimit]) + "..."
		}
		sources = append(sources, Source{
			Document: m.Chunk.Source,
			Index:    m.Chunk.Index,
			Score:    m.Score,
			Snippet:  snippet,
		})
	}
	return sources
}
