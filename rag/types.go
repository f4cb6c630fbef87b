package rag

import (
	"context"

	"github.com/fabfab/quizrag/index"
)

// Retriever fetches the chunks of a collection most similar to a query.
type Retriever interface {
	Retrieve(ctx context.Context, collectionID, query string, k int) ([]index.Match, error)
}

// Verdict is the outcome of grading an answer.
type Verdict string

const (
	Correct   Verdict = "Correct"
	Incorrect Verdict = "Incorrect"
	// Unknown means the model output carried no recognisable verdict.
	Unknown Verdict = "Unknown"
)

// Validation is the parsed grading of one answer.
type Validation struct {
	Verdict  Verdict
	Feedback string
	Raw      string
}

// Source is a chunk that informed a response.
type Source struct {
	Document string
	Index    int
	Score    float64
	Snippet  string
}

type Response struct {
	Answer  string
	Sources []Source
}
