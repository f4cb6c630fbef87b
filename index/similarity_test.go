package index

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fabfab/quizrag/ingestion"
)

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Zero(t, cosine([]float32{0, 0}, []float32{1, 1}))
	assert.Zero(t, cosine([]float32{1}, []float32{1, 1}))
}

func TestTopKOrdersByScoreThenIndex(t *testing.T) {
	matches := []Match{
		{Chunk: ingestion.Chunk{Index: 2}, Score: 0.5},
		{Chunk: ingestion.Chunk{Index: 0}, Score: 0.9},
		{Chunk: ingestion.Chunk{Index: 1}, Score: 0.5},
	}

	got := topK(matches, 2)
	assert.Equal(t, []int{0, 1}, []int{got[0].Chunk.Index, got[1].Chunk.Index})
}

func TestVectorEncoding(t *testing.T) {
	vec := []float32{0, -1.5, 3.25, 1e-7}
	assert.Equal(t, vec, decodeVector(encodeVector(vec)))
	assert.Empty(t, decodeVector(nil))
}
