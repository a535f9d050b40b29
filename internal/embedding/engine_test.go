package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CosineSimilarity(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCosineSimilarity_DimensionMismatch(t *testing.T) {
	_, err := CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3})
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestFindTopK(t *testing.T) {
	query := []float32{1, 0}
	corpus := [][]float32{
		{0, 1},        // orthogonal
		{1, 0.1},      // close
		{1, 0},        // identical
		{-1, 0},       // opposite
		{1, 0, 0, 0},  // wrong dimension, skipped
	}

	results := FindTopK(query, corpus, 2)
	require.Len(t, results, 2)
	assert.Equal(t, 2, results[0].Index)
	assert.Equal(t, 1, results[1].Index)
	assert.Greater(t, results[0].Similarity, results[1].Similarity)
}

func TestNewEngine_UnsupportedProvider(t *testing.T) {
	_, err := NewEngine(Config{Provider: "milvus"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported embedding provider")
}

func TestNewGenAIEngine_TaskTypeNormalization(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"default", "", "RETRIEVAL_QUERY"},
		{"document", "RETRIEVAL_DOCUMENT", "RETRIEVAL_DOCUMENT"},
		{"similarity", "SEMANTIC_SIMILARITY", "SEMANTIC_SIMILARITY"},
		{"unknown falls back", "EMBED_HARDER", "RETRIEVAL_QUERY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, err := NewGenAIEngine("test-key", "", tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, engine.taskType)
			assert.Equal(t, "genai:gemini-embedding-001", engine.Name())
		})
	}
}

func TestNewGenAIEngine_RequiresKey(t *testing.T) {
	_, err := NewGenAIEngine("", "", "")
	require.Error(t, err)
}

func TestOllamaEngine_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "embeddinggemma", req.Model)
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{0.1, 0.2, 0.3}})
	}))
	defer server.Close()

	engine, err := NewOllamaEngine(server.URL, "")
	require.NoError(t, err)

	vec, err := engine.Embed(context.Background(), "how many charter schools are in Alameda")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestOllamaEngine_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	engine, err := NewOllamaEngine(server.URL, "embeddinggemma")
	require.NoError(t, err)

	_, err = engine.Embed(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}
