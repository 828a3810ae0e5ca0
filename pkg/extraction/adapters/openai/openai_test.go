package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/931405/mem1/pkg/errors"
	"github.com/931405/mem1/pkg/extraction"
)

func newTestExtractor(t *testing.T, handler http.HandlerFunc) *OpenAIExtractor {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	e, err := NewOpenAIExtractor(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)
	return e
}

func TestNewOpenAIExtractorRequiresAPIKey(t *testing.T) {
	_, err := NewOpenAIExtractor(Config{})
	assert.ErrorIs(t, err, ErrEmptyAPIKey)
}

func TestExtractParsesFactsFromResponse(t *testing.T) {
	e := newTestExtractor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"facts\":[{\"fact\":\"likes green tea\",\"category\":\"preference\",\"confidence\":0.9}]}"}}]}`))
	})

	facts, err := e.Extract(context.Background(), extraction.Request{UserMessage: "I like green tea"})
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "likes green tea", facts[0].Text)
	assert.Equal(t, "preference", facts[0].Category)
	assert.InDelta(t, 0.9, facts[0].Confidence, 1e-9)
}

func TestExtractTransportFailureIsExtractionError(t *testing.T) {
	e := newTestExtractor(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusInternalServerError)
	})

	_, err := e.Extract(context.Background(), extraction.Request{UserMessage: "hello"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrExtraction)
	assert.NotErrorIs(t, err, apperrors.ErrDecision)
}

func TestExtractEmptyChoicesIsExtractionError(t *testing.T) {
	e := newTestExtractor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[]}`))
	})

	_, err := e.Extract(context.Background(), extraction.Request{UserMessage: "hello"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrExtraction)
}
