package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloo-solutions/labelrag/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()

	JSON(w, http.StatusOK, map[string]string{"key": "value"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var result map[string]string
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err)
	assert.Equal(t, "value", result["key"])
}

func TestJSON_NilData(t *testing.T) {
	w := httptest.NewRecorder()

	JSON(w, http.StatusNoContent, nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Empty(t, w.Body.String())
}

func TestSuccess(t *testing.T) {
	w := httptest.NewRecorder()

	Success(w, http.StatusCreated, map[string]string{"id": "123"})

	assert.Equal(t, http.StatusCreated, w.Code)

	var result SuccessResponse
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err)

	data, ok := result.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "123", data["id"])
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()

	Error(w, http.StatusBadRequest, "invalid input")

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var result ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err)
	assert.Equal(t, "invalid input", result.Error)
}

func TestDomainErrorToHTTP(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, http.StatusOK},
		{"validation error", domain.ErrEmptyQuestion, http.StatusBadRequest},
		{"configuration error", domain.NewConfigurationError("k must be positive"), http.StatusBadRequest},
		{"not found error", domain.ErrIngestionJobNotFound, http.StatusNotFound},
		{"unauthorized error", domain.ErrInvalidAPIKey, http.StatusUnauthorized},
		{"ingestion failure", domain.NewIngestionFailure("NDA-1", errors.New("no pdf")), http.StatusUnprocessableEntity},
		{"embedding failure", domain.NewEmbeddingFailure(domain.StageRetrieval, errors.New("down")), http.StatusBadGateway},
		{"generation failure", domain.NewGenerationFailure(errors.New("down")), http.StatusBadGateway},
		{"wrapped domain error", fmt.Errorf("ask: %w", domain.NewGenerationFailure(errors.New("down"))), http.StatusBadGateway},
		{"body too large", &http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge},
		{"internal error", domain.NewDomainError(domain.ErrCodeInternalError, "internal"), http.StatusInternalServerError},
		{"unknown domain error", domain.NewDomainError("UNKNOWN", "unknown"), http.StatusInternalServerError},
		{"non-domain error", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DomainErrorToHTTP(tt.err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestHandleError(t *testing.T) {
	w := httptest.NewRecorder()

	HandleError(w, domain.ErrIngestionJobNotFound)

	assert.Equal(t, http.StatusNotFound, w.Code)

	var result ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err)
	assert.Contains(t, result.Error, "not found")
	assert.Equal(t, domain.ErrCodeNotFound, result.Code)
}

func TestDecodeJSON(t *testing.T) {
	var body struct {
		Question string `json:"question"`
	}

	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"what is Drug A for?"}`))
	require.NoError(t, DecodeJSON(req, &body))
	assert.Equal(t, "what is Drug A for?", body.Question)

	req = httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"q":"x"}`))
	err := DecodeJSON(req, &body)
	assert.Equal(t, http.StatusBadRequest, DomainErrorToHTTP(err))

	req = httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`not json`))
	err = DecodeJSON(req, &body)
	assert.Equal(t, http.StatusBadRequest, DomainErrorToHTTP(err))
}
