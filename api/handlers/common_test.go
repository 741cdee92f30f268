package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/querydesk/types"
)

func TestWriteSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(types.WithRequestID(req.Context(), "req-123"))

	WriteSuccess(rec, req, map[string]string{"hello": "world"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "req-123", resp.RequestID)
	assert.Nil(t, resp.Error)
}

func TestWriteErrorMapsCodes(t *testing.T) {
	tests := []struct {
		code   types.ErrorCode
		status int
	}{
		{types.ErrInvalidRequest, http.StatusBadRequest},
		{types.ErrInvalidDocument, http.StatusBadRequest},
		{types.ErrDocumentNotFound, http.StatusNotFound},
		{types.ErrNoDocumentsLoaded, http.StatusConflict},
		{types.ErrDimensionMismatch, http.StatusUnprocessableEntity},
		{types.ErrModelMismatch, http.StatusUnprocessableEntity},
		{types.ErrEmbeddingProvider, http.StatusBadGateway},
		{types.ErrHandlerUnavailable, http.StatusServiceUnavailable},
		{types.ErrTimeout, http.StatusGatewayTimeout},
		{types.ErrInternalError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)

			WriteError(rec, req, types.NewError(tt.code, "boom"), nil)

			assert.Equal(t, tt.status, rec.Code)
			var resp Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, string(tt.code), resp.Error.Code)
		})
	}
}

func TestWriteErrorCarriesRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(types.WithRequestID(req.Context(), "req-err-7"))

	WriteError(rec, req, types.NewError(types.ErrInvalidRequest, "bad input"), nil)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "req-err-7", resp.RequestID)
}

func TestWriteErrorWrapsPlainErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	WriteError(rec, req, assert.AnError, nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(types.ErrInternalError), resp.Error.Code)
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/",
		jsonBody(t, map[string]any{"text": "hi", "bogus": true}))

	var dst struct {
		Text string `json:"text"`
	}
	err := DecodeJSONBody(rec, req, &dst, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
