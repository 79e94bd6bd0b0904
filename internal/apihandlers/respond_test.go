package apihandlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexpipe/internal/models"
	"lexpipe/internal/store"
)

func recordDomainError(t *testing.T, err error) (int, apiError) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	respondDomainError(c, err)

	var body struct {
		Error apiError `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body.Error
}

func TestRespondDomainErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "validation failure is the caller's fault",
			err:        fmt.Errorf("%w: owner_id is required", models.ErrValidation),
			wantStatus: http.StatusBadRequest,
			wantCode:   codeInvalidRequest,
		},
		{
			name:       "missing document",
			err:        fmt.Errorf("document doc-1: %w", store.ErrNotFound),
			wantStatus: http.StatusNotFound,
			wantCode:   codeDocumentNotFound,
		},
		{
			name:       "duplicate document",
			err:        fmt.Errorf("document doc-1: %w", store.ErrDuplicate),
			wantStatus: http.StatusConflict,
			wantCode:   codeDuplicateDocument,
		},
		{
			name:       "anything else is internal",
			err:        fmt.Errorf("metadata store unavailable"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   codeInternal,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, apiErr := recordDomainError(t, tc.err)
			assert.Equal(t, tc.wantStatus, status)
			assert.Equal(t, tc.wantCode, apiErr.Code)
			assert.NotEmpty(t, apiErr.Message)
		})
	}
}

func TestRespondErrorEnvelopeShape(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	respondError(c, http.StatusBadRequest, codeInvalidRequest, "owner_id form field is required")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t,
		`{"error": {"code": "invalid_request", "message": "owner_id form field is required"}}`,
		w.Body.String())
}
