package apihandlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"lexpipe/internal/models"
	"lexpipe/internal/store"
)

// Error codes carried in the response envelope. They mirror the domain
// sentinels so clients can switch on the code instead of parsing messages.
const (
	codeInvalidRequest    = "invalid_request"
	codeDocumentNotFound  = "document_not_found"
	codeDuplicateDocument = "duplicate_document"
	codeInternal          = "internal_error"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondError writes the error envelope every non-2xx response carries:
// {"error": {"code": "...", "message": "..."}}
func respondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, gin.H{"error": apiError{Code: code, Message: msg}})
}

// respondDomainError maps the domain sentinels onto HTTP statuses: bad input
// is the caller's fault, missing and duplicate documents get their own codes,
// everything else is a 500. Owner-scoped lookups report not-found for
// documents the caller does not own, so the 404 branch doubles as the
// access-control response.
func respondDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		respondError(c, http.StatusBadRequest, codeInvalidRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		respondError(c, http.StatusNotFound, codeDocumentNotFound, err.Error())
	case errors.Is(err, store.ErrDuplicate):
		respondError(c, http.StatusConflict, codeDuplicateDocument, err.Error())
	default:
		respondError(c, http.StatusInternalServerError, codeInternal, err.Error())
	}
}
