package apihandlers

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"lexpipe/internal/app"
	"lexpipe/internal/models"
	"lexpipe/internal/tasks"
)

const maxUploadBytes = 50 << 20 // 50 MiB

type APIHandler struct {
	App *app.App
}

func NewAPIHandler(a *app.App) *APIHandler {
	return &APIHandler{App: a}
}

// UploadDocumentHandler accepts a multipart document upload, stores the raw
// bytes, creates the metadata record and kicks off the extraction stage. The
// response is 202: processing continues asynchronously and the client polls
// the document's status.
func (h *APIHandler) UploadDocumentHandler(c *gin.Context) {
	ownerID := c.PostForm("owner_id")
	if ownerID == "" {
		respondError(c, http.StatusBadRequest, codeInvalidRequest, "owner_id form field is required")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, codeInvalidRequest, "file form field is required: "+err.Error())
		return
	}
	if fileHeader.Size > maxUploadBytes {
		respondError(c, http.StatusBadRequest, codeInvalidRequest,
			fmt.Sprintf("file exceeds the %d byte upload limit", maxUploadBytes))
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		respondError(c, http.StatusInternalServerError, codeInternal, "open upload: "+err.Error())
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		respondError(c, http.StatusInternalServerError, codeInternal, "read upload: "+err.Error())
		return
	}
	if int64(len(data)) > maxUploadBytes {
		respondError(c, http.StatusBadRequest, codeInvalidRequest,
			fmt.Sprintf("file exceeds the %d byte upload limit", maxUploadBytes))
		return
	}

	documentID := uuid.NewString()
	filename := filepath.Base(fileHeader.Filename)
	rawLocation := fmt.Sprintf("raw/%s/%s", documentID, filename)

	storedAt, err := h.App.Blob.Put(c.Request.Context(), rawLocation, data)
	if err != nil {
		respondError(c, http.StatusInternalServerError, codeInternal, "store upload: "+err.Error())
		return
	}

	now := time.Now().UTC()
	rec := &models.DocumentRecord{
		DocumentID:  documentID,
		OwnerID:     ownerID,
		Filename:    filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		SizeBytes:   int64(len(data)),
		Status:      models.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	rec.AppendLocation("raw", storedAt)
	if err := rec.Validate(); err != nil {
		respondDomainError(c, err)
		return
	}

	if err := h.App.Meta.Create(c.Request.Context(), rec); err != nil {
		respondDomainError(c, err)
		return
	}

	traceID := uuid.NewString()
	msg := models.PipelineMessage{
		DocumentID: documentID,
		OwnerID:    ownerID,
		Stage:      tasks.StageExtract,
		TraceID:    traceID,
	}
	if err := h.App.Bus.Publish(c.Request.Context(), msg); err != nil {
		respondError(c, http.StatusInternalServerError, codeInternal, "enqueue extraction: "+err.Error())
		return
	}

	log.WithFields(log.Fields{
		"document_id": documentID,
		"owner_id":    ownerID,
		"trace_id":    traceID,
		"size_bytes":  rec.SizeBytes,
	}).Info("document accepted for processing")

	c.JSON(http.StatusAccepted, gin.H{"data": gin.H{
		"document": rec,
		"trace_id": traceID,
	}})
}

// GetDocumentHandler returns one document record. The owner_id query
// parameter scopes the lookup; a document belonging to someone else is
// indistinguishable from a missing one.
func (h *APIHandler) GetDocumentHandler(c *gin.Context) {
	ownerID := c.Query("owner_id")
	if ownerID == "" {
		respondError(c, http.StatusBadRequest, codeInvalidRequest, "owner_id query parameter is required")
		return
	}

	rec, _, err := h.App.Meta.Read(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	if rec.OwnerID != ownerID {
		respondError(c, http.StatusNotFound, codeDocumentNotFound, "document not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"document": rec}})
}

// ListDocumentsHandler returns an owner's documents, newest first.
func (h *APIHandler) ListDocumentsHandler(c *gin.Context) {
	ownerID := c.Query("owner_id")
	if ownerID == "" {
		respondError(c, http.StatusBadRequest, codeInvalidRequest, "owner_id query parameter is required")
		return
	}

	limit := 20
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			respondError(c, http.StatusBadRequest, codeInvalidRequest, "invalid limit: "+l)
			return
		}
		limit = parsed
	}

	recs, err := h.App.Meta.List(c.Request.Context(), ownerID, limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, codeInternal, "list documents: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"documents": recs}})
}

type queryRequest struct {
	Query       string   `json:"query"`
	OwnerID     string   `json:"owner_id"`
	DocumentIDs []string `json:"document_ids"`
	TopK        int      `json:"top_k"`
}

// QueryHandler answers a question over the owner's indexed documents. Field
// validation lives in the query coordinator; a NoEvidence result is still a
// 200, distinguished by the no_evidence field.
func (h *APIHandler) QueryHandler(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, codeInvalidRequest, "invalid request body: "+err.Error())
		return
	}
	if req.TopK == 0 {
		req.TopK = h.App.Config.Query.TopK
	}

	result, err := h.App.Query.Answer(c.Request.Context(), models.Query{
		Text:        req.Query,
		OwnerID:     req.OwnerID,
		DocumentIDs: req.DocumentIDs,
		TopK:        req.TopK,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

// HealthHandler reports process liveness and metadata store reachability.
func (h *APIHandler) HealthHandler(c *gin.Context) {
	if err := h.App.Meta.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
