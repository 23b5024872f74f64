package handler

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/fewie27/ultimate/backend/middleware"
	"github.com/fewie27/ultimate/backend/model"
	"github.com/fewie27/ultimate/backend/pkg/logger"
	"github.com/fewie27/ultimate/backend/service"
	"github.com/gin-gonic/gin"
)

// maxUploadBytes bounds uploaded document size. Rental agreements are small;
// anything bigger than this is not a text document.
const maxUploadBytes = 10 << 20

// Engine is the slice of the orchestrator the handler drives.
type Engine interface {
	Submit(text, filename, tenant string) string
	Cancel(id string)
}

type AnalysisHandler struct {
	engine  Engine
	archive *service.ArchiveService // nil when no archive is configured
	store   *service.AnalysisStore
}

func NewAnalysisHandler(engine Engine, archive *service.ArchiveService) *AnalysisHandler {
	return &AnalysisHandler{
		engine:  engine,
		archive: archive,
		store:   service.GetAnalysisStore(),
	}
}

type submitRequest struct {
	Text     string `json:"text"`
	Filename string `json:"filename"`
}

// Submit accepts a rental agreement either as a multipart text file upload or
// as a JSON body, starts the analysis and returns the new analysis ID. The
// result is retrieved by polling.
func (h *AnalysisHandler) Submit(c *gin.Context) {
	tenant := middleware.GetTenant(c)

	text, filename, ok := h.readDocument(c)
	if !ok {
		return
	}

	id := h.engine.Submit(text, filename, tenant)
	logger.Info(c.Request.Context(), "analysis submitted",
		"analysis_id", id,
		"filename", filename,
		"bytes", len(text),
	)

	c.JSON(http.StatusAccepted, gin.H{
		"id":       id,
		"filename": filename,
		"status":   model.StatusPending,
	})
}

// readDocument pulls the document text from either a form file or a JSON
// body. On failure it writes the error response and returns ok=false.
func (h *AnalysisHandler) readDocument(c *gin.Context) (text, filename string, ok bool) {
	contentType := c.ContentType()

	if strings.HasPrefix(contentType, "multipart/form-data") {
		file, header, err := c.Request.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
			return "", "", false
		}
		defer file.Close()

		ext := strings.ToLower(filepath.Ext(header.Filename))
		if ext != ".txt" && ext != ".md" && ext != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Only plain text documents are allowed"})
			return "", "", false
		}
		if header.Size > maxUploadBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Document too large"})
			return "", "", false
		}

		data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
			return "", "", false
		}
		return string(data), header.Filename, true
	}

	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return "", "", false
	}
	if len(req.Text) > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Document too large"})
		return "", "", false
	}
	filename = req.Filename
	if filename == "" {
		filename = "document.txt"
	}
	return req.Text, filename, true
}

// List returns all analyses for the current tenant, without results
func (h *AnalysisHandler) List(c *gin.Context) {
	tenant := middleware.GetTenant(c)
	analyses := h.store.GetByTenant(tenant)

	result := make([]gin.H, len(analyses))
	for i, a := range analyses {
		result[i] = gin.H{
			"id":         a.ID,
			"filename":   a.Filename,
			"status":     a.Status,
			"created_at": a.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			"updated_at": a.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
	}

	c.JSON(http.StatusOK, gin.H{"analyses": result})
}

// Get returns a single analysis with its results. Retrieval is idempotent:
// reading a result does not consume it.
func (h *AnalysisHandler) Get(c *gin.Context) {
	tenant := middleware.GetTenant(c)
	id := c.Param("id")

	a := h.store.Get(id)
	if a == nil || a.Tenant != tenant {
		// Unknown IDs are an expected client condition, not a server error
		c.JSON(http.StatusNotFound, gin.H{"error": "Analysis not found"})
		return
	}

	c.JSON(http.StatusOK, a)
}

// GetStatus returns the processing status of an analysis
func (h *AnalysisHandler) GetStatus(c *gin.Context) {
	tenant := middleware.GetTenant(c)
	id := c.Param("id")

	a := h.store.Get(id)
	if a == nil || a.Tenant != tenant {
		c.JSON(http.StatusNotFound, gin.H{"error": "Analysis not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":        a.ID,
		"status":    a.Status,
		"error_msg": a.ErrorMsg,
	})
}

// Download redirects to a presigned URL for the archived document text.
func (h *AnalysisHandler) Download(c *gin.Context) {
	tenant := middleware.GetTenant(c)
	id := c.Param("id")

	a := h.store.Get(id)
	if a == nil || a.Tenant != tenant {
		c.JSON(http.StatusNotFound, gin.H{"error": "Analysis not found"})
		return
	}
	if h.archive == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Document archive not configured"})
		return
	}

	url, err := h.archive.GetPresignedURL(c.Request.Context(), id, a.Filename)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate URL: " + err.Error()})
		return
	}

	c.Redirect(http.StatusTemporaryRedirect, url)
}

// Delete cancels any in-flight work and removes the analysis together with
// its archived document text.
func (h *AnalysisHandler) Delete(c *gin.Context) {
	tenant := middleware.GetTenant(c)
	id := c.Param("id")

	a := h.store.Get(id)
	if a == nil || a.Tenant != tenant {
		c.JSON(http.StatusNotFound, gin.H{"error": "Analysis not found"})
		return
	}

	h.engine.Cancel(id)
	h.store.Delete(id)

	if h.archive != nil {
		if err := h.archive.Delete(c.Request.Context(), id, a.Filename); err != nil {
			logger.Warn(c.Request.Context(), "failed to delete archived text",
				"analysis_id", id,
				"error", err,
			)
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "Analysis deleted"})
}
