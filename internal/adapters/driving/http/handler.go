package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
	"github.com/ihssane2002/chatbot-entreprise/internal/logger"
)

// Error messages returned to API clients.
const (
	msgMissingQuestion = "Question manquante"
	msgMissingFile     = "Aucun fichier envoyé."
	msgInvalidPayload  = "Requête invalide"
	msgFileTooLarge    = "Fichier trop volumineux."
	msgSyncInProgress  = "Une synchronisation est déjà en cours."
	msgUploadFailed    = "Erreur lors du traitement du fichier."
	msgReportNotFound  = "Rapport introuvable."
)

type handler struct {
	deps      Deps
	startedAt time.Time
}

// queryRequest is the /api/query body.
type queryRequest struct {
	Question  string               `json:"question"`
	History   []domain.HistoryTurn `json:"history"`
	SessionID string               `json:"session_id"`
}

func (h *handler) query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, domain.QueryResult{Error: msgInvalidPayload})
		return
	}
	if req.Question == "" {
		c.JSON(http.StatusBadRequest, domain.QueryResult{Error: msgMissingQuestion})
		return
	}

	// Failures are carried in the result body.
	result := h.deps.Query.Ask(c.Request.Context(), domain.QueryRequest{
		Question:  req.Question,
		History:   req.History,
		SessionID: req.SessionID,
	})
	c.JSON(http.StatusOK, result)
}

// uploadResponse is the /api/upload-pdf body.
type uploadResponse struct {
	Message string `json:"message"`
	*domain.UploadResult
}

func (h *handler) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.deps.MaxUploadBytes+1<<20)

	file, err := c.FormFile("pdf")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": msgFileTooLarge})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingFile})
		return
	}
	if file.Size > h.deps.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": msgFileTooLarge})
		return
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgUploadFailed})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgUploadFailed})
		return
	}

	result, err := h.deps.Ingest.Upload(c.Request.Context(), file.Filename, data)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnsupportedType):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrSyncInProgress):
			c.JSON(http.StatusConflict, gin.H{"error": msgSyncInProgress})
		default:
			logger.Error("upload %s: %v", file.Filename, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": msgUploadFailed, "details": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, uploadResponse{Message: uploadMessage(result), UploadResult: result})
}

func uploadMessage(r *domain.UploadResult) string {
	switch {
	case r.Queued && r.Replaced:
		return "PDF déjà existant, retraitement planifié."
	case r.Queued:
		return "PDF ajouté, traitement planifié."
	case r.Replaced:
		return "PDF déjà existant mais retraité avec succès."
	default:
		return "PDF ajouté et traité avec succès."
	}
}

func (h *handler) report(c *gin.Context) {
	name := c.Param("name")
	data, err := h.deps.Corpus.Read(c.Request.Context(), name)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": msgReportNotFound})
		case errors.Is(err, domain.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": msgReportNotFound})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", name))
	c.Data(http.StatusOK, "application/pdf", data)
}

// reportSummary lists a stored report without its units.
type reportSummary struct {
	Name        string    `json:"name"`
	Fingerprint string    `json:"fingerprint"`
	Units       int       `json:"units"`
	ExtractedAt time.Time `json:"extracted_at"`
}

func (h *handler) listReports(c *gin.Context) {
	if h.deps.Reports == nil {
		c.JSON(http.StatusOK, gin.H{"reports": []reportSummary{}})
		return
	}
	reports, err := h.deps.Reports.ListReports(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]reportSummary, 0, len(reports))
	for _, r := range reports {
		out = append(out, reportSummary{Name: r.Name, Fingerprint: r.Fingerprint, Units: len(r.Units), ExtractedAt: r.ExtractedAt})
	}
	c.JSON(http.StatusOK, gin.H{"reports": out})
}

func (h *handler) syncStatus(c *gin.Context) {
	status, err := h.deps.Sync.Status(c.Request.Context())
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	body := gin.H{"status": status}
	if last, err := h.deps.Sync.LastRun(c.Request.Context()); err == nil {
		body["last_run"] = last
	}
	c.JSON(http.StatusOK, body)
}

type dependencyStatus struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

func (h *handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	deps := gin.H{}
	ok := true
	if h.deps.VectorIndex != nil {
		st := dependencyStatus{OK: true}
		if _, err := h.deps.VectorIndex.CollectionExists(ctx); err != nil {
			st = dependencyStatus{Message: err.Error()}
			ok = false
		}
		deps["vector_index"] = st
	}
	st := dependencyStatus{OK: true}
	if _, err := h.deps.Sync.LastRun(ctx); err != nil && !errors.Is(err, domain.ErrNotFound) {
		st = dependencyStatus{Message: err.Error()}
		ok = false
	}
	deps["storage"] = st

	code := http.StatusOK
	if !ok {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"uptime_sec":   int(time.Since(h.startedAt).Seconds()),
		"dependencies": deps,
		"warnings":     h.deps.Warnings,
	})
}
