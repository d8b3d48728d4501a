package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apperrors "datapulse/internal/errors"
	"datapulse/internal/services"
)

// AuditHandler serves risk-scan endpoints.
type AuditHandler struct {
	service *services.AuditService
	logger  *slog.Logger
}

// NewAuditHandler creates the audit handler.
func NewAuditHandler(service *services.AuditService, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{
		service: service,
		logger:  logger.With(slog.String("component", "audit_handler")),
	}
}

// Routes returns the risk-scan routes, mounted under a project.
func (h *AuditHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/", h.RunScan)
	r.Get("/", h.History)
	r.Get("/{scanID}/findings", h.Findings)

	return r
}

// RunScan handles POST .../scans.
func (h *AuditHandler) RunScan(w http.ResponseWriter, r *http.Request) {
	scanID, result, err := h.service.RunScan(r.Context(), chi.URLParam(r, "project"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]interface{}{
		"status":  "success",
		"scan_id": scanID,
		"data":    result,
	})
}

// History handles GET .../scans?limit=N.
func (h *AuditHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 100 {
			h.renderError(w, r, apperrors.NewValidationError("limit must be a number between 1 and 100"))
			return
		}
		limit = parsed
	}
	scans, err := h.service.ScanHistory(r.Context(), chi.URLParam(r, "project"), limit)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"status": "success", "data": scans, "count": len(scans)})
}

// Findings handles GET .../scans/{scanID}/findings.
func (h *AuditHandler) Findings(w http.ResponseWriter, r *http.Request) {
	scanID, err := strconv.ParseInt(chi.URLParam(r, "scanID"), 10, 64)
	if err != nil {
		h.renderError(w, r, apperrors.NewValidationError("scan id must be numeric"))
		return
	}
	findings, err := h.service.ScanFindings(r.Context(), scanID)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"status": "success", "data": findings, "count": len(findings)})
}

func (h *AuditHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.ErrorContext(r.Context(), "request failed",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()))
	apperrors.WriteError(w, err)
}
