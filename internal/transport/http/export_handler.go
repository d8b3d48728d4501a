package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"datapulse/internal/analytics"
	apperrors "datapulse/internal/errors"
	"datapulse/internal/services"
	"datapulse/pkg/contracts/domain"
)

// ExportHandler serves workbook and CSV downloads.
type ExportHandler struct {
	data     *services.DatasetService
	export   *services.ExportService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewExportHandler creates the export handler.
func NewExportHandler(data *services.DatasetService, export *services.ExportService, validate *validator.Validate, logger *slog.Logger) *ExportHandler {
	return &ExportHandler{
		data:     data,
		export:   export,
		validate: validate,
		logger:   logger.With(slog.String("component", "export_handler")),
	}
}

// Routes returns the export routes, mounted under a project.
func (h *ExportHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/dataset", h.Dataset)
	r.Get("/top", h.TopN)
	r.Post("/trend", h.Trend)
	r.Post("/compare", h.Compare)
	r.Get("/column-stats", h.ColumnStats)

	return r
}

// serveFile writes the assembled export with download headers.
func (h *ExportHandler) serveFile(w http.ResponseWriter, r *http.Request, data []byte, name, format string) {
	h.logger.InfoContext(r.Context(), "serving export",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("filename", name),
		slog.Int("bytes", len(data)))

	w.Header().Set("Content-Type", services.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

// Dataset handles GET .../export/dataset?format=xlsx|csv with optional
// start/end date filters.
func (h *ExportHandler) Dataset(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	format := r.URL.Query().Get("format")
	if format == "" {
		format = services.FormatXLSX
	}
	start, end, err := queryDates(r)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	var data []byte
	var name string
	if start != nil || end != nil {
		data, name, err = h.export.Filtered(r.Context(), project, format, start, end)
	} else {
		data, name, err = h.export.Dataset(r.Context(), project, format)
	}
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.serveFile(w, r, data, name, format)
}

// TopN handles GET .../export/top?column=X&n=10.
func (h *ExportHandler) TopN(w http.ResponseWriter, r *http.Request) {
	column := r.URL.Query().Get("column")
	if column == "" {
		h.renderError(w, r, apperrors.NewValidationError("column is required"))
		return
	}
	n := 10
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 1000 {
			h.renderError(w, r, apperrors.NewValidationError("n must be a number between 1 and 1000"))
			return
		}
		n = parsed
	}
	start, end, err := queryDates(r)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	data, name, err := h.export.TopN(r.Context(), chi.URLParam(r, "project"), column, n, start, end)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.serveFile(w, r, data, name, services.FormatXLSX)
}

// Trend handles POST .../export/trend with the same body as the trend view.
func (h *ExportHandler) Trend(w http.ResponseWriter, r *http.Request) {
	var req TrendRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.renderError(w, r, apperrors.NewValidationError("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.renderError(w, r, apperrors.NewValidationError(err.Error()))
		return
	}

	data, name, err := h.export.Trend(r.Context(), chi.URLParam(r, "project"), analytics.TrendParams{
		GroupColumn:   req.GroupColumn,
		ValueColumn:   req.ValueColumn,
		Aggregation:   domain.Aggregation(req.Aggregation),
		TopGroups:     req.TopGroups,
		Groups:        req.Groups,
		BaselineMonth: req.BaselineMonth,
	})
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.serveFile(w, r, data, name, services.FormatXLSX)
}

// Compare handles POST .../export/compare with the same body as the compare
// view.
func (h *ExportHandler) Compare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.renderError(w, r, apperrors.NewValidationError("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.renderError(w, r, apperrors.NewValidationError(err.Error()))
		return
	}
	p1, err := req.Period1.toPeriod()
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	p2, err := req.Period2.toPeriod()
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	project := chi.URLParam(r, "project")
	cmp, err := h.data.Compare(r.Context(), project, req.Column, p1, p2)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	data, name, err := h.export.Comparison(r.Context(), project, cmp)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.serveFile(w, r, data, name, services.FormatXLSX)
}

// ColumnStats handles GET .../export/column-stats.
func (h *ExportHandler) ColumnStats(w http.ResponseWriter, r *http.Request) {
	data, name, err := h.export.ColumnStats(r.Context(), chi.URLParam(r, "project"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.serveFile(w, r, data, name, services.FormatXLSX)
}

func (h *ExportHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.ErrorContext(r.Context(), "request failed",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()))
	apperrors.WriteError(w, err)
}
