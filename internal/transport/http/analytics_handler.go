package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"datapulse/internal/analytics"
	apperrors "datapulse/internal/errors"
	"datapulse/internal/services"
	"datapulse/pkg/contracts/domain"
)

// AnalyticsHandler serves the derived-view endpoints.
type AnalyticsHandler struct {
	service  *services.DatasetService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewAnalyticsHandler creates the analytics handler.
func NewAnalyticsHandler(service *services.DatasetService, validate *validator.Validate, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		service:  service,
		validate: validate,
		logger:   logger.With(slog.String("component", "analytics_handler")),
	}
}

// Routes returns the analytics routes, mounted under a project.
func (h *AnalyticsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/date-range", h.DateRange)
	r.Get("/top", h.TopN)
	r.Post("/trend", h.Trend)
	r.Post("/compare", h.Compare)
	r.Post("/grouped-compare", h.GroupedCompare)
	r.Get("/column-stats", h.ColumnStats)
	r.Get("/catalog", h.Catalog)

	return r
}

// parseDate accepts the dashboard's date-only format and RFC 3339.
func parseDate(value string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}

// queryDates reads optional start/end query parameters.
func queryDates(r *http.Request) (start, end *time.Time, err error) {
	if v := r.URL.Query().Get("start"); v != "" {
		t, perr := parseDate(v)
		if perr != nil {
			return nil, nil, apperrors.NewValidationError("start must be a YYYY-MM-DD date")
		}
		start = &t
	}
	if v := r.URL.Query().Get("end"); v != "" {
		t, perr := parseDate(v)
		if perr != nil {
			return nil, nil, apperrors.NewValidationError("end must be a YYYY-MM-DD date")
		}
		end = &t
	}
	return start, end, nil
}

// DateRange handles GET .../analytics/date-range.
func (h *AnalyticsHandler) DateRange(w http.ResponseWriter, r *http.Request) {
	span, err := h.service.DateRange(r.Context(), chi.URLParam(r, "project"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"status": "success", "data": span})
}

// TopN handles GET .../analytics/top?column=X&n=10&start=&end=.
func (h *AnalyticsHandler) TopN(w http.ResponseWriter, r *http.Request) {
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

	entries, err := h.service.TopN(r.Context(), chi.URLParam(r, "project"), column, n, start, end)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   entries,
		"column": column,
		"count":  len(entries),
	})
}

// TrendRequest is the body of POST .../analytics/trend.
type TrendRequest struct {
	GroupColumn   string   `json:"group_column" validate:"required"`
	ValueColumn   string   `json:"value_column"`
	Aggregation   string   `json:"aggregation" validate:"required"`
	TopGroups     int      `json:"top_groups" validate:"min=0,max=100"`
	Groups        []string `json:"groups"`
	BaselineMonth string   `json:"baseline_month"`
}

// Trend handles POST .../analytics/trend.
func (h *AnalyticsHandler) Trend(w http.ResponseWriter, r *http.Request) {
	var req TrendRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.renderError(w, r, apperrors.NewValidationError("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.renderError(w, r, apperrors.NewValidationError(err.Error()))
		return
	}

	trend, err := h.service.Trend(r.Context(), chi.URLParam(r, "project"), analytics.TrendParams{
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
	render.JSON(w, r, map[string]interface{}{"status": "success", "data": trend})
}

// PeriodRequest is an inclusive date range in a request body.
type PeriodRequest struct {
	Start string `json:"start" validate:"required"`
	End   string `json:"end" validate:"required"`
}

func (p PeriodRequest) toPeriod() (domain.Period, error) {
	start, err := parseDate(p.Start)
	if err != nil {
		return domain.Period{}, apperrors.NewValidationError("period start must be a YYYY-MM-DD date")
	}
	end, err := parseDate(p.End)
	if err != nil {
		return domain.Period{}, apperrors.NewValidationError("period end must be a YYYY-MM-DD date")
	}
	return domain.Period{Start: start, End: end}, nil
}

// CompareRequest is the body of POST .../analytics/compare.
type CompareRequest struct {
	Column  string        `json:"column" validate:"required"`
	Period1 PeriodRequest `json:"period1" validate:"required"`
	Period2 PeriodRequest `json:"period2" validate:"required"`
}

// Compare handles POST .../analytics/compare.
func (h *AnalyticsHandler) Compare(w http.ResponseWriter, r *http.Request) {
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

	cmp, err := h.service.Compare(r.Context(), chi.URLParam(r, "project"), req.Column, p1, p2)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"status": "success", "data": cmp})
}

// GroupedCompareRequest is the body of POST .../analytics/grouped-compare.
type GroupedCompareRequest struct {
	GroupColumn string        `json:"group_column" validate:"required"`
	ValueColumn string        `json:"value_column"`
	Aggregation string        `json:"aggregation" validate:"required"`
	Period1     PeriodRequest `json:"period1" validate:"required"`
	Period2     PeriodRequest `json:"period2" validate:"required"`
}

// GroupedCompare handles POST .../analytics/grouped-compare.
func (h *AnalyticsHandler) GroupedCompare(w http.ResponseWriter, r *http.Request) {
	var req GroupedCompareRequest
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

	cmp, err := h.service.GroupedCompare(r.Context(), chi.URLParam(r, "project"),
		req.GroupColumn, req.ValueColumn, domain.Aggregation(req.Aggregation), p1, p2)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"status": "success", "data": cmp})
}

// ColumnStats handles GET .../analytics/column-stats.
func (h *AnalyticsHandler) ColumnStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.ColumnStats(r.Context(), chi.URLParam(r, "project"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"status": "success", "data": stats, "count": len(stats)})
}

// Catalog handles GET .../analytics/catalog.
func (h *AnalyticsHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.service.Catalog(r.Context(), chi.URLParam(r, "project"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"status": "success", "data": catalog})
}

func (h *AnalyticsHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.ErrorContext(r.Context(), "request failed",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()))
	apperrors.WriteError(w, err)
}
