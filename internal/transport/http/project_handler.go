package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apperrors "datapulse/internal/errors"
	"datapulse/internal/services"
	"datapulse/pkg/contracts/domain"
)

// maxMultipartMemory bounds how much of an upload is buffered in memory
// before spilling to disk.
const maxMultipartMemory = 32 << 20

// ProjectHandler serves project lifecycle, settings, upload and dashboard
// endpoints.
type ProjectHandler struct {
	service  *services.DatasetService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewProjectHandler creates the project handler.
func NewProjectHandler(service *services.DatasetService, validate *validator.Validate, logger *slog.Logger) *ProjectHandler {
	return &ProjectHandler{
		service:  service,
		validate: validate,
		logger:   logger.With(slog.String("component", "project_handler")),
	}
}

// Routes returns the project routes. The analytics, export and scan routers
// are mounted under each project so they see the {project} URL parameter.
func (h *ProjectHandler) Routes(analytics, export, scans chi.Router) chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/", h.List)
	r.Post("/", h.Create)

	r.Route("/{project}", func(r chi.Router) {
		r.Delete("/", h.Delete)
		r.Get("/settings", h.Settings)
		r.Put("/settings", h.SaveSettings)
		r.Get("/summary", h.Summary)
		r.Get("/preview", h.Preview)
		r.Get("/audit-log", h.AuditLog)
		r.Post("/reset", h.Reset)
		r.Get("/uploads", h.Uploads)
		r.Post("/uploads", h.Upload)
		r.Delete("/uploads/{uploadID}", h.UndoUpload)

		r.Mount("/analytics", analytics)
		r.Mount("/export", export)
		r.Mount("/scans", scans)
	})

	return r
}

// CreateProjectRequest is the body of POST /api/projects.
type CreateProjectRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=100"`
	Description string `json:"description" validate:"max=500"`
}

// List handles GET /api/projects.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := h.service.Projects(r.Context())
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   projects,
		"count":  len(projects),
	})
}

// Create handles POST /api/projects.
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.renderError(w, r, apperrors.NewValidationError("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.renderError(w, r, apperrors.NewValidationError(err.Error()))
		return
	}

	info, err := h.service.CreateProject(r.Context(), req.Name, req.Description)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]interface{}{"status": "success", "data": info})
}

// Delete handles DELETE /api/projects/{project}.
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	if err := h.service.DeleteProject(r.Context(), project); err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"status": "success"})
}

// Settings handles GET /api/projects/{project}/settings.
func (h *ProjectHandler) Settings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.Settings(r.Context(), chi.URLParam(r, "project"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"status": "success", "data": settings})
}

// SaveSettings handles PUT /api/projects/{project}/settings.
func (h *ProjectHandler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	var settings domain.ProjectSettings
	if err := render.DecodeJSON(r.Body, &settings); err != nil {
		h.renderError(w, r, apperrors.NewValidationError("invalid request body"))
		return
	}
	for _, tc := range settings.TopColumns {
		if tc.Column == "" {
			h.renderError(w, r, apperrors.NewValidationError("top column entries need a column name"))
			return
		}
	}
	if err := h.service.SaveSettings(r.Context(), chi.URLParam(r, "project"), settings); err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"status": "success"})
}

// Summary handles GET /api/projects/{project}/summary.
func (h *ProjectHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context(), chi.URLParam(r, "project"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"status": "success", "data": summary})
}

// Preview handles GET /api/projects/{project}/preview?rows=N.
func (h *ProjectHandler) Preview(w http.ResponseWriter, r *http.Request) {
	rows := 10
	if v := r.URL.Query().Get("rows"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			h.renderError(w, r, apperrors.NewValidationError("rows must be a number between 1 and 1000"))
			return
		}
		rows = n
	}
	headers, data, err := h.service.Preview(r.Context(), chi.URLParam(r, "project"), rows)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status":  "success",
		"headers": headers,
		"rows":    data,
	})
}

// AuditLog handles GET /api/projects/{project}/audit-log.
func (h *ProjectHandler) AuditLog(w http.ResponseWriter, r *http.Request) {
	log, err := h.service.AuditLog(r.Context(), chi.URLParam(r, "project"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"status": "success", "data": log, "count": len(log)})
}

// Reset handles POST /api/projects/{project}/reset.
func (h *ProjectHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Reset(r.Context(), chi.URLParam(r, "project")); err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"status": "success"})
}

// Uploads handles GET /api/projects/{project}/uploads.
func (h *ProjectHandler) Uploads(w http.ResponseWriter, r *http.Request) {
	uploads, err := h.service.Uploads(r.Context(), chi.URLParam(r, "project"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"status": "success", "data": uploads, "count": len(uploads)})
}

// Upload handles POST /api/projects/{project}/uploads. The body is multipart:
// a "file" part with the spreadsheet and an optional "mapping" part holding a
// JSON object of source-column to canonical-column renames.
func (h *ProjectHandler) Upload(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	reqID := middleware.GetReqID(r.Context())

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		h.renderError(w, r, apperrors.NewValidationError("expected multipart form data"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.renderError(w, r, apperrors.NewValidationError("file part is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.renderError(w, r, apperrors.NewStorageError("failed to read upload", err))
		return
	}

	var mapping map[string]string
	if raw := r.FormValue("mapping"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
			h.renderError(w, r, apperrors.NewValidationError("mapping must be a JSON object of column renames"))
			return
		}
	}

	h.logger.InfoContext(r.Context(), "processing upload",
		slog.String("request_id", reqID),
		slog.String("project", project),
		slog.String("filename", header.Filename),
		slog.Int("bytes", len(data)))

	record, err := h.service.Upload(r.Context(), project, header.Filename, data, mapping)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]interface{}{"status": "success", "data": record})
}

// UndoUpload handles DELETE /api/projects/{project}/uploads/{uploadID}.
func (h *ProjectHandler) UndoUpload(w http.ResponseWriter, r *http.Request) {
	removed, err := h.service.UndoUpload(r.Context(), chi.URLParam(r, "project"), chi.URLParam(r, "uploadID"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"status": "success", "rows_removed": removed})
}

func (h *ProjectHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.ErrorContext(r.Context(), "request failed",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()))
	apperrors.WriteError(w, err)
}
