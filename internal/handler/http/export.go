// Package http exposes the export engine over the admin REST API.
package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hoteldex/hotel-admin/internal/auth"
	"github.com/hoteldex/hotel-admin/internal/errors"
	"github.com/hoteldex/hotel-admin/internal/export"
	"github.com/hoteldex/hotel-admin/internal/model"
)

const sessionKey = "session"

// ExportHandler serves submit, status, list and download.
type ExportHandler struct {
	orchestrator *export.Orchestrator
	authManager  auth.Manager
}

func NewExportHandler(orchestrator *export.Orchestrator, authManager auth.Manager) *ExportHandler {
	return &ExportHandler{orchestrator: orchestrator, authManager: authManager}
}

// Register mounts the export routes behind the auth middleware.
func (h *ExportHandler) Register(r gin.IRouter) {
	api := r.Group("/api/v1/exports", h.authorize)
	api.POST("", h.submit)
	api.GET("", h.list)
	api.GET("/:job_id", h.status)
	api.GET("/:job_id/state", h.state)
	api.GET("/:job_id/download", h.download)
}

func (h *ExportHandler) authorize(c *gin.Context) {
	sess, err := h.authManager.Authorize(c.Request)
	if err != nil {
		renderError(c, err)
		c.Abort()
		return
	}
	c.Set(sessionKey, sess)
	c.Next()
}

func session(c *gin.Context) *auth.Session {
	return c.MustGet(sessionKey).(*auth.Session)
}

type submitPayload struct {
	Kind   string              `json:"kind" binding:"required"`
	Format string              `json:"format" binding:"required"`
	Filter model.FilterRequest `json:"filter"`
}

type jobResponse struct {
	ID               string     `json:"id"`
	Kind             string     `json:"kind"`
	Format           string     `json:"format"`
	Status           string     `json:"status"`
	Progress         int        `json:"progress"`
	ProcessedRecords int64      `json:"processed_records"`
	TotalRecords     int64      `json:"total_records"`
	FileSize         *int64     `json:"file_size,omitempty"`
	Error            *string    `json:"error,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
}

func toJobResponse(job *model.ExportJob) jobResponse {
	return jobResponse{
		ID:               job.ID,
		Kind:             string(job.Kind),
		Format:           string(job.Format),
		Status:           string(job.Status),
		Progress:         job.Progress,
		ProcessedRecords: job.ProcessedRecords,
		TotalRecords:     job.TotalRecords,
		FileSize:         job.FileSize,
		Error:            job.ErrorMessage,
		CreatedAt:        job.CreatedAt,
		StartedAt:        job.StartedAt,
		CompletedAt:      job.CompletedAt,
		ExpiresAt:        job.ExpiresAt,
	}
}

// submit answers small exports inline with the artifact body and large
// ones with 202 and the queued job.
func (h *ExportHandler) submit(c *gin.Context) {
	var payload submitPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		renderError(c, errors.Validation(err.Error(), errors.WithID("handler.export.submit.bad_payload")))
		return
	}

	res, err := h.orchestrator.Submit(c.Request.Context(), session(c), export.SubmitRequest{
		Kind:   model.Kind(payload.Kind),
		Format: model.Format(payload.Format),
		Filter: payload.Filter,
	})
	if err != nil {
		renderError(c, err)
		return
	}

	if res.Artifact != nil {
		c.Header("Content-Disposition", `attachment; filename="`+res.Artifact.FileName+`"`)
		c.Header("X-Export-Records", strconv.FormatInt(res.Artifact.Records, 10))
		c.Data(http.StatusOK, res.Artifact.MIME, res.Artifact.Data)
		return
	}
	c.JSON(http.StatusAccepted, toJobResponse(res.Job))
}

func (h *ExportHandler) status(c *gin.Context) {
	job, err := h.orchestrator.Status(c.Request.Context(), session(c), c.Param("job_id"))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, toJobResponse(job))
}

// state is the cheap poll endpoint backed by the status mirror.
func (h *ExportHandler) state(c *gin.Context) {
	st, err := h.orchestrator.State(c.Request.Context(), session(c), c.Param("job_id"))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": st})
}

func (h *ExportHandler) list(c *gin.Context) {
	limit := intQuery(c, "limit", 20, 100)
	offset := intQuery(c, "offset", 0, 1<<30)

	jobs, err := h.orchestrator.List(c.Request.Context(), session(c), limit, offset)
	if err != nil {
		renderError(c, err)
		return
	}
	out := make([]jobResponse, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, toJobResponse(job))
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}

func (h *ExportHandler) download(c *gin.Context) {
	rc, job, err := h.orchestrator.Download(c.Request.Context(), session(c), c.Param("job_id"))
	if err != nil {
		renderError(c, err)
		return
	}
	defer rc.Close()

	var size int64 = -1
	if job.FileSize != nil {
		size = *job.FileSize
	}
	extraHeaders := map[string]string{
		"Content-Disposition": `attachment; filename="` + job.FileName() + `"`,
	}
	c.DataFromReader(http.StatusOK, size, job.Format.MIME(), rc, extraHeaders)
}

func intQuery(c *gin.Context, name string, def, max int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}

func renderError(c *gin.Context, err error) {
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.StatusCode, appErr)
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"id":     "internal",
		"detail": "internal server error",
	})
}
