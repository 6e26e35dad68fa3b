package http

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/collisionworks/partspipe/internal/batch"
	"github.com/collisionworks/partspipe/internal/bms"
	"github.com/collisionworks/partspipe/internal/errorreport"
	"github.com/collisionworks/partspipe/internal/pipeline"
)

// IntakeLimits bound what the intake endpoints accept before any
// parsing happens.
type IntakeLimits struct {
	MaxDocumentBytes    int64
	AllowedContentTypes []string
}

// ResolutionMirror propagates error report resolutions to the durable
// mirror. May be nil.
type ResolutionMirror interface {
	MarkResolved(reportID, resolvedBy string, resolvedAt time.Time) error
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	pipeline  *pipeline.Service
	batches   *batch.Registry
	batchOpts batch.Options
	reports   *errorreport.Store
	exporter  *errorreport.Exporter
	mirror    ResolutionMirror
	intake    IntakeLimits
	logger    *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	pipelineSvc *pipeline.Service,
	batches *batch.Registry,
	batchOpts batch.Options,
	reports *errorreport.Store,
	exporter *errorreport.Exporter,
	mirror ResolutionMirror,
	intake IntakeLimits,
	logger *zap.Logger,
) *Handlers {
	if intake.MaxDocumentBytes <= 0 {
		intake.MaxDocumentBytes = bms.DefaultMaxDocumentBytes
	}
	if len(intake.AllowedContentTypes) == 0 {
		intake.AllowedContentTypes = []string{"application/xml", "text/xml"}
	}
	return &Handlers{
		pipeline:  pipelineSvc,
		batches:   batches,
		batchOpts: batchOpts,
		reports:   reports,
		exporter:  exporter,
		mirror:    mirror,
		intake:    intake,
		logger:    logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// BatchAcceptedResponse is returned on batch submission
type BatchAcceptedResponse struct {
	BatchID  string `json:"batch_id"`
	Files    int    `json:"files"`
	StatusURL string `json:"status_url"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// SubmitEstimate handles POST /api/v1/estimates. It accepts either a
// raw XML body or a multipart upload with a "file" part. Content type
// and size are checked before any byte is parsed.
func (h *Handlers) SubmitEstimate(c *gin.Context) {
	filename, data, ok := h.readEstimateUpload(c)
	if !ok {
		return
	}

	result, err := h.pipeline.ProcessEstimate(c.Request.Context(), filename, data)
	if err != nil {
		var limitErr *bms.ResourceLimitError
		if errors.As(err, &limitErr) {
			c.JSON(http.StatusRequestEntityTooLarge, Response{
				Success: false,
				Error:   "document exceeds the maximum allowed size",
			})
			return
		}
		c.JSON(http.StatusUnprocessableEntity, Response{
			Success: false,
			Error:   "the document could not be parsed",
		})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// readEstimateUpload extracts the single uploaded document, enforcing
// the content-type and size limits. It writes the error response itself
// and returns ok=false on rejection.
func (h *Handlers) readEstimateUpload(c *gin.Context) (string, []byte, bool) {
	if c.Request.ContentLength > h.intake.MaxDocumentBytes {
		c.JSON(http.StatusRequestEntityTooLarge, Response{
			Success: false,
			Error:   fmt.Sprintf("request exceeds the %d byte limit", h.intake.MaxDocumentBytes),
		})
		return "", nil, false
	}

	contentType := c.ContentType()

	if strings.HasPrefix(contentType, "multipart/") {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, Response{
				Success: false,
				Error:   "multipart upload requires a \"file\" part",
			})
			return "", nil, false
		}
		data, err := h.readPart(fileHeader)
		if err != nil {
			c.JSON(http.StatusBadRequest, Response{
				Success: false,
				Error:   "failed to read uploaded file",
			})
			return "", nil, false
		}
		return fileHeader.Filename, data, true
	}

	if !h.contentTypeAllowed(contentType) {
		c.JSON(http.StatusUnsupportedMediaType, Response{
			Success: false,
			Error:   fmt.Sprintf("unsupported content type %q; expected XML", contentType),
		})
		return "", nil, false
	}

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, h.intake.MaxDocumentBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "failed to read request body",
		})
		return "", nil, false
	}
	if int64(len(data)) > h.intake.MaxDocumentBytes {
		c.JSON(http.StatusRequestEntityTooLarge, Response{
			Success: false,
			Error:   fmt.Sprintf("request exceeds the %d byte limit", h.intake.MaxDocumentBytes),
		})
		return "", nil, false
	}

	return "estimate.xml", data, true
}

func (h *Handlers) contentTypeAllowed(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	for _, allowed := range h.intake.AllowedContentTypes {
		if mediaType == allowed {
			return true
		}
	}
	return false
}

func (h *Handlers) readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, h.intake.MaxDocumentBytes+1))
}

// SubmitBatch handles POST /api/v1/batches: a multipart upload with one
// or more "files" parts. The job starts immediately; the response
// carries the id to poll.
func (h *Handlers) SubmitBatch(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "batch submission must be multipart form data",
		})
		return
	}

	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "batch submission contains no files",
		})
		return
	}

	specs := make([]batch.FileSpec, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		data, err := h.readPart(fh)
		if err != nil {
			c.JSON(http.StatusBadRequest, Response{
				Success: false,
				Error:   fmt.Sprintf("failed to read %q", fh.Filename),
			})
			return
		}
		specs = append(specs, batch.FileSpec{Filename: fh.Filename, Data: data})
	}

	snap, err := h.batches.Submit(specs, h.batchOpts)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, batch.ErrTooManyFiles) {
			status = http.StatusRequestEntityTooLarge
		}
		c.JSON(status, Response{Success: false, Error: err.Error()})
		return
	}

	if _, err := h.batches.Start(snap.ID); err != nil {
		h.logger.Error("Failed to start batch job",
			zap.String("job_id", snap.ID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to start batch job",
		})
		return
	}

	c.JSON(http.StatusAccepted, Response{
		Success: true,
		Data: BatchAcceptedResponse{
			BatchID:   snap.ID,
			Files:     snap.Statistics.TotalFiles,
			StatusURL: "/api/v1/batches/" + snap.ID,
		},
	})
}

// GetBatch handles GET /api/v1/batches/:id
func (h *Handlers) GetBatch(c *gin.Context) {
	snap, err := h.batches.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "batch job not found"})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: snap})
}

// PauseBatch handles POST /api/v1/batches/:id/pause
func (h *Handlers) PauseBatch(c *gin.Context) {
	h.control(c, h.batches.Pause)
}

// ResumeBatch handles POST /api/v1/batches/:id/resume
func (h *Handlers) ResumeBatch(c *gin.Context) {
	h.control(c, h.batches.Resume)
}

// CancelBatch handles POST /api/v1/batches/:id/cancel
func (h *Handlers) CancelBatch(c *gin.Context) {
	h.control(c, h.batches.Cancel)
}

func (h *Handlers) control(c *gin.Context, fn func(id string) (batch.Snapshot, error)) {
	snap, err := fn(c.Param("id"))
	switch {
	case errors.Is(err, batch.ErrJobNotFound):
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "batch job not found"})
	case errors.Is(err, batch.ErrInvalidControl):
		c.JSON(http.StatusConflict, Response{Success: false, Error: err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "batch control failed"})
	default:
		c.JSON(http.StatusOK, Response{Success: true, Data: snap})
	}
}

// ErrorListResponse wraps a page of error reports
type ErrorListResponse struct {
	Reports  []errorreport.Report `json:"reports"`
	Total    int                  `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
}

// ListErrors handles GET /api/v1/errors
func (h *Handlers) ListErrors(c *gin.Context) {
	filter, ok := h.parseFilter(c)
	if !ok {
		return
	}

	reports, total := h.reports.List(filter)
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: ErrorListResponse{
			Reports:  reports,
			Total:    total,
			Page:     page,
			PageSize: pageSize,
		},
	})
}

// ErrorStats handles GET /api/v1/errors/stats
func (h *Handlers) ErrorStats(c *gin.Context) {
	c.JSON(http.StatusOK, Response{Success: true, Data: h.reports.Stats()})
}

// ResolveRequest is the body of a resolve call
type ResolveRequest struct {
	ResolvedBy string `json:"resolved_by" binding:"required"`
}

// ResolveError handles POST /api/v1/errors/:id/resolve
func (h *Handlers) ResolveError(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "resolved_by is required",
		})
		return
	}

	report, err := h.reports.Resolve(c.Param("id"), req.ResolvedBy)
	if err != nil {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "error report not found"})
		return
	}

	if h.mirror != nil && report.ResolvedAt != nil {
		if err := h.mirror.MarkResolved(report.ID, report.ResolvedBy, *report.ResolvedAt); err != nil {
			h.logger.Warn("Failed to mirror report resolution",
				zap.String("report_id", report.ID),
				zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: report})
}

// ExportErrors handles GET /api/v1/errors/export
func (h *Handlers) ExportErrors(c *gin.Context) {
	filter, ok := h.parseFilter(c)
	if !ok {
		return
	}
	// Export is unpaginated; the filter bounds the rows instead.
	filter.Page = 1
	filter.PageSize = 1 << 20

	reports, _ := h.reports.List(filter)
	data, err := h.exporter.ExportXLSX(reports)
	if err != nil {
		h.logger.Error("Failed to export error reports", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "export failed",
		})
		return
	}

	filename := fmt.Sprintf("error-reports-%s.xlsx", time.Now().Format("20060102-150405"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func (h *Handlers) parseFilter(c *gin.Context) (errorreport.Filter, bool) {
	filter := errorreport.Filter{
		Category: errorreport.Category(c.Query("category")),
		Severity: errorreport.Severity(c.Query("severity")),
	}

	if v := c.Query("resolved"); v != "" {
		resolved, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, Response{
				Success: false,
				Error:   "resolved must be true or false",
			})
			return errorreport.Filter{}, false
		}
		filter.Resolved = &resolved
	}

	if v := c.Query("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			c.JSON(http.StatusBadRequest, Response{
				Success: false,
				Error:   "page must be a positive integer",
			})
			return errorreport.Filter{}, false
		}
		filter.Page = page
	}
	if v := c.Query("page_size"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size < 1 {
			c.JSON(http.StatusBadRequest, Response{
				Success: false,
				Error:   "page_size must be a positive integer",
			})
			return errorreport.Filter{}, false
		}
		filter.PageSize = size
	}

	return filter, true
}
