package http

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/tradeflow/internal/application/lifecycle"
	"github.com/garyjia/tradeflow/internal/application/permission"
	"github.com/garyjia/tradeflow/internal/application/port"
	"github.com/garyjia/tradeflow/internal/application/service"
	"github.com/garyjia/tradeflow/internal/domain/workflow"
	"github.com/garyjia/tradeflow/internal/infrastructure/importer"
	"github.com/garyjia/tradeflow/pkg/utils"
)

// UserHeader carries the acting user when the body does not name one
const UserHeader = "X-User-ID"

// Import formats accepted by POST /api/admin/templates/import
const (
	FormatYAML = "yaml"
	FormatXLSX = "xlsx"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	workflow service.WorkflowService
	admin    service.AdminService
	health   HealthChecker
	loaders  map[string]port.TemplateLoader
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	workflowService service.WorkflowService,
	adminService service.AdminService,
	health HealthChecker,
	loaders map[string]port.TemplateLoader,
	logger Logger,
) *Handlers {
	return &Handlers{
		workflow: workflowService,
		admin:    adminService,
		health:   health,
		loaders:  loaders,
		logger:   logger,
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
	Status     string            `json:"status"`
	Timestamp  string            `json:"timestamp"`
	Version    string            `json:"version"`
	Components map[string]string `json:"components,omitempty"`
}

// SubmitRequest is the body of a pane submission
type SubmitRequest struct {
	Data map[string]interface{} `json:"data"`
}

// RejectRequest is the body of a rejection
type RejectRequest struct {
	Reason string `json:"reason"`
}

// ListTransactionsRequest represents query parameters for listing transactions
type ListTransactionsRequest struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}
	if h.health != nil {
		response.Components = h.health(c.Request.Context())
		for _, state := range response.Components {
			if state != "ok" {
				response.Status = "degraded"
			}
		}
	}

	status := http.StatusOK
	if response.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, Response{
		Success: status == http.StatusOK,
		Data:    response,
	})
}

// Resolve handles POST /api/resolve
func (h *Handlers) Resolve(c *gin.Context) {
	var req service.ResolveInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}
	if req.UserID == "" {
		req.UserID = c.GetHeader(UserHeader)
	}

	res, err := h.workflow.Resolve(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, "Resolve", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    res,
	})
}

// StageFields handles GET /api/stages/:id/fields
func (h *Handlers) StageFields(c *gin.Context) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		h.badRequest(c, "invalid stage ID", err)
		return
	}

	fields, err := h.workflow.StageFields(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "StageFields", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    fields,
	})
}

// OpenSession handles POST /api/sessions
func (h *Handlers) OpenSession(c *gin.Context) {
	var req service.OpenInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}
	if req.UserID == "" {
		req.UserID = c.GetHeader(UserHeader)
	}

	view, err := h.workflow.OpenSession(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, "OpenSession", err)
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    view,
	})
}

// GetSession handles GET /api/sessions/:id
func (h *Handlers) GetSession(c *gin.Context) {
	view, err := h.workflow.GetSession(c.Param("id"))
	if err != nil {
		h.writeError(c, "GetSession", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    view,
	})
}

// SubmitPane handles POST /api/sessions/:id/submit. Session writes are
// accepted only from the user named in the X-User-ID header who opened it.
func (h *Handlers) SubmitPane(c *gin.Context) {
	var req SubmitRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, "invalid request body", err)
			return
		}
	}

	result, err := h.workflow.SubmitPane(c.Request.Context(), c.Param("id"), c.GetHeader(UserHeader), req.Data)
	if err != nil {
		h.writeError(c, "SubmitPane", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    result,
	})
}

// RejectSession handles POST /api/sessions/:id/reject
func (h *Handlers) RejectSession(c *gin.Context) {
	var req RejectRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, "invalid request body", err)
			return
		}
	}

	result, err := h.workflow.RejectSession(c.Request.Context(), c.Param("id"), c.GetHeader(UserHeader), utils.SanitizeString(req.Reason))
	if err != nil {
		h.writeError(c, "RejectSession", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    result,
	})
}

// DiscardSession handles POST /api/sessions/:id/discard
func (h *Handlers) DiscardSession(c *gin.Context) {
	view, err := h.workflow.DiscardSession(c.Request.Context(), c.Param("id"), c.GetHeader(UserHeader))
	if err != nil {
		h.writeError(c, "DiscardSession", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    view,
	})
}

// CloseSession handles DELETE /api/sessions/:id
func (h *Handlers) CloseSession(c *gin.Context) {
	if err := h.workflow.CloseSession(c.Param("id"), c.GetHeader(UserHeader)); err != nil {
		h.writeError(c, "CloseSession", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// UpsertPermissions handles PUT /api/admin/permissions/:user_id.
// The body has the shape returned by the permission RPC.
func (h *Handlers) UpsertPermissions(c *gin.Context) {
	var payload map[string]interface{}
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	snapshot, err := h.admin.UpsertPermissions(c.Request.Context(), c.Param("user_id"), payload)
	if err != nil {
		h.writeError(c, "UpsertPermissions", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    snapshot,
	})
}

// GetPermissions handles GET /api/admin/permissions/:user_id
func (h *Handlers) GetPermissions(c *gin.Context) {
	view, err := h.admin.GetPermissions(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		h.writeError(c, "GetPermissions", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    view,
	})
}

// ImportTemplates handles POST /api/admin/templates/import. The document is
// either the raw body or a multipart "file" part; the format comes from the
// "format" query, the file extension or the content type.
func (h *Handlers) ImportTemplates(c *gin.Context) {
	body, filename, err := importBody(c)
	if err != nil {
		h.badRequest(c, "missing import file", err)
		return
	}
	defer body.Close()

	format := importFormat(c.Query("format"), filename, c.ContentType())
	loader, ok := h.loaders[format]
	if !ok {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "unsupported import format: " + format,
		})
		return
	}

	result, err := h.admin.ImportTemplates(c.Request.Context(), loader, body)
	if err != nil {
		h.writeError(c, "ImportTemplates", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    result,
	})
}

// ListTemplates handles GET /api/admin/templates
func (h *Handlers) ListTemplates(c *gin.Context) {
	templates, err := h.admin.ListTemplates(c.Request.Context())
	if err != nil {
		h.writeError(c, "ListTemplates", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    templates,
	})
}

// ListTransactions handles GET /api/admin/transactions
func (h *Handlers) ListTransactions(c *gin.Context) {
	var req ListTransactionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.badRequest(c, "invalid query parameters", err)
		return
	}

	records, err := h.admin.ListTransactions(c.Request.Context(), req.Limit, req.Offset)
	if err != nil {
		h.writeError(c, "ListTransactions", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    records,
	})
}

// GetTransaction handles GET /api/admin/transactions/:ref
func (h *Handlers) GetTransaction(c *gin.Context) {
	ref := c.Param("ref")
	if err := utils.ValidateTransactionRef(ref); err != nil {
		h.badRequest(c, err.Error(), err)
		return
	}

	view, err := h.admin.GetTransaction(c.Request.Context(), ref)
	if err != nil {
		h.writeError(c, "GetTransaction", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    view,
	})
}

func (h *Handlers) badRequest(c *gin.Context, msg string, err error) {
	h.logger.Error("Bad request", "path", c.Request.URL.Path, "message", msg, "error", err)
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error:   msg,
	})
}

// writeError maps service errors onto status codes. Only unexpected
// failures are logged; the rest are ordinary client outcomes.
func (h *Handlers) writeError(c *gin.Context, op string, err error) {
	status, msg := statusOf(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", "error", err)
	}

	resp := Response{Success: false, Error: msg}
	var noStage *service.NoStageError
	if errors.As(err, &noStage) {
		resp.Data = gin.H{"outcome": noStage.Outcome}
	}
	c.JSON(status, resp)
}

func statusOf(err error) (int, string) {
	var noStage *service.NoStageError
	switch {
	case errors.As(err, &noStage):
		return http.StatusConflict, noStage.Message
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrTransactionNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, permission.ErrInvalidPayload),
		errors.Is(err, importer.ErrInvalidDefinition):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrSessionForbidden),
		errors.Is(err, lifecycle.ErrStageNotAccessible):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, permission.ErrNotLoaded):
		return http.StatusServiceUnavailable, permission.ErrNotLoaded.Error()
	case errors.Is(err, lifecycle.ErrSessionComplete),
		errors.Is(err, lifecycle.ErrSessionReleased),
		errors.Is(err, lifecycle.ErrStageNotRejectable),
		errors.Is(err, lifecycle.ErrStageNotInTemplate),
		errors.Is(err, lifecycle.ErrNoStage),
		errors.Is(err, workflow.ErrInvalidTransition):
		return http.StatusConflict, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func importBody(c *gin.Context) (io.ReadCloser, string, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		return c.Request.Body, "", nil
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return nil, "", err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "", err
	}
	return f, fh.Filename, nil
}

func importFormat(query, filename, contentType string) string {
	if query != "" {
		return normalizeFormat(query)
	}
	if ext := strings.TrimPrefix(filepath.Ext(filename), "."); ext != "" {
		return normalizeFormat(ext)
	}

	switch contentType {
	case "application/yaml", "application/x-yaml", "text/yaml", "text/x-yaml":
		return FormatYAML
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return FormatXLSX
	}
	return ""
}

func normalizeFormat(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "yml" {
		return FormatYAML
	}
	return format
}
