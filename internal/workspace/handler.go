package workspace

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"cv-assistant/internal/advisor"
	"cv-assistant/internal/editor"
	"cv-assistant/internal/intake"
	"cv-assistant/internal/llm"
	"cv-assistant/internal/records"
	"cv-assistant/internal/shared/server/middleware"
	"cv-assistant/internal/shared/server/respond"
	"cv-assistant/internal/shared/telemetry"
	"cv-assistant/internal/shared/util"
)

const (
	maxUploadSize  = 25 << 20
	maxUploadFiles = 10
	workspaceKey   = "workspace"
)

// Handler wires HTTP handlers to workspaces.
type Handler struct {
	Manager *Manager
}

// NewHandler constructs a Handler.
func NewHandler(m *Manager) *Handler {
	return &Handler{Manager: m}
}

// RegisterRoutes attaches workspace routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.Use(h.resolve)

	rg.POST("/records/upload", h.upload)
	rg.GET("/records", h.list)
	rg.GET("/records/active", h.active)
	rg.PUT("/records/active/view", h.putView)
	rg.POST("/records/active/rows", h.addRow)
	rg.PATCH("/records/active/rows/:section/:row", h.setField)
	rg.DELETE("/records/active/rows/:section/:row", h.deleteRow)
	rg.POST("/records/switch", h.switchRecord)
	rg.POST("/records/submit", h.submit)
	rg.POST("/records/remove", h.removeRecord)
	rg.GET("/submitted", h.submitted)
	rg.DELETE("/submitted/:name", h.deleteSubmitted)

	rg.POST("/chat", h.chat)
	rg.GET("/chat/transcript", h.transcript)

	rg.GET("/rules", h.rules)
	rg.PUT("/rules", h.putRules)
	rg.POST("/recommendations", h.recommend)
	rg.GET("/recommendations", h.recommendations)
}

func (h *Handler) resolve(c *gin.Context) {
	ws, err := h.Manager.Get(c.Request.Context(), middleware.OwnerIDFromContext(c))
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal", "unable to open workspace", nil)
		return
	}
	middleware.SetWorkspaceID(c, ws.ID)
	c.Set(workspaceKey, ws)
	c.Next()
}

func workspaceFrom(c *gin.Context) *Workspace {
	return c.MustGet(workspaceKey).(*Workspace)
}

func (h *Handler) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)
	form, err := c.MultipartForm()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "multipart form with files is required", nil)
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "files are required", nil)
		return
	}
	if len(headers) > maxUploadFiles {
		respond.Error(c, http.StatusBadRequest, "validation_error", "too many files", gin.H{"max": maxUploadFiles})
		return
	}

	files := make([]intake.File, 0, len(headers))
	for _, fh := range headers {
		name, err := util.SanitizeFileName(fh.Filename)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid file name", gin.H{"file": fh.Filename})
			return
		}
		f, err := fh.Open()
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", gin.H{"file": name})
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", gin.H{"file": name})
			return
		}
		files = append(files, intake.File{Name: name, MimeType: fh.Header.Get("Content-Type"), Data: data})
	}

	ws := workspaceFrom(c)
	loaded, err := ws.Upload(c.Request.Context(), files)
	if err != nil {
		var dataErr *intake.DataError
		if errors.As(err, &dataErr) {
			respond.Error(c, http.StatusUnprocessableEntity, "data_error", dataErr.Reason, gin.H{
				"file":    dataErr.File,
				"loaded":  loaded,
				"records": ws.Summary(),
			})
			return
		}
		writeError(c, err)
		return
	}
	respond.Created(c, gin.H{"loaded": loaded, "records": ws.Summary()})
}

func (h *Handler) list(c *gin.Context) {
	respond.OK(c, workspaceFrom(c).Summary())
}

func (h *Handler) active(c *gin.Context) {
	view, err := workspaceFrom(c).ActiveView()
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, view)
}

func (h *Handler) putView(c *gin.Context) {
	var view editor.View
	if err := c.ShouldBindJSON(&view); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	ws := workspaceFrom(c)
	if err := ws.SetView(view); err != nil {
		writeError(c, err)
		return
	}
	h.active(c)
}

type addRowRequest struct {
	Section string `json:"section"`
}

func (h *Handler) addRow(c *gin.Context) {
	var req addRowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	kind, err := editor.ParseSection(req.Section)
	if err != nil {
		writeError(c, err)
		return
	}
	row, err := workspaceFrom(c).AddRow(kind)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Created(c, row)
}

type setFieldRequest struct {
	Tag   string `json:"tag"`
	Value string `json:"value"`
}

func (h *Handler) setField(c *gin.Context) {
	kind, err := editor.ParseSection(c.Param("section"))
	if err != nil {
		writeError(c, err)
		return
	}
	row, err := strconv.Atoi(c.Param("row"))
	if err != nil {
		writeError(c, editor.ErrRowOutOfRange)
		return
	}
	var req setFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if err := workspaceFrom(c).SetField(kind, row, req.Tag, req.Value); err != nil {
		writeError(c, err)
		return
	}
	h.active(c)
}

// deleteRow accepts either a row position or a row ID.
func (h *Handler) deleteRow(c *gin.Context) {
	kind, err := editor.ParseSection(c.Param("section"))
	if err != nil {
		writeError(c, err)
		return
	}
	rawRow := c.Param("row")
	row, convErr := strconv.Atoi(rawRow)
	id := ""
	if convErr != nil {
		id = rawRow
	}
	if err := workspaceFrom(c).DeleteRow(kind, row, id); err != nil {
		writeError(c, err)
		return
	}
	h.active(c)
}

type switchRequest struct {
	Index *int `json:"index"`
}

func (h *Handler) switchRecord(c *gin.Context) {
	var req switchRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Index == nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "index is required", nil)
		return
	}
	view, err := workspaceFrom(c).Switch(*req.Index)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, view)
}

type removeRequest struct {
	Name string `json:"name"`
}

func (h *Handler) removeRecord(c *gin.Context) {
	var req removeRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "name is required", nil)
		return
	}
	summary, err := workspaceFrom(c).RemoveRecord(req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, summary)
}

func (h *Handler) submit(c *gin.Context) {
	ws := workspaceFrom(c)
	rec, err := ws.Submit(c.Request.Context(), middleware.RequestIDFromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"record": rec, "submitted": ws.Submitted()})
}

func (h *Handler) submitted(c *gin.Context) {
	respond.OK(c, gin.H{"submitted": workspaceFrom(c).Submitted()})
}

func (h *Handler) deleteSubmitted(c *gin.Context) {
	ws := workspaceFrom(c)
	if err := ws.DeleteSubmitted(c.Request.Context(), c.Param("name")); err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"submitted": ws.Submitted()})
}

type chatRequest struct {
	Prompt string `json:"prompt"`
}

func (h *Handler) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Prompt) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "prompt is required", nil)
		return
	}

	sink := newSSESink(c)
	c.Status(http.StatusOK)
	res, err := workspaceFrom(c).Chat(c.Request.Context(), req.Prompt, sink)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Set("chatOutcome", string(res.Outcome))
	sink.Message(res)
}

func (h *Handler) transcript(c *gin.Context) {
	respond.OK(c, gin.H{"messages": workspaceFrom(c).Transcript()})
}

func (h *Handler) rules(c *gin.Context) {
	respond.OK(c, gin.H{"rules": workspaceFrom(c).Rules()})
}

type rulesRequest struct {
	Rules []string `json:"rules"`
}

func (h *Handler) putRules(c *gin.Context) {
	var req rulesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	rules, err := workspaceFrom(c).SetRules(c.Request.Context(), req.Rules)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"rules": rules})
}

func (h *Handler) recommend(c *gin.Context) {
	recs, err := workspaceFrom(c).Recommend(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"recommendations": recs})
}

// recommendations picks up sets written by the submissions worker before
// answering from the workspace.
func (h *Handler) recommendations(c *gin.Context) {
	ws := workspaceFrom(c)
	if err := ws.RefreshRecommendations(c.Request.Context()); err != nil {
		telemetry.Warn("workspace.recommendations_refresh_failed", map[string]any{
			"workspace_id": ws.ID,
			"error":        err.Error(),
		})
	}
	respond.OK(c, gin.H{"recommendations": ws.Recommendations()})
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, editor.ErrNoActiveRecord):
		respond.Error(c, http.StatusConflict, "no_active_record", err.Error(), nil)
	case errors.Is(err, editor.ErrIndexOutOfRange),
		errors.Is(err, editor.ErrRowOutOfRange),
		errors.Is(err, editor.ErrUnknownSection),
		errors.Is(err, editor.ErrUnknownField),
		errors.Is(err, editor.ErrViewMismatch),
		errors.Is(err, records.ErrInvalidInput),
		errors.Is(err, ErrEmptyPrompt):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, records.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, advisor.ErrNoRecords):
		respond.Error(c, http.StatusConflict, "no_submitted_records", err.Error(), nil)
	case errors.Is(err, ErrIntakeDisabled):
		respond.Error(c, http.StatusServiceUnavailable, "unavailable", err.Error(), nil)
	case errors.Is(err, advisor.ErrInvalidResponse), llm.IsCompletionError(err), errors.Is(err, llm.ErrNotConfigured):
		respond.Error(c, http.StatusBadGateway, "upstream_error", "the language model could not answer", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal", "unexpected error", nil)
	}
}
