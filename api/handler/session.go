package handler

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/api/middleware"
	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/api/model"
	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/internal/document"
	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// multipartOverhead 上传请求中表单边界等额外字节的余量
const multipartOverhead = 1 << 20

// SessionHandler 处理会话相关的API请求
type SessionHandler struct {
	insight        *services.InsightService // 洞察服务
	maxUploadBytes int64                    // 工作簿大小上限
	logger         *logrus.Logger           // 日志记录器
}

// NewSessionHandler 创建会话处理器
func NewSessionHandler(insight *services.InsightService, maxUploadBytes int64) *SessionHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = services.DefaultMaxUploadBytes
	}
	return &SessionHandler{
		insight:        insight,
		maxUploadBytes: maxUploadBytes,
		logger:         middleware.GetLogger(),
	}
}

// CreateSession 创建新会话
// POST /api/sessions
func (h *SessionHandler) CreateSession(c *gin.Context) {
	sess := h.insight.Sessions().Create()
	c.JSON(http.StatusCreated, model.NewSuccessResponse(model.SessionCreatedResponse{
		SessionID: sess.ID,
		CreatedAt: sess.CreatedAt,
	}))
}

// GetSession 查询会话与索引状态
// GET /api/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(sess.Status()))
}

// DeleteSession 删除会话并释放索引
// DELETE /api/sessions/:id
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	var uri model.SessionURI
	if err := c.ShouldBindUri(&uri); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid session id"))
		return
	}
	if err := h.insight.Sessions().Delete(uri.ID); err != nil {
		middleware.HandleError(c, toAppError(err))
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(model.SessionDeleteResponse{Success: true, SessionID: uri.ID}))
}

// UploadWorkbook 上传工作簿，索引在后台构建
// POST /api/sessions/:id/workbook
func (h *SessionHandler) UploadWorkbook(c *gin.Context) {
	var uri model.SessionURI
	if err := c.ShouldBindUri(&uri); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid session id"))
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)

	var req model.WorkbookUploadRequest
	if err := c.ShouldBind(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.HandleError(c, middleware.NewTooLargeError("workbook exceeds the upload size limit"))
			return
		}
		h.logger.WithError(err).Warn("Invalid workbook upload request")
		middleware.HandleError(c, middleware.NewValidationError("a workbook must be sent in the 'file' field"))
		return
	}

	filename := filepath.Base(req.File.Filename)
	if document.DetectContentType(filename) != document.Workbook {
		middleware.HandleError(c, middleware.NewValidationError("unsupported file type, only .xlsx workbooks are accepted"))
		return
	}

	file, err := req.File.Open()
	if err != nil {
		h.logger.WithError(err).WithField("filename", filename).Error("Failed to open uploaded file")
		middleware.HandleError(c, middleware.NewInternalError("failed to open uploaded file"))
		return
	}
	defer file.Close()

	result, err := h.insight.Upload(c.Request.Context(), uri.ID, filename, file)
	if err != nil {
		middleware.HandleError(c, toAppError(err))
		return
	}
	c.JSON(http.StatusAccepted, model.NewSuccessResponse(result))
}

// Summary 生成工作簿摘要
// POST /api/sessions/:id/summary
func (h *SessionHandler) Summary(c *gin.Context) {
	var uri model.SessionURI
	if err := c.ShouldBindUri(&uri); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid session id"))
		return
	}

	answer, err := h.insight.Summary(c.Request.Context(), uri.ID)
	if err != nil {
		middleware.HandleError(c, toAppError(err))
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(answer))
}

// Ask 直接问答
// POST /api/sessions/:id/ask
func (h *SessionHandler) Ask(c *gin.Context) {
	var uri model.SessionURI
	if err := c.ShouldBindUri(&uri); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid session id"))
		return
	}

	var req model.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		middleware.HandleError(c, middleware.NewValidationError("question cannot be empty"))
		return
	}

	answer, err := h.insight.Ask(c.Request.Context(), uri.ID, req.Question)
	if err != nil {
		middleware.HandleError(c, toAppError(err))
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(answer))
}

// Dashboard 生成仪表盘
// POST /api/sessions/:id/dashboard
func (h *SessionHandler) Dashboard(c *gin.Context) {
	var uri model.SessionURI
	if err := c.ShouldBindUri(&uri); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid session id"))
		return
	}

	var req model.DashboardRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		middleware.HandleError(c, middleware.NewValidationError("dashboard query cannot be empty"))
		return
	}

	result, err := h.insight.Dashboard(c.Request.Context(), uri.ID, req.Query, req.Execute)
	if err != nil {
		middleware.HandleError(c, toAppError(err))
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(result))
}

// History 会话最近的查询
// GET /api/sessions/:id/history
func (h *SessionHandler) History(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	var req model.HistoryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("limit must be between 1 and 200"))
		return
	}

	queries, err := h.insight.History(c.Request.Context(), sess.ID, req.GetLimit())
	if err != nil {
		middleware.HandleError(c, toAppError(err))
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(model.HistoryResponse{
		SessionID: sess.ID,
		Total:     len(queries),
		Queries:   model.ConvertToHistory(queries),
	}))
}

// session 解析路径中的会话，失败时已登记错误
func (h *SessionHandler) session(c *gin.Context) (*services.Session, bool) {
	var uri model.SessionURI
	if err := c.ShouldBindUri(&uri); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid session id"))
		return nil, false
	}
	sess, err := h.insight.Sessions().Get(uri.ID)
	if err != nil {
		middleware.HandleError(c, toAppError(err))
		return nil, false
	}
	return sess, true
}
