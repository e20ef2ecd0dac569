package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/internal/cache"
	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/internal/chart"
	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/internal/dashboard"
	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/internal/document"
	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/internal/llm"
	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/internal/models"
	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/internal/repository"
	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/internal/vectordb"
	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/pkg/storage"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// DefaultMaxUploadBytes 默认上传大小上限
const DefaultMaxUploadBytes = 20 << 20

// UploadResult 上传结果，索引在后台构建
type UploadResult struct {
	SessionID  string     `json:"session_id"`
	UploadID   string     `json:"upload_id"`
	Generation uint64     `json:"generation"`
	FileName   string     `json:"file_name"`
	Sheets     []string   `json:"sheets"`
	TextLength int        `json:"text_length"`
	StorageKey string     `json:"storage_key,omitempty"`
	State      IndexState `json:"state"`
}

// Answer 摘要或问答的回答
// 补全服务失败时Text为空，Diagnostic为可展示的错误文本
type Answer struct {
	SessionID  string       `json:"session_id"`
	Generation uint64       `json:"generation"`
	Mode       string       `json:"mode"`
	Question   string       `json:"question,omitempty"`
	Text       string       `json:"text"`
	Diagnostic string       `json:"diagnostic,omitempty"`
	Passages   []PassageRef `json:"passages,omitempty"`
	Cached     bool         `json:"cached"`
	LatencyMs  int64        `json:"latency_ms"`
}

// DashboardResult 仪表盘查询结果
type DashboardResult struct {
	SessionID       string                     `json:"session_id"`
	Generation      uint64                     `json:"generation"`
	Query           string                     `json:"query"`
	Raw             string                     `json:"raw,omitempty"`
	Code            string                     `json:"code"`
	Table           string                     `json:"table"`
	Explanation     string                     `json:"explanation"`
	TableHTML       string                     `json:"table_html"`
	ExplanationHTML string                     `json:"explanation_html"`
	Warnings        []dashboard.GrammarWarning `json:"warnings"`
	Figures         []chart.Figure             `json:"figures,omitempty"`
	ChartError      string                     `json:"chart_error,omitempty"`
	Diagnostic      string                     `json:"diagnostic,omitempty"`
	Passages        []PassageRef               `json:"passages,omitempty"`
	LatencyMs       int64                      `json:"latency_ms"`
}

// InsightService 竞品洞察服务
// 负责上传、索引、检索、提示词组装和补全调用的整条流水线
type InsightService struct {
	sessions  *SessionManager
	builder   *IndexBuilder
	retriever *Retriever
	llm       llm.Client
	prompts   *llm.PromptBuilder

	normalizerOpts []document.NormalizerOption
	cache          cache.Cache
	cacheTTL       time.Duration
	history        repository.HistoryRepository
	storage        storage.Storage
	charts         chart.Executor
	maxUploadBytes int64
	logger         *logrus.Logger
}

// InsightOption 服务配置选项
type InsightOption func(*InsightService)

// WithAnswerCache 设置回答缓存
func WithAnswerCache(c cache.Cache, ttl time.Duration) InsightOption {
	return func(s *InsightService) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// WithHistory 设置历史仓储
func WithHistory(repo repository.HistoryRepository) InsightOption {
	return func(s *InsightService) {
		s.history = repo
	}
}

// WithStorage 设置工作簿归档存储
func WithStorage(st storage.Storage) InsightOption {
	return func(s *InsightService) {
		s.storage = st
	}
}

// WithChartExecutor 设置图表执行器
func WithChartExecutor(e chart.Executor) InsightOption {
	return func(s *InsightService) {
		s.charts = e
	}
}

// WithNormalizerOptions 设置表格规范化选项
func WithNormalizerOptions(opts ...document.NormalizerOption) InsightOption {
	return func(s *InsightService) {
		s.normalizerOpts = opts
	}
}

// WithMaxUploadBytes 设置上传大小上限
func WithMaxUploadBytes(n int64) InsightOption {
	return func(s *InsightService) {
		s.maxUploadBytes = n
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) InsightOption {
	return func(s *InsightService) {
		s.logger = logger
	}
}

// NewInsightService 创建洞察服务
func NewInsightService(
	sessions *SessionManager,
	builder *IndexBuilder,
	retriever *Retriever,
	llmClient llm.Client,
	prompts *llm.PromptBuilder,
	opts ...InsightOption,
) *InsightService {
	s := &InsightService{
		sessions:       sessions,
		builder:        builder,
		retriever:      retriever,
		llm:            llmClient,
		prompts:        prompts,
		cacheTTL:       time.Hour,
		charts:         chart.NewExecutor(chart.DefaultConfig(), nil),
		maxUploadBytes: DefaultMaxUploadBytes,
		logger:         logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.prompts == nil {
		s.prompts = llm.NewPromptBuilder(llm.DefaultSummaryLimit)
	}
	return s
}

// Sessions 返回会话管理器
func (s *InsightService) Sessions() *SessionManager {
	return s.sessions
}

// Upload 规范化工作簿并在后台构建新一代索引
// 解析失败时直接返回ParseError，会话中已有的索引保持不变
func (s *InsightService) Upload(ctx context.Context, sessionID, filename string, r io.Reader) (*UploadResult, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	parser, err := document.ParserFactory(filename, s.normalizerOpts...)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxUploadBytes+1))
	if err != nil {
		return nil, document.NewParseError(filename, fmt.Errorf("read upload: %w", err))
	}
	if int64(len(data)) > s.maxUploadBytes {
		return nil, document.NewParseError(filename, fmt.Errorf("workbook exceeds %d bytes", s.maxUploadBytes))
	}

	normalized, err := parser.Normalize(bytes.NewReader(data), filename)
	if err != nil {
		return nil, err
	}

	log := s.logger.WithFields(logrus.Fields{"session_id": sessionID, "file": filename})

	workbook := &Workbook{
		UploadID: uuid.NewString(),
		FileName: filename,
		Sheets:   normalized.Sheets,
		Text:     normalized.Text,
	}

	if s.storage != nil {
		key := storage.WorkbookKey(sessionID, workbook.UploadID, filename)
		if _, err := s.storage.Save(ctx, key, bytes.NewReader(data), int64(len(data))); err != nil {
			log.WithError(err).Warn("Failed to archive workbook")
		} else {
			workbook.StorageKey = key
		}
	}

	generation := sess.Rebuild(ctx, workbook, func(bctx context.Context, gen uint64) (vectordb.Index, error) {
		// 即使构建已被取代也保留上传记录
		s.recordUpload(context.WithoutCancel(bctx), sessionID, gen, workbook, int64(len(data)))

		index, err := s.builder.Build(bctx, workbook.Text)
		if bctx.Err() != nil {
			// 被取代的构建不更新历史
			return index, err
		}
		if err != nil {
			s.updateUpload(bctx, workbook.UploadID, models.UploadStatusFailed, 0, err.Error())
			return nil, err
		}
		s.updateUpload(bctx, workbook.UploadID, models.UploadStatusReady, index.Len(), "")
		return index, nil
	})

	if generation == 0 {
		// 会话在上传期间被删除或过期
		if workbook.StorageKey != "" {
			if err := s.storage.Delete(context.WithoutCancel(ctx), workbook.StorageKey); err != nil {
				log.WithError(err).Warn("Failed to remove archived workbook")
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	log.WithFields(logrus.Fields{
		"generation":  generation,
		"sheets":      len(normalized.Sheets),
		"text_length": utf8.RuneCountInString(normalized.Text),
	}).Info("Workbook uploaded, index build started")

	return &UploadResult{
		SessionID:  sessionID,
		UploadID:   workbook.UploadID,
		Generation: generation,
		FileName:   filename,
		Sheets:     normalized.Sheets,
		TextLength: utf8.RuneCountInString(normalized.Text),
		StorageKey: workbook.StorageKey,
		State:      IndexBuilding,
	}, nil
}

// Summary 基于规范化文本前缀生成摘要，不需要等待索引
func (s *InsightService) Summary(ctx context.Context, sessionID string) (*Answer, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	workbook, generation, err := sess.Workbook()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	answer := &Answer{SessionID: sessionID, Generation: generation, Mode: string(models.QueryModeSummary)}
	key := cache.AnswerKey(answer.Mode, sessionID, generation, "")
	if s.fromCache(ctx, key, answer) {
		answer.LatencyMs = time.Since(start).Milliseconds()
		s.recordQuery(ctx, answer, workbook.UploadID, nil)
		return answer, nil
	}

	s.complete(ctx, s.prompts.Summary(workbook.Text), answer)
	answer.LatencyMs = time.Since(start).Milliseconds()
	s.storeCache(ctx, key, answer)
	s.recordQuery(ctx, answer, workbook.UploadID, nil)
	return answer, nil
}

// Ask 检索相关片段并回答问题
// 补全失败只体现在Answer.Diagnostic中
func (s *InsightService) Ask(ctx context.Context, sessionID, question string) (*Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, NewRetrievalError(ErrCodeEmptyQuery, "question cannot be empty", nil)
	}
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	handle, err := sess.Index(ctx)
	if err != nil {
		return nil, err
	}
	defer handle.Release()

	start := time.Now()
	answer := &Answer{
		SessionID:  sessionID,
		Generation: handle.Generation,
		Mode:       string(models.QueryModeAsk),
		Question:   question,
	}

	key := cache.AnswerKey(answer.Mode, sessionID, handle.Generation, question)
	if s.fromCache(ctx, key, answer) {
		answer.LatencyMs = time.Since(start).Milliseconds()
		s.recordQuery(ctx, answer, handle.Workbook.UploadID, nil)
		return answer, nil
	}

	retrieval, err := s.retriever.Retrieve(ctx, handle.Index, question)
	if err != nil {
		return nil, err
	}
	answer.Passages = retrieval.Passages

	s.complete(ctx, s.prompts.Direct(retrieval.Context, question), answer)
	answer.LatencyMs = time.Since(start).Milliseconds()

	s.logger.WithFields(logrus.Fields{
		"session_id": sessionID,
		"generation": handle.Generation,
		"k":          s.retriever.K(),
		"passages":   len(retrieval.Passages),
		"latency_ms": answer.LatencyMs,
	}).Info("Question answered")

	s.storeCache(ctx, key, answer)
	s.recordQuery(ctx, answer, handle.Workbook.UploadID, nil)
	return answer, nil
}

// Dashboard 生成图表代码、数据表和说明，execute为true时运行图表代码
func (s *InsightService) Dashboard(ctx context.Context, sessionID, query string, execute bool) (*DashboardResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, NewRetrievalError(ErrCodeEmptyQuery, "dashboard query cannot be empty", nil)
	}
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	handle, err := sess.Index(ctx)
	if err != nil {
		return nil, err
	}
	defer handle.Release()

	start := time.Now()
	retrieval, err := s.retriever.Retrieve(ctx, handle.Index, query)
	if err != nil {
		return nil, err
	}

	result := &DashboardResult{
		SessionID:  sessionID,
		Generation: handle.Generation,
		Query:      query,
		Passages:   retrieval.Passages,
	}
	log := s.logger.WithFields(logrus.Fields{"session_id": sessionID, "generation": handle.Generation})

	resp, err := s.llm.Generate(ctx, s.prompts.Dashboard(retrieval.Context, query))
	if err != nil {
		result.Diagnostic = llm.Diagnostic(err)
		log.WithError(err).Warn("Dashboard completion failed")
	} else {
		parsed := dashboard.Parse(resp.Text)
		rendered := dashboard.RenderResult(parsed)
		result.Raw = resp.Text
		result.Code = parsed.Code
		result.Table = parsed.Table
		result.Explanation = parsed.Explanation
		result.TableHTML = rendered.TableHTML
		result.ExplanationHTML = rendered.ExplanationHTML
		result.Warnings = parsed.Warnings

		for _, w := range parsed.Warnings {
			log.WithField("warning", w.Message).Warn("Dashboard response incomplete")
		}

		if execute && parsed.HasCode {
			s.runChart(ctx, handle.Workbook, parsed.Code, result)
		}
	}
	result.LatencyMs = time.Since(start).Milliseconds()

	answer := &Answer{
		SessionID:  sessionID,
		Generation: handle.Generation,
		Mode:       string(models.QueryModeDashboard),
		Question:   query,
		Text:       result.Raw,
		Diagnostic: result.Diagnostic,
		Passages:   result.Passages,
		LatencyMs:  result.LatencyMs,
	}
	s.recordQuery(ctx, answer, handle.Workbook.UploadID, result.Warnings)
	return result, nil
}

// History 会话最近的查询记录
func (s *InsightService) History(ctx context.Context, sessionID string, limit int) ([]*models.Query, error) {
	if s.history == nil {
		return []*models.Query{}, nil
	}
	return s.history.ListQueries(ctx, sessionID, limit)
}

// complete 调用补全服务，失败时写入诊断文本
func (s *InsightService) complete(ctx context.Context, prompt string, answer *Answer) {
	resp, err := s.llm.Generate(ctx, prompt)
	if err != nil {
		answer.Diagnostic = llm.Diagnostic(err)
		s.logger.WithFields(logrus.Fields{
			"session_id": answer.SessionID,
			"mode":       answer.Mode,
		}).WithError(err).Warn("Completion failed")
		return
	}
	answer.Text = resp.Text
}

// runChart 执行图表代码，失败只记录在结果中
func (s *InsightService) runChart(ctx context.Context, workbook *Workbook, code string, result *DashboardResult) {
	var opts []chart.RunOption
	if path, cleanup, err := s.materialize(ctx, workbook); err != nil {
		s.logger.WithError(err).Warn("Workbook unavailable for chart execution")
	} else if path != "" {
		defer cleanup()
		opts = append(opts, chart.WithWorkbook(path))
	}

	out, err := s.charts.Execute(ctx, code, opts...)
	if err != nil {
		var execErr chart.ExecutionError
		if errors.As(err, &execErr) {
			result.ChartError = fmt.Sprintf("❌ Error executing chart code: %s", execErr.Message)
			if output := tailRunes(strings.TrimSpace(execErr.Output), chartOutputLimit); output != "" {
				result.ChartError += "\n" + output
			}
		} else {
			result.ChartError = fmt.Sprintf("❌ Error executing chart code: %v", err)
		}
		return
	}
	result.Figures = out.Figures
}

// chartOutputLimit 回显给用户的解释器输出上限（字符）
const chartOutputLimit = 2000

// tailRunes 保留末尾n个字符，traceback的关键信息在最后
func tailRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return "..." + string(r[len(r)-n:])
}

// materialize 把归档的工作簿写到临时文件供图表代码读取
func (s *InsightService) materialize(ctx context.Context, workbook *Workbook) (string, func(), error) {
	if s.storage == nil || workbook == nil || workbook.StorageKey == "" {
		return "", func() {}, nil
	}

	rc, err := s.storage.Open(ctx, workbook.StorageKey)
	if err != nil {
		return "", nil, err
	}
	defer rc.Close()

	dir, err := os.MkdirTemp("", "workbook-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { os.RemoveAll(dir) }

	path := filepath.Join(dir, "workbook"+filepath.Ext(workbook.StorageKey))
	f, err := os.Create(path)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		cleanup()
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return path, cleanup, nil
}

func (s *InsightService) fromCache(ctx context.Context, key string, answer *Answer) bool {
	if s.cache == nil {
		return false
	}
	cached, found, err := cache.GetJSON[Answer](ctx, s.cache, key)
	if err != nil {
		s.logger.WithError(err).Warn("Answer cache read failed")
		return false
	}
	if !found {
		return false
	}
	answer.Text = cached.Text
	answer.Passages = cached.Passages
	answer.Cached = true
	return true
}

// storeCache 只缓存成功的回答
func (s *InsightService) storeCache(ctx context.Context, key string, answer *Answer) {
	if s.cache == nil || answer.Diagnostic != "" {
		return
	}
	if err := cache.SetJSON(ctx, s.cache, key, answer, s.cacheTTL); err != nil {
		s.logger.WithError(err).Warn("Answer cache write failed")
	}
}

func (s *InsightService) recordUpload(ctx context.Context, sessionID string, generation uint64, workbook *Workbook, size int64) {
	if s.history == nil {
		return
	}
	sheets, _ := json.Marshal(workbook.Sheets)
	upload := &models.Upload{
		ID:         workbook.UploadID,
		SessionID:  sessionID,
		Generation: generation,
		FileName:   workbook.FileName,
		FileSize:   size,
		StorageKey: workbook.StorageKey,
		Sheets:     datatypes.JSON(sheets),
		TextLength: utf8.RuneCountInString(workbook.Text),
		Status:     models.UploadStatusIndexing,
	}
	if err := s.history.CreateUpload(ctx, upload); err != nil {
		s.logger.WithError(err).WithField("upload_id", workbook.UploadID).Warn("Failed to record upload")
	}
}

func (s *InsightService) updateUpload(ctx context.Context, uploadID string, status models.UploadStatus, passages int, errMsg string) {
	if s.history == nil {
		return
	}
	if err := s.history.UpdateUploadStatus(ctx, uploadID, status, passages, errMsg); err != nil {
		s.logger.WithError(err).WithField("upload_id", uploadID).Warn("Failed to update upload status")
	}
}

func (s *InsightService) recordQuery(ctx context.Context, answer *Answer, uploadID string, warnings []dashboard.GrammarWarning) {
	if s.history == nil {
		return
	}
	query := &models.Query{
		SessionID:  answer.SessionID,
		UploadID:   uploadID,
		Generation: answer.Generation,
		Mode:       models.QueryMode(answer.Mode),
		Question:   answer.Question,
		Answer:     answer.Text,
		Diagnostic: answer.Diagnostic,
		Passages:   len(answer.Passages),
		Cached:     answer.Cached,
		LatencyMs:  answer.LatencyMs,
	}
	if len(warnings) > 0 {
		raw, _ := json.Marshal(warnings)
		query.Warnings = datatypes.JSON(raw)
	}
	if err := s.history.RecordQuery(ctx, query); err != nil {
		s.logger.WithError(err).WithField("session_id", answer.SessionID).Warn("Failed to record query")
	}
}
