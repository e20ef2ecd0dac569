package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/api/handler"
	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/api/middleware"
	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/internal/document"
	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/internal/embedding"
	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/internal/llm"
	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// envelope 解码统一响应，Data保持原始JSON
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Details string          `json:"details"`
	Data    json.RawMessage `json:"data"`
	TraceID string          `json:"trace_id"`
}

type testServer struct {
	router *gin.Engine
	llm    *llm.MockClient
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	middleware.GetLogger().SetLevel(logrus.PanicLevel)

	quiet := logrus.New()
	quiet.SetLevel(logrus.PanicLevel)

	embedder, err := embedding.NewHashingClient(embedding.WithDimensions(128))
	require.NoError(t, err)
	splitter, err := document.NewTextSplitter(document.DefaultSplitterConfig())
	require.NoError(t, err)

	sessions := services.NewSessionManager(time.Hour, quiet)
	t.Cleanup(sessions.Close)

	client := llm.NewMockClient(t)
	insight := services.NewInsightService(
		sessions,
		services.NewIndexBuilder(splitter, embedder, services.IndexBuilderConfig{IndexType: "memory"}, quiet),
		services.NewRetriever(embedder, services.DefaultRetrievalK),
		client,
		llm.NewPromptBuilder(llm.DefaultSummaryLimit),
		services.WithLogger(quiet),
	)

	return &testServer{
		router: SetupRouter(handler.NewSessionHandler(insight, 1<<20)),
		llm:    client,
	}
}

func (s *testServer) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func (s *testServer) postJSON(t *testing.T, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return s.do(t, req)
}

func (s *testServer) createSession(t *testing.T) string {
	t.Helper()
	w, env := s.do(t, httptest.NewRequest(http.MethodPost, "/api/sessions", nil))
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.NotEmpty(t, created.SessionID)
	return created.SessionID
}

func (s *testServer) uploadWorkbook(t *testing.T, sessionID, filename string, content []byte) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+sessionID+"/workbook", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return s.do(t, req)
}

func workbookBytes(t *testing.T, rows ...[]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func competitorRows() [][]interface{} {
	return [][]interface{}{
		{"Company", "City", "Revenue"},
		{"Madaen Real Estate", "Riyadh", "Signature: approved"},
		{"Tamimi Group", "Jeddah", "5M revenue"},
	}
}

func TestHealthCheck(t *testing.T) {
	s := setupTestServer(t)
	w, _ := s.do(t, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.TraceIDHeader))
}

func TestSessionLifecycle(t *testing.T) {
	s := setupTestServer(t)
	id := s.createSession(t)

	w, env := s.do(t, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var status services.SessionStatus
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, services.IndexPending, status.State)

	w, _ = s.do(t, httptest.NewRequest(http.MethodDelete, "/api/sessions/"+id, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/"+id, nil)
	req.Header.Set(middleware.TraceIDHeader, "trace-123")
	w, env = s.do(t, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, http.StatusNotFound, env.Code)
	assert.Equal(t, "trace-123", env.TraceID)
	assert.Equal(t, "trace-123", w.Header().Get(middleware.TraceIDHeader))
}

func TestAskBeforeUpload(t *testing.T) {
	s := setupTestServer(t)
	id := s.createSession(t)

	w, env := s.postJSON(t, "/api/sessions/"+id+"/ask", map[string]string{"question": "Who is in Jeddah?"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, env.Message, "upload a workbook")

	w, _ = s.do(t, httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/summary", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUploadValidation(t *testing.T) {
	s := setupTestServer(t)
	id := s.createSession(t)

	w, _ := s.uploadWorkbook(t, id, "notes.txt", []byte("hello"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := s.uploadWorkbook(t, id, "broken.xlsx", []byte("not a workbook"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Message, "could not be parsed")

	w, _ = s.uploadWorkbook(t, "missing", "book.xlsx", workbookBytes(t, competitorRows()...))
	assert.Equal(t, http.StatusNotFound, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/workbook", nil)
	w, _ = s.do(t, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAskFlow(t *testing.T) {
	s := setupTestServer(t)
	id := s.createSession(t)

	w, env := s.uploadWorkbook(t, id, "competitors.xlsx", workbookBytes(t, competitorRows()...))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var upload services.UploadResult
	require.NoError(t, json.Unmarshal(env.Data, &upload))
	assert.Equal(t, uint64(1), upload.Generation)
	assert.Equal(t, []string{"Sheet1"}, upload.Sheets)

	s.llm.On("Generate", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		return bytes.Contains([]byte(prompt), []byte("Tamimi Group"))
	})).Return(&llm.Response{Text: "Tamimi Group is in Jeddah."}, nil).Once()

	w, env = s.postJSON(t, "/api/sessions/"+id+"/ask", map[string]string{"question": "Who is in Jeddah?"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var answer services.Answer
	require.NoError(t, json.Unmarshal(env.Data, &answer))
	assert.Equal(t, "Tamimi Group is in Jeddah.", answer.Text)
	assert.Equal(t, uint64(1), answer.Generation)

	w, _ = s.postJSON(t, "/api/sessions/"+id+"/ask", map[string]string{"question": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = s.do(t, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var status services.SessionStatus
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, services.IndexReady, status.State)
	assert.Positive(t, status.Passages)
}

func TestAskCompletionFailureIsOK(t *testing.T) {
	s := setupTestServer(t)
	id := s.createSession(t)
	w, _ := s.uploadWorkbook(t, id, "competitors.xlsx", workbookBytes(t, competitorRows()...))
	require.Equal(t, http.StatusAccepted, w.Code)

	s.llm.On("Generate", mock.Anything, mock.Anything).
		Return(nil, llm.NewLLMError(llm.ErrCodeAPIError, "rate limited")).Once()

	w, env := s.postJSON(t, "/api/sessions/"+id+"/ask", map[string]string{"question": "Who leads?"})
	require.Equal(t, http.StatusOK, w.Code)
	var answer services.Answer
	require.NoError(t, json.Unmarshal(env.Data, &answer))
	assert.Empty(t, answer.Text)
	assert.Contains(t, answer.Diagnostic, "rate limited")
}

func TestEmptyWorkbookIsUnprocessable(t *testing.T) {
	s := setupTestServer(t)
	id := s.createSession(t)
	w, _ := s.uploadWorkbook(t, id, "legal.xlsx", workbookBytes(t, []interface{}{"Signature", "________"}))
	require.Equal(t, http.StatusAccepted, w.Code)

	w, _ = s.postJSON(t, "/api/sessions/"+id+"/ask", map[string]string{"question": "anything?"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestDashboardEndpoint(t *testing.T) {
	s := setupTestServer(t)
	id := s.createSession(t)
	w, _ := s.uploadWorkbook(t, id, "competitors.xlsx", workbookBytes(t, competitorRows()...))
	require.Equal(t, http.StatusAccepted, w.Code)

	reply := "```python\nplt.bar(['TG'], [5])\n```\n\n| Company | Revenue |\n|---|---|\n| TG | 5M |\n"
	s.llm.On("Generate", mock.Anything, mock.Anything).Return(&llm.Response{Text: reply}, nil).Once()

	w, env := s.postJSON(t, "/api/sessions/"+id+"/dashboard", map[string]interface{}{"query": "plot revenue"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result services.DashboardResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, "plt.bar(['TG'], [5])\n", result.Code)
	assert.Contains(t, result.TableHTML, "<table>")
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, 3002, result.Warnings[0].Code)

	w, _ = s.postJSON(t, "/api/sessions/"+id+"/dashboard", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHistoryEndpoint(t *testing.T) {
	s := setupTestServer(t)
	id := s.createSession(t)

	w, env := s.do(t, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id+"/history?limit=5", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var history struct {
		SessionID string        `json:"session_id"`
		Total     int           `json:"total"`
		Queries   []interface{} `json:"queries"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &history))
	assert.Equal(t, id, history.SessionID)
	assert.Equal(t, 0, history.Total)

	w, _ = s.do(t, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id+"/history?limit=1000", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
