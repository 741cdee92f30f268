package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/querydesk/api"
	"github.com/BaSui01/querydesk/config"
	"github.com/BaSui01/querydesk/rag"
	"github.com/BaSui01/querydesk/router"
	"github.com/BaSui01/querydesk/session"
	"github.com/BaSui01/querydesk/testutil"
	"github.com/BaSui01/querydesk/types"
)

// testServer 组装完整处理链：引擎 + 路由器 + 全部 handlers。
type testServer struct {
	mux   *http.ServeMux
	sess  *session.Context
	store *rag.DocumentStore
	index *rag.Index
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	provider := testutil.NewHashEmbedder()

	index := rag.NewIndex(provider.Dimension(), 0.1, nil)
	store := rag.NewDocumentStore(nil)
	sess := session.New(nil)
	engine := rag.NewEngine(
		rag.NewChunker(200, 20, 10, nil, nil),
		provider, index, store, sess, nil,
		rag.EngineConfig{}, nil,
	)

	r := router.New(config.Default().Router, nil)
	orch := router.NewOrchestrator(r, sess, []types.Handler{engine}, nil)

	queryHandler := NewQueryHandler(orch, nil, logger)
	docHandler := NewDocumentHandler(engine, store, nil, logger)
	adminHandler := NewAdminHandler(sess, index, store, orch, logger)
	healthHandler := NewHealthHandler(logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/query", queryHandler.HandleQuery)
	mux.HandleFunc("POST /v1/documents", docHandler.HandleIngest)
	mux.HandleFunc("GET /v1/documents", docHandler.HandleList)
	mux.HandleFunc("DELETE /v1/documents/{id}", docHandler.HandleDelete)
	mux.HandleFunc("GET /v1/documents/{name}/summary", docHandler.HandleSummary)
	mux.HandleFunc("POST /v1/datasets", adminHandler.HandleRegisterDataset)
	mux.HandleFunc("GET /v1/status", adminHandler.HandleStatus)
	mux.HandleFunc("POST /v1/clear", adminHandler.HandleClear)
	mux.HandleFunc("GET /healthz", healthHandler.HandleHealthz)

	return &testServer{mux: mux, sess: sess, store: store, index: index}
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func (ts *testServer) do(t *testing.T, method, path string, body io.Reader) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

const reportBody = `Quarterly Business Report

Revenue grew by twelve percent due to strong demand in the second quarter.
Operating costs remained flat compared to the previous quarter.`

func ingestReport(t *testing.T, ts *testServer) api.IngestDocumentResponse {
	t.Helper()
	rec, resp := ts.do(t, http.MethodPost, "/v1/documents",
		jsonBody(t, api.IngestDocumentRequest{Name: "report.txt", Text: reportBody}))
	require.Equal(t, http.StatusOK, rec.Code)

	var out api.IngestDocumentResponse
	remarshal(t, resp.Data, &out)
	return out
}

// remarshal 将 envelope 中的 any 数据解回具体类型
func remarshal(t *testing.T, data any, dst any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, dst))
}

func TestIngestDocumentEndpoint(t *testing.T) {
	ts := newTestServer(t)
	out := ingestReport(t, ts)

	assert.NotEmpty(t, out.ID)
	assert.Equal(t, "report.txt", out.Name)
	assert.Equal(t, "Quarterly Business Report", out.Title)
	assert.Positive(t, out.ChunkCount)
	assert.False(t, out.Warning)
}

func TestIngestDocumentValidation(t *testing.T) {
	ts := newTestServer(t)

	rec, resp := ts.do(t, http.MethodPost, "/v1/documents",
		jsonBody(t, api.IngestDocumentRequest{Name: "", Text: "content"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(types.ErrInvalidRequest), resp.Error.Code)

	rec, resp = ts.do(t, http.MethodPost, "/v1/documents",
		jsonBody(t, api.IngestDocumentRequest{Name: "x.txt", Text: "  "}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(types.ErrInvalidDocument), resp.Error.Code)
}

func TestQueryEndpointResearch(t *testing.T) {
	ts := newTestServer(t)
	ingestReport(t, ts)

	rec, resp := ts.do(t, http.MethodPost, "/v1/query",
		jsonBody(t, api.QueryRequest{Text: "explain why revenue grew this quarter in the document"}))
	require.Equal(t, http.StatusOK, rec.Code)

	var result types.Result
	remarshal(t, resp.Data, &result)
	assert.Equal(t, types.HandlerResearch, result.Decision.Handler)
	require.NotNil(t, result.Answer)
	assert.NotEmpty(t, result.Answer.Passages)
}

func TestQueryEndpointAmbiguousWithoutSources(t *testing.T) {
	ts := newTestServer(t)

	rec, resp := ts.do(t, http.MethodPost, "/v1/query",
		jsonBody(t, api.QueryRequest{Text: "plot a bar chart of sales"}))
	require.Equal(t, http.StatusOK, rec.Code)

	var result types.Result
	remarshal(t, resp.Data, &result)
	assert.Equal(t, types.HandlerAmbiguous, result.Decision.Handler)
	require.NotNil(t, result.Disambiguation)
}

func TestQueryEndpointValidation(t *testing.T) {
	ts := newTestServer(t)

	rec, resp := ts.do(t, http.MethodPost, "/v1/query",
		jsonBody(t, api.QueryRequest{Text: ""}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(types.ErrInvalidRequest), resp.Error.Code)
}

func TestQueryEndpointTabularUnavailable(t *testing.T) {
	ts := newTestServer(t)
	// 注册数据集但没有 tabular 处理器
	rec, _ := ts.do(t, http.MethodPost, "/v1/datasets",
		jsonBody(t, api.RegisterDatasetRequest{Name: "sales.csv"}))
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp := ts.do(t, http.MethodPost, "/v1/query",
		jsonBody(t, api.QueryRequest{Text: "plot a bar chart of sales"}))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, string(types.ErrHandlerUnavailable), resp.Error.Code)
}

func TestDocumentListAndDelete(t *testing.T) {
	ts := newTestServer(t)
	out := ingestReport(t, ts)

	rec, resp := ts.do(t, http.MethodGet, "/v1/documents", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var infos []api.DocumentInfo
	remarshal(t, resp.Data, &infos)
	require.Len(t, infos, 1)
	assert.Equal(t, out.ID, infos[0].ID)

	rec, _ = ts.do(t, http.MethodDelete, "/v1/documents/"+out.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, ts.store.Count())
	assert.Equal(t, 0, ts.index.Size())
}

func TestDocumentSummaryEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ingestReport(t, ts)

	rec, resp := ts.do(t, http.MethodGet, "/v1/documents/report.txt/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var summary types.DocumentSummary
	remarshal(t, resp.Data, &summary)
	assert.Equal(t, "report.txt", summary.DocumentName)
	assert.NotEmpty(t, summary.Summary)

	rec, resp = ts.do(t, http.MethodGet, "/v1/documents/missing.txt/summary", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(types.ErrDocumentNotFound), resp.Error.Code)
}

func TestStatusAndClearEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ingestReport(t, ts)
	ts.do(t, http.MethodPost, "/v1/datasets",
		jsonBody(t, api.RegisterDatasetRequest{Name: "sales.csv"}))

	rec, resp := ts.do(t, http.MethodGet, "/v1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status api.StatusResponse
	remarshal(t, resp.Data, &status)
	assert.Equal(t, []string{"sales.csv"}, status.Datasets)
	assert.Equal(t, []string{"report.txt"}, status.Documents)
	assert.Equal(t, 1, status.DocumentCount)
	assert.Positive(t, status.IndexSize)

	rec, _ = ts.do(t, http.MethodPost, "/v1/clear", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, ts.store.Count())
	assert.Equal(t, 0, ts.index.Size())
	assert.True(t, ts.sess.Snapshot().Empty())
}

func TestHealthzEndpoint(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
}
