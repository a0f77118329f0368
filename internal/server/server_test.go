package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tareqmamari/loglens/internal/agent"
	"github.com/tareqmamari/loglens/internal/config"
	"github.com/tareqmamari/loglens/internal/health"
	"github.com/tareqmamari/loglens/internal/metrics"
	"github.com/tareqmamari/loglens/internal/orchestrator"
	"github.com/tareqmamari/loglens/internal/query"
	"github.com/tareqmamari/loglens/internal/store"
	"github.com/tareqmamari/loglens/internal/tools"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, a agent.Agent) *Server {
	t.Helper()
	cfg := config.Default()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg, zap.NewNop())
	mock := clock.NewMock()
	mock.Set(testNow)

	st := store.NewDemoStore(testNow)
	svc := query.NewService(st, cfg, zap.NewNop(), m, mock)
	surface := tools.NewSurface(svc, zap.NewNop(), m)

	return New(Options{
		Config:       cfg,
		Logger:       zap.NewNop(),
		Metrics:      m,
		Gatherer:     reg,
		Orchestrator: orchestrator.New(a, surface, svc, cfg, zap.NewNop(), m, mock),
		Service:      svc,
		Surface:      surface,
		Checker:      health.New(st, nil, zap.NewNop()),
		Version:      "test",
	})
}

// fetchingAgent discovers the worker collection and samples it.
var fetchingAgent = agent.Func(func(ctx context.Context, req agent.Request) (*agent.Result, error) {
	res := &agent.Result{Text: "The worker logged three events."}
	for _, c := range []agent.Call{
		{Name: tools.SearchCollectionsName, Args: json.RawMessage(`{"pattern":"worker"}`)},
		{Name: tools.FetchSamplesName, Args: json.RawMessage(`{"collectionName":"/app/prod/worker"}`)},
	} {
		inv, _ := req.Surface.Invoke(ctx, c.Name, c.Args)
		res.Calls = append(res.Calls, c)
		res.Results = append(res.Results, inv)
	}
	return res, nil
})

func postChat(t *testing.T, srv *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/chat", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestChatStreamsNDJSON(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t, fetchingAgent).Handler())
	defer srv.Close()

	resp := postChat(t, srv, `{"message":"what happened in the worker?"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))

	var frames []map[string]interface{}
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		var frame map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &frame), scanner.Text())
		frames = append(frames, frame)
	}
	require.NoError(t, scanner.Err())

	// 2 calls, 2 results, result echo, terminal result.
	require.Len(t, frames, 6)
	for i, f := range frames[:5] {
		assert.Equal(t, "step", f["type"])
		step := f["step"].(map[string]interface{})
		assert.Equal(t, float64(i), step["step"])
	}

	last := frames[5]
	assert.Equal(t, "result", last["type"])
	result := last["result"].(map[string]interface{})
	assert.Equal(t, "The worker logged three events.", result["summary"])
	assert.Len(t, result["logs"], 3)
	assert.Equal(t, []interface{}{}, result["insights"])
	assert.Equal(t, []interface{}{}, result["chainOfThought"])
}

func TestChatRejectsBadRequests(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t, fetchingAgent).Handler())
	defer srv.Close()

	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"empty message", `{"message":""}`, "message is required"},
		{"blank message", `{"message":"   "}`, "message is required"},
		{"missing message", `{}`, "message is required"},
		{"malformed json", `{"message":`, "invalid request body"},
		{"wrong type", `{"message":42}`, "invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postChat(t, srv, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

			var body errorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Contains(t, body.Error, tt.wantMsg)
		})
	}
}

func TestChatMethodNotAllowed(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t, fetchingAgent).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/chat")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, http.MethodPost, resp.Header.Get("Allow"))
}

func TestMetricsAndHealthRoutes(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t, fetchingAgent).Handler())
	defer srv.Close()

	resp := postChat(t, srv, `{"message":"worker"}`)
	_, _ = io.Copy(io.Discard, resp.Body)

	metricsResp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer metricsResp.Body.Close()
	body, err := io.ReadAll(metricsResp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "loglens_turns_total")
	assert.Contains(t, string(body), "loglens_tool_calls_total")

	healthResp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer healthResp.Body.Close()
	assert.Equal(t, http.StatusOK, healthResp.StatusCode)
}

func TestMetricsRouteDisabled(t *testing.T) {
	s := newTestServer(t, fetchingAgent)
	s.config.MetricsEndpoint = false
	s = New(Options{
		Config:       s.config,
		Logger:       zap.NewNop(),
		Orchestrator: s.orchestrator,
		Service:      s.svc,
		Surface:      s.surface,
		Checker:      health.New(store.NewMemoryStore(), nil, zap.NewNop()),
	})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// deadlineRecorder records the write deadline set through
// http.ResponseController.
type deadlineRecorder struct {
	*httptest.ResponseRecorder
	deadline time.Time
}

func (d *deadlineRecorder) SetWriteDeadline(t time.Time) error {
	d.deadline = t
	return nil
}

func TestChatSetsWriteDeadline(t *testing.T) {
	s := newTestServer(t, fetchingAgent)
	rec := &deadlineRecorder{ResponseRecorder: httptest.NewRecorder()}

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"worker"}`))
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.WithinDuration(t, time.Now().Add(s.config.TurnTimeout+chatWriteSlack), rec.deadline, 5*time.Second)
}

func TestHTTPServerHasNoWriteTimeout(t *testing.T) {
	s := newTestServer(t, fetchingAgent)
	httpServer := s.newHTTPServer()

	assert.Zero(t, httpServer.WriteTimeout)
	assert.Equal(t, s.config.HTTPAddr, httpServer.Addr)
}

func connectMCP(t *testing.T, s *Server) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	clientTransport, serverTransport := mcp.NewInMemoryTransports()

	serverSession, err := s.mcpServer.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func TestMCPToolsAndPrompts(t *testing.T) {
	s := newTestServer(t, fetchingAgent)
	session := connectMCP(t, s)
	ctx := context.Background()

	list, err := session.ListTools(ctx, &mcp.ListToolsParams{})
	require.NoError(t, err)
	var names []string
	for _, tool := range list.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		tools.ListCollectionsName,
		tools.SearchCollectionsName,
		tools.FetchSamplesName,
		tools.InferStructureName,
		tools.SearchAndAggregateName,
	}, names)

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      tools.SearchCollectionsName,
		Arguments: map[string]interface{}{"pattern": "prod"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Len(t, res.Content, 1)
	text := res.Content[0].(*mcp.TextContent).Text

	var out tools.SearchCollectionsOutput
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	assert.Equal(t, []string{"/app/prod/api", "/app/prod/worker"}, out.Collections)

	res, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      tools.InferStructureName,
		Arguments: map[string]interface{}{"samples": []interface{}{}},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)

	stats := s.metrics.GetStats()
	assert.Equal(t, uint64(1), stats.ToolErrors[tools.InferStructureName])

	prompts, err := session.ListPrompts(ctx, &mcp.ListPromptsParams{})
	require.NoError(t, err)
	assert.Len(t, prompts.Prompts, 3)
}
