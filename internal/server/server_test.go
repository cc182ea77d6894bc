package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ctxagent "mapshock/internal/context"
	"mapshock/internal/orchestrate"
	"mapshock/internal/perception"
	"mapshock/internal/protocol"
	"mapshock/internal/research"
	"mapshock/internal/store"
)

func testServer(t *testing.T) *httptest.Server {
	return testServerWithSessions(t, nil)
}

func testServerWithSessions(t *testing.T, sessions SessionReader) *httptest.Server {
	t.Helper()
	cat, err := protocol.DefaultCatalog()
	require.NoError(t, err)

	engine := protocol.NewEngine(cat, nil)
	agent := research.NewAgent(perception.NewFakeClient(`{"executive_summary": {"key_findings": ["ok"]}}`), cat)
	orch := orchestrate.New(ctxagent.NewEnricher(nil, 0), engine, agent, nil)

	srv := httptest.NewServer(New(":0", cat, orch, sessions).Handler())
	t.Cleanup(srv.Close)
	return srv
}

// fakeSessionReader serves canned history, newest first.
type fakeSessionReader struct {
	sessions []*store.Session
}

func (f *fakeSessionReader) Get(_ context.Context, workflowID string) (*store.Session, error) {
	for _, sess := range f.sessions {
		if sess.WorkflowID == workflowID {
			return sess, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeSessionReader) Recent(_ context.Context, limit int) ([]*store.Session, error) {
	if limit <= 0 || limit > len(f.sessions) {
		limit = len(f.sessions)
	}
	return f.sessions[:limit], nil
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestHealthz(t *testing.T) {
	srv := testServer(t)

	var body struct {
		Status    string `json:"status"`
		Protocols int    `json:"protocols"`
	}
	resp := getJSON(t, srv.URL+"/healthz", &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body.Status)
	assert.Positive(t, body.Protocols)
}

func TestCatalogList(t *testing.T) {
	srv := testServer(t)

	var body struct {
		Protocols   []catalogSummary `json:"protocols"`
		Count       int              `json:"count"`
		Quarantined int              `json:"quarantined"`
	}
	resp := getJSON(t, srv.URL+"/api/v1/catalog", &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, body.Count, len(body.Protocols))
	assert.Zero(t, body.Quarantined)

	ids := make(map[string]bool, len(body.Protocols))
	for _, p := range body.Protocols {
		ids[p.ID] = true
	}
	assert.True(t, ids["DVF_v1.0"])
	assert.True(t, ids["52.4"])
}

func TestCatalogRecord(t *testing.T) {
	srv := testServer(t)

	var rec protocol.ProtocolRecord
	resp := getJSON(t, srv.URL+"/api/v1/catalog/52.4", &rec)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "52.4", rec.ID)
	assert.Contains(t, rec.Dependencies, "51.1")
}

func TestCatalogRecordNotFound(t *testing.T) {
	srv := testServer(t)

	resp := getJSON(t, srv.URL+"/api/v1/catalog/99.99", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAnalyze(t *testing.T) {
	srv := testServer(t)

	body, _ := json.Marshal(map[string]string{"query": "urgent cyber threat against Acme Corp"})
	resp, err := http.Post(srv.URL+"/api/v1/analyze", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res orchestrate.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))

	assert.NotEmpty(t, res.WorkflowID)
	require.NotNil(t, res.Selection)
	assert.GreaterOrEqual(t, res.Selection.Tier, 21)
	assert.Contains(t, res.Selection.SelectedProtocols, "52.4")
	require.NotNil(t, res.Report)
}

func TestAnalyzeRejectsBadRequests(t *testing.T) {
	srv := testServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"not json", "plain text"},
		{"missing query", `{"other": "field"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/v1/analyze", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestSessionsList(t *testing.T) {
	now := time.Now().UTC()
	srv := testServerWithSessions(t, &fakeSessionReader{sessions: []*store.Session{
		{WorkflowID: "wf-new", Query: "latest", Tier: 12, CreatedAt: now},
		{WorkflowID: "wf-old", Query: "earlier", Tier: 1, CreatedAt: now.Add(-time.Hour)},
	}})

	var body struct {
		Sessions []*store.Session `json:"sessions"`
		Count    int              `json:"count"`
	}
	resp := getJSON(t, srv.URL+"/api/v1/sessions", &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body.Sessions, 2)
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, "wf-new", body.Sessions[0].WorkflowID)

	resp = getJSON(t, srv.URL+"/api/v1/sessions?limit=1", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body.Sessions, 1)
}

func TestSessionsListBadLimit(t *testing.T) {
	srv := testServerWithSessions(t, &fakeSessionReader{})

	resp := getJSON(t, srv.URL+"/api/v1/sessions?limit=many", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSessionByID(t *testing.T) {
	srv := testServerWithSessions(t, &fakeSessionReader{sessions: []*store.Session{
		{WorkflowID: "wf-1", Query: "review Acme Corp exposure", Tier: 12,
			Protocols: []string{"DVF_v1.0", "9.3"}, CreatedAt: time.Now().UTC()},
	}})

	var sess store.Session
	resp := getJSON(t, srv.URL+"/api/v1/sessions/wf-1", &sess)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "wf-1", sess.WorkflowID)
	assert.Equal(t, []string{"DVF_v1.0", "9.3"}, sess.Protocols)

	resp = getJSON(t, srv.URL+"/api/v1/sessions/wf-missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessionsUnavailableWithoutStore(t *testing.T) {
	srv := testServer(t)

	resp := getJSON(t, srv.URL+"/api/v1/sessions", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp = getJSON(t, srv.URL+"/api/v1/sessions/wf-1", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestAnalyzeWebSocket(t *testing.T) {
	srv := testServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/analyze?query=review+the+fintech+sector"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	var stages []string
	for {
		var msg wsMessage
		err := conn.ReadJSON(&msg)
		require.NoError(t, err)

		switch msg.Type {
		case "stage_update":
			require.NotNil(t, msg.Progress)
			if msg.Progress.Status == "completed" {
				stages = append(stages, msg.Progress.Stage)
			}
		case "result":
			require.NotNil(t, msg.Result)
			assert.Equal(t, orchestrate.Stages(), stages, "all stages reported before the result")
			assert.NotEmpty(t, msg.Result.Selection.SelectedProtocols)
			return
		default:
			t.Fatalf("unexpected message type %q", msg.Type)
		}
	}
}

func TestAnalyzeWebSocketRequiresQuery(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/ws/analyze")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
