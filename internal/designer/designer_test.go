package designer_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ayush/ivr-designer/internal/auth"
	"github.com/ayush/ivr-designer/internal/designer"
	"github.com/ayush/ivr-designer/internal/metrics"
	"github.com/ayush/ivr-designer/internal/middleware"
	"github.com/ayush/ivr-designer/internal/models"
	"github.com/ayush/ivr-designer/internal/repository"
	"github.com/ayush/ivr-designer/internal/store"
)

// failingBackend makes Delete on one kind fail while armed.
type failingBackend struct {
	store.Backend
	kind  store.Kind
	armed atomic.Bool
}

func (b *failingBackend) Collection(kind store.Kind) store.Collection {
	col := b.Backend.Collection(kind)
	if kind != b.kind {
		return col
	}
	return &failingCollection{Collection: col, armed: &b.armed}
}

type failingCollection struct {
	store.Collection
	armed *atomic.Bool
}

func (c *failingCollection) Delete(ctx context.Context, where store.Criteria) (bool, error) {
	if c.armed.Load() {
		return false, fmt.Errorf("%w: disk unplugged", store.ErrStorage)
	}
	return c.Collection.Delete(ctx, where)
}

type env struct {
	t        *testing.T
	router   http.Handler
	repos    *repository.Repositories
	sessions *auth.MemorySessions
}

func newEnv(t *testing.T, backend store.Backend, opts ...designer.Option) *env {
	t.Helper()
	logger := zap.NewNop()
	repos := repository.New(backend)
	sessions := auth.NewMemorySessions(0)
	svc := designer.NewService(repos, logger, append([]designer.Option{designer.WithMetrics(metrics.NewCollector("test"))}, opts...)...)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(sessions, logger))
			designer.NewHandler(svc, logger).Routes(r)
		})
	})
	return &env{t: t, router: r, repos: repos, sessions: sessions}
}

// login creates a user and returns its session cookie.
func (e *env) login(email string) *http.Cookie {
	e.t.Helper()
	u, err := e.repos.Users.Create(context.Background(), "User", email, "hash")
	require.NoError(e.t, err)
	sid, err := e.sessions.Create(context.Background(), u.ID)
	require.NoError(e.t, err)
	return &http.Cookie{Name: auth.SessionCookie, Value: sid}
}

func (e *env) do(cookie *http.Cookie, method, path string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(e.t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type projectBody struct {
	Project models.ProjectDetail `json:"project"`
}

type flowBody struct {
	Flow models.FlowWithNodes `json:"flow"`
}

type tokenBody struct {
	Token models.Token `json:"token"`
}

func (e *env) createProject(c *http.Cookie, name string) models.Project {
	e.t.Helper()
	rec := e.do(c, http.MethodPost, "/api/projects", map[string]string{"name": name})
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[projectBody](e.t, rec).Project.Project
}

func (e *env) createFlow(c *http.Cookie, projectID, name string) models.FlowWithNodes {
	e.t.Helper()
	rec := e.do(c, http.MethodPost, "/api/flows", map[string]string{"name": name, "projectId": projectID})
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[flowBody](e.t, rec).Flow
}

func (e *env) getFlow(c *http.Cookie, id string) models.FlowWithNodes {
	e.t.Helper()
	rec := e.do(c, http.MethodGet, "/api/flows/"+id, nil)
	require.Equal(e.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[flowBody](e.t, rec).Flow
}

func TestCreateFlowSeedsStartNode(t *testing.T) {
	e := newEnv(t, store.NewMemoryBackend())
	c := e.login("ada@example.com")
	p := e.createProject(c, "Bank IVR")

	f := e.createFlow(c, p.ID, "Login")
	assert.Equal(t, 1, f.Version)
	require.Len(t, f.Nodes, 1)
	start := f.Nodes[0]
	assert.Equal(t, models.NodeStart, start.Type)
	assert.Equal(t, "Start", start.Title)
	assert.Equal(t, "Start of authentication flow", start.Prompt)
	assert.Equal(t, models.Position{X: 250, Y: 100}, start.Position)
	assert.Empty(t, start.NextNodeIDs)
}

func TestAddCollectAndConnectScenario(t *testing.T) {
	e := newEnv(t, store.NewMemoryBackend())
	c := e.login("ada@example.com")
	p := e.createProject(c, "Bank IVR")
	f := e.createFlow(c, p.ID, "Login")
	start := f.Nodes[0]

	rec := e.do(c, http.MethodPost, "/api/flows/"+f.ID+"/nodes", map[string]any{"type": "collect", "tokenId": nil})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	added := decode[struct {
		Node models.Node `json:"node"`
	}](t, rec).Node
	assert.Empty(t, added.NextNodeIDs)
	assert.Equal(t, "New collect", added.Title)

	rec = e.do(c, http.MethodPost, "/api/flows/"+f.ID+"/connections", map[string]string{"source": start.ID, "target": added.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := e.getFlow(c, f.ID)
	require.Len(t, got.Nodes, 2)
	assert.Equal(t, 3, got.Version)
	for _, n := range got.Nodes {
		if n.ID == start.ID {
			assert.Equal(t, []string{added.ID}, n.NextNodeIDs)
		}
	}

	rec = e.do(c, http.MethodGet, "/api/flows/"+f.ID+"/graph", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	graph := decode[designer.Graph](t, rec)
	require.Len(t, graph.Edges, 1)
	assert.Equal(t, start.ID+"-"+added.ID, graph.Edges[0].ID)
}

func TestSaveReplacesNodeSet(t *testing.T) {
	e := newEnv(t, store.NewMemoryBackend())
	c := e.login("ada@example.com")
	p := e.createProject(c, "Bank IVR")
	f := e.createFlow(c, p.ID, "Login")
	startID := f.Nodes[0].ID

	first := []map[string]any{
		{"id": startID, "type": "start", "title": "Start", "position": map[string]int{"x": 250, "y": 100}, "nextNodeIds": []string{"prompt-1"}},
		{"id": "prompt-1", "type": "prompt", "title": "Welcome", "position": map[string]int{"x": 250, "y": 220}, "nextNodeIds": []string{}},
		{"id": "end-1", "type": "end", "title": "Bye", "position": map[string]int{"x": 400, "y": 340}, "nextNodeIds": []string{}},
	}
	rec := e.do(c, http.MethodPut, "/api/flows/"+f.ID, map[string]any{"nodes": first, "version": 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	second := []map[string]any{
		{"id": startID, "type": "start", "title": "Start", "position": map[string]int{"x": 250, "y": 100}, "nextNodeIds": []string{"collect-1", "collect-1"}},
		{"id": "collect-1", "type": "collect", "title": "PIN", "position": map[string]int{"x": 10, "y": 20}, "nextNodeIds": []string{}},
	}
	rec = e.do(c, http.MethodPut, "/api/flows/"+f.ID, map[string]any{"nodes": second, "name": "Login v2"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := e.getFlow(c, f.ID)
	assert.Equal(t, "Login v2", got.Name)
	assert.Equal(t, 3, got.Version)
	require.Len(t, got.Nodes, 2)
	assert.Equal(t, startID, got.Nodes[0].ID)
	assert.Equal(t, []string{"collect-1", "collect-1"}, got.Nodes[0].NextNodeIDs)
	assert.Equal(t, "collect-1", got.Nodes[1].ID)
	assert.Equal(t, models.Position{X: 10, Y: 20}, got.Nodes[1].Position)
}

func TestStaleVersionConflicts(t *testing.T) {
	e := newEnv(t, store.NewMemoryBackend())
	c := e.login("ada@example.com")
	p := e.createProject(c, "Bank IVR")
	f := e.createFlow(c, p.ID, "Login")
	startID := f.Nodes[0].ID

	nodes := []map[string]any{{"id": startID, "type": "start", "title": "Start", "nextNodeIds": []string{}}}
	rec := e.do(c, http.MethodPut, "/api/flows/"+f.ID, map[string]any{"nodes": nodes, "version": 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	stale := []map[string]any{
		{"id": startID, "type": "start", "title": "Start", "nextNodeIds": []string{"end-1"}},
		{"id": "end-1", "type": "end", "title": "Bye"},
	}
	rec = e.do(c, http.MethodPut, "/api/flows/"+f.ID, map[string]any{"nodes": stale, "version": 1})
	assert.Equal(t, http.StatusConflict, rec.Code)

	got := e.getFlow(c, f.ID)
	assert.Equal(t, 2, got.Version)
	assert.Len(t, got.Nodes, 1)

	rec = e.do(c, http.MethodPost, "/api/flows/"+f.ID+"/nodes", map[string]any{"type": "end", "version": 1})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestInvalidNodeSetsAreRejected(t *testing.T) {
	e := newEnv(t, store.NewMemoryBackend())
	c := e.login("ada@example.com")
	p := e.createProject(c, "Bank IVR")
	f := e.createFlow(c, p.ID, "Login")
	other := e.createFlow(c, p.ID, "Other")
	startID := f.Nodes[0].ID

	tests := []struct {
		name  string
		nodes string
		want  string
	}{
		{"no start", `[{"id":"p","type":"prompt","title":"Hi"}]`, "flow must have exactly one start node, found 0"},
		{"two starts", fmt.Sprintf(`[{"id":%q,"type":"start"},{"id":"s2","type":"start"}]`, startID), "found 2"},
		{"dangling", fmt.Sprintf(`[{"id":%q,"type":"start","nextNodeIds":["ghost"]}]`, startID), `points to unknown node "ghost"`},
		{"unknown type", fmt.Sprintf(`[{"id":%q,"type":"teleport"}]`, startID), "nodes/0/type"},
		{"foreign id", fmt.Sprintf(`[{"id":%q,"type":"start"},{"id":%q,"type":"end"}]`, startID, other.Nodes[0].ID), "already used by another flow"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(c, http.MethodPut, "/api/flows/"+f.ID, `{"nodes":`+tt.nodes+`}`)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Contains(t, decode[map[string]string](t, rec)["error"], tt.want)
		})
	}

	got := e.getFlow(c, f.ID)
	assert.Equal(t, 1, got.Version)
	require.Len(t, got.Nodes, 1)
	assert.Equal(t, startID, got.Nodes[0].ID)
}

func TestOrdinalPositionsRoundTripThroughSequence(t *testing.T) {
	e := newEnv(t, store.NewMemoryBackend())
	c := e.login("ada@example.com")
	p := e.createProject(c, "Bank IVR")
	f := e.createFlow(c, p.ID, "Login")
	startID := f.Nodes[0].ID

	body := fmt.Sprintf(`{"nodes":[
		{"id":"end-1","type":"end","title":"Bye","position":3},
		{"id":%q,"type":"start","title":"Start","position":0,"nextNodeIds":["collect-1"]},
		{"id":"validate-1","type":"validate","title":"Check","position":2},
		{"id":"collect-1","type":"collect","title":"PIN","position":1}
	]}`, startID)
	rec := e.do(c, http.MethodPut, "/api/flows/"+f.ID, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	for _, n := range e.getFlow(c, f.ID).Nodes {
		if n.ID == "end-1" {
			assert.Equal(t, models.Position{X: 250, Y: 460}, n.Position)
		}
	}

	rec = e.do(c, http.MethodGet, "/api/flows/"+f.ID+"/sequence", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var seq struct {
		Nodes []struct {
			ID       string `json:"id"`
			Position int    `json:"position"`
		} `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &seq))
	require.Len(t, seq.Nodes, 4)
	for i, want := range []string{startID, "collect-1", "validate-1", "end-1"} {
		assert.Equal(t, want, seq.Nodes[i].ID)
		assert.Equal(t, i, seq.Nodes[i].Position)
	}
}

func TestMoveAndDeleteNodes(t *testing.T) {
	e := newEnv(t, store.NewMemoryBackend())
	c := e.login("ada@example.com")
	p := e.createProject(c, "Bank IVR")
	f := e.createFlow(c, p.ID, "Login")
	startID := f.Nodes[0].ID

	body := fmt.Sprintf(`{"nodes":[
		{"id":%q,"type":"start","title":"Start","position":0,"nextNodeIds":["a"]},
		{"id":"a","type":"prompt","title":"A","position":1,"nextNodeIds":["b"]},
		{"id":"b","type":"collect","title":"B","position":2}
	]}`, startID)
	require.Equal(t, http.StatusOK, e.do(c, http.MethodPut, "/api/flows/"+f.ID, body).Code)

	rec := e.do(c, http.MethodPost, "/api/nodes/a/move", map[string]string{"direction": "up"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(c, http.MethodPost, "/api/nodes/a/move", map[string]string{"direction": "sideways"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(c, http.MethodPost, "/api/nodes/a/move", map[string]string{"direction": "down"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(c, http.MethodGet, "/api/flows/"+f.ID+"/sequence", nil)
	view := decode[designer.SequenceView](t, rec)
	require.Len(t, view.Nodes, 3)
	assert.Equal(t, "b", view.Nodes[1].ID)
	assert.Equal(t, "a", view.Nodes[2].ID)

	rec = e.do(c, http.MethodDelete, "/api/nodes/"+startID, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(c, http.MethodDelete, "/api/nodes/a", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := e.getFlow(c, f.ID)
	require.Len(t, got.Nodes, 2)
	for _, n := range got.Nodes {
		assert.NotContains(t, n.NextNodeIDs, "a")
	}

	rec = e.do(c, http.MethodGet, "/api/nodes/a", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = e.do(c, http.MethodGet, "/api/nodes/b", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTokenScenario(t *testing.T) {
	e := newEnv(t, store.NewMemoryBackend())
	c := e.login("ada@example.com")
	p := e.createProject(c, "Bank IVR")
	f := e.createFlow(c, p.ID, "Login")

	rec := e.do(c, http.MethodPost, "/api/tokens", map[string]string{"name": "Customer SSN", "type": "SSN", "projectId": p.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tok := decode[tokenBody](t, rec).Token

	body := fmt.Sprintf(`{"nodes":[
		{"id":%q,"type":"start","title":"Start","nextNodeIds":["collect-ssn"]},
		{"id":"collect-ssn","type":"collect","title":"SSN","tokenId":%q}
	]}`, f.Nodes[0].ID, tok.ID)
	require.Equal(t, http.StatusOK, e.do(c, http.MethodPut, "/api/flows/"+f.ID, body).Code)

	rec = e.do(c, http.MethodGet, "/api/tokens?projectId="+p.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Tokens []models.Token `json:"tokens"`
	}](t, rec).Tokens
	require.Len(t, list, 1)
	assert.Equal(t, tok.ID, list[0].ID)

	rec = e.do(c, http.MethodDelete, "/api/tokens/"+tok.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(c, http.MethodGet, "/api/tokens?projectId="+p.ID, nil)
	assert.JSONEq(t, `{"tokens":[]}`, rec.Body.String())

	got := e.getFlow(c, f.ID)
	assert.Equal(t, tok.ID, got.Nodes[1].TokenID)
}

func TestTokenValidation(t *testing.T) {
	e := newEnv(t, store.NewMemoryBackend())
	c := e.login("ada@example.com")
	p := e.createProject(c, "Bank IVR")

	rec := e.do(c, http.MethodPost, "/api/tokens", map[string]string{"name": "Card", "type": "card", "projectId": p.ID, "format": `^\d{16}$`})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tok := decode[tokenBody](t, rec).Token
	assert.Equal(t, models.TokenDebitCard, tok.Type)

	rec = e.do(c, http.MethodPost, "/api/tokens", map[string]string{"name": "SSN"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"type is required; projectId is required"}`, rec.Body.String())

	rec = e.do(c, http.MethodPost, "/api/tokens", map[string]string{"name": "X", "type": "IBAN", "projectId": p.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(c, http.MethodPut, "/api/tokens/"+tok.ID, map[string]string{"format": "(["})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(c, http.MethodPut, "/api/tokens/"+tok.ID, map[string]string{"type": "ACCOUNT", "description": "acct"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[tokenBody](t, rec).Token
	assert.Equal(t, models.TokenAccountNumber, updated.Type)
	assert.Equal(t, `^\d{16}$`, updated.Format)

	rec = e.do(c, http.MethodGet, "/api/tokens", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[struct {
		Tokens []models.TokenWithProject `json:"tokens"`
	}](t, rec).Tokens
	require.Len(t, all, 1)
	assert.Equal(t, models.ProjectRef{ID: p.ID, Name: "Bank IVR"}, all[0].Project)
}

func TestAccessControl(t *testing.T) {
	e := newEnv(t, store.NewMemoryBackend())
	owner := e.login("owner@example.com")
	intruder := e.login("intruder@example.com")
	p := e.createProject(owner, "Bank IVR")
	f := e.createFlow(owner, p.ID, "Login")

	rec := e.do(nil, http.MethodGet, "/api/projects", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	for _, path := range []string{
		"/api/projects/" + p.ID,
		"/api/flows/" + f.ID,
		"/api/flows?projectId=" + p.ID,
		"/api/tokens?projectId=" + p.ID,
		"/api/nodes/" + f.Nodes[0].ID,
	} {
		rec = e.do(intruder, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
		assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())
	}

	rec = e.do(intruder, http.MethodPost, "/api/flows", map[string]string{"name": "Evil", "projectId": p.ID})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(owner, http.MethodGet, "/api/flows/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Flow not found"}`, rec.Body.String())

	rec = e.do(owner, http.MethodGet, "/api/flows", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(intruder, http.MethodGet, "/api/projects", nil)
	assert.JSONEq(t, `{"projects":[]}`, rec.Body.String())
}

func TestProjectListAndUpdate(t *testing.T) {
	e := newEnv(t, store.NewMemoryBackend())
	c := e.login("ada@example.com")
	p := e.createProject(c, "Bank IVR")
	f := e.createFlow(c, p.ID, "Login")

	rec := e.do(c, http.MethodGet, "/api/projects", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Projects []models.ProjectSummary `json:"projects"`
	}](t, rec).Projects
	require.Len(t, list, 1)
	assert.Equal(t, []models.FlowRef{{ID: f.ID, Name: "Login"}}, list[0].Flows)

	rec = e.do(c, http.MethodPut, "/api/projects/"+p.ID, map[string]string{"description": "retail"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(c, http.MethodGet, "/api/projects/"+p.ID, nil)
	detail := decode[projectBody](t, rec).Project
	assert.Equal(t, "Bank IVR", detail.Name)
	assert.Equal(t, "retail", detail.Description)
	assert.Len(t, detail.Flows, 1)
	assert.Empty(t, detail.Tokens)

	rec = e.do(c, http.MethodPost, "/api/projects", map[string]string{"description": "no name"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteProjectCascades(t *testing.T) {
	archive := store.NewMemoryArchive()
	e := newEnv(t, store.NewMemoryBackend(), designer.WithArchive(archive))
	c := e.login("ada@example.com")
	p := e.createProject(c, "Bank IVR")
	f := e.createFlow(c, p.ID, "Login")
	rec := e.do(c, http.MethodPost, "/api/tokens", map[string]string{"name": "PIN", "type": "PIN", "projectId": p.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotEmpty(t, archive.Keys())

	rec = e.do(c, http.MethodDelete, "/api/projects/"+p.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"message":"Project deleted successfully"}`, rec.Body.String())

	ctx := context.Background()
	_, err := e.repos.Flows.ByID(ctx, f.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	nodes, err := e.repos.Nodes.ListByFlow(ctx, f.ID)
	require.NoError(t, err)
	assert.Empty(t, nodes)
	tokens, err := e.repos.Tokens.ListByProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, tokens)
	assert.Empty(t, archive.Keys())

	rec = e.do(c, http.MethodGet, "/api/projects/"+p.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFailedCascadeIsCompensated(t *testing.T) {
	backend := &failingBackend{Backend: store.NewMemoryBackend(), kind: store.Flows}
	e := newEnv(t, backend)
	c := e.login("ada@example.com")
	p := e.createProject(c, "Bank IVR")
	f := e.createFlow(c, p.ID, "Login")
	body := fmt.Sprintf(`{"nodes":[
		{"id":%q,"type":"start","title":"Start","nextNodeIds":["end-1"]},
		{"id":"end-1","type":"end","title":"Bye"}
	]}`, f.Nodes[0].ID)
	require.Equal(t, http.StatusOK, e.do(c, http.MethodPut, "/api/flows/"+f.ID, body).Code)
	rec := e.do(c, http.MethodPost, "/api/tokens", map[string]string{"name": "PIN", "type": "PIN", "projectId": p.ID})
	require.Equal(t, http.StatusCreated, rec.Code)

	backend.armed.Store(true)
	rec = e.do(c, http.MethodDelete, "/api/projects/"+p.ID, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to delete project"}`, rec.Body.String())

	rec = e.do(c, http.MethodDelete, "/api/flows/"+f.ID, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	backend.armed.Store(false)

	rec = e.do(c, http.MethodGet, "/api/projects/"+p.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[projectBody](t, rec).Project
	assert.Len(t, detail.Flows, 1)
	assert.Len(t, detail.Tokens, 1)

	got := e.getFlow(c, f.ID)
	require.Len(t, got.Nodes, 2)
	assert.Equal(t, []string{"end-1"}, got.Nodes[0].NextNodeIDs)
}

func TestRevisionsAndExport(t *testing.T) {
	archive := store.NewMemoryArchive()
	e := newEnv(t, store.NewMemoryBackend(), designer.WithArchive(archive))
	c := e.login("ada@example.com")
	p := e.createProject(c, "Bank IVR")
	f := e.createFlow(c, p.ID, "Login")

	rec := e.do(c, http.MethodPost, "/api/flows/"+f.ID+"/nodes", map[string]string{"type": "end", "title": "Bye"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.do(c, http.MethodGet, "/api/flows/"+f.ID+"/revisions/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	v1 := decode[models.FlowWithNodes](t, rec)
	assert.Len(t, v1.Nodes, 1)

	rec = e.do(c, http.MethodGet, "/api/flows/"+f.ID+"/revisions/2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[models.FlowWithNodes](t, rec).Nodes, 2)

	rec = e.do(c, http.MethodGet, "/api/flows/"+f.ID+"/revisions/9", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(c, http.MethodGet, "/api/flows/"+f.ID+"/revisions/latest", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(c, http.MethodGet, "/api/flows/"+f.ID+"/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Equal(t, 2, decode[models.FlowWithNodes](t, rec).Version)

	rec = e.do(c, http.MethodDelete, "/api/flows/"+f.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, archive.Keys())
}

func TestRevisionsWithoutArchive(t *testing.T) {
	e := newEnv(t, store.NewMemoryBackend())
	c := e.login("ada@example.com")
	p := e.createProject(c, "Bank IVR")
	f := e.createFlow(c, p.ID, "Login")

	rec := e.do(c, http.MethodGet, "/api/flows/"+f.ID+"/revisions/1", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStorageFailureIsHidden(t *testing.T) {
	backend := &failingBackend{Backend: store.NewMemoryBackend(), kind: store.Tokens}
	e := newEnv(t, backend)
	c := e.login("ada@example.com")
	p := e.createProject(c, "Bank IVR")
	rec := e.do(c, http.MethodPost, "/api/tokens", map[string]string{"name": "PIN", "type": "PIN", "projectId": p.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	tok := decode[tokenBody](t, rec).Token

	backend.armed.Store(true)
	rec = e.do(c, http.MethodDelete, "/api/tokens/"+tok.ID, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to delete token"}`, rec.Body.String())
}
