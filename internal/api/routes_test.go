package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"campaign-compliance/internal/ai"
	"campaign-compliance/internal/pipeline"
)

const parkFacts = "Visitor numbers reached 12,000 people in 2023. The park opened in 1998."

const cleanBody = "<p>The riverside park has served the district since 1998.</p>" +
	"<h2>Background</h2><p>Visitor numbers reached 12,000 people in 2023.</p><p>The walking paths need resurfacing after heavy rain.</p>" +
	"<h2>What residents say</h2><p>Parents would like more shade near the playground.</p><p>Thank you for sharing your views with the office.</p>"

type recordingModel struct {
	mu      sync.Mutex
	prompts []ai.Prompt
}

func (m *recordingModel) Enabled() bool { return true }

func (m *recordingModel) Complete(ctx context.Context, prompt ai.Prompt) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	switch {
	case strings.Contains(prompt.System, "informational posts"):
		raw, _ := json.Marshal(map[string]string{"title": "Riverside park update", "content": cleanBody})
		return string(raw), nil
	case strings.Contains(prompt.System, "compliance editor"):
		return `{"passed":true,"violations":[],"assessment":{"authenticity":8,"appeal":7,"summary":"ok"}}`, nil
	}
	return "", errors.New("unexpected prompt")
}

func (m *recordingModel) promptContaining(system string) []ai.Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ai.Prompt
	for _, p := range m.prompts {
		if strings.Contains(p.System, system) {
			out = append(out, p)
		}
	}
	return out
}

func newTestServer(t *testing.T, cfg Config) (*Server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg.DBPath = filepath.Join(t.TempDir(), "test.db")
	cfg.SilentDB = true
	if cfg.Completer == nil {
		cfg.DisableAI = true
	}
	server, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(func() { _ = server.Close() })
	router, err := server.Router()
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	return server, router
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealthAndConfig(t *testing.T) {
	_, router := newTestServer(t, Config{})

	if rec := doJSON(t, router, http.MethodGet, "/api/healthz", nil); rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}

	rec := doJSON(t, router, http.MethodGet, "/api/config", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("config: %d %s", rec.Code, rec.Body.String())
	}
	cfg := decode[map[string]any](t, rec)
	if cfg["ai_enabled"] != false || cfg["reference_search"] != false {
		t.Fatalf("unexpected flags %v", cfg)
	}
	if stages, ok := cfg["stages"].([]any); !ok || len(stages) != 5 {
		t.Fatalf("unexpected stages %v", cfg["stages"])
	}
}

func TestReferenceLifecycle(t *testing.T) {
	_, router := newTestServer(t, Config{})

	rec := doJSON(t, router, http.MethodPost, "/api/references", ReferenceRequest{
		Owner:   "office",
		Topic:   "riverside park",
		Title:   "Park report",
		Source:  "https://example.org/park",
		Content: "# Park report\n\nVisitor numbers reached **12,000 people** in 2023.",
		Format:  "markdown",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	created := decode[ReferenceDTO](t, rec)
	if created.ID == 0 || created.Content != "Park report\nVisitor numbers reached 12,000 people in 2023." {
		t.Fatalf("unexpected reference %+v", created)
	}

	if rec := doJSON(t, router, http.MethodPost, "/api/references", ReferenceRequest{Owner: "office"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty content, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/references?owner=office", nil)
	list := decode[ReferenceListResponse](t, rec)
	if list.Total != 1 || len(list.Items) != 1 || list.Items[0].Content != "" {
		t.Fatalf("unexpected list %+v", list)
	}
	if rec := doJSON(t, router, http.MethodGet, "/api/references?limit=abc", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad limit, got %d", rec.Code)
	}

	path := "/api/references/" + jsonNumber(created.ID)
	if rec := doJSON(t, router, http.MethodDelete, path, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", rec.Code)
	}
	if rec := doJSON(t, router, http.MethodDelete, path, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", rec.Code)
	}
	if rec := doJSON(t, router, http.MethodDelete, "/api/references/zero", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad id, got %d", rec.Code)
	}
}

func jsonNumber(id uint) string {
	raw, _ := json.Marshal(id)
	return string(raw)
}

func TestGuidelineRoundTrip(t *testing.T) {
	_, router := newTestServer(t, Config{})

	if rec := doJSON(t, router, http.MethodGet, "/api/guidelines/office", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := doJSON(t, router, http.MethodPut, "/api/guidelines/office", GuidelineRequest{}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an empty summary, got %d", rec.Code)
	}
	rec := doJSON(t, router, http.MethodPut, "/api/guidelines/office", GuidelineRequest{Summary: "Avoid superlatives."})
	if rec.Code != http.StatusOK {
		t.Fatalf("put: %d %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, router, http.MethodGet, "/api/guidelines/office", nil)
	got := decode[map[string]any](t, rec)
	if got["summary"] != "Avoid superlatives." {
		t.Fatalf("unexpected guideline %v", got)
	}
}

func TestDraftWithoutModelUsesStoredReferences(t *testing.T) {
	_, router := newTestServer(t, Config{})
	doJSON(t, router, http.MethodPost, "/api/references", ReferenceRequest{
		Owner: "office", Topic: "riverside park", Content: parkFacts,
	})

	rec := doJSON(t, router, http.MethodPost, "/api/drafts", DraftRequest{RequestSpec: RequestSpec{
		Owner:          "office",
		Topic:          "riverside park",
		PrimaryKeyword: "riverside park",
		Status:         "registered candidate",
	}})
	if rec.Code != http.StatusOK {
		t.Fatalf("draft: %d %s", rec.Code, rec.Body.String())
	}
	resp := decode[DraftResponse](t, rec)
	if !resp.Fallback || resp.Reviewed || resp.RunID == "" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Stage != "registered" || resp.ReferenceCount != 1 {
		t.Fatalf("unexpected stage or references: %s %d", resp.Stage, resp.ReferenceCount)
	}
	if !strings.Contains(resp.Body, "12,000 people") {
		t.Fatalf("expected a stored fact in the body:\n%s", resp.Body)
	}
}

func TestDraftRequiresTopic(t *testing.T) {
	_, router := newTestServer(t, Config{})
	if rec := doJSON(t, router, http.MethodPost, "/api/drafts", DraftRequest{}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestDraftPassesGuidelineToCritic(t *testing.T) {
	model := &recordingModel{}
	_, router := newTestServer(t, Config{Completer: model})
	doJSON(t, router, http.MethodPut, "/api/guidelines/office", GuidelineRequest{Summary: "Never name rival candidates."})

	rec := doJSON(t, router, http.MethodPost, "/api/drafts", DraftRequest{RequestSpec: RequestSpec{
		Owner:          "office",
		Topic:          "riverside park",
		PrimaryKeyword: "riverside park",
		Stage:          "registered",
		References:     []string{parkFacts},
	}})
	if rec.Code != http.StatusOK {
		t.Fatalf("draft: %d %s", rec.Code, rec.Body.String())
	}
	resp := decode[DraftResponse](t, rec)
	if resp.Fallback || !resp.Reviewed || resp.CriticCalls != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}
	critic := model.promptContaining("compliance editor")
	if len(critic) != 1 || !strings.Contains(critic[0].User, "Never name rival candidates.") {
		t.Fatalf("expected the guideline in the critic prompt, got %+v", critic)
	}
}

func TestValidateLocalFlagsCommitment(t *testing.T) {
	_, router := newTestServer(t, Config{})
	req := CheckRequest{
		RequestSpec: RequestSpec{PrimaryKeyword: "riverside park", Stage: "pre_filing"},
		Title:       "Riverside park update",
		Body:        "We promise to build a new riverside park.",
	}

	rec := doJSON(t, router, http.MethodPost, "/api/validate?local=true", req)
	if rec.Code != http.StatusOK {
		t.Fatalf("validate: %d %s", rec.Code, rec.Body.String())
	}
	resp := decode[CheckResponse](t, rec)
	if resp.Passed || resp.Summary.SpeechLaw.Passed || resp.Body != "<p>We promise to build a new riverside park.</p>" {
		t.Fatalf("unexpected response %+v", resp)
	}

	if rec := doJSON(t, router, http.MethodPost, "/api/validate?local=maybe", req); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad flag, got %d", rec.Code)
	}
	req.Body = ""
	if rec := doJSON(t, router, http.MethodPost, "/api/validate", req); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an empty body, got %d", rec.Code)
	}
}

func TestEditFixesTitle(t *testing.T) {
	_, router := newTestServer(t, Config{})
	rec := doJSON(t, router, http.MethodPost, "/api/edit", CheckRequest{
		RequestSpec: RequestSpec{PrimaryKeyword: "park", Stage: "registered", References: []string{parkFacts}},
		Title:       "Park",
		Body:        cleanBody,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("edit: %d %s", rec.Code, rec.Body.String())
	}
	resp := decode[CheckResponse](t, rec)
	if n := len([]rune(resp.Title)); n < 10 || n > 25 {
		t.Fatalf("title out of bounds: %q", resp.Title)
	}
	if len(resp.Summary.Changes) == 0 || !resp.Summary.Title.Passed {
		t.Fatalf("unexpected summary %+v", resp.Summary)
	}
}

func TestDraftStreamReplaysLastStatus(t *testing.T) {
	_, router := newTestServer(t, Config{})
	rec := doJSON(t, router, http.MethodPost, "/api/drafts", DraftRequest{RequestSpec: RequestSpec{
		Topic:          "riverside park",
		PrimaryKeyword: "riverside park",
		Stage:          "registered",
		References:     []string{parkFacts},
	}})
	if rec.Code != http.StatusOK {
		t.Fatalf("draft: %d %s", rec.Code, rec.Body.String())
	}
	runID := decode[DraftResponse](t, rec).RunID

	srv := httptest.NewServer(router)
	defer srv.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/drafts/stream", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg StageMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "completed" || msg.RunID != runID || msg.Stage != pipeline.StageCompleted {
		t.Fatalf("unexpected replay %+v", msg)
	}
}

func TestStageNotifierObserver(t *testing.T) {
	n := NewStageNotifier()
	if n.LastStatus() != nil {
		t.Fatal("expected no status before the first event")
	}
	n.Observer()(pipeline.StageEvent{RunID: "r1", Stage: pipeline.StageEditorReview, Round: 1})
	last := n.LastStatus()
	if last == nil || last.Type != "stage" || last.Stage != pipeline.StageEditorReview || last.Round != 1 {
		t.Fatalf("unexpected status %+v", last)
	}
}
