package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sitechat/chatkit-broker/internal/chatkit"
	"github.com/sitechat/chatkit-broker/internal/config"
	"github.com/sitechat/chatkit-broker/internal/db"
	"github.com/sitechat/chatkit-broker/internal/db/models"
	"github.com/sitechat/chatkit-broker/internal/ratelimit"
	"github.com/sitechat/chatkit-broker/internal/resolver"
	"gorm.io/gorm"
)

type roundTripperFunc func(r *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := gorm.Open(sqlite.Open("file:handlers_"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := database.AutoMigrate(&models.Site{}, &models.Workflow{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return database
}

func testConfig() *config.Config {
	return &config.Config{
		AllowOrigins:    []string{"https://static.example"},
		RateLimit:       60,
		RateLimitWindow: time.Minute,
	}
}

// upstreamStub fakes the ChatKit sessions API, capturing the last request
// body it saw.
type upstreamStub struct {
	code int
	body string
	last []byte
	auth string
}

func (s *upstreamStub) client() *chatkit.Client {
	return chatkit.NewClientWith("", &http.Client{
		Timeout: time.Second,
		Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
			s.last, _ = io.ReadAll(r.Body)
			s.auth = r.Header.Get("Authorization")
			code := s.code
			if code == 0 {
				code = http.StatusOK
			}
			body := s.body
			if body == "" {
				body = `{"client_secret":"cs_test_123"}`
			}
			return &http.Response{
				StatusCode: code,
				Body:       io.NopCloser(strings.NewReader(body)),
			}, nil
		}),
	})
}

func seedSite(t *testing.T, database *gorm.DB, origin string, workflows ...models.Workflow) *models.Site {
	t.Helper()
	site, err := db.CreateSite(database, origin, "")
	if err != nil {
		t.Fatalf("seed site: %v", err)
	}
	for i := range workflows {
		workflows[i].SiteID = site.ID
		if err := db.CreateWorkflow(database, &workflows[i]); err != nil {
			t.Fatalf("seed workflow: %v", err)
		}
	}
	return site
}

func postSession(h http.HandlerFunc, origin, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, "/api/chatkit/session", strings.NewReader(body))
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	r.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, r)
	return rec
}

func TestSessionHandler_EndToEnd(t *testing.T) {
	database := newTestDB(t)
	seedSite(t, database, "https://example.com", models.Workflow{
		Key:        "main",
		WorkflowID: "wf_abcdefghij",
		APIKey:     "sk-proj-validkeylengthok",
	})

	stub := &upstreamStub{}
	cfg := testConfig()
	h := SessionHandler(database, ratelimit.NewLimiter(), &resolver.Resolver{DB: database},
		stub.client(), nil, cfg)

	rec := postSession(h, "https://example.com", `{}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp["client_secret"] != "cs_test_123" {
		t.Fatalf("unexpected response: %v", resp)
	}

	if stub.auth != "Bearer sk-proj-validkeylengthok" {
		t.Fatalf("wrong upstream credential: %q", stub.auth)
	}
	if !strings.Contains(string(stub.last), `"wf_abcdefghij"`) {
		t.Fatalf("wrong upstream workflow: %s", stub.last)
	}
	if !strings.Contains(string(stub.last), `"anon_`) {
		t.Fatalf("expected generated anonymous user, got %s", stub.last)
	}

	h2 := rec.Header()
	if h2.Get("X-Request-Id") == "" {
		t.Fatal("missing X-Request-Id")
	}
	if h2.Get("X-RateLimit-Remaining") != "59" {
		t.Fatalf("expected remaining 59, got %q", h2.Get("X-RateLimit-Remaining"))
	}
	if h2.Get("Access-Control-Allow-Origin") != "https://example.com" {
		t.Fatalf("expected origin echoed, got %q", h2.Get("Access-Control-Allow-Origin"))
	}
}

func TestSessionHandler_CORSRejected(t *testing.T) {
	database := newTestDB(t)
	h := SessionHandler(database, ratelimit.NewLimiter(), &resolver.Resolver{DB: database},
		(&upstreamStub{}).client(), nil, testConfig())

	rec := postSession(h, "https://evil.example", `{}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("rejected origin must not be echoed")
	}
	if !strings.Contains(rec.Body.String(), "CORS_NOT_ALLOWED") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestSessionHandler_RegisteredOriginAllowedWithoutStaticList(t *testing.T) {
	database := newTestDB(t)
	seedSite(t, database, "https://registered.example", models.Workflow{
		Key: "main", WorkflowID: "wf_abcdefghij", APIKey: "sk-proj-validkeylengthok",
	})

	cfg := testConfig()
	cfg.AllowOrigins = nil
	h := SessionHandler(database, ratelimit.NewLimiter(), &resolver.Resolver{DB: database},
		(&upstreamStub{}).client(), nil, cfg)

	rec := postSession(h, "https://registered.example", `{}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("registry origin should pass CORS, got %d", rec.Code)
	}
}

func TestSessionHandler_RateLimited(t *testing.T) {
	database := newTestDB(t)
	seedSite(t, database, "https://example.com", models.Workflow{
		Key: "main", WorkflowID: "wf_abcdefghij", APIKey: "sk-proj-validkeylengthok",
	})

	cfg := testConfig()
	cfg.RateLimit = 2
	h := SessionHandler(database, ratelimit.NewLimiter(), &resolver.Resolver{DB: database},
		(&upstreamStub{}).client(), nil, cfg)

	postSession(h, "https://example.com", `{}`)
	postSession(h, "https://example.com", `{}`)
	rec := postSession(h, "https://example.com", `{}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After")
	}
}

func TestSessionHandler_SiteWithoutWorkflows(t *testing.T) {
	database := newTestDB(t)
	seedSite(t, database, "https://example.com")

	h := SessionHandler(database, ratelimit.NewLimiter(), &resolver.Resolver{DB: database},
		(&upstreamStub{}).client(), nil, testConfig())

	rec := postSession(h, "https://example.com", `{}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "WORKFLOW_NOT_FOUND") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestSessionHandler_Misconfigured(t *testing.T) {
	database := newTestDB(t)

	// Same-origin caller, no registry match, no env defaults.
	h := SessionHandler(database, ratelimit.NewLimiter(), &resolver.Resolver{DB: database},
		(&upstreamStub{}).client(), nil, testConfig())

	rec := postSession(h, "", `{}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "SERVER_MISCONFIGURED") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestSessionHandler_UpstreamFailureIsOpaque(t *testing.T) {
	database := newTestDB(t)
	seedSite(t, database, "https://example.com", models.Workflow{
		Key: "main", WorkflowID: "wf_abcdefghij", APIKey: "sk-proj-validkeylengthok",
	})

	stub := &upstreamStub{code: http.StatusUnauthorized, body: `{"error":{"message":"incorrect api key sk-proj-validkeylengthok"}}`}
	h := SessionHandler(database, ratelimit.NewLimiter(), &resolver.Resolver{DB: database},
		stub.client(), nil, testConfig())

	rec := postSession(h, "https://example.com", `{}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "SESSION_CREATE_FAILED") {
		t.Fatalf("expected opaque code, got %s", body)
	}
	// Upstream detail stays server-side.
	if strings.Contains(body, "incorrect api key") || strings.Contains(body, "sk-proj") {
		t.Fatalf("upstream detail leaked: %s", body)
	}
}

func TestSessionHandler_WorkflowConfigOverridesDefault(t *testing.T) {
	database := newTestDB(t)
	seedSite(t, database, "https://example.com", models.Workflow{
		Key:          "main",
		WorkflowID:   "wf_abcdefghij",
		APIKey:       "sk-proj-validkeylengthok",
		WidgetConfig: `{"user_interface":{"theme":"dark"}}`,
	})

	stub := &upstreamStub{}
	h := SessionHandler(database, ratelimit.NewLimiter(), &resolver.Resolver{DB: database},
		stub.client(), json.RawMessage(`{"user_interface":{"theme":"light"}}`), testConfig())

	rec := postSession(h, "https://example.com", `{"user":"alice"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(string(stub.last), `"dark"`) {
		t.Fatalf("expected stored workflow config sent, got %s", stub.last)
	}
	if !strings.Contains(string(stub.last), `"alice"`) {
		t.Fatalf("expected explicit user forwarded, got %s", stub.last)
	}
}

func TestSessionHandler_Preflight(t *testing.T) {
	database := newTestDB(t)
	h := SessionHandler(database, ratelimit.NewLimiter(), &resolver.Resolver{DB: database},
		(&upstreamStub{}).client(), nil, testConfig())

	r := httptest.NewRequest(http.MethodOptions, "/api/chatkit/session", nil)
	r.Header.Set("Origin", "https://static.example")
	rec := httptest.NewRecorder()
	h(rec, r)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "POST, OPTIONS" {
		t.Fatalf("unexpected allow-methods: %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://static.example" {
		t.Fatal("allowed origin missing from preflight")
	}
}
