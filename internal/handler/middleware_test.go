package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/msomdec/calendar-api/internal/domain"
	"github.com/msomdec/calendar-api/internal/handler"
	"github.com/msomdec/calendar-api/internal/oauth"
	"github.com/msomdec/calendar-api/internal/repository/sqlite"
	"github.com/msomdec/calendar-api/internal/service"
)

const testJWTSecret = "test-secret-for-handler-tests-0123456789"

// newTestDeps wires every service against a fresh SQLite database.
func newTestDeps(t *testing.T, providers ...oauth.Provider) handler.Deps {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("New DB: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	tokens := service.NewTokenService(testJWTSecret, time.Hour)
	events := service.NewEventService(db.Events())
	return handler.Deps{
		Auth:        service.NewAuthService(db.Users(), tokens, 4),
		Events:      events,
		Calendar:    service.NewCalendarService(events),
		OAuth:       service.NewOAuthService(oauth.NewRegistry(providers...), db.OAuthStates(), db.Users(), tokens, time.Minute),
		DB:          db,
		FrontendURL: "http://frontend.test",
		CORSOrigins: []string{"http://frontend.test"},
	}
}

func TestRequireAuth_ValidToken(t *testing.T) {
	deps := newTestDeps(t)
	ctx := context.Background()

	if _, err := deps.Auth.Register(ctx, service.RegisterInput{
		Username: "valid", Email: "valid@example.com", Password: "password123",
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	token, err := deps.Auth.Login(ctx, "valid@example.com", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	var gotUser string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user := handler.UserFromContext(r.Context()); user != nil {
			gotUser = user.Username
		}
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	handler.RequireAuth(deps.Auth)(inner).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if gotUser != "valid" {
		t.Fatalf("expected user valid in context, got %q", gotUser)
	}
}

func TestRequireAuth_Rejects(t *testing.T) {
	deps := newTestDeps(t)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"empty token", "Bearer "},
		{"garbage token", "Bearer not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			})

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler.RequireAuth(deps.Auth)(inner).ServeHTTP(w, req)

			if called {
				t.Fatal("inner handler should not run")
			}
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", w.Code)
			}
			if got := w.Header().Get("WWW-Authenticate"); got != "Bearer" {
				t.Fatalf("expected WWW-Authenticate Bearer, got %q", got)
			}
		})
	}
}

func TestRequireAuth_DeletedUser(t *testing.T) {
	deps := newTestDeps(t)

	// A well-signed token for an id that has no account.
	tokens := service.NewTokenService(testJWTSecret, time.Hour)
	token, _, err := tokens.Issue(&domain.User{ID: 999, Username: "ghost", Email: "ghost@example.com"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	handler.RequireAuth(deps.Auth)(http.NotFoundHandler()).ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestUserFromContext_Empty(t *testing.T) {
	if u := handler.UserFromContext(context.Background()); u != nil {
		t.Fatalf("expected nil user, got %+v", u)
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv := httptest.NewServer(handler.NewRouter(newTestDeps(t)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()

	want := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	}
	for k, v := range want {
		if got := resp.Header.Get(k); got != v {
			t.Fatalf("%s: expected %q, got %q", k, v, got)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := httptest.NewServer(handler.NewRouter(newTestDeps(t)))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/events/", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Origin", "http://frontend.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS /events/: %v", err)
	}
	resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://frontend.test" {
		t.Fatalf("expected the frontend origin to be allowed, got %q", got)
	}
}

func TestTracing_NamesSpanByRoute(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { tp.Shutdown(context.Background()) })

	deps := newTestDeps(t)
	deps.Tracer = tp.Tracer("test")
	srv := httptest.NewServer(handler.NewRouter(deps))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/events/5")
	if err != nil {
		t.Fatalf("GET /events/5: %v", err)
	}
	resp.Body.Close()

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if got := spans[0].Name(); got != "GET /events/{id}" {
		t.Fatalf("expected span named by route pattern, got %q", got)
	}
	var route string
	for _, kv := range spans[0].Attributes() {
		if kv.Key == "http.route" {
			route = kv.Value.AsString()
		}
	}
	if route != "/events/{id}" {
		t.Fatalf("expected http.route /events/{id}, got %q", route)
	}
}
