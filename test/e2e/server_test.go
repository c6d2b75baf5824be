package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sundayezeilo/bookmarker/internal/app"
	"github.com/sundayezeilo/bookmarker/internal/config"
	"github.com/sundayezeilo/bookmarker/internal/metrics"
	"github.com/sundayezeilo/bookmarker/internal/pgstore"
	"github.com/sundayezeilo/bookmarker/internal/server"
)

const api = "/api/v1"

// testApp holds the application components for e2e testing
type testApp struct {
	handler http.Handler
	dbPool  *pgxpool.Pool
	cleanup func()
}

// setupTestApp creates a test application with a real database
func setupTestApp(t *testing.T) *testApp {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping e2e test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	host, err := pgContainer.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("failed to get mapped port: %v", err)
	}

	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:            "8080",
			Host:            "localhost",
			BaseURL:         "http://localhost:8080",
			APIPrefix:       api,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: config.DatabaseConfig{
			Host:     host,
			Port:     port.Port(),
			User:     "testuser",
			Password: "testpass",
			Name:     "testdb",
			SSLMode:  "disable",
			MaxConns: 10,
			MinConns: 2,
		},
		Auth: config.AuthConfig{
			JWTSecret:  "e2e-secret-e2e-secret-e2e-secret-0",
			Issuer:     "bookmarker",
			AccessTTL:  15 * time.Minute,
			RefreshTTL: time.Hour,
			BcryptCost: 4,
		},
		Pagination: config.PaginationConfig{
			DefaultPerPage: 5,
			MaxPerPage:     100,
		},
		App: config.AppConfig{
			Environment: "test",
			LogLevel:    "error",
		},
		Observability: config.ObservabilityConfig{
			ServiceName:    "bookmarker-test",
			ServiceVersion: "test",
			MetricsEnabled: true,
		},
	}

	logger := setupTestLogger()

	dbPool, err := pgstore.Connect(ctx, cfg.Database, pgstore.Options{}, logger)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	if err := pgstore.Migrate(ctx, dbPool); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	m := metrics.New()
	srv := server.New(cfg, logger, app.BuildHandlers(cfg, logger, dbPool, m))

	cleanup := func() {
		dbPool.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Errorf("failed to terminate container: %v", err)
		}
	}

	return &testApp{
		handler: srv.Handler(),
		dbPool:  dbPool,
		cleanup: cleanup,
	}
}

/***************
 * Auth
 ***************/

func TestHealthCheck_E2E(t *testing.T) {
	app := setupTestApp(t)
	defer app.cleanup()

	rr := app.do(t, http.MethodGet, "/x/health", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var response map[string]string
	decode(t, rr, &response)
	if response["status"] != "ok" {
		t.Errorf("expected status 'ok', got %s", response["status"])
	}
}

func TestAuthFlow_E2E(t *testing.T) {
	app := setupTestApp(t)
	defer app.cleanup()

	rr := app.do(t, http.MethodPost, api+"/auth/register", "", map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "secret1",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register: expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	tests := []struct {
		name           string
		body           map[string]string
		expectedStatus int
		expectedMsg    string
	}{
		{
			name:           "duplicate email",
			body:           map[string]string{"username": "alice2", "email": "alice@example.com", "password": "secret1"},
			expectedStatus: http.StatusConflict,
			expectedMsg:    "email taken",
		},
		{
			name:           "duplicate username",
			body:           map[string]string{"username": "alice", "email": "other@example.com", "password": "secret1"},
			expectedStatus: http.StatusConflict,
			expectedMsg:    "username taken",
		},
		{
			name:           "short password",
			body:           map[string]string{"username": "bob", "email": "bob@example.com", "password": "abc"},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "password too short",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := app.do(t, http.MethodPost, api+"/auth/register", "", tt.body)
			if rr.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, rr.Code)
			}
			var errResp map[string]any
			decode(t, rr, &errResp)
			if errResp["message"] != tt.expectedMsg {
				t.Errorf("expected message %q, got %v", tt.expectedMsg, errResp["message"])
			}
		})
	}

	rr = app.do(t, http.MethodPost, api+"/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong-password",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("login with wrong password: expected status 401, got %d", rr.Code)
	}

	access, refresh := app.login(t, "alice@example.com", "secret1")

	rr = app.do(t, http.MethodGet, api+"/auth/me", access, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("me: expected status 200, got %d", rr.Code)
	}
	var me struct {
		User struct {
			Username string `json:"username"`
			Email    string `json:"email"`
		} `json:"user"`
	}
	decode(t, rr, &me)
	if me.User.Username != "alice" || me.User.Email != "alice@example.com" {
		t.Errorf("me returned %+v", me.User)
	}

	rr = app.do(t, http.MethodGet, api+"/auth/me", refresh, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("me with refresh token: expected status 401, got %d", rr.Code)
	}

	rr = app.do(t, http.MethodGet, api+"/auth/token/refresh", refresh, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh: expected status 200, got %d", rr.Code)
	}
	var refreshed struct {
		AccessToken string `json:"access_token"`
	}
	decode(t, rr, &refreshed)

	rr = app.do(t, http.MethodGet, api+"/bookmarks", refreshed.AccessToken, nil)
	if rr.Code != http.StatusOK {
		t.Errorf("list with refreshed token: expected status 200, got %d", rr.Code)
	}

	rr = app.do(t, http.MethodGet, api+"/bookmarks", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("list without token: expected status 401, got %d", rr.Code)
	}
}

/***************
 * Bookmarks
 ***************/

type bookmarkResponse struct {
	ID       int64  `json:"id"`
	URL      string `json:"url"`
	ShortURL string `json:"short_url"`
	Body     string `json:"body"`
	Visits   int64  `json:"visits"`
}

func TestBookmarkCRUD_E2E(t *testing.T) {
	app := setupTestApp(t)
	defer app.cleanup()

	token := app.signUp(t, "carol")
	other := app.signUp(t, "dave")

	rr := app.do(t, http.MethodPost, api+"/bookmarks/", token, map[string]string{
		"url":  "https://go.dev/doc",
		"body": "docs",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("create: expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var created bookmarkResponse
	decode(t, rr, &created)
	if created.ShortURL == "" || created.URL != "https://go.dev/doc" || created.Visits != 0 {
		t.Fatalf("create returned %+v", created)
	}

	item := fmt.Sprintf("%s/bookmarks/%d", api, created.ID)

	tests := []struct {
		name           string
		method         string
		path           string
		token          string
		body           map[string]string
		expectedStatus int
	}{
		{"owner reads", http.MethodGet, item, token, nil, http.StatusOK},
		{"other user reads", http.MethodGet, item, other, nil, http.StatusNotFound},
		{"other user updates", http.MethodPatch, item, other, map[string]string{"url": "https://evil.example"}, http.StatusNotFound},
		{"other user deletes", http.MethodDelete, item, other, nil, http.StatusNotFound},
		{"unknown id", http.MethodGet, api + "/bookmarks/999999", token, nil, http.StatusNotFound},
		{"invalid url", http.MethodPost, api + "/bookmarks", token, map[string]string{"url": "not-a-url"}, http.StatusBadRequest},
		{"missing url", http.MethodPost, api + "/bookmarks", token, map[string]string{"body": "x"}, http.StatusBadRequest},
		{"duplicate url", http.MethodPost, api + "/bookmarks", other, map[string]string{"url": "https://go.dev/doc"}, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body any
			if tt.body != nil {
				body = tt.body
			}
			rr := app.do(t, tt.method, tt.path, tt.token, body)
			if rr.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d: %s", tt.expectedStatus, rr.Code, rr.Body.String())
			}
		})
	}

	rr = app.do(t, http.MethodPatch, item, token, map[string]string{
		"url":  "https://go.dev/ref/spec",
		"body": "language",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("update: expected status 200, got %d", rr.Code)
	}
	var updated bookmarkResponse
	decode(t, rr, &updated)
	if updated.URL != "https://go.dev/ref/spec" || updated.Body != "language" {
		t.Errorf("update returned %+v", updated)
	}
	if updated.ShortURL != created.ShortURL {
		t.Errorf("short_url changed on update: %s -> %s", created.ShortURL, updated.ShortURL)
	}

	rr = app.do(t, http.MethodDelete, item, token, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete: expected status 204, got %d", rr.Code)
	}
	rr = app.do(t, http.MethodGet, item, token, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("get after delete: expected status 404, got %d", rr.Code)
	}
	rr = app.do(t, http.MethodGet, "/"+created.ShortURL, "", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("redirect after delete: expected status 404, got %d", rr.Code)
	}
}

func TestPagination_E2E(t *testing.T) {
	app := setupTestApp(t)
	defer app.cleanup()

	token := app.signUp(t, "erin")
	for i := range 12 {
		rr := app.do(t, http.MethodPost, api+"/bookmarks", token, map[string]string{
			"url": fmt.Sprintf("https://example.com/page-%d", i),
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("create %d: expected status 200, got %d", i, rr.Code)
		}
	}

	tests := []struct {
		name           string
		query          string
		expectedStatus int
		expectedItems  int
		expectedPages  int
		hasNext        bool
		hasPrev        bool
	}{
		{"default page size", "", http.StatusOK, 5, 3, true, false},
		{"middle page", "?page=2&per_page=5", http.StatusOK, 5, 3, true, true},
		{"last page", "?page=3&per_page=5", http.StatusOK, 2, 3, false, true},
		{"past the end", "?page=9&per_page=5", http.StatusOK, 0, 3, false, true},
		{"huge page", "?page=184467440737095516&per_page=100", http.StatusOK, 0, 1, false, true},
		{"zero page", "?page=0", http.StatusBadRequest, 0, 0, false, false},
		{"non numeric", "?per_page=abc", http.StatusBadRequest, 0, 0, false, false},
		{"above max", "?per_page=101", http.StatusBadRequest, 0, 0, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := app.do(t, http.MethodGet, api+"/bookmarks"+tt.query, token, nil)
			if rr.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.expectedStatus, rr.Code, rr.Body.String())
			}
			if tt.expectedStatus != http.StatusOK {
				return
			}

			var resp struct {
				Metadata struct {
					TotalPages int   `json:"total_pages"`
					HasNext    bool  `json:"has_next"`
					HasPrev    bool  `json:"has_prev"`
					Total      int64 `json:"total"`
				} `json:"metadata"`
				Data []bookmarkResponse `json:"data"`
			}
			decode(t, rr, &resp)

			if resp.Data == nil {
				t.Error("data should be an empty array, not null")
			}
			if len(resp.Data) != tt.expectedItems {
				t.Errorf("expected %d items, got %d", tt.expectedItems, len(resp.Data))
			}
			if resp.Metadata.TotalPages != tt.expectedPages {
				t.Errorf("expected %d pages, got %d", tt.expectedPages, resp.Metadata.TotalPages)
			}
			if resp.Metadata.HasNext != tt.hasNext || resp.Metadata.HasPrev != tt.hasPrev {
				t.Errorf("has_next/has_prev = %v/%v, want %v/%v",
					resp.Metadata.HasNext, resp.Metadata.HasPrev, tt.hasNext, tt.hasPrev)
			}
			if resp.Metadata.Total != 12 {
				t.Errorf("expected total 12, got %d", resp.Metadata.Total)
			}
		})
	}
}

/***************
 * Redirects
 ***************/

func TestRedirectCountsVisits_E2E(t *testing.T) {
	app := setupTestApp(t)
	defer app.cleanup()

	token := app.signUp(t, "frank")
	rr := app.do(t, http.MethodPost, api+"/bookmarks", token, map[string]string{
		"url":  "https://example.com/track-test",
		"body": "tracked",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("create: expected status 200, got %d", rr.Code)
	}
	var created bookmarkResponse
	decode(t, rr, &created)

	const visits = 7
	var wg sync.WaitGroup
	errs := make(chan error, visits)
	for i := range visits {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodGet, "/"+created.ShortURL, nil)
			rr := httptest.NewRecorder()
			app.handler.ServeHTTP(rr, req)
			if rr.Code != http.StatusFound {
				errs <- fmt.Errorf("visit %d failed with status %d", index, rr.Code)
				return
			}
			if loc := rr.Header().Get("Location"); loc != "https://example.com/track-test" {
				errs <- fmt.Errorf("visit %d redirected to %q", index, loc)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	rr = app.do(t, http.MethodGet, api+"/bookmarks/stats", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("stats: expected status 200, got %d", rr.Code)
	}
	var stats []bookmarkResponse
	decode(t, rr, &stats)
	if len(stats) != 1 {
		t.Fatalf("expected 1 stat, got %d", len(stats))
	}
	if stats[0].Visits != visits {
		t.Errorf("expected %d visits, got %d", visits, stats[0].Visits)
	}
	if stats[0].ShortURL != created.ShortURL || stats[0].Body != "tracked" {
		t.Errorf("stats returned %+v", stats[0])
	}

	var stored int64
	err := app.dbPool.QueryRow(context.Background(),
		`SELECT visits FROM bookmarks WHERE short_url = $1`, created.ShortURL).Scan(&stored)
	if err != nil {
		t.Fatalf("failed to read visits from database: %v", err)
	}
	if stored != visits {
		t.Errorf("expected stored visits %d, got %d", visits, stored)
	}

	for _, code := range []string{"zzzzzz", strings.Repeat("a", 12)} {
		rr = app.do(t, http.MethodGet, "/"+code, "", nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("unknown code %q: expected status 404, got %d", code, rr.Code)
		}
	}

	rr = app.do(t, http.MethodGet, "/x/metrics", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics: expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `bookmarker_redirects_total{result="found"} 7`) {
		t.Error("metrics output missing found redirect count")
	}
}

func TestConcurrentBookmarkCreation_E2E(t *testing.T) {
	app := setupTestApp(t)
	defer app.cleanup()

	token := app.signUp(t, "grace")

	concurrency := 10
	errChan := make(chan error, concurrency)
	codeChan := make(chan string, concurrency)

	for i := range concurrency {
		go func(index int) {
			req := newRequest(http.MethodPost, api+"/bookmarks", token, map[string]string{
				"url": fmt.Sprintf("https://example.com/concurrent-%d", index),
			})
			rr := httptest.NewRecorder()
			app.handler.ServeHTTP(rr, req)

			if rr.Code != http.StatusOK {
				errChan <- fmt.Errorf("request %d failed with status %d", index, rr.Code)
				codeChan <- ""
				return
			}

			var response bookmarkResponse
			if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
				errChan <- err
				codeChan <- ""
				return
			}

			codeChan <- response.ShortURL
			errChan <- nil
		}(i)
	}

	codes := make(map[string]bool)
	for range concurrency {
		if err := <-errChan; err != nil {
			t.Errorf("concurrent request failed: %v", err)
		}
		code := <-codeChan
		if code == "" {
			continue
		}
		if codes[code] {
			t.Errorf("duplicate short_url generated: %s", code)
		}
		codes[code] = true
	}

	if len(codes) != concurrency {
		t.Errorf("expected %d unique short urls, got %d", concurrency, len(codes))
	}
}

// Helper functions

func newRequest(method, path, token string, body any) *http.Request {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func (a *testApp) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, newRequest(method, path, token, body))
	return rr
}

func (a *testApp) login(t *testing.T, email, password string) (access, refresh string) {
	t.Helper()
	rr := a.do(t, http.MethodPost, api+"/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("login: expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		User struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
		} `json:"user"`
	}
	decode(t, rr, &resp)
	return resp.User.AccessToken, resp.User.RefreshToken
}

// signUp registers username and returns an access token for it.
func (a *testApp) signUp(t *testing.T, username string) string {
	t.Helper()
	email := username + "@example.com"
	rr := a.do(t, http.MethodPost, api+"/auth/register", "", map[string]string{
		"username": username,
		"email":    email,
		"password": "secret1",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register %s: expected status 201, got %d: %s", username, rr.Code, rr.Body.String())
	}
	access, _ := a.login(t, email, "secret1")
	return access
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}
