//go:build !integration

package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"telegram-video-courier/internal/domain/model"
)

type memRunRepo struct {
	records []*model.RunRecord
	lastN   int
}

func (m *memRunRepo) Save(ctx context.Context, rec *model.RunRecord) error {
	m.records = append(m.records, rec)
	return nil
}

func (m *memRunRepo) Recent(ctx context.Context, limit int) ([]*model.RunRecord, error) {
	m.lastN = limit
	return m.records, nil
}

func newTestWebServer(runs *memRunRepo) http.Handler {
	logger := zerolog.Nop()
	auth := NewAuthManager("test-hmac-secret", false, time.Minute)
	srv := NewServer(runs, auth, "hunter2", &logger)
	r := chi.NewRouter()
	srv.RegisterRoutes(r)
	return r
}

func login(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/login", strings.NewReader(`{"password":"hunter2"}`))
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Token == "" {
		t.Fatalf("no token in login response: %s", rec.Body.String())
	}
	return body.Token
}

func TestAdminLogin(t *testing.T) {
	h := newTestWebServer(&memRunRepo{})

	t.Run("should refuse a wrong password", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/login", strings.NewReader(`{"password":"guess"}`))
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("should mint a token for the right password", func(t *testing.T) {
		if tok := login(t, h); tok == "" {
			t.Fatal("empty token")
		}
	})
}

func TestAdminRuns(t *testing.T) {
	runs := &memRunRepo{records: []*model.RunRecord{
		{ID: "01RUN", ChatID: 42, SourceURL: "https://youtu.be/x", Outcome: "delivered", Method: "upload_video"},
	}}
	h := newTestWebServer(runs)

	t.Run("should refuse an unauthenticated request", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("should refuse a garbage token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("should list runs with a bearer token", func(t *testing.T) {
		token := login(t, h)
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if !strings.Contains(rec.Body.String(), "01RUN") {
			t.Errorf("response should include the run, got %s", rec.Body.String())
		}
	})
}

func TestAuthManager_ExpiredToken(t *testing.T) {
	auth := NewAuthManager("test-hmac-secret", false, -time.Minute)
	rec := httptest.NewRecorder()
	token, err := auth.Mint(rec)
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	if _, err := auth.ParseFromRequest(req); err == nil {
		t.Fatal("an expired token must not validate")
	}
}
