package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"geowatch/internal/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(handlers...)
	r.GET("/whoami", func(c *gin.Context) {
		userID, _ := c.Get(ContextUserID)
		id, _ := userID.(primitive.ObjectID)
		c.String(http.StatusOK, id.Hex())
	})
	return r
}

func TestAuthRequired(t *testing.T) {
	userID := primitive.NewObjectID()
	valid, err := utils.GenerateToken(userID, "participant", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	expired, err := utils.GenerateToken(userID, "participant", testSecret, -time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	foreign, err := utils.GenerateToken(userID, "participant", "other-secret", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	tests := []struct {
		name       string
		header     string
		query      string
		wantStatus int
	}{
		{name: "bearer header", header: "Bearer " + valid, wantStatus: http.StatusOK},
		{name: "query token", query: "?token=" + valid, wantStatus: http.StatusOK},
		{name: "missing", wantStatus: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + expired, wantStatus: http.StatusUnauthorized},
		{name: "wrong secret", header: "Bearer " + foreign, wantStatus: http.StatusUnauthorized},
	}

	r := newRouter(AuthRequired(testSecret))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK && w.Body.String() != userID.Hex() {
				t.Errorf("user id = %q, want %q", w.Body.String(), userID.Hex())
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(60, 2)
	current := time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return current }

	r := newRouter(limiter.Middleware())
	do := func() int {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
		return w.Code
	}

	if got := do(); got != http.StatusOK {
		t.Fatalf("first request status = %d", got)
	}
	if got := do(); got != http.StatusOK {
		t.Fatalf("second request status = %d", got)
	}
	if got := do(); got != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", got)
	}

	current = current.Add(time.Second)
	if got := do(); got != http.StatusOK {
		t.Errorf("request after refill status = %d", got)
	}
}

func TestRateLimiter_SweepsIdleCallers(t *testing.T) {
	limiter := NewRateLimiter(60, 1)
	current := time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return current }

	limiter.allow("ip:a")
	current = current.Add(limiter.idleTTL + time.Minute)
	limiter.allow("ip:b")

	if _, ok := limiter.visitors["ip:a"]; ok {
		t.Error("idle caller was not swept")
	}
	if _, ok := limiter.visitors["ip:b"]; !ok {
		t.Error("active caller was swept")
	}
}

func TestCORSMiddleware(t *testing.T) {
	r := newRouter(CORSMiddleware([]string{"https://app.example.com"}))

	req := httptest.NewRequest(http.MethodOptions, "/whoami", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("allow origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unexpected allow origin %q for a foreign origin", got)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	r := newRouter(RequestIDMiddleware())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("request id not generated")
	}

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("request id = %q, want the caller's", got)
	}
}
