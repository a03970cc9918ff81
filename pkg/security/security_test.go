package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestLimiterBurstPerKey(t *testing.T) {
	l := NewLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !l.Allow("10.0.0.1") {
			t.Fatalf("request %d rejected within burst", i)
		}
	}
	if l.Allow("10.0.0.1") {
		t.Error("request beyond burst allowed")
	}
	if !l.Allow("10.0.0.2") {
		t.Error("other key should have its own bucket")
	}
}

func TestLimiterUpdate(t *testing.T) {
	l := NewLimiter(1, time.Minute)
	l.Allow("old")

	l.Update(5, time.Minute)
	if b := l.visitors["old"].limiter.Burst(); b != 5 {
		t.Errorf("existing visitor burst = %d, want 5", b)
	}
	for i := 0; i < 5; i++ {
		if !l.Allow("new") {
			t.Fatalf("request %d rejected after raising the limit", i)
		}
	}
}

func TestLimiterSweep(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewLimiter(10, time.Minute)
	l.now = func() time.Time { return now }

	l.Allow("stale")
	now = now.Add(2 * time.Minute)
	l.Allow("fresh")
	now = now.Add(90 * time.Second)

	if removed := l.Sweep(); removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, ok := l.visitors["fresh"]; !ok {
		t.Error("fresh visitor was removed")
	}
}

func TestLimiterMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewLimiter(1, time.Minute).Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 2)
	for i := range codes {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes[i] = w.Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 429]", codes)
	}
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    string
	}{
		{"listed origin", []string{"https://quiz.example"}, "https://quiz.example", "https://quiz.example"},
		{"unlisted origin", []string{"https://quiz.example"}, "https://evil.example", ""},
		{"wildcard", []string{"*"}, "https://any.example", "https://any.example"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(CORS(tt.allowed))
			r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("allow origin = %q, want %q", got, tt.want)
			}
		})
	}

	r := gin.New()
	r.Use(CORS(nil))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/anything", nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight = %d, want 204", w.Code)
	}
}
