package logger

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRedactQuery(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{"empty", "", ""},
		{"plain", "page=2&status=pending", "page=2&status=pending"},
		{"access token", "token=eyJhbGciOiJIUzI1NiJ9.secret.sig", "token=%2A%2A%2A"},
		{"mixed case key", "page=1&Refresh_Token=abc", "Refresh_Token=%2A%2A%2A&page=1"},
		{"malformed", "token=%zz", "[unparseable]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := redactQuery(tt.raw); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestGinLogger_RedactsStreamToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(io.Discard)

	r := gin.New()
	r.Use(GinLogger())
	r.GET("/api/notifications/stream", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/api/notifications/stream?token=eyJhbGciOiJIUzI1NiJ9.secret.sig", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	if strings.Contains(out, "eyJhbGciOiJIUzI1NiJ9") {
		t.Errorf("token leaked into the request log: %s", out)
	}
	if !strings.Contains(out, `"path":"/api/notifications/stream"`) {
		t.Errorf("expected the request to be logged, got %s", out)
	}
}
