package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"voice-intake/internal/shared/telemetry"
)

func TestLoggingIncludesRequiredFields(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	telemetry.SetOutput(&buf, "info")
	t.Cleanup(func() { telemetry.SetOutput(os.Stdout, "info") })

	router := gin.New()
	router.Use(RequestID(), Logging())
	router.POST("/sessions/:id/transcript", func(c *gin.Context) {
		c.Set(SessionIDKey, c.Param("id"))
		c.Set(StatusTransitionKey, "capturing->awaiting_answer")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodPost, "/sessions/s-1/transcript", nil)
	req.Header.Set("X-Request-Id", "req-1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) == 0 || lines[0] == "" {
		t.Fatalf("expected log output")
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &payload); err != nil {
		t.Fatalf("decode log json: %v", err)
	}

	required := []string{"request_id", "session_id", "tracking_id", "duration_ms", "status", "status_transition", "route"}
	for _, key := range required {
		if _, ok := payload[key]; !ok {
			t.Fatalf("missing log field: %s", key)
		}
	}
	if payload["request_id"] != "req-1" {
		t.Fatalf("unexpected request_id: %v", payload["request_id"])
	}
	if payload["session_id"] != "s-1" {
		t.Fatalf("unexpected session_id: %v", payload["session_id"])
	}
	if payload["status_transition"] != "capturing->awaiting_answer" {
		t.Fatalf("unexpected status_transition: %v", payload["status_transition"])
	}
	if payload["route"] != "/sessions/:id/transcript" {
		t.Fatalf("unexpected route: %v", payload["route"])
	}
}
