package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"cv-assistant/internal/shared/telemetry"
)

func TestLoggingIncludesRequiredFields(t *testing.T) {
	gin.SetMode(gin.TestMode)

	core, logs := observer.New(zapcore.InfoLevel)
	prev := telemetry.L()
	telemetry.SetLogger(zap.New(core))
	t.Cleanup(func() { telemetry.SetLogger(prev) })

	router := gin.New()
	router.Use(RequestID(), Auth(), Logging())
	router.POST("/api/v1/chat", func(c *gin.Context) {
		SetWorkspaceID(c, "ws-1")
		c.Set("chatOutcome", "fallback")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", nil)
	req.Header.Set(GuestHeader, "guest1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	entries := logs.FilterMessage("request.complete").All()
	if len(entries) != 1 {
		t.Fatalf("expected one request log, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	for _, key := range []string{"request_id", "owner_id", "workspace_id", "duration_ms", "status", "route"} {
		if _, ok := fields[key]; !ok {
			t.Fatalf("missing log field: %s", key)
		}
	}
	if fields["owner_id"] != "guest:guest1" {
		t.Fatalf("unexpected owner_id: %v", fields["owner_id"])
	}
	if fields["workspace_id"] != "ws-1" {
		t.Fatalf("unexpected workspace_id: %v", fields["workspace_id"])
	}
	if fields["chat_outcome"] != "fallback" {
		t.Fatalf("unexpected chat_outcome: %v", fields["chat_outcome"])
	}
	if fields["route"] != "/api/v1/chat" {
		t.Fatalf("unexpected route: %v", fields["route"])
	}
}
