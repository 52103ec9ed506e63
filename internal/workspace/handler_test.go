package workspace

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"cv-assistant/internal/editor"
	"cv-assistant/internal/shared/server/middleware"
)

func newTestRouter(t *testing.T, f fixture) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Auth())
	NewHandler(f.manager).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.GuestHeader, "guest-1")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func doUpload(t *testing.T, r http.Handler, files map[string]string, order []string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range order {
		part, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		_, _ = part.Write([]byte(files[name]))
	}
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/records/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(middleware.GuestHeader, "guest-1")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func decode(t *testing.T, resp *httptest.ResponseRecorder, into any) {
	t.Helper()
	if err := json.Unmarshal(resp.Body.Bytes(), into); err != nil {
		t.Fatalf("decode %s: %v", resp.Body.String(), err)
	}
}

func TestHandlerRequiresGuestIdentity(t *testing.T) {
	r := newTestRouter(t, newFixture(t, fixtureOptions{}))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/records", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestHandlerRecordLifecycle(t *testing.T) {
	r := newTestRouter(t, newFixture(t, fixtureOptions{}))

	resp := doUpload(t, r, map[string]string{
		"resume.txt": "Engineer: Acme\nLead: Beta",
		"other.txt":  "Analyst: Gamma",
	}, []string{"resume.txt", "other.txt"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("upload expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = doJSON(t, r, http.MethodGet, "/api/v1/records/active", nil)
	var view editor.View
	decode(t, resp, &view)
	if view.Name != "resume.txt" || len(view.Sections) != len(editor.Sections) {
		t.Fatalf("unexpected view %+v", view)
	}

	resp = doJSON(t, r, http.MethodDelete, "/api/v1/records/active/rows/experience/0", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("delete row expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = doJSON(t, r, http.MethodPost, "/api/v1/records/active/rows", gin.H{"section": "certifications"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("add row expected 201, got %d", resp.Code)
	}
	resp = doJSON(t, r, http.MethodPatch, "/api/v1/records/active/rows/certifications/0", gin.H{"tag": "title", "value": "CKA"})
	if resp.Code != http.StatusOK {
		t.Fatalf("set field expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = doJSON(t, r, http.MethodPost, "/api/v1/records/switch", gin.H{"index": 1})
	decode(t, resp, &view)
	if view.Name != "other.txt" {
		t.Fatalf("expected other.txt active, got %q", view.Name)
	}
	resp = doJSON(t, r, http.MethodPost, "/api/v1/records/switch", gin.H{"index": 0})
	if resp.Code != http.StatusOK {
		t.Fatalf("switch back expected 200, got %d", resp.Code)
	}

	resp = doJSON(t, r, http.MethodPost, "/api/v1/records/submit", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("submit expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var submitted struct {
		Record struct {
			Name           string `json:"name"`
			Experience     []any  `json:"experience"`
			Certifications []struct {
				Title string `json:"title"`
			} `json:"certifications"`
		} `json:"record"`
	}
	decode(t, resp, &submitted)
	if submitted.Record.Name != "resume.txt" || len(submitted.Record.Experience) != 1 ||
		len(submitted.Record.Certifications) != 1 || submitted.Record.Certifications[0].Title != "CKA" {
		t.Fatalf("unexpected submitted record %+v", submitted.Record)
	}

	resp = doJSON(t, r, http.MethodDelete, "/api/v1/submitted/resume.txt", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("delete submitted expected 200, got %d", resp.Code)
	}
	resp = doJSON(t, r, http.MethodDelete, "/api/v1/submitted/resume.txt", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("second delete expected 404, got %d", resp.Code)
	}

	resp = doJSON(t, r, http.MethodPost, "/api/v1/records/remove", gin.H{"name": "resume.txt"})
	var summary Summary
	decode(t, resp, &summary)
	if len(summary.Names) != 1 || summary.ActiveName != "other.txt" || summary.ActiveIndex != 0 {
		t.Fatalf("unexpected summary after remove %+v", summary)
	}
	resp = doJSON(t, r, http.MethodPost, "/api/v1/records/remove", gin.H{"name": "resume.txt"})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("second remove expected 404, got %d", resp.Code)
	}
	resp = doJSON(t, r, http.MethodPost, "/api/v1/records/remove", gin.H{})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("remove without name expected 400, got %d", resp.Code)
	}
}

func TestHandlerUploadDataError(t *testing.T) {
	r := newTestRouter(t, newFixture(t, fixtureOptions{}))

	resp := doUpload(t, r, map[string]string{
		"good.txt":   "Engineer: Acme",
		"broken.txt": "broken",
	}, []string{"good.txt", "broken.txt"})
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.Code)
	}
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Details struct {
				File   string   `json:"file"`
				Loaded []string `json:"loaded"`
			} `json:"details"`
		} `json:"error"`
	}
	decode(t, resp, &body)
	if body.Error.Code != "data_error" || body.Error.Details.File != "broken.txt" || len(body.Error.Details.Loaded) != 1 {
		t.Fatalf("unexpected error body %s", resp.Body.String())
	}

	resp = doJSON(t, r, http.MethodGet, "/api/v1/records", nil)
	var summary Summary
	decode(t, resp, &summary)
	if strings.Join(summary.Names, ",") != "good.txt" {
		t.Fatalf("earlier file not kept: %+v", summary)
	}
}

func TestHandlerErrors(t *testing.T) {
	r := newTestRouter(t, newFixture(t, fixtureOptions{}))

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{name: "no active record", method: http.MethodGet, path: "/api/v1/records/active", want: http.StatusConflict},
		{name: "submit without record", method: http.MethodPost, path: "/api/v1/records/submit", want: http.StatusConflict},
		{name: "switch without index", method: http.MethodPost, path: "/api/v1/records/switch", body: gin.H{}, want: http.StatusBadRequest},
		{name: "switch out of range", method: http.MethodPost, path: "/api/v1/records/switch", body: gin.H{"index": 3}, want: http.StatusBadRequest},
		{name: "unknown section", method: http.MethodPost, path: "/api/v1/records/active/rows", body: gin.H{"section": "hobbies"}, want: http.StatusBadRequest},
		{name: "empty prompt", method: http.MethodPost, path: "/api/v1/chat", body: gin.H{"prompt": " "}, want: http.StatusBadRequest},
		{name: "recommend without submitted", method: http.MethodPost, path: "/api/v1/recommendations", want: http.StatusConflict},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, r, tt.method, tt.path, tt.body)
			if resp.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, resp.Code, resp.Body.String())
			}
		})
	}
}

func TestHandlerChatStreamsSSE(t *testing.T) {
	conn := newStreamConn(`{"choices":[{"delta":{"content":"Hi "}}]}`, `{"choices":[{"delta":{"content":"there"},"finish_reason":"stop"}]}`)
	r := newTestRouter(t, newFixture(t, fixtureOptions{dialer: streamDialer{conn: conn}}))

	resp := doJSON(t, r, http.MethodPost, "/api/v1/chat", gin.H{"prompt": "hello"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("unexpected content type %q", ct)
	}
	body := resp.Body.String()
	if strings.Count(body, "event:token") != 2 || strings.Count(body, "event:message") != 1 || strings.Contains(body, "event:discard") {
		t.Fatalf("unexpected event stream:\n%s", body)
	}
	if !strings.Contains(body, `"text":"Hi there"`) || !strings.Contains(body, `"outcome":"streamed"`) {
		t.Fatalf("final message missing:\n%s", body)
	}

	resp = doJSON(t, r, http.MethodGet, "/api/v1/chat/transcript", nil)
	var transcript struct {
		Messages []struct {
			Text   string `json:"text"`
			IsUser bool   `json:"isUser"`
		} `json:"messages"`
	}
	decode(t, resp, &transcript)
	if len(transcript.Messages) != 2 || !transcript.Messages[0].IsUser || transcript.Messages[1].Text != "Hi there" {
		t.Fatalf("unexpected transcript %+v", transcript.Messages)
	}
}

func TestHandlerChatFallbackEmitsDiscard(t *testing.T) {
	r := newTestRouter(t, newFixture(t, fixtureOptions{}))

	resp := doJSON(t, r, http.MethodPost, "/api/v1/chat", gin.H{"prompt": "hello"})
	body := resp.Body.String()
	if strings.Count(body, "event:discard") != 1 || strings.Count(body, "event:message") != 1 {
		t.Fatalf("unexpected event stream:\n%s", body)
	}
	if !strings.Contains(body, "fallback answer") {
		t.Fatalf("fallback answer missing:\n%s", body)
	}
}

func TestHandlerRulesAndRecommendations(t *testing.T) {
	completer := &fakeCompleter{answer: `[{"title":"Platform Engineer","reason":"Go"}]`}
	r := newTestRouter(t, newFixture(t, fixtureOptions{completer: completer}))

	resp := doJSON(t, r, http.MethodPut, "/api/v1/rules", gin.H{"rules": []string{"be brief", " "}})
	var rules struct {
		Rules []string `json:"rules"`
	}
	decode(t, resp, &rules)
	if len(rules.Rules) != 1 || rules.Rules[0] != "be brief" {
		t.Fatalf("unexpected rules %+v", rules)
	}
	resp = doJSON(t, r, http.MethodGet, "/api/v1/rules", nil)
	decode(t, resp, &rules)
	if len(rules.Rules) != 1 {
		t.Fatalf("rules not kept: %+v", rules)
	}

	_ = doUpload(t, r, map[string]string{"resume.txt": "Engineer: Acme"}, []string{"resume.txt"})
	_ = doJSON(t, r, http.MethodPost, "/api/v1/records/submit", nil)

	resp = doJSON(t, r, http.MethodPost, "/api/v1/recommendations", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("recommend expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	resp = doJSON(t, r, http.MethodGet, "/api/v1/recommendations", nil)
	var recs struct {
		Recommendations []struct {
			Title string `json:"title"`
		} `json:"recommendations"`
	}
	decode(t, resp, &recs)
	if len(recs.Recommendations) != 1 || recs.Recommendations[0].Title != "Platform Engineer" {
		t.Fatalf("unexpected recommendations %+v", recs)
	}
}
