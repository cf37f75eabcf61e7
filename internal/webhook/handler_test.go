package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jenkins-hooks/internal/jenkins"
	"github.com/jenkins-hooks/pkg/webhook"
)

type stubProcessor struct {
	events []webhook.PushEvent
}

func (s *stubProcessor) Process(_ context.Context, event webhook.PushEvent) []jenkins.Outcome {
	s.events = append(s.events, event)
	return nil
}

type panickingProcessor struct{}

func (panickingProcessor) Process(context.Context, webhook.PushEvent) []jenkins.Outcome {
	panic("boom")
}

func newTestRouter(proc Processor) *gin.Engine {
	return newLoggedRouter(proc, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newLoggedRouter(proc Processor, logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(NewDecoder(DefaultEventHeader), proc, logger)
	r := gin.New()
	r.Use(gin.Recovery())
	r.POST("/", h.Handle)
	return r
}

func post(t *testing.T, r http.Handler, event string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body []byte
	switch p := payload.(type) {
	case string:
		body = []byte(p)
	default:
		var err error
		body, err = json.Marshal(p)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	if event != "" {
		req.Header.Set(DefaultEventHeader, event)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandlerProcessesPush(t *testing.T) {
	proc := &stubProcessor{}
	r := newTestRouter(proc)

	rec := post(t, r, "push", map[string]any{
		"ref":        "refs/heads/main",
		"repository": map[string]any{"name": "service"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, proc.events, 1)
	assert.Equal(t, "service", proc.events[0].Repository)
	assert.Equal(t, "main", proc.events[0].Branch)
}

func TestHandlerDropsNonPush(t *testing.T) {
	proc := &stubProcessor{}
	r := newTestRouter(proc)

	rec := post(t, r, "pull_request", map[string]any{
		"ref":        "refs/heads/main",
		"repository": map[string]any{"name": "service"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, proc.events)
}

func TestHandlerDropsMissingHeader(t *testing.T) {
	proc := &stubProcessor{}
	r := newTestRouter(proc)

	rec := post(t, r, "", map[string]any{
		"ref":        "refs/heads/main",
		"repository": map[string]any{"name": "service"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, proc.events)
}

func TestHandlerDropsMalformedBody(t *testing.T) {
	proc := &stubProcessor{}
	r := newTestRouter(proc)

	rec := post(t, r, "push", "{not json")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Empty(t, proc.events)
}

func TestHandlerLogsRejectionAtWarn(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	proc := &stubProcessor{}
	r := newLoggedRouter(proc, logger)

	rec := post(t, r, "pull_request", `{}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	var entry struct {
		Level string `json:"level"`
		Msg   string `json:"msg"`
		Error string `json:"error"`
	}
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "WARN", entry.Level)
	assert.Equal(t, "webhook rejected", entry.Msg)
	assert.Contains(t, entry.Error, "pull_request")
}

func TestHandlerPanicLeavesResponseToRecovery(t *testing.T) {
	r := newTestRouter(panickingProcessor{})

	rec := post(t, r, "push", map[string]any{
		"ref":        "refs/heads/main",
		"repository": map[string]any{"name": "service"},
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "status")
}

func TestNewRejectsNilProcessor(t *testing.T) {
	assert.Panics(t, func() { New(nil, nil, nil) })
}
