package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/arjunrose/Personal-Locker/internal/alerts"
	"github.com/arjunrose/Personal-Locker/internal/config"
	"github.com/arjunrose/Personal-Locker/internal/engine"
	"github.com/arjunrose/Personal-Locker/internal/metrics"
	"github.com/arjunrose/Personal-Locker/internal/model"
	"github.com/arjunrose/Personal-Locker/internal/normalize"
)

type stubLocker struct {
	snap       engine.Snapshot
	pressed    []normalize.Key
	relocked   int
	logs       []model.IntruderLog
	cleared    int
	analyzed   []string
	analyzeErr error
	started    time.Time
}

func (l *stubLocker) Snapshot() engine.Snapshot { return l.snap }

func (l *stubLocker) PressKey(k normalize.Key) bool {
	l.pressed = append(l.pressed, k)
	return true
}

func (l *stubLocker) Relock() engine.Snapshot {
	l.relocked++
	l.snap.Mode = model.ModeLocked
	return l.snap
}

func (l *stubLocker) UpdateSettings(s model.Settings) model.Settings {
	l.snap.Settings = normalize.Settings(s)
	return l.snap.Settings
}

func (l *stubLocker) IntruderLogs(limit int) []model.IntruderLog {
	if limit <= 0 || limit > len(l.logs) {
		limit = len(l.logs)
	}
	return l.logs[:limit]
}

func (l *stubLocker) ClearLogs() {
	l.cleared++
	l.logs = nil
}

func (l *stubLocker) Analyze(id string) error {
	l.analyzed = append(l.analyzed, id)
	return l.analyzeErr
}

func (l *stubLocker) StartedAt() time.Time { return l.started }

func newStubLocker() *stubLocker {
	return &stubLocker{
		snap: engine.Snapshot{
			Mode:     model.ModeLocked,
			Status:   model.StatusIdle,
			Settings: model.DefaultSettings(),
		},
		started: time.Now().Add(-time.Minute),
	}
}

func newTestServer(t *testing.T, locker Locker) *Server {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := config.Save(path, config.DefaultConfig()); err != nil {
		t.Fatalf("save config: %v", err)
	}
	mgr, err := config.NewManager(path)
	if err != nil {
		t.Fatalf("config manager: %v", err)
	}
	return &Server{
		cfg:     mgr,
		metrics: metrics.NewStore(),
		alerts:  alerts.NewStore(16),
		locker:  locker,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		version: "test",
	}
}

func do(s *Server, method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return out
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, newStubLocker())
	rec := do(s, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "ok" || body["version"] != "test" {
		t.Fatalf("body = %v", body)
	}
	if body["uptime_seconds"].(float64) < 1 {
		t.Fatalf("uptime = %v", body["uptime_seconds"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	locker := newStubLocker()
	locker.snap.FailedAttempts = 2
	s := newTestServer(t, locker)

	rec := do(s, http.MethodGet, "/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	var resp statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Locker.Mode != model.ModeLocked || resp.Locker.FailedAttempts != 2 {
		t.Fatalf("locker section = %+v", resp.Locker)
	}
	if resp.Store.Driver == "" || resp.ConfigPath == "" {
		t.Fatalf("config sections missing: %+v", resp)
	}

	if rec := do(s, http.MethodPost, "/status", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /status code = %d", rec.Code)
	}
}

func TestKeypadEndpoint(t *testing.T) {
	locker := newStubLocker()
	s := newTestServer(t, locker)

	rec := do(s, http.MethodPost, "/keypad", `{"key":"5"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("code = %d body = %s", rec.Code, rec.Body.String())
	}
	if len(locker.pressed) != 1 || locker.pressed[0].Kind != normalize.KeyDigit || locker.pressed[0].Digit != '5' {
		t.Fatalf("pressed = %+v", locker.pressed)
	}

	rec = do(s, http.MethodPost, "/keypad", `{"key":"delete"}`)
	if rec.Code != http.StatusAccepted || locker.pressed[1].Kind != normalize.KeyDelete {
		t.Fatalf("delete press: code=%d pressed=%+v", rec.Code, locker.pressed)
	}

	if rec := do(s, http.MethodPost, "/keypad", `{"key":"enter"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown key code = %d", rec.Code)
	}
	if rec := do(s, http.MethodPost, "/keypad", `{broken`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json code = %d", rec.Code)
	}
	if rec := do(s, http.MethodGet, "/keypad", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET code = %d", rec.Code)
	}
}

func TestRelockEndpoint(t *testing.T) {
	locker := newStubLocker()
	locker.snap.Mode = model.ModeUnlocked
	s := newTestServer(t, locker)

	rec := do(s, http.MethodPost, "/relock", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	if locker.relocked != 1 {
		t.Fatalf("relocked = %d", locker.relocked)
	}
	body := decodeBody(t, rec)
	lockerSection := body["locker"].(map[string]any)
	if lockerSection["mode"] != string(model.ModeLocked) {
		t.Fatalf("mode = %v", lockerSection["mode"])
	}
}

func TestSettingsEndpoint(t *testing.T) {
	locker := newStubLocker()
	s := newTestServer(t, locker)

	rec := do(s, http.MethodGet, "/settings", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}

	// partial update keeps the fields the body leaves out
	rec = do(s, http.MethodPut, "/settings", `{"trigger_threshold":4}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d body = %s", rec.Code, rec.Body.String())
	}
	got := locker.snap.Settings
	if got.TriggerThreshold != 4 {
		t.Fatalf("threshold = %d", got.TriggerThreshold)
	}
	if !got.EnableCapture {
		t.Fatal("enable_capture lost on partial update")
	}

	rec = do(s, http.MethodPut, "/settings", `{"trigger_threshold":99,"alert_email":"o@e.c"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	if locker.snap.Settings.TriggerThreshold != model.ThresholdMax {
		t.Fatalf("threshold not clamped: %d", locker.snap.Settings.TriggerThreshold)
	}

	if rec := do(s, http.MethodDelete, "/settings", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("DELETE code = %d", rec.Code)
	}
}

func TestLogsEndpoint(t *testing.T) {
	locker := newStubLocker()
	locker.logs = []model.IntruderLog{
		{ID: "c", Timestamp: 30, AttemptNumber: 3},
		{ID: "b", Timestamp: 20, AttemptNumber: 2},
		{ID: "a", Timestamp: 10, AttemptNumber: 1},
	}
	s := newTestServer(t, locker)

	rec := do(s, http.MethodGet, "/logs?limit=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["count"].(float64) != 2 {
		t.Fatalf("count = %v", body["count"])
	}
	entries := body["logs"].([]any)
	if entries[0].(map[string]any)["id"] != "c" {
		t.Fatalf("first entry = %v", entries[0])
	}
}

func TestAnalyzeEndpoint(t *testing.T) {
	locker := newStubLocker()
	s := newTestServer(t, locker)

	rec := do(s, http.MethodPost, "/logs/analyze", `{"id":"log-1"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("code = %d", rec.Code)
	}
	if len(locker.analyzed) != 1 || locker.analyzed[0] != "log-1" {
		t.Fatalf("analyzed = %v", locker.analyzed)
	}

	locker.analyzeErr = engine.ErrUnknownLog
	if rec := do(s, http.MethodPost, "/logs/analyze", `{"id":"gone"}`); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id code = %d", rec.Code)
	}

	locker.analyzeErr = engine.ErrAnalysisPending
	if rec := do(s, http.MethodPost, "/logs/analyze", `{"id":"log-1"}`); rec.Code != http.StatusConflict {
		t.Fatalf("pending code = %d", rec.Code)
	}

	if rec := do(s, http.MethodPost, "/logs/analyze", `{"id":""}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty id code = %d", rec.Code)
	}
}

func TestAlertsEndpoint(t *testing.T) {
	locker := newStubLocker()
	s := newTestServer(t, locker)
	s.alerts.Add(model.AlertRecord{
		Timestamp: time.Now(),
		Channel:   "email",
		Recipient: "o@e.c",
		LogID:     "log-1",
	})

	rec := do(s, http.MethodGet, "/alerts", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["count"].(float64) != 1 {
		t.Fatalf("count = %v", body["count"])
	}

	if rec := do(s, http.MethodGet, "/alerts?since=not-a-time", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad since code = %d", rec.Code)
	}

	since := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	rec = do(s, http.MethodGet, "/alerts?since="+since, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("since code = %d", rec.Code)
	}
	if decodeBody(t, rec)["count"].(float64) != 1 {
		t.Fatal("since query missed the record")
	}
}

func TestClearEndpoint(t *testing.T) {
	locker := newStubLocker()
	locker.logs = []model.IntruderLog{{ID: "a", Timestamp: 1, AttemptNumber: 1}}
	s := newTestServer(t, locker)
	s.alerts.Add(model.AlertRecord{Timestamp: time.Now(), Channel: "log"})
	s.metrics.Inc(metrics.Attempts)

	rec := do(s, http.MethodPost, "/admin/clear", `{"target":"logs"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	if locker.cleared != 1 {
		t.Fatalf("cleared = %d", locker.cleared)
	}
	if len(s.alerts.List(0)) != 1 {
		t.Fatal("alerts cleared by logs target")
	}

	rec = do(s, http.MethodPost, "/admin/clear", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("default clear code = %d", rec.Code)
	}
	if locker.cleared != 2 || len(s.alerts.List(0)) != 0 || s.metrics.Get(metrics.Attempts) != 0 {
		t.Fatal("default target did not clear everything")
	}

	if rec := do(s, http.MethodPost, "/admin/clear", `{"target":"bogus"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bogus target code = %d", rec.Code)
	}
}
