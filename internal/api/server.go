package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/arjunrose/Personal-Locker/internal/alerts"
	"github.com/arjunrose/Personal-Locker/internal/config"
	"github.com/arjunrose/Personal-Locker/internal/engine"
	"github.com/arjunrose/Personal-Locker/internal/metrics"
	"github.com/arjunrose/Personal-Locker/internal/model"
	"github.com/arjunrose/Personal-Locker/internal/normalize"
)

// Locker is the engine surface the API exposes. *engine.Engine
// satisfies it.
type Locker interface {
	Snapshot() engine.Snapshot
	PressKey(k normalize.Key) bool
	Relock() engine.Snapshot
	UpdateSettings(s model.Settings) model.Settings
	IntruderLogs(limit int) []model.IntruderLog
	ClearLogs()
	Analyze(id string) error
	StartedAt() time.Time
}

type Server struct {
	cfg     *config.Manager
	metrics *metrics.Store
	alerts  *alerts.Store
	locker  Locker
	logger  *slog.Logger
	version string
}

type statusResponse struct {
	Status     string          `json:"status"`
	Time       string          `json:"time"`
	Version    string          `json:"version"`
	ConfigPath string          `json:"config_path"`
	Locker     engine.Snapshot `json:"locker"`
	Camera     cameraStatus    `json:"camera"`
	Keypad     endpointStatus  `json:"keypad"`
	API        endpointStatus  `json:"api"`
	Store      storeStatus     `json:"store"`
	Alerts     alertsStatus    `json:"alerts"`
}

type endpointStatus struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

type cameraStatus struct {
	Mode   string `json:"mode"`
	Active bool   `json:"active"`
}

type storeStatus struct {
	Driver string `json:"driver"`
}

type alertsStatus struct {
	Channels []string `json:"channels"`
}

func Start(ctx context.Context, cfg *config.Manager, metricsStore *metrics.Store, alertsStore *alerts.Store, locker Locker, logger *slog.Logger, version string) *http.Server {
	if cfg == nil {
		return nil
	}
	current := cfg.Get().API
	if !current.Enabled {
		if logger != nil {
			logger.Info("api disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("api enabled", "addr", current.Addr)
	}
	server := &Server{
		cfg:     cfg,
		metrics: metricsStore,
		alerts:  alertsStore,
		locker:  locker,
		logger:  logger,
		version: version,
	}
	httpServer := &http.Server{Addr: current.Addr, Handler: server.routes()}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/keypad", s.handleKeypad)
	mux.HandleFunc("/relock", s.handleRelock)
	mux.HandleFunc("/settings", s.handleSettings)
	mux.HandleFunc("/logs", s.handleLogs)
	mux.HandleFunc("/logs/analyze", s.handleAnalyze)
	mux.HandleFunc("/alerts", s.handleAlerts)
	mux.HandleFunc("/admin/clear", s.handleClear)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	uptime := 0
	if s.locker != nil {
		uptime = int(time.Since(s.locker.StartedAt()).Seconds())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"time":           time.Now().UTC().Format(time.RFC3339Nano),
		"version":        s.version,
		"uptime_seconds": uptime,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	cfg := s.cfg.Get()
	snap := s.locker.Snapshot()
	resp := statusResponse{
		Status:     "ok",
		Time:       time.Now().UTC().Format(time.RFC3339Nano),
		Version:    s.version,
		ConfigPath: s.cfg.Path(),
		Locker:     snap,
		Camera:     cameraStatus{Mode: cfg.Camera.Mode, Active: snap.CameraActive},
		Keypad:     endpointStatus{Enabled: cfg.Keypad.Enabled, Addr: cfg.Keypad.Addr},
		API:        endpointStatus{Enabled: cfg.API.Enabled, Addr: cfg.API.Addr},
		Store:      storeStatus{Driver: cfg.Store.Driver},
		Alerts:     alertsStatus{Channels: cfg.Alerts.Channels},
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	counters, updated := s.metrics.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"metrics":    counters,
		"updated_at": updated.Format(time.RFC3339Nano),
	})
}

func (s *Server) handleKeypad(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	var req struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	key, err := normalize.ParseKey(req.Key)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	accepted := s.locker.PressKey(key)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":   "ok",
		"accepted": accepted,
	})
}

func (s *Server) handleRelock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	snap := s.locker.Relock()
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"locker": snap,
	})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{
			"settings": s.locker.Snapshot().Settings,
		})
	case http.MethodPut, http.MethodPost:
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		// absent fields keep their current values
		next := s.locker.Snapshot().Settings
		if err := json.Unmarshal(body, &next); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		applied := s.locker.UpdateSettings(next)
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"settings": applied,
		})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	logs := s.locker.IntruderLogs(limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"logs":  logs,
		"count": len(logs),
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	var req struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &req); err != nil || strings.TrimSpace(req.ID) == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	switch err := s.locker.Analyze(req.ID); {
	case errors.Is(err, engine.ErrUnknownLog):
		writeJSON(w, http.StatusNotFound, map[string]any{"error": err.Error()})
	case errors.Is(err, engine.ErrAnalysisPending):
		writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error()})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
	default:
		writeJSON(w, http.StatusAccepted, map[string]any{
			"status": "accepted",
			"id":     req.ID,
		})
	}
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	sinceStr := r.URL.Query().Get("since")
	var list []model.AlertRecord
	if sinceStr != "" {
		ts, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		list = s.alerts.Since(ts)
	} else {
		list = s.alerts.List(limit)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": list,
		"count":  len(list),
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, _ := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	var req struct {
		Target string `json:"target"`
	}
	_ = json.Unmarshal(body, &req)
	target := strings.ToLower(strings.TrimSpace(req.Target))
	if target == "" {
		target = "all"
	}
	switch target {
	case "all":
		if s.locker != nil {
			s.locker.ClearLogs()
		}
		if s.alerts != nil {
			s.alerts.Clear()
		}
		if s.metrics != nil {
			s.metrics.Clear()
		}
	case "logs":
		if s.locker != nil {
			s.locker.ClearLogs()
		}
	case "alerts":
		if s.alerts != nil {
			s.alerts.Clear()
		}
	case "metrics":
		if s.metrics != nil {
			s.metrics.Clear()
		}
	default:
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
