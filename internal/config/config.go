package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arjunrose/Personal-Locker/internal/timex"
)

type Config struct {
	LogLevel  string         `json:"log_level" yaml:"log_level"`
	LogFormat string         `json:"log_format" yaml:"log_format"`
	API       APIConfig      `json:"api" yaml:"api"`
	Keypad    KeypadConfig   `json:"keypad" yaml:"keypad"`
	Store     StoreConfig    `json:"store" yaml:"store"`
	Camera    CameraConfig   `json:"camera" yaml:"camera"`
	Analysis  AnalysisConfig `json:"analysis" yaml:"analysis"`
	Alerts    AlertsConfig   `json:"alerts" yaml:"alerts"`
	Timing    TimingConfig   `json:"timing" yaml:"timing"`
	Engine    EngineConfig   `json:"engine" yaml:"engine"`
}

type APIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

// KeypadConfig describes the optional TCP bridge for a hardware keypad.
type KeypadConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type StoreConfig struct {
	Driver string `json:"driver" yaml:"driver"`
	DSN    string `json:"dsn" yaml:"dsn"`
}

type CameraConfig struct {
	Mode          string         `json:"mode" yaml:"mode"`
	SpoolDir      string         `json:"spool_dir" yaml:"spool_dir"`
	StaleAfter    timex.Duration `json:"stale_after" yaml:"stale_after"`
	MaxFrameBytes int64          `json:"max_frame_bytes" yaml:"max_frame_bytes"`
}

type AnalysisConfig struct {
	Endpoint string         `json:"endpoint" yaml:"endpoint"`
	Timeout  timex.Duration `json:"timeout" yaml:"timeout"`
}

type AlertsConfig struct {
	StoreLimit int         `json:"store_limit" yaml:"store_limit"`
	Channels   []string    `json:"channels" yaml:"channels"`
	Email      EmailConfig `json:"email" yaml:"email"`
	Kafka      KafkaConfig `json:"kafka" yaml:"kafka"`
}

type EmailConfig struct {
	SMTPAddr string `json:"smtp_addr" yaml:"smtp_addr"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	From     string `json:"from" yaml:"from"`
	Subject  string `json:"subject" yaml:"subject"`
}

type KafkaConfig struct {
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
}

// TimingConfig holds the controller's pacing delays. These are product
// pacing, not rate limits; tests shrink them to keep runs fast.
type TimingConfig struct {
	VerifyDelay timex.Duration `json:"verify_delay" yaml:"verify_delay"`
	GrantDelay  timex.Duration `json:"grant_delay" yaml:"grant_delay"`
	BreachDelay timex.Duration `json:"breach_delay" yaml:"breach_delay"`
	NoticeTTL   timex.Duration `json:"notice_ttl" yaml:"notice_ttl"`
}

type EngineConfig struct {
	QueueSize int `json:"queue_size" yaml:"queue_size"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "json",
		API:       APIConfig{Enabled: true, Addr: ":8080"},
		Keypad:    KeypadConfig{Enabled: false, Addr: ":7101"},
		Store: StoreConfig{
			Driver: "sqlite",
			DSN:    "file:locker.db?_pragma=busy_timeout(5000)",
		},
		Camera: CameraConfig{
			Mode:          "stub",
			StaleAfter:    timex.Duration(15 * time.Second),
			MaxFrameBytes: 8 << 20,
		},
		Analysis: AnalysisConfig{
			Timeout: timex.Duration(10 * time.Second),
		},
		Alerts: AlertsConfig{
			StoreLimit: 1000,
			Channels:   []string{"log"},
		},
		Timing: TimingConfig{
			VerifyDelay: timex.Duration(600 * time.Millisecond),
			GrantDelay:  timex.Duration(500 * time.Millisecond),
			BreachDelay: timex.Duration(1 * time.Second),
			NoticeTTL:   timex.Duration(3 * time.Second),
		},
		Engine: EngineConfig{QueueSize: 256},
	}
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()

	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return nil, errors.New("config file is empty")
	}
	var decodeErr error
	if looksLikeJSON(trimmed) {
		decodeErr = json.Unmarshal([]byte(trimmed), cfg)
	} else {
		decodeErr = yaml.Unmarshal([]byte(trimmed), cfg)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if path == "" || cfg == nil {
		return errors.New("config path or config is empty")
	}
	var data []byte
	var err error
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "sqlite"
	}
	if cfg.Store.Driver == "sqlite" && cfg.Store.DSN == "" {
		cfg.Store.DSN = "file:locker.db?_pragma=busy_timeout(5000)"
	}
	if cfg.Camera.Mode == "" {
		cfg.Camera.Mode = "stub"
	}
	if cfg.Camera.StaleAfter <= 0 {
		cfg.Camera.StaleAfter = timex.Duration(15 * time.Second)
	}
	if cfg.Camera.MaxFrameBytes <= 0 {
		cfg.Camera.MaxFrameBytes = 8 << 20
	}
	if cfg.Analysis.Timeout <= 0 {
		cfg.Analysis.Timeout = timex.Duration(10 * time.Second)
	}
	if cfg.Alerts.StoreLimit <= 0 {
		cfg.Alerts.StoreLimit = 1000
	}
	if len(cfg.Alerts.Channels) == 0 {
		cfg.Alerts.Channels = []string{"log"}
	}
	if cfg.Timing.VerifyDelay <= 0 {
		cfg.Timing.VerifyDelay = timex.Duration(600 * time.Millisecond)
	}
	if cfg.Timing.GrantDelay <= 0 {
		cfg.Timing.GrantDelay = timex.Duration(500 * time.Millisecond)
	}
	if cfg.Timing.BreachDelay <= 0 {
		cfg.Timing.BreachDelay = timex.Duration(1 * time.Second)
	}
	if cfg.Timing.NoticeTTL <= 0 {
		cfg.Timing.NoticeTTL = timex.Duration(3 * time.Second)
	}
	if cfg.Engine.QueueSize <= 0 {
		cfg.Engine.QueueSize = 256
	}
}

func Validate(cfg *Config) error {
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	if cfg.Keypad.Enabled && cfg.Keypad.Addr == "" {
		return errors.New("keypad.addr required when keypad.enabled is true")
	}
	switch cfg.Store.Driver {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("unknown store.driver %q", cfg.Store.Driver)
	}
	if cfg.Store.Driver == "postgres" && cfg.Store.DSN == "" {
		return errors.New("store.dsn required for the postgres driver")
	}
	switch cfg.Camera.Mode {
	case "spool", "stub", "off":
	default:
		return fmt.Errorf("unknown camera.mode %q", cfg.Camera.Mode)
	}
	if cfg.Camera.Mode == "spool" && cfg.Camera.SpoolDir == "" {
		return errors.New("camera.spool_dir required when camera.mode is spool")
	}
	for _, ch := range cfg.Alerts.Channels {
		switch ch {
		case "log":
		case "email":
			if cfg.Alerts.Email.SMTPAddr == "" || cfg.Alerts.Email.From == "" {
				return errors.New("alerts.email requires smtp_addr and from")
			}
		case "kafka":
			if len(cfg.Alerts.Kafka.Brokers) == 0 || cfg.Alerts.Kafka.Topic == "" {
				return errors.New("alerts.kafka requires brokers and topic")
			}
		default:
			return fmt.Errorf("unknown alert channel %q", ch)
		}
	}
	return nil
}

type Manager struct {
	path    string
	cfg     atomic.Value
	modTime time.Time
}

func NewManager(path string) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	m := &Manager{path: path}
	m.cfg.Store(cfg)
	info, err := os.Stat(path)
	if err == nil {
		m.modTime = info.ModTime()
	}
	return m, nil
}

func (m *Manager) Get() *Config {
	if v := m.cfg.Load(); v != nil {
		return v.(*Config)
	}
	return DefaultConfig()
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) Reload() (*Config, error) {
	cfg, err := Load(m.path)
	if err != nil {
		return nil, err
	}
	m.cfg.Store(cfg)
	if info, err := os.Stat(m.path); err == nil {
		m.modTime = info.ModTime()
	}
	return cfg, nil
}

func (m *Manager) Update(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if err := Save(m.path, cfg); err != nil {
		return err
	}
	m.cfg.Store(cfg)
	if info, err := os.Stat(m.path); err == nil {
		m.modTime = info.ModTime()
	}
	return nil
}

func (m *Manager) NeedsReload() (bool, error) {
	info, err := os.Stat(m.path)
	if err != nil {
		return false, err
	}
	return info.ModTime().After(m.modTime), nil
}

func (m *Manager) Watch(interval time.Duration, onReload func(*Config), onError func(error), stop <-chan struct{}) {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			needs, err := m.NeedsReload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if !needs {
				continue
			}
			cfg, err := m.Reload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if onReload != nil {
				onReload(cfg)
			}
		case <-stop:
			return
		}
	}
}

func ResolvePath(path string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	return filepath.Join(cwd, path)
}
