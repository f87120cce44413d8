// Package analysis attaches a short textual description to captured
// intruder frames. Describe never fails: every transport or decode
// problem resolves to the fallback text, so a log entry always ends up
// with some analysis attached.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/arjunrose/Personal-Locker/internal/config"
)

// FallbackDescription is attached whenever no real description could be
// produced.
const FallbackDescription = "analysis unavailable"

const maxResponseBytes = 1 << 20

type Analyzer interface {
	Describe(ctx context.Context, imageB64 string) string
}

func NewAnalyzer(cfg config.AnalysisConfig, logger *slog.Logger) Analyzer {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return Static{}
	}
	return &HTTPAnalyzer{
		endpoint: cfg.Endpoint,
		client:   &http.Client{Timeout: cfg.Timeout.Std()},
		logger:   logger,
	}
}

// Static is the analyzer used when no endpoint is configured.
type Static struct{}

func (Static) Describe(context.Context, string) string { return FallbackDescription }

// HTTPAnalyzer posts frames to an image description service and expects
// {"description": "..."} back.
type HTTPAnalyzer struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

type describeRequest struct {
	Image string `json:"image"`
}

type describeResponse struct {
	Description string `json:"description"`
}

func (a *HTTPAnalyzer) Describe(ctx context.Context, imageB64 string) string {
	body, err := json.Marshal(describeRequest{Image: imageB64})
	if err != nil {
		return FallbackDescription
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		a.warn("analysis request build failed", err)
		return FallbackDescription
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.client.Do(req)
	if err != nil {
		a.warn("analysis request failed", err)
		return FallbackDescription
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if a.logger != nil {
			a.logger.Warn("analysis service returned error status", "status", resp.StatusCode)
		}
		return FallbackDescription
	}
	var out describeResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		a.warn("analysis response decode failed", err)
		return FallbackDescription
	}
	text := strings.TrimSpace(out.Description)
	if text == "" {
		return FallbackDescription
	}
	return text
}

func (a *HTTPAnalyzer) warn(msg string, err error) {
	if a.logger != nil {
		a.logger.Warn(msg, "error", err)
	}
}
