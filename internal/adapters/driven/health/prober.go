// Package health provides the HTTP health endpoint prober used when the
// channel is not usable.
package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/docsync/internal/core/ports/driven"
)

// Ensure Prober implements the interface.
var _ driven.HealthProber = (*Prober)(nil)

// DefaultPath is the health endpoint path.
const DefaultPath = "/health"

// maxBody caps how much of a health response is read.
const maxBody = 64 << 10

// Config holds configuration for the prober.
type Config struct {
	// BaseURL is the server's HTTP base URL.
	BaseURL string

	// Path is appended to BaseURL (default: /health).
	Path string

	// IdleConnTimeout closes pooled connections left idle between probes.
	IdleConnTimeout time.Duration
}

// Prober performs GET <baseURL>/health.
type Prober struct {
	client    *http.Client
	transport *http.Transport
	url       string
}

// NewProber creates a prober with its own connection pool, so Close only
// releases connections the prober opened. Timeouts come from the caller's
// context.
func NewProber(cfg Config) *Prober {
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.IdleConnTimeout > 0 {
		transport.IdleConnTimeout = cfg.IdleConnTimeout
	}
	return &Prober{
		client:    &http.Client{Transport: transport},
		transport: transport,
		url:       strings.TrimRight(cfg.BaseURL, "/") + cfg.Path,
	}
}

// Probe issues one request. A 5xx carrying a health body is an unhealthy
// report rather than an error.
func (p *Prober) Probe(ctx context.Context) (driven.HealthReport, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return driven.HealthReport{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return driven.HealthReport{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return driven.HealthReport{}, fmt.Errorf("read response: %w", err)
	}

	report, decodeErr := driven.DecodeHealthReport(body)
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if decodeErr != nil {
			return driven.HealthReport{}, decodeErr
		}
		return report, nil
	case resp.StatusCode >= 500 && decodeErr == nil:
		report.Healthy = false
		return report, nil
	default:
		return driven.HealthReport{}, fmt.Errorf("health endpoint returned status %d", resp.StatusCode)
	}
}

// Close releases pooled connections.
func (p *Prober) Close() error {
	p.transport.CloseIdleConnections()
	return nil
}
