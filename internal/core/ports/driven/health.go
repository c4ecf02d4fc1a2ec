package driven

import (
	"context"
	"encoding/json"
	"fmt"
)

// HealthReport is the body returned by GET <baseURL>/health.
type HealthReport struct {
	Healthy    bool
	Subsystems map[string]bool
}

// HealthProber is the HTTP fallback used when no channel is usable.
type HealthProber interface {
	// Probe performs one request. Cancelling ctx aborts the request.
	Probe(ctx context.Context) (HealthReport, error)

	// Close releases any connections owned by the prober.
	Close() error
}

// DecodeHealthReport parses a health body of the form
// {"healthy": bool, "<subsystem>": bool, ...}. Non-boolean fields are
// ignored.
func DecodeHealthReport(raw []byte) (HealthReport, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return HealthReport{}, fmt.Errorf("decode health report: %w", err)
	}
	report := HealthReport{Subsystems: make(map[string]bool)}
	for key, value := range fields {
		var flag bool
		if err := json.Unmarshal(value, &flag); err != nil {
			continue
		}
		if key == "healthy" {
			report.Healthy = flag
			continue
		}
		report.Subsystems[key] = flag
	}
	return report, nil
}
