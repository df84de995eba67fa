package observability

import (
	"context"

	"chatgate/internal/gate"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// GateMetrics counts chain decisions as gate.decisions{gate, outcome, reason}.
type GateMetrics struct {
	decisions metric.Int64Counter
}

var _ gate.Observer = (*GateMetrics)(nil)

// NewGateMetrics registers the counter on mp, or on the global meter provider
// when mp is nil.
func NewGateMetrics(mp metric.MeterProvider) (*GateMetrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	counter, err := mp.Meter(scopeGate).Int64Counter(
		"gate.decisions",
		metric.WithDescription("Gate decisions by gate, outcome and reason"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}
	return &GateMetrics{decisions: counter}, nil
}

func (m *GateMetrics) Observe(d gate.Decision) {
	outcome, reason := "pass", "none"
	if !d.Result.Passed() {
		outcome, reason = "reject", string(d.Result.Reason)
	}
	m.decisions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("gate", d.Gate),
		attribute.String("outcome", outcome),
		attribute.String("reason", reason),
	))
}
