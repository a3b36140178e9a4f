package pipeline

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type pipelineMetrics struct {
	meter           metric.Meter
	sessionsStarted metric.Int64Counter
	sessionsEnded   metric.Int64Counter
	segments        metric.Int64Counter
	serviceCost     metric.Float64Counter
}

func newPipelineMetrics() (*pipelineMetrics, error) {
	m := &pipelineMetrics{
		meter: otel.Meter("github.com/captionlabs/caption-core/pipeline"),
	}
	var err error
	if m.sessionsStarted, err = m.meter.Int64Counter("caption.sessions.started",
		metric.WithDescription("Recording sessions started")); err != nil {
		return nil, err
	}
	if m.sessionsEnded, err = m.meter.Int64Counter("caption.sessions.ended",
		metric.WithDescription("Recording sessions ended")); err != nil {
		return nil, err
	}
	if m.segments, err = m.meter.Int64Counter("caption.segments.processed",
		metric.WithDescription("Audio segments processed across sessions")); err != nil {
		return nil, err
	}
	if m.serviceCost, err = m.meter.Float64Counter("caption.service.cost.usd",
		metric.WithDescription("Estimated language service spend in USD")); err != nil {
		return nil, err
	}
	return m, nil
}
