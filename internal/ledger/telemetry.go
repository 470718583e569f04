package ledger

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"gitlab.com/yelinaung/stokvel-bot/internal/logger"
)

const instrumentationName = "gitlab.com/yelinaung/stokvel-bot/internal/ledger"

var tracer = otel.Tracer(instrumentationName)

type metrics struct {
	submissions metric.Int64Counter
	approvals   metric.Int64Counter
	rejections  metric.Int64Counter
	conflicts   metric.Int64Counter
}

func newMetrics() *metrics {
	meter := otel.Meter(instrumentationName)
	return &metrics{
		submissions: counter(meter, "stokvel.submissions.created", "Proof-of-payment submissions recorded"),
		approvals:   counter(meter, "stokvel.submissions.approved", "Submissions approved by an admin"),
		rejections:  counter(meter, "stokvel.submissions.rejected", "Submissions rejected by an admin"),
		conflicts:   counter(meter, "stokvel.submissions.conflicts", "Reviews refused because the submission was no longer pending"),
	}
}

func counter(meter metric.Meter, name, description string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		logger.Log.Warn().Err(err).Str("instrument", name).Msg("Failed to create counter")
	}
	return c
}

func (m *metrics) add(ctx context.Context, c metric.Int64Counter, attrs ...attribute.KeyValue) {
	if c == nil {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// endSpan records err on span, if any, and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
