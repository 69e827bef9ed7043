package telemetry

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func TestInitTracerPropagatesTraceContext(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	shutdown, err := InitTracer(context.Background(), "order-service")
	require.NoError(t, err)
	defer shutdown(context.Background())

	ctx, span := otel.Tracer("test").Start(context.Background(), "parent")
	defer span.End()

	header := http.Header{}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(header))

	assert.True(t, span.SpanContext().IsValid())
	assert.Contains(t, header.Get("traceparent"), span.SpanContext().TraceID().String())
}
