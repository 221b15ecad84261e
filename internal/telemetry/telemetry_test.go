package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"c3addon-builder/internal/config"
)

func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.Telemetry{}, "test")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestTracerRecordsSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	_, span := tp.Tracer(ServiceName + "/test").Start(context.Background(), "build")
	span.End()
	require.Len(t, rec.Ended(), 1)
	require.Equal(t, "build", rec.Ended()[0].Name())
	// The package tracer resolves against the global provider.
	require.NotNil(t, Tracer("pipeline"))
}
