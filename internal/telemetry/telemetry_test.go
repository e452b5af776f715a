package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_Disabled(t *testing.T) {
	p, err := Init(context.Background(), TelemetryConfig{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestInit_StdoutExporter(t *testing.T) {
	var buf bytes.Buffer
	p, err := Init(context.Background(), TelemetryConfig{
		Enabled:     true,
		Exporter:    ExporterStdout,
		Environment: "test",
		Writer:      &buf,
	})
	require.NoError(t, err)

	_, span := Tracer("telemetry-test").Start(context.Background(), "unit-span")
	span.End()

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "unit-span")
}

func TestInit_UnknownExporter(t *testing.T) {
	_, err := Init(context.Background(), TelemetryConfig{Enabled: true, Exporter: "zipkin"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown trace exporter")
}

func TestProvider_NilShutdown(t *testing.T) {
	var p *Provider
	assert.NoError(t, p.Shutdown(context.Background()))
}
