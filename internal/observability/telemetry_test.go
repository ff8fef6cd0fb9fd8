package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitTelemetry_InstallsAndRestoresProvider(t *testing.T) {
	prev := otel.GetTracerProvider()

	shutdown, err := InitTelemetry(context.Background(), TelemetryOptions{
		ServiceName: "voxworld-test",
		Endpoint:    "127.0.0.1:4318",
		WorldSide:   64,
		WorldDepth:  32,
	})
	require.NoError(t, err)

	_, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.True(t, ok, "глобальный провайдер должен быть из SDK")

	assert.NoError(t, shutdown(context.Background()))
	assert.Equal(t, prev, otel.GetTracerProvider(), "после shutdown возвращается прежний провайдер")
}

func TestTelemetryOptions_Sampler(t *testing.T) {
	for ratio, want := range map[float64]string{
		0:    "AlwaysOnSampler",
		1:    "AlwaysOnSampler",
		0.25: "TraceIDRatioBased{0.25}",
	} {
		d := TelemetryOptions{SampleRatio: ratio}.sampler().Description()
		assert.Contains(t, d, want, "доля %v", ratio)
	}
}

func TestTelemetryOptions_Attributes(t *testing.T) {
	attrs := TelemetryOptions{ServiceName: "vox"}.attributes()
	assert.Len(t, attrs, 1, "без размеров мира только имя сервиса")

	attrs = TelemetryOptions{ServiceName: "vox", WorldSide: 512, WorldDepth: 256}.attributes()
	assert.Contains(t, attrs, attribute.Int("voxworld.world.side", 512))
	assert.Contains(t, attrs, attribute.Int("voxworld.world.depth", 256))
}
