package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/annel0/voxworld/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const defaultShutdownTimeout = 5 * time.Second

// TelemetryOptions параметры трассировки движка
type TelemetryOptions struct {
	ServiceName string

	// Endpoint адрес OTLP/HTTP коллектора; пустой означает localhost:4318
	Endpoint string

	// SampleRatio доля трассируемых корневых спанов (CSG, кадры, снимки).
	// 0 и значения не меньше 1 трассируют всё.
	SampleRatio float64

	// WorldSide и WorldDepth попадают в атрибуты ресурса
	WorldSide  int
	WorldDepth int

	ShutdownTimeout time.Duration
}

func (o TelemetryOptions) sampler() trace.Sampler {
	if o.SampleRatio <= 0 || o.SampleRatio >= 1 {
		return trace.ParentBased(trace.AlwaysSample())
	}
	return trace.ParentBased(trace.TraceIDRatioBased(o.SampleRatio))
}

func (o TelemetryOptions) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{semconv.ServiceName(o.ServiceName)}
	if o.WorldSide > 0 {
		attrs = append(attrs,
			attribute.Int("voxworld.world.side", o.WorldSide),
			attribute.Int("voxworld.world.depth", o.WorldDepth),
		)
	}
	return attrs
}

// InitTelemetry настраивает OTLP экспортер трасс и устанавливает глобальный
// TracerProvider. Возвращённый shutdown сбрасывает буфер спанов и
// возвращает прежний глобальный провайдер.
func InitTelemetry(ctx context.Context, o TelemetryOptions) (func(context.Context) error, error) {
	var opts []otlptracehttp.Option
	if o.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(o.Endpoint), otlptracehttp.WithInsecure())
	}
	exp, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("OTLP экспортер: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(o.attributes()...))
	if err != nil {
		return nil, fmt.Errorf("ресурс телеметрии: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exp),
		trace.WithResource(res),
		trace.WithSampler(o.sampler()),
	)

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	logging.Info("OpenTelemetry инициализирован (service=%s, endpoint=%q, sample=%v)",
		o.ServiceName, o.Endpoint, o.SampleRatio)

	timeout := o.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdown := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		err := tp.Shutdown(ctx)
		if otel.GetTracerProvider() == oteltrace.TracerProvider(tp) {
			otel.SetTracerProvider(prev)
		}
		return err
	}
	return shutdown, nil
}
