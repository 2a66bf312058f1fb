// Package tracing 为引擎调用提供 OpenTelemetry 链路：每次定价一个 Span，
// 合约类别与定价方法作为属性，数值告警作为 Span 事件.
package tracing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wyfcoding/derivkit/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentation = "github.com/wyfcoding/derivkit"

// 引擎 Span 使用的属性键.
const (
	KeyCategory = attribute.Key("contract.category")
	KeyMethod   = attribute.Key("pricing.method")
	KeyCacheHit = attribute.Key("cache.hit")
	KeyWarning  = attribute.Key("warning.kind")
	KeyParam    = attribute.Key("warning.param")
)

// InitTracer 在配置了 OTLP 端点时安装全局 TracerProvider，未配置时返回空操作的关闭函数.
func InitTracer(ctx context.Context, cfg config.TracingConfig) (shutdown func(context.Context) error, err error) {
	if cfg.OTLPEndpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create otlp exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	ratio := cfg.SampleRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	)
	otel.SetTracerProvider(tp)

	slog.Info("tracer provider initialized", "service", cfg.ServiceName, "endpoint", cfg.OTLPEndpoint, "ratio", ratio)
	return tp.Shutdown, nil
}

// StartCall 为一次引擎调用开启 Span，调用者负责 End.
//
//nolint:spancheck // 生命周期由调用方管理.
func StartCall(ctx context.Context, op, category, method string) (context.Context, trace.Span) {
	return otel.Tracer(instrumentation).Start(ctx, "derivkit."+op,
		trace.WithAttributes(KeyCategory.String(category), KeyMethod.String(method)))
}

// MarkCacheHit 标记本次调用由缓存命中返回.
func MarkCacheHit(ctx context.Context) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(KeyCacheHit.Bool(true))
	}
}

// Warning 把数值告警记录为当前 Span 的事件，调用本身仍视为成功.
func Warning(ctx context.Context, kind, param, msg string) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent(msg, trace.WithAttributes(KeyWarning.String(kind), KeyParam.String(param)))
}

// SetError 将错误记录到当前 Span 并标记为失败.
func SetError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
