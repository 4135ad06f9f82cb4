// Package telemetry sets up logging and tracing for the storefront binaries.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/config"
	"storefront/internal/logsink"
)

// Shutdown flushes and stops whatever Setup started.
type Shutdown func(context.Context) error

// Setup installs the default slog logger. With an OTLP endpoint configured,
// logs go through the OpenTelemetry bridge and spans are exported too;
// otherwise logs are text on stderr and tracing stays a no-op.
func Setup(ctx context.Context, cfg config.TelemetryConfig) (Shutdown, error) {
	level := ParseLevel(cfg.LogLevel)

	if cfg.OTLPEndpoint == "" {
		handler, closeSink, err := withSink(ctx, cfg, slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		if err != nil {
			return nil, err
		}
		slog.SetDefault(slog.New(handler))
		return func(context.Context) error { return closeSink() }, nil
	}

	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))

	logExporter, err := otlploghttp.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("create otlp log exporter: %w", err)
	}
	traceExporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("create otlp trace exporter: %w", err)
	}

	loggerProvider := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
	)
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(traceExporter),
	)
	otel.SetTracerProvider(tracerProvider)

	handler, closeSink, err := withSink(ctx, cfg, levelHandler{
		Handler: otelslog.NewHandler(cfg.ServiceName, otelslog.WithLoggerProvider(loggerProvider)),
		level:   level,
	})
	if err != nil {
		return nil, errors.Join(err, loggerProvider.Shutdown(ctx), tracerProvider.Shutdown(ctx))
	}
	slog.SetDefault(slog.New(handler))

	return func(ctx context.Context) error {
		return errors.Join(closeSink(), loggerProvider.Shutdown(ctx), tracerProvider.Shutdown(ctx))
	}, nil
}

// withSink adds the append blob log sink next to base when it is configured.
func withSink(ctx context.Context, cfg config.TelemetryConfig, base slog.Handler) (slog.Handler, func() error, error) {
	sinkCfg := logsink.Config{
		AccountName: cfg.LogStorage.AccountName,
		AccountKey:  cfg.LogStorage.AccountKey,
		Container:   cfg.LogStorage.Container,
		Prefix:      cfg.LogBlobPrefix,
	}
	if !sinkCfg.Enabled() {
		return base, func() error { return nil }, nil
	}
	sink, err := logsink.New(ctx, sinkCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create log sink: %w", err)
	}
	return fanout{base, levelHandler{Handler: sink, level: ParseLevel(cfg.LogLevel)}}, sink.Close, nil
}

// ParseLevel accepts debug, info, warn and error. Anything else is info.
func ParseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// RecordError marks span failed with err.
func RecordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// levelHandler drops records below level before they reach the exporter.
type levelHandler struct {
	slog.Handler
	level slog.Leveler
}

func (h levelHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return l >= h.level.Level() && h.Handler.Enabled(ctx, l)
}

func (h levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return levelHandler{Handler: h.Handler.WithAttrs(attrs), level: h.level}
}

func (h levelHandler) WithGroup(name string) slog.Handler {
	return levelHandler{Handler: h.Handler.WithGroup(name), level: h.level}
}

// fanout sends every record to each handler that wants it.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make(fanout, len(f))
	for i, h := range f {
		next[i] = h.WithAttrs(attrs)
	}
	return next
}

func (f fanout) WithGroup(name string) slog.Handler {
	next := make(fanout, len(f))
	for i, h := range f {
		next[i] = h.WithGroup(name)
	}
	return next
}
