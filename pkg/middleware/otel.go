package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultTracerName = "querysync"

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "querysync").
	TracerName string

	// Filter determines which events to trace.
	// If nil, all events are traced.
	Filter func(ev *Event) bool

	// AttributeExtractor extracts custom attributes per event.
	AttributeExtractor func(ev *Event) []attribute.KeyValue

	tracer trace.Tracer
}

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithEventFilter sets a filter function for events.
func WithEventFilter(filter func(ev *Event) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(ev *Event) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

// OpenTelemetry returns event middleware that opens a span per state-change
// event. Spans carry the session ID, handler name, current path, and the
// patch count the event produced; errors set the span status.
//
// The tracer resolves against the global provider, so configure it in main
// before the server starts:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
func OpenTelemetry(opts ...OTelOption) Middleware {
	config := OTelConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}
	config.tracer = otel.Tracer(config.TracerName)

	return func(ctx context.Context, ev *Event, next func(context.Context) error) error {
		if config.Filter != nil && !config.Filter(ev) {
			return next(ctx)
		}

		attrs := []attribute.KeyValue{
			attribute.String("querysync.session_id", ev.SessionID),
			attribute.String("querysync.handler", ev.Handler),
			attribute.String("querysync.path", ev.Path),
		}
		if config.AttributeExtractor != nil {
			attrs = append(attrs, config.AttributeExtractor(ev)...)
		}

		spanCtx, span := config.tracer.Start(
			ctx,
			"querysync."+ev.Handler,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		err := next(spanCtx)

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.SetAttributes(attribute.Int("querysync.patch_count", ev.PatchCount))

		return err
	}
}
