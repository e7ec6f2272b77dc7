package processor

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

var noopTracer = noop.NewTracerProvider().Tracer("")

type noopTelemetry struct{}

func (noopTelemetry) StartSpan(ctx context.Context, name string, _ ...attribute.KeyValue) (context.Context, trace.Span) {
	return noopTracer.Start(ctx, name)
}

func (noopTelemetry) RecordBatch(string, int, time.Duration) {}
func (noopTelemetry) RecordWrites(int, int)                  {}
func (noopTelemetry) SetActiveWorkers(int)                   {}
func (noopTelemetry) SetPending(string, int64)               {}
