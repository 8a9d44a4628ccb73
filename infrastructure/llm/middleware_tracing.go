package llm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/citescope/citescope/internal/ports"
)

type tracingGenerator struct {
	next   ports.TextGenerator
	tracer trace.Tracer
}

// TracingMiddleware wraps generation calls in OpenTelemetry spans.
func TracingMiddleware() Middleware {
	return func(next ports.TextGenerator) ports.TextGenerator {
		return &tracingGenerator{
			next:   next,
			tracer: otel.Tracer("citescope/llm"),
		}
	}
}

func (t *tracingGenerator) Generate(ctx context.Context, prompt string, opts ports.GenerateOptions) (string, error) {
	ctx, span := t.tracer.Start(ctx, "llm.Generate",
		trace.WithAttributes(
			attribute.String("llm.model", t.next.Model()),
			attribute.Int("llm.prompt_length", len(prompt)),
		))
	defer span.End()

	response, err := t.next.Generate(ctx, prompt, opts)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	span.SetAttributes(attribute.Int("llm.response_length", len(response)))
	return response, nil
}

func (t *tracingGenerator) Model() string { return t.next.Model() }
