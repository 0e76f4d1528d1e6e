package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/coursetree-backend/internal/domain/tree"
	"github.com/yungbote/coursetree-backend/internal/modules/tree/prompts"
	"github.com/yungbote/coursetree-backend/internal/platform/logger"
)

// Client is the structured-output model boundary (satisfied by the OpenAI client).
type Client interface {
	GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (map[string]any, error)
}

// Recorder receives one observation per oracle call.
type Recorder interface {
	ObserveOracleCall(prompt string, outcome string, d time.Duration)
}

// Caller is what generation stages depend on.
type Caller interface {
	Call(ctx context.Context, name prompts.PromptName, in prompts.Input, out any) error
}

type Oracle struct {
	log      *logger.Logger
	client   Client
	language string
	rec      Recorder
}

func New(log *logger.Logger, client Client, language string, rec Recorder) *Oracle {
	return &Oracle{
		log:      log.With("service", "GenerationOracle"),
		client:   client,
		language: language,
		rec:      rec,
	}
}

// Call renders the named prompt, asks the model for that prompt's shape, validates the
// response against the schema and decodes it into out. Shape mismatches wrap tree.ErrSchemaViolation.
func (o *Oracle) Call(ctx context.Context, name prompts.PromptName, in prompts.Input, out any) (err error) {
	if o == nil || o.client == nil {
		return fmt.Errorf("oracle not configured")
	}
	if in.Language == "" {
		in.Language = o.language
	}
	ctx, span := otel.Tracer("coursetree/oracle").Start(ctx, "oracle."+string(name))
	start := time.Now()
	defer func() {
		outcome := "ok"
		switch {
		case err == nil:
		case errors.Is(err, tree.ErrSchemaViolation):
			outcome = "schema_violation"
		case errors.Is(err, context.Canceled):
			outcome = "canceled"
		default:
			outcome = "error"
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.End()
		if o.rec != nil {
			o.rec.ObserveOracleCall(string(name), outcome, time.Since(start))
		}
	}()

	p, err := prompts.Build(name, in)
	if err != nil {
		return err
	}
	span.SetAttributes(
		attribute.String("prompt.name", p.Name),
		attribute.Int("prompt.version", p.Version),
		attribute.String("prompt.fingerprint", p.Fingerprint()),
	)

	obj, err := o.client.GenerateJSON(ctx, p.System, p.User, p.SchemaName, p.Schema)
	if err != nil {
		return fmt.Errorf("%s: %w", p.Name, err)
	}
	if obj == nil {
		return &tree.SchemaError{Schema: p.SchemaName, Reason: "empty response"}
	}
	if err := Validate(p.SchemaName, p.Schema, obj); err != nil {
		o.log.Warn("Oracle response rejected", "prompt", p.Name, "error", err)
		return err
	}
	if out == nil {
		return nil
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("%s: re-encode response: %w", p.Name, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &tree.SchemaError{Schema: p.SchemaName, Reason: err.Error()}
	}
	return nil
}
