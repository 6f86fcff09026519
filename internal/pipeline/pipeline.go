package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"persona-engine/internal/entity"
)

// Step is one unit of pipeline work. Steps share state with each other and
// with the finalizer through the closures their Build function creates.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// FinalizeFunc holds the type-specific side effects of a successful run.
// It executes inside the same transaction as the job's completed write.
type FinalizeFunc func(ctx context.Context, tx pgx.Tx) error

// Plan is a pipeline bound to one job: the ordered steps, the finalizer
// (nil when the type has no domain side effects), and the output, computed
// after the steps have run.
type Plan struct {
	Steps    []Step
	Finalize FinalizeFunc
	Output   func() (json.RawMessage, error)
}

// Pipeline describes how to build a Plan for a job type. Build validates
// and decodes the job's input, so malformed input fails before any step.
type Pipeline struct {
	Type  string
	Build func(job *entity.Job) (*Plan, error)
}

// Result is what the worker hands to the job store's Complete.
type Result struct {
	Output   json.RawMessage
	Finalize FinalizeFunc
}

// Executor runs the registered pipeline for a job's type. Steps are not
// retried: the first failing step aborts the rest and its error becomes the
// job's terminal error.
type Executor struct {
	pipelines map[string]*Pipeline
	log       zerolog.Logger
}

func NewExecutor(log zerolog.Logger, pipelines ...*Pipeline) *Executor {
	e := &Executor{
		pipelines: make(map[string]*Pipeline, len(pipelines)),
		log:       log,
	}
	for _, p := range pipelines {
		e.pipelines[p.Type] = p
	}
	return e
}

func (e *Executor) Has(typ string) bool {
	_, ok := e.pipelines[typ]
	return ok
}

func (e *Executor) Execute(ctx context.Context, job *entity.Job) (*Result, error) {
	p, ok := e.pipelines[job.Type]
	if !ok {
		return nil, fmt.Errorf("no pipeline registered for job type %q", job.Type)
	}

	plan, err := p.Build(job)
	if err != nil {
		return nil, err
	}

	for _, step := range plan.Steps {
		start := time.Now()
		e.log.Info().
			Str("job_id", job.ID.String()).
			Str("job_type", job.Type).
			Str("step", step.Name).
			Msg("step started")

		if err := step.Run(ctx); err != nil {
			return nil, &StepError{Step: step.Name, Err: err}
		}

		e.log.Info().
			Str("job_id", job.ID.String()).
			Str("job_type", job.Type).
			Str("step", step.Name).
			Dur("duration", time.Since(start)).
			Msg("step completed")
	}

	output, err := plan.Output()
	if err != nil {
		return nil, fmt.Errorf("encode output: %w", err)
	}

	return &Result{Output: output, Finalize: plan.Finalize}, nil
}

// decodeInput checks the required fields are present and non-empty, then
// decodes the payload into dst.
func decodeInput(raw json.RawMessage, dst any, required ...string) error {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("decode input: %w", err)
	}
	for _, name := range required {
		if s, ok := fields[name].(string); !ok || s == "" {
			return &MissingInputError{Field: name}
		}
	}
	return json.Unmarshal(raw, dst)
}
