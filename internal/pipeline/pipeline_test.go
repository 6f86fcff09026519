package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"persona-engine/internal/entity"
	"persona-engine/internal/pipeline"
)

func testJob(typ string, input string) *entity.Job {
	return &entity.Job{
		ID:     uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		Type:   typ,
		Status: entity.StatusProcessing,
		Input:  json.RawMessage(input),
	}
}

func TestExecutor_RunsStepsInOrder(t *testing.T) {
	var ran []string

	p := &pipeline.Pipeline{
		Type: "test_job",
		Build: func(job *entity.Job) (*pipeline.Plan, error) {
			step := func(name string) pipeline.Step {
				return pipeline.Step{Name: name, Run: func(ctx context.Context) error {
					ran = append(ran, name)
					return nil
				}}
			}
			return &pipeline.Plan{
				Steps: []pipeline.Step{step("one"), step("two"), step("three")},
				Output: func() (json.RawMessage, error) {
					return json.RawMessage(`{"ok":true}`), nil
				},
			}, nil
		},
	}

	exec := pipeline.NewExecutor(zerolog.Nop(), p)
	res, err := exec.Execute(context.Background(), testJob("test_job", `{}`))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if len(ran) != 3 || ran[0] != "one" || ran[1] != "two" || ran[2] != "three" {
		t.Fatalf("expected steps in order, got %v", ran)
	}
	if string(res.Output) != `{"ok":true}` {
		t.Fatalf("unexpected output: %s", res.Output)
	}
	if res.Finalize != nil {
		t.Fatalf("expected nil finalizer")
	}
}

func TestExecutor_StepFailureAbortsRemaining(t *testing.T) {
	var ran []string
	boom := errors.New("boom")

	p := &pipeline.Pipeline{
		Type: "test_job",
		Build: func(job *entity.Job) (*pipeline.Plan, error) {
			return &pipeline.Plan{
				Steps: []pipeline.Step{
					{Name: "first", Run: func(ctx context.Context) error {
						ran = append(ran, "first")
						return nil
					}},
					{Name: "explode", Run: func(ctx context.Context) error {
						return boom
					}},
					{Name: "never", Run: func(ctx context.Context) error {
						ran = append(ran, "never")
						return nil
					}},
				},
				Output: func() (json.RawMessage, error) { return nil, nil },
			}, nil
		},
	}

	exec := pipeline.NewExecutor(zerolog.Nop(), p)
	_, err := exec.Execute(context.Background(), testJob("test_job", `{}`))
	if err == nil {
		t.Fatal("expected error")
	}

	var stepErr *pipeline.StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("expected StepError, got %T: %v", err, err)
	}
	if stepErr.Step != "explode" {
		t.Fatalf("expected failing step %q, got %q", "explode", stepErr.Step)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
	if len(ran) != 1 || ran[0] != "first" {
		t.Fatalf("expected only first step to run, got %v", ran)
	}
}

func TestExecutor_UnknownType(t *testing.T) {
	exec := pipeline.NewExecutor(zerolog.Nop())
	_, err := exec.Execute(context.Background(), testJob("mystery", `{}`))
	if err == nil {
		t.Fatal("expected error for unregistered type")
	}
}
