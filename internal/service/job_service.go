package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"persona-engine/internal/entity"
)

// Repository port (implementation: postgresql.JobRepository).
type JobRepository interface {
	Create(ctx context.Context, typ string, input json.RawMessage) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
}

// Signal port used on the enqueue side only.
type SignalPusher interface {
	Push(ctx context.Context, typ, jobID string) error
}

type JobService struct {
	repo   JobRepository
	signal SignalPusher
	log    zerolog.Logger
}

func NewJobService(repo JobRepository, signal SignalPusher, log zerolog.Logger) *JobService {
	return &JobService{repo: repo, signal: signal, log: log}
}

type CreateJobRequest struct {
	Type  string
	Input json.RawMessage
}

// requiredInput lists the input fields each job type must carry. Missing
// fields are rejected at enqueue, before a worker ever sees the job.
var requiredInput = map[string][]string{
	entity.TypeVoiceExtract:          {"user_id", "source_url"},
	entity.TypeVoiceClone:            {"user_id", "persona_id", "persona_name", "source_url"},
	entity.TypeVoiceCloneFromExtract: {"user_id", "persona_id", "persona_name", "audio_path"},
	entity.TypePersonaExtract:        {"user_id", "persona_id"},
	entity.TypeRAGIngest:             {"user_id", "product_id", "file_path"},
}

func (s *JobService) CreateJob(ctx context.Context, req CreateJobRequest) (uuid.UUID, error) {
	if !entity.KnownJobType(req.Type) {
		return uuid.Nil, fmt.Errorf("unknown job type %q", req.Type)
	}
	if len(req.Input) == 0 {
		req.Input = json.RawMessage(`{}`)
	}

	var fields map[string]any
	if err := json.Unmarshal(req.Input, &fields); err != nil {
		return uuid.Nil, fmt.Errorf("input must be a JSON object: %w", err)
	}
	for _, name := range requiredInput[req.Type] {
		if v, ok := fields[name].(string); !ok || v == "" {
			return uuid.Nil, fmt.Errorf("input field %q is required", name)
		}
	}

	id, err := s.repo.Create(ctx, req.Type, req.Input)
	if err != nil {
		return uuid.Nil, err
	}

	// The signal is best effort: workers poll on timeout, so a dropped
	// push delays the job rather than stranding it.
	if err := s.signal.Push(ctx, req.Type, id.String()); err != nil {
		s.log.Warn().Err(err).Str("job_id", id.String()).Str("job_type", req.Type).Msg("signal push failed")
	}

	return id, nil
}

func (s *JobService) GetJob(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	return s.repo.GetByID(ctx, id)
}
