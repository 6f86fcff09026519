package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"persona-engine/internal/entity"
	"persona-engine/internal/repository/postgresql"
	"persona-engine/internal/service"
)

type fakeRepo struct {
	createCalled int
	lastType     string
	lastInput    json.RawMessage

	createID  uuid.UUID
	createErr error
}

func (r *fakeRepo) Create(ctx context.Context, typ string, input json.RawMessage) (uuid.UUID, error) {
	r.createCalled++
	r.lastType = typ
	r.lastInput = input
	if r.createErr != nil {
		return uuid.Nil, r.createErr
	}
	return r.createID, nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	return nil, postgresql.ErrNotFound
}

type fakeSignal struct {
	pushedTypes []string
	pushedIDs   []string
	pushErr     error
}

func (s *fakeSignal) Push(ctx context.Context, typ, jobID string) error {
	s.pushedTypes = append(s.pushedTypes, typ)
	s.pushedIDs = append(s.pushedIDs, jobID)
	return s.pushErr
}

func TestJobService_CreateJob_SignalsJobType(t *testing.T) {
	ctx := context.Background()
	id := uuid.MustParse("66666666-6666-6666-6666-666666666666")

	repo := &fakeRepo{createID: id}
	sig := &fakeSignal{}
	svc := service.NewJobService(repo, sig, zerolog.Nop())

	got, err := svc.CreateJob(ctx, service.CreateJobRequest{
		Type:  entity.TypeRAGIngest,
		Input: json.RawMessage(`{"user_id":"u1","product_id":"P1","file_path":"catalog.csv"}`),
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got != id {
		t.Fatalf("expected id %s, got %s", id, got)
	}
	if repo.lastType != entity.TypeRAGIngest {
		t.Fatalf("expected type stored, got %q", repo.lastType)
	}
	if len(sig.pushedIDs) != 1 || sig.pushedIDs[0] != id.String() || sig.pushedTypes[0] != entity.TypeRAGIngest {
		t.Fatalf("expected signal for created job, got %v/%v", sig.pushedTypes, sig.pushedIDs)
	}
}

func TestJobService_CreateJob_UnknownType(t *testing.T) {
	repo := &fakeRepo{}
	svc := service.NewJobService(repo, &fakeSignal{}, zerolog.Nop())

	if _, err := svc.CreateJob(context.Background(), service.CreateJobRequest{Type: "mystery"}); err == nil {
		t.Fatal("expected error for unknown type")
	}
	if repo.createCalled != 0 {
		t.Fatal("repo must not be called for unknown type")
	}
}

func TestJobService_CreateJob_MissingRequiredField(t *testing.T) {
	repo := &fakeRepo{}
	svc := service.NewJobService(repo, &fakeSignal{}, zerolog.Nop())

	_, err := svc.CreateJob(context.Background(), service.CreateJobRequest{
		Type:  entity.TypeVoiceClone,
		Input: json.RawMessage(`{"user_id":"u1","persona_name":"Echo"}`),
	})
	if err == nil {
		t.Fatal("expected error for missing persona_id")
	}
	if repo.createCalled != 0 {
		t.Fatal("repo must not be called for invalid input")
	}
}

func TestJobService_CreateJob_SignalFailureIsNotFatal(t *testing.T) {
	id := uuid.MustParse("77777777-7777-7777-7777-777777777777")
	repo := &fakeRepo{createID: id}
	sig := &fakeSignal{pushErr: errors.New("redis down")}
	svc := service.NewJobService(repo, sig, zerolog.Nop())

	got, err := svc.CreateJob(context.Background(), service.CreateJobRequest{
		Type:  entity.TypePersonaExtract,
		Input: json.RawMessage(`{"user_id":"u1","persona_id":"p1"}`),
	})
	if err != nil {
		t.Fatalf("enqueue must survive a dropped signal, got %v", err)
	}
	if got != id {
		t.Fatalf("expected id %s, got %s", id, got)
	}
}
