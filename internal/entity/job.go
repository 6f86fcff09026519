package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Job types, one per registered pipeline.
const (
	TypeVoiceExtract          = "voice_extract"
	TypeVoiceClone            = "voice_clone"
	TypeVoiceCloneFromExtract = "voice_clone_from_extract"
	TypePersonaExtract        = "persona_extract"
	TypeRAGIngest             = "rag_ingest"
)

func KnownJobType(typ string) bool {
	switch typ {
	case TypeVoiceExtract, TypeVoiceClone, TypeVoiceCloneFromExtract, TypePersonaExtract, TypeRAGIngest:
		return true
	}
	return false
}

type Job struct {
	ID          uuid.UUID       `json:"id"`
	Type        string          `json:"type"`
	Status      JobStatus       `json:"status"`
	Input       json.RawMessage `json:"input"`
	Output      json.RawMessage `json:"output,omitempty"`
	Error       *string         `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	HeartbeatAt *time.Time      `json:"heartbeat_at,omitempty"`
}
