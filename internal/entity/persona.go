package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	VoiceStatusPending = "pending"
	VoiceStatusReady   = "ready"
)

// Persona is a cloned-voice configuration. AutoProfile is written by the
// persona_extract pipeline; ManualOverrides is edited by the user and takes
// precedence over AutoProfile when both define the same field.
type Persona struct {
	ID              uuid.UUID       `json:"id"`
	UserID          uuid.UUID       `json:"user_id"`
	Name            string          `json:"name"`
	VoiceID         *string         `json:"voice_id,omitempty"`
	VoiceStatus     string          `json:"voice_status"`
	Transcript      *string         `json:"transcript,omitempty"`
	AutoProfile     json.RawMessage `json:"auto_profile,omitempty"`
	ManualOverrides json.RawMessage `json:"manual_overrides,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ProductChunk is one stored slice of an ingested product document.
// EmbeddingID matches the id of the chunk's vector in the vector store.
type ProductChunk struct {
	ProductID   string `json:"product_id"`
	Content     string `json:"content"`
	ChunkIndex  int    `json:"chunk_index"`
	EmbeddingID string `json:"embedding_id"`
}
