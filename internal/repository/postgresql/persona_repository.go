package postgresql

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"persona-engine/internal/entity"
)

type PersonaRepository struct {
	pool *pgxpool.Pool
}

func NewPersonaRepository(pool *pgxpool.Pool) *PersonaRepository {
	return &PersonaRepository{pool: pool}
}

func (r *PersonaRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Persona, error) {
	const q = `
SELECT id, user_id, name, voice_id, voice_status, transcript, auto_profile, manual_overrides, updated_at
FROM personas
WHERE id = $1;
`
	var (
		p             entity.Persona
		profileBytes  []byte
		overrideBytes []byte
	)
	if err := r.pool.QueryRow(ctx, q, id).Scan(
		&p.ID,
		&p.UserID,
		&p.Name,
		&p.VoiceID,
		&p.VoiceStatus,
		&p.Transcript,
		&profileBytes,
		&overrideBytes,
		&p.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p.AutoProfile = json.RawMessage(profileBytes)
	p.ManualOverrides = json.RawMessage(overrideBytes)
	return &p, nil
}

// SetVoice runs inside a job-completion transaction.
func (r *PersonaRepository) SetVoice(ctx context.Context, tx pgx.Tx, personaID uuid.UUID, voiceID string) error {
	const q = `
UPDATE personas
SET voice_id = $2, voice_status = 'ready', updated_at = now()
WHERE id = $1;
`
	tag, err := tx.Exec(ctx, q, personaID, voiceID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetProfile runs inside a job-completion transaction. The profile JSON is
// stored verbatim as returned by the profiling service.
func (r *PersonaRepository) SetProfile(ctx context.Context, tx pgx.Tx, personaID uuid.UUID, transcript string, profile json.RawMessage) error {
	const q = `
UPDATE personas
SET transcript = $2, auto_profile = $3, updated_at = now()
WHERE id = $1;
`
	tag, err := tx.Exec(ctx, q, personaID, transcript, profile)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
