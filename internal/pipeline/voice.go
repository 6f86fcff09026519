package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"persona-engine/internal/entity"
)

// Fetcher acquires the audio behind a URL into destDir and returns the
// downloaded file's path (implementation: acquire.Chain).
type Fetcher interface {
	Fetch(ctx context.Context, url, destDir string) (string, error)
}

// Media is the external transcode tooling (implementation: media.FFmpeg).
type Media interface {
	Normalize(ctx context.Context, src, dst string) error
	Preview(ctx context.Context, src, dst string) error
}

// VoiceCloner is the voice-cloning service (implementation: elevenlabs.Client).
type VoiceCloner interface {
	Clone(ctx context.Context, audioPath, name string) (string, error)
}

// PersonaStore is the finalizer port for persona mutations; both methods
// run inside the job-completion transaction.
type PersonaStore interface {
	SetVoice(ctx context.Context, tx pgx.Tx, personaID uuid.UUID, voiceID string) error
	SetProfile(ctx context.Context, tx pgx.Tx, personaID uuid.UUID, transcript string, profile json.RawMessage) error
}

type voiceExtractInput struct {
	UserID    string `json:"user_id"`
	SourceURL string `json:"source_url"`
}

// VoiceExtract acquires source audio and transcodes a preview. The artifact
// path lands in the job output; no persona is touched.
func VoiceExtract(dataDir string, fetch Fetcher, media Media) *Pipeline {
	return &Pipeline{
		Type: entity.TypeVoiceExtract,
		Build: func(job *entity.Job) (*Plan, error) {
			var in voiceExtractInput
			if err := decodeInput(job.Input, &in, "user_id", "source_url"); err != nil {
				return nil, err
			}

			workDir := audioWorkDir(dataDir, in.UserID, job.ID)
			previewPath := filepath.Join(workDir, "preview.mp3")
			var rawPath string

			return &Plan{
				Steps: []Step{
					{Name: "acquire", Run: func(ctx context.Context) error {
						if err := os.MkdirAll(workDir, 0o755); err != nil {
							return err
						}
						p, err := fetch.Fetch(ctx, in.SourceURL, workDir)
						if err != nil {
							return err
						}
						rawPath = p
						return nil
					}},
					{Name: "preview", Run: func(ctx context.Context) error {
						return media.Preview(ctx, rawPath, previewPath)
					}},
				},
				Output: func() (json.RawMessage, error) {
					return json.Marshal(map[string]string{"audio_path": previewPath})
				},
			}, nil
		},
	}
}

type voiceCloneInput struct {
	UserID      string `json:"user_id"`
	PersonaID   string `json:"persona_id"`
	PersonaName string `json:"persona_name"`
	SourceURL   string `json:"source_url"`
	AudioPath   string `json:"audio_path"`
}

type cloneState struct {
	sourcePath string
	voiceID    string
}

// VoiceClone acquires source audio, normalizes it, submits it to the
// cloning service and persists the voice id onto the persona.
func VoiceClone(dataDir string, fetch Fetcher, media Media, cloner VoiceCloner, personas PersonaStore) *Pipeline {
	return &Pipeline{
		Type: entity.TypeVoiceClone,
		Build: func(job *entity.Job) (*Plan, error) {
			in, personaID, err := decodeCloneInput(job.Input, "source_url")
			if err != nil {
				return nil, err
			}

			workDir := audioWorkDir(dataDir, in.UserID, job.ID)
			state := &cloneState{}

			steps := []Step{
				{Name: "acquire", Run: func(ctx context.Context) error {
					if err := os.MkdirAll(workDir, 0o755); err != nil {
						return err
					}
					p, err := fetch.Fetch(ctx, in.SourceURL, workDir)
					if err != nil {
						return err
					}
					state.sourcePath = p
					return nil
				}},
			}
			steps = append(steps, cloneTail(state, workDir, in.PersonaName, media, cloner)...)

			return clonePlan(steps, state, personas, personaID), nil
		},
	}
}

// VoiceCloneFromExtract reuses a prior extract's artifact instead of
// downloading: the extract→clone handoff.
func VoiceCloneFromExtract(dataDir string, media Media, cloner VoiceCloner, personas PersonaStore) *Pipeline {
	return &Pipeline{
		Type: entity.TypeVoiceCloneFromExtract,
		Build: func(job *entity.Job) (*Plan, error) {
			in, personaID, err := decodeCloneInput(job.Input, "audio_path")
			if err != nil {
				return nil, err
			}

			workDir := audioWorkDir(dataDir, in.UserID, job.ID)
			state := &cloneState{}

			steps := []Step{
				{Name: "locate", Run: func(ctx context.Context) error {
					info, err := os.Stat(in.AudioPath)
					if err != nil || info.Size() == 0 {
						return fmt.Errorf("%w: %s", ErrArtifactNotFound, in.AudioPath)
					}
					if err := os.MkdirAll(workDir, 0o755); err != nil {
						return err
					}
					state.sourcePath = in.AudioPath
					return nil
				}},
			}
			steps = append(steps, cloneTail(state, workDir, in.PersonaName, media, cloner)...)

			return clonePlan(steps, state, personas, personaID), nil
		},
	}
}

func decodeCloneInput(raw json.RawMessage, sourceField string) (*voiceCloneInput, uuid.UUID, error) {
	var in voiceCloneInput
	if err := decodeInput(raw, &in, "user_id", "persona_id", "persona_name", sourceField); err != nil {
		return nil, uuid.Nil, err
	}
	personaID, err := uuid.Parse(in.PersonaID)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("persona_id: %w", err)
	}
	return &in, personaID, nil
}

// cloneTail is the shared normalize → clone part of both clone pipelines.
func cloneTail(state *cloneState, workDir, personaName string, media Media, cloner VoiceCloner) []Step {
	cleanPath := filepath.Join(workDir, "clean.wav")
	return []Step{
		{Name: "normalize", Run: func(ctx context.Context) error {
			return media.Normalize(ctx, state.sourcePath, cleanPath)
		}},
		{Name: "clone", Run: func(ctx context.Context) error {
			voiceID, err := cloner.Clone(ctx, cleanPath, personaName)
			if err != nil {
				return err
			}
			state.voiceID = voiceID
			return nil
		}},
	}
}

func clonePlan(steps []Step, state *cloneState, personas PersonaStore, personaID uuid.UUID) *Plan {
	return &Plan{
		Steps: steps,
		Finalize: func(ctx context.Context, tx pgx.Tx) error {
			return personas.SetVoice(ctx, tx, personaID, state.voiceID)
		},
		Output: func() (json.RawMessage, error) {
			return json.Marshal(map[string]string{"voice_id": state.voiceID})
		},
	}
}

func audioWorkDir(dataDir, userID string, jobID uuid.UUID) string {
	return filepath.Join(dataDir, "audio", userID, jobID.String())
}
