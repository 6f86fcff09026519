package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"persona-engine/internal/entity"
)

// Transcriber is the speech-to-text service (implementation: openai.Client).
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Profiler turns a transcript into a structured persona profile
// (implementation: openai.Client). The returned JSON is persisted verbatim.
type Profiler interface {
	ExtractProfile(ctx context.Context, transcript string) (json.RawMessage, error)
}

type personaExtractInput struct {
	UserID    string `json:"user_id"`
	PersonaID string `json:"persona_id"`
}

// PersonaExtract locates the user's newest clean-audio artifact, transcribes
// it and extracts a persona profile onto the persona's auto_profile.
func PersonaExtract(dataDir string, transcriber Transcriber, profiler Profiler, personas PersonaStore) *Pipeline {
	return &Pipeline{
		Type: entity.TypePersonaExtract,
		Build: func(job *entity.Job) (*Plan, error) {
			var in personaExtractInput
			if err := decodeInput(job.Input, &in, "user_id", "persona_id"); err != nil {
				return nil, err
			}
			personaID, err := uuid.Parse(in.PersonaID)
			if err != nil {
				return nil, fmt.Errorf("persona_id: %w", err)
			}

			var (
				audioPath  string
				transcript string
				profile    json.RawMessage
			)

			return &Plan{
				Steps: []Step{
					{Name: "locate", Run: func(ctx context.Context) error {
						p, err := findCleanAudio(dataDir, in.UserID)
						if err != nil {
							return err
						}
						audioPath = p
						return nil
					}},
					{Name: "transcribe", Run: func(ctx context.Context) error {
						t, err := transcriber.Transcribe(ctx, audioPath)
						if err != nil {
							return err
						}
						transcript = t
						return nil
					}},
					{Name: "profile", Run: func(ctx context.Context) error {
						p, err := profiler.ExtractProfile(ctx, transcript)
						if err != nil {
							return err
						}
						profile = p
						return nil
					}},
				},
				Finalize: func(ctx context.Context, tx pgx.Tx) error {
					return personas.SetProfile(ctx, tx, personaID, transcript, profile)
				},
				Output: func() (json.RawMessage, error) {
					return profile, nil
				},
			}, nil
		},
	}
}

// findCleanAudio returns the newest clean.wav under the user's audio area.
func findCleanAudio(dataDir, userID string) (string, error) {
	root := filepath.Join(dataDir, "audio", userID)
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("%w: no audio for user %s", ErrArtifactNotFound, userID)
	}

	var (
		newest    string
		newestMod time.Time
	)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		candidate := filepath.Join(root, e.Name(), "clean.wav")
		info, err := os.Stat(candidate)
		if err != nil || info.Size() == 0 {
			continue
		}
		if info.ModTime().After(newestMod) {
			newest = candidate
			newestMod = info.ModTime()
		}
	}
	if newest == "" {
		return "", fmt.Errorf("%w: no clean audio for user %s", ErrArtifactNotFound, userID)
	}
	return newest, nil
}
