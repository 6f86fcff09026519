package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"persona-engine/internal/entity"
	"persona-engine/internal/pipeline"
)

type fakeTranscriber struct {
	text  string
	audio string
	err   error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	f.audio = audioPath
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type fakeProfiler struct {
	profile    json.RawMessage
	transcript string
	err        error
}

func (f *fakeProfiler) ExtractProfile(ctx context.Context, transcript string) (json.RawMessage, error) {
	f.transcript = transcript
	if f.err != nil {
		return nil, f.err
	}
	return f.profile, nil
}

func writeCleanAudio(t *testing.T, dataDir, userID, jobDir string, mod time.Time) string {
	t.Helper()
	dir := filepath.Join(dataDir, "audio", userID, jobDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "clean.wav")
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPersonaExtract_ProfileStoredVerbatim(t *testing.T) {
	dataDir := t.TempDir()
	now := time.Now()
	writeCleanAudio(t, dataDir, "u1", "job-old", now.Add(-time.Hour))
	newest := writeCleanAudio(t, dataDir, "u1", "job-new", now)

	profile := json.RawMessage(`{"name":"Alex","tone":"casual","dos":["greet warmly"],"donts":["hard sell"]}`)
	transcriber := &fakeTranscriber{text: "hi folks, Alex here"}
	profiler := &fakeProfiler{profile: profile}
	personas := &fakePersonaStore{}

	exec := pipeline.NewExecutor(zerolog.Nop(),
		pipeline.PersonaExtract(dataDir, transcriber, profiler, personas))

	input := fmt.Sprintf(`{"user_id":"u1","persona_id":%q}`, testPersonaID)
	res, err := exec.Execute(context.Background(), testJob(entity.TypePersonaExtract, input))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if transcriber.audio != newest {
		t.Fatalf("expected newest clean audio %q, got %q", newest, transcriber.audio)
	}
	if profiler.transcript != "hi folks, Alex here" {
		t.Fatalf("profiler got wrong transcript: %q", profiler.transcript)
	}

	// The profile passes through byte for byte.
	if string(res.Output) != string(profile) {
		t.Fatalf("output altered: %s", res.Output)
	}
	if err := res.Finalize(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if string(personas.profile) != string(profile) {
		t.Fatalf("stored profile altered: %s", personas.profile)
	}
	if personas.transcript != "hi folks, Alex here" {
		t.Fatalf("unexpected stored transcript: %q", personas.transcript)
	}
	if personas.profilePersona != uuid.MustParse(testPersonaID) {
		t.Fatalf("unexpected persona id: %s", personas.profilePersona)
	}
}

func TestPersonaExtract_NoAudioForUser(t *testing.T) {
	exec := pipeline.NewExecutor(zerolog.Nop(),
		pipeline.PersonaExtract(t.TempDir(), &fakeTranscriber{}, &fakeProfiler{}, &fakePersonaStore{}))

	input := fmt.Sprintf(`{"user_id":"ghost","persona_id":%q}`, testPersonaID)
	_, err := exec.Execute(context.Background(), testJob(entity.TypePersonaExtract, input))

	if !errors.Is(err, pipeline.ErrArtifactNotFound) {
		t.Fatalf("expected artifact-not-found, got %v", err)
	}
	var stepErr *pipeline.StepError
	if !errors.As(err, &stepErr) || stepErr.Step != "locate" {
		t.Fatalf("expected locate step failure, got %v", err)
	}
}
