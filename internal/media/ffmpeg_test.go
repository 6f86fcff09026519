package media

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// stubFFmpeg writes a shell script that records its arguments, standing in
// for the real binary.
func stubFFmpeg(t *testing.T, body string) (bin, argsFile string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stub")
	}
	dir := t.TempDir()
	argsFile = filepath.Join(dir, "args")
	bin = filepath.Join(dir, "ffmpeg")
	script := "#!/bin/sh\necho \"$@\" > \"" + argsFile + "\"\n" + body
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return bin, argsFile
}

func recordedArgs(t *testing.T, argsFile string) string {
	t.Helper()
	b, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatal(err)
	}
	return strings.TrimSpace(string(b))
}

func TestOpus_InvokesOpusEncoder(t *testing.T) {
	bin, argsFile := stubFFmpeg(t, "")
	f := NewFFmpeg(bin)

	if err := f.Opus(context.Background(), "/in/reply.mp3", "/out/reply.ogg"); err != nil {
		t.Fatal(err)
	}

	args := recordedArgs(t, argsFile)
	for _, want := range []string{"-c:a libopus", "-b:a 64k", "/in/reply.mp3", "/out/reply.ogg"} {
		if !strings.Contains(args, want) {
			t.Fatalf("args %q missing %q", args, want)
		}
	}
}

func TestNormalize_InvokesLoudnorm(t *testing.T) {
	bin, argsFile := stubFFmpeg(t, "")
	f := NewFFmpeg(bin)

	if err := f.Normalize(context.Background(), "/in/source.wav", "/out/clean.wav"); err != nil {
		t.Fatal(err)
	}

	args := recordedArgs(t, argsFile)
	for _, want := range []string{"-ac 1", "-ar 44100", "-filter:a loudnorm"} {
		if !strings.Contains(args, want) {
			t.Fatalf("args %q missing %q", args, want)
		}
	}
}

func TestRun_SurfacesLastOutputLine(t *testing.T) {
	bin, _ := stubFFmpeg(t, "echo first diagnostic\necho no such codec\nexit 1\n")
	f := NewFFmpeg(bin)

	err := f.Opus(context.Background(), "/in/a", "/out/b")
	if err == nil || !strings.Contains(err.Error(), "no such codec") {
		t.Fatalf("err = %v", err)
	}
	if strings.Contains(err.Error(), "first diagnostic") {
		t.Fatalf("error should carry only the last line, got %v", err)
	}
}
