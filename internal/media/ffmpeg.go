// Package media wraps the external ffmpeg invocation with the explicit
// format, rate and channel parameters the pipelines need.
package media

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

type FFmpeg struct {
	bin string
}

func NewFFmpeg(bin string) *FFmpeg {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &FFmpeg{bin: bin}
}

// Normalize produces clone-ready audio: mono, 44.1 kHz, loudness-normalized.
func (f *FFmpeg) Normalize(ctx context.Context, src, dst string) error {
	return f.run(ctx,
		"-y", "-i", src,
		"-ac", "1", "-ar", "44100",
		"-filter:a", "loudnorm",
		dst,
	)
}

// Preview transcodes to a small mono mp3.
func (f *FFmpeg) Preview(ctx context.Context, src, dst string) error {
	return f.run(ctx,
		"-y", "-i", src,
		"-ac", "1", "-b:a", "128k",
		dst,
	)
}

// Opus converts to ogg/opus, the container voice chat channels expect.
func (f *FFmpeg) Opus(ctx context.Context, src, dst string) error {
	return f.run(ctx,
		"-y", "-i", src,
		"-c:a", "libopus", "-b:a", "64k",
		dst,
	)
}

func (f *FFmpeg) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, f.bin, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, lastLine(out))
	}
	return nil
}

func lastLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}
