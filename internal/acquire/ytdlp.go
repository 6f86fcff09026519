package acquire

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// YtdlpProvider shells out to yt-dlp to extract audio as wav.
type YtdlpProvider struct {
	bin string
}

func NewYtdlp(bin string) *YtdlpProvider {
	if bin == "" {
		bin = "yt-dlp"
	}
	return &YtdlpProvider{bin: bin}
}

func (p *YtdlpProvider) Name() string { return "yt-dlp" }

func (p *YtdlpProvider) Fetch(ctx context.Context, url, destDir string) (string, error) {
	template := filepath.Join(destDir, "source.%(ext)s")
	cmd := exec.CommandContext(ctx, p.bin,
		"-x", "--audio-format", "wav",
		"--audio-quality", "0",
		"-o", template,
		url,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("yt-dlp: %w: %s", err, lastLine(out))
	}

	wavPath := filepath.Join(destDir, "source.wav")
	if _, err := os.Stat(wavPath); err == nil {
		return wavPath, nil
	}

	// Some extractors land on a different container.
	entries, err := os.ReadDir(destDir)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		switch filepath.Ext(e.Name()) {
		case ".wav", ".mp3", ".m4a":
			return filepath.Join(destDir, e.Name()), nil
		}
	}
	return "", fmt.Errorf("yt-dlp: no audio file in %s", destDir)
}

func lastLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}
