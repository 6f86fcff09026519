package pipeline

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Chunking parameters for ingested documents.
const (
	ChunkSize    = 512
	ChunkOverlap = 50
)

// ParseDocument extracts plain text from a product document. Supported:
// CSV, PDF, TXT, MD.
func ParseDocument(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %s", ErrArtifactNotFound, path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return parseCSV(path)
	case ".pdf":
		return parsePDF(path)
	case ".txt", ".md":
		b, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(b), nil
	default:
		return "", fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
	}
}

// parseCSV renders each record as "header: value | header: value", one
// record per line.
func parseCSV(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return "", nil
		}
		return "", err
	}

	var lines []string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		pairs := make([]string, 0, len(record))
		for i, v := range record {
			if i < len(header) {
				pairs = append(pairs, header[i]+": "+v)
			}
		}
		lines = append(lines, strings.Join(pairs, " | "))
	}
	return strings.Join(lines, "\n"), nil
}

func parsePDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var splitSeparators = []string{"\n\n", "\n", " ", ""}

// SplitText splits text into chunks of at most size characters, overlapping
// by roughly overlap characters, preferring paragraph then line then word
// boundaries.
func SplitText(text string, size, overlap int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return splitRecursive(text, splitSeparators, size, overlap)
}

func splitRecursive(text string, seps []string, size, overlap int) []string {
	sep := seps[len(seps)-1]
	rest := seps
	for i, s := range seps {
		if s == "" || strings.Contains(text, s) {
			sep = s
			rest = seps[i+1:]
			break
		}
	}

	var splits []string
	if sep == "" {
		splits = splitEvery(text, size)
	} else {
		splits = strings.Split(text, sep)
	}

	var (
		chunks  []string
		current []string
		curLen  int
	)
	sepLen := len(sep)

	flush := func() {
		if len(current) == 0 {
			return
		}
		if chunk := strings.TrimSpace(strings.Join(current, sep)); chunk != "" {
			chunks = append(chunks, chunk)
		}
	}

	for _, s := range splits {
		// A single piece larger than the budget recurses on finer separators.
		if len(s) > size {
			flush()
			current, curLen = nil, 0
			chunks = append(chunks, splitRecursive(s, rest, size, overlap)...)
			continue
		}
		if curLen > 0 && curLen+len(s)+sepLen > size {
			flush()
			// Drop from the front until only the overlap tail remains.
			for len(current) > 0 && (curLen > overlap || curLen+len(s)+sepLen > size) {
				curLen -= len(current[0]) + sepLen
				current = current[1:]
			}
		}
		current = append(current, s)
		curLen += len(s) + sepLen
	}
	flush()

	return chunks
}

func splitEvery(s string, size int) []string {
	runes := []rune(s)
	var out []string
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		out = append(out, string(runes[start:end]))
	}
	return out
}
