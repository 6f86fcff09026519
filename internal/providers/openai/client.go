// Package openai is a lightweight client for the three OpenAI endpoints the
// pipelines consume: Whisper transcription, embeddings and the persona
// profiling completion.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

const (
	transcriptionModel = "whisper-1"
	embeddingModel     = "text-embedding-3-small"
	profileModel       = "gpt-4o"

	// Transcripts are truncated before profiling to stay inside the
	// completion context budget.
	maxProfileTranscript = 15000
)

type Options struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

func NewClient(opts Options) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		apiKey:     opts.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		log:        opts.Logger,
	}
}

// Transcribe sends the audio file to Whisper and returns the transcript.
func (c *Client) Transcribe(ctx context.Context, audioPath string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", err
	}
	if err := mw.WriteField("model", transcriptionModel); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := c.post(ctx, "/audio/transcriptions", mw.FormDataContentType(), &body, &out); err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	return out.Text, nil
}

// Embed returns one vector per input text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	payload, err := json.Marshal(map[string]any{
		"model": embeddingModel,
		"input": texts,
	})
	if err != nil {
		return nil, err
	}

	var out struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := c.post(ctx, "/embeddings", "application/json", bytes.NewReader(payload), &out); err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("embed: got %d embeddings for %d inputs", len(out.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, item := range out.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("embed: index %d out of range", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

// ExtractProfile asks the model for a persona profile with a fixed field
// schema and returns the raw JSON object, unmodified.
func (c *Client) ExtractProfile(ctx context.Context, transcript string) (json.RawMessage, error) {
	if len(transcript) > maxProfileTranscript {
		cut := maxProfileTranscript
		// Back up to a rune boundary so the cut never splits a character.
		for cut > 0 && !utf8.RuneStart(transcript[cut]) {
			cut--
		}
		transcript = transcript[:cut]
	}

	payload, err := json.Marshal(map[string]any{
		"model": profileModel,
		"messages": []map[string]string{
			{"role": "system", "content": "You are an expert at analyzing communication styles and extracting persona profiles."},
			{"role": "user", "content": fmt.Sprintf(profilePrompt, transcript)},
		},
		"response_format": map[string]string{"type": "json_object"},
		"temperature":     0.3,
	})
	if err != nil {
		return nil, err
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := c.post(ctx, "/chat/completions", "application/json", bytes.NewReader(payload), &out); err != nil {
		return nil, fmt.Errorf("extract profile: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("extract profile: no choices returned")
	}

	content := json.RawMessage(out.Choices[0].Message.Content)
	if !json.Valid(content) {
		return nil, fmt.Errorf("extract profile: model returned invalid JSON")
	}
	return content, nil
}

func (c *Client) post(ctx context.Context, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
