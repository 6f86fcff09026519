package acquire

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// GrabberProvider uses a hosted downloader API: the URL is resolved to a
// direct audio link, then the link is fetched. Either half can fail softly.
type GrabberProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewGrabber(baseURL, apiKey string, httpClient *http.Client) *GrabberProvider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &GrabberProvider{baseURL: baseURL, apiKey: apiKey, httpClient: httpClient}
}

func (p *GrabberProvider) Name() string { return "grabber" }

func (p *GrabberProvider) Fetch(ctx context.Context, url, destDir string) (string, error) {
	link, err := p.resolve(ctx, url)
	if err != nil {
		return "", err
	}
	return p.download(ctx, link, destDir)
}

func (p *GrabberProvider) resolve(ctx context.Context, url string) (string, error) {
	body, err := json.Marshal(map[string]string{"url": url, "format": "audio"})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/resolve", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("grabber resolve: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("grabber resolve: status %d", resp.StatusCode)
	}

	var out struct {
		DownloadURL string `json:"download_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("grabber resolve: %w", err)
	}
	if out.DownloadURL == "" {
		return "", fmt.Errorf("grabber resolve: empty download url")
	}
	return out.DownloadURL, nil
}

func (p *GrabberProvider) download(ctx context.Context, link, destDir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("grabber download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("grabber download: status %d", resp.StatusCode)
	}

	path := filepath.Join(destDir, "source.mp3")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("grabber download: %w", err)
	}
	return path, nil
}
