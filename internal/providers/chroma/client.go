// Package chroma is a REST client for the Chroma vector store. Collections
// are keyed per user; chunk ids are stable so upserts are idempotent.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger

	mu          sync.Mutex
	collections map[string]string // name -> collection id
}

func NewClient(opts Options) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  httpClient,
		log:         opts.Logger,
		collections: make(map[string]string),
	}
}

// Upsert writes vectors, documents and metadata under the given ids,
// creating the collection when it does not exist yet.
func (c *Client) Upsert(ctx context.Context, collection string, ids []string, embeddings [][]float32, documents []string, metadatas []map[string]any) error {
	collID, err := c.ensureCollection(ctx, collection)
	if err != nil {
		return err
	}

	payload := map[string]any{
		"ids":        ids,
		"embeddings": embeddings,
		"documents":  documents,
		"metadatas":  metadatas,
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/collections/"+collID+"/upsert", payload, nil); err != nil {
		return fmt.Errorf("upsert %s: %w", collection, err)
	}
	return nil
}

// Query returns the documents of the k nearest chunks.
func (c *Client) Query(ctx context.Context, collection string, embedding []float32, k int) ([]string, error) {
	collID, err := c.ensureCollection(ctx, collection)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"query_embeddings": [][]float32{embedding},
		"n_results":        k,
	}
	var out struct {
		Documents [][]string `json:"documents"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/collections/"+collID+"/query", payload, &out); err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	if len(out.Documents) == 0 {
		return nil, nil
	}
	return out.Documents[0], nil
}

func (c *Client) ensureCollection(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	id, ok := c.collections[name]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	payload := map[string]any{"name": name, "get_or_create": true}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/collections", payload, &out); err != nil {
		return "", fmt.Errorf("ensure collection %s: %w", name, err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("ensure collection %s: empty id", name)
	}

	c.mu.Lock()
	c.collections[name] = out.ID
	c.mu.Unlock()
	return out.ID, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
