package httptransport_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"persona-engine/internal/entity"
	"persona-engine/internal/service"
	httptransport "persona-engine/internal/transport/http"
)

type memRepo struct {
	jobs map[uuid.UUID]*entity.Job
}

func newMemRepo(jobs ...*entity.Job) *memRepo {
	r := &memRepo{jobs: make(map[uuid.UUID]*entity.Job)}
	for _, j := range jobs {
		r.jobs[j.ID] = j
	}
	return r
}

func (r *memRepo) Create(ctx context.Context, typ string, input json.RawMessage) (uuid.UUID, error) {
	id := uuid.New()
	r.jobs[id] = &entity.Job{
		ID:        id,
		Type:      typ,
		Status:    entity.StatusPending,
		Input:     input,
		CreatedAt: time.Now(),
	}
	return id, nil
}

func (r *memRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	j, ok := r.jobs[id]
	if !ok {
		return nil, errors.New("no rows")
	}
	return j, nil
}

type noopSignal struct{}

func (noopSignal) Push(ctx context.Context, typ, jobID string) error { return nil }

func newServer(repo *memRepo) *httptest.Server {
	svc := service.NewJobService(repo, noopSignal{}, zerolog.Nop())
	h := httptransport.NewHandler(svc)
	return httptest.NewServer(httptransport.Routes(h, zerolog.Nop()))
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatal(err)
	}
}

func TestCreateJob_RoundTrip(t *testing.T) {
	repo := newMemRepo()
	srv := newServer(repo)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/jobs", map[string]any{
		"type": entity.TypeRAGIngest,
		"input": map[string]any{
			"user_id":    "u1",
			"product_id": "p1",
			"file_path":  "/data/catalog.csv",
		},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	var created struct {
		ID string `json:"id"`
	}
	decodeBody(t, resp, &created)
	id, err := uuid.Parse(created.ID)
	if err != nil {
		t.Fatalf("response id %q is not a uuid", created.ID)
	}

	getResp, err := http.Get(srv.URL + "/jobs/" + id.String())
	if err != nil {
		t.Fatal(err)
	}
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, want 200", getResp.StatusCode)
	}
	var job struct {
		Type   string         `json:"type"`
		Status string         `json:"status"`
		Input  map[string]any `json:"input"`
		Output map[string]any `json:"output"`
	}
	decodeBody(t, getResp, &job)
	if job.Type != entity.TypeRAGIngest || job.Status != string(entity.StatusPending) {
		t.Fatalf("unexpected job: %+v", job)
	}
	if job.Input["product_id"] != "p1" {
		t.Fatalf("input not echoed back: %+v", job.Input)
	}
	if job.Output != nil {
		t.Fatalf("pending job must not expose output, got %+v", job.Output)
	}
}

func TestCreateJob_RejectsBadRequests(t *testing.T) {
	srv := newServer(newMemRepo())
	defer srv.Close()

	cases := []struct {
		name string
		body map[string]any
	}{
		{"unknown type", map[string]any{"type": "mine_bitcoin", "input": map[string]any{}}},
		{"missing field", map[string]any{"type": entity.TypeVoiceClone, "input": map[string]any{"user_id": "u1"}}},
		{"non-string field", map[string]any{"type": entity.TypeRAGIngest, "input": map[string]any{"user_id": "u1", "product_id": 42, "file_path": "/x"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/jobs", tc.body)
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestGetJob_NotFound(t *testing.T) {
	srv := newServer(newMemRepo())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/jobs/" + uuid.NewString())
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestGetJobResult_ConflictUntilCompleted(t *testing.T) {
	running := &entity.Job{
		ID:        uuid.New(),
		Type:      entity.TypeVoiceExtract,
		Status:    entity.StatusProcessing,
		Input:     json.RawMessage(`{}`),
		CreatedAt: time.Now(),
	}
	done := &entity.Job{
		ID:        uuid.New(),
		Type:      entity.TypeVoiceExtract,
		Status:    entity.StatusCompleted,
		Input:     json.RawMessage(`{}`),
		Output:    json.RawMessage(`{"audio_path":"/data/audio/u1/j1/preview.mp3"}`),
		CreatedAt: time.Now(),
	}
	srv := newServer(newMemRepo(running, done))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/jobs/" + running.ID.String() + "/result")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("running job result status = %d, want 409", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/jobs/" + done.ID.String() + "/result")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("completed job result status = %d, want 200", resp.StatusCode)
	}
	var out map[string]any
	decodeBody(t, resp, &out)
	if out["audio_path"] != "/data/audio/u1/j1/preview.mp3" {
		t.Fatalf("unexpected output: %+v", out)
	}
}
