package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"persona-engine/internal/entity"
)

// Embedder is the embedding service: order-preserving, one vector per text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore is the vector index (implementation: chroma.Client).
type VectorStore interface {
	Upsert(ctx context.Context, collection string, ids []string, embeddings [][]float32, documents []string, metadatas []map[string]any) error
}

// ChunkStore is the finalizer port for chunk metadata rows.
type ChunkStore interface {
	InsertChunks(ctx context.Context, tx pgx.Tx, chunks []entity.ProductChunk) error
}

type ragIngestInput struct {
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
	FilePath  string `json:"file_path"`
}

// RAGIngest parses a product document, chunks it, embeds the chunks and
// upserts them into the user's collection under stable
// {product_id}_{chunk_index} ids. The chunk rows commit with the job.
//
// The vector upsert happens in a step, not the finalizer: the vector store
// is not transactional with Postgres, and upserts by stable id are
// idempotent, so a re-run after a crash converges.
func RAGIngest(embedder Embedder, vectors VectorStore, chunks ChunkStore) *Pipeline {
	return &Pipeline{
		Type: entity.TypeRAGIngest,
		Build: func(job *entity.Job) (*Plan, error) {
			var in ragIngestInput
			if err := decodeInput(job.Input, &in, "user_id", "product_id", "file_path"); err != nil {
				return nil, err
			}

			var (
				text       string
				parts      []string
				embeddings [][]float32
				ids        []string
			)

			return &Plan{
				Steps: []Step{
					{Name: "parse", Run: func(ctx context.Context) error {
						t, err := ParseDocument(in.FilePath)
						if err != nil {
							return err
						}
						text = t
						return nil
					}},
					{Name: "chunk", Run: func(ctx context.Context) error {
						parts = SplitText(text, ChunkSize, ChunkOverlap)
						if len(parts) == 0 {
							return errors.New("document produced no chunks")
						}
						return nil
					}},
					{Name: "embed", Run: func(ctx context.Context) error {
						vecs, err := embedder.Embed(ctx, parts)
						if err != nil {
							return err
						}
						if len(vecs) != len(parts) {
							return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vecs), len(parts))
						}
						embeddings = vecs
						return nil
					}},
					{Name: "upsert", Run: func(ctx context.Context) error {
						collection := "product_embeddings_" + in.UserID
						ids = make([]string, len(parts))
						metadatas := make([]map[string]any, len(parts))
						for i := range parts {
							ids[i] = fmt.Sprintf("%s_%d", in.ProductID, i)
							metadatas[i] = map[string]any{"product_id": in.ProductID, "chunk_index": i}
						}
						return vectors.Upsert(ctx, collection, ids, embeddings, parts, metadatas)
					}},
				},
				Finalize: func(ctx context.Context, tx pgx.Tx) error {
					rows := make([]entity.ProductChunk, len(parts))
					for i, content := range parts {
						rows[i] = entity.ProductChunk{
							ProductID:   in.ProductID,
							Content:     content,
							ChunkIndex:  i,
							EmbeddingID: ids[i],
						}
					}
					return chunks.InsertChunks(ctx, tx, rows)
				},
				Output: func() (json.RawMessage, error) {
					return json.Marshal(map[string]int{"chunks": len(parts)})
				},
			}, nil
		},
	}
}
