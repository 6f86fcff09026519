package postgresql

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"persona-engine/internal/entity"
)

type ChunkRepository struct {
	pool *pgxpool.Pool
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{pool: pool}
}

// InsertChunks runs inside a job-completion transaction. Re-ingesting a
// product replaces its previous chunk rows so chunk_index stays dense.
func (r *ChunkRepository) InsertChunks(ctx context.Context, tx pgx.Tx, chunks []entity.ProductChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	const del = `DELETE FROM product_chunks WHERE product_id = $1;`
	if _, err := tx.Exec(ctx, del, chunks[0].ProductID); err != nil {
		return err
	}

	const ins = `
INSERT INTO product_chunks (product_id, content, chunk_index, embedding_id)
VALUES ($1, $2, $3, $4);
`
	for _, c := range chunks {
		if _, err := tx.Exec(ctx, ins, c.ProductID, c.Content, c.ChunkIndex, c.EmbeddingID); err != nil {
			return err
		}
	}
	return nil
}

func (r *ChunkRepository) ListByProduct(ctx context.Context, productID string) ([]entity.ProductChunk, error) {
	const q = `
SELECT product_id, content, chunk_index, embedding_id
FROM product_chunks
WHERE product_id = $1
ORDER BY chunk_index ASC;
`
	rows, err := r.pool.Query(ctx, q, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.ProductChunk
	for rows.Next() {
		var c entity.ProductChunk
		if err := rows.Scan(&c.ProductID, &c.Content, &c.ChunkIndex, &c.EmbeddingID); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
