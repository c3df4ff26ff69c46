package repository

import (
	"context"
	"errors"

	"github.com/cloo-solutions/labelrag/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// ChunkRepository stores embedded chunks in Postgres and searches them with pgvector.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx pgx.Tx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

// Append inserts entries in one transaction so readers see all or none of them.
func (r *ChunkRepository) Append(ctx context.Context, entries []domain.EmbeddedChunk) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(
			`INSERT INTO chunks (source_id, sequence_index, start_offset, content, dimension, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			e.Chunk.SourceID,
			e.Chunk.SequenceIndex,
			e.Chunk.StartOffset,
			e.Chunk.Text,
			e.Dimension(),
			pgvector.NewVector(e.Vector),
		)
	}

	br := tx.SendBatch(ctx, batch)
	for range entries {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return err
		}
	}
	if err := br.Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Search orders by cosine distance; equal distances fall back to insertion order.
func (r *ChunkRepository) Search(ctx context.Context, vector []float32, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		return []domain.ScoredChunk{}, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT source_id, sequence_index, start_offset, content, 1 - (embedding <=> $1) AS score
		 FROM chunks
		 ORDER BY embedding <=> $1, id
		 LIMIT $2`,
		pgvector.NewVector(vector), k,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.ScoredChunk
	for rows.Next() {
		var sc domain.ScoredChunk
		var score float64
		if err := rows.Scan(&sc.Chunk.SourceID, &sc.Chunk.SequenceIndex, &sc.Chunk.StartOffset, &sc.Chunk.Text, &score); err != nil {
			return nil, err
		}
		sc.Score = float32(score)
		results = append(results, sc)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	if results == nil {
		results = []domain.ScoredChunk{}
	}
	return results, nil
}

func (r *ChunkRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n)
	return n, err
}

// Dimension returns the dimension of the oldest stored chunk, or 0 if the table is empty.
func (r *ChunkRepository) Dimension(ctx context.Context) (int, error) {
	var dim int
	err := r.db.QueryRow(ctx, `SELECT dimension FROM chunks ORDER BY id LIMIT 1`).Scan(&dim)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return dim, err
}

func (r *ChunkRepository) IndexedSequences(ctx context.Context, sourceID string) (map[int]bool, error) {
	rows, err := r.db.Query(ctx,
		`SELECT sequence_index FROM chunks WHERE source_id = $1`,
		sourceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seqs := make(map[int]bool)
	for rows.Next() {
		var seq int
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		seqs[seq] = true
	}
	return seqs, rows.Err()
}

func (r *ChunkRepository) Clear(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `TRUNCATE TABLE chunks RESTART IDENTITY`)
	return err
}
