package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-video-courier/internal/domain/model"
	"telegram-video-courier/internal/domain/ports/repository"
)

var _ repository.RunRepository = (*runRepo)(nil)

type runRepo struct {
	pool *pgxpool.Pool
}

func NewRunRepo(pool *pgxpool.Pool) repository.RunRepository {
	return &runRepo{pool: pool}
}

// EnsureSchema creates the runs table when it is missing. The table is
// append-only; records are never updated after Save.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const q = `
CREATE TABLE IF NOT EXISTS courier_runs (
    id          TEXT PRIMARY KEY,
    chat_id     BIGINT NOT NULL,
    source_url  TEXT NOT NULL,
    outcome     TEXT NOT NULL,
    method      TEXT NOT NULL DEFAULT '',
    bytes       BIGINT NOT NULL DEFAULT 0,
    error_kind  TEXT NOT NULL DEFAULT '',
    started_at  TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS courier_runs_finished_at_idx ON courier_runs (finished_at DESC);`
	_, err := pool.Exec(ctx, q)
	return err
}

func (r *runRepo) Save(ctx context.Context, rec *model.RunRecord) error {
	const q = `
INSERT INTO courier_runs (id, chat_id, source_url, outcome, method, bytes, error_kind, started_at, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO NOTHING`

	_, err := r.pool.Exec(ctx, q,
		rec.ID, rec.ChatID, rec.SourceURL, rec.Outcome, rec.Method,
		rec.Bytes, rec.ErrorKind, rec.StartedAt, rec.FinishedAt)
	return err
}

func (r *runRepo) Recent(ctx context.Context, limit int) ([]*model.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, chat_id, source_url, outcome, method, bytes, error_kind, started_at, finished_at
FROM courier_runs
ORDER BY finished_at DESC
LIMIT $1`

	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.RunRecord
	for rows.Next() {
		rec := &model.RunRecord{}
		if err := rows.Scan(&rec.ID, &rec.ChatID, &rec.SourceURL, &rec.Outcome, &rec.Method,
			&rec.Bytes, &rec.ErrorKind, &rec.StartedAt, &rec.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
