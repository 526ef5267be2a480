package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/FranksOps/pricewise/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure postgresBackend implements storage.Backend
var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS comparison_runs (
	id TEXT PRIMARY KEY,
	query TEXT NOT NULL,
	predicted_price DOUBLE PRECISION,
	market_average DOUBLE PRECISION,
	assessment TEXT NOT NULL DEFAULT '',
	source_count INTEGER NOT NULL,
	answer JSONB NOT NULL,
	trace JSONB NOT NULL,
	duration_ms BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS comparison_runs_created_at ON comparison_runs (created_at);
`

// New creates a new Postgres-backed storage.Backend.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	_, err = pool.Exec(ctx, schema)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: schema: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, record *storage.RunRecord) error {
	answerJSON, err := json.Marshal(record.Answer)
	if err != nil {
		return fmt.Errorf("postgres: encode answer: %w", err)
	}
	traceJSON, err := json.Marshal(record.Trace)
	if err != nil {
		return fmt.Errorf("postgres: encode trace: %w", err)
	}

	query := `
	INSERT INTO comparison_runs (
		id, query, predicted_price, market_average, assessment, source_count, answer, trace, duration_ms, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = b.pool.Exec(ctx, query,
		record.ID,
		record.Query,
		record.PredictedPrice,
		record.MarketAverage,
		record.Assessment,
		record.SourceCount,
		answerJSON,
		traceJSON,
		record.Duration.Milliseconds(),
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert: %w", err)
	}

	return nil
}

func (b *postgresBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.RunRecord, error) {
	query := `SELECT id, query, predicted_price, market_average, assessment, source_count, answer, trace, duration_ms, created_at FROM comparison_runs WHERE 1=1`
	args := []any{}
	paramCount := 1

	if filter.Query != "" {
		query += fmt.Sprintf(` AND query ILIKE '%%' || $%d || '%%'`, paramCount)
		args = append(args, filter.Query)
		paramCount++
	}
	if filter.Assessment != "" {
		query += fmt.Sprintf(` AND assessment = $%d`, paramCount)
		args = append(args, filter.StoredAssessment())
		paramCount++
	}
	if filter.Since != nil {
		query += fmt.Sprintf(` AND created_at >= $%d`, paramCount)
		args = append(args, *filter.Since)
		paramCount++
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, paramCount)
		args = append(args, filter.Limit)
		paramCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, paramCount)
		args = append(args, filter.Offset)
	}

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query: %w", err)
	}
	defer rows.Close()

	var results []*storage.RunRecord
	for rows.Next() {
		var r storage.RunRecord
		var answerJSON, traceJSON []byte
		var durationMs int64

		err := rows.Scan(
			&r.ID, &r.Query, &r.PredictedPrice, &r.MarketAverage, &r.Assessment, &r.SourceCount,
			&answerJSON, &traceJSON, &durationMs, &r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan: %w", err)
		}

		r.Duration = time.Duration(durationMs) * time.Millisecond
		if err := json.Unmarshal(answerJSON, &r.Answer); err != nil {
			return nil, fmt.Errorf("postgres: decode answer: %w", err)
		}
		if err := json.Unmarshal(traceJSON, &r.Trace); err != nil {
			return nil, fmt.Errorf("postgres: decode trace: %w", err)
		}

		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows: %w", err)
	}

	return results, nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
