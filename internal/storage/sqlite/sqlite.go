package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/FranksOps/pricewise/internal/storage"
	_ "modernc.org/sqlite"
)

// ensure sqliteBackend implements storage.Backend
var _ storage.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS comparison_runs (
	id TEXT PRIMARY KEY,
	query TEXT NOT NULL,
	predicted_price REAL,
	market_average REAL,
	assessment TEXT NOT NULL DEFAULT '',
	source_count INTEGER NOT NULL,
	answer TEXT NOT NULL,
	trace TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS comparison_runs_created_at ON comparison_runs (created_at);
`

// New creates a new SQLite-backed storage.Backend.
func New(dsn string) (storage.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: schema: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Save(ctx context.Context, record *storage.RunRecord) error {
	answerJSON, err := json.Marshal(record.Answer)
	if err != nil {
		return fmt.Errorf("sqlite: encode answer: %w", err)
	}
	traceJSON, err := json.Marshal(record.Trace)
	if err != nil {
		return fmt.Errorf("sqlite: encode trace: %w", err)
	}

	query := `
	INSERT INTO comparison_runs (
		id, query, predicted_price, market_average, assessment, source_count, answer, trace, duration_ms, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = b.db.ExecContext(ctx, query,
		record.ID,
		record.Query,
		record.PredictedPrice,
		record.MarketAverage,
		record.Assessment,
		record.SourceCount,
		string(answerJSON),
		string(traceJSON),
		record.Duration.Milliseconds(),
		record.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert: %w", err)
	}

	return nil
}

func (b *sqliteBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.RunRecord, error) {
	query := `SELECT id, query, predicted_price, market_average, assessment, source_count, answer, trace, duration_ms, created_at FROM comparison_runs WHERE 1=1`
	args := []any{}

	if filter.Query != "" {
		query += ` AND query LIKE '%' || ? || '%'`
		args = append(args, filter.Query)
	}
	if filter.Assessment != "" {
		query += ` AND assessment = ?`
		args = append(args, filter.StoredAssessment())
	}
	if filter.Since != nil {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since.UTC())
	}

	query += ` ORDER BY created_at DESC`

	// SQLite only accepts OFFSET after a LIMIT; -1 means no limit.
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, max(filter.Offset, 0))
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query: %w", err)
	}
	defer rows.Close()

	var results []*storage.RunRecord
	for rows.Next() {
		var r storage.RunRecord
		var predicted, average sql.NullFloat64
		var answerJSON, traceJSON string
		var durationMs int64

		err := rows.Scan(
			&r.ID, &r.Query, &predicted, &average, &r.Assessment, &r.SourceCount,
			&answerJSON, &traceJSON, &durationMs, &r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan: %w", err)
		}

		if predicted.Valid {
			r.PredictedPrice = &predicted.Float64
		}
		if average.Valid {
			r.MarketAverage = &average.Float64
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		if err := json.Unmarshal([]byte(answerJSON), &r.Answer); err != nil {
			return nil, fmt.Errorf("sqlite: decode answer: %w", err)
		}
		if err := json.Unmarshal([]byte(traceJSON), &r.Trace); err != nil {
			return nil, fmt.Errorf("sqlite: decode trace: %w", err)
		}

		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: rows: %w", err)
	}

	return results, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
