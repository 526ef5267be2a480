package csvbackend

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/FranksOps/pricewise/internal/storage"
)

// ensure csvBackend implements storage.Backend
var _ storage.Backend = (*csvBackend)(nil)

type csvBackend struct {
	mu   sync.Mutex
	file *os.File
}

// headers defines the CSV column order
var headers = []string{
	"id",
	"query",
	"predicted_price",
	"market_average",
	"assessment",
	"source_count",
	"answer_json",
	"trace_json",
	"duration_ms",
	"created_at",
}

// New creates a new CSV-backed storage.Backend.
func New(filePath string) (storage.Backend, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("csv: open: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("csv: stat: %w", err)
	}

	if info.Size() == 0 {
		w := csv.NewWriter(f)
		if err := w.Write(headers); err != nil {
			f.Close()
			return nil, fmt.Errorf("csv: write header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("csv: write header: %w", err)
		}
	}

	return &csvBackend{file: f}, nil
}

func formatPrice(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func parsePrice(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func (b *csvBackend) Save(ctx context.Context, record *storage.RunRecord) error {
	answerJSON, err := json.Marshal(record.Answer)
	if err != nil {
		return fmt.Errorf("csv: encode answer: %w", err)
	}
	traceJSON, err := json.Marshal(record.Trace)
	if err != nil {
		return fmt.Errorf("csv: encode trace: %w", err)
	}

	row := []string{
		record.ID,
		record.Query,
		formatPrice(record.PredictedPrice),
		formatPrice(record.MarketAverage),
		record.Assessment,
		strconv.Itoa(record.SourceCount),
		string(answerJSON),
		string(traceJSON),
		strconv.FormatInt(record.Duration.Milliseconds(), 10),
		record.CreatedAt.Format(time.RFC3339Nano),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("csv: seek: %w", err)
	}

	w := csv.NewWriter(b.file)
	if err := w.Write(row); err != nil {
		return fmt.Errorf("csv: write: %w", err)
	}
	w.Flush()

	if err := w.Error(); err != nil {
		return fmt.Errorf("csv: write: %w", err)
	}

	return nil
}

func (b *csvBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.RunRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("csv: seek: %w", err)
	}
	defer func() {
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	r := csv.NewReader(b.file)

	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return []*storage.RunRecord{}, nil
		}
		return nil, fmt.Errorf("csv: read header: %w", err)
	}

	var matched []*storage.RunRecord
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: read: %w", err)
		}
		if len(row) != len(headers) {
			continue // skip malformed rows
		}

		sourceCount, _ := strconv.Atoi(row[5])
		durationMs, _ := strconv.ParseInt(row[8], 10, 64)
		createdAt, _ := time.Parse(time.RFC3339Nano, row[9])

		rec := &storage.RunRecord{
			ID:             row[0],
			Query:          row[1],
			PredictedPrice: parsePrice(row[2]),
			MarketAverage:  parsePrice(row[3]),
			Assessment:     row[4],
			SourceCount:    sourceCount,
			Duration:       time.Duration(durationMs) * time.Millisecond,
			CreatedAt:      createdAt,
		}
		if err := json.Unmarshal([]byte(row[6]), &rec.Answer); err != nil {
			continue
		}
		_ = json.Unmarshal([]byte(row[7]), &rec.Trace)

		if !filter.Matches(rec) {
			continue
		}
		matched = append(matched, rec)
	}

	return filter.Paginate(matched), nil
}

func (b *csvBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
