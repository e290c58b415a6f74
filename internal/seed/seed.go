package seed

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/reportrunner/reportrunner/internal/storage"
)

const companiesTable = "companies"

type Seeder struct {
	Store     storage.ObjectStore
	Logger    *slog.Logger
	Seed      int64
	BatchSize int
	Clock     func() time.Time
}

func (s *Seeder) ensureDefaults() {
	if s.BatchSize <= 0 {
		s.BatchSize = 5000
	}
	if s.Clock == nil {
		s.Clock = func() time.Time { return time.Now().UTC() }
	}
}

// Run generates count companies and uploads them in parquet batches under
// datasets/companies/. It returns the uploaded object keys in sequence
// order so callers can hydrate or verify immediately after.
func (s *Seeder) Run(ctx context.Context, count int) ([]string, error) {
	s.ensureDefaults()
	if s.Store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if count <= 0 {
		return nil, fmt.Errorf("count must be positive")
	}

	generator := NewGenerator(s.Seed)
	loadedAt := s.Clock()

	var keys []string
	remaining := count
	for sequence := 0; remaining > 0; sequence++ {
		batchSize := s.BatchSize
		if remaining < batchSize {
			batchSize = remaining
		}
		remaining -= batchSize

		data, err := EncodeCompaniesToParquet(generator.Generate(batchSize))
		if err != nil {
			return keys, fmt.Errorf("encode batch %d: %w", sequence, err)
		}

		key, err := storage.BuildDatasetFilePath(companiesTable, loadedAt, sequence)
		if err != nil {
			return keys, fmt.Errorf("build dataset path: %w", err)
		}
		if _, err := s.Store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{ContentType: "application/vnd.apache.parquet"}); err != nil {
			return keys, fmt.Errorf("upload %q: %w", key, err)
		}
		keys = append(keys, key)

		if s.Logger != nil {
			s.Logger.InfoContext(ctx, "uploaded seed batch",
				slog.String("key", key),
				slog.Int("rows", batchSize),
				slog.Int("bytes", len(data)),
			)
		}
	}
	return keys, nil
}
