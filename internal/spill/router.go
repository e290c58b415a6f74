// Package spill is the result router: it decides whether a RowSet is small
// enough to return inline or must be persisted to object storage and returned
// as a blob handle. Both the synchronous and asynchronous paths route through
// here, so the threshold logic exists exactly once.
package spill

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/reportrunner/reportrunner/internal/analytics"
	"github.com/reportrunner/reportrunner/internal/storage"
)

const (
	// DefaultRowThreshold keeps results of up to this many rows inline;
	// strictly more rows spill.
	DefaultRowThreshold = 1000
	// DefaultByteThreshold is the serialized UTF-8 size above which a result
	// spills regardless of row count.
	DefaultByteThreshold = 5_000_000
)

// SpilledResult is the JSON document persisted for an oversized result and
// returned verbatim on retrieval by handle.
type SpilledResult struct {
	Operation   string           `json:"operation"`
	GeneratedAt time.Time        `json:"generated_at"`
	RecordCount int              `json:"record_count"`
	Columns     []string         `json:"columns"`
	Rows        []map[string]any `json:"rows"`
}

type Router struct {
	Store         storage.ObjectStore
	RowThreshold  int
	ByteThreshold int
	Clock         func() time.Time
}

func NewRouter(store storage.ObjectStore) *Router {
	return &Router{
		Store:         store,
		RowThreshold:  DefaultRowThreshold,
		ByteThreshold: DefaultByteThreshold,
		Clock:         func() time.Time { return time.Now().UTC() },
	}
}

// Route wraps rowSet in a ResultEnvelope. When either threshold is exceeded
// the serialized result is written to object storage before Route returns, so
// a returned BlobHandle always resolves. jobID, when present, becomes the key
// suffix; otherwise a fresh uuid keeps keys append-only.
func (r *Router) Route(ctx context.Context, rowSet analytics.RowSet, operation, jobID string) (analytics.ResultEnvelope, error) {
	generatedAt := r.Clock()
	envelope := analytics.ResultEnvelope{
		Operation:   operation,
		GeneratedAt: generatedAt,
		RecordCount: rowSet.Len(),
	}

	document := SpilledResult{
		Operation:   operation,
		GeneratedAt: generatedAt,
		RecordCount: rowSet.Len(),
		Columns:     rowSet.Columns,
		Rows:        rowSet.Rows,
	}
	serialized, err := json.Marshal(document)
	if err != nil {
		return analytics.ResultEnvelope{}, analytics.WrapError(analytics.KindStorage, "serialize result", err)
	}

	if rowSet.Len() <= r.RowThreshold && len(serialized) <= r.ByteThreshold {
		envelope.Inline = &analytics.InlineData{Columns: rowSet.Columns, Rows: rowSet.Rows}
		return envelope, nil
	}

	suffix := jobID
	if suffix == "" {
		suffix = uuid.NewString()
	}
	key, err := BuildResultPath(operation, suffix, generatedAt)
	if err != nil {
		return analytics.ResultEnvelope{}, analytics.WrapError(analytics.KindStorage, "build result path", err)
	}

	_, err = r.Store.Put(ctx, key, bytes.NewReader(serialized), int64(len(serialized)), storage.PutOptions{ContentType: "application/json"})
	if err != nil {
		return analytics.ResultEnvelope{}, analytics.WrapError(analytics.KindStorage,
			fmt.Sprintf("persist result %q", key), err)
	}

	envelope.Blob = &analytics.BlobHandle{StorageKey: key, RetrievalPath: RetrievalPath(key)}
	return envelope, nil
}

// Resolve reads a spilled result back by its retrieval path. A missing or
// expired object is a NotFound error, not an engine fault.
func (r *Router) Resolve(ctx context.Context, retrievalPath string) (SpilledResult, error) {
	key := StorageKeyFromPath(retrievalPath)
	if key == "" {
		return SpilledResult{}, analytics.NewError(analytics.KindNotFound, "result handle is empty")
	}

	reader, err := r.Store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return SpilledResult{}, analytics.NewError(analytics.KindNotFound,
				fmt.Sprintf("no result stored at %q", key))
		}
		return SpilledResult{}, analytics.WrapError(analytics.KindStorage,
			fmt.Sprintf("read result %q", key), err)
	}
	defer func() { _ = reader.Close() }()

	var document SpilledResult
	if err := json.NewDecoder(reader).Decode(&document); err != nil {
		return SpilledResult{}, analytics.WrapError(analytics.KindStorage,
			fmt.Sprintf("decode result %q", key), err)
	}
	return document, nil
}
