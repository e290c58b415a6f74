package spill

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/reportrunner/reportrunner/internal/analytics"
	"github.com/reportrunner/reportrunner/internal/storage"
)

type memObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	puts    int
}

func newMemObjectStore() *memObjectStore {
	return &memObjectStore{objects: map[string][]byte{}}
}

func (m *memObjectStore) Put(_ context.Context, key string, body io.Reader, _ int64, _ storage.PutOptions) (storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.putErr != nil {
		return storage.ObjectInfo{}, m.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	m.objects[key] = data
	return storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (m *memObjectStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memObjectStore) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (m *memObjectStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func rowSetOfSize(rows int) analytics.RowSet {
	out := analytics.RowSet{Columns: []string{"company_id", "revenue"}}
	for i := 0; i < rows; i++ {
		out.Rows = append(out.Rows, map[string]any{
			"company_id": fmt.Sprintf("comp-%06d", i),
			"revenue":    float64(i) * 1000,
		})
	}
	return out
}

func newTestRouter(store storage.ObjectStore) *Router {
	router := NewRouter(store)
	router.Clock = func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) }
	return router
}

func TestRouteKeepsThresholdRowCountInline(t *testing.T) {
	store := newMemObjectStore()
	router := newTestRouter(store)

	envelope, err := router.Route(context.Background(), rowSetOfSize(1000), "count_analysis", "")
	if err != nil {
		t.Fatalf("Route() = %v", err)
	}
	if err := envelope.Validate(); err != nil {
		t.Fatalf("envelope invalid: %v", err)
	}
	if envelope.Inline == nil {
		t.Fatal("1000 rows should stay inline")
	}
	if envelope.RecordCount != 1000 {
		t.Fatalf("RecordCount = %d", envelope.RecordCount)
	}
	if store.puts != 0 {
		t.Fatal("inline result touched object storage")
	}
}

func TestRouteSpillsAboveRowThreshold(t *testing.T) {
	store := newMemObjectStore()
	router := newTestRouter(store)

	envelope, err := router.Route(context.Background(), rowSetOfSize(1001), "multi_dimensional_analytics", "job-123")
	if err != nil {
		t.Fatalf("Route() = %v", err)
	}
	if envelope.Blob == nil {
		t.Fatal("1001 rows should spill")
	}
	if envelope.Inline != nil {
		t.Fatal("spilled envelope also carries inline data")
	}
	if envelope.RecordCount != 1001 {
		t.Fatalf("RecordCount = %d", envelope.RecordCount)
	}

	wantKey := "results/multi_dimensional_analytics/date=2026-05-01/multi_dimensional_analytics-job-123.json"
	if envelope.Blob.StorageKey != wantKey {
		t.Fatalf("StorageKey = %q", envelope.Blob.StorageKey)
	}
	if envelope.Blob.RetrievalPath != "/v1/results/"+wantKey {
		t.Fatalf("RetrievalPath = %q", envelope.Blob.RetrievalPath)
	}
	// Write-before-return: the object must exist by the time Route returns.
	if _, ok := store.objects[wantKey]; !ok {
		t.Fatal("blob handle returned before the object was written")
	}
}

func TestRouteSpillsAboveByteThresholdRegardlessOfRows(t *testing.T) {
	store := newMemObjectStore()
	router := newTestRouter(store)
	router.ByteThreshold = 512

	envelope, err := router.Route(context.Background(), rowSetOfSize(50), "summary_statistics", "")
	if err != nil {
		t.Fatalf("Route() = %v", err)
	}
	if envelope.Blob == nil {
		t.Fatal("oversized payload should spill even with few rows")
	}
}

func TestRouteReturnsStorageErrorWhenSpillWriteFails(t *testing.T) {
	store := newMemObjectStore()
	store.putErr = errors.New("bucket gone")
	router := newTestRouter(store)

	_, err := router.Route(context.Background(), rowSetOfSize(1500), "count_analysis", "job-9")
	if analytics.KindOf(err) != analytics.KindStorage {
		t.Fatalf("kind = %v, want storage", analytics.KindOf(err))
	}
}

func TestRouteGeneratesFreshSuffixWithoutJobID(t *testing.T) {
	store := newMemObjectStore()
	router := newTestRouter(store)

	first, err := router.Route(context.Background(), rowSetOfSize(1100), "count_analysis", "")
	if err != nil {
		t.Fatalf("Route() = %v", err)
	}
	second, err := router.Route(context.Background(), rowSetOfSize(1100), "count_analysis", "")
	if err != nil {
		t.Fatalf("Route() = %v", err)
	}
	if first.Blob.StorageKey == second.Blob.StorageKey {
		t.Fatal("two spills without job ids produced the same key")
	}
	if len(store.objects) != 2 {
		t.Fatalf("objects = %d, want 2 (append-only keys)", len(store.objects))
	}
}

func TestResolveRoundTripsSpilledResult(t *testing.T) {
	store := newMemObjectStore()
	router := newTestRouter(store)

	rowSet := rowSetOfSize(1200)
	envelope, err := router.Route(context.Background(), rowSet, "top_companies", "job-7")
	if err != nil {
		t.Fatalf("Route() = %v", err)
	}

	document, err := router.Resolve(context.Background(), envelope.Blob.RetrievalPath)
	if err != nil {
		t.Fatalf("Resolve() = %v", err)
	}
	if document.Operation != "top_companies" || document.RecordCount != 1200 {
		t.Fatalf("document header = %+v", document)
	}
	if len(document.Rows) != len(rowSet.Rows) {
		t.Fatalf("rows = %d, want %d", len(document.Rows), len(rowSet.Rows))
	}
	if document.Rows[5]["company_id"] != rowSet.Rows[5]["company_id"] {
		t.Fatal("row content did not survive the round trip")
	}
}

func TestResolveUnknownHandleIsNotFound(t *testing.T) {
	router := newTestRouter(newMemObjectStore())

	_, err := router.Resolve(context.Background(), "/v1/results/results/x/date=2026-01-01/x-missing.json")
	if analytics.KindOf(err) != analytics.KindNotFound {
		t.Fatalf("kind = %v, want not found", analytics.KindOf(err))
	}

	_, err = router.Resolve(context.Background(), "")
	if analytics.KindOf(err) != analytics.KindNotFound {
		t.Fatalf("empty handle kind = %v", analytics.KindOf(err))
	}
}

func TestBuildResultPathRejectsTraversal(t *testing.T) {
	if _, err := BuildResultPath("../secrets", "abc", time.Now()); err == nil {
		t.Fatal("traversal operation accepted")
	}
	if _, err := BuildResultPath("count_analysis", "a/b", time.Now()); err == nil {
		t.Fatal("slash suffix accepted")
	}
	if !strings.HasPrefix(RetrievalPath("results/x/y.json"), "/v1/results/") {
		t.Fatal("retrieval prefix changed")
	}
}
