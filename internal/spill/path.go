package spill

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/reportrunner/reportrunner/internal/storage"
)

const retrievalPrefix = "/v1/results/"

// BuildResultPath derives the object key for one spilled result:
// results/<operation>/date=YYYY-MM-DD/<operation>-<suffix>.json.
// The suffix is unique per result, so keys are append-only.
func BuildResultPath(operation, suffix string, generatedAt time.Time) (string, error) {
	if err := storage.ValidatePathComponent(operation, "operation"); err != nil {
		return "", err
	}
	if err := storage.ValidatePathComponent(suffix, "result suffix"); err != nil {
		return "", err
	}

	ts := generatedAt.UTC()
	return path.Join(
		"results",
		operation,
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		fmt.Sprintf("%s-%s.json", operation, suffix),
	), nil
}

// RetrievalPath maps a storage key to the caller-facing handle path.
func RetrievalPath(storageKey string) string {
	return retrievalPrefix + storageKey
}

// StorageKeyFromPath accepts either a bare storage key or a full retrieval
// path and returns the storage key.
func StorageKeyFromPath(retrievalPath string) string {
	trimmed := strings.TrimPrefix(retrievalPath, retrievalPrefix)
	return strings.TrimPrefix(trimmed, "/")
}
