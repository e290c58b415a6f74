package analytics

import "time"

// RowSet is the raw tabular output of one operation: ordered rows of
// homogeneous records keyed by column name.
type RowSet struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

func (r RowSet) Len() int {
	return len(r.Rows)
}

// InlineData carries a RowSet directly inside a ResultEnvelope.
type InlineData struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// BlobHandle points at a spilled result in object storage. StorageKey is the
// raw object key; RetrievalPath is the caller-facing path accepted by the
// result retrieval endpoint.
type BlobHandle struct {
	StorageKey    string `json:"storage_key"`
	RetrievalPath string `json:"retrieval_path"`
}

// ResultEnvelope wraps a routed result. Exactly one of Inline and Blob is
// populated; Validate guards that invariant at the routing boundary.
type ResultEnvelope struct {
	Operation   string      `json:"operation"`
	GeneratedAt time.Time   `json:"generated_at"`
	RecordCount int         `json:"record_count"`
	Inline      *InlineData `json:"inline,omitempty"`
	Blob        *BlobHandle `json:"blob,omitempty"`
}

func (e ResultEnvelope) Validate() error {
	if (e.Inline == nil) == (e.Blob == nil) {
		return NewError(KindStorage, "result envelope must carry exactly one of inline data or a blob handle")
	}
	return nil
}
