// Package quarantine implements the quarantine index and optional blob
// store: the external stores the Sink Router writes non-conforming
// records through to (spec.md §4.6, §6).
package quarantine

// file: internal/quarantine/record.go

import (
	"context"
	"time"
)

// Record is the quarantine index row of spec.md §6, column for column.
type Record struct {
	ID           string
	Topic        string
	Partition    int
	Offset       int64
	SchemaName   string
	ErrorKind    string
	ErrorMessage string
	FieldPath    string
	CreatedAt    time.Time
	Payload      map[string]interface{} // nil when PayloadURI is set.
	PayloadURI   string                  // set when the payload was externalized to the blob store.
}

// Index is the quarantine index's write contract. Implementations must
// be idempotent on Record.ID: a duplicate write (caused by retry after a
// crash between route and offset commit) must collapse rather than
// produce a second row.
type Index interface {
	Write(ctx context.Context, record Record) error
}

// BlobStore externalizes payloads larger than the configured threshold.
// Put returns a URI the index row can carry in place of the inline
// payload.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) (uri string, err error)
}
