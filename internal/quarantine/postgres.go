package quarantine

// file: internal/quarantine/postgres.go

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kimosabey/dataquarantine/internal/logging"
)

var indexLogger = logging.GetLogger("quarantine_index")

// createTableSQL matches the column set spec.md §6 specifies verbatim.
const createTableSQL = `
CREATE TABLE IF NOT EXISTS quarantine_records (
	id text PRIMARY KEY,
	topic text NOT NULL,
	partition int NOT NULL,
	"offset" bigint NOT NULL,
	schema_name text NOT NULL,
	error_kind text NOT NULL,
	error_message text NOT NULL,
	field_path text NOT NULL,
	created_at timestamp NOT NULL,
	payload json
)`

const upsertSQL = `
INSERT INTO quarantine_records
	(id, topic, partition, "offset", schema_name, error_kind, error_message, field_path, created_at, payload)
VALUES
	($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO NOTHING`

// PostgresIndex is the reference Index, backed by jackc/pgx/v5's
// connection pool.
type PostgresIndex struct {
	pool *pgxpool.Pool
}

// NewPostgresIndex connects to dsn and ensures the quarantine_records
// table exists.
func NewPostgresIndex(ctx context.Context, dsn string) (*PostgresIndex, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresIndex{pool: pool}, nil
}

// Write implements Index. The ON CONFLICT DO NOTHING clause gives the
// idempotency spec.md §4.6 requires: a retried delivery with the same id
// is silently dropped rather than producing a duplicate row.
func (p *PostgresIndex) Write(ctx context.Context, record Record) error {
	var payloadJSON []byte
	switch {
	case record.PayloadURI != "":
		// Externalized payload: the column carries a URI marker instead
		// of the inline document, per spec.md §6's blob-store note.
		encoded, err := json.Marshal(map[string]string{"uri": record.PayloadURI})
		if err != nil {
			return err
		}
		payloadJSON = encoded
	case record.Payload != nil:
		encoded, err := json.Marshal(record.Payload)
		if err != nil {
			return err
		}
		payloadJSON = encoded
	}

	_, err := p.pool.Exec(ctx, upsertSQL,
		record.ID, record.Topic, record.Partition, record.Offset,
		record.SchemaName, record.ErrorKind, record.ErrorMessage, record.FieldPath,
		record.CreatedAt, payloadJSON,
	)
	if err != nil {
		indexLogger.Error("quarantine index write failed", "id", record.ID, "error", err)
		return err
	}
	return nil
}

// Close releases the connection pool.
func (p *PostgresIndex) Close() {
	p.pool.Close()
}
