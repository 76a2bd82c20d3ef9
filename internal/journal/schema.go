package journal

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Schema creates the journal table and its lookup index.
const Schema = `
CREATE TABLE IF NOT EXISTS connection_events (
    id          BIGSERIAL,
    session_id  UUID        NOT NULL,
    target      TEXT        NOT NULL,
    kind        TEXT        NOT NULL,
    code        INTEGER,
    detail      TEXT,
    rtt_us      BIGINT,
    occurred_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (id, occurred_at)
);
CREATE INDEX IF NOT EXISTS connection_events_session_idx
    ON connection_events (session_id, occurred_at DESC);
`

// Execer runs a statement. *pgxpool.Pool satisfies it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// EnsureSchema creates the journal table if it does not exist.
func EnsureSchema(ctx context.Context, db Execer) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create journal schema: %w", err)
	}
	return nil
}
