package eventsink

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"totchain/core/events"
	"totchain/core/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
    seq        INTEGER PRIMARY KEY AUTOINCREMENT,
    id         TEXT NOT NULL,
    type       TEXT NOT NULL,
    attributes TEXT NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS events_type_idx ON events (type, seq);
`

// Store is a durable, append-only event journal backed by SQLite. It
// implements events.Emitter so it can subscribe directly to the node's
// fan-out; writes that fail are logged, never propagated back into
// settlement.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	nowFn  func() int64
}

// Open creates or opens the journal at the given path. Use ":memory:" for
// tests.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("eventsink: open %s: %w", path, err)
	}
	// the emitter is called under the node mutex, a single writer is enough
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("eventsink: apply schema: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		db:     db,
		logger: logger,
		nowFn:  func() int64 { return time.Now().Unix() },
	}, nil
}

// SetNowFunc overrides the journal clock, primarily for tests.
func (s *Store) SetNowFunc(now func() int64) {
	if now != nil {
		s.nowFn = now
	}
}

// Emit appends the event to the journal. Implements events.Emitter.
func (s *Store) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	rendered := render(evt)
	attrs, err := json.Marshal(rendered.Attributes)
	if err != nil {
		s.logger.Error("event sink: marshal attributes", "type", rendered.Type, "err", err)
		return
	}
	_, err = s.db.Exec(
		`INSERT INTO events (id, type, attributes, created_at) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), rendered.Type, string(attrs), s.nowFn(),
	)
	if err != nil {
		s.logger.Error("event sink: append", "type", rendered.Type, "err", err)
	}
}

// StoredEvent is a journal row.
type StoredEvent struct {
	Seq        int64             `json:"seq"`
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  int64             `json:"createdAt"`
}

// Recent returns up to limit events in descending journal order.
func (s *Store) Recent(limit int) ([]StoredEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT seq, id, type, attributes, created_at FROM events ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("eventsink: query: %w", err)
	}
	defer rows.Close()

	var out []StoredEvent
	for rows.Next() {
		var evt StoredEvent
		var attrs string
		if err := rows.Scan(&evt.Seq, &evt.ID, &evt.Type, &attrs, &evt.CreatedAt); err != nil {
			return nil, fmt.Errorf("eventsink: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(attrs), &evt.Attributes); err != nil {
			return nil, fmt.Errorf("eventsink: decode attributes: %w", err)
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func render(evt events.Event) *types.Event {
	if renderer, ok := evt.(interface{ Event() *types.Event }); ok {
		if rendered := renderer.Event(); rendered != nil {
			return rendered
		}
	}
	return &types.Event{Type: evt.EventType(), Attributes: map[string]string{}}
}
