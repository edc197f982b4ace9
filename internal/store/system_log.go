// system_log.go — query surface of the system_logs table.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SystemLog is one system_logs row.
type SystemLog struct {
	ID         int       `db:"id" json:"id"`
	Ts         time.Time `db:"ts" json:"ts"`
	Level      string    `db:"level" json:"level"`
	Message    string    `db:"message" json:"message"`
	Source     string    `db:"source" json:"source"`
	Component  string    `db:"component" json:"component"`
	ThreadID   string    `db:"thread_id" json:"thread_id"`
	RunID      string    `db:"run_id" json:"run_id"`
	ChunkType  string    `db:"chunk_type" json:"chunk_type"`
	DurationMS *int      `db:"duration_ms" json:"duration_ms"`
	Extra      any       `db:"extra" json:"extra"`
}

// SystemLogStore queries system logs.
type SystemLogStore struct{ BaseStore }

// NewSystemLogStore creates the store.
func NewSystemLogStore(pool *pgxpool.Pool) *SystemLogStore {
	return &SystemLogStore{NewBaseStore(pool)}
}

const sysLogCols = `id, ts, level, message,
	source, component, thread_id, run_id, chunk_type, duration_ms, extra`

// LogListParams filters a system-log query.
type LogListParams struct {
	Level     string
	Source    string
	Component string
	ThreadID  string
	RunID     string
	ChunkType string
	Keyword   string
	Limit     int
}

// List queries system logs newest-first.
func (s *SystemLogStore) List(ctx context.Context, p LogListParams) ([]SystemLog, error) {
	q := NewQueryBuilder().
		Eq("level", p.Level).
		Eq("source", p.Source).
		Eq("component", p.Component).
		Eq("thread_id", p.ThreadID).
		Eq("run_id", p.RunID).
		Eq("chunk_type", p.ChunkType).
		KeywordLike(p.Keyword, "level", "message", "source", "component")
	sql, params := q.Build("SELECT "+sysLogCols+" FROM system_logs", "ts DESC, id DESC", p.Limit)
	rows, err := s.pool.Query(ctx, sql, params...)
	if err != nil {
		return nil, err
	}
	return collectRows[SystemLog](rows)
}

// ListFilterValues returns the distinct filter values for the log UI.
func (s *SystemLogStore) ListFilterValues(ctx context.Context) (map[string][]string, error) {
	return DistinctMap(ctx, s.pool, "system_logs", "level", "source", "component", "chunk_type")
}
