package logger

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// LogEntry corresponds to one row of the system_logs table.
type LogEntry struct {
	Ts         time.Time
	Level      string
	Message    string
	Source     string
	Component  string
	ThreadID   string
	RunID      string
	ChunkType  string
	DurationMS *int
	Extra      map[string]any
}

// ========================================
// DBHandler — slog.Handler with async batched PG writes
// ========================================

const (
	bufSize    = 1024
	batchSize  = 100
	flushDelay = 500 * time.Millisecond
)

// DBHandler implements slog.Handler and writes records to the PostgreSQL
// system_logs table in asynchronous batches.
type DBHandler struct {
	pool  *pgxpool.Pool
	buf   chan LogEntry
	attrs []slog.Attr
	group string
	level slog.Level
	done  chan struct{}
	// closed is shared across handler clones (WithAttrs/WithGroup) so a
	// clone cannot write to the channel after Shutdown closed it.
	closed *atomic.Bool
}

// NewDBHandler creates the handler and starts the background writer.
func NewDBHandler(pool *pgxpool.Pool, level slog.Level) *DBHandler {
	h := &DBHandler{
		pool:   pool,
		buf:    make(chan LogEntry, bufSize),
		level:  level,
		done:   make(chan struct{}),
		closed: &atomic.Bool{},
	}
	go h.consumeLoop()
	return h
}

// Enabled implements slog.Handler.
func (h *DBHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle implements slog.Handler. Builds a LogEntry and pushes it to the
// async buffer.
func (h *DBHandler) Handle(_ context.Context, r slog.Record) error {
	if h.closed != nil && h.closed.Load() {
		return nil
	}

	entry := LogEntry{
		Ts:      r.Time,
		Level:   r.Level.String(),
		Message: r.Message,
	}

	for _, a := range h.attrs {
		applyAttr(&entry, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		applyAttr(&entry, a)
		return true
	})

	// Non-blocking push. Drops when the channel is full or closed.
	func() {
		defer func() { _ = recover() }()
		select {
		case h.buf <- entry:
		default:
		}
	}()
	return nil
}

// WithAttrs implements slog.Handler.
func (h *DBHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	copy(newAttrs[len(h.attrs):], attrs)
	return &DBHandler{
		pool:   h.pool,
		buf:    h.buf,
		attrs:  newAttrs,
		group:  h.group,
		level:  h.level,
		done:   h.done,
		closed: h.closed,
	}
}

// WithGroup implements slog.Handler.
func (h *DBHandler) WithGroup(name string) slog.Handler {
	return &DBHandler{
		pool:   h.pool,
		buf:    h.buf,
		attrs:  h.attrs,
		group:  name,
		level:  h.level,
		done:   h.done,
		closed: h.closed,
	}
}

// Shutdown stops the background goroutine and flushes remaining entries.
func (h *DBHandler) Shutdown() {
	if h.closed != nil && !h.closed.CompareAndSwap(false, true) {
		return
	}
	close(h.buf)
	<-h.done
}

// consumeLoop drains the channel into batched INSERTs.
func (h *DBHandler) consumeLoop() {
	defer close(h.done)

	batch := make([]LogEntry, 0, batchSize)
	ticker := time.NewTicker(flushDelay)
	defer ticker.Stop()

	for {
		select {
		case entry, ok := <-h.buf:
			if !ok {
				if len(batch) > 0 {
					h.flush(batch)
				}
				return
			}
			batch = append(batch, entry)
			if len(batch) >= batchSize {
				h.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				h.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

// flush writes a batch to PG. Failures only log to the base handler.
func (h *DBHandler) flush(batch []LogEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, e := range batch {
		var extraJSON []byte
		if len(e.Extra) > 0 {
			var marshalErr error
			extraJSON, marshalErr = json.Marshal(e.Extra)
			if marshalErr != nil {
				slog.Default().Debug("db_handler: marshal extra", "error", marshalErr)
				extraJSON = nil
			}
		}

		_, err := h.pool.Exec(ctx,
			`INSERT INTO system_logs
				(ts, level, message, source, component,
				 thread_id, run_id, chunk_type, duration_ms, extra)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			e.Ts, e.Level, e.Message, e.Source, e.Component,
			e.ThreadID, e.RunID, e.ChunkType, e.DurationMS, extraJSON,
		)
		if err != nil {
			slog.Default().Warn("db_handler: flush failed", "error", err)
		}
	}
}

// applyAttr maps a slog.Attr onto the structured LogEntry columns.
func applyAttr(e *LogEntry, a slog.Attr) {
	switch a.Key {
	case FieldSource:
		e.Source = a.Value.String()
	case FieldComponent:
		e.Component = a.Value.String()
	case FieldThreadID:
		e.ThreadID = a.Value.String()
	case FieldRunID:
		e.RunID = a.Value.String()
	case FieldChunkType:
		e.ChunkType = a.Value.String()
	case FieldDurationMS:
		switch v := a.Value.Any().(type) {
		case int64:
			ms := int(v)
			e.DurationMS = &ms
		case int:
			ms := v
			e.DurationMS = &ms
		case float64:
			ms := int(v)
			e.DurationMS = &ms
		}
	default:
		if e.Extra == nil {
			e.Extra = make(map[string]any)
		}
		e.Extra[a.Key] = a.Value.Any()
	}
}

// ========================================
// MultiHandler — fan-out to several handlers (text + DB)
// ========================================

// MultiHandler fans a record out to multiple slog.Handlers.
type MultiHandler struct {
	handlers []slog.Handler
}

// NewMultiHandler creates the fan-out handler.
func NewMultiHandler(handlers ...slog.Handler) *MultiHandler {
	return &MultiHandler{handlers: handlers}
}

// Enabled returns true when any handler accepts the level.
func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle dispatches the record to every handler.
func (m *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if h.Enabled(ctx, r.Level) {
			_ = h.Handle(ctx, r)
		}
	}
	return nil
}

// WithAttrs applies WithAttrs to every handler.
func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return &MultiHandler{handlers: handlers}
}

// WithGroup applies WithGroup to every handler.
func (m *MultiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return &MultiHandler{handlers: handlers}
}

// ========================================
// AttachDBHandler — mounted once the pool is ready
// ========================================

var (
	dbHandler atomic.Pointer[DBHandler]
	attachMu  sync.Mutex
)

// AttachDBHandler mounts the DBHandler as a second output once the pool is
// initialized. Records logged before the call only reach stdout.
func AttachDBHandler(pool *pgxpool.Pool) {
	attachMu.Lock()
	defer attachMu.Unlock()

	h := NewDBHandler(pool, slog.LevelInfo)
	dbHandler.Store(h)

	orig := unwrapBaseHandler(getLogger().Handler())
	storeLogger(slog.New(NewMultiHandler(orig, h)))
}

// ShutdownDBHandler stops the DBHandler and flushes remaining entries.
func ShutdownDBHandler() {
	if h := dbHandler.Load(); h != nil {
		h.Shutdown()
	}
}

// unwrapBaseHandler strips a MultiHandler wrapper so repeated Attach calls
// do not nest fan-outs.
func unwrapBaseHandler(h slog.Handler) slog.Handler {
	if m, ok := h.(*MultiHandler); ok && len(m.handlers) > 0 {
		return m.handlers[0]
	}
	return h
}
