package log

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"voxelcore.ai/internal/sim/world"
)

type JSONLZstdWriter struct {
	baseDir string
	prefix  string

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer

	now func() time.Time
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

// Write appends v as one JSON line to the file of the current UTC hour.
func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.pathForHour(hour)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// AuditLogger writes one compressed JSONL entry per storage mutation.
type AuditLogger struct{ w *JSONLZstdWriter }

func NewAuditLogger(worldDir string) *AuditLogger {
	return &AuditLogger{w: NewJSONLZstdWriter(filepath.Join(worldDir, "audit"), "audit")}
}

func (l *AuditLogger) WriteAudit(v world.AuditEntry) error { return l.w.Write(v) }
func (l *AuditLogger) Close() error                        { return l.w.Close() }

// InvalidationRecord is the on-disk form of a world.InvalidationEvent.
type InvalidationRecord struct {
	Seq    uint64   `json:"seq"`
	Reason string   `json:"reason"`
	Pos    [3]int   `json:"pos"`
	Slices [][4]int `json:"slices"` // chunk x, y, z, slice y
}

// InvalidationLogger records invalidation events for offline replay of the
// render cache.
type InvalidationLogger struct{ w *JSONLZstdWriter }

func NewInvalidationLogger(worldDir string) *InvalidationLogger {
	return &InvalidationLogger{w: NewJSONLZstdWriter(filepath.Join(worldDir, "invalidations"), "invalidations")}
}

func (l *InvalidationLogger) WriteEvent(ev world.InvalidationEvent) error {
	rec := InvalidationRecord{
		Seq:    ev.Seq,
		Reason: ev.Reason,
		Pos:    [3]int{ev.Coord.X, ev.Coord.Y, ev.Coord.Z},
		Slices: make([][4]int, 0, len(ev.Slices)),
	}
	for _, s := range ev.Slices {
		rec.Slices = append(rec.Slices, [4]int{s.Chunk.X, s.Chunk.Y, s.Chunk.Z, s.Y})
	}
	return l.w.Write(rec)
}

// Drain writes events until ch closes or ctx is done. It returns the first
// write error.
func (l *InvalidationLogger) Drain(ctx context.Context, ch <-chan world.InvalidationEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if err := l.WriteEvent(ev); err != nil {
				return err
			}
		}
	}
}

func (l *InvalidationLogger) Close() error { return l.w.Close() }
