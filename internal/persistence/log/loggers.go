package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"stackhold.gg/internal/sim/world"
)

// jsonlWriter appends zstd-compressed JSONL records, rotating the output
// file once per UTC day.
type jsonlWriter struct {
	dir    string
	prefix string

	mu     sync.Mutex
	curDay string
	f      *os.File
	enc    *zstd.Encoder
	buf    *bufio.Writer
}

func newJSONLWriter(dir, prefix string) *jsonlWriter {
	return &jsonlWriter{dir: dir, prefix: prefix}
}

func (w *jsonlWriter) append(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	day := time.Now().UTC().Format("2006-01-02")
	if day != w.curDay {
		if err := w.openLocked(day); err != nil {
			return err
		}
	}
	if _, err := w.buf.Write(b); err != nil {
		return err
	}
	if err := w.buf.WriteByte('\n'); err != nil {
		return err
	}
	return w.buf.Flush()
}

func (w *jsonlWriter) openLocked(day string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(w.dir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, day))
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
	w.buf = bufio.NewWriterSize(enc, 128*1024)
	w.curDay = day
	return nil
}

func (w *jsonlWriter) closeLocked() error {
	var errClose error
	if w.buf != nil {
		_ = w.buf.Flush()
		w.buf = nil
	}
	if w.enc != nil {
		errClose = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	return errClose
}

func (w *jsonlWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

// TickLogger records one entry per tick: joins, leaves, applied commands
// and the post-tick state digest. The stream is enough to replay a store
// from the last snapshot.
type TickLogger struct{ w *jsonlWriter }

func NewTickLogger(storeDir string) *TickLogger {
	return &TickLogger{w: newJSONLWriter(filepath.Join(storeDir, "ticks"), "ticks")}
}

func (l *TickLogger) WriteTick(v world.TickLogEntry) error { return l.w.append(v) }
func (l *TickLogger) Close() error                         { return l.w.Close() }

// AuditLogger records one entry per command outcome.
type AuditLogger struct{ w *jsonlWriter }

func NewAuditLogger(storeDir string) *AuditLogger {
	return &AuditLogger{w: newJSONLWriter(filepath.Join(storeDir, "audit"), "audit")}
}

func (l *AuditLogger) WriteAudit(v world.AuditEntry) error { return l.w.append(v) }
func (l *AuditLogger) Close() error                        { return l.w.Close() }
