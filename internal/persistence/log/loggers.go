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

	"gridcraft.app/internal/protocol"
)

// JSONLZstdWriter appends JSON lines to hourly zstd files named
// <prefix>-YYYY-MM-DD-HH.jsonl.zst under baseDir.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
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
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
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

// JournalEntry is one applied server message and the world digest after it.
type JournalEntry struct {
	Seq    uint64          `json:"seq"`
	AtMs   int64           `json:"at_ms"`
	Type   string          `json:"type"`
	ReqID  string          `json:"req_id,omitempty"`
	Result json.RawMessage `json:"result"`
	Digest string          `json:"digest"`
}

func (e JournalEntry) Envelope() protocol.Envelope {
	return protocol.Envelope{Type: e.Type, Result: e.Result, ReqID: e.ReqID}
}

func (e JournalEntry) At() time.Time { return time.UnixMilli(e.AtMs) }

// SessionJournal records applied envelopes (compressed).
type SessionJournal struct{ w *JSONLZstdWriter }

func NewSessionJournal(dir string) *SessionJournal {
	return &SessionJournal{w: NewJSONLZstdWriter(dir, "session")}
}

func (j *SessionJournal) Record(seq uint64, at time.Time, env protocol.Envelope, digest string) error {
	return j.w.Write(JournalEntry{
		Seq:    seq,
		AtMs:   at.UnixMilli(),
		Type:   env.Type,
		ReqID:  env.ReqID,
		Result: env.Result,
		Digest: digest,
	})
}

func (j *SessionJournal) Close() error { return j.w.Close() }
