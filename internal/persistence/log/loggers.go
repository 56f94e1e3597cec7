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

	"slidebounty.ai/internal/ledger"
	"slidebounty.ai/internal/session"
)

// JSONLZstdWriter appends JSON lines to hourly zstd files named
// <prefix>-YYYY-MM-DD-HH.jsonl.zst. Each reopen starts a new zstd frame.
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

	hour := w.now().UTC().Format(hourLayout)
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
	dir := filepath.Dir(w.pathForHour(hour))
	if err := os.MkdirAll(dir, 0o755); err != nil {
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
	return err1
}

func (w *JSONLZstdWriter) Dir() string { return w.baseDir }

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

const hourLayout = "2006-01-02-15"

// Journal records every session flow outcome.
type Journal struct{ w *JSONLZstdWriter }

func NewJournal(dataDir string) *Journal {
	return &Journal{w: NewJSONLZstdWriter(filepath.Join(dataDir, "journal"), "events")}
}

func (l *Journal) WriteEvent(e session.Event) error { return l.w.Write(e) }
func (l *Journal) Dir() string                      { return l.w.Dir() }
func (l *Journal) Close() error                     { return l.w.Close() }

// ReceiptEntry is one confirmed or failed ledger mutation.
type ReceiptEntry struct {
	At     time.Time      `json:"at"`
	Op     string         `json:"op"`
	From   string         `json:"from"`
	TxHash string         `json:"tx_hash"`
	OK     bool           `json:"ok"`
	Block  uint64         `json:"block,omitempty"`
	Reason string         `json:"reason,omitempty"`
	Events []ledger.Event `json:"events,omitempty"`
}

// ReceiptLogger writes gateway mutation receipts (compressed).
type ReceiptLogger struct{ w *JSONLZstdWriter }

func NewReceiptLogger(dataDir string) *ReceiptLogger {
	return &ReceiptLogger{w: NewJSONLZstdWriter(filepath.Join(dataDir, "receipts"), "receipts")}
}

func (l *ReceiptLogger) WriteReceipt(e ReceiptEntry) error { return l.w.Write(e) }
func (l *ReceiptLogger) Close() error                      { return l.w.Close() }
