package log

import (
	"path/filepath"
	"testing"
	"time"

	"slidebounty.ai/internal/ledger"
	"slidebounty.ai/internal/session"
)

func TestJournal_RoundTripAcrossHours(t *testing.T) {
	dir := t.TempDir()
	j := NewJournal(dir)
	now := time.Date(2025, 3, 1, 10, 59, 0, 0, time.UTC)
	j.w.now = func() time.Time { return now }

	if err := j.WriteEvent(session.Event{ID: "e1", Flow: session.FlowSolve, Result: session.ResultOK, TxHash: "0x01"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if err := j.WriteEvent(session.Event{ID: "e2", Flow: session.FlowClaim, Result: session.ResultRejected, Code: "E_COOLDOWN"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := Files(filepath.Join(dir, "journal"), "events")
	if err != nil {
		t.Fatalf("files: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("files=%v want one per hour", files)
	}

	evs, err := ReadEvents(dir)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(evs) != 2 || evs[0].ID != "e1" || evs[1].Code != "E_COOLDOWN" {
		t.Fatalf("events=%+v", evs)
	}
}

func TestJournal_ReopenAppendsFrame(t *testing.T) {
	dir := t.TempDir()
	fixed := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b"} {
		j := NewJournal(dir)
		j.w.now = func() time.Time { return fixed }
		if err := j.WriteEvent(session.Event{ID: id}); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		if err := j.Close(); err != nil {
			t.Fatalf("close %d: %v", i, err)
		}
	}
	evs, err := ReadEvents(dir)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(evs) != 2 || evs[1].ID != "b" {
		t.Fatalf("events=%+v", evs)
	}
}

func TestReceiptLogger(t *testing.T) {
	dir := t.TempDir()
	l := NewReceiptLogger(dir)
	err := l.WriteReceipt(ReceiptEntry{
		Op:     ledger.OpPerformSlide,
		TxHash: "0xab",
		OK:     true,
		Events: []ledger.Event{{Name: ledger.EventPuzzleCompleted, User: "0xa", Total: 1}},
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	files, err := Files(filepath.Join(dir, "receipts"), "receipts")
	if err != nil || len(files) != 1 {
		t.Fatalf("files=%v err=%v", files, err)
	}
	n := 0
	if err := ScanFile(files[0], func([]byte) error { n++; return nil }); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if n != 1 {
		t.Fatalf("lines=%d", n)
	}
}
