package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"slidebounty.ai/internal/persistence/snapshot"
	"slidebounty.ai/internal/session"
)

const schemaVersion = "1"

// SQLiteIndex is a queryable read model of session events and ledger
// snapshots. Writes are queued to a single writer goroutine and dropped when
// the queue is full; the JSONL journal stays the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropEvents    atomic.Uint64
	dropSnapshots atomic.Uint64
}

type reqKind int

const (
	reqEvent reqKind = iota + 1
	reqSnapshot
	reqFlush
)

type req struct {
	kind reqKind

	event    session.Event
	snapshot snapshotRow
	done     chan struct{}
}

type snapshotRow struct {
	Block      uint64
	Path       string
	LedgerID   string
	Players    int
	Events     int
	Balance    string
	Bounty     string
	RecordedAt string
}

type QueueStats struct {
	QueueDepth        int    `json:"queue_depth"`
	QueueCapacity     int    `json:"queue_capacity"`
	DropEventTotal    uint64 `json:"drop_event_total"`
	DropSnapshotTotal uint64 `json:"drop_snapshot_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			at TEXT NOT NULL,
			session_id TEXT NOT NULL,
			identity TEXT NOT NULL,
			flow TEXT NOT NULL,
			level INTEGER NOT NULL,
			result TEXT NOT NULL,
			code TEXT,
			message TEXT,
			tx_hash TEXT,
			block INTEGER,
			completed INTEGER NOT NULL,
			claimed INTEGER NOT NULL,
			moves INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_identity_at ON events(identity, at);`,
		`CREATE INDEX IF NOT EXISTS idx_events_flow_result ON events(flow, result);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			block INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			ledger_id TEXT NOT NULL,
			players INTEGER NOT NULL,
			events INTEGER NOT NULL,
			balance TEXT NOT NULL,
			bounty TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','` + schemaVersion + `');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) DB() *sql.DB { return s.db }

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// WriteEvent queues e. It never blocks the session.
func (s *SQLiteIndex) WriteEvent(e session.Event) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqEvent, event: e}:
	default:
		s.dropEvents.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.LedgerV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := snapshotRow{
		Block:      snap.Header.Block,
		Path:       path,
		LedgerID:   snap.Header.LedgerID,
		Players:    len(snap.Players),
		Events:     len(snap.Events),
		Balance:    snap.Balance,
		Bounty:     snap.Bounty,
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
		s.dropSnapshots.Add(1)
	}
}

// Flush blocks until everything queued before it is committed.
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqFlush, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) Stats() QueueStats {
	return QueueStats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropEventTotal:    s.dropEvents.Load(),
		DropSnapshotTotal: s.dropSnapshots.Load(),
	}
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertEvent, _ := s.db.Prepare(`INSERT OR REPLACE INTO events(id,at,session_id,identity,flow,level,result,code,message,tx_hash,block,completed,claimed,moves) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(block,path,ledger_id,players,events,balance,bounty,recorded_at) VALUES(?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertEvent != nil {
			_ = insertEvent.Close()
		}
		if insertSnapshot != nil {
			_ = insertSnapshot.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 256
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			// If we can't start a tx, we can't do much; sleep a bit.
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		if r.kind == reqFlush {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqEvent:
			e := r.event
			if insertEvent == nil {
				continue
			}
			if _, err := tx.Stmt(insertEvent).Exec(
				e.ID,
				e.At.UTC().Format(time.RFC3339Nano),
				e.SessionID,
				e.Identity,
				e.Flow,
				e.Level,
				e.Result,
				e.Code,
				e.Message,
				e.TxHash,
				int64(e.Block),
				int(e.Completed),
				int(e.Claimed),
				e.Moves,
			); err != nil {
				rollback()
				continue
			}
			opCount++

		case reqSnapshot:
			sn := r.snapshot
			if insertSnapshot == nil {
				continue
			}
			if _, err := tx.Stmt(insertSnapshot).Exec(
				int64(sn.Block),
				sn.Path,
				sn.LedgerID,
				sn.Players,
				sn.Events,
				sn.Balance,
				sn.Bounty,
				sn.RecordedAt,
			); err != nil {
				rollback()
				continue
			}
			opCount++
		}
		flushIfNeeded()
	}

	commit()
}
