package indexdb

import (
	"context"
	"database/sql"
	"time"

	"slidebounty.ai/internal/session"
)

// RecentEvents returns the newest events, optionally for one identity.
func RecentEvents(ctx context.Context, db *sql.DB, identity string, limit int) ([]session.Event, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT id,at,session_id,identity,flow,level,result,COALESCE(code,''),COALESCE(message,''),COALESCE(tx_hash,''),COALESCE(block,0),completed,claimed,COALESCE(moves,0) FROM events`
	args := []any{}
	if identity != "" {
		q += ` WHERE identity = ? COLLATE NOCASE`
		args = append(args, identity)
	}
	q += ` ORDER BY at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []session.Event
	for rows.Next() {
		var (
			e                  session.Event
			at                 string
			block              int64
			completed, claimed int
		)
		if err := rows.Scan(&e.ID, &at, &e.SessionID, &e.Identity, &e.Flow, &e.Level, &e.Result, &e.Code, &e.Message, &e.TxHash, &block, &completed, &claimed, &e.Moves); err != nil {
			return nil, err
		}
		e.At, _ = time.Parse(time.RFC3339Nano, at)
		e.Block = uint64(block)
		e.Completed = uint8(completed)
		e.Claimed = uint8(claimed)
		out = append(out, e)
	}
	return out, rows.Err()
}

type FlowCount struct {
	Flow   string `json:"flow"`
	Result string `json:"result"`
	Code   string `json:"code,omitempty"`
	Count  int    `json:"count"`
}

// FlowSummary counts outcomes per flow, result and code.
func FlowSummary(ctx context.Context, db *sql.DB) ([]FlowCount, error) {
	rows, err := db.QueryContext(ctx, `SELECT flow,result,COALESCE(code,''),COUNT(*) FROM events GROUP BY flow,result,code ORDER BY flow,result,code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []FlowCount
	for rows.Next() {
		var c FlowCount
		if err := rows.Scan(&c.Flow, &c.Result, &c.Code, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type SnapshotRow struct {
	Block      uint64 `json:"block"`
	Path       string `json:"path"`
	LedgerID   string `json:"ledger_id"`
	Players    int    `json:"players"`
	Events     int    `json:"events"`
	Balance    string `json:"balance"`
	Bounty     string `json:"bounty"`
	RecordedAt string `json:"recorded_at"`
}

func Snapshots(ctx context.Context, db *sql.DB, limit int) ([]SnapshotRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx, `SELECT block,path,ledger_id,players,events,balance,bounty,recorded_at FROM snapshots ORDER BY block DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SnapshotRow
	for rows.Next() {
		var (
			r     SnapshotRow
			block int64
		)
		if err := rows.Scan(&block, &r.Path, &r.LedgerID, &r.Players, &r.Events, &r.Balance, &r.Bounty, &r.RecordedAt); err != nil {
			return nil, err
		}
		r.Block = uint64(block)
		out = append(out, r)
	}
	return out, rows.Err()
}
