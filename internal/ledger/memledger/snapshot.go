package memledger

import (
	"fmt"
	"sort"
	"time"

	"slidebounty.ai/internal/ledger"
	"slidebounty.ai/internal/persistence/snapshot"
)

// ExportSnapshot captures confirmed state. Queued mutations are not included.
func (l *Ledger) ExportSnapshot(ledgerID string) snapshot.LedgerV1 {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := snapshot.LedgerV1{
		Header:            snapshot.Header{Version: snapshot.Version, LedgerID: ledgerID, Block: l.block},
		Owner:             l.owner,
		Bounty:            l.bounty.Dec(),
		Balance:           l.balance.Dec(),
		PayoutCooldownSec: int64(l.cooldown / time.Second),
		LastUser:          l.lastUser,
		LastPayoutUnix:    l.lastPayoutUnix,
	}
	for id, p := range l.players {
		snap.Players = append(snap.Players, snapshot.PlayerV1{Identity: id, Completed: p.completed, Claimed: p.claimed})
	}
	sort.Slice(snap.Players, func(i, j int) bool { return snap.Players[i].Identity < snap.Players[j].Identity })
	for _, e := range l.events {
		snap.Events = append(snap.Events, snapshot.EventV1{
			Name:      e.Name,
			User:      e.User,
			Total:     e.Total,
			Milestone: e.Milestone,
			Claimed:   e.Claimed,
			Amount:    e.Amount,
		})
	}
	return snap
}

// ImportSnapshot replaces confirmed state. It must run before any client
// submits.
func (l *Ledger) ImportSnapshot(snap snapshot.LedgerV1) error {
	bounty, err := ledger.ParseAmount(snap.Bounty)
	if err != nil {
		return fmt.Errorf("bounty: %w", err)
	}
	balance, err := ledger.ParseAmount(snap.Balance)
	if err != nil {
		return fmt.Errorf("balance: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) > 0 {
		return fmt.Errorf("import with %d queued mutations", len(l.queue))
	}
	l.owner = snap.Owner
	l.bounty = bounty
	l.balance = balance
	l.cooldown = time.Duration(snap.PayoutCooldownSec) * time.Second
	l.lastUser = snap.LastUser
	l.lastPayoutUnix = snap.LastPayoutUnix
	l.block = snap.Header.Block
	l.players = map[string]*player{}
	for _, p := range snap.Players {
		l.players[key(p.Identity)] = &player{completed: p.Completed, claimed: p.Claimed}
	}
	l.events = l.events[:0]
	for _, e := range snap.Events {
		l.events = append(l.events, ledger.Event{
			Name:      e.Name,
			User:      e.User,
			Total:     e.Total,
			Milestone: e.Milestone,
			Claimed:   e.Claimed,
			Amount:    e.Amount,
		})
	}
	return nil
}
