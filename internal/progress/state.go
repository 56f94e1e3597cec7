package progress

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"slidebounty.ai/internal/ledger"
)

// State caches the last successful Snapshot. Only the session writes it.
type State struct {
	mu          sync.RWMutex
	snap        Snapshot
	loaded      bool
	refreshedAt time.Time

	readTimeout time.Duration
}

// NewState returns an empty state. readTimeout bounds each refresh; zero
// leaves the caller's context in charge.
func NewState(readTimeout time.Duration) *State {
	return &State{readTimeout: readTimeout}
}

func (s *State) Snapshot() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap, s.loaded
}

func (s *State) RefreshedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshedAt
}

// Reset drops the cached snapshot, e.g. after an identity switch.
func (s *State) Reset() {
	s.mu.Lock()
	s.snap = Snapshot{}
	s.loaded = false
	s.refreshedAt = time.Time{}
	s.mu.Unlock()
}

// Refresh reads every progress field for identity and replaces the cache.
// Any failed read fails the whole refresh, keeps the previous snapshot and
// returns it.
func (s *State) Refresh(ctx context.Context, r ledger.Reader, identity string) (Snapshot, error) {
	snap, err := Read(ctx, r, identity, s.readTimeout)
	if err != nil {
		prev, _ := s.Snapshot()
		return prev, err
	}
	s.mu.Lock()
	s.snap = snap
	s.loaded = true
	s.refreshedAt = time.Now()
	s.mu.Unlock()
	return snap, nil
}

// Read issues the six progress queries concurrently and assembles them.
func Read(ctx context.Context, r ledger.Reader, identity string, timeout time.Duration) (Snapshot, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	snap := Snapshot{Identity: identity}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := r.CompletedCount(gctx, identity)
		snap.PuzzlesCompleted = v
		return ledger.WrapRead(ledger.QueryCompleted, err)
	})
	g.Go(func() error {
		v, err := r.ClaimedCount(gctx, identity)
		snap.RewardsClaimed = v
		return ledger.WrapRead(ledger.QueryClaimed, err)
	})
	g.Go(func() error {
		v, err := r.BountyAmount(gctx)
		snap.BountyAmount = v
		return ledger.WrapRead(ledger.QueryBounty, err)
	})
	g.Go(func() error {
		v, err := r.Balance(gctx)
		snap.ContractBalance = v
		return ledger.WrapRead(ledger.QueryBalance, err)
	})
	g.Go(func() error {
		m, ok, err := r.NextMilestone(gctx, identity)
		snap.NextMilestone = Milestone{Number: m, Available: ok}
		return ledger.WrapRead(ledger.QueryNextMilestone, err)
	})
	g.Go(func() error {
		v, err := r.Finished(gctx, identity)
		snap.HasFinishedGame = v
		return ledger.WrapRead(ledger.QueryFinished, err)
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
