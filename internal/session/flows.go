package session

import (
	"context"

	"github.com/holiman/uint256"

	"slidebounty.ai/internal/eligibility"
	"slidebounty.ai/internal/ledger"
	"slidebounty.ai/internal/level"
	"slidebounty.ai/internal/progress"
)

// SolveResult describes a recorded completion.
type SolveResult struct {
	Receipt  ledger.Receipt
	Snapshot progress.Snapshot
	Level    int
	Finished bool
}

// OnPuzzleSolved records the solved puzzle on the ledger, waits for
// confirmation, refreshes progress and advances the level. On a write failure
// level and progress are unchanged. A failed refresh after confirmation still
// advances the level and is returned as *StaleRefresh.
func (s *Session) OnPuzzleSolved(ctx context.Context) (SolveResult, error) {
	if !s.submitting.CompareAndSwap(false, true) {
		s.finish(Event{Flow: FlowSolve, Level: s.Level()}, ErrAlreadyInProgress)
		return SolveResult{}, ErrAlreadyInProgress
	}
	defer s.submitting.Store(false)

	s.mu.Lock()
	before := s.level
	finished := s.finished
	solved := s.puzzle != nil && s.puzzle.Solved()
	moves := 0
	if s.puzzle != nil {
		moves = s.puzzle.Moves()
	}
	client := s.client
	s.mu.Unlock()

	ev := Event{Flow: FlowSolve, Level: before, Moves: moves}
	switch {
	case finished:
		s.finish(ev, ErrGameFinished)
		return SolveResult{}, ErrGameFinished
	case !solved:
		s.finish(ev, ErrPuzzleNotSolved)
		return SolveResult{}, ErrPuzzleNotSolved
	}

	rc, err := s.submit(ctx, ledger.OpPerformSlide, func() (ledger.Pending, error) {
		return client.SubmitCompletion(ctx)
	})
	ev.TxHash, ev.Block = rc.TxHash, rc.Block
	if err != nil {
		s.finish(ev, err)
		return SolveResult{}, err
	}

	snap, refreshErr := s.confirmed(ctx, ledger.OpPerformSlide, rc.TxHash)

	s.mu.Lock()
	if level.IsLast(before) {
		s.finished = true
		s.puzzle = nil
	} else {
		s.level = before + 1
		s.puzzle = s.newPuzzleLocked(s.level)
	}
	res := SolveResult{Receipt: rc, Snapshot: snap, Level: s.level, Finished: s.finished}
	s.mu.Unlock()

	s.finish(ev, refreshErr)
	return res, refreshErr
}

// ClaimResult describes a paid bounty. Paid is the bounty amount read
// before the payout was submitted.
type ClaimResult struct {
	Receipt  ledger.Receipt
	Snapshot progress.Snapshot
	Paid     uint256.Int
}

// OnClaimRequested re-reads progress and the claim context, checks
// eligibility and only then submits the payout. A confirmed payout whose
// follow-up refresh fails returns its result with *StaleRefresh.
func (s *Session) OnClaimRequested(ctx context.Context) (ClaimResult, error) {
	if !s.claiming.CompareAndSwap(false, true) {
		s.finish(Event{Flow: FlowClaim, Level: s.Level()}, ErrAlreadyInProgress)
		return ClaimResult{}, ErrAlreadyInProgress
	}
	defer s.claiming.Store(false)

	ev := Event{Flow: FlowClaim, Level: s.Level()}

	// Claimed count never decreases, so a fully claimed cache is final.
	if snap, ok := s.state.Snapshot(); ok && snap.FullyClaimed() {
		s.finish(ev, ErrAllClaimed)
		return ClaimResult{}, ErrAllClaimed
	}

	snap, err := s.refresh(ctx)
	if err != nil {
		s.finish(ev, err)
		return ClaimResult{}, err
	}
	if snap.FullyClaimed() {
		s.finish(ev, ErrAllClaimed)
		return ClaimResult{}, ErrAllClaimed
	}
	if d := eligibility.Precheck(snap); !d.Eligible() {
		err := &ClaimRejected{Decision: d}
		s.finish(ev, err)
		return ClaimResult{}, err
	}

	id, client := s.binding()
	cc, err := eligibility.ReadContext(ctx, client, id, s.readTimeout)
	if err != nil {
		err = &ReadFailure{Err: err}
		s.finish(ev, err)
		return ClaimResult{}, err
	}
	if d := eligibility.Evaluate(cc, snap, s.now()); !d.Eligible() {
		err := &ClaimRejected{Decision: d}
		s.finish(ev, err)
		return ClaimResult{}, err
	}

	rc, err := s.submit(ctx, ledger.OpPayoutLast, func() (ledger.Pending, error) {
		return client.SubmitClaim(ctx)
	})
	ev.TxHash, ev.Block = rc.TxHash, rc.Block
	if err != nil {
		s.finish(ev, err)
		return ClaimResult{}, err
	}

	paid := snap.BountyAmount
	snap, err = s.confirmed(ctx, ledger.OpPayoutLast, rc.TxHash)
	s.finish(ev, err)
	return ClaimResult{Receipt: rc, Snapshot: snap, Paid: paid}, err
}

// Fund sends amount to the contract from the session's identity. A confirmed
// transfer whose follow-up refresh fails returns the receipt with
// *StaleRefresh.
func (s *Session) Fund(ctx context.Context, amount uint256.Int) (ledger.Receipt, error) {
	if !s.funding.CompareAndSwap(false, true) {
		s.finish(Event{Flow: FlowFund, Level: s.Level()}, ErrAlreadyInProgress)
		return ledger.Receipt{}, ErrAlreadyInProgress
	}
	defer s.funding.Store(false)

	ev := Event{Flow: FlowFund, Level: s.Level()}
	if amount.IsZero() {
		s.finish(ev, ErrZeroAmount)
		return ledger.Receipt{}, ErrZeroAmount
	}

	_, client := s.binding()
	rc, err := s.submit(ctx, ledger.OpFund, func() (ledger.Pending, error) {
		return client.Fund(ctx, amount)
	})
	ev.TxHash, ev.Block = rc.TxHash, rc.Block
	if err != nil {
		s.finish(ev, err)
		return rc, err
	}
	_, err = s.confirmed(ctx, ledger.OpFund, rc.TxHash)
	s.finish(ev, err)
	return rc, err
}

// submit sends a mutation and waits for it. The wait ignores ctx
// cancellation: once submitted a mutation runs to completion or failure.
func (s *Session) submit(ctx context.Context, op string, send func() (ledger.Pending, error)) (ledger.Receipt, error) {
	p, err := send()
	if err != nil {
		return ledger.Receipt{}, &WriteFailure{Op: op, Err: ledger.WrapWrite(op, err)}
	}
	s.logger.Printf("session=%s op=%s tx=%s submitted", s.id, op, p.TxHash())
	rc, err := p.Wait(context.WithoutCancel(ctx))
	if err != nil {
		return ledger.Receipt{TxHash: p.TxHash()}, &WriteFailure{Op: op, TxHash: p.TxHash(), Err: ledger.WrapWrite(op, err)}
	}
	return rc, nil
}
