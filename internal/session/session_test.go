package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"slidebounty.ai/internal/eligibility"
	"slidebounty.ai/internal/ledger"
	"slidebounty.ai/internal/ledger/memledger"
	"slidebounty.ai/internal/protocol"
)

const (
	idA = "0xAaaa000000000000000000000000000000000001"
	idB = "0xBbbb000000000000000000000000000000000002"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type memSink struct {
	mu     sync.Mutex
	events []Event
}

func (m *memSink) WriteEvent(e Event) error {
	m.mu.Lock()
	m.events = append(m.events, e)
	m.mu.Unlock()
	return nil
}

func (m *memSink) last() Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[len(m.events)-1]
}

func newWorld(balance uint64) (*memledger.Ledger, *clock) {
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	l := memledger.New(memledger.Config{
		Owner:          idA,
		Bounty:         *uint256.NewInt(10),
		InitialBalance: *uint256.NewInt(balance),
		PayoutCooldown: 5 * time.Minute,
		Now:            clk.Now,
	})
	return l, clk
}

func newSession(t *testing.T, l *memledger.Ledger, clk *clock, id string, sinks ...EventSink) *Session {
	t.Helper()
	s, err := New(Config{
		Identity:          id,
		Client:            l.Client(id),
		Sinks:             sinks,
		Seed:              1,
		ShuffleIterations: 1,
		Now:               clk.Now,
	})
	require.NoError(t, err)
	_, err = s.Load(context.Background())
	require.NoError(t, err)
	return s
}

// solve undoes the single shuffle move.
func solve(t *testing.T, s *Session) {
	t.Helper()
	v := s.View()
	moved, solved := s.Move(v.Grid.Size*v.Grid.Size - 1)
	require.True(t, moved)
	require.True(t, solved)
}

func solveAndSubmit(t *testing.T, s *Session) SolveResult {
	t.Helper()
	solve(t, s)
	res, err := s.OnPuzzleSolved(context.Background())
	require.NoError(t, err)
	return res
}

func rejection(t *testing.T, err error) eligibility.Decision {
	t.Helper()
	var cr *ClaimRejected
	require.ErrorAs(t, err, &cr)
	return cr.Decision
}

func bountiesPaid(l *memledger.Ledger) int {
	n := 0
	for _, e := range l.Events() {
		if e.Name == ledger.EventBountyPaid {
			n++
		}
	}
	return n
}

func TestSolve_AdvancesLevelAfterConfirmation(t *testing.T) {
	l, clk := newWorld(100)
	sink := &memSink{}
	s := newSession(t, l, clk, idA, sink)
	require.Equal(t, 1, s.Level())

	res := solveAndSubmit(t, s)
	require.Equal(t, 2, res.Level)
	require.False(t, res.Finished)
	require.Equal(t, uint8(1), res.Snapshot.PuzzlesCompleted)
	require.True(t, res.Snapshot.NextMilestone.Available)
	require.False(t, s.View().Solved, "next level starts with a fresh puzzle")

	ev := sink.last()
	require.Equal(t, FlowSolve, ev.Flow)
	require.Equal(t, ResultOK, ev.Result)
	require.Equal(t, res.Receipt.TxHash, ev.TxHash)
	require.Equal(t, 1, ev.Level)
	require.Equal(t, uint8(1), ev.Completed)
}

func TestSolve_RequiresSolvedPuzzle(t *testing.T) {
	l, clk := newWorld(100)
	s := newSession(t, l, clk, idA)
	_, err := s.OnPuzzleSolved(context.Background())
	require.ErrorIs(t, err, ErrPuzzleNotSolved)
	require.Empty(t, l.Events())
}

func TestSolve_WriteFailureKeepsLevelAndClearsGuard(t *testing.T) {
	l, clk := newWorld(100)
	s := newSession(t, l, clk, idA)
	solve(t, s)

	boom := errors.New("rpc down")
	l.FailSubmit(ledger.OpPerformSlide, boom)
	_, err := s.OnPuzzleSolved(context.Background())
	var wf *WriteFailure
	require.ErrorAs(t, err, &wf)
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, s.Level())
	require.True(t, s.View().Solved)
	require.Equal(t, protocol.ErrInternal, Code(err))

	l.FailSubmit(ledger.OpPerformSlide, nil)
	res, err := s.OnPuzzleSolved(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, res.Level)
}

func TestSolve_RefreshFailureStillAdvances(t *testing.T) {
	l, clk := newWorld(100)
	s := newSession(t, l, clk, idA)
	solve(t, s)
	l.FailRead(ledger.QueryBounty, errors.New("timeout"))

	res, err := s.OnPuzzleSolved(context.Background())
	var sr *StaleRefresh
	require.ErrorAs(t, err, &sr)
	var rf *ReadFailure
	require.ErrorAs(t, err, &rf)
	require.Equal(t, res.Receipt.TxHash, sr.TxHash)
	require.Equal(t, 2, res.Level)
	require.Equal(t, idA, res.Snapshot.Identity, "result carries the retained snapshot")
	require.Equal(t, "10", res.Snapshot.BountyAmount.Dec())

	snap, ok := s.Snapshot()
	require.True(t, ok)
	require.Zero(t, snap.PuzzlesCompleted, "cached snapshot is the pre-solve read")
	require.Equal(t, snap, res.Snapshot)
}

func TestClaim_LastSubmitterEligible(t *testing.T) {
	l, clk := newWorld(100)
	a := newSession(t, l, clk, idA)
	solveAndSubmit(t, a)

	res, err := a.OnClaimRequested(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint8(1), res.Snapshot.RewardsClaimed)
	require.Equal(t, "90", res.Snapshot.ContractBalance.Dec())
	require.Equal(t, 1, bountiesPaid(l))
}

func TestClaim_AnotherSubmitterBlocksClaim(t *testing.T) {
	l, clk := newWorld(100)
	a := newSession(t, l, clk, idA)
	b := newSession(t, l, clk, idB)

	solveAndSubmit(t, a)
	solveAndSubmit(t, b)

	_, err := a.OnClaimRequested(context.Background())
	d := rejection(t, err)
	require.Equal(t, eligibility.NotLastSubmitter, d.Reason)
	require.Equal(t, protocol.ErrNotLastUser, Code(err))
	require.Zero(t, bountiesPaid(l))

	_, err = b.OnClaimRequested(context.Background())
	require.NoError(t, err)
}

func TestClaim_SubmitterLandingBeforePayoutReverts(t *testing.T) {
	ctx := context.Background()
	l, clk := newWorld(100)
	a := newSession(t, l, clk, idA)
	b := newSession(t, l, clk, idB)
	solveAndSubmit(t, a)

	l.Hold(true)
	solve(t, b)
	bDone := make(chan error, 1)
	go func() {
		_, err := b.OnPuzzleSolved(ctx)
		bDone <- err
	}()
	require.Eventually(t, func() bool { return l.Queued() == 1 }, time.Second, time.Millisecond)

	aDone := make(chan error, 1)
	go func() {
		_, err := a.OnClaimRequested(ctx)
		aDone <- err
	}()
	require.Eventually(t, func() bool { return l.Queued() == 2 }, time.Second, time.Millisecond)

	require.Equal(t, 2, l.Mine())
	require.NoError(t, <-bDone)

	err := <-aDone
	var wf *WriteFailure
	require.ErrorAs(t, err, &wf)
	require.Equal(t, ledger.ReasonNotLastUser, wf.Reason())
	require.NotEmpty(t, wf.TxHash)
	require.Equal(t, ledger.ReasonNotLastUser, Message(err))
	require.Zero(t, bountiesPaid(l))
	require.False(t, a.View().Claiming)
}

func TestClaim_ContextReadFailureSendsNothing(t *testing.T) {
	ctx := context.Background()
	l, clk := newWorld(100)
	sink := &memSink{}
	a := newSession(t, l, clk, idA, sink)
	solveAndSubmit(t, a)

	l.FailRead(ledger.QueryLastUser, errors.New("timeout"))
	_, err := a.OnClaimRequested(ctx)
	var rf *ReadFailure
	require.ErrorAs(t, err, &rf)
	var re *ledger.ReadError
	require.ErrorAs(t, err, &re)
	require.Equal(t, ledger.QueryLastUser, re.Query)
	var sr *StaleRefresh
	require.False(t, errors.As(err, &sr))
	require.Zero(t, l.Queued())
	require.Zero(t, bountiesPaid(l))
	require.False(t, a.View().Claiming)
	require.Equal(t, ResultReadFailure, sink.last().Result)

	l.FailRead(ledger.QueryLastUser, nil)
	boom := errors.New("rpc down")
	l.FailSubmit(ledger.OpPayoutLast, boom)
	_, err = a.OnClaimRequested(ctx)
	var wf *WriteFailure
	require.ErrorAs(t, err, &wf)
	require.Zero(t, l.Queued())
	require.Zero(t, bountiesPaid(l))
	require.False(t, a.View().Claiming)
	require.Equal(t, ResultWriteFailure, sink.last().Result)

	l.FailSubmit(ledger.OpPayoutLast, nil)
	_, err = a.OnClaimRequested(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, bountiesPaid(l))
}

func TestClaim_ConfirmedPayoutWithFailedRefresh(t *testing.T) {
	l, clk := newWorld(100)
	sink := &memSink{}
	a := newSession(t, l, clk, idA, sink)
	solveAndSubmit(t, a)

	type outcome struct {
		res ClaimResult
		err error
	}
	l.Hold(true)
	done := make(chan outcome, 1)
	go func() {
		res, err := a.OnClaimRequested(context.Background())
		done <- outcome{res, err}
	}()
	require.Eventually(t, func() bool { return l.Queued() == 1 }, time.Second, time.Millisecond)
	l.FailRead(ledger.QueryBalance, errors.New("timeout"))
	require.Equal(t, 1, l.Mine())

	out := <-done
	var sr *StaleRefresh
	require.ErrorAs(t, out.err, &sr)
	require.Equal(t, ledger.OpPayoutLast, sr.Op)
	require.NotEmpty(t, out.res.Receipt.TxHash)
	require.Equal(t, out.res.Receipt.TxHash, sr.TxHash)
	require.Equal(t, "10", out.res.Paid.Dec())
	require.Equal(t, uint8(0), out.res.Snapshot.RewardsClaimed, "snapshot is the pre-payout read")
	require.Equal(t, 1, bountiesPaid(l))
	require.False(t, a.View().Claiming)

	ev := sink.last()
	require.Equal(t, FlowClaim, ev.Flow)
	require.Equal(t, ResultOKStale, ev.Result)
	require.Empty(t, ev.Code)
	require.Equal(t, out.res.Receipt.TxHash, ev.TxHash)
	require.Contains(t, Message(out.err), "recorded on the ledger")
}

func TestClaim_CooldownAfterPayout(t *testing.T) {
	l, clk := newWorld(100)
	a := newSession(t, l, clk, idA)
	solveAndSubmit(t, a)
	_, err := a.OnClaimRequested(context.Background())
	require.NoError(t, err)

	solveAndSubmit(t, a)
	solveAndSubmit(t, a)
	clk.Advance(time.Minute)

	_, err = a.OnClaimRequested(context.Background())
	d := rejection(t, err)
	require.Equal(t, eligibility.CooldownActive, d.Reason)
	require.Greater(t, d.Remaining, time.Duration(0))
	require.Equal(t, 4*time.Minute, d.Remaining)
	require.Equal(t, 1, bountiesPaid(l))

	clk.Advance(4 * time.Minute)
	_, err = a.OnClaimRequested(context.Background())
	require.NoError(t, err)
}

func TestClaim_NoFundsRegardlessOfOtherFields(t *testing.T) {
	l, clk := newWorld(0)
	a := newSession(t, l, clk, idA)
	solveAndSubmit(t, a)

	_, err := a.OnClaimRequested(context.Background())
	d := rejection(t, err)
	require.Equal(t, eligibility.NoFunds, d.Reason)
	require.Equal(t, protocol.ErrNoFunds, Code(err))
	require.Zero(t, bountiesPaid(l))
}

func TestClaim_MilestoneNotReached(t *testing.T) {
	l, clk := newWorld(100)
	a := newSession(t, l, clk, idA)
	solveAndSubmit(t, a)
	_, err := a.OnClaimRequested(context.Background())
	require.NoError(t, err)

	solveAndSubmit(t, a)
	clk.Advance(10 * time.Minute)
	_, err = a.OnClaimRequested(context.Background())
	d := rejection(t, err)
	require.Equal(t, eligibility.MilestoneNotReached, d.Reason)
	require.Equal(t, uint8(3), d.Milestone)
}

func TestClaim_InFlightGuardRejectsSecondCall(t *testing.T) {
	ctx := context.Background()
	l, clk := newWorld(100)
	sink := &memSink{}
	a := newSession(t, l, clk, idA, sink)
	solveAndSubmit(t, a)

	l.Hold(true)
	first := make(chan error, 1)
	go func() {
		_, err := a.OnClaimRequested(ctx)
		first <- err
	}()
	require.Eventually(t, func() bool { return l.Queued() == 1 }, time.Second, time.Millisecond)
	require.True(t, a.View().Claiming)

	_, err := a.OnClaimRequested(ctx)
	require.ErrorIs(t, err, ErrAlreadyInProgress)
	require.Equal(t, ResultBusy, sink.last().Result)
	require.Equal(t, 1, l.Queued(), "no second mutation")

	require.Equal(t, 1, l.Mine())
	require.NoError(t, <-first)
	require.False(t, a.View().Claiming)
	require.Equal(t, 1, bountiesPaid(l))
}

func TestSolve_InFlightGuard(t *testing.T) {
	ctx := context.Background()
	l, clk := newWorld(100)
	a := newSession(t, l, clk, idA)
	solve(t, a)

	l.Hold(true)
	first := make(chan error, 1)
	go func() {
		_, err := a.OnPuzzleSolved(ctx)
		first <- err
	}()
	require.Eventually(t, func() bool { return l.Queued() == 1 }, time.Second, time.Millisecond)

	_, err := a.OnPuzzleSolved(ctx)
	require.ErrorIs(t, err, ErrAlreadyInProgress)

	l.Mine()
	require.NoError(t, <-first)
	require.Equal(t, 2, a.Level())
}

func TestWaitIgnoresCallerCancellation(t *testing.T) {
	l, clk := newWorld(100)
	a := newSession(t, l, clk, idA)
	solve(t, a)

	l.Hold(true)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := a.OnPuzzleSolved(ctx)
		done <- err
	}()
	require.Eventually(t, func() bool { return l.Queued() == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		t.Fatalf("flow returned before confirmation: %v", err)
	case <-time.After(20 * time.Millisecond):
	}
	l.Mine()
	err := <-done
	// The mutation confirmed; only the follow-up refresh sees the cancelled ctx.
	var sr *StaleRefresh
	require.ErrorAs(t, err, &sr)
	require.Equal(t, 2, a.Level())
}

func TestFullGame_SevenSolvedFourClaimed(t *testing.T) {
	ctx := context.Background()
	l, clk := newWorld(100)
	a := newSession(t, l, clk, idA)

	for i := 1; i <= 7; i++ {
		res := solveAndSubmit(t, a)
		if i == 1 || i == 3 || i == 5 || i == 7 {
			clk.Advance(6 * time.Minute)
			_, err := a.OnClaimRequested(ctx)
			require.NoError(t, err, "claim after puzzle %d", i)
		}
		if i < 7 {
			require.Equal(t, i+1, res.Level)
		} else {
			require.True(t, res.Finished)
		}
	}

	snap, ok := a.Snapshot()
	require.True(t, ok)
	require.Equal(t, uint8(7), snap.PuzzlesCompleted)
	require.Equal(t, uint8(4), snap.RewardsClaimed)
	require.True(t, snap.HasFinishedGame)
	require.True(t, a.Finished())
	require.Equal(t, 4, bountiesPaid(l))

	_, err := a.OnPuzzleSolved(ctx)
	require.ErrorIs(t, err, ErrGameFinished)
	require.ErrorIs(t, a.Reshuffle(), ErrGameFinished)

	// A fully claimed cache short-circuits before any ledger read.
	for _, q := range []string{ledger.QueryCompleted, ledger.QueryBalance, ledger.QueryLastUser} {
		l.FailRead(q, errors.New("should not be read"))
	}
	_, err = a.OnClaimRequested(ctx)
	require.ErrorIs(t, err, ErrAllClaimed)

	// A fresh session for the same identity lands on the finished state.
	for _, q := range []string{ledger.QueryCompleted, ledger.QueryBalance, ledger.QueryLastUser} {
		l.FailRead(q, nil)
	}
	b := newSession(t, l, clk, idA)
	require.True(t, b.Finished())
	require.Equal(t, 7, b.Level())
}

func TestFund(t *testing.T) {
	ctx := context.Background()
	l, clk := newWorld(0)
	a := newSession(t, l, clk, idA)

	_, err := a.Fund(ctx, uint256.Int{})
	require.ErrorIs(t, err, ErrZeroAmount)
	require.Zero(t, l.BlockNumber())

	_, err = a.Fund(ctx, *uint256.NewInt(50))
	require.NoError(t, err)
	snap, _ := a.Snapshot()
	require.Equal(t, "50", snap.ContractBalance.Dec())

	solveAndSubmit(t, a)
	_, err = a.OnClaimRequested(ctx)
	require.NoError(t, err)
}

func TestFund_ConfirmedWithFailedRefresh(t *testing.T) {
	l, clk := newWorld(0)
	sink := &memSink{}
	a := newSession(t, l, clk, idA, sink)

	l.FailRead(ledger.QueryBalance, errors.New("timeout"))
	rc, err := a.Fund(context.Background(), *uint256.NewInt(25))
	var sr *StaleRefresh
	require.ErrorAs(t, err, &sr)
	require.NotEmpty(t, rc.TxHash)
	require.Equal(t, rc.TxHash, sr.TxHash)
	require.Equal(t, ResultOKStale, sink.last().Result)
	require.False(t, a.View().Funding)

	l.FailRead(ledger.QueryBalance, nil)
	snap, err := a.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "25", snap.ContractBalance.Dec())
}

func TestLoad_PlacesPlayerOnLedgerLevel(t *testing.T) {
	ctx := context.Background()
	l, clk := newWorld(100)
	c := l.Client(idA)
	for i := 0; i < 3; i++ {
		p, err := c.SubmitCompletion(ctx)
		require.NoError(t, err)
		_, err = p.Wait(ctx)
		require.NoError(t, err)
	}

	a := newSession(t, l, clk, idA)
	v := a.View()
	require.Equal(t, 4, v.Level)
	require.Equal(t, 4, v.Grid.Size)
	require.True(t, v.Loaded)
}

func TestLoad_ReadFailureKeepsState(t *testing.T) {
	l, clk := newWorld(100)
	a := newSession(t, l, clk, idA)
	l.FailRead(ledger.QueryNextMilestone, errors.New("timeout"))

	_, err := a.Load(context.Background())
	var rf *ReadFailure
	require.ErrorAs(t, err, &rf)
	var re *ledger.ReadError
	require.ErrorAs(t, err, &re)
	require.Equal(t, ledger.QueryNextMilestone, re.Query)
	require.Equal(t, 1, a.Level())
}

func TestSetIdentity_ReloadsForNewAccount(t *testing.T) {
	ctx := context.Background()
	l, clk := newWorld(100)
	a := newSession(t, l, clk, idA)
	solveAndSubmit(t, a)
	require.Equal(t, 2, a.Level())

	snap, err := a.SetIdentity(ctx, idB, l.Client(idB))
	require.NoError(t, err)
	require.Equal(t, idB, snap.Identity)
	require.Zero(t, snap.PuzzlesCompleted)
	require.Equal(t, 1, a.Level())
	require.Equal(t, idB, a.Identity())
}

func TestSetIdentity_RejectedWhileFlowInFlight(t *testing.T) {
	ctx := context.Background()
	l, clk := newWorld(100)
	a := newSession(t, l, clk, idA)
	solveAndSubmit(t, a)

	l.Hold(true)
	done := make(chan error, 1)
	go func() {
		_, err := a.OnClaimRequested(ctx)
		done <- err
	}()
	require.Eventually(t, func() bool { return l.Queued() == 1 }, time.Second, time.Millisecond)

	_, err := a.SetIdentity(ctx, idB, l.Client(idB))
	require.ErrorIs(t, err, ErrAlreadyInProgress)
	require.Equal(t, idA, a.Identity())
	require.True(t, a.View().Claiming, "a refused switch leaves the running flow's guard alone")

	l.Mine()
	require.NoError(t, <-done)
	_, err = a.SetIdentity(ctx, idB, l.Client(idB))
	require.NoError(t, err)
	require.Equal(t, idB, a.Identity())
}

// gatedClient stalls progress reads until release is closed.
type gatedClient struct {
	ledger.Client
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedClient) CompletedCount(ctx context.Context, id string) (uint8, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return g.Client.CompletedCount(ctx, id)
}

func TestSetIdentity_BlocksFlowsUntilSwitched(t *testing.T) {
	ctx := context.Background()
	l, clk := newWorld(100)
	a := newSession(t, l, clk, idA)
	gc := &gatedClient{Client: l.Client(idB), entered: make(chan struct{}), release: make(chan struct{})}

	done := make(chan error, 1)
	go func() {
		_, err := a.SetIdentity(ctx, idB, gc)
		done <- err
	}()
	<-gc.entered

	_, err := a.OnClaimRequested(ctx)
	require.ErrorIs(t, err, ErrAlreadyInProgress)
	_, err = a.Fund(ctx, *uint256.NewInt(1))
	require.ErrorIs(t, err, ErrAlreadyInProgress)
	_, err = a.OnPuzzleSolved(ctx)
	require.ErrorIs(t, err, ErrAlreadyInProgress)

	close(gc.release)
	require.NoError(t, <-done)
	v := a.View()
	require.False(t, v.Submitting || v.Claiming || v.Funding)
	require.Equal(t, idB, v.Identity)
	require.Zero(t, l.BlockNumber(), "no mutation reached the ledger")
}

func TestReshuffle_NewPuzzleSameLevel(t *testing.T) {
	l, clk := newWorld(100)
	a := newSession(t, l, clk, idA)
	solve(t, a)
	require.NoError(t, a.Reshuffle())
	v := a.View()
	require.False(t, v.Solved)
	require.Zero(t, v.Moves)
	require.Equal(t, 1, v.Level)
}

func TestMove_IllegalIgnored(t *testing.T) {
	l, clk := newWorld(100)
	a := newSession(t, l, clk, idA)
	before := a.View()

	far := -1
	for i := range before.Grid.Tiles {
		if i != before.Grid.Empty && !before.Grid.IsLegal(i) {
			far = i
			break
		}
	}
	require.GreaterOrEqual(t, far, 0)
	moved, solved := a.Move(far)
	require.False(t, moved)
	require.False(t, solved)
	require.Equal(t, before.Grid.Tiles, a.View().Grid.Tiles)
}

func TestWriteFailure_UserMessage(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{ledger.Reverted(ledger.OpPayoutLast, "0x1", ledger.ReasonInsufficientBalance), "insufficient balance"},
		{&ledger.WriteError{Op: ledger.OpPayoutLast, Err: ledger.ErrWrongNetwork}, "wrong network"},
		{ledger.Reverted(ledger.OpPayoutLast, "0x1", ledger.ReasonCooldown), ledger.ReasonCooldown},
		{&ledger.WriteError{Op: ledger.OpPayoutLast, Err: errors.New("eof")}, "transaction failed"},
	}
	for _, c := range cases {
		wf := &WriteFailure{Op: ledger.OpPayoutLast, Err: c.err}
		require.Contains(t, wf.UserMessage(), c.want)
	}
	require.Equal(t, protocol.ErrWrongNetwork, Code(&WriteFailure{Err: &ledger.WriteError{Err: ledger.ErrWrongNetwork}}))
}
