package progress

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/holiman/uint256"

	"slidebounty.ai/internal/ledger"
	"slidebounty.ai/internal/ledger/memledger"
)

func seeded(t *testing.T, completions int) (*memledger.Ledger, *memledger.Client) {
	t.Helper()
	l := memledger.New(memledger.Config{
		Bounty:         *uint256.NewInt(7),
		InitialBalance: *uint256.NewInt(70),
	})
	c := l.Client("0xAbc")
	for i := 0; i < completions; i++ {
		p, err := c.SubmitCompletion(context.Background())
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		if _, err := p.Wait(context.Background()); err != nil {
			t.Fatalf("wait: %v", err)
		}
	}
	return l, c
}

func TestRefresh_AssemblesSnapshot(t *testing.T) {
	_, c := seeded(t, 3)
	st := NewState(time.Second)
	if _, ok := st.Snapshot(); ok {
		t.Fatalf("fresh state reported loaded")
	}

	snap, err := st.Refresh(context.Background(), c, "0xabc")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if snap.PuzzlesCompleted != 3 || snap.RewardsClaimed != 0 {
		t.Fatalf("counts=%d/%d", snap.PuzzlesCompleted, snap.RewardsClaimed)
	}
	if snap.BountyAmount.Dec() != "7" || snap.ContractBalance.Dec() != "70" {
		t.Fatalf("amounts bounty=%s balance=%s", snap.BountyAmount.Dec(), snap.ContractBalance.Dec())
	}
	if snap.NextMilestone != (Milestone{Number: 1, Available: true}) {
		t.Fatalf("next milestone=%+v", snap.NextMilestone)
	}
	if snap.HasFinishedGame {
		t.Fatalf("finished too early")
	}
	if snap.CurrentLevel() != 4 {
		t.Fatalf("level=%d want 4", snap.CurrentLevel())
	}
}

func TestRefresh_PartialFailureKeepsPrevious(t *testing.T) {
	l, c := seeded(t, 1)
	st := NewState(0)
	if _, err := st.Refresh(context.Background(), c, "0xabc"); err != nil {
		t.Fatalf("first refresh: %v", err)
	}

	p, _ := c.SubmitCompletion(context.Background())
	_, _ = p.Wait(context.Background())
	l.FailRead(ledger.QueryFinished, errors.New("timeout"))

	failed, err := st.Refresh(context.Background(), c, "0xabc")
	if failed.PuzzlesCompleted != 1 || failed.Identity != "0xabc" {
		t.Fatalf("failed refresh returned %+v, want the retained snapshot", failed)
	}
	var re *ledger.ReadError
	if !errors.As(err, &re) || re.Query != ledger.QueryFinished {
		t.Fatalf("err=%v want ReadError on %s", err, ledger.QueryFinished)
	}
	snap, ok := st.Snapshot()
	if !ok || snap.PuzzlesCompleted != 1 {
		t.Fatalf("previous snapshot not retained: ok=%v completed=%d", ok, snap.PuzzlesCompleted)
	}
}

type stallingReader struct {
	ledger.Reader
}

func (s stallingReader) Balance(ctx context.Context) (uint256.Int, error) {
	<-ctx.Done()
	return uint256.Int{}, ctx.Err()
}

func TestRead_TimeoutFailsWhole(t *testing.T) {
	_, c := seeded(t, 0)
	_, err := Read(context.Background(), stallingReader{Reader: c}, "0xabc", 20*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err=%v want deadline exceeded", err)
	}
}

func TestSnapshot_Milestones(t *testing.T) {
	snap := Snapshot{
		PuzzlesCompleted: 5,
		RewardsClaimed:   1,
		NextMilestone:    Milestone{Number: 3, Available: true},
	}
	want := []MilestoneStatus{MilestoneClaimed, MilestoneClaimable, MilestoneReached, MilestoneLocked}
	got := snap.Milestones()
	for i := range want {
		if got[i].Status != want[i] {
			t.Fatalf("milestone %d status=%s want %s", got[i].Number, got[i].Status, want[i])
		}
	}
	if snap.FullyClaimed() {
		t.Fatalf("1/4 claimed reported fully claimed")
	}
	if !(Snapshot{RewardsClaimed: 4}).FullyClaimed() {
		t.Fatalf("4/4 should be fully claimed")
	}
}
