// Package progress holds the session's view of ledger-reported progress.
package progress

import (
	"github.com/holiman/uint256"

	"slidebounty.ai/internal/level"
)

type Milestone struct {
	Number    uint8 `json:"milestone"`
	Available bool  `json:"available"`
}

// Snapshot is one consistent read of every progress field for an identity.
type Snapshot struct {
	Identity         string      `json:"identity"`
	PuzzlesCompleted uint8       `json:"puzzles_completed"`
	RewardsClaimed   uint8       `json:"rewards_claimed"`
	BountyAmount     uint256.Int `json:"-"`
	ContractBalance  uint256.Int `json:"-"`
	NextMilestone    Milestone   `json:"next_milestone"`
	HasFinishedGame  bool        `json:"has_finished_game"`
}

// CurrentLevel is min(completed+1, 7).
func (s Snapshot) CurrentLevel() int { return level.FromCompleted(s.PuzzlesCompleted) }

// FullyClaimed reports that every milestone bounty has been paid.
func (s Snapshot) FullyClaimed() bool { return int(s.RewardsClaimed) >= level.MilestoneCount() }

type MilestoneStatus string

const (
	MilestoneLocked    MilestoneStatus = "LOCKED"
	MilestoneReached   MilestoneStatus = "REACHED"
	MilestoneClaimable MilestoneStatus = "CLAIMABLE"
	MilestoneClaimed   MilestoneStatus = "CLAIMED"
)

type MilestoneView struct {
	Number uint8           `json:"milestone"`
	Status MilestoneStatus `json:"status"`
}

// Milestones lays out the reward track. Only the ledger's next milestone can
// be claimable, and only when the ledger says it is available.
func (s Snapshot) Milestones() []MilestoneView {
	out := make([]MilestoneView, 0, level.MilestoneCount())
	for i, m := range level.Milestones {
		reached := s.PuzzlesCompleted >= m
		claimed := int(s.RewardsClaimed) > i
		st := MilestoneLocked
		switch {
		case claimed:
			st = MilestoneClaimed
		case reached && s.NextMilestone.Available && s.NextMilestone.Number == m:
			st = MilestoneClaimable
		case reached:
			st = MilestoneReached
		}
		out = append(out, MilestoneView{Number: m, Status: st})
	}
	return out
}
