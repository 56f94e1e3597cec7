// Package ledger defines the narrow capability the game core uses to talk to
// the bounty contract. Backends live in subpackages.
package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/holiman/uint256"
)

// Contract method names, used for error context and wire routing.
const (
	QueryCompleted      = "puzzlesCompleted"
	QueryClaimed        = "rewardsClaimedCount"
	QueryBounty         = "bountyAmount"
	QueryBalance        = "getBalance"
	QueryNextMilestone  = "nextRewardMilestone"
	QueryFinished       = "hasFinishedGame"
	QueryLastUser       = "lastUser"
	QueryLastPayoutTime = "lastPayoutTime"
	QueryPayoutCooldown = "payoutCooldown"

	OpPerformSlide = "performSlide"
	OpPayoutLast   = "payoutLast"
	OpFund         = "fund"
)

// Reader is the read-only half. Every call is independent and safe to issue
// concurrently.
type Reader interface {
	CompletedCount(ctx context.Context, identity string) (uint8, error)
	ClaimedCount(ctx context.Context, identity string) (uint8, error)
	BountyAmount(ctx context.Context) (uint256.Int, error)
	Balance(ctx context.Context) (uint256.Int, error)
	NextMilestone(ctx context.Context, identity string) (milestone uint8, available bool, err error)
	Finished(ctx context.Context, identity string) (bool, error)
	LastSubmitter(ctx context.Context) (string, error)
	LastPayoutTime(ctx context.Context) (time.Time, error)
	PayoutCooldown(ctx context.Context) (time.Duration, error)
}

// Writer submits mutations signed by the client's own identity.
type Writer interface {
	SubmitCompletion(ctx context.Context) (Pending, error)
	SubmitClaim(ctx context.Context) (Pending, error)
	Fund(ctx context.Context, amount uint256.Int) (Pending, error)
}

type Client interface {
	Reader
	Writer
}

// Pending is a submitted mutation awaiting network confirmation.
type Pending interface {
	TxHash() string
	// Wait blocks until the mutation is confirmed or fails. A failure is
	// reported as *WriteError.
	Wait(ctx context.Context) (Receipt, error)
}

type Receipt struct {
	TxHash string  `json:"tx_hash"`
	Block  uint64  `json:"block,omitempty"`
	Events []Event `json:"events,omitempty"`
}

// Event is a decoded contract log entry.
type Event struct {
	Name      string `json:"name"`
	User      string `json:"user"`
	Total     uint8  `json:"total,omitempty"`
	Milestone uint8  `json:"milestone,omitempty"`
	Claimed   uint8  `json:"claimed,omitempty"`
	Amount    string `json:"amount,omitempty"`
}

const (
	EventSlidePerformed   = "SlidePerformed"
	EventPuzzleCompleted  = "PuzzleCompleted"
	EventMilestoneReached = "MilestoneReached"
	EventGameCompleted    = "GameCompleted"
	EventBountyPaid       = "BountyPaid"
)

// SameIdentity compares addresses the way wallets do: case-insensitively.
func SameIdentity(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	return strings.EqualFold(a, b)
}

// IsAddress accepts 0x followed by one to forty hex digits.
func IsAddress(s string) bool {
	rest, ok := strings.CutPrefix(s, "0x")
	if !ok || len(rest) == 0 || len(rest) > 40 {
		return false
	}
	for _, r := range rest {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// Resolved returns a Pending that is already settled.
func Resolved(rc Receipt, err error) Pending {
	return resolved{rc: rc, err: err}
}

type resolved struct {
	rc  Receipt
	err error
}

func (r resolved) TxHash() string { return r.rc.TxHash }

func (r resolved) Wait(ctx context.Context) (Receipt, error) {
	if r.err != nil {
		return Receipt{}, r.err
	}
	return r.rc, nil
}
