// Package eligibility decides whether a reward claim may be submitted.
package eligibility

import (
	"fmt"
	"time"

	"slidebounty.ai/internal/ledger"
	"slidebounty.ai/internal/progress"
	"slidebounty.ai/internal/protocol"
)

// ClaimContext is read fresh from the ledger right before a claim.
type ClaimContext struct {
	Identity       string
	LastUser       string
	LastPayoutTime time.Time
	PayoutCooldown time.Duration
}

type Reason string

const (
	Eligible            Reason = ""
	NoFunds             Reason = "NO_FUNDS"
	MilestoneNotReached Reason = "MILESTONE_NOT_REACHED"
	NotLastSubmitter    Reason = "NOT_LAST_SUBMITTER"
	CooldownActive      Reason = "COOLDOWN_ACTIVE"
)

// Code maps a rejection to its wire error code.
func (r Reason) Code() string {
	switch r {
	case NoFunds:
		return protocol.ErrNoFunds
	case MilestoneNotReached:
		return protocol.ErrNotEligible
	case NotLastSubmitter:
		return protocol.ErrNotLastUser
	case CooldownActive:
		return protocol.ErrCooldown
	}
	return ""
}

type Decision struct {
	Reason Reason
	// Milestone is the pending milestone for MilestoneNotReached.
	Milestone uint8
	// Remaining is the wait left for CooldownActive.
	Remaining time.Duration
}

func (d Decision) Eligible() bool { return d.Reason == Eligible }

func (d Decision) Message() string {
	switch d.Reason {
	case Eligible:
		return "eligible"
	case NoFunds:
		return "contract has no balance; it needs to be funded"
	case MilestoneNotReached:
		return fmt.Sprintf("not eligible to claim yet; complete milestone %d first", d.Milestone)
	case NotLastSubmitter:
		return "only the most recent player to complete a puzzle can claim"
	case CooldownActive:
		return fmt.Sprintf("cooldown active; wait %d more minute(s)", int(d.Remaining/time.Minute))
	}
	return string(d.Reason)
}

// Precheck applies the rules that need only the progress snapshot.
func Precheck(s progress.Snapshot) Decision {
	if s.ContractBalance.IsZero() {
		return Decision{Reason: NoFunds}
	}
	if !s.NextMilestone.Available {
		return Decision{Reason: MilestoneNotReached, Milestone: s.NextMilestone.Number}
	}
	return Decision{}
}

// Evaluate applies every claim rule in order; the first failure wins.
func Evaluate(c ClaimContext, s progress.Snapshot, now time.Time) Decision {
	if d := Precheck(s); !d.Eligible() {
		return d
	}
	if !ledger.SameIdentity(c.LastUser, c.Identity) {
		return Decision{Reason: NotLastSubmitter}
	}
	if elapsed := now.Sub(c.LastPayoutTime); elapsed < c.PayoutCooldown {
		return Decision{Reason: CooldownActive, Remaining: c.PayoutCooldown - elapsed}
	}
	return Decision{}
}
