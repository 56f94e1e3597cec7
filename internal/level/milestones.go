package level

// Milestones are the completion counts at which a bounty becomes claimable.
// Index k can be claimed once completed >= Milestones[k] and k rewards have
// already been paid.
var Milestones = [...]uint8{1, 3, 5, 7}

func MilestoneCount() int { return len(Milestones) }

// NextMilestone mirrors the contract's nextRewardMilestone view. Once every
// milestone is claimed it reports (0, false).
func NextMilestone(completed, claimed uint8) (milestone uint8, available bool) {
	if int(claimed) >= len(Milestones) {
		return 0, false
	}
	m := Milestones[claimed]
	return m, completed >= m
}

// MilestoneIndex returns the 0-based index of milestone m, or -1.
func MilestoneIndex(m uint8) int {
	for i, v := range Milestones {
		if v == m {
			return i
		}
	}
	return -1
}

// ReachedMilestones counts milestones at or below completed.
func ReachedMilestones(completed uint8) int {
	n := 0
	for _, m := range Milestones {
		if completed >= m {
			n++
		}
	}
	return n
}
