// Package level maps campaign levels to grid sizes and holds the milestone
// table shared with the ledger contract.
package level

const (
	First = 1
	Last  = 7
)

// Difficulty labels shown next to the level number.
const (
	Beginner     = "Beginner"
	Intermediate = "Intermediate"
	Advanced     = "Advanced"
)

// GridSize returns 3 for levels 1-2, 4 for levels 3-4 and 5 from level 5 on.
func GridSize(level int) int {
	switch {
	case level <= 2:
		return 3
	case level <= 4:
		return 4
	default:
		return 5
	}
}

func Difficulty(level int) string {
	switch GridSize(level) {
	case 3:
		return Beginner
	case 4:
		return Intermediate
	default:
		return Advanced
	}
}

func IsLast(level int) bool { return level == Last }

// FromCompleted derives the level a player is on from the ledger's
// completion count.
func FromCompleted(completed uint8) int {
	lv := int(completed) + 1
	if lv > Last {
		return Last
	}
	return lv
}
