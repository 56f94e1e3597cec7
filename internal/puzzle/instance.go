package puzzle

import "math/rand"

// Instance is one playable puzzle. It moves from shuffled to solved and stays
// solved; the move counter is informational.
type Instance struct {
	grid   Grid
	moves  int
	solved bool
}

func NewInstance(rng *rand.Rand, size, iterations int) (*Instance, error) {
	g, err := Generate(rng, size, iterations)
	if err != nil {
		return nil, err
	}
	return &Instance{grid: g}, nil
}

// FromGrid wraps an existing arrangement, e.g. for tests or a resumed view.
func FromGrid(g Grid) (*Instance, error) {
	if err := g.Valid(); err != nil {
		return nil, err
	}
	if !Solvable(g) {
		return nil, ErrUnsolvable
	}
	return &Instance{grid: g.Clone()}, nil
}

// Move applies a click on position target. The instance only reports solved
// after a move lands on the solved arrangement, so a shuffle that happened to
// return home still has to be played.
func (in *Instance) Move(target int) error {
	if in.solved {
		return ErrSolved
	}
	if err := in.grid.Apply(target); err != nil {
		return err
	}
	in.moves++
	if in.grid.IsSolved() {
		in.solved = true
	}
	return nil
}

func (in *Instance) Grid() Grid { return in.grid.Clone() }
func (in *Instance) Moves() int { return in.moves }
func (in *Instance) Solved() bool { return in.solved }
func (in *Instance) Size() int { return in.grid.Size }
