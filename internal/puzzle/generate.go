package puzzle

import "math/rand"

const DefaultShuffleIterations = 100

// Generate walks iterations random legal moves away from the solved grid.
// The result is reachable from solved by construction; the parity check only
// guards against a broken walk.
func Generate(rng *rand.Rand, size, iterations int) (Grid, error) {
	g, err := Solved(size)
	if err != nil {
		return Grid{}, err
	}
	if iterations < 0 {
		iterations = 0
	}
	for i := 0; i < iterations; i++ {
		moves := g.LegalMoves()
		if err := g.Apply(moves[rng.Intn(len(moves))]); err != nil {
			return Grid{}, err
		}
	}
	if !Solvable(g) {
		return Grid{}, ErrUnsolvable
	}
	return g, nil
}
