package puzzle

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"
)

func TestGenerate_PermutationAndSolvable(t *testing.T) {
	for _, size := range []int{3, 4, 5} {
		for seed := int64(1); seed <= 20; seed++ {
			g, err := Generate(rand.New(rand.NewSource(seed)), size, DefaultShuffleIterations)
			if err != nil {
				t.Fatalf("size=%d seed=%d: %v", size, seed, err)
			}
			if err := g.Valid(); err != nil {
				t.Fatalf("size=%d seed=%d: invalid grid: %v", size, seed, err)
			}
			if !Solvable(g) {
				t.Fatalf("size=%d seed=%d: parity says unsolvable: %v", size, seed, g.Tiles)
			}
		}
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	a, err := Generate(rand.New(rand.NewSource(42)), 4, 100)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, err := Generate(rand.New(rand.NewSource(42)), 4, 100)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("same seed produced different grids:\n%v\n%v", a.Tiles, b.Tiles)
	}
}

func TestGenerate_BadSize(t *testing.T) {
	if _, err := Generate(rand.New(rand.NewSource(1)), 1, 10); !errors.Is(err, ErrBadSize) {
		t.Fatalf("err=%v want ErrBadSize", err)
	}
}

// bfsSolvable independently verifies 3x3 grids by exhaustive search.
func bfsSolvable(t *testing.T, g Grid) bool {
	t.Helper()
	key := func(tiles []int) string {
		b := make([]byte, len(tiles))
		for i, v := range tiles {
			b[i] = byte(v)
		}
		return string(b)
	}
	goal, _ := Solved(g.Size)
	goalKey := key(goal.Tiles)
	seen := map[string]bool{key(g.Tiles): true}
	queue := []Grid{g.Clone()}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if key(cur.Tiles) == goalKey {
			return true
		}
		for _, m := range cur.LegalMoves() {
			next := cur.Clone()
			if err := next.Apply(m); err != nil {
				t.Fatalf("apply legal move: %v", err)
			}
			k := key(next.Tiles)
			if seen[k] {
				continue
			}
			seen[k] = true
			queue = append(queue, next)
		}
	}
	return false
}

func TestGenerate_3x3ReachesSolvedBySearch(t *testing.T) {
	for seed := int64(1); seed <= 3; seed++ {
		g, err := Generate(rand.New(rand.NewSource(seed)), 3, DefaultShuffleIterations)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if !bfsSolvable(t, g) {
			t.Fatalf("seed=%d: generated grid not solvable: %v", seed, g.Tiles)
		}
	}

	g, _ := Solved(3)
	g.Tiles[0], g.Tiles[1] = g.Tiles[1], g.Tiles[0]
	if Solvable(g) {
		t.Fatalf("single tile transposition should be unsolvable")
	}
	if bfsSolvable(t, g) {
		t.Fatalf("search found a path for an odd permutation")
	}
}

func TestLegalMoves_CountsOn4x4(t *testing.T) {
	corners := map[int]bool{0: true, 3: true, 12: true, 15: true}
	interior := map[int]bool{5: true, 6: true, 9: true, 10: true}
	for pos := 0; pos < 16; pos++ {
		want := 3
		switch {
		case corners[pos]:
			want = 2
		case interior[pos]:
			want = 4
		}
		got := LegalMoves(4, pos)
		if len(got) != want {
			t.Fatalf("pos=%d moves=%v want %d", pos, got, want)
		}
		for _, m := range got {
			dr := m/4 - pos/4
			dc := m%4 - pos%4
			if dr*dr+dc*dc != 1 {
				t.Fatalf("pos=%d move %d is not an orthogonal neighbour", pos, m)
			}
		}
	}
}

func TestApply_Involution(t *testing.T) {
	g, err := Generate(rand.New(rand.NewSource(7)), 5, 60)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	for _, target := range g.LegalMoves() {
		cp := g.Clone()
		prevEmpty := cp.Empty
		if err := cp.Apply(target); err != nil {
			t.Fatalf("apply %d: %v", target, err)
		}
		if cp.Empty != target {
			t.Fatalf("empty=%d want %d", cp.Empty, target)
		}
		if err := cp.Apply(prevEmpty); err != nil {
			t.Fatalf("reverse %d: %v", prevEmpty, err)
		}
		if !reflect.DeepEqual(cp, g) {
			t.Fatalf("move %d and reverse did not restore grid", target)
		}
	}
}

func TestApply_IllegalLeavesGrid(t *testing.T) {
	g, _ := Solved(3)
	before := g.Clone()
	for _, target := range []int{-1, 0, 4, 8, 9} {
		if err := g.Apply(target); !errors.Is(err, ErrIllegalMove) {
			t.Fatalf("target=%d err=%v want ErrIllegalMove", target, err)
		}
		if !reflect.DeepEqual(g, before) {
			t.Fatalf("target=%d mutated grid", target)
		}
	}
}

func TestIsSolved_Transpositions(t *testing.T) {
	g, _ := Solved(4)
	if !g.IsSolved() {
		t.Fatalf("identity grid not solved")
	}
	for i := 0; i < 16; i++ {
		for j := i + 1; j < 16; j++ {
			cp := g.Clone()
			cp.Tiles[i], cp.Tiles[j] = cp.Tiles[j], cp.Tiles[i]
			if cp.IsSolved() {
				t.Fatalf("swap(%d,%d) reported solved", i, j)
			}
		}
	}
}

func TestInstance_SolvedIsTerminal(t *testing.T) {
	g, _ := Solved(3)
	// One step away: hole moved left.
	if err := g.Apply(7); err != nil {
		t.Fatalf("setup: %v", err)
	}
	in, err := FromGrid(g)
	if err != nil {
		t.Fatalf("from grid: %v", err)
	}
	if in.Solved() {
		t.Fatalf("fresh instance reported solved")
	}
	if err := in.Move(0); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("far move err=%v", err)
	}
	if in.Moves() != 0 {
		t.Fatalf("illegal move counted")
	}
	if err := in.Move(8); err != nil {
		t.Fatalf("solving move: %v", err)
	}
	if !in.Solved() || in.Moves() != 1 {
		t.Fatalf("solved=%v moves=%d", in.Solved(), in.Moves())
	}
	if err := in.Move(7); !errors.Is(err, ErrSolved) {
		t.Fatalf("move after solve err=%v want ErrSolved", err)
	}
}

func TestFromGrid_RejectsUnsolvable(t *testing.T) {
	g, _ := Solved(4)
	g.Tiles[0], g.Tiles[1] = g.Tiles[1], g.Tiles[0]
	if _, err := FromGrid(g); !errors.Is(err, ErrUnsolvable) {
		t.Fatalf("err=%v want ErrUnsolvable", err)
	}
}
