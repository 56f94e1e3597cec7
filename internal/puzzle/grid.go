// Package puzzle implements the sliding-tile engine: solvable shuffles,
// move legality and completion detection on square grids.
package puzzle

import (
	"errors"
	"fmt"
)

var (
	ErrIllegalMove = errors.New("puzzle: illegal move")
	ErrSolved      = errors.New("puzzle: already solved")
	ErrUnsolvable  = errors.New("puzzle: generated grid is not solvable")
	ErrBadSize     = errors.New("puzzle: grid size must be at least 2")
)

// Grid is a square permutation of tile ids 0..Size²-1. Tile Size²-1 is the
// empty slot and Empty records where it currently sits.
type Grid struct {
	Size  int   `json:"size"`
	Tiles []int `json:"tiles"`
	Empty int   `json:"empty"`
}

// Solved returns the identity arrangement for size.
func Solved(size int) (Grid, error) {
	if size < 2 {
		return Grid{}, ErrBadSize
	}
	n := size * size
	tiles := make([]int, n)
	for i := range tiles {
		tiles[i] = i
	}
	return Grid{Size: size, Tiles: tiles, Empty: n - 1}, nil
}

func (g Grid) Clone() Grid {
	out := g
	out.Tiles = append([]int(nil), g.Tiles...)
	return out
}

// EmptyTile is the id that represents the hole.
func (g Grid) EmptyTile() int { return g.Size*g.Size - 1 }

func (g Grid) IsSolved() bool {
	for i, t := range g.Tiles {
		if t != i {
			return false
		}
	}
	return true
}

// LegalMoves returns the in-bounds orthogonal neighbours of empty, ordered
// up, down, left, right.
func LegalMoves(size, empty int) []int {
	row, col := empty/size, empty%size
	out := make([]int, 0, 4)
	if row > 0 {
		out = append(out, empty-size)
	}
	if row < size-1 {
		out = append(out, empty+size)
	}
	if col > 0 {
		out = append(out, empty-1)
	}
	if col < size-1 {
		out = append(out, empty+1)
	}
	return out
}

func (g Grid) LegalMoves() []int { return LegalMoves(g.Size, g.Empty) }

// IsLegal reports whether target is orthogonally adjacent to the empty slot.
func (g Grid) IsLegal(target int) bool {
	if target < 0 || target >= len(g.Tiles) || target == g.Empty {
		return false
	}
	er, ec := g.Empty/g.Size, g.Empty%g.Size
	tr, tc := target/g.Size, target%g.Size
	dr, dc := er-tr, ec-tc
	return (dr == 0 && (dc == 1 || dc == -1)) || (dc == 0 && (dr == 1 || dr == -1))
}

// Apply slides the tile at target into the empty slot. An illegal target
// leaves the grid untouched.
func (g *Grid) Apply(target int) error {
	if !g.IsLegal(target) {
		return fmt.Errorf("%w: empty=%d target=%d", ErrIllegalMove, g.Empty, target)
	}
	g.Tiles[g.Empty], g.Tiles[target] = g.Tiles[target], g.Tiles[g.Empty]
	g.Empty = target
	return nil
}

// Valid checks the permutation invariant and that Empty points at the hole.
func (g Grid) Valid() error {
	n := g.Size * g.Size
	if g.Size < 2 {
		return ErrBadSize
	}
	if len(g.Tiles) != n {
		return fmt.Errorf("puzzle: %d tiles for size %d", len(g.Tiles), g.Size)
	}
	seen := make([]bool, n)
	for i, t := range g.Tiles {
		if t < 0 || t >= n || seen[t] {
			return fmt.Errorf("puzzle: tile %d at %d breaks permutation", t, i)
		}
		seen[t] = true
	}
	if g.Empty < 0 || g.Empty >= n || g.Tiles[g.Empty] != n-1 {
		return fmt.Errorf("puzzle: empty index %d does not hold the hole", g.Empty)
	}
	return nil
}

// Solvable reports whether g can reach the solved arrangement by legal moves.
// Every move is one transposition and shifts the hole by one cell, so the
// permutation parity must equal the parity of the hole's distance from home.
func Solvable(g Grid) bool {
	if g.Valid() != nil {
		return false
	}
	n := len(g.Tiles)
	visited := make([]bool, n)
	cycles := 0
	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		cycles++
		for j := i; !visited[j]; j = g.Tiles[j] {
			visited[j] = true
		}
	}
	permParity := (n - cycles) % 2

	home := n - 1
	dist := abs(g.Empty/g.Size-home/g.Size) + abs(g.Empty%g.Size-home%g.Size)
	return permParity == dist%2
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
