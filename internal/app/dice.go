package app

import (
	"math/rand"
	"sync"
)

const DieFaces = 6

// Roll describes one die throw and the cells walked through.
type Roll struct {
	Value int   `json:"value"`
	From  int   `json:"from"`
	To    int   `json:"to"`
	Path  []int `json:"path"`
	// Finished is set when the roll landed on the terminal cell.
	Finished bool `json:"finished"`
}

// Dice draws uniform values in [1, DieFaces] from a seedable source.
type Dice struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewDice(rng *rand.Rand) *Dice {
	return &Dice{rng: rng}
}

func (d *Dice) Throw() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rng.Intn(DieFaces) + 1
}

// walk lists every cell entered between from (exclusive) and to (inclusive).
func walk(from, to int) []int {
	path := make([]int, 0, to-from)
	for cell := from + 1; cell <= to; cell++ {
		path = append(path, cell)
	}
	return path
}
