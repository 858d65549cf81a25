package hydro

import (
	"container/heap"
	"math"
	"strconv"

	"github.com/matzehuels/reliefkit/pkg/errors"
	"github.com/matzehuels/reliefkit/pkg/raster"
)

// BreachOptions configures [Breach].
type BreachOptions struct {
	// Epsilon is the elevation step carved between consecutive cells of a
	// breach path. Zero derives it from the elevation range so that eight
	// significant digits survive.
	Epsilon float64
}

// Breach removes closed depressions from dem by least-cost breaching.
//
// Valid cells on the grid border or next to nodata seed a priority flood
// that visits cells in ascending elevation, each reached cell remembering
// the cell it was reached from. Every interior pit is first raised to just
// below its lowest neighbour; when the flood reaches it, the path back
// towards the flood source is lowered step by step until a cell lower than
// the carved profile, or the edge, is met. Afterwards every valid cell has
// a non-increasing path to the edge of the data.
//
// The input is not modified. A DEM without any valid cell fails with
// [errors.ErrCodeConditioning].
func Breach(dem *raster.Raster, opts BreachOptions) (*raster.Raster, error) {
	lo, hi, ok := dem.Range()
	if !ok {
		return nil, errors.New(errors.ErrCodeConditioning, "DEM has no valid cells to condition")
	}
	eps := opts.Epsilon
	if eps <= 0 {
		eps = breachEpsilon(lo, hi)
	}

	w, h := dem.Width, dem.Height
	out := dem.Clone()
	out.Path = ""
	n := len(out.Data)

	pits := make([]bool, n)
	queued := make([]bool, n)
	// back[i] is the flat index cell i was reached from, or -1 for seeds.
	back := make([]int, n)
	q := &floodQueue{}

	for i := 0; i < n; i++ {
		back[i] = -1
		if !dem.ValidIndex(i) {
			continue
		}
		row, col := i/w, i%w
		z := dem.Data[i]
		edge, pit := false, true
		lowest := math.Inf(1)
		for k := 0; k < 8; k++ {
			r, c := row+dRow[k], col+dCol[k]
			if !dem.Valid(r, c) {
				edge = true
				continue
			}
			zn := dem.At(r, c)
			if zn < z {
				pit = false
			}
			lowest = math.Min(lowest, zn)
		}
		if edge {
			q.push(i, z)
			queued[i] = true
			continue
		}
		if pit {
			pits[i] = true
			out.Data[i] = lowest - eps
		}
	}

	for q.Len() > 0 {
		cur := q.pop()
		row, col := cur/w, cur%w
		for k := 0; k < 8; k++ {
			r, c := row+dRow[k], col+dCol[k]
			if r < 0 || r >= h || c < 0 || c >= w {
				continue
			}
			j := r*w + c
			if queued[j] || !dem.ValidIndex(j) {
				continue
			}
			back[j] = cur
			zn := out.Data[j]
			if pits[j] {
				carve(out, back, j, zn, eps)
			}
			q.push(j, zn)
			queued[j] = true
		}
	}
	return out, nil
}

// carve lowers the back-link path starting at pit so that it descends by
// eps per step, stopping at the first cell already at or below the profile.
func carve(out *raster.Raster, back []int, pit int, z, eps float64) {
	for i := back[pit]; i >= 0; i = back[i] {
		z -= eps
		if out.Data[i] <= z {
			return
		}
		out.Data[i] = z
	}
}

// breachEpsilon keeps eight significant digits across the elevation range.
func breachEpsilon(lo, hi float64) float64 {
	digits := len(strconv.Itoa(int(hi - lo)))
	return 10 / math.Pow(10, float64(8-digits))
}

// Pits counts the interior cells of dem with no strictly lower valid
// neighbour. These are the cells [Breach] has to carve out.
func Pits(dem *raster.Raster) int {
	count := 0
	for i := range dem.Data {
		if !dem.ValidIndex(i) {
			continue
		}
		row, col := i/dem.Width, i%dem.Width
		z := dem.Data[i]
		pit := true
		for k := 0; k < 8 && pit; k++ {
			r, c := row+dRow[k], col+dCol[k]
			if !dem.Valid(r, c) {
				pit = false
			} else if dem.At(r, c) < z {
				pit = false
			}
		}
		if pit {
			count++
		}
	}
	return count
}

// floodQueue is a min-heap of cells keyed by elevation, with insertion
// order breaking ties.
type floodQueue struct {
	items []floodItem
	seq   int
}

type floodItem struct {
	index int
	z     float64
	seq   int
}

func (q *floodQueue) Len() int { return len(q.items) }

func (q *floodQueue) Less(a, b int) bool {
	if q.items[a].z != q.items[b].z {
		return q.items[a].z < q.items[b].z
	}
	return q.items[a].seq < q.items[b].seq
}

func (q *floodQueue) Swap(a, b int) { q.items[a], q.items[b] = q.items[b], q.items[a] }

func (q *floodQueue) Push(x any) { q.items = append(q.items, x.(floodItem)) }

func (q *floodQueue) Pop() any {
	last := q.items[len(q.items)-1]
	q.items = q.items[:len(q.items)-1]
	return last
}

func (q *floodQueue) push(i int, z float64) {
	heap.Push(q, floodItem{index: i, z: z, seq: q.seq})
	q.seq++
}

func (q *floodQueue) pop() int {
	return heap.Pop(q).(floodItem).index
}
