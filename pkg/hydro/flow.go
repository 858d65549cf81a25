package hydro

import (
	"github.com/matzehuels/reliefkit/pkg/errors"
	"github.com/matzehuels/reliefkit/pkg/raster"
)

// FlowDirections assigns every cell of dem its D8 direction.
//
// Descent towards a neighbour is (z - zN) / d with d = 1 for orthogonal and
// √2 for diagonal neighbours. The strictly steepest positive descent wins;
// neighbours are visited N, NE, E, SE, S, SW, W, NW and the first maximum
// is kept. A cell without positive descent drains [DirOffGrid] when it
// touches the grid border or a nodata cell and is an interior sink
// ([DirUndefined]) otherwise. Nodata cells are [DirUndefined].
func FlowDirections(dem *raster.Raster) *DirectionGrid {
	g := NewDirectionGrid(dem.Width, dem.Height, dem.Transform)
	for row := 0; row < dem.Height; row++ {
		for col := 0; col < dem.Width; col++ {
			if !dem.Valid(row, col) {
				g.SetValid(row, col, false)
				continue
			}
			g.Set(row, col, steepest(dem, row, col))
		}
	}
	return g
}

func steepest(dem *raster.Raster, row, col int) Direction {
	z := dem.At(row, col)
	best := DirUndefined
	bestDescent := 0.0
	edge := false
	for k := 0; k < 8; k++ {
		r, c := row+dRow[k], col+dCol[k]
		if !dem.Valid(r, c) {
			edge = true
			continue
		}
		descent := (z - dem.At(r, c)) / dist[k]
		if descent > bestDescent {
			best, bestDescent = Direction(k), descent
		}
	}
	if best == DirUndefined && edge {
		return DirOffGrid
	}
	return best
}

// AccumulationGrid holds, per cell, the number of cells draining through
// it, itself included. Nodata cells hold 0.
type AccumulationGrid struct {
	Width     int
	Height    int
	Transform raster.Geotransform
	Counts    []float64
}

// At returns the accumulation at (row, col).
func (a *AccumulationGrid) At(row, col int) float64 { return a.Counts[row*a.Width+col] }

// Max returns the largest accumulation on the grid.
func (a *AccumulationGrid) Max() float64 {
	m := 0.0
	for _, v := range a.Counts {
		m = max(m, v)
	}
	return m
}

// Raster wraps the counts as a raster with nodata 0.
func (a *AccumulationGrid) Raster(crs string) *raster.Raster {
	r := &raster.Raster{
		Width:     a.Width,
		Height:    a.Height,
		Transform: a.Transform,
		CRS:       crs,
		Data:      append([]float64(nil), a.Counts...),
	}
	r.SetNoData(0)
	return r
}

// FlowAccumulation counts the contributing cells of every cell of dirs.
//
// Cells are processed in topological order (Kahn's algorithm): a cell is
// released once all of its upstream neighbours have been, then passes its
// total on downstream. A cycle in dirs leaves cells unreleased and fails
// with [errors.ErrCodeInvalidFlowGraph].
func FlowAccumulation(dirs *DirectionGrid) (*AccumulationGrid, error) {
	n := len(dirs.Dirs)
	acc := &AccumulationGrid{
		Width:     dirs.Width,
		Height:    dirs.Height,
		Transform: dirs.Transform,
		Counts:    make([]float64, n),
	}

	indegree := make([]int32, n)
	for i := 0; i < n; i++ {
		if !dirs.Valid(i) {
			continue
		}
		acc.Counts[i] = 1
		if j, ok := dirs.Downstream(i); ok && dirs.Valid(j) {
			indegree[j]++
		}
	}

	queue := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if dirs.Valid(i) && indegree[i] == 0 {
			queue = append(queue, i)
		}
	}

	processed := 0
	for head := 0; head < len(queue); head++ {
		i := queue[head]
		processed++
		j, ok := dirs.Downstream(i)
		if !ok || !dirs.Valid(j) {
			continue
		}
		acc.Counts[j] += acc.Counts[i]
		indegree[j]--
		if indegree[j] == 0 {
			queue = append(queue, j)
		}
	}

	if valid := dirs.ValidCount(); processed < valid {
		return nil, errors.New(errors.ErrCodeInvalidFlowGraph,
			"flow directions contain a cycle: %d of %d cells could not be ordered", valid-processed, valid)
	}
	return acc, nil
}
