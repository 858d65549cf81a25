// Package hydro implements the hydrological stages of watershed
// delineation over a DEM:
//
//  1. [Breach] removes closed depressions so that every valid cell drains
//     to the edge of the grid.
//  2. [FlowDirections] assigns each cell its D8 steepest-descent neighbour.
//  3. [FlowAccumulation] counts the cells draining through each cell.
//  4. [SnapPourPoint] moves a user-picked outlet onto the strongest nearby
//     drainage channel.
//  5. [Delineate] collects every cell upstream of the outlet into a [Mask].
//
// All stages are single-threaded and deterministic: scans run in row-major
// order and neighbours are visited in the fixed order N, NE, E, SE, S, SW,
// W, NW, so identical input always yields bit-identical output.
//
// Grids are addressed by flat row-major index (row*width + col). Traversals
// use explicit queues over these indices, never recursion, so stack depth
// does not grow with the grid.
package hydro
