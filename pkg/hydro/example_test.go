package hydro_test

import (
	"fmt"

	"github.com/matzehuels/reliefkit/pkg/hydro"
	"github.com/matzehuels/reliefkit/pkg/raster"
)

func Example() {
	// A 3x4 valley draining west through its middle row.
	dem, _ := raster.New(4, 3, raster.Geotransform{0, 10, 0, 30, 0, -10}, "EPSG:32633")
	copy(dem.Data, []float64{
		9, 9, 9, 9,
		1, 2, 3, 4,
		9, 9, 9, 9,
	})

	breached, err := hydro.Breach(dem, hydro.BreachOptions{})
	if err != nil {
		panic(err)
	}
	dirs := hydro.FlowDirections(breached)
	acc, err := hydro.FlowAccumulation(dirs)
	if err != nil {
		panic(err)
	}
	pp, err := hydro.SnapPourPoint(acc, dem.Clamp(raster.Cell{Row: 1, Col: -3}), 10, hydro.SnapOptions{})
	if err != nil {
		panic(err)
	}
	mask, _ := hydro.Delineate(dirs, pp)
	fmt.Println(pp.Cell, pp.Accumulation, mask.Count())
	// Output: {1 0} 12 12
}
