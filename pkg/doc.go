// Package pkg provides the core libraries for reliefkit terrain overlays.
//
// # Overview
//
// reliefkit turns a digital elevation model (DEM) into georeferenced PNG
// overlays for a web map: a shaded relief, the viewshed of an observer, or
// the watershed draining to a clicked point. The pkg directory is organized
// into three areas:
//
//  1. Domain logic: [raster], [geo], [hydro], [hillshade], [viewshed], [overlay]
//  2. Orchestration: [pipeline] and the asynchronous [tasks] runner
//  3. Infrastructure: [cache], [config], [observability], [errors], [buildinfo]
//
// # Architecture
//
// The watershed, the deepest of the three analyses, flows through:
//
//	DEM file
//	   ↓
//	[raster] package (load, nodata, geotransform)
//	   ↓
//	[hydro] package (breach depressions → D8 directions → accumulation
//	                 → snap pour point → upstream walk)
//	   ↓
//	[overlay] package (crop, colour, PNG + WGS84 bounds)
//
// Hillshade and viewshed replace the [hydro] step with their own engine.
//
// # Quick Start
//
//	runner := pipeline.NewRunner(nil)
//	res := runner.Watershed(ctx, pipeline.Request{
//	    DEMPath: "dtm.tif",
//	    Lat:     47.2692,
//	    Lng:     11.4041,
//	    WorkDir: dir,
//	})
//	if res.Failed() {
//	    return res.Err()
//	}
//	fmt.Println(res.Output.Image, res.Output.Bounds)
//
// # Main Packages
//
// [raster] - The in-memory DEM. ESRI ASCII grids are read natively; GeoTIFF
// and other formats go through GDAL when built with -tags gdal.
//
// [geo] - CRS parsing and point reprojection between WGS84 and the DEM.
//
// [hydro] - Depression breaching, D8 flow directions, flow accumulation,
// pour-point snapping and upstream watershed delineation.
//
// [hillshade] and [viewshed] - Analysis engines with an in-process
// implementation and a GDAL command-line backend.
//
// [overlay] - Mask and shade rendering, cropping, and bounds reprojection.
//
// [pipeline] - Runs one analysis end to end, stage by stage, with tracing
// spans and stage timings.
//
// [tasks] - Submit/poll task runner with a bounded worker pool. Results are
// stored in a [cache] backend (file or Redis) so another process can read
// them.
//
// # Testing
//
//	go test ./pkg/...                 # All tests
//	go test -tags gdal ./pkg/raster   # Include the GDAL reader
//	go test -run Example ./pkg/...    # Examples only
package pkg
