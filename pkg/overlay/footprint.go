package overlay

import (
	"os"

	"github.com/paulmach/orb/geojson"

	"github.com/matzehuels/reliefkit/pkg/errors"
)

// Footprint returns a feature collection holding the bounds rectangle as a
// polygon, with props copied onto the feature.
func Footprint(b GeoBounds, props map[string]any) *geojson.FeatureCollection {
	f := geojson.NewFeature(b.Bound().ToPolygon())
	for k, v := range props {
		f.Properties[k] = v
	}
	fc := geojson.NewFeatureCollection()
	fc.Append(f)
	return fc
}

// WriteFootprint writes [Footprint] as GeoJSON to path.
func WriteFootprint(path string, b GeoBounds, props map[string]any) error {
	data, err := Footprint(b, props).MarshalJSON()
	if err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "encode footprint")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "write %s", path)
	}
	return nil
}
