package geo

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/matzehuels/reliefkit/pkg/errors"
)

// WGS84 is the geographic CRS map clients speak.
const WGS84 = "EPSG:4326"

// epsgDefs holds proj4 definitions for the EPSG codes DEMs commonly ship in.
// UTM zones are generated by [utmDef].
var epsgDefs = map[int]string{
	4326:  "+proj=longlat +ellps=WGS84 +datum=WGS84 +no_defs",
	4269:  "+proj=longlat +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +no_defs",
	3857:  "+proj=merc +a=6378137 +b=6378137 +lat_ts=0.0 +lon_0=0.0 +x_0=0.0 +y_0=0 +k=1.0 +units=m +nadgrids=@null +no_defs",
	2056:  "+proj=somerc +lat_0=46.95240555555556 +lon_0=7.439583333333333 +k_0=1 +x_0=2600000 +y_0=1200000 +ellps=bessel +towgs84=674.374,15.056,405.346,0,0,0,0 +units=m +no_defs",
	27700: "+proj=tmerc +lat_0=49 +lon_0=-2 +k=0.9996012717 +x_0=400000 +y_0=-100000 +ellps=airy +towgs84=446.448,-125.157,542.06,0.15,0.247,0.842,-20.489 +units=m +no_defs",
}

func utmDef(zone int, south bool) string {
	def := fmt.Sprintf("+proj=utm +zone=%d +ellps=WGS84 +datum=WGS84 +units=m +no_defs", zone)
	if south {
		def = fmt.Sprintf("+proj=utm +zone=%d +south +ellps=WGS84 +datum=WGS84 +units=m +no_defs", zone)
	}
	return def
}

// Definition resolves a CRS identifier to a definition the projection
// library can parse.
//
// Accepted forms:
//   - "EPSG:<code>" (case-insensitive) for codes in the built-in table and
//     the WGS84 UTM zones 32601-32660 and 32701-32760
//   - a proj4 string starting with "+proj="
//   - a WKT string
func Definition(crs string) (string, error) {
	s := strings.TrimSpace(crs)
	if s == "" {
		return "", errors.New(errors.ErrCodeProjection, "coordinate reference system is undefined")
	}
	if !strings.HasPrefix(strings.ToUpper(s), "EPSG:") {
		return s, nil
	}
	code, err := strconv.Atoi(strings.TrimSpace(s[5:]))
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeProjection, err, "invalid EPSG code %q", s)
	}
	if def, ok := epsgDefs[code]; ok {
		return def, nil
	}
	switch {
	case code >= 32601 && code <= 32660:
		return utmDef(code-32600, false), nil
	case code >= 32701 && code <= 32760:
		return utmDef(code-32700, true), nil
	}
	return "", errors.New(errors.ErrCodeProjection, "unsupported EPSG code %d", code)
}

// normalize folds equivalent spellings of a CRS identifier to one cache key.
func normalize(crs string) string {
	s := strings.TrimSpace(crs)
	if strings.HasPrefix(strings.ToUpper(s), "EPSG:") {
		return "EPSG:" + strings.TrimSpace(s[5:])
	}
	return s
}

// IsGeographic reports whether crs measures positions in degrees of
// longitude and latitude. Unknown systems report false.
func IsGeographic(crs string) bool {
	def, err := Definition(crs)
	if err != nil {
		return false
	}
	upper := strings.ToUpper(strings.TrimSpace(def))
	return strings.Contains(def, "+proj=longlat") || strings.Contains(def, "+proj=latlong") ||
		strings.HasPrefix(upper, "GEOGCS") || strings.HasPrefix(upper, "GEOGCRS")
}
