// Package geo converts points between geographic and projected coordinate
// reference systems.
//
// Points are [orb.Point] values with x (longitude) first. CRS identifiers
// are "EPSG:<code>" strings, proj4 definitions or WKT; see [Definition].
package geo

import (
	"math"
	"sync"

	"github.com/ctessum/geom/proj"
	"github.com/paulmach/orb"

	"github.com/matzehuels/reliefkit/pkg/errors"
)

type pair struct{ src, dst string }

// Projector transforms points between coordinate reference systems.
// Parsed systems and constructed transforms are cached, so a Projector
// should be reused for the lifetime of an analysis. It is safe for
// concurrent use.
type Projector struct {
	mu         sync.Mutex
	systems    map[string]*proj.SR
	transforms map[pair]proj.Transformer
}

// NewProjector returns an empty Projector.
func NewProjector() *Projector {
	return &Projector{
		systems:    make(map[string]*proj.SR),
		transforms: make(map[pair]proj.Transformer),
	}
}

// Forward maps p from src to dst. Both CRS must be defined.
func (p *Projector) Forward(pt orb.Point, src, dst string) (orb.Point, error) {
	t, err := p.transform(src, dst)
	if err != nil {
		return orb.Point{}, err
	}
	if t == nil {
		return pt, nil
	}
	x, y, err := t(pt[0], pt[1])
	if err != nil {
		return orb.Point{}, errors.Wrap(errors.ErrCodeProjection, err, "transform (%g, %g) from %s to %s", pt[0], pt[1], src, dst)
	}
	if !finite(x) || !finite(y) {
		return orb.Point{}, errors.New(errors.ErrCodeProjection, "transform (%g, %g) from %s to %s is not finite", pt[0], pt[1], src, dst)
	}
	return orb.Point{x, y}, nil
}

// ToCRS maps a WGS84 lon/lat point into dst.
func (p *Projector) ToCRS(pt orb.Point, dst string) (orb.Point, error) {
	return p.Forward(pt, WGS84, dst)
}

// ToWGS84 maps a point in src to WGS84 lon/lat.
func (p *Projector) ToWGS84(pt orb.Point, src string) (orb.Point, error) {
	return p.Forward(pt, src, WGS84)
}

// transform returns the cached transform for (src, dst), or nil when both
// name the same system.
func (p *Projector) transform(src, dst string) (proj.Transformer, error) {
	key := pair{normalize(src), normalize(dst)}
	if key.src == "" || key.dst == "" {
		return nil, errors.New(errors.ErrCodeProjection, "coordinate reference system is undefined")
	}
	if key.src == key.dst {
		return nil, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.transforms[key]; ok {
		return t, nil
	}
	srcSR, err := p.system(key.src)
	if err != nil {
		return nil, err
	}
	dstSR, err := p.system(key.dst)
	if err != nil {
		return nil, err
	}
	t, err := srcSR.NewTransform(dstSR)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeProjection, err, "build transform %s -> %s", key.src, key.dst)
	}
	p.transforms[key] = t
	return t, nil
}

// system parses and caches crs. Callers hold p.mu.
func (p *Projector) system(crs string) (*proj.SR, error) {
	if sr, ok := p.systems[crs]; ok {
		return sr, nil
	}
	def, err := Definition(crs)
	if err != nil {
		return nil, err
	}
	sr, err := proj.Parse(def)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeProjection, err, "parse CRS %q", crs)
	}
	p.systems[crs] = sr
	return sr, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
