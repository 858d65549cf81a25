package pipeline

import (
	"encoding/json"
	"time"

	"github.com/matzehuels/reliefkit/pkg/errors"
	"github.com/matzehuels/reliefkit/pkg/hydro"
	"github.com/matzehuels/reliefkit/pkg/overlay"
)

// Result is the outcome of one analysis. Exactly one of Output and Error is
// set. Its JSON form is what task pollers receive:
//
//	{"output": {"bounds": [[s, w], [n, e]], "image": "/path/overlay.png", ...}}
//	{"error": "observer is outside the DEM extent", "code": "BOUNDS"}
type Result struct {
	Output *Output     `json:"output,omitempty"`
	Error  string      `json:"error,omitempty"`
	Code   errors.Code `json:"code,omitempty"`
	Stats  Stats       `json:"-"`

	err error
}

// Output describes a successful overlay.
type Output struct {
	Bounds overlay.GeoBounds `json:"bounds"`
	Image  string            `json:"image"`

	// Watershed only.
	Area       *float64 `json:"area,omitempty"`
	PixelCount int      `json:"pixel_count,omitempty"`
	Snap       *Snap    `json:"snap,omitempty"`

	// Footprint is a GeoJSON file holding the bounds rectangle.
	Footprint string `json:"footprint,omitempty"`

	// Intermediates maps artifact names ("breached", "directions",
	// "accumulation") to ASCII grid paths when they were kept.
	Intermediates map[string]string `json:"intermediates,omitempty"`
}

// Snap reports where a watershed pour point was snapped to.
type Snap struct {
	hydro.PourPoint
	// Distance is the projected distance between the clicked cell and the
	// snapped cell centres.
	Distance float64 `json:"distance"`
}

// Stats holds per-stage timings.
type Stats struct {
	Stages []StageStat
	Total  time.Duration
}

// StageStat is the timing of one stage.
type StageStat struct {
	Name     string
	Duration time.Duration
}

// Duration returns the time spent in the named stage, or zero.
func (s Stats) Duration(stage string) time.Duration {
	for _, st := range s.Stages {
		if st.Name == stage {
			return st.Duration
		}
	}
	return 0
}

// Failure converts err into a failed Result. Uncoded errors are reported
// as [errors.ErrCodeInternal].
func Failure(err error) *Result {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	return &Result{Error: errors.UserMessage(err), Code: code, err: err}
}

// Failed reports whether the analysis failed.
func (r *Result) Failed() bool { return r.Error != "" }

// Err returns the failure as an error, or nil on success. Results decoded
// from JSON carry a reconstructed *errors.Error.
func (r *Result) Err() error {
	if !r.Failed() {
		return nil
	}
	if r.err != nil {
		return r.err
	}
	return errors.New(r.Code, "%s", r.Error)
}

// Marshal encodes r as JSON.
func (r *Result) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// UnmarshalResult decodes a Result from JSON.
func UnmarshalResult(data []byte) (*Result, error) {
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.Wrap(errors.ErrCodeFormat, err, "decode result")
	}
	if r.Output == nil && r.Error == "" {
		return nil, errors.New(errors.ErrCodeFormat, "result has neither output nor error")
	}
	return &r, nil
}
