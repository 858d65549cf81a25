package errors

import (
	"math"
	"strings"
	"unicode"
)

// ValidateAzimuth checks that a hillshade illumination azimuth lies in [0, 360].
func ValidateAzimuth(azimuth float64) error {
	if math.IsNaN(azimuth) || azimuth < 0 || azimuth > 360 {
		return New(ErrCodeInvalidInput, "azimuth must be between 0 and 360")
	}
	return nil
}

// ValidateAltitude checks that a hillshade illumination altitude lies in [0, 90].
func ValidateAltitude(altitude float64) error {
	if math.IsNaN(altitude) || altitude < 0 || altitude > 90 {
		return New(ErrCodeInvalidInput, "altitude must be between 0 and 90")
	}
	return nil
}

// ValidateCoordinates checks a WGS84 latitude/longitude pair.
//
// The exact origin (0, 0) is rejected: map clients send it when no point was
// picked, and no DEM of interest is centred in the Gulf of Guinea.
func ValidateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return New(ErrCodeInvalidInput, "invalid coordinates")
	}
	if lat == 0 && lng == 0 {
		return New(ErrCodeInvalidInput, "invalid coordinates")
	}
	if lat < -90 || lat > 90 {
		return New(ErrCodeInvalidInput, "latitude must be between -90 and 90, got %g", lat)
	}
	if lng < -180 || lng > 180 {
		return New(ErrCodeInvalidInput, "longitude must be between -180 and 180, got %g", lng)
	}
	return nil
}

// ValidatePositive checks that a named parameter is a finite, strictly
// positive number.
func ValidatePositive(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return New(ErrCodeInvalidInput, "%s must be a positive number", name)
	}
	return nil
}

// ValidateNonNegative checks that a named parameter is a finite number >= 0.
func ValidateNonNegative(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return New(ErrCodeInvalidInput, "%s must not be negative", name)
	}
	return nil
}

// ValidatePath validates a DEM file path for safety.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 4096 characters
//   - No null bytes or control characters
func ValidatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return New(ErrCodeInvalidInput, "DEM path cannot be empty")
	}

	const maxPathLength = 4096
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidInput, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "path contains invalid characters")
		}
	}

	return nil
}
