// internal/geo/geo.go
package geo

import (
	"fmt"
	"math"
)

// Denominators used for the EXIF encodings.
const (
	SecondsDenominator  = 1000000
	AltitudeDenominator = 1000
)

// Altitude reference bytes (GPSAltitudeRef)
const (
	AboveSeaLevel byte = 0
	BelowSeaLevel byte = 1
)

// Position is a point on earth: latitude and longitude in decimal degrees,
// altitude in meters relative to sea level.
type Position struct {
	Latitude  float64
	Longitude float64
	Altitude  float64
}

func (p Position) String() string {
	return fmt.Sprintf("%.6f,%.6f (%.1fm)", p.Latitude, p.Longitude, p.Altitude)
}

// Rational is an unsigned TIFF RATIONAL.
type Rational struct {
	Numerator   uint32
	Denominator uint32
}

// Float returns the value of r. A zero denominator yields 0.
func (r Rational) Float() float64 {
	if r.Denominator == 0 {
		return 0
	}
	return float64(r.Numerator) / float64(r.Denominator)
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Numerator, r.Denominator)
}

// DMS is a coordinate in degrees, minutes and seconds plus its hemisphere
// reference letter.
type DMS struct {
	Degrees Rational
	Minutes Rational
	Seconds Rational
	Ref     string
}

// Rationals returns the three components in GPSLatitude/GPSLongitude order.
func (d DMS) Rationals() []Rational {
	return []Rational{d.Degrees, d.Minutes, d.Seconds}
}

// Decimal converts back to signed decimal degrees.
func (d DMS) Decimal() float64 {
	v := d.Degrees.Float() + d.Minutes.Float()/60 + d.Seconds.Float()/3600
	if d.Ref == "S" || d.Ref == "W" {
		return -v
	}
	return v
}

// Latitude converts decimal degrees to DMS with an N/S reference.
func Latitude(deg float64) DMS {
	ref := "N"
	if deg < 0 {
		ref = "S"
	}
	return toDMS(deg, ref)
}

// Longitude converts decimal degrees to DMS with an E/W reference.
func Longitude(deg float64) DMS {
	ref := "E"
	if deg < 0 {
		ref = "W"
	}
	return toDMS(deg, ref)
}

func toDMS(deg float64, ref string) DMS {
	abs := math.Abs(deg)
	d := math.Floor(abs)
	minutes := (abs - d) * 60
	m := math.Floor(minutes)
	s := scaled((minutes-m)*60, SecondsDenominator)

	// rounding can reach a full minute; carry it so seconds stay below 60
	if s >= 60*SecondsDenominator {
		s -= 60 * SecondsDenominator
		m++
	}
	if m >= 60 {
		m -= 60
		d++
	}

	return DMS{
		Degrees: Rational{Numerator: uint32(d), Denominator: 1},
		Minutes: Rational{Numerator: uint32(m), Denominator: 1},
		Seconds: Rational{Numerator: s, Denominator: SecondsDenominator},
		Ref:     ref,
	}
}

// Altitude encodes meters as a millimeter-precision rational of the
// magnitude plus the sea level reference byte.
func Altitude(meters float64) (Rational, byte) {
	ref := AboveSeaLevel
	if meters < 0 {
		ref = BelowSeaLevel
	}
	return Rational{Numerator: scaled(math.Abs(meters), AltitudeDenominator), Denominator: AltitudeDenominator}, ref
}

// AltitudeMeters is the inverse of Altitude.
func AltitudeMeters(r Rational, ref byte) float64 {
	if ref == BelowSeaLevel {
		return -r.Float()
	}
	return r.Float()
}

// scaled rounds v*denom to the nearest integer, saturating at MaxUint32.
func scaled(v float64, denom uint32) uint32 {
	n := math.Round(v * float64(denom))
	if n >= math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(n)
}
