package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLatitude_SanFrancisco(t *testing.T) {
	dms := Latitude(37.7749)

	assert.Equal(t, "N", dms.Ref)
	assert.Equal(t, Rational{37, 1}, dms.Degrees)
	assert.Equal(t, Rational{46, 1}, dms.Minutes)
	assert.Equal(t, uint32(SecondsDenominator), dms.Seconds.Denominator)
	assert.InDelta(t, 29.64, dms.Seconds.Float(), 1e-6)
}

func TestSouthernAndEasternHemispheres(t *testing.T) {
	lat := Latitude(-33.8688)
	lon := Longitude(151.2093)

	assert.Equal(t, "S", lat.Ref)
	assert.Equal(t, "E", lon.Ref)
	assert.Equal(t, uint32(33), lat.Degrees.Numerator)
	assert.Equal(t, uint32(52), lat.Minutes.Numerator)
	assert.Equal(t, uint32(151), lon.Degrees.Numerator)
	assert.Equal(t, uint32(12), lon.Minutes.Numerator)

	assert.Equal(t, "W", Longitude(-0.1278).Ref)
	assert.Equal(t, "N", Latitude(0).Ref)
	assert.Equal(t, "E", Longitude(0).Ref)
}

func TestAltitude(t *testing.T) {
	tests := []struct {
		name    string
		meters  float64
		wantNum uint32
		wantRef byte
	}{
		{"below sea level", -5.2, 5200, BelowSeaLevel},
		{"sea level", 0, 0, AboveSeaLevel},
		{"everest", 8848.86, 8848860, AboveSeaLevel},
		{"sub millimeter rounding", 0.29, 290, AboveSeaLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ref := Altitude(tt.meters)
			assert.Equal(t, tt.wantNum, r.Numerator)
			assert.Equal(t, uint32(AltitudeDenominator), r.Denominator)
			assert.Equal(t, tt.wantRef, ref)
			assert.InDelta(t, tt.meters, AltitudeMeters(r, ref), 0.001)
		})
	}
}

func TestDMSRoundTrip(t *testing.T) {
	for lat := -90.0; lat <= 90.0; lat += 7.3331 {
		assert.InDelta(t, lat, Latitude(lat).Decimal(), 1e-6, "latitude %v", lat)
	}
	for lon := -180.0; lon <= 180.0; lon += 11.98713 {
		assert.InDelta(t, lon, Longitude(lon).Decimal(), 1e-6, "longitude %v", lon)
	}

	edges := []float64{90, -90, 180, -180, 0.0000001, -0.0000001, 45.9999999}
	for _, v := range edges {
		assert.InDelta(t, v, Longitude(v).Decimal(), 1e-6, "edge %v", v)
	}
}

func TestRationalFloat(t *testing.T) {
	assert.Equal(t, 0.5, Rational{1, 2}.Float())
	assert.Equal(t, 0.0, Rational{1, 0}.Float())
	assert.False(t, math.IsNaN(Rational{0, 0}.Float()))
	assert.Equal(t, "5200/1000", Rational{5200, 1000}.String())
}

func TestRoundedSecondsCarry(t *testing.T) {
	tests := []struct {
		deg     float64
		d, m, s uint32
	}{
		{37.99999999999, 38, 0, 0},
		{-179.999999999999, 180, 0, 0},
		{10.49999999999999, 10, 30, 0},
	}

	for _, tt := range tests {
		dms := Latitude(tt.deg)
		assert.Equal(t, Rational{tt.d, 1}, dms.Degrees, "%v", tt.deg)
		assert.Equal(t, Rational{tt.m, 1}, dms.Minutes, "%v", tt.deg)
		assert.Equal(t, Rational{tt.s, SecondsDenominator}, dms.Seconds, "%v", tt.deg)
		assert.Less(t, dms.Seconds.Float(), 60.0)
		assert.InDelta(t, tt.deg, dms.Decimal(), 1e-9)
	}
}
