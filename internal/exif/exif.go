// internal/exif/exif.go
package exif

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/bstardust/takeout-geotag/internal/geo"
	"github.com/bstardust/takeout-geotag/internal/pngchunk"
	"github.com/bstardust/takeout-geotag/pkg/common"
	"github.com/evanoberholster/imagemeta"
	"github.com/rwcarlsen/goexif/exif"
)

// Data represents EXIF metadata
type Data struct {
	DateTime *time.Time
	GPS      *GPSInfo
	Make     string
	Model    string
}

// GPSInfo represents GPS information from EXIF
type GPSInfo struct {
	Latitude  float64
	Longitude float64
	Altitude  float64
}

// Position returns the GPS fix as a geo.Position
func (g *GPSInfo) Position() geo.Position {
	return geo.Position{Latitude: g.Latitude, Longitude: g.Longitude, Altitude: g.Altitude}
}

// Extract extracts EXIF metadata from a JPEG or a bare TIFF structure
func Extract(r io.Reader) (*Data, error) {
	x, err := exif.Decode(r)
	if err != nil {
		return nil, err
	}

	data := &Data{}

	// DateTimeOriginal, falling back to DateTime. The value has no zone and
	// is read as UTC.
	if dt, err := x.DateTime(); err == nil {
		dt = time.Date(dt.Year(), dt.Month(), dt.Day(), dt.Hour(), dt.Minute(), dt.Second(), 0, time.UTC)
		data.DateTime = &dt
	}

	if lat, long, err := x.LatLong(); err == nil {
		data.GPS = &GPSInfo{
			Latitude:  lat,
			Longitude: long,
		}

		if alt, err := x.Get(exif.GPSAltitude); err == nil {
			if num, den, err := alt.Rat2(0); err == nil {
				var ref byte
				if tag, err := x.Get(exif.GPSAltitudeRef); err == nil {
					if v, err := tag.Int(0); err == nil {
						ref = byte(v)
					}
				}
				data.GPS.Altitude = geo.AltitudeMeters(geo.Rational{Numerator: uint32(num), Denominator: uint32(den)}, ref)
			}
		}
	}

	if make, err := x.Get(exif.Make); err == nil {
		if str, err := make.StringVal(); err == nil {
			data.Make = str
		}
	}

	if model, err := x.Get(exif.Model); err == nil {
		if str, err := model.StringVal(); err == nil {
			data.Model = str
		}
	}

	return data, nil
}

// ExtractBytes reads EXIF metadata from an encoded JPEG or PNG image
func ExtractBytes(data []byte) (*Data, error) {
	if !pngchunk.IsHeader(data) {
		return Extract(bytes.NewReader(data))
	}

	tiff, ok, err := pngchunk.Extract(data)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: PNG has no eXIf chunk", common.ErrInvalidInputFormat)
	}
	return Extract(bytes.NewReader(tiff))
}

// HasGPS reports whether an image already carries a GPS position. Decoding
// failures count as no position.
func HasGPS(data []byte) bool {
	if pngchunk.IsHeader(data) {
		d, err := ExtractBytes(data)
		return err == nil && d.GPS != nil
	}

	x, err := imagemeta.Decode(bytes.NewReader(data))
	if err != nil {
		return false
	}
	return x.GPS.Latitude() != 0 || x.GPS.Longitude() != 0
}
