package tiffexif

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/bstardust/takeout-geotag/internal/geo"
)

// DateTimeLayout is the EXIF date-time format.
const DateTimeLayout = "2006:01:02 15:04:05"

// Signature prefixes EXIF data stored in a JPEG APP1 segment.
var Signature = []byte("Exif\x00\x00")

// GPSVersion is the GPSVersionID written into every block.
var GPSVersion = []byte{2, 3, 0, 0}

// Block is an encoded EXIF block: Signature followed by a TIFF structure.
type Block []byte

// TIFF returns the block without the EXIF signature.
func (b Block) TIFF() []byte {
	return b[len(Signature):]
}

// HasSignature reports whether p starts with the EXIF signature.
func HasSignature(p []byte) bool {
	return bytes.HasPrefix(p, Signature)
}

// FormatDateTime renders t in UTC at one second resolution.
func FormatDateTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(DateTimeLayout)
}

// Build returns the directory tree for a position and capture time:
// IFD0 with DateTime and pointers to an Exif IFD (original and digitized
// date-times) and a GPS IFD.
func Build(pos geo.Position, t time.Time) *Directory {
	stamp := FormatDateTime(t)

	gps := NewDirectory("GPS")
	gps.AddBytes(TagGPSVersionID, GPSVersion...)

	lat := geo.Latitude(pos.Latitude)
	gps.AddASCII(TagGPSLatitudeRef, lat.Ref)
	gps.AddRationals(TagGPSLatitude, lat.Rationals()...)

	lon := geo.Longitude(pos.Longitude)
	gps.AddASCII(TagGPSLongitudeRef, lon.Ref)
	gps.AddRationals(TagGPSLongitude, lon.Rationals()...)

	alt, ref := geo.Altitude(pos.Altitude)
	gps.AddBytes(TagGPSAltitudeRef, ref)
	gps.AddRationals(TagGPSAltitude, alt)

	exif := NewDirectory("Exif")
	exif.AddASCII(TagDateTimeOriginal, stamp)
	exif.AddASCII(TagDateTimeDigitized, stamp)

	ifd0 := NewDirectory("IFD0")
	ifd0.AddASCII(TagDateTime, stamp)
	ifd0.AddSubDirectory(TagExifIFDPointer, exif)
	ifd0.AddSubDirectory(TagGPSInfoIFDPointer, gps)
	return ifd0
}

// NewBlock encodes the EXIF block for pos and t. Output is big-endian and
// deterministic for identical inputs.
func NewBlock(pos geo.Position, t time.Time) Block {
	tiff := Encode(Build(pos, t), binary.BigEndian)
	b := make(Block, 0, len(Signature)+len(tiff))
	b = append(b, Signature...)
	return append(b, tiff...)
}
