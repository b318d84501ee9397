// Package jpegseg parses a JPEG byte stream into marker segments and
// rewrites it with a new EXIF APP1 segment.
//
// Only the segment structure is interpreted. Entropy-coded data after the
// start-of-scan marker is carried through untouched.
package jpegseg

import (
	"fmt"
	"iter"

	"github.com/bstardust/takeout-geotag/pkg/common"
)

const (
	TEM  = 0x01
	SOF0 = 0xC0 // SOFn = SOF0+n, n = 0-15 excluding 4, 8 and 12
	DHT  = 0xC4
	RST0 = 0xD0 // RSTn = RST0+n, n = 0-7
	SOI  = 0xD8
	EOI  = 0xD9
	SOS  = 0xDA
	DQT  = 0xDB
	DRI  = 0xDD
	APP0 = 0xE0 // APPn = APP0+n, n = 0-15
	APP1 = 0xE1
	COM  = 0xFE
)

// Marker is the second byte of a JPEG marker.
type Marker uint8

// Name returns a short human readable name for the marker.
func (m Marker) Name() string {
	switch {
	case m == SOI:
		return "SOI"
	case m == EOI:
		return "EOI"
	case m == SOS:
		return "SOS"
	case m == DQT:
		return "DQT"
	case m == DHT:
		return "DHT"
	case m == DRI:
		return "DRI"
	case m == COM:
		return "COM"
	case m == TEM:
		return "TEM"
	case m == 0xFF:
		return "FILL"
	case m.IsApp():
		return fmt.Sprintf("APP%d", m-APP0)
	case m >= RST0 && m <= RST0+7:
		return fmt.Sprintf("RST%d", m-RST0)
	case m >= SOF0 && m <= SOF0+0xF:
		return fmt.Sprintf("SOF%d", m-SOF0)
	default:
		return fmt.Sprintf("M%.2X", uint8(m))
	}
}

// IsApp reports whether m is an application segment marker (APP0-APP15).
func (m Marker) IsApp() bool {
	return m >= APP0 && m <= APP0+0xF
}

// standalone markers carry no length field.
func (m Marker) standalone() bool {
	return m == TEM || m == SOI || m == EOI || (m >= RST0 && m <= RST0+7)
}

// Kind classifies a parsed segment.
type Kind int

const (
	// KindStandalone is a marker without payload, or a single fill byte.
	KindStandalone Kind = iota
	// KindSegment is a marker followed by a length-prefixed payload.
	KindSegment
	// KindScan is the SOS marker and everything after it.
	KindScan
	// KindTail is the remainder of a stream that could not be parsed further.
	KindTail
)

func (k Kind) String() string {
	switch k {
	case KindStandalone:
		return "standalone"
	case KindSegment:
		return "segment"
	case KindScan:
		return "scan"
	case KindTail:
		return "tail"
	default:
		return "unknown"
	}
}

// MaxPayload is the largest payload a length-prefixed segment can carry.
const MaxPayload = 1<<16 - 1 - 2

// Segment is one element of a JPEG stream. Raw holds the exact input bytes
// for parsed segments; it is nil for segments created by the rewriter.
type Segment struct {
	Marker  Marker
	Kind    Kind
	Payload []byte
	Raw     []byte
}

// NewSegment creates a length-prefixed segment that is not backed by input
// bytes.
func NewSegment(marker Marker, payload []byte) (Segment, error) {
	if len(payload) > MaxPayload {
		return Segment{}, fmt.Errorf("%w: %s payload is too long (%d), max %d",
			common.ErrEncoding, marker.Name(), len(payload), MaxPayload)
	}
	return Segment{Marker: marker, Kind: KindSegment, Payload: payload}, nil
}

// Bytes returns the serialized form of the segment.
func (s Segment) Bytes() []byte {
	if s.Raw != nil {
		return s.Raw
	}
	length := len(s.Payload) + 2
	out := make([]byte, 0, 2+length)
	out = append(out, 0xFF, byte(s.Marker), byte(length>>8), byte(length))
	return append(out, s.Payload...)
}

// IsHeader reports whether buf starts with the SOI marker.
func IsHeader(buf []byte) bool {
	return len(buf) >= 2 && buf[0] == 0xFF && buf[1] == SOI
}

// Segments validates the SOI marker and returns a lazy sequence over the
// stream's segments, starting with SOI. The sequence can be iterated any
// number of times.
func Segments(data []byte) (iter.Seq[Segment], error) {
	if !IsHeader(data) {
		return nil, fmt.Errorf("%w: SOI marker not found", common.ErrInvalidInputFormat)
	}
	return func(yield func(Segment) bool) {
		if !yield(Segment{Marker: SOI, Kind: KindStandalone, Raw: data[:2]}) {
			return
		}
		for pos := 2; pos < len(data); {
			seg, next := parseAt(data, pos)
			if !yield(seg) {
				return
			}
			pos = next
		}
	}, nil
}

// parseAt parses the segment starting at pos and returns it with the
// position of the following one.
func parseAt(data []byte, pos int) (Segment, int) {
	tail := Segment{Kind: KindTail, Raw: data[pos:]}
	if data[pos] != 0xFF || pos+1 >= len(data) {
		return tail, len(data)
	}

	marker := Marker(data[pos+1])
	switch {
	case marker == 0xFF:
		// fill byte before a marker
		return Segment{Marker: marker, Kind: KindStandalone, Raw: data[pos : pos+1]}, pos + 1
	case marker == 0x00:
		return tail, len(data)
	case marker.standalone():
		return Segment{Marker: marker, Kind: KindStandalone, Raw: data[pos : pos+2]}, pos + 2
	case marker == SOS:
		return Segment{Marker: marker, Kind: KindScan, Raw: data[pos:]}, len(data)
	}

	if pos+4 > len(data) {
		tail.Marker = marker
		return tail, len(data)
	}
	length := int(data[pos+2])<<8 | int(data[pos+3])
	end := pos + 2 + length
	if length < 2 || end > len(data) {
		tail.Marker = marker
		return tail, len(data)
	}
	return Segment{
		Marker:  marker,
		Kind:    KindSegment,
		Payload: data[pos+4 : end],
		Raw:     data[pos:end],
	}, end
}
