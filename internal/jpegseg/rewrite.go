package jpegseg

import (
	"bytes"
	"iter"

	"github.com/bstardust/takeout-geotag/internal/tiffexif"
)

// rewrite states
type state int

const (
	beforeInsertionPoint state = iota
	streaming
	copyRestVerbatim
)

// IsExif reports whether seg is an APP1 segment holding EXIF data.
func IsExif(seg Segment) bool {
	return seg.Kind == KindSegment && seg.Marker == APP1 && tiffexif.HasSignature(seg.Payload)
}

// Plan returns the output segment sequence for segs with block inserted as
// the only EXIF APP1 segment.
//
// Existing EXIF APP1 segments are dropped. The new segment goes right after
// APP0 when there is one, otherwise before the first segment that is not an
// application segment. A scan or an unparseable tail ends the sequence; the
// new segment is emitted before it if still pending.
func Plan(segs iter.Seq[Segment], block []byte) (iter.Seq[Segment], error) {
	exif, err := NewSegment(APP1, block)
	if err != nil {
		return nil, err
	}

	return func(yield func(Segment) bool) {
		st := beforeInsertionPoint
		for seg := range segs {
			if IsExif(seg) {
				continue
			}
			if st == beforeInsertionPoint && insertsBefore(seg) {
				if !yield(exif) {
					return
				}
				st = streaming
			}
			if !yield(seg) {
				return
			}
			if st == beforeInsertionPoint && seg.Kind == KindSegment && seg.Marker == APP0 {
				if !yield(exif) {
					return
				}
				st = streaming
			}
			if seg.Kind == KindScan || seg.Kind == KindTail {
				// the segment holds every remaining byte
				st = copyRestVerbatim
				break
			}
		}

		if st == beforeInsertionPoint {
			yield(exif)
		}
	}, nil
}

// insertsBefore reports whether a pending EXIF segment goes in front of seg.
func insertsBefore(seg Segment) bool {
	switch seg.Kind {
	case KindScan, KindTail:
		return true
	case KindSegment:
		return !seg.Marker.IsApp()
	default:
		return seg.Marker == EOI
	}
}

// Serialize concatenates the bytes of every segment.
func Serialize(segs iter.Seq[Segment]) []byte {
	var buf bytes.Buffer
	for seg := range segs {
		buf.Write(seg.Bytes())
	}
	return buf.Bytes()
}

// Rewrite returns data with block stored as its only EXIF APP1 segment.
func Rewrite(data, block []byte) ([]byte, error) {
	segs, err := Segments(data)
	if err != nil {
		return nil, err
	}
	out, err := Plan(segs, block)
	if err != nil {
		return nil, err
	}
	return Serialize(out), nil
}
