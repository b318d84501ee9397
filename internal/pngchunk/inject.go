package pngchunk

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/bstardust/takeout-geotag/pkg/common"
)

// Inject returns data with tiff stored as its only eXIf chunk, placed right
// after IHDR. tiff is a bare TIFF structure without the JPEG "Exif\0\0"
// prefix. All other chunks are copied unchanged and in order.
//
// The whole image is decoded first so that a file the PNG codec cannot read
// is rejected instead of being rewritten.
func Inject(data, tiff []byte) ([]byte, error) {
	if _, err := ReadHeader(data); err != nil {
		return nil, err
	}
	chunks, err := collect(data)
	if err != nil {
		return nil, err
	}
	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("%w: decode PNG: %v", common.ErrEncoding, err)
	}
	if uint64(len(tiff)) > maxChunkLen {
		return nil, fmt.Errorf("%w: eXIf payload is too long (%d)", common.ErrEncoding, len(tiff))
	}

	exif := NewChunk(TypeEXIF, tiff)
	var buf bytes.Buffer
	buf.Grow(len(data) + framing + len(tiff))
	buf.Write(Signature)
	for _, c := range chunks {
		if c.Type == TypeEXIF {
			continue
		}
		buf.Write(c.Bytes())
		if c.Type == TypeIHDR {
			buf.Write(exif.Bytes())
		}
	}
	return buf.Bytes(), nil
}

// Extract returns the payload of the first eXIf chunk.
func Extract(data []byte) ([]byte, bool, error) {
	chunks, err := Chunks(data)
	if err != nil {
		return nil, false, err
	}
	for c, err := range chunks {
		if err != nil {
			return nil, false, err
		}
		if c.Type == TypeEXIF {
			return c.Data, true, nil
		}
	}
	return nil, false, nil
}

func collect(data []byte) ([]Chunk, error) {
	seq, err := Chunks(data)
	if err != nil {
		return nil, err
	}
	var out []Chunk
	for c, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
