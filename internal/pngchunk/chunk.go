// Package pngchunk walks the PNG chunk stream and splices an eXIf chunk into
// it.
package pngchunk

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"iter"

	"github.com/bstardust/takeout-geotag/pkg/common"
)

// Signature starts every PNG file.
var Signature = []byte("\x89PNG\r\n\x1a\n")

// Chunk types handled here.
const (
	TypeIHDR = "IHDR"
	TypeIDAT = "IDAT"
	TypeIEND = "IEND"
	TypeEXIF = "eXIf"
)

const (
	// framing is the length, type and CRC fields around chunk data.
	framing     = 12
	headerLen   = 13
	maxChunkLen = 1<<31 - 1
)

// Chunk is one length/type/data/CRC record.
type Chunk struct {
	Type string
	Data []byte
	CRC  uint32
}

// NewChunk builds a chunk and computes its CRC.
func NewChunk(typ string, data []byte) Chunk {
	return Chunk{Type: typ, Data: data, CRC: checksum(typ, data)}
}

func checksum(typ string, data []byte) uint32 {
	h := crc32.NewIEEE()
	h.Write([]byte(typ))
	h.Write(data)
	return h.Sum32()
}

// Valid reports whether the stored CRC matches type and data.
func (c Chunk) Valid() bool {
	return c.CRC == checksum(c.Type, c.Data)
}

// Bytes returns the chunk with its framing.
func (c Chunk) Bytes() []byte {
	out := make([]byte, 0, framing+len(c.Data))
	out = binary.BigEndian.AppendUint32(out, uint32(len(c.Data)))
	out = append(out, c.Type...)
	out = append(out, c.Data...)
	return binary.BigEndian.AppendUint32(out, c.CRC)
}

// Header is the decoded IHDR chunk.
type Header struct {
	Width       uint32
	Height      uint32
	BitDepth    uint8
	ColorType   uint8
	Compression uint8
	Filter      uint8
	Interlace   uint8
}

// IsHeader reports whether buf starts with the PNG signature.
func IsHeader(buf []byte) bool {
	return bytes.HasPrefix(buf, Signature)
}

// ReadHeader checks the signature and decodes the IHDR chunk, which must come
// first.
func ReadHeader(data []byte) (Header, error) {
	if !IsHeader(data) {
		return Header{}, fmt.Errorf("%w: PNG signature not found", common.ErrInvalidInputFormat)
	}
	p := data[len(Signature):]
	if len(p) < framing+headerLen {
		return Header{}, fmt.Errorf("%w: IHDR chunk is incomplete", common.ErrInvalidInputFormat)
	}
	c, _, err := parseAt(p, 0)
	if err != nil || c.Type != TypeIHDR || len(c.Data) != headerLen {
		return Header{}, fmt.Errorf("%w: first chunk is not a valid IHDR", common.ErrInvalidInputFormat)
	}
	if !c.Valid() {
		return Header{}, fmt.Errorf("%w: IHDR CRC mismatch", common.ErrInvalidInputFormat)
	}

	d := c.Data
	return Header{
		Width:       binary.BigEndian.Uint32(d[0:4]),
		Height:      binary.BigEndian.Uint32(d[4:8]),
		BitDepth:    d[8],
		ColorType:   d[9],
		Compression: d[10],
		Filter:      d[11],
		Interlace:   d[12],
	}, nil
}

// Chunks checks the signature and returns a lazy sequence over the chunks
// after it. A chunk that runs past the end of data is reported with
// ErrTruncatedSegment and ends the sequence. Bytes after IEND are ignored.
func Chunks(data []byte) (iter.Seq2[Chunk, error], error) {
	if !IsHeader(data) {
		return nil, fmt.Errorf("%w: PNG signature not found", common.ErrInvalidInputFormat)
	}
	body := data[len(Signature):]
	return func(yield func(Chunk, error) bool) {
		for pos := 0; pos < len(body); {
			c, next, err := parseAt(body, pos)
			if !yield(c, err) || err != nil || c.Type == TypeIEND {
				return
			}
			pos = next
		}
	}, nil
}

func parseAt(p []byte, pos int) (Chunk, int, error) {
	if len(p)-pos < framing {
		return Chunk{}, len(p), fmt.Errorf("%w: chunk framing at offset %d", common.ErrTruncatedSegment, pos)
	}
	n := binary.BigEndian.Uint32(p[pos:])
	typ := string(p[pos+4 : pos+8])
	if n > maxChunkLen || uint64(len(p)-pos-framing) < uint64(n) {
		return Chunk{Type: typ}, len(p), fmt.Errorf("%w: %s chunk declares %d bytes, %d available",
			common.ErrTruncatedSegment, typ, n, len(p)-pos-framing)
	}
	end := pos + 8 + int(n)
	return Chunk{
		Type: typ,
		Data: p[pos+8 : end],
		CRC:  binary.BigEndian.Uint32(p[end:]),
	}, end + 4, nil
}
