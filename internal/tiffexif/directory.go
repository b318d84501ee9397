// Package tiffexif builds minimal TIFF structures holding EXIF tags.
//
// A Directory is an in-memory image file directory: an ordered list of
// (tag, type, count, value) entries, some of which point at sub-directories.
// Resolve computes where every directory and out-of-line value will live,
// and Encode writes the bytes using that layout.
package tiffexif

import (
	"encoding/binary"
	"sort"

	"github.com/bstardust/takeout-geotag/internal/geo"
)

// Type is a TIFF field type.
type Type uint16

const (
	TypeByte      Type = 1
	TypeASCII     Type = 2
	TypeShort     Type = 3
	TypeLong      Type = 4
	TypeRational  Type = 5
	TypeUndefined Type = 7
)

// Size returns the number of bytes of one component of this type.
func (t Type) Size() uint32 {
	switch t {
	case TypeByte, TypeASCII, TypeUndefined:
		return 1
	case TypeShort:
		return 2
	case TypeLong:
		return 4
	case TypeRational:
		return 8
	default:
		return 0
	}
}

// Tag is a TIFF tag id.
type Tag uint16

// Tags written by this package.
const (
	TagGPSVersionID      Tag = 0x0000
	TagGPSLatitudeRef    Tag = 0x0001
	TagGPSLatitude       Tag = 0x0002
	TagGPSLongitudeRef   Tag = 0x0003
	TagGPSLongitude      Tag = 0x0004
	TagGPSAltitudeRef    Tag = 0x0005
	TagGPSAltitude       Tag = 0x0006
	TagDateTime          Tag = 0x0132
	TagExifIFDPointer    Tag = 0x8769
	TagGPSInfoIFDPointer Tag = 0x8825
	TagDateTimeOriginal  Tag = 0x9003
	TagDateTimeDigitized Tag = 0x9004
)

const (
	// HeaderSize is the size of the TIFF header; IFD0 follows it directly.
	HeaderSize = 8

	entrySize = 12
)

// Entry is one directory entry. Value holds []byte, string, []uint16,
// []uint32, []geo.Rational, or *Directory for sub-directory pointers.
type Entry struct {
	Tag   Tag
	Type  Type
	Count uint32
	Value any
}

// Size returns the encoded size of the entry's value.
func (e Entry) Size() uint32 {
	return e.Type.Size() * e.Count
}

// Inline reports whether the value fits in the entry's 4-byte value field.
func (e Entry) Inline() bool {
	return e.Size() <= 4
}

// Sub returns the sub-directory an entry points at, if any.
func (e Entry) Sub() (*Directory, bool) {
	d, ok := e.Value.(*Directory)
	return d, ok
}

func (e Entry) put(dst []byte, order binary.ByteOrder) {
	switch v := e.Value.(type) {
	case []byte:
		copy(dst, v)
	case string:
		copy(dst, v)
	case []uint16:
		for i, x := range v {
			order.PutUint16(dst[2*i:], x)
		}
	case []uint32:
		for i, x := range v {
			order.PutUint32(dst[4*i:], x)
		}
	case []geo.Rational:
		for i, r := range v {
			order.PutUint32(dst[8*i:], r.Numerator)
			order.PutUint32(dst[8*i+4:], r.Denominator)
		}
	}
}

// Directory is an image file directory under construction.
type Directory struct {
	Name    string
	entries []Entry
}

// NewDirectory creates an empty directory. The name is only used for
// diagnostics.
func NewDirectory(name string) *Directory {
	return &Directory{Name: name}
}

// Entries returns the entries sorted by tag.
func (d *Directory) Entries() []Entry {
	out := make([]Entry, len(d.entries))
	copy(out, d.entries)
	return out
}

// Entry returns the entry for tag.
func (d *Directory) Entry(tag Tag) (Entry, bool) {
	i := d.search(tag)
	if i < len(d.entries) && d.entries[i].Tag == tag {
		return d.entries[i], true
	}
	return Entry{}, false
}

// Children returns the sub-directories in tag order.
func (d *Directory) Children() []*Directory {
	var subs []*Directory
	for _, e := range d.entries {
		if sub, ok := e.Sub(); ok {
			subs = append(subs, sub)
		}
	}
	return subs
}

// Set adds e, replacing any entry with the same tag. TIFF readers expect
// entries in ascending tag order, which Set maintains.
func (d *Directory) Set(e Entry) {
	i := d.search(e.Tag)
	if i < len(d.entries) && d.entries[i].Tag == e.Tag {
		d.entries[i] = e
		return
	}
	d.entries = append(d.entries, Entry{})
	copy(d.entries[i+1:], d.entries[i:])
	d.entries[i] = e
}

func (d *Directory) search(tag Tag) int {
	return sort.Search(len(d.entries), func(i int) bool { return d.entries[i].Tag >= tag })
}

func (d *Directory) AddBytes(tag Tag, b ...byte) {
	d.Set(Entry{Tag: tag, Type: TypeByte, Count: uint32(len(b)), Value: append([]byte(nil), b...)})
}

// AddASCII adds a NUL-terminated string.
func (d *Directory) AddASCII(tag Tag, s string) {
	d.Set(Entry{Tag: tag, Type: TypeASCII, Count: uint32(len(s) + 1), Value: s})
}

func (d *Directory) AddShorts(tag Tag, v ...uint16) {
	d.Set(Entry{Tag: tag, Type: TypeShort, Count: uint32(len(v)), Value: append([]uint16(nil), v...)})
}

func (d *Directory) AddLongs(tag Tag, v ...uint32) {
	d.Set(Entry{Tag: tag, Type: TypeLong, Count: uint32(len(v)), Value: append([]uint32(nil), v...)})
}

func (d *Directory) AddRationals(tag Tag, v ...geo.Rational) {
	d.Set(Entry{Tag: tag, Type: TypeRational, Count: uint32(len(v)), Value: append([]geo.Rational(nil), v...)})
}

// AddSubDirectory adds a LONG pointer entry whose value is resolved to the
// offset of sub at layout time.
func (d *Directory) AddSubDirectory(tag Tag, sub *Directory) {
	d.Set(Entry{Tag: tag, Type: TypeLong, Count: 1, Value: sub})
}

func (d *Directory) tableSize() uint32 {
	return 2 + entrySize*uint32(len(d.entries)) + 4
}
