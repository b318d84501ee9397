package tiffexif

import "encoding/binary"

// Layout is the result of the offset-resolution pass over a directory tree.
// Offsets are relative to the start of the TIFF header.
type Layout struct {
	order  []*Directory
	dirs   map[*Directory]uint32
	values map[*Directory][]uint32
	size   uint32
}

// Resolve places d at offset start, followed by its out-of-line values,
// then its sub-directories depth first.
func (d *Directory) Resolve(start uint32) *Layout {
	l := &Layout{
		dirs:   make(map[*Directory]uint32),
		values: make(map[*Directory][]uint32),
	}
	l.size = l.place(d, start)
	return l
}

func (l *Layout) place(d *Directory, off uint32) uint32 {
	l.dirs[d] = off
	l.order = append(l.order, d)
	off += d.tableSize()

	vals := make([]uint32, len(d.entries))
	for i, e := range d.entries {
		if e.Inline() {
			continue
		}
		vals[i] = off
		off = align(off + e.Size())
	}
	l.values[d] = vals

	for _, sub := range d.Children() {
		off = l.place(sub, off)
	}
	return off
}

// align rounds up to a word boundary; TIFF offsets must be even.
func align(off uint32) uint32 {
	return off + off&1
}

// Offset returns where directory d starts.
func (l *Layout) Offset(d *Directory) (uint32, bool) {
	off, ok := l.dirs[d]
	return off, ok
}

// ValueOffset returns where the out-of-line value of tag in d is stored.
// It reports false for inline values and unknown tags.
func (l *Layout) ValueOffset(d *Directory, tag Tag) (uint32, bool) {
	i := d.search(tag)
	if i >= len(d.entries) || d.entries[i].Tag != tag || d.entries[i].Inline() {
		return 0, false
	}
	return l.values[d][i], true
}

// Directories returns the directories in serialization order.
func (l *Layout) Directories() []*Directory {
	return append([]*Directory(nil), l.order...)
}

// Size is the total size of the TIFF structure including the header.
func (l *Layout) Size() uint32 {
	return l.size
}

// Encode serializes the tree rooted at root as a TIFF structure in the given
// byte order. IFD0 is root; there is no next-IFD chain.
func Encode(root *Directory, order binary.ByteOrder) []byte {
	layout := root.Resolve(HeaderSize)
	buf := make([]byte, layout.Size())
	putHeader(buf, order)

	for _, d := range layout.order {
		off := layout.dirs[d]
		order.PutUint16(buf[off:], uint16(len(d.entries)))
		p := off + 2
		for i, e := range d.entries {
			order.PutUint16(buf[p:], uint16(e.Tag))
			order.PutUint16(buf[p+2:], uint16(e.Type))
			order.PutUint32(buf[p+4:], e.Count)
			switch sub, isSub := e.Sub(); {
			case isSub:
				order.PutUint32(buf[p+8:], layout.dirs[sub])
			case e.Inline():
				e.put(buf[p+8:p+12], order)
			default:
				vo := layout.values[d][i]
				order.PutUint32(buf[p+8:], vo)
				e.put(buf[vo:vo+e.Size()], order)
			}
			p += entrySize
		}
		// next IFD offset stays zero
	}
	return buf
}

func putHeader(buf []byte, order binary.ByteOrder) {
	probe := make([]byte, 2)
	order.PutUint16(probe, 1)
	if probe[0] == 1 {
		copy(buf, "II")
	} else {
		copy(buf, "MM")
	}
	order.PutUint16(buf[2:], 42)
	order.PutUint32(buf[4:], HeaderSize)
}
