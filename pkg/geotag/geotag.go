// Package geotag embeds a GPS position and a capture time into JPEG and PNG
// files.
//
// It builds one EXIF block per call and splices it into the container. The
// rest of the file is carried over byte for byte.
package geotag

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bstardust/takeout-geotag/internal/fshelper"
	"github.com/bstardust/takeout-geotag/internal/geo"
	"github.com/bstardust/takeout-geotag/internal/jpegseg"
	"github.com/bstardust/takeout-geotag/internal/logger"
	"github.com/bstardust/takeout-geotag/internal/pngchunk"
	"github.com/bstardust/takeout-geotag/internal/tiffexif"
	"github.com/bstardust/takeout-geotag/pkg/common"
)

// Position is a WGS-84 position with altitude in meters.
type Position = geo.Position

// Format identifies a supported container.
type Format int

const (
	FormatUnknown Format = iota
	FormatJPEG
	FormatPNG
)

func (f Format) String() string {
	switch f {
	case FormatJPEG:
		return "jpeg"
	case FormatPNG:
		return "png"
	default:
		return "unknown"
	}
}

// FormatOf picks the container from the file extension, ignoring case.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return FormatJPEG, nil
	case ".png":
		return FormatPNG, nil
	default:
		return FormatUnknown, fmt.Errorf("%w: %q", common.ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Embedder writes EXIF metadata into images. The zero value is ready to use
// and safe for concurrent use.
type Embedder struct {
	// FileMode is used for newly created outputs. Defaults to 0644.
	FileMode os.FileMode
}

// New returns an Embedder with default settings.
func New() *Embedder {
	return &Embedder{FileMode: 0o644}
}

// EmbedBytes returns src with an EXIF block for pos and t.
func (e *Embedder) EmbedBytes(format Format, src []byte, pos Position, t time.Time) ([]byte, error) {
	out, err := embed(format, src, pos, t)
	if err != nil {
		return nil, common.NewMediaError("embed", "", common.ErrEncoding, err)
	}
	return out, nil
}

func embed(format Format, src []byte, pos Position, t time.Time) ([]byte, error) {
	block := tiffexif.NewBlock(pos, t)
	switch format {
	case FormatJPEG:
		return jpegseg.Rewrite(src, block)
	case FormatPNG:
		return pngchunk.Inject(src, block.TIFF())
	default:
		return nil, fmt.Errorf("%w: %s", common.ErrUnsupportedFormat, format)
	}
}

// EmbedFile reads src, embeds pos and t, and writes the result to dst. An
// empty dst rewrites src in place. The output replaces dst atomically; on
// error dst is left as it was.
func (e *Embedder) EmbedFile(src, dst string, pos Position, t time.Time) error {
	if dst == "" {
		dst = src
	}
	format, err := FormatOf(src)
	if err != nil {
		return common.NewMediaError("embed", src, common.ErrUnsupportedFormat, err)
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return common.NewMediaError("read", src, common.ErrIO, err)
	}

	out, err := embed(format, data, pos, t)
	if err != nil {
		return common.NewMediaError("embed", src, common.ErrEncoding, err)
	}

	mode := e.FileMode
	if info, err := os.Stat(dst); err == nil {
		mode = info.Mode().Perm()
	} else if mode == 0 {
		mode = 0o644
	}
	if err := fshelper.WriteFileAtomic(dst, out, mode); err != nil {
		return common.NewMediaError("write", dst, common.ErrIO, err)
	}

	logger.Debug("Embedded %s into %s (%s, %d bytes)", pos, dst, format, len(out))
	return nil
}
