package fileinfo

import (
	"path"
	"strings"

	"github.com/bstardust/takeout-geotag/pkg/s3client"
)

// albumMetadata is the per-folder album description, not a photo sidecar
const albumMetadata = "metadata.json"

// IsSidecar checks if a file is a Takeout JSON sidecar describing one photo
func IsSidecar(filename string) bool {
	base := path.Base(filename)
	return strings.EqualFold(path.Ext(base), ".json") && !strings.EqualFold(base, albumMetadata)
}

// SidecarMediaName guesses the media file name from a sidecar name:
// "IMG_1.jpg.json" and "IMG_1.jpg.supplemental-metadata.json" give "IMG_1.jpg".
func SidecarMediaName(filename string) string {
	base := path.Base(filename)
	base = base[:len(base)-len(path.Ext(base))]
	if i := strings.Index(base, ".supplemental-metadata"); i > 0 {
		base = base[:i]
	}
	return base
}

// GetContentType returns the content type for a file
func GetContentType(filename string) string {
	return s3client.DetectContentType(filename)
}
