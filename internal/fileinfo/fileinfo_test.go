package fileinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSidecar(t *testing.T) {
	assert.True(t, IsSidecar("Takeout/Google Photos/2021/IMG_1.jpg.json"))
	assert.True(t, IsSidecar("a/IMG_1.JPG.JSON"))
	assert.False(t, IsSidecar("Takeout/Google Photos/Trip/metadata.json"))
	assert.False(t, IsSidecar("a/IMG_1.jpg"))
}

func TestSidecarMediaName(t *testing.T) {
	assert.Equal(t, "IMG_1.jpg", SidecarMediaName("x/IMG_1.jpg.json"))
	assert.Equal(t, "IMG_1.jpg", SidecarMediaName("IMG_1.jpg.supplemental-metadata.json"))
	assert.Equal(t, "notes", SidecarMediaName("notes.json"))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/jpeg", GetContentType("a.JPG"))
	assert.Equal(t, "image/png", GetContentType("b.png"))
}
