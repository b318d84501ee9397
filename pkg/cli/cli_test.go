package cli

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bstardust/takeout-geotag/internal/exif"
	"github.com/bstardust/takeout-geotag/pkg/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJPEG(t *testing.T, path string) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8)), nil))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestParseTime(t *testing.T) {
	got, err := parseTime("1609459200")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)))

	got, err = parseTime("2021-01-01T02:00:00+02:00")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)))

	_, err = parseTime("yesterday")
	assert.Error(t, err)
}

func TestEmbedAndInspect(t *testing.T) {
	src := filepath.Join(t.TempDir(), "photo.jpg")
	writeJPEG(t, src)

	_, err := run(t, "embed", src, "--lat=-33.8688", "--lon=151.2093", "--alt", "58", "--time", "1609459200")
	require.NoError(t, err)

	out, err := run(t, "inspect", src)
	require.NoError(t, err)
	assert.Contains(t, out, "Latitude:  -33.868800")
	assert.Contains(t, out, "Longitude: 151.209300")
	assert.Contains(t, out, "Taken:     2021-01-01T00:00:00Z")
}

func TestEmbed_Validation(t *testing.T) {
	src := filepath.Join(t.TempDir(), "photo.jpg")
	writeJPEG(t, src)

	_, err := run(t, "embed", src, "--lat", "91", "--lon", "0", "--time", "0")
	assert.ErrorContains(t, err, "latitude")

	_, err = run(t, "embed", src, "--lat", "1")
	assert.Error(t, err)
}

func TestFix_OutputDir(t *testing.T) {
	root := t.TempDir()
	takeout := filepath.Join(root, "Takeout")
	writeJPEG(t, filepath.Join(takeout, "Photos from 2021", "IMG_1.jpg"))
	require.NoError(t, os.WriteFile(filepath.Join(takeout, "Photos from 2021", "IMG_1.jpg.json"),
		[]byte(`{"title": "IMG_1.jpg", "photoTakenTime": {"timestamp": "1609459200"}, "geoData": {"latitude": 51.5007, "longitude": -0.1246, "altitude": 0}}`), 0o644))

	outDir := filepath.Join(root, "out")
	_, err := run(t, "fix", takeout, "--output", outDir, "--journal", filepath.Join(root, "journal.json"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(outDir, "Photos from 2021", "IMG_1.jpg"))
	require.NoError(t, err)
	d, err := exif.ExtractBytes(data)
	require.NoError(t, err)
	require.NotNil(t, d.GPS)
	assert.InDelta(t, 51.5007, d.GPS.Latitude, 1e-6)
	assert.FileExists(t, filepath.Join(root, "journal.json"))
}

func TestFix_RequiresDestination(t *testing.T) {
	_, err := run(t, "fix", t.TempDir())
	var cerr *common.ConfigError
	assert.True(t, errors.As(err, &cerr))
}
