package processor

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bstardust/takeout-geotag/internal/adapter/googletakeout"
	"github.com/bstardust/takeout-geotag/internal/config"
	"github.com/bstardust/takeout-geotag/internal/exif"
	"github.com/bstardust/takeout-geotag/internal/geo"
	"github.com/bstardust/takeout-geotag/internal/journal"
	"github.com/bstardust/takeout-geotag/internal/metadata"
	"github.com/bstardust/takeout-geotag/internal/progress"
	"github.com/bstardust/takeout-geotag/internal/worker"
	"github.com/bstardust/takeout-geotag/pkg/geotag"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Mock S3 Client
type MockS3Client struct {
	mock.Mock
}

func (m *MockS3Client) UploadFile(ctx context.Context, reader io.Reader, objectKey string, size int64, metadata map[string]string, contentType string) error {
	data, _ := io.ReadAll(reader)
	args := m.Called(ctx, data, objectKey, size, metadata, contentType)
	return args.Error(0)
}

func (m *MockS3Client) ObjectExists(ctx context.Context, objectKey string) (bool, error) {
	args := m.Called(ctx, objectKey)
	return args.Bool(0), args.Error(1)
}

func (m *MockS3Client) ListObjects(ctx context.Context, prefix string) ([]minio.ObjectInfo, error) {
	args := m.Called(ctx, prefix)
	return args.Get(0).([]minio.ObjectInfo), args.Error(1)
}

func (m *MockS3Client) GetBucketName() string {
	return m.Called().String(0)
}

func (m *MockS3Client) GetPrefix() string {
	return m.Called().String(0)
}

// Mock Google Takeout
type MockSource struct {
	mock.Mock
}

func (m *MockSource) Name() string {
	return "Takeout"
}

func (m *MockSource) ListItems() []*googletakeout.Item {
	return m.Called().Get(0).([]*googletakeout.Item)
}

func (m *MockSource) ReadFile(path string) ([]byte, error) {
	args := m.Called(path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// Mock Sink
type MockSink struct {
	mock.Mock
}

func (m *MockSink) Write(ctx context.Context, key string, data []byte, meta *metadata.Metadata) error {
	return m.Called(ctx, key, data, meta).Error(0)
}

func (m *MockSink) String() string {
	return "mock"
}

func plainJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8)), nil))
	return buf.Bytes()
}

func sidecar(title string, lat, lon float64) *metadata.Metadata {
	return &metadata.Metadata{
		Title:          title,
		PhotoTakenTime: &metadata.TimeInfo{Timestamp: "1609459200"},
		GeoData:        &metadata.GeoData{Latitude: lat, Longitude: lon, Altitude: 10},
	}
}

// unlocated is a sidecar as Takeout writes it for photos without a location
func unlocated(title string) *metadata.Metadata {
	m := sidecar(title, 0, 0)
	m.GeoData.Altitude = 0
	return m
}

func newConfig() *config.Config {
	cfg := config.New()
	cfg.Batch.Concurrency = 2
	return cfg
}

// isGeotagged matches output bytes that carry the expected position
func isGeotagged(lat, lon float64) interface{} {
	return mock.MatchedBy(func(data []byte) bool {
		d, err := exif.ExtractBytes(data)
		return err == nil && d.GPS != nil &&
			abs(d.GPS.Latitude-lat) < 1e-6 && abs(d.GPS.Longitude-lon) < 1e-6 &&
			d.DateTime != nil && d.DateTime.Equal(time.Unix(1609459200, 0))
	})
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func TestProcessor_Run(t *testing.T) {
	ctx := context.Background()
	src := new(MockSource)
	sink := new(MockSink)
	jnl := journal.New(filepath.Join(t.TempDir(), "journal.json"))

	items := []*googletakeout.Item{
		{SidecarPath: "p/a.jpg.json", MediaPath: "p/a.jpg", Metadata: sidecar("a.jpg", 37.7749, -122.4194)},
		{SidecarPath: "p/b.jpg.json", MediaPath: "p/b.jpg", Metadata: unlocated("b.jpg")},
		{SidecarPath: "p/c.mp4.json", MediaPath: "p/c.mp4", Metadata: sidecar("c.mp4", 1, 1)},
		{SidecarPath: "p/d.jpg.json", Err: errors.New("media file p/d.jpg not found")},
		{SidecarPath: "p/e.jpg.json", MediaPath: "p/e.jpg", Metadata: sidecar("e.jpg", 5, 5)},
	}
	src.On("ListItems").Return(items)
	src.On("ReadFile", "p/a.jpg").Return(plainJPEG(t), nil)
	src.On("ReadFile", "p/e.jpg").Return([]byte("not an image"), nil)
	sink.On("Write", ctx, "out/p/a.jpg", isGeotagged(37.7749, -122.4194), items[0].Metadata).Return(nil)

	p := New(ctx, geotag.New(), src, sink, jnl, worker.NewPool(2), progress.New(), newConfig()).WithKeyPrefix("out")
	summary, err := p.Run()
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Total)
	assert.Equal(t, 1, summary.Completed)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 2, summary.Failed)
	require.Len(t, summary.Failures, 2)
	assert.Equal(t, "out/p/d.jpg.json", summary.Failures[0].Path)
	assert.Equal(t, "out/p/e.jpg", summary.Failures[1].Path)

	src.AssertExpectations(t)
	sink.AssertExpectations(t)
	assert.Equal(t, []string{"Takeout/p/a.jpg.json"}, jnl.ListCompleted())
	assert.FileExists(t, jnl.Path())
}

func TestProcessor_Resume(t *testing.T) {
	ctx := context.Background()
	src := new(MockSource)
	sink := new(MockSink)
	jnl := journal.New(filepath.Join(t.TempDir(), "journal.json"))
	jnl.MarkDone("Takeout/p/a.jpg.json", "Takeout")

	src.On("ListItems").Return([]*googletakeout.Item{
		{SidecarPath: "p/a.jpg.json", MediaPath: "p/a.jpg", Metadata: sidecar("a.jpg", 1, 2)},
	})

	summary, err := New(ctx, geotag.New(), src, sink, jnl, worker.NewPool(1), progress.New(), newConfig()).Run()
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	sink.AssertNotCalled(t, "Write", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessor_DryRunAndSkipTagged(t *testing.T) {
	ctx := context.Background()
	tagged, err := geotag.New().EmbedBytes(geotag.FormatJPEG, plainJPEG(t), geo.Position{Latitude: 3, Longitude: 4}, time.Unix(0, 0))
	require.NoError(t, err)

	src := new(MockSource)
	src.On("ListItems").Return([]*googletakeout.Item{
		{SidecarPath: "a.jpg.json", MediaPath: "a.jpg", Metadata: sidecar("a.jpg", 1, 2)},
		{SidecarPath: "b.jpg.json", MediaPath: "b.jpg", Metadata: sidecar("b.jpg", 1, 2)},
	})
	src.On("ReadFile", "a.jpg").Return(plainJPEG(t), nil)
	src.On("ReadFile", "b.jpg").Return(tagged, nil)

	cfg := newConfig()
	cfg.Batch.DryRun = true
	cfg.Batch.SkipTagged = true
	summary, err := New(ctx, geotag.New(), src, nil, nil, worker.NewPool(2), progress.New(), cfg).Run()
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Completed)
	assert.Equal(t, 1, summary.Skipped)
}

func TestProcessor_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := new(MockSource)
	src.On("ListItems").Return([]*googletakeout.Item{
		{SidecarPath: "a.jpg.json", MediaPath: "a.jpg", Metadata: sidecar("a.jpg", 1, 2)},
	})
	summary, err := New(ctx, geotag.New(), src, new(MockSink), nil, worker.NewPool(1), progress.New(), newConfig()).Run()
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, summary.Completed)
}

func TestProcessor_DirSinkInPlace(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "2021"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "2021", "a.jpg"), plainJPEG(t), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "2021", "a.jpg.json"),
		[]byte(`{"title": "a.jpg", "photoTakenTime": {"timestamp": "1609459200"}, "geoData": {"latitude": -33.8688, "longitude": 151.2093, "altitude": 58}}`), 0o644))

	ctx := context.Background()
	tk, err := googletakeout.Open(ctx, root)
	require.NoError(t, err)
	defer tk.Close()

	cfg := newConfig()
	cfg.Output.InPlace = true
	summary, err := New(ctx, geotag.New(), tk, NewDirSink(root), nil, worker.NewPool(2), progress.New(), cfg).Run()
	require.NoError(t, err)
	require.Equal(t, 1, summary.Completed, "%v", summary.Failures)

	data, err := os.ReadFile(filepath.Join(root, "2021", "a.jpg"))
	require.NoError(t, err)
	d, err := exif.ExtractBytes(data)
	require.NoError(t, err)
	require.NotNil(t, d.GPS)
	assert.InDelta(t, -33.8688, d.GPS.Latitude, 1e-6)
	assert.InDelta(t, 58, d.GPS.Altitude, 1e-3)
}

func TestDirSink_RejectsEscapingKeys(t *testing.T) {
	err := NewDirSink(t.TempDir()).Write(context.Background(), "../x.jpg", []byte("x"), nil)
	assert.Error(t, err)
}

func TestS3Sink_Write(t *testing.T) {
	ctx := context.Background()
	client := new(MockS3Client)
	meta := sidecar("a.jpg", 1, 2)

	client.On("UploadFile", ctx, []byte("jpeg"), "p/a.jpg", int64(4), mock.MatchedBy(func(m map[string]string) bool {
		return m["original-filename"] == "a.jpg" && m["geotag-run-id"] == "run-1" && m["title"] == "a.jpg"
	}), "image/jpeg").Return(errors.New("read: connection reset by peer")).Once()
	client.On("UploadFile", ctx, []byte("jpeg"), "p/a.jpg", int64(4), mock.Anything, "image/jpeg").Return(nil).Once()

	retry := DefaultRetryConfig()
	retry.InitialBackoff = time.Millisecond
	sink := NewS3Sink(client, retry, true, "run-1")
	require.NoError(t, sink.Write(ctx, "p/a.jpg", []byte("jpeg"), meta))
	client.AssertExpectations(t)
}

func TestS3Sink_WithoutMetadata(t *testing.T) {
	ctx := context.Background()
	client := new(MockS3Client)
	client.On("UploadFile", ctx, []byte("png"), "b.png", int64(3), map[string]string{"original-filename": "b.png"}, "image/png").Return(nil)

	sink := NewS3Sink(client, DefaultRetryConfig(), false, "")
	require.NoError(t, sink.Write(ctx, "b.png", []byte("png"), sidecar("b.png", 1, 2)))
	client.AssertExpectations(t)
}

func TestProcessor_ResumeFromBucket(t *testing.T) {
	ctx := context.Background()
	client := new(MockS3Client)
	client.On("ListObjects", ctx, "").Return([]minio.ObjectInfo{{Key: "takeout/p/a.jpg"}, {Key: "takeout/other.jpg"}}, nil).Once()
	client.On("GetPrefix").Return("/takeout/")
	client.On("GetBucketName").Return("photos")
	client.On("UploadFile", ctx, isGeotagged(1, 2), "p/b.jpg", mock.Anything, mock.Anything, "image/jpeg").Return(nil)

	src := new(MockSource)
	src.On("ListItems").Return([]*googletakeout.Item{
		{SidecarPath: "p/a.jpg.json", MediaPath: "p/a.jpg", Metadata: sidecar("a.jpg", 1, 2)},
		{SidecarPath: "p/b.jpg.json", MediaPath: "p/b.jpg", Metadata: sidecar("b.jpg", 1, 2)},
	})
	src.On("ReadFile", "p/b.jpg").Return(plainJPEG(t), nil)

	jnl := journal.New(filepath.Join(t.TempDir(), "journal.json"))
	sink := NewS3Sink(client, DefaultRetryConfig(), false, jnl.RunID())
	summary, err := New(ctx, geotag.New(), src, sink, jnl, worker.NewPool(1), progress.New(), newConfig()).Run()
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Completed)
	assert.True(t, jnl.IsDone("Takeout/p/a.jpg.json"))
	client.AssertExpectations(t)
	client.AssertNotCalled(t, "ObjectExists", mock.Anything, mock.Anything)
	src.AssertNotCalled(t, "ReadFile", "p/a.jpg")
}

func TestS3Sink_ExistsFallsBackWhenListingFails(t *testing.T) {
	ctx := context.Background()
	client := new(MockS3Client)
	client.On("ListObjects", ctx, "").Return([]minio.ObjectInfo(nil), errors.New("AccessDenied")).Once()
	client.On("GetPrefix").Return("")
	client.On("GetBucketName").Return("photos")
	client.On("ObjectExists", ctx, "a.jpg").Return(true, nil).Once()
	client.On("ObjectExists", ctx, "b.jpg").Return(false, nil).Once()

	retry := DefaultRetryConfig()
	retry.Retryable = func(error) bool { return false }
	sink := NewS3Sink(client, retry, false, "")

	ok, err := sink.Exists(ctx, "a.jpg")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = sink.Exists(ctx, "b.jpg")
	require.NoError(t, err)
	assert.False(t, ok)
	client.AssertExpectations(t)
}
