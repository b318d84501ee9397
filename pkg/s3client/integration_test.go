package s3client

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"os"
	"testing"
	"time"

	"github.com/bstardust/takeout-geotag/internal/geo"
	"github.com/bstardust/takeout-geotag/internal/jpegseg"
	"github.com/bstardust/takeout-geotag/internal/tiffexif"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Integration tests require a running S3-compatible server
// You can use MinIO in Docker for local testing:
// docker run -p 9000:9000 -p 9001:9001 minio/minio server /data --console-address ":9001"

func TestIntegrationUpload(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client, err := New(ctx, Config{
		Endpoint:  getEnvOrDefault("TEST_S3_ENDPOINT", "localhost:9000"),
		Region:    getEnvOrDefault("TEST_S3_REGION", "us-east-1"),
		Bucket:    getEnvOrDefault("TEST_S3_BUCKET", "test-bucket"),
		AccessKey: getEnvOrDefault("TEST_S3_ACCESS_KEY", "minioadmin"),
		SecretKey: getEnvOrDefault("TEST_S3_SECRET_KEY", "minioadmin"),
		UseSSL:    os.Getenv("TEST_S3_USE_SSL") == "true",
		Prefix:    "integration-test",
	})
	require.NoError(t, err, "Failed to create S3 client")

	defer func() {
		objects, err := client.ListObjects(context.Background(), "")
		if err == nil {
			for _, obj := range objects {
				client.client.(*minio.Client).RemoveObject(context.Background(), client.config.Bucket, obj.Key, minio.RemoveObjectOptions{})
			}
		}
	}()

	var plain bytes.Buffer
	require.NoError(t, jpeg.Encode(&plain, image.NewGray(image.Rect(0, 0, 8, 8)), nil))
	tagged, err := jpegseg.Rewrite(plain.Bytes(), tiffexif.NewBlock(geo.Position{Latitude: 1, Longitude: 2}, time.Now()))
	require.NoError(t, err)

	err = client.UploadFile(ctx, bytes.NewReader(tagged), "photos/a.jpg", int64(len(tagged)),
		map[string]string{"title": "a.jpg"}, DetectContentType("a.jpg"))
	require.NoError(t, err)

	exists, err := client.ObjectExists(ctx, "photos/a.jpg")
	require.NoError(t, err)
	assert.True(t, exists)

	objects, err := client.ListObjects(ctx, "photos")
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, int64(len(tagged)), objects[0].Size)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
