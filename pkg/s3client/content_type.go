package s3client

import (
	"mime"
	"path/filepath"
	"strings"
)

// MIME types for the files a takeout contains
var commonMimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".heic": "image/heic",
	".heif": "image/heif",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".json": "application/json",
}

// DetectContentType determines the content type of a file based on its extension
func DetectContentType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))

	if mimeType, ok := commonMimeTypes[ext]; ok {
		return mimeType
	}
	if mimeType := mime.TypeByExtension(ext); mimeType != "" {
		return mimeType
	}
	return "application/octet-stream"
}
