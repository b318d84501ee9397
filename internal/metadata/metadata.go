package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/bstardust/takeout-geotag/internal/geo"
)

var (
	ErrNoGeoData   = errors.New("sidecar has no geoData")
	ErrNoTakenTime = errors.New("sidecar has no photoTakenTime")
)

// Metadata is the JSON sidecar Google Takeout writes next to each photo
type Metadata struct {
	Title          string      `json:"title,omitempty"`
	Description    string      `json:"description,omitempty"`
	ImageViews     string      `json:"imageViews,omitempty"`
	CreationTime   *TimeInfo   `json:"creationTime,omitempty"`
	PhotoTakenTime *TimeInfo   `json:"photoTakenTime,omitempty"`
	GeoData        *GeoData    `json:"geoData,omitempty"`
	GeoDataExif    *GeoData    `json:"geoDataExif,omitempty"`
	CameraData     *CameraData `json:"cameraData,omitempty"`
	People         []Person    `json:"people,omitempty"`
	URL            string      `json:"url,omitempty"`
}

// TimeInfo represents timestamp information
type TimeInfo struct {
	Timestamp string `json:"timestamp"`
	Formatted string `json:"formatted"`
}

// GeoData represents geographical data
type GeoData struct {
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	Altitude      float64 `json:"altitude,omitempty"`
	LatitudeSpan  float64 `json:"latitudeSpan,omitempty"`
	LongitudeSpan float64 `json:"longitudeSpan,omitempty"`
}

// Person represents a person tag
type Person struct {
	Name string `json:"name"`
}

// CameraData represents camera information
type CameraData struct {
	Make  string `json:"make,omitempty"`
	Model string `json:"model,omitempty"`
}

// Extractor decodes sidecar files
type Extractor struct{}

// NewExtractor creates a new metadata extractor
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractFromJSON extracts metadata from a JSON sidecar
func (e *Extractor) ExtractFromJSON(r io.Reader) (*Metadata, error) {
	var metadata Metadata
	if err := json.NewDecoder(r).Decode(&metadata); err != nil {
		return nil, fmt.Errorf("failed to decode JSON metadata: %w", err)
	}
	return &metadata, nil
}

// Position returns the location recorded in geoData
func (m *Metadata) Position() (geo.Position, error) {
	if m.GeoData == nil {
		return geo.Position{}, ErrNoGeoData
	}
	return geo.Position{
		Latitude:  m.GeoData.Latitude,
		Longitude: m.GeoData.Longitude,
		Altitude:  m.GeoData.Altitude,
	}, nil
}

// HasLocation reports whether geoData holds a fix. Takeout writes latitude,
// longitude and altitude as zero when the location is unknown.
func (m *Metadata) HasLocation() bool {
	g := m.GeoData
	return g != nil && (g.Latitude != 0 || g.Longitude != 0 || g.Altitude != 0)
}

// TakenAt parses photoTakenTime, which is Unix seconds in a string
func (m *Metadata) TakenAt() (time.Time, error) {
	if m.PhotoTakenTime == nil || m.PhotoTakenTime.Timestamp == "" {
		return time.Time{}, ErrNoTakenTime
	}
	secs, err := strconv.ParseInt(strings.TrimSpace(m.PhotoTakenTime.Timestamp), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid photoTakenTime %q: %w", m.PhotoTakenTime.Timestamp, err)
	}
	return time.Unix(secs, 0).UTC(), nil
}

// ToMap converts metadata to a map for S3 object metadata
func (m *Metadata) ToMap() map[string]string {
	result := make(map[string]string)

	if m.Title != "" {
		result["title"] = m.Title
	}
	if m.Description != "" {
		result["description"] = m.Description
	}
	if m.ImageViews != "" {
		result["image-views"] = m.ImageViews
	}
	if m.CreationTime != nil {
		result["creation-time"] = m.CreationTime.Timestamp
	}
	if m.PhotoTakenTime != nil {
		result["photo-taken-time"] = m.PhotoTakenTime.Timestamp
	}
	if m.GeoData != nil {
		result["geo-latitude"] = fmt.Sprintf("%f", m.GeoData.Latitude)
		result["geo-longitude"] = fmt.Sprintf("%f", m.GeoData.Longitude)
		if m.GeoData.Altitude != 0 {
			result["geo-altitude"] = fmt.Sprintf("%f", m.GeoData.Altitude)
		}
	}
	if m.CameraData != nil {
		if m.CameraData.Make != "" {
			result["camera-make"] = m.CameraData.Make
		}
		if m.CameraData.Model != "" {
			result["camera-model"] = m.CameraData.Model
		}
	}
	if len(m.People) > 0 {
		var names []string
		for _, person := range m.People {
			names = append(names, person.Name)
		}
		result["people"] = strings.Join(names, ",")
	}
	if m.URL != "" {
		result["url"] = m.URL
	}

	return result
}
