package kafka

import (
	"strconv"
	"time"
)

// VersionEvent is an event about one version of an image
type VersionEvent struct {
	EventType     string    `json:"event_type"` // version.created, version.updated, version.deleted, version.activated
	ImageID       int64     `json:"image_id"`
	VersionID     int64     `json:"version_id"`
	Tag           string    `json:"tag,omitempty"`
	ChangedFields []string  `json:"changed_fields,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func (e *VersionEvent) Key() string {
	return strconv.FormatInt(e.ImageID, 10)
}

// ImageEvent is an event about a stored image
type ImageEvent struct {
	EventType string    `json:"event_type"` // image.created, image.deleted
	ImageID   int64     `json:"image_id"`
	Hash      string    `json:"hash,omitempty"`
	Source    string    `json:"source,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *ImageEvent) Key() string {
	return strconv.FormatInt(e.ImageID, 10)
}
