package models

import "time"

// Image represents one stored contact card image. The binary payload lives on
// disk; the row keeps its relative path, a content hash for de-duplication,
// and the base contact fields shown when no version is active.
type Image struct {
	ID        int64     `json:"id" db:"id"`
	Filename  string    `json:"filename" db:"filename"`
	FilePath  string    `json:"file_path" db:"file_path"`
	Hash      string    `json:"hash" db:"hash"`
	Source    string    `json:"source" db:"source"` // "url" or "local"
	DateAdded time.Time `json:"date_added" db:"date_added"`

	ContactFields ContactFields `json:"contact_fields"`
}

// ImageListResponse is the response for listing images
type ImageListResponse struct {
	Items      []Image `json:"items"`
	TotalCount int     `json:"total_count"`
}
