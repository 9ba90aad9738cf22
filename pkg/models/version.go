package models

import "time"

// Version is a named, independently editable snapshot of an image's contact
// fields. A version belongs to exactly one image and never outlives it.
type Version struct {
	ID        int64     `json:"id" db:"id"`
	ImageID   int64     `json:"image_id" db:"image_id"`
	Tag       string    `json:"tag" db:"tag"`
	Notes     string    `json:"notes,omitempty" db:"notes"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// IsActive is the store-declared "most relevant" version. It seeds the
	// client's selection on first load and is otherwise independent of it.
	IsActive bool `json:"is_active" db:"is_active"`

	ContactFields ContactFields `json:"contact_fields"`

	// Extraction holds provenance when this version originated from the
	// extraction service, nil otherwise.
	Extraction *ExtractionMetadata `json:"extraction,omitempty"`
}

// ExtractionMetadata records which model/program produced a version's fields
type ExtractionMetadata struct {
	ModelID        string    `json:"model_id" db:"model_id"`
	ProgramID      string    `json:"program_id,omitempty" db:"program_id"`
	ProgramName    string    `json:"program_name,omitempty" db:"program_name"`
	ProgramVersion string    `json:"program_version,omitempty" db:"program_version"`
	Provider       string    `json:"provider,omitempty" db:"provider"`
	BaseModel      string    `json:"base_model,omitempty" db:"base_model"`
	ExecutionID    string    `json:"execution_id,omitempty" db:"execution_id"`
	ExtractedAt    time.Time `json:"extracted_at" db:"extracted_at"`
}

// CreateVersionRequest is the request for creating a version
type CreateVersionRequest struct {
	Tag             string `json:"tag" validate:"required"`
	SourceVersionID *int64 `json:"source_version_id,omitempty"`
	Notes           string `json:"notes,omitempty"`
	CreateBlank     bool   `json:"create_blank"`

	// Extraction is set only when the version is created by the extraction
	// pipeline; user-created versions leave it nil.
	Extraction *ExtractionMetadata `json:"-"`
}

// UpdateVersionRequest carries the raw (unsanitized) field changes for a
// version. Only non-nil members are treated as edits.
type UpdateVersionRequest struct {
	ContactFields
}

// VersionListResponse is the response for listing an image's versions
type VersionListResponse struct {
	Items           []Version `json:"items"`
	ActiveVersionID *int64    `json:"active_version_id,omitempty"`
}
