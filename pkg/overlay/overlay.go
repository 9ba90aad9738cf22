// Package overlay merges an image's base contact fields with its active
// version's fields to produce the effective record shown to a consumer.
package overlay

import (
	"github.com/chuckfinca/image-collector/pkg/fields"
	"github.com/chuckfinca/image-collector/pkg/models"
)

// EffectiveRecord is the merged view of an image. OverlaidFrom names the
// version the overlay came from, nil when the base fields are shown as-is.
// The provenance is display metadata only and never persisted.
type EffectiveRecord struct {
	ImageID      int64                `json:"image_id"`
	Fields       models.ContactFields `json:"contact_fields"`
	OverlaidFrom *int64               `json:"overlaid_from,omitempty"`
}

// Resolve produces the effective record for an image. When activeVersionID
// is nil, or does not reference a version in the list, the image's base
// fields are returned untouched. Otherwise the active version's fields win
// wherever they are present; fields absent on the version fall back to the
// image's own value. Arrays are taken whole from the version when non-nil,
// never merged element-wise.
func Resolve(image models.Image, versions []models.Version, activeVersionID *int64) EffectiveRecord {
	record := EffectiveRecord{
		ImageID: image.ID,
		Fields:  image.ContactFields.Clone(),
	}

	if activeVersionID == nil {
		return record
	}

	var active *models.Version
	for i := range versions {
		if versions[i].ID == *activeVersionID {
			active = &versions[i]
			break
		}
	}
	if active == nil {
		return record
	}

	overlaid := active.ContactFields.Clone()
	for _, f := range fields.All {
		switch f.Kind {
		case fields.KindScalar:
			if v := overlaid.Scalar(f.ID); v != nil {
				record.Fields.SetScalar(f.ID, v)
			}
		case fields.KindStringArray:
			if v := overlaid.StringArray(f.ID); v != nil {
				record.Fields.SetStringArray(f.ID, v)
			}
		case fields.KindAddresses:
			if overlaid.PostalAddresses != nil {
				record.Fields.PostalAddresses = overlaid.PostalAddresses
			}
		case fields.KindProfiles:
			if overlaid.SocialProfiles != nil {
				record.Fields.SocialProfiles = overlaid.SocialProfiles
			}
		}
	}

	id := active.ID
	record.OverlaidFrom = &id
	return record
}
