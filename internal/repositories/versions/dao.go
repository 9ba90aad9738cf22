package versions

import (
	"database/sql"

	"github.com/chuckfinca/image-collector/pkg/database"
	"github.com/chuckfinca/image-collector/pkg/models"
)

const (
	versionsTable = "image_versions"
)

// VersionRow represents the database row for a version. Contact scalars are
// nullable columns; NULL means the field is absent from the snapshot, which
// is distinct from an explicitly empty string.
type VersionRow struct {
	ID        sql.NullInt64  `db:"id" fieldopt:"omitempty"`
	ImageID   sql.NullInt64  `db:"image_id"`
	Tag       sql.NullString `db:"tag"`
	Notes     sql.NullString `db:"notes"`
	CreatedAt sql.NullTime   `db:"created_at" fieldopt:"omitempty"`
	IsActive  sql.NullBool   `db:"is_active"`

	NamePrefix       sql.NullString `db:"name_prefix"`
	GivenName        sql.NullString `db:"given_name"`
	MiddleName       sql.NullString `db:"middle_name"`
	FamilyName       sql.NullString `db:"family_name"`
	NameSuffix       sql.NullString `db:"name_suffix"`
	JobTitle         sql.NullString `db:"job_title"`
	Department       sql.NullString `db:"department"`
	OrganizationName sql.NullString `db:"organization_name"`

	PhoneNumbers    database.JSONB[[]string]                   `db:"phone_numbers"`
	EmailAddresses  database.JSONB[[]string]                   `db:"email_addresses"`
	URLAddresses    database.JSONB[[]string]                   `db:"url_addresses"`
	PostalAddresses database.JSONB[[]models.PostalAddress]     `db:"postal_addresses"`
	SocialProfiles  database.JSONB[[]models.SocialProfile]     `db:"social_profiles"`
	Extraction      database.JSONB[*models.ExtractionMetadata] `db:"extraction"`
}

var versionStruct = database.NewStruct(new(VersionRow))

// FromVersion converts a domain model to a database row
func FromVersion(v *models.Version) *VersionRow {
	row := &VersionRow{
		ID:        sql.NullInt64{Int64: v.ID, Valid: v.ID != 0},
		ImageID:   sql.NullInt64{Int64: v.ImageID, Valid: v.ImageID != 0},
		Tag:       sql.NullString{String: v.Tag, Valid: v.Tag != ""},
		Notes:     sql.NullString{String: v.Notes, Valid: v.Notes != ""},
		CreatedAt: sql.NullTime{Time: v.CreatedAt, Valid: !v.CreatedAt.IsZero()},
		IsActive:  sql.NullBool{Bool: v.IsActive, Valid: true},

		PhoneNumbers:    database.JSONB[[]string]{Data: v.ContactFields.PhoneNumbers},
		EmailAddresses:  database.JSONB[[]string]{Data: v.ContactFields.EmailAddresses},
		URLAddresses:    database.JSONB[[]string]{Data: v.ContactFields.URLAddresses},
		PostalAddresses: database.JSONB[[]models.PostalAddress]{Data: v.ContactFields.PostalAddresses},
		SocialProfiles:  database.JSONB[[]models.SocialProfile]{Data: v.ContactFields.SocialProfiles},
		Extraction:      database.JSONB[*models.ExtractionMetadata]{Data: v.Extraction},
	}

	row.NamePrefix = fromScalar(v.ContactFields.NamePrefix)
	row.GivenName = fromScalar(v.ContactFields.GivenName)
	row.MiddleName = fromScalar(v.ContactFields.MiddleName)
	row.FamilyName = fromScalar(v.ContactFields.FamilyName)
	row.NameSuffix = fromScalar(v.ContactFields.NameSuffix)
	row.JobTitle = fromScalar(v.ContactFields.JobTitle)
	row.Department = fromScalar(v.ContactFields.Department)
	row.OrganizationName = fromScalar(v.ContactFields.OrganizationName)

	return row
}

// ToVersion converts a database row to a domain model
func ToVersion(row *VersionRow) *models.Version {
	return &models.Version{
		ID:         row.ID.Int64,
		ImageID:    row.ImageID.Int64,
		Tag:        row.Tag.String,
		Notes:      row.Notes.String,
		CreatedAt:  row.CreatedAt.Time,
		IsActive:   row.IsActive.Bool,
		Extraction: row.Extraction.Data,
		ContactFields: models.ContactFields{
			NamePrefix:       toScalar(row.NamePrefix),
			GivenName:        toScalar(row.GivenName),
			MiddleName:       toScalar(row.MiddleName),
			FamilyName:       toScalar(row.FamilyName),
			NameSuffix:       toScalar(row.NameSuffix),
			JobTitle:         toScalar(row.JobTitle),
			Department:       toScalar(row.Department),
			OrganizationName: toScalar(row.OrganizationName),
			PhoneNumbers:     row.PhoneNumbers.Data,
			EmailAddresses:   row.EmailAddresses.Data,
			URLAddresses:     row.URLAddresses.Data,
			PostalAddresses:  row.PostalAddresses.Data,
			SocialProfiles:   row.SocialProfiles.Data,
		},
	}
}

// ToVersions converts a slice of database rows to domain models
func ToVersions(rows []VersionRow) []models.Version {
	versions := make([]models.Version, len(rows))
	for i, row := range rows {
		versions[i] = *ToVersion(&row)
	}
	return versions
}

func fromScalar(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func toScalar(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
