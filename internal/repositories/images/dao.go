package images

import (
	"database/sql"
	"time"

	"github.com/chuckfinca/image-collector/pkg/database"
	"github.com/chuckfinca/image-collector/pkg/models"
)

const (
	imagesTable = "images"
)

// ImageRow represents the database row for a stored image
type ImageRow struct {
	ID        sql.NullInt64  `db:"id" fieldopt:"omitempty"`
	Filename  sql.NullString `db:"filename"`
	FilePath  sql.NullString `db:"file_path"`
	Hash      sql.NullString `db:"hash"`
	Source    sql.NullString `db:"source"`
	DateAdded sql.NullTime   `db:"date_added" fieldopt:"omitempty"`

	NamePrefix       sql.NullString `db:"name_prefix"`
	GivenName        sql.NullString `db:"given_name"`
	MiddleName       sql.NullString `db:"middle_name"`
	FamilyName       sql.NullString `db:"family_name"`
	NameSuffix       sql.NullString `db:"name_suffix"`
	JobTitle         sql.NullString `db:"job_title"`
	Department       sql.NullString `db:"department"`
	OrganizationName sql.NullString `db:"organization_name"`

	PhoneNumbers    database.JSONB[[]string]               `db:"phone_numbers"`
	EmailAddresses  database.JSONB[[]string]               `db:"email_addresses"`
	URLAddresses    database.JSONB[[]string]               `db:"url_addresses"`
	PostalAddresses database.JSONB[[]models.PostalAddress] `db:"postal_addresses"`
	SocialProfiles  database.JSONB[[]models.SocialProfile] `db:"social_profiles"`
}

var imageStruct = database.NewStruct(new(ImageRow))

// FromImage converts a domain model to a database row
func FromImage(img *models.Image) *ImageRow {
	row := &ImageRow{
		ID:        sql.NullInt64{Int64: img.ID, Valid: img.ID != 0},
		Filename:  sql.NullString{String: img.Filename, Valid: img.Filename != ""},
		FilePath:  sql.NullString{String: img.FilePath, Valid: img.FilePath != ""},
		Hash:      sql.NullString{String: img.Hash, Valid: img.Hash != ""},
		Source:    sql.NullString{String: img.Source, Valid: img.Source != ""},
		DateAdded: sql.NullTime{Time: img.DateAdded, Valid: !img.DateAdded.IsZero()},

		PhoneNumbers:    database.JSONB[[]string]{Data: img.ContactFields.PhoneNumbers},
		EmailAddresses:  database.JSONB[[]string]{Data: img.ContactFields.EmailAddresses},
		URLAddresses:    database.JSONB[[]string]{Data: img.ContactFields.URLAddresses},
		PostalAddresses: database.JSONB[[]models.PostalAddress]{Data: img.ContactFields.PostalAddresses},
		SocialProfiles:  database.JSONB[[]models.SocialProfile]{Data: img.ContactFields.SocialProfiles},
	}

	row.NamePrefix = fromScalar(img.ContactFields.NamePrefix)
	row.GivenName = fromScalar(img.ContactFields.GivenName)
	row.MiddleName = fromScalar(img.ContactFields.MiddleName)
	row.FamilyName = fromScalar(img.ContactFields.FamilyName)
	row.NameSuffix = fromScalar(img.ContactFields.NameSuffix)
	row.JobTitle = fromScalar(img.ContactFields.JobTitle)
	row.Department = fromScalar(img.ContactFields.Department)
	row.OrganizationName = fromScalar(img.ContactFields.OrganizationName)

	return row
}

// ToImage converts a database row to a domain model
func ToImage(row *ImageRow) *models.Image {
	return &models.Image{
		ID:        row.ID.Int64,
		Filename:  row.Filename.String,
		FilePath:  row.FilePath.String,
		Hash:      row.Hash.String,
		Source:    row.Source.String,
		DateAdded: row.DateAdded.Time,
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

// ToImages converts a slice of database rows to domain models
func ToImages(rows []ImageRow) []models.Image {
	images := make([]models.Image, len(rows))
	for i, row := range rows {
		images[i] = *ToImage(&row)
	}
	return images
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

// Now returns the current time in UTC
func Now() time.Time {
	return time.Now().UTC()
}
