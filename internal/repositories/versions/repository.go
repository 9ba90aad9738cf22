package versions

import (
	"context"
	"database/sql"

	"github.com/Gobusters/ectologger"
	"github.com/pkg/errors"

	"github.com/chuckfinca/image-collector/pkg/database"
	"github.com/chuckfinca/image-collector/pkg/fields"
	"github.com/chuckfinca/image-collector/pkg/models"
	"github.com/chuckfinca/image-collector/pkg/tracing"
)

const contactColumns = `name_prefix, given_name, middle_name, family_name, name_suffix,
	job_title, department, organization_name,
	phone_numbers, email_addresses, url_addresses, postal_addresses, social_profiles`

// The copy happens inside the database so a concurrent edit of the source
// can never produce a half-copied snapshot.
const (
	insertFromImageSQL = `
		INSERT INTO image_versions (image_id, tag, notes, is_active, extraction, ` + contactColumns + `)
		SELECT id, $2, $3, TRUE, $4::jsonb, ` + contactColumns + `
		FROM images WHERE id = $1
		RETURNING id`

	insertFromVersionSQL = `
		INSERT INTO image_versions (image_id, tag, notes, is_active, extraction, ` + contactColumns + `)
		SELECT image_id, $2, $3, TRUE, $4::jsonb, ` + contactColumns + `
		FROM image_versions WHERE id = $5 AND image_id = $1
		RETURNING id`

	insertBlankSQL = `
		INSERT INTO image_versions (image_id, tag, notes, is_active, extraction)
		VALUES ($1, $2, $3, TRUE, $4::jsonb)
		RETURNING id`

	deactivateSQL = `UPDATE image_versions SET is_active = FALSE WHERE image_id = $1`

	reassignActiveSQL = `
		UPDATE image_versions SET is_active = TRUE
		WHERE id = (
			SELECT id FROM image_versions
			WHERE image_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		)`
)

// VersionRepository is the persistence layer for image versions
type VersionRepository interface {
	FetchVersions(ctx context.Context, imageID int64) ([]models.Version, error)
	GetByID(ctx context.Context, versionID int64) (*models.Version, error)
	CreateVersion(ctx context.Context, imageID int64, req models.CreateVersionRequest) (int64, error)
	UpdateVersion(ctx context.Context, versionID int64, changes models.ContactFields) error
	DeleteVersion(ctx context.Context, versionID int64) error
}

// Repository implements VersionRepository against Postgres
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new version repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// FetchVersions returns every version of an image, oldest first
func (r *Repository) FetchVersions(ctx context.Context, imageID int64) ([]models.Version, error) {
	ctx, span := tracing.StartSpan(ctx, "VersionRepository.FetchVersions")
	defer span.End()

	sb := versionStruct.SelectFrom(versionsTable)
	sb.Where(sb.Equal("image_id", imageID))
	sb.OrderBy("created_at", "id").Asc()

	query, args := sb.Build()

	var rows []VersionRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to fetch versions")
		return nil, errors.Wrap(err, "fetch versions")
	}

	return ToVersions(rows), nil
}

// GetByID returns a single version
func (r *Repository) GetByID(ctx context.Context, versionID int64) (*models.Version, error) {
	ctx, span := tracing.StartSpan(ctx, "VersionRepository.GetByID")
	defer span.End()

	sb := versionStruct.SelectFrom(versionsTable)
	sb.Where(sb.Equal("id", versionID))

	query, args := sb.Build()

	var row VersionRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Wrapf(err, "version %d", versionID)
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get version")
		return nil, errors.Wrap(err, "get version")
	}

	return ToVersion(&row), nil
}

// CreateVersion creates a version and makes it the store-active version for
// its image. Without CreateBlank the snapshot is copied from the source
// version, or from the image's base fields when no source resolves.
func (r *Repository) CreateVersion(ctx context.Context, imageID int64, req models.CreateVersionRequest) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "VersionRepository.CreateVersion")
	defer span.End()

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"image_id":     imageID,
		"tag":          req.Tag,
		"create_blank": req.CreateBlank,
	}).Debug("Creating version")

	txCtx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.ExecContext(txCtx, deactivateSQL, imageID); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to deactivate versions")
		return 0, errors.Wrap(err, "deactivate versions")
	}

	extraction := database.JSONB[*models.ExtractionMetadata]{Data: req.Extraction}

	var versionID int64
	switch {
	case req.CreateBlank:
		err = tx.QueryRowxContext(txCtx, insertBlankSQL, imageID, req.Tag, req.Notes, extraction).Scan(&versionID)
	case req.SourceVersionID != nil:
		err = tx.QueryRowxContext(txCtx, insertFromVersionSQL, imageID, req.Tag, req.Notes, extraction, *req.SourceVersionID).Scan(&versionID)
		if err == sql.ErrNoRows {
			// source vanished, fall back to the image's base fields
			err = tx.QueryRowxContext(txCtx, insertFromImageSQL, imageID, req.Tag, req.Notes, extraction).Scan(&versionID)
		}
	default:
		err = tx.QueryRowxContext(txCtx, insertFromImageSQL, imageID, req.Tag, req.Notes, extraction).Scan(&versionID)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create version")
		return 0, errors.Wrap(err, "create version")
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	return versionID, nil
}

// UpdateVersion writes only the fields present in changes
func (r *Repository) UpdateVersion(ctx context.Context, versionID int64, changes models.ContactFields) error {
	ctx, span := tracing.StartSpan(ctx, "VersionRepository.UpdateVersion")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(versionsTable)

	var assigns []string
	for _, f := range fields.All {
		switch f.Kind {
		case fields.KindScalar:
			if v := changes.Scalar(f.ID); v != nil {
				assigns = append(assigns, ub.Assign(f.ID, *v))
			}
		case fields.KindStringArray:
			if v := changes.StringArray(f.ID); v != nil {
				assigns = append(assigns, ub.Assign(f.ID, database.JSONB[[]string]{Data: v}))
			}
		case fields.KindAddresses:
			if changes.PostalAddresses != nil {
				assigns = append(assigns, ub.Assign(f.ID, database.JSONB[[]models.PostalAddress]{Data: changes.PostalAddresses}))
			}
		case fields.KindProfiles:
			if changes.SocialProfiles != nil {
				assigns = append(assigns, ub.Assign(f.ID, database.JSONB[[]models.SocialProfile]{Data: changes.SocialProfiles}))
			}
		}
	}
	if len(assigns) == 0 {
		return nil
	}

	ub.Set(assigns...)
	ub.Where(ub.Equal("id", versionID))

	query, args := ub.Build()

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"version_id": versionID,
		"fields":     len(assigns),
	}).Debug("Updating version")

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update version")
		return errors.Wrap(err, "update version")
	}

	if affected, _ := result.RowsAffected(); affected == 0 {
		return errors.Errorf("version %d not found", versionID)
	}

	return nil
}

// DeleteVersion deletes a version. When the deleted version was the
// store-active one the flag moves to the image's most recently created
// remaining version.
func (r *Repository) DeleteVersion(ctx context.Context, versionID int64) error {
	ctx, span := tracing.StartSpan(ctx, "VersionRepository.DeleteVersion")
	defer span.End()

	txCtx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var row struct {
		ImageID  int64 `db:"image_id"`
		IsActive bool  `db:"is_active"`
	}
	err = tx.GetContext(txCtx, &row, `SELECT image_id, is_active FROM image_versions WHERE id = $1`, versionID)
	if err != nil {
		return errors.Wrapf(err, "version %d", versionID)
	}

	if _, err := tx.ExecContext(txCtx, `DELETE FROM image_versions WHERE id = $1`, versionID); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete version")
		return errors.Wrap(err, "delete version")
	}

	if row.IsActive {
		if _, err := tx.ExecContext(txCtx, reassignActiveSQL, row.ImageID); err != nil {
			r.logger.WithContext(ctx).WithError(err).Error("Failed to reassign active version")
			return errors.Wrap(err, "reassign active version")
		}
	}

	return tx.Commit(ctx)
}
