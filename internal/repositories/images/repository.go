package images

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

// ErrNotFound is returned when an image does not exist
var ErrNotFound = errors.New("image not found")

// IsNotFound reports whether err means the image does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ImageRepository is the persistence layer for stored images
type ImageRepository interface {
	CreateImage(ctx context.Context, img *models.Image) (*models.Image, error)
	FetchImage(ctx context.Context, imageID int64) (*models.Image, error)
	GetByHash(ctx context.Context, hash string) (*models.Image, error)
	ListImages(ctx context.Context) ([]models.Image, error)
	ListPage(ctx context.Context, limit, offset int) (*models.ImageListResponse, error)
	UpdateImage(ctx context.Context, imageID int64, changes models.ContactFields) error
	DeleteImage(ctx context.Context, imageID int64) error
}

// Repository implements ImageRepository against Postgres
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new image repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// CreateImage inserts an image row. An existing image with the same content
// hash is returned instead of inserting a duplicate.
func (r *Repository) CreateImage(ctx context.Context, img *models.Image) (*models.Image, error) {
	ctx, span := tracing.StartSpan(ctx, "ImageRepository.CreateImage")
	defer span.End()

	existing, err := r.GetByHash(ctx, img.Hash)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		r.logger.WithContext(ctx).WithFields(map[string]any{
			"image_id": existing.ID,
			"hash":     img.Hash,
		}).Debug("Image already stored, returning existing row")
		return existing, nil
	}

	img.DateAdded = Now()

	row := FromImage(img)
	ib := imageStruct.InsertInto(imagesTable, row).Returning("id")
	query, args := ib.Build()

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"filename": img.Filename,
		"hash":     img.Hash,
		"source":   img.Source,
	}).Debug("Creating image")

	if err := r.db.QueryRowxContext(ctx, query, args...).Scan(&img.ID); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create image")
		return nil, errors.Wrap(err, "create image")
	}

	return img, nil
}

// FetchImage returns one image by id
func (r *Repository) FetchImage(ctx context.Context, imageID int64) (*models.Image, error) {
	ctx, span := tracing.StartSpan(ctx, "ImageRepository.FetchImage")
	defer span.End()

	sb := imageStruct.SelectFrom(imagesTable)
	sb.Where(sb.Equal("id", imageID))

	query, args := sb.Build()

	var row ImageRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to fetch image")
		return nil, errors.Wrap(err, "fetch image")
	}

	return ToImage(&row), nil
}

// GetByHash returns the image with the given content hash
func (r *Repository) GetByHash(ctx context.Context, hash string) (*models.Image, error) {
	ctx, span := tracing.StartSpan(ctx, "ImageRepository.GetByHash")
	defer span.End()

	sb := imageStruct.SelectFrom(imagesTable)
	sb.Where(sb.Equal("hash", hash))

	query, args := sb.Build()

	var row ImageRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get image by hash")
		return nil, errors.Wrap(err, "get image by hash")
	}

	return ToImage(&row), nil
}

// ListImages returns every stored image, newest first
func (r *Repository) ListImages(ctx context.Context) ([]models.Image, error) {
	ctx, span := tracing.StartSpan(ctx, "ImageRepository.ListImages")
	defer span.End()

	sb := imageStruct.SelectFrom(imagesTable)
	sb.OrderBy("date_added").Desc()

	query, args := sb.Build()

	var rows []ImageRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list images")
		return nil, errors.Wrap(err, "list images")
	}

	return ToImages(rows), nil
}

// ListPage returns one page of images plus the total count
func (r *Repository) ListPage(ctx context.Context, limit, offset int) (*models.ImageListResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "ImageRepository.ListPage")
	defer span.End()

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM images`); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count images")
		return nil, errors.Wrap(err, "count images")
	}

	sb := imageStruct.SelectFrom(imagesTable)
	sb.OrderBy("date_added").Desc()
	sb.Limit(limit).Offset(offset)

	query, args := sb.Build()

	var rows []ImageRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list images")
		return nil, errors.Wrap(err, "list images")
	}

	return &models.ImageListResponse{
		Items:      ToImages(rows),
		TotalCount: total,
	}, nil
}

// UpdateImage writes only the base fields present in changes
func (r *Repository) UpdateImage(ctx context.Context, imageID int64, changes models.ContactFields) error {
	ctx, span := tracing.StartSpan(ctx, "ImageRepository.UpdateImage")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(imagesTable)

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
	ub.Where(ub.Equal("id", imageID))

	query, args := ub.Build()

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update image")
		return errors.Wrap(err, "update image")
	}

	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteImage removes an image row; versions cascade
func (r *Repository) DeleteImage(ctx context.Context, imageID int64) error {
	ctx, span := tracing.StartSpan(ctx, "ImageRepository.DeleteImage")
	defer span.End()

	result, err := r.db.ExecContext(ctx, `DELETE FROM images WHERE id = $1`, imageID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete image")
		return errors.Wrap(err, "delete image")
	}

	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}

	return nil
}
