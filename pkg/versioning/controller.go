// Package versioning implements the version-controlled record system around
// contact card images: the per-session version cache and the lifecycle
// controller that orchestrates create, activate, update and delete against
// the store collaborator.
package versioning

import (
	"context"
	"sort"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/chuckfinca/image-collector/pkg/diff"
	apperrors "github.com/chuckfinca/image-collector/pkg/errors"
	"github.com/chuckfinca/image-collector/pkg/models"
	"github.com/chuckfinca/image-collector/pkg/overlay"
	"github.com/chuckfinca/image-collector/pkg/sanitize"
	"github.com/chuckfinca/image-collector/pkg/tracing"
)

// Events receives version lifecycle notifications. Emission never affects
// the outcome of an operation; a nil Events disables it.
type Events interface {
	VersionCreated(ctx context.Context, version models.Version)
	VersionUpdated(ctx context.Context, imageID, versionID int64, changedFields []string)
	VersionDeleted(ctx context.Context, imageID, versionID int64)
	VersionActivated(ctx context.Context, imageID, versionID int64)
}

// Controller orchestrates version lifecycle operations. Every operation is
// one logical unit of work: validate intent against the repository, call the
// store, refresh the cache. The repository is left unchanged whenever the
// store call fails.
type Controller struct {
	store  Store
	repo   *Repository
	events Events
	logger ectologger.Logger
}

// NewController creates a lifecycle controller. events may be nil.
func NewController(store Store, repo *Repository, events Events, logger ectologger.Logger) *Controller {
	return &Controller{
		store:  store,
		repo:   repo,
		events: events,
		logger: logger,
	}
}

// Repository exposes the controller's cache for read paths (overlay, lists)
func (c *Controller) Repository() *Repository {
	return c.repo
}

// Refresh re-fetches an image's versions from the store into the cache. A
// refresh initiated before a newer one never overwrites the newer state.
func (c *Controller) Refresh(ctx context.Context, imageID int64) error {
	ctx, span := tracing.StartSpan(ctx, "versioning.Controller.Refresh")
	defer span.End()

	seq := c.repo.BeginRefresh(imageID)

	versions, err := c.store.FetchVersions(ctx, imageID)
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).Error("Failed to fetch versions")
		return apperrors.NewCollaboratorError("fetch versions", err)
	}

	if !c.repo.SetVersions(imageID, versions, seq) {
		c.logger.WithContext(ctx).WithFields(map[string]any{
			"image_id": imageID,
			"seq":      seq,
		}).Debug("Discarded stale version refresh")
	}

	return nil
}

// CreateVersion creates a new version for an image and selects it. With
// CreateBlank the new version starts empty and any SourceVersionID is
// ignored; otherwise the store deep-copies the source version's fields, or
// the image's base fields when no source resolves. Either the version exists
// and is selected afterward, or nothing changed.
func (c *Controller) CreateVersion(ctx context.Context, imageID int64, req models.CreateVersionRequest) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "versioning.Controller.CreateVersion")
	defer span.End()

	if strings.TrimSpace(req.Tag) == "" {
		return 0, apperrors.NewValidationError("invalid version").AddField("tag", "must not be blank")
	}

	if req.CreateBlank {
		req.SourceVersionID = nil
	}

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"image_id":     imageID,
		"tag":          req.Tag,
		"create_blank": req.CreateBlank,
	}).Debug("Creating version")

	versionID, err := c.store.CreateVersion(ctx, imageID, req)
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).Error("Failed to create version")
		return 0, apperrors.NewCollaboratorError("create version", err)
	}

	if err := c.Refresh(ctx, imageID); err != nil {
		return 0, err
	}

	c.repo.SelectActive(imageID, versionID)

	if c.events != nil {
		if v, _, ok := c.repo.FindVersion(versionID); ok {
			c.events.VersionCreated(ctx, v)
		}
	}

	return versionID, nil
}

// DeleteVersion deletes a version. Deleting an image's sole remaining
// version is refused before any store call. When the deleted version was the
// active selection, the selection moves to the remaining version with the
// most recent creation time, ties broken by highest id.
func (c *Controller) DeleteVersion(ctx context.Context, versionID int64) error {
	ctx, span := tracing.StartSpan(ctx, "versioning.Controller.DeleteVersion")
	defer span.End()

	_, imageID, ok := c.repo.FindVersion(versionID)
	if !ok {
		return apperrors.NewNotFoundError("version", versionID)
	}

	if len(c.repo.Versions(imageID)) <= 1 {
		return apperrors.NewInvariantViolation("cannot delete the only version for image %d", imageID)
	}

	active := c.repo.ActiveVersionID(imageID)
	wasActive := active != nil && *active == versionID

	if err := c.store.DeleteVersion(ctx, versionID); err != nil {
		c.logger.WithContext(ctx).WithError(err).Error("Failed to delete version")
		return apperrors.NewCollaboratorError("delete version", err)
	}

	if err := c.Refresh(ctx, imageID); err != nil {
		return err
	}

	if wasActive {
		c.reassignActive(imageID)
	}

	if c.events != nil {
		c.events.VersionDeleted(ctx, imageID, versionID)
	}

	return nil
}

func (c *Controller) reassignActive(imageID int64) {
	remaining := c.repo.Versions(imageID)
	if len(remaining) == 0 {
		c.repo.ClearActive(imageID)
		return
	}

	sort.Slice(remaining, func(i, j int) bool {
		if !remaining[i].CreatedAt.Equal(remaining[j].CreatedAt) {
			return remaining[i].CreatedAt.After(remaining[j].CreatedAt)
		}
		return remaining[i].ID > remaining[j].ID
	})

	c.repo.SelectActive(imageID, remaining[0].ID)
}

// UpdateVersion sanitizes the raw field changes, diffs them against the
// cached snapshot, and persists only the changed fields. An invalid field
// blocks the whole update; an empty diff succeeds without touching the
// store.
func (c *Controller) UpdateVersion(ctx context.Context, versionID int64, raw models.ContactFields) error {
	ctx, span := tracing.StartSpan(ctx, "versioning.Controller.UpdateVersion")
	defer span.End()

	current, imageID, ok := c.repo.FindVersion(versionID)
	if !ok {
		return apperrors.NewNotFoundError("version", versionID)
	}

	sanitized := sanitize.Snapshot(raw)
	if !sanitized.Valid {
		verr := apperrors.NewValidationError("invalid contact fields")
		for id, msgs := range sanitized.InvalidFields() {
			verr.AddField(id, msgs...)
		}
		return verr
	}

	touched := make([]string, 0, len(sanitized.FieldResults))
	for id := range sanitized.FieldResults {
		touched = append(touched, id)
	}

	changes := diff.Fields(current.ContactFields, sanitized.Fields, touched)
	if !changes.HasChanges() {
		c.logger.WithContext(ctx).WithFields(map[string]any{
			"version_id": versionID,
		}).Debug("No field changes, skipping update")
		return nil
	}

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"version_id":     versionID,
		"changed_fields": changes.ChangedFields,
	}).Debug("Updating version")

	if err := c.store.UpdateVersion(ctx, versionID, changes.Fields); err != nil {
		c.logger.WithContext(ctx).WithError(err).Error("Failed to update version")
		return apperrors.NewCollaboratorError("update version", err)
	}

	if err := c.Refresh(ctx, imageID); err != nil {
		return err
	}

	if c.events != nil {
		c.events.VersionUpdated(ctx, imageID, versionID, changes.ChangedFields)
	}

	return nil
}

// ActivateVersion selects a cached version for display and editing
func (c *Controller) ActivateVersion(ctx context.Context, imageID, versionID int64) error {
	ctx, span := tracing.StartSpan(ctx, "versioning.Controller.ActivateVersion")
	defer span.End()

	if !containsVersion(c.repo.Versions(imageID), versionID) {
		return apperrors.NewNotFoundError("version", versionID)
	}

	c.repo.SelectActive(imageID, versionID)

	if c.events != nil {
		c.events.VersionActivated(ctx, imageID, versionID)
	}

	return nil
}

// DeactivateVersion clears the selection so the image's base fields show
func (c *Controller) DeactivateVersion(imageID int64) {
	c.repo.ClearActive(imageID)
}

// PurgeImage drops everything cached for a deleted image
func (c *Controller) PurgeImage(imageID int64) {
	c.repo.Clear(imageID)
}

// EffectiveRecord resolves the overlay of an image's base fields with its
// active version, from the cache.
func (c *Controller) EffectiveRecord(image models.Image) overlay.EffectiveRecord {
	return overlay.Resolve(image, c.repo.Versions(image.ID), c.repo.ActiveVersionID(image.ID))
}
