package images

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/Gobusters/ectologger"

	imagerepo "github.com/chuckfinca/image-collector/internal/repositories/images"
	"github.com/chuckfinca/image-collector/pkg/diff"
	apperrors "github.com/chuckfinca/image-collector/pkg/errors"
	"github.com/chuckfinca/image-collector/pkg/events"
	"github.com/chuckfinca/image-collector/pkg/models"
	"github.com/chuckfinca/image-collector/pkg/sanitize"
	"github.com/chuckfinca/image-collector/pkg/tracing"
)

const (
	// MaxImageSize is the maximum accepted image payload (20MB)
	MaxImageSize = 20 * 1024 * 1024

	// DefaultDownloadTimeout bounds URL imports
	DefaultDownloadTimeout = 30 * time.Second
)

// Purger is notified when an image disappears so cached version state for it
// can be dropped everywhere.
type Purger interface {
	PurgeImage(ctx context.Context, imageID int64)
}

// Service owns image ingest: binary storage on disk, content hashing and
// de-duplication, the base contact fields, and removal.
type Service struct {
	repo       imagerepo.ImageRepository
	baseDir    string
	downloader *http.Client
	events     *events.Emitter
	purger     Purger
	logger     ectologger.Logger
}

// NewService creates a new image service storing binaries under baseDir
func NewService(repo imagerepo.ImageRepository, baseDir string, emitter *events.Emitter, purger Purger, logger ectologger.Logger) *Service {
	return &Service{
		repo:       repo,
		baseDir:    baseDir,
		downloader: &http.Client{Timeout: DefaultDownloadTimeout},
		events:     emitter,
		purger:     purger,
		logger:     logger,
	}
}

// AddImage stores a locally uploaded image. Uploads with a hash the store has
// already seen return the existing image instead of creating a duplicate row
// or a duplicate file.
func (s *Service) AddImage(ctx context.Context, filename string, data []byte) (*models.Image, error) {
	ctx, span := tracing.StartSpan(ctx, "ImageService.AddImage")
	defer span.End()

	return s.ingest(ctx, filename, data, "local")
}

// AddImageFromURL downloads an image and stores it like a local upload
func (s *Service) AddImageFromURL(ctx context.Context, rawURL string) (*models.Image, error) {
	ctx, span := tracing.StartSpan(ctx, "ImageService.AddImageFromURL")
	defer span.End()

	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, apperrors.NewValidationError("invalid image url").AddField("url", "must be an http or https URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.downloader.Do(req)
	if err != nil {
		return nil, apperrors.NewCollaboratorError("download image", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.NewCollaboratorError("download image", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageSize+1))
	if err != nil {
		return nil, apperrors.NewCollaboratorError("download image", err)
	}
	if len(data) > MaxImageSize {
		return nil, apperrors.NewValidationError("image too large").AddField("url", fmt.Sprintf("payload exceeds %d bytes", MaxImageSize))
	}

	filename := path.Base(parsed.Path)
	if filename == "" || filename == "/" || filename == "." {
		filename = "download"
	}

	img, err := s.ingest(ctx, filename, data, "url")
	if err != nil {
		return nil, err
	}

	return img, nil
}

func (s *Service) ingest(ctx context.Context, filename string, data []byte, source string) (*models.Image, error) {
	if len(data) == 0 {
		return nil, apperrors.NewValidationError("empty image payload").AddField("file", "must not be empty")
	}
	if len(data) > MaxImageSize {
		return nil, apperrors.NewValidationError("image too large").AddField("file", fmt.Sprintf("payload exceeds %d bytes", MaxImageSize))
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	existing, err := s.repo.GetByHash(ctx, hash)
	if err != nil && !imagerepo.IsNotFound(err) {
		return nil, apperrors.NewCollaboratorError("check image hash", err)
	}
	if existing != nil {
		s.logger.WithContext(ctx).WithFields(map[string]any{
			"image_id": existing.ID,
			"hash":     hash,
		}).Info("Duplicate image upload, returning existing record")
		return existing, nil
	}

	relPath := hash + filepath.Ext(filename)
	if err := s.writeFile(relPath, data); err != nil {
		return nil, apperrors.NewCollaboratorError("store image file", err)
	}

	img := &models.Image{
		Filename: filepath.Base(filename),
		FilePath: relPath,
		Hash:     hash,
		Source:   source,
	}

	created, err := s.repo.CreateImage(ctx, img)
	if err != nil {
		// Remove the orphaned file so a retry starts clean.
		if rmErr := os.Remove(filepath.Join(s.baseDir, relPath)); rmErr != nil && !os.IsNotExist(rmErr) {
			s.logger.WithContext(ctx).WithError(rmErr).Warnf("Failed to remove orphaned image file: %s", relPath)
		}
		return nil, apperrors.NewCollaboratorError("create image", err)
	}

	if s.events != nil {
		s.events.ImageCreated(ctx, *created)
	}

	return created, nil
}

func (s *Service) writeFile(relPath string, data []byte) error {
	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return fmt.Errorf("failed to create image directory: %w", err)
	}
	return os.WriteFile(filepath.Join(s.baseDir, relPath), data, 0o644)
}

// GetImage returns one image by id
func (s *Service) GetImage(ctx context.Context, imageID int64) (*models.Image, error) {
	ctx, span := tracing.StartSpan(ctx, "ImageService.GetImage")
	defer span.End()

	img, err := s.repo.FetchImage(ctx, imageID)
	if err != nil {
		if imagerepo.IsNotFound(err) {
			return nil, apperrors.NewNotFoundError("image", imageID)
		}
		return nil, apperrors.NewCollaboratorError("fetch image", err)
	}
	return img, nil
}

// ListImages returns a page of images, newest first
func (s *Service) ListImages(ctx context.Context, limit, offset int) (*models.ImageListResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "ImageService.ListImages")
	defer span.End()

	page, err := s.repo.ListPage(ctx, limit, offset)
	if err != nil {
		return nil, apperrors.NewCollaboratorError("list images", err)
	}
	return page, nil
}

// ReadImageData loads an image's binary payload from disk
func (s *Service) ReadImageData(ctx context.Context, img *models.Image) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, img.FilePath))
	if err != nil {
		return nil, apperrors.NewCollaboratorError("read image file", err)
	}
	return data, nil
}

// UpdateImage applies field edits to an image's base contact fields. Values
// are sanitized first; only fields that actually changed reach the store.
func (s *Service) UpdateImage(ctx context.Context, imageID int64, changes models.ContactFields) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "ImageService.UpdateImage")
	defer span.End()

	img, err := s.GetImage(ctx, imageID)
	if err != nil {
		return nil, err
	}

	result := sanitize.Snapshot(changes)
	if !result.Valid {
		verr := apperrors.NewValidationError("invalid contact fields")
		for id, msgs := range result.InvalidFields() {
			verr.AddField(id, msgs...)
		}
		return nil, verr
	}

	touched := make([]string, 0, len(result.FieldResults))
	for id := range result.FieldResults {
		touched = append(touched, id)
	}

	delta := diff.Fields(img.ContactFields, result.Fields, touched)
	if !delta.HasChanges() {
		return nil, nil
	}

	if err := s.repo.UpdateImage(ctx, imageID, delta.Fields); err != nil {
		return nil, apperrors.NewCollaboratorError("update image", err)
	}

	return delta.ChangedFields, nil
}

// DeleteImage removes the row, the file on disk, and every cached version
// selection pointing at the image. Versions cascade in the store.
func (s *Service) DeleteImage(ctx context.Context, imageID int64) error {
	ctx, span := tracing.StartSpan(ctx, "ImageService.DeleteImage")
	defer span.End()

	img, err := s.GetImage(ctx, imageID)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteImage(ctx, imageID); err != nil {
		if imagerepo.IsNotFound(err) {
			return apperrors.NewNotFoundError("image", imageID)
		}
		return apperrors.NewCollaboratorError("delete image", err)
	}

	if err := os.Remove(filepath.Join(s.baseDir, img.FilePath)); err != nil && !os.IsNotExist(err) {
		s.logger.WithContext(ctx).WithError(err).Warnf("Failed to remove image file: %s", img.FilePath)
	}

	if s.purger != nil {
		s.purger.PurgeImage(ctx, imageID)
	}
	if s.events != nil {
		s.events.ImageDeleted(ctx, imageID)
	}

	return nil
}
