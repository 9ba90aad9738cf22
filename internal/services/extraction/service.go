package extraction

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/chuckfinca/image-collector/internal/services/images"
	apperrors "github.com/chuckfinca/image-collector/pkg/errors"
	"github.com/chuckfinca/image-collector/pkg/models"
	"github.com/chuckfinca/image-collector/pkg/tracing"
	"github.com/chuckfinca/image-collector/pkg/versioning"
)

// Service runs the extraction pipeline for a stored image: it sends the
// binary to the extraction server, writes the returned fields onto the
// image's base record, and snapshots them as a new tagged version carrying
// the extraction provenance.
type Service struct {
	client *Client
	images *images.Service
	logger ectologger.Logger
}

// NewService creates a new extraction service
func NewService(client *Client, imageService *images.Service, logger ectologger.Logger) *Service {
	return &Service{
		client: client,
		images: imageService,
		logger: logger,
	}
}

// ExtractContact extracts contact fields for the image and creates a tagged
// version from them in the caller's session. The returned version id points
// at the newly created extraction snapshot.
func (s *Service) ExtractContact(ctx context.Context, ctrl *versioning.Controller, imageID int64) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "ExtractionService.ExtractContact")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{"image_id": imageID})
	log.Info("Starting contact extraction")

	img, err := s.images.GetImage(ctx, imageID)
	if err != nil {
		return 0, err
	}

	data, err := s.images.ReadImageData(ctx, img)
	if err != nil {
		return 0, err
	}

	result, err := s.client.Extract(ctx, data)
	if err != nil {
		return 0, apperrors.NewCollaboratorError("extract contact", err)
	}

	// The extracted snapshot becomes the image's new base record, matching
	// what the version copy below will read.
	if _, err := s.images.UpdateImage(ctx, imageID, result.Fields); err != nil {
		return 0, err
	}

	if err := ctrl.Refresh(ctx, imageID); err != nil {
		return 0, err
	}

	meta := result.Metadata
	tag := dedupTag(tagFor(meta), ctrl.Repository().Versions(imageID))

	versionID, err := ctrl.CreateVersion(ctx, imageID, models.CreateVersionRequest{
		Tag:        tag,
		Notes:      notesFor(meta),
		Extraction: &meta,
	})
	if err != nil {
		return 0, err
	}

	log.WithFields(map[string]any{
		"version_id": versionID,
		"tag":        tag,
		"model_id":   meta.ModelID,
	}).Info("Contact extraction complete")

	return versionID, nil
}

func tagFor(meta models.ExtractionMetadata) string {
	return fmt.Sprintf("extracted_%s_v%s", meta.ModelID, meta.ProgramVersion)
}

// dedupTag appends a numeric suffix when the base tag is already taken,
// continuing from the highest suffix seen so far.
func dedupTag(base string, existing []models.Version) string {
	highest := 0
	for _, v := range existing {
		switch {
		case v.Tag == base:
			if highest < 1 {
				highest = 1
			}
		case strings.HasPrefix(v.Tag, base+"-"):
			suffix := v.Tag[len(base)+1:]
			if n, err := strconv.Atoi(suffix); err == nil && n > highest {
				highest = n
			}
		}
	}

	if highest == 0 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, highest+1)
}

func notesFor(meta models.ExtractionMetadata) string {
	lines := []string{
		fmt.Sprintf("Extracted using %s v%s", meta.ProgramName, meta.ProgramVersion),
		fmt.Sprintf("Model: %s (%s/%s)", meta.ModelID, meta.Provider, meta.BaseModel),
	}
	if meta.ExecutionID != "" {
		lines = append(lines, fmt.Sprintf("Execution ID: %s", meta.ExecutionID))
	}
	lines = append(lines, fmt.Sprintf("Timestamp: %s", meta.ExtractedAt.Format("2006-01-02T15:04:05Z07:00")))
	return strings.Join(lines, "\n")
}
