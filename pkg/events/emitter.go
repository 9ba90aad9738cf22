// Package events handles event emission for image and version lifecycle
// changes.
package events

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/chuckfinca/image-collector/pkg/kafka"
	"github.com/chuckfinca/image-collector/pkg/models"
	"github.com/chuckfinca/image-collector/pkg/tracing"
)

// Emitter publishes lifecycle events. Emission failures are logged and
// swallowed so a broker outage never fails the originating operation.
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

func (e *Emitter) VersionCreated(ctx context.Context, version models.Version) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.VersionCreated")
	defer span.End()

	event := &kafka.VersionEvent{
		EventType: "version.created",
		ImageID:   version.ImageID,
		VersionID: version.ID,
		Tag:       version.Tag,
	}

	if err := e.producer.PublishVersionEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit version.created event")
	}
}

func (e *Emitter) VersionUpdated(ctx context.Context, imageID, versionID int64, changedFields []string) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.VersionUpdated")
	defer span.End()

	event := &kafka.VersionEvent{
		EventType:     "version.updated",
		ImageID:       imageID,
		VersionID:     versionID,
		ChangedFields: changedFields,
	}

	if err := e.producer.PublishVersionEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit version.updated event")
	}
}

func (e *Emitter) VersionDeleted(ctx context.Context, imageID, versionID int64) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.VersionDeleted")
	defer span.End()

	event := &kafka.VersionEvent{
		EventType: "version.deleted",
		ImageID:   imageID,
		VersionID: versionID,
	}

	if err := e.producer.PublishVersionEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit version.deleted event")
	}
}

func (e *Emitter) VersionActivated(ctx context.Context, imageID, versionID int64) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.VersionActivated")
	defer span.End()

	event := &kafka.VersionEvent{
		EventType: "version.activated",
		ImageID:   imageID,
		VersionID: versionID,
	}

	if err := e.producer.PublishVersionEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit version.activated event")
	}
}

func (e *Emitter) ImageCreated(ctx context.Context, image models.Image) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.ImageCreated")
	defer span.End()

	event := &kafka.ImageEvent{
		EventType: "image.created",
		ImageID:   image.ID,
		Hash:      image.Hash,
		Source:    image.Source,
	}

	if err := e.producer.PublishImageEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit image.created event")
	}
}

func (e *Emitter) ImageDeleted(ctx context.Context, imageID int64) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.ImageDeleted")
	defer span.End()

	event := &kafka.ImageEvent{
		EventType: "image.deleted",
		ImageID:   imageID,
	}

	if err := e.producer.PublishImageEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit image.deleted event")
	}
}
