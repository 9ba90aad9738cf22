package versioning

import (
	"context"

	"github.com/chuckfinca/image-collector/pkg/models"
)

// Store is the external persistence collaborator the versioning core calls.
// Implementations own copy-on-create (copying from a source version or the
// image's base fields), partial field writes, and the persisted is_active
// bookkeeping. Failures must surface as errors with their cause intact.
type Store interface {
	FetchVersions(ctx context.Context, imageID int64) ([]models.Version, error)
	CreateVersion(ctx context.Context, imageID int64, req models.CreateVersionRequest) (int64, error)
	UpdateVersion(ctx context.Context, versionID int64, changes models.ContactFields) error
	DeleteVersion(ctx context.Context, versionID int64) error
}
