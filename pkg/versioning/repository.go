package versioning

import (
	"sync"

	"github.com/chuckfinca/image-collector/pkg/models"
)

// Repository caches each image's version list and the client-selected active
// version. It is constructed per session and torn down with it; nothing here
// is ambient or shared across sessions.
//
// The store's is_active flag only seeds the selection on the first
// population for an image. After that the client's selection is independent
// and survives refreshes until it references a version that no longer
// exists.
type Repository struct {
	mu     sync.Mutex
	images map[int64]*imageState
}

type imageState struct {
	versions []models.Version
	activeID *int64
	seeded   bool

	// refresh sequencing: a refresh initiated later always beats one that
	// merely arrived later
	nextSeq    uint64
	appliedSeq uint64
}

// NewRepository creates an empty repository
func NewRepository() *Repository {
	return &Repository{
		images: map[int64]*imageState{},
	}
}

func (r *Repository) state(imageID int64) *imageState {
	st, ok := r.images[imageID]
	if !ok {
		st = &imageState{}
		r.images[imageID] = st
	}
	return st
}

// BeginRefresh reserves a sequence number for a refresh of the given image.
// The caller passes it back to SetVersions once the fetch completes.
func (r *Repository) BeginRefresh(imageID int64) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.state(imageID)
	st.nextSeq++
	return st.nextSeq
}

// SetVersions replaces the cached list for an image. Returns false and
// leaves the cache untouched when a refresh initiated after this one has
// already been applied.
func (r *Repository) SetVersions(imageID int64, versions []models.Version, seq uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.state(imageID)
	if seq <= st.appliedSeq {
		return false
	}
	st.appliedSeq = seq

	st.versions = append([]models.Version(nil), versions...)

	if !st.seeded {
		st.seeded = true
		for _, v := range st.versions {
			if v.IsActive {
				id := v.ID
				st.activeID = &id
				break
			}
		}
		return true
	}

	// Preserve the client's selection unless it dangles
	if st.activeID != nil && !containsVersion(st.versions, *st.activeID) {
		st.activeID = nil
	}

	return true
}

// Versions returns the cached version list for an image
func (r *Repository) Versions(imageID int64) []models.Version {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.images[imageID]
	if !ok {
		return nil
	}
	return append([]models.Version(nil), st.versions...)
}

// ActiveVersionID returns the client-selected version id, nil when none
func (r *Repository) ActiveVersionID(imageID int64) *int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.images[imageID]
	if !ok || st.activeID == nil {
		return nil
	}
	id := *st.activeID
	return &id
}

// SelectActive points the selection at a cached version. A version id that
// does not belong to the image's cached list is ignored.
func (r *Repository) SelectActive(imageID, versionID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.images[imageID]
	if !ok || !containsVersion(st.versions, versionID) {
		return
	}
	st.activeID = &versionID
}

// ClearActive drops the selection so the image's base fields show again
func (r *Repository) ClearActive(imageID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if st, ok := r.images[imageID]; ok {
		st.activeID = nil
	}
}

// Clear drops everything cached for an image, used when the image itself is
// deleted.
func (r *Repository) Clear(imageID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.images, imageID)
}

// FindVersion returns a cached version and its owning image by version id
func (r *Repository) FindVersion(versionID int64) (models.Version, int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for imageID, st := range r.images {
		for _, v := range st.versions {
			if v.ID == versionID {
				return v, imageID, true
			}
		}
	}
	return models.Version{}, 0, false
}

func containsVersion(versions []models.Version, id int64) bool {
	for _, v := range versions {
		if v.ID == id {
			return true
		}
	}
	return false
}
