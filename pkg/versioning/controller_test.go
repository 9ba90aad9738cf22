package versioning

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/chuckfinca/image-collector/pkg/errors"
	"github.com/chuckfinca/image-collector/pkg/models"
)

func ptr[T any](v T) *T {
	return &v
}

// fakeStore is an in-memory Store with the same copy-on-create semantics as
// the real one.
type fakeStore struct {
	nextID     int64
	clock      time.Time
	versions   map[int64][]models.Version
	baseFields map[int64]models.ContactFields

	failFetch  error
	failCreate error
	failUpdate error
	failDelete error

	createCalls int
	updateCalls int
	deleteCalls int
	lastUpdate  models.ContactFields
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		clock:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		versions:   map[int64][]models.Version{},
		baseFields: map[int64]models.ContactFields{},
	}
}

func (f *fakeStore) FetchVersions(_ context.Context, imageID int64) ([]models.Version, error) {
	if f.failFetch != nil {
		return nil, f.failFetch
	}
	return append([]models.Version(nil), f.versions[imageID]...), nil
}

func (f *fakeStore) CreateVersion(_ context.Context, imageID int64, req models.CreateVersionRequest) (int64, error) {
	f.createCalls++
	if f.failCreate != nil {
		return 0, f.failCreate
	}

	var snapshot models.ContactFields
	if !req.CreateBlank {
		snapshot = f.baseFields[imageID].Clone()
		if req.SourceVersionID != nil {
			for _, v := range f.versions[imageID] {
				if v.ID == *req.SourceVersionID {
					snapshot = v.ContactFields.Clone()
					break
				}
			}
		}
	}

	f.nextID++
	f.clock = f.clock.Add(time.Second)
	f.versions[imageID] = append(f.versions[imageID], models.Version{
		ID:            f.nextID,
		ImageID:       imageID,
		Tag:           req.Tag,
		Notes:         req.Notes,
		CreatedAt:     f.clock,
		ContactFields: snapshot,
		Extraction:    req.Extraction,
	})
	return f.nextID, nil
}

func (f *fakeStore) UpdateVersion(_ context.Context, versionID int64, changes models.ContactFields) error {
	f.updateCalls++
	if f.failUpdate != nil {
		return f.failUpdate
	}
	f.lastUpdate = changes

	for imageID, list := range f.versions {
		for i, v := range list {
			if v.ID != versionID {
				continue
			}
			merged := v.ContactFields.Clone()
			if changes.GivenName != nil {
				merged.GivenName = changes.GivenName
			}
			if changes.FamilyName != nil {
				merged.FamilyName = changes.FamilyName
			}
			if changes.EmailAddresses != nil {
				merged.EmailAddresses = changes.EmailAddresses
			}
			if changes.PhoneNumbers != nil {
				merged.PhoneNumbers = changes.PhoneNumbers
			}
			f.versions[imageID][i].ContactFields = merged
			return nil
		}
	}
	return errors.New("version not found")
}

func (f *fakeStore) DeleteVersion(_ context.Context, versionID int64) error {
	f.deleteCalls++
	if f.failDelete != nil {
		return f.failDelete
	}

	for imageID, list := range f.versions {
		for i, v := range list {
			if v.ID == versionID {
				f.versions[imageID] = append(list[:i:i], list[i+1:]...)
				return nil
			}
		}
	}
	return errors.New("version not found")
}

func noopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func newTestController(store *fakeStore) *Controller {
	return NewController(store, NewRepository(), nil, noopLogger())
}

func TestControllerCreateVersion(t *testing.T) {
	ctx := context.Background()

	t.Run("copies source and selects the new version", func(t *testing.T) {
		store := newFakeStore()
		ctrl := newTestController(store)

		sourceID, err := ctrl.CreateVersion(ctx, 1, models.CreateVersionRequest{Tag: "draft"})
		require.NoError(t, err)

		require.NoError(t, ctrl.UpdateVersion(ctx, sourceID, models.ContactFields{GivenName: ptr("Jane")}))

		copyID, err := ctrl.CreateVersion(ctx, 1, models.CreateVersionRequest{
			Tag:             "copy",
			SourceVersionID: &sourceID,
		})
		require.NoError(t, err)

		v, _, ok := ctrl.Repository().FindVersion(copyID)
		require.True(t, ok)
		require.NotNil(t, v.ContactFields.GivenName)
		assert.Equal(t, "Jane", *v.ContactFields.GivenName)

		active := ctrl.Repository().ActiveVersionID(1)
		require.NotNil(t, active)
		assert.Equal(t, copyID, *active)

		// independence: editing the copy never touches the source
		require.NoError(t, ctrl.UpdateVersion(ctx, copyID, models.ContactFields{GivenName: ptr("Janet")}))
		source, _, ok := ctrl.Repository().FindVersion(sourceID)
		require.True(t, ok)
		assert.Equal(t, "Jane", *source.ContactFields.GivenName)
	})

	t.Run("blank version ignores the source", func(t *testing.T) {
		store := newFakeStore()
		ctrl := newTestController(store)

		sourceID, err := ctrl.CreateVersion(ctx, 1, models.CreateVersionRequest{Tag: "draft"})
		require.NoError(t, err)
		require.NoError(t, ctrl.UpdateVersion(ctx, sourceID, models.ContactFields{GivenName: ptr("Jane")}))

		blankID, err := ctrl.CreateVersion(ctx, 1, models.CreateVersionRequest{
			Tag:             "blank",
			SourceVersionID: &sourceID,
			CreateBlank:     true,
		})
		require.NoError(t, err)

		v, _, ok := ctrl.Repository().FindVersion(blankID)
		require.True(t, ok)
		assert.Nil(t, v.ContactFields.GivenName)
	})

	t.Run("repeated tags are allowed", func(t *testing.T) {
		store := newFakeStore()
		ctrl := newTestController(store)

		firstID, err := ctrl.CreateVersion(ctx, 1, models.CreateVersionRequest{Tag: "draft"})
		require.NoError(t, err)

		// tags are human labels, not identifiers; a second "draft" is valid
		secondID, err := ctrl.CreateVersion(ctx, 1, models.CreateVersionRequest{Tag: "draft"})
		require.NoError(t, err)
		assert.NotEqual(t, firstID, secondID)

		versions := ctrl.Repository().Versions(1)
		require.Len(t, versions, 2)
		assert.Equal(t, "draft", versions[0].Tag)
		assert.Equal(t, "draft", versions[1].Tag)
	})

	t.Run("blank tag refused before any store call", func(t *testing.T) {
		store := newFakeStore()
		ctrl := newTestController(store)

		_, err := ctrl.CreateVersion(ctx, 1, models.CreateVersionRequest{Tag: "   "})
		require.Error(t, err)
		assert.True(t, apperrors.IsValidationError(err))
		assert.Zero(t, store.createCalls)
	})

	t.Run("store failure leaves the cache untouched", func(t *testing.T) {
		store := newFakeStore()
		ctrl := newTestController(store)

		existingID, err := ctrl.CreateVersion(ctx, 1, models.CreateVersionRequest{Tag: "draft"})
		require.NoError(t, err)

		store.failCreate = errors.New("connection reset")
		_, err = ctrl.CreateVersion(ctx, 1, models.CreateVersionRequest{Tag: "doomed"})
		require.Error(t, err)
		assert.True(t, apperrors.IsCollaboratorError(err))

		versions := ctrl.Repository().Versions(1)
		require.Len(t, versions, 1)
		assert.Equal(t, existingID, versions[0].ID)
	})
}

func TestControllerDeleteVersion(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown version", func(t *testing.T) {
		ctrl := newTestController(newFakeStore())
		err := ctrl.DeleteVersion(ctx, 99)
		assert.True(t, apperrors.IsNotFoundError(err))
	})

	t.Run("sole version refused before any store call", func(t *testing.T) {
		store := newFakeStore()
		ctrl := newTestController(store)

		id, err := ctrl.CreateVersion(ctx, 1, models.CreateVersionRequest{Tag: "only"})
		require.NoError(t, err)

		err = ctrl.DeleteVersion(ctx, id)
		require.Error(t, err)
		assert.True(t, apperrors.IsInvariantViolation(err))
		assert.Zero(t, store.deleteCalls)
		assert.Len(t, ctrl.Repository().Versions(1), 1)
	})

	t.Run("deleting the active version reassigns to most recent", func(t *testing.T) {
		store := newFakeStore()
		ctrl := newTestController(store)

		oldest, err := ctrl.CreateVersion(ctx, 1, models.CreateVersionRequest{Tag: "v1"})
		require.NoError(t, err)
		middle, err := ctrl.CreateVersion(ctx, 1, models.CreateVersionRequest{Tag: "v2"})
		require.NoError(t, err)
		newest, err := ctrl.CreateVersion(ctx, 1, models.CreateVersionRequest{Tag: "v3"})
		require.NoError(t, err)

		require.NoError(t, ctrl.ActivateVersion(ctx, 1, middle))
		require.NoError(t, ctrl.DeleteVersion(ctx, middle))

		active := ctrl.Repository().ActiveVersionID(1)
		require.NotNil(t, active)
		assert.Equal(t, newest, *active)
		_ = oldest
	})

	t.Run("created-at tie breaks to highest id", func(t *testing.T) {
		store := newFakeStore()
		ctrl := newTestController(store)

		victim, err := ctrl.CreateVersion(ctx, 1, models.CreateVersionRequest{Tag: "v1"})
		require.NoError(t, err)
		a, err := ctrl.CreateVersion(ctx, 1, models.CreateVersionRequest{Tag: "v2"})
		require.NoError(t, err)
		b, err := ctrl.CreateVersion(ctx, 1, models.CreateVersionRequest{Tag: "v3"})
		require.NoError(t, err)

		// force identical timestamps on the survivors
		when := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
		for i := range store.versions[1] {
			if store.versions[1][i].ID != victim {
				store.versions[1][i].CreatedAt = when
			}
		}

		require.NoError(t, ctrl.ActivateVersion(ctx, 1, victim))
		require.NoError(t, ctrl.DeleteVersion(ctx, victim))

		active := ctrl.Repository().ActiveVersionID(1)
		require.NotNil(t, active)
		assert.Equal(t, b, *active)
		_ = a
	})

	t.Run("deleting a non-active version keeps the selection", func(t *testing.T) {
		store := newFakeStore()
		ctrl := newTestController(store)

		keep, err := ctrl.CreateVersion(ctx, 1, models.CreateVersionRequest{Tag: "keep"})
		require.NoError(t, err)
		drop, err := ctrl.CreateVersion(ctx, 1, models.CreateVersionRequest{Tag: "drop"})
		require.NoError(t, err)

		require.NoError(t, ctrl.ActivateVersion(ctx, 1, keep))
		require.NoError(t, ctrl.DeleteVersion(ctx, drop))

		active := ctrl.Repository().ActiveVersionID(1)
		require.NotNil(t, active)
		assert.Equal(t, keep, *active)
	})

	t.Run("store failure surfaces as collaborator error", func(t *testing.T) {
		store := newFakeStore()
		ctrl := newTestController(store)

		_, err := ctrl.CreateVersion(ctx, 1, models.CreateVersionRequest{Tag: "v1"})
		require.NoError(t, err)
		id, err := ctrl.CreateVersion(ctx, 1, models.CreateVersionRequest{Tag: "v2"})
		require.NoError(t, err)

		store.failDelete = errors.New("connection reset")
		err = ctrl.DeleteVersion(ctx, id)
		require.Error(t, err)
		assert.True(t, apperrors.IsCollaboratorError(err))
		assert.Len(t, ctrl.Repository().Versions(1), 2)
	})
}

func TestControllerUpdateVersion(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown version", func(t *testing.T) {
		ctrl := newTestController(newFakeStore())
		err := ctrl.UpdateVersion(ctx, 99, models.ContactFields{GivenName: ptr("Jane")})
		assert.True(t, apperrors.IsNotFoundError(err))
	})

	t.Run("invalid field blocks the whole update", func(t *testing.T) {
		store := newFakeStore()
		ctrl := newTestController(store)

		id, err := ctrl.CreateVersion(ctx, 1, models.CreateVersionRequest{Tag: "draft"})
		require.NoError(t, err)
		store.updateCalls = 0

		err = ctrl.UpdateVersion(ctx, id, models.ContactFields{
			GivenName:      ptr("Jane"),
			EmailAddresses: []string{"not-an-email"},
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsValidationError(err))
		assert.Zero(t, store.updateCalls)

		var verr *apperrors.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "email_addresses")
	})

	t.Run("no-op update never calls the store", func(t *testing.T) {
		store := newFakeStore()
		ctrl := newTestController(store)

		id, err := ctrl.CreateVersion(ctx, 1, models.CreateVersionRequest{Tag: "draft"})
		require.NoError(t, err)
		require.NoError(t, ctrl.UpdateVersion(ctx, id, models.ContactFields{GivenName: ptr("Jane")}))
		store.updateCalls = 0

		// same value, whitespace only
		require.NoError(t, ctrl.UpdateVersion(ctx, id, models.ContactFields{GivenName: ptr("  Jane  ")}))
		assert.Zero(t, store.updateCalls)
	})

	t.Run("only changed fields reach the store", func(t *testing.T) {
		store := newFakeStore()
		ctrl := newTestController(store)

		id, err := ctrl.CreateVersion(ctx, 1, models.CreateVersionRequest{Tag: "draft"})
		require.NoError(t, err)
		require.NoError(t, ctrl.UpdateVersion(ctx, id, models.ContactFields{
			GivenName:  ptr("Jane"),
			FamilyName: ptr("Doe"),
		}))

		require.NoError(t, ctrl.UpdateVersion(ctx, id, models.ContactFields{
			GivenName:  ptr("Janet"),
			FamilyName: ptr("Doe"),
		}))

		require.NotNil(t, store.lastUpdate.GivenName)
		assert.Equal(t, "Janet", *store.lastUpdate.GivenName)
		assert.Nil(t, store.lastUpdate.FamilyName)

		// cache reflects the write
		v, _, ok := ctrl.Repository().FindVersion(id)
		require.True(t, ok)
		assert.Equal(t, "Janet", *v.ContactFields.GivenName)
	})

	t.Run("store failure surfaces as collaborator error", func(t *testing.T) {
		store := newFakeStore()
		ctrl := newTestController(store)

		id, err := ctrl.CreateVersion(ctx, 1, models.CreateVersionRequest{Tag: "draft"})
		require.NoError(t, err)

		store.failUpdate = errors.New("connection reset")
		err = ctrl.UpdateVersion(ctx, id, models.ContactFields{GivenName: ptr("Jane")})
		require.Error(t, err)
		assert.True(t, apperrors.IsCollaboratorError(err))

		// cache keeps the pre-update snapshot
		v, _, ok := ctrl.Repository().FindVersion(id)
		require.True(t, ok)
		assert.Nil(t, v.ContactFields.GivenName)
	})
}

func TestControllerActivateVersion(t *testing.T) {
	ctx := context.Background()

	store := newFakeStore()
	ctrl := newTestController(store)

	first, err := ctrl.CreateVersion(ctx, 1, models.CreateVersionRequest{Tag: "v1"})
	require.NoError(t, err)
	second, err := ctrl.CreateVersion(ctx, 1, models.CreateVersionRequest{Tag: "v2"})
	require.NoError(t, err)

	// creating selected the second, switch back
	require.NoError(t, ctrl.ActivateVersion(ctx, 1, first))
	active := ctrl.Repository().ActiveVersionID(1)
	require.NotNil(t, active)
	assert.Equal(t, first, *active)

	t.Run("unknown version", func(t *testing.T) {
		err := ctrl.ActivateVersion(ctx, 1, 99)
		assert.True(t, apperrors.IsNotFoundError(err))
	})

	t.Run("deactivate clears the selection", func(t *testing.T) {
		ctrl.DeactivateVersion(1)
		assert.Nil(t, ctrl.Repository().ActiveVersionID(1))
	})
	_ = second
}

func TestControllerEffectiveRecord(t *testing.T) {
	ctx := context.Background()

	store := newFakeStore()
	store.baseFields[1] = models.ContactFields{
		GivenName:    ptr("Jane"),
		PhoneNumbers: []string{"111"},
	}
	ctrl := newTestController(store)

	image := models.Image{ID: 1, ContactFields: store.baseFields[1].Clone()}

	id, err := ctrl.CreateVersion(ctx, 1, models.CreateVersionRequest{Tag: "edit"})
	require.NoError(t, err)
	require.NoError(t, ctrl.UpdateVersion(ctx, id, models.ContactFields{GivenName: ptr("Janet")}))

	record := ctrl.EffectiveRecord(image)
	require.NotNil(t, record.OverlaidFrom)
	assert.Equal(t, id, *record.OverlaidFrom)
	assert.Equal(t, "Janet", *record.Fields.GivenName)
	assert.Equal(t, []string{"111"}, record.Fields.PhoneNumbers)

	ctrl.DeactivateVersion(1)
	record = ctrl.EffectiveRecord(image)
	assert.Nil(t, record.OverlaidFrom)
	assert.Equal(t, "Jane", *record.Fields.GivenName)
}

func TestControllerPurgeImage(t *testing.T) {
	ctx := context.Background()

	store := newFakeStore()
	ctrl := newTestController(store)

	_, err := ctrl.CreateVersion(ctx, 1, models.CreateVersionRequest{Tag: "v1"})
	require.NoError(t, err)

	ctrl.PurgeImage(1)
	assert.Nil(t, ctrl.Repository().Versions(1))
	assert.Nil(t, ctrl.Repository().ActiveVersionID(1))
}

func TestControllerRefreshFailure(t *testing.T) {
	ctx := context.Background()

	store := newFakeStore()
	ctrl := newTestController(store)

	_, err := ctrl.CreateVersion(ctx, 1, models.CreateVersionRequest{Tag: "v1"})
	require.NoError(t, err)

	store.failFetch = errors.New("connection reset")
	err = ctrl.Refresh(ctx, 1)
	require.Error(t, err)
	assert.True(t, apperrors.IsCollaboratorError(err))

	// cache keeps its last good state
	assert.Len(t, ctrl.Repository().Versions(1), 1)
}
