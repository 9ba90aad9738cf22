package images

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	imagerepo "github.com/chuckfinca/image-collector/internal/repositories/images"
	apperrors "github.com/chuckfinca/image-collector/pkg/errors"
	"github.com/chuckfinca/image-collector/pkg/fields"
	"github.com/chuckfinca/image-collector/pkg/models"
)

func noopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type memoryRepo struct {
	nextID  int64
	images  map[int64]*models.Image
	updates []models.ContactFields
	deletes []int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{images: map[int64]*models.Image{}}
}

func (m *memoryRepo) CreateImage(_ context.Context, img *models.Image) (*models.Image, error) {
	for _, existing := range m.images {
		if existing.Hash == img.Hash {
			return existing, nil
		}
	}
	m.nextID++
	img.ID = m.nextID
	m.images[img.ID] = img
	return img, nil
}

func (m *memoryRepo) FetchImage(_ context.Context, imageID int64) (*models.Image, error) {
	img, ok := m.images[imageID]
	if !ok {
		return nil, imagerepo.ErrNotFound
	}
	out := *img
	out.ContactFields = img.ContactFields.Clone()
	return &out, nil
}

func (m *memoryRepo) GetByHash(_ context.Context, hash string) (*models.Image, error) {
	for _, img := range m.images {
		if img.Hash == hash {
			return img, nil
		}
	}
	return nil, imagerepo.ErrNotFound
}

func (m *memoryRepo) ListImages(_ context.Context) ([]models.Image, error) {
	out := make([]models.Image, 0, len(m.images))
	for _, img := range m.images {
		out = append(out, *img)
	}
	return out, nil
}

func (m *memoryRepo) ListPage(_ context.Context, _, _ int) (*models.ImageListResponse, error) {
	list, _ := m.ListImages(context.Background())
	return &models.ImageListResponse{Items: list, TotalCount: len(list)}, nil
}

func (m *memoryRepo) UpdateImage(_ context.Context, imageID int64, changes models.ContactFields) error {
	img, ok := m.images[imageID]
	if !ok {
		return imagerepo.ErrNotFound
	}
	m.updates = append(m.updates, changes)
	for _, fd := range fields.All {
		switch fd.Kind {
		case fields.KindScalar:
			if v := changes.Scalar(fd.ID); v != nil {
				img.ContactFields.SetScalar(fd.ID, v)
			}
		case fields.KindStringArray:
			if v := changes.StringArray(fd.ID); v != nil {
				img.ContactFields.SetStringArray(fd.ID, v)
			}
		case fields.KindAddresses:
			if changes.PostalAddresses != nil {
				img.ContactFields.PostalAddresses = changes.PostalAddresses
			}
		case fields.KindProfiles:
			if changes.SocialProfiles != nil {
				img.ContactFields.SocialProfiles = changes.SocialProfiles
			}
		}
	}
	return nil
}

func (m *memoryRepo) DeleteImage(_ context.Context, imageID int64) error {
	if _, ok := m.images[imageID]; !ok {
		return imagerepo.ErrNotFound
	}
	m.deletes = append(m.deletes, imageID)
	delete(m.images, imageID)
	return nil
}

type recordingPurger struct {
	purged []int64
}

func (p *recordingPurger) PurgeImage(_ context.Context, imageID int64) {
	p.purged = append(p.purged, imageID)
}

func TestService_AddImage(t *testing.T) {
	t.Run("stores the file and creates the row", func(t *testing.T) {
		dir := t.TempDir()
		repo := newMemoryRepo()
		service := NewService(repo, dir, nil, nil, noopLogger())

		data := []byte("image payload")
		img, err := service.AddImage(context.Background(), "card.png", data)
		require.NoError(t, err)

		sum := sha256.Sum256(data)
		wantHash := hex.EncodeToString(sum[:])
		assert.Equal(t, wantHash, img.Hash)
		assert.Equal(t, "card.png", img.Filename)
		assert.Equal(t, "local", img.Source)
		assert.Equal(t, wantHash+".png", img.FilePath)

		stored, err := os.ReadFile(filepath.Join(dir, img.FilePath))
		require.NoError(t, err)
		assert.Equal(t, data, stored)
	})

	t.Run("duplicate content returns the existing image", func(t *testing.T) {
		dir := t.TempDir()
		repo := newMemoryRepo()
		service := NewService(repo, dir, nil, nil, noopLogger())

		data := []byte("same payload")
		first, err := service.AddImage(context.Background(), "a.png", data)
		require.NoError(t, err)

		second, err := service.AddImage(context.Background(), "b.png", data)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Len(t, repo.images, 1)
	})

	t.Run("empty payload rejected", func(t *testing.T) {
		service := NewService(newMemoryRepo(), t.TempDir(), nil, nil, noopLogger())

		_, err := service.AddImage(context.Background(), "a.png", nil)
		require.Error(t, err)
		assert.True(t, apperrors.IsValidationError(err))
	})
}

func TestService_AddImageFromURL(t *testing.T) {
	t.Run("downloads and stores", func(t *testing.T) {
		payload := []byte("downloaded image")
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write(payload)
		}))
		defer server.Close()

		dir := t.TempDir()
		service := NewService(newMemoryRepo(), dir, nil, nil, noopLogger())

		img, err := service.AddImageFromURL(context.Background(), server.URL+"/cards/front.jpg")
		require.NoError(t, err)
		assert.Equal(t, "front.jpg", img.Filename)
		assert.Equal(t, "url", img.Source)

		stored, err := os.ReadFile(filepath.Join(dir, img.FilePath))
		require.NoError(t, err)
		assert.Equal(t, payload, stored)
	})

	t.Run("rejects non-http urls", func(t *testing.T) {
		service := NewService(newMemoryRepo(), t.TempDir(), nil, nil, noopLogger())

		_, err := service.AddImageFromURL(context.Background(), "ftp://example.com/a.png")
		require.Error(t, err)
		assert.True(t, apperrors.IsValidationError(err))
	})

	t.Run("surfaces download failures", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "gone", http.StatusNotFound)
		}))
		defer server.Close()

		service := NewService(newMemoryRepo(), t.TempDir(), nil, nil, noopLogger())

		_, err := service.AddImageFromURL(context.Background(), server.URL+"/missing.png")
		require.Error(t, err)
		assert.True(t, apperrors.IsCollaboratorError(err))
	})
}

func TestService_UpdateImage(t *testing.T) {
	seed := func(t *testing.T) (*Service, *memoryRepo) {
		t.Helper()
		repo := newMemoryRepo()
		service := NewService(repo, t.TempDir(), nil, nil, noopLogger())
		_, err := service.AddImage(context.Background(), "card.png", []byte("payload"))
		require.NoError(t, err)
		return service, repo
	}

	t.Run("applies only changed fields", func(t *testing.T) {
		service, repo := seed(t)

		given := "  Jane  "
		changed, err := service.UpdateImage(context.Background(), 1, models.ContactFields{GivenName: &given})
		require.NoError(t, err)
		assert.Equal(t, []string{fields.GivenName}, changed)

		img := repo.images[1]
		require.NotNil(t, img.ContactFields.GivenName)
		assert.Equal(t, "Jane", *img.ContactFields.GivenName, "values are sanitized before storing")
	})

	t.Run("identical values are a no-op", func(t *testing.T) {
		service, repo := seed(t)

		given := "Jane"
		_, err := service.UpdateImage(context.Background(), 1, models.ContactFields{GivenName: &given})
		require.NoError(t, err)
		updatesBefore := len(repo.updates)

		changed, err := service.UpdateImage(context.Background(), 1, models.ContactFields{GivenName: &given})
		require.NoError(t, err)
		assert.Empty(t, changed)
		assert.Len(t, repo.updates, updatesBefore, "no store write for a no-op")
	})

	t.Run("invalid values block the whole update", func(t *testing.T) {
		service, repo := seed(t)

		_, err := service.UpdateImage(context.Background(), 1, models.ContactFields{
			EmailAddresses: []string{"not-an-email"},
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsValidationError(err))
		assert.Empty(t, repo.updates)
	})

	t.Run("unknown image", func(t *testing.T) {
		service, _ := seed(t)

		_, err := service.UpdateImage(context.Background(), 42, models.ContactFields{})
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFoundError(err))
	})
}

func TestService_DeleteImage(t *testing.T) {
	t.Run("removes row, file, and cached sessions", func(t *testing.T) {
		dir := t.TempDir()
		repo := newMemoryRepo()
		purger := &recordingPurger{}
		service := NewService(repo, dir, nil, purger, noopLogger())

		img, err := service.AddImage(context.Background(), "card.png", []byte("payload"))
		require.NoError(t, err)
		path := filepath.Join(dir, img.FilePath)

		require.NoError(t, service.DeleteImage(context.Background(), img.ID))

		assert.Empty(t, repo.images)
		_, statErr := os.Stat(path)
		assert.True(t, os.IsNotExist(statErr))
		assert.Equal(t, []int64{img.ID}, purger.purged)
	})

	t.Run("unknown image", func(t *testing.T) {
		service := NewService(newMemoryRepo(), t.TempDir(), nil, nil, noopLogger())

		err := service.DeleteImage(context.Background(), 9)
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFoundError(err))
	})
}
