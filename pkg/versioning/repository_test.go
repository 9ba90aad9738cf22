package versioning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chuckfinca/image-collector/pkg/models"
)

func TestRepositorySeedsActiveOnFirstPopulation(t *testing.T) {
	repo := NewRepository()

	seq := repo.BeginRefresh(1)
	repo.SetVersions(1, []models.Version{
		{ID: 10, ImageID: 1},
		{ID: 11, ImageID: 1, IsActive: true},
	}, seq)

	active := repo.ActiveVersionID(1)
	require.NotNil(t, active)
	assert.Equal(t, int64(11), *active)
}

func TestRepositoryStoreFlagDoesNotOverrideSelection(t *testing.T) {
	repo := NewRepository()

	seq := repo.BeginRefresh(1)
	repo.SetVersions(1, []models.Version{
		{ID: 10, ImageID: 1},
		{ID: 11, ImageID: 1, IsActive: true},
	}, seq)

	repo.SelectActive(1, 10)

	// a later refresh moves the store flag, the client's pick stays
	seq = repo.BeginRefresh(1)
	repo.SetVersions(1, []models.Version{
		{ID: 10, ImageID: 1, IsActive: true},
		{ID: 11, ImageID: 1},
		{ID: 12, ImageID: 1},
	}, seq)

	active := repo.ActiveVersionID(1)
	require.NotNil(t, active)
	assert.Equal(t, int64(10), *active)
}

func TestRepositoryClearsDanglingSelection(t *testing.T) {
	repo := NewRepository()

	seq := repo.BeginRefresh(1)
	repo.SetVersions(1, []models.Version{{ID: 10, ImageID: 1}, {ID: 11, ImageID: 1}}, seq)
	repo.SelectActive(1, 11)

	seq = repo.BeginRefresh(1)
	repo.SetVersions(1, []models.Version{{ID: 10, ImageID: 1}}, seq)

	assert.Nil(t, repo.ActiveVersionID(1))
}

func TestRepositorySelectActiveUnknownVersionIgnored(t *testing.T) {
	repo := NewRepository()

	seq := repo.BeginRefresh(1)
	repo.SetVersions(1, []models.Version{{ID: 10, ImageID: 1}}, seq)
	repo.SelectActive(1, 10)

	repo.SelectActive(1, 99)

	active := repo.ActiveVersionID(1)
	require.NotNil(t, active)
	assert.Equal(t, int64(10), *active)
}

func TestRepositoryStaleRefreshDiscarded(t *testing.T) {
	repo := NewRepository()

	first := repo.BeginRefresh(1)
	second := repo.BeginRefresh(1)

	// the later-initiated refresh lands first
	require.True(t, repo.SetVersions(1, []models.Version{{ID: 10, ImageID: 1}, {ID: 11, ImageID: 1}}, second))

	// the earlier one arrives late and must not win
	require.False(t, repo.SetVersions(1, []models.Version{{ID: 10, ImageID: 1}}, first))

	versions := repo.Versions(1)
	require.Len(t, versions, 2)
}

func TestRepositorySeedingHappensOnceEvenAfterStaleDiscard(t *testing.T) {
	repo := NewRepository()

	first := repo.BeginRefresh(1)
	second := repo.BeginRefresh(1)

	repo.SetVersions(1, []models.Version{{ID: 10, ImageID: 1, IsActive: true}}, second)
	repo.SetVersions(1, []models.Version{{ID: 11, ImageID: 1, IsActive: true}}, first)

	active := repo.ActiveVersionID(1)
	require.NotNil(t, active)
	assert.Equal(t, int64(10), *active)
}

func TestRepositoryClearActive(t *testing.T) {
	repo := NewRepository()

	seq := repo.BeginRefresh(1)
	repo.SetVersions(1, []models.Version{{ID: 10, ImageID: 1, IsActive: true}}, seq)
	require.NotNil(t, repo.ActiveVersionID(1))

	repo.ClearActive(1)
	assert.Nil(t, repo.ActiveVersionID(1))
}

func TestRepositoryClearDropsImageState(t *testing.T) {
	repo := NewRepository()

	seq := repo.BeginRefresh(1)
	repo.SetVersions(1, []models.Version{{ID: 10, ImageID: 1, IsActive: true}}, seq)

	repo.Clear(1)

	assert.Nil(t, repo.Versions(1))
	assert.Nil(t, repo.ActiveVersionID(1))

	// next population seeds again
	seq = repo.BeginRefresh(1)
	repo.SetVersions(1, []models.Version{{ID: 20, ImageID: 1, IsActive: true}}, seq)
	active := repo.ActiveVersionID(1)
	require.NotNil(t, active)
	assert.Equal(t, int64(20), *active)
}

func TestRepositoryFindVersion(t *testing.T) {
	repo := NewRepository()

	seq := repo.BeginRefresh(7)
	repo.SetVersions(7, []models.Version{{ID: 10, ImageID: 7, Tag: "draft"}}, seq)

	v, imageID, ok := repo.FindVersion(10)
	require.True(t, ok)
	assert.Equal(t, int64(7), imageID)
	assert.Equal(t, "draft", v.Tag)

	_, _, ok = repo.FindVersion(99)
	assert.False(t, ok)
}

func TestRepositoryVersionsReturnsCopy(t *testing.T) {
	repo := NewRepository()

	seq := repo.BeginRefresh(1)
	repo.SetVersions(1, []models.Version{{ID: 10, ImageID: 1, Tag: "draft"}}, seq)

	versions := repo.Versions(1)
	versions[0].Tag = "mutated"

	again := repo.Versions(1)
	assert.Equal(t, "draft", again[0].Tag)
}
