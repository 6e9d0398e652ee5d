package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dmitryntvh/AVITO/internal/domain"
)

func newCatalogRepo(t *testing.T) *CatalogRepository {
	db, dialect := newTestDB(t)
	r := NewCatalogRepository(db, dialect)
	r.now = stepClock(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	return r
}

func TestUpsertModelAndList(t *testing.T) {
	ctx := context.Background()
	r := newCatalogRepo(t)

	require.NoError(t, r.UpsertModel(ctx, domain.CatalogModel{Code: "a", Name: "A", PriceDrawings: 1500}))
	require.NoError(t, r.UpsertModel(ctx, domain.CatalogModel{Code: "b", Name: "B"}))

	models, err := r.ListModels(ctx)
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "b", models[0].Code)

	require.NoError(t, r.UpsertModel(ctx, domain.CatalogModel{
		Code: "a", Name: "A2", Short: "short", PriceDrawings: 2000, DrawingsURL: "https://x/y.pdf",
	}))
	models, err = r.ListModels(ctx)
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "a", models[0].Code)

	m, err := r.GetModel(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "A2", m.Name)
	assert.Equal(t, "short", m.Short)
	assert.Equal(t, 2000, m.PriceDrawings)
	assert.Equal(t, "https://x/y.pdf", m.DrawingsURL)

	_, err = r.GetModel(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReplaceKitsAndImages(t *testing.T) {
	ctx := context.Background()
	r := newCatalogRepo(t)
	require.NoError(t, r.UpsertModel(ctx, domain.CatalogModel{Code: "m", Name: "M"}))

	require.NoError(t, r.ReplaceKits(ctx, "m", []domain.Kit{{Material: "Сталь", Price: 100}, {Material: "Алюминий", Price: 200}}))
	require.NoError(t, r.ReplaceKits(ctx, "m", []domain.Kit{{Material: "Нержавейка", Price: 300}, {Material: "Алюминий", Price: 250}}))

	require.NoError(t, r.ReplaceImages(ctx, "m", []string{"u1", "u2"}))
	require.NoError(t, r.ReplaceImages(ctx, "m", []string{"u3", "u1"}))

	m, err := r.GetModel(ctx, "m")
	require.NoError(t, err)
	assert.Equal(t, []domain.Kit{{Material: "Алюминий", Price: 250}, {Material: "Нержавейка", Price: 300}}, m.Kits)
	assert.Equal(t, []domain.Image{{URL: "u3", SortOrder: 1}, {URL: "u1", SortOrder: 2}}, m.Images)
	assert.Equal(t, []string{"u3", "u1"}, m.ImageURLs())
}

func TestDeleteModelCascades(t *testing.T) {
	ctx := context.Background()
	r := newCatalogRepo(t)
	require.NoError(t, r.UpsertModel(ctx, domain.CatalogModel{Code: "m", Name: "M"}))
	require.NoError(t, r.ReplaceKits(ctx, "m", []domain.Kit{{Material: "Сталь", Price: 100}}))
	require.NoError(t, r.ReplaceImages(ctx, "m", []string{"u1"}))

	require.NoError(t, r.DeleteModel(ctx, "m"))

	_, err := r.GetModel(ctx, "m")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	var kits, images int
	require.NoError(t, r.db.QueryRow(`SELECT COUNT(*) FROM catalog_kits`).Scan(&kits))
	require.NoError(t, r.db.QueryRow(`SELECT COUNT(*) FROM catalog_images`).Scan(&images))
	assert.Zero(t, kits)
	assert.Zero(t, images)
}
