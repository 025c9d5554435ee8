package reference

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arkik/internal"
	"arkik/internal/storage"
)

type fakeSource struct {
	mu sync.Mutex

	recipes  []internal.Recipe
	direct   []storage.PriceWithClient
	quotes   []storage.PriceWithClient
	mapped   []string
	existing []string

	recipesErr  error
	directErr   error
	quotesErr   error
	mappedErr   error
	existingErr error

	calls        map[string]int
	materialArgs []string
	numberArgs   []string
}

func (f *fakeSource) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[name]++
}

func (f *fakeSource) RecipesByPlant(_ context.Context, _ string) ([]internal.Recipe, error) {
	f.record("recipes")
	return f.recipes, f.recipesErr
}

func (f *fakeSource) ProductPrices(_ context.Context, _ string, _ []string) ([]storage.PriceWithClient, error) {
	f.record("direct")
	return f.direct, f.directErr
}

func (f *fakeSource) QuotePrices(_ context.Context, _ string, _ []string) ([]storage.PriceWithClient, error) {
	f.record("quotes")
	return f.quotes, f.quotesErr
}

func (f *fakeSource) MappedMaterialCodes(_ context.Context, _ string, codes []string) ([]string, error) {
	f.record("materials")
	f.mu.Lock()
	f.materialArgs = codes
	f.mu.Unlock()
	return f.mapped, f.mappedErr
}

func (f *fakeSource) ExistingRemisionNumbers(_ context.Context, _ string, numbers []string) ([]string, error) {
	f.record("remisiones")
	f.mu.Lock()
	f.numberArgs = numbers
	f.mu.Unlock()
	return f.existing, f.existingErr
}

func withClient(p internal.Price) storage.PriceWithClient {
	return storage.PriceWithClient{
		Price:  p,
		Client: internal.Client{ID: p.ClientID, BusinessName: p.BusinessName},
	}
}

func sampleSource() *fakeSource {
	return &fakeSource{
		recipes: []internal.Recipe{
			{ID: "R1", RecipeCode: "C25-BOM", ArkikLongCode: "5-250-2-B-28-14-D-2-000"},
			{ID: "R2", RecipeCode: "C30-BOM"},
		},
		direct: []storage.PriceWithClient{
			withClient(internal.Price{ID: "PP1", RecipeID: "R1", ClientID: "C1", BusinessName: "ACME", BasePrice: 1850, Source: internal.SourceProductPrices}),
		},
		quotes: []storage.PriceWithClient{
			withClient(internal.Price{ID: "QD1", RecipeID: "R1", ClientID: "C2", BusinessName: "NORTE", BasePrice: 1900, Source: internal.SourceQuotes}),
		},
		mapped:   []string{"CPC40"},
		existing: []string{"R-1001"},
	}
}

func sampleRows() []internal.RawRemisionRow {
	return []internal.RawRemisionRow{
		{
			RowNumber:          1,
			RemisionNumber:     " R-1001 ",
			ProductDescription: "5-250-2-B-28-14-D-2-000",
			MaterialsTeorico:   map[string]float64{"CPC40": 300, " GRAVA ": 900},
		},
		{
			RowNumber:      2,
			RemisionNumber: "R-1002",
			RecipeCode:     "c30-bom",
			MaterialsReal:  map[string]float64{"CPC40": 301, "": 1},
		},
	}
}

func TestCollectKeys(t *testing.T) {
	keys := CollectKeys(sampleRows())
	assert.Equal(t, []string{"5-250-2-b-28-14-d-2-000", "c30-bom"}, keys.ProductCodes)
	assert.Equal(t, []string{"R-1001", "R-1002"}, keys.RemisionNumbers)
	assert.Equal(t, []string{"CPC40", "GRAVA"}, keys.MaterialCodes)
}

func TestBuildIndexesReferenceData(t *testing.T) {
	src := sampleSource()
	cache, err := Build(context.Background(), src, "P1", sampleRows(), nil)
	require.NoError(t, err)

	assert.Equal(t, 5, cache.Queries)
	assert.Equal(t, "R1", cache.RecipeByLongCode["5-250-2-b-28-14-d-2-000"].ID)
	assert.Equal(t, "R1", cache.RecipeByShortCode["c25-bom"].ID)
	assert.Equal(t, "R2", cache.RecipeByShortCode["c30-bom"].ID)
	assert.Len(t, cache.Recipes, 2)

	candidates := cache.Candidates("R1")
	require.Len(t, candidates, 2)
	assert.Equal(t, internal.SourceProductPrices, candidates[0].Source)
	assert.Equal(t, internal.SourceQuotes, candidates[1].Source)
	assert.Empty(t, cache.Candidates("R2"))

	assert.Equal(t, "NORTE", cache.ClientsByID["C2"].BusinessName)
	assert.True(t, cache.MaterialsLoaded)
	assert.True(t, cache.IsMaterialMapped("CPC40"))
	assert.False(t, cache.IsMaterialMapped("GRAVA"))
	assert.True(t, cache.RemisionExists("R-1001"))
	assert.False(t, cache.RemisionExists("R-1002"))

	assert.Equal(t, []string{"CPC40", "GRAVA"}, src.materialArgs)
	assert.Equal(t, []string{"R-1001", "R-1002"}, src.numberArgs)
}

func TestBuildSkipsEmptyLookups(t *testing.T) {
	src := &fakeSource{}
	cache, err := Build(context.Background(), src, "P1", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, cache.Queries, "only recipes are fetched")
	assert.Equal(t, 1, src.calls["recipes"])
	assert.Zero(t, src.calls["direct"])
	assert.Zero(t, src.calls["materials"])
	assert.Zero(t, src.calls["remisiones"])
	assert.True(t, cache.MaterialsLoaded)
}

func TestBuildFailurePolicy(t *testing.T) {
	boom := errors.New("connection reset")

	tests := []struct {
		name  string
		setup func(*fakeSource)
		fatal bool
	}{
		{name: "recipes", setup: func(f *fakeSource) { f.recipesErr = boom }, fatal: true},
		{name: "product prices", setup: func(f *fakeSource) { f.directErr = boom }, fatal: true},
		{name: "existing remisiones", setup: func(f *fakeSource) { f.existingErr = boom }, fatal: true},
		{name: "quotes", setup: func(f *fakeSource) { f.quotesErr = boom }},
		{name: "material mappings", setup: func(f *fakeSource) { f.mappedErr = boom }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := sampleSource()
			tt.setup(src)
			cache, err := Build(context.Background(), src, "P1", sampleRows(), nil)
			if tt.fatal {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrReferenceUnavailable)
				assert.ErrorIs(t, err, boom)
				assert.Nil(t, cache)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, cache)
		})
	}
}

func TestBuildDegradesOnMaterialFailure(t *testing.T) {
	src := sampleSource()
	src.mappedErr = errors.New("timeout")
	cache, err := Build(context.Background(), src, "P1", sampleRows(), nil)
	require.NoError(t, err)
	assert.False(t, cache.MaterialsLoaded)
	assert.Empty(t, cache.MappedMaterialCodes)
}

func TestBuildDegradesOnQuoteFailure(t *testing.T) {
	src := sampleSource()
	src.quotesErr = errors.New("timeout")
	cache, err := Build(context.Background(), src, "P1", sampleRows(), nil)
	require.NoError(t, err)
	assert.Empty(t, cache.QuotePricesByRecipeID)
	assert.Len(t, cache.Candidates("R1"), 1)
}

func TestBusinessNamePrefersClientIndex(t *testing.T) {
	cache := newCache("P1")
	cache.ClientsByID["C1"] = internal.Client{ID: "C1", BusinessName: "ACME SA"}
	assert.Equal(t, "ACME SA", cache.BusinessName(internal.Price{ClientID: "C1", BusinessName: "stale"}))
	assert.Equal(t, "joined", cache.BusinessName(internal.Price{ClientID: "C9", BusinessName: "joined"}))
}
