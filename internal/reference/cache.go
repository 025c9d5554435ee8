// Package reference loads everything a remision batch needs in a fixed number
// of bulk queries and indexes it for per-row lookups.
package reference

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"arkik/internal"
	"arkik/internal/storage"
	"arkik/internal/util"
)

// ErrReferenceUnavailable wraps failures of fetches the batch cannot proceed
// without.
var ErrReferenceUnavailable = errors.New("reference data unavailable")

// Source is the reference-data store. storage.DB implements it.
type Source interface {
	RecipesByPlant(ctx context.Context, plantID string) ([]internal.Recipe, error)
	ProductPrices(ctx context.Context, plantID string, recipeIDs []string) ([]storage.PriceWithClient, error)
	QuotePrices(ctx context.Context, plantID string, recipeIDs []string) ([]storage.PriceWithClient, error)
	MappedMaterialCodes(ctx context.Context, plantID string, codes []string) ([]string, error)
	ExistingRemisionNumbers(ctx context.Context, plantID string, numbers []string) ([]string, error)
}

// Cache holds the indexes for one batch. It is built once and only read
// afterwards.
type Cache struct {
	PlantID string

	Recipes               []internal.Recipe
	RecipeByLongCode      map[string]internal.Recipe
	RecipeByShortCode     map[string]internal.Recipe
	PricesByRecipeID      map[string][]internal.Price
	QuotePricesByRecipeID map[string][]internal.Price
	ClientsByID           map[string]internal.Client

	MappedMaterialCodes     map[string]struct{}
	ExistingRemisionNumbers map[string]struct{}
	// MaterialsLoaded is false when the mapping fetch failed; material checks
	// are skipped rather than reporting every code as unmapped.
	MaterialsLoaded bool

	Queries int
}

func newCache(plantID string) *Cache {
	return &Cache{
		PlantID:                 plantID,
		RecipeByLongCode:        map[string]internal.Recipe{},
		RecipeByShortCode:       map[string]internal.Recipe{},
		PricesByRecipeID:        map[string][]internal.Price{},
		QuotePricesByRecipeID:   map[string][]internal.Price{},
		ClientsByID:             map[string]internal.Client{},
		MappedMaterialCodes:     map[string]struct{}{},
		ExistingRemisionNumbers: map[string]struct{}{},
	}
}

// Keys are the distinct lookup keys referenced by a batch.
type Keys struct {
	ProductCodes    []string
	RemisionNumbers []string
	MaterialCodes   []string
}

// CollectKeys scans rows once for distinct normalized product codes, remision
// numbers and material codes. Output slices are sorted.
func CollectKeys(rows []internal.RawRemisionRow) Keys {
	products := map[string]struct{}{}
	remisiones := map[string]struct{}{}
	materials := map[string]struct{}{}

	for _, r := range rows {
		if code := util.NormalizeKey(r.ProductDescription); code != "" {
			products[code] = struct{}{}
		}
		if code := util.NormalizeKey(r.RecipeCode); code != "" {
			products[code] = struct{}{}
		}
		if n := strings.TrimSpace(r.RemisionNumber); n != "" {
			remisiones[n] = struct{}{}
		}
		for code := range r.MaterialsTeorico {
			materials[strings.TrimSpace(code)] = struct{}{}
		}
		for code := range r.MaterialsReal {
			materials[strings.TrimSpace(code)] = struct{}{}
		}
	}
	delete(materials, "")

	return Keys{
		ProductCodes:    sortedKeys(products),
		RemisionNumbers: sortedKeys(remisiones),
		MaterialCodes:   sortedKeys(materials),
	}
}

// Build runs the bulk fetches for a batch and indexes the results. The recipe
// chain (recipes, then direct and quote prices) runs alongside the material
// and remision lookups.
func Build(ctx context.Context, src Source, plantID string, rows []internal.RawRemisionRow, logger *zap.Logger) (*Cache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	keys := CollectKeys(rows)
	cache := newCache(plantID)
	logger.Debug("building reference cache",
		zap.String("plant_id", plantID),
		zap.Int("product_codes", len(keys.ProductCodes)),
		zap.Int("remision_numbers", len(keys.RemisionNumbers)),
		zap.Int("material_codes", len(keys.MaterialCodes)),
	)

	var (
		mu      sync.Mutex
		queries int
	)
	countQuery := func() {
		mu.Lock()
		queries++
		mu.Unlock()
	}

	var (
		recipes      []internal.Recipe
		directPrices []storage.PriceWithClient
		quotePrices  []storage.PriceWithClient
		mapped       []string
		existing     []string
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		countQuery()
		var err error
		recipes, err = src.RecipesByPlant(gctx, plantID)
		if err != nil {
			return fmt.Errorf("%w: recipes: %w", ErrReferenceUnavailable, err)
		}
		if len(recipes) == 0 {
			return nil
		}

		recipeIDs := make([]string, 0, len(recipes))
		for _, r := range recipes {
			recipeIDs = append(recipeIDs, r.ID)
		}

		pg, pctx := errgroup.WithContext(gctx)
		pg.Go(func() error {
			countQuery()
			var err error
			directPrices, err = src.ProductPrices(pctx, plantID, recipeIDs)
			if err != nil {
				return fmt.Errorf("%w: product prices: %w", ErrReferenceUnavailable, err)
			}
			return nil
		})
		pg.Go(func() error {
			countQuery()
			var err error
			quotePrices, err = src.QuotePrices(pctx, plantID, recipeIDs)
			if err != nil {
				logger.Warn("quote prices unavailable, continuing without quote fallback", zap.Error(err))
				quotePrices = nil
			}
			return nil
		})
		return pg.Wait()
	})

	if len(keys.MaterialCodes) > 0 {
		g.Go(func() error {
			countQuery()
			var err error
			mapped, err = src.MappedMaterialCodes(gctx, plantID, keys.MaterialCodes)
			if err != nil {
				logger.Warn("material mappings unavailable, skipping material checks", zap.Error(err))
				return nil
			}
			cache.MaterialsLoaded = true
			return nil
		})
	} else {
		cache.MaterialsLoaded = true
	}

	if len(keys.RemisionNumbers) > 0 {
		g.Go(func() error {
			countQuery()
			var err error
			existing, err = src.ExistingRemisionNumbers(gctx, plantID, keys.RemisionNumbers)
			if err != nil {
				return fmt.Errorf("%w: existing remisiones: %w", ErrReferenceUnavailable, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	cache.Queries = queries
	cache.indexRecipes(recipes)
	cache.indexPrices(directPrices, quotePrices)
	for _, code := range mapped {
		cache.MappedMaterialCodes[code] = struct{}{}
	}
	for _, n := range existing {
		cache.ExistingRemisionNumbers[n] = struct{}{}
	}

	logger.Info("reference cache ready",
		zap.String("plant_id", plantID),
		zap.Int("recipes", len(recipes)),
		zap.Int("product_prices", len(directPrices)),
		zap.Int("quote_prices", len(quotePrices)),
		zap.Int("mapped_materials", len(cache.MappedMaterialCodes)),
		zap.Int("existing_remisiones", len(cache.ExistingRemisionNumbers)),
		zap.Int("queries", queries),
	)
	return cache, nil
}

func (c *Cache) indexRecipes(recipes []internal.Recipe) {
	c.Recipes = recipes
	for _, r := range recipes {
		if key := util.NormalizeKey(r.ArkikLongCode); key != "" {
			if _, ok := c.RecipeByLongCode[key]; !ok {
				c.RecipeByLongCode[key] = r
			}
		}
		if key := util.NormalizeKey(r.RecipeCode); key != "" {
			if _, ok := c.RecipeByShortCode[key]; !ok {
				c.RecipeByShortCode[key] = r
			}
		}
	}
}

func (c *Cache) indexPrices(direct, quotes []storage.PriceWithClient) {
	for _, p := range direct {
		c.PricesByRecipeID[p.Price.RecipeID] = append(c.PricesByRecipeID[p.Price.RecipeID], p.Price)
		c.addClient(p.Client)
	}
	for _, p := range quotes {
		c.QuotePricesByRecipeID[p.Price.RecipeID] = append(c.QuotePricesByRecipeID[p.Price.RecipeID], p.Price)
		c.addClient(p.Client)
	}
}

func (c *Cache) addClient(client internal.Client) {
	if client.ID == "" || client.BusinessName == "" {
		return
	}
	c.ClientsByID[client.ID] = client
}

// Candidates returns direct prices for the recipe followed by quote prices.
func (c *Cache) Candidates(recipeID string) []internal.Price {
	direct := c.PricesByRecipeID[recipeID]
	quotes := c.QuotePricesByRecipeID[recipeID]
	out := make([]internal.Price, 0, len(direct)+len(quotes))
	out = append(out, direct...)
	return append(out, quotes...)
}

// BusinessName resolves the client name for a price, preferring the client
// index over the name joined onto the price row.
func (c *Cache) BusinessName(p internal.Price) string {
	if client, ok := c.ClientsByID[p.ClientID]; ok {
		return client.BusinessName
	}
	return p.BusinessName
}

func (c *Cache) IsMaterialMapped(code string) bool {
	_, ok := c.MappedMaterialCodes[code]
	return ok
}

func (c *Cache) RemisionExists(number string) bool {
	_, ok := c.ExistingRemisionNumbers[number]
	return ok
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
