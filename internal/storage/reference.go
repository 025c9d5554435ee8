package storage

import (
	"context"

	"github.com/huandu/go-sqlbuilder"
	"github.com/pkg/errors"

	"arkik/internal"
)

type priceRow struct {
	ID               string  `db:"id"`
	RecipeID         string  `db:"recipe_id"`
	ClientID         string  `db:"client_id"`
	BusinessName     string  `db:"business_name"`
	ClientCode       string  `db:"client_code"`
	ConstructionSite string  `db:"construction_site"`
	BasePrice        float64 `db:"base_price"`
	QuoteID          string  `db:"quote_id"`
}

// PriceWithClient is a price candidate together with the client it was
// joined to.
type PriceWithClient struct {
	Price  internal.Price
	Client internal.Client
}

func (r priceRow) toPrice(source internal.PriceSource) PriceWithClient {
	p := internal.Price{
		ID:               r.ID,
		RecipeID:         r.RecipeID,
		ClientID:         r.ClientID,
		BusinessName:     r.BusinessName,
		ConstructionSite: r.ConstructionSite,
		BasePrice:        r.BasePrice,
		Source:           source,
	}
	if source == internal.SourceQuotes {
		p.QuoteID = r.QuoteID
		p.QuoteDetailID = r.ID
	}
	return PriceWithClient{
		Price:  p,
		Client: internal.Client{ID: r.ClientID, BusinessName: r.BusinessName, ClientCode: r.ClientCode},
	}
}

func (d *DB) RecipesByPlant(ctx context.Context, plantID string) ([]internal.Recipe, error) {
	sb := d.flavor.NewSelectBuilder()
	sb.Select(
		"id",
		"plant_id",
		"COALESCE(recipe_code, '') AS recipe_code",
		"COALESCE(arkik_long_code, '') AS arkik_long_code",
	)
	sb.From("recipes")
	sb.Where(sb.Equal("plant_id", plantID))
	sb.OrderBy("id")

	query, args := sb.Build()
	var out []internal.Recipe
	if err := d.conn.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, errors.Wrapf(err, "load recipes for plant %s", plantID)
	}
	return out, nil
}

// ProductPrices returns active price-list entries for the given recipes,
// joined with the client business name.
func (d *DB) ProductPrices(ctx context.Context, plantID string, recipeIDs []string) ([]PriceWithClient, error) {
	if len(recipeIDs) == 0 {
		return nil, nil
	}

	sb := d.flavor.NewSelectBuilder()
	sb.Select(
		"pp.id AS id",
		"pp.recipe_id AS recipe_id",
		"pp.client_id AS client_id",
		"COALESCE(c.business_name, '') AS business_name",
		"COALESCE(c.client_code, '') AS client_code",
		"COALESCE(pp.construction_site, '') AS construction_site",
		"pp.base_price AS base_price",
	)
	sb.From("product_prices pp")
	sb.JoinWithOption(sqlbuilder.LeftJoin, "clients c", "c.id = pp.client_id")
	sb.Where(
		sb.Equal("pp.plant_id", plantID),
		sb.Equal("pp.is_active", true),
		sb.In("pp.recipe_id", toArgs(recipeIDs)...),
	)
	sb.OrderBy("pp.recipe_id", "pp.id")

	query, args := sb.Build()
	var rows []priceRow
	if err := d.conn.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "load product prices")
	}

	out := make([]PriceWithClient, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toPrice(internal.SourceProductPrices))
	}
	return out, nil
}

// QuotePrices returns line items of approved quotes for the given recipes.
// Items whose quote has no client row are dropped.
func (d *DB) QuotePrices(ctx context.Context, plantID string, recipeIDs []string) ([]PriceWithClient, error) {
	if len(recipeIDs) == 0 {
		return nil, nil
	}

	sb := d.flavor.NewSelectBuilder()
	sb.Select(
		"qd.id AS id",
		"q.id AS quote_id",
		"qd.recipe_id AS recipe_id",
		"q.client_id AS client_id",
		"c.business_name AS business_name",
		"COALESCE(c.client_code, '') AS client_code",
		"COALESCE(q.construction_site, '') AS construction_site",
		"qd.final_price AS base_price",
	)
	sb.From("quote_details qd")
	sb.Join("quotes q", "q.id = qd.quote_id")
	sb.Join("clients c", "c.id = q.client_id")
	sb.Where(
		sb.Equal("q.plant_id", plantID),
		sb.Equal("q.status", "APPROVED"),
		sb.In("qd.recipe_id", toArgs(recipeIDs)...),
	)
	sb.OrderBy("qd.recipe_id", "qd.id")

	query, args := sb.Build()
	var rows []priceRow
	if err := d.conn.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "load quote prices")
	}

	out := make([]PriceWithClient, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toPrice(internal.SourceQuotes))
	}
	return out, nil
}

// MappedMaterialCodes returns the subset of codes with an active mapping for
// the plant.
func (d *DB) MappedMaterialCodes(ctx context.Context, plantID string, codes []string) ([]string, error) {
	if len(codes) == 0 {
		return nil, nil
	}

	sb := d.flavor.NewSelectBuilder()
	sb.Select("arkik_code").Distinct()
	sb.From("arkik_material_mapping")
	sb.Where(
		sb.Equal("plant_id", plantID),
		sb.Equal("is_active", true),
		sb.In("arkik_code", toArgs(codes)...),
	)

	query, args := sb.Build()
	var out []string
	if err := d.conn.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, errors.Wrap(err, "load material mappings")
	}
	return out, nil
}

// ExistingRemisionNumbers returns the subset of numbers already imported for
// the plant.
func (d *DB) ExistingRemisionNumbers(ctx context.Context, plantID string, numbers []string) ([]string, error) {
	if len(numbers) == 0 {
		return nil, nil
	}

	sb := d.flavor.NewSelectBuilder()
	sb.Select("remision_number").Distinct()
	sb.From("remisiones")
	sb.Where(
		sb.Equal("plant_id", plantID),
		sb.In("remision_number", toArgs(numbers)...),
	)

	query, args := sb.Build()
	var out []string
	if err := d.conn.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, errors.Wrap(err, "load existing remisiones")
	}
	return out, nil
}
