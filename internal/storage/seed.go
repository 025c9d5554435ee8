package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"arkik/internal"
)

// QuoteRecord is a quote header with its line items.
type QuoteRecord struct {
	ID               string
	PlantID          string
	ClientID         string
	ConstructionSite string
	Status           string
	Details          []QuoteDetailRecord
}

type QuoteDetailRecord struct {
	ID         string
	RecipeID   string
	FinalPrice float64
}

func (d *DB) exec(ctx context.Context, query string, args []interface{}) error {
	_, err := d.conn.ExecContext(ctx, query, args...)
	return err
}

func (d *DB) InsertClients(ctx context.Context, clients ...internal.Client) error {
	for _, c := range clients {
		ib := d.flavor.NewInsertBuilder()
		ib.InsertInto("clients")
		ib.Cols("id", "business_name", "client_code")
		ib.Values(c.ID, c.BusinessName, c.ClientCode)
		query, args := ib.Build()
		if err := d.exec(ctx, query, args); err != nil {
			return errors.Wrapf(err, "insert client %s", c.ID)
		}
	}
	return nil
}

func (d *DB) InsertRecipes(ctx context.Context, recipes ...internal.Recipe) error {
	for _, r := range recipes {
		ib := d.flavor.NewInsertBuilder()
		ib.InsertInto("recipes")
		ib.Cols("id", "plant_id", "recipe_code", "arkik_long_code")
		ib.Values(r.ID, r.PlantID, r.RecipeCode, nullable(r.ArkikLongCode))
		query, args := ib.Build()
		if err := d.exec(ctx, query, args); err != nil {
			return errors.Wrapf(err, "insert recipe %s", r.ID)
		}
	}
	return nil
}

func (d *DB) InsertProductPrice(ctx context.Context, plantID string, p internal.Price, active bool) error {
	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}
	ib := d.flavor.NewInsertBuilder()
	ib.InsertInto("product_prices")
	ib.Cols("id", "plant_id", "recipe_id", "client_id", "construction_site", "base_price", "is_active")
	ib.Values(id, plantID, p.RecipeID, p.ClientID, nullable(p.ConstructionSite), p.BasePrice, active)
	query, args := ib.Build()
	if err := d.exec(ctx, query, args); err != nil {
		return errors.Wrapf(err, "insert product price %s", id)
	}
	return nil
}

func (d *DB) InsertQuote(ctx context.Context, q QuoteRecord) error {
	tx, err := d.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	ib := d.flavor.NewInsertBuilder()
	ib.InsertInto("quotes")
	ib.Cols("id", "plant_id", "client_id", "construction_site", "status")
	ib.Values(q.ID, q.PlantID, q.ClientID, nullable(q.ConstructionSite), q.Status)
	query, args := ib.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrapf(err, "insert quote %s", q.ID)
	}

	for _, detail := range q.Details {
		dib := d.flavor.NewInsertBuilder()
		dib.InsertInto("quote_details")
		dib.Cols("id", "quote_id", "recipe_id", "final_price")
		dib.Values(detail.ID, q.ID, detail.RecipeID, detail.FinalPrice)
		query, args := dib.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return errors.Wrapf(err, "insert quote detail %s", detail.ID)
		}
	}

	return tx.Commit()
}

func (d *DB) InsertMaterialMapping(ctx context.Context, plantID, arkikCode string, active bool) error {
	ib := d.flavor.NewInsertBuilder()
	ib.InsertInto("arkik_material_mapping")
	ib.Cols("plant_id", "arkik_code", "is_active")
	ib.Values(plantID, arkikCode, active)
	query, args := ib.Build()
	if err := d.exec(ctx, query, args); err != nil {
		return errors.Wrapf(err, "insert material mapping %s", arkikCode)
	}
	return nil
}

func (d *DB) InsertRemision(ctx context.Context, plantID, remisionNumber string) error {
	ib := d.flavor.NewInsertBuilder()
	ib.InsertInto("remisiones")
	ib.Cols("id", "plant_id", "remision_number")
	ib.Values(uuid.NewString(), plantID, remisionNumber)
	query, args := ib.Build()
	if err := d.exec(ctx, query, args); err != nil {
		return errors.Wrapf(err, "insert remision %s", remisionNumber)
	}
	return nil
}

func nullable(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}
