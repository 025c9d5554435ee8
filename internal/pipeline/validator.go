package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"arkik/internal"
	"arkik/internal/reference"
	"arkik/internal/util"
)

// BatchContext is the state of a single ValidateBatch call. It is discarded
// when the call returns.
type BatchContext struct {
	PlantID string
	Cache   *reference.Cache
	Stats   internal.Stats
	Errors  []internal.ValidationError

	resolved        map[string]resolution
	logger          *zap.Logger
	suggestionLimit int
}

// resolution is the cacheable part of a resolved row. Validation errors are
// never part of it.
type resolution struct {
	RecipeID            string
	ClientID            string
	UnitPrice           float64
	PriceSource         internal.PriceSource
	QuoteID             string
	QuoteDetailID       string
	SuggestedClientID   string
	SuggestedClientName string
	SuggestedSiteName   string
}

func newBatchContext(plantID string, cache *reference.Cache, logger *zap.Logger, suggestionLimit int) *BatchContext {
	return &BatchContext{
		PlantID:         plantID,
		Cache:           cache,
		Stats:           internal.Stats{DBQueries: cache.Queries},
		Errors:          []internal.ValidationError{},
		resolved:        map[string]resolution{},
		logger:          logger,
		suggestionLimit: suggestionLimit,
	}
}

func (bc *BatchContext) recordMatch(m PriceMatch) {
	switch m.Strategy {
	case StrategyDirect:
		bc.Stats.PriceMatches.Direct++
	case StrategyClientFiltered:
		bc.Stats.PriceMatches.ClientFiltered++
	case StrategySiteFiltered:
		bc.Stats.PriceMatches.SiteFiltered++
	default:
		bc.Stats.PriceMatches.Fallback++
	}
	if m.Source == internal.SourceQuotes {
		bc.Stats.PriceMatches.QuoteFallback++
	}
}

// Validator resolves and validates staged remision rows against reference
// data. It never writes.
type Validator struct {
	src             reference.Source
	logger          *zap.Logger
	suggestionLimit int
}

func NewValidator(src reference.Source, logger *zap.Logger, suggestionLimit int) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if suggestionLimit <= 0 {
		suggestionLimit = defaultSuggestionLimit
	}
	return &Validator{src: src, logger: logger, suggestionLimit: suggestionLimit}
}

// ValidateBatch resolves every row of a batch for one plant. Output rows keep
// input order. A returned error means reference data could not be loaded;
// problems with individual rows are reported in the result instead.
func (v *Validator) ValidateBatch(ctx context.Context, plantID string, rows []internal.RawRemisionRow) (internal.BatchResult, error) {
	start := time.Now()
	logger := v.logger.With(zap.String("plant_id", plantID))

	cache, err := reference.Build(ctx, v.src, plantID, rows, logger)
	if err != nil {
		return internal.BatchResult{}, err
	}

	bc := newBatchContext(plantID, cache, logger, v.suggestionLimit)
	validated := make([]internal.ResolvedRow, 0, len(rows))
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return internal.BatchResult{}, err
		}
		validated = append(validated, validateRow(bc, row))
	}
	bc.Stats.DurationMs = time.Since(start).Milliseconds()

	result := internal.BatchResult{Validated: validated, Errors: bc.Errors, Stats: bc.Stats}
	counts := result.CountByStatus()
	logger.Info("batch validated",
		zap.Int("rows", len(rows)),
		zap.Int("valid", counts[internal.StatusValid]),
		zap.Int("warning", counts[internal.StatusWarning]),
		zap.Int("error", counts[internal.StatusError]),
		zap.Int("cache_hits", bc.Stats.CacheHits),
		zap.Int("cache_misses", bc.Stats.CacheMisses),
		zap.Int("db_queries", bc.Stats.DBQueries),
		zap.Int64("duration_ms", bc.Stats.DurationMs),
	)
	return result, nil
}

func validateRow(bc *BatchContext, row internal.RawRemisionRow) internal.ResolvedRow {
	bc.Stats.ProcessedRows++
	out := internal.ResolvedRow{RawRemisionRow: row, ValidationErrors: []internal.ValidationError{}}

	key := resolutionKey(row)
	res, hit := bc.resolved[key]
	if hit {
		bc.Stats.CacheHits++
	} else {
		bc.Stats.CacheMisses++

		recipe, verr := FindRecipe(bc, row)
		if verr != nil {
			return terminate(bc, out, *verr)
		}
		out.RecipeID = recipe.ID

		match, ok := SelectBestPrice(bc, bc.Cache.Candidates(recipe.ID), row)
		if !ok {
			return terminate(bc, out, noPriceError(row, *recipe))
		}
		bc.recordMatch(match)
		bc.logger.Debug("price resolved",
			zap.Int("row", row.RowNumber),
			zap.String("recipe_id", recipe.ID),
			zap.String("source", string(match.Source)),
			zap.String("strategy", string(match.Strategy)),
			zap.Float64("client_score", match.ClientScore),
			zap.Float64("site_score", match.SiteScore),
		)

		res = resolution{
			RecipeID:            recipe.ID,
			ClientID:            match.Price.ClientID,
			UnitPrice:           match.Price.BasePrice,
			PriceSource:         match.Source,
			QuoteID:             match.Price.QuoteID,
			QuoteDetailID:       match.Price.QuoteDetailID,
			SuggestedClientID:   match.Price.ClientID,
			SuggestedClientName: bc.Cache.BusinessName(match.Price),
			SuggestedSiteName:   match.Price.ConstructionSite,
		}
		if key != "" {
			bc.resolved[key] = res
		}
	}

	applyResolution(&out, res)
	for _, verr := range materialErrors(bc, row) {
		addError(bc, &out, verr)
	}
	if verr := duplicateError(bc, row); verr != nil {
		addError(bc, &out, *verr)
	}
	out.ValidationStatus = statusOf(out.ValidationErrors)
	return out
}

// resolutionKey identifies rows that resolve identically: same product code,
// client name and site name after normalization.
func resolutionKey(row internal.RawRemisionRow) string {
	product := util.NormalizeKey(row.ProductDescription)
	if product == "" {
		product = util.NormalizeKey(row.RecipeCode)
	}
	if product == "" {
		return ""
	}
	return product + "::" + util.NormalizeKey(row.ClienteName) + "::" + util.NormalizeKey(row.ObraName)
}

func applyResolution(out *internal.ResolvedRow, res resolution) {
	out.RecipeID = res.RecipeID
	out.ClientID = res.ClientID
	out.UnitPrice = util.FloatPtr(res.UnitPrice)
	out.PriceSource = res.PriceSource
	out.QuoteID = res.QuoteID
	out.QuoteDetailID = res.QuoteDetailID
	out.SuggestedClientID = res.SuggestedClientID
	out.SuggestedClientName = res.SuggestedClientName
	out.SuggestedSiteName = res.SuggestedSiteName
}

// terminate ends processing of a row that could not be priced. Such rows are
// always errors, whatever the recoverability of the cause.
func terminate(bc *BatchContext, out internal.ResolvedRow, verr internal.ValidationError) internal.ResolvedRow {
	addError(bc, &out, verr)
	out.ValidationStatus = internal.StatusError
	bc.logger.Debug("row rejected",
		zap.Int("row", out.RowNumber),
		zap.String("error_type", string(verr.ErrorType)),
		zap.String("value", verr.FieldValue),
	)
	return out
}

func addError(bc *BatchContext, out *internal.ResolvedRow, verr internal.ValidationError) {
	out.ValidationErrors = append(out.ValidationErrors, verr)
	bc.Errors = append(bc.Errors, verr)
}

func noPriceError(row internal.RawRemisionRow, recipe internal.Recipe) internal.ValidationError {
	code := recipe.DisplayCode()
	return internal.ValidationError{
		RowNumber:   row.RowNumber,
		ErrorType:   internal.ErrorRecipeNoPrice,
		FieldName:   "recipe_code",
		FieldValue:  code,
		Message:     fmt.Sprintf("recipe %s has no active price or approved quote", code),
		Recoverable: true,
	}
}

func materialErrors(bc *BatchContext, row internal.RawRemisionRow) []internal.ValidationError {
	if !bc.Cache.MaterialsLoaded {
		return nil
	}

	codes := map[string]struct{}{}
	for code := range row.MaterialsTeorico {
		codes[strings.TrimSpace(code)] = struct{}{}
	}
	for code := range row.MaterialsReal {
		codes[strings.TrimSpace(code)] = struct{}{}
	}
	delete(codes, "")

	sorted := make([]string, 0, len(codes))
	for code := range codes {
		sorted = append(sorted, code)
	}
	sort.Strings(sorted)

	var out []internal.ValidationError
	for _, code := range sorted {
		if bc.Cache.IsMaterialMapped(code) {
			continue
		}
		out = append(out, internal.ValidationError{
			RowNumber:   row.RowNumber,
			ErrorType:   internal.ErrorMaterialNotFound,
			FieldName:   "materials",
			FieldValue:  code,
			Message:     fmt.Sprintf("material %s has no mapping for plant %s", code, bc.PlantID),
			Suggestion:  &internal.Suggestion{Action: internal.ActionAddMapping, ArkikCode: code},
			Recoverable: true,
		})
	}
	return out
}

func duplicateError(bc *BatchContext, row internal.RawRemisionRow) *internal.ValidationError {
	number := strings.TrimSpace(row.RemisionNumber)
	if number == "" || !bc.Cache.RemisionExists(number) {
		return nil
	}
	return &internal.ValidationError{
		RowNumber:   row.RowNumber,
		ErrorType:   internal.ErrorDuplicateRemision,
		FieldName:   "remision_number",
		FieldValue:  number,
		Message:     fmt.Sprintf("remision %s already exists for plant %s", number, bc.PlantID),
		Suggestion:  &internal.Suggestion{Action: internal.ActionSkipOrUpdate},
		Recoverable: false,
	}
}

func statusOf(errs []internal.ValidationError) internal.ValidationStatus {
	if len(errs) == 0 {
		return internal.StatusValid
	}
	for _, e := range errs {
		if !e.Recoverable {
			return internal.StatusError
		}
	}
	return internal.StatusWarning
}
