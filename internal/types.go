package internal

type PriceSource string

const (
	SourceProductPrices PriceSource = "product_prices"
	SourceQuotes        PriceSource = "quotes"
)

type ValidationStatus string

const (
	StatusValid   ValidationStatus = "valid"
	StatusWarning ValidationStatus = "warning"
	StatusError   ValidationStatus = "error"
)

type ErrorType string

const (
	ErrorRecipeNotFound    ErrorType = "RECIPE_NOT_FOUND"
	ErrorRecipeNoPrice     ErrorType = "RECIPE_NO_PRICE"
	ErrorMaterialNotFound  ErrorType = "MATERIAL_NOT_FOUND"
	ErrorDuplicateRemision ErrorType = "DUPLICATE_REMISION"
)

type SuggestionAction string

const (
	ActionReviewRecipe SuggestionAction = "review_recipe"
	ActionAddMapping   SuggestionAction = "add_mapping"
	ActionSkipOrUpdate SuggestionAction = "skip_or_update"
)

// RawRemisionRow is one staged dispatch ticket line. ClienteCodigo comes from
// the dispatch system and is never used for matching.
type RawRemisionRow struct {
	RowNumber          int                `json:"row_number"`
	RemisionNumber     string             `json:"remision_number"`
	ProductDescription string             `json:"product_description"`
	RecipeCode         string             `json:"recipe_code"`
	ClienteName        string             `json:"cliente_name"`
	ClienteCodigo      string             `json:"cliente_codigo"`
	ObraName           string             `json:"obra_name"`
	MaterialsTeorico   map[string]float64 `json:"materials_teorico"`
	MaterialsReal      map[string]float64 `json:"materials_real"`
	VolumenFabricado   float64            `json:"volumen_fabricado"`
}

type Recipe struct {
	ID            string `json:"id" db:"id"`
	PlantID       string `json:"plant_id" db:"plant_id"`
	RecipeCode    string `json:"recipe_code" db:"recipe_code"`
	ArkikLongCode string `json:"arkik_long_code" db:"arkik_long_code"`
}

// DisplayCode is the code shown to operators: the long code when present.
func (r Recipe) DisplayCode() string {
	if r.ArkikLongCode != "" {
		return r.ArkikLongCode
	}
	return r.RecipeCode
}

type Client struct {
	ID           string `json:"id" db:"id"`
	BusinessName string `json:"business_name" db:"business_name"`
	ClientCode   string `json:"client_code" db:"client_code"`
}

// Price is a candidate unit price for a recipe. Quote-derived prices carry
// the quote ids needed later to attach the remision to an order.
type Price struct {
	ID               string      `json:"id"`
	RecipeID         string      `json:"recipe_id"`
	ClientID         string      `json:"client_id"`
	BusinessName     string      `json:"business_name"`
	ConstructionSite string      `json:"construction_site"`
	BasePrice        float64     `json:"base_price"`
	Source           PriceSource `json:"source"`
	QuoteID          string      `json:"quote_id,omitempty"`
	QuoteDetailID    string      `json:"quote_detail_id,omitempty"`
}

type Suggestion struct {
	Action      SuggestionAction `json:"action"`
	RecipeCodes []string         `json:"recipe_codes,omitempty"`
	ArkikCode   string           `json:"arkik_code,omitempty"`
}

type ValidationError struct {
	RowNumber   int         `json:"row_number"`
	ErrorType   ErrorType   `json:"error_type"`
	FieldName   string      `json:"field_name"`
	FieldValue  string      `json:"field_value"`
	Message     string      `json:"message"`
	Suggestion  *Suggestion `json:"suggestion,omitempty"`
	Recoverable bool        `json:"recoverable"`
}

type ResolvedRow struct {
	RawRemisionRow

	RecipeID            string      `json:"recipe_id,omitempty"`
	ClientID            string      `json:"client_id,omitempty"`
	ConstructionSiteID  *string     `json:"construction_site_id"`
	UnitPrice           *float64    `json:"unit_price"`
	PriceSource         PriceSource `json:"price_source,omitempty"`
	QuoteID             string      `json:"quote_id,omitempty"`
	QuoteDetailID       string      `json:"quote_detail_id,omitempty"`
	SuggestedClientID   string      `json:"suggested_client_id,omitempty"`
	SuggestedClientName string      `json:"suggested_client_name,omitempty"`
	SuggestedSiteName   string      `json:"suggested_site_name,omitempty"`

	ValidationStatus ValidationStatus  `json:"validation_status"`
	ValidationErrors []ValidationError `json:"validation_errors"`
}

type PriceMatchStats struct {
	Direct         int `json:"direct"`
	ClientFiltered int `json:"client_filtered"`
	SiteFiltered   int `json:"site_filtered"`
	QuoteFallback  int `json:"quote_fallback"`
	Fallback       int `json:"fallback"`
}

// Stats are diagnostic counters only; nothing branches on them.
type Stats struct {
	CacheHits     int             `json:"cache_hits"`
	CacheMisses   int             `json:"cache_misses"`
	DBQueries     int             `json:"db_queries"`
	ProcessedRows int             `json:"processed_rows"`
	PriceMatches  PriceMatchStats `json:"price_matches"`
	DurationMs    int64           `json:"duration_ms"`
}

type BatchResult struct {
	Validated []ResolvedRow     `json:"validated"`
	Errors    []ValidationError `json:"errors"`
	Stats     Stats             `json:"stats"`
}

// CountByStatus tallies validated rows per status.
func (b BatchResult) CountByStatus() map[ValidationStatus]int {
	out := map[ValidationStatus]int{StatusValid: 0, StatusWarning: 0, StatusError: 0}
	for _, row := range b.Validated {
		out[row.ValidationStatus]++
	}
	return out
}
