package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"arkik/internal"
	"arkik/internal/util"
)

const defaultSuggestionLimit = 3

// FindRecipe resolves a row's recipe from the batch cache. The product
// description is tried against long codes first, then the recipe code against
// short and long codes. Only exact normalized matches are accepted; on a miss
// the error carries the closest plant codes for review.
func FindRecipe(bc *BatchContext, row internal.RawRemisionRow) (*internal.Recipe, *internal.ValidationError) {
	cache := bc.Cache

	if key := util.NormalizeKey(row.ProductDescription); key != "" {
		if r, ok := cache.RecipeByLongCode[key]; ok {
			return &r, nil
		}
	}
	if key := util.NormalizeKey(row.RecipeCode); key != "" {
		if r, ok := cache.RecipeByShortCode[key]; ok {
			return &r, nil
		}
		if r, ok := cache.RecipeByLongCode[key]; ok {
			return &r, nil
		}
	}

	return nil, recipeNotFound(bc, row)
}

func recipeNotFound(bc *BatchContext, row internal.RawRemisionRow) *internal.ValidationError {
	field := "product_description"
	value := strings.TrimSpace(row.ProductDescription)
	if value == "" {
		field = "recipe_code"
		value = strings.TrimSpace(row.RecipeCode)
	}

	if value == "" {
		return &internal.ValidationError{
			RowNumber:   row.RowNumber,
			ErrorType:   internal.ErrorRecipeNotFound,
			FieldName:   field,
			FieldValue:  "",
			Message:     "row has neither product description nor recipe code",
			Recoverable: true,
		}
	}

	if !util.LooksLikeRecipeCode(value) {
		bc.logger.Warn("recipe code has unexpected shape",
			zap.Int("row", row.RowNumber),
			zap.String(field, value),
		)
	}

	codes := SuggestRecipeCodes(bc.Cache.Recipes, value, bc.suggestionLimit)
	return &internal.ValidationError{
		RowNumber:   row.RowNumber,
		ErrorType:   internal.ErrorRecipeNotFound,
		FieldName:   field,
		FieldValue:  value,
		Message:     fmt.Sprintf("recipe %q not found for plant %s", value, bc.PlantID),
		Suggestion:  &internal.Suggestion{Action: internal.ActionReviewRecipe, RecipeCodes: codes},
		Recoverable: true,
	}
}

// SuggestRecipeCodes returns up to limit recipe codes closest to value by edit
// distance. Codes further than half the longer string are not suggested.
func SuggestRecipeCodes(recipes []internal.Recipe, value string, limit int) []string {
	if limit <= 0 {
		limit = defaultSuggestionLimit
	}
	target := util.NormalizeKey(value)
	if target == "" {
		return nil
	}

	type scored struct {
		code     string
		distance int
	}
	seen := map[string]struct{}{}
	ranked := make([]scored, 0, len(recipes))
	for _, r := range recipes {
		code := r.DisplayCode()
		key := util.NormalizeKey(code)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		d := util.Levenshtein(target, key)
		if d > max(len([]rune(target)), len([]rune(key)))/2 {
			continue
		}
		ranked = append(ranked, scored{code: code, distance: d})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].distance != ranked[j].distance {
			return ranked[i].distance < ranked[j].distance
		}
		return ranked[i].code < ranked[j].code
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	out := make([]string, 0, len(ranked))
	for _, s := range ranked {
		out = append(out, s.code)
	}
	return out
}
