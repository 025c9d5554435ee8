package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"arkik/internal"
)

// Report is the persisted outcome of one processed batch file.
type Report struct {
	BatchID     string                            `json:"batch_id"`
	PlantID     string                            `json:"plant_id"`
	SourceFile  string                            `json:"source_file"`
	GeneratedAt time.Time                         `json:"generated_at"`
	Summary     map[internal.ValidationStatus]int `json:"summary"`
	internal.BatchResult
}

func WriteJSONReport(report Report, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	blob, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, blob, 0o644)
}

// ExportRowsToXLSX writes one line per resolved row for operator review.
func ExportRowsToXLSX(rows []internal.ResolvedRow, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	headers := []string{
		"row_number", "remision_number", "product_description", "recipe_code",
		"cliente_name", "obra_name", "volumen_fabricado",
		"validation_status", "recipe_id", "client_id", "unit_price", "price_source",
		"quote_id", "suggested_client_name", "suggested_site_name",
		"error_types", "messages",
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		errorTypes, messages := "", ""
		for j, e := range row.ValidationErrors {
			if j > 0 {
				errorTypes += ", "
				messages += "; "
			}
			errorTypes += string(e.ErrorType)
			messages += e.Message
		}

		set(1, row.RowNumber)
		set(2, row.RemisionNumber)
		set(3, row.ProductDescription)
		set(4, row.RecipeCode)
		set(5, row.ClienteName)
		set(6, row.ObraName)
		set(7, row.VolumenFabricado)
		set(8, string(row.ValidationStatus))
		set(9, row.RecipeID)
		set(10, row.ClientID)
		set(11, derefFloat(row.UnitPrice))
		set(12, string(row.PriceSource))
		set(13, row.QuoteID)
		set(14, row.SuggestedClientName)
		set(15, row.SuggestedSiteName)
		set(16, errorTypes)
		set(17, messages)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func derefFloat(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
