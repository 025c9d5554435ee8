package pipeline

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"arkik/internal"
	"arkik/internal/util"
)

type column int

const (
	colUnknown column = iota
	colRemision
	colProduct
	colRecipeCode
	colClienteName
	colClienteCodigo
	colObra
	colVolumen
	colTeorico
	colReal
)

const (
	teoricoPrefix = "teorico:"
	realPrefix    = "real:"
)

type sheetLayout struct {
	index     map[column]int
	materials map[int]materialColumn
}

type materialColumn struct {
	kind column
	code string
}

// ReadStagedFile reads a staged remision sheet from disk.
func ReadStagedFile(path string) ([]internal.RawRemisionRow, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseStagedXLSX(content)
}

// parseStagedXLSX reads the first sheet of a staged export: one header row,
// then one remision per row.
func parseStagedXLSX(content []byte) ([]internal.RawRemisionRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []internal.RawRemisionRow{}, nil
	}

	layout := inferLayout(rows[0])
	if _, ok := layout.index[colRemision]; !ok {
		return nil, fmt.Errorf("sheet %q: no remision column", sheets[0])
	}
	_, hasProduct := layout.index[colProduct]
	_, hasRecipe := layout.index[colRecipeCode]
	if !hasProduct && !hasRecipe {
		return nil, fmt.Errorf("sheet %q: no product or recipe column", sheets[0])
	}

	out := []internal.RawRemisionRow{}
	for i, raw := range rows[1:] {
		cells := normalizeCells(raw)
		if isBlank(cells) {
			continue
		}

		row := internal.RawRemisionRow{
			RowNumber:          i + 2,
			RemisionNumber:     layout.cell(cells, colRemision),
			ProductDescription: layout.cell(cells, colProduct),
			RecipeCode:         layout.cell(cells, colRecipeCode),
			ClienteName:        layout.cell(cells, colClienteName),
			ClienteCodigo:      layout.cell(cells, colClienteCodigo),
			ObraName:           layout.cell(cells, colObra),
			MaterialsTeorico:   map[string]float64{},
			MaterialsReal:      map[string]float64{},
		}
		if v, ok := util.ParseNumber(layout.cell(cells, colVolumen)); ok {
			row.VolumenFabricado = v
		}

		for idx, m := range layout.materials {
			qty, ok := util.ParseNumber(pickCell(cells, idx))
			if !ok {
				continue
			}
			if m.kind == colTeorico {
				row.MaterialsTeorico[m.code] = qty
			} else {
				row.MaterialsReal[m.code] = qty
			}
		}
		out = append(out, row)
	}
	return out, nil
}

func inferLayout(headers []string) sheetLayout {
	layout := sheetLayout{index: map[column]int{}, materials: map[int]materialColumn{}}
	for i, h := range headers {
		raw := strings.TrimSpace(h)
		norm := util.NormalizeKey(raw)

		if kind := materialKind(norm); kind != colUnknown {
			_, code, _ := strings.Cut(raw, ":")
			if code = strings.TrimSpace(code); code != "" {
				layout.materials[i] = materialColumn{kind: kind, code: code}
			}
			continue
		}

		col := classifyHeader(norm)
		if col == colUnknown {
			continue
		}
		if _, seen := layout.index[col]; !seen {
			layout.index[col] = i
		}
	}
	return layout
}

func materialKind(h string) column {
	switch {
	case strings.HasPrefix(h, teoricoPrefix):
		return colTeorico
	case strings.HasPrefix(h, realPrefix):
		return colReal
	}
	return colUnknown
}

func classifyHeader(h string) column {
	switch {
	case containsAny(h, "codigo", "código") && containsAny(h, "cliente", "client"):
		return colClienteCodigo
	case containsAny(h, "remisi"):
		return colRemision
	case containsAny(h, "receta", "recipe"):
		return colRecipeCode
	case containsAny(h, "producto", "product"):
		return colProduct
	case containsAny(h, "cliente", "client"):
		return colClienteName
	case containsAny(h, "obra", "site"):
		return colObra
	case containsAny(h, "volumen", "volume"):
		return colVolumen
	}
	return colUnknown
}

func (l sheetLayout) cell(cells []string, col column) string {
	idx, ok := l.index[col]
	if !ok {
		return ""
	}
	return pickCell(cells, idx)
}

func containsAny(s string, probes ...string) bool {
	for _, p := range probes {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func pickCell(cells []string, idx int) string {
	if idx >= 0 && idx < len(cells) {
		return cells[idx]
	}
	return ""
}

func normalizeCells(row []string) []string {
	out := make([]string, 0, len(row))
	for _, c := range row {
		out = append(out, strings.Join(strings.Fields(c), " "))
	}
	return out
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
