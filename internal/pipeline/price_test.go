package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arkik/internal"
)

func TestClientSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		business string
		want     float64
	}{
		{"exact after normalization", "  Constructora   ACME ", "constructora acme", 1.0},
		{"input abbreviates business", "ACME", "CONSTRUCTORA ACME SA DE CV", 0.9},
		{"business inside input", "GRUPO NORTE OBRAS", "norte", 0.9},
		{"word overlap", "ACME CONSTRUCCIONES", "CONSTRUCTORA ACME SA DE CV", 0.6 + 0.3*1.0/2.0},
		{"no overlap", "PAVIMENTOS DEL BAJIO", "CONSTRUCTORA ACME", 0},
		{"short words ignored", "SA DE", "DE CV SA", 0},
		{"empty input", "", "CONSTRUCTORA ACME", 0},
		{"empty business", "ACME", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ClientSimilarity(tt.input, tt.business), 1e-9)
		})
	}
}

func TestClientSimilarityMonotonic(t *testing.T) {
	business := "CONSTRUCTORA ACME SA DE CV"
	exact := ClientSimilarity("constructora acme sa de cv", business)
	substring := ClientSimilarity("ACME SA", business)
	overlap := ClientSimilarity("ACME INMOBILIARIA", business)
	none := ClientSimilarity("PAVIMENTOS BAJIO", business)

	assert.GreaterOrEqual(t, exact, substring)
	assert.GreaterOrEqual(t, substring, overlap)
	assert.GreaterOrEqual(t, overlap, none)
	assert.Greater(t, overlap, 0.0)
	assert.Zero(t, none)
}

func TestSiteSimilarity(t *testing.T) {
	tests := []struct {
		name  string
		input string
		site  string
		want  float64
	}{
		{"exact", "Torre Norte", "TORRE NORTE", 1.0},
		{"spacing only", "TorreNorte", "Torre Norte", 0.95},
		{"substring", "Torre", "Torre Norte Etapa 2", 0.9},
		{"different", "Puente Sur", "Torre Norte", 0.1},
		{"empty input", "", "Torre Norte", 0.1},
		{"empty site", "Torre Norte", "", 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, SiteSimilarity(tt.input, tt.site), 1e-9)
		})
	}
}

func TestSelectBestPriceSingleCandidate(t *testing.T) {
	only := internal.Price{ID: "PP1", RecipeID: "R1", ClientID: "C1", BusinessName: "ACME", BasePrice: 1850, Source: internal.SourceProductPrices}
	row := internal.RawRemisionRow{ClienteName: "totally unrelated", ObraName: "nowhere"}

	m, ok := SelectBestPrice(nil, []internal.Price{only}, row)
	require.True(t, ok)
	assert.Equal(t, only, m.Price)
	assert.Equal(t, 1.0, m.ClientScore)
	assert.Equal(t, 1.0, m.SiteScore)
	assert.Equal(t, 2.0, m.TotalScore)
	assert.Equal(t, StrategyDirect, m.Strategy)
}

func TestSelectBestPriceNoCandidates(t *testing.T) {
	_, ok := SelectBestPrice(nil, nil, internal.RawRemisionRow{})
	assert.False(t, ok)
}

func TestSelectBestPriceRanksByClientAndSite(t *testing.T) {
	candidates := []internal.Price{
		{ID: "PP1", ClientID: "C2", BusinessName: "GRUPO NORTE", ConstructionSite: "Torre Norte", BasePrice: 1900, Source: internal.SourceProductPrices},
		{ID: "PP2", ClientID: "C1", BusinessName: "CONSTRUCTORA ACME SA DE CV", ConstructionSite: "Puente Sur", BasePrice: 1800, Source: internal.SourceProductPrices},
		{ID: "PP3", ClientID: "C1", BusinessName: "CONSTRUCTORA ACME SA DE CV", ConstructionSite: "Torre Norte", BasePrice: 1850, Source: internal.SourceProductPrices},
	}
	row := internal.RawRemisionRow{ClienteName: "ACME", ObraName: "torre norte"}

	m, ok := SelectBestPrice(nil, candidates, row)
	require.True(t, ok)
	assert.Equal(t, "PP3", m.Price.ID)
	assert.InDelta(t, 1.9, m.TotalScore, 1e-9)
	assert.Equal(t, StrategySiteFiltered, m.Strategy)
}

func TestSelectBestPriceStrategies(t *testing.T) {
	candidates := []internal.Price{
		{ID: "PP1", BusinessName: "CONSTRUCTORA ACME", ConstructionSite: "Torre Norte", Source: internal.SourceProductPrices},
		{ID: "PP2", BusinessName: "GRUPO NORTE", ConstructionSite: "Puente Sur", Source: internal.SourceProductPrices},
	}

	m, _ := SelectBestPrice(nil, candidates, internal.RawRemisionRow{ClienteName: "ACME", ObraName: "Parque Industrial"})
	assert.Equal(t, StrategyClientFiltered, m.Strategy)
	assert.Equal(t, "PP1", m.Price.ID)

	m, _ = SelectBestPrice(nil, candidates, internal.RawRemisionRow{ClienteName: "PAVIMENTOS BAJIO", ObraName: "Parque Industrial"})
	assert.Equal(t, StrategyFallback, m.Strategy)
	assert.Equal(t, "PP1", m.Price.ID, "stable order keeps the first of equal totals")
}

func TestSelectBestPricePrefersPriceListOnNearTie(t *testing.T) {
	candidates := []internal.Price{
		{ID: "PP1", ClientID: "C1", BusinessName: "CONSTRUCTORA ACME", ConstructionSite: "TorreNorte", BasePrice: 1850, Source: internal.SourceProductPrices},
		{ID: "QD1", ClientID: "C1", BusinessName: "CONSTRUCTORA ACME", ConstructionSite: "Torre Norte", BasePrice: 1700, Source: internal.SourceQuotes, QuoteID: "Q1", QuoteDetailID: "QD1"},
	}
	row := internal.RawRemisionRow{ClienteName: "CONSTRUCTORA ACME", ObraName: "Torre Norte"}

	// quote scores 2.0, price list 1.95: within the tie margin
	m, ok := SelectBestPrice(nil, candidates, row)
	require.True(t, ok)
	assert.Equal(t, "PP1", m.Price.ID)
	assert.Equal(t, internal.SourceProductPrices, m.Source)
}

func TestSelectBestPriceKeepsClearQuoteWinner(t *testing.T) {
	candidates := []internal.Price{
		{ID: "PP1", ClientID: "C2", BusinessName: "GRUPO NORTE", ConstructionSite: "Puente Sur", Source: internal.SourceProductPrices},
		{ID: "QD1", ClientID: "C1", BusinessName: "CONSTRUCTORA ACME", ConstructionSite: "Torre Norte", Source: internal.SourceQuotes, QuoteID: "Q1", QuoteDetailID: "QD1"},
	}
	row := internal.RawRemisionRow{ClienteName: "CONSTRUCTORA ACME", ObraName: "Torre Norte"}

	m, ok := SelectBestPrice(nil, candidates, row)
	require.True(t, ok)
	assert.Equal(t, "QD1", m.Price.ID)
	assert.Equal(t, internal.SourceQuotes, m.Source)
	assert.Equal(t, "Q1", m.Price.QuoteID)
}
