package pipeline

import (
	"sort"
	"strings"

	"arkik/internal"
	"arkik/internal/util"
)

type MatchStrategy string

const (
	StrategyDirect         MatchStrategy = "direct"
	StrategyClientFiltered MatchStrategy = "client_filtered"
	StrategySiteFiltered   MatchStrategy = "site_filtered"
	StrategyFallback       MatchStrategy = "fallback"
)

const (
	strongMatchScore = 0.7
	nearTieMargin    = 0.1
)

// PriceMatch is the winning candidate with the scores that selected it.
type PriceMatch struct {
	Price       internal.Price
	ClientScore float64
	SiteScore   float64
	TotalScore  float64
	Source      internal.PriceSource
	Strategy    MatchStrategy
}

// ClientSimilarity scores how well a dispatch client name matches a price's
// client business name, from 0 to 1.
func ClientSimilarity(inputName, businessName string) float64 {
	input := util.NormalizeKey(inputName)
	business := util.NormalizeKey(businessName)
	if input == "" || business == "" {
		return 0
	}
	if input == business {
		return 1.0
	}
	if strings.Contains(business, input) || strings.Contains(input, business) {
		return 0.9
	}

	inputWords := util.Words(input, 2)
	businessWords := util.Words(business, 2)
	if len(inputWords) == 0 || len(businessWords) == 0 {
		return 0
	}

	matching := 0
	for _, w := range inputWords {
		for _, bw := range businessWords {
			if strings.Contains(bw, w) || strings.Contains(w, bw) {
				matching++
				break
			}
		}
	}
	if matching == 0 {
		return 0
	}
	return 0.6 + 0.3*float64(matching)/float64(max(len(inputWords), len(businessWords)))
}

// SiteSimilarity scores a dispatch site name against a price's construction
// site. Missing data on either side gets the 0.1 floor.
func SiteSimilarity(inputSite, pricingSite string) float64 {
	input := util.NormalizeKey(inputSite)
	site := util.NormalizeKey(pricingSite)
	if input == "" || site == "" {
		return 0.1
	}
	if input == site {
		return 1.0
	}
	if util.StripSpaces(input) == util.StripSpaces(site) {
		return 0.95
	}
	if strings.Contains(site, input) || strings.Contains(input, site) {
		return 0.9
	}
	return 0.1
}

// SelectBestPrice ranks candidates by client plus site similarity. A single
// candidate is taken as is. When the best candidate comes from a quote and a
// price-list entry scores within nearTieMargin of it, the price-list entry
// wins. ok is false when there are no candidates.
func SelectBestPrice(bc *BatchContext, candidates []internal.Price, row internal.RawRemisionRow) (PriceMatch, bool) {
	if len(candidates) == 0 {
		return PriceMatch{}, false
	}
	businessName := func(p internal.Price) string { return p.BusinessName }
	if bc != nil && bc.Cache != nil {
		businessName = bc.Cache.BusinessName
	}

	if len(candidates) == 1 {
		p := candidates[0]
		return PriceMatch{
			Price:       p,
			ClientScore: 1,
			SiteScore:   1,
			TotalScore:  2,
			Source:      p.Source,
			Strategy:    StrategyDirect,
		}, true
	}

	scored := make([]PriceMatch, 0, len(candidates))
	strongClient, strongSite := false, false
	for _, p := range candidates {
		client := ClientSimilarity(row.ClienteName, businessName(p))
		site := SiteSimilarity(row.ObraName, p.ConstructionSite)
		if client > strongMatchScore {
			strongClient = true
		}
		if site > strongMatchScore {
			strongSite = true
		}
		scored = append(scored, PriceMatch{
			Price:       p,
			ClientScore: client,
			SiteScore:   site,
			TotalScore:  client + site,
			Source:      p.Source,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].TotalScore > scored[j].TotalScore
	})

	best := scored[0]
	if best.Source == internal.SourceQuotes {
		for _, m := range scored[1:] {
			if best.TotalScore-m.TotalScore >= nearTieMargin {
				break
			}
			if m.Source == internal.SourceProductPrices {
				best = m
				break
			}
		}
	}

	switch {
	case strongClient && strongSite:
		best.Strategy = StrategySiteFiltered
	case strongClient:
		best.Strategy = StrategyClientFiltered
	default:
		best.Strategy = StrategyFallback
	}
	return best, true
}
