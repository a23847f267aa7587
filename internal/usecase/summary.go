package usecase

import (
	"github.com/pricelens/backend/internal/domain"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// SummarizeCatalog reports the price spread per retailer. Known retailers come
// first in their fixed order; unknown sources are grouped last. Retailers with
// no listings are omitted.
func SummarizeCatalog(catalog domain.Catalog) *domain.CatalogSummary {
	prices := make(map[domain.Source][]float64)
	ratings := make(map[domain.Source][]float64)
	for _, rec := range catalog {
		prices[rec.Source] = append(prices[rec.Source], rec.Price)
		ratings[rec.Source] = append(ratings[rec.Source], rec.Rating)
	}

	summary := &domain.CatalogSummary{TotalRecords: len(catalog)}
	order := append(append([]domain.Source(nil), domain.KnownSources...), domain.SourceUnknown)
	for _, src := range order {
		p := prices[src]
		if len(p) == 0 {
			continue
		}
		summary.Sources = append(summary.Sources, domain.SourceSummary{
			Source:      src,
			Count:       len(p),
			MinPrice:    floats.Min(p),
			MedianPrice: median(p),
			MaxPrice:    floats.Max(p),
			MeanRating:  roundCents(stat.Mean(ratings[src], nil)),
		})
	}
	return summary
}
