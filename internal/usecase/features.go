package usecase

import (
	"math"

	"github.com/pricelens/backend/internal/domain"
)

// FeaturesFor derives regression features from a single listing
func FeaturesFor(rec domain.ProductRecord) domain.PricingFeatures {
	return domain.PricingFeatures{
		LogRatingCount: math.Log1p(float64(rec.RatingCount)),
		Rating:         rec.Rating,
	}
}

// BuildFeatures derives one feature row per matched record. NaN cells are
// filled with the column median; a column with no usable values leaves the
// feature set empty.
func BuildFeatures(records domain.Catalog) ([]domain.PricingFeatures, error) {
	if len(records) == 0 {
		return nil, domain.ErrEmptyFeatureSet
	}

	features := make([]domain.PricingFeatures, len(records))
	var counts, ratings []float64
	for i, rec := range records {
		features[i] = FeaturesFor(rec)
		if !math.IsNaN(features[i].LogRatingCount) {
			counts = append(counts, features[i].LogRatingCount)
		}
		if !math.IsNaN(features[i].Rating) {
			ratings = append(ratings, features[i].Rating)
		}
	}

	if len(counts) == 0 || len(ratings) == 0 {
		return nil, domain.ErrEmptyFeatureSet
	}

	if len(counts) < len(features) || len(ratings) < len(features) {
		countMedian, ratingMedian := median(counts), median(ratings)
		for i := range features {
			if math.IsNaN(features[i].LogRatingCount) {
				features[i].LogRatingCount = countMedian
			}
			if math.IsNaN(features[i].Rating) {
				features[i].Rating = ratingMedian
			}
		}
	}

	return features, nil
}
