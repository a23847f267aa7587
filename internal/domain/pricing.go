package domain

// MatchTier names the cascade tier that produced a match
type MatchTier string

const (
	TierExact   MatchTier = "exact"
	TierModel   MatchTier = "model"
	TierKeyword MatchTier = "keyword"
	TierFuzzy   MatchTier = "fuzzy"
)

// MatchResult is the outcome of resolving a query against the catalog
type MatchResult struct {
	BestTitle      string    `json:"bestTitle,omitempty"`
	Confidence     int       `json:"confidence"` // 0-100
	Tier           MatchTier `json:"tier,omitempty"`
	MatchedRecords Catalog   `json:"matchedRecords,omitempty"`
}

// PricingFeatures are the regression inputs derived from a listing
type PricingFeatures struct {
	LogRatingCount float64 `json:"logRatingCount"`
	Rating         float64 `json:"rating"`
}

// Vector returns the features in model column order
func (f PricingFeatures) Vector() []float64 {
	return []float64{f.LogRatingCount, f.Rating}
}

// PricingPolicy selects how the final price is derived
type PricingPolicy string

const (
	// PolicyBlend weighs the model estimate, competitor median and marked-up cost
	PolicyBlend PricingPolicy = "blend"
	// PolicyMarginFloor takes the larger of the model estimate and marked-up cost
	PolicyMarginFloor PricingPolicy = "margin_floor"
)

// RecommendRequest represents a price recommendation request
type RecommendRequest struct {
	ProductName string  `json:"productName" binding:"required"`
	CostPrice   float64 `json:"costPrice" binding:"required,gt=0"`
}

// ResolveRequest represents a product resolution request
type ResolveRequest struct {
	ProductName string `json:"productName" binding:"required"`
}

// Recommendation is the recommended selling price with the signals behind it
type Recommendation struct {
	Price           float64       `json:"price"` // rounded to 2 decimal places
	BestTitle       string        `json:"bestTitle"`
	Confidence      int           `json:"confidence"`
	Tier            MatchTier     `json:"tier"`
	Policy          PricingPolicy `json:"policy"`
	PredictedPrice  float64       `json:"predictedPrice"`
	CompetitorPrice float64       `json:"competitorPrice"`
	CostPrice       float64       `json:"costPrice"`
	MatchedCount    int           `json:"matchedCount"`
	CatalogVersion  string        `json:"catalogVersion"`
	ModelCached     bool          `json:"modelCached"`
}

// SourceSummary describes the price spread of one retailer's listings
type SourceSummary struct {
	Source      Source  `json:"source"`
	Count       int     `json:"count"`
	MinPrice    float64 `json:"minPrice"`
	MedianPrice float64 `json:"medianPrice"`
	MaxPrice    float64 `json:"maxPrice"`
	MeanRating  float64 `json:"meanRating"`
}

// CatalogSummary aggregates the normalized catalog per source
type CatalogSummary struct {
	Version      string          `json:"version"`
	TotalRecords int             `json:"totalRecords"`
	DroppedRows  int             `json:"droppedRows"`
	Sources      []SourceSummary `json:"sources"`
}
