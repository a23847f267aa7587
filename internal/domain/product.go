package domain

import (
	"strconv"
	"strings"
)

// Source identifies the retailer a listing was scraped from
type Source string

const (
	SourceFlipkart        Source = "Flipkart"
	SourceRelianceDigital Source = "Reliance Digital"
	SourceCroma           Source = "Croma"
	SourceUnknown         Source = "unknown"
)

// KnownSources lists the retailers the ingestion layer scrapes, in display order
var KnownSources = []Source{SourceFlipkart, SourceRelianceDigital, SourceCroma}

// ParseSource maps a raw source label to a Source, case-insensitively
func ParseSource(s string) Source {
	trimmed := strings.TrimSpace(s)
	for _, src := range KnownSources {
		if strings.EqualFold(trimmed, string(src)) {
			return src
		}
	}
	return SourceUnknown
}

// RawRecord is a scraped listing row as written by the ingestion layer.
// Every field is text; sentinels such as "No Rating" mark missing values.
type RawRecord struct {
	Title       string `csv:"Product Title" json:"title"`
	Price       string `csv:"Price" json:"price"`
	Rating      string `csv:"Rating (⭐ out of 5)" json:"rating"`
	RatingCount string `csv:"No. of Ratings" json:"ratingCount"`
	Source      string `csv:"Source" json:"source"`
}

// ProductRecord is a normalized catalog listing.
// Price is always present; Rating and RatingCount are imputed when missing.
type ProductRecord struct {
	Title       string  `json:"title"`
	Price       float64 `json:"price"`
	Rating      float64 `json:"rating"`
	RatingCount int     `json:"ratingCount"`
	Source      Source  `json:"source"`
}

// Raw renders the record back into its textual form
func (p ProductRecord) Raw() RawRecord {
	return RawRecord{
		Title:       p.Title,
		Price:       strconv.FormatFloat(p.Price, 'f', -1, 64),
		Rating:      strconv.FormatFloat(p.Rating, 'f', -1, 64),
		RatingCount: strconv.Itoa(p.RatingCount),
		Source:      string(p.Source),
	}
}

// Catalog is an ordered collection of normalized listings.
// Titles may repeat across sources.
type Catalog []ProductRecord

// WithTitle returns the records whose title equals title exactly
func (c Catalog) WithTitle(title string) Catalog {
	var out Catalog
	for _, rec := range c {
		if rec.Title == title {
			out = append(out, rec)
		}
	}
	return out
}

// TitleContains returns the records whose title contains substr, ignoring case
func (c Catalog) TitleContains(substr string) Catalog {
	needle := strings.ToLower(substr)
	var out Catalog
	for _, rec := range c {
		if strings.Contains(strings.ToLower(rec.Title), needle) {
			out = append(out, rec)
		}
	}
	return out
}

// Prices returns the price column
func (c Catalog) Prices() []float64 {
	prices := make([]float64, len(c))
	for i, rec := range c {
		prices[i] = rec.Price
	}
	return prices
}

// CatalogSnapshot is a whole-table load of the raw catalog.
// Version changes whenever rows are ingested.
type CatalogSnapshot struct {
	Records []RawRecord
	Version string
}
