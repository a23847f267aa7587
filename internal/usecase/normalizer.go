package usecase

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/pricelens/backend/internal/domain"
)

// defaultRating is imputed when no listing in the catalog carries a rating
const defaultRating = 4.0

// missingSentinels are placeholder values the scrapers emit for absent fields
var missingSentinels = map[string]bool{
	"no data":       true,
	"no rating":     true,
	"not available": true,
}

// currencyPrefixRegex matches textual currency markers that are not Unicode symbols
var currencyPrefixRegex = regexp.MustCompile(`(?i)\b(rs\.?|inr)`)

// NormalizeStats reports what the normalizer imputed or dropped
type NormalizeStats struct {
	InputRows      int
	DroppedRows    int
	ImputedRatings int
	ImputedRating  float64
}

// Normalize converts raw scraped rows into a catalog where every record has a
// numeric price, a rating in [0,5] and a non-negative rating count.
// Rows with no usable price are dropped. Normalize does not modify raw.
func Normalize(raw []domain.RawRecord) (domain.Catalog, NormalizeStats) {
	stats := NormalizeStats{InputRows: len(raw)}

	ratings := make([]float64, len(raw))
	present := make([]bool, len(raw))
	var observed []float64
	for i, r := range raw {
		if v, ok := parseRating(r.Rating); ok {
			ratings[i] = v
			present[i] = true
			observed = append(observed, v)
		}
	}

	// Imputation uses every raw row, including rows dropped for price below.
	stats.ImputedRating = defaultRating
	if len(observed) > 0 {
		stats.ImputedRating = median(observed)
	}

	catalog := make(domain.Catalog, 0, len(raw))
	for i, r := range raw {
		price, ok := parsePrice(r.Price)
		if !ok {
			stats.DroppedRows++
			continue
		}

		rating := ratings[i]
		if !present[i] {
			rating = stats.ImputedRating
			stats.ImputedRatings++
		}

		catalog = append(catalog, domain.ProductRecord{
			Title:       strings.TrimSpace(r.Title),
			Price:       price,
			Rating:      rating,
			RatingCount: parseRatingCount(r.RatingCount),
			Source:      domain.ParseSource(r.Source),
		})
	}

	return catalog, stats
}

// isMissing reports whether a raw cell is blank or a scraper sentinel
func isMissing(s string) bool {
	trimmed := strings.TrimSpace(s)
	return trimmed == "" || missingSentinels[strings.ToLower(trimmed)]
}

func parseRating(s string) (float64, bool) {
	if isMissing(s) {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || v < 0 || v > 5 {
		return 0, false
	}
	return v, true
}

func parseRatingCount(s string) int {
	if isMissing(s) {
		return 0
	}
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return int(v)
}

// parsePrice strips currency markers and thousands separators, e.g. "₹1,299"
func parsePrice(s string) (float64, bool) {
	if isMissing(s) {
		return 0, false
	}

	cleaned := currencyPrefixRegex.ReplaceAllString(s, "")
	cleaned = strings.Map(func(r rune) rune {
		if r == ',' || unicode.IsSpace(r) || unicode.Is(unicode.Sc, r) {
			return -1
		}
		return r
	}, cleaned)

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}

// median returns the middle value of xs, averaging the two middle values for
// even lengths. xs is not modified.
func median(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
