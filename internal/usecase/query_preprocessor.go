package usecase

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// keywordTokenCount is the number of leading query tokens used by the keyword tier
const keywordTokenCount = 3

// Compiled regex patterns for query preprocessing
var (
	// Matches the trailing model identifier, e.g. "X200" in "Acme Phone X200" or "SM-G991B"
	modelNumberPattern = regexp.MustCompile(`[\p{L}\p{N}_\-]+$`)

	// Multiple spaces cleanup
	multiSpacePattern = regexp.MustCompile(`\s+`)
)

// Query is a seller-entered product name broken into the parts the cascade uses
type Query struct {
	Raw     string
	Folded  string // lowercased and trimmed, for exact comparison
	Brand   string
	Model   string
	Keyword string
}

// QueryPreprocessor splits free-text product names into brand, model and keyword parts
type QueryPreprocessor struct {
	logger *zap.Logger
}

// NewQueryPreprocessor creates a new query preprocessor
func NewQueryPreprocessor(logger *zap.Logger) *QueryPreprocessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryPreprocessor{logger: logger}
}

// Parse breaks a product name into its cascade parts.
// The brand is the first whitespace token; the model is the longest trailing
// run of letters, digits, underscores and hyphens; the keyword is the first
// three tokens joined by single spaces.
func (p *QueryPreprocessor) Parse(productName string) Query {
	trimmed := strings.TrimSpace(productName)
	words := strings.Fields(trimmed)

	q := Query{
		Raw:    productName,
		Folded: foldTitle(trimmed),
	}
	if len(words) == 0 {
		return q
	}

	q.Brand = words[0]
	q.Model = modelNumberPattern.FindString(trimmed)
	q.Keyword = strings.Join(words[:min(keywordTokenCount, len(words))], " ")

	p.logger.Debug("query parsed",
		zap.String("input", productName),
		zap.String("brand", q.Brand),
		zap.String("model", q.Model),
		zap.String("keyword", q.Keyword),
	)

	return q
}

// foldTitle lowercases and trims a title for case- and whitespace-insensitive comparison
func foldTitle(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// collapseSpaces normalizes internal whitespace runs to single spaces
func collapseSpaces(s string) string {
	return strings.TrimSpace(multiSpacePattern.ReplaceAllString(s, " "))
}
