package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pricelens/backend/internal/domain"
	"go.uber.org/zap"
)

const (
	serviceName    = "pricelens-backend"
	serviceVersion = "1.0.0"
)

// PricingService is the usecase surface the handlers depend on
type PricingService interface {
	RecommendPrice(ctx context.Context, productName string, costPrice float64) (*domain.Recommendation, error)
	ResolveProduct(ctx context.Context, productName string) (*domain.MatchResult, error)
	Summary(ctx context.Context) (*domain.CatalogSummary, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	pricingService PricingService
	logger         *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(pricingService PricingService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		pricingService: pricingService,
		logger:         logger,
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": serviceName,
		"version": serviceVersion,
	})
}

// RecommendPrice handles price recommendation requests
// POST /api/v1/price/recommend
func (h *Handler) RecommendPrice(c *gin.Context) {
	if h.pricingService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "pricing service not configured"})
		return
	}

	var req domain.RecommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid request",
			"details": err.Error(),
		})
		return
	}

	rec, err := h.pricingService.RecommendPrice(c.Request.Context(), req.ProductName, req.CostPrice)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, rec)
}

// ResolveProduct runs only the matching cascade
// POST /api/v1/price/resolve
func (h *Handler) ResolveProduct(c *gin.Context) {
	if h.pricingService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "pricing service not configured"})
		return
	}

	var req domain.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid request",
			"details": err.Error(),
		})
		return
	}

	result, err := h.pricingService.ResolveProduct(c.Request.Context(), req.ProductName)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bestTitle":    result.BestTitle,
		"confidence":   result.Confidence,
		"tier":         result.Tier,
		"matchedCount": len(result.MatchedRecords),
		"matched":      result.MatchedRecords,
	})
}

// CatalogSummary reports per-source price statistics
// GET /api/v1/catalog/summary
func (h *Handler) CatalogSummary(c *gin.Context) {
	if h.pricingService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "pricing service not configured"})
		return
	}

	summary, err := h.pricingService.Summary(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// respondError maps domain errors to status codes. Resolution failures carry
// the best candidate so callers can see what was almost matched.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": err.Error()}

	var matchErr *domain.MatchError
	if errors.As(err, &matchErr) && matchErr.BestTitle != "" {
		body["bestMatch"] = matchErr.BestTitle
		body["confidence"] = matchErr.Confidence
		body["tier"] = matchErr.Tier
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err), zap.String("requestID", c.GetString(requestIDKey)))
		if status == http.StatusInternalServerError {
			body["error"] = "internal server error"
		}
	}

	_ = c.Error(err)
	c.JSON(status, body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNoBrandMatch), errors.Is(err, domain.ErrTargetNotInCatalog):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrLowConfidence), errors.Is(err, domain.ErrEmptyFeatureSet):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNoCatalog):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
