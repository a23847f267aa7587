package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pricelens/backend/config"
	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/infrastructure/cache"
	"github.com/pricelens/backend/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMain sets up test environment before running tests
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// stubCatalog serves a fixed snapshot
type stubCatalog struct {
	snapshot *domain.CatalogSnapshot
	err      error
}

func (s *stubCatalog) Snapshot(ctx context.Context) (*domain.CatalogSnapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.snapshot, nil
}

func testSnapshot() *domain.CatalogSnapshot {
	return &domain.CatalogSnapshot{
		Version: "test-1",
		Records: []domain.RawRecord{
			{Title: "Acme X200", Price: "₹1,000", Rating: "4.2", RatingCount: "50", Source: "Flipkart"},
			{Title: "Acme X200", Price: "₹1,100", Rating: "4.2", RatingCount: "50", Source: "Croma"},
			{Title: "Acme X200", Price: "₹900", Rating: "4.2", RatingCount: "50", Source: "Reliance Digital"},
			{Title: "Acme Phone Pro Max 128GB", Price: "₹30,000", Rating: "4.5", RatingCount: "1,204", Source: "Flipkart"},
			{Title: "Zenith Blender 500W", Price: "Not Available", Rating: "No Rating", RatingCount: "No Data", Source: "Croma"},
		},
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			Environment:    "test",
			AllowedOrigins: []string{"http://localhost:*"},
		},
	}
}

// setupTestRouter wires the real pricing pipeline over an in-memory catalog
func setupTestRouter(t *testing.T, repo domain.CatalogRepository, svcConfig usecase.PricingServiceConfig) *gin.Engine {
	t.Helper()

	memoryCache := cache.NewMemoryCache(0)
	t.Cleanup(memoryCache.Close)

	svc := usecase.NewPricingService(repo, memoryCache, svcConfig, nil)
	return SetupRouter(testConfig(), NewHandler(svc, nil), nil)
}

func postJSON(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealthCheckEndpoint(t *testing.T) {
	router := SetupRouter(testConfig(), NewHandler(nil, nil), nil)

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "pricelens-backend", body["service"])
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRecommendEndpoint(t *testing.T) {
	t.Run("returns a blended price for an exact match", func(t *testing.T) {
		router := setupTestRouter(t, &stubCatalog{snapshot: testSnapshot()}, usecase.PricingServiceConfig{})

		w := postJSON(router, "/api/v1/price/recommend", `{"productName":"Acme X200","costPrice":700}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var rec domain.Recommendation
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
		assert.Equal(t, "Acme X200", rec.BestTitle)
		assert.Equal(t, 100, rec.Confidence)
		assert.Equal(t, domain.TierExact, rec.Tier)
		assert.Equal(t, 1000.0, rec.CompetitorPrice)
		assert.Equal(t, 3, rec.MatchedCount)
		assert.GreaterOrEqual(t, rec.Price, 918.0)
		assert.LessOrEqual(t, rec.Price, 1018.0)
	})

	t.Run("second request uses the cached model", func(t *testing.T) {
		router := setupTestRouter(t, &stubCatalog{snapshot: testSnapshot()}, usecase.PricingServiceConfig{})

		postJSON(router, "/api/v1/price/recommend", `{"productName":"Acme X200","costPrice":700}`)
		w := postJSON(router, "/api/v1/price/recommend", `{"productName":"Acme X200","costPrice":700}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, decode(t, w)["modelCached"])
	})

	tests := []struct {
		name       string
		repo       *stubCatalog
		svcConfig  usecase.PricingServiceConfig
		body       string
		wantStatus int
	}{
		{
			name:       "malformed json",
			repo:       &stubCatalog{snapshot: testSnapshot()},
			body:       `{"productName":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing cost price",
			repo:       &stubCatalog{snapshot: testSnapshot()},
			body:       `{"productName":"Acme X200"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "negative cost price",
			repo:       &stubCatalog{snapshot: testSnapshot()},
			body:       `{"productName":"Acme X200","costPrice":-1}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "blank product name",
			repo:       &stubCatalog{snapshot: testSnapshot()},
			body:       `{"productName":"  ","costPrice":700}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown brand",
			repo:       &stubCatalog{snapshot: testSnapshot()},
			body:       `{"productName":"Nokia 3310","costPrice":700}`,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "catalog unavailable",
			repo:       &stubCatalog{err: domain.ErrNoCatalog},
			body:       `{"productName":"Acme X200","costPrice":700}`,
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupTestRouter(t, tt.repo, tt.svcConfig)
			w := postJSON(router, "/api/v1/price/recommend", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.Contains(t, decode(t, w), "error")
		})
	}

	t.Run("low confidence carries diagnostics", func(t *testing.T) {
		router := setupTestRouter(t, &stubCatalog{snapshot: testSnapshot()}, usecase.PricingServiceConfig{
			Resolver: usecase.ResolverConfig{Scorer: func(string, string) int { return 40 }},
		})

		w := postJSON(router, "/api/v1/price/recommend", `{"productName":"Acme Gizmo Thing","costPrice":700}`)
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)

		body := decode(t, w)
		assert.Equal(t, "Acme X200", body["bestMatch"])
		assert.Equal(t, float64(40), body["confidence"])
		assert.Equal(t, "fuzzy", body["tier"])
	})

	t.Run("service not configured", func(t *testing.T) {
		router := SetupRouter(testConfig(), NewHandler(nil, nil), nil)
		w := postJSON(router, "/api/v1/price/recommend", `{"productName":"Acme X200","costPrice":700}`)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestResolveEndpoint(t *testing.T) {
	router := setupTestRouter(t, &stubCatalog{snapshot: testSnapshot()}, usecase.PricingServiceConfig{})

	t.Run("returns the best match", func(t *testing.T) {
		w := postJSON(router, "/api/v1/price/resolve", `{"productName":"acme phone pro max 128gb"}`)
		require.Equal(t, http.StatusOK, w.Code)

		body := decode(t, w)
		assert.Equal(t, "Acme Phone Pro Max 128GB", body["bestTitle"])
		assert.Equal(t, float64(100), body["confidence"])
		assert.Equal(t, "exact", body["tier"])
		assert.Equal(t, float64(1), body["matchedCount"])
	})

	t.Run("requires a product name", func(t *testing.T) {
		w := postJSON(router, "/api/v1/price/resolve", `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCatalogSummaryEndpoint(t *testing.T) {
	router := setupTestRouter(t, &stubCatalog{snapshot: testSnapshot()}, usecase.PricingServiceConfig{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/catalog/summary", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var summary domain.CatalogSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, "test-1", summary.Version)
	assert.Equal(t, 4, summary.TotalRecords)
	assert.Equal(t, 1, summary.DroppedRows)
	require.Len(t, summary.Sources, 3)
	assert.Equal(t, domain.SourceFlipkart, summary.Sources[0].Source)
	assert.Equal(t, 2, summary.Sources[0].Count)
}

func TestAPIRouting(t *testing.T) {
	router := SetupRouter(testConfig(), NewHandler(nil, nil), nil)

	t.Run("unknown routes return 404", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("POST", "/price/recommend", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("recommend accepts POST only", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/price/recommend", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("preflight is answered by CORS middleware", func(t *testing.T) {
		req := httptest.NewRequest("OPTIONS", "/api/v1/price/recommend", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrInvalidRequest, http.StatusBadRequest},
		{&domain.MatchError{Err: domain.ErrNoBrandMatch}, http.StatusNotFound},
		{domain.ErrTargetNotInCatalog, http.StatusNotFound},
		{&domain.MatchError{BestTitle: "x", Confidence: 10, Err: domain.ErrLowConfidence}, http.StatusUnprocessableEntity},
		{domain.ErrEmptyFeatureSet, http.StatusUnprocessableEntity},
		{domain.ErrNoCatalog, http.StatusServiceUnavailable},
		{context.Canceled, http.StatusRequestTimeout},
		{os.ErrPermission, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
