package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/forumlens/audience-insights/internal/config"
	"github.com/forumlens/audience-insights/internal/models"
	"github.com/forumlens/audience-insights/internal/ratelimit"
	"github.com/forumlens/audience-insights/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAnalysisService struct {
	mock.Mock
}

func (m *MockAnalysisService) Analyze(ctx context.Context, forums []string, limit int) (*models.AnalysisReport, error) {
	args := m.Called(forums, limit)
	report, _ := args.Get(0).(*models.AnalysisReport)
	return report, args.Error(1)
}

func (m *MockAnalysisService) RunScheduled() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockAnalysisService) GetMetrics() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockAnalysisService) ListSnapshots() ([]string, error) {
	args := m.Called()
	names, _ := args.Get(0).([]string)
	return names, args.Error(1)
}

func (m *MockAnalysisService) LoadSnapshot(name string) (*models.AnalysisReport, error) {
	args := m.Called(name)
	report, _ := args.Get(0).(*models.AnalysisReport)
	return report, args.Error(1)
}

type MockForumDiscoverer struct {
	mock.Mock
}

func (m *MockForumDiscoverer) SearchForums(ctx context.Context, query string, limit int) ([]models.ForumSummary, error) {
	args := m.Called(query, limit)
	forums, _ := args.Get(0).([]models.ForumSummary)
	return forums, args.Error(1)
}

func (m *MockForumDiscoverer) PopularForums(ctx context.Context, limit int) ([]models.ForumSummary, error) {
	args := m.Called(limit)
	forums, _ := args.Get(0).([]models.ForumSummary)
	return forums, args.Error(1)
}

func testConfig() *config.Config {
	return &config.Config{AnalyzeRateLimit: 10, ForumRateLimit: 5}
}

func fixedClock() ratelimit.Clock {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return ratelimit.ClockFunc(func() time.Time { return now })
}

func TestHealth(t *testing.T) {
	router := newRouter(testConfig(), &MockAnalysisService{}, nil, fixedClock(), nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestAnalyze(t *testing.T) {
	svc := &MockAnalysisService{}
	report := &models.AnalysisReport{ID: "r1", Forums: []string{"golang", "rust"}, TotalPosts: 4}
	svc.On("Analyze", []string{"golang", "rust"}, 25).Return(report, nil)

	router := newRouter(testConfig(), svc, nil, fixedClock(), nil)

	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"forums":["golang","rust"],"limit":25}`)
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/analyze", body))

	require.Equal(t, http.StatusOK, rec.Code)
	var got models.AnalysisReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "r1", got.ID)
	assert.Equal(t, 4, got.TotalPosts)
	svc.AssertExpectations(t)
}

func TestAnalyze_BadBody(t *testing.T) {
	router := newRouter(testConfig(), &MockAnalysisService{}, nil, fixedClock(), nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader("{")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyze_RateLimited(t *testing.T) {
	svc := &MockAnalysisService{}
	svc.On("Analyze", []string{"golang"}, 0).Return(&models.AnalysisReport{}, nil)

	cfg := testConfig()
	cfg.AnalyzeRateLimit = 2
	router := newRouter(cfg, svc, nil, fixedClock(), nil)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(`{"forums":["golang"]}`))
		req.RemoteAddr = "10.0.0.1:5555"
		router.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)

		if rec.Code == http.StatusTooManyRequests {
			assert.Equal(t, "60", rec.Header().Get("Retry-After"))
			assert.Contains(t, rec.Body.String(), `"retry_after":60`)
		}
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	svc.AssertNumberOfCalls(t, "Analyze", 2)
}

func TestForumAnalysis(t *testing.T) {
	t.Run("single forum with limit", func(t *testing.T) {
		svc := &MockAnalysisService{}
		svc.On("Analyze", []string{"stackoverflow:go"}, 50).
			Return(&models.AnalysisReport{TotalPosts: 50}, nil)
		router := newRouter(testConfig(), svc, nil, fixedClock(), nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/forums/stackoverflow:go/analysis?limit=50", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		svc.AssertExpectations(t)
	})

	t.Run("invalid limit", func(t *testing.T) {
		router := newRouter(testConfig(), &MockAnalysisService{}, nil, fixedClock(), nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/forums/golang/analysis?limit=abc", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("failed forum", func(t *testing.T) {
		svc := &MockAnalysisService{}
		svc.On("Analyze", []string{"golang"}, 0).
			Return(&models.AnalysisReport{Errors: []string{"golang: status 503"}}, nil)
		router := newRouter(testConfig(), svc, nil, fixedClock(), nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/forums/golang/analysis", nil))

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Contains(t, rec.Body.String(), "golang: status 503")
	})
}

func TestGetReport(t *testing.T) {
	svc := &MockAnalysisService{}
	svc.On("LoadSnapshot", "abc").Return(&models.AnalysisReport{ID: "abc"}, nil)
	svc.On("LoadSnapshot", "missing").Return(nil, &storage.NotFoundError{Name: "missing"})
	router := newRouter(testConfig(), svc, nil, fixedClock(), nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports/abc", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListReports(t *testing.T) {
	svc := &MockAnalysisService{}
	svc.On("ListSnapshots").Return(nil, nil)
	router := newRouter(testConfig(), svc, nil, fixedClock(), nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"reports":[]}`, rec.Body.String())
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.7:40000"
	assert.Equal(t, "192.168.1.7", clientKey(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientKey(req))
}

func TestSearchForums(t *testing.T) {
	t.Run("query with limit", func(t *testing.T) {
		disc := &MockForumDiscoverer{}
		disc.On("SearchForums", "rust", 5).Return([]models.ForumSummary{
			{Name: "rust", Subscribers: 300000, GrowthRate: 0.5},
		}, nil)
		router := newRouter(testConfig(), &MockAnalysisService{}, disc, fixedClock(), nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/forums/search?q=rust&limit=5", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Forums []models.ForumSummary `json:"forums"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body.Forums, 1)
		assert.Equal(t, "rust", body.Forums[0].Name)
		disc.AssertExpectations(t)
	})

	t.Run("missing query", func(t *testing.T) {
		disc := &MockForumDiscoverer{}
		router := newRouter(testConfig(), &MockAnalysisService{}, disc, fixedClock(), nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/forums/search?q=%20", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		disc.AssertNotCalled(t, "SearchForums", mock.Anything, mock.Anything)
	})

	t.Run("upstream failure", func(t *testing.T) {
		disc := &MockForumDiscoverer{}
		disc.On("SearchForums", "go", 0).Return(nil, errors.New("reddit API returned status 503"))
		router := newRouter(testConfig(), &MockAnalysisService{}, disc, fixedClock(), nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/forums/search?q=go", nil))

		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("without discoverer", func(t *testing.T) {
		router := newRouter(testConfig(), &MockAnalysisService{}, nil, fixedClock(), nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/forums/search?q=go", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestPopularForums(t *testing.T) {
	disc := &MockForumDiscoverer{}
	disc.On("PopularForums", 0).Return(nil, nil)
	router := newRouter(testConfig(), &MockAnalysisService{}, disc, fixedClock(), nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/forums/popular", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"forums":[]}`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/forums/popular?limit=-1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
