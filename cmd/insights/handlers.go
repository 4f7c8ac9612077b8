package main

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/forumlens/audience-insights/internal/config"
	"github.com/forumlens/audience-insights/internal/models"
	"github.com/forumlens/audience-insights/internal/ratelimit"
	"github.com/forumlens/audience-insights/internal/storage"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const rateLimitPeriod = time.Minute

// analysisService is what the HTTP layer needs from insights.Service
type analysisService interface {
	Analyze(ctx context.Context, forums []string, limit int) (*models.AnalysisReport, error)
	RunScheduled() error
	GetMetrics() string
	ListSnapshots() ([]string, error)
	LoadSnapshot(name string) (*models.AnalysisReport, error)
}

// forumDiscoverer finds communities worth analysing
type forumDiscoverer interface {
	SearchForums(ctx context.Context, query string, limit int) ([]models.ForumSummary, error)
	PopularForums(ctx context.Context, limit int) ([]models.ForumSummary, error)
}

type analyzeRequest struct {
	Forums []string `json:"forums"`
	Limit  int      `json:"limit"`
}

type handlers struct {
	service        analysisService
	discoverer     forumDiscoverer
	analyzeLimiter *ratelimit.Limiter
	forumLimiter   *ratelimit.Limiter
}

// newRouter wires the HTTP API. A nil discoverer leaves the forum search
// routes unregistered.
func newRouter(cfg *config.Config, service analysisService, discoverer forumDiscoverer, clock ratelimit.Clock, store ratelimit.Store) *mux.Router {
	h := &handlers{
		service:        service,
		discoverer:     discoverer,
		analyzeLimiter: ratelimit.New(cfg.AnalyzeRateLimit, rateLimitPeriod, clock, store),
		forumLimiter:   ratelimit.New(cfg.ForumRateLimit, rateLimitPeriod, clock, store),
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheckHandler).Methods("GET")
	router.HandleFunc("/metrics", h.metrics).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.Handle("/analyze", h.limited("analyze", h.analyzeLimiter, h.analyze)).Methods("POST")
	if discoverer != nil {
		api.Handle("/forums/search", h.limited("discover", h.forumLimiter, h.searchForums)).Methods("GET")
		api.Handle("/forums/popular", h.limited("discover", h.forumLimiter, h.popularForums)).Methods("GET")
	}
	api.Handle("/forums/{forum}/analysis", h.limited("forum", h.forumLimiter, h.forumAnalysis)).Methods("GET")
	api.HandleFunc("/reports", h.listReports).Methods("GET")
	api.HandleFunc("/reports/{id}", h.getReport).Methods("GET")

	// Manual trigger endpoint
	router.HandleFunc("/trigger", h.trigger).Methods("POST")

	return router
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (h *handlers) metrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(h.service.GetMetrics()))
}

func (h *handlers) analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	report, err := h.service.Analyze(r.Context(), req.Forums, req.Limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *handlers) forumAnalysis(w http.ResponseWriter, r *http.Request) {
	forum := mux.Vars(r)["forum"]

	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}

	report, err := h.service.Analyze(r.Context(), []string{forum}, limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if report.TotalPosts == 0 && len(report.Errors) > 0 {
		writeJSON(w, http.StatusBadGateway, report)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *handlers) searchForums(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}

	forums, err := h.discoverer.SearchForums(r.Context(), query, limit)
	if err != nil {
		logrus.Errorf("Forum search for %q failed: %v", query, err)
		writeError(w, http.StatusBadGateway, "forum search failed")
		return
	}
	writeForums(w, forums)
}

func (h *handlers) popularForums(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}

	forums, err := h.discoverer.PopularForums(r.Context(), limit)
	if err != nil {
		logrus.Errorf("Popular forum listing failed: %v", err)
		writeError(w, http.StatusBadGateway, "popular forums unavailable")
		return
	}
	writeForums(w, forums)
}

func writeForums(w http.ResponseWriter, forums []models.ForumSummary) {
	if forums == nil {
		forums = []models.ForumSummary{}
	}
	writeJSON(w, http.StatusOK, map[string][]models.ForumSummary{"forums": forums})
}

// queryLimit reads an optional positive ?limit=, writing a 400 when it is invalid
func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return 0, false
	}
	return n, true
}

func (h *handlers) listReports(w http.ResponseWriter, r *http.Request) {
	names, err := h.service.ListSnapshots()
	if err != nil {
		logrus.Errorf("Failed to list snapshots: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"reports": names})
}

func (h *handlers) getReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.LoadSnapshot(mux.Vars(r)["id"])
	if err != nil {
		var nf *storage.NotFoundError
		if errors.As(err, &nf) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		logrus.Errorf("Failed to load snapshot: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load report")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *handlers) trigger(w http.ResponseWriter, r *http.Request) {
	go func() {
		if err := h.service.RunScheduled(); err != nil {
			logrus.Errorf("Manual analysis trigger failed: %v", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"message": "Analysis triggered successfully"})
}

// limited applies a per-client limit; scope keeps endpoints apart in a shared store
func (h *handlers) limited(scope string, limiter *ratelimit.Limiter, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, retryAfter := limiter.Allow(scope + ":" + clientKey(r))
		if !ok {
			seconds := int(math.Ceil(retryAfter.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
				"error":       "rate limit exceeded",
				"retry_after": seconds,
			})
			return
		}
		next(w, r)
	})
}

// pruneRateLimits drops expired windows until ctx is done
func pruneRateLimits(ctx context.Context, store *ratelimit.MemoryStore, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := store.Prune(now.Add(-rateLimitPeriod)); n > 0 {
				logrus.Debugf("Pruned %d rate limit windows", n)
			}
		}
	}
}

func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
