package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"carteira/internal/cache"
	applog "carteira/internal/log"
	"carteira/internal/middleware/ratelimit"
	"carteira/internal/middleware/security"
	"carteira/internal/middleware/trace"
	"carteira/internal/services"
	"carteira/internal/sheets"
)

// Options configures NewServer. Zero values fall back to defaults.
type Options struct {
	DefaultUser        string
	UploadMaxBytes     int64
	RateLimitPerMinute int
	// SheetReader enables POST /api/datasets/import-sheet when set.
	SheetReader sheets.ValuesReader
	Logger      *applog.Logger
	// Now overrides time.Now when picking the default month.
	Now func() time.Time
}

type Server struct {
	http.Server
	datasets    *services.DatasetService
	sheetReader sheets.ValuesReader
	logger      *applog.Logger

	defaultUser    string
	uploadMaxBytes int64
	now            func() time.Time

	detector     *security.Detector
	tracer       *trace.Middleware
	rateLimiter  *ratelimit.Limiter
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, svc *services.DatasetService, opts Options) *Server {
	if opts.DefaultUser == "" {
		opts.DefaultUser = "local"
	}
	if opts.UploadMaxBytes <= 0 {
		opts.UploadMaxBytes = 10 << 20
	}
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	detector := security.NewDetector()
	limiterCfg := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		limiterCfg.RequestsPerMinute = opts.RateLimitPerMinute
	}

	s := &Server{
		datasets:       svc,
		sheetReader:    opts.SheetReader,
		logger:         opts.Logger.WithComponent(applog.ComponentHTTP),
		defaultUser:    opts.DefaultUser,
		uploadMaxBytes: opts.UploadMaxBytes,
		now:            opts.Now,
		detector:       detector,
		tracer:         trace.NewMiddleware(detector.ExtractClientIP),
		rateLimiter:    ratelimit.NewLimiter(limiterCfg),
		cacheManager:   cache.NewManager(),
	}

	// Periodic cleanup of expired month views
	s.cacheManager.Register(svc.Views())
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.Handle("GET /api/datasets", s.requireCaller(s.handleListDatasets))
	mux.Handle("POST /api/datasets", s.requireCaller(s.handleCreateDataset))
	mux.Handle("POST /api/datasets/upload", s.requireCaller(s.handleUploadDataset))
	mux.Handle("POST /api/datasets/import-sheet", s.requireCaller(s.handleImportSheet))
	mux.Handle("GET /api/datasets/{id}", s.requireCaller(s.handleGetDataset))
	mux.Handle("GET /api/datasets/{id}/transactions", s.requireCaller(s.handleListTransactions))
	mux.Handle("POST /api/datasets/{id}/transactions", s.requireCaller(s.handleSaveTransaction))
	mux.Handle("DELETE /api/datasets/{id}/transactions/{txId}", s.requireCaller(s.handleDeleteTransaction))
	mux.Handle("GET /api/datasets/{id}/summary", s.requireCaller(s.handleSummary))

	// Outermost first: request id, request logger, headers, probing
	// detection, write throttling.
	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(detector.ExtractClientIP)(handler)
	handler = detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = applog.Middleware(s.logger, trace.RequestID)(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports ready once the dataset store answers a ping.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := s.datasets.Ping(ctx); err != nil {
		slog.WarnContext(r.Context(), "Readiness check failed",
			applog.FieldComponent, applog.ComponentHTTP,
			applog.FieldError, err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

type cacheMetrics struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

type metricsResponse struct {
	HTTP      trace.Metrics             `json:"http"`
	Security  security.DetectionMetrics `json:"security"`
	RateLimit ratelimit.Metrics         `json:"rateLimit"`
	ViewCache cacheMetrics              `json:"viewCache"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	views := s.datasets.Views()
	hits, misses := views.Stats()
	NewJSONResponse().Data(metricsResponse{
		HTTP:      s.tracer.GetMetrics(),
		Security:  s.detector.GetMetrics(),
		RateLimit: s.rateLimiter.GetMetrics(),
		ViewCache: cacheMetrics{Entries: views.Size(), Hits: hits, Misses: misses},
	}).Write(w)
}

// caller resolves the owner every dataset operation is scoped to.
// caller is the owner of the request. API routes run behind requireCaller,
// so the header is already known to be valid there.
func (s *Server) caller(r *http.Request) string {
	id, _ := CallerID(r, s.defaultUser)
	return id
}

// requireCaller rejects requests carrying a malformed X-User-ID instead of
// serving them as the default user.
func (s *Server) requireCaller(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := CallerID(r, s.defaultUser); err != nil {
			s.respondError(w, r, applog.OpParse, err,
				BadRequestError("Cabeçalho "+HeaderUserID+" inválido."), applog.ErrorTypeValidation)
			return
		}
		next(w, r)
	})
}

// fail writes the response mapped from err and logs it; server errors at
// error level, client errors at debug.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp, errType := ErrorFor(err)
	s.respondError(w, r, op, err, resp, errType)
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, op string, err error, resp *JSONResponseBuilder, errType string) {
	ctx := r.Context()
	if resp.StatusCode() >= http.StatusInternalServerError {
		applog.LogError(ctx, "Request failed", err, applog.ComponentHTTP, op,
			applog.NewFields().WithErrorType(errType).WithDataset(r.PathValue("id"), s.caller(r)))
	} else {
		applog.FromContext(ctx).DebugContext(ctx, "Request rejected",
			applog.FieldOperation, op,
			applog.FieldErrorType, errType,
			applog.FieldError, err)
	}
	resp.Write(w)
}
