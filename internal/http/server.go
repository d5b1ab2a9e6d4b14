package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"networth/internal/aggregate"
	"networth/internal/cache"
	"networth/internal/core"
	"networth/internal/csvio"
	applog "networth/internal/log"
	"networth/internal/middleware/ratelimit"
	"networth/internal/middleware/security"
	"networth/internal/middleware/trace"
	"networth/internal/services"
)

// Options tunes the API server. Zero values select the defaults.
type Options struct {
	ImportMaxBytes int64
	CacheTTL       time.Duration

	// RequestsPerMinute limits single-entry writes per client and
	// ImportsPerMinute limits CSV imports.
	RequestsPerMinute int
	ImportsPerMinute  int
}

const (
	defaultCacheTTL   = 30 * time.Second
	cacheCleanupEvery = time.Minute

	// multipartOverhead is allowed on top of the file size limit for form
	// boundaries and part headers.
	multipartOverhead = 64 << 10
)

type Server struct {
	http.Server
	svc            *services.NetWorthService
	logger         *applog.Logger
	importMaxBytes int64

	limiter *ratelimit.Limiter
	tracer  *trace.Middleware

	// Read caches, purged on every mutation served here.
	overviewCache *cache.LRU[aggregate.Overview]
	listCache     *cache.LRU[[]core.Entry]
	janitor       *cache.Janitor

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, svc *services.NetWorthService, opts Options) *Server {
	if opts.ImportMaxBytes <= 0 {
		opts.ImportMaxBytes = csvio.DefaultMaxBytes
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}

	s := &Server{
		svc:            svc,
		logger:         applog.FromContext(context.Background()).WithComponent(applog.ComponentHTTP),
		importMaxBytes: opts.ImportMaxBytes,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			Window: time.Minute,
			Limits: map[ratelimit.Class]int{
				ratelimit.ClassWrite:  opts.RequestsPerMinute,
				ratelimit.ClassImport: opts.ImportsPerMinute,
			},
		}),
		tracer:        trace.NewMiddleware(extractClientIP),
		overviewCache: cache.NewLRU[aggregate.Overview](1, opts.CacheTTL),
		listCache:     cache.NewLRU[[]core.Entry](2, opts.CacheTTL),
	}
	s.janitor = cache.NewJanitor(s.overviewCache, s.listCache)
	s.janitor.Start(cacheCleanupEvery, func(removed int) {
		s.logger.Debug("Cache cleanup completed", "removed", removed)
	})

	mutating := func(class ratelimit.Class, h http.HandlerFunc) http.Handler {
		return s.limiter.Middleware(class, extractClientIP, s.handleRateLimited)(s.invalidating(h))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/entries", s.handleListEntries)
	mux.HandleFunc("GET /api/entries/{date}", s.handleGetEntry)
	mux.Handle("POST /api/entries", mutating(ratelimit.ClassWrite, s.handleCreateEntry))
	mux.Handle("PUT /api/entries/{date}", mutating(ratelimit.ClassWrite, s.handleSaveEntry))
	mux.Handle("DELETE /api/entries/{date}", mutating(ratelimit.ClassWrite, s.handleDeleteEntry))
	mux.Handle("POST /api/entries/clear", mutating(ratelimit.ClassWrite, s.handleClear))
	mux.Handle("POST /api/undo", mutating(ratelimit.ClassWrite, s.handleUndo))
	mux.Handle("POST /api/import", mutating(ratelimit.ClassImport, s.handleImport))

	mux.HandleFunc("GET /api/overview", s.handleOverview)
	mux.HandleFunc("GET /api/export", s.handleExport)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	var handler http.Handler = mux
	handler = headers.Middleware(handler)
	handler = s.tracer.Middleware(handler)
	handler = applog.Middleware(s.logger)(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Shutdown stops background routines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.janitor.Stop()
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// invalidating purges the read caches once a mutating handler has run,
// whatever its outcome, so the next read rescans the store.
func (s *Server) invalidating(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer s.invalidateCaches()
		next(w, r)
	}
}

func (s *Server) invalidateCaches() {
	s.overviewCache.Purge()
	s.listCache.Purge()
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, extractClientIP(r),
		applog.FieldPath, r.URL.Path,
		applog.FieldRetryAfter, w.Header().Get("Retry-After"))
	writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded, try again later"})
}
