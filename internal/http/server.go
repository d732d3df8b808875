package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"inoff/internal/cache"
	"inoff/internal/core"
	"inoff/internal/log"
	"inoff/internal/services"
)

// Ledger is the surface of the ledger service the HTTP layer needs.
type Ledger interface {
	Budget(ctx context.Context) (core.Budget, error)
	CreateExpense(ctx context.Context, in services.CreateExpenseInput) (core.Expense, error)
	UpdateExpense(ctx context.Context, in services.UpdateExpenseInput) (core.Expense, error)
	MarkAsPaid(ctx context.Context, id uuid.UUID) (core.Expense, error)
	DeleteExpense(ctx context.Context, id uuid.UUID) error
	UndoLastDelete(ctx context.Context) (*core.Expense, error)
	UndoAvailable() bool
	TopUpDaily(ctx context.Context, now time.Time) (bool, error)
	Expenses(ctx context.Context, f core.ExpenseFilter) ([]core.Expense, error)
	SuggestSuppliers(ctx context.Context, prefix string) ([]core.Supplier, error)
	DeleteSupplier(ctx context.Context, id uuid.UUID) error
}

type Server struct {
	http.Server
	ledger      Ledger
	rateLimiter *rateLimiter
	structured  *log.StructuredLogger

	// Derived-data caches, purged on every ledger mutation
	dailyCache    *cache.LRUCache[[]core.DailyTotal]
	categoryCache *cache.LRUCache[[]core.CategoryTotal]
	weeklyCache   *cache.LRUCache[[]core.DailyTotal]
	debtCache     *cache.LRUCache[[]core.SupplierDebt]
	cacheManager  *cache.Manager

	shutdownOnce sync.Once
}

// Simple in-memory rate limiter
type rateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients:     make(map[string]*clientInfo),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

// startCleanup runs periodic cleanup to remove stale client entries
func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries removes client entries older than 10 minutes
func (rl *rateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

// stop gracefully shuts down the rate limiter cleanup goroutine
func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		if rl.stopCleanup != nil {
			close(rl.stopCleanup)
		}
	})
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]

	if !exists {
		rl.clients[clientIP] = &clientInfo{
			lastRequest: now,
			requests:    1,
		}
		return true
	}

	// Reset counter if more than 1 minute has passed
	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}

	// Allow up to 60 requests per minute
	client.requests++
	client.lastRequest = now

	return client.requests <= 60
}

// NewServer configures routes, returning a ready-to-run http.Server.
// Every request carries the component logger in its context.
func NewServer(addr string, ledger Ledger, logger *log.Logger) *Server {
	mux := http.NewServeMux()
	httpLogger := logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: log.Middleware(httpLogger)(mux),
		},
		ledger:        ledger,
		rateLimiter:   newRateLimiter(),
		structured:    log.NewStructuredLogger(httpLogger),
		dailyCache:    cache.NewLRUCache[[]core.DailyTotal](100, 5*time.Minute),
		categoryCache: cache.NewLRUCache[[]core.CategoryTotal](100, 5*time.Minute),
		weeklyCache:   cache.NewLRUCache[[]core.DailyTotal](50, 5*time.Minute),
		debtCache:     cache.NewLRUCache[[]core.SupplierDebt](10, 5*time.Minute),
		cacheManager:  cache.NewManager(),
	}

	s.cacheManager.Register(s.dailyCache)
	s.cacheManager.Register(s.categoryCache)
	s.cacheManager.Register(s.weeklyCache)
	s.cacheManager.Register(s.debtCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("/budget", s.withSecurityHeaders(s.handleBudget))
	mux.HandleFunc("/budget/topup", s.withSecurityHeaders(s.handleTopUp))

	mux.HandleFunc("/expenses", s.withSecurityHeaders(s.handleExpenses))
	mux.HandleFunc("/expenses/update", s.withSecurityHeaders(s.handleUpdateExpense))
	mux.HandleFunc("/expenses/delete", s.withSecurityHeaders(s.handleDeleteExpense))
	mux.HandleFunc("/expenses/undo", s.withSecurityHeaders(s.handleUndoDelete))
	mux.HandleFunc("/expenses/pay", s.withSecurityHeaders(s.handleMarkAsPaid))

	mux.HandleFunc("/suppliers", s.withSecurityHeaders(s.handleSuggestSuppliers))
	mux.HandleFunc("/suppliers/delete", s.withSecurityHeaders(s.handleDeleteSupplier))

	mux.HandleFunc("/stats/daily", s.withSecurityHeaders(s.handleDailyTotals))
	mux.HandleFunc("/stats/categories", s.withSecurityHeaders(s.handleCategoryTotals))
	mux.HandleFunc("/stats/weekly", s.withSecurityHeaders(s.handleWeeklySeries))
	mux.HandleFunc("/stats/debt", s.withSecurityHeaders(s.handleSupplierDebts))

	return s
}

// purgeStatsCaches drops all derived data after a ledger mutation.
func (s *Server) purgeStatsCaches() {
	s.dailyCache.Purge()
	s.categoryCache.Purge()
	s.weeklyCache.Purge()
	s.debtCache.Purge()
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.cacheManager != nil {
			s.cacheManager.Stop()
		}

		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}

		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withSecurityHeaders adds security headers, rate limiting, and request logging to responses
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Extract client IP (considering proxies)
		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		ctx = context.WithValue(ctx, log.LoggerContextKey, log.FromContext(ctx).With("request_id", requestID))
		r = r.WithContext(ctx)

		s.structured.LogHTTPStart(ctx, r, clientIP)

		// Apply rate limiting to mutations
		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP) {
			log.FromContext(ctx).WarnContext(ctx, "Rate limit exceeded",
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		s.structured.LogHTTPEnd(ctx, r, rw.statusCode, duration.Milliseconds(), clientIP)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
