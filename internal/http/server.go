// Package http serves the balance tracker's web UI.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/AndreasDeCrinis/finance-tracker/internal/core"
	"github.com/AndreasDeCrinis/finance-tracker/internal/importer"
	applog "github.com/AndreasDeCrinis/finance-tracker/internal/log"
	"github.com/AndreasDeCrinis/finance-tracker/internal/storage"
	appweb "github.com/AndreasDeCrinis/finance-tracker/web"
)

type Server struct {
	http.Server
	templates      *template.Template
	store          *storage.SQLiteRepository
	importer       *importer.Importer
	rateLimiter    *rateLimiter
	importMaxBytes int64
}

// Options tune server behavior beyond the listen address.
type Options struct {
	// ImportMaxBytes caps uploaded CSV size. Zero means 10MB.
	ImportMaxBytes int64
}

// NewServer configures routes and templates, returning a ready-to-run
// http.Server around the given repository.
func NewServer(addr string, store *storage.SQLiteRepository, opts Options) *Server {
	if opts.ImportMaxBytes == 0 {
		opts.ImportMaxBytes = 10 << 20
	}

	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		store:          store,
		importer:       importer.New(store),
		rateLimiter:    newRateLimiter(),
		importMaxBytes: opts.ImportMaxBytes,
	}

	// Parse embedded templates at startup.
	funcs := template.FuncMap{
		"money": func(m core.Money) string { return m.String() },
	}
	t, err := template.New("").Funcs(funcs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", applog.FieldError, err)
	}
	s.templates = t

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600")
			static.ServeHTTP(w, r)
		}))
	} else {
		slog.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	mux.HandleFunc("GET /{$}", s.withMiddleware(s.handleDashboard))
	mux.HandleFunc("GET /accounts", s.withMiddleware(s.handleAccountsList))
	mux.HandleFunc("POST /accounts/create", s.withMiddleware(s.handleAccountCreate))
	mux.HandleFunc("GET /accounts/{id}", s.withMiddleware(s.handleAccountDetail))
	mux.HandleFunc("POST /accounts/{id}/settings", s.withMiddleware(s.handleAccountSettings))
	mux.HandleFunc("POST /accounts/{id}/delete", s.withMiddleware(s.handleAccountDelete))
	mux.HandleFunc("POST /accounts/{id}/balances/add", s.withMiddleware(s.handleBalanceAdd))
	mux.HandleFunc("POST /balances/{id}/delete", s.withMiddleware(s.handleBalanceDelete))
	mux.HandleFunc("POST /import", s.withMiddleware(s.handleImport))
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	return s
}

type contextKey string

const requestIDKey contextKey = "request_id"

// withMiddleware adds security headers, rate limiting and request
// logging around a handler.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		// Write rate limiting: mutations only.
		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded",
				applog.FieldClientIP, clientIP, applog.FieldMethod, r.Method, applog.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' https://unpkg.com; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			applog.FieldRequestID, requestID,
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldStatusCode, rw.statusCode,
			applog.FieldDuration, time.Since(start).Milliseconds(),
			applog.FieldClientIP, clientIP)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// rateLimiter is a small per-IP limiter for POST requests.
type rateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientInfo
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{clients: make(map[string]*clientInfo)}
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]
	if !exists || now.Sub(client.lastRequest) > time.Minute {
		rl.clients[clientIP] = &clientInfo{lastRequest: now, requests: 1}
		rl.prune(now)
		return true
	}

	client.requests++
	client.lastRequest = now
	return client.requests <= 60
}

// prune drops stale entries inline instead of running a cleanup goroutine;
// traffic is single-operator scale.
func (rl *rateLimiter) prune(now time.Time) {
	cutoff := now.Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}
