// Package middleware provides the Edge Gateway's ordered decorator chain:
// HTTPS enforcement, security headers, compression, rate limiting, CORS,
// and request logging. Each decorator may reject with a specific error
// kind, mutate response headers, or short-circuit; order matters.
package middleware

import (
	"log"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"github.com/ifcatlas/api/internal/metrics"
	"github.com/ifcatlas/api/internal/ratelimit"
)

// Chain applies middleware in order (the first in the list runs outermost).
func Chain(handler http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}

// Recovery catches panics and returns 500 instead of crashing.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("PANIC: %v\n%s", err, debug.Stack())
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Logger logs each request with method, path, status, and duration.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(sw, r)
		log.Printf("%s %s %d %s", r.Method, r.URL.Path, sw.status, time.Since(start).Round(time.Millisecond))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Metrics records request latency by route, method, and status.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(sw, r)

		metrics.HTTPRequestDuration.WithLabelValues(
			routeLabel(r.URL.Path), r.Method, strconv.Itoa(sw.status),
		).Observe(time.Since(start).Seconds())
	})
}

// routeLabel collapses path segments that look like identifiers (UUIDs,
// Celery task IDs, glTF file names) so that per-resource requests share one
// label series instead of creating a new time series per ID.
func routeLabel(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if i == 0 || seg == "" {
			continue
		}
		if looksLikeIdentifier(seg) {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}

func looksLikeIdentifier(seg string) bool {
	if strings.Count(seg, "-") >= 4 {
		return true
	}
	if len(seg) >= 16 {
		return true
	}
	return false
}

// HTTPSRedirect enforces HTTPS in production. When X-Forwarded-Proto is
// present it decides the scheme, whichever peer set it (the source of the
// header is not checked). Outside production this is a no-op.
func HTTPSRedirect(production bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !production {
				next.ServeHTTP(w, r)
				return
			}

			secure := r.TLS != nil
			if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
				secure = proto == "https"
			}

			if !secure {
				target := "https://" + r.Host + r.URL.RequestURI()
				http.Redirect(w, r, target, http.StatusMovedPermanently)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeaders sets a strict CSP and related hardening headers.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Content-Security-Policy", "default-src 'self'; img-src 'self' data:; frame-ancestors 'none'")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// Compression wraps the handler with gzip compression for bodies >= 1KiB,
// skippable via the X-No-Compression request header.
func Compression(next http.Handler) http.Handler {
	wrapped, err := gzhttp.NewWrapper(
		gzhttp.MinSize(1024),
		gzhttp.CompressionLevel(6),
	)(next)
	if err != nil {
		log.Printf("compression middleware init failed, serving uncompressed: %v", err)
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-No-Compression") != "" {
			next.ServeHTTP(w, r)
			return
		}
		wrapped.ServeHTTP(w, r)
	})
}

// RateLimit enforces a token-bucket limit per client IP, with a stricter
// bucket for upload endpoints.
func RateLimit(global, upload *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)

			limiter := global
			if strings.HasPrefix(r.URL.Path, "/api/v1/upload/") {
				limiter = upload
			}

			if !limiter.Allow(ip) {
				w.Header().Set("Retry-After", "1")
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		host = host[:idx]
	}
	return host
}

// CORS adds Cross-Origin Resource Sharing headers for the allow-listed
// origins, with credentials support for the catalogue/upload API. The model
// streamer sets its own permissive (`*`) CORS headers per spec §4.5, since
// the 3D globe client may fetch a model from an origin that isn't
// allow-listed here; requests under that prefix fall through untouched so
// models.Handler's own GET/OPTIONS handling is reachable.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/api/v1/models/") {
				next.ServeHTTP(w, r)
				return
			}

			origin := r.Header.Get("Origin")
			allowed := false
			for _, o := range allowedOrigins {
				if o == origin || o == "*" {
					allowed = true
					break
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token, CSRF-Token")
				w.Header().Set("Access-Control-Max-Age", "86400")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
