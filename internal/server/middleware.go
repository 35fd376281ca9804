package server

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/rs/cors"
	"golang.org/x/time/rate"
)

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (rw *statusRecorder) WriteHeader(code int) {
	if !rw.wrote {
		rw.status = code
		rw.wrote = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(p []byte) (int, error) {
	if !rw.wrote {
		rw.status = http.StatusOK
		rw.wrote = true
	}
	return rw.ResponseWriter.Write(p)
}

// Unwrap lets [http.ResponseController] reach the underlying writer.
func (rw *statusRecorder) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

// Logging logs one line per request with method, path, status, duration and client IP.
func Logging(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			kv := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start).Round(time.Microsecond),
				"ip", clientIP(r),
			}
			switch {
			case rec.status >= 500:
				logger.Error("request", kv...)
			case rec.status >= 400:
				logger.Warn("request", kv...)
			default:
				logger.Info("request", kv...)
			}
		})
	}
}

// Recover turns a panic in any handler into a 500 JSON response.
func Recover(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.Error("unhandled panic", "path", r.URL.Path, "panic", rec, "stack", string(debug.Stack()))
				respondJSON(w, http.StatusInternalServerError, map[string]any{
					"status": "error",
					"error":  fmt.Sprint(rec),
					"type":   fmt.Sprintf("%T", rec),
				})
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// CORS allows credentialed cross-origin requests.
//
// Origins outside allowed are still accepted so Pi Browser and sandbox hosts work; they are logged at debug level.
func CORS(allowed []string, logger *log.Logger) Middleware {
	c := cors.New(cors.Options{
		AllowOriginFunc: func(origin string) bool {
			if !slices.Contains(allowed, origin) {
				logger.Debug("allowing unlisted origin", "origin", origin)
			}
			return true
		},
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With", piUserHeader},
		MaxAge:           3600,
	})
	return c.Handler
}

// contentSecurityPolicy admits the Pi SDK and the embedded YouTube player alongside same-origin assets.
var contentSecurityPolicy = strings.Join([]string{
	"default-src 'self'",
	"script-src 'self' 'unsafe-inline' 'unsafe-eval' *.pi.app https://sdk.minepi.com https://www.youtube.com https://s.ytimg.com https://www.google.com https://www.gstatic.com",
	"script-src-attr 'unsafe-inline'",
	"style-src 'self' 'unsafe-inline'",
	"img-src 'self' data: https: *.ytimg.com *.youtube.com",
	"connect-src 'self' *.pi.app *.minepi.com *.youtube.com *.googleapis.com https://localhost:5000 https://localhost:3443",
	"frame-src 'self' https://www.youtube.com https://www.youtube-nocookie.com",
	"child-src 'self' https://www.youtube.com https://www.youtube-nocookie.com",
	"object-src 'none'",
	"base-uri 'self'",
	"frame-ancestors 'self' *.minepi.com *.pi.app",
}, "; ")

// Isolation sets the content security policy plus the opener and embedder policies the web client needs
// for SharedArrayBuffer audio decoding.
func Isolation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", contentSecurityPolicy)
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin-allow-popups")
		w.Header().Set("Cross-Origin-Embedder-Policy", "credentialless")
		next.ServeHTTP(w, r)
	})
}

// MaxBytes caps request bodies at n bytes.
func MaxBytes(n int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > n {
				respondError(w, http.StatusRequestEntityTooLarge,
					fmt.Sprintf("File too large (%.1f MB). Maximum: %d MB", float64(r.ContentLength)/(1<<20), n>>20))
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimiter hands out one token bucket per client IP.
type RateLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	visitors map[string]*visitor
	now      func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// idleVisitor is how long a client's bucket is kept after its last request.
const idleVisitor = 10 * time.Minute

// NewRateLimiter allows perSecond requests per client with the given burst.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limit:    rate.Limit(perSecond),
		burst:    max(1, burst),
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

// Allow reports whether a request from ip may proceed.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, v := range rl.visitors {
		if now.Sub(v.lastSeen) > idleVisitor {
			delete(rl.visitors, key)
		}
	}

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Middleware rejects requests over the limit with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodOptions && !rl.Allow(clientIP(r)) {
			w.Header().Set("Retry-After", "1")
			respondError(w, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RealIP replaces r.RemoteAddr with the address named by X-Forwarded-For or X-Real-IP, but only when the
// connecting peer is one of the trusted proxies. Entries that are neither an IP nor a CIDR are logged and skipped.
func RealIP(trusted []string, logger *log.Logger) Middleware {
	var nets []netip.Prefix
	for _, entry := range trusted {
		prefix, err := parseProxy(entry)
		if err != nil {
			logger.Warn("ignoring trusted proxy", "entry", entry, "error", err)
			continue
		}
		nets = append(nets, prefix)
	}
	isTrusted := func(addr netip.Addr) bool {
		return slices.ContainsFunc(nets, func(p netip.Prefix) bool { return p.Contains(addr.Unmap()) })
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if peer, err := netip.ParseAddr(clientIP(r)); err == nil && isTrusted(peer) {
				if ip, ok := forwardedIP(r, isTrusted); ok {
					r.RemoteAddr = net.JoinHostPort(ip.String(), "0")
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func parseProxy(entry string) (netip.Prefix, error) {
	entry = strings.TrimSpace(entry)
	if strings.Contains(entry, "/") {
		prefix, err := netip.ParsePrefix(entry)
		return prefix.Masked(), err
	}
	addr, err := netip.ParseAddr(entry)
	if err != nil {
		return netip.Prefix{}, err
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// forwardedIP walks X-Forwarded-For from the right and returns the first hop that is not a trusted proxy,
// falling back to X-Real-IP.
func forwardedIP(r *http.Request, isTrusted func(netip.Addr) bool) (netip.Addr, bool) {
	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			ip, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				return netip.Addr{}, false
			}
			if !isTrusted(ip) || i == 0 {
				return ip.Unmap(), true
			}
		}
	}
	if ip, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return ip.Unmap(), true
	}
	return netip.Addr{}, false
}

// clientIP returns the host part of r.RemoteAddr. Proxy headers are only honoured through [RealIP].
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
