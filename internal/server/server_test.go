package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/chordypi/internal/services"
	"github.com/desertthunder/chordypi/internal/shared"
)

const testToken = "good-token"

// fakePi serves the Pi platform endpoints the server calls.
type fakePi struct {
	mu       sync.Mutex
	payments map[string]services.PiPayment
	approved []string
	complete []string
}

func newFakePi() *fakePi {
	return &fakePi{payments: map[string]services.PiPayment{
		"pay-completed": {
			Identifier:  "pay-completed",
			UserUID:     "pi-uid-1",
			Amount:      1.0,
			Status:      services.PiPaymentStatus{DeveloperApproved: true, TransactionVerified: true},
			Transaction: &services.PiTransaction{TxID: "tx-remote", Verified: true},
		},
		"pay-approved": {
			Identifier: "pay-approved",
			UserUID:    "pi-uid-1",
			Amount:     2.0,
			Status:     services.PiPaymentStatus{DeveloperApproved: true},
		},
	}}
}

func (f *fakePi) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/v2/me" {
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(services.PiUser{UID: "pi-uid-token", Username: "tokenuser"})
		return
	}

	rest, ok := strings.CutPrefix(r.URL.Path, "/v2/payments/")
	if !ok || r.Header.Get("Authorization") != "Key test-key" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	id, action, _ := strings.Cut(rest, "/")

	f.mu.Lock()
	defer f.mu.Unlock()
	p, known := f.payments[id]

	switch action {
	case "approve":
		f.approved = append(f.approved, id)
	case "complete":
		f.complete = append(f.complete, id)
	}
	if !known {
		if action == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		p = services.PiPayment{Identifier: id}
	}
	_ = json.NewEncoder(w).Encode(p)
}

func (f *fakePi) called(action, id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if action == "approve" {
		return slices.Contains(f.approved, id)
	}
	return slices.Contains(f.complete, id)
}

type testEnv struct {
	app    *App
	router http.Handler
	pi     *fakePi
	web    string
	legal  string
}

func quietLogger() *log.Logger {
	return shared.NewLogger(io.Discard)
}

// newTestEnv builds an [App] over an in-memory database, a fake Pi platform and temp web directories.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	pi := newFakePi()
	piServer := httptest.NewServer(pi)
	t.Cleanup(piServer.Close)

	db, err := shared.OpenMigrated(shared.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	web := t.TempDir()
	legal := t.TempDir()

	cfg := shared.DefaultConfig()
	cfg.Credentials.Pi = shared.PiConfig{APIKey: "test-key", Sandbox: true, BaseURL: piServer.URL}
	cfg.Credentials.YouTube.APIKey = ""
	cfg.Server.WebBuildPath = web
	cfg.Server.LegalPath = legal
	cfg.Server.RateLimit = 0
	cfg.Server.MaxUploadMB = 1
	cfg.Analysis.FFmpegPath = "chordypi-missing-ffmpeg"
	cfg.Analysis.DailyLimit = 2

	app := NewApp(cfg, db, quietLogger())
	return &testEnv{app: app, router: app.Router(), pi: pi, web: web, legal: legal}
}

// do sends a request as uid (anonymous when empty) and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path, uid string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if uid != "" {
		req.Header.Set(piUserHeader, uid)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not a JSON object: %v\n%s", err, rec.Body.String())
	}
	return out
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

func TestBasicRouter(t *testing.T) {
	ok := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, body) }
	}

	t.Run("method matching and path variables", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handle(http.MethodGet, "/items/{id}", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, Vars(r)["id"])
		}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/42", nil))
		if rec.Body.String() != "42" {
			t.Errorf("expected path variable 42, got %q", rec.Body.String())
		}

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/items/42", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("unmatched path answers JSON", func(t *testing.T) {
		router := NewBasicRouter()
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
		if got := rec.Header().Get("Content-Type"); got != "application/json" {
			t.Errorf("expected JSON content type, got %q", got)
		}
	})

	t.Run("middleware order", func(t *testing.T) {
		var order []string
		mw := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(mw("first"), mw("second"))
		router.Handle(http.MethodGet, "/", ok("done"))
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		if strings.Join(order, ",") != "first,second" {
			t.Errorf("expected first,second, got %v", order)
		}
	})

	t.Run("prefix routes", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handler(routeList{
			{Method: http.MethodGet, Path: "/exact", Handler: ok("exact")},
			{Method: http.MethodGet, Path: "/", Handler: ok("fallback"), Prefix: true},
		})

		for path, want := range map[string]string{"/exact": "exact", "/deep/link": "fallback", "/": "fallback"} {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			if rec.Body.String() != want {
				t.Errorf("%s: expected %q, got %q", path, want, rec.Body.String())
			}
		}
	})
}

type routeList []Route

func (l routeList) Routes() []Route { return l }

func TestRecover(t *testing.T) {
	t.Run("converts panics to 500", func(t *testing.T) {
		h := Recover(quietLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
		if body := decodeBody(t, rec); body["status"] != "error" {
			t.Errorf("expected error status, got %v", body)
		}
	})

	t.Run("re-panics ErrAbortHandler", func(t *testing.T) {
		h := Recover(quietLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic(http.ErrAbortHandler)
		}))
		defer func() {
			if r := recover(); r != http.ErrAbortHandler {
				t.Errorf("expected ErrAbortHandler to propagate, got %v", r)
			}
		}()
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestCORSAndIsolation(t *testing.T) {
	h := CORS([]string{"http://localhost:3000"}, quietLogger())(Isolation(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	for _, origin := range []string{"http://localhost:3000", "https://elsewhere.example"} {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set("Origin", origin)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != origin {
			t.Errorf("expected origin %q echoed, got %q", origin, got)
		}
		if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
			t.Errorf("expected credentials allowed, got %q", got)
		}
		if got := rec.Header().Get("Cross-Origin-Opener-Policy"); got != "same-origin-allow-popups" {
			t.Errorf("unexpected COOP %q", got)
		}
		if got := rec.Header().Get("Cross-Origin-Embedder-Policy"); got != "credentialless" {
			t.Errorf("unexpected COEP %q", got)
		}
		csp := rec.Header().Get("Content-Security-Policy")
		for _, directive := range []string{
			"default-src 'self'",
			"frame-src 'self' https://www.youtube.com https://www.youtube-nocookie.com",
			"script-src 'self' 'unsafe-inline' 'unsafe-eval' *.pi.app https://sdk.minepi.com",
			"object-src 'none'",
		} {
			if !strings.Contains(csp, directive) {
				t.Errorf("expected CSP to contain %q, got %q", directive, csp)
			}
		}
		if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
			t.Errorf("unexpected X-Content-Type-Options %q", got)
		}
	}

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/pi/payments/approve", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "X-Pi-User")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if !strings.Contains(rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost) {
			t.Errorf("expected POST in allowed methods, got %q", rec.Header().Get("Access-Control-Allow-Methods"))
		}
		if rec.Header().Get("Access-Control-Max-Age") != "3600" {
			t.Errorf("expected max age 3600, got %q", rec.Header().Get("Access-Control-Max-Age"))
		}
	})
}

func TestMaxBytes(t *testing.T) {
	h := MaxBytes(1<<20)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("declared length over limit", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(make([]byte, 2<<20))))
		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("expected 413, got %d", rec.Code)
		}
	})

	t.Run("within limit", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("small")))
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})
}

func TestRateLimiter(t *testing.T) {
	t.Run("per client buckets", func(t *testing.T) {
		rl := NewRateLimiter(1, 2)
		now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		rl.now = func() time.Time { return now }

		if !rl.Allow("10.0.0.1") || !rl.Allow("10.0.0.1") {
			t.Fatal("expected burst of 2 to be allowed")
		}
		if rl.Allow("10.0.0.1") {
			t.Error("expected third request to be limited")
		}
		if !rl.Allow("10.0.0.2") {
			t.Error("expected a different client to be allowed")
		}

		now = now.Add(time.Second)
		if !rl.Allow("10.0.0.1") {
			t.Error("expected a token to refill after one second")
		}
	})

	t.Run("evicts idle clients", func(t *testing.T) {
		rl := NewRateLimiter(1, 1)
		now := time.Now()
		rl.now = func() time.Time { return now }

		rl.Allow("10.0.0.1")
		now = now.Add(idleVisitor + time.Second)
		rl.Allow("10.0.0.2")

		if _, ok := rl.visitors["10.0.0.1"]; ok {
			t.Error("expected idle visitor to be evicted")
		}
	})

	t.Run("middleware", func(t *testing.T) {
		h := NewRateLimiter(0.001, 1).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		codes := []int{}
		for range 2 {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			codes = append(codes, rec.Code)
		}
		if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
			t.Errorf("expected [200 429], got %v", codes)
		}

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("expected preflight to bypass the limiter, got %d", rec.Code)
		}
	})
}

func TestRealIP(t *testing.T) {
	h := RealIP([]string{"10.0.0.0/8", "127.0.0.1", "not-an-ip"}, quietLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, clientIP(r))
	}))

	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded by trusted proxy", map[string]string{"X-Forwarded-For": "203.0.113.5"}, "127.0.0.1:1234", "203.0.113.5"},
		{"trusted hops skipped", map[string]string{"X-Forwarded-For": "198.51.100.1, 203.0.113.5, 10.1.2.3"}, "10.0.0.1:1234", "203.0.113.5"},
		{"real ip from trusted proxy", map[string]string{"X-Real-IP": "198.51.100.7"}, "10.9.9.9:80", "198.51.100.7"},
		{"spoofed forwarded for", map[string]string{"X-Forwarded-For": "203.0.113.5"}, "192.0.2.1:5555", "192.0.2.1"},
		{"spoofed real ip", map[string]string{"X-Real-IP": "198.51.100.7"}, "192.0.2.1:5555", "192.0.2.1"},
		{"garbage header", map[string]string{"X-Forwarded-For": "nonsense"}, "127.0.0.1:1234", "127.0.0.1"},
		{"remote addr", nil, "192.0.2.1:5555", "192.0.2.1"},
		{"remote without port", nil, "192.0.2.1", "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if got := rec.Body.String(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}

	t.Run("spoofed header does not dodge the rate limit", func(t *testing.T) {
		env := newTestEnv(t)
		env.app.Config.Server.RateLimit = 0.001
		env.app.Config.Server.RateBurst = 1
		router := env.app.Router()

		codes := []int{}
		for i := range 3 {
			req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
			req.RemoteAddr = "192.0.2.1:5555"
			req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			codes = append(codes, rec.Code)
		}
		if codes[1] != http.StatusTooManyRequests || codes[2] != http.StatusTooManyRequests {
			t.Errorf("expected later requests to be limited, got %v", codes)
		}
	})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: bad", shared.ErrInvalidInput), http.StatusBadRequest},
		{shared.ErrAmountMismatch, http.StatusBadRequest},
		{shared.ErrAuthFailed, http.StatusUnauthorized},
		{fmt.Errorf("%w: advancedAnalysis", shared.ErrFeatureLocked), http.StatusForbidden},
		{shared.ErrPaymentNotFound, http.StatusNotFound},
		{shared.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{shared.ErrLimitReached, http.StatusTooManyRequests},
		{shared.ErrAPIRequest, http.StatusBadGateway},
		{shared.ErrMissingCredentials, http.StatusServiceUnavailable},
		{shared.ErrTimeout, http.StatusGatewayTimeout},
		{errors.New("anything else"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestRedirectHTTPS(t *testing.T) {
	tests := []struct {
		port int
		host string
		want string
	}{
		{443, "chordypi.app:80", "https://chordypi.app/api/health?x=1"},
		{5443, "localhost:5000", "https://localhost:5443/api/health?x=1"},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/health?x=1", nil)
		req.Host = tt.host
		rec := httptest.NewRecorder()
		RedirectHTTPS(tt.port).ServeHTTP(rec, req)

		if rec.Code != http.StatusMovedPermanently {
			t.Errorf("expected 301, got %d", rec.Code)
		}
		if got := rec.Header().Get("Location"); got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, got)
		}
	}
}
