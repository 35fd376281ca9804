package server

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/desertthunder/chordypi/internal/audio"
	"github.com/desertthunder/chordypi/internal/premium"
	"github.com/desertthunder/chordypi/internal/repositories"
	"github.com/desertthunder/chordypi/internal/services"
	"github.com/desertthunder/chordypi/internal/shared"
)

const shutdownTimeout = 10 * time.Second

// App holds the dependencies of the HTTP API.
type App struct {
	Config   *shared.Config
	Users    *repositories.UserRepository
	Library  *repositories.LibraryRepository
	Manager  *premium.Manager
	Payments *premium.PaymentService
	Pi       *services.PiService
	YouTube  *services.YouTubeService
	Analyzer *audio.Analyzer
	Logger   *log.Logger
}

// NewApp wires repositories and services over db using cfg.
func NewApp(cfg *shared.Config, db *sql.DB, logger *log.Logger) *App {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	client := &http.Client{Timeout: 30 * time.Second}

	users := repositories.NewUserRepository(db)
	pi := services.NewPiService(cfg.Credentials.Pi, client)
	manager := premium.NewManager(repositories.NewPremiumRepository(db), cfg.Analysis.DailyLimit, logger.WithPrefix("premium"))

	return &App{
		Config:   cfg,
		Users:    users,
		Library:  repositories.NewLibraryRepository(db),
		Manager:  manager,
		Payments: premium.NewPaymentService(repositories.NewPaymentRepository(db), users, manager, pi, logger.WithPrefix("payments")),
		Pi:       pi,
		YouTube:  services.NewYouTubeService(cfg.Credentials.YouTube, client),
		Analyzer: audio.NewAnalyzer(audio.AnalyzerOptions{MaxSeconds: float64(cfg.Analysis.MaxDurationSeconds)}),
		Logger:   logger,
	}
}

// Router builds the API router with every handler and the middleware stack.
func (a *App) Router() *BasicRouter {
	srv := a.Config.Server
	router := NewBasicRouter()

	router.Use(
		Recover(a.Logger),
		RealIP(srv.TrustedProxies, a.Logger),
		Logging(a.Logger),
		CORS(srv.AllowedOrigins, a.Logger),
		Isolation,
	)
	if srv.RateLimit > 0 {
		router.Use(NewRateLimiter(srv.RateLimit, srv.RateBurst).Middleware)
	}
	router.Use(
		MaxBytes(srv.MaxUploadBytes()),
		NewIdentity(a.Users, a.Pi, a.Config.Credentials.Pi.Sandbox, a.Logger).Middleware,
	)

	router.Handler(NewHealthHandler(srv.WebBuildPath, a.Config.Analysis.FFmpegPath, a.Pi))
	router.Handler(NewMockHandler(a.Logger))
	router.Handler(NewPiHandler(a.Payments, a.Manager, a.Pi, a.Logger))
	router.Handler(NewLibraryHandler(a.Library, a.Logger))
	router.Handler(NewSearchHandler(a.YouTube, a.Logger))
	router.Handler(NewAnalysisHandler(a.Analyzer, a.Manager, srv.MaxUploadBytes(), a.Config.Analysis.FFmpegPath, a.Logger))
	router.Handler(NewStaticHandler(srv.WebBuildPath, srv.LegalPath, a.Logger))
	return router
}

// TLSConfig returns the server TLS configuration, or nil when the API serves plain HTTP.
//
// A configured key pair takes precedence; otherwise SelfSigned generates a certificate for localhost.
func (a *App) TLSConfig() (*tls.Config, error) {
	srv := a.Config.Server
	var (
		cert tls.Certificate
		err  error
	)
	switch {
	case srv.TLSCert != "" && srv.TLSKey != "":
		cert, err = tls.LoadX509KeyPair(srv.TLSCert, srv.TLSKey)
	case srv.SelfSigned:
		cert, err = shared.SelfSignedCertificate(time.Now(), shared.SelfSignedValidity)
		if err == nil {
			a.Logger.Warn("using a self-signed certificate", "subject", cert.Leaf.Subject.CommonName, "expires", cert.Leaf.NotAfter)
		}
	default:
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tls certificate: %w", err)
	}
	return &tls.Config{MinVersion: tls.VersionTLS12, Certificates: []tls.Certificate{cert}}, nil
}

// Serve listens on the configured address and runs the API until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Config.Server.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return a.ServeListener(ctx, ln)
}

// ServeListener runs the API on ln until ctx is cancelled, then shuts down gracefully.
//
// With TLS enabled the API speaks HTTPS and, when RedirectPort is set, a second plain listener answers
// every request with a permanent redirect to the HTTPS address.
func (a *App) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := a.Config.Server
	tlsConfig, err := a.TLSConfig()
	if err != nil {
		ln.Close()
		return err
	}

	api := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           a.Router(),
		TLSConfig:         tlsConfig,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	servers := []*http.Server{api}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if tlsConfig != nil {
			a.Logger.Info("listening", "addr", "https://"+api.Addr)
			err = api.ServeTLS(ln, "", "")
		} else {
			a.Logger.Info("listening", "addr", "http://"+api.Addr)
			err = api.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server: %w", err)
	})

	if tlsConfig != nil && srv.RedirectPort > 0 {
		redirect := &http.Server{
			Addr:              net.JoinHostPort(srv.Host, strconv.Itoa(srv.RedirectPort)),
			Handler:           RedirectHTTPS(srv.Port),
			ReadHeaderTimeout: 10 * time.Second,
		}
		servers = append(servers, redirect)
		g.Go(func() error {
			a.Logger.Info("redirecting to https", "addr", redirect.Addr)
			if err := redirect.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("redirect server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		a.Logger.Info("shutting down")
		var errs []error
		for _, s := range servers {
			if err := s.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

// RedirectHTTPS answers every request with a 301 to the same host and path on httpsPort.
func RedirectHTTPS(httpsPort int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.Host
		if h, _, err := net.SplitHostPort(r.Host); err == nil {
			host = h
		}
		if httpsPort != 443 {
			host = net.JoinHostPort(host, strconv.Itoa(httpsPort))
		}
		http.Redirect(w, r, "https://"+host+r.URL.RequestURI(), http.StatusMovedPermanently)
	})
}
