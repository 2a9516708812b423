package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/otiai10/firesession/internal/action"
	"github.com/otiai10/firesession/internal/api"
	"github.com/otiai10/firesession/internal/auth"
	"github.com/otiai10/firesession/internal/bootstrap"
	"github.com/otiai10/firesession/internal/config"
	"github.com/otiai10/firesession/internal/journal"
	"github.com/otiai10/firesession/internal/logging"
	"github.com/otiai10/firesession/internal/session"
	"github.com/otiai10/firesession/internal/version"
)

// credentials are the optional -email/-password flags
type credentials struct {
	email    string
	password string
}

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "", "Path to the YAML config file (empty reads the environment only)")
	email := flag.String("email", "", "Sign in with this email address after startup")
	password := flag.String("password", "", "Password for -email")
	flag.Parse()

	// Load .env.localdev file if it exists (for local development)
	// Silently ignore if file doesn't exist (production uses real env vars)
	_ = godotenv.Load(".env.localdev")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Setup context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("firesession - Firebase session tracker",
		zap.String("version", version.Version),
		zap.String("hash", version.CommitHash))

	if err := run(ctx, cfg, logger, credentials{email: *email, password: *password}); err != nil {
		logger.Error("firesession stopped", zap.Error(err))
		logger.Sync()
		log.Fatal(err)
	}
	logger.Info("Goodbye!")
}

// run bootstraps Firebase, tracks the session, and serves the API until ctx is done
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, creds credentials) error {
	opts := cfg.BootstrapOptions()
	opts.Logger = logger
	if opts.Analytics != nil && opts.Analytics.Version == "" {
		opts.Analytics.Version = version.Version
	}

	app, err := bootstrap.Init(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to bootstrap firebase: %w", err)
	}
	defer app.Close()

	trackerOpts := []session.Option{
		session.WithLogger(logger),
		session.WithWaitTimeout(cfg.WaitTimeout()),
	}
	if cfg.Session.VerifyClaims {
		if app.Admin == nil {
			return errors.New("session.verifyClaims requires the admin SDK")
		}
		verifier, err := auth.NewFirebaseTokenVerifier(ctx, app.Admin, cfg.Firebase.TenantID, cfg.Session.CheckRevoked)
		if err != nil {
			return fmt.Errorf("failed to create token verifier: %w", err)
		}
		trackerOpts = append(trackerOpts, session.WithClaimsResolver(verifier))
		logger.Info("Verifying ID tokens with the admin SDK",
			zap.String("tenant", verifier.TenantID()),
			zap.Bool("checkRevoked", cfg.Session.CheckRevoked))
	}

	tracker := session.NewTracker(app.Identity, trackerOpts...)
	tracker.Init()
	defer tracker.Unload()

	g, gctx := errgroup.WithContext(ctx)

	var repo journal.Repository
	if cfg.Journal.Enabled {
		repo, err = newJournal(cfg, app)
		if err != nil {
			return err
		}
		recorder := journal.NewRecorder(repo, journal.WithLogger(logger))
		detach := recorder.Attach(tracker)
		defer detach()
		g.Go(func() error {
			return recorder.Run(gctx)
		})
		logger.Info("Session journal enabled", zap.String("backend", cfg.Journal.Backend))
	}

	if creds.email != "" {
		signIn(ctx, app, logger, creds)
	}

	if err := tracker.WaitUntilLoaded(ctx, 0); err != nil {
		// Keep serving: /api/session/wait reports the state to clients
		logger.Warn("Auth state not loaded", zap.String("code", session.CodeLoadingTimedOut), zap.Error(err))
	} else {
		snap := tracker.Snapshot()
		if snap.Principal != nil {
			logger.Info("Signed in", zap.String("uid", snap.Principal.UID))
		} else {
			logger.Info("Signed out")
		}
	}

	handlerOpts := []api.HandlerOption{
		api.WithLogger(logger),
		api.WithAllowedOrigins(cfg.API.AllowedOrigins),
	}
	if repo != nil {
		handlerOpts = append(handlerOpts, api.WithJournal(repo))
	}
	handler := api.NewHandler(tracker, app.Identity, handlerOpts...)
	server := api.NewServer(cfg.API.Addr, api.NewRouter(handler, api.RouterConfig{
		Logger:         logger,
		AllowedOrigins: cfg.API.AllowedOrigins,
	}))

	g.Go(func() error {
		logger.Info("Starting session API server", zap.String("addr", cfg.API.Addr))
		return server.Start()
	})
	g.Go(func() error {
		<-gctx.Done()

		// Graceful shutdown
		logger.Info("Shutting down...")
		handler.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down API server: %w", err)
		}
		logger.Info("API server stopped")
		return nil
	})

	return g.Wait()
}

// newJournal opens the configured journal backend
func newJournal(cfg *config.Config, app *bootstrap.App) (journal.Repository, error) {
	switch cfg.Journal.Backend {
	case config.JournalFirestore:
		if app.Firestore == nil {
			return nil, errors.New("journal backend firestore requires a Firestore client")
		}
		return journal.NewFirestoreRepository(app.Firestore.Collection(journal.CollectionName)), nil
	default:
		return journal.NewMemoryRepository(), nil
	}
}

// signIn signs in with the -email/-password flags. Failures are logged only.
func signIn(ctx context.Context, app *bootstrap.App, logger *zap.Logger, creds credentials) {
	result, err := action.NewSignIn(app.Identity, action.WithLogger(logger)).Submit(ctx, creds.email, creds.password)
	switch {
	case err != nil:
		logger.Error("Sign in failed", zap.Error(err))
	case result.Coded():
		logger.Warn("Sign in rejected", zap.String("code", string(result)))
	default:
		logger.Info("Sign in succeeded", zap.String("email", creds.email))
	}
}
