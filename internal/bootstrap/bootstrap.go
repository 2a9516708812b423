// Package bootstrap builds the identity client and its optional subsystems
// (emulators, App Check, analytics, Firestore, admin SDK) from one Options
// value.
//
// Subsystems initialize in parallel. If any of them fails, Init cancels the
// others, closes whatever was already opened, and returns the error: an App
// is either fully initialized or not returned at all.
package bootstrap

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	firebase "firebase.google.com/go/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"

	"github.com/otiai10/firesession/internal/identity"
	"github.com/otiai10/firesession/internal/store"
)

// firestorePingTimeout bounds the reachability check on a new Firestore client
const firestorePingTimeout = 10 * time.Second

// App is an initialized set of Firebase clients
type App struct {
	// Identity is always set
	Identity *identity.Client
	// Admin is set when Config.ProjectID is
	Admin *firebase.App
	// Firestore is set when the firestore emulator or a DatabaseID is configured
	Firestore *store.FirestoreClient

	projectID     string
	functionsBase string
	appCheck      *appCheck
	logger        *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// Init initializes the app described by opts.
//
// Parameters:
//   - ctx: Context for cancellation; it does not bound the App's lifetime
//   - opts: Project credentials and optional subsystems
//
// Returns:
//   - Initialized App, to be released with Close
//   - Error from the first subsystem that failed
//
// Example:
//
//	app, err := bootstrap.Init(ctx, bootstrap.Options{
//	    Config:    bootstrap.Config{APIKey: key, ProjectID: "demo-project"},
//	    Emulators: &bootstrap.EmulatorOptions{Auth: &bootstrap.PortOptions{}},
//	})
//	if err != nil {
//	    return err
//	}
//	defer app.Close()
func Init(ctx context.Context, opts Options) (*App, error) {
	if opts.Config.APIKey == "" {
		return nil, fmt.Errorf("config.apiKey is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	clientOpts := []identity.Option{
		identity.WithHTTPClient(httpClient),
		identity.WithLogger(logger),
	}
	if opts.Config.AppID != "" {
		clientOpts = append(clientOpts, identity.WithAppID(opts.Config.AppID))
	}

	app := &App{
		Identity:  identity.NewClient(opts.Config.APIKey, clientOpts...),
		projectID: opts.Config.ProjectID,
		logger:    logger,
	}

	// mu guards app fields assigned by subsystem goroutines
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	run := func(name string, fn func(context.Context) error) {
		g.Go(func() error {
			if err := fn(gctx); err != nil {
				return fmt.Errorf("failed to initialize %s: %w", name, err)
			}
			logger.Debug("subsystem initialized", zap.String("subsystem", name))
			return nil
		})
	}

	if em := opts.Emulators; em != nil {
		host := em.host()
		if em.Auth != nil {
			run("auth emulator", func(context.Context) error {
				addr, err := hostPort(host, port(em.Auth, DefaultAuthPort))
				if err != nil {
					return err
				}
				if err := app.Identity.UseEmulator("http://" + addr); err != nil {
					return err
				}
				// picked up by the admin SDK auth client
				return os.Setenv("FIREBASE_AUTH_EMULATOR_HOST", addr)
			})
		}
		if em.Functions != nil {
			run("functions emulator", func(context.Context) error {
				addr, err := hostPort(host, port(em.Functions, DefaultFunctionsPort))
				if err != nil {
					return err
				}
				mu.Lock()
				app.functionsBase = "http://" + addr
				mu.Unlock()
				logger.Info("🔧 Using Functions Emulator", zap.String("host", addr))
				return nil
			})
		}
		if em.Firestore != nil {
			run("firestore emulator", func(ctx context.Context) error {
				addr, err := hostPort(host, port(em.Firestore, DefaultFirestorePort))
				if err != nil {
					return err
				}
				if err := os.Setenv("FIRESTORE_EMULATOR_HOST", addr); err != nil {
					return err
				}
				return app.openFirestore(ctx, &mu, opts)
			})
		}
	}
	if (opts.Emulators == nil || opts.Emulators.Firestore == nil) && opts.DatabaseID != "" {
		run("firestore", func(ctx context.Context) error {
			return app.openFirestore(ctx, &mu, opts)
		})
	}
	if opts.AppCheck != nil {
		run("app check", func(ctx context.Context) error {
			ac, err := startAppCheck(ctx, app.Identity, opts.Config, *opts.AppCheck, httpClient, logger)
			if err != nil {
				return err
			}
			mu.Lock()
			app.appCheck = ac
			mu.Unlock()
			return nil
		})
	}
	if opts.Analytics != nil {
		run("analytics", func(context.Context) error {
			if opts.Analytics.Version == "" {
				return fmt.Errorf("analytics.version is required")
			}
			app.Identity.SetClientVersion("firesession/" + opts.Analytics.Version)
			return nil
		})
	}
	if opts.Config.ProjectID != "" {
		run("admin app", func(ctx context.Context) error {
			var adminOpts []option.ClientOption
			if opts.Config.CredentialsFile != "" {
				adminOpts = append(adminOpts, option.WithCredentialsFile(opts.Config.CredentialsFile))
			}
			admin, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: opts.Config.ProjectID}, adminOpts...)
			if err != nil {
				return err
			}
			mu.Lock()
			app.Admin = admin
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if cerr := app.Close(); cerr != nil {
			logger.Warn("failed to close partially initialized app", zap.Error(cerr))
		}
		return nil, err
	}

	logger.Info("firebase app initialized",
		zap.String("projectId", opts.Config.ProjectID),
		zap.Bool("emulated", opts.Emulators != nil))
	return app, nil
}

// openFirestore opens the client and fails unless the database answers
func (a *App) openFirestore(ctx context.Context, mu *sync.Mutex, opts Options) error {
	fc, err := store.NewFirestoreClient(ctx, store.FirestoreConfig{
		ProjectID:        opts.Config.ProjectID,
		Database:         opts.DatabaseID,
		Credentials:      opts.Config.CredentialsFile,
		Logger:           a.logger,
		CollectionPrefix: opts.CollectionPrefix,
	})
	if err != nil {
		return err
	}
	pingCtx, cancel := context.WithTimeout(ctx, firestorePingTimeout)
	defer cancel()
	if err := fc.Ping(pingCtx); err != nil {
		_ = fc.Close()
		return err
	}
	mu.Lock()
	a.Firestore = fc
	mu.Unlock()
	return nil
}

// FunctionsURL returns the HTTPS endpoint of a callable function
func (a *App) FunctionsURL(region, name string) string {
	if a.functionsBase != "" {
		return fmt.Sprintf("%s/%s/%s/%s", a.functionsBase, a.projectID, region, name)
	}
	return fmt.Sprintf("https://%s-%s.cloudfunctions.net/%s", region, a.projectID, name)
}

// AppCheckToken returns the current App Check token, empty without App Check
func (a *App) AppCheckToken() string {
	if a.appCheck == nil {
		return ""
	}
	return a.appCheck.token()
}

// Close stops background refreshes and closes the Firestore client
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		if a.appCheck != nil {
			a.appCheck.stop()
		}
		if a.Firestore != nil {
			a.closeErr = a.Firestore.Close()
		}
	})
	return a.closeErr
}

func hostPort(host string, p int) (string, error) {
	if p <= 0 || p > 65535 {
		return "", fmt.Errorf("invalid port %d", p)
	}
	return net.JoinHostPort(host, strconv.Itoa(p)), nil
}
