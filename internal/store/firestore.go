package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultDatabase is the Firestore database used when none is named
const DefaultDatabase = "(default)"

// pingCollection holds no documents; Ping reads from it
const pingCollection = "_ping"

// FirestoreClient wraps the Firestore client shared by the repositories
type FirestoreClient struct {
	client    *firestore.Client
	projectID string
	database  string
	emulator  string
	prefix    string
}

// FirestoreConfig holds configuration for Firestore client
type FirestoreConfig struct {
	ProjectID   string      // GCP Project ID (required)
	Database    string      // Database name (optional, defaults to "(default)")
	Credentials string      // Path to service account JSON file (optional)
	Logger      *zap.Logger // Optional, defaults to a no-op logger

	// CollectionPrefix namespaces every collection, e.g. "staging_" to share
	// one database between environments. It must not contain "/".
	CollectionPrefix string
}

// NewFirestoreClient creates a new Firestore client.
// If FIRESTORE_EMULATOR_HOST is set, the client will connect to the emulator.
func NewFirestoreClient(ctx context.Context, cfg FirestoreConfig) (*FirestoreClient, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("projectID is required")
	}
	if strings.Contains(cfg.CollectionPrefix, "/") {
		return nil, fmt.Errorf("collection prefix %q must not contain /", cfg.CollectionPrefix)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// Check if using emulator
	emulatorHost := os.Getenv("FIRESTORE_EMULATOR_HOST")
	if emulatorHost != "" {
		logger.Info("🔧 Using Firestore Emulator", zap.String("host", emulatorHost))
	}

	var opts []option.ClientOption
	if cfg.Credentials != "" && emulatorHost == "" {
		// Only use credentials file when not using emulator
		opts = append(opts, option.WithCredentialsFile(cfg.Credentials))
	}

	database := cfg.Database
	if database == "" {
		database = DefaultDatabase
	}

	client, err := firestore.NewClientWithDatabase(ctx, cfg.ProjectID, database, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	return &FirestoreClient{
		client:    client,
		projectID: cfg.ProjectID,
		database:  database,
		emulator:  emulatorHost,
		prefix:    cfg.CollectionPrefix,
	}, nil
}

// Close releases resources held by the Firestore client
func (f *FirestoreClient) Close() error {
	if f.client == nil {
		return nil
	}
	return f.client.Close()
}

// Client returns the underlying Firestore client
func (f *FirestoreClient) Client() *firestore.Client {
	return f.client
}

// ProjectID returns the GCP project ID
func (f *FirestoreClient) ProjectID() string {
	return f.projectID
}

// Database returns the Firestore database name
func (f *FirestoreClient) Database() string {
	return f.database
}

// EmulatorHost returns the emulator the client talks to, empty for production
func (f *FirestoreClient) EmulatorHost() string {
	return f.emulator
}

// CollectionName returns name with the configured prefix applied
func (f *FirestoreClient) CollectionName(name string) string {
	return f.prefix + name
}

// Collection returns a reference to the prefixed collection name
func (f *FirestoreClient) Collection(name string) *firestore.CollectionRef {
	return f.client.Collection(f.CollectionName(name))
}

// Ping checks that the database answers by reading a document that does not
// exist. NotFound counts as success.
//
// Parameters:
//   - ctx: Context bounding the round trip
//
// Returns:
//   - nil when Firestore is reachable
//   - Error wrapping the transport or permission failure otherwise
func (f *FirestoreClient) Ping(ctx context.Context) error {
	if f.client == nil {
		return errors.New("firestore client is not open")
	}
	_, err := f.Collection(pingCollection).Doc("ping").Get(ctx)
	if err == nil || IsNotFound(err) {
		return nil
	}
	return fmt.Errorf("failed to reach firestore database %s: %w", f.database, err)
}

// IsNotFound reports whether err is a Firestore NotFound error
func IsNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}
