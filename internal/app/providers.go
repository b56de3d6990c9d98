package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	// Modules
	"github.com/uniedit/album/internal/module/album"
	"github.com/uniedit/album/internal/module/audit"
	"github.com/uniedit/album/internal/module/auth"
	"github.com/uniedit/album/internal/module/auth/oauth"
	"github.com/uniedit/album/internal/module/federation"
	"github.com/uniedit/album/internal/module/session"
	"github.com/uniedit/album/internal/module/storage"

	// Infrastructure
	"github.com/uniedit/album/internal/infra/config"
	"github.com/uniedit/album/internal/infra/httpclient"
	"github.com/uniedit/album/internal/shared/cache"
	"github.com/uniedit/album/internal/shared/database"
	"github.com/uniedit/album/internal/shared/logger"

	// Utils
	"github.com/uniedit/album/internal/utils/metrics"
)

// ===== Infrastructure Providers =====

// InfraSet provides infrastructure dependencies.
var InfraSet = wire.NewSet(
	ProvideDatabase,
	ProvideRedisClient,
	ProvideHTTPClient,
	ProvideLogger,
	ProvideZapLogger,
	ProvideRegistry,
	ProvideMetrics,
)

// ProvideDatabase creates the audit database connection. It is nil when
// no database is configured.
func ProvideDatabase(cfg *config.Config) (*gorm.DB, func(), error) {
	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return db, func() { _ = database.Close(db) }, nil
}

// ProvideRedisClient creates a Redis client. It is nil when no address is
// configured or the server is unreachable.
func ProvideRedisClient(cfg *config.Config, zapLog *zap.Logger) (goredis.UniversalClient, func()) {
	if cfg.Redis.Address == "" {
		return nil, func() {}
	}
	client, err := cache.NewRedisClient(context.Background(), &cfg.Redis)
	if err != nil {
		zapLog.Warn("Redis connection failed, keeping sessions in memory", zap.Error(err))
		return nil, func() {}
	}
	return client, func() { _ = cache.Close(client) }
}

// ProvideLogger creates a logger instance.
func ProvideLogger(cfg *config.Config) *logger.Logger {
	return logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
}

// ProvideZapLogger creates a zap logger instance.
func ProvideZapLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	zapLog, err := logger.NewZapLogger(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return nil, nil, err
	}
	return zapLog, func() { _ = zapLog.Sync() }, nil
}

// ProvideHTTPClient creates a shared HTTP client with connection pooling.
func ProvideHTTPClient(cfg *config.Config) *http.Client {
	return httpclient.New(cfg.HTTPClient)
}

// ProvideRegistry creates the metrics registry served at /metrics.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates a metrics instance.
func ProvideMetrics(reg *prometheus.Registry) *metrics.Metrics {
	return metrics.New("album", reg)
}

// ===== Session Providers =====

// SessionSet provides session storage and the token lifecycle.
var SessionSet = wire.NewSet(
	ProvideSessionStore,
	ProvideRefresher,
	ProvideLifecycle,
)

// ProvideSessionStore creates the session store. Redis is used when
// available, with token fields sealed under auth.master_key.
func ProvideSessionStore(cfg *config.Config, redis goredis.UniversalClient) (session.Store, func(), error) {
	if redis == nil {
		store := session.NewMemoryStore(cfg.Auth.SessionTTL)
		return store, store.Close, nil
	}
	sealer, err := session.NewTokenSealer(cfg.Auth.MasterKey)
	if err != nil {
		return nil, nil, fmt.Errorf("auth.master_key is required with redis: %w", err)
	}
	return session.NewRedisStore(redis, sealer, cfg.Auth.SessionTTL), func() {}, nil
}

// ProvideRefresher creates the token endpoint refresher.
func ProvideRefresher(cfg *config.Config, client *http.Client) session.Refresher {
	return session.NewOAuthRefresher(
		cfg.Auth.ClientID,
		cfg.Auth.ClientSecret,
		cfg.Auth.ResolvedTokenEndpoint(),
		client,
	)
}

// ProvideLifecycle creates the token lifecycle manager.
func ProvideLifecycle(store session.Store, refresher session.Refresher, m *metrics.Metrics, zapLog *zap.Logger) *session.Lifecycle {
	return session.NewLifecycle(store, refresher, m, zapLog)
}

// ===== Storage Providers =====

// StorageSet provides federation and the object gateway.
var StorageSet = wire.NewSet(
	ProvideIdentityAPI,
	ProvideExchanger,
	ProvideResolver,
	ProvideClientFactory,
	ProvideGateway,
)

// ProvideIdentityAPI creates the identity pool client.
func ProvideIdentityAPI(cfg *config.Config) (federation.IdentityAPI, error) {
	return federation.NewIdentityClient(context.Background(), cfg.Storage.Region)
}

// ProvideExchanger creates the credential exchanger.
func ProvideExchanger(api federation.IdentityAPI, cfg *config.Config, m *metrics.Metrics, zapLog *zap.Logger) (*federation.Exchanger, error) {
	return federation.NewExchanger(api, federation.ConfigFromApp(cfg), m, zapLog)
}

// ProvideResolver creates the credential resolver.
func ProvideResolver(lifecycle *session.Lifecycle, exchanger *federation.Exchanger) *federation.Resolver {
	return federation.NewResolver(lifecycle, exchanger)
}

// ProvideClientFactory creates the storage client factory.
func ProvideClientFactory(cfg *config.Config, m *metrics.Metrics, zapLog *zap.Logger) (*storage.ClientFactory, error) {
	return storage.NewClientFactory(context.Background(), storage.OptionsFromConfig(&cfg.Storage), m, zapLog)
}

// ProvideGateway creates the object gateway.
func ProvideGateway(resolver *federation.Resolver, factory *storage.ClientFactory) *storage.Gateway {
	return storage.NewGateway(resolver, factory)
}

// ===== Album Providers =====

// AlbumSet provides the image API.
var AlbumSet = wire.NewSet(
	ProvideAuditRecorder,
	ProvideAlbumService,
	ProvideAlbumHandler,
)

// ProvideAuditRecorder creates the audit recorder.
func ProvideAuditRecorder(db *gorm.DB) (audit.Recorder, error) {
	return audit.NewRecorder(context.Background(), db)
}

// ProvideAlbumService creates the album service.
func ProvideAlbumService(gateway *storage.Gateway, recorder audit.Recorder, zapLog *zap.Logger) *album.Service {
	return album.NewService(gateway, recorder, zapLog)
}

// ProvideAlbumHandler creates the image HTTP handler.
func ProvideAlbumHandler(svc *album.Service, cfg *config.Config) *album.Handler {
	return album.NewHandler(svc, album.HandlerConfig{
		DefaultExpiry:  cfg.Storage.PresignTTL,
		MaxUploadBytes: cfg.Storage.MaxUploadBytes,
	})
}

// ===== Auth Providers =====

// AuthSet provides sign-in and session authentication.
var AuthSet = wire.NewSet(
	ProvideOAuthProvider,
	ProvideStateStore,
	ProvideAuthService,
	ProvideAuthHandler,
)

// ProvideOAuthProvider creates the hosted sign-in provider.
func ProvideOAuthProvider(cfg *config.Config, client *http.Client) oauth.Provider {
	return oauth.NewHostedUIProvider(&oauth.Config{
		ClientID:     cfg.Auth.ClientID,
		ClientSecret: cfg.Auth.ClientSecret,
		RedirectURL:  cfg.Auth.RedirectURL,
		Scopes:       cfg.Auth.Scopes,
		AuthURL:      cfg.Auth.AuthorizeEndpoint(),
		TokenURL:     cfg.Auth.ResolvedTokenEndpoint(),
	}, client)
}

// ProvideStateStore creates the OAuth state store.
func ProvideStateStore(cfg *config.Config, redis goredis.UniversalClient) (auth.StateStore, func()) {
	if redis == nil {
		store := auth.NewMemoryStateStore(cfg.Auth.StateTTL)
		return store, store.Close
	}
	return auth.NewRedisStateStore(redis, cfg.Auth.StateTTL), func() {}
}

// ProvideAuthService creates the auth service.
func ProvideAuthService(
	cfg *config.Config,
	sessions session.Store,
	provider oauth.Provider,
	states auth.StateStore,
	m *metrics.Metrics,
	zapLog *zap.Logger,
) *auth.Service {
	return auth.NewService(sessions, provider, states, &auth.JWTConfig{
		Secret: cfg.Auth.SessionSecret,
		Expiry: cfg.Auth.SessionTTL,
		Issuer: "album",
	}, m, zapLog)
}

// ProvideAuthHandler creates the auth HTTP handler.
func ProvideAuthHandler(svc *auth.Service, cfg *config.Config) *auth.Handler {
	return auth.NewHandler(svc, auth.CookieConfig{
		Name:   cfg.Auth.CookieName,
		Secure: cfg.Auth.CookieSecure,
	})
}

// ===== Combined Sets =====

// AppSet combines all provider sets.
var AppSet = wire.NewSet(
	InfraSet,
	SessionSet,
	StorageSet,
	AlbumSet,
	AuthSet,
)
