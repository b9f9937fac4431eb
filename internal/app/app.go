// Package app assembles the process-wide components from configuration: one instance of each is
// built at startup and torn down by Close.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"greenline/backend/internal/audit"
	auditrepo "greenline/backend/internal/audit/repository"
	"greenline/backend/internal/auth"
	"greenline/backend/internal/auth/gotrue"
	"greenline/backend/internal/auth/local"
	"greenline/backend/internal/config"
	"greenline/backend/internal/db"
	"greenline/backend/internal/document"
	docrepo "greenline/backend/internal/document/repository"
	"greenline/backend/internal/guard"
	memberrepo "greenline/backend/internal/membership/repository"
	orgdomain "greenline/backend/internal/organization/domain"
	orgrepo "greenline/backend/internal/organization/repository"
	"greenline/backend/internal/permission"
	"greenline/backend/internal/quote"
	quoterepo "greenline/backend/internal/quote/repository"
	rolerepo "greenline/backend/internal/role/repository"
	"greenline/backend/internal/security"
	"greenline/backend/internal/session"
	"greenline/backend/internal/state"
	"greenline/backend/internal/store"
	"greenline/backend/internal/store/memstore"
	"greenline/backend/internal/store/postgres"
	"greenline/backend/internal/store/postgrest"
	"greenline/backend/internal/telemetry"
	"greenline/backend/internal/telemetry/otel"
	"greenline/backend/internal/tenancy"
)

// App holds the assembled components.
type App struct {
	Config      *config.Config
	Log         *zap.Logger
	Store       store.Client
	State       state.Store
	Auth        auth.Provider
	Audit       audit.AuditLogger
	Tenancy     *tenancy.Manager
	Session     *session.Manager
	Permissions *permission.Resolver
	Guard       *guard.Guard
	Quotes      *quote.Service
	Documents   *document.Service

	rest      *postgrest.Client
	closeOnce sync.Once
	closers   []func(context.Context) error
}

// Option overrides a component New would otherwise build from configuration.
type Option func(*options)

type options struct {
	store  store.Client
	state  state.Store
	tokens  *security.TokenProvider
	reset   local.ResetSender
	emitter telemetry.EventEmitter
}

// WithStore uses c as the remote store instead of the configured backend.
func WithStore(c store.Client) Option { return func(o *options) { o.store = c } }

// WithState uses st for persisted local state instead of STATE_FILE or REDIS_URL.
func WithState(st state.Store) Option { return func(o *options) { o.state = st } }

// WithTokens uses p to sign local sessions instead of the JWT key settings.
func WithTokens(p *security.TokenProvider) Option { return func(o *options) { o.tokens = p } }

// WithResetSender delivers local password reset links. By default they are logged.
func WithResetSender(fn local.ResetSender) Option { return func(o *options) { o.reset = fn } }

// WithEmitter sends audit events to e instead of the OTLP endpoint.
func WithEmitter(e telemetry.EventEmitter) Option { return func(o *options) { o.emitter = e } }

// NewLogger builds a production zap logger at level (debug, info, warn, error).
func NewLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// New builds every component. Call Start to restore the session, and Close when done. On error,
// whatever was already opened is closed.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	a := &App{Config: cfg, Log: logger}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	providers, err := otel.NewProviders(ctx, otel.Config{Endpoint: cfg.OTLPEndpoint, ServiceName: cfg.ServiceName, Insecure: cfg.OTLPInsecure}, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	a.closers = append(a.closers, func(ctx context.Context) error {
		if !telemetry.Drain(telemetry.ShutdownDrainDuration) {
			logger.Warn("app: telemetry emits still in flight at shutdown", zap.Duration("waited", telemetry.ShutdownDrainDuration))
		}
		return providers.Shutdown(ctx)
	})

	base, rest, err := a.openStore(ctx, o.store)
	if err != nil {
		return nil, err
	}
	a.Store = store.Instrument(store.WithTimeout(base, cfg.Timeout()), providers.TracerProvider, providers.MeterProvider)

	if a.State, err = a.openState(ctx, o.state); err != nil {
		return nil, err
	}
	if a.Auth, err = a.openAuth(o); err != nil {
		return nil, err
	}
	if rest != nil {
		a.rest = rest
		// Remote store calls run as the signed-in user so the project's row-level policies see them.
		// Services scope their own queries by organization either way.
		a.closers = append(a.closers, unsubscribe(a.Auth.OnAuthStateChange(func(_ context.Context, _ auth.Event, s *auth.Session) {
			if s == nil {
				rest.SetAuthToken("")
				return
			}
			rest.SetAuthToken(s.AccessToken)
		})))
	}

	emitter := o.emitter
	if emitter == nil && cfg.OTLPEndpoint != "" {
		emitter = otel.NewEventEmitter(providers.LoggerProvider)
	}
	a.Audit = audit.NewLogger(auditrepo.NewStoreRepository(a.Store), emitter, logger.Named("audit"))

	roles := rolerepo.NewStoreRepository(a.Store)
	members := memberrepo.NewStoreRepository(a.Store)
	a.Tenancy = tenancy.NewManager(orgrepo.NewStoreRepository(a.Store), members, roles, a.State, a.Audit, logger.Named("tenancy"))
	a.Session = session.NewManager(a.Auth, a.Tenancy, cfg.AppBaseURL, a.Audit, logger.Named("session"))
	a.closers = append(a.closers, func(context.Context) error { a.Session.Close(); return nil })

	a.Permissions = permission.NewResolver(members, roles, a.Session, a.Tenancy, logger.Named("permission"))
	a.closers = append(a.closers, unsubscribe(a.Permissions.Bind()))

	policy, err := a.routePolicy(ctx)
	if err != nil {
		return nil, err
	}
	a.Guard = guard.New(nil, a.Session, a.Tenancy, a.Permissions, policy, a.Audit, logger.Named("guard"))

	a.Quotes = quote.NewService(quoterepo.NewStoreRepository(a.Store), a.Tenancy, a.Session, a.Audit, logger.Named("quote"))
	a.Documents = document.NewService(docrepo.NewStoreRepository(a.Store), a.Tenancy, a.Session, a.Permissions, a.Audit, logger.Named("document"))
	a.closers = append(a.closers, unsubscribe(a.Tenancy.OnOrganizationChange(func(context.Context, *orgdomain.WithRole) {
		a.Quotes.Reset()
		a.Documents.Reset()
	})))

	return a, nil
}

// openStore returns the configured store backend and, for the REST backend, the client whose
// bearer token follows the session.
func (a *App) openStore(ctx context.Context, override store.Client) (store.Client, *postgrest.Client, error) {
	if override != nil {
		return override, nil, nil
	}
	cfg := a.Config
	switch backend := cfg.ResolvedStoreBackend(); backend {
	case config.StoreBackendMemory:
		m := memstore.New()
		if _, err := rolerepo.SeedDefaults(ctx, m); err != nil {
			return nil, nil, fmt.Errorf("seed roles: %w", err)
		}
		m.RegisterRPC(quoterepo.QuoteNumberRPC, quoteNumbers(time.Now))
		a.Log.Warn("app: using the in-memory store; data is lost on exit")
		return m, nil, nil
	case config.StoreBackendPostgres:
		pool, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("database: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { pool.Close(); return nil })
		return postgres.New(pool), nil, nil
	case config.StoreBackendPostgREST:
		if cfg.SupabaseURL == "" {
			return nil, nil, errors.New("app: STORE_BACKEND=postgrest requires SUPABASE_URL")
		}
		c := postgrest.New(cfg.SupabaseURL+"/rest/v1", cfg.SupabaseAnonKey)
		return c, c, nil
	default:
		a.Log.Warn("app: no remote store configured; set DATABASE_URL or SUPABASE_URL")
		return store.NotConfigured(), nil, nil
	}
}

func (a *App) openState(ctx context.Context, override state.Store) (state.Store, error) {
	if override != nil {
		return override, nil
	}
	if a.Config.RedisURL == "" {
		return state.NewFileStore(a.Config.StateFile), nil
	}
	rdb, err := state.DialRedis(ctx, a.Config.RedisURL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error { return rdb.Close() })
	return state.NewRedisStore(rdb, a.Config.StateKeyPrefix), nil
}

func (a *App) openAuth(o options) (auth.Provider, error) {
	cfg := a.Config
	switch cfg.ResolvedAuthProvider() {
	case config.AuthProviderGoTrue:
		if cfg.SupabaseURL == "" {
			return nil, errors.New("app: AUTH_PROVIDER=gotrue requires SUPABASE_URL")
		}
		return gotrue.New(cfg.SupabaseURL, cfg.SupabaseAnonKey, a.State,
			gotrue.WithTimeout(cfg.Timeout()), gotrue.WithLogger(a.Log.Named("gotrue"))), nil
	case config.AuthProviderLocal:
		tokens := o.tokens
		if tokens == nil {
			signer, pub, err := security.ParseKeyPair(cfg.JWTPrivateKey, cfg.JWTPublicKey)
			if err != nil {
				return nil, fmt.Errorf("jwt keys: %w", err)
			}
			tokens = security.NewTokenProvider(signer, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL(), cfg.RefreshTTL())
		}
		reset := o.reset
		if reset == nil {
			log := a.Log.Named("auth")
			reset = func(_ context.Context, email, link string) error {
				log.Info("auth: password reset link", zap.String("email", email), zap.String("link", link))
				return nil
			}
		}
		return local.New(a.Store, local.Config{
			Hasher:      security.NewHasher(cfg.BcryptCost),
			Tokens:      tokens,
			State:       a.State,
			OAuth:       local.OAuthConfigs(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GitHubClientID, cfg.GitHubClientSecret),
			ResetSender: reset,
			Logger:      a.Log.Named("auth"),
		}), nil
	default:
		a.Log.Warn("app: no auth provider configured; set SUPABASE_URL or JWT keys")
		return auth.NotConfigured(), nil
	}
}

func (a *App) routePolicy(ctx context.Context) (guard.Policy, error) {
	if a.Config.RoutePolicyFile == "" {
		return guard.TablePolicy{}, nil
	}
	p, err := guard.LoadRegoPolicy(ctx, a.Config.RoutePolicyFile, a.Log.Named("guard"))
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Start restores the persisted session and, for a signed-in user, their organizations. A failed
// restore leaves the app signed out; the error is returned for reporting.
func (a *App) Start(ctx context.Context) error {
	err := a.Session.Initialize(ctx)
	if a.rest != nil {
		if s := a.Session.Session(); s != nil {
			a.rest.SetAuthToken(s.AccessToken)
		}
	}
	return err
}

// Close releases every component in reverse order of creation. It is safe to call more than once.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	a.closeOnce.Do(func() {
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](ctx); err != nil {
				errs = append(errs, err)
			}
		}
		_ = a.Log.Sync()
	})
	return errors.Join(errs...)
}

func unsubscribe(stop func()) func(context.Context) error {
	return func(context.Context) error { stop(); return nil }
}

// quoteNumbers numbers quotes Q-<year>-<000001> for the in-memory store.
func quoteNumbers(now func() time.Time) memstore.RPCFunc {
	var mu sync.Mutex
	var seq int
	return func(context.Context, map[string]any) (any, error) {
		mu.Lock()
		defer mu.Unlock()
		seq++
		return fmt.Sprintf("Q-%d-%06d", now().Year(), seq), nil
	}
}
