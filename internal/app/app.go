package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"
	"github.com/riskibarqy/cricket-match-service/external/cricbuzz"
	"github.com/riskibarqy/cricket-match-service/internal/config"
	"github.com/riskibarqy/cricket-match-service/internal/domain/match"
	"github.com/riskibarqy/cricket-match-service/internal/infrastructure/publisher"
	"github.com/riskibarqy/cricket-match-service/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/cricket-match-service/internal/infrastructure/repository/postgres"
	redisrepo "github.com/riskibarqy/cricket-match-service/internal/infrastructure/repository/redis"
	"github.com/riskibarqy/cricket-match-service/internal/interfaces/httpapi"
	"github.com/riskibarqy/cricket-match-service/internal/observability"
	"github.com/riskibarqy/cricket-match-service/internal/platform/dburl"
	"github.com/riskibarqy/cricket-match-service/internal/platform/logging"
	"github.com/riskibarqy/cricket-match-service/internal/platform/resilience"
	"github.com/riskibarqy/cricket-match-service/internal/usecase"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	dependencyPingTimeout = 5 * time.Second
	dbMaxOpenConns        = 10
	dbMaxIdleConns        = 5
	dbConnMaxLifetime     = 30 * time.Minute
)

// Server is the assembled HTTP server plus the resources it owns.
type Server struct {
	HTTP    *http.Server
	closers []func() error
}

// Close releases store and redis connections in reverse order of creation.
func (s *Server) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func NewHTTPServer(ctx context.Context, cfg config.Config, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.HTTPAddr == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	srv := &Server{}
	ok := false
	defer func() {
		if !ok {
			_ = srv.Close()
		}
	}()

	var metrics *observability.Metrics
	if cfg.MetricsEnabled {
		metrics = observability.NewMetrics()
	}

	var redisClient *goredis.Client
	if cfg.SnapshotStore == config.StoreRedis || cfg.SnapshotStreamEnabled {
		client, err := openRedis(ctx, cfg)
		if err != nil {
			return nil, err
		}
		redisClient = client
		srv.closers = append(srv.closers, client.Close)
	}

	store, closeStore, err := openSnapshotStore(ctx, cfg, redisClient)
	if err != nil {
		return nil, err
	}
	if closeStore != nil {
		srv.closers = append(srv.closers, closeStore)
	}

	var snapshotPublisher usecase.SnapshotPublisher
	if cfg.SnapshotStreamEnabled {
		snapshotPublisher = publisher.NewStreamPublisher(redisClient, cfg.SnapshotStreamKey, cfg.SnapshotStreamMaxLen)
	}

	var provider usecase.MatchProvider
	if cfg.CricbuzzEnabled {
		provider = newCricbuzzClient(cfg, metrics, logger)
	} else {
		logger.Warn("cricbuzz provider disabled, serving stored snapshots only")
	}

	var reconcileMetrics usecase.ReconcileMetrics
	if metrics != nil {
		reconcileMetrics = metrics
	}
	reconciler := usecase.NewReconcileService(store, provider, snapshotPublisher, reconcileMetrics, reconcileConfig(cfg), logger)
	syncer := usecase.NewMatchSyncService(provider, reconciler, cfg.SyncMaxWorkers, logger)

	routerCfg := httpapi.RouterConfig{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		InternalJobToken:   cfg.InternalJobToken,
	}
	if metrics != nil {
		routerCfg.MetricsHandler = metrics.Handler()
	}
	handler := httpapi.NewHandler(reconciler, syncer, logger)

	srv.HTTP = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewRouter(handler, logger, routerCfg),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	logger.Info("application assembled",
		"snapshot_store", cfg.SnapshotStore,
		"stream_enabled", cfg.SnapshotStreamEnabled,
		"cricbuzz_enabled", cfg.CricbuzzEnabled,
		"metrics_enabled", cfg.MetricsEnabled,
	)
	ok = true
	return srv, nil
}

func reconcileConfig(cfg config.Config) usecase.ReconcileConfig {
	return usecase.ReconcileConfig{
		Freshness: match.FreshnessPolicy{
			Live:     cfg.FreshnessLive,
			Upcoming: cfg.FreshnessUpcoming,
			Terminal: cfg.FreshnessTerminal,
		},
		Classifier: match.ClassifierConfig{
			LiveInferenceWindow:     cfg.LiveInferenceWindow,
			TestLiveInferenceWindow: cfg.LiveInferenceWindowTest,
		},
		FetchTimeout:     cfg.CricbuzzTimeout,
		MaxCommitRetries: cfg.CommitMaxRetries,
		CommitBackoff:    cfg.CommitBackoff,
	}
}

func newCricbuzzClient(cfg config.Config, metrics *observability.Metrics, logger *logging.Logger) *cricbuzz.Client {
	clientCfg := cricbuzz.ClientConfig{
		HTTPClient: &http.Client{
			Timeout:   cfg.CricbuzzTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		BaseURL:        cfg.CricbuzzBaseURL,
		APIKey:         cfg.CricbuzzAPIKey,
		APIHost:        cfg.CricbuzzAPIHost,
		Timeout:        cfg.CricbuzzTimeout,
		MaxRetries:     cfg.CricbuzzMaxRetries,
		RateLimitRPS:   cfg.CricbuzzRateLimitRPS,
		RateLimitBurst: cfg.CricbuzzRateLimitBurst,
		ListCacheTTL:   cfg.CricbuzzListCacheTTL,
		Logger:         logger.With("provider", "cricbuzz"),
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.CricbuzzCircuitEnabled,
			FailureThreshold: cfg.CricbuzzCircuitFailureCount,
			OpenTimeout:      cfg.CricbuzzCircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.CricbuzzCircuitHalfOpenMaxReq,
		},
	}
	if metrics != nil {
		clientCfg.Observer = metrics
	}
	return cricbuzz.NewClient(clientCfg)
}

func openRedis(ctx context.Context, cfg config.Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dependencyPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis addr=%s: %w", cfg.RedisAddr, err)
	}
	return client, nil
}

func openSnapshotStore(ctx context.Context, cfg config.Config, redisClient *goredis.Client) (match.Store, func() error, error) {
	switch cfg.SnapshotStore {
	case config.StorePostgres:
		db, err := otelsqlx.Open("postgres",
			dburl.Normalize(cfg.DBURL, cfg.DBDisablePreparedBinary),
			otelsql.WithDBSystem("postgresql"),
			otelsql.WithDBName(dburl.Name(cfg.DBURL)),
			otelsql.WithQueryFormatter(formatDBQueryForTrace),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxOpenConns(dbMaxOpenConns)
		db.SetMaxIdleConns(dbMaxIdleConns)
		db.SetConnMaxLifetime(dbConnMaxLifetime)

		pingCtx, cancel := context.WithTimeout(ctx, dependencyPingTimeout)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		return postgres.NewSnapshotRepository(db), db.Close, nil
	case config.StoreRedis:
		if redisClient == nil {
			return nil, nil, fmt.Errorf("redis snapshot store requires a redis client")
		}
		return redisrepo.NewSnapshotRepository(redisClient, cfg.RedisKeyPrefix, 0), nil, nil
	case config.StoreMemory, "":
		return memory.NewSnapshotRepository(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported snapshot store %q", cfg.SnapshotStore)
	}
}
