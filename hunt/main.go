package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	huntapi "github.com/Ftotnem/astar-livesearch/hunt/api"
	"github.com/Ftotnem/astar-livesearch/hunt/events"
	"github.com/Ftotnem/astar-livesearch/hunt/qr"
	"github.com/Ftotnem/astar-livesearch/hunt/service"
	"github.com/Ftotnem/astar-livesearch/hunt/store"
	"github.com/Ftotnem/astar-livesearch/hunt/syncer"
	"github.com/Ftotnem/astar-livesearch/shared/api"
	"github.com/Ftotnem/astar-livesearch/shared/cluster"
	"github.com/Ftotnem/astar-livesearch/shared/config"
	"github.com/Ftotnem/astar-livesearch/shared/mongodb"
	redisu "github.com/Ftotnem/astar-livesearch/shared/redis"
	"github.com/Ftotnem/astar-livesearch/shared/registry"
)

const (
	serviceType    = "hunt-service"
	serviceVersion = "1.0.0"

	limiterSweepInterval = time.Minute
)

func main() {
	// --- 1. Load Configuration ---
	cfg, err := config.LoadHuntServiceConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg.LogDevelopment)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("configuration loaded",
		zap.String("listen_addr", cfg.ListenAddr),
		zap.String("storage", cfg.Storage),
		zap.String("cost_mode", cfg.CostMode),
		zap.Bool("redis", cfg.RedisEnabled),
	)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// --- 2. Initialize Data Stores ---
	var (
		teams  service.TeamRepository
		colors service.ColorSequence
		health func(ctx context.Context) error
	)
	switch cfg.Storage {
	case "memory":
		logger.Warn("using in-memory storage, all progress is lost on restart")
		teams = store.NewMemoryTeamStore()
		colors = &store.MemoryColorSequence{}
	default:
		mongoClient, err := mongodb.NewClient(startupCtx, cfg.MongoDBConnStr, cfg.MongoDBDatabase, logger)
		if err != nil {
			logger.Fatal("failed to connect to MongoDB", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := mongoClient.Disconnect(ctx); err != nil {
				logger.Error("error disconnecting MongoDB", zap.Error(err))
			}
		}()

		teamStore := store.NewTeamStore(mongoClient.Collection(cfg.MongoDBTeamCollection))
		if err := teamStore.EnsureIndexes(startupCtx); err != nil {
			logger.Fatal("failed to ensure team indexes", zap.Error(err))
		}
		sequence := store.NewColorSequenceStore(mongoClient.Collection(cfg.MongoDBCounterCollection))
		if err := seedColorSequence(startupCtx, teamStore, sequence); err != nil {
			logger.Fatal("failed to seed route color sequence", zap.Error(err))
		}
		teams, colors, health = teamStore, sequence, mongoClient.Ping
	}

	// --- 3. Connect to Redis (optional) ---
	var (
		redisClient    redis.UniversalClient
		redisPublisher *events.RedisPublisher
		publisher      events.Publisher = events.NopPublisher{}
		cache          service.SnapshotCache
	)
	if cfg.RedisEnabled {
		redisClient, err = redisu.NewClient(startupCtx, cfg.RedisAddrs, cfg.RedisPassword, cfg.RedisCluster, logger)
		if err != nil {
			logger.Fatal("failed to connect to Redis", zap.Error(err))
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error("error closing Redis client", zap.Error(err))
			}
		}()
		redisPublisher = events.NewRedisPublisher(redisClient, logger)
		publisher = redisPublisher
		cache = store.NewLeaderboardCache(redisClient, cfg.LeaderboardCacheTTL)
	}

	// --- 4. Initialize Business Logic Services ---
	costRule, err := service.NewCostRule(cfg.CostMode, cfg.CostTable, cfg.CostStep, cfg.CostFixed)
	if err != nil {
		logger.Fatal("invalid cost rule", zap.Error(err))
	}
	identity := service.NewIdentityService(teams, cfg.RecoverySecret, publisher, logger)
	routes := service.NewRouteService(teams, identity, costRule, publisher, logger)
	registration := service.NewRegistrationService(teams, colors, cfg.DefaultRoute, publisher, logger)
	leaderboard := service.NewLeaderboardService(teams, identity, cache, cfg.RecentActivityLimit, logger)

	// --- 5. Initialize API Handlers ---
	handlers := huntapi.NewHuntAPIHandlers(registration, routes, identity, leaderboard, logger)
	handlers.PublicBaseURL = cfg.PublicBaseURL
	handlers.RequestTimeout = cfg.RequestTimeout
	recoveryLimiter := api.NewIPRateLimiter(cfg.RecoveryRate, cfg.RecoveryBurst)
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go recoveryLimiter.RunSweeper(sweepCtx, limiterSweepInterval)
	handlers.RecoveryLimiter = recoveryLimiter
	handlers.Health = health
	if cfg.QRConfig.Enabled() {
		codec, err := qr.NewCodec([]byte(cfg.QRKey), []byte(cfg.QRIV))
		if err != nil {
			logger.Fatal("invalid QR key material", zap.Error(err))
		}
		handlers.Codec = codec
	}

	// --- 6. Service Registration and Leaderboard Syncer ---
	if redisClient != nil {
		registrar := registry.NewServiceRegistrar(redisClient, serviceType, serviceVersion, &cfg.CommonConfig, logger)
		go registrar.Start()
		defer registrar.Stop()

		registryClient := registry.NewRegistryClient(redisClient, cfg.HeartbeatTTL, logger)
		assignments := cluster.NewServiceAssignmentManager(registryClient, registrar, cfg.HeartbeatInterval, logger)
		go assignments.Start()
		defer assignments.Stop()

		leaderboardSyncer := syncer.NewLeaderboardSyncer(leaderboard, assignments, redisPublisher,
			cfg.LeaderboardRefreshInterval, cfg.RequestTimeout, logger)
		go leaderboardSyncer.Start()
		defer leaderboardSyncer.Stop()
		logger.Info("service registrar and leaderboard syncer started", zap.String("service_id", registrar.GetServiceID()))
	}

	// --- 7. Setup HTTP Server and Register Routes ---
	baseServer := api.NewBaseServer(cfg.ListenAddr, logger)
	handlers.RegisterRoutes(baseServer.Router)

	// --- 8. Start HTTP Server ---
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- baseServer.Start()
	}()

	// --- 9. Graceful Shutdown ---
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-stop:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil {
			logger.Error("HTTP server stopped", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := baseServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed", zap.Error(err))
	}
	logger.Info("hunt service stopped")
}

func newLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// seedColorSequence starts the counter after the newest team's color when
// the counter document does not exist yet.
func seedColorSequence(ctx context.Context, teams *store.TeamStore, sequence *store.ColorSequenceStore) error {
	latest, err := teams.LatestTeam(ctx)
	if errors.Is(err, store.ErrTeamNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return sequence.Seed(ctx, latest.RouteColorIndex)
}
