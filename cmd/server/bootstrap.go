package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/ovpnhub/internal/api"
	"github.com/charlesng35/ovpnhub/internal/app"
	"github.com/charlesng35/ovpnhub/internal/app/maintenance"
	iauth "github.com/charlesng35/ovpnhub/internal/auth"
	"github.com/charlesng35/ovpnhub/internal/cache"
	"github.com/charlesng35/ovpnhub/internal/database"
	"github.com/charlesng35/ovpnhub/internal/monitoring"
	"github.com/charlesng35/ovpnhub/internal/monitoring/checks"
	"github.com/charlesng35/ovpnhub/internal/profile"
	"github.com/charlesng35/ovpnhub/internal/reconciler"
	"github.com/charlesng35/ovpnhub/internal/services"
	"github.com/charlesng35/ovpnhub/internal/sessions"
	"github.com/charlesng35/ovpnhub/pkg/logger"
)

const healthProbeTimeout = 2 * time.Second

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB          *gorm.DB
	Redis       *redis.Client
	RedisLocker *cache.RedisLocker
	DBLocker    *cache.DatabaseLocker
	Scheduler   *reconciler.Scheduler
	Cleaner     *maintenance.Cleaner
	Monitoring  *monitoring.Module
	Router      *gin.Engine
}

// bootstrapRuntime initialises the database, lease backend, reconciler, monitoring and HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}

	stack.DBLocker, err = cache.NewDatabaseLocker(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise database lease store: %w", err)
	}

	leases := cfg.LeaseSettings()
	if leases.UseRedis {
		if err := stack.connectRedis(ctx, leases.Redis); err != nil {
			log.Warn("redis unavailable; falling back to database-backed leases", zap.Error(err))
		} else {
			log.Info("redis connected", zap.String("addr", leases.Redis.Address))
		}
	}

	stack.Monitoring, err = initialiseMonitoring(cfg)
	if err != nil {
		return nil, err
	}

	users, err := services.NewUserService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise user service: %w", err)
	}
	devices, err := services.NewDeviceService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise device service: %w", err)
	}
	policies, err := services.NewPolicyService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise policy service: %w", err)
	}
	networks, err := services.NewNetworkService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise network service: %w", err)
	}

	if cfg.Reconciler.Enabled {
		stack.Scheduler, err = initialiseScheduler(cfg, stack.leaseLocker(), leases.TTL, users, devices, log)
		if err != nil {
			return nil, err
		}
	}

	credentials, err := profile.NewFileCredentials(cfg.Profile.CredentialsDir)
	if err != nil {
		return nil, fmt.Errorf("initialise profile credentials: %w", err)
	}
	renderer, err := profile.NewRenderer(cfg.Profile.RendererConfig(), users, devices, policies, networks, credentials)
	if err != nil {
		return nil, fmt.Errorf("initialise profile renderer: %w", err)
	}

	stack.Cleaner = maintenance.NewCleaner(stack.DBLocker,
		maintenance.WithLeaseSchedule(leases.CleanupSchedule))
	if err := stack.Cleaner.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	if err := stack.registerHealthChecks(cfg, leases); err != nil {
		return nil, err
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	deps := api.Dependencies{
		DB:         stack.DB,
		JWT:        jwtSvc,
		Config:     cfg,
		Renderer:   renderer,
		Monitoring: stack.Monitoring,
	}
	if stack.Scheduler != nil {
		deps.Reconciler = stack.Scheduler
	}
	stack.Router, err = api.NewRouter(deps)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	if stack.Scheduler != nil {
		if err := stack.Scheduler.Start(); err != nil {
			return nil, fmt.Errorf("start reconciler: %w", err)
		}
	}

	success = true
	return stack, nil
}

func (s *runtimeStack) connectRedis(ctx context.Context, cfg cache.RedisConfig) error {
	client, err := cache.NewRedisClient(cfg)
	if err != nil {
		return err
	}
	locker, err := cache.NewRedisLocker(client)
	if err != nil {
		_ = client.Close()
		return err
	}
	if err := locker.Ping(ctx); err != nil {
		_ = client.Close()
		return err
	}
	s.Redis = client
	s.RedisLocker = locker
	return nil
}

// leaseLocker prefers Redis and falls back to the database lease table.
func (s *runtimeStack) leaseLocker() cache.Locker {
	if s.RedisLocker != nil {
		return s.RedisLocker
	}
	return s.DBLocker
}

// leaseBackend names the store behind leaseLocker for readiness reports.
func (s *runtimeStack) leaseBackend() string {
	if s.RedisLocker != nil {
		return checks.LeaseBackendRedis
	}
	return checks.LeaseBackendDatabase
}

func (s *runtimeStack) registerHealthChecks(cfg *app.Config, leases app.LeaseSettings) error {
	if s.Monitoring == nil {
		return nil
	}
	health := s.Monitoring.Health()
	health.SetRuntime(s.leaseBackend(), cfg.Reconciler.Enabled)
	health.RegisterReadiness(checks.Database(s.DB))

	var pinger checks.RedisPinger
	if s.RedisLocker != nil {
		pinger = s.RedisLocker
	}
	health.RegisterReadiness(checks.Lease(pinger, leases.UseRedis))
	health.RegisterReadiness(checks.Reconciler(cfg.Reconciler.Enabled, cfg.Reconciler.StaleAfter))

	cleanup, err := checks.LeaseCleanup(leases.CleanupSchedule)
	if err != nil {
		return fmt.Errorf("register health checks: %w", err)
	}
	health.RegisterReadiness(cleanup)
	return nil
}

func initialiseMonitoring(cfg *app.Config) (*monitoring.Module, error) {
	if !cfg.Monitoring.Prometheus.Enabled && !cfg.Monitoring.Health.Enabled {
		return nil, nil
	}
	mod, err := monitoring.NewModule(monitoring.Options{ProbeTimeout: healthProbeTimeout})
	if err != nil {
		return nil, fmt.Errorf("initialise monitoring: %w", err)
	}
	monitoring.SetModule(mod)
	return mod, nil
}

func initialiseScheduler(cfg *app.Config, locker cache.Locker, leaseTTL time.Duration, users *services.UserService, devices *services.DeviceService, log *zap.Logger) (*reconciler.Scheduler, error) {
	source, err := sessions.NewHTTPSource(cfg.Reconciler.StatusURL,
		sessions.WithToken(cfg.Reconciler.StatusToken),
		sessions.WithTimeout(cfg.Reconciler.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise session source: %w", err)
	}

	rec, err := reconciler.New(source, users, devices,
		reconciler.WithObserver(monitoring.CycleObserver{}),
		reconciler.WithLogger(logger.WithModule("reconciler")),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise reconciler: %w", err)
	}

	scheduler, err := reconciler.NewScheduler(rec,
		reconciler.WithInterval(cfg.Reconciler.Interval),
		reconciler.WithStopTimeout(cfg.Reconciler.Timeout),
		reconciler.WithLocker(locker, leaseTTL),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise reconciler scheduler: %w", err)
	}

	log.Info("reconciler configured",
		zap.String("status_url", cfg.Reconciler.StatusURL),
		zap.Duration("interval", scheduler.Interval()))
	return scheduler, nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Scheduler != nil {
		s.Scheduler.Stop()
	}

	if s.Cleaner != nil {
		select {
		case <-s.Cleaner.Stop().Done():
		case <-ctx.Done():
		}
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		if err := database.Close(s.DB); err != nil {
			log.Warn("failed to close database", zap.Error(err))
		}
	}
}

func initialiseDatabase(ctx context.Context, cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.DatabaseOpenConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.Migrate(db.WithContext(ctx)); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	logger.WithModule("database").Info("database connected",
		zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))
	return db, nil
}
