package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	httptransport "github.com/streetfix/resolve-service/internal/api/http"
	"github.com/streetfix/resolve-service/internal/api/http/handlers"
	"github.com/streetfix/resolve-service/internal/auth"
	"github.com/streetfix/resolve-service/internal/cache"
	"github.com/streetfix/resolve-service/internal/config"
	"github.com/streetfix/resolve-service/internal/domain"
	"github.com/streetfix/resolve-service/internal/events"
	"github.com/streetfix/resolve-service/internal/media"
	"github.com/streetfix/resolve-service/internal/observability"
	"github.com/streetfix/resolve-service/internal/persistence"
	"github.com/streetfix/resolve-service/internal/repository"
	"github.com/streetfix/resolve-service/internal/service"
	"github.com/streetfix/resolve-service/internal/worker"
	"github.com/streetfix/resolve-service/internal/zones"
)

type repositories struct {
	tx            repository.Transactor
	users         repository.UserRepository
	tickets       repository.TicketRepository
	history       repository.TicketHistoryRepository
	requests      repository.FriendRequestRepository
	neighbors     repository.NeighborRepository
	notifications repository.NotificationRepository
	outbox        repository.OutboxRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	metrics := observability.NewMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}
	repos := buildRepositories(pg, logger)

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var userCache cache.UserCache
	if redis.Enabled() {
		userCache = cache.NewRedisUserCache(redis.Client, cfg.Redis.UserCacheTTL())
	}

	dispatcher := events.NewInMemoryDispatcher()

	notifier := service.NewNotificationService(service.NotificationDependencies{
		UserRepo:         repos.users,
		OutboxRepo:       repos.outbox,
		NotificationRepo: repos.notifications,
		Logger:           logger,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		Transactor:   repos.tx,
		TicketRepo:   repos.tickets,
		HistoryRepo:  repos.history,
		UserRepo:     repos.users,
		NeighborRepo: repos.neighbors,
		Notifier:     notifier,
		UserCache:    userCache,
		Dispatcher:   dispatcher,
		Logger:       logger,
		Referral:     domain.ReferralPolicy{Threshold: cfg.Referral.Threshold, Reward: cfg.Referral.Reward},
	})
	neighborService := service.NewNeighborService(service.NeighborDependencies{
		Transactor:   repos.tx,
		RequestRepo:  repos.requests,
		NeighborRepo: repos.neighbors,
		UserRepo:     repos.users,
		Notifier:     notifier,
		UserCache:    userCache,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})
	userService := service.NewUserService(service.UserDependencies{
		UserRepo:     repos.users,
		NeighborRepo: repos.neighbors,
		UserCache:    userCache,
		Logger:       logger,
	})
	staffService := service.NewStaffService(*cfg, service.StaffDependencies{
		Transactor: repos.tx,
		UserRepo:   repos.users,
		UserCache:  userCache,
		Logger:     logger,
	})
	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		Transactor: repos.tx,
		UserRepo:   repos.users,
		Logger:     logger,
	})
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo: repos.tickets,
		UserRepo:   repos.users,
	})

	if err := staffService.BootstrapDispatcher(ctx, cfg.Auth.BootstrapEmail, cfg.Auth.BootstrapPassword); err != nil {
		logger.Fatal("failed to bootstrap dispatcher", zap.Error(err))
	}
	if cfg.Zones.File != "" {
		seed, err := zones.Load(cfg.Zones.File)
		if err != nil {
			logger.Fatal("failed to load zone seed", zap.String("file", cfg.Zones.File), zap.Error(err))
		}
		applied, err := staffService.ApplyZones(ctx, seed.Assignments())
		if err != nil {
			logger.Fatal("failed to apply zone seed", zap.Error(err))
		}
		logger.Info("zone seed applied", zap.Int("engineers", applied))
	}

	var signer handlers.UploadSigner
	if presigner, err := media.NewPresigner(ctx, cfg.Storage); err != nil {
		logger.Warn("photo uploads disabled", zap.Error(err))
	} else {
		signer = presigner
	}

	workerDeps := worker.NotificationWorkerDependencies{
		OutboxRepo:       repos.outbox,
		NotificationRepo: repos.notifications,
		Metrics:          metrics,
		Logger:           logger,
	}
	if redis.Enabled() {
		workerDeps.Publisher = worker.NewRedisPublisher(redis.Client, cfg.Notification.ChannelPrefix)
	}
	notificationWorker := worker.NewNotificationWorker(cfg.Notification, workerDeps)
	dispatcher.SubscribeAll(notificationWorker.HandleEvent)
	notificationWorker.Start(ctx)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userService)

	app := httptransport.NewApp(cfg.App.Name)
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Users:          handlers.NewUsersHandler(authService, userService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		StaffTickets:   handlers.NewStaffTicketsHandler(ticketService, assignmentService),
		Staff:          handlers.NewStaffHandler(staffService),
		Neighbors:      handlers.NewNeighborsHandler(neighborService),
		Notifications:  handlers.NewNotificationsHandler(notifier),
		Media:          handlers.NewMediaHandler(signer),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	notificationWorker.Wait()
	if err := app.Shutdown(); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}

// buildRepositories picks Postgres when a pool exists and the in-memory store otherwise.
func buildRepositories(pg *persistence.Postgres, logger *zap.Logger) repositories {
	if !pg.Enabled() {
		logger.Warn("POSTGRES_DSN not provided; using the in-memory store")
		store := repository.NewMemoryStore()
		return repositories{
			tx:            store,
			users:         store.Users(),
			tickets:       store.Tickets(),
			history:       store.History(),
			requests:      store.FriendRequests(),
			neighbors:     store.Neighbors(),
			notifications: store.Notifications(),
			outbox:        store.Outbox(),
		}
	}
	pool := pg.PoolHandle()
	return repositories{
		tx:            persistence.NewTransactionManager(pool),
		users:         repository.NewUserRepository(pool),
		tickets:       repository.NewTicketRepository(pool),
		history:       repository.NewTicketHistoryRepository(pool),
		requests:      repository.NewFriendRequestRepository(pool),
		neighbors:     repository.NewNeighborRepository(pool),
		notifications: repository.NewNotificationRepository(pool),
		outbox:        repository.NewOutboxRepository(pool),
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
