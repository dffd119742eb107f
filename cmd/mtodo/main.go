package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mtodo/internal/cache"
	"github.com/xxxsen/mtodo/internal/config"
	"github.com/xxxsen/mtodo/internal/db"
	"github.com/xxxsen/mtodo/internal/handler"
	"github.com/xxxsen/mtodo/internal/health"
	"github.com/xxxsen/mtodo/internal/job"
	"github.com/xxxsen/mtodo/internal/pkg/jwt"
	"github.com/xxxsen/mtodo/internal/pkg/password"
	"github.com/xxxsen/mtodo/internal/repo"
	"github.com/xxxsen/mtodo/internal/repo/memrepo"
	"github.com/xxxsen/mtodo/internal/repo/mongorepo"
	"github.com/xxxsen/mtodo/internal/schedule"
	"github.com/xxxsen/mtodo/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "mtodo",
		Short: "mtodo backend server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run mtodo server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))
			return runServer(cfg)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

type stores struct {
	users  service.UserStore
	todos  service.TodoStore
	pinger health.Pinger
	close  func(ctx context.Context) error
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.Store.Type {
	case config.StoreMongo:
		mdb, err := mongorepo.Open(ctx, cfg.Store.Mongo.URI, cfg.Store.Mongo.Database)
		if err != nil {
			return nil, fmt.Errorf("open mongo: %w", err)
		}
		if err := mdb.EnsureIndexes(ctx); err != nil {
			_ = mdb.Close(ctx)
			return nil, fmt.Errorf("ensure indexes: %w", err)
		}
		return &stores{
			users:  mongorepo.NewUserRepo(mdb.Database()),
			todos:  mongorepo.NewTodoRepo(mdb.Database()),
			pinger: mdb,
			close:  mdb.Close,
		}, nil
	case config.StorePostgres:
		sqlDB, err := db.Open(cfg.Store.Postgres)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.ApplyMigrations(ctx, sqlDB); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		return &stores{
			users:  repo.NewUserRepo(sqlDB),
			todos:  repo.NewTodoRepo(sqlDB),
			pinger: db.Pinger{DB: sqlDB},
			close:  func(context.Context) error { return sqlDB.Close() },
		}, nil
	default:
		todos := memrepo.NewTodoRepo()
		return &stores{
			users:  memrepo.NewUserRepo(),
			todos:  todos,
			pinger: todos,
			close:  func(context.Context) error { return nil },
		}, nil
	}
}

func runServer(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logutil.GetLogger(ctx)
	log.Info("starting server",
		zap.Int("port", cfg.Port),
		zap.String("store", cfg.Store.Type),
		zap.Bool("redis_cache", cfg.Cache.RedisAddr != ""),
	)

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.close(closeCtx); err != nil {
			log.Warn("close store failed", zap.Error(err))
		}
	}()

	checker := health.NewChecker(2*time.Second).Add(cfg.Store.Type, st.pinger)

	var todoCache service.TodoCache
	if cfg.Cache.RedisAddr != "" {
		client, err := cache.NewRedisClient(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		if err != nil {
			return err
		}
		defer client.Close()
		rc := cache.NewTodoCache(client, time.Duration(cfg.Cache.TTLSeconds)*time.Second)
		todoCache = rc
		checker.Add("redis", rc)
	}

	codec, err := jwt.NewCodec([]byte(cfg.JWTSecret),
		jwt.WithVerifyCache(cfg.TokenCache.Size, time.Duration(cfg.TokenCache.TTLSeconds)*time.Second),
	)
	if err != nil {
		return fmt.Errorf("init token codec: %w", err)
	}
	hasher := password.NewHasher(cfg.BcryptCost)

	userService := service.NewUserService(st.users, st.todos, hasher, codec)
	todoService := service.NewTodoService(st.todos, todoCache)

	scheduler := schedule.NewCronScheduler()
	healthJob := job.NewStoreHealthJob(checker)
	if err := scheduler.AddJob(healthJob, cfg.HealthCheckSpec); err != nil {
		return fmt.Errorf("schedule health check: %w", err)
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()
	if err := scheduler.RunNow(healthJob.Name()); err != nil {
		log.Warn("initial health check failed", zap.Error(err))
	}

	gin.SetMode(gin.ReleaseMode)
	engine := handler.NewEngine(handler.RouterDeps{
		Users:    handler.NewUserHandler(userService),
		Todos:    handler.NewTodoHandler(todoService),
		Health:   handler.NewHealthHandler(checker),
		Resolver: userService,
	}, cfg.CORSAllowlist)

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve http: %w", err)
		}
	}
	log.Info("server stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
