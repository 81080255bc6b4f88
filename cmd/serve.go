package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jmehdipour/satisfaction-predictor/internal/config"
	"github.com/jmehdipour/satisfaction-predictor/internal/db"
	httpSrv "github.com/jmehdipour/satisfaction-predictor/internal/http"
	"github.com/jmehdipour/satisfaction-predictor/internal/logger"
	"github.com/jmehdipour/satisfaction-predictor/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var registerMetrics sync.Once

func newServeCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			log := logger.Init(cfg.Log)
			defer func() { _ = log.Sync() }()

			registerMetrics.Do(func() { metrics.MustRegister(prometheus.DefaultRegisterer) })

			svc := loadService(cfg, log)
			if !svc.Ready() {
				log.Warn("no models loaded, predictions will be rejected")
			}

			var redisClient *redis.Client
			if cfg.RateLimit.RPS > 0 {
				redisClient, err = db.NewRedisClient(cmd.Context(), db.RedisOpts{
					Addr:        cfg.Redis.Addr,
					Password:    cfg.Redis.Password,
					DB:          cfg.Redis.DB,
					DialTimeout: cfg.Redis.DialTimeout,
				})
				switch {
				case errors.Is(err, db.ErrRedisDisabled):
					log.Info("rate limiting disabled, redis address not set")
				case err != nil:
					return fmt.Errorf("redis connect: %w", err)
				default:
					defer func() { _ = redisClient.Close() }()
				}
			}

			server := httpSrv.NewServer(cfg, svc, redisClient, log)

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Start(cfg.HTTP.Addr)
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			select {
			case sig := <-sigCh:
				log.Info("signal received, shutting down", zap.Stringer("signal", sig))
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server exited", zap.Error(err))
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			}

			timeout := cfg.HTTP.ShutdownTimeout
			if timeout <= 0 {
				timeout = 5 * time.Second
			}
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("http shutdown: %w", err)
			}

			return nil
		},
	}
}
