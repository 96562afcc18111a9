package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/cenkalti/backoff/v5"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"pm-dashboard/api"
	"pm-dashboard/domain"
	"pm-dashboard/storage"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "pm-dashboard",
	Short: "Preventive maintenance task tracker and KPI dashboard",
	RunE:  runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "optional config file (yaml, json or toml)")
	rootCmd.AddCommand(serveCmd, simulateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging(cfg *Config) *log.Logger {
	logger := log.StandardLogger()
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	}
	if strings.EqualFold(cfg.LogFormat, "json") {
		logger.SetFormatter(&log.JSONFormatter{})
	}
	return logger
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	logger := setupLogging(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Warn("tracer shutdown")
		}
	}()

	sampler, err := domain.NewGenerator(cfg.Generator, cfg.RandomSeed)
	if err != nil {
		return fmt.Errorf("generator: %w", err)
	}

	var (
		store   api.Store
		deduper api.Deduper
	)
	if cfg.RedisURL != "" {
		rc := redis.NewClient(redisOptions(cfg.RedisURL))
		defer rc.Close()
		if err := waitForRedis(ctx, rc, logger); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		store = storage.NewRedis(rc, cfg.SessionTTL, logger)
		deduper = api.NewRedisDeduper(rc, cfg.DeduperTTL)
		logger.Info("using redis session store")
	} else {
		store = storage.NewMemory(cfg.SessionTTL)
		deduper = api.NewMemoryDeduper(cfg.DeduperTTL)
		logger.Info("using in-memory session store")
	}

	auth, err := newAuthenticator(cfg)
	if err != nil {
		return err
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, api.SessionHeader, api.IdempotencyHeader},
	}))

	err = api.Register(e, api.Options{
		Store:        store,
		Sampler:      sampler,
		Deduper:      deduper,
		Auth:         auth,
		Logger:       logger,
		TickInterval: cfg.TickInterval,
		WarmupTicks:  cfg.WarmupTicks,
		SecureCookie: cfg.SecureCookie,
	})
	if err != nil {
		return err
	}

	logger.WithFields(log.Fields{
		"addr":          cfg.ListenAddr,
		"tick_interval": cfg.TickInterval,
		"warmup_ticks":  cfg.WarmupTicks,
		"auth_mode":     cfg.AuthMode,
	}).Info("dashboard starting")

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Start(cfg.ListenAddr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("dashboard shutting down")
	return e.Shutdown(shutdownCtx)
}

// redisOptions accepts a redis:// URL or the "host:port,password=...,ssl=true" form.
func redisOptions(conn string) *redis.Options {
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts := &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(kv[1], "true") {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}

func waitForRedis(ctx context.Context, rc *redis.Client, logger *log.Logger) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, rc.Ping(ctx).Err()
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(30*time.Second),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.WithError(err).WithField("retry_in", next).Warn("redis not ready")
		}),
	)
	return err
}

func newAuthenticator(cfg *Config) (api.Authenticator, error) {
	switch cfg.AuthMode {
	case authModeTest:
		return api.NewTestAuth([]byte(cfg.TestJWTSecret)), nil
	case authModeJWKS:
		jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", cfg.Auth0Domain)
		jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
		if err != nil {
			return nil, fmt.Errorf("jwks: %w", err)
		}
		return api.NewAuth(jwks, cfg.Auth0Audience, "https://"+cfg.Auth0Domain+"/"), nil
	}
	return nil, nil
}
