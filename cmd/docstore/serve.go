package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gogotex/docstore/internal/acl"
	"github.com/gogotex/docstore/internal/config"
	"github.com/gogotex/docstore/internal/database"
	"github.com/gogotex/docstore/internal/document/repository"
	"github.com/gogotex/docstore/internal/document/service"
	"github.com/gogotex/docstore/internal/oidc"
	"github.com/gogotex/docstore/internal/revocation"
	"github.com/gogotex/docstore/pkg/logger"
	"github.com/gogotex/docstore/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(logLevel(opts.LogLevel, cfg))
	logger.Debugf("log level %s", logger.LevelString())
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	access, err := acl.Load(cfg.ACL.File)
	if err != nil {
		return err
	}
	logger.Infof("permissions loaded from %s: roles %v", cfg.ACL.File, access.Roles())

	client, err := database.ConnectWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, cfg.MongoDB.ConnectAttempts, time.Second)
	if err != nil {
		return err
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	cp := components{
		cfg:    cfg,
		docs:   service.New(repository.NewMongoStore(client)),
		access: access,
		ping: func(ctx context.Context) error {
			return client.Ping(ctx, nil)
		},
	}

	switch {
	case cfg.Issuer() != "":
		ver, err := oidc.NewVerifier(ctx, cfg.Issuer(), cfg.Keycloak.ClientID)
		if err != nil {
			logger.Warnf("failed to initialize OIDC verifier: %v", err)
		} else {
			cp.verifier = ver
		}
	case cfg.JWT.Secret != "":
		ver, err := oidc.NewHMACVerifier(cfg.JWT.Secret)
		if err != nil {
			return err
		}
		cp.verifier = ver
	}
	if cp.verifier == nil {
		logger.Warnf("no token verifier configured; only %s permissions apply", acl.Unauthenticated)
	}

	if addr := cfg.Redis.Addr(); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s): %v", addr, err)
		} else {
			logger.Infof("connected to Redis: %s", addr)
		}
		cp.redis = rdb
		cp.revoked = revocation.NewRedisList(rdb, "")
	}

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      newRouter(cp),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	logger.Debugf("components: verifier=%v redis=%v rate_limit=%v", cp.verifier != nil, cp.redis != nil, cfg.RateLimit.Enabled)

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("docstore listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Infof("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// logLevel prefers the --log-level flag over LOG_LEVEL from the environment or .env.
func logLevel(flag string, cfg *config.Config) string {
	if flag != "" {
		return flag
	}
	return cfg.Log.Level
}
