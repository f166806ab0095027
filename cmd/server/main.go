package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	"github.com/savitara/auth-service/internal/config"
	api "github.com/savitara/auth-service/internal/http"
	"github.com/savitara/auth-service/internal/log"
	"github.com/savitara/auth-service/internal/metrics"
	"github.com/savitara/auth-service/internal/oauth"
	"github.com/savitara/auth-service/internal/queue"
	"github.com/savitara/auth-service/internal/repo"
)

func main() {
	cfg := config.Load()

	logger, err := log.Init(os.Getenv("APP_ENV") == "production")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if cfg.DDEnabled {
		tracer.Start(tracer.WithService("auth-service"))
		defer tracer.Stop()
	}

	metrics.MustRegister()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	store, err := repo.Connect(ctx, repo.Options{
		URI:     cfg.MongoURI,
		DB:      cfg.MongoDB,
		MinPool: cfg.MongoMinPool,
		MaxPool: cfg.MongoMaxPool,
	})
	cancel()
	if err != nil {
		logger.Fatal("mongo connect", zap.Error(err))
	}
	defer store.Close(context.Background())

	var rds *repo.Redis
	if cfg.RedisAddr != "" {
		rds = repo.NewRedis(cfg.RedisAddr)
		pctx, pcancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := rds.Ping(pctx); err != nil {
			logger.Warn("redis unreachable, rate limiting disabled", zap.Error(err))
			rds = nil
		}
		pcancel()
		if rds != nil {
			defer rds.Close()
		}
	}

	pub := queue.NewNoop()
	if cfg.RabbitURL != "" {
		if rp, err := queue.NewRabbit(cfg.RabbitURL, cfg.RabbitExchange); err != nil {
			logger.Warn("rabbit unreachable, events disabled", zap.Error(err))
		} else {
			pub = rp
		}
	}
	defer pub.Close()

	verifier := oauth.NewVerifier(cfg.FirebaseProjectID)
	google := oauth.NewGoogle(cfg.GoogleClientID, cfg.GoogleSecret, cfg.GoogleRedirectURI, cfg.OAuthStateSecret)

	h := api.NewHandler(store, verifier, google, rds, pub, &cfg)
	r := api.NewRouter(h)

	srvErr := make(chan error, 1)
	go func() { srvErr <- r.Run(":" + cfg.Port) }()

	logger.Info("auth-service listening", zap.String("port", cfg.Port))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		logger.Info("shutting down", zap.String("signal", s.String()))
	case err := <-srvErr:
		logger.Error("server error", zap.Error(err))
	}
}
