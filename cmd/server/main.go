package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"paygate/config"
	"paygate/internal/database"
	"paygate/internal/router"
	"paygate/internal/service"
	"paygate/pkg/chain"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := newLogger(cfg.Server.Env)
	defer log.Sync()

	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	networks := make(map[string]chain.Network, len(cfg.Chain.Networks))
	for name, n := range cfg.Chain.Networks {
		networks[name] = chain.Network{RPCURL: n.RPCURL, ChainID: n.ChainID}
	}
	pool := chain.NewPool(networks)
	defer pool.Close()
	verifier := chain.NewVerifier(pool, cfg.Chain.VerifyTimeout)

	var transfer service.Transferer
	if cfg.Settlement.Enabled {
		executor, err := chain.NewTransferExecutor(pool, cfg.Settlement.PrivateKey, cfg.Settlement.Timeout)
		if err != nil {
			log.Fatal("settlement executor", zap.Error(err))
		}
		transfer = executor
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.Warn("redis unreachable, rate limiting disabled", zap.Error(err))
			rdb = nil
		}
		cancel()
	}

	engine := router.Setup(cfg, db, log, verifier, transfer, rdb)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		log.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown", zap.Error(err))
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	log.Info("server stopped")
}

func newLogger(env string) *zap.Logger {
	if env == "production" {
		log, err := zap.NewProduction()
		if err != nil {
			panic(err)
		}
		return log
	}
	log, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	return log
}
