package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Dmitryntvh/AVITO/config"
	"github.com/Dmitryntvh/AVITO/internal/handler"
	"github.com/Dmitryntvh/AVITO/internal/repository"
	"github.com/Dmitryntvh/AVITO/internal/service"
	"github.com/Dmitryntvh/AVITO/traits/database"
	"github.com/Dmitryntvh/AVITO/traits/logger"
)

const (
	stateTTL        = 24 * time.Hour
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		panic(err)
	}

	zapLogger, err := logger.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer zapLogger.Sync()

	db, dialect, err := database.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		zapLogger.Error("error in connect to database", zap.Error(err))
		return
	}
	defer db.Close()

	if err := database.CreateTables(db, dialect); err != nil {
		zapLogger.Error("error in create tables", zap.Error(err))
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var state handler.StateStore = repository.NewMemoryStateRepository()
	if cfg.RedisAddr != "" {
		redisClient, err := database.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, zapLogger)
		if err != nil {
			zapLogger.Error("error connecting to Redis", zap.Error(err))
			return
		}
		defer database.CloseRedis(redisClient, zapLogger)
		state = repository.NewRedisStateRepository(redisClient, stateTTL)
	} else {
		zapLogger.Warn("REDIS_ADDR not set, dialog state is kept in memory")
	}

	leadRepo := repository.NewLeadRepository(db, dialect)
	catalogRepo := repository.NewCatalogRepository(db, dialect)
	shopRepo := repository.NewShopRepository(db, dialect)

	if err := os.MkdirAll(cfg.StaticDir, 0755); err != nil {
		zapLogger.Warn("error creating static dir", zap.Error(err), zap.String("dir", cfg.StaticDir))
	}
	web, err := handler.NewWebHandler(cfg, zapLogger, leadRepo, catalogRepo, service.NewSessionManager(cfg.SessionSecret))
	if err != nil {
		zapLogger.Error("error in parse templates", zap.Error(err))
		return
	}
	srv := &http.Server{
		Addr:              cfg.Port,
		Handler:           web.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var bots []*bot.Bot
	if cfg.CRMBotToken != "" {
		crm := handler.NewCRMHandler(cfg, zapLogger, leadRepo, state)
		b, err := bot.New(cfg.CRMBotToken, crm.Options()...)
		if err != nil {
			zapLogger.Error("error in start CRM bot", zap.Error(err))
			return
		}
		bots = append(bots, b)
	} else {
		zapLogger.Warn("BOT_TOKEN not set, CRM bot disabled")
	}
	if cfg.ShopBotToken != "" {
		shop := handler.NewShopHandler(cfg, zapLogger, shopRepo, state)
		b, err := bot.New(cfg.ShopBotToken, shop.Options()...)
		if err != nil {
			zapLogger.Error("error in start shop bot", zap.Error(err))
			return
		}
		bots = append(bots, b)
	} else {
		zapLogger.Warn("SHOP_BOT_TOKEN not set, shop bot disabled")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zapLogger.Info("Starting web server", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	for _, b := range bots {
		g.Go(func() error {
			b.Start(gctx)
			return nil
		})
	}
	zapLogger.Info("Service started", zap.Int("bots", len(bots)))

	if err := g.Wait(); err != nil {
		zapLogger.Error("service stopped with error", zap.Error(err))
		return
	}
	zapLogger.Info("Service stopped successfully")
}
