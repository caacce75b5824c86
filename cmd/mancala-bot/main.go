package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/park285/Cheese-Mancala-bot/internal/archive"
	"github.com/park285/Cheese-Mancala-bot/internal/bot"
	appcfg "github.com/park285/Cheese-Mancala-bot/internal/config"
	"github.com/park285/Cheese-Mancala-bot/internal/httpapi"
	"github.com/park285/Cheese-Mancala-bot/internal/irisfast"
	"github.com/park285/Cheese-Mancala-bot/internal/msgcat"
	"github.com/park285/Cheese-Mancala-bot/internal/obslog"
	"github.com/park285/Cheese-Mancala-bot/internal/store"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("mancala_bot_exit", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *appcfg.AppConfig, logger *zap.Logger) error {
	games, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	catalog, err := msgcat.New(cfg.TemplateDir)
	if err != nil {
		return err
	}

	client := irisfast.NewClient(cfg.IrisBaseURL,
		irisfast.WithHeaderProvider(cfg.Headers),
		irisfast.WithLogger(logger),
	)
	ws := irisfast.NewWebSocket(cfg.IrisWSURL, 5, logger)
	ws.SetHeaderProvider(cfg.Headers)
	ws.OnStateChange(func(state irisfast.WebSocketState) {
		logger.Info("iris_ws_state", zap.String("state", state.String()))
	})
	egress := irisfast.NewEgress(cfg.EgressMode, cfg.EgressDryRun, client, ws, logger)

	opts := []bot.Option{bot.WithStore(games), bot.WithLogger(logger)}
	if cfg.DatabaseURL != "" {
		repo, err := archive.NewRepository(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer repo.Close()
		sctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = repo.EnsureSchema(sctx)
		cancel()
		if err != nil {
			return err
		}
		opts = append(opts, bot.WithArchive(repo))
	}

	manager := bot.NewManager(
		bot.Config{Prefix: cfg.BotPrefix, AIDepth: cfg.AIDepth, AIDelay: cfg.AIDelay},
		bot.NewPresenter(egress, cfg.BoardImages, logger),
		bot.NewFormatter(catalog, cfg.BotPrefix, logger),
		opts...,
	)
	defer manager.Close()

	ws.OnMessage(func(msg *irisfast.Message) {
		if msg == nil || msg.Msg == "" {
			return
		}
		if !cfg.RoomAllowed(msg.Room) {
			logger.Debug("room_not_allowed", zap.String("room", msg.Room))
			return
		}
		go manager.Handle(ctx, msg)
	})

	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = ws.Connect(cctx)
	cancel()
	if err != nil {
		return err
	}
	defer func() { _ = ws.Close(context.Background()) }()

	api := httpapi.New(games, httpapi.WithLogger(logger), httpapi.WithAIDepth(cfg.AIDepth))
	errCh := make(chan error, 1)
	go func() { errCh <- api.ListenAndServe(ctx, cfg.HTTPAddr) }()

	logger.Info("mancala_bot_ready", zap.String("prefix", cfg.BotPrefix), zap.String("http", cfg.HTTPAddr))
	select {
	case <-ctx.Done():
		return <-errCh
	case err := <-errCh:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
}

// openStore uses Redis when REDIS_URL is set. Without it online games only
// work between rooms served by this process.
func openStore(ctx context.Context, cfg *appcfg.AppConfig, logger *zap.Logger) (store.GameStore, func(), error) {
	if cfg.RedisURL == "" {
		logger.Warn("redis_disabled", zap.String("reason", "REDIS_URL not set, using in-memory game store"))
		return store.NewMemoryStore(), func() {}, nil
	}
	rdb, err := store.Dial(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return store.NewRedisStore(rdb, cfg.GameTTL, logger), func() { _ = rdb.Close() }, nil
}
