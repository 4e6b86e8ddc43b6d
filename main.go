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
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/maxim-sld/meditation-bot/internal/api"
	"github.com/maxim-sld/meditation-bot/internal/config"
	"github.com/maxim-sld/meditation-bot/internal/entitlement"
	"github.com/maxim-sld/meditation-bot/internal/handlers"
	"github.com/maxim-sld/meditation-bot/internal/logger"
	"github.com/maxim-sld/meditation-bot/internal/middleware"
	"github.com/maxim-sld/meditation-bot/internal/settlement"
	"github.com/maxim-sld/meditation-bot/store"
	"github.com/maxim-sld/meditation-bot/types"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", false)
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logger.New(cfg.LogLevel, cfg.LogPretty)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open store")
	}
	defer st.Close()

	var grants types.GrantReader = st
	if cfg.RedisAddr != "" {
		rdb, err := store.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, "meditation_bot")
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("failed to connect to Redis")
		}
		defer rdb.Close()
		grants = store.NewAccessCache(st, rdb, cfg.CacheTTL, log)
		log.Info().Str("addr", cfg.RedisAddr).Dur("ttl", cfg.CacheTTL).Msg("access cache enabled")
	}

	resolver := entitlement.NewResolver(st, grants, st, log)
	pipeline := settlement.NewPipeline(st, settlement.Config{
		Currency:           cfg.Currency,
		LifetimePrice:      cfg.LifetimePrice,
		LifetimeYears:      cfg.LifetimeYears,
		PreCheckoutTimeout: cfg.PreCheckoutTimeout,
	}, log)

	h := handlers.NewHandlers(resolver, pipeline, st, cfg.PayToken, log)
	middlewares := middleware.NewMiddlewares(st, log)
	handlerChain := middlewares.ResolveUserMiddleware(
		middlewares.AnalyzeMessageMiddleware(
			h.MainHandler,
		),
	)

	httpClient := &http.Client{
		Timeout: 2 * time.Minute,
	}
	pollTimeout := 50 * time.Second

	b, err := bot.New(
		cfg.BotToken,
		bot.WithHTTPClient(pollTimeout, httpClient),
		bot.WithDefaultHandler(func(context.Context, *bot.Bot, *models.Update) {}),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create bot")
	}

	b.RegisterHandlerMatchFunc(func(update *models.Update) bool {
		return update.Message != nil
	}, handlerChain)

	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, "", bot.MatchTypePrefix, handlerChain)

	b.RegisterHandlerMatchFunc(func(update *models.Update) bool {
		return update.PreCheckoutQuery != nil
	}, handlerChain)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewServer(resolver, st, st, log).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Msg("bot started")
		b.Start(gctx)
		return nil
	})
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("http server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("stopped with error")
		return
	}
	log.Info().Msg("stopped")
}

func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (types.Store, error) {
	if cfg.StoreDriver == "memory" {
		log.Warn().Msg("using in-memory store, data is lost on restart")
		s := store.NewMemoryStore()
		store.SeedDemoCatalog(s)
		return s, nil
	}
	return store.NewPostgresStore(ctx, cfg.PostgresDSN)
}
