package main // Entry point package

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/it-helpdesk/internal/config"
	"github.com/iliyamo/it-helpdesk/internal/database"
	"github.com/iliyamo/it-helpdesk/internal/handler"
	"github.com/iliyamo/it-helpdesk/internal/middleware"
	"github.com/iliyamo/it-helpdesk/internal/queue"
	"github.com/iliyamo/it-helpdesk/internal/repository"
	"github.com/iliyamo/it-helpdesk/internal/router"
	"github.com/iliyamo/it-helpdesk/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg := config.Load() // Load environment config
	policy, err := config.LoadPolicy(cfg.PolicyPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}
	cacheCfg := config.LoadCacheConfig()

	// Repositories
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	sessions := repository.NewSessionRepo(db)
	publics := repository.NewPublicUserRepo(db)
	tickets := repository.NewTicketRepo(db)
	messages := repository.NewMessageRepo(db)
	articles := repository.NewArticleRepo(db)
	notifications := repository.NewNotificationRepo(db)

	notifier := service.NewNotificationService(notifications, users)

	// Background workers share ctx and are awaited before exit.
	var wg sync.WaitGroup
	var (
		events queue.Publisher
		pub    *queue.AMQPPublisher
	)
	if cfg.AMQPEnabled {
		pub = queue.NewAMQPPublisher(cfg.AMQPURL, 256)
		events = pub
		consumer := queue.NewConsumer(cfg.AMQPURL, notifier)
		wg.Add(2)
		go func() {
			defer wg.Done()
			pub.Run(ctx)
		}()
		go func() {
			defer wg.Done()
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("event consumer stopped", "err", err)
			}
		}()
	} else {
		logger.Info("amqp disabled, notifications delivered in-process")
		events = queue.DirectPublisher{Sink: notifier}
	}

	sla := service.NewSLA(policy.SLATargets())
	ticketSvc := service.NewTicketService(tickets, messages, publics, users, events, sla)
	attachSvc := service.NewAttachmentService(ticketSvc, cfg.UploadDir, cfg.MaxUploadBytes)
	inventorySvc := service.NewInventoryService(db, events, policy.ReturnChecklist)
	reportSvc := service.NewReportService(tickets, inventorySvc.Equipment, inventorySvc.Terms, sla)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLogger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization, middleware.PublicTokenHeader},
	}))
	e.Use(echomw.BodyLimit(bodyLimit(cfg.MaxUploadBytes)))

	router.Register(e, router.Deps{
		JWTSecret:     cfg.JWTSecret,
		Sessions:      sessions,
		Cache:         middleware.NewRedisCache(cacheCfg, rdb),
		RateLimit:     middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
		Health:        handler.NewHealthHandler(db),
		Auth:          handler.NewAuthHandler(cfg, users, tokens),
		PublicAuth:    handler.NewPublicAuthHandler(cfg, publics, sessions),
		Tickets:       handler.NewTicketHandler(ticketSvc, attachSvc),
		Inventory:     handler.NewInventoryHandler(inventorySvc),
		Reports:       handler.NewReportHandler(reportSvc),
		Articles:      handler.NewArticleHandler(articles, func(ctx context.Context) { middleware.InvalidateCache(ctx, cacheCfg, rdb) }),
		Notifications: handler.NewNotificationHandler(notifier),
	})

	addr := ":" + cfg.Port
	srvErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr, "env", cfg.Env, "db", cfg.DBDriver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
		close(srvErr)
	}()

	select {
	case err := <-srvErr:
		stop()
		wg.Wait()
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = e.Shutdown(shutdownCtx)
	wg.Wait()
	if pub != nil && pub.Pending() > 0 {
		logger.Warn("unpublished events discarded at shutdown", "count", pub.Pending())
	}
	return err
}

// bodyLimit leaves room for multipart framing around the largest upload.
func bodyLimit(maxUpload int64) string {
	mb := maxUpload>>20 + 2
	return strconv.FormatInt(mb, 10) + "M"
}
