// README: serve command; wires config, stores, queue, dispatcher, bot and HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"driverbot/internal/backend"
	"driverbot/internal/bot"
	"driverbot/internal/events"
	httptransport "driverbot/internal/http"
	"driverbot/internal/i18n"
	"driverbot/internal/infra"
	"driverbot/internal/job"
	"driverbot/internal/migrations"
	"driverbot/internal/modules/dispatch"
	"driverbot/internal/modules/driver"
	"driverbot/internal/modules/matching"
	"driverbot/internal/modules/order"
	"driverbot/internal/modules/pricing"
	"driverbot/internal/telegram"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server, the Telegram bot and the dispatch queue",
		RunE:  runServe,
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := infra.NewLogger(cfg.Log)
	slog.SetDefault(logger)

	if cfg.Telegram.Token == "" {
		return errors.New("telegram.token is required")
	}
	tg, err := telegram.New(cfg.Telegram.Token, cfg.Telegram.Debug, logger)
	if err != nil {
		return err
	}
	tr, err := i18n.NewManager(i18n.WithLogger(logger), i18n.WithDefaultLang(cfg.Dispatch.DefaultLanguage))
	if err != nil {
		return fmt.Errorf("load locales: %w", err)
	}
	keyboards := telegram.NewKeyboards(tr)
	api := backend.New(cfg.Backend, logger)

	var registerer prometheus.Registerer
	var gatherer prometheus.Gatherer
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		registerer, gatherer = reg, reg
	}
	metrics := dispatch.NewMetrics(registerer, cfg.Metrics.Namespace)

	queueOpts := []dispatch.QueueOption{dispatch.WithMetrics(metrics), dispatch.WithLogger(logger)}
	var deliveries httptransport.DeliveryStore
	if cfg.DB.DSN != "" {
		pool, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := migrations.Up(ctx, pool); err != nil {
			return err
		}
		audit := dispatch.NewAuditStore(pool)
		queueOpts = append(queueOpts, dispatch.WithRecorder(audit))
		deliveries = audit

		scheduler := job.NewScheduler(logger)
		if _, err := scheduler.Register(cfg.Jobs.DeliveryCleanup, job.NewDeliveryCleanupJob(audit, cfg.DB.Retention, logger)); err != nil {
			return fmt.Errorf("register delivery cleanup: %w", err)
		}
		scheduler.Start()
		defer func() { <-scheduler.Stop().Done() }()
	} else {
		logger.Warn("database.dsn not set; delivery log disabled")
	}

	var offers matching.DispatchStore
	if cfg.Redis.Addr != "" {
		rdb := infra.NewRedis(cfg.Redis)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable; offer checks degrade to allow", "error", err)
		}
		offers = matching.NewStore(rdb)
	}
	matchingSvc := matching.NewService(api, offers, pricing.Commission{Percent: cfg.Dispatch.MinFarePercent}, logger)

	drivers := driver.NewService(api, driver.Options{
		DefaultLanguage:  cfg.Dispatch.DefaultLanguage,
		LanguageCacheTTL: cfg.Dispatch.LanguageCacheTTL,
		Payments: driver.PaymentRules{
			MinTopUp: cfg.Payments.MinTopUp,
			MaxTopUp: cfg.Payments.MaxTopUp,
			Presets:  cfg.Payments.Presets,
			Currency: cfg.Payments.Currency,
		},
		Logger: logger,
	})

	queue := dispatch.NewMessageQueue(tg, dispatch.QueueConfig{
		MaxWorkers:  cfg.Queue.MaxWorkers,
		BatchSize:   cfg.Queue.BatchSize,
		PullTimeout: cfg.Queue.PullTimeout,
		MaxRetries:  cfg.Queue.MaxRetries,
		ErrorPause:  cfg.Queue.ErrorPause,
		SendTimeout: cfg.Dispatch.SendTimeout,
	}, queueOpts...)
	dispatcher := dispatch.NewDispatcher(dispatch.Deps{
		Queue:       queue,
		Sender:      tg,
		Finder:      matchingSvc,
		Languages:   drivers,
		Translator:  tr,
		Keyboards:   keyboards,
		Metrics:     metrics,
		Logger:      logger,
		DefaultLang: cfg.Dispatch.DefaultLanguage,
	})
	defer dispatcher.Close()

	router := bot.NewRouter(bot.Deps{
		Client:        tg,
		Orders:        order.NewService(api),
		Drivers:       drivers,
		Offers:        matchingSvc,
		Translator:    tr,
		Keyboards:     keyboards,
		Renderer:      dispatcher.Renderer(),
		Payments:      drivers.Payments(),
		ProviderToken: cfg.Payments.ProviderToken,
		Logger:        logger,
	})

	srvDeps := httptransport.ServerDeps{
		Dispatcher:    dispatcher,
		Queue:         queue,
		Deliveries:    deliveries,
		Dispatches:    matchingSvc,
		Gatherer:      gatherer,
		APIKey:        cfg.HTTP.APIKey,
		WebhookSecret: cfg.Telegram.WebhookSecret,
		Logger:        logger,
	}
	g, gctx := errgroup.WithContext(ctx)
	if cfg.Telegram.Mode == "webhook" {
		srvDeps.Updates = router
	} else {
		g.Go(func() error {
			tg.Poll(gctx, router.Handle)
			return nil
		})
	}
	if cfg.Events.Enabled {
		consumer := events.NewConsumer(cfg.Events, dispatcher, logger)
		g.Go(func() error { return consumer.Run(gctx) })
	}

	gin.SetMode(gin.ReleaseMode)
	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httptransport.NewServer(srvDeps).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		logger.Info("http server listening", "addr", cfg.HTTP.Addr, "telegram_mode", cfg.Telegram.Mode)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
