package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/slipstream/gamearr/internal/api"
	"github.com/slipstream/gamearr/internal/api/handlers"
	"github.com/slipstream/gamearr/internal/augment"
	"github.com/slipstream/gamearr/internal/blocklist"
	"github.com/slipstream/gamearr/internal/config"
	"github.com/slipstream/gamearr/internal/database"
	"github.com/slipstream/gamearr/internal/decisioning"
	"github.com/slipstream/gamearr/internal/delay"
	"github.com/slipstream/gamearr/internal/downloader"
	"github.com/slipstream/gamearr/internal/events"
	"github.com/slipstream/gamearr/internal/history"
	"github.com/slipstream/gamearr/internal/indexer"
	"github.com/slipstream/gamearr/internal/indexer/status"
	"github.com/slipstream/gamearr/internal/library"
	"github.com/slipstream/gamearr/internal/logger"
	"github.com/slipstream/gamearr/internal/pending"
	"github.com/slipstream/gamearr/internal/queue"
	"github.com/slipstream/gamearr/internal/rsssync"
	"github.com/slipstream/gamearr/internal/scheduler"
	"github.com/slipstream/gamearr/internal/scheduler/tasks"
	"github.com/slipstream/gamearr/internal/tracking"
	"github.com/slipstream/gamearr/internal/websocket"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// A missing .env is normal outside development.
	_ = godotenv.Load(".env")

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	defer log.Close()

	log.Info().
		Str("version", api.Version).
		Str("logLevel", cfg.Logging.Level).
		Msg("starting gamearr")

	if err := run(cfg, log); err != nil {
		log.Error().Err(err).Msg("gamearr stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("gamearr stopped")
}

func run(cfg *config.Config, log *logger.Logger) error {
	db, err := database.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	log.Info().Str("path", db.Path()).Msg("running database migrations")
	if err := db.Migrate(); err != nil {
		return err
	}
	conn := db.Conn()
	base := log.Logger

	hub := websocket.NewHub(base)
	log.SetBroadcastHub(hub)
	publisher := events.NewPublisher(base)

	var formats []*augment.FormatDefinition
	if cfg.CustomFormats != "" {
		formats, err = augment.LoadFormats(cfg.CustomFormats)
		if err != nil {
			return err
		}
		log.Info().Int("count", len(formats)).Msg("loaded custom formats")
	}
	augmenter := augment.NewDefaultPipeline(base, formats)

	titles := library.NewService(conn, base)
	hist := history.NewService(conn, base)
	hist.SetDefaultRetentionDays(cfg.History.RetentionDays)
	delays := delay.NewService(conn, base)
	if err := delays.EnsureDefault(context.Background()); err != nil {
		return err
	}
	blocked := blocklist.NewService(conn, base)
	publisher.Subscribe(blocked)

	indexers := indexer.NewService(base)
	if err := indexers.LoadConfigs(cfg.Indexers); err != nil {
		return err
	}
	clients := downloader.NewService(hist, publisher, base)
	if err := clients.LoadConfigs(cfg.DownloadClients); err != nil {
		return err
	}

	tracker := tracking.NewService(clients, hist, tracking.OutputPathImporter, augmenter, publisher, base)
	tracker.SetStallTimeout(cfg.Tracking.StallTimeout)
	publisher.Subscribe(tracker)

	grabLock := decisioning.NewTitleLock()
	pendingStore := pending.NewStore(conn, clients, publisher, base)
	pendingStore.SetTitleLock(grabLock)

	engine := decisioning.NewEngine(decisioning.Dependencies{
		Blocklist: blocked,
		History:   hist,
		Queue:     tracker,
		Delay:     delays,
	}, base)
	processor := decisioning.NewProcessor(clients, pendingStore, grabLock, base)

	evalConfig := func() decisioning.EvaluationConfig {
		return cfg.Decision.EvaluationConfig(time.Now())
	}
	syncer := rsssync.NewService(conn, indexers, titles, augmenter, engine, processor, evalConfig, hub, base)
	indexerStatus := status.NewService(conn, base)
	syncer.SetStatusRecorder(indexerStatus)
	if cfg.RSSSync.Concurrency > 0 {
		syncer.SetConcurrency(cfg.RSSSync.Concurrency)
	}

	queueService := queue.NewService(tracker, pendingStore, hub, base)
	publisher.Subscribe(queueService)

	sched, err := scheduler.New(base)
	if err != nil {
		return err
	}
	if err := registerTasks(sched, cfg, syncer, tracker, pendingStore, hist); err != nil {
		return err
	}

	queueHandlers := queue.NewHandlers(queueService, tracker, pendingStore)
	queueHandlers.RegisterWebSocket(hub)

	server := api.NewServer(hub, api.Routes{
		Titles:          library.NewHandlers(titles),
		History:         history.NewHandlers(hist),
		DelayProfiles:   delay.NewHandlers(delays),
		Blocklist:       blocklist.NewHandlers(blocked),
		Pending:         pending.NewHandlers(pendingStore),
		RSSSync:         rsssync.NewHandlers(syncer),
		Downloads:       tracking.NewHandlers(tracker),
		Queue:           queueHandlers,
		DownloadClients: downloader.NewHandlers(clients),
		Indexers:        indexer.NewHandlers(indexers, indexerStatus),
		Scheduler:       handlers.NewSchedulerHandler(sched),
		Logs:            api.NewLogsHandlers(log),
	}, base)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		queueService.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return server.Start(cfg.Server.Address())
	})
	sched.Start()

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("received shutdown signal")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var errs []error
		if err := sched.Stop(); err != nil {
			errs = append(errs, err)
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

func registerTasks(
	sched *scheduler.Scheduler,
	cfg *config.Config,
	syncer *rsssync.Service,
	tracker *tracking.Service,
	pendingStore *pending.Store,
	hist *history.Service,
) error {
	if err := tasks.RegisterRssSyncTask(sched, syncer, cfg.RSSSync.Interval); err != nil {
		return err
	}
	if err := tasks.RegisterDownloadPollTask(sched, tracker, cfg.Tracking.PollInterval); err != nil {
		return err
	}
	if err := tasks.RegisterPendingReleaseTask(sched, pendingStore, cfg.Tracking.PendingCheckInterval); err != nil {
		return err
	}
	return tasks.RegisterHistoryCleanupTask(sched, hist)
}
