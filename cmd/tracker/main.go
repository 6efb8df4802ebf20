package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"kopilka/internal/config"
	"kopilka/internal/database"
	"kopilka/internal/events"
	"kopilka/internal/logging"
	"kopilka/internal/metrics"
	"kopilka/internal/models"
	"kopilka/internal/notify"
	"kopilka/internal/recurring"
	"kopilka/internal/repository"
	"kopilka/internal/service"
	"kopilka/internal/writequeue"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	if closer != nil {
		defer closer.Close()
	}

	// Директория под базу данных
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755); err != nil {
		return fmt.Errorf("prepare data directory: %w", err)
	}

	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register()
	if cfg.Monitoring.PrometheusEnabled {
		startMonitoringServer(ctx, cfg.Monitoring.PrometheusPort, logger)
	}

	// Очередь записи: единственная точка сериализации мутаций
	queue := writequeue.New(writequeue.Options{
		Logger:      logger,
		Retry:       writequeue.DefaultRetryPolicy(),
		IsRetryable: database.IsLockContention,
	})
	go queue.Start(ctx)

	eventBus := events.NewEventBus()

	snapshotCache := buildSnapshotCache(cfg, logger)
	summaryService := service.NewSummaryService(db, snapshotCache, logger)
	summaryService.SubscribeInvalidation(eventBus)

	generator := recurring.NewGenerator(db, queue, eventBus, logger)
	generator.SetBatchLimit(cfg.Recurring.BatchLimit)
	runner := recurring.NewRunner(generator, time.Duration(cfg.Recurring.IntervalSeconds)*time.Second, logger)
	go runner.Start(ctx)

	if err := seedReminderDefaults(ctx, db, cfg.Reminders); err != nil {
		return fmt.Errorf("seed reminder defaults: %w", err)
	}
	scheduler := notify.NewScheduler(db, queue, notify.NewLogNotifier(logger), eventBus, logger)
	go scheduler.Start(ctx)

	logger.Info().Str("db", cfg.Database.Path).Msg("kopilka core started")
	<-ctx.Done()
	queue.Wait()
	logger.Info().Msg("kopilka core stopped")
	return nil
}

func buildSnapshotCache(cfg *config.Config, logger *zerolog.Logger) *repository.FailoverSnapshotRepository {
	ttl := time.Duration(models.SnapshotCacheTTL) * time.Second
	memory := repository.NewMemorySnapshotRepository(ttl)
	if !cfg.Redis.Enabled {
		return repository.NewFailoverSnapshotRepository(memory, memory, logger)
	}
	redisRepo := repository.NewRedisSnapshotRepository(repository.NewRedisClient(cfg.Redis), ttl)
	return repository.NewFailoverSnapshotRepository(redisRepo, memory, logger)
}

// seedReminderDefaults fills preferred time and quiet hours on first start;
// delivery marks are never touched here.
func seedReminderDefaults(ctx context.Context, db *database.DB, cfg config.RemindersConfig) error {
	state, err := db.GetReminderState(ctx)
	if err != nil {
		return err
	}
	if state.PreferredTime != "" && !state.UpdatedAt.IsZero() {
		return nil
	}
	state.PreferredTime = cfg.PreferredTime
	state.QuietHoursStart = cfg.QuietHoursStart
	state.QuietHoursEnd = cfg.QuietHoursEnd
	return db.SaveReminderState(ctx, state)
}

func startMonitoringServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Int("port", port).Msg("monitoring server started")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("monitoring server error")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
}
