package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/thumbnail-proxy/internal/api/handlers/image"
	"github.com/aliskhannn/thumbnail-proxy/internal/api/router"
	"github.com/aliskhannn/thumbnail-proxy/internal/api/server"
	"github.com/aliskhannn/thumbnail-proxy/internal/cache"
	"github.com/aliskhannn/thumbnail-proxy/internal/config"
	"github.com/aliskhannn/thumbnail-proxy/internal/fetcher"
	"github.com/aliskhannn/thumbnail-proxy/internal/infra/kafka/consumer"
	"github.com/aliskhannn/thumbnail-proxy/internal/infra/kafka/producer"
	"github.com/aliskhannn/thumbnail-proxy/internal/kafka/handlers/prewarm"
	"github.com/aliskhannn/thumbnail-proxy/internal/metrics"
	"github.com/aliskhannn/thumbnail-proxy/internal/model"
	"github.com/aliskhannn/thumbnail-proxy/internal/processor"
	renderrepo "github.com/aliskhannn/thumbnail-proxy/internal/repository/render"
	"github.com/aliskhannn/thumbnail-proxy/internal/service/thumbnail"
	"github.com/aliskhannn/thumbnail-proxy/internal/storage/file"
	"github.com/aliskhannn/thumbnail-proxy/internal/watermark"
)

func main() {
	configPath := pflag.StringP("config", "c", "./config/config.yml", "path to the YAML config file")
	pflag.Parse()

	// Context & signals: used for graceful shutdown on system interrupts.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize logger and load application configuration.
	zlog.Init()
	cfg := config.MustLoad(*configPath)

	// Retry strategy for Kafka, storage bootstrap and other external calls.
	strategy := retry.Strategy{
		Attempts: cfg.Retry.Attempts,
		Delay:    cfg.Retry.Delay,
		Backoff:  cfg.Retry.Backoff,
	}

	m, err := metrics.New("", nil)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to register metrics")
	}

	// Source fetchers: HTTP(S) always, s3:// when object storage is enabled.
	mux := fetcher.NewMux()
	mux.Handle(fetcher.NewHTTP(fetcher.HTTPOptions{
		Timeout:      cfg.Fetcher.Timeout,
		MaxBodyBytes: cfg.Fetcher.MaxBodyBytes,
		UserAgent:    cfg.Fetcher.UserAgent,
	}), "http", "https")

	if cfg.Storage.Enabled {
		storage, err := file.NewStorage(ctx, cfg.Storage.Endpoint, cfg.Storage.AccessKey, cfg.Storage.SecretKey, cfg.Storage.BucketName, cfg.Storage.UseSSL, strategy)
		if err != nil {
			zlog.Logger.Fatal().Err(err).Msg("failed to connect to storage")
		}
		mux.Handle(fetcher.NewObject(storage, cfg.Fetcher.Timeout, cfg.Fetcher.MaxBodyBytes), "s3")
	}

	// Source cache; a non-positive capacity is a fatal misconfiguration.
	sources, err := cache.New(cfg.Cache.Capacity, fetcher.Instrument(mux, m), cache.WithObserver(m))
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to create source cache")
	}

	// Transform engine.
	wm, err := watermark.Load(cfg.Watermark.Path)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to load watermark")
	}
	engine := processor.New(wm, processor.Options{
		MaxDimension:    cfg.Render.MaxDimension,
		MaxSourcePixels: cfg.Render.MaxSourcePixels,
		JPEGQuality:     cfg.Render.JPEGQuality,
	})

	defaultFormat, err := model.ParseOutputFormat(cfg.Render.DefaultFormat, model.PNG)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("invalid default output format")
	}

	opts := []thumbnail.Option{thumbnail.WithObserver(m)}

	var wg sync.WaitGroup

	// Optional render journal in PostgreSQL (master and slaves).
	var db *dbpg.DB
	if cfg.Database.Enabled {
		dbOpts := &dbpg.Options{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		}

		slaveDSNs := make([]string, 0, len(cfg.Database.Slaves))
		for _, s := range cfg.Database.Slaves {
			slaveDSNs = append(slaveDSNs, s.DSN())
		}

		db, err = dbpg.New(cfg.Database.Master.DSN(), slaveDSNs, dbOpts)
		if err != nil {
			zlog.Logger.Fatal().Err(err).Msg("failed to connect to database")
		}

		repo := renderrepo.NewRepository(db)
		opts = append(opts, thumbnail.WithJournal(repo))

		if cfg.Database.RetentionDays > 0 {
			wg.Add(1)
			go sweepJournal(ctx, &wg, repo, cfg.Database.RetentionDays)
		}
	}

	service := thumbnail.NewService(sources, engine, opts...)

	// Optional Kafka prewarm queue.
	var (
		p *producer.Producer
		c *consumer.Consumer
	)
	if cfg.Kafka.Enabled {
		p = producer.New(&cfg.Kafka, strategy)
		c = consumer.New(&cfg.Kafka, strategy, prewarm.NewHandler(service))

		wg.Add(1)
		go c.Consume(ctx, &wg)
	}

	imgHandler := image.NewHandler(service, prewarmQueue(p), defaultFormat)

	// Start HTTP server in a separate goroutine.
	r := router.Setup(imgHandler)
	s := server.New(cfg.Server.HTTPPort, r)
	go func() {
		zlog.Logger.Info().Str("addr", cfg.Server.HTTPPort).Msg("thumbnail proxy listening")
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Metrics are served on a separate listener.
	var ms *http.Server
	if cfg.Metrics.Addr != "" {
		ms = server.New(cfg.Metrics.Addr, metrics.Handler(nil))
		go func() {
			if err := ms.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zlog.Logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	// Block until context is canceled (SIGINT/SIGTERM).
	<-ctx.Done()
	zlog.Logger.Info().Msg("context done")

	// Graceful shutdown with timeout for HTTP servers.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	zlog.Logger.Info().Msg("shutting down server")
	if err := s.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if ms != nil {
		if err := ms.Shutdown(shutdownCtx); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to shutdown metrics server")
		}
	}
	if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
		zlog.Logger.Info().Msg("timeout exceeded, forcing shutdown")
	}

	// Wait for the consumer and the journal sweeper to finish.
	wg.Wait()

	// Close Kafka producer and consumer clients.
	if p != nil {
		if err := p.Client.Close(); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to close kafka producer client")
		}
	}
	if c != nil {
		if err := c.Client.Close(); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to close kafka consumer client")
		}
	}

	// Close master and slave databases.
	if db != nil {
		if err := db.Master.Close(); err != nil {
			zlog.Logger.Printf("failed to close master DB: %v", err)
		}
		for i, s := range db.Slaves {
			if err := s.Close(); err != nil {
				zlog.Logger.Printf("failed to close slave DB %d: %v", i, err)
			}
		}
	}
}

// enqueuer is the prewarm side of *producer.Producer.
type enqueuer interface {
	Enqueue(ctx context.Context, task model.PrewarmTask) error
}

// prewarmQueue returns an untyped nil when Kafka is disabled. A nil
// *producer.Producer stored in the interface would not compare equal to nil
// and the handler would call Enqueue on it instead of warming in-process.
func prewarmQueue(p *producer.Producer) enqueuer {
	if p == nil {
		return nil
	}
	return p
}

// sweepJournal periodically deletes journal records older than retentionDays.
func sweepJournal(ctx context.Context, wg *sync.WaitGroup, repo *renderrepo.Repository, retentionDays int) {
	defer wg.Done()

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		n, err := repo.DeleteBefore(ctx, retentionDays)
		if err != nil && ctx.Err() == nil {
			zlog.Logger.Err(err).Msg("failed to sweep render journal")
		} else if n > 0 {
			zlog.Logger.Info().Int64("deleted", n).Msg("render journal swept")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
