package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"marketstate/api/grpcserver"
	"marketstate/api/rest"
	"marketstate/domain/numeric"
	"marketstate/domain/trades"
	"marketstate/infra/config"
	"marketstate/infra/feed"
	"marketstate/infra/journal"
	"marketstate/infra/kafka"
	"marketstate/infra/logging"
	"marketstate/infra/redis"
	"marketstate/jobs/broadcaster"
	"marketstate/service"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (default ./config.yaml if present)")
	flag.Parse()

	// ---------------- Config ----------------

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---------------- Logger ----------------

	logger, err := logging.New(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting",
		zap.String("symbol", cfg.Feed.Symbol),
		zap.Int("book_depth", cfg.Feed.BookDepth),
		zap.Int("max_retries", cfg.Feed.MaxRetries),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---------------- State ----------------

	store := service.NewStateStore(
		numeric.NewParser(logger.Named("numeric")),
		trades.WithRetention(cfg.Window.Retention),
		trades.WithReporting(cfg.Window.Reporting),
	)

	var opts []service.IngestorOption

	// ---------------- Journal ----------------

	var jr *journal.Journal
	if cfg.Journal.Enabled {
		jr, err = journal.Open(cfg.Journal.Dir)
		if err != nil {
			logger.Fatal("journal init failed", zap.Error(err))
		}
		defer jr.Close()
		opts = append(opts, service.WithJournal(jr))
		logger.Info("journal open", zap.String("dir", cfg.Journal.Dir), zap.Uint64("last_seq", jr.LastSeq()))
	}

	// ---------------- Sinks ----------------

	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		opts = append(opts, service.WithSinks(producer))
	}

	if cfg.Redis.Enabled {
		mirror := redis.NewMirror(goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}), cfg.Redis.TTL)
		defer mirror.Close()
		opts = append(opts, service.WithSinks(mirror))
	}

	// ---------------- Feeds ----------------

	dialer := &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	newFeed := func(name string, channel string) service.Feed {
		return feed.NewConnection(feed.Config{
			Name:         name,
			URL:          cfg.Feed.URL,
			Channels:     []string{channel},
			MaxRetries:   cfg.Feed.MaxRetries,
			Backoff:      cfg.Feed.Backoff,
			ReadTimeout:  cfg.Feed.ReadTimeout,
			PingInterval: cfg.Feed.PingInterval,
		}, dialer, logger)
	}
	feeds := []service.Feed{
		newFeed("depth", feed.DepthChannel(cfg.Feed.Symbol, cfg.Feed.BookDepth)),
		newFeed("ticker", feed.BookTickerChannel(cfg.Feed.Symbol)),
		newFeed("trade", feed.TradeChannel(cfg.Feed.Symbol)),
	}

	ingestor := service.NewIngestor(store, feeds, logger.Named("ingest"), opts...)
	ingestor.Start(ctx)

	go func() {
		for fe := range ingestor.Done() {
			logger.Error("feed stopped permanently, serving last known state",
				zap.String("feed", fe.Feed), zap.Error(fe.Err))
		}
	}()

	// ---------------- Background Jobs ----------------

	if jr != nil && cfg.Kafka.Enabled {
		bc, err := broadcaster.New(jr, cfg.Kafka.Brokers, cfg.Kafka.OutboxTopic, logger,
			broadcaster.WithInterval(cfg.Journal.BroadcastInterval),
			broadcaster.WithBatch(cfg.Journal.BatchSize),
			broadcaster.WithRetain(cfg.Journal.Retain),
		)
		if err != nil {
			logger.Error("broadcaster disabled", zap.Error(err))
		} else {
			defer bc.Close()
			bc.Start(ctx)
		}
	}

	// ---------------- gRPC ----------------

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Fatal("grpc listen failed", zap.Error(err))
	}
	grpcSrv := grpc.NewServer(grpc.UnaryInterceptor(grpcserver.LoggingInterceptor(logger.Named("grpc"))))
	grpcserver.Register(grpcSrv, grpcserver.NewServer(store))

	go func() {
		logger.Info("gRPC listening", zap.String("addr", cfg.Server.GRPCAddr))
		if err := grpcSrv.Serve(lis); err != nil {
			logger.Error("gRPC server exited", zap.Error(err))
		}
	}()

	// ---------------- HTTP ----------------

	httpSrv := &http.Server{
		Addr:              cfg.Server.HTTPListenAddr(),
		Handler:           rest.NewHandler(store, ingestor, logger.Named("http")),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("HTTP listening", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server exited", zap.Error(err))
		}
	}()

	// ---------------- Shutdown ----------------

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown", zap.Error(err))
	}
	grpcSrv.GracefulStop()
	ingestor.Wait()
	logger.Info("shutdown complete")
}
