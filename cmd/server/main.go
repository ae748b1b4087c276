package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/rl1809/store-sim/internal/adapter/events"
	"github.com/rl1809/store-sim/internal/adapter/handler"
	"github.com/rl1809/store-sim/internal/adapter/metrics"
	"github.com/rl1809/store-sim/internal/adapter/storage"
	"github.com/rl1809/store-sim/internal/config"
	"github.com/rl1809/store-sim/internal/core/domain"
	"github.com/rl1809/store-sim/internal/core/service"
	"github.com/rl1809/store-sim/internal/port"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger = logger.With(zap.String("run_id", uuid.NewString()))
	if err := run(cfg, logger); err != nil {
		logger.Error("simulation failed", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(cfg.Level())
	return zc.Build()
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	seed := storage.DefaultSeed(cfg.InitialStock)
	if cfg.SeedFile != "" {
		var err error
		if seed, err = storage.LoadSeedFile(cfg.SeedFile, cfg.InitialStock); err != nil {
			return err
		}
	}
	names, err := cfg.NamePools()
	if err != nil {
		return err
	}

	gw, querier, closeGateway, err := openGateway(ctx, cfg, seed, logger)
	if err != nil {
		return err
	}
	defer closeGateway()

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: 100,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	observer, err := metrics.NewObserver(registry)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	publisher, err := newPublisher(cfg, rdb, logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	opts := []service.EngineOption{
		service.WithLogger(logger),
		service.WithObserver(observer),
		service.WithPublisher(publisher),
	}
	if !cfg.Quiet {
		opts = append(opts, service.WithReportSink(os.Stdout))
	}
	if cfg.RedisLedger {
		opts = append(opts, service.WithLedger(func(ctx context.Context, items []domain.Item) (port.StockLedger, error) {
			return storage.NewRedisLedger(ctx, rdb, cfg.LedgerPrefix, items)
		}))
	}

	engine, err := service.NewEngine(ctx, gw, service.EngineConfig{
		Seed:       cfg.Seed,
		Simulation: cfg.Simulation(),
		Names:      names,
		MaxRestock: cfg.MaxRestock,
	}, opts...)
	if err != nil {
		return err
	}
	logger.Info("starting simulation",
		zap.String("driver", cfg.Driver),
		zap.Uint64("seed", cfg.Seed),
		zap.Int("shoppers", cfg.Shoppers),
		zap.Duration("interval", cfg.Interval),
		zap.Duration("duration", cfg.Duration),
		zap.Int64("max_ticks", cfg.MaxTicks))

	g, gctx := errgroup.WithContext(ctx)

	// The simulation ending stops the servers too.
	simCtx, simDone := context.WithCancel(gctx)
	g.Go(func() error {
		defer simDone()
		err := engine.Simulator.Run(simCtx)
		logger.Info("simulation finished", zap.Int64("ticks", engine.Simulator.Ticks()))
		return err
	})

	if cfg.HTTPAddr != "" {
		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           handler.NewHTTPHandler(engine, querier, logger.Named("http")).Routes(registry),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-simCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		})
	}

	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			simDone()
			return errors.Join(fmt.Errorf("listen grpc: %w", err), g.Wait())
		}
		grpcServer := grpc.NewServer()
		handler.RegisterSimulationServer(grpcServer, handler.NewGRPCHandler(engine, querier, logger.Named("grpc")))
		healthServer := health.NewServer()
		grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
		healthServer.SetServingStatus(handler.SimulationServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
		reflection.Register(grpcServer)
		g.Go(func() error {
			logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
			return grpcServer.Serve(lis)
		})
		g.Go(func() error {
			<-simCtx.Done()
			healthServer.Shutdown()
			grpcServer.GracefulStop()
			return nil
		})
	}

	err = g.Wait()
	if report, ok := engine.Simulator.LastReport(); ok && cfg.Quiet {
		report.Render(os.Stdout)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func openGateway(ctx context.Context, cfg config.Config, seed storage.Seed, logger *zap.Logger) (port.PersistenceGateway, port.ReportQuerier, func(), error) {
	if cfg.Driver == "memory" {
		gw, err := storage.NewMemoryGateway(seed)
		if err != nil {
			return nil, nil, nil, err
		}
		return gw, gw, func() {}, nil
	}

	gw, err := storage.OpenSQL(ctx, cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, nil, nil, err
	}
	closer := func() {
		if err := gw.Close(); err != nil {
			logger.Warn("close database", zap.Error(err))
		}
	}
	if err := gw.Migrate(ctx); err != nil {
		closer()
		return nil, nil, nil, err
	}
	seeded, err := gw.SeedIfEmpty(ctx, seed)
	if err != nil {
		closer()
		return nil, nil, nil, err
	}
	logger.Info("connected to database", zap.String("driver", cfg.Driver), zap.Bool("seeded", seeded))
	return gw, gw, closer, nil
}

func newPublisher(cfg config.Config, rdb *redis.Client, logger *zap.Logger) (*events.Publisher, error) {
	wmLogger := events.NewZapLogger(logger.Named("watermill"))

	var pub message.Publisher
	if cfg.RedisEvents {
		var err error
		if pub, err = events.NewRedisStreamPublisher(rdb, wmLogger); err != nil {
			return nil, err
		}
	} else {
		pub = events.NewInProcessPubSub(wmLogger)
	}
	return events.NewPublisher(pub), nil
}
