package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	walletv1 "github.com/MarkoPoloResearchLab/walletledger/api/wallet/v1"
	"github.com/MarkoPoloResearchLab/walletledger/internal/events"
	"github.com/MarkoPoloResearchLab/walletledger/internal/grpcserver"
	"github.com/MarkoPoloResearchLab/walletledger/internal/oplog"
	"github.com/MarkoPoloResearchLab/walletledger/internal/settlement"
	"github.com/MarkoPoloResearchLab/walletledger/pkg/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

const (
	shutdownTimeout = 10 * time.Second
	metricsReadTime = 5 * time.Second
)

// engine is a wired service plus everything that must be closed with it.
type engine struct {
	service  *ledger.Service
	closers  []func(ctx context.Context)
	registry *prometheus.Registry
}

func (e *engine) close(ctx context.Context) {
	for index := len(e.closers) - 1; index >= 0; index-- {
		e.closers[index](ctx)
	}
}

func buildEngine(ctx context.Context, cfg *runtimeConfig, logger *zap.Logger, migrate bool) (*engine, error) {
	e := &engine{registry: prometheus.NewRegistry()}
	e.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store, closeStore, err := openStore(ctx, cfg, migrate)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, func(context.Context) { closeStore() })

	leg, enquirer, err := newSettlementLeg(cfg, logger)
	if err != nil {
		e.close(ctx)
		return nil, err
	}

	dispatcher, err := newDispatcher(cfg, logger, e)
	if err != nil {
		e.close(ctx)
		return nil, err
	}

	operationMetrics, err := oplog.NewMetrics(e.registry)
	if err != nil {
		e.close(ctx)
		return nil, fmt.Errorf("operation metrics: %w", err)
	}
	guard, err := ledger.NewGuard(cfg.BcryptCost)
	if err != nil {
		e.close(ctx)
		return nil, err
	}
	var fees ledger.FeeSchedule = ledger.NoFees{}
	if cfg.Fees == feesNIP {
		fees = ledger.NIPFlatFee()
	}

	clock := func() int64 { return time.Now().UTC().Unix() }
	service, err := ledger.NewService(store, store, clock,
		ledger.WithOperationLogger(oplog.New(logger, operationMetrics)),
		ledger.WithEventPublisher(dispatcher),
		ledger.WithSettlementLeg(leg),
		ledger.WithNameEnquirer(enquirer),
		ledger.WithSettlementTimeout(cfg.SettlementTimeout),
		ledger.WithFeeSchedule(fees),
		ledger.WithGuard(guard),
	)
	if err != nil {
		e.close(ctx)
		return nil, fmt.Errorf("wallet service init: %w", err)
	}
	e.service = service
	return e, nil
}

// newSettlementLeg returns the retrying payout leg and the unwrapped client for name enquiries.
func newSettlementLeg(cfg *runtimeConfig, logger *zap.Logger) (ledger.SettlementLeg, ledger.NameEnquirer, error) {
	var (
		leg      ledger.SettlementLeg
		enquirer ledger.NameEnquirer
	)
	switch cfg.Settlement {
	case settlementNIP:
		client, err := settlement.NewNIPClient(cfg.NIP)
		if err != nil {
			return nil, nil, err
		}
		leg, enquirer = client, client
	default:
		sandbox := settlement.NewSandbox(cfg.SandboxLatency)
		leg, enquirer = sandbox, sandbox
	}
	retrying, err := settlement.NewRetrying(leg, cfg.Retry, logger.Named("settlement"))
	if err != nil {
		return nil, nil, err
	}
	return retrying, enquirer, nil
}

func newDispatcher(cfg *runtimeConfig, logger *zap.Logger, e *engine) (*events.Dispatcher, error) {
	var notifier events.Notifier = events.NewLogNotifier(logger.Named("events"))
	if cfg.Events == eventsKafka {
		kafkaNotifier, err := events.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic, logger.Named("kafka"))
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, func(context.Context) { _ = kafkaNotifier.Close() })
		notifier = events.FanOut{notifier, kafkaNotifier}
	}

	var rewards events.RewardsHook
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		e.closers = append(e.closers, func(context.Context) { _ = redisClient.Close() })
		hook, err := events.NewRedisRewardsHook(redisClient, cfg.RewardsStream)
		if err != nil {
			return nil, err
		}
		rewards = hook
	}

	metrics, err := events.NewMetrics(e.registry)
	if err != nil {
		return nil, fmt.Errorf("event metrics: %w", err)
	}
	dispatcher, err := events.NewDispatcher(events.Config{}, notifier, rewards, logger.Named("events"), metrics)
	if err != nil {
		return nil, err
	}
	dispatcher.Start()
	e.closers = append(e.closers, func(ctx context.Context) {
		if closeErr := dispatcher.Close(ctx); closeErr != nil {
			logger.Warn("event dispatcher close", zap.Error(closeErr))
		}
	})
	return dispatcher, nil
}

func runServer(ctx context.Context, cfg *runtimeConfig) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	e, err := buildEngine(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		e.close(shutdownCtx)
	}()

	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor(logger)))
	walletv1.RegisterTransferServiceServer(grpcServer, grpcserver.NewTransferServiceServer(e.service))
	healthServer := health.NewServer()
	healthServer.SetServingStatus(walletv1.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("gRPC server starting", zap.String("listen_addr", cfg.ListenAddr))
		if serveErr := grpcServer.Serve(lis); serveErr != nil && !errors.Is(serveErr, grpc.ErrServerStopped) {
			return serveErr
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutdown requested")
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		return nil
	})

	if cfg.MetricsAddr != "" {
		metricsServer := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: metricsReadTime,
		}
		group.Go(func() error {
			logger.Info("metrics server starting", zap.String("listen_addr", cfg.MetricsAddr))
			if serveErr := metricsServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
				return serveErr
			}
			return nil
		})
		group.Go(func() error {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	if cfg.ReconcileInterval > 0 {
		group.Go(func() error {
			runReconcileLoop(groupCtx, e.service, cfg, logger)
			return nil
		})
	}

	return group.Wait()
}

func runReconcileLoop(ctx context.Context, service *ledger.Service, cfg *runtimeConfig, logger *zap.Logger) {
	ticker := time.NewTicker(cfg.ReconcileInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := service.Reconcile(ctx, cfg.ReconcileAge, cfg.ReconcileBatch)
			if err != nil && ctx.Err() == nil {
				logger.Warn("reconcile pass failed", zap.Error(err))
				continue
			}
			if report.Examined > 0 {
				logger.Info("reconcile pass",
					zap.Int("examined", report.Examined),
					zap.Int("completed", report.Completed),
					zap.Int("failed", report.Failed),
					zap.Int("unknown", report.Unknown),
					zap.Int("errors", report.Errors))
			}
		}
	}
}

func runReconcile(ctx context.Context, cfg *runtimeConfig) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	e, err := buildEngine(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		e.close(shutdownCtx)
	}()

	report, err := e.service.Reconcile(ctx, cfg.ReconcileAge, cfg.ReconcileBatch)
	if err != nil {
		return err
	}
	fmt.Printf("examined=%d completed=%d failed=%d unknown=%d errors=%d\n", report.Examined, report.Completed, report.Failed, report.Unknown, report.Errors)
	return nil
}

func runMigrate(ctx context.Context, cfg *runtimeConfig) error {
	_, closeStore, err := openStore(ctx, cfg, true)
	if err != nil {
		return err
	}
	closeStore()
	return nil
}

func loggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		startedAt := time.Now()
		resp, err := handler(ctx, req)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("duration", time.Since(startedAt)),
		}
		if err != nil {
			logger.Warn("rpc failed", append(fields, zap.Error(err))...)
			return resp, err
		}
		logger.Debug("rpc", fields...)
		return resp, nil
	}
}
