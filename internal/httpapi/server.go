// Package httpapi is the authenticated HTTP façade over the wallet transfer gRPC service.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	walletv1 "github.com/MarkoPoloResearchLab/walletledger/api/wallet/v1"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

const (
	errorCodeLedger         = "ledger_error"
	errorCodeLedgerTimeout  = "ledger_timeout"
	errorCodeInvalidPayload = "invalid_payload"
	shutdownTimeout         = 5 * time.Second
)

// Run boots the HTTP façade using the supplied configuration.
func Run(ctx context.Context, cfg Config) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("zap init: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	gin.SetMode(gin.ReleaseMode)

	dialOptions := []grpc.DialOption{}
	if cfg.LedgerInsecure {
		dialOptions = append(dialOptions, grpc.WithTransportCredentials(insecure.NewCredentials()))
	} else {
		dialOptions = append(dialOptions, grpc.WithTransportCredentials(credentials.NewClientTLSFromCert(nil, "")))
	}
	conn, err := grpc.NewClient(cfg.LedgerAddress, dialOptions...)
	if err != nil {
		return fmt.Errorf("connect ledger: %w", err)
	}
	conn.Connect()
	if err := waitForClientReady(ctx, conn); err != nil {
		_ = conn.Close()
		return fmt.Errorf("connect ledger: %w", err)
	}
	defer conn.Close()

	var limiter *RateLimiter
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = redisClient.Close() }()
		if pingErr := redisClient.Ping(ctx).Err(); pingErr != nil {
			logger.Warn("redis unreachable, rate limiter will fail open", zap.Error(pingErr))
		}
		limiter = NewRateLimiter(redisClient, cfg.RateLimit, cfg.RateWindow, cfg.RateKeyPrefix, logger)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	requestMetrics, err := newRequestMetrics(registry)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	handler := &httpHandler{
		logger:       logger,
		ledgerClient: walletv1.NewTransferServiceClient(conn),
		cfg:          cfg,
	}
	router := setupRouter(cfg, handler, NewAuthenticator([]byte(cfg.JWTSigningKey), cfg.JWTIssuer), limiter, requestMetrics, registry)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("walletapi listening", zap.String("addr", cfg.ListenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type requestMetrics struct {
	requests *prometheus.CounterVec
}

func newRequestMetrics(registerer prometheus.Registerer) (*requestMetrics, error) {
	metrics := &requestMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "walletledger",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
	}
	if registerer != nil {
		if err := registerer.Register(metrics.requests); err != nil {
			return nil, err
		}
	}
	return metrics, nil
}

func (metrics *requestMetrics) middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Next()
		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.requests.WithLabelValues(ctx.Request.Method, route, strconv.Itoa(ctx.Writer.Status())).Inc()
	}
}

func setupRouter(cfg Config, handler *httpHandler, authenticator *Authenticator, limiter *RateLimiter, metrics *requestMetrics, gatherer prometheus.Gatherer) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if metrics != nil {
		router.Use(metrics.middleware())
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "Origin", "Accept"},
		ExposeHeaders:    []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api/v1")
	api.Use(authenticator.Middleware(), limiter.Middleware())

	api.POST("/transfers", handler.handleInitiateTransfer)
	api.GET("/transfers/:reference", handler.handleTransferStatus)
	api.GET("/wallets/:walletId", handler.handleWallet)
	api.GET("/wallets/:walletId/limits", handler.handleLimits)
	api.GET("/wallets/:walletId/transactions", handler.handleHistory)
	api.POST("/recipients/enquiry", handler.handleNameEnquiry)
	api.PUT("/secret", handler.handleSetSecret)

	admin := api.Group("/admin", RequireRole(roleOperator))
	admin.POST("/wallets", handler.handleOpenWallet)
	admin.PUT("/wallets/:walletId/limits", handler.handleSetLimits)
	admin.POST("/wallets/:walletId/fund", handler.handleFund)
	admin.POST("/transactions/:transactionId/release", handler.handleRelease)

	return router
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

func waitForClientReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		if state == connectivity.Ready {
			return nil
		}
		if state == connectivity.Shutdown {
			return errors.New("grpc connection shutdown before ready")
		}
		if !conn.WaitForStateChange(ctx, state) {
			if err := ctx.Err(); err != nil {
				return err
			}
			return errors.New("grpc connection failed to reach ready state")
		}
	}
}

// respondGRPCError translates a ledger RPC failure. The status message is already a stable snake_case code.
func (handler *httpHandler) respondGRPCError(ctx *gin.Context, operation string, err error) {
	statusInfo, ok := status.FromError(err)
	if !ok {
		handler.logger.Error(operation+" failed", zap.Error(err))
		ctx.JSON(http.StatusBadGateway, errorResponse(errorCodeLedger, "ledger unavailable"))
		return
	}
	switch statusInfo.Code() {
	case codes.InvalidArgument:
		ctx.JSON(http.StatusBadRequest, errorResponse(statusInfo.Message(), "request rejected by ledger"))
	case codes.NotFound:
		ctx.JSON(http.StatusNotFound, errorResponse(statusInfo.Message(), "not found"))
	case codes.AlreadyExists, codes.FailedPrecondition, codes.Aborted:
		ctx.JSON(http.StatusConflict, errorResponse(statusInfo.Message(), "conflicting ledger state"))
	case codes.Unimplemented:
		ctx.JSON(http.StatusNotImplemented, errorResponse(statusInfo.Message(), "not available on this ledger"))
	case codes.DeadlineExceeded:
		ctx.JSON(http.StatusGatewayTimeout, errorResponse(errorCodeLedgerTimeout, "ledger did not answer in time"))
	default:
		handler.logger.Error(operation+" failed", zap.Error(err))
		ctx.JSON(http.StatusBadGateway, errorResponse(errorCodeLedger, "ledger unavailable"))
	}
}
