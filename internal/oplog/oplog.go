// Package oplog turns ledger operation callbacks into zap log lines and Prometheus metrics.
package oplog

import (
	"context"

	"github.com/MarkoPoloResearchLab/walletledger/pkg/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const metricsNamespace = "walletledger"

// Metrics holds the operation collectors.
type Metrics struct {
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
}

// NewMetrics registers the operation collectors with registerer.
func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	metrics := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "operations_total",
			Help:      "Ledger operations by name, status and result code.",
		}, []string{"operation", "status", "code"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "operation_duration_seconds",
			Help:      "Ledger operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if registerer != nil {
		for _, collector := range []prometheus.Collector{metrics.operations, metrics.durations} {
			if err := registerer.Register(collector); err != nil {
				return nil, err
			}
		}
	}
	return metrics, nil
}

// ZapLogger implements ledger.OperationLogger.
type ZapLogger struct {
	logger  *zap.Logger
	metrics *Metrics
}

// New returns a ZapLogger. metrics may be nil.
func New(logger *zap.Logger, metrics *Metrics) *ZapLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapLogger{logger: logger, metrics: metrics}
}

// LogOperation writes one line per operation. Failures log at error level, caller rejections at info.
func (zapLogger *ZapLogger) LogOperation(_ context.Context, entry ledger.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("status", entry.Status),
		zap.Duration("duration", entry.Duration),
	}
	fields = appendString(fields, "tenant_id", entry.TenantID.String())
	fields = appendString(fields, "user_id", entry.UserID.String())
	fields = appendString(fields, "wallet_id", entry.WalletID.String())
	fields = appendString(fields, "transaction_id", entry.TransactionID.String())
	fields = appendString(fields, "reference", entry.Reference.String())
	fields = appendString(fields, "code", entry.Code)
	if entry.Amount > 0 {
		fields = append(fields, zap.String("amount", entry.Amount.String()))
	}
	if entry.Fee > 0 {
		fields = append(fields, zap.String("fee", entry.Fee.String()))
	}

	level := zapcore.InfoLevel
	if entry.Error != nil {
		level = zapcore.ErrorLevel
		fields = append(fields, zap.Error(entry.Error))
	}
	if checked := zapLogger.logger.Check(level, "ledger operation"); checked != nil {
		checked.Write(fields...)
	}

	if zapLogger.metrics != nil {
		zapLogger.metrics.operations.WithLabelValues(entry.Operation, entry.Status, entry.Code).Inc()
		zapLogger.metrics.durations.WithLabelValues(entry.Operation).Observe(entry.Duration.Seconds())
	}
}

func appendString(fields []zap.Field, key string, value string) []zap.Field {
	if value == "" {
		return fields
	}
	return append(fields, zap.String(key, value))
}
