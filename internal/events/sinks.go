package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MarkoPoloResearchLab/walletledger/pkg/ledger"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	headerEventType       = "event_type"
	headerTenantID        = "tenant_id"
	rewardPointsTransfer  = 10
	rewardActionTransfer  = "transfer"
	defaultRewardsStream  = "walletledger:rewards"
	defaultRewardsMaxLen  = 100000
	kafkaWriteTimeout     = 10 * time.Second
	kafkaBatchTimeout     = 10 * time.Millisecond
	kafkaMaxWriteAttempts = 3
)

type messageWriter interface {
	WriteMessages(ctx context.Context, messages ...kafka.Message) error
	Close() error
}

// KafkaNotifier writes events as JSON to a Kafka topic keyed by transaction id.
type KafkaNotifier struct {
	writer messageWriter
}

// NewKafkaNotifier returns a notifier writing to topic on brokers.
func NewKafkaNotifier(brokers []string, topic string, logger *zap.Logger) (*KafkaNotifier, error) {
	if len(brokers) == 0 || topic == "" {
		return nil, fmt.Errorf("%w: kafka brokers and topic are required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  kafkaMaxWriteAttempts,
		BatchTimeout: kafkaBatchTimeout,
		WriteTimeout: kafkaWriteTimeout,
		Logger: kafka.LoggerFunc(func(message string, args ...interface{}) {
			logger.Debug(fmt.Sprintf(message, args...))
		}),
		ErrorLogger: kafka.LoggerFunc(func(message string, args ...interface{}) {
			logger.Warn(fmt.Sprintf(message, args...))
		}),
	}
	return &KafkaNotifier{writer: writer}, nil
}

// Notify writes one message per event. The hash balancer keeps a transaction's events on one partition.
func (notifier *KafkaNotifier) Notify(ctx context.Context, event ledger.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: encode event: %w", err)
	}
	return notifier.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.TransactionID),
		Value: value,
		Time:  time.Unix(event.OccurredUnixUTC, 0).UTC(),
		Headers: []kafka.Header{
			{Key: headerEventType, Value: []byte(event.Type)},
			{Key: headerTenantID, Value: []byte(event.TenantID)},
		},
	})
}

// Close flushes and closes the writer.
func (notifier *KafkaNotifier) Close() error {
	return notifier.writer.Close()
}

type streamAdder interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
}

// RedisRewardsHook appends a reward grant to a Redis stream for each completed transfer.
type RedisRewardsHook struct {
	client streamAdder
	stream string
	maxLen int64
}

// NewRedisRewardsHook returns a hook writing to stream. An empty stream uses the default name.
func NewRedisRewardsHook(client redis.UniversalClient, stream string) (*RedisRewardsHook, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: redis client is required", ErrInvalidConfig)
	}
	if stream == "" {
		stream = defaultRewardsStream
	}
	return &RedisRewardsHook{client: client, stream: stream, maxLen: defaultRewardsMaxLen}, nil
}

// TransferCompleted records the grant. The transaction id is carried so consumers can de-duplicate.
func (hook *RedisRewardsHook) TransferCompleted(ctx context.Context, event ledger.Event) error {
	if event.Type != ledger.EventTransferCompleted {
		return nil
	}
	return hook.client.XAdd(ctx, &redis.XAddArgs{
		Stream: hook.stream,
		MaxLen: hook.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"tenant_id":      event.TenantID,
			"user_id":        event.UserID,
			"transaction_id": event.TransactionID,
			"reference":      event.Reference,
			"action":         rewardActionTransfer,
			"points":         rewardPointsTransfer,
			"amount":         event.Amount,
			"currency":       event.Currency,
		},
	}).Err()
}

// LogNotifier writes events to zap. It is the development default.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (notifier *LogNotifier) Notify(_ context.Context, event ledger.Event) error {
	notifier.logger.Info("ledger event",
		zap.String("event_type", string(event.Type)),
		zap.String("tenant_id", event.TenantID),
		zap.String("transaction_id", event.TransactionID),
		zap.String("reference", event.Reference),
		zap.String("status", string(event.Status)),
		zap.String("amount", event.Amount),
		zap.String("reason", event.Reason),
	)
	return nil
}

// FanOut delivers to every notifier and joins their errors.
type FanOut []Notifier

func (fanOut FanOut) Notify(ctx context.Context, event ledger.Event) error {
	var errs []error
	for _, notifier := range fanOut {
		if err := notifier.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
