// Package events delivers ledger events to notification and rewards sinks off the request path.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MarkoPoloResearchLab/walletledger/pkg/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	defaultQueueSize       = 1024
	defaultWorkers         = 4
	defaultDeliveryTimeout = 5 * time.Second
	sinkNotifier           = "notifier"
	sinkRewards            = "rewards"
	resultDelivered        = "delivered"
	resultFailed           = "failed"
)

// ErrInvalidConfig reports an unusable dispatcher or sink configuration.
var ErrInvalidConfig = errors.New("events: invalid config")

// Notifier receives every ledger event.
type Notifier interface {
	Notify(ctx context.Context, event ledger.Event) error
}

// RewardsHook receives completed transfers.
type RewardsHook interface {
	TransferCompleted(ctx context.Context, event ledger.Event) error
}

// Config sizes the dispatcher.
type Config struct {
	QueueSize       int
	Workers         int
	DeliveryTimeout time.Duration
}

// Metrics counts deliveries and drops.
type Metrics struct {
	dropped    prometheus.Counter
	deliveries *prometheus.CounterVec
}

// NewMetrics registers the dispatcher collectors with registerer.
func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	metrics := &Metrics{
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "walletledger",
			Name:      "events_dropped_total",
			Help:      "Events dropped because the dispatch queue was full.",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "walletledger",
			Name:      "event_deliveries_total",
			Help:      "Event deliveries by sink and result.",
		}, []string{"sink", "result"}),
	}
	if registerer != nil {
		for _, collector := range []prometheus.Collector{metrics.dropped, metrics.deliveries} {
			if err := registerer.Register(collector); err != nil {
				return nil, err
			}
		}
	}
	return metrics, nil
}

// Dispatcher implements ledger.EventPublisher with a bounded queue and a worker pool.
// Publish never blocks: when the queue is full the event is dropped and counted.
type Dispatcher struct {
	notifier        Notifier
	rewards         RewardsHook
	logger          *zap.Logger
	metrics         *Metrics
	deliveryTimeout time.Duration
	workers         int

	queue     chan ledger.Event
	mu        sync.RWMutex
	closed    bool
	startOnce sync.Once
	waitGroup sync.WaitGroup
}

// NewDispatcher builds a dispatcher. rewards and metrics may be nil.
func NewDispatcher(config Config, notifier Notifier, rewards RewardsHook, logger *zap.Logger, metrics *Metrics) (*Dispatcher, error) {
	if notifier == nil {
		return nil, fmt.Errorf("%w: notifier is required", ErrInvalidConfig)
	}
	if config.QueueSize < 0 || config.Workers < 0 || config.DeliveryTimeout < 0 {
		return nil, fmt.Errorf("%w: queue size, workers and timeout must not be negative", ErrInvalidConfig)
	}
	if config.QueueSize == 0 {
		config.QueueSize = defaultQueueSize
	}
	if config.Workers == 0 {
		config.Workers = defaultWorkers
	}
	if config.DeliveryTimeout == 0 {
		config.DeliveryTimeout = defaultDeliveryTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		unregistered, err := NewMetrics(nil)
		if err != nil {
			return nil, err
		}
		metrics = unregistered
	}
	return &Dispatcher{
		notifier:        notifier,
		rewards:         rewards,
		logger:          logger,
		metrics:         metrics,
		deliveryTimeout: config.DeliveryTimeout,
		workers:         config.Workers,
		queue:           make(chan ledger.Event, config.QueueSize),
	}, nil
}

// Start launches the workers. It is safe to call more than once.
func (dispatcher *Dispatcher) Start() {
	dispatcher.startOnce.Do(func() {
		for index := 0; index < dispatcher.workers; index++ {
			dispatcher.waitGroup.Add(1)
			go dispatcher.work()
		}
	})
}

// Publish enqueues event for delivery.
func (dispatcher *Dispatcher) Publish(event ledger.Event) {
	dispatcher.mu.RLock()
	defer dispatcher.mu.RUnlock()
	if dispatcher.closed {
		dispatcher.drop(event, "dispatcher closed")
		return
	}
	select {
	case dispatcher.queue <- event:
	default:
		dispatcher.drop(event, "queue full")
	}
}

// Close stops accepting events and waits for queued deliveries or ctx, whichever ends first.
func (dispatcher *Dispatcher) Close(ctx context.Context) error {
	dispatcher.mu.Lock()
	if !dispatcher.closed {
		dispatcher.closed = true
		close(dispatcher.queue)
	}
	dispatcher.mu.Unlock()
	dispatcher.Start()

	done := make(chan struct{})
	go func() {
		dispatcher.waitGroup.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (dispatcher *Dispatcher) work() {
	defer dispatcher.waitGroup.Done()
	for event := range dispatcher.queue {
		dispatcher.deliver(event)
	}
}

func (dispatcher *Dispatcher) deliver(event ledger.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatcher.deliveryTimeout)
	defer cancel()
	dispatcher.record(sinkNotifier, event, dispatcher.notifier.Notify(ctx, event))
	if dispatcher.rewards != nil && event.Type == ledger.EventTransferCompleted {
		dispatcher.record(sinkRewards, event, dispatcher.rewards.TransferCompleted(ctx, event))
	}
}

func (dispatcher *Dispatcher) record(sink string, event ledger.Event, err error) {
	if err == nil {
		dispatcher.metrics.deliveries.WithLabelValues(sink, resultDelivered).Inc()
		return
	}
	dispatcher.metrics.deliveries.WithLabelValues(sink, resultFailed).Inc()
	dispatcher.logger.Warn("event delivery failed",
		zap.String("sink", sink),
		zap.String("event_type", string(event.Type)),
		zap.String("transaction_id", event.TransactionID),
		zap.Error(err),
	)
}

func (dispatcher *Dispatcher) drop(event ledger.Event, reason string) {
	dispatcher.metrics.dropped.Inc()
	dispatcher.logger.Warn("event dropped",
		zap.String("reason", reason),
		zap.String("event_type", string(event.Type)),
		zap.String("transaction_id", event.TransactionID),
	)
}
