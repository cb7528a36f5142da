package services

import (
	"context"
	"errors"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/claimminer/internal/core/domain"
	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
	"github.com/custodia-labs/claimminer/internal/core/ports/driving"
	"github.com/custodia-labs/claimminer/internal/logger"
)

// Ensure Dispatcher implements the interface.
var _ driving.Dispatcher = (*Dispatcher)(nil)

// Message outcomes reported to metrics.
const (
	outcomeOK    = "ok"
	outcomeRetry = "retry"
	outcomeError = "error"
)

// Dispatcher consumes the message log with one goroutine per
// topic-partition. Messages of a partition are handled one at a time, in
// log order. Handlers run on a context that is not cancelled by Stop, so a
// message that started is always finished and acknowledged.
type Dispatcher struct {
	log      driven.MessageLog
	metrics  driven.Metrics
	settings domain.DispatcherSettings

	mu       sync.Mutex
	handlers map[domain.Topic]driving.Handler
	running  bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewDispatcher creates a dispatcher. metrics may be nil.
func NewDispatcher(log driven.MessageLog, settings domain.DispatcherSettings, metrics driven.Metrics) *Dispatcher {
	defaults := domain.DefaultAppSettings().Dispatcher
	if settings.Partitions <= 0 {
		settings.Partitions = defaults.Partitions
	}
	if settings.PollInterval <= 0 {
		settings.PollInterval = defaults.PollInterval
	}
	if settings.RetryDelay < 0 {
		settings.RetryDelay = 0
	}
	if settings.MaxSoftRetries < 0 {
		settings.MaxSoftRetries = 0
	}
	return &Dispatcher{
		log:      log,
		metrics:  orNop(metrics),
		settings: settings,
		handlers: make(map[domain.Topic]driving.Handler),
	}
}

// Partition maps a message key to a partition with FNV-1a.
func Partition(key string, partitions int) int {
	if partitions <= 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(partitions))
}

// Register installs the handler for a topic. Handlers registered after
// Start are not consumed until the next Start.
func (d *Dispatcher) Register(topic domain.Topic, h driving.Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[topic] = h
}

// Enqueue assigns partitions and publishes messages.
// A message without a key is keyed by its payload.
func (d *Dispatcher) Enqueue(ctx context.Context, msgs ...domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	for i := range msgs {
		if msgs[i].Key == "" {
			msgs[i].Key = msgs[i].Payload
		}
		msgs[i].Partition = Partition(msgs[i].Key, d.settings.Partitions)
	}
	if err := d.log.Publish(ctx, msgs...); err != nil {
		return err
	}
	for _, m := range msgs {
		logger.Debug("Enqueued %s %q on partition %d", m.Topic, m.Payload, m.Partition)
	}
	return nil
}

// Start consumes every registered topic until Stop is called or ctx is
// cancelled, then waits for in-flight messages.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return nil // Already running
	}
	d.running = true
	d.stopCh = make(chan struct{})
	stopCh := d.stopCh

	topics := make([]domain.Topic, 0, len(d.handlers))
	for topic := range d.handlers {
		topics = append(topics, topic)
	}
	handlers := make(map[domain.Topic]driving.Handler, len(d.handlers))
	for topic, h := range d.handlers {
		handlers[topic] = h
	}
	d.mu.Unlock()

	sort.Slice(topics, func(i, j int) bool { return topics[i] < topics[j] })
	logger.Info("Dispatcher consuming %d topics x %d partitions", len(topics), d.settings.Partitions)

	for _, topic := range topics {
		for p := 0; p < d.settings.Partitions; p++ {
			d.wg.Add(1)
			go func(topic domain.Topic, partition int) {
				defer d.wg.Done()
				d.consume(ctx, stopCh, topic, partition, handlers[topic])
			}(topic, p)
		}
	}

	select {
	case <-ctx.Done():
	case <-stopCh:
	}
	d.wg.Wait()

	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
	return nil
}

// Stop stops consumption and waits for in-flight messages.
func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	if !d.running || d.stopCh == nil {
		d.mu.Unlock()
		return nil
	}
	select {
	case <-d.stopCh:
	default:
		close(d.stopCh)
	}
	d.mu.Unlock()

	d.wg.Wait()
	return nil
}

// consume handles the messages of one partition sequentially.
func (d *Dispatcher) consume(
	ctx context.Context, stopCh <-chan struct{}, topic domain.Topic, partition int, h driving.Handler,
) {
	for {
		if stopped(ctx, stopCh) {
			return
		}

		msg, err := d.log.Next(ctx, topic, partition)
		if err != nil {
			if ctx.Err() == nil {
				logger.Error(err, "read %s/%d", topic, partition)
			}
			if !wait(ctx, stopCh, d.settings.PollInterval) {
				return
			}
			continue
		}
		if msg == nil {
			if !wait(ctx, stopCh, d.settings.PollInterval) {
				return
			}
			continue
		}

		if retry := d.handle(context.WithoutCancel(ctx), h, *msg); retry {
			if !wait(ctx, stopCh, d.settings.RetryDelay) {
				return
			}
		}
	}
}

// handle runs the handler and settles the message. It reports whether
// the message was put back for a delayed retry.
func (d *Dispatcher) handle(ctx context.Context, h driving.Handler, msg domain.Message) bool {
	start := time.Now()
	err := h(ctx, msg)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		d.metrics.MessageHandled(string(msg.Topic), outcomeOK, elapsed)
		d.ack(ctx, msg)
		return false

	case errors.Is(err, domain.ErrNotYetVisible) && msg.Attempts < d.settings.MaxSoftRetries:
		d.metrics.MessageHandled(string(msg.Topic), outcomeRetry, elapsed)
		logger.Debug("Soft miss on %s %q (attempt %d): %v", msg.Topic, msg.Payload, msg.Attempts+1, err)
		if rerr := d.log.Retry(ctx, msg.ID); rerr != nil {
			logger.Error(rerr, "retry message %s", msg.ID)
			d.ack(ctx, msg)
			return false
		}
		return true

	default:
		d.metrics.MessageHandled(string(msg.Topic), outcomeError, elapsed)
		logger.Error(err, "handle %s %q after %d attempts", msg.Topic, msg.Payload, msg.Attempts+1)
		d.ack(ctx, msg)
		return false
	}
}

func (d *Dispatcher) ack(ctx context.Context, msg domain.Message) {
	if err := d.log.Ack(ctx, msg.ID); err != nil {
		logger.Error(err, "ack message %s", msg.ID)
	}
}

func stopped(ctx context.Context, stopCh <-chan struct{}) bool {
	select {
	case <-ctx.Done():
		return true
	case <-stopCh:
		return true
	default:
		return false
	}
}

// wait sleeps for d unless stopped first. It reports whether to go on.
func wait(ctx context.Context, stopCh <-chan struct{}, d time.Duration) bool {
	if d <= 0 {
		return !stopped(ctx, stopCh)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-stopCh:
		return false
	case <-timer.C:
		return true
	}
}
