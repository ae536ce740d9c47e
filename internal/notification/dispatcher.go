package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aurawellness/gamification-service/shared-libs/events"
)

// Sink is one delivery target for queued notifications.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, req events.NotificationRequested) error
}

// DispatcherConfig tunes queueing and retry behaviour.
type DispatcherConfig struct {
	QueueSize       int
	Workers         int
	MaxAttempts     int
	DeliveryTimeout time.Duration
	RetryBackoff    time.Duration
	DrainTimeout    time.Duration
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.DeliveryTimeout <= 0 {
		c.DeliveryTimeout = 5 * time.Second
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 200 * time.Millisecond
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = 10 * time.Second
	}
	return c
}

// Dispatcher fans queued notifications out to every sink from a fixed worker pool.
// Notify never blocks; a full queue drops the notification.
type Dispatcher struct {
	cfg    DispatcherConfig
	sinks  []Sink
	logger *slog.Logger
	ids    IDGenerator
	queue  chan events.NotificationRequested

	mu     sync.RWMutex
	closed bool

	shutdownComplete chan struct{}
}

// NewDispatcher constructs a Dispatcher. Call Start to begin delivering.
func NewDispatcher(cfg DispatcherConfig, logger *slog.Logger, sinks ...Sink) *Dispatcher {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		cfg:              cfg,
		sinks:            sinks,
		logger:           logger,
		ids:              NewUUIDGenerator(),
		queue:            make(chan events.NotificationRequested, cfg.QueueSize),
		shutdownComplete: make(chan struct{}),
	}
}

// Notify enqueues req without blocking.
func (d *Dispatcher) Notify(ctx context.Context, req events.NotificationRequested) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if req.RequestedAt.IsZero() {
		req.RequestedAt = time.Now().UTC()
	}
	if req.ID == "" {
		req.ID = d.ids.NewID()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		droppedCounter.Inc()
		return ErrDispatcherClosed
	}

	select {
	case d.queue <- req:
		enqueuedCounter.Inc()
		queueDepth.Set(float64(len(d.queue)))
		return nil
	default:
		droppedCounter.Inc()
		return ErrQueueFull
	}
}

// Start runs the worker pool until ctx is cancelled, then delivers whatever is still
// queued within DrainTimeout. It blocks; run it in a goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	defer close(d.shutdownComplete)

	var wg sync.WaitGroup
	for i := 0; i < d.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.work(ctx)
		}()
	}
	wg.Wait()

	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.drain()
}

// Wait waits until the dispatcher stops.
func (d *Dispatcher) Wait() {
	<-d.shutdownComplete
}

func (d *Dispatcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-d.queue:
			queueDepth.Set(float64(len(d.queue)))
			d.dispatch(ctx, req)
		}
	}
}

func (d *Dispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.DrainTimeout)
	defer cancel()

	for {
		select {
		case req := <-d.queue:
			d.dispatch(ctx, req)
		default:
			queueDepth.Set(0)
			return
		}
		if ctx.Err() != nil {
			left := len(d.queue)
			if left > 0 {
				droppedCounter.Add(float64(left))
				d.logger.Warn("notification drain timed out", slog.Int("dropped", left))
			}
			return
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, req events.NotificationRequested) {
	for _, sink := range d.sinks {
		if err := d.deliver(ctx, sink, req); err != nil {
			failedCounter.WithLabelValues(sink.Name()).Inc()
			d.logger.Error("notification delivery failed",
				slog.String("sink", sink.Name()),
				slog.String("userId", req.UserID),
				slog.String("title", req.Title),
				slog.Any("error", err),
			)
			continue
		}
		deliveredCounter.WithLabelValues(sink.Name()).Inc()
	}
}

// deliver retries transient failures with exponential backoff. ctx bounds the retry
// loop; each attempt gets its own timeout detached from ctx cancellation.
func (d *Dispatcher) deliver(ctx context.Context, sink Sink, req events.NotificationRequested) error {
	backoff := d.cfg.RetryBackoff
	var err error
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.DeliveryTimeout)
		err = sink.Deliver(actx, req)
		cancel()
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrInvalidInput) || attempt == d.cfg.MaxAttempts {
			break
		}

		retryCounter.WithLabelValues(sink.Name()).Inc()
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("attempt %d: %w (gave up: %v)", attempt, err, ctx.Err())
		case <-timer.C:
		}
		backoff *= 2
	}
	return err
}
