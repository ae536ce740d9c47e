package notification

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/aurawellness/gamification-service/shared-libs/events"
)

type stubSink struct {
	name     string
	mu       sync.Mutex
	attempts int
	got      []events.NotificationRequested
	failN    int
	err      error
	block    bool
}

func (s *stubSink) Name() string { return s.name }

func (s *stubSink) Deliver(ctx context.Context, req events.NotificationRequested) error {
	s.mu.Lock()
	s.attempts++
	attempt := s.attempts
	s.mu.Unlock()

	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if s.err != nil && (s.failN == 0 || attempt <= s.failN) {
		return s.err
	}

	s.mu.Lock()
	s.got = append(s.got, req)
	s.mu.Unlock()
	return nil
}

func (s *stubSink) snapshot() (int, []events.NotificationRequested) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]events.NotificationRequested, len(s.got))
	copy(out, s.got)
	return s.attempts, out
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastConfig() DispatcherConfig {
	return DispatcherConfig{
		QueueSize:       16,
		Workers:         2,
		MaxAttempts:     3,
		DeliveryTimeout: 50 * time.Millisecond,
		RetryBackoff:    time.Millisecond,
		DrainTimeout:    time.Second,
	}
}

func runDispatcher(t *testing.T, d *Dispatcher) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go d.Start(ctx)
	return func() {
		cancel()
		d.Wait()
	}
}

func badge(userID, name string) events.NotificationRequested {
	return events.NotificationRequested{
		UserID:  userID,
		Title:   "New Badge Unlocked!",
		Message: "You earned: " + name,
		Type:    string(TypeSuccess),
		Source:  "gamification",
	}
}

func TestDispatcherDeliversToEverySink(t *testing.T) {
	defer goleak.VerifyNone(t)

	inbox := &stubSink{name: "inbox-test"}
	bus := &stubSink{name: "bus-test"}
	d := NewDispatcher(fastConfig(), quietLogger(), inbox, bus)
	stop := runDispatcher(t, d)

	before := testutil.ToFloat64(deliveredCounter.WithLabelValues("inbox-test"))
	for i := 0; i < 5; i++ {
		require.NoError(t, d.Notify(context.Background(), badge("u1", fmt.Sprintf("badge-%d", i))))
	}
	stop()

	_, gotInbox := inbox.snapshot()
	_, gotBus := bus.snapshot()
	require.Len(t, gotInbox, 5)
	require.Len(t, gotBus, 5)
	require.False(t, gotInbox[0].RequestedAt.IsZero())
	require.InDelta(t, before+5, testutil.ToFloat64(deliveredCounter.WithLabelValues("inbox-test")), 0.0001)
}

func TestDispatcherRetriesTransientFailures(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := &stubSink{name: "flaky-test", err: errors.New("unavailable"), failN: 2}
	d := NewDispatcher(fastConfig(), quietLogger(), sink)
	stop := runDispatcher(t, d)

	beforeRetries := testutil.ToFloat64(retryCounter.WithLabelValues("flaky-test"))
	require.NoError(t, d.Notify(context.Background(), badge("u1", "Night Owl")))
	require.Eventually(t, func() bool {
		_, got := sink.snapshot()
		return len(got) == 1
	}, time.Second, 5*time.Millisecond)
	stop()

	attempts, got := sink.snapshot()
	require.Equal(t, 3, attempts)
	require.Len(t, got, 1)
	require.InDelta(t, beforeRetries+2, testutil.ToFloat64(retryCounter.WithLabelValues("flaky-test")), 0.0001)
}

func TestDispatcherGivesUpAfterMaxAttempts(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := &stubSink{name: "down-test", err: errors.New("broker down")}
	healthy := &stubSink{name: "healthy-test"}
	d := NewDispatcher(fastConfig(), quietLogger(), sink, healthy)
	stop := runDispatcher(t, d)

	beforeFailed := testutil.ToFloat64(failedCounter.WithLabelValues("down-test"))
	require.NoError(t, d.Notify(context.Background(), badge("u1", "Early Bird")))
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(failedCounter.WithLabelValues("down-test")) >= beforeFailed+1
	}, time.Second, 5*time.Millisecond)
	stop()

	attempts, got := sink.snapshot()
	require.Equal(t, 3, attempts)
	require.Empty(t, got)
	require.InDelta(t, beforeFailed+1, testutil.ToFloat64(failedCounter.WithLabelValues("down-test")), 0.0001)

	_, delivered := healthy.snapshot()
	require.Len(t, delivered, 1, "a failing sink must not block the others")
}

func TestDispatcherDoesNotRetryInvalidInput(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := &stubSink{name: "invalid-test", err: fmt.Errorf("%w: title required", ErrInvalidInput)}
	d := NewDispatcher(fastConfig(), quietLogger(), sink)
	stop := runDispatcher(t, d)

	beforeFailed := testutil.ToFloat64(failedCounter.WithLabelValues("invalid-test"))
	require.NoError(t, d.Notify(context.Background(), badge("u1", "")))
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(failedCounter.WithLabelValues("invalid-test")) >= beforeFailed+1
	}, time.Second, 5*time.Millisecond)
	stop()

	attempts, _ := sink.snapshot()
	require.Equal(t, 1, attempts)
}

func TestDispatcherBoundsEachAttempt(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := fastConfig()
	cfg.MaxAttempts = 2
	cfg.DeliveryTimeout = 10 * time.Millisecond
	sink := &stubSink{name: "slow-test", block: true}
	d := NewDispatcher(cfg, quietLogger(), sink)
	stop := runDispatcher(t, d)

	beforeFailed := testutil.ToFloat64(failedCounter.WithLabelValues("slow-test"))
	require.NoError(t, d.Notify(context.Background(), badge("u1", "Deep Worker")))
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(failedCounter.WithLabelValues("slow-test")) >= beforeFailed+1
	}, time.Second, 5*time.Millisecond)
	stop()

	attempts, _ := sink.snapshot()
	require.Equal(t, 2, attempts)
}

func TestDispatcherNotifyNeverBlocks(t *testing.T) {
	cfg := fastConfig()
	cfg.QueueSize = 1
	d := NewDispatcher(cfg, quietLogger())

	beforeDropped := testutil.ToFloat64(droppedCounter)
	require.NoError(t, d.Notify(context.Background(), badge("u1", "First Step")))

	done := make(chan error, 1)
	go func() { done <- d.Notify(context.Background(), badge("u1", "Mindful Soul")) }()
	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrQueueFull)
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a full queue")
	}
	require.InDelta(t, beforeDropped+1, testutil.ToFloat64(droppedCounter), 0.0001)
}

func TestDispatcherRejectsAfterShutdown(t *testing.T) {
	defer goleak.VerifyNone(t)

	d := NewDispatcher(fastConfig(), quietLogger(), &stubSink{name: "closed-test"})
	stop := runDispatcher(t, d)
	stop()

	require.ErrorIs(t, d.Notify(context.Background(), badge("u1", "Unstoppable")), ErrDispatcherClosed)
}

func TestDispatcherNotifyHonoursContext(t *testing.T) {
	d := NewDispatcher(fastConfig(), quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, d.Notify(ctx, badge("u1", "First Step")), context.Canceled)
}

// lossyAckRepository stores the first Create and still reports a failure, like a write
// that committed after the client gave up on it.
type lossyAckRepository struct {
	Repository
	mu     sync.Mutex
	failed bool
}

func (r *lossyAckRepository) Create(ctx context.Context, n Notification) error {
	if err := r.Repository.Create(ctx, n); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.failed {
		r.failed = true
		return errors.New("deadline exceeded waiting for commit")
	}
	return nil
}

func TestDispatcherRetryDoesNotDuplicateInboxEntry(t *testing.T) {
	defer goleak.VerifyNone(t)

	repo := &lossyAckRepository{Repository: NewMemoryRepository()}
	svc, err := NewService(repo, NewSystemClock(), &sequenceIDs{})
	require.NoError(t, err)

	d := NewDispatcher(fastConfig(), quietLogger(), NewInboxSink(svc))
	stop := runDispatcher(t, d)

	retriesBefore := testutil.ToFloat64(retryCounter.WithLabelValues("inbox"))
	deliveredBefore := testutil.ToFloat64(deliveredCounter.WithLabelValues("inbox"))
	require.NoError(t, d.Notify(context.Background(), badge("u1", "First Step")))
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(deliveredCounter.WithLabelValues("inbox")) >= deliveredBefore+1
	}, time.Second, 5*time.Millisecond)
	stop()

	require.InDelta(t, retriesBefore+1, testutil.ToFloat64(retryCounter.WithLabelValues("inbox")), 0.0001)

	items, err := svc.List(context.Background(), "u1", 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotEmpty(t, items[0].ID)
}

func TestDispatcherAssignsStableEventID(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := &stubSink{name: "ids-test", err: errors.New("unavailable"), failN: 1}
	d := NewDispatcher(fastConfig(), quietLogger(), sink)
	stop := runDispatcher(t, d)

	require.NoError(t, d.Notify(context.Background(), badge("u1", "Early Bird")))
	preset := badge("u1", "Night Owl")
	preset.ID = "evt-fixed"
	require.NoError(t, d.Notify(context.Background(), preset))
	require.Eventually(t, func() bool {
		_, got := sink.snapshot()
		return len(got) == 2
	}, time.Second, 5*time.Millisecond)
	stop()

	_, got := sink.snapshot()
	ids := map[string]bool{}
	for _, req := range got {
		require.NotEmpty(t, req.ID)
		ids[req.ID] = true
	}
	require.Len(t, ids, 2)
	require.True(t, ids["evt-fixed"])
}
