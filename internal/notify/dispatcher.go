package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GlebRadaev/partnerpay/internal/domain"
	"github.com/GlebRadaev/partnerpay/internal/metrics"
)

// Channel delivers one lifecycle notice.
type Channel interface {
	Name() string
	Send(ctx context.Context, notice domain.LifecycleNotice) error
}

// Dispatcher hands notices to its channels on background workers. Enqueueing
// never blocks: when the queue is full the notice is dropped and logged.
type Dispatcher struct {
	channels []Channel
	queue    chan domain.LifecycleNotice
	timeout  time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(workers, queueSize int, timeout time.Duration, channels ...Channel) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	d := &Dispatcher{
		channels: channels,
		queue:    make(chan domain.LifecycleNotice, queueSize),
		timeout:  timeout,
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

func (d *Dispatcher) SendPayoutLifecycleNotice(_ context.Context, notice domain.LifecycleNotice) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		zap.L().Warn("notifier closed, dropping notice", zap.String("payoutID", notice.Payout.ID))
		return
	}

	select {
	case d.queue <- notice:
	default:
		metrics.IncNotification("queue", "dropped")
		zap.L().Error("notification queue full, dropping notice",
			zap.String("payoutID", notice.Payout.ID),
			zap.String("status", string(notice.Status)),
		)
	}
}

// Close stops accepting notices and waits for the queued ones to be delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for notice := range d.queue {
		d.deliver(notice)
	}
}

func (d *Dispatcher) deliver(notice domain.LifecycleNotice) {
	for _, ch := range d.channels {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := ch.Send(ctx, notice)
		cancel()

		if err != nil {
			metrics.IncNotification(ch.Name(), "error")
			zap.L().Error("failed to send payout notice",
				zap.String("channel", ch.Name()),
				zap.String("payoutID", notice.Payout.ID),
				zap.String("status", string(notice.Status)),
				zap.Error(err),
			)
			continue
		}
		metrics.IncNotification(ch.Name(), "sent")
	}
}

// LogChannel writes notices to the application log.
type LogChannel struct{}

func (LogChannel) Name() string { return "log" }

func (LogChannel) Send(_ context.Context, notice domain.LifecycleNotice) error {
	zap.L().Info("payout lifecycle notice",
		zap.String("payoutID", notice.Payout.ID),
		zap.String("partnerID", notice.Partner.ID),
		zap.String("status", string(notice.Status)),
		zap.Int64("netAmount", notice.Payout.NetAmount),
		zap.Any("extra", notice.Extra),
	)
	return nil
}
