package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/yourorg/tenantonboard/internal/domain"
	"github.com/yourorg/tenantonboard/internal/observability/metrics"
)

// Submitter accepts fire-and-forget work. *worker.TaskQueue implements it.
type Submitter interface {
	Submit(name string, fn func(ctx context.Context) error) bool
}

// Dispatcher hands messages to a Notifier on the background queue. Callers
// never wait for delivery and never see delivery errors.
type Dispatcher struct {
	queue    Submitter
	notifier domain.Notifier
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(queue Submitter, notifier domain.Notifier, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{queue: queue, notifier: notifier, logger: logger}
}

// Dispatch queues msg for delivery. It reports false when the queue refused it.
func (d *Dispatcher) Dispatch(msg domain.Message) bool {
	ok := d.queue.Submit("notify.email", func(ctx context.Context) error {
		start := time.Now()
		if err := d.notifier.Send(ctx, msg); err != nil {
			metrics.ObserveNotification("error", time.Since(start))
			d.logger.Error("email delivery failed",
				slog.String("recipient", msg.Recipient),
				slog.String("subject", msg.Subject),
				slog.String("error", err.Error()),
			)
			return err
		}
		metrics.ObserveNotification("success", time.Since(start))
		d.logger.Info("email delivered", slog.String("recipient", msg.Recipient))
		return nil
	})
	if !ok {
		metrics.ObserveNotification("dropped", 0)
	}
	return ok
}

// LogNotifier writes messages to the log instead of sending them. It stands in
// for SMTP when no mail host is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Send logs msg.
func (n *LogNotifier) Send(_ context.Context, msg domain.Message) error {
	n.logger.Info("email not sent: no smtp host configured",
		slog.String("sender", msg.Sender),
		slog.String("recipient", msg.Recipient),
		slog.String("subject", msg.Subject),
		slog.Int("body_bytes", len(msg.HTMLBody)),
	)
	return nil
}
