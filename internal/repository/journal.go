package repository

import (
	"context"
	"sync/atomic"

	"github.com/cx-tal-miterani/flight-surety/internal/ledger"
	"github.com/rs/zerolog"
)

// NotificationWriter persists one notification.
type NotificationWriter interface {
	InsertNotification(ctx context.Context, n ledger.Notification) error
}

// Journal is a ledger.Notifier that hands notifications to a writer from its
// own goroutine. Notify never blocks: when the queue is full the notification
// is dropped and counted.
type Journal struct {
	writer  NotificationWriter
	queue   chan ledger.Notification
	log     zerolog.Logger
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewJournal creates a journal with a queue of size buffered notifications.
func NewJournal(w NotificationWriter, size int, log zerolog.Logger) *Journal {
	if size <= 0 {
		size = 256
	}
	return &Journal{
		writer: w,
		queue:  make(chan ledger.Notification, size),
		log:    log,
	}
}

func (j *Journal) Notify(n ledger.Notification) {
	select {
	case j.queue <- n:
	default:
		j.dropped.Add(1)
		j.log.Warn().Uint64("seq", n.Seq).Str("type", string(n.Type)).Msg("journal queue full, notification dropped")
	}
}

// Run writes queued notifications until ctx is done, then drains what is
// already queued.
func (j *Journal) Run(ctx context.Context) error {
	for {
		select {
		case n := <-j.queue:
			j.write(ctx, n)
		case <-ctx.Done():
			for {
				select {
				case n := <-j.queue:
					j.write(context.WithoutCancel(ctx), n)
				default:
					return nil
				}
			}
		}
	}
}

func (j *Journal) write(ctx context.Context, n ledger.Notification) {
	if err := j.writer.InsertNotification(ctx, n); err != nil {
		j.failed.Add(1)
		j.log.Error().Err(err).Uint64("seq", n.Seq).Msg("failed to journal notification")
	}
}

// Dropped returns the number of notifications dropped on a full queue.
func (j *Journal) Dropped() uint64 {
	return j.dropped.Load()
}

// Failed returns the number of notifications the writer rejected.
func (j *Journal) Failed() uint64 {
	return j.failed.Load()
}
