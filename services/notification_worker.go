package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-dashboard/utils"
)

// NotificationWorker drains the email queue with a fixed pool of goroutines. Failed sends are
// logged and dropped.
type NotificationWorker struct {
	queue       JobQueue
	sender      EmailSender
	workers     int
	sendTimeout time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewNotificationWorker(queue JobQueue, sender EmailSender, workers int, sendTimeout time.Duration) *NotificationWorker {
	if workers <= 0 {
		workers = 1
	}
	if sendTimeout <= 0 {
		sendTimeout = 10 * time.Second
	}
	return &NotificationWorker{
		queue:       queue,
		sender:      sender,
		workers:     workers,
		sendTimeout: sendTimeout,
	}
}

func (w *NotificationWorker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i)
	}
	utils.InfoLogger.WithField("workers", w.workers).Info("notification worker started")
}

// Stop cancels the workers and waits for in-flight sends to finish.
func (w *NotificationWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	utils.InfoLogger.Info("notification worker stopped")
}

func (w *NotificationWorker) run(ctx context.Context, id int) {
	defer w.wg.Done()

	for {
		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrQueueClosed) {
				return
			}
			utils.ErrorLogger.WithField("worker", id).WithError(err).Error("failed to read notification queue")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		w.send(ctx, id, job)
	}
}

func (w *NotificationWorker) send(ctx context.Context, id int, job *EmailJob) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.sendTimeout)
	defer cancel()

	if err := w.sender.Send(sendCtx, job); err != nil {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"worker":    id,
			"job_id":    job.ID,
			"tenant_id": job.TenantID,
			"event":     job.EventType,
		}).WithError(err).Error("failed to send email")
	}
}
