package services

import (
	"context"
	"sync"
	"time"

	"wizardAPI/internal/logger"
	"wizardAPI/internal/types/notification"
	"wizardAPI/repository"
)

// PushProvider delivers one message to a set of device tokens and returns the
// tokens the backend reported as no longer registered.
type PushProvider interface {
	SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) (stale []string, err error)
}

// NotificationDispatcher sends pushes from a bounded queue on a fixed worker pool.
type NotificationDispatcher struct {
	devices      repository.DeviceRepository
	pushProvider PushProvider
	log          *logger.Logger
	workers      int
	jobQueue     chan *notification.Push
	wg           sync.WaitGroup
	mu           sync.RWMutex
	started      bool
	cancel       context.CancelFunc
}

func NewNotificationDispatcher(devices repository.DeviceRepository, log *logger.Logger, workers, queueSize int) *NotificationDispatcher {
	return &NotificationDispatcher{
		devices:  devices,
		log:      log,
		workers:  workers,
		jobQueue: make(chan *notification.Push, queueSize),
	}
}

func (d *NotificationDispatcher) SetPushProvider(provider PushProvider) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pushProvider = provider
}

func (d *NotificationDispatcher) provider() PushProvider {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.pushProvider
}

func (d *NotificationDispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true

	ctx, d.cancel = context.WithCancel(ctx)
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
}

func (d *NotificationDispatcher) Stop() {
	d.mu.Lock()
	cancel := d.cancel
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	d.wg.Wait()
}

func (d *NotificationDispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case push := <-d.jobQueue:
			d.process(push)
		case <-ctx.Done():
			return
		}
	}
}

// Dispatch enqueues without blocking; a full queue drops the push.
func (d *NotificationDispatcher) Dispatch(push *notification.Push) {
	select {
	case d.jobQueue <- push:
	default:
		pushesSent.WithLabelValues("dropped").Inc()
		d.log.Warn("push queue full, dropping notification", "user_id", push.UserID)
	}
}

func (d *NotificationDispatcher) process(push *notification.Push) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	provider := d.provider()
	if provider == nil {
		pushesSent.WithLabelValues("skipped").Inc()
		return
	}

	tokens, err := d.devices.ListDevices(ctx, push.UserID)
	if err != nil {
		d.log.Error("failed to load device tokens", "user_id", push.UserID, "error", err)
		pushesSent.WithLabelValues("failed").Inc()
		return
	}
	if len(tokens) == 0 {
		pushesSent.WithLabelValues("skipped").Inc()
		return
	}

	stale, err := provider.SendPush(ctx, tokens, push.Title, push.Body, push.Data)
	for _, token := range stale {
		if err := d.devices.DeleteDevice(ctx, token); err != nil {
			d.log.Warn("failed to prune stale device token", "error", err)
		}
	}
	if err != nil {
		d.log.Error("push failed", "user_id", push.UserID, "error", err)
		pushesSent.WithLabelValues("failed").Inc()
		return
	}

	pushesSent.WithLabelValues("sent").Inc()
}
