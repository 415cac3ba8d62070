package notification

import (
	"context"
	"errors"
	"sync"
	"time"

	"library-lending/internal/domain"
	"library-lending/internal/logger"

	"golang.org/x/time/rate"
)

var (
	ErrQueueFull = errors.New("notification queue is full")
	ErrClosed    = errors.New("notification dispatcher is closed")
)

type job struct {
	msg      domain.Notification
	attempts int
}

type DispatcherOptions struct {
	Workers       int
	QueueSize     int
	MaxRetries    int
	RatePerSecond float64
	// BaseBackoff is multiplied by attempts squared between retries.
	BaseBackoff time.Duration
}

// Dispatcher is a Sink that delivers through a Sender on a pool of workers,
// retrying failures and throttling the outgoing rate.
type Dispatcher struct {
	sender  Sender
	opts    DispatcherOptions
	jobs    chan job
	limiter *rate.Limiter

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(sender Sender, opts DispatcherOptions) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 100
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = time.Second
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	return &Dispatcher{
		sender:  sender,
		opts:    opts,
		jobs:    make(chan job, opts.QueueSize),
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Start launches the workers. They stop when ctx is cancelled or Close drains the queue.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.opts.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}
}

// Send enqueues msg without blocking.
func (d *Dispatcher) Send(ctx context.Context, msg domain.Notification) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}

	select {
	case d.jobs <- job{msg: msg}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting messages and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()
	log := logger.WithService("notification").With("worker", id)
	log.Debug("Notification worker started")

	for {
		select {
		case <-ctx.Done():
			log.Debug("Notification worker stopping")
			return
		case j, ok := <-d.jobs:
			if !ok {
				return
			}
			d.process(ctx, j)
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, j job) {
	for {
		if err := d.limiter.Wait(ctx); err != nil {
			return
		}

		err := d.sender.Deliver(ctx, j.msg)
		if err == nil {
			logger.Debug("Notification delivered", "to", j.msg.To, "subject", j.msg.Subject)
			return
		}

		if j.attempts >= d.opts.MaxRetries {
			logger.Error("Notification dropped after retries", "to", j.msg.To, "attempts", j.attempts+1, "error", err)
			return
		}
		j.attempts++
		backoff := time.Duration(j.attempts*j.attempts) * d.opts.BaseBackoff
		logger.Warn("Notification delivery failed, retrying", "to", j.msg.To, "attempt", j.attempts, "backoff", backoff, "error", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}
