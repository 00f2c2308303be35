package notify

import (
	"context"
	"errors"
	"sync"

	"github.com/getkayan/accountguard/core/domain"
	"github.com/getkayan/accountguard/core/logger"
	"go.uber.org/zap"
)

// DefaultQueueSize is the number of pending deliveries Async buffers.
const DefaultQueueSize = 64

var (
	// ErrClosed is returned by Async after Close.
	ErrClosed = errors.New("notify: closed")

	// ErrQueueFull is returned when a delivery is dropped because the queue
	// is full. The token it carried is not delivered.
	ErrQueueFull = errors.New("notify: queue full, delivery dropped")
)

type job struct {
	kind  domain.TokenKind
	email string
	token string
}

// Async hands deliveries to a background worker. Sends never block: when the
// queue is full the delivery is dropped, logged and reported as ErrQueueFull.
type Async struct {
	next  domain.Notifier
	log   *zap.Logger
	queue chan job
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewAsync starts a worker delivering to next. A non-positive size uses
// DefaultQueueSize.
func NewAsync(next domain.Notifier, size int, l *zap.Logger) *Async {
	if size <= 0 {
		size = DefaultQueueSize
	}
	a := &Async{
		next:  next,
		log:   logger.OrDefault(l).Named("notify"),
		queue: make(chan job, size),
		done:  make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) SendVerification(ctx context.Context, email, token string) error {
	return a.enqueue(job{kind: domain.TokenVerification, email: email, token: token})
}

func (a *Async) SendPasswordReset(ctx context.Context, email, token string) error {
	return a.enqueue(job{kind: domain.TokenPasswordReset, email: email, token: token})
}

func (a *Async) enqueue(j job) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	select {
	case a.queue <- j:
	default:
		a.log.Warn("notification queue full, dropping",
			zap.String("kind", string(j.kind)),
			zap.String("email", j.email),
		)
		return ErrQueueFull
	}
	return nil
}

func (a *Async) run() {
	defer close(a.done)
	for j := range a.queue {
		// Deliveries outlive the request that queued them.
		ctx := context.Background()
		var err error
		switch j.kind {
		case domain.TokenVerification:
			err = a.next.SendVerification(ctx, j.email, j.token)
		case domain.TokenPasswordReset:
			err = a.next.SendPasswordReset(ctx, j.email, j.token)
		}
		if err != nil {
			a.log.Error("notification failed",
				zap.String("kind", string(j.kind)),
				zap.String("email", j.email),
				zap.Error(err),
			)
		}
	}
}

// Close stops accepting deliveries and waits for queued ones to finish, or
// for ctx to end.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
