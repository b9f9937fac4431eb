package auth

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// Notifier fans auth-state changes out to subscribers in subscription order. Each callback runs
// synchronously; a panicking callback is recovered and logged so the others still run.
type Notifier struct {
	mu   sync.Mutex
	next int
	subs []subscription
	log  *zap.Logger
}

type subscription struct {
	id int
	fn StateChangeFunc
}

// NewNotifier returns an empty Notifier. logger may be nil.
func NewNotifier(logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{log: logger}
}

// Subscribe registers fn and returns a func that removes it. The returned func is idempotent.
func (n *Notifier) Subscribe(fn StateChangeFunc) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.next++
	id := n.next
	n.subs = append(n.subs, subscription{id: id, fn: fn})
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		n.subs = slices.DeleteFunc(n.subs, func(s subscription) bool { return s.id == id })
	}
}

// Notify delivers event to every subscriber before returning.
func (n *Notifier) Notify(ctx context.Context, event Event, session *Session) {
	n.mu.Lock()
	subs := slices.Clone(n.subs)
	n.mu.Unlock()
	for _, s := range subs {
		n.call(ctx, s.fn, event, session)
	}
}

func (n *Notifier) call(ctx context.Context, fn StateChangeFunc, event Event, session *Session) {
	defer func() {
		if r := recover(); r != nil {
			n.log.Error("auth: state change callback panicked", zap.String("event", string(event)), zap.Any("panic", r))
		}
	}()
	fn(ctx, event, session)
}
