package broker

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/casualjim/mediator/pkg/uuidx"
)

// ErrFaulted is the error a topic carries when it was faulted without a cause.
var ErrFaulted = errors.New("topic faulted")

// Topic is a broadcast channel holding zero or one replay value.
type Topic struct {
	mu          sync.Mutex
	subscribers []*sink
	value       any
	hasValue    bool
	state       State
	err         error
}

// NewTopic creates an active topic without a replay value.
func NewTopic() *Topic {
	return &Topic{}
}

// Seeded creates an active topic whose replay value is already set.
func Seeded(value any) *Topic {
	return &Topic{value: value, hasValue: true}
}

// Publish stores value as the replay value and delivers it to the subscribers
// registered at the time of the call, in subscription order.
// Publishing to a completed or faulted topic does nothing.
func (t *Topic) Publish(ctx context.Context, value any) {
	t.mu.Lock()
	if t.state != Active {
		t.mu.Unlock()
		return
	}
	t.value, t.hasValue = value, true
	snapshot := t.subscribers
	t.mu.Unlock()

	for _, s := range snapshot {
		s.deliver(ctx, value)
	}
}

// Subscribe registers sub on the topic. When the topic holds a value that passes
// the subscriber filter, it is delivered before Subscribe returns.
// A terminal topic notifies sub right away and returns an already detached handle.
func (t *Topic) Subscribe(ctx context.Context, sub *Subscriber) Subscription {
	s := &sink{Subscriber: sub}
	handle := &subscription{id: uuidx.NewString(), sink: s}

	t.mu.Lock()
	switch t.state {
	case Faulted:
		err := t.err
		t.mu.Unlock()
		s.detached.Store(true)
		if sub.OnError != nil {
			sub.OnError(ctx, err)
		}
		return handle
	case Completed:
		t.mu.Unlock()
		s.detached.Store(true)
		if sub.OnCompleted != nil {
			sub.OnCompleted(ctx)
		}
		return handle
	}

	value, replay := t.value, t.hasValue
	s.replaying = replay
	t.subscribers = append(slices.Clip(t.subscribers), s)
	handle.topic = t
	t.mu.Unlock()

	if replay {
		s.replay(ctx, value)
	}
	return handle
}

// Complete moves the topic to the Completed state and notifies every subscriber once.
func (t *Topic) Complete(ctx context.Context) {
	snapshot, ok := t.stop(Completed, nil)
	if !ok {
		return
	}
	for _, s := range snapshot {
		s.detached.Store(true)
		if s.OnCompleted != nil {
			s.OnCompleted(ctx)
		}
	}
}

// Fault moves the topic to the Faulted state and notifies every subscriber once.
func (t *Topic) Fault(ctx context.Context, err error) {
	if err == nil {
		err = ErrFaulted
	}
	snapshot, ok := t.stop(Faulted, err)
	if !ok {
		return
	}
	for _, s := range snapshot {
		s.detached.Store(true)
		if s.OnError != nil {
			s.OnError(ctx, err)
		}
	}
}

func (t *Topic) stop(state State, err error) ([]*sink, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Active {
		return nil, false
	}
	t.state, t.err = state, err
	snapshot := t.subscribers
	t.subscribers = nil
	return snapshot, true
}

// Value returns the replay value, if any.
func (t *Topic) Value() (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.value, t.hasValue
}

// State returns the lifecycle state and, for a faulted topic, its error.
func (t *Topic) State() (State, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state, t.err
}

// Len returns the number of live subscribers.
func (t *Topic) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subscribers)
}

func (t *Topic) remove(s *sink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx := slices.Index(t.subscribers, s); idx >= 0 {
		t.subscribers = slices.Delete(slices.Clone(t.subscribers), idx, idx+1)
	}
}

type delivery struct {
	ctx   context.Context
	value any
}

type sink struct {
	*Subscriber
	detached atomic.Bool

	mu        sync.Mutex
	replaying bool
	pending   []delivery
}

func (s *sink) deliver(ctx context.Context, value any) {
	if s.detached.Load() {
		return
	}
	s.mu.Lock()
	if s.replaying {
		// the replayed value goes first, newer values wait for it
		s.pending = append(s.pending, delivery{ctx: ctx, value: value})
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.next(ctx, value)
}

func (s *sink) replay(ctx context.Context, value any) {
	s.next(ctx, value)
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.replaying = false
			s.mu.Unlock()
			return
		}
		batch := s.pending
		s.pending = nil
		s.mu.Unlock()

		for _, d := range batch {
			if s.detached.Load() {
				break
			}
			s.next(d.ctx, d.value)
		}
	}
}

func (s *sink) next(ctx context.Context, value any) {
	if s.Filter != nil && !s.Filter(value) {
		return
	}
	s.Next(ctx, value)
}

type subscription struct {
	id    string
	topic *Topic
	sink  *sink
	once  sync.Once
}

func (s *subscription) ID() string {
	return s.id
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.sink.detached.Store(true)
		if s.topic != nil {
			s.topic.remove(s.sink)
		}
		if s.sink.OnDetach != nil {
			s.sink.OnDetach()
		}
	})
}
