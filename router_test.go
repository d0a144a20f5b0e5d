package mediator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Texter interface {
	Text() string
}

type Message struct {
	Content string `json:"content"`
}

func (m Message) Text() string { return m.Content }

type DifferentMessage struct {
	Message
	Extra string `json:"extra"`
}

type collector[T any] struct {
	mu    sync.Mutex
	items []T
}

func (c *collector[T]) add(_ context.Context, v T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, v)
	return nil
}

func (c *collector[T]) all() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]T(nil), c.items...)
}

func (c *collector[T]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func newDerivedRouter() *Router {
	r := New()
	Extend(r, func(d DifferentMessage) Message { return d.Message })
	return r
}

func TestScenarios(t *testing.T) {
	ctx := context.Background()

	t.Run("A: a subscriber receives the published message once", func(t *testing.T) {
		r := New()
		var got collector[Message]
		Subscribe(ctx, r, got.add)

		require.NoError(t, Publish(ctx, r, Message{Content: "x"}))
		assert.Equal(t, []Message{{Content: "x"}}, got.all())
	})

	t.Run("B: a derived message reaches ancestor subscribers, not the reverse", func(t *testing.T) {
		r := newDerivedRouter()
		var a collector[Message]
		var b collector[DifferentMessage]
		Subscribe(ctx, r, a.add)
		Subscribe(ctx, r, b.add)

		require.NoError(t, Publish(ctx, r, DifferentMessage{Message: Message{Content: "derived"}, Extra: "e"}))
		assert.Equal(t, []Message{{Content: "derived"}}, a.all())
		assert.Len(t, b.all(), 1)

		require.NoError(t, Publish(ctx, r, Message{Content: "base"}))
		assert.Equal(t, []Message{{Content: "derived"}, {Content: "base"}}, a.all())
		assert.Len(t, b.all(), 1)
	})

	t.Run("C: a filtered subscriber only sees accepted messages", func(t *testing.T) {
		r := New()
		var got collector[Message]
		Where(r, func(m Message) bool { return m.Content == "true" }).Subscribe(ctx, got.add)

		require.NoError(t, Publish(ctx, r, Message{Content: "false"}))
		require.NoError(t, Publish(ctx, r, Message{Content: "true"}))
		assert.Equal(t, []Message{{Content: "true"}}, got.all())
	})

	t.Run("D: a failing async subscriber is reported to the error subscriber", func(t *testing.T) {
		r := New()
		boom := errors.New("boom")
		SubscribeAsync(ctx, r, func(context.Context, Message) error { return boom })
		var errs collector[Error]
		Subscribe(ctx, r, errs.add)

		require.NoError(t, Publish(ctx, r, Message{Content: "payload"}))
		require.Eventually(t, func() bool { return errs.len() == 1 }, time.Second, time.Millisecond)

		e := errs.all()[0]
		assert.ErrorIs(t, e, boom)
		assert.Equal(t, Message{Content: "payload"}, e.Message)
		assert.Equal(t, "mediator.Message", e.MessageType)

		time.Sleep(10 * time.Millisecond)
		assert.Equal(t, 1, errs.len())
	})
}

func TestStaticDispatch(t *testing.T) {
	ctx := context.Background()
	r := New()

	var byInterface collector[Texter]
	var byStruct collector[Message]
	Subscribe(ctx, r, byInterface.add)
	Subscribe(ctx, r, byStruct.add)

	require.NoError(t, Publish(ctx, r, Message{Content: "concrete"}))
	assert.Equal(t, 1, byInterface.len())
	assert.Equal(t, 1, byStruct.len())

	// the dynamic type is a Message, the static type decides
	require.NoError(t, Publish[Texter](ctx, r, Message{Content: "as interface"}))
	assert.Equal(t, 2, byInterface.len())
	assert.Equal(t, 1, byStruct.len())
	assert.Equal(t, "as interface", byInterface.all()[1].Text())
}

func TestAnyChannelReceivesEverything(t *testing.T) {
	ctx := context.Background()
	r := New()
	var all collector[any]
	Subscribe(ctx, r, all.add)

	require.NoError(t, Publish(ctx, r, Message{Content: "one"}))
	require.NoError(t, Publish(ctx, r, 42))
	assert.Equal(t, []any{Message{Content: "one"}, 42}, all.all())
}

func TestExtendIsTransitive(t *testing.T) {
	type Root struct{ Name string }
	type Middle struct{ Root }
	type Leaf struct{ Middle }

	ctx := context.Background()
	r := New()
	Extend(r, func(m Middle) Root { return m.Root })
	Extend(r, func(l Leaf) Middle { return l.Middle })

	var roots collector[Root]
	Subscribe(ctx, r, roots.add)

	require.NoError(t, Publish(ctx, r, Leaf{Middle{Root{Name: "leaf"}}}))
	assert.Equal(t, []Root{{Name: "leaf"}}, roots.all())
}

func TestReplay(t *testing.T) {
	ctx := context.Background()

	t.Run("publishing before any subscriber seeds the channel", func(t *testing.T) {
		r := New()
		require.NoError(t, Publish(ctx, r, Message{Content: "early"}))

		var got collector[Message]
		Subscribe(ctx, r, got.add)
		assert.Equal(t, []Message{{Content: "early"}}, got.all())
	})

	t.Run("a late subscriber only gets the last value, once", func(t *testing.T) {
		r := New()
		var first collector[Message]
		Subscribe(ctx, r, first.add)
		require.NoError(t, Publish(ctx, r, Message{Content: "1"}))
		require.NoError(t, Publish(ctx, r, Message{Content: "2"}))

		var late collector[Message]
		Subscribe(ctx, r, late.add)
		assert.Equal(t, []Message{{Content: "2"}}, late.all())

		require.NoError(t, Publish(ctx, r, Message{Content: "3"}))
		assert.Equal(t, []Message{{Content: "2"}, {Content: "3"}}, late.all())
	})

	t.Run("a rejected last value is not replayed", func(t *testing.T) {
		r := New()
		require.NoError(t, Publish(ctx, r, Message{Content: "false"}))

		var got collector[Message]
		Where(r, func(m Message) bool { return m.Content == "true" }).Subscribe(ctx, got.add)
		assert.Empty(t, got.all())
	})

	t.Run("ancestor channels created later are not back filled", func(t *testing.T) {
		r := newDerivedRouter()
		require.NoError(t, Publish(ctx, r, DifferentMessage{Message: Message{Content: "d"}}))

		var got collector[Message]
		Subscribe(ctx, r, got.add)
		assert.Empty(t, got.all())
	})
}

func TestErrorIsolation(t *testing.T) {
	ctx := context.Background()

	t.Run("a failing subscriber does not stop the others", func(t *testing.T) {
		r := New()
		boom := errors.New("boom")
		var envelopes collector[ErrorEnvelope[Message]]
		var erased collector[Error]
		Subscribe(ctx, r, envelopes.add)
		Subscribe(ctx, r, erased.add)

		Subscribe(ctx, r, func(context.Context, Message) error { return boom })
		var after collector[Message]
		Subscribe(ctx, r, after.add)

		require.NoError(t, Publish(ctx, r, Message{Content: "m"}))
		assert.Len(t, after.all(), 1)

		require.Len(t, envelopes.all(), 1)
		env := envelopes.all()[0]
		assert.ErrorIs(t, env.Err, boom)
		assert.Equal(t, Message{Content: "m"}, env.Message)
		assert.False(t, time.Time(env.Timestamp).IsZero())

		require.Len(t, erased.all(), 1)
		assert.ErrorIs(t, erased.all()[0], boom)
	})

	t.Run("a panic is routed as a PanicError", func(t *testing.T) {
		r := New()
		var erased collector[Error]
		Subscribe(ctx, r, erased.add)
		Subscribe(ctx, r, func(context.Context, Message) error { panic("kaboom") })

		require.NotPanics(t, func() { require.NoError(t, Publish(ctx, r, Message{})) })
		require.Len(t, erased.all(), 1)

		var perr *PanicError
		require.ErrorAs(t, erased.all()[0], &perr)
		assert.Equal(t, "kaboom", perr.Value)
		assert.NotEmpty(t, perr.Stack)
	})

	t.Run("a panicking predicate rejects the message", func(t *testing.T) {
		r := New()
		var erased collector[Error]
		Subscribe(ctx, r, erased.add)
		var got collector[Message]
		Where(r, func(Message) bool { panic("bad predicate") }).Subscribe(ctx, got.add)

		require.NoError(t, Publish(ctx, r, Message{}))
		assert.Empty(t, got.all())
		assert.Len(t, erased.all(), 1)
	})

	t.Run("failing error subscribers are not routed again", func(t *testing.T) {
		r := New()
		var calls atomic.Int32
		Subscribe(ctx, r, func(context.Context, Error) error {
			calls.Add(1)
			return errors.New("error handler failed")
		})
		Subscribe(ctx, r, func(context.Context, Message) error { return errors.New("boom") })

		require.NoError(t, Publish(ctx, r, Message{}))
		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestPublishNil(t *testing.T) {
	ctx := context.Background()
	r := New()
	var got collector[*Message]
	Subscribe(ctx, r, got.add)

	assert.ErrorIs(t, Publish[*Message](ctx, r, nil), ErrNilMessage)
	assert.ErrorIs(t, Publish[Texter](ctx, r, nil), ErrNilMessage)
	assert.Empty(t, got.all())
}

func TestPublishZero(t *testing.T) {
	ctx := context.Background()
	r := New()
	var got collector[Message]
	Subscribe(ctx, r, got.add)

	require.NoError(t, PublishZero[Message](ctx, r))
	assert.Equal(t, []Message{{}}, got.all())
	assert.ErrorIs(t, PublishZero[*Message](ctx, r), ErrNilMessage)
}

func TestAsyncSubscriber(t *testing.T) {
	ctx := context.Background()

	t.Run("handles one message at a time in publish order", func(t *testing.T) {
		r := New()
		var running, overlaps atomic.Int32
		var got collector[int]
		SubscribeAsync(ctx, r, func(ctx context.Context, v int) error {
			if running.Add(1) > 1 {
				overlaps.Add(1)
			}
			time.Sleep(time.Millisecond)
			running.Add(-1)
			return got.add(ctx, v)
		})

		for i := 1; i <= 10; i++ {
			require.NoError(t, Publish(ctx, r, i))
		}
		require.Eventually(t, func() bool { return got.len() == 10 }, time.Second, time.Millisecond)
		assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, got.all())
		assert.Zero(t, overlaps.Load())
	})

	t.Run("publish does not wait for the handler", func(t *testing.T) {
		r := New()
		release := make(chan struct{})
		var done atomic.Bool
		SubscribeAsync(ctx, r, func(context.Context, Message) error {
			<-release
			done.Store(true)
			return nil
		})

		require.NoError(t, Publish(ctx, r, Message{}))
		assert.False(t, done.Load())
		close(release)
		assert.Eventually(t, done.Load, time.Second, time.Millisecond)
	})

	t.Run("the handler outlives the publisher's context", func(t *testing.T) {
		r := New()
		var errs collector[error]
		SubscribeAsync(ctx, r, func(ctx context.Context, _ Message) error {
			return errs.add(ctx, ctx.Err())
		})

		pctx, cancel := context.WithCancel(ctx)
		require.NoError(t, Publish(pctx, r, Message{}))
		cancel()
		require.Eventually(t, func() bool { return errs.len() == 1 }, time.Second, time.Millisecond)
		assert.NoError(t, errs.all()[0])
	})
}

func TestUnsubscribe(t *testing.T) {
	ctx := context.Background()

	t.Run("stops deliveries and is idempotent", func(t *testing.T) {
		r := New()
		var got collector[Message]
		sub := Subscribe(ctx, r, got.add)
		assert.NotEmpty(t, sub.ID())
		assert.Equal(t, 1, SubscriberCount[Message](r))

		sub.Unsubscribe()
		assert.NotPanics(t, sub.Unsubscribe)
		assert.Zero(t, SubscriberCount[Message](r))

		require.NoError(t, Publish(ctx, r, Message{}))
		assert.Empty(t, got.all())
	})

	t.Run("cancelling the subscribe context unsubscribes", func(t *testing.T) {
		r := New()
		sctx, cancel := context.WithCancel(ctx)
		Subscribe(sctx, r, func(context.Context, Message) error { return nil })
		assert.Equal(t, 1, SubscriberCount[Message](r))

		cancel()
		assert.Eventually(t, func() bool { return SubscriberCount[Message](r) == 0 }, time.Second, time.Millisecond)
	})

	t.Run("subscription IDs are unique", func(t *testing.T) {
		r := New()
		a := Subscribe(ctx, r, func(context.Context, Message) error { return nil })
		b := Subscribe(ctx, r, func(context.Context, Message) error { return nil })
		assert.NotEqual(t, a.ID(), b.ID())
	})
}

func TestReentrantPublish(t *testing.T) {
	ctx := context.Background()
	r := New()
	var got collector[int]
	Subscribe(ctx, r, got.add)
	Subscribe(ctx, r, func(ctx context.Context, m Message) error {
		var late collector[Message]
		Subscribe(ctx, r, late.add)
		return Publish(ctx, r, len(m.Content))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Publish(ctx, r, Message{Content: "abc"})
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publishing from a subscriber deadlocked")
	}
	assert.Equal(t, []int{3}, got.all())
}

func TestTerminalChannels(t *testing.T) {
	ctx := context.Background()

	t.Run("completed channels ignore publishes", func(t *testing.T) {
		r := New()
		var got collector[Message]
		Subscribe(ctx, r, got.add)
		Complete[Message](ctx, r)

		require.NoError(t, Publish(ctx, r, Message{}))
		assert.Empty(t, got.all())
		assert.Zero(t, SubscriberCount[Message](r))

		var late collector[Message]
		Subscribe(ctx, r, late.add)
		assert.Zero(t, SubscriberCount[Message](r))
	})

	t.Run("faulted channels ignore publishes", func(t *testing.T) {
		r := New()
		var got collector[Message]
		Subscribe(ctx, r, got.add)
		Fail[Message](ctx, r, errors.New("closed"))

		require.NoError(t, Publish(ctx, r, Message{}))
		assert.Empty(t, got.all())
	})
}

type stubWirer struct {
	calls atomic.Int32
	err   error
	sink  *collector[Message]
}

func (w *stubWirer) Wire(ctx context.Context, r *Router) error {
	w.calls.Add(1)
	if w.sink != nil {
		Subscribe(ctx, r, w.sink.add)
	}
	return w.err
}

func TestWiring(t *testing.T) {
	ctx := context.Background()

	t.Run("wires once on the first publish", func(t *testing.T) {
		var got collector[Message]
		w := &stubWirer{sink: &got}
		r := New(WithWiring(w))
		assert.Zero(t, w.calls.Load())

		require.NoError(t, Publish(ctx, r, Message{Content: "1"}))
		require.NoError(t, Publish(ctx, r, Message{Content: "2"}))
		assert.Equal(t, int32(1), w.calls.Load())
		assert.Equal(t, []Message{{Content: "1"}, {Content: "2"}}, got.all())
	})

	t.Run("a wiring failure is returned from the first publish only", func(t *testing.T) {
		boom := errors.New("boom")
		w := &stubWirer{err: boom}
		r := New(WithWiring(w))

		assert.ErrorIs(t, Publish(ctx, r, Message{}), boom)
		assert.NoError(t, Publish(ctx, r, Message{}))
		assert.Equal(t, int32(1), w.calls.Load())
	})

	t.Run("concurrent publishers wire once", func(t *testing.T) {
		w := &stubWirer{}
		r := New(WithWiring(w))
		var wg sync.WaitGroup
		for range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = Publish(ctx, r, Message{})
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), w.calls.Load())
	})
}

func TestConcurrentPublishAndSubscribe(t *testing.T) {
	ctx := context.Background()
	r := New()
	var total atomic.Int64

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sub := Subscribe(ctx, r, func(context.Context, int) error {
				total.Add(1)
				return nil
			})
			defer sub.Unsubscribe()
		}()
		go func() {
			defer wg.Done()
			for i := range 100 {
				_ = Publish(ctx, r, i)
			}
		}()
	}
	wg.Wait()
	assert.Zero(t, SubscriberCount[int](r))
}
