// Package broker implements the per message type channel that the mediator
// routes values through. A Topic remembers the last value it saw, replays it
// to late subscribers and fans every new value out to its live subscribers.
//
// Design decisions:
//   - Copy-on-write subscribers: the subscriber slice is replaced, never mutated,
//     so a publish iterates a frozen snapshot without holding the lock
//   - No callbacks under lock: subscribers may publish or subscribe re-entrantly
//   - Replay before live values: a subscriber joining while publishes are in
//     flight observes the replayed value before any newer one
//   - Terminal states: a topic is Active until it is Completed or Faulted
//   - Idempotent unsubscribe: a Subscription can be released any number of times
//
// Interface hierarchy:
//   - Topic: the channel itself
//     └── Subscriber: the callbacks registered on a topic
//     └── Subscription: handle detaching one subscriber from one topic
//
// Example usage:
//
//	topic := broker.NewTopic()
//	sub := topic.Subscribe(ctx, &broker.Subscriber{
//	    Next: func(ctx context.Context, v any) { fmt.Println(v) },
//	})
//	defer sub.Unsubscribe()
//
//	topic.Publish(ctx, "hello")
//
// The package is internal: the mediator owns the mapping from message types to
// topics and the typed wrappers around the untyped values stored here.
package broker
