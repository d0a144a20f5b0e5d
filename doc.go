// Package mediator implements an in-process, type-routed publish/subscribe
// message router.
//
// Messages are routed by the static type they are published with. Every
// message type owns a channel that remembers the last value published on it,
// and a new subscriber receives that value first. Publishing a value of type T
// reaches the subscribers of T and of every ancestor of T: the interfaces T
// implements and the types declared with Extend.
//
// Subscribers come in four shapes: synchronous, asynchronous, and either of
// those behind a filter. Synchronous subscribers run on the publishing
// goroutine. Asynchronous subscribers run on a goroutine of their own and see
// one message at a time, in delivery order.
//
// A failing subscriber never affects the publisher or the other subscribers.
// Its error, or the panic it raised, is published back on the router twice:
// as an ErrorEnvelope[T] carrying the original message, then as an Error for
// subscribers interested in every failure.
//
//	r := mediator.New()
//	sub := mediator.Subscribe(ctx, r, func(ctx context.Context, m Greeting) error {
//		fmt.Println(m.Text)
//		return nil
//	})
//	defer sub.Unsubscribe()
//	_ = mediator.Publish(ctx, r, Greeting{Text: "hello"})
//
// Handlers can also be registered by name in a wiring.Catalog, which attaches
// them to the router on its first Publish.
package mediator
