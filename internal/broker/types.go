package broker

import "context"

// State is the lifecycle state of a Topic.
type State uint8

const (
	Active State = iota
	Completed
	Faulted
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Completed:
		return "completed"
	case Faulted:
		return "faulted"
	default:
		return "unknown"
	}
}

type Subscription interface {
	ID() string
	Unsubscribe()
}

// Subscriber is the set of callbacks a Topic notifies. Only Next is required.
type Subscriber struct {
	// Name is used for diagnostics only.
	Name string
	// Filter gates every value, including the replayed one.
	Filter func(any) bool
	Next   func(context.Context, any)
	// OnError is called once when the topic faults.
	OnError func(context.Context, error)
	// OnCompleted is called once when the topic completes.
	OnCompleted func(context.Context)
	// OnDetach is called once when the subscription is released.
	OnDetach func()
}
