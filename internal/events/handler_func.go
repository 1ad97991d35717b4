package events

import "context"

// HandlerFunc позволяет использовать функцию как Handler
type HandlerFunc struct {
	HandlerName string
	Fn          func(ctx context.Context, event Event) error
}

func (h HandlerFunc) Name() string { return h.HandlerName }

func (h HandlerFunc) Handle(ctx context.Context, event Event, _ []byte) error {
	return h.Fn(ctx, event)
}
