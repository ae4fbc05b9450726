package chat

import (
	"context"

	"PPLive/tools/errs"
)

// Handler serves one inbound event.
type Handler interface {
	Event() string
	Handle(ctx context.Context, c *Conn, f *InFrame) error
}

type Dispatcher struct {
	handlers map[string]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

// Register replaces any handler already bound to the same event.
func (d *Dispatcher) Register(h Handler) { d.handlers[h.Event()] = h }

func (d *Dispatcher) Dispatch(ctx context.Context, c *Conn, f *InFrame) error {
	h, ok := d.handlers[f.Event]
	if !ok {
		return errs.ErrMalformed.WithDetail("no handler for event " + f.Event)
	}
	return h.Handle(ctx, c, f)
}


type funcHandler struct {
	event string
	fn    func(ctx context.Context, c *Conn, f *InFrame) error
}

// HandlerFunc adapts a plain function to Handler.
func HandlerFunc(event string, fn func(ctx context.Context, c *Conn, f *InFrame) error) Handler {
	return &funcHandler{event: event, fn: fn}
}

func (h *funcHandler) Event() string { return h.event }

func (h *funcHandler) Handle(ctx context.Context, c *Conn, f *InFrame) error {
	return h.fn(ctx, c, f)
}
