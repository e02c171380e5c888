package dispatch

import "context"

// Button is one labelled inline control.
type Button struct {
	Label string
	Data  string
}

// Response is one outbound message.
type Response struct {
	Text    string
	Buttons [][]Button

	// Replace asks the gateway to edit the message that carried the pressed
	// button instead of sending a new one. Gateways fall back to sending.
	Replace bool
}

// Sink delivers responses for one request, in order.
type Sink interface {
	Send(ctx context.Context, resp Response) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, resp Response) error

// Send calls f.
func (f SinkFunc) Send(ctx context.Context, resp Response) error {
	return f(ctx, resp)
}
