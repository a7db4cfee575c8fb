package publishers

import "context"

// Publisher delivers fetch events to one sink. Sinks holding connections
// also implement io.Closer.
type Publisher interface {
	ID() string
	Type() string
	Publish(ctx context.Context, evt Event) error
}
