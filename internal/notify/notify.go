package notify

import (
	"context"
	"errors"
)

// Notifier delivers a plain-text order notification. Implementations are
// best-effort channels: callers never let a delivery failure affect the
// operation that triggered it.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Fanout sends the notification through every backend and reports the
// combined failures. A failing backend does not stop the others.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, text string) error {
	var errs []error

	for _, n := range f {
		if err := n.Notify(ctx, text); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Discard is used when no notification backend is configured.
type Discard struct{}

func (Discard) Notify(ctx context.Context, text string) error {
	return nil
}
