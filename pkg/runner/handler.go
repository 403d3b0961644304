package runner

import (
	"context"

	"github.com/aretw0/dsflow/pkg/domain"
)

// Handler presents run events to a consumer.
type Handler interface {
	Handle(ctx context.Context, event domain.StepEvent) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event domain.StepEvent) error

func (f HandlerFunc) Handle(ctx context.Context, event domain.StepEvent) error {
	return f(ctx, event)
}

// ContentRenderer is a function that transforms the content before outputting it.
// This allows for TUI rendering (markdown to ANSI) without coupling the core package.
type ContentRenderer func(string) (string, error)

// Drain hands every event to h until the stream closes.
// It stops early when ctx is done or h fails; the remaining events are
// still consumed so the producer never blocks.
func Drain(ctx context.Context, events <-chan domain.StepEvent, h Handler) error {
	var first error
	for ev := range events {
		if first != nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			first = err
			continue
		}
		if err := h.Handle(ctx, ev); err != nil {
			first = err
		}
	}
	return first
}
