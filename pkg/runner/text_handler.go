package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/dsflow/pkg/domain"
)

// TextHandler writes events for a human reader.
type TextHandler struct {
	Writer   io.Writer
	Renderer ContentRenderer
	// Explain prints the plain-language explanations attached to steps.
	Explain bool
	// Quiet suppresses intermediate steps; only the final step, errors and
	// the closing line are written.
	Quiet bool

	last domain.StepEvent
}

// TextHandlerOption defines configuration for TextHandler.
type TextHandlerOption func(*TextHandler)

// WithTextHandlerRenderer configures the content renderer.
func WithTextHandlerRenderer(renderer ContentRenderer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Renderer = renderer
	}
}

// WithExplanations toggles human explanations.
func WithExplanations(on bool) TextHandlerOption {
	return func(h *TextHandler) {
		h.Explain = on
	}
}

// WithQuiet toggles quiet mode.
func WithQuiet(on bool) TextHandlerOption {
	return func(h *TextHandler) {
		h.Quiet = on
	}
}

// NewTextHandler creates a handler for standard text output.
func NewTextHandler(w io.Writer, opts ...TextHandlerOption) *TextHandler {
	if w == nil {
		w = os.Stdout
	}
	h := &TextHandler{Writer: w, Explain: true}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *TextHandler) Handle(ctx context.Context, event domain.StepEvent) error {
	switch event.Kind {
	case domain.EventStep:
		h.last = event
		if h.Quiet {
			return nil
		}
		return h.writeStep(event)
	case domain.EventError:
		_, err := fmt.Fprintf(h.Writer, "\n[error] %s: %s\n", event.Step, event.Text)
		return err
	case domain.EventDepthExceeded:
		_, err := fmt.Fprintf(h.Writer, "\n[stopped] %s\n", event.Text)
		return err
	case domain.EventDone:
		if h.Quiet && h.last.Step != "" {
			if err := h.writeStep(h.last); err != nil {
				return err
			}
		}
		_, err := fmt.Fprintf(h.Writer, "\n[done] run %s\n", event.RunID)
		return err
	}
	return nil
}

func (h *TextHandler) writeStep(event domain.StepEvent) error {
	if _, err := fmt.Fprintf(h.Writer, "\n== %s ==\n", event.Step); err != nil {
		return err
	}
	if text := strings.TrimSpace(event.Text); text != "" {
		if _, err := fmt.Fprintln(h.Writer, h.render(text)); err != nil {
			return err
		}
	}
	if h.Explain && event.HumanExplanation != "" {
		if _, err := fmt.Fprintf(h.Writer, "\n> %s\n", strings.TrimSpace(event.HumanExplanation)); err != nil {
			return err
		}
	}
	return nil
}

func (h *TextHandler) render(text string) string {
	if h.Renderer == nil {
		return text
	}
	rendered, err := h.Renderer(text)
	if err != nil {
		return text
	}
	return strings.TrimSpace(rendered)
}
