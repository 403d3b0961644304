package runner

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/aretw0/dsflow/pkg/domain"
)

// JSONHandler writes each event as one JSON line.
type JSONHandler struct {
	Writer  io.Writer
	Encoder *json.Encoder
}

// NewJSONHandler creates a handler for JSON-Lines output.
func NewJSONHandler(w io.Writer) *JSONHandler {
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{
		Writer:  w,
		Encoder: json.NewEncoder(w),
	}
}

func (h *JSONHandler) Handle(ctx context.Context, event domain.StepEvent) error {
	return h.Encoder.Encode(event)
}
