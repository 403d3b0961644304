package runner_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/dsflow/pkg/domain"
	"github.com/aretw0/dsflow/pkg/runner"
)

func TestJSONHandler_OneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	h := runner.NewJSONHandler(&buf)
	ctx := context.Background()

	require.NoError(t, h.Handle(ctx, domain.StepEvent{RunID: "r1", Step: domain.StepPlanner, Kind: domain.EventStep, Text: "1. Load"}))
	require.NoError(t, h.Handle(ctx, domain.StepEvent{RunID: "r1", Kind: domain.EventDone}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first domain.StepEvent
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, domain.StepPlanner, first.Step)
	assert.Equal(t, "1. Load", first.Text)
	assert.Contains(t, lines[1], `"kind":"done"`)
}

func TestDrain_StopsHandlingAfterError(t *testing.T) {
	events := make(chan domain.StepEvent, 3)
	events <- domain.StepEvent{Step: domain.StepInput}
	events <- domain.StepEvent{Step: domain.StepCodeRouter}
	events <- domain.StepEvent{Step: domain.StepNoCode}
	close(events)

	var seen []domain.StepID
	err := runner.Drain(context.Background(), events, runner.HandlerFunc(func(_ context.Context, ev domain.StepEvent) error {
		seen = append(seen, ev.Step)
		if ev.Step == domain.StepCodeRouter {
			return assert.AnError
		}
		return nil
	}))

	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, []domain.StepID{domain.StepInput, domain.StepCodeRouter}, seen)
	assert.Empty(t, events)
}
