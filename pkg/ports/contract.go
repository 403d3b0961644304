package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/dsflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStoreContract runs a suite of tests to verify that a RunStore
// implementation adheres to the defined interface contract.
func RunStoreContract(t *testing.T, store RunStore) {
	ctx := context.Background()
	runID := "contract-test-run-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		state := domain.NewState(runID, "classify churn", domain.DefaultLimits())
		state.Task = "classify churn"
		state.Dataset = &domain.Dataset{Name: "customers.csv", Columns: []string{"id", "churn"}}
		state.Apply(domain.Update{
			Messages:             []domain.Message{domain.StepMessage(domain.StepPlanner, "1. load data")},
			Feedback:             []domain.FeedbackEntry{{Iteration: 0, Kind: domain.FeedbackResult, Text: "Models: LR"}},
			IncrementImprovement: true,
		})

		err := store.Save(ctx, runID, state)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, runID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, state.RunID, loaded.RunID)
		assert.Equal(t, state.Task, loaded.Task)
		assert.Equal(t, state.Messages, loaded.Messages)
		assert.Equal(t, state.Feedback, loaded.Feedback)
		assert.Equal(t, 1, loaded.ImprovementCount)
		require.NotNil(t, loaded.Dataset)
		assert.Equal(t, []string{"id", "churn"}, loaded.Dataset.Columns)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, runID, domain.NewState(runID, "", domain.DefaultLimits()))
		require.NoError(t, err)

		err = store.Delete(ctx, runID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound, "Load after Delete should return ErrRunNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := runID + "-1"
		id2 := runID + "-2"
		_ = store.Save(ctx, id1, domain.NewState(id1, "", domain.DefaultLimits()))
		_ = store.Save(ctx, id2, domain.NewState(id2, "", domain.DefaultLimits()))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		runs, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, runs, id1)
		assert.Contains(t, runs, id2)
	})
}
