package claim

import (
	"context"
	"errors"
	"testing"

	"github.com/crossinsure/crossinsure/pkg/model"
	"github.com/m-mizutani/gt"
)

func TestStateMachine(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path in order", func(t *testing.T) {
		sm := &stateMachine{ref: "CLM-00000001"}
		for _, s := range model.ProcessingStates {
			gt.NoError(t, sm.advance(ctx, s))
		}
		gt.Equal(t, sm.state, model.StatePersisted)
		gt.True(t, sm.state.Terminal())
	})

	t.Run("skipping a state is rejected", func(t *testing.T) {
		sm := &stateMachine{ref: "CLM-00000002"}
		gt.NoError(t, sm.advance(ctx, model.StateCreated))
		err := sm.advance(ctx, model.StateEmbedded)
		gt.True(t, errors.Is(err, errInvalidTransition))
		gt.Equal(t, sm.state, model.StateCreated)
	})

	t.Run("must start at created", func(t *testing.T) {
		sm := &stateMachine{}
		gt.Error(t, sm.advance(ctx, model.StateImagesProcessed))
	})

	t.Run("fail from any state", func(t *testing.T) {
		sm := &stateMachine{}
		gt.NoError(t, sm.advance(ctx, model.StateCreated))
		gt.NoError(t, sm.advance(ctx, model.StateImagesProcessed))
		gt.Equal(t, sm.fail(), model.StateImagesProcessed)
		gt.Equal(t, sm.state, model.StateFailed)
		gt.Error(t, sm.advance(ctx, model.StatePersisted))
	})
}
