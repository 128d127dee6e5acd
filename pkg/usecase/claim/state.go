package claim

import (
	"context"

	"github.com/crossinsure/crossinsure/pkg/model"
	"github.com/crossinsure/crossinsure/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

var errInvalidTransition = goerr.New("invalid state transition")

// stateMachine tracks one pipeline invocation. It only moves one step forward at a time.
type stateMachine struct {
	ref   model.ClaimReferenceID
	state model.ProcessingState
}

func (m *stateMachine) advance(ctx context.Context, to model.ProcessingState) error {
	expected := model.StateCreated
	if m.state != "" {
		expected = m.state.Next()
	}
	if to != expected {
		return goerr.Wrap(errInvalidTransition, "state skipped",
			goerr.V("from", m.state),
			goerr.V("to", to),
			goerr.V("expected", expected),
		)
	}

	m.state = to
	logging.From(ctx).Debug("claim state changed", "reference_id", m.ref, "state", to)
	return nil
}

func (m *stateMachine) fail() model.ProcessingState {
	from := m.state
	m.state = model.StateFailed
	return from
}
