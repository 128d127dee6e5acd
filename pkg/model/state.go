package model

// ProcessingState is a step of the claim pipeline. States only move forward.
type ProcessingState string

const (
	StateCreated         ProcessingState = "created"
	StateImagesProcessed ProcessingState = "images_processed"
	StateEmbedded        ProcessingState = "embedded"
	StateFingerprinted   ProcessingState = "fingerprinted"
	StateMatched         ProcessingState = "matched"
	StateScored          ProcessingState = "scored"
	StatePersisted       ProcessingState = "persisted"
	StateFailed          ProcessingState = "failed"
)

// ProcessingStates is the happy path in order
var ProcessingStates = []ProcessingState{
	StateCreated,
	StateImagesProcessed,
	StateEmbedded,
	StateFingerprinted,
	StateMatched,
	StateScored,
	StatePersisted,
}

// Next returns the state following s on the happy path, or "" for terminal states
func (s ProcessingState) Next() ProcessingState {
	for i, v := range ProcessingStates {
		if v == s && i+1 < len(ProcessingStates) {
			return ProcessingStates[i+1]
		}
	}
	return ""
}

func (s ProcessingState) Terminal() bool {
	return s == StatePersisted || s == StateFailed
}
