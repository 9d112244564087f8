package process

import "github.com/acme/crm-telephony-sync/internal/domain"

// legalTransitions encodes the Process state machine. Every non-terminal
// state may also transition to FAILED; that edge is checked separately in
// CanTransition rather than repeated in every entry.
var legalTransitions = map[domain.ProcessState][]domain.ProcessState{
	domain.ProcessStateInitializing: {
		domain.ProcessStateFetchingTotal,
		domain.ProcessStateFetchingPage,
	},
	domain.ProcessStateFetchingTotal: {
		domain.ProcessStateQueuingPages,
	},
	domain.ProcessStateFetchingPage: {
		domain.ProcessStateProcessingBatches,
	},
	domain.ProcessStateQueuingPages: {
		domain.ProcessStateProcessingBatches,
	},
	domain.ProcessStateProcessingBatches: {
		domain.ProcessStateCompleting,
	},
	domain.ProcessStateCompleting: {
		domain.ProcessStateCompleted,
	},
	domain.ProcessStateCompleted: {},
	domain.ProcessStateFailed:    {},
}

// CanTransition reports whether moving from `from` to `to` is legal.
// Transitioning a state to itself is always legal (idempotent redelivery
// safety); any non-terminal state may move to FAILED.
func CanTransition(from, to domain.ProcessState) bool {
	if from == to {
		return true
	}
	if from.Terminal() {
		return false
	}
	if to == domain.ProcessStateFailed {
		return true
	}
	for _, allowed := range legalTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
