package process

import (
	"testing"

	"github.com/acme/crm-telephony-sync/internal/domain"
)

func TestCanTransitionHappyPath(t *testing.T) {
	steps := []domain.ProcessState{
		domain.ProcessStateInitializing,
		domain.ProcessStateFetchingTotal,
		domain.ProcessStateQueuingPages,
		domain.ProcessStateProcessingBatches,
		domain.ProcessStateCompleting,
		domain.ProcessStateCompleted,
	}
	for i := 0; i < len(steps)-1; i++ {
		if !CanTransition(steps[i], steps[i+1]) {
			t.Fatalf("expected %s -> %s to be legal", steps[i], steps[i+1])
		}
	}
}

func TestCanTransitionCursorPath(t *testing.T) {
	if !CanTransition(domain.ProcessStateInitializing, domain.ProcessStateFetchingPage) {
		t.Fatalf("expected INITIALIZING -> FETCHING_PAGE to be legal for cursor-based adapters")
	}
	if !CanTransition(domain.ProcessStateFetchingPage, domain.ProcessStateProcessingBatches) {
		t.Fatalf("expected FETCHING_PAGE -> PROCESSING_BATCHES to be legal")
	}
}

func TestCanTransitionSelfIsAlwaysLegal(t *testing.T) {
	for _, s := range []domain.ProcessState{
		domain.ProcessStateInitializing,
		domain.ProcessStateProcessingBatches,
		domain.ProcessStateCompleted,
		domain.ProcessStateFailed,
	} {
		if !CanTransition(s, s) {
			t.Fatalf("expected %s -> %s (self) to be legal", s, s)
		}
	}
}

func TestCanTransitionAnyNonTerminalToFailed(t *testing.T) {
	for _, s := range []domain.ProcessState{
		domain.ProcessStateInitializing,
		domain.ProcessStateFetchingTotal,
		domain.ProcessStateFetchingPage,
		domain.ProcessStateQueuingPages,
		domain.ProcessStateProcessingBatches,
		domain.ProcessStateCompleting,
	} {
		if !CanTransition(s, domain.ProcessStateFailed) {
			t.Fatalf("expected %s -> FAILED to be legal", s)
		}
	}
}

func TestCanTransitionTerminalStatesAreSinks(t *testing.T) {
	for _, terminal := range []domain.ProcessState{domain.ProcessStateCompleted, domain.ProcessStateFailed} {
		for _, to := range []domain.ProcessState{
			domain.ProcessStateInitializing,
			domain.ProcessStateFetchingTotal,
			domain.ProcessStateProcessingBatches,
		} {
			if CanTransition(terminal, to) {
				t.Fatalf("expected %s -> %s to be illegal, terminal states must be sinks", terminal, to)
			}
		}
	}
}

func TestCanTransitionRejectsSkippingSteps(t *testing.T) {
	if CanTransition(domain.ProcessStateInitializing, domain.ProcessStateProcessingBatches) {
		t.Fatalf("expected INITIALIZING -> PROCESSING_BATCHES to be illegal, must queue pages first")
	}
	if CanTransition(domain.ProcessStateFetchingTotal, domain.ProcessStateCompleted) {
		t.Fatalf("expected FETCHING_TOTAL -> COMPLETED to be illegal")
	}
}
