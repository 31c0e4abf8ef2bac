package events

import "testing"

func TestSelectCandidateNoCandidates(t *testing.T) {
	picked, reason := SelectCandidate(nil)
	if picked != nil || reason != ReasonNoCandidates {
		t.Fatalf("picked=%v reason=%s", picked, reason)
	}
}

func TestSelectCandidateSingleStatePresent(t *testing.T) {
	candidates := []ConfigCandidate{
		{WorkflowDefinitionID: "d1", StatePropertyName: "Stage"},
		{WorkflowDefinitionID: "d2", StatePropertyName: "Status", StatePropertyPresent: true},
	}
	picked, reason := SelectCandidate(candidates)
	if reason != ReasonSingleStatePresent {
		t.Fatalf("reason = %s", reason)
	}
	if picked.WorkflowDefinitionID != "d2" {
		t.Fatalf("picked %s, want the candidate whose state property is in the payload", picked.WorkflowDefinitionID)
	}
}

func TestSelectCandidateMultiStatePresentPicksFirstInOrder(t *testing.T) {
	candidates := []ConfigCandidate{
		{WorkflowDefinitionID: "d1", StatePropertyName: "Status", StatePropertyPresent: true},
		{WorkflowDefinitionID: "d2", StatePropertyName: "Stage", StatePropertyPresent: true},
	}
	picked, reason := SelectCandidate(candidates)
	if reason != ReasonMultiStatePresent {
		t.Fatalf("reason = %s", reason)
	}
	if picked.WorkflowDefinitionID != "d1" {
		t.Fatalf("picked %s, want first by config-row order", picked.WorkflowDefinitionID)
	}
}

func TestSelectCandidateSingleCandidateNoState(t *testing.T) {
	candidates := []ConfigCandidate{
		{WorkflowDefinitionID: "d1", StatePropertyName: "Status"},
	}
	picked, reason := SelectCandidate(candidates)
	if reason != ReasonSingleCandidateNoState {
		t.Fatalf("reason = %s", reason)
	}
	if picked.WorkflowDefinitionID != "d1" {
		t.Fatalf("picked %s", picked.WorkflowDefinitionID)
	}
}

func TestSelectCandidateMultiCandidateNoState(t *testing.T) {
	candidates := []ConfigCandidate{
		{WorkflowDefinitionID: "d1", StatePropertyName: "Status"},
		{WorkflowDefinitionID: "d2", StatePropertyName: "Stage"},
	}
	picked, reason := SelectCandidate(candidates)
	if reason != ReasonMultiCandidateNoState {
		t.Fatalf("reason = %s", reason)
	}
	if picked.WorkflowDefinitionID != "d1" {
		t.Fatalf("picked %s, want first by order", picked.WorkflowDefinitionID)
	}
}
