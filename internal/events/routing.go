package events

// ConfigCandidate is one enabled events-config row that matched the
// event's origin collection.
type ConfigCandidate struct {
	WorkflowDefinitionID string
	StatePropertyName    string
	OriginDatabaseName   string

	// StatePropertyPresent records whether the configured state property
	// appears in the current payload; candidates that can actually read a
	// state from this event win ties.
	StatePropertyPresent bool
}

// SelectionReason explains how a candidate was (or was not) chosen.
type SelectionReason string

const (
	ReasonNoCandidates           SelectionReason = "no_candidates"
	ReasonSingleStatePresent     SelectionReason = "single_state_present"
	ReasonMultiStatePresent      SelectionReason = "multi_state_present"
	ReasonSingleCandidateNoState SelectionReason = "single_candidate_no_state"
	ReasonMultiCandidateNoState  SelectionReason = "multi_candidate_no_state"
)

// SelectCandidate picks one config row from the matching candidates.
// Rows whose state property is present in the payload are preferred;
// ties resolve deterministically to the first candidate in config-row
// order. Pure function; ambiguity is reported through the reason, not an
// error.
func SelectCandidate(candidates []ConfigCandidate) (*ConfigCandidate, SelectionReason) {
	if len(candidates) == 0 {
		return nil, ReasonNoCandidates
	}

	var withState []ConfigCandidate
	for _, c := range candidates {
		if c.StatePropertyPresent {
			withState = append(withState, c)
		}
	}
	switch {
	case len(withState) == 1:
		return &withState[0], ReasonSingleStatePresent
	case len(withState) > 1:
		return &withState[0], ReasonMultiStatePresent
	case len(candidates) == 1:
		return &candidates[0], ReasonSingleCandidateNoState
	default:
		return &candidates[0], ReasonMultiCandidateNoState
	}
}
