package session

import "github.com/Sardor8866/festery/internal/model"

// State is the lifecycle state of a session.
type State string

const (
	StateActive    State = model.SessionStateActive
	StateSettling  State = model.SessionStateSettling // outcome decided, credit not yet acknowledged
	StateCashedOut State = model.SessionStateCashedOut
	StateBusted    State = model.SessionStateBusted
	StateCleared   State = model.SessionStateCleared
	StateRefunded  State = model.SessionStateRefunded
)

// Terminal reports whether s is a final state.
func (s State) Terminal() bool {
	switch s {
	case StateCashedOut, StateBusted, StateCleared, StateRefunded:
		return true
	}
	return false
}

// entry returns the ledger entry kind used to settle into s.
func (s State) entry() string {
	switch s {
	case StateCashedOut:
		return model.EntryCashOut
	case StateBusted:
		return model.EntryBust
	case StateCleared:
		return model.EntryClear
	case StateRefunded:
		return model.EntryRefund
	}
	return ""
}

// OutcomeKind classifies the result of one engine operation.
type OutcomeKind string

const (
	OutcomeAdvanced  OutcomeKind = "advanced"
	OutcomeBust      OutcomeKind = "bust"
	OutcomeCleared   OutcomeKind = "cleared"
	OutcomeCashedOut OutcomeKind = "cashed_out"
	OutcomeRefunded  OutcomeKind = "refunded"
)

func outcomeFor(s State) OutcomeKind {
	switch s {
	case StateCashedOut:
		return OutcomeCashedOut
	case StateBusted:
		return OutcomeBust
	case StateCleared:
		return OutcomeCleared
	case StateRefunded:
		return OutcomeRefunded
	}
	return OutcomeAdvanced
}
