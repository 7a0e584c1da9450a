package reviews

import "slices"

// State is a step in the per-record pipeline.
type State string

const (
	StateReceived             State = "received"
	StateClassifying          State = "classifying"
	StateClassificationFailed State = "classification_failed"
	StateClassified           State = "classified"
	StateDeciding             State = "deciding"
	StateNoResponseNeeded     State = "no_response_needed"
	StateComposing            State = "composing"
	StateDispatching          State = "dispatching"
	StateDispatched           State = "dispatched"
	StateDispatchFailed       State = "dispatch_failed"
	StateDone                 State = "done"
)

var transitions = map[State][]State{
	StateReceived:         {StateClassifying},
	StateClassifying:      {StateClassificationFailed, StateClassified},
	StateClassified:       {StateDeciding},
	StateDeciding:         {StateNoResponseNeeded, StateComposing},
	StateNoResponseNeeded: {StateDone},
	StateComposing:        {StateDispatching, StateDispatchFailed},
	StateDispatching:      {StateDispatched, StateDispatchFailed},
	StateDispatched:       {StateDone},
	StateDispatchFailed:   {StateDone},
}

// CanTransition reports whether the pipeline may move from one state to the next.
func CanTransition(from, to State) bool {
	return slices.Contains(transitions[from], to)
}

// IsTerminal reports whether no further transition leaves s.
func (s State) IsTerminal() bool {
	return len(transitions[s]) == 0
}
