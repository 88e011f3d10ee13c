package santa

import "fmt"

// State enumerates the lifecycle of a guild's event.
type State string

const (
	// StateNone means the guild has no event record.
	StateNone State = "none"
	// StateStarted means enrollment is open.
	StateStarted State = "started"
	// StateAssigned means every participant has a sender.
	StateAssigned State = "assigned"
	// StateDistributed means gifts have been delivered to recipients.
	StateDistributed State = "distributed"
)

// AllStates lists every lifecycle state.
var AllStates = []State{StateNone, StateStarted, StateAssigned, StateDistributed}

// Operation names a guarded guild command.
type Operation string

const (
	OperationStart           Operation = "start"
	OperationReset           Operation = "reset"
	OperationComment         Operation = "comment"
	OperationBudget          Operation = "budget"
	OperationJoin            Operation = "join"
	OperationLeave           Operation = "leave"
	OperationWish            Operation = "wish"
	OperationAssign          Operation = "assign"
	OperationUnassign        Operation = "unassign"
	OperationDistribute      Operation = "distribute"
	OperationSubmitGift      Operation = "submit_gift"
	OperationRevealRecipient Operation = "reveal_recipient"
	OperationMyGift          Operation = "my_gift"
	OperationSendTo          Operation = "send_to"
	OperationStatus          Operation = "status"
	OperationParticipants    Operation = "participants"
	OperationHistory         Operation = "history"
)

// StateSet is an explicit set of permitted states.
type StateSet map[State]struct{}

// NewStateSet builds a StateSet from the listed states.
func NewStateSet(states ...State) StateSet {
	set := make(StateSet, len(states))
	for _, state := range states {
		set[state] = struct{}{}
	}
	return set
}

// Contains reports whether state is a member of the set.
func (set StateSet) Contains(state State) bool {
	_, ok := set[state]
	return ok
}

var (
	anyEventState = NewStateSet(StateStarted, StateAssigned, StateDistributed)
	assignedState = NewStateSet(StateAssigned, StateDistributed)

	guardTable = map[Operation]StateSet{
		OperationStart:           NewStateSet(StateNone),
		OperationReset:           anyEventState,
		OperationComment:         anyEventState,
		OperationBudget:          anyEventState,
		OperationJoin:            NewStateSet(StateStarted),
		OperationLeave:           NewStateSet(StateStarted),
		OperationWish:            NewStateSet(StateStarted),
		OperationAssign:          NewStateSet(StateStarted),
		OperationUnassign:        NewStateSet(StateAssigned),
		OperationDistribute:      NewStateSet(StateAssigned),
		OperationSubmitGift:      assignedState,
		OperationRevealRecipient: assignedState,
		OperationMyGift:          NewStateSet(StateDistributed),
		OperationSendTo:          NewStateSet(StateDistributed),
		OperationStatus:          NewStateSet(AllStates...),
		OperationParticipants:    NewStateSet(AllStates...),
		OperationHistory:         NewStateSet(AllStates...),
	}

	// transitions lists operations that move the guild to a new state.
	transitions = map[Operation]State{
		OperationStart:      StateStarted,
		OperationReset:      StateNone,
		OperationAssign:     StateAssigned,
		OperationUnassign:   StateStarted,
		OperationDistribute: StateDistributed,
	}
)

// NextState returns the state an operation leaves the guild in when it
// succeeds. Service.execute applies it to every guarded operation.
func NextState(operation Operation, current State) State {
	if next, ok := transitions[operation]; ok {
		return next
	}
	return current
}

// CheckGuard returns nil when operation is permitted in state.
func CheckGuard(operation Operation, state State) error {
	permitted, ok := guardTable[operation]
	if !ok {
		return fmt.Errorf("%w: unknown operation %q", ErrInvalidState, operation)
	}
	if permitted.Contains(state) {
		return nil
	}
	switch {
	case state == StateNone:
		return fmt.Errorf("%w: %w", ErrInvalidState, ErrGuildNotFound)
	case operation == OperationStart:
		return fmt.Errorf("%w: %w", ErrInvalidState, ErrGuildAlreadyExists)
	default:
		return fmt.Errorf("%w: %s not permitted while %s", ErrInvalidState, operation, state)
	}
}

func stateOf(event *GuildEvent) State {
	if event == nil {
		return StateNone
	}
	return event.State
}
