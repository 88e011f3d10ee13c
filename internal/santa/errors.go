package santa

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState indicates the operation is not permitted in the guild's current state.
	ErrInvalidState = errors.New("santa: invalid state")
	// ErrGuildAlreadyExists indicates an event is already running in the guild.
	ErrGuildAlreadyExists = errors.New("santa: guild event already exists")
	// ErrGuildNotFound indicates the guild has no event.
	ErrGuildNotFound = errors.New("santa: guild event not found")
	// ErrAlreadyParticipating indicates the caller is already enrolled.
	ErrAlreadyParticipating = errors.New("santa: already participating")
	// ErrNotParticipating indicates the caller is not enrolled.
	ErrNotParticipating = errors.New("santa: not participating")
	// ErrInsufficientParticipants indicates fewer than two participants are enrolled.
	ErrInsufficientParticipants = errors.New("santa: insufficient participants")
	// ErrNotAssignedAsSender indicates the caller has no recipient in this guild.
	ErrNotAssignedAsSender = errors.New("santa: not assigned as sender")
	// ErrParticipantNotFound indicates a moderator targeted an unenrolled identity.
	ErrParticipantNotFound = errors.New("santa: participant not found")
	// ErrAdminRequired indicates the caller lacks the moderator capability.
	ErrAdminRequired = errors.New("santa: admin capability required")

	errMissingDatabase   = errors.New("database handle is required")
	errMissingStore      = errors.New("store is required")
	errMissingIDProvider = errors.New("id provider is required")
)

// ServiceError carries a stable code alongside the underlying cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the operation.reason code of the failure.
func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew = "santa.service.new"

	reasonMissingStore       = "missing_store"
	reasonMissingIDProvider  = "missing_id_provider"
	reasonInvalidState       = "invalid_state"
	reasonAlreadyParticipant = "already_participating"
	reasonNotParticipant     = "not_participating"
	reasonInsufficient       = "insufficient_participants"
	reasonNotSender          = "not_assigned_as_sender"
	reasonParticipantMissing = "participant_not_found"
	reasonAdminRequired      = "admin_required"
	reasonGuildLoadFailed    = "guild_load_failed"
	reasonGuildSaveFailed    = "guild_save_failed"
	reasonGuildDeleteFailed  = "guild_delete_failed"
	reasonParticipantLoad    = "participant_load_failed"
	reasonParticipantSave    = "participant_save_failed"
	reasonParticipantDelete  = "participant_delete_failed"
	reasonParticipantList    = "participant_list_failed"
	reasonIDGeneration       = "id_generation_failed"
	reasonAuditInsertFailed  = "audit_insert_failed"
	reasonAuditQueryFailed   = "audit_query_failed"
	reasonAssignmentFailed   = "assignment_failed"
	reasonTransactionFailed  = "transaction_failed"
)

func operationCode(operation Operation) string {
	return "santa." + string(operation)
}

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

func guardError(operation Operation, cause error) error {
	return newServiceError(operationCode(operation), reasonInvalidState, cause)
}

func domainError(operation Operation, reason string, cause error) error {
	return newServiceError(operationCode(operation), reason, cause)
}
