package santa

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Start opens enrollment in a guild that has no event.
func (s *Service) Start(ctx context.Context, guildID GuildID, actorID UserID) (GuildStatus, error) {
	var status GuildStatus
	err := s.execute(ctx, OperationStart, guildID, actorID, func(tx *guildTx) error {
		roundID, err := s.idProvider.NewID()
		if err != nil {
			return s.storageError(OperationStart, reasonIDGeneration, err, guildID)
		}
		event := &GuildEvent{
			RoundID:          roundID,
			State:            NextState(OperationStart, StateNone),
			CreatedAtSeconds: tx.now.Unix(),
			UpdatedAtSeconds: tx.now.Unix(),
		}
		if err := tx.session.InsertGuild(event); err != nil {
			if errors.Is(err, ErrGuildAlreadyExists) {
				return guardError(OperationStart, fmt.Errorf("%w: %w", ErrInvalidState, ErrGuildAlreadyExists))
			}
			return s.storageError(OperationStart, reasonGuildSaveFailed, err, guildID)
		}
		tx.event = event
		status = statusOf(guildID, event, 0)
		return nil
	})
	if err != nil {
		return GuildStatus{}, err
	}
	s.loggerOrDefault().Info("guild event started",
		zap.String(fieldGuildID, guildID.String()),
		zap.String("round_id", status.RoundID))
	return status, nil
}

// Reset deletes the guild event and every participant, whatever the state.
func (s *Service) Reset(ctx context.Context, guildID GuildID, actorID UserID) error {
	return s.execute(ctx, OperationReset, guildID, actorID, func(tx *guildTx) error {
		if err := tx.session.DeleteGuild(); err != nil {
			return s.storageError(OperationReset, reasonGuildDeleteFailed, err, guildID)
		}
		tx.event = nil
		return nil
	})
}

// UpdateComment replaces the moderator's comment shown alongside recipients and gifts.
func (s *Service) UpdateComment(ctx context.Context, guildID GuildID, actorID UserID, comment string) error {
	return s.execute(ctx, OperationComment, guildID, actorID, func(tx *guildTx) error {
		tx.event.Comment = comment
		return s.saveGuild(tx, OperationComment)
	})
}

// UpdateBudget replaces the suggested budget per participant.
func (s *Service) UpdateBudget(ctx context.Context, guildID GuildID, actorID UserID, budget string) error {
	return s.execute(ctx, OperationBudget, guildID, actorID, func(tx *guildTx) error {
		tx.event.Budget = budget
		return s.saveGuild(tx, OperationBudget)
	})
}

// Assign pairs every participant with a sender and tells each sender who
// their recipient is. Nothing is written when fewer than two participants
// are enrolled.
func (s *Service) Assign(ctx context.Context, guildID GuildID, actorID UserID) (AssignmentResult, error) {
	var result AssignmentResult
	err := s.execute(ctx, OperationAssign, guildID, actorID, func(tx *guildTx) error {
		participants, err := s.listParticipants(tx, OperationAssign)
		if err != nil {
			return err
		}
		if len(participants) < 2 {
			return domainError(OperationAssign, reasonInsufficient, ErrInsufficientParticipants)
		}

		recipients := make([]UserID, 0, len(participants))
		for _, participant := range participants {
			recipients = append(recipients, UserID(participant.RecipientID))
		}
		senders, err := deriveAssignment(recipients, s.random)
		if err != nil {
			return s.storageError(OperationAssign, reasonAssignmentFailed, err, guildID)
		}
		if err := verifyDerangement(recipients, senders); err != nil {
			return s.storageError(OperationAssign, reasonAssignmentFailed, err, guildID)
		}

		for index := range participants {
			participant := &participants[index]
			participant.SenderID = senders[UserID(participant.RecipientID)].String()
			participant.Gift = ""
			if err := s.saveParticipant(tx, OperationAssign, participant); err != nil {
				return err
			}
			tx.notify(UserID(participant.SenderID), recipientNotice(tx.event, *participant))
		}

		result = AssignmentResult{RoundID: tx.event.RoundID, ParticipantCount: len(participants)}
		return nil
	})
	if err != nil {
		return AssignmentResult{}, err
	}
	s.loggerOrDefault().Info("guild participants assigned",
		zap.String(fieldGuildID, guildID.String()),
		zap.Int("participants", result.ParticipantCount))
	return result, nil
}

// Unassign clears every pairing and submitted gift and reopens enrollment.
func (s *Service) Unassign(ctx context.Context, guildID GuildID, actorID UserID) error {
	return s.execute(ctx, OperationUnassign, guildID, actorID, func(tx *guildTx) error {
		participants, err := s.listParticipants(tx, OperationUnassign)
		if err != nil {
			return err
		}
		for index := range participants {
			participant := &participants[index]
			participant.SenderID = ""
			participant.Gift = ""
			if err := s.saveParticipant(tx, OperationUnassign, participant); err != nil {
				return err
			}
		}
		return nil
	})
}

// Status summarizes the guild's event; a guild without event reports StateNone.
func (s *Service) Status(ctx context.Context, guildID GuildID) (GuildStatus, error) {
	var status GuildStatus
	err := s.execute(ctx, OperationStatus, guildID, "", func(tx *guildTx) error {
		if tx.event == nil {
			status = statusOf(guildID, nil, 0)
			return nil
		}
		participants, err := s.listParticipants(tx, OperationStatus)
		if err != nil {
			return err
		}
		status = statusOf(guildID, tx.event, len(participants))
		return nil
	})
	if err != nil {
		return GuildStatus{}, err
	}
	return status, nil
}

// History returns the guild's audit trail, newest first. It outlives resets.
func (s *Service) History(ctx context.Context, guildID GuildID) ([]GuildChange, error) {
	var changes []GuildChange
	err := s.execute(ctx, OperationHistory, guildID, "", func(tx *guildTx) error {
		loaded, err := tx.session.Changes()
		if err != nil {
			return s.storageError(OperationHistory, reasonAuditQueryFailed, err, guildID)
		}
		changes = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changes, nil
}

func statusOf(guildID GuildID, event *GuildEvent, participantCount int) GuildStatus {
	if event == nil {
		return GuildStatus{GuildID: guildID, State: StateNone}
	}
	return GuildStatus{
		GuildID:          guildID,
		RoundID:          event.RoundID,
		State:            event.State,
		Comment:          event.Comment,
		Budget:           event.Budget,
		ParticipantCount: participantCount,
	}
}
