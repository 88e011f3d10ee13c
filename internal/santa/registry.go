package santa

import "context"

// Join enrolls userID in the guild's open event.
func (s *Service) Join(ctx context.Context, guildID GuildID, userID UserID) error {
	return s.execute(ctx, OperationJoin, guildID, userID, func(tx *guildTx) error {
		existing, err := s.loadParticipant(tx, OperationJoin, userID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domainError(OperationJoin, reasonAlreadyParticipant, ErrAlreadyParticipating)
		}
		return s.saveParticipant(tx, OperationJoin, &Participant{
			RecipientID:     userID.String(),
			JoinedAtSeconds: tx.now.Unix(),
		})
	})
}

// Leave withdraws userID from the guild's open event.
func (s *Service) Leave(ctx context.Context, guildID GuildID, userID UserID) error {
	return s.execute(ctx, OperationLeave, guildID, userID, func(tx *guildTx) error {
		existing, err := s.loadParticipant(tx, OperationLeave, userID)
		if err != nil {
			return err
		}
		if existing == nil {
			return domainError(OperationLeave, reasonNotParticipant, ErrNotParticipating)
		}
		if err := tx.session.DeleteParticipant(userID); err != nil {
			return s.storageError(OperationLeave, reasonParticipantDelete, err, guildID)
		}
		return nil
	})
}

// SetWish overwrites the wish userID's future sender will read. A nil error
// means the wish was accepted and the message carrying it may be redacted.
func (s *Service) SetWish(ctx context.Context, guildID GuildID, userID UserID, wish string) error {
	return s.execute(ctx, OperationWish, guildID, userID, func(tx *guildTx) error {
		participant, err := s.loadParticipant(tx, OperationWish, userID)
		if err != nil {
			return err
		}
		if participant == nil {
			return domainError(OperationWish, reasonNotParticipant, ErrNotParticipating)
		}
		participant.Wish = wish
		return s.saveParticipant(tx, OperationWish, participant)
	})
}

// Participants lists the enrolled identities without wishes, gifts or pairings.
func (s *Service) Participants(ctx context.Context, guildID GuildID) ([]ParticipantSummary, error) {
	var summaries []ParticipantSummary
	err := s.execute(ctx, OperationParticipants, guildID, "", func(tx *guildTx) error {
		participants, err := s.listParticipants(tx, OperationParticipants)
		if err != nil {
			return err
		}
		summaries = make([]ParticipantSummary, 0, len(participants))
		for _, participant := range participants {
			summaries = append(summaries, ParticipantSummary{
				UserID:  UserID(participant.RecipientID),
				HasWish: participant.Wish != "",
				HasGift: participant.Gift != "",
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summaries, nil
}
