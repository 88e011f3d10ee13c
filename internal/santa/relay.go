package santa

import (
	"context"

	"go.uber.org/zap"
)

// SubmitGift stores the gift senderID prepared for their recipient. A nil
// error means the gift was accepted and the message carrying it may be redacted.
func (s *Service) SubmitGift(ctx context.Context, guildID GuildID, senderID UserID, gift string) error {
	return s.execute(ctx, OperationSubmitGift, guildID, senderID, func(tx *guildTx) error {
		participant, err := s.loadAssignment(tx, OperationSubmitGift, senderID)
		if err != nil {
			return err
		}
		participant.Gift = gift
		return s.saveParticipant(tx, OperationSubmitGift, participant)
	})
}

// RevealRecipient returns who senderID gifts to and sends the same details to
// them privately.
func (s *Service) RevealRecipient(ctx context.Context, guildID GuildID, senderID UserID) (RecipientReveal, error) {
	var reveal RecipientReveal
	err := s.execute(ctx, OperationRevealRecipient, guildID, senderID, func(tx *guildTx) error {
		participant, err := s.loadAssignment(tx, OperationRevealRecipient, senderID)
		if err != nil {
			return err
		}
		notice := recipientNotice(tx.event, *participant)
		reveal = RecipientReveal{
			RecipientID: notice.RecipientID,
			Wish:        notice.Wish,
			HasWish:     notice.HasWish,
			Comment:     notice.Comment,
			Budget:      notice.Budget,
		}
		tx.notify(senderID, notice)
		return nil
	})
	if err != nil {
		return RecipientReveal{}, err
	}
	return reveal, nil
}

// Distribute delivers every gift, or a placeholder when none was submitted,
// to its recipient.
func (s *Service) Distribute(ctx context.Context, guildID GuildID, actorID UserID) error {
	delivered := 0
	err := s.execute(ctx, OperationDistribute, guildID, actorID, func(tx *guildTx) error {
		participants, err := s.listParticipants(tx, OperationDistribute)
		if err != nil {
			return err
		}
		for _, participant := range participants {
			tx.notify(UserID(participant.RecipientID), giftNotice(tx.event, participant))
		}
		delivered = len(participants)
		return nil
	})
	if err != nil {
		return err
	}
	s.loggerOrDefault().Info("guild gifts distributed",
		zap.String(fieldGuildID, guildID.String()),
		zap.Int("participants", delivered))
	return nil
}

// MyGift returns the gift addressed to userID and sends it to them privately.
func (s *Service) MyGift(ctx context.Context, guildID GuildID, userID UserID) (ReceivedGift, error) {
	var received ReceivedGift
	err := s.execute(ctx, OperationMyGift, guildID, userID, func(tx *guildTx) error {
		participant, err := s.loadParticipant(tx, OperationMyGift, userID)
		if err != nil {
			return err
		}
		if participant == nil {
			return domainError(OperationMyGift, reasonNotParticipant, ErrNotParticipating)
		}
		notice := giftNotice(tx.event, *participant)
		received = ReceivedGift{Gift: notice.Gift, HasGift: notice.HasGift}
		tx.notify(userID, notice)
		return nil
	})
	if err != nil {
		return ReceivedGift{}, err
	}
	return received, nil
}

// SendTo re-delivers target's gift on behalf of a moderator.
func (s *Service) SendTo(ctx context.Context, caller Caller, target UserID) error {
	if !caller.Admin {
		return domainError(OperationSendTo, reasonAdminRequired, ErrAdminRequired)
	}
	return s.execute(ctx, OperationSendTo, caller.GuildID, caller.UserID, func(tx *guildTx) error {
		participant, err := s.loadParticipant(tx, OperationSendTo, target)
		if err != nil {
			return err
		}
		if participant == nil {
			return domainError(OperationSendTo, reasonParticipantMissing, ErrParticipantNotFound)
		}
		tx.notify(target, giftNotice(tx.event, *participant))
		return nil
	})
}
