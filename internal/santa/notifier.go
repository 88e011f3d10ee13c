package santa

import "context"

// NoticeKind distinguishes the direct messages the service emits.
type NoticeKind string

const (
	// NoticeRecipientAssigned tells a sender who they gift to.
	NoticeRecipientAssigned NoticeKind = "recipient_assigned"
	// NoticeGiftDelivered hands a recipient the gift addressed to them.
	NoticeGiftDelivered NoticeKind = "gift_delivered"
)

// Notice is a presentation-agnostic direct message. Rendering to text is the
// Notifier's concern; HasWish and HasGift tell it when to use a placeholder.
type Notice struct {
	Kind        NoticeKind
	GuildID     GuildID
	RoundID     string
	RecipientID UserID
	Wish        string
	HasWish     bool
	Comment     string
	Budget      string
	Gift        string
	HasGift     bool
}

// Notifier delivers private messages. Delivery is best-effort: an error means
// the user could not be reached and is never surfaced to the caller.
type Notifier interface {
	SendDirect(ctx context.Context, userID UserID, notice Notice) error
}

type discardNotifier struct{}

func (discardNotifier) SendDirect(context.Context, UserID, Notice) error {
	return nil
}

type outboundNotice struct {
	userID UserID
	notice Notice
}

func recipientNotice(event *GuildEvent, participant Participant) Notice {
	return Notice{
		Kind:        NoticeRecipientAssigned,
		GuildID:     GuildID(event.GuildID),
		RoundID:     event.RoundID,
		RecipientID: UserID(participant.RecipientID),
		Wish:        participant.Wish,
		HasWish:     participant.Wish != "",
		Comment:     event.Comment,
		Budget:      event.Budget,
	}
}

func giftNotice(event *GuildEvent, participant Participant) Notice {
	return Notice{
		Kind:        NoticeGiftDelivered,
		GuildID:     GuildID(event.GuildID),
		RoundID:     event.RoundID,
		RecipientID: UserID(participant.RecipientID),
		Comment:     event.Comment,
		Gift:        participant.Gift,
		HasGift:     participant.Gift != "",
	}
}
