package server

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/santa/internal/santa"
)

const (
	wishPlaceholder = "none specified"
	giftPlaceholder = "no gift submitted"
)

var errMissingDispatcher = errors.New("realtime dispatcher dependency required")

// DisplayNameResolver names users in rendered messages.
type DisplayNameResolver interface {
	DisplayName(userID string) string
}

// DirectNotifier renders notices to text and pushes them to the user's
// notification streams.
type DirectNotifier struct {
	dispatcher *RealtimeDispatcher
	names      DisplayNameResolver
	clock      func() time.Time
}

// NewDirectNotifier wires a notifier to the dispatcher. names may be nil, in
// which case users are named by their identifier.
func NewDirectNotifier(dispatcher *RealtimeDispatcher, names DisplayNameResolver) (*DirectNotifier, error) {
	if dispatcher == nil {
		return nil, errMissingDispatcher
	}
	return &DirectNotifier{dispatcher: dispatcher, names: names, clock: time.Now}, nil
}

// SendDirect implements santa.Notifier.
func (n *DirectNotifier) SendDirect(ctx context.Context, userID santa.UserID, notice santa.Notice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return n.dispatcher.Publish(RealtimeMessage{
		UserID:    userID.String(),
		EventType: RealtimeEventDirectMessage,
		Kind:      string(notice.Kind),
		GuildID:   notice.GuildID.String(),
		RoundID:   notice.RoundID,
		Text:      renderNotice(notice, n.displayName),
		Timestamp: n.clock().UTC(),
	})
}

func (n *DirectNotifier) displayName(userID santa.UserID) string {
	if n.names == nil {
		return userID.String()
	}
	return n.names.DisplayName(userID.String())
}

func renderNotice(notice santa.Notice, displayName func(santa.UserID) string) string {
	var builder strings.Builder
	switch notice.Kind {
	case santa.NoticeRecipientAssigned:
		builder.WriteString("You are the Secret Santa of ")
		builder.WriteString(displayName(notice.RecipientID))
		builder.WriteString(".\nTheir wish: ")
		builder.WriteString(valueOr(notice.Wish, notice.HasWish, wishPlaceholder))
		if notice.Budget != "" {
			builder.WriteString("\nBudget: ")
			builder.WriteString(notice.Budget)
		}
	case santa.NoticeGiftDelivered:
		builder.WriteString("Your Secret Santa gift has arrived!\nGift: ")
		builder.WriteString(valueOr(notice.Gift, notice.HasGift, giftPlaceholder))
	default:
		builder.WriteString(string(notice.Kind))
	}
	if notice.Comment != "" {
		builder.WriteString("\nFrom the organizers: ")
		builder.WriteString(notice.Comment)
	}
	return builder.String()
}

func valueOr(value string, present bool, placeholder string) string {
	if !present {
		return placeholder
	}
	return value
}
