package santa

import (
	"errors"
	"fmt"
	"strings"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidGuildID indicates that a guild identifier is empty or exceeds storage bounds.
	ErrInvalidGuildID = errors.New("santa: invalid guild id")
	// ErrInvalidUserID indicates that a user identifier is empty or exceeds storage bounds.
	ErrInvalidUserID = errors.New("santa: invalid user id")
)

// GuildID represents a validated guild identifier.
type GuildID string

// NewGuildID validates raw input and returns a GuildID.
func NewGuildID(rawInput string) (GuildID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidGuildID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidGuildID, maxIdentifierLength)
	}
	return GuildID(trimmed), nil
}

// String returns the underlying string identifier.
func (id GuildID) String() string {
	return string(id)
}

// UserID represents a validated user identifier.
type UserID string

// NewUserID validates raw input and returns a UserID.
func NewUserID(rawInput string) (UserID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidUserID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidUserID, maxIdentifierLength)
	}
	return UserID(trimmed), nil
}

// String returns the underlying string identifier.
func (id UserID) String() string {
	return string(id)
}

// Caller identifies who issued a command and whether they moderate the guild.
type Caller struct {
	GuildID GuildID
	UserID  UserID
	Admin   bool
}

// GuildEvent is the persisted event record of a guild. A guild without a
// record is in StateNone.
type GuildEvent struct {
	GuildID          string `gorm:"column:guild_id;primaryKey;size:190;not null"`
	RoundID          string `gorm:"column:round_id;size:64;not null"`
	State            State  `gorm:"column:state;size:16;not null"`
	Comment          string `gorm:"column:comment;type:text;not null;default:''"`
	Budget           string `gorm:"column:budget;type:text;not null;default:''"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (GuildEvent) TableName() string {
	return "santa_guilds"
}

// Participant is keyed by the participant's own identity (RecipientID).
// SenderID names whoever must send this participant a gift.
type Participant struct {
	GuildID         string `gorm:"column:guild_id;primaryKey;size:190;not null;index:idx_participants_guild_sender,priority:1"`
	RecipientID     string `gorm:"column:recipient_id;primaryKey;size:190;not null"`
	SenderID        string `gorm:"column:sender_id;size:190;not null;default:'';index:idx_participants_guild_sender,priority:2"`
	Wish            string `gorm:"column:wish;type:text;not null;default:''"`
	Gift            string `gorm:"column:gift;type:text;not null;default:''"`
	JoinedAtSeconds int64  `gorm:"column:joined_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Participant) TableName() string {
	return "santa_participants"
}

// GuildChange captures an append-only audit trail of guild state changes.
type GuildChange struct {
	ChangeID         string    `gorm:"column:change_id;primaryKey;size:64;not null"`
	GuildID          string    `gorm:"column:guild_id;size:190;not null;index:idx_guild_changes_guild_time,priority:1"`
	RoundID          string    `gorm:"column:round_id;size:64;not null"`
	Operation        Operation `gorm:"column:op;size:32;not null"`
	ActorID          string    `gorm:"column:actor_id;size:190;not null"`
	FromState        State     `gorm:"column:from_state;size:16;not null"`
	ToState          State     `gorm:"column:to_state;size:16;not null"`
	AppliedAtSeconds int64     `gorm:"column:applied_at_s;not null;index:idx_guild_changes_guild_time,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (GuildChange) TableName() string {
	return "santa_guild_changes"
}

// GuildStatus is a read-only summary of a guild's event.
type GuildStatus struct {
	GuildID          GuildID
	RoundID          string
	State            State
	Comment          string
	Budget           string
	ParticipantCount int
}

// ParticipantSummary exposes enrollment without revealing wishes, gifts or pairings.
type ParticipantSummary struct {
	UserID  UserID
	HasWish bool
	HasGift bool
}

// RecipientReveal tells a sender who they gift to.
type RecipientReveal struct {
	RecipientID UserID
	Wish        string
	HasWish     bool
	Comment     string
	Budget      string
}

// ReceivedGift is the gift addressed to a participant.
type ReceivedGift struct {
	Gift    string
	HasGift bool
}

// AssignmentResult summarizes a completed assignment run.
type AssignmentResult struct {
	RoundID          string
	ParticipantCount int
}
