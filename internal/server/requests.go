package server

import (
	validation "github.com/go-ozzo/ozzo-validation"
)

const (
	maxWishLength    = 2000
	maxGiftLength    = 2000
	maxCommentLength = 1000
	maxBudgetLength  = 100
)

type wishRequestPayload struct {
	Wish string `json:"wish"`
}

func (req *wishRequestPayload) Validate() error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Wish, validation.Required, validation.Length(1, maxWishLength)),
	)
}

type giftRequestPayload struct {
	Gift string `json:"gift"`
}

func (req *giftRequestPayload) Validate() error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Gift, validation.Required, validation.Length(1, maxGiftLength)),
	)
}

type commentRequestPayload struct {
	Comment string `json:"comment"`
}

func (req *commentRequestPayload) Validate() error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Comment, validation.Length(0, maxCommentLength)),
	)
}

type budgetRequestPayload struct {
	Budget string `json:"budget"`
}

func (req *budgetRequestPayload) Validate() error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Budget, validation.Length(0, maxBudgetLength)),
	)
}

type acceptedResponsePayload struct {
	Accepted     bool `json:"accepted"`
	RedactSource bool `json:"redact_source"`
}

type statusResponsePayload struct {
	GuildID          string `json:"guild_id"`
	RoundID          string `json:"round_id,omitempty"`
	State            string `json:"state"`
	Comment          string `json:"comment"`
	Budget           string `json:"budget"`
	ParticipantCount int    `json:"participant_count"`
}

type participantPayload struct {
	UserID  string `json:"user_id"`
	HasWish bool   `json:"has_wish"`
	HasGift bool   `json:"has_gift"`
}

type participantsResponsePayload struct {
	Participants []participantPayload `json:"participants"`
}

type assignmentResponsePayload struct {
	RoundID          string `json:"round_id"`
	ParticipantCount int    `json:"participant_count"`
}

type recipientResponsePayload struct {
	RecipientID string `json:"recipient_id"`
	Wish        string `json:"wish"`
	HasWish     bool   `json:"has_wish"`
	Comment     string `json:"comment"`
	Budget      string `json:"budget"`
}

type giftResponsePayload struct {
	Gift    string `json:"gift"`
	HasGift bool   `json:"has_gift"`
}

type changePayload struct {
	ChangeID         string `json:"change_id"`
	RoundID          string `json:"round_id"`
	Operation        string `json:"op"`
	ActorID          string `json:"actor_id"`
	FromState        string `json:"from_state"`
	ToState          string `json:"to_state"`
	AppliedAtSeconds int64  `json:"applied_at_s"`
}

type historyResponsePayload struct {
	Changes []changePayload `json:"changes"`
}

type realtimePayload struct {
	Kind      string `json:"kind"`
	GuildID   string `json:"guild_id"`
	RoundID   string `json:"round_id"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
}
