package santa

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

var noOpLogger = zap.NewNop()

// auditedOperations lists the operations recorded in the guild change trail.
var auditedOperations = map[Operation]struct{}{
	OperationStart:      {},
	OperationReset:      {},
	OperationComment:    {},
	OperationBudget:     {},
	OperationJoin:       {},
	OperationLeave:      {},
	OperationAssign:     {},
	OperationUnassign:   {},
	OperationDistribute: {},
}

// ServiceConfig describes the dependencies of the event service.
type ServiceConfig struct {
	Store      Store
	Notifier   Notifier
	IDProvider IDProvider
	Random     RandomSource
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Service runs Secret Santa events. Every operation executes as one guild
// transaction; direct messages are sent only after that transaction commits.
type Service struct {
	store      Store
	notifier   Notifier
	idProvider IDProvider
	random     RandomSource
	clock      func() time.Time
	logger     *zap.Logger
}

// NewService validates the configuration and constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, newServiceError(opServiceNew, reasonMissingStore, errMissingStore)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, reasonMissingIDProvider, errMissingIDProvider)
	}

	notifier := cfg.Notifier
	if notifier == nil {
		notifier = discardNotifier{}
	}
	random := cfg.Random
	if random == nil {
		random = NewRandomSource()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		store:      cfg.Store,
		notifier:   notifier,
		idProvider: cfg.IDProvider,
		random:     random,
		clock:      clock,
		logger:     logger,
	}, nil
}

// guildTx is the state one guarded operation works on.
type guildTx struct {
	session Session
	guildID GuildID
	event   *GuildEvent
	now     time.Time
	outbox  []outboundNotice
}

func (tx *guildTx) notify(userID UserID, notice Notice) {
	if userID == "" {
		return
	}
	tx.outbox = append(tx.outbox, outboundNotice{userID: userID, notice: notice})
}

// execute loads the guild under lock, checks the guard of operation, applies
// the mutation, appends the audit record and commits. Notices queued by apply
// are delivered after commit.
func (s *Service) execute(ctx context.Context, operation Operation, guildID GuildID, actorID UserID, apply func(*guildTx) error) error {
	if s.store == nil {
		s.logError(operationCode(operation), reasonMissingStore, errMissingStore)
		return newServiceError(operationCode(operation), reasonMissingStore, errMissingStore)
	}

	var outbox []outboundNotice
	err := s.store.WithinGuild(ctx, guildID, func(session Session) error {
		event, err := session.Guild()
		if err != nil {
			return s.storageError(operation, reasonGuildLoadFailed, err, guildID)
		}
		from := stateOf(event)
		if err := CheckGuard(operation, from); err != nil {
			return guardError(operation, err)
		}

		tx := &guildTx{
			session: session,
			guildID: guildID,
			event:   event,
			now:     s.clock().UTC(),
		}
		if err := apply(tx); err != nil {
			return err
		}
		if err := s.advance(tx, operation, from); err != nil {
			return err
		}

		if _, ok := auditedOperations[operation]; ok {
			if err := s.appendChange(tx, operation, actorID, event, from); err != nil {
				return err
			}
		}
		outbox = tx.outbox
		return nil
	})
	if err != nil {
		var serviceErr *ServiceError
		if errors.As(err, &serviceErr) {
			return err
		}
		return s.storageError(operation, reasonTransactionFailed, err, guildID)
	}

	s.deliver(ctx, outbox)
	return nil
}

// advance moves a surviving event to the state the transition table names.
// Start and reset create and remove the record themselves.
func (s *Service) advance(tx *guildTx, operation Operation, from State) error {
	next := NextState(operation, from)
	if tx.event == nil || tx.event.State == next {
		return nil
	}
	tx.event.State = next
	return s.saveGuild(tx, operation)
}

func (s *Service) appendChange(tx *guildTx, operation Operation, actorID UserID, before *GuildEvent, from State) error {
	changeID, err := s.idProvider.NewID()
	if err != nil {
		return s.storageError(operation, reasonIDGeneration, err, tx.guildID)
	}
	roundID := ""
	if tx.event != nil {
		roundID = tx.event.RoundID
	} else if before != nil {
		roundID = before.RoundID
	}
	change := &GuildChange{
		ChangeID:         changeID,
		RoundID:          roundID,
		Operation:        operation,
		ActorID:          actorID.String(),
		FromState:        from,
		ToState:          stateOf(tx.event),
		AppliedAtSeconds: tx.now.Unix(),
	}
	if err := tx.session.AppendChange(change); err != nil {
		return s.storageError(operation, reasonAuditInsertFailed, err, tx.guildID)
	}
	return nil
}

// deliver is the single place notifier failures are discarded.
func (s *Service) deliver(ctx context.Context, outbox []outboundNotice) {
	for _, message := range outbox {
		if err := s.notifier.SendDirect(ctx, message.userID, message.notice); err != nil {
			s.loggerOrDefault().Debug("direct message not delivered",
				zap.String(fieldUserID, message.userID.String()),
				zap.String(fieldGuildID, message.notice.GuildID.String()),
				zap.String("kind", string(message.notice.Kind)),
				zap.Error(err))
		}
	}
}

func (s *Service) saveGuild(tx *guildTx, operation Operation) error {
	tx.event.UpdatedAtSeconds = tx.now.Unix()
	if err := tx.session.PutGuild(tx.event); err != nil {
		return s.storageError(operation, reasonGuildSaveFailed, err, tx.guildID)
	}
	return nil
}

func (s *Service) listParticipants(tx *guildTx, operation Operation) ([]Participant, error) {
	participants, err := tx.session.Participants()
	if err != nil {
		return nil, s.storageError(operation, reasonParticipantList, err, tx.guildID)
	}
	return participants, nil
}

func (s *Service) loadParticipant(tx *guildTx, operation Operation, userID UserID) (*Participant, error) {
	participant, err := tx.session.Participant(userID)
	if err != nil {
		return nil, s.storageError(operation, reasonParticipantLoad, err, tx.guildID)
	}
	return participant, nil
}

func (s *Service) loadAssignment(tx *guildTx, operation Operation, senderID UserID) (*Participant, error) {
	participant, err := tx.session.ParticipantBySender(senderID)
	if err != nil {
		return nil, s.storageError(operation, reasonParticipantLoad, err, tx.guildID)
	}
	if participant == nil {
		return nil, domainError(operation, reasonNotSender, ErrNotAssignedAsSender)
	}
	return participant, nil
}

func (s *Service) saveParticipant(tx *guildTx, operation Operation, participant *Participant) error {
	if err := tx.session.PutParticipant(participant); err != nil {
		return s.storageError(operation, reasonParticipantSave, err, tx.guildID)
	}
	return nil
}

func (s *Service) storageError(operation Operation, reason string, err error, guildID GuildID) error {
	code := operationCode(operation)
	s.logError(code, reason, err, zap.String(fieldGuildID, guildID.String()))
	return newServiceError(code, reason, err)
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil {
		return noOpLogger
	}
	if s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("santa service error", attrs...)
}
