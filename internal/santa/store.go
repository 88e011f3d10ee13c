package santa

import (
	"context"
	"errors"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	fieldGuildID     = "guild_id"
	fieldUserID      = "user_id"
	queryGuild       = fieldGuildID + " = ?"
	queryGuildMember = fieldGuildID + " = ? AND recipient_id = ?"
	queryGuildSender = fieldGuildID + " = ? AND sender_id = ?"
	orderJoined      = "joined_at_s ASC, recipient_id ASC"
	orderChanges     = "applied_at_s DESC, change_id DESC"
)

// Store scopes every read and write to one guild transaction.
type Store interface {
	// WithinGuild runs fn inside a transaction no other WithinGuild call for
	// the same guild can interleave with. Returning an error rolls it back.
	WithinGuild(ctx context.Context, guildID GuildID, fn func(Session) error) error
}

// Session is the transactional view of one guild. Lookups return nil without
// error when the record does not exist.
type Session interface {
	Guild() (*GuildEvent, error)
	InsertGuild(event *GuildEvent) error
	PutGuild(event *GuildEvent) error
	// DeleteGuild removes the guild record together with its participants.
	DeleteGuild() error
	Participant(userID UserID) (*Participant, error)
	ParticipantBySender(senderID UserID) (*Participant, error)
	Participants() ([]Participant, error)
	PutParticipant(participant *Participant) error
	DeleteParticipant(userID UserID) error
	AppendChange(change *GuildChange) error
	Changes() ([]GuildChange, error)
}

// GormStore implements Store on a gorm database.
type GormStore struct {
	db      *gorm.DB
	locksMu sync.Mutex
	locks   map[string]*guildLock
}

// guildLock is held by at most one transaction and dropped from the store once
// no caller waits on it.
type guildLock struct {
	mu      sync.Mutex
	holders int
}

// NewGormStore wraps the provided database handle.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, errMissingDatabase
	}
	return &GormStore{db: db, locks: make(map[string]*guildLock)}, nil
}

// WithinGuild serializes callers per guild in-process and locks the guild row
// for databases that support row locks.
func (store *GormStore) WithinGuild(ctx context.Context, guildID GuildID, fn func(Session) error) error {
	key := guildID.String()
	lock := store.acquire(key)
	defer store.release(key, lock)

	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(&gormSession{transaction: transaction, guildID: guildID.String()})
	})
}

func (store *GormStore) acquire(key string) *guildLock {
	store.locksMu.Lock()
	if store.locks == nil {
		store.locks = make(map[string]*guildLock)
	}
	lock, ok := store.locks[key]
	if !ok {
		lock = &guildLock{}
		store.locks[key] = lock
	}
	lock.holders++
	store.locksMu.Unlock()

	lock.mu.Lock()
	return lock
}

func (store *GormStore) release(key string, lock *guildLock) {
	lock.mu.Unlock()

	store.locksMu.Lock()
	defer store.locksMu.Unlock()
	lock.holders--
	if lock.holders == 0 {
		delete(store.locks, key)
	}
}

func (store *GormStore) lockCount() int {
	store.locksMu.Lock()
	defer store.locksMu.Unlock()
	return len(store.locks)
}

type gormSession struct {
	transaction *gorm.DB
	guildID     string
}

func (session *gormSession) Guild() (*GuildEvent, error) {
	var event GuildEvent
	err := session.transaction.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(queryGuild, session.guildID).
		Take(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (session *gormSession) InsertGuild(event *GuildEvent) error {
	event.GuildID = session.guildID
	err := session.transaction.Create(event).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrGuildAlreadyExists
	}
	return err
}

func (session *gormSession) PutGuild(event *GuildEvent) error {
	event.GuildID = session.guildID
	return session.transaction.Save(event).Error
}

func (session *gormSession) DeleteGuild() error {
	if err := session.transaction.Where(queryGuild, session.guildID).Delete(&Participant{}).Error; err != nil {
		return err
	}
	return session.transaction.Where(queryGuild, session.guildID).Delete(&GuildEvent{}).Error
}

func (session *gormSession) Participant(userID UserID) (*Participant, error) {
	return session.takeParticipant(queryGuildMember, userID)
}

func (session *gormSession) ParticipantBySender(senderID UserID) (*Participant, error) {
	return session.takeParticipant(queryGuildSender, senderID)
}

func (session *gormSession) takeParticipant(query string, userID UserID) (*Participant, error) {
	if userID == "" {
		return nil, nil
	}
	var participant Participant
	err := session.transaction.Where(query, session.guildID, userID.String()).Take(&participant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &participant, nil
}

func (session *gormSession) Participants() ([]Participant, error) {
	var participants []Participant
	if err := session.transaction.Where(queryGuild, session.guildID).Order(orderJoined).Find(&participants).Error; err != nil {
		return nil, err
	}
	return participants, nil
}

func (session *gormSession) PutParticipant(participant *Participant) error {
	participant.GuildID = session.guildID
	return session.transaction.Save(participant).Error
}

func (session *gormSession) DeleteParticipant(userID UserID) error {
	return session.transaction.Where(queryGuildMember, session.guildID, userID.String()).Delete(&Participant{}).Error
}

func (session *gormSession) AppendChange(change *GuildChange) error {
	change.GuildID = session.guildID
	return session.transaction.Create(change).Error
}

func (session *gormSession) Changes() ([]GuildChange, error) {
	var changes []GuildChange
	if err := session.transaction.Where(queryGuild, session.guildID).Order(orderChanges).Find(&changes).Error; err != nil {
		return nil, err
	}
	return changes, nil
}
