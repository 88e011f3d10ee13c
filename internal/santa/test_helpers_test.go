package santa

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type sequentialIDGenerator struct {
	mu   sync.Mutex
	next int
}

func (g *sequentialIDGenerator) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("id-%04d", g.next), nil
}

type sentNotice struct {
	userID UserID
	notice Notice
}

type recordingNotifier struct {
	mu          sync.Mutex
	sent        []sentNotice
	unreachable map[UserID]bool
}

func (n *recordingNotifier) SendDirect(_ context.Context, userID UserID, notice Notice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.unreachable[userID] {
		return errors.New("user has direct messages disabled")
	}
	n.sent = append(n.sent, sentNotice{userID: userID, notice: notice})
	return nil
}

func (n *recordingNotifier) messages() []sentNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentNotice(nil), n.sent...)
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = nil
}

func openTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_", "=", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(&GuildEvent{}, &Participant{}, &GuildChange{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	return db
}

func newTestService(t *testing.T, notifier Notifier, logger *zap.Logger) (*Service, *gorm.DB) {
	t.Helper()
	db := openTestDatabase(t)
	store, err := NewGormStore(db)
	if err != nil {
		t.Fatalf("failed to build store: %v", err)
	}
	service, err := NewService(ServiceConfig{
		Store:      store,
		Notifier:   notifier,
		IDProvider: &sequentialIDGenerator{},
		Clock: func() time.Time {
			return time.Unix(1765000000, 0)
		},
		Logger: logger,
	})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return service, db
}

func mustStart(t *testing.T, service *Service, guildID GuildID, members ...UserID) {
	t.Helper()
	if _, err := service.Start(context.Background(), guildID, "moderator"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	for _, member := range members {
		if err := service.Join(context.Background(), guildID, member); err != nil {
			t.Fatalf("join %s failed: %v", member, err)
		}
	}
}

func loadParticipants(t *testing.T, db *gorm.DB, guildID GuildID) []Participant {
	t.Helper()
	var participants []Participant
	if err := db.Where("guild_id = ?", guildID.String()).Order("recipient_id ASC").Find(&participants).Error; err != nil {
		t.Fatalf("failed to load participants: %v", err)
	}
	return participants
}

func assertDerangement(t *testing.T, participants []Participant) {
	t.Helper()
	recipients := make([]UserID, 0, len(participants))
	senders := make(map[UserID]UserID, len(participants))
	for _, participant := range participants {
		recipients = append(recipients, UserID(participant.RecipientID))
		senders[UserID(participant.RecipientID)] = UserID(participant.SenderID)
	}
	if err := verifyDerangement(recipients, senders); err != nil {
		t.Fatalf("stored assignment is not a derangement: %v", err)
	}
}

func assertServiceCode(t *testing.T, err error, code string) {
	t.Helper()
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("expected service error, got %v", err)
	}
	if serviceErr.Code() != code {
		t.Fatalf("expected code %s, got %s", code, serviceErr.Code())
	}
}
