package users

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrInvalidIdentity indicates the session did not contain a usable identifier.
var ErrInvalidIdentity = errors.New("users: invalid identity")

// ServiceConfig describes the dependencies required for profile tracking.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
}

// Service remembers display names so direct messages can name people.
type Service struct {
	db    *gorm.DB
	now   func() time.Time
	cache sync.Map
}

// NewService constructs the profile service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		db:    cfg.Database,
		now:   clock,
		cache: sync.Map{},
	}, nil
}

// Remember upserts the profile of userID. An empty display name keeps the
// stored one.
func (s *Service) Remember(userID, displayName string) error {
	userID = normalize(userID)
	if userID == "" {
		return ErrInvalidIdentity
	}
	displayName = normalize(displayName)
	if cached, ok := s.cache.Load(userID); ok && (displayName == "" || cached == displayName) {
		return nil
	}

	profile := Profile{UserID: userID, DisplayName: displayName, LastSeenAt: s.now().UTC()}
	updateColumns := []string{"last_seen_at"}
	if displayName != "" {
		updateColumns = append(updateColumns, "display_name")
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns(updateColumns),
	}).Create(&profile).Error
	if err != nil {
		return err
	}
	if displayName != "" {
		s.cache.Store(userID, displayName)
	}
	return nil
}

// DisplayName returns the remembered name of userID, or userID itself when
// none is known.
func (s *Service) DisplayName(userID string) string {
	userID = normalize(userID)
	if cached, ok := s.cache.Load(userID); ok {
		if name, ok := cached.(string); ok && name != "" {
			return name
		}
	}

	var profile Profile
	err := s.db.Where("user_id = ?", userID).Take(&profile).Error
	if err != nil || profile.DisplayName == "" {
		return userID
	}
	s.cache.Store(userID, profile.DisplayName)
	return profile.DisplayName
}
