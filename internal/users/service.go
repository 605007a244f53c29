package users

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/credtrack/credtrack/backend/internal/apperr"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrProfileNotFound indicates no profile row exists for the user.
	ErrProfileNotFound = errors.New("users: profile not found")

	errMissingDatabase = errors.New("database handle is required")
	errMissingUserID   = errors.New("user identifier is required")
	noOpLogger         = zap.NewNop()
)

const (
	opServiceNew = "users.service.new"
	opEnsure     = "users.ensure"
	opGet        = "users.get"
	opUpdate     = "users.update"
)

// Profile is the per-user account record, keyed by the subject of the
// identity token.
type Profile struct {
	UserID           string `gorm:"column:user_id;primaryKey;size:190;not null"`
	Email            string `gorm:"column:email;size:320;not null;default:''"`
	DisplayName      string `gorm:"column:display_name;size:320;not null;default:''"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Profile) TableName() string {
	return "user_profiles"
}

// ServiceConfig describes the dependencies of the profile service.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service manages user profiles. Ensure is called on every authenticated
// request, so a small in-process cache short-circuits the common path where
// the profile row already exists.
type Service struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
	seen   sync.Map
}

// NewService constructs the profile service with validated dependencies.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, apperr.New(opServiceNew, "missing_database", errMissingDatabase)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{db: cfg.Database, clock: clock, logger: logger}, nil
}

// Ensure guarantees a profile row exists for the user, creating one from the
// token claims on first sight and refreshing email and display name when the
// claims carry newer values.
func (s *Service) Ensure(ctx context.Context, userID, email, displayName string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return apperr.New(opEnsure, "missing_user_id", errMissingUserID)
	}
	if _, ok := s.seen.Load(userID); ok {
		return nil
	}

	var profile Profile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		now := s.clock().UTC().Unix()
		profile = Profile{
			UserID:           userID,
			Email:            strings.TrimSpace(email),
			DisplayName:      strings.TrimSpace(displayName),
			CreatedAtSeconds: now,
			UpdatedAtSeconds: now,
		}
		if err := s.db.WithContext(ctx).Create(&profile).Error; err != nil {
			s.logError(opEnsure, "insert_failed", err, zap.String("user_id", userID))
			return apperr.New(opEnsure, "insert_failed", err)
		}
		s.seen.Store(userID, struct{}{})
		return nil
	}
	if err != nil {
		s.logError(opEnsure, "query_failed", err, zap.String("user_id", userID))
		return apperr.New(opEnsure, "query_failed", err)
	}

	updates := map[string]interface{}{}
	if trimmed := strings.TrimSpace(email); trimmed != "" && trimmed != profile.Email {
		updates["email"] = trimmed
	}
	if trimmed := strings.TrimSpace(displayName); trimmed != "" && trimmed != profile.DisplayName {
		updates["display_name"] = trimmed
	}
	if len(updates) > 0 {
		updates["updated_at_s"] = s.clock().UTC().Unix()
		err := s.db.WithContext(ctx).
			Model(&Profile{}).
			Where("user_id = ?", userID).
			Updates(updates).Error
		if err != nil {
			s.logError(opEnsure, "update_failed", err, zap.String("user_id", userID))
		}
	}
	s.seen.Store(userID, struct{}{})
	return nil
}

// Get returns the user's profile.
func (s *Service) Get(ctx context.Context, userID string) (Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Profile{}, apperr.New(opGet, "missing_user_id", errMissingUserID)
	}
	var profile Profile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Profile{}, ErrProfileNotFound
	}
	if err != nil {
		s.logError(opGet, "query_failed", err, zap.String("user_id", userID))
		return Profile{}, apperr.New(opGet, "query_failed", err)
	}
	return profile, nil
}

// UpdateRequest carries a partial profile edit; nil fields stay untouched.
type UpdateRequest struct {
	Email       *string
	DisplayName *string
}

// Update edits the user's own profile.
func (s *Service) Update(ctx context.Context, userID string, request UpdateRequest) (Profile, error) {
	profile, err := s.Get(ctx, userID)
	if err != nil {
		return Profile{}, err
	}

	updates := map[string]interface{}{}
	if request.Email != nil {
		updates["email"] = strings.TrimSpace(*request.Email)
	}
	if request.DisplayName != nil {
		updates["display_name"] = strings.TrimSpace(*request.DisplayName)
	}
	if len(updates) == 0 {
		return profile, nil
	}
	updates["updated_at_s"] = s.clock().UTC().Unix()

	err = s.db.WithContext(ctx).
		Model(&Profile{}).
		Where("user_id = ?", profile.UserID).
		Updates(updates).Error
	if err != nil {
		s.logError(opUpdate, "update_failed", err, zap.String("user_id", userID))
		return Profile{}, apperr.New(opUpdate, "update_failed", err)
	}
	return s.Get(ctx, userID)
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
	s.logger.Error("users service error", attrs...)
}
