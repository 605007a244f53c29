package events

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/credtrack/credtrack/backend/internal/apperr"
	"github.com/credtrack/credtrack/backend/internal/identifier"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrEventNotFound indicates the referenced event does not exist.
	ErrEventNotFound = errors.New("events: event not found")
	// ErrNotOwner indicates the caller did not create the event.
	ErrNotOwner = errors.New("events: caller does not own event")

	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingUserID     = errors.New("user identifier is required")
	errMissingEventID    = errors.New("event identifier is required")
	noOpLogger           = zap.NewNop()
)

const (
	opServiceNew = "events.service.new"
	opCreate     = "events.create"
	opList       = "events.list"
	opGet        = "events.get"
	opUpdate     = "events.update"
	opDelete     = "events.delete"
)

// Event is a community announcement shared across all users.
type Event struct {
	ID               string `gorm:"column:id;primaryKey;size:190;not null"`
	Title            string `gorm:"column:title;size:320;not null;default:''"`
	Description      string `gorm:"column:description;type:text;not null;default:''"`
	EventAtSeconds   *int64 `gorm:"column:event_at_s"`
	Link             string `gorm:"column:link;size:512;not null;default:''"`
	Type             string `gorm:"column:type;size:64;not null;default:'general'"`
	CreatedBy        string `gorm:"column:created_by;size:190;not null;index"`
	CreatedByName    string `gorm:"column:created_by_name;size:320;not null;default:''"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null;index"`
}

// TableName provides the explicit table binding for GORM.
func (Event) TableName() string {
	return "events"
}

// ServiceConfig describes the dependencies of the event service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider identifier.Provider
	Logger     *zap.Logger
}

// Service manages shared community events. Events whose date has passed are
// pruned lazily on the next list.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider identifier.Provider
	logger     *zap.Logger
}

// NewService constructs the event service with validated dependencies.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, apperr.New(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, apperr.New(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{db: cfg.Database, clock: clock, idProvider: cfg.IDProvider, logger: logger}, nil
}

// CreateRequest carries a new event's fields.
type CreateRequest struct {
	Title         string
	Description   string
	EventAt       *int64
	Link          string
	Type          string
	CreatedByName string
}

// Create persists a new event attributed to the caller.
func (s *Service) Create(ctx context.Context, userID string, request CreateRequest) (Event, error) {
	if strings.TrimSpace(userID) == "" {
		return Event{}, apperr.New(opCreate, "missing_user_id", errMissingUserID)
	}
	eventID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreate, "id_generation_failed", err, zap.String("user_id", userID))
		return Event{}, apperr.New(opCreate, "id_generation_failed", err)
	}

	eventType := strings.TrimSpace(request.Type)
	if eventType == "" {
		eventType = "general"
	}
	event := Event{
		ID:               eventID,
		Title:            strings.TrimSpace(request.Title),
		Description:      request.Description,
		EventAtSeconds:   request.EventAt,
		Link:             strings.TrimSpace(request.Link),
		Type:             eventType,
		CreatedBy:        userID,
		CreatedByName:    strings.TrimSpace(request.CreatedByName),
		CreatedAtSeconds: s.clock().UTC().Unix(),
	}
	if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
		s.logError(opCreate, "insert_failed", err, zap.String("user_id", userID))
		return Event{}, apperr.New(opCreate, "insert_failed", err)
	}
	return event, nil
}

// List returns events newest first, optionally filtered by type and limited.
// Events whose date has passed are deleted before the fetch.
func (s *Service) List(ctx context.Context, eventType string, limit int) ([]Event, error) {
	now := s.clock().UTC().Unix()
	err := s.db.WithContext(ctx).
		Where("event_at_s IS NOT NULL AND event_at_s < ?", now).
		Delete(&Event{}).Error
	if err != nil {
		s.logError(opList, "prune_failed", err)
	}

	query := s.db.WithContext(ctx).Order("created_at_s DESC")
	if strings.TrimSpace(eventType) != "" {
		query = query.Where("type = ?", strings.TrimSpace(eventType))
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var records []Event
	if err := query.Find(&records).Error; err != nil {
		s.logError(opList, "query_failed", err)
		return nil, apperr.New(opList, "query_failed", err)
	}
	return records, nil
}

// ListMine returns the events the caller created.
func (s *Service) ListMine(ctx context.Context, userID string) ([]Event, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.New(opList, "missing_user_id", errMissingUserID)
	}
	var records []Event
	err := s.db.WithContext(ctx).
		Where("created_by = ?", userID).
		Order("created_at_s DESC").
		Find(&records).Error
	if err != nil {
		s.logError(opList, "query_failed", err, zap.String("user_id", userID))
		return nil, apperr.New(opList, "query_failed", err)
	}
	return records, nil
}

// Get returns a single event.
func (s *Service) Get(ctx context.Context, eventID string) (Event, error) {
	return s.fetch(ctx, opGet, eventID)
}

// UpdateRequest carries a partial event edit; nil fields stay untouched.
type UpdateRequest struct {
	Title       *string
	Description *string
	EventAt     *int64
	Link        *string
}

// Update edits an event; only its creator may do so.
func (s *Service) Update(ctx context.Context, userID, eventID string, request UpdateRequest) (Event, error) {
	event, err := s.fetchOwned(ctx, opUpdate, userID, eventID)
	if err != nil {
		return Event{}, err
	}

	updates := map[string]interface{}{}
	if request.Title != nil {
		updates["title"] = strings.TrimSpace(*request.Title)
	}
	if request.Description != nil {
		updates["description"] = *request.Description
	}
	if request.EventAt != nil {
		updates["event_at_s"] = *request.EventAt
	}
	if request.Link != nil {
		updates["link"] = strings.TrimSpace(*request.Link)
	}
	if len(updates) == 0 {
		return event, nil
	}

	err = s.db.WithContext(ctx).
		Model(&Event{}).
		Where("id = ?", event.ID).
		Updates(updates).Error
	if err != nil {
		s.logError(opUpdate, "update_failed", err,
			zap.String("user_id", userID), zap.String("event_id", eventID))
		return Event{}, apperr.New(opUpdate, "update_failed", err)
	}
	return s.fetch(ctx, opUpdate, eventID)
}

// Delete removes an event; only its creator may do so.
func (s *Service) Delete(ctx context.Context, userID, eventID string) error {
	event, err := s.fetchOwned(ctx, opDelete, userID, eventID)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Where("id = ?", event.ID).Delete(&Event{}).Error
	if err != nil {
		s.logError(opDelete, "delete_failed", err,
			zap.String("user_id", userID), zap.String("event_id", eventID))
		return apperr.New(opDelete, "delete_failed", err)
	}
	return nil
}

func (s *Service) fetch(ctx context.Context, operation, eventID string) (Event, error) {
	if strings.TrimSpace(eventID) == "" {
		return Event{}, apperr.New(operation, "missing_event_id", errMissingEventID)
	}
	var event Event
	err := s.db.WithContext(ctx).Where("id = ?", eventID).Take(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Event{}, ErrEventNotFound
	}
	if err != nil {
		s.logError(operation, "query_failed", err, zap.String("event_id", eventID))
		return Event{}, apperr.New(operation, "query_failed", err)
	}
	return event, nil
}

func (s *Service) fetchOwned(ctx context.Context, operation, userID, eventID string) (Event, error) {
	if strings.TrimSpace(userID) == "" {
		return Event{}, apperr.New(operation, "missing_user_id", errMissingUserID)
	}
	event, err := s.fetch(ctx, operation, eventID)
	if err != nil {
		return Event{}, err
	}
	if event.CreatedBy != userID {
		return Event{}, ErrNotOwner
	}
	return event, nil
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
	s.logger.Error("events service error", attrs...)
}
