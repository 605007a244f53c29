package activities

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/credtrack/credtrack/backend/internal/apperr"
	"github.com/credtrack/credtrack/backend/internal/identifier"
	"github.com/credtrack/credtrack/backend/internal/ledger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrActivityNotFound indicates the referenced activity does not exist for the user.
	ErrActivityNotFound = errors.New("activities: activity not found")

	errMissingDatabase   = errors.New("database handle is required")
	errMissingLedger     = errors.New("ledger engine is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingUserID     = errors.New("user identifier is required")
	errMissingActivityID = errors.New("activity identifier is required")
	noOpLogger           = zap.NewNop()
)

const (
	opServiceNew = "activities.service.new"
	opCreate     = "activities.create"
	opUpdate     = "activities.update"
	opApplyAward = "activities.apply_award"
	opDelete     = "activities.delete"
	opList       = "activities.list"
	opGet        = "activities.get"
)

// ServiceConfig describes the dependencies of the activity service.
type ServiceConfig struct {
	Database   *gorm.DB
	Ledger     *ledger.Engine
	Clock      func() time.Time
	IDProvider identifier.Provider
	Logger     *zap.Logger
}

// Service manages activity records and drives the credit ledger on every
// mutation. The primary write always commits first; aggregate recomputes run
// afterwards and their failures are logged, never surfaced to the caller.
type Service struct {
	db         *gorm.DB
	ledger     *ledger.Engine
	clock      func() time.Time
	idProvider identifier.Provider
	logger     *zap.Logger
}

// NewService constructs the activity service with validated dependencies.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, apperr.New(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.Ledger == nil {
		return nil, apperr.New(opServiceNew, "missing_ledger", errMissingLedger)
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
	return &Service{
		db:         cfg.Database,
		ledger:     cfg.Ledger,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// CreateRequest carries the user-supplied fields of a new activity.
type CreateRequest struct {
	Title           string
	Provider        string
	ActivityType    string
	Description     string
	ActivityDate    string
	DurationHours   *float64
	CPEPoints       float64
	CertificationID string
	ProofReference  string
	Accepted        *bool
}

// Create persists a new activity and folds its claimed credits into the
// user's aggregates.
func (s *Service) Create(ctx context.Context, userID string, request CreateRequest) (Activity, error) {
	if strings.TrimSpace(userID) == "" {
		return Activity{}, apperr.New(opCreate, "missing_user_id", errMissingUserID)
	}

	activityID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreate, "id_generation_failed", err, zap.String("user_id", userID))
		return Activity{}, apperr.New(opCreate, "id_generation_failed", err)
	}

	now := s.clock().UTC().Unix()
	activity := Activity{
		ID:               activityID,
		UserID:           userID,
		Title:            strings.TrimSpace(request.Title),
		Provider:         strings.TrimSpace(request.Provider),
		ActivityType:     strings.ToLower(strings.TrimSpace(request.ActivityType)),
		Description:      request.Description,
		ActivityDate:     strings.TrimSpace(request.ActivityDate),
		DurationHours:    request.DurationHours,
		CPEPoints:        normalizeClaim(request.CPEPoints),
		CertificationID:  strings.TrimSpace(request.CertificationID),
		ProofReference:   strings.TrimSpace(request.ProofReference),
		Accepted:         request.Accepted,
		Status:           StatusDraft,
		CreatedAtSeconds: now,
		UpdatedAtSeconds: now,
	}

	if err := s.db.WithContext(ctx).Create(&activity).Error; err != nil {
		s.logError(opCreate, "insert_failed", err, zap.String("user_id", userID))
		return Activity{}, apperr.New(opCreate, "insert_failed", err)
	}

	s.recompute(ctx, opCreate, userID, activity.CPEPoints, activity.CertificationID, "")
	return activity, nil
}

// UpdateRequest carries a partial activity edit; nil fields are left untouched.
type UpdateRequest struct {
	Title           *string
	Provider        *string
	ActivityType    *string
	Description     *string
	ActivityDate    *string
	DurationHours   *float64
	CPEPoints       *float64
	CertificationID *string
	ProofReference  *string
	Accepted        *bool
}

// Update applies a partial edit and rebalances the aggregates the edit touches.
func (s *Service) Update(ctx context.Context, userID, activityID string, request UpdateRequest) (Activity, error) {
	old, err := s.fetch(ctx, opUpdate, userID, activityID)
	if err != nil {
		return Activity{}, err
	}

	updates := map[string]interface{}{
		"updated_at_s": s.clock().UTC().Unix(),
	}
	if request.Title != nil {
		updates["title"] = strings.TrimSpace(*request.Title)
	}
	if request.Provider != nil {
		updates["provider"] = strings.TrimSpace(*request.Provider)
	}
	if request.ActivityType != nil {
		updates["activity_type"] = strings.ToLower(strings.TrimSpace(*request.ActivityType))
	}
	if request.Description != nil {
		updates["description"] = *request.Description
	}
	if request.ActivityDate != nil {
		updates["activity_date"] = strings.TrimSpace(*request.ActivityDate)
	}
	if request.DurationHours != nil {
		updates["duration_hours"] = *request.DurationHours
	}
	newPoints := old.CPEPoints
	if request.CPEPoints != nil {
		newPoints = normalizeClaim(*request.CPEPoints)
		updates["cpe_points"] = newPoints
	}
	newCertificate := old.CertificationID
	if request.CertificationID != nil {
		newCertificate = strings.TrimSpace(*request.CertificationID)
		updates["certification_id"] = newCertificate
	}
	if request.ProofReference != nil {
		updates["proof_reference"] = strings.TrimSpace(*request.ProofReference)
	}
	if request.Accepted != nil {
		updates["accepted"] = *request.Accepted
	}

	err = s.db.WithContext(ctx).
		Model(&Activity{}).
		Where("user_id = ? AND id = ?", userID, activityID).
		Updates(updates).Error
	if err != nil {
		s.logError(opUpdate, "update_failed", err,
			zap.String("user_id", userID), zap.String("activity_id", activityID))
		return Activity{}, apperr.New(opUpdate, "update_failed", err)
	}

	s.recompute(ctx, opUpdate, userID, newPoints-old.CPEPoints, old.CertificationID, newCertificate)
	return s.fetch(ctx, opUpdate, userID, activityID)
}

// ApplyAward finalizes a grading decision: awarded amount, reason, the
// authoritative credit value, and the approved status land in one write so a
// reader never observes them apart.
func (s *Service) ApplyAward(ctx context.Context, userID, activityID string, amount float64, reason string) error {
	old, err := s.fetch(ctx, opApplyAward, userID, activityID)
	if err != nil {
		return err
	}

	updates := map[string]interface{}{
		"awarded_cpe":    amount,
		"awarded_reason": reason,
		"cpe_points":     amount,
		"status":         StatusApproved,
		"updated_at_s":   s.clock().UTC().Unix(),
	}
	err = s.db.WithContext(ctx).
		Model(&Activity{}).
		Where("user_id = ? AND id = ?", userID, activityID).
		Updates(updates).Error
	if err != nil {
		s.logError(opApplyAward, "update_failed", err,
			zap.String("user_id", userID), zap.String("activity_id", activityID))
		return apperr.New(opApplyAward, "update_failed", err)
	}

	s.recompute(ctx, opApplyAward, userID, amount-old.CPEPoints, old.CertificationID, "")
	return nil
}

// Delete removes an activity and rebalances the aggregates it contributed to.
// Deleting an activity that no longer exists is a no-op.
func (s *Service) Delete(ctx context.Context, userID, activityID string) error {
	old, err := s.fetch(ctx, opDelete, userID, activityID)
	if errors.Is(err, ErrActivityNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, activityID).
		Delete(&Activity{}).Error
	if err != nil {
		s.logError(opDelete, "delete_failed", err,
			zap.String("user_id", userID), zap.String("activity_id", activityID))
		return apperr.New(opDelete, "delete_failed", err)
	}

	if old.CertificationID != "" {
		if err := s.ledger.RecalculateCertificate(ctx, userID, old.CertificationID); err != nil {
			s.logError(opDelete, "certificate_recompute_failed", err,
				zap.String("user_id", userID), zap.String("certificate_id", old.CertificationID))
		}
	}
	if err := s.ledger.Reconcile(ctx, userID); err != nil {
		s.logError(opDelete, "reconcile_failed", err, zap.String("user_id", userID))
	}
	return nil
}

// List returns the user's activities, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Activity, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.New(opList, "missing_user_id", errMissingUserID)
	}
	var records []Activity
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at_s DESC").
		Find(&records).Error
	if err != nil {
		s.logError(opList, "query_failed", err, zap.String("user_id", userID))
		return nil, apperr.New(opList, "query_failed", err)
	}
	return records, nil
}

// Get returns a single activity owned by the user.
func (s *Service) Get(ctx context.Context, userID, activityID string) (Activity, error) {
	return s.fetch(ctx, opGet, userID, activityID)
}

func (s *Service) fetch(ctx context.Context, operation, userID, activityID string) (Activity, error) {
	if strings.TrimSpace(userID) == "" {
		return Activity{}, apperr.New(operation, "missing_user_id", errMissingUserID)
	}
	if strings.TrimSpace(activityID) == "" {
		return Activity{}, apperr.New(operation, "missing_activity_id", errMissingActivityID)
	}
	var activity Activity
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, activityID).
		Take(&activity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Activity{}, ErrActivityNotFound
	}
	if err != nil {
		s.logError(operation, "query_failed", err,
			zap.String("user_id", userID), zap.String("activity_id", activityID))
		return Activity{}, apperr.New(operation, "query_failed", err)
	}
	return activity, nil
}

// recompute runs the post-write aggregate updates. The activity row is already
// durable at this point, so failures here degrade to log lines.
func (s *Service) recompute(ctx context.Context, operation, userID string, delta float64, oldCertificate, newCertificate string) {
	if err := s.ledger.ApplyDelta(ctx, userID, delta); err != nil {
		s.logError(operation, "credit_delta_failed", err, zap.String("user_id", userID))
	}
	recalculated := map[string]struct{}{}
	for _, certificateID := range []string{oldCertificate, newCertificate} {
		if certificateID == "" {
			continue
		}
		if _, done := recalculated[certificateID]; done {
			continue
		}
		recalculated[certificateID] = struct{}{}
		if err := s.ledger.RecalculateCertificate(ctx, userID, certificateID); err != nil {
			s.logError(operation, "certificate_recompute_failed", err,
				zap.String("user_id", userID), zap.String("certificate_id", certificateID))
		}
	}
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
	s.logger.Error("activities service error", attrs...)
}
