package recommendations

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
	// ErrRecommendationNotFound indicates the curated recommendation does not exist.
	ErrRecommendationNotFound = errors.New("recommendations: recommendation not found")
	// ErrNotOwner indicates the caller does not own the curated recommendation.
	ErrNotOwner = errors.New("recommendations: caller does not own recommendation")

	errMissingRecommendationID = errors.New("recommendation identifier is required")
)

const (
	opCommunityNew = "recommendations.community.new"
	opSubmit       = "recommendations.submit"
	opListPending  = "recommendations.list_pending"
	opListMine     = "recommendations.list_mine"
	opUpdateOwn    = "recommendations.update_own"
	opDeleteOwn    = "recommendations.delete_own"
)

// CommunityConfig describes the dependencies of the community submission service.
type CommunityConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider identifier.Provider
	Logger     *zap.Logger
}

// Community manages user-submitted curated recommendations. Submissions enter
// unapproved and only join the resolver fallback once reviewed.
type Community struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider identifier.Provider
	logger     *zap.Logger
}

// NewCommunity constructs the community service with validated dependencies.
func NewCommunity(cfg CommunityConfig) (*Community, error) {
	if cfg.Database == nil {
		return nil, apperr.New(opCommunityNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, apperr.New(opCommunityNew, "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Community{db: cfg.Database, clock: clock, idProvider: cfg.IDProvider, logger: logger}, nil
}

// SubmitRequest carries a new community recommendation.
type SubmitRequest struct {
	Title           string
	URL             string
	Type            string
	Source          string
	Description     string
	CPE             float64
	TargetAuthority string
	ExpiresAt       *int64
}

// Submit stores a new recommendation for review.
func (c *Community) Submit(ctx context.Context, userID string, request SubmitRequest) (CuratedRecommendation, error) {
	if strings.TrimSpace(userID) == "" {
		return CuratedRecommendation{}, apperr.New(opSubmit, "missing_user_id", errMissingUserID)
	}
	recordID, err := c.idProvider.NewID()
	if err != nil {
		c.logError(opSubmit, "id_generation_failed", err, zap.String("user_id", userID))
		return CuratedRecommendation{}, apperr.New(opSubmit, "id_generation_failed", err)
	}

	now := c.clock().UTC().Unix()
	record := CuratedRecommendation{
		ID:               recordID,
		Title:            strings.TrimSpace(request.Title),
		URL:              strings.TrimSpace(request.URL),
		Type:             strings.TrimSpace(request.Type),
		Source:           strings.TrimSpace(request.Source),
		Description:      request.Description,
		CPE:              request.CPE,
		TargetAuthority:  strings.ToLower(strings.TrimSpace(request.TargetAuthority)),
		Approved:         false,
		CreatedBy:        userID,
		ExpiresAtSeconds: request.ExpiresAt,
		CreatedAtSeconds: now,
		UpdatedAtSeconds: now,
	}
	if err := c.db.WithContext(ctx).Create(&record).Error; err != nil {
		c.logError(opSubmit, "insert_failed", err, zap.String("user_id", userID))
		return CuratedRecommendation{}, apperr.New(opSubmit, "insert_failed", err)
	}
	return record, nil
}

// ListPending returns every submission awaiting review.
func (c *Community) ListPending(ctx context.Context) ([]CuratedRecommendation, error) {
	var records []CuratedRecommendation
	err := c.db.WithContext(ctx).
		Where("approved = ?", false).
		Order("created_at_s DESC").
		Find(&records).Error
	if err != nil {
		c.logError(opListPending, "query_failed", err)
		return nil, apperr.New(opListPending, "query_failed", err)
	}
	return records, nil
}

// ListMine returns the caller's own submissions, newest first.
func (c *Community) ListMine(ctx context.Context, userID string) ([]CuratedRecommendation, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.New(opListMine, "missing_user_id", errMissingUserID)
	}
	var records []CuratedRecommendation
	err := c.db.WithContext(ctx).
		Where("created_by = ?", userID).
		Order("created_at_s DESC").
		Find(&records).Error
	if err != nil {
		c.logError(opListMine, "query_failed", err, zap.String("user_id", userID))
		return nil, apperr.New(opListMine, "query_failed", err)
	}
	return records, nil
}

// UpdateOwnRequest carries a partial edit of a submission; nil fields stay untouched.
type UpdateOwnRequest struct {
	Title       *string
	URL         *string
	Description *string
	ExpiresAt   *int64
}

// UpdateOwn edits a submission the caller created.
func (c *Community) UpdateOwn(ctx context.Context, userID, recommendationID string, request UpdateOwnRequest) (CuratedRecommendation, error) {
	record, err := c.fetchOwned(ctx, opUpdateOwn, userID, recommendationID)
	if err != nil {
		return CuratedRecommendation{}, err
	}

	updates := map[string]interface{}{
		"updated_at_s": c.clock().UTC().Unix(),
	}
	if request.Title != nil {
		updates["title"] = strings.TrimSpace(*request.Title)
	}
	if request.URL != nil {
		updates["url"] = strings.TrimSpace(*request.URL)
	}
	if request.Description != nil {
		updates["description"] = *request.Description
	}
	if request.ExpiresAt != nil {
		updates["expires_at_s"] = *request.ExpiresAt
	}

	err = c.db.WithContext(ctx).
		Model(&CuratedRecommendation{}).
		Where("id = ?", record.ID).
		Updates(updates).Error
	if err != nil {
		c.logError(opUpdateOwn, "update_failed", err,
			zap.String("user_id", userID), zap.String("recommendation_id", recommendationID))
		return CuratedRecommendation{}, apperr.New(opUpdateOwn, "update_failed", err)
	}
	return c.fetchOwned(ctx, opUpdateOwn, userID, recommendationID)
}

// DeleteOwn removes a submission the caller created.
func (c *Community) DeleteOwn(ctx context.Context, userID, recommendationID string) error {
	record, err := c.fetchOwned(ctx, opDeleteOwn, userID, recommendationID)
	if err != nil {
		return err
	}
	err = c.db.WithContext(ctx).
		Where("id = ?", record.ID).
		Delete(&CuratedRecommendation{}).Error
	if err != nil {
		c.logError(opDeleteOwn, "delete_failed", err,
			zap.String("user_id", userID), zap.String("recommendation_id", recommendationID))
		return apperr.New(opDeleteOwn, "delete_failed", err)
	}
	return nil
}

func (c *Community) fetchOwned(ctx context.Context, operation, userID, recommendationID string) (CuratedRecommendation, error) {
	if strings.TrimSpace(userID) == "" {
		return CuratedRecommendation{}, apperr.New(operation, "missing_user_id", errMissingUserID)
	}
	if strings.TrimSpace(recommendationID) == "" {
		return CuratedRecommendation{}, apperr.New(operation, "missing_recommendation_id", errMissingRecommendationID)
	}
	var record CuratedRecommendation
	err := c.db.WithContext(ctx).Where("id = ?", recommendationID).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return CuratedRecommendation{}, ErrRecommendationNotFound
	}
	if err != nil {
		c.logError(operation, "query_failed", err,
			zap.String("user_id", userID), zap.String("recommendation_id", recommendationID))
		return CuratedRecommendation{}, apperr.New(operation, "query_failed", err)
	}
	if record.CreatedBy != userID {
		return CuratedRecommendation{}, ErrNotOwner
	}
	return record, nil
}

func (c *Community) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	c.logger.Error("recommendations community error", attrs...)
}
