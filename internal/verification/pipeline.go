package verification

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/credtrack/credtrack/backend/internal/activities"
	"github.com/credtrack/credtrack/backend/internal/apperr"
	"github.com/credtrack/credtrack/backend/internal/grading"
	"github.com/credtrack/credtrack/backend/internal/identifier"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingActivities = errors.New("activity service is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingUserID     = errors.New("user identifier is required")
	noOpLogger           = zap.NewNop()
)

const (
	opPipelineNew = "verification.pipeline.new"
	opVerifyAll   = "verification.verify_all"
	opList        = "verification.list"
)

// PipelineConfig describes the dependencies of the verification pipeline.
type PipelineConfig struct {
	Database   *gorm.DB
	Activities *activities.Service
	Clock      func() time.Time
	IDProvider identifier.Provider
	Logger     *zap.Logger
}

// Pipeline grades a user's activities in batch, persists an audit record per
// decision, and writes finalized awards back onto the activities through the
// ledger-aware update path.
type Pipeline struct {
	db         *gorm.DB
	activities *activities.Service
	clock      func() time.Time
	idProvider identifier.Provider
	logger     *zap.Logger
}

// NewPipeline constructs the pipeline with validated dependencies.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.Database == nil {
		return nil, apperr.New(opPipelineNew, "missing_database", errMissingDatabase)
	}
	if cfg.Activities == nil {
		return nil, apperr.New(opPipelineNew, "missing_activities", errMissingActivities)
	}
	if cfg.IDProvider == nil {
		return nil, apperr.New(opPipelineNew, "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Pipeline{
		db:         cfg.Database,
		activities: cfg.Activities,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// VerifyAll grades every activity of the user. Each activity yields exactly
// one new verification record per run. Persistence or write-back failures on
// one activity are logged and do not abort the rest; the computed record is
// still returned with whatever state was reached.
func (p *Pipeline) VerifyAll(ctx context.Context, userID string) ([]Verification, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.New(opVerifyAll, "missing_user_id", errMissingUserID)
	}

	records, err := p.activities.List(ctx, userID)
	if err != nil {
		return nil, apperr.New(opVerifyAll, "activity_list_failed", err)
	}

	results := make([]Verification, 0, len(records))
	for _, activity := range records {
		award := grading.Grade(gradingView(activity))

		status := StatusPending
		var verifiedAt *int64
		if award.Amount != nil && award.AutoApproved {
			status = StatusVerified
			seconds := p.clock().UTC().Unix()
			verifiedAt = &seconds
		}

		record := Verification{
			ActivityID:        activity.ID,
			UserID:            userID,
			Status:            status,
			AwardedCPE:        award.Amount,
			Reason:            award.Reason,
			AutoApproved:      award.AutoApproved,
			VerifiedAtSeconds: verifiedAt,
			ActivitySnapshot:  snapshot(activity),
			CreatedAtSeconds:  p.clock().UTC().Unix(),
		}

		recordID, err := p.idProvider.NewID()
		if err != nil {
			p.logError(opVerifyAll, "id_generation_failed", err,
				zap.String("user_id", userID), zap.String("activity_id", activity.ID))
			results = append(results, record)
			continue
		}
		record.ID = recordID

		if err := p.db.WithContext(ctx).Create(&record).Error; err != nil {
			p.logError(opVerifyAll, "record_insert_failed", err,
				zap.String("user_id", userID), zap.String("activity_id", activity.ID))
		}

		if status == StatusVerified {
			err := p.activities.ApplyAward(ctx, userID, activity.ID, *award.Amount, award.Reason)
			if err != nil {
				p.logError(opVerifyAll, "award_write_back_failed", err,
					zap.String("user_id", userID), zap.String("activity_id", activity.ID))
			}
		}

		results = append(results, record)
	}

	return results, nil
}

// List returns every verification record of the user, newest first.
func (p *Pipeline) List(ctx context.Context, userID string) ([]Verification, error) {
	return p.list(ctx, userID, "")
}

// ListPending returns only the records awaiting manual review.
func (p *Pipeline) ListPending(ctx context.Context, userID string) ([]Verification, error) {
	return p.list(ctx, userID, StatusPending)
}

func (p *Pipeline) list(ctx context.Context, userID, status string) ([]Verification, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.New(opList, "missing_user_id", errMissingUserID)
	}
	query := p.db.WithContext(ctx).Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var records []Verification
	if err := query.Order("created_at_s DESC").Find(&records).Error; err != nil {
		p.logError(opList, "query_failed", err, zap.String("user_id", userID))
		return nil, apperr.New(opList, "query_failed", err)
	}
	return records, nil
}

func gradingView(activity activities.Activity) grading.Activity {
	claimed := activity.CPEPoints
	return grading.Activity{
		Type:           grading.ActivityType(activity.ActivityType),
		DurationHours:  activity.DurationHours,
		ClaimedCPE:     &claimed,
		AwardedCPE:     activity.AwardedCPE,
		ProofReference: activity.ProofReference,
		Accepted:       activity.Accepted != nil && *activity.Accepted,
	}
}

func snapshot(activity activities.Activity) []byte {
	payload := map[string]interface{}{
		"id":             activity.ID,
		"title":          activity.Title,
		"activity_type":  activity.ActivityType,
		"cpe_points":     activity.CPEPoints,
		"duration_hours": activity.DurationHours,
		"proof":          activity.ProofReference,
		"status":         activity.Status,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return encoded
}

func (p *Pipeline) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	p.logger.Error("verification pipeline error", attrs...)
}
