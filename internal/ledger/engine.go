package ledger

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/credtrack/credtrack/backend/internal/apperr"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// The engine sums over the activity and certificate tables directly so the
// aggregation logic stays free of the CRUD packages that invoke it.
const (
	activitiesTable   = "activities"
	certificatesTable = "certificates"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	errMissingUserID   = errors.New("user identifier is required")
	noOpLogger         = zap.NewNop()
)

const (
	opEngineNew       = "ledger.engine.new"
	opApplyDelta      = "ledger.apply_delta"
	opReconcile       = "ledger.reconcile"
	opTotalCredits    = "ledger.total_credits"
	opRecalculateCert = "ledger.recalculate_certificate"
)

// CreditBalance is the per-user running total of awarded credits.
type CreditBalance struct {
	UserID           string  `gorm:"column:user_id;primaryKey;size:190;not null"`
	TotalCredits     float64 `gorm:"column:total_credits;not null;default:0"`
	UpdatedAtSeconds int64   `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (CreditBalance) TableName() string {
	return "user_credit_balances"
}

// certificateAggregate writes only the derived columns of a certificate row.
type certificateAggregate struct {
	ID                 string  `gorm:"column:id;primaryKey;size:190;not null"`
	UserID             string  `gorm:"column:user_id;size:190;not null"`
	RequiredCPEs       int     `gorm:"column:required_cpes;not null;default:0"`
	EarnedCPEs         float64 `gorm:"column:earned_cpes;not null;default:0"`
	ProgressPercentage float64 `gorm:"column:progress_percentage;not null;default:0"`
	UpdatedAtSeconds   int64   `gorm:"column:updated_at_s;not null"`
}

func (certificateAggregate) TableName() string {
	return certificatesTable
}

// EngineConfig describes the dependencies of the aggregation engine.
type EngineConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Engine keeps the derived credit aggregates consistent with the underlying
// activity records: the per-user total via incremental deltas with a full
// re-sum fallback, and per-certificate totals via exact re-sums.
type Engine struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

// NewEngine constructs an aggregation engine with validated dependencies.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Database == nil {
		return nil, apperr.New(opEngineNew, "missing_database", errMissingDatabase)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Engine{db: cfg.Database, clock: clock, logger: logger}, nil
}

// ApplyDelta adjusts the user's running total by delta. When the balance row
// does not exist yet (or the write fails) it falls back to a full re-sum,
// which converges to the same value the incremental path would produce.
func (e *Engine) ApplyDelta(ctx context.Context, userID string, delta float64) error {
	if strings.TrimSpace(userID) == "" {
		return apperr.New(opApplyDelta, "missing_user_id", errMissingUserID)
	}
	if delta == 0 {
		return nil
	}

	result := e.db.WithContext(ctx).
		Model(&CreditBalance{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"total_credits": gorm.Expr("total_credits + ?", delta),
			"updated_at_s":  e.clock().UTC().Unix(),
		})
	if result.Error == nil && result.RowsAffected > 0 {
		return nil
	}

	if result.Error != nil {
		e.logger.Warn("incremental credit update failed, reconciling",
			zap.String("operation", opApplyDelta),
			zap.String("user_id", userID),
			zap.Error(result.Error))
	}
	return e.Reconcile(ctx, userID)
}

// Reconcile recomputes the user's total from scratch and overwrites the
// balance row. Safe to call any number of times.
func (e *Engine) Reconcile(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return apperr.New(opReconcile, "missing_user_id", errMissingUserID)
	}

	total, err := e.sumActivities(ctx, userID, "")
	if err != nil {
		return apperr.New(opReconcile, "sum_failed", err)
	}

	balance := CreditBalance{
		UserID:           userID,
		TotalCredits:     total,
		UpdatedAtSeconds: e.clock().UTC().Unix(),
	}
	err = e.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"total_credits", "updated_at_s"}),
		}).
		Create(&balance).Error
	if err != nil {
		return apperr.New(opReconcile, "balance_write_failed", err)
	}
	return nil
}

// TotalCredits returns the user's current running total. A user with no
// balance row has zero credits.
func (e *Engine) TotalCredits(ctx context.Context, userID string) (float64, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, apperr.New(opTotalCredits, "missing_user_id", errMissingUserID)
	}
	var balance CreditBalance
	err := e.db.WithContext(ctx).Where("user_id = ?", userID).Take(&balance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, apperr.New(opTotalCredits, "query_failed", err)
	}
	return balance.TotalCredits, nil
}

// RecalculateCertificate re-sums the credits of every activity referencing the
// certificate and rewrites its earned total and progress percentage. A missing
// certificate is a no-op: the triggering edit may race a certificate delete.
func (e *Engine) RecalculateCertificate(ctx context.Context, userID, certificateID string) error {
	if strings.TrimSpace(userID) == "" {
		return apperr.New(opRecalculateCert, "missing_user_id", errMissingUserID)
	}
	if strings.TrimSpace(certificateID) == "" {
		return nil
	}

	var current certificateAggregate
	err := e.db.WithContext(ctx).
		Table(certificatesTable).
		Where("id = ? AND user_id = ?", certificateID, userID).
		Take(&current).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return apperr.New(opRecalculateCert, "certificate_query_failed", err)
	}

	earned, err := e.sumActivities(ctx, userID, certificateID)
	if err != nil {
		return apperr.New(opRecalculateCert, "sum_failed", err)
	}
	progress := ProgressPercentage(earned, current.RequiredCPEs)

	updates := map[string]interface{}{
		"earned_cpes":         earned,
		"progress_percentage": progress,
		"updated_at_s":        e.clock().UTC().Unix(),
	}
	result := e.db.WithContext(ctx).
		Table(certificatesTable).
		Where("id = ? AND user_id = ?", certificateID, userID).
		Updates(updates)
	if result.Error == nil && result.RowsAffected > 0 {
		return nil
	}
	if result.Error != nil {
		e.logger.Warn("certificate aggregate update failed, merging",
			zap.String("operation", opRecalculateCert),
			zap.String("user_id", userID),
			zap.String("certificate_id", certificateID),
			zap.Error(result.Error))
	}

	// Merge-style fallback mirrors the incremental path: write the aggregate
	// columns whether or not the update succeeded in place.
	merged := certificateAggregate{
		ID:                 certificateID,
		UserID:             userID,
		RequiredCPEs:       current.RequiredCPEs,
		EarnedCPEs:         earned,
		ProgressPercentage: progress,
		UpdatedAtSeconds:   e.clock().UTC().Unix(),
	}
	err = e.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"earned_cpes", "progress_percentage", "updated_at_s"}),
		}).
		Create(&merged).Error
	if err != nil {
		return apperr.New(opRecalculateCert, "aggregate_write_failed", err)
	}
	return nil
}

// ProgressPercentage computes earned/required as a percentage rounded to two
// decimals. A zero or negative requirement is treated as one so the ratio is
// always defined.
func ProgressPercentage(earned float64, required int) float64 {
	requirement := float64(required)
	if requirement < 1 {
		requirement = 1
	}
	return math.Round(earned/requirement*100*100) / 100
}

func (e *Engine) sumActivities(ctx context.Context, userID, certificateID string) (float64, error) {
	var total float64
	query := e.db.WithContext(ctx).
		Table(activitiesTable).
		Where("user_id = ?", userID)
	if certificateID != "" {
		query = query.Where("certification_id = ?", certificateID)
	}
	err := query.Select("COALESCE(SUM(cpe_points), 0)").Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}
