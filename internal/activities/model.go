package activities

import (
	"math"
)

// Status tracks an activity through its grading lifecycle.
type Status string

const (
	// StatusDraft marks a freshly submitted, ungraded activity.
	StatusDraft Status = "draft"
	// StatusPending marks an activity awaiting manual review.
	StatusPending Status = "pending"
	// StatusApproved marks an activity whose award has been finalized.
	StatusApproved Status = "approved"
)

// Activity models one claimed unit of continuing-education work.
//
// CPEPoints always holds the credit value the aggregation engine counts: the
// user's claim until grading finalizes an award, the awarded amount afterwards.
// ApplyAward keeps CPEPoints and AwardedCPE in lockstep.
type Activity struct {
	ID               string   `gorm:"column:id;primaryKey;size:190;not null"`
	UserID           string   `gorm:"column:user_id;size:190;not null;index:idx_activities_user_cert,priority:1"`
	Title            string   `gorm:"column:title;size:320;not null;default:''"`
	Provider         string   `gorm:"column:provider;size:320;not null;default:''"`
	ActivityType     string   `gorm:"column:activity_type;size:64;not null;default:''"`
	Description      string   `gorm:"column:description;type:text;not null;default:''"`
	ActivityDate     string   `gorm:"column:activity_date;size:64;not null;default:''"`
	DurationHours    *float64 `gorm:"column:duration_hours"`
	CPEPoints        float64  `gorm:"column:cpe_points;not null;default:0"`
	CertificationID  string   `gorm:"column:certification_id;size:190;not null;default:'';index:idx_activities_user_cert,priority:2"`
	ProofReference   string   `gorm:"column:proof_reference;size:512;not null;default:''"`
	Accepted         *bool    `gorm:"column:accepted"`
	AwardedCPE       *float64 `gorm:"column:awarded_cpe"`
	AwardedReason    string   `gorm:"column:awarded_reason;size:190;not null;default:''"`
	Status           Status   `gorm:"column:status;size:32;not null;default:'draft'"`
	CreatedAtSeconds int64    `gorm:"column:created_at_s;not null"`
	UpdatedAtSeconds int64    `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Activity) TableName() string {
	return "activities"
}

// normalizeClaim clamps a claimed credit value to a non-negative finite number.
// Malformed input degrades to zero rather than failing the submission.
func normalizeClaim(value float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return 0
	}
	return value
}
