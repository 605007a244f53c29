package verification

import "gorm.io/datatypes"

// Status of a single grading decision.
const (
	StatusVerified = "verified"
	StatusPending  = "pending"
)

// Verification is an immutable audit record of one grading decision for one
// activity. Records are only ever appended: re-running the pipeline writes a
// fresh record per activity so the audit trail keeps every pass.
type Verification struct {
	ID                string         `gorm:"column:id;primaryKey;size:190;not null"`
	ActivityID        string         `gorm:"column:activity_id;size:190;not null;index"`
	UserID            string         `gorm:"column:user_id;size:190;not null;index:idx_verifications_user_time,priority:1"`
	Status            string         `gorm:"column:status;size:32;not null"`
	AwardedCPE        *float64       `gorm:"column:awarded_cpe"`
	Reason            string         `gorm:"column:reason;size:190;not null;default:''"`
	AutoApproved      bool           `gorm:"column:auto_approved;not null;default:false"`
	VerifiedAtSeconds *int64         `gorm:"column:verified_at_s"`
	ActivitySnapshot  datatypes.JSON `gorm:"column:activity_snapshot"`
	CreatedAtSeconds  int64          `gorm:"column:created_at_s;not null;index:idx_verifications_user_time,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (Verification) TableName() string {
	return "verifications"
}
