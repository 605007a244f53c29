package certificates

import "time"

// Certificate models one credential under renewal tracking. EarnedCPEs and
// ProgressPercentage are derived columns owned by the ledger engine.
type Certificate struct {
	ID                 string  `gorm:"column:id;primaryKey;size:190;not null"`
	UserID             string  `gorm:"column:user_id;size:190;not null;index"`
	Name               string  `gorm:"column:name;size:320;not null;default:''"`
	Authority          string  `gorm:"column:authority;size:190;not null;default:''"`
	RequiredCPEs       int     `gorm:"column:required_cpes;not null;default:0"`
	EarnedCPEs         float64 `gorm:"column:earned_cpes;not null;default:0"`
	ProgressPercentage float64 `gorm:"column:progress_percentage;not null;default:0"`
	RenewalDate        string  `gorm:"column:renewal_date;size:64;not null;default:''"`
	CreatedAtSeconds   int64   `gorm:"column:created_at_s;not null"`
	UpdatedAtSeconds   int64   `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Certificate) TableName() string {
	return "certificates"
}

// View is a certificate with its derived renewal classification resolved.
type View struct {
	Certificate
	Status            RenewalStatus `json:"status"`
	DaysUntilRenewal  *int          `json:"days_until_renewal"`
	ParsedRenewalDate *time.Time    `json:"-"`
}
