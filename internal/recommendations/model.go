package recommendations

// Resource is one resolved learning suggestion handed to the caller. CPE is a
// suggested credit value, never an awarded one.
type Resource struct {
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Type        string  `json:"type"`
	Source      string  `json:"source"`
	Description string  `json:"description"`
	CPE         float64 `json:"cpe"`
}

// Recommendation is a per-user cached learning resource.
type Recommendation struct {
	ID               string  `gorm:"column:id;primaryKey;size:190;not null"`
	UserID           string  `gorm:"column:user_id;size:190;not null;index"`
	Title            string  `gorm:"column:title;size:320;not null;default:''"`
	URL              string  `gorm:"column:url;size:512;not null;default:''"`
	Type             string  `gorm:"column:type;size:64;not null;default:''"`
	Source           string  `gorm:"column:source;size:190;not null;default:''"`
	Description      string  `gorm:"column:description;type:text;not null;default:''"`
	CPE              float64 `gorm:"column:cpe;not null;default:0"`
	ExpiresAtSeconds *int64  `gorm:"column:expires_at_s"`
	CreatedAtSeconds int64   `gorm:"column:created_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Recommendation) TableName() string {
	return "recommendations"
}

// CuratedRecommendation is a globally shared learning resource. Community
// submissions start unapproved; only approved rows feed the resolver fallback.
type CuratedRecommendation struct {
	ID               string  `gorm:"column:id;primaryKey;size:190;not null"`
	Title            string  `gorm:"column:title;size:320;not null;default:''"`
	URL              string  `gorm:"column:url;size:512;not null;default:''"`
	Type             string  `gorm:"column:type;size:64;not null;default:''"`
	Source           string  `gorm:"column:source;size:190;not null;default:''"`
	Description      string  `gorm:"column:description;type:text;not null;default:''"`
	CPE              float64 `gorm:"column:cpe;not null;default:0"`
	TargetAuthority  string  `gorm:"column:target_authority;size:190;not null;default:'';index"`
	Approved         bool    `gorm:"column:approved;not null;default:false"`
	CreatedBy        string  `gorm:"column:created_by;size:190;not null;default:'';index"`
	ExpiresAtSeconds *int64  `gorm:"column:expires_at_s"`
	CreatedAtSeconds int64   `gorm:"column:created_at_s;not null"`
	UpdatedAtSeconds int64   `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (CuratedRecommendation) TableName() string {
	return "curated_recommendations"
}

func (c CuratedRecommendation) resource() Resource {
	return Resource{
		Title:       c.Title,
		URL:         c.URL,
		Type:        c.Type,
		Source:      c.Source,
		Description: c.Description,
		CPE:         c.CPE,
	}
}
