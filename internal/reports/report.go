package reports

import (
	"strings"
	"time"

	"github.com/credtrack/credtrack/backend/internal/activities"
	"github.com/credtrack/credtrack/backend/internal/certificates"
)

const (
	defaultCertificateName = "Unnamed Certification"
	proofPathPrefix        = "/static/uploads/"
	displayDateLayout      = "January 02, 2006"
)

// NormalizedCertificate is a certificate flattened into report-safe fields.
// Missing or malformed inputs collapse to canonical defaults rather than
// failing the report.
type NormalizedCertificate struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Authority          string     `json:"authority"`
	RequiredCPEs       int        `json:"required_cpes"`
	EarnedCPEs         float64    `json:"earned_cpes"`
	ProgressPercentage float64    `json:"progress_percentage"`
	Status             string     `json:"status"`
	RenewalDate        *time.Time `json:"renewal_date,omitempty"`
}

// NormalizedActivity is an activity flattened into report-safe fields.
type NormalizedActivity struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	CPEPoints       float64    `json:"cpe_points"`
	ActivityDate    *time.Time `json:"activity_date,omitempty"`
	FormattedDate   string     `json:"formatted_date"`
	CertificationID string     `json:"certification_id"`
	ProofReference  string     `json:"proof_reference"`
	ProofURL        string     `json:"proof_url"`
	Status          string     `json:"status"`
}

// CertificateReport pairs a normalized certificate with its normalized
// activities for the export layer.
type CertificateReport struct {
	Certificate NormalizedCertificate `json:"certificate"`
	Activities  []NormalizedActivity  `json:"activities"`
	TotalCPEs   float64               `json:"total_cpes"`
	GeneratedAt time.Time             `json:"generated_at"`
}

// NormalizeCertificate builds a report record from a classified certificate
// view.
func NormalizeCertificate(view certificates.View) NormalizedCertificate {
	name := strings.TrimSpace(view.Name)
	if name == "" {
		name = defaultCertificateName
	}
	status := view.Status
	if status == "" {
		status = certificates.StatusUnknown
	}
	required := view.RequiredCPEs
	if required < 0 {
		required = 0
	}
	earned := view.EarnedCPEs
	if earned < 0 {
		earned = 0
	}

	normalized := NormalizedCertificate{
		ID:                 view.ID,
		Name:               name,
		Authority:          strings.TrimSpace(view.Authority),
		RequiredCPEs:       required,
		EarnedCPEs:         earned,
		ProgressPercentage: view.ProgressPercentage,
		Status:             string(status),
	}
	if parsed, ok := certificates.ParseRenewalDate(view.RenewalDate); ok {
		normalized.RenewalDate = &parsed
	}
	return normalized
}

// NormalizeActivity builds a report record from a stored activity. The date
// is parsed leniently; unparseable dates keep the raw string as the display
// value with no parsed counterpart.
func NormalizeActivity(activity activities.Activity) NormalizedActivity {
	normalized := NormalizedActivity{
		ID:              activity.ID,
		Title:           strings.TrimSpace(activity.Title),
		Description:     activity.Description,
		CPEPoints:       activity.CPEPoints,
		CertificationID: activity.CertificationID,
		ProofReference:  activity.ProofReference,
		ProofURL:        proofURL(activity.ProofReference),
		Status:          string(activity.Status),
	}
	if normalized.CPEPoints < 0 {
		normalized.CPEPoints = 0
	}

	if parsed, ok := certificates.ParseRenewalDate(activity.ActivityDate); ok {
		normalized.ActivityDate = &parsed
		normalized.FormattedDate = parsed.Format(displayDateLayout)
	} else {
		normalized.FormattedDate = strings.TrimSpace(activity.ActivityDate)
	}
	return normalized
}

// BuildCertificateReport assembles the full report for one certificate. Only
// activities attached to the certificate are included; the total sums their
// awarded points.
func BuildCertificateReport(view certificates.View, all []activities.Activity, generatedAt time.Time) CertificateReport {
	report := CertificateReport{
		Certificate: NormalizeCertificate(view),
		Activities:  []NormalizedActivity{},
		GeneratedAt: generatedAt.UTC(),
	}
	for _, activity := range all {
		if activity.CertificationID != view.ID {
			continue
		}
		normalized := NormalizeActivity(activity)
		report.Activities = append(report.Activities, normalized)
		report.TotalCPEs += normalized.CPEPoints
	}
	return report
}

// proofURL maps a stored proof reference to a servable path. References that
// already carry a scheme pass through unchanged.
func proofURL(reference string) string {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return ""
	}
	if strings.HasPrefix(reference, "http://") || strings.HasPrefix(reference, "https://") {
		return reference
	}
	return proofPathPrefix + reference
}
