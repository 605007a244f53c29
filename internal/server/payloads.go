package server

import (
	"encoding/json"

	"github.com/credtrack/credtrack/backend/internal/activities"
	"github.com/credtrack/credtrack/backend/internal/certificates"
	"github.com/credtrack/credtrack/backend/internal/events"
	"github.com/credtrack/credtrack/backend/internal/recommendations"
	"github.com/credtrack/credtrack/backend/internal/users"
	"github.com/credtrack/credtrack/backend/internal/verification"
)

type activityPayload struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Provider         string   `json:"provider"`
	ActivityType     string   `json:"activity_type"`
	Description      string   `json:"description"`
	ActivityDate     string   `json:"activity_date"`
	DurationHours    *float64 `json:"duration_hours"`
	CPEPoints        float64  `json:"cpe_points"`
	CertificationID  string   `json:"certification_id"`
	ProofReference   string   `json:"proof_reference"`
	Accepted         *bool    `json:"accepted"`
	AwardedCPE       *float64 `json:"awarded_cpe"`
	AwardedReason    string   `json:"awarded_reason"`
	Status           string   `json:"status"`
	CreatedAtSeconds int64    `json:"created_at_s"`
	UpdatedAtSeconds int64    `json:"updated_at_s"`
}

func toActivityPayload(activity activities.Activity) activityPayload {
	return activityPayload{
		ID:               activity.ID,
		Title:            activity.Title,
		Provider:         activity.Provider,
		ActivityType:     activity.ActivityType,
		Description:      activity.Description,
		ActivityDate:     activity.ActivityDate,
		DurationHours:    activity.DurationHours,
		CPEPoints:        activity.CPEPoints,
		CertificationID:  activity.CertificationID,
		ProofReference:   activity.ProofReference,
		Accepted:         activity.Accepted,
		AwardedCPE:       activity.AwardedCPE,
		AwardedReason:    activity.AwardedReason,
		Status:           string(activity.Status),
		CreatedAtSeconds: activity.CreatedAtSeconds,
		UpdatedAtSeconds: activity.UpdatedAtSeconds,
	}
}

func toActivityPayloads(records []activities.Activity) []activityPayload {
	payloads := make([]activityPayload, 0, len(records))
	for _, record := range records {
		payloads = append(payloads, toActivityPayload(record))
	}
	return payloads
}

type certificatePayload struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	Authority          string  `json:"authority"`
	RequiredCPEs       int     `json:"required_cpes"`
	EarnedCPEs         float64 `json:"earned_cpes"`
	ProgressPercentage float64 `json:"progress_percentage"`
	RenewalDate        string  `json:"renewal_date"`
	Status             string  `json:"status"`
	DaysUntilRenewal   *int    `json:"days_until_renewal"`
	CreatedAtSeconds   int64   `json:"created_at_s"`
	UpdatedAtSeconds   int64   `json:"updated_at_s"`
}

func toCertificatePayload(view certificates.View) certificatePayload {
	return certificatePayload{
		ID:                 view.ID,
		Name:               view.Name,
		Authority:          view.Authority,
		RequiredCPEs:       view.RequiredCPEs,
		EarnedCPEs:         view.EarnedCPEs,
		ProgressPercentage: view.ProgressPercentage,
		RenewalDate:        view.RenewalDate,
		Status:             string(view.Status),
		DaysUntilRenewal:   view.DaysUntilRenewal,
		CreatedAtSeconds:   view.CreatedAtSeconds,
		UpdatedAtSeconds:   view.UpdatedAtSeconds,
	}
}

func toCertificatePayloads(views []certificates.View) []certificatePayload {
	payloads := make([]certificatePayload, 0, len(views))
	for _, view := range views {
		payloads = append(payloads, toCertificatePayload(view))
	}
	return payloads
}

type verificationPayload struct {
	ID                string          `json:"id"`
	ActivityID        string          `json:"activity_id"`
	Status            string          `json:"status"`
	AwardedCPE        *float64        `json:"awarded_cpe"`
	Reason            string          `json:"reason"`
	AutoApproved      bool            `json:"auto_approved"`
	VerifiedAtSeconds *int64          `json:"verified_at_s"`
	ActivitySnapshot  json.RawMessage `json:"activity_snapshot,omitempty"`
	CreatedAtSeconds  int64           `json:"created_at_s"`
}

func toVerificationPayload(record verification.Verification) verificationPayload {
	payload := verificationPayload{
		ID:                record.ID,
		ActivityID:        record.ActivityID,
		Status:            record.Status,
		AwardedCPE:        record.AwardedCPE,
		Reason:            record.Reason,
		AutoApproved:      record.AutoApproved,
		VerifiedAtSeconds: record.VerifiedAtSeconds,
		CreatedAtSeconds:  record.CreatedAtSeconds,
	}
	if len(record.ActivitySnapshot) > 0 {
		payload.ActivitySnapshot = json.RawMessage(record.ActivitySnapshot)
	}
	return payload
}

func toVerificationPayloads(records []verification.Verification) []verificationPayload {
	payloads := make([]verificationPayload, 0, len(records))
	for _, record := range records {
		payloads = append(payloads, toVerificationPayload(record))
	}
	return payloads
}

type cachedRecommendationPayload struct {
	ID               string  `json:"id"`
	Title            string  `json:"title"`
	URL              string  `json:"url"`
	Type             string  `json:"type"`
	Source           string  `json:"source"`
	Description      string  `json:"description"`
	CPE              float64 `json:"cpe"`
	ExpiresAtSeconds *int64  `json:"expires_at_s"`
	CreatedAtSeconds int64   `json:"created_at_s"`
}

func toCachedRecommendationPayloads(records []recommendations.Recommendation) []cachedRecommendationPayload {
	payloads := make([]cachedRecommendationPayload, 0, len(records))
	for _, record := range records {
		payloads = append(payloads, cachedRecommendationPayload{
			ID:               record.ID,
			Title:            record.Title,
			URL:              record.URL,
			Type:             record.Type,
			Source:           record.Source,
			Description:      record.Description,
			CPE:              record.CPE,
			ExpiresAtSeconds: record.ExpiresAtSeconds,
			CreatedAtSeconds: record.CreatedAtSeconds,
		})
	}
	return payloads
}

type curatedRecommendationPayload struct {
	ID               string  `json:"id"`
	Title            string  `json:"title"`
	URL              string  `json:"url"`
	Type             string  `json:"type"`
	Source           string  `json:"source"`
	Description      string  `json:"description"`
	CPE              float64 `json:"cpe"`
	TargetAuthority  string  `json:"target_authority"`
	Approved         bool    `json:"approved"`
	ExpiresAtSeconds *int64  `json:"expires_at_s"`
	CreatedAtSeconds int64   `json:"created_at_s"`
}

func toCuratedRecommendationPayload(record recommendations.CuratedRecommendation) curatedRecommendationPayload {
	return curatedRecommendationPayload{
		ID:               record.ID,
		Title:            record.Title,
		URL:              record.URL,
		Type:             record.Type,
		Source:           record.Source,
		Description:      record.Description,
		CPE:              record.CPE,
		TargetAuthority:  record.TargetAuthority,
		Approved:         record.Approved,
		ExpiresAtSeconds: record.ExpiresAtSeconds,
		CreatedAtSeconds: record.CreatedAtSeconds,
	}
}

func toCuratedRecommendationPayloads(records []recommendations.CuratedRecommendation) []curatedRecommendationPayload {
	payloads := make([]curatedRecommendationPayload, 0, len(records))
	for _, record := range records {
		payloads = append(payloads, toCuratedRecommendationPayload(record))
	}
	return payloads
}

type eventPayload struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	EventAtSeconds   *int64 `json:"event_at_s"`
	Link             string `json:"link"`
	Type             string `json:"type"`
	CreatedBy        string `json:"created_by"`
	CreatedByName    string `json:"created_by_name"`
	CreatedAtSeconds int64  `json:"created_at_s"`
}

func toEventPayload(event events.Event) eventPayload {
	return eventPayload{
		ID:               event.ID,
		Title:            event.Title,
		Description:      event.Description,
		EventAtSeconds:   event.EventAtSeconds,
		Link:             event.Link,
		Type:             event.Type,
		CreatedBy:        event.CreatedBy,
		CreatedByName:    event.CreatedByName,
		CreatedAtSeconds: event.CreatedAtSeconds,
	}
}

func toEventPayloads(records []events.Event) []eventPayload {
	payloads := make([]eventPayload, 0, len(records))
	for _, record := range records {
		payloads = append(payloads, toEventPayload(record))
	}
	return payloads
}

type profilePayload struct {
	UserID           string `json:"user_id"`
	Email            string `json:"email"`
	DisplayName      string `json:"display_name"`
	CreatedAtSeconds int64  `json:"created_at_s"`
	UpdatedAtSeconds int64  `json:"updated_at_s"`
}

func toProfilePayload(profile users.Profile) profilePayload {
	return profilePayload{
		UserID:           profile.UserID,
		Email:            profile.Email,
		DisplayName:      profile.DisplayName,
		CreatedAtSeconds: profile.CreatedAtSeconds,
		UpdatedAtSeconds: profile.UpdatedAtSeconds,
	}
}
