package certificates

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RenewalStatus classifies how much renewal risk a certificate carries.
type RenewalStatus string

const (
	StatusComplete RenewalStatus = "complete"
	StatusDanger   RenewalStatus = "danger"
	StatusOnTrack  RenewalStatus = "on-track"
	StatusBehind   RenewalStatus = "behind"
	StatusUnknown  RenewalStatus = "unknown"
)

const (
	reminderWindowDays   = 90
	dangerWindowDays     = 30
	onTrackThreshold     = 75.0
	behindThreshold      = 40.0
	lowProgressThreshold = 25.0
)

// Classify derives the renewal-risk status from progress and the renewal date.
// Completion always wins over date pressure; an unparseable or absent renewal
// date removes the date checks entirely.
func Classify(progress float64, renewalDate *time.Time, today time.Time) RenewalStatus {
	if progress >= 100 {
		return StatusComplete
	}
	if renewalDate != nil && DaysUntil(*renewalDate, today) <= dangerWindowDays {
		return StatusDanger
	}
	if progress >= onTrackThreshold {
		return StatusOnTrack
	}
	if progress >= behindThreshold {
		return StatusBehind
	}
	return StatusDanger
}

// Reminder flags a certificate that needs the user's attention.
type Reminder struct {
	Type            string `json:"type"`
	Message         string `json:"message"`
	CertificateID   string `json:"cert_id"`
	CertificateName string `json:"cert_name"`
}

// Reminders produces renewal and low-progress notices for a certificate. The
// two conditions fire independently, so a certificate yields zero, one, or two
// entries.
func Reminders(view View, today time.Time) []Reminder {
	var reminders []Reminder

	if view.ParsedRenewalDate != nil && view.ProgressPercentage < 100 {
		days := DaysUntil(*view.ParsedRenewalDate, today)
		if days <= reminderWindowDays {
			remaining := float64(view.RequiredCPEs) - view.EarnedCPEs
			if remaining < 0 {
				remaining = 0
			}
			reminders = append(reminders, Reminder{
				Type: "renewal",
				Message: fmt.Sprintf("%s renewal is in %d days and you need %.1f more CPEs",
					view.Name, days, remaining),
				CertificateID:   view.ID,
				CertificateName: view.Name,
			})
		}
	}

	if view.ProgressPercentage < lowProgressThreshold {
		reminders = append(reminders, Reminder{
			Type:            "low_progress",
			Message:         fmt.Sprintf("%s has very low progress (%.1f%%)", view.Name, view.ProgressPercentage),
			CertificateID:   view.ID,
			CertificateName: view.Name,
		})
	}

	return reminders
}

// DaysUntil counts whole calendar days from today to the target date.
func DaysUntil(target, today time.Time) int {
	return int(truncateToDate(target).Sub(truncateToDate(today)).Hours() / 24)
}

var renewalDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999",
}

// ParseRenewalDate normalizes a stored renewal value to a calendar date. It
// accepts plain dates, ISO-8601 timestamps, and unix-second strings; anything
// else is treated as no renewal date.
func ParseRenewalDate(value string) (time.Time, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, false
	}
	for _, layout := range renewalDateLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return truncateToDate(parsed.UTC()), true
		}
	}
	if seconds, err := strconv.ParseInt(trimmed, 10, 64); err == nil && seconds > 0 {
		return truncateToDate(time.Unix(seconds, 0).UTC()), true
	}
	return time.Time{}, false
}

func truncateToDate(value time.Time) time.Time {
	year, month, day := value.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
