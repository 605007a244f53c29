package grading

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ActivityType enumerates the kinds of continuing-education work a user can claim.
type ActivityType string

const (
	ActivityTypeCourse         ActivityType = "course"
	ActivityTypeConference     ActivityType = "conference"
	ActivityTypeWebinar        ActivityType = "webinar"
	ActivityTypePublicSpeaking ActivityType = "public_speaking"
	ActivityTypePublishedPaper ActivityType = "published_paper"
	ActivityTypeLabSubmission  ActivityType = "lab_submission"
	ActivityTypeSelfStudy      ActivityType = "self_study"
	ActivityTypeTeaching       ActivityType = "teaching"
	ActivityTypeCertification  ActivityType = "certification"
)

const (
	courseCapHours     = 40.0
	fixedEventAward    = 4.0
	labSubmissionAward = 20.0
)

// Reason codes for grading outcomes that carry no variable component.
const (
	ReasonAlreadyAwarded         = "already_awarded"
	ReasonCourseMissingDuration  = "course_missing_duration"
	ReasonLabSubmissionAccepted  = "lab_submission_accepted"
	ReasonLabSubmissionPending   = "lab_submission_pending_acceptance"
	ReasonUserProvidedEvidence   = "user_provided_with_evidence"
	ReasonUserProvidedNoEvidence = "user_provided_no_evidence"
	ReasonUnableToGrade          = "unable_to_grade"
)

// Activity is the grader's view of a logged activity.
type Activity struct {
	Type           ActivityType
	DurationHours  *float64
	ClaimedCPE     *float64
	AwardedCPE     *float64
	ProofReference string
	Accepted       bool
}

// Award is a grading decision. A nil Amount means the activity stays pending
// for manual review; Reason always explains the outcome.
type Award struct {
	Amount       *float64
	Reason       string
	AutoApproved bool
}

// Grade converts a claimed activity into an awarded credit amount. Rules are
// evaluated in order and the first match wins. Re-grading an activity whose
// award is already finalized returns that award unchanged.
func Grade(activity Activity) Award {
	if activity.AwardedCPE != nil {
		return approved(*activity.AwardedCPE, ReasonAlreadyAwarded)
	}

	activityType := ActivityType(strings.ToLower(strings.TrimSpace(string(activity.Type))))
	duration := 0.0
	if activity.DurationHours != nil {
		duration = *activity.DurationHours
	}

	switch activityType {
	case ActivityTypeCourse:
		if duration > 0 {
			awarded := math.Min(duration, courseCapHours)
			return approved(awarded, fmt.Sprintf("course_%s_hours", formatHours(awarded)))
		}
		return pending(ReasonCourseMissingDuration)

	case ActivityTypeWebinar, ActivityTypeConference:
		if duration > 0 {
			return approved(duration, fmt.Sprintf("%s_%s_hours", activityType, formatHours(duration)))
		}
		return pending(fmt.Sprintf("%s_missing_duration", activityType))

	case ActivityTypePublicSpeaking, ActivityTypePublishedPaper:
		if activity.ProofReference != "" {
			return approved(fixedEventAward, fmt.Sprintf("%s_standard", activityType))
		}
		return pending(fmt.Sprintf("%s_no_evidence", activityType))

	case ActivityTypeLabSubmission:
		if activity.Accepted {
			return approved(labSubmissionAward, ReasonLabSubmissionAccepted)
		}
		return pending(ReasonLabSubmissionPending)
	}

	if activity.ClaimedCPE != nil {
		if activity.ProofReference != "" {
			return approved(*activity.ClaimedCPE, ReasonUserProvidedEvidence)
		}
		return pending(ReasonUserProvidedNoEvidence)
	}

	return pending(ReasonUnableToGrade)
}

func approved(amount float64, reason string) Award {
	return Award{Amount: &amount, Reason: reason, AutoApproved: true}
}

func pending(reason string) Award {
	return Award{Reason: reason}
}

// formatHours renders an hour count with at least one fractional digit, so a
// whole-hour award reads "40.0" while fractional values keep their precision.
func formatHours(value float64) string {
	if value == math.Trunc(value) {
		return strconv.FormatFloat(value, 'f', 1, 64)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
