package certificates

import (
	"strings"
	"testing"
	"time"
)

var classifierToday = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func daysFromToday(days int) *time.Time {
	date := classifierToday.AddDate(0, 0, days)
	return &date
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name        string
		progress    float64
		renewalDate *time.Time
		expected    RenewalStatus
	}{
		{name: "complete wins over imminent renewal", progress: 100, renewalDate: daysFromToday(5), expected: StatusComplete},
		{name: "over one hundred percent", progress: 150, renewalDate: nil, expected: StatusComplete},
		{name: "renewal inside danger window", progress: 90, renewalDate: daysFromToday(30), expected: StatusDanger},
		{name: "renewal already passed", progress: 90, renewalDate: daysFromToday(-10), expected: StatusDanger},
		{name: "on track with distant renewal", progress: 80, renewalDate: daysFromToday(200), expected: StatusOnTrack},
		{name: "on track without renewal date", progress: 75, renewalDate: nil, expected: StatusOnTrack},
		{name: "behind", progress: 40, renewalDate: nil, expected: StatusBehind},
		{name: "low progress is danger", progress: 39.9, renewalDate: nil, expected: StatusDanger},
		{name: "zero progress is danger", progress: 0, renewalDate: nil, expected: StatusDanger},
	}

	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			got := Classify(testCase.progress, testCase.renewalDate, classifierToday)
			if got != testCase.expected {
				t.Fatalf("expected %q, got %q", testCase.expected, got)
			}
		})
	}
}

func TestRemindersRenewalWindow(t *testing.T) {
	view := View{
		Certificate: Certificate{
			ID:                 "cert-1",
			Name:               "OSCP",
			RequiredCPEs:       40,
			EarnedCPEs:         25.5,
			ProgressPercentage: 63.75,
		},
		ParsedRenewalDate: daysFromToday(45),
	}

	reminders := Reminders(view, classifierToday)
	if len(reminders) != 1 {
		t.Fatalf("expected one reminder, got %d", len(reminders))
	}
	reminder := reminders[0]
	if reminder.Type != "renewal" {
		t.Fatalf("expected renewal reminder, got %q", reminder.Type)
	}
	expected := "OSCP renewal is in 45 days and you need 14.5 more CPEs"
	if reminder.Message != expected {
		t.Fatalf("expected message %q, got %q", expected, reminder.Message)
	}
	if reminder.CertificateID != "cert-1" {
		t.Fatalf("unexpected certificate id %q", reminder.CertificateID)
	}
}

func TestRemindersCompleteCertificateStaysQuiet(t *testing.T) {
	view := View{
		Certificate: Certificate{
			ID:                 "cert-1",
			Name:               "OSCP",
			RequiredCPEs:       40,
			EarnedCPEs:         40,
			ProgressPercentage: 100,
		},
		ParsedRenewalDate: daysFromToday(10),
	}

	if reminders := Reminders(view, classifierToday); len(reminders) != 0 {
		t.Fatalf("expected no reminders for complete certificate, got %d", len(reminders))
	}
}

func TestRemindersLowProgressFiresIndependently(t *testing.T) {
	view := View{
		Certificate: Certificate{
			ID:                 "cert-2",
			Name:               "CISSP",
			RequiredCPEs:       120,
			EarnedCPEs:         6,
			ProgressPercentage: 5,
		},
		ParsedRenewalDate: daysFromToday(20),
	}

	reminders := Reminders(view, classifierToday)
	if len(reminders) != 2 {
		t.Fatalf("expected renewal and low-progress reminders, got %d", len(reminders))
	}
	if reminders[1].Type != "low_progress" {
		t.Fatalf("expected low_progress reminder, got %q", reminders[1].Type)
	}
	if !strings.Contains(reminders[1].Message, "(5.0%)") {
		t.Fatalf("expected formatted progress in message, got %q", reminders[1].Message)
	}
}

func TestRemindersExcessEarnedClampsRemaining(t *testing.T) {
	view := View{
		Certificate: Certificate{
			ID:                 "cert-3",
			Name:               "CEH",
			RequiredCPEs:       40,
			EarnedCPEs:         45,
			ProgressPercentage: 99,
		},
		ParsedRenewalDate: daysFromToday(30),
	}

	reminders := Reminders(view, classifierToday)
	if len(reminders) != 1 {
		t.Fatalf("expected one reminder, got %d", len(reminders))
	}
	if !strings.Contains(reminders[0].Message, "0.0 more CPEs") {
		t.Fatalf("expected clamped remaining, got %q", reminders[0].Message)
	}
}

func TestDaysUntilIgnoresTimeOfDay(t *testing.T) {
	target := time.Date(2026, time.March, 3, 1, 0, 0, 0, time.UTC)
	today := time.Date(2026, time.March, 1, 23, 59, 0, 0, time.UTC)

	if days := DaysUntil(target, today); days != 2 {
		t.Fatalf("expected 2 days, got %d", days)
	}
}

func TestParseRenewalDate(t *testing.T) {
	cases := []struct {
		name     string
		value    string
		expected string
		ok       bool
	}{
		{name: "plain date", value: "2026-06-15", expected: "2026-06-15", ok: true},
		{name: "rfc3339", value: "2026-06-15T10:30:00Z", expected: "2026-06-15", ok: true},
		{name: "timestamp without zone", value: "2026-06-15T10:30:00", expected: "2026-06-15", ok: true},
		{name: "timestamp with micros", value: "2026-06-15T10:30:00.123456", expected: "2026-06-15", ok: true},
		{name: "unix seconds", value: "1781740800", expected: "2026-06-18", ok: true},
		{name: "empty", value: "", ok: false},
		{name: "whitespace", value: "   ", ok: false},
		{name: "garbage", value: "next summer", ok: false},
	}

	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			parsed, ok := ParseRenewalDate(testCase.value)
			if ok != testCase.ok {
				t.Fatalf("expected ok=%v, got %v", testCase.ok, ok)
			}
			if !ok {
				return
			}
			if got := parsed.Format("2006-01-02"); got != testCase.expected {
				t.Fatalf("expected %s, got %s", testCase.expected, got)
			}
		})
	}
}
