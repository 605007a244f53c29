package verification

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/credtrack/credtrack/backend/internal/activities"
	"github.com/credtrack/credtrack/backend/internal/grading"
	"github.com/credtrack/credtrack/backend/internal/ledger"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type sequenceIDProvider struct {
	prefix string
	index  int
}

func (p *sequenceIDProvider) NewID() (string, error) {
	p.index++
	return fmt.Sprintf("%s-%d", p.prefix, p.index), nil
}

func newTestPipeline(t *testing.T) (*Pipeline, *activities.Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:verification_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&activities.Activity{}, &Verification{}, &ledger.CreditBalance{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	clock := func() time.Time { return time.Unix(1700000600, 0).UTC() }
	engine, err := ledger.NewEngine(ledger.EngineConfig{Database: db, Clock: clock})
	if err != nil {
		t.Fatalf("failed to construct engine: %v", err)
	}
	activityService, err := activities.NewService(activities.ServiceConfig{
		Database:   db,
		Ledger:     engine,
		Clock:      clock,
		IDProvider: &sequenceIDProvider{prefix: "act"},
	})
	if err != nil {
		t.Fatalf("failed to construct activity service: %v", err)
	}
	pipeline, err := NewPipeline(PipelineConfig{
		Database:   db,
		Activities: activityService,
		Clock:      clock,
		IDProvider: &sequenceIDProvider{prefix: "ver"},
	})
	if err != nil {
		t.Fatalf("failed to construct pipeline: %v", err)
	}
	return pipeline, activityService, db
}

func TestVerifyAllAppliesAutoApprovedAwards(t *testing.T) {
	pipeline, activityService, _ := newTestPipeline(t)
	ctx := context.Background()

	duration := 55.0
	created, err := activityService.Create(ctx, "user-1", activities.CreateRequest{
		Title:         "Exploit Development Course",
		ActivityType:  "course",
		DurationHours: &duration,
		CPEPoints:     55,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	results, err := pipeline.VerifyAll(ctx, "user-1")
	if err != nil {
		t.Fatalf("verify all failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one verification, got %d", len(results))
	}
	record := results[0]
	if record.Status != StatusVerified {
		t.Fatalf("expected verified status, got %q", record.Status)
	}
	if record.AwardedCPE == nil || *record.AwardedCPE != 40 {
		t.Fatalf("expected capped award 40, got %v", record.AwardedCPE)
	}
	if record.Reason != "course_40.0_hours" {
		t.Fatalf("unexpected reason %q", record.Reason)
	}
	if record.VerifiedAtSeconds == nil {
		t.Fatalf("expected verified timestamp")
	}

	stored, err := activityService.Get(ctx, "user-1", created.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Status != activities.StatusApproved {
		t.Fatalf("expected approved activity, got %q", stored.Status)
	}
	if stored.CPEPoints != 40 {
		t.Fatalf("expected authoritative points 40, got %v", stored.CPEPoints)
	}
}

func TestVerifyAllLeavesUnprovenClaimsPending(t *testing.T) {
	pipeline, activityService, _ := newTestPipeline(t)
	ctx := context.Background()

	created, err := activityService.Create(ctx, "user-1", activities.CreateRequest{
		Title:        "Self study",
		ActivityType: "self_study",
		CPEPoints:    5,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	results, err := pipeline.VerifyAll(ctx, "user-1")
	if err != nil {
		t.Fatalf("verify all failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one verification, got %d", len(results))
	}
	if results[0].Status != StatusPending {
		t.Fatalf("expected pending status, got %q", results[0].Status)
	}
	if results[0].Reason != grading.ReasonUserProvidedNoEvidence {
		t.Fatalf("unexpected reason %q", results[0].Reason)
	}
	if results[0].AwardedCPE != nil {
		t.Fatalf("expected no award for pending record")
	}

	stored, err := activityService.Get(ctx, "user-1", created.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Status != activities.StatusDraft {
		t.Fatalf("expected activity to stay draft, got %q", stored.Status)
	}
}

func TestRerunAppendsRecordsWithoutDoubleAwarding(t *testing.T) {
	pipeline, activityService, db := newTestPipeline(t)
	ctx := context.Background()

	duration := 10.0
	created, err := activityService.Create(ctx, "user-1", activities.CreateRequest{
		Title:         "Webinar",
		ActivityType:  "webinar",
		DurationHours: &duration,
		CPEPoints:     10,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := pipeline.VerifyAll(ctx, "user-1"); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	second, err := pipeline.VerifyAll(ctx, "user-1")
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	// The audit trail is append-only: every run writes a record.
	var recordCount int64
	err = db.Model(&Verification{}).
		Where("activity_id = ?", created.ID).
		Count(&recordCount).Error
	if err != nil {
		t.Fatalf("failed to count records: %v", err)
	}
	if recordCount != 2 {
		t.Fatalf("expected two verification records, got %d", recordCount)
	}

	if second[0].Reason != grading.ReasonAlreadyAwarded {
		t.Fatalf("expected already_awarded on rerun, got %q", second[0].Reason)
	}
	if second[0].AwardedCPE == nil || *second[0].AwardedCPE != 10 {
		t.Fatalf("expected stable award 10, got %v", second[0].AwardedCPE)
	}

	stored, err := activityService.Get(ctx, "user-1", created.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.CPEPoints != 10 {
		t.Fatalf("expected points unchanged at 10, got %v", stored.CPEPoints)
	}

	total, err := totalCredits(db, "user-1")
	if err != nil {
		t.Fatalf("failed to read balance: %v", err)
	}
	if total != 10 {
		t.Fatalf("expected total to stay 10 after rerun, got %v", total)
	}
}

func TestListPendingFiltersByStatus(t *testing.T) {
	pipeline, activityService, _ := newTestPipeline(t)
	ctx := context.Background()

	duration := 2.0
	if _, err := activityService.Create(ctx, "user-1", activities.CreateRequest{
		Title: "Webinar", ActivityType: "webinar", DurationHours: &duration, CPEPoints: 2,
	}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := activityService.Create(ctx, "user-1", activities.CreateRequest{
		Title: "Unproven", ActivityType: "self_study", CPEPoints: 5,
	}); err != nil {
		t.Fatalf("second create failed: %v", err)
	}

	if _, err := pipeline.VerifyAll(ctx, "user-1"); err != nil {
		t.Fatalf("verify all failed: %v", err)
	}

	pending, err := pipeline.ListPending(ctx, "user-1")
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected one pending record, got %d", len(pending))
	}
	if pending[0].Status != StatusPending {
		t.Fatalf("expected pending status, got %q", pending[0].Status)
	}

	all, err := pipeline.List(ctx, "user-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected two records, got %d", len(all))
	}
}

func totalCredits(db *gorm.DB, userID string) (float64, error) {
	var balance ledger.CreditBalance
	if err := db.Where("user_id = ?", userID).Take(&balance).Error; err != nil {
		return 0, err
	}
	return balance.TotalCredits, nil
}
