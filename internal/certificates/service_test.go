package certificates

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type staticIDProvider struct {
	ids   []string
	index int
}

func (p *staticIDProvider) NewID() (string, error) {
	if p.index >= len(p.ids) {
		return "", fmt.Errorf("id provider exhausted")
	}
	id := p.ids[p.index]
	p.index++
	return id, nil
}

var serviceToday = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func newCertificateService(t *testing.T, ids []string) (*Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:certificates_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Certificate{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	service, err := NewService(ServiceConfig{
		Database:   db,
		Clock:      func() time.Time { return serviceToday },
		IDProvider: &staticIDProvider{ids: ids},
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service, db
}

func TestCreateNormalizesRenewalDate(t *testing.T) {
	service, _ := newCertificateService(t, []string{"cert-1"})

	certificate, err := service.Create(context.Background(), "user-1", CreateRequest{
		Name:         "OSCP",
		Authority:    "OffSec",
		RequiredCPEs: 40,
		RenewalDate:  "2026-06-15T10:30:00Z",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if certificate.RenewalDate != "2026-06-15" {
		t.Fatalf("expected normalized renewal date, got %q", certificate.RenewalDate)
	}
}

func TestCreateDropsUnparseableRenewalDate(t *testing.T) {
	service, _ := newCertificateService(t, []string{"cert-1"})

	certificate, err := service.Create(context.Background(), "user-1", CreateRequest{
		Name:        "OSCP",
		RenewalDate: "next summer",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if certificate.RenewalDate != "" {
		t.Fatalf("expected empty renewal date, got %q", certificate.RenewalDate)
	}
}

func TestGetResolvesStatusAndDays(t *testing.T) {
	service, db := newCertificateService(t, []string{"cert-1"})
	ctx := context.Background()

	created, err := service.Create(ctx, "user-1", CreateRequest{
		Name:         "OSCP",
		RequiredCPEs: 40,
		RenewalDate:  "2026-03-21",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	err = db.Model(&Certificate{}).
		Where("id = ?", created.ID).
		Update("earned_cpes", 32).Error
	if err != nil {
		t.Fatalf("failed to seed earned credits: %v", err)
	}

	view, err := service.Get(ctx, "user-1", created.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if view.ProgressPercentage != 80 {
		t.Fatalf("expected re-derived progress 80, got %v", view.ProgressPercentage)
	}
	if view.DaysUntilRenewal == nil || *view.DaysUntilRenewal != 20 {
		t.Fatalf("expected 20 days until renewal, got %v", view.DaysUntilRenewal)
	}
	if view.Status != StatusDanger {
		t.Fatalf("expected danger inside renewal window, got %q", view.Status)
	}
}

func TestUpdateRequirementRederivesProgress(t *testing.T) {
	service, db := newCertificateService(t, []string{"cert-1"})
	ctx := context.Background()

	created, err := service.Create(ctx, "user-1", CreateRequest{Name: "OSCP", RequiredCPEs: 40})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	err = db.Model(&Certificate{}).
		Where("id = ?", created.ID).
		Update("earned_cpes", 20).Error
	if err != nil {
		t.Fatalf("failed to seed earned credits: %v", err)
	}

	required := 20
	view, err := service.Update(ctx, "user-1", created.ID, UpdateRequest{RequiredCPEs: &required})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if view.RequiredCPEs != 20 {
		t.Fatalf("expected requirement 20, got %d", view.RequiredCPEs)
	}
	if view.ProgressPercentage != 100 {
		t.Fatalf("expected progress 100 after requirement change, got %v", view.ProgressPercentage)
	}
	if view.Status != StatusComplete {
		t.Fatalf("expected complete status, got %q", view.Status)
	}
}

func TestDeleteRemovesCertificate(t *testing.T) {
	service, _ := newCertificateService(t, []string{"cert-1"})
	ctx := context.Background()

	created, err := service.Create(ctx, "user-1", CreateRequest{Name: "OSCP"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := service.Delete(ctx, "user-1", created.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	_, err = service.Get(ctx, "user-1", created.ID)
	if !errors.Is(err, ErrCertificateNotFound) {
		t.Fatalf("expected ErrCertificateNotFound, got %v", err)
	}
}

func TestGetIsScopedToOwner(t *testing.T) {
	service, _ := newCertificateService(t, []string{"cert-1"})
	ctx := context.Background()

	created, err := service.Create(ctx, "user-1", CreateRequest{Name: "OSCP"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	_, err = service.Get(ctx, "user-2", created.ID)
	if !errors.Is(err, ErrCertificateNotFound) {
		t.Fatalf("expected not found for foreign user, got %v", err)
	}
}
