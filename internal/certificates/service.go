package certificates

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/credtrack/credtrack/backend/internal/apperr"
	"github.com/credtrack/credtrack/backend/internal/identifier"
	"github.com/credtrack/credtrack/backend/internal/ledger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrCertificateNotFound indicates the referenced certificate does not exist for the user.
	ErrCertificateNotFound = errors.New("certificates: certificate not found")

	errMissingDatabase      = errors.New("database handle is required")
	errMissingIDProvider    = errors.New("id provider is required")
	errMissingUserID        = errors.New("user identifier is required")
	errMissingCertificateID = errors.New("certificate identifier is required")
	noOpLogger              = zap.NewNop()
)

const (
	opServiceNew = "certificates.service.new"
	opCreate     = "certificates.create"
	opGet        = "certificates.get"
	opList       = "certificates.list"
	opUpdate     = "certificates.update"
	opDelete     = "certificates.delete"
)

// ServiceConfig describes the dependencies of the certificate service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider identifier.Provider
	Logger     *zap.Logger
}

// Service manages certificate records and resolves their renewal
// classification on read.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider identifier.Provider
	logger     *zap.Logger
}

// NewService constructs the certificate service with validated dependencies.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, apperr.New(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, apperr.New(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{db: cfg.Database, clock: clock, idProvider: cfg.IDProvider, logger: logger}, nil
}

// CreateRequest carries the user-supplied fields of a new certificate.
type CreateRequest struct {
	Name         string
	Authority    string
	RequiredCPEs int
	RenewalDate  string
}

// Create persists a new certificate with zeroed aggregates.
func (s *Service) Create(ctx context.Context, userID string, request CreateRequest) (Certificate, error) {
	if strings.TrimSpace(userID) == "" {
		return Certificate{}, apperr.New(opCreate, "missing_user_id", errMissingUserID)
	}

	certificateID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreate, "id_generation_failed", err, zap.String("user_id", userID))
		return Certificate{}, apperr.New(opCreate, "id_generation_failed", err)
	}

	required := request.RequiredCPEs
	if required < 0 {
		required = 0
	}
	now := s.clock().UTC().Unix()
	certificate := Certificate{
		ID:               certificateID,
		UserID:           userID,
		Name:             strings.TrimSpace(request.Name),
		Authority:        strings.TrimSpace(request.Authority),
		RequiredCPEs:     required,
		RenewalDate:      normalizeRenewalDate(request.RenewalDate),
		CreatedAtSeconds: now,
		UpdatedAtSeconds: now,
	}

	if err := s.db.WithContext(ctx).Create(&certificate).Error; err != nil {
		s.logError(opCreate, "insert_failed", err, zap.String("user_id", userID))
		return Certificate{}, apperr.New(opCreate, "insert_failed", err)
	}
	return certificate, nil
}

// Get returns a single certificate with its classification resolved.
func (s *Service) Get(ctx context.Context, userID, certificateID string) (View, error) {
	certificate, err := s.fetch(ctx, opGet, userID, certificateID)
	if err != nil {
		return View{}, err
	}
	return s.resolve(certificate), nil
}

// List returns the user's certificates with status and progress resolved. The
// progress ratio is re-derived from the stored aggregates on every read as a
// defensive consistency pass.
func (s *Service) List(ctx context.Context, userID string) ([]View, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.New(opList, "missing_user_id", errMissingUserID)
	}
	var records []Certificate
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at_s DESC").
		Find(&records).Error
	if err != nil {
		s.logError(opList, "query_failed", err, zap.String("user_id", userID))
		return nil, apperr.New(opList, "query_failed", err)
	}

	views := make([]View, 0, len(records))
	for _, certificate := range records {
		views = append(views, s.resolve(certificate))
	}
	return views, nil
}

// UpdateRequest carries a partial certificate edit; nil fields are left untouched.
type UpdateRequest struct {
	Name         *string
	Authority    *string
	RequiredCPEs *int
	RenewalDate  *string
}

// Update applies a partial edit. A changed requirement re-derives the
// progress percentage from the stored earned total.
func (s *Service) Update(ctx context.Context, userID, certificateID string, request UpdateRequest) (View, error) {
	certificate, err := s.fetch(ctx, opUpdate, userID, certificateID)
	if err != nil {
		return View{}, err
	}

	updates := map[string]interface{}{
		"updated_at_s": s.clock().UTC().Unix(),
	}
	if request.Name != nil {
		updates["name"] = strings.TrimSpace(*request.Name)
	}
	if request.Authority != nil {
		updates["authority"] = strings.TrimSpace(*request.Authority)
	}
	if request.RequiredCPEs != nil {
		required := *request.RequiredCPEs
		if required < 0 {
			required = 0
		}
		updates["required_cpes"] = required
		updates["progress_percentage"] = ledger.ProgressPercentage(certificate.EarnedCPEs, required)
	}
	if request.RenewalDate != nil {
		updates["renewal_date"] = normalizeRenewalDate(*request.RenewalDate)
	}

	err = s.db.WithContext(ctx).
		Model(&Certificate{}).
		Where("user_id = ? AND id = ?", userID, certificateID).
		Updates(updates).Error
	if err != nil {
		s.logError(opUpdate, "update_failed", err,
			zap.String("user_id", userID), zap.String("certificate_id", certificateID))
		return View{}, apperr.New(opUpdate, "update_failed", err)
	}

	return s.Get(ctx, userID, certificateID)
}

// Delete removes a certificate. Activities keep their certification reference;
// the next edit that touches them re-sums against whatever exists then.
func (s *Service) Delete(ctx context.Context, userID, certificateID string) error {
	if _, err := s.fetch(ctx, opDelete, userID, certificateID); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, certificateID).
		Delete(&Certificate{}).Error
	if err != nil {
		s.logError(opDelete, "delete_failed", err,
			zap.String("user_id", userID), zap.String("certificate_id", certificateID))
		return apperr.New(opDelete, "delete_failed", err)
	}
	return nil
}

func (s *Service) fetch(ctx context.Context, operation, userID, certificateID string) (Certificate, error) {
	if strings.TrimSpace(userID) == "" {
		return Certificate{}, apperr.New(operation, "missing_user_id", errMissingUserID)
	}
	if strings.TrimSpace(certificateID) == "" {
		return Certificate{}, apperr.New(operation, "missing_certificate_id", errMissingCertificateID)
	}
	var certificate Certificate
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, certificateID).
		Take(&certificate).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Certificate{}, ErrCertificateNotFound
	}
	if err != nil {
		s.logError(operation, "query_failed", err,
			zap.String("user_id", userID), zap.String("certificate_id", certificateID))
		return Certificate{}, apperr.New(operation, "query_failed", err)
	}
	return certificate, nil
}

func (s *Service) resolve(certificate Certificate) View {
	today := s.clock().UTC()
	certificate.ProgressPercentage = ledger.ProgressPercentage(certificate.EarnedCPEs, certificate.RequiredCPEs)

	view := View{Certificate: certificate}
	if parsed, ok := ParseRenewalDate(certificate.RenewalDate); ok {
		days := DaysUntil(parsed, today)
		view.ParsedRenewalDate = &parsed
		view.DaysUntilRenewal = &days
	}
	view.Status = Classify(certificate.ProgressPercentage, view.ParsedRenewalDate, today)
	return view
}

// normalizeRenewalDate stores any accepted representation as a plain date
// string; unparseable input degrades to empty rather than failing the write.
func normalizeRenewalDate(value string) string {
	parsed, ok := ParseRenewalDate(value)
	if !ok {
		return ""
	}
	return parsed.Format("2006-01-02")
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("certificates service error", attrs...)
}
