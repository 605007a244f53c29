package recommendations

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/credtrack/credtrack/backend/internal/apperr"
	"github.com/credtrack/credtrack/backend/internal/identifier"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	generalAuthority   = "general"
	generalFallbackCap = 3
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingUserID     = errors.New("user identifier is required")
	noOpLogger           = zap.NewNop()
)

const (
	opResolverNew = "recommendations.resolver.new"
	opResolve     = "recommendations.resolve"
	opListUser    = "recommendations.list_user"
)

// ResolverConfig describes the dependencies of the recommendation resolver.
type ResolverConfig struct {
	Database   *gorm.DB
	Feed       *FeedClient
	Clock      func() time.Time
	IDProvider identifier.Provider
	Logger     *zap.Logger
}

// Resolver produces ranked learning resources for a certificate: live feed
// results first, curated fallbacks when the feed yields nothing, and an
// idempotent per-user cache of whatever was resolved.
type Resolver struct {
	db         *gorm.DB
	feed       *FeedClient
	clock      func() time.Time
	idProvider identifier.Provider
	logger     *zap.Logger
}

// NewResolver constructs the resolver with validated dependencies. The feed
// client is optional; without one, resolution starts at the curated fallback.
func NewResolver(cfg ResolverConfig) (*Resolver, error) {
	if cfg.Database == nil {
		return nil, apperr.New(opResolverNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, apperr.New(opResolverNew, "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Resolver{
		db:         cfg.Database,
		feed:       cfg.Feed,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// Resolve returns learning resources for the certificate, feed order
// preserved. When userID is set and the user has no cached recommendations
// yet, every resolved entry is persisted into the cache. The emptiness check
// and the inserts are separate statements: two concurrent first resolutions
// for the same user can both pass the check and cache duplicates, which is
// harmless here.
func (r *Resolver) Resolve(ctx context.Context, certName, certAuthority, userID string) ([]Resource, error) {
	name := strings.ToLower(strings.TrimSpace(certName))
	authority := strings.ToLower(strings.TrimSpace(certAuthority))

	var resources []Resource
	if r.feed != nil {
		resources = r.feed.Fetch(ctx, name, authority, userID)
	}

	if len(resources) == 0 {
		resources = r.fallback(ctx, authority)
	}

	if userID != "" {
		r.cache(ctx, userID, resources)
	}

	return resources, nil
}

// fallback applies the curated sources in fixed order: authority-tagged rows,
// then the hard-coded OffSec set, then a capped general set. Query failures
// degrade to whatever was collected so far.
func (r *Resolver) fallback(ctx context.Context, authority string) []Resource {
	var resources []Resource

	var curated []CuratedRecommendation
	err := r.db.WithContext(ctx).
		Where("approved = ? AND target_authority = ?", true, authority).
		Order("created_at_s DESC").
		Find(&curated).Error
	if err != nil {
		r.logError(opResolve, "curated_query_failed", err, zap.String("authority", authority))
	}
	for _, row := range curated {
		resources = append(resources, row.resource())
	}

	if len(resources) == 0 && isOffSecAuthority(authority) {
		resources = append(resources, offSecResources()...)
	}

	if len(resources) == 0 {
		var general []CuratedRecommendation
		err := r.db.WithContext(ctx).
			Where("approved = ? AND target_authority = ?", true, generalAuthority).
			Order("created_at_s DESC").
			Limit(generalFallbackCap).
			Find(&general).Error
		if err != nil {
			r.logError(opResolve, "general_query_failed", err)
		}
		for _, row := range general {
			resources = append(resources, row.resource())
		}
	}

	return resources
}

func (r *Resolver) cache(ctx context.Context, userID string, resources []Resource) {
	if len(resources) == 0 {
		return
	}

	var existing int64
	err := r.db.WithContext(ctx).
		Model(&Recommendation{}).
		Where("user_id = ?", userID).
		Count(&existing).Error
	if err != nil {
		r.logError(opResolve, "cache_check_failed", err, zap.String("user_id", userID))
		return
	}
	if existing > 0 {
		return
	}

	now := r.clock().UTC().Unix()
	for _, resource := range resources {
		recordID, err := r.idProvider.NewID()
		if err != nil {
			r.logError(opResolve, "id_generation_failed", err, zap.String("user_id", userID))
			return
		}
		record := Recommendation{
			ID:               recordID,
			UserID:           userID,
			Title:            resource.Title,
			URL:              resource.URL,
			Type:             resource.Type,
			Source:           resource.Source,
			Description:      resource.Description,
			CPE:              resource.CPE,
			CreatedAtSeconds: now,
		}
		if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
			r.logError(opResolve, "cache_insert_failed", err, zap.String("user_id", userID))
		}
	}
}

// ListUserRecommendations returns the user's cached recommendations after
// lazily pruning expired entries.
func (r *Resolver) ListUserRecommendations(ctx context.Context, userID string) ([]Recommendation, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.New(opListUser, "missing_user_id", errMissingUserID)
	}

	now := r.clock().UTC().Unix()
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND expires_at_s IS NOT NULL AND expires_at_s < ?", userID, now).
		Delete(&Recommendation{}).Error
	if err != nil {
		r.logError(opListUser, "prune_failed", err, zap.String("user_id", userID))
	}

	var records []Recommendation
	err = r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at_s DESC").
		Find(&records).Error
	if err != nil {
		r.logError(opListUser, "query_failed", err, zap.String("user_id", userID))
		return nil, apperr.New(opListUser, "query_failed", err)
	}
	return records, nil
}

func isOffSecAuthority(authority string) bool {
	return strings.Contains(authority, "offsec") || strings.Contains(authority, "offensive security")
}

// offSecResources is the fixed fallback set for OffSec-issued certificates,
// returned in this exact order.
func offSecResources() []Resource {
	return []Resource{
		{
			Title:       "OffSec Proving Grounds (Labs)",
			URL:         "https://www.offsec.com/labs/",
			Type:        "lab",
			Source:      "OffSec",
			Description: "Engage in hands-on labs. 1 CPE per hour of active engagement.",
			CPE:         1,
		},
		{
			Title:       "Author a Security White Paper",
			URL:         "https://help.offsec.com/hc/en-us/articles/35366391096596",
			Type:        "research",
			Source:      "OffSec",
			Description: "Write and publish a technical security paper (up to 40 CPEs).",
			CPE:         40,
		},
		{
			Title:       "Develop Open Source Security Tool",
			URL:         "https://github.com/",
			Type:        "development",
			Source:      "Community",
			Description: "Create or contribute significantly to a security tool (up to 40 CPEs).",
			CPE:         40,
		},
	}
}

func (r *Resolver) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	r.logger.Error("recommendations resolver error", attrs...)
}
