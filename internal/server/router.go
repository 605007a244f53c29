package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/credtrack/credtrack/backend/internal/activities"
	"github.com/credtrack/credtrack/backend/internal/auth"
	"github.com/credtrack/credtrack/backend/internal/certificates"
	"github.com/credtrack/credtrack/backend/internal/events"
	"github.com/credtrack/credtrack/backend/internal/ledger"
	"github.com/credtrack/credtrack/backend/internal/recommendations"
	"github.com/credtrack/credtrack/backend/internal/users"
	"github.com/credtrack/credtrack/backend/internal/verification"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const userIDContextKey = "credtrack_user_id"

var (
	errMissingIdentityVerifier = errors.New("identity verifier dependency required")
	errMissingTokenManager     = errors.New("token manager dependency required")
	errMissingActivityService  = errors.New("activity service dependency required")
	errMissingCertService      = errors.New("certificate service dependency required")
	errMissingLedgerEngine     = errors.New("ledger engine dependency required")
	errMissingPipeline         = errors.New("verification pipeline dependency required")
	errMissingResolver         = errors.New("recommendation resolver dependency required")
	errMissingCommunity        = errors.New("community service dependency required")
	errMissingEventService     = errors.New("event service dependency required")
	errMissingUserService      = errors.New("user service dependency required")
	errInvalidAuthorization    = errors.New("authorization header missing or invalid")
)

// IdentityVerifier validates tokens minted by the external identity provider.
type IdentityVerifier interface {
	ValidateToken(token string) (auth.IdentityClaims, error)
}

// BackendTokenManager issues and validates this service's own bearer tokens.
type BackendTokenManager interface {
	IssueBackendToken(ctx context.Context, identity auth.IdentityClaims) (string, int64, error)
	ValidateToken(token string) (string, error)
}

// Dependencies carries every service the HTTP surface dispatches into.
type Dependencies struct {
	IdentityVerifier IdentityVerifier
	TokenManager     BackendTokenManager
	Activities       *activities.Service
	Certificates     *certificates.Service
	Ledger           *ledger.Engine
	Verifications    *verification.Pipeline
	Resolver         *recommendations.Resolver
	Community        *recommendations.Community
	Events           *events.Service
	Users            *users.Service
	Clock            func() time.Time
	Logger           *zap.Logger
}

// NewHTTPHandler wires the full route table. Every route except the token
// exchange requires a valid backend bearer token.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.IdentityVerifier == nil {
		return nil, errMissingIdentityVerifier
	}
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.Activities == nil {
		return nil, errMissingActivityService
	}
	if deps.Certificates == nil {
		return nil, errMissingCertService
	}
	if deps.Ledger == nil {
		return nil, errMissingLedgerEngine
	}
	if deps.Verifications == nil {
		return nil, errMissingPipeline
	}
	if deps.Resolver == nil {
		return nil, errMissingResolver
	}
	if deps.Community == nil {
		return nil, errMissingCommunity
	}
	if deps.Events == nil {
		return nil, errMissingEventService
	}
	if deps.Users == nil {
		return nil, errMissingUserService
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		verifier:      deps.IdentityVerifier,
		tokens:        deps.TokenManager,
		activities:    deps.Activities,
		certificates:  deps.Certificates,
		ledger:        deps.Ledger,
		verifications: deps.Verifications,
		resolver:      deps.Resolver,
		community:     deps.Community,
		events:        deps.Events,
		users:         deps.Users,
		clock:         clock,
		logger:        logger,
	}

	router.POST("/auth/token", handler.handleTokenExchange)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)

	protected.GET("/activities", handler.handleListActivities)
	protected.POST("/activities", handler.handleCreateActivity)
	protected.GET("/activities/:id", handler.handleGetActivity)
	protected.PUT("/activities/:id", handler.handleUpdateActivity)
	protected.DELETE("/activities/:id", handler.handleDeleteActivity)

	protected.GET("/certificates", handler.handleListCertificates)
	protected.POST("/certificates", handler.handleCreateCertificate)
	protected.GET("/certificates/:id", handler.handleGetCertificate)
	protected.PUT("/certificates/:id", handler.handleUpdateCertificate)
	protected.DELETE("/certificates/:id", handler.handleDeleteCertificate)
	protected.GET("/certificates/:id/recommendations", handler.handleCertificateRecommendations)
	protected.GET("/certificates/:id/report", handler.handleCertificateReport)

	protected.POST("/verifications/run", handler.handleRunVerifications)
	protected.GET("/verifications", handler.handleListVerifications)

	protected.GET("/recommendations", handler.handleListCachedRecommendations)
	protected.POST("/recommendations", handler.handleSubmitRecommendation)
	protected.GET("/recommendations/mine", handler.handleListMyRecommendations)
	protected.GET("/recommendations/pending", handler.handleListPendingRecommendations)
	protected.PUT("/recommendations/:id", handler.handleUpdateRecommendation)
	protected.DELETE("/recommendations/:id", handler.handleDeleteRecommendation)

	protected.GET("/events", handler.handleListEvents)
	protected.POST("/events", handler.handleCreateEvent)
	protected.GET("/events/:id", handler.handleGetEvent)
	protected.PUT("/events/:id", handler.handleUpdateEvent)
	protected.DELETE("/events/:id", handler.handleDeleteEvent)

	protected.GET("/profile", handler.handleGetProfile)
	protected.PUT("/profile", handler.handleUpdateProfile)

	protected.GET("/dashboard", handler.handleDashboard)

	return router, nil
}

type httpHandler struct {
	verifier      IdentityVerifier
	tokens        BackendTokenManager
	activities    *activities.Service
	certificates  *certificates.Service
	ledger        *ledger.Engine
	verifications *verification.Pipeline
	resolver      *recommendations.Resolver
	community     *recommendations.Community
	events        *events.Service
	users         *users.Service
	clock         func() time.Time
	logger        *zap.Logger
}

type tokenRequestPayload struct {
	IDToken string `json:"id_token"`
}

type tokenResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (h *httpHandler) handleTokenExchange(c *gin.Context) {
	var request tokenRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.IDToken) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	claims, err := h.verifier.ValidateToken(request.IDToken)
	if err != nil {
		h.logger.Warn("identity token verification failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.users.Ensure(c.Request.Context(), claims.Subject, claims.UserEmail, claims.UserDisplayName); err != nil {
		h.logger.Warn("profile ensure failed", zap.Error(err), zap.String("user_id", claims.Subject))
	}

	token, expiresIn, err := h.tokens.IssueBackendToken(c.Request.Context(), claims)
	if err != nil {
		h.logger.Error("failed to issue backend token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.JSON(http.StatusOK, tokenResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
	})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, subject)
	c.Next()
}

func (h *httpHandler) currentUserID(c *gin.Context) (string, bool) {
	userID := c.GetString(userIDContextKey)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return userID, true
}

// respondServiceError maps domain sentinels onto HTTP statuses; anything
// unmapped is a 500.
func (h *httpHandler) respondServiceError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, activities.ErrActivityNotFound),
		errors.Is(err, certificates.ErrCertificateNotFound),
		errors.Is(err, events.ErrEventNotFound),
		errors.Is(err, recommendations.ErrRecommendationNotFound),
		errors.Is(err, users.ErrProfileNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, events.ErrNotOwner),
		errors.Is(err, recommendations.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	default:
		h.logger.Error(message, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
