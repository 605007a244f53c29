package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/credtrack/credtrack/backend/internal/activities"
	"github.com/credtrack/credtrack/backend/internal/auth"
	"github.com/credtrack/credtrack/backend/internal/certificates"
	"github.com/credtrack/credtrack/backend/internal/events"
	"github.com/credtrack/credtrack/backend/internal/identifier"
	"github.com/credtrack/credtrack/backend/internal/ledger"
	"github.com/credtrack/credtrack/backend/internal/recommendations"
	"github.com/credtrack/credtrack/backend/internal/users"
	"github.com/credtrack/credtrack/backend/internal/verification"
	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

var (
	routerTestNow        = time.Unix(1700000600, 0).UTC()
	identityIssuer       = "credtrack-identity"
	identitySecret       = []byte("identity-secret")
	backendSigningSecret = []byte("backend-secret")
)

type sequenceIDProvider struct {
	index int
}

func (p *sequenceIDProvider) NewID() (string, error) {
	p.index++
	return fmt.Sprintf("id-%d", p.index), nil
}

type testServer struct {
	handler http.Handler
	issuer  *auth.TokenIssuer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:server_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&activities.Activity{},
		&certificates.Certificate{},
		&ledger.CreditBalance{},
		&verification.Verification{},
		&recommendations.Recommendation{},
		&recommendations.CuratedRecommendation{},
		&events.Event{},
		&users.Profile{},
	)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	clock := func() time.Time { return routerTestNow }
	var idProvider identifier.Provider = &sequenceIDProvider{}

	engine, err := ledger.NewEngine(ledger.EngineConfig{Database: db, Clock: clock})
	if err != nil {
		t.Fatalf("failed to construct ledger: %v", err)
	}
	activityService, err := activities.NewService(activities.ServiceConfig{
		Database: db, Ledger: engine, Clock: clock, IDProvider: idProvider,
	})
	if err != nil {
		t.Fatalf("failed to construct activity service: %v", err)
	}
	certificateService, err := certificates.NewService(certificates.ServiceConfig{
		Database: db, Clock: clock, IDProvider: idProvider,
	})
	if err != nil {
		t.Fatalf("failed to construct certificate service: %v", err)
	}
	pipeline, err := verification.NewPipeline(verification.PipelineConfig{
		Database: db, Activities: activityService, Clock: clock, IDProvider: idProvider,
	})
	if err != nil {
		t.Fatalf("failed to construct pipeline: %v", err)
	}
	resolver, err := recommendations.NewResolver(recommendations.ResolverConfig{
		Database: db, Clock: clock, IDProvider: idProvider,
	})
	if err != nil {
		t.Fatalf("failed to construct resolver: %v", err)
	}
	community, err := recommendations.NewCommunity(recommendations.CommunityConfig{
		Database: db, Clock: clock, IDProvider: idProvider,
	})
	if err != nil {
		t.Fatalf("failed to construct community: %v", err)
	}
	eventService, err := events.NewService(events.ServiceConfig{
		Database: db, Clock: clock, IDProvider: idProvider,
	})
	if err != nil {
		t.Fatalf("failed to construct event service: %v", err)
	}
	userService, err := users.NewService(users.ServiceConfig{Database: db, Clock: clock})
	if err != nil {
		t.Fatalf("failed to construct user service: %v", err)
	}

	verifier, err := auth.NewIdentityVerifier(auth.IdentityVerifierConfig{
		SigningSecret: identitySecret,
		Issuer:        identityIssuer,
		Clock:         clock,
	})
	if err != nil {
		t.Fatalf("failed to construct verifier: %v", err)
	}
	issuer := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: backendSigningSecret,
		Issuer:        "credtrack-auth",
		Audience:      "credtrack-api",
		TokenTTL:      time.Hour,
		Clock:         clock,
	})

	handler, err := NewHTTPHandler(Dependencies{
		IdentityVerifier: verifier,
		TokenManager:     issuer,
		Activities:       activityService,
		Certificates:     certificateService,
		Ledger:           engine,
		Verifications:    pipeline,
		Resolver:         resolver,
		Community:        community,
		Events:           eventService,
		Users:            userService,
		Clock:            clock,
	})
	if err != nil {
		t.Fatalf("failed to construct handler: %v", err)
	}

	return &testServer{handler: handler, issuer: issuer}
}

func (s *testServer) bearerToken(t *testing.T, userID string) string {
	t.Helper()
	token, _, err := s.issuer.IssueBackendToken(context.Background(), auth.IdentityClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
	})
	if err != nil {
		t.Fatalf("failed to issue bearer token: %v", err)
	}
	return token
}

func (s *testServer) request(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	s.handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
}

func signIdentityToken(t *testing.T, subject, email, displayName string) string {
	t.Helper()

	claims := auth.IdentityClaims{
		UserEmail:       email,
		UserDisplayName: displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    identityIssuer,
			IssuedAt:  jwt.NewNumericDate(routerTestNow),
			ExpiresAt: jwt.NewNumericDate(routerTestNow.Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(identitySecret)
	if err != nil {
		t.Fatalf("failed to sign identity token: %v", err)
	}
	return signed
}

func TestTokenExchangeIssuesBackendToken(t *testing.T) {
	server := newTestServer(t)

	identityToken := signIdentityToken(t, "user-1", "user@example.com", "Example User")
	recorder := server.request(t, http.MethodPost, "/auth/token", "", gin.H{"id_token": identityToken})
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", recorder.Code, recorder.Body.String())
	}

	var response tokenResponsePayload
	decodeBody(t, recorder, &response)
	if response.AccessToken == "" {
		t.Fatalf("expected access token in response")
	}
	if response.TokenType != "Bearer" {
		t.Fatalf("unexpected token type %q", response.TokenType)
	}
	if response.ExpiresIn != int64(time.Hour.Seconds()) {
		t.Fatalf("unexpected lifetime %d", response.ExpiresIn)
	}

	profileRecorder := server.request(t, http.MethodGet, "/profile", response.AccessToken, nil)
	if profileRecorder.Code != http.StatusOK {
		t.Fatalf("unexpected profile status %d: %s", profileRecorder.Code, profileRecorder.Body.String())
	}
	var profile profilePayload
	decodeBody(t, profileRecorder, &profile)
	if profile.Email != "user@example.com" {
		t.Fatalf("expected profile provisioned during exchange, got %+v", profile)
	}
}

func TestTokenExchangeRejectsBadIdentityToken(t *testing.T) {
	server := newTestServer(t)

	recorder := server.request(t, http.MethodPost, "/auth/token", "", gin.H{"id_token": "garbage"})
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}

	empty := server.request(t, http.MethodPost, "/auth/token", "", gin.H{"id_token": "  "})
	if empty.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank token, got %d", empty.Code)
	}
}

func TestProtectedRoutesRequireBearerToken(t *testing.T) {
	server := newTestServer(t)

	recorder := server.request(t, http.MethodGet, "/certificates", "", nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", recorder.Code)
	}

	forged := server.request(t, http.MethodGet, "/certificates", "not-a-jwt", nil)
	if forged.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for forged token, got %d", forged.Code)
	}
}

func TestActivityLifecycleDrivesLedger(t *testing.T) {
	server := newTestServer(t)
	token := server.bearerToken(t, "user-1")

	created := server.request(t, http.MethodPost, "/certificates", token, gin.H{
		"name":          "OSCP",
		"authority":     "OffSec",
		"required_cpes": 40,
	})
	if created.Code != http.StatusCreated {
		t.Fatalf("unexpected certificate status %d: %s", created.Code, created.Body.String())
	}
	var certificate certificatePayload
	decodeBody(t, created, &certificate)

	activityRecorder := server.request(t, http.MethodPost, "/activities", token, gin.H{
		"title":            "Advanced Web Attacks",
		"activity_type":    "course",
		"cpe_points":       10,
		"certification_id": certificate.ID,
	})
	if activityRecorder.Code != http.StatusCreated {
		t.Fatalf("unexpected activity status %d: %s", activityRecorder.Code, activityRecorder.Body.String())
	}
	var activity activityPayload
	decodeBody(t, activityRecorder, &activity)
	if activity.Status != "draft" {
		t.Fatalf("expected draft activity, got %q", activity.Status)
	}

	refreshed := server.request(t, http.MethodGet, "/certificates/"+certificate.ID, token, nil)
	if refreshed.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", refreshed.Code)
	}
	decodeBody(t, refreshed, &certificate)
	if certificate.EarnedCPEs != 10 || certificate.ProgressPercentage != 25 {
		t.Fatalf("expected ledger-driven progress, got %+v", certificate)
	}

	dashboardRecorder := server.request(t, http.MethodGet, "/dashboard", token, nil)
	if dashboardRecorder.Code != http.StatusOK {
		t.Fatalf("unexpected dashboard status %d", dashboardRecorder.Code)
	}
	var dashboard dashboardPayload
	decodeBody(t, dashboardRecorder, &dashboard)
	if dashboard.TotalCPEs != 10 {
		t.Fatalf("expected running total 10, got %v", dashboard.TotalCPEs)
	}
	if dashboard.CertificateCount != 1 || dashboard.ActivityCount != 1 {
		t.Fatalf("unexpected dashboard counts %+v", dashboard)
	}

	deleted := server.request(t, http.MethodDelete, "/activities/"+activity.ID, token, nil)
	if deleted.Code != http.StatusOK {
		t.Fatalf("unexpected delete status %d", deleted.Code)
	}
	missing := server.request(t, http.MethodGet, "/activities/"+activity.ID, token, nil)
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", missing.Code)
	}
}

func TestActivitiesAreScopedToCaller(t *testing.T) {
	server := newTestServer(t)
	ownerToken := server.bearerToken(t, "user-1")
	otherToken := server.bearerToken(t, "user-2")

	created := server.request(t, http.MethodPost, "/activities", ownerToken, gin.H{
		"title":      "Private course",
		"cpe_points": 5,
	})
	if created.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d", created.Code)
	}
	var activity activityPayload
	decodeBody(t, created, &activity)

	foreign := server.request(t, http.MethodGet, "/activities/"+activity.ID, otherToken, nil)
	if foreign.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign caller, got %d", foreign.Code)
	}
}

func TestEventOwnershipEnforcedOverHTTP(t *testing.T) {
	server := newTestServer(t)
	ownerToken := server.bearerToken(t, "user-1")
	otherToken := server.bearerToken(t, "user-2")

	created := server.request(t, http.MethodPost, "/events", ownerToken, gin.H{
		"title": "BSides meetup",
	})
	if created.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", created.Code, created.Body.String())
	}
	var event eventPayload
	decodeBody(t, created, &event)

	hijack := server.request(t, http.MethodPut, "/events/"+event.ID, otherToken, gin.H{
		"title": "Hijacked",
	})
	if hijack.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign update, got %d", hijack.Code)
	}

	badLimit := server.request(t, http.MethodGet, "/events?limit=abc", ownerToken, nil)
	if badLimit.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", badLimit.Code)
	}
}

func TestVerificationRunOverHTTP(t *testing.T) {
	server := newTestServer(t)
	token := server.bearerToken(t, "user-1")

	hours := 55.0
	created := server.request(t, http.MethodPost, "/activities", token, gin.H{
		"title":          "Long course",
		"activity_type":  "course",
		"duration_hours": hours,
	})
	if created.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d", created.Code)
	}

	run := server.request(t, http.MethodPost, "/verifications/run", token, nil)
	if run.Code != http.StatusOK {
		t.Fatalf("unexpected run status %d: %s", run.Code, run.Body.String())
	}
	var runResponse struct {
		Verifications []verificationPayload `json:"verifications"`
	}
	decodeBody(t, run, &runResponse)
	if len(runResponse.Verifications) != 1 {
		t.Fatalf("expected one verification record, got %d", len(runResponse.Verifications))
	}
	record := runResponse.Verifications[0]
	if record.Status != "verified" {
		t.Fatalf("expected verified record, got %q", record.Status)
	}
	if record.AwardedCPE == nil || *record.AwardedCPE != 40 {
		t.Fatalf("expected capped course award, got %v", record.AwardedCPE)
	}
}

func TestCertificateReportOverHTTP(t *testing.T) {
	server := newTestServer(t)
	token := server.bearerToken(t, "user-1")

	created := server.request(t, http.MethodPost, "/certificates", token, gin.H{
		"name":          "CISSP",
		"authority":     "ISC2",
		"required_cpes": 120,
	})
	if created.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d", created.Code)
	}
	var certificate certificatePayload
	decodeBody(t, created, &certificate)

	attach := server.request(t, http.MethodPost, "/activities", token, gin.H{
		"title":            "Webinar",
		"cpe_points":       6.5,
		"certification_id": certificate.ID,
	})
	if attach.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d", attach.Code)
	}

	report := server.request(t, http.MethodGet, "/certificates/"+certificate.ID+"/report", token, nil)
	if report.Code != http.StatusOK {
		t.Fatalf("unexpected report status %d: %s", report.Code, report.Body.String())
	}
	var body struct {
		Certificate struct {
			Name string `json:"name"`
		} `json:"certificate"`
		Activities []json.RawMessage `json:"activities"`
		TotalCPEs  float64           `json:"total_cpes"`
	}
	decodeBody(t, report, &body)
	if body.Certificate.Name != "CISSP" {
		t.Fatalf("unexpected certificate in report %+v", body)
	}
	if len(body.Activities) != 1 || body.TotalCPEs != 6.5 {
		t.Fatalf("unexpected report contents %+v", body)
	}
}

func TestMissingResourcesReturnNotFound(t *testing.T) {
	server := newTestServer(t)
	token := server.bearerToken(t, "user-1")

	if recorder := server.request(t, http.MethodGet, "/certificates/ghost", token, nil); recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing certificate, got %d", recorder.Code)
	}
	if recorder := server.request(t, http.MethodGet, "/events/ghost", token, nil); recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing event, got %d", recorder.Code)
	}
	if recorder := server.request(t, http.MethodGet, "/profile", token, nil); recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing profile, got %d", recorder.Code)
	}
}
