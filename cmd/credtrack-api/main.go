package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/credtrack/credtrack/backend/internal/activities"
	"github.com/credtrack/credtrack/backend/internal/auth"
	"github.com/credtrack/credtrack/backend/internal/certificates"
	"github.com/credtrack/credtrack/backend/internal/config"
	"github.com/credtrack/credtrack/backend/internal/database"
	"github.com/credtrack/credtrack/backend/internal/events"
	"github.com/credtrack/credtrack/backend/internal/identifier"
	"github.com/credtrack/credtrack/backend/internal/ledger"
	"github.com/credtrack/credtrack/backend/internal/logging"
	"github.com/credtrack/credtrack/backend/internal/recommendations"
	"github.com/credtrack/credtrack/backend/internal/server"
	"github.com/credtrack/credtrack/backend/internal/users"
	"github.com/credtrack/credtrack/backend/internal/verification"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "credtrack-api",
		Short: "CredTrack continuing-education backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("token.ttl_minutes"), "Backend token TTL in minutes")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Backend signing secret (overrides env)")
	cmd.PersistentFlags().String("identity-signing-secret", "", "Identity provider signing secret (overrides env)")
	cmd.PersistentFlags().String("identity-issuer", defaults.GetString("identity.issuer"), "Identity provider issuer")
	cmd.PersistentFlags().String("feed-url", defaults.GetString("feed.url"), "Recommendation feed URL")
	cmd.PersistentFlags().Int("feed-timeout-seconds", defaults.GetInt("feed.timeout_seconds"), "Recommendation feed timeout in seconds")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "token.ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "identity.signing_secret", "identity-signing-secret")
	bindFlag(cmd, "identity.issuer", "identity-issuer")
	bindFlag(cmd, "feed.url", "feed-url")
	bindFlag(cmd, "feed.timeout_seconds", "feed-timeout-seconds")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	tokenManager := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        "credtrack-auth",
		Audience:      "credtrack-api",
		TokenTTL:      appConfig.TokenTTL,
	})

	identityVerifier, err := auth.NewIdentityVerifier(auth.IdentityVerifierConfig{
		SigningSecret: []byte(appConfig.IdentitySigningSecret),
		Issuer:        appConfig.IdentityIssuer,
	})
	if err != nil {
		return err
	}

	idProvider := identifier.NewUUIDProvider()

	ledgerEngine, err := ledger.NewEngine(ledger.EngineConfig{
		Database: db,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	activityService, err := activities.NewService(activities.ServiceConfig{
		Database:   db,
		Ledger:     ledgerEngine,
		Clock:      time.Now,
		IDProvider: idProvider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	certificateService, err := certificates.NewService(certificates.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: idProvider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	pipeline, err := verification.NewPipeline(verification.PipelineConfig{
		Database:   db,
		Activities: activityService,
		Clock:      time.Now,
		IDProvider: idProvider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	feedClient := recommendations.NewFeedClient(recommendations.FeedClientConfig{
		URL:     appConfig.FeedURL,
		Timeout: appConfig.FeedTimeout,
		Logger:  logger,
	})

	resolver, err := recommendations.NewResolver(recommendations.ResolverConfig{
		Database:   db,
		Feed:       feedClient,
		Clock:      time.Now,
		IDProvider: idProvider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	community, err := recommendations.NewCommunity(recommendations.CommunityConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: idProvider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	eventService, err := events.NewService(events.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: idProvider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	userService, err := users.NewService(users.ServiceConfig{
		Database: db,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		IdentityVerifier: identityVerifier,
		TokenManager:     tokenManager,
		Activities:       activityService,
		Certificates:     certificateService,
		Ledger:           ledgerEngine,
		Verifications:    pipeline,
		Resolver:         resolver,
		Community:        community,
		Events:           eventService,
		Users:            userService,
		Clock:            time.Now,
		Logger:           logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
