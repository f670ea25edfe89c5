// Copyright 2026 The OpenPoll Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openpoll/openpoll/internal/audit"
	"github.com/openpoll/openpoll/internal/auth"
	"github.com/openpoll/openpoll/internal/config"
	"github.com/openpoll/openpoll/internal/observability/logger"
	"github.com/openpoll/openpoll/internal/observability/metrics"
	"github.com/openpoll/openpoll/internal/observability/tracing"
	"github.com/openpoll/openpoll/internal/outbox"
	"github.com/openpoll/openpoll/internal/response"
	"github.com/openpoll/openpoll/internal/store/postgres"
	"github.com/openpoll/openpoll/internal/survey"
	transportHTTP "github.com/openpoll/openpoll/internal/transport/http"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})
	slog.Info("starting openpoll survey backend")

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(cfg); err != nil {
			fmt.Printf("Migration failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	ctx := context.Background()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	}
	if tracer != nil {
		defer tracer.Shutdown(ctx)
	}

	// Initialize meter
	meter, err := metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
	}
	var surveyMetrics *metrics.SurveyMetrics
	if meter != nil {
		surveyMetrics, err = metrics.NewSurveyMetrics(meter)
		if err != nil {
			slog.Error("failed to register metrics", logger.Error(err))
		}
	}

	// Initialize database
	db, err := postgres.New(ctx, postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		slog.Error("failed to connect to database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to database")

	// Initialize repositories
	surveyRepo := postgres.NewSurveyRepository(db)
	questionRepo := postgres.NewQuestionRepository(db)
	responseRepo := postgres.NewResponseRepository(db)
	idempotencyRepo := postgres.NewIdempotencyRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	// Initialize services
	auditLogger := audit.NewSlogLogger()
	surveyService := survey.NewService(surveyRepo, questionRepo, auditLogger)
	responseService := response.NewService(
		surveyRepo,
		questionRepo,
		responseRepo,
		idempotencyRepo,
		auditLogger,
		surveyMetrics,
	)

	// Credential verifier. Open mode runs without one; requests are bound
	// to the header tenant or the fixed dev tenant.
	var verifier *auth.Verifier
	if cfg.Auth.Mode == config.AuthModeEnforced {
		verifier, err = auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
		if err != nil {
			slog.Error("failed to initialize credential verifier", logger.Error(err))
			os.Exit(1)
		}
	} else {
		slog.Warn("auth mode is open; requests run as the dev tenant",
			logger.TenantID(config.DevTenantID))
	}

	// Rate Limiter
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	// Initialize HTTP handler
	handler := transportHTTP.NewHandler(
		surveyService,
		responseService,
		verifier,
		auditLogger,
		surveyMetrics,
		cfg.Auth.Mode,
	)

	// Create router
	router := transportHTTP.NewRouter(handler, rateLimiter)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start outbox dispatcher
	dispatcherCtx, stopDispatcher := context.WithCancel(ctx)
	dispatcher := outbox.NewDispatcher(outboxRepo, outbox.SlogNotifier{}, cfg.Outbox.PollInterval, cfg.Outbox.BatchSize)
	go dispatcher.Run(dispatcherCtx)

	// Start server
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"))
		slog.Info(fmt.Sprintf("listening on %s", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	stopDispatcher()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
}

func runMigrate(cfg *config.Config) error {
	ctx := context.Background()
	db, err := postgres.New(ctx, postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("Applying initial schema...")
	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		return err
	}
	fmt.Println("Migration successful.")
	return nil
}
