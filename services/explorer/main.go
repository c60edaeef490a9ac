// Copyright (C) 2025 Scoutline (oss@scoutline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/scoutline/scoutline/pkg/logging"
	"github.com/scoutline/scoutline/services/explorer/config"
	"github.com/scoutline/scoutline/services/explorer/datatypes"
	"github.com/scoutline/scoutline/services/explorer/middleware"
	"github.com/scoutline/scoutline/services/explorer/persistence"
	"github.com/scoutline/scoutline/services/explorer/retention"
	"github.com/scoutline/scoutline/services/explorer/routes"
	"github.com/scoutline/scoutline/services/explorer/state"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		// Tracing is optional; run without it when no collector is set.
		return func(context.Context) {}, nil
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("explorer-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// loadInitialState resolves the starting snapshot: the locally cached
// snapshot when one exists, otherwise a fresh state for the configured
// identity.
func loadInitialState(ctx context.Context, cache persistence.LocalCache, identity string) *datatypes.ExplorationState {
	data, err := cache.Get(ctx, persistence.DefaultCacheKey)
	if err == nil {
		var snap datatypes.ExplorationState
		if uerr := json.Unmarshal(data, &snap); uerr == nil && snap.IdentityToken == identity {
			slog.Info("resuming from cached snapshot", "version", snap.Version)
			return &snap
		}
		slog.Warn("cached snapshot unusable, starting fresh")
	} else if !errors.Is(err, persistence.ErrSnapshotNotFound) {
		slog.Warn("local cache read failed, starting fresh", "error", err)
	}
	return datatypes.NewExplorationState(identity)
}

func main() {
	cfg, err := config.Load(os.Getenv("EXPLORER_CONFIG"))
	if err != nil {
		log.Fatalf("FATAL: bad configuration: %v", err)
	}

	lg := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.LogLevel),
		LogDir:  cfg.LogDir,
		Service: "explorer",
		JSON:    true,
	})
	defer lg.Close()
	logger := lg.Slog()
	slog.SetDefault(logger)

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	// --- Identity ---
	// The identity is verified upstream; here it only has to exist and be
	// well-formed. A missing identity gets an ephemeral one (local dev).
	identity := strings.TrimSpace(cfg.Identity)
	if identity == "" {
		identity = uuid.New().String()
		slog.Warn("no identity configured, using ephemeral identity", "identity", identity)
	}

	// --- Local cache ---
	cacheCfg := persistence.DefaultBadgerConfig(cfg.CachePath)
	cacheCfg.Logger = logger
	cache, err := persistence.OpenBadgerCache(cacheCfg)
	if err != nil {
		log.Fatalf("FATAL: could not open the local snapshot cache: %v", err)
	}
	defer cache.Close()

	// --- State manager ---
	initial := loadInitialState(context.Background(), cache, identity)
	mgr, err := state.NewManager(state.Config{Initial: initial, Logger: logger})
	if err != nil {
		log.Fatalf("FATAL: could not initialize the state manager: %v", err)
	}

	// --- Remote backends, ranked ---
	var backends []persistence.RemoteBackend
	if cfg.ProfileStoreURL != "" {
		remote, err := persistence.NewHTTPRemoteStore(cfg.ProfileStoreURL, 0)
		if err != nil {
			log.Fatalf("FATAL: bad profile store configuration: %v", err)
		}
		backends = append(backends, remote)
	} else {
		slog.Info("no profile store configured, running without a remote store")
	}
	if cfg.Environment == "development" {
		fileStore, err := persistence.NewFileSnapshotStore(cfg.SnapshotDir)
		if err != nil {
			log.Fatalf("FATAL: could not create the snapshot directory: %v", err)
		}
		backends = append(backends, fileStore)
		slog.Info("development mode: file snapshot fallback enabled", "dir", cfg.SnapshotDir)
	}

	cascade, err := persistence.NewCascade(persistence.CascadeConfig{
		Cache:    cache,
		Backends: backends,
		Logger:   logger,
	}, mgr.Snapshot)
	if err != nil {
		log.Fatalf("FATAL: could not initialize the persistence cascade: %v", err)
	}
	defer cascade.Close()
	mgr.SetCascade(cascade)

	// --- Tombstone retention (opt-in) ---
	retentionCfg := retention.DefaultConfig()
	retentionCfg.MaxTombstoneAge = cfg.TombstoneMaxAge
	if retentionCfg.MaxTombstoneAge > 0 {
		scheduler := retention.NewScheduler(mgr, retentionCfg, logger)
		if err := scheduler.Start(context.Background()); err != nil {
			log.Fatalf("FATAL: could not start the retention scheduler: %v", err)
		}
		defer scheduler.Stop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger.With(slog.String("component", "http"))))
	router.Use(otelgin.Middleware("explorer-service"))
	routes.SetupRoutes(router, mgr)

	log.Println("Starting the explorer server on port ", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
