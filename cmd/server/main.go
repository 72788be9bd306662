package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"

	"pfascert/internal/audit"
	"pfascert/internal/blob"
	"pfascert/internal/catalog"
	evidencehandler "pfascert/internal/evidence/handler"
	evmetrics "pfascert/internal/evidence/metrics"
	"pfascert/internal/evidence/service"
	evstore "pfascert/internal/evidence/store"
	"pfascert/internal/evidence/store/cache"
	"pfascert/internal/platform/config"
	"pfascert/internal/platform/httpserver"
	"pfascert/internal/platform/logger"
	platformredis "pfascert/internal/platform/redis"
	httptransport "pfascert/internal/transport/http"
	"pfascert/internal/verification"
	verificationhandler "pfascert/internal/verification/handler"
	vmetrics "pfascert/internal/verification/metrics"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	var db *sql.DB
	var evidenceStore evstore.Store
	var auditStore audit.Store
	var catalogStores catalogSet
	if cfg.DatabaseURL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Error("opening database", "error", err)
			os.Exit(1)
		}
		if err := db.Ping(); err != nil {
			log.Error("database unreachable", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		evidenceStore = evstore.NewPostgres(db)
		auditStore = audit.NewPostgres(db)
		pg := catalog.NewPostgres(db)
		catalogStores = catalogSet{pg, pg, pg.RiskTerms(), pg.History(), pg.Reviews()}
	} else {
		log.Warn("no database configured, using in-memory stores")
		evidenceStore = evstore.NewInMemoryStore()
		auditStore = audit.NewInMemoryStore()
		mem := catalog.NewInMemoryStore()
		catalogStores = catalogSet{mem, mem, mem.RiskTerms(), mem.History(), mem.Reviews()}
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		evidenceStore = cache.New(evidenceStore, redisClient.Client, log)
	}

	auditor := audit.NewPublisher(auditStore,
		audit.WithAsyncBuffer(cfg.AuditBuffer),
		audit.WithLogger(log),
	)
	defer auditor.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(cfg.Kafka.Brokers) > 0 {
		outbox, ok := auditStore.(audit.OutboxSource)
		if !ok {
			log.Error("kafka configured but the audit store has no outbox")
			os.Exit(1)
		}
		kafka, err := audit.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, outbox, log)
		if err != nil {
			log.Error("connecting to kafka", "error", err)
			os.Exit(1)
		}
		go func() {
			if err := kafka.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit outbox worker stopped", "error", err)
			}
		}()
	}

	// The in-memory store enforces the same write-once contract as an
	// object-locked bucket; S3-compatible backends plug in via blob.Store.
	blobs := blob.NewInMemoryStore()

	evidenceService := service.New(evidenceStore, blobs, auditor, log,
		service.WithMetrics(evmetrics.New()))

	builder := verification.NewContextBuilder(
		catalogStores.products,
		catalogStores.components,
		catalogStores.riskTerms,
		catalogStores.history,
		catalogStores.reviews,
		evidenceStore,
	)
	engine := verification.NewEngine(builder, log,
		verification.WithEngineMetrics(vmetrics.New()))

	router := httptransport.NewRouter(
		log,
		evidencehandler.New(evidenceService, log),
		verificationhandler.New(engine, log),
		func() error {
			if db != nil {
				if err := db.Ping(); err != nil {
					return err
				}
			}
			if redisClient != nil {
				return redisClient.Health(context.Background())
			}
			return nil
		},
	)

	srv := httpserver.New(cfg.Addr, router)
	log.Info("starting pfascert", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

// catalogSet bundles the five read-only repositories the context builder
// consumes.
type catalogSet struct {
	products   catalog.ProductStore
	components catalog.ComponentStore
	riskTerms  catalog.RiskTermStore
	history    catalog.VerificationHistoryStore
	reviews    catalog.NextReviewStore
}
