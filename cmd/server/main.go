package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"traceport/internal/audit"
	"traceport/internal/content"
	contentservice "traceport/internal/content/service"
	"traceport/internal/delegation"
	delegationservice "traceport/internal/delegation/service"
	"traceport/internal/media"
	"traceport/internal/notify"
	"traceport/internal/permission"
	"traceport/internal/platform/config"
	"traceport/internal/platform/httpserver"
	"traceport/internal/platform/logger"
	"traceport/internal/platform/metrics"
	"traceport/internal/platform/middleware"
	platformredis "traceport/internal/platform/redis"
	"traceport/internal/record"
	recordservice "traceport/internal/record/service"
	"traceport/internal/schema"
	httptransport "traceport/internal/transport/http"
	"traceport/internal/version"
	versionservice "traceport/internal/version/service"
	"traceport/pkg/platform/sentinel"
)

const auditInboxSize = 1024

// main wires stores, services, and the HTTP router, then runs the server
// until interrupted. Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		db  *sql.DB
		err error
	)
	if cfg.PostgresDSN != "" {
		db, err = sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Error("postgres open failed", "error", err)
			os.Exit(1)
		}
		if err := db.PingContext(ctx); err != nil {
			log.Error("postgres ping failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	var (
		records   record.Store
		contents  content.Store
		bindings  permission.BindingStore
		versions  version.Store
		medias    media.Store
		publishTx versionservice.TxRunner
		contentTx contentservice.TxRunner
	)
	if db != nil {
		records = record.NewPostgres(db)
		contents = content.NewPostgres(db)
		bindings = permission.NewPostgresBindingStore(db)
		versions = version.NewPostgres(db)
		medias = media.NewPostgres(db)
		runner := newPostgresTxRunner(db)
		publishTx = runner
		contentTx = runner
	} else {
		log.Warn("no POSTGRES_DSN configured, using in-memory stores")
		records = record.NewInMemoryStore()
		contents = content.NewInMemoryStore()
		bindings = permission.NewInMemoryBindingStore()
		versions = version.NewInMemoryStore()
		medias = media.NewInMemoryStore()
		publishTx = versionservice.PassthroughRunner{}
		contentTx = contentservice.PassthroughRunner{}
	}

	// The template catalog is read-only at runtime and seeded at boot.
	schemaStore := schema.NewInMemoryStore()
	if err := schema.SeedDefaults(ctx, schemaStore); err != nil {
		log.Error("template catalog seed failed", "error", err)
		os.Exit(1)
	}

	var grants delegation.Store
	if cfg.RedisAddr != "" {
		redisClient, err := platformredis.New(cfg.RedisAddr)
		if err != nil {
			log.Error("redis connect failed", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		grants = delegation.NewRedisStore(redisClient.Client)
	} else {
		log.Warn("no REDIS_ADDR configured, using in-memory grant store")
		grants = delegation.NewInMemoryStore()
	}

	g, ctx := errgroup.WithContext(ctx)

	var auditSink audit.Store
	if len(cfg.KafkaBrokers) > 0 {
		kafkaStore, err := audit.NewKafkaStore(cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			log.Error("kafka connect failed", "error", err)
			os.Exit(1)
		}
		defer kafkaStore.Close()

		// Broker latency stays off the request path: services append to the
		// inbox and the worker drains into Kafka.
		inbox := make(chan audit.Event, auditInboxSize)
		auditSink = &channelStore{inbox: inbox}
		worker := audit.NewWorker(kafkaStore, inbox)
		g.Go(func() error {
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	} else {
		auditSink = audit.NewInMemoryStore()
	}
	publisher := audit.NewPublisher(auditSink)

	m := metrics.New()
	schemas := schema.NewService(schemaStore)
	resolver := permission.NewResolver(records, bindings, delegation.NewGrantSource(grants))
	notifier := notify.NewNotifier(notify.NewLogSink(log), &notify.StaticDirectory{}, log)

	contentSvc := contentservice.New(contents, records, schemas,
		contentservice.WithLogger(log),
		contentservice.WithAuditPublisher(publisher),
		contentservice.WithMetrics(m),
		contentservice.WithTxRunner(contentTx),
	)
	recordSvc := recordservice.New(records, resolver,
		recordservice.WithLogger(log),
		recordservice.WithAuditPublisher(publisher),
	)
	grantSvc := delegationservice.New(grants, records, resolver, schemas, contentSvc,
		delegationservice.WithLogger(log),
		delegationservice.WithAuditPublisher(publisher),
		delegationservice.WithNotifier(notifier),
		delegationservice.WithMetrics(m),
	)
	versionSvc := versionservice.New(versions, records, contents, medias, schemas, resolver, publishTx,
		versionservice.WithLogger(log),
		versionservice.WithAuditPublisher(publisher),
		versionservice.WithNotifier(notifier),
		versionservice.WithMetrics(m),
	)
	bindingSvc := permission.NewBindingService(bindings, records,
		permission.WithLogger(log),
		permission.WithAuditPublisher(publisher),
	)
	mediaSvc := media.NewService(medias, resolver,
		media.WithLogger(log),
		media.WithAuditPublisher(publisher),
	)

	handler := httptransport.New(
		log,
		middleware.NewActorParser(cfg.JWTSigningKey),
		resolver,
		recordSvc,
		contentSvc,
		grantSvc,
		versionSvc,
		bindingSvc,
		mediaSvc,
		m,
		cfg.GrantTTL,
	)
	srv := httpserver.New(cfg.Addr, handler.NewRouter())

	g.Go(func() error {
		log.Info("starting traceport", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

// channelStore adapts the audit inbox channel to the Store interface so the
// publisher stays sink-agnostic. Reads are served downstream, never here.
type channelStore struct {
	inbox chan<- audit.Event
}

func (s *channelStore) Append(_ context.Context, event audit.Event) error {
	select {
	case s.inbox <- event:
		return nil
	default:
		return sentinel.ErrUnavailable
	}
}

func (s *channelStore) ListByEntity(context.Context, string) ([]audit.Event, error) {
	return nil, sentinel.ErrUnavailable
}
