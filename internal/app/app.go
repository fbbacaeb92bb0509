// Package app wires configuration into the stores, brokers and services
// shared by the API and worker processes.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/evura/portal-api/internal/config"
	"github.com/evura/portal-api/internal/email"
	appointmenthandler "github.com/evura/portal-api/internal/handler/appointment"
	audithandler "github.com/evura/portal-api/internal/handler/audit"
	authhandler "github.com/evura/portal-api/internal/handler/auth"
	doctorhandler "github.com/evura/portal-api/internal/handler/doctor"
	fileshandler "github.com/evura/portal-api/internal/handler/files"
	healthhandler "github.com/evura/portal-api/internal/handler/health"
	patienthandler "github.com/evura/portal-api/internal/handler/patient"
	promhandler "github.com/evura/portal-api/internal/handler/prometheus"
	"github.com/evura/portal-api/internal/middleware"
	"github.com/evura/portal-api/internal/repository"
	"github.com/evura/portal-api/internal/repository/memory"
	"github.com/evura/portal-api/internal/repository/postgres"
	"github.com/evura/portal-api/internal/router"
	appointmentservice "github.com/evura/portal-api/internal/service/appointment"
	auditservice "github.com/evura/portal-api/internal/service/audit"
	authservice "github.com/evura/portal-api/internal/service/auth"
	"github.com/evura/portal-api/internal/service/identity"
	notificationservice "github.com/evura/portal-api/internal/service/notification"
	"github.com/evura/portal-api/internal/service/records"
	"github.com/evura/portal-api/pkg/auth"
	"github.com/evura/portal-api/pkg/blobstore"
	"github.com/evura/portal-api/pkg/logger"
	"github.com/evura/portal-api/pkg/messaging"
	memorybroker "github.com/evura/portal-api/pkg/messaging/memory"
	redisbroker "github.com/evura/portal-api/pkg/messaging/redis"
	"github.com/evura/portal-api/pkg/metrics"
	"github.com/evura/portal-api/pkg/security"
	"github.com/evura/portal-api/pkg/worker"
)

const MetricsNamespace = "evura"

// NewLogger builds the process logger and installs it as the global one.
func NewLogger(cfg config.LogConfig) *logger.Logger {
	l := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		Pretty:     cfg.Pretty,
	})
	logger.SetGlobal(l)
	return l
}

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// OpenStore connects the configured backend. The returned func releases it.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*repository.Store, func() error, error) {
	if cfg.Driver == "memory" {
		log.Warn("Using the in-memory store, data is lost on exit")
		return memory.NewStore(), func() error { return nil }, nil
	}

	db, err := postgres.NewDB(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if cfg.AutoMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Info("Database schema applied")
	}
	return postgres.NewStore(db), db.Close, nil
}

// OpenBroker connects the notification queue.
func OpenBroker(ctx context.Context, cfg *config.Config, log *logger.Logger) (messaging.Broker, error) {
	if cfg.Notification.Broker == "memory" {
		return memorybroker.NewBroker(0), nil
	}
	return redisbroker.NewRedisBroker(ctx, redisbroker.Config{
		URL:          cfg.Redis.URL,
		KeyPrefix:    cfg.Redis.KeyPrefix,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, log.Zerolog())
}

// OpenBlobStore opens the upload directory, encrypting at rest when a key is
// configured.
func OpenBlobStore(cfg config.StorageConfig) (blobstore.Store, error) {
	var enc security.Encryptor
	if cfg.EncryptionKey != "" {
		var err error
		enc, err = security.NewAESEncryptor(security.KeyFromSecret(cfg.EncryptionKey))
		if err != nil {
			return nil, fmt.Errorf("failed to set up storage encryption: %w", err)
		}
	}
	return blobstore.NewLocalStore(cfg.Dir, cfg.MaxFileBytes, enc)
}

func NewSender(cfg config.MailConfig, log *logger.Logger) email.Sender {
	if cfg.Driver == "smtp" {
		return email.NewSMTPSender(email.SMTPConfig{
			Host:     cfg.Host,
			Port:     cfg.Port,
			Username: cfg.Username,
			Password: cfg.Password,
			From:     cfg.From,
		})
	}
	return email.NewLogSender(*log.Zerolog())
}

func NewDispatcher(cfg *config.Config, store *repository.Store, broker messaging.Broker, log *logger.Logger, m *metrics.Metrics) (*worker.NotificationDispatcher, error) {
	renderer, err := email.NewRenderer()
	if err != nil {
		return nil, err
	}
	return worker.NewNotificationDispatcher(
		store.Notifications,
		broker,
		renderer,
		NewSender(cfg.Mail, log),
		worker.NotificationDispatcherConfig{
			Channel:     cfg.Notification.Channel,
			SendTimeout: cfg.Notification.SendTimeout,
		},
		log,
		m,
	), nil
}

// API holds what cmd/api needs after wiring.
type API struct {
	Engine  *gin.Engine
	Metrics *metrics.Metrics
}

type Deps struct {
	Config   *config.Config
	Store    *repository.Store
	Broker   messaging.Broker
	Blobs    blobstore.Store
	Logger   *logger.Logger
	Registry *prometheus.Registry
	// Hasher defaults to bcrypt at the default cost.
	Hasher security.PasswordHasher
}

// NewAPI builds the services, handlers and routes.
func NewAPI(d Deps) *API {
	cfg := d.Config
	m := metrics.NewMetrics(d.Registry, MetricsNamespace)
	hasher := d.Hasher
	if hasher == nil {
		hasher = security.NewBcryptHasher(0)
	}

	identitySvc := identity.NewService(d.Store.Patients, d.Store.Doctors, d.Store.Appointments, hasher)
	tokenSvc := authservice.NewService(auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiry()))
	notifier := notificationservice.NewService(d.Store.Notifications, d.Broker, notificationservice.Config{
		Channel:        cfg.Notification.Channel,
		EnqueueTimeout: cfg.Notification.EnqueueTimeout,
	}, d.Logger, m)
	appointmentSvc := appointmentservice.NewService(
		d.Store.Appointments,
		d.Store.MedicalRecords,
		d.Store.Patients,
		d.Store.Doctors,
		notifier,
		d.Logger,
		m,
	)
	recordsSvc := records.NewService(
		d.Store.Clinical,
		d.Store.Patients,
		d.Store.Doctors,
		d.Store.Appointments,
		d.Blobs,
		cfg.Storage.MaxFileBytes,
		d.Logger,
		m,
	)
	auditSvc := auditservice.NewService(d.Store.Audit)

	authMW := middleware.NewAuthMiddleware(tokenSvc)
	auditMW := middleware.NewAuditMiddleware(auditSvc)

	var limit rate.Limit
	if cfg.RateLimit.Enabled {
		limit = rate.Limit(cfg.RateLimit.RequestsPerSecond)
	}

	r := router.NewRouter(authMW, promhandler.New(d.Registry, m), router.Handlers{
		Health:      healthhandler.NewHandler(d.Store.Ping),
		Auth:        authhandler.NewHandler(identitySvc, tokenSvc, authMW.Authenticate()),
		Patient:     patienthandler.NewHandler(identitySvc, appointmentSvc, recordsSvc, auditMW, cfg.Storage.MaxFileBytes),
		Doctor:      doctorhandler.NewHandler(identitySvc, appointmentSvc, recordsSvc, auditMW),
		Appointment: appointmenthandler.NewHandler(appointmentSvc, auditMW),
		Files:       fileshandler.NewHandler(recordsSvc, auditMW),
		AccessLog:   audithandler.NewHandler(auditSvc),
	}, router.RouterConfig{
		RateLimit: limit,
		RateBurst: cfg.RateLimit.Burst,
		CORSConfig: middleware.CORSConfig{
			AllowOrigins: cfg.CORS.AllowedOrigins,
			MaxAge:       cfg.CORS.MaxAge,
		},
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		Mode:           cfg.Server.Mode,
	})

	return &API{Engine: r.Setup(), Metrics: m}
}
