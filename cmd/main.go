package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	cancelAppointmentHandler "github.com/m04kA/SMC-CancellationService/internal/api/handlers/cancel_appointment"
	fillFreedSlotHandler "github.com/m04kA/SMC-CancellationService/internal/api/handlers/fill_freed_slot"
	"github.com/m04kA/SMC-CancellationService/internal/api/middleware"
	"github.com/m04kA/SMC-CancellationService/internal/config"
	appointmentRepo "github.com/m04kA/SMC-CancellationService/internal/infra/storage/appointment"
	policyRepo "github.com/m04kA/SMC-CancellationService/internal/infra/storage/policy"
	waitlistRepo "github.com/m04kA/SMC-CancellationService/internal/infra/storage/waitlist"
	"github.com/m04kA/SMC-CancellationService/internal/integrations/notifier"
	"github.com/m04kA/SMC-CancellationService/internal/integrations/stripegateway"
	policyService "github.com/m04kA/SMC-CancellationService/internal/service/policy"
	cancelAppointmentUC "github.com/m04kA/SMC-CancellationService/internal/usecase/cancel_appointment"
	fillFreedSlotUC "github.com/m04kA/SMC-CancellationService/internal/usecase/fill_freed_slot"
	"github.com/m04kA/SMC-CancellationService/pkg/dbmetrics"
	"github.com/m04kA/SMC-CancellationService/pkg/logger"
	"github.com/m04kA/SMC-CancellationService/pkg/metrics"
	"github.com/m04kA/SMC-CancellationService/pkg/simpletxmanager"
	"github.com/m04kA/SMC-CancellationService/pkg/txmanager"
)

func main() {
	// Загружаем конфигурацию
	cfg, err := config.Load("config.toml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Инициализируем логгер
	log, err := logger.New(cfg.Logs.File, cfg.Logs.Level)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	log.Info("Starting SMC-CancellationService...")
	log.Info("Configuration loaded from config.toml")

	// Инициализируем метрики (если включены)
	var metricsCollector *metrics.Metrics
	var wrappedDB *dbmetrics.DB
	stopMetricsCh := make(chan struct{})

	if cfg.Metrics.Enabled {
		metricsCollector = metrics.New(cfg.Metrics.ServiceName)
		log.Info("Metrics enabled at %s", cfg.Metrics.Path)
	}

	// Подключаемся к базе данных
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Настраиваем connection pool
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)

	// Проверяем соединение
	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping database: %v", err)
	}
	log.Info("Successfully connected to database (host=%s, port=%d, db=%s)",
		cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName)

	// Часовой пояс для определения времени суток слота
	location, err := time.LoadLocation(cfg.Service.DefaultTimezone)
	if err != nil {
		log.Fatal("Failed to load timezone %q: %v", cfg.Service.DefaultTimezone, err)
	}
	log.Info("Using timezone %s for slot matching", cfg.Service.DefaultTimezone)

	// Инициализируем интеграции
	gateway := stripegateway.NewClient(
		cfg.Stripe.APIKey,
		time.Duration(cfg.Stripe.TimeoutSeconds)*time.Second,
		log,
	)
	log.Info("Stripe gateway client initialized (timeout=%ds)", cfg.Stripe.TimeoutSeconds)

	dispatcher := notifier.NewDispatcher(
		strings.Split(cfg.Kafka.Brokers, ","),
		cfg.Kafka.NotificationsTopic,
		time.Duration(cfg.Kafka.WriteTimeoutSeconds)*time.Second,
		log,
	)
	defer dispatcher.Close()
	log.Info("Notification dispatcher initialized (brokers=%s, topic=%s)",
		cfg.Kafka.Brokers, cfg.Kafka.NotificationsTopic)

	// Инициализируем репозитории и transaction manager (с метриками или без)
	var (
		appointmentRepository *appointmentRepo.Repository
		policyRepository      *policyRepo.Repository
		waitlistRepository    *waitlistRepo.Repository
	)

	type TxManager interface {
		Do(ctx context.Context, fn func(ctx context.Context) error) error
		DoSerializable(ctx context.Context, fn func(ctx context.Context) error) error
	}
	var txMgr TxManager

	var domainMetrics interface {
		IncRefundOutcome(outcome string, refundMinor int64)
		IncWaitlistMatch(result string)
	} = metrics.Disabled{}

	if cfg.Metrics.Enabled {
		wrappedDB = dbmetrics.WrapWithDefault(db, metricsCollector, cfg.Metrics.ServiceName, stopMetricsCh)
		log.Info("Database metrics collection started")

		appointmentRepository = appointmentRepo.NewRepository(wrappedDB)
		policyRepository = policyRepo.NewRepository(wrappedDB)
		waitlistRepository = waitlistRepo.NewRepository(wrappedDB)
		txMgr = txmanager.NewTransactionManager(wrappedDB)
		domainMetrics = metricsCollector
	} else {
		appointmentRepository = appointmentRepo.NewRepository(db)
		policyRepository = policyRepo.NewRepository(db)
		waitlistRepository = waitlistRepo.NewRepository(db)
		txMgr = simpletxmanager.NewTransactionManager(db)
	}

	// Инициализируем сервисы
	policyResolver := policyService.NewResolver(policyRepository, log)

	// Инициализируем use cases
	cancelAppointmentUseCase := cancelAppointmentUC.NewUseCase(
		appointmentRepository,
		policyResolver,
		gateway,
		dispatcher,
		txMgr,
		domainMetrics,
		log,
	)

	fillFreedSlotUseCase := fillFreedSlotUC.NewUseCase(
		waitlistRepository,
		appointmentRepository,
		dispatcher,
		txMgr,
		domainMetrics,
		location,
		log,
	)

	// Инициализируем handlers
	cancelAppointment := cancelAppointmentHandler.NewHandler(cancelAppointmentUseCase, fillFreedSlotUseCase, log)
	fillFreedSlot := fillFreedSlotHandler.NewHandler(fillFreedSlotUseCase, log)

	// Настраиваем роутер
	r := mux.NewRouter()

	// Добавляем metrics middleware (если метрики включены)
	if cfg.Metrics.Enabled {
		r.Use(middleware.MetricsMiddleware(metricsCollector, cfg.Metrics.ServiceName))
		log.Info("HTTP metrics middleware enabled")
	}

	// Metrics endpoint (публичный, без аутентификации)
	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, promhttp.Handler()).Methods(http.MethodGet)
		log.Info("Prometheus metrics endpoint exposed at %s", cfg.Metrics.Path)
	}

	// API prefix
	api := r.PathPrefix("/api/v1").Subrouter()

	// PROTECTED ROUTES (требуют X-User-ID header)
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.Auth)

	// Отмена записи с расчетом возврата и запуском waitlist-матчера
	protected.HandleFunc("/appointments/{appointmentId}/cancel", cancelAppointment.Handle).Methods(http.MethodPost)

	// Заполнение освободившегося слота (для окон, освобожденных вне потока отмены)
	protected.HandleFunc("/slots/fill", fillFreedSlot.Handle).Methods(http.MethodPost)

	// Создаем HTTP сервер
	addr := fmt.Sprintf(":%d", cfg.Server.HTTPPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info("Starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start: %v", err)
		}
	}()

	// Ожидаем сигнал завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Останавливаем сбор метрик connection pool
	if cfg.Metrics.Enabled {
		close(stopMetricsCh)
		log.Info("Metrics collection stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown: %v", err)
	}

	log.Info("Server stopped gracefully")
}
