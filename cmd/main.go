package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"googlemaps.github.io/maps"

	"github.com/shenikar/road_incident_triage/internal/capture"
	"github.com/shenikar/road_incident_triage/internal/classifier"
	"github.com/shenikar/road_incident_triage/internal/config"
	"github.com/shenikar/road_incident_triage/internal/events"
	"github.com/shenikar/road_incident_triage/internal/geo"
	v1 "github.com/shenikar/road_incident_triage/internal/handler/http/v1"
	"github.com/shenikar/road_incident_triage/internal/hotspot"
	"github.com/shenikar/road_incident_triage/internal/media"
	"github.com/shenikar/road_incident_triage/internal/repository"
	capturedb "github.com/shenikar/road_incident_triage/internal/repository/sqlite"
	"github.com/shenikar/road_incident_triage/internal/service"
	"github.com/shenikar/road_incident_triage/internal/triage"
	"github.com/shenikar/road_incident_triage/pkg/kafka"
	"github.com/shenikar/road_incident_triage/pkg/logger"
	"github.com/shenikar/road_incident_triage/pkg/postgres"
	redisclient "github.com/shenikar/road_incident_triage/pkg/redis"
	"github.com/shenikar/road_incident_triage/pkg/sqlite"
	"github.com/sirupsen/logrus"

	_ "github.com/shenikar/road_incident_triage/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title Road Incident Triage API
// @version 1.0
// @description Road accident reporting, camera triage and response tracking.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
func runMigrations(cfg *config.Config, log *logrus.Logger) error {
	log.Info("Running database migrations...")

	migrationURL := cfg.DatabaseURL
	if !strings.HasPrefix(migrationURL, "pgx5://") {
		migrationURL = strings.Replace(migrationURL, "postgres://", "pgx5://", 1)
	}

	m, err := migrate.New(
		"file://migrations",
		migrationURL,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info("Database migrations applied successfully")
	return nil
}

// newGeocoder собирает цепочку геокодеров: Google при наличии ключа, затем Nominatim
func newGeocoder(cfg *config.Config, log *logrus.Logger) geo.Geocoder {
	var geocoders []geo.Geocoder
	if cfg.GoogleMapsAPIKey != "" {
		client, err := maps.NewClient(maps.WithAPIKey(cfg.GoogleMapsAPIKey))
		if err != nil {
			log.WithError(err).Warn("Failed to create Google Maps client, falling back to Nominatim")
		} else {
			geocoders = append(geocoders, geo.NewGoogleGeocoder(client, cfg.GeocodeTimeout))
		}
	}
	if cfg.NominatimURL != "" {
		geocoders = append(geocoders, geo.NewNominatimGeocoder(cfg.NominatimURL, cfg.GeocodeTimeout))
	}
	return geo.NewMultipleGeocoder(geocoders...)
}

func newAnalyzer(cfg *config.Config, log *logrus.Logger) *classifier.Adapter {
	var client classifier.Classifier
	if cfg.ClassifierAPIKey != "" {
		client = classifier.NewPerplexityClient(cfg.ClassifierURL, cfg.ClassifierModel, cfg.ClassifierAPIKey, &http.Client{})
	} else {
		log.Warn("PERPLEXITY_API_KEY is not set, image analysis runs in degraded mode")
	}
	return classifier.NewAdapter(client, cfg.ClassifierTimeout, log)
}

func main() {
	// Загрузка конфигурации
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	log := logger.New(cfg.LogLevel)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.SentryEnvironment,
		}); err != nil {
			log.WithError(err).Warn("Failed to initialize Sentry")
		} else {
			log.AddHook(logger.NewSentryHook())
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Контекст для graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Запуск миграций
	if err := runMigrations(cfg, log); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Подключение к PostgreSQL
	dbpool, err := postgres.NewPostgresDB(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer dbpool.Close()
	log.Info("Successfully connected to PostgreSQL")

	// Инициализация Redis клиента
	redisClient, err := redisclient.NewRedisClient(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Info("Successfully connected to Redis")

	// Журнал снимков на устройстве
	captureDB, err := sqlite.Open(ctx, cfg.CaptureDBPath)
	if err != nil {
		log.Fatalf("Failed to open capture journal: %v", err)
	}
	defer captureDB.Close()
	if err := capturedb.Migrate(captureDB); err != nil {
		log.Fatalf("Failed to migrate capture journal: %v", err)
	}

	mediaStore, err := media.NewLocalStore(cfg.MediaDir, cfg.MediaBaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize media store: %v", err)
	}

	// Инициализация издателя событий
	publisher := events.NewRedisPublisher(redisClient)

	// Инициализация репозиториев
	incidentRepo := repository.NewIncidentRepository(dbpool, redisClient)
	hotspotRepo := repository.NewHotspotRepository(dbpool)
	journal := capturedb.NewCaptureJournal(captureDB)

	// Зоны риска
	aggregator := hotspot.NewAggregator(hotspotRepo, log)
	if cfg.HotspotZonesFile != "" {
		zones, err := hotspot.LoadZones(cfg.HotspotZonesFile)
		if err != nil {
			log.Fatalf("Failed to load hotspot zones: %v", err)
		}
		if err := aggregator.SyncZones(ctx, zones); err != nil {
			log.Fatalf("Failed to sync hotspot zones: %v", err)
		}
	}

	// Инициализация сервисов; зоны учитываются напрямую, если событие не попало в очередь
	incidentService := service.NewIncidentService(incidentRepo, mediaStore, publisher, service.Config{
		DedupEnabled:      cfg.DedupEnabled,
		DedupRadiusMeters: cfg.DedupRadiusMeters,
		DedupWindow:       cfg.DedupWindow,
	}, log, aggregator)

	settings := cfg.Runtime()
	analyzer := newAnalyzer(cfg, log)

	engine := triage.NewEngine(analyzer, journal, mediaStore, incidentService, settings, triage.EngineConfig{
		PersistTimeout: cfg.PersistTimeout,
		Retention:      cfg.CaptureRetention,
	}, log, events.NewCaptureObserver(publisher, log))

	resolver := geo.NewResolver(
		geo.NewStaticLocator(cfg.CameraLatitude, cfg.CameraLongitude),
		newGeocoder(cfg, log),
		cfg.LocationTimeout,
		log,
	)
	source := capture.NewSource(
		cfg.CameraID,
		capture.NewHTTPSnapshotCamera(cfg.CameraSnapshotURL, cfg.CameraTimeout),
		resolver,
		engine,
		settings,
		log,
	)

	// Обработчики событий
	handlers := []events.Handler{
		aggregator,
		events.NewWebhookHandler(events.WebhookConfig{
			URL:        cfg.WebhookURL,
			Secret:     cfg.WebhookSecret,
			Timeout:    cfg.WebhookTimeout,
			MaxRetries: cfg.WebhookMaxRetries,
			BaseDelay:  cfg.WebhookBaseDelay,
		}, log),
	}

	var producer *kafka.Producer
	if cfg.KafkaBootstrapServers != "" {
		producer, err = kafka.NewProducer(kafka.Config{
			BootstrapServers: cfg.KafkaBootstrapServers,
			SecurityProtocol: cfg.KafkaSecurityProtocol,
			SASLMechanism:    cfg.KafkaSASLMechanism,
			SASLUsername:     cfg.KafkaSASLUsername,
			SASLPassword:     cfg.KafkaSASLPassword,
			Topic:            cfg.KafkaTopic,
		}, log)
		if err != nil {
			log.Fatalf("Failed to create Kafka producer: %v", err)
		}
		handlers = append(handlers, events.NewKafkaHandler(producer))
	}

	// Инициализация и запуск диспетчера событий
	dispatcher := events.NewDispatcher(redisClient, log, handlers...).
		WithRetry(events.NewRedisRetryQueue(redisClient), events.RetryPolicy{
			MaxAttempts: cfg.EventMaxRetries,
			BaseDelay:   cfg.EventRetryDelay,
			MaxDelay:    cfg.EventRetryMaxDelay,
		})
	dispatcher.Start(ctx)

	// Инициализация хэндлеров
	handler := v1.NewHandler(incidentService, analyzer, source, engine, aggregator, settings, log, cfg)

	// Настройка Gin роутера
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	if cfg.SentryDSN != "" {
		router.Use(v1.SentryMiddleware(), v1.ErrorReporter(log))
	}
	router.Use(v1.CORSMiddleware(cfg.CORSAllowedOrigins))

	api := router.Group("/api/v1")
	handler.RegisterRoutes(api)

	// Фотографии отдаются с диска, если базовый URL относительный
	if strings.HasPrefix(cfg.MediaBaseURL, "/") {
		router.Static(cfg.MediaBaseURL, mediaStore.Dir())
	}

	// Добавление маршрута для Swagger UI
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	if cfg.CameraAutostart {
		if err := source.Start(ctx); err != nil {
			log.WithError(err).Error("Failed to autostart camera monitoring")
		}
	}

	// Запуск HTTP-сервера
	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)

	srv := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	// Запуск сервера в горутине
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Error starting HTTP server: %v", err)
		}
	}()
	log.Infof("HTTP server started on port %s", cfg.HTTPPort)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Received shutdown signal, shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	// Камера останавливается до диспетчера: последний снимок еще публикует событие
	source.Stop()
	cancel()
	dispatcher.Wait()
	if producer != nil {
		producer.Close(5 * time.Second)
	}

	log.Info("Server gracefully stopped")
}
