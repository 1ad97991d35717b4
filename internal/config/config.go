package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config - структура для хранения конфигурации приложения
type Config struct {
	DatabaseURL string `env:"DATABASE_URL"`
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	DBMaxConns  int    `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns  int    `env:"DB_MIN_CONNS" envDefault:"2"`

	// Redis Config
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass     string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"10"`

	// Webhook Config
	WebhookURL        string        `env:"WEBHOOK_URL"`
	WebhookSecret     string        `env:"WEBHOOK_SECRET"`
	WebhookTimeout    time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"5s"`
	WebhookMaxRetries int           `env:"WEBHOOK_MAX_RETRIES" envDefault:"3"`
	WebhookBaseDelay  time.Duration `env:"WEBHOOK_BASE_DELAY" envDefault:"1s"`

	// Повторная доставка событий обработчикам
	EventMaxRetries    int           `env:"EVENT_MAX_RETRIES" envDefault:"10"`
	EventRetryDelay    time.Duration `env:"EVENT_RETRY_DELAY" envDefault:"5s"`
	EventRetryMaxDelay time.Duration `env:"EVENT_RETRY_MAX_DELAY" envDefault:"10m"`

	// Kafka Config (пустой KAFKA_BOOTSTRAP_SERVERS отключает зеркалирование событий)
	KafkaBootstrapServers string `env:"KAFKA_BOOTSTRAP_SERVERS"`
	KafkaSecurityProtocol string `env:"KAFKA_SECURITY_PROTOCOL" envDefault:"PLAINTEXT"`
	KafkaSASLMechanism    string `env:"KAFKA_SASL_MECHANISM"`
	KafkaSASLUsername     string `env:"KAFKA_SASL_USERNAME"`
	KafkaSASLPassword     string `env:"KAFKA_SASL_PASSWORD"`
	KafkaTopic            string `env:"KAFKA_TOPIC" envDefault:"incident-events"`

	// Classifier Config (пустой ключ - штатный деградированный режим)
	ClassifierAPIKey  string        `env:"PERPLEXITY_API_KEY"`
	ClassifierURL     string        `env:"CLASSIFIER_URL" envDefault:"https://api.perplexity.ai/chat/completions"`
	ClassifierModel   string        `env:"CLASSIFIER_MODEL" envDefault:"sonar-pro"`
	ClassifierTimeout time.Duration `env:"CLASSIFIER_TIMEOUT" envDefault:"20s"`

	// Camera Config
	CameraID          string        `env:"CAMERA_ID" envDefault:"camera-01"`
	CameraSnapshotURL string        `env:"CAMERA_SNAPSHOT_URL"`
	CameraAutostart   bool          `env:"CAMERA_AUTOSTART" envDefault:"false"`
	CameraTimeout     time.Duration `env:"CAMERA_TIMEOUT" envDefault:"5s"`
	CameraLatitude    *float64      `env:"CAMERA_LATITUDE"`
	CameraLongitude   *float64      `env:"CAMERA_LONGITUDE"`

	// Triage Config (начальные значения RuntimeSettings)
	CaptureInterval       time.Duration `env:"CAPTURE_INTERVAL" envDefault:"15s"`
	AutoSubmitThreshold   float64       `env:"AUTO_SUBMIT_THRESHOLD" envDefault:"0.80"`
	ManualReviewThreshold float64       `env:"MANUAL_REVIEW_THRESHOLD" envDefault:"0.50"`
	LocationTracking      bool          `env:"LOCATION_TRACKING" envDefault:"true"`
	LocationTimeout       time.Duration `env:"LOCATION_TIMEOUT" envDefault:"10s"`
	PersistTimeout        time.Duration `env:"PERSIST_TIMEOUT" envDefault:"10s"`

	// Geocoding Config
	GoogleMapsAPIKey string        `env:"GOOGLE_MAPS_API_KEY"`
	NominatimURL     string        `env:"NOMINATIM_URL" envDefault:"https://nominatim.openstreetmap.org"`
	GeocodeTimeout   time.Duration `env:"GEOCODE_TIMEOUT" envDefault:"5s"`

	// Media / capture journal
	MediaDir         string `env:"MEDIA_DIR" envDefault:"./data/media"`
	MediaBaseURL     string `env:"MEDIA_BASE_URL" envDefault:"/media"`
	CaptureDBPath    string `env:"CAPTURE_DB_PATH" envDefault:"./data/captures.db"`
	CaptureRetention int    `env:"CAPTURE_RETENTION" envDefault:"100"`

	// Duplicate consolidation
	DedupEnabled      bool          `env:"DEDUP_ENABLED" envDefault:"true"`
	DedupRadiusMeters int           `env:"DEDUP_RADIUS_METERS" envDefault:"200"`
	DedupWindow       time.Duration `env:"DEDUP_WINDOW" envDefault:"30m"`

	// Hotspots
	HotspotZonesFile string `env:"HOTSPOT_ZONES_FILE"`

	// Sentry
	SentryDSN         string `env:"SENTRY_DSN"`
	SentryEnvironment string `env:"SENTRY_ENVIRONMENT" envDefault:"development"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS"`

	// API Keys for authentication
	APIKeys []string `env:"API_KEYS"`
}

// LoadConfig загружает конфигурацию из переменных окружения и .env файла
func LoadConfig() (*Config, error) {
	// Загрузка переменных окружения из .env файла (если есть)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("ошибка загрузки файла .env: %w", err)
	}

	cfg := &Config{
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		HTTPPort:              getEnv("HTTP_PORT", "8080"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		DBMaxConns:            getEnvAsInt("DB_MAX_CONNS", 10),
		DBMinConns:            getEnvAsInt("DB_MIN_CONNS", 2),
		RedisAddr:             getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass:             os.Getenv("REDIS_PASSWORD"),
		RedisDB:               getEnvAsInt("REDIS_DB", 0),
		RedisPoolSize:         getEnvAsInt("REDIS_POOL_SIZE", 10),
		WebhookURL:            os.Getenv("WEBHOOK_URL"),
		WebhookSecret:         os.Getenv("WEBHOOK_SECRET"),
		WebhookTimeout:        getEnvAsDuration("WEBHOOK_TIMEOUT", 5*time.Second),
		WebhookMaxRetries:     getEnvAsInt("WEBHOOK_MAX_RETRIES", 3),
		WebhookBaseDelay:      getEnvAsDuration("WEBHOOK_BASE_DELAY", time.Second),
		EventMaxRetries:       getEnvAsInt("EVENT_MAX_RETRIES", 10),
		EventRetryDelay:       getEnvAsDuration("EVENT_RETRY_DELAY", 5*time.Second),
		EventRetryMaxDelay:    getEnvAsDuration("EVENT_RETRY_MAX_DELAY", 10*time.Minute),
		KafkaBootstrapServers: os.Getenv("KAFKA_BOOTSTRAP_SERVERS"),
		KafkaSecurityProtocol: getEnv("KAFKA_SECURITY_PROTOCOL", "PLAINTEXT"),
		KafkaSASLMechanism:    os.Getenv("KAFKA_SASL_MECHANISM"),
		KafkaSASLUsername:     os.Getenv("KAFKA_SASL_USERNAME"),
		KafkaSASLPassword:     os.Getenv("KAFKA_SASL_PASSWORD"),
		KafkaTopic:            getEnv("KAFKA_TOPIC", "incident-events"),
		ClassifierAPIKey:      os.Getenv("PERPLEXITY_API_KEY"),
		ClassifierURL:         getEnv("CLASSIFIER_URL", "https://api.perplexity.ai/chat/completions"),
		ClassifierModel:       getEnv("CLASSIFIER_MODEL", "sonar-pro"),
		ClassifierTimeout:     getEnvAsDuration("CLASSIFIER_TIMEOUT", 20*time.Second),
		CameraID:              getEnv("CAMERA_ID", "camera-01"),
		CameraSnapshotURL:     os.Getenv("CAMERA_SNAPSHOT_URL"),
		CameraAutostart:       getEnvAsBool("CAMERA_AUTOSTART", false),
		CameraTimeout:         getEnvAsDuration("CAMERA_TIMEOUT", 5*time.Second),
		CameraLatitude:        getEnvAsFloatPtr("CAMERA_LATITUDE"),
		CameraLongitude:       getEnvAsFloatPtr("CAMERA_LONGITUDE"),
		CaptureInterval:       getEnvAsDuration("CAPTURE_INTERVAL", 15*time.Second),
		AutoSubmitThreshold:   getEnvAsFloat("AUTO_SUBMIT_THRESHOLD", DefaultAutoSubmitThreshold),
		ManualReviewThreshold: getEnvAsFloat("MANUAL_REVIEW_THRESHOLD", DefaultManualReviewThreshold),
		LocationTracking:      getEnvAsBool("LOCATION_TRACKING", true),
		LocationTimeout:       getEnvAsDuration("LOCATION_TIMEOUT", 10*time.Second),
		PersistTimeout:        getEnvAsDuration("PERSIST_TIMEOUT", 10*time.Second),
		GoogleMapsAPIKey:      os.Getenv("GOOGLE_MAPS_API_KEY"),
		NominatimURL:          getEnv("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
		GeocodeTimeout:        getEnvAsDuration("GEOCODE_TIMEOUT", 5*time.Second),
		MediaDir:              getEnv("MEDIA_DIR", "./data/media"),
		MediaBaseURL:          getEnv("MEDIA_BASE_URL", "/media"),
		CaptureDBPath:         getEnv("CAPTURE_DB_PATH", "./data/captures.db"),
		CaptureRetention:      getEnvAsInt("CAPTURE_RETENTION", 100),
		DedupEnabled:          getEnvAsBool("DEDUP_ENABLED", true),
		DedupRadiusMeters:     getEnvAsInt("DEDUP_RADIUS_METERS", 200),
		DedupWindow:           getEnvAsDuration("DEDUP_WINDOW", 30*time.Minute),
		HotspotZonesFile:      os.Getenv("HOTSPOT_ZONES_FILE"),
		SentryDSN:             os.Getenv("SENTRY_DSN"),
		SentryEnvironment:     getEnv("SENTRY_ENVIRONMENT", "development"),
		CORSAllowedOrigins:    getEnvAsList("CORS_ALLOWED_ORIGINS"),
		APIKeys:               getEnvAsList("API_KEYS"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	if err := ValidateThresholds(cfg.AutoSubmitThreshold, cfg.ManualReviewThreshold); err != nil {
		return nil, err
	}

	if cfg.CaptureInterval <= 0 {
		return nil, fmt.Errorf("CAPTURE_INTERVAL must be positive, got %s", cfg.CaptureInterval)
	}

	if (cfg.CameraLatitude == nil) != (cfg.CameraLongitude == nil) {
		return nil, fmt.Errorf("CAMERA_LATITUDE and CAMERA_LONGITUDE must be set together")
	}

	return cfg, nil
}

// Runtime создает изменяемые во время работы настройки из начальной конфигурации
func (c *Config) Runtime() *RuntimeSettings {
	return NewRuntimeSettings(Settings{
		CaptureInterval:  c.CaptureInterval,
		LocationTracking: c.LocationTracking,
		Thresholds: Thresholds{
			AutoSubmit:   c.AutoSubmitThreshold,
			ManualReview: c.ManualReviewThreshold,
		},
	})
}

// getEnv возвращает значение переменной окружения или значение по умолчанию
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt возвращает значение переменной окружения как int или значение по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsFloatPtr(key string) *float64 {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return &floatValue
		}
	}
	return nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration возвращает значение переменной окружения как time.Duration или значение по умолчанию
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if durationValue, err := time.ParseDuration(value); err == nil {
			return durationValue
		}
	}
	return defaultValue
}

// getEnvAsList разбирает список через запятую
func getEnvAsList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	items := strings.Split(raw, ",")
	result := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			result = append(result, item)
		}
	}
	return result
}
