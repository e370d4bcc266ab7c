package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type EnvConfig struct {
	Postgres struct {
		HOST     string
		Database string
		Username string
		Password string
		Port     string
	}
	JWT struct {
		SecretKey string
		Algorithm string
		Expire    int
	}
	CORS struct {
		AllowDomains string
		GlobalDomain string
	}
	Redis struct {
		Password  string
		Database  int
		RedisHost string
		RedisPort string
	}
	RabbitMQ struct {
		Host     string
		Port     string
		Username string
		Password string
	}
	Minio struct {
		Endpoint      string
		RootUser      string
		RootPassword  string
		UseSSL        bool
		LibraryBucket string
	}
	Facebook struct {
		GraphBaseURL string
		APIVersion   string
		AppSecret    string
		AccessToken  string // fallback token for background workers
	}
	Library struct {
		RootDir string
		TempDir string
	}
	Upload struct {
		VideoSimpleThreshold int64 // Default 20MB
		VideoChunkSize       int64 // Default 4MB
		Concurrency          int
		SessionGrace         time.Duration
	}
	Duplication struct {
		AdSetSyncMaxChildren    int
		CampaignSyncMaxChildren int
		AdSetChunkSize          int
		AdChunkSize             int
		MaxBatchOperations      int
		ChunkDelay              time.Duration
		BatchTimeout            time.Duration
		ResolveTimeout          time.Duration
		ResolvePollInterval     time.Duration
		JobPollDelay            time.Duration
		JobMaxPollAttempts      int
	}
	Breaker struct {
		FailureThreshold uint32
		Cooldown         time.Duration
	}
	RateLimit struct {
		RequestsPerSecond float64
		Burst             int
		PauseThreshold    float64 // usage percentage that pauses an ad account
	}
	ExternalService struct {
		GoogleDriveURL      string
		ThumbnailServiceURL string
	}
	AdCache struct {
		TTL time.Duration
	}
	Grafana struct {
		OTLPEndpoint string
		ServiceName  string
	}

	Environment struct {
		Mode  string
		Group string
	}
	DomainName string
}

func LoadEnvConfig() *EnvConfig {
	var config EnvConfig

	// Postgres
	config.Postgres.HOST = os.Getenv("PGPOOL_HOST")
	config.Postgres.Database = os.Getenv("PGPOOL_DB")
	config.Postgres.Username = os.Getenv("PGPOOL_USER")
	config.Postgres.Password = os.Getenv("PGPOOL_PASSWORD")
	config.Postgres.Port = os.Getenv("PGPOOL_PORT")

	// JWT
	config.JWT.SecretKey = os.Getenv("JWT_SECRET_KEY")
	config.JWT.Algorithm = os.Getenv("JWT_ALGORITHM")

	if val := os.Getenv("JWT_EXPIRE"); val != "" {
		fmt.Sscanf(val, "%d", &config.JWT.Expire)
	} else {
		config.JWT.Expire = 3600 * 24 * 7
	}

	config.CORS.AllowDomains = os.Getenv("ALLOWED_DOMAINS")
	config.CORS.GlobalDomain = os.Getenv("GLOBAL_DOMAIN")

	config.Redis.Password = os.Getenv("REDIS_PASSWORD")
	config.Redis.Database, _ = strconv.Atoi(os.Getenv("REDIS_DB"))
	config.Redis.RedisHost = os.Getenv("REDIS_HOST")
	config.Redis.RedisPort = os.Getenv("REDIS_PORT")

	// RabbitMQ
	config.RabbitMQ.Host = getEnv("RABBITMQ_HOST", "localhost")
	config.RabbitMQ.Port = getEnv("RABBITMQ_PORT", "5672")
	config.RabbitMQ.Username = getEnv("RABBITMQ_USER", "guest")
	config.RabbitMQ.Password = getEnv("RABBITMQ_PASSWORD", "guest")

	config.Minio.Endpoint = os.Getenv("MINIO_ENDPOINT")
	config.Minio.RootUser = os.Getenv("MINIO_ROOT_USER")
	config.Minio.RootPassword = os.Getenv("MINIO_ROOT_PASSWORD")
	config.Minio.UseSSL = os.Getenv("MINIO_USE_SSL") == "true"
	config.Minio.LibraryBucket = getEnv("MINIO_LIBRARY_BUCKET", "creative-library")

	// Facebook Graph API
	config.Facebook.GraphBaseURL = strings.TrimSuffix(getEnv("FACEBOOK_GRAPH_URL", "https://graph.facebook.com"), "/")
	config.Facebook.APIVersion = getEnv("FACEBOOK_API_VERSION", "v21.0")
	config.Facebook.AppSecret = os.Getenv("FACEBOOK_APP_SECRET")
	config.Facebook.AccessToken = os.Getenv("FACEBOOK_ACCESS_TOKEN")

	// Creative library on local disk
	config.Library.RootDir = getEnv("LIBRARY_ROOT_DIR", "./data/library")
	config.Library.TempDir = getEnv("LIBRARY_TEMP_DIR", os.TempDir())

	config.Upload.VideoSimpleThreshold = getEnvInt64("VIDEO_SIMPLE_UPLOAD_THRESHOLD", 20*1024*1024)
	config.Upload.VideoChunkSize = getEnvInt64("VIDEO_CHUNK_SIZE", 4*1024*1024)
	config.Upload.Concurrency = getEnvInt("UPLOAD_CONCURRENCY", 3)
	config.Upload.SessionGrace = getEnvDuration("UPLOAD_SESSION_GRACE", 30*time.Second)

	config.Duplication.AdSetSyncMaxChildren = getEnvInt("ADSET_SYNC_MAX_CHILDREN", 2)
	config.Duplication.CampaignSyncMaxChildren = getEnvInt("CAMPAIGN_SYNC_MAX_CHILDREN", 3)
	config.Duplication.AdSetChunkSize = getEnvInt("ADSET_BATCH_CHUNK_SIZE", 1)
	config.Duplication.AdChunkSize = getEnvInt("AD_BATCH_CHUNK_SIZE", 50)
	config.Duplication.MaxBatchOperations = getEnvInt("MAX_BATCH_OPERATIONS", 50)
	config.Duplication.ChunkDelay = getEnvDuration("BATCH_CHUNK_DELAY", 500*time.Millisecond)
	config.Duplication.BatchTimeout = getEnvDuration("BATCH_SUBMIT_TIMEOUT", 30*time.Second)
	config.Duplication.ResolveTimeout = getEnvDuration("ADSET_RESOLVE_TIMEOUT", 20*time.Second)
	config.Duplication.ResolvePollInterval = getEnvDuration("ADSET_RESOLVE_POLL_INTERVAL", 3*time.Second)
	config.Duplication.JobPollDelay = getEnvDuration("DUPLICATION_POLL_DELAY", 15*time.Second)
	config.Duplication.JobMaxPollAttempts = getEnvInt("DUPLICATION_MAX_POLL_ATTEMPTS", 40)

	config.Breaker.FailureThreshold = uint32(getEnvInt("BREAKER_FAILURE_THRESHOLD", 5))
	config.Breaker.Cooldown = getEnvDuration("BREAKER_COOLDOWN", 60*time.Second)

	if val, err := strconv.ParseFloat(os.Getenv("META_REQUESTS_PER_SECOND"), 64); err == nil && val > 0 {
		config.RateLimit.RequestsPerSecond = val
	} else {
		config.RateLimit.RequestsPerSecond = 5
	}
	config.RateLimit.Burst = getEnvInt("META_REQUEST_BURST", 10)
	if val, err := strconv.ParseFloat(os.Getenv("META_USAGE_PAUSE_THRESHOLD"), 64); err == nil && val > 0 {
		config.RateLimit.PauseThreshold = val
	} else {
		config.RateLimit.PauseThreshold = 90
	}

	config.ExternalService.GoogleDriveURL = strings.TrimSuffix(getEnv("GOOGLE_DRIVE_API_URL", "https://www.googleapis.com/drive/v3"), "/")
	config.ExternalService.ThumbnailServiceURL = getEnv("THUMBNAIL_SERVICE_URL", "http://localhost:8083")

	config.AdCache.TTL = getEnvDuration("AD_CACHE_TTL", 10*time.Minute)

	// Grafana/OpenTelemetry
	grafanaEndpoint := getEnv("GRAFANA_OTLP_ENDPOINT", "localhost:4318")
	// Remove protocol for OpenTelemetry client to avoid duplicate protocols
	grafanaEndpoint = strings.TrimPrefix(grafanaEndpoint, "https://")
	grafanaEndpoint = strings.TrimPrefix(grafanaEndpoint, "http://")
	config.Grafana.OTLPEndpoint = grafanaEndpoint
	config.Grafana.ServiceName = getEnv("SERVICE_NAME", "gau-ads-orchestrator")

	config.Environment.Mode = getEnv("DEPLOY_ENV", "development")
	config.Environment.Group = getEnv("GROUP_NAME", "local")

	config.DomainName = getEnv("DOMAIN_NAME", "localhost:8080")

	return &config
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val, err := strconv.Atoi(os.Getenv(key)); err == nil && val > 0 {
		return val
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if val, err := strconv.ParseInt(os.Getenv(key), 10, 64); err == nil && val > 0 {
		return val
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("45s") or plain milliseconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
