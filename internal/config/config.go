package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/hibiken/asynq"
)

type Config struct {
	API      APIConfig
	Queue    QueueConfig
	Worker   WorkerConfig
	Storage  StorageConfig
	Database DatabaseConfig
	Webhook  WebhookConfig
	Trace    TraceConfig
	Ingest   IngestConfig
}

type APIConfig struct {
	Addr              string
	PresignTTL        time.Duration
	RateLimitCapacity int
	RateLimitWindow   time.Duration
	UserIDHeader      string
}

type QueueConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Name          string
}

func (q QueueConfig) RedisClientOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     q.RedisAddr,
		Password: q.RedisPassword,
		DB:       q.RedisDB,
	}
}

type WorkerConfig struct {
	Concurrency    int
	MaxActiveJobs  int
	LocalOutputDir string
	MetricsAddr    string
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type DatabaseConfig struct {
	// DSN empty means the in-memory job store.
	DSN string
}

type WebhookConfig struct {
	SigningSecret  string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type TraceConfig struct {
	Exporter     string
	OTLPEndpoint string
	OTLPInsecure bool
}

type IngestConfig struct {
	InputDir     string
	PipelineFile string
	Debounce     time.Duration
}

// fileConfig is the optional TOML overlay (PAGEPRESS_CONFIG). Pointer fields
// distinguish "unset" from zero values; environment variables still win over
// the file.
type fileConfig struct {
	API struct {
		Addr              *string `toml:"addr"`
		PresignTTLMinutes *int    `toml:"presign_ttl_minutes"`
		RateLimitCapacity *int    `toml:"rate_limit_capacity"`
		RateLimitSeconds  *int    `toml:"rate_limit_seconds"`
		UserIDHeader      *string `toml:"user_id_header"`
	} `toml:"api"`
	Queue struct {
		RedisAddr     *string `toml:"redis_addr"`
		RedisPassword *string `toml:"redis_password"`
		RedisDB       *int    `toml:"redis_db"`
		Name          *string `toml:"name"`
	} `toml:"queue"`
	Worker struct {
		Concurrency    *int    `toml:"concurrency"`
		MaxActiveJobs  *int    `toml:"max_active_jobs"`
		LocalOutputDir *string `toml:"local_output_dir"`
		MetricsAddr    *string `toml:"metrics_addr"`
	} `toml:"worker"`
	Storage struct {
		Endpoint  *string `toml:"endpoint"`
		AccessKey *string `toml:"access_key"`
		SecretKey *string `toml:"secret_key"`
		Bucket    *string `toml:"bucket"`
		UseSSL    *bool   `toml:"use_ssl"`
	} `toml:"storage"`
	Database struct {
		DSN *string `toml:"dsn"`
	} `toml:"database"`
	Webhook struct {
		SigningSecret *string `toml:"signing_secret"`
		TimeoutMS     *int    `toml:"timeout_ms"`
		MaxAttempts   *int    `toml:"max_attempts"`
	} `toml:"webhook"`
	Trace struct {
		Exporter     *string `toml:"exporter"`
		OTLPEndpoint *string `toml:"otlp_endpoint"`
		OTLPInsecure *bool   `toml:"otlp_insecure"`
	} `toml:"trace"`
	Ingest struct {
		InputDir     *string `toml:"input_dir"`
		PipelineFile *string `toml:"pipeline_file"`
		DebounceMS   *int    `toml:"debounce_ms"`
	} `toml:"ingest"`
}

// Load builds the configuration in three layers: hard defaults, then the
// optional TOML file named by PAGEPRESS_CONFIG, then environment variables.
func Load() (Config, error) {
	cfg := defaults()

	if path := os.Getenv("PAGEPRESS_CONFIG"); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func defaults() Config {
	defaultWorkerSlots := maxInt(1, runtime.NumCPU()/2)

	return Config{
		API: APIConfig{
			Addr:              ":8080",
			PresignTTL:        15 * time.Minute,
			RateLimitCapacity: 60,
			RateLimitWindow:   time.Minute,
			UserIDHeader:      "X-Pagepress-User",
		},
		Queue: QueueConfig{
			RedisAddr: "localhost:6379",
			Name:      "default",
		},
		Worker: WorkerConfig{
			Concurrency:    maxInt(2, runtime.NumCPU()),
			MaxActiveJobs:  defaultWorkerSlots,
			LocalOutputDir: "./.pagepress-output",
			MetricsAddr:    ":9090",
		},
		Storage: StorageConfig{
			Endpoint:  "localhost:9000",
			AccessKey: "minioadmin",
			SecretKey: "minioadmin",
			Bucket:    "pagepress-jobs",
		},
		Webhook: WebhookConfig{
			Timeout:        10 * time.Second,
			MaxAttempts:    3,
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
		},
		Trace: TraceConfig{
			Exporter: "none",
		},
		Ingest: IngestConfig{
			InputDir: "./.pagepress-inbox",
			Debounce: 500 * time.Millisecond,
		},
	}
}

func applyFile(cfg *Config, path string) error {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}

	setString(&cfg.API.Addr, fc.API.Addr)
	setMinutes(&cfg.API.PresignTTL, fc.API.PresignTTLMinutes)
	setInt(&cfg.API.RateLimitCapacity, fc.API.RateLimitCapacity)
	setSeconds(&cfg.API.RateLimitWindow, fc.API.RateLimitSeconds)
	setString(&cfg.API.UserIDHeader, fc.API.UserIDHeader)

	setString(&cfg.Queue.RedisAddr, fc.Queue.RedisAddr)
	setString(&cfg.Queue.RedisPassword, fc.Queue.RedisPassword)
	setInt(&cfg.Queue.RedisDB, fc.Queue.RedisDB)
	setString(&cfg.Queue.Name, fc.Queue.Name)

	setInt(&cfg.Worker.Concurrency, fc.Worker.Concurrency)
	setInt(&cfg.Worker.MaxActiveJobs, fc.Worker.MaxActiveJobs)
	setString(&cfg.Worker.LocalOutputDir, fc.Worker.LocalOutputDir)
	setString(&cfg.Worker.MetricsAddr, fc.Worker.MetricsAddr)

	setString(&cfg.Storage.Endpoint, fc.Storage.Endpoint)
	setString(&cfg.Storage.AccessKey, fc.Storage.AccessKey)
	setString(&cfg.Storage.SecretKey, fc.Storage.SecretKey)
	setString(&cfg.Storage.Bucket, fc.Storage.Bucket)
	setBool(&cfg.Storage.UseSSL, fc.Storage.UseSSL)

	setString(&cfg.Database.DSN, fc.Database.DSN)

	setString(&cfg.Webhook.SigningSecret, fc.Webhook.SigningSecret)
	setMillis(&cfg.Webhook.Timeout, fc.Webhook.TimeoutMS)
	setInt(&cfg.Webhook.MaxAttempts, fc.Webhook.MaxAttempts)

	setString(&cfg.Trace.Exporter, fc.Trace.Exporter)
	setString(&cfg.Trace.OTLPEndpoint, fc.Trace.OTLPEndpoint)
	setBool(&cfg.Trace.OTLPInsecure, fc.Trace.OTLPInsecure)

	setString(&cfg.Ingest.InputDir, fc.Ingest.InputDir)
	setString(&cfg.Ingest.PipelineFile, fc.Ingest.PipelineFile)
	setMillis(&cfg.Ingest.Debounce, fc.Ingest.DebounceMS)

	return nil
}

func applyEnv(cfg *Config) {
	cfg.API.Addr = env("PAGEPRESS_API_ADDR", cfg.API.Addr)
	cfg.API.PresignTTL = envDuration("PAGEPRESS_PRESIGN_TTL", cfg.API.PresignTTL)
	cfg.API.RateLimitCapacity = envInt("PAGEPRESS_RATE_LIMIT_CAPACITY", cfg.API.RateLimitCapacity)
	cfg.API.RateLimitWindow = envDuration("PAGEPRESS_RATE_LIMIT_WINDOW", cfg.API.RateLimitWindow)
	cfg.API.UserIDHeader = env("PAGEPRESS_USER_ID_HEADER", cfg.API.UserIDHeader)

	cfg.Queue.RedisAddr = env("REDIS_ADDR", cfg.Queue.RedisAddr)
	cfg.Queue.RedisPassword = env("REDIS_PASSWORD", cfg.Queue.RedisPassword)
	cfg.Queue.RedisDB = envInt("REDIS_DB", cfg.Queue.RedisDB)
	cfg.Queue.Name = env("PAGEPRESS_QUEUE", cfg.Queue.Name)

	cfg.Worker.Concurrency = envInt("WORKER_CONCURRENCY", cfg.Worker.Concurrency)
	cfg.Worker.MaxActiveJobs = envInt("WORKER_MAX_ACTIVE_JOBS", cfg.Worker.MaxActiveJobs)
	cfg.Worker.LocalOutputDir = env("WORKER_LOCAL_OUTPUT_DIR", cfg.Worker.LocalOutputDir)
	cfg.Worker.MetricsAddr = env("WORKER_METRICS_ADDR", cfg.Worker.MetricsAddr)

	cfg.Storage.Endpoint = env("MINIO_ENDPOINT", cfg.Storage.Endpoint)
	cfg.Storage.AccessKey = env("MINIO_ACCESS_KEY", cfg.Storage.AccessKey)
	cfg.Storage.SecretKey = env("MINIO_SECRET_KEY", cfg.Storage.SecretKey)
	cfg.Storage.Bucket = env("MINIO_BUCKET", cfg.Storage.Bucket)
	cfg.Storage.UseSSL = envBool("MINIO_USE_SSL", cfg.Storage.UseSSL)

	cfg.Database.DSN = env("POSTGRES_DSN", cfg.Database.DSN)

	cfg.Webhook.SigningSecret = env("WEBHOOK_SIGNING_SECRET", cfg.Webhook.SigningSecret)
	cfg.Webhook.Timeout = envDuration("WEBHOOK_TIMEOUT", cfg.Webhook.Timeout)
	cfg.Webhook.MaxAttempts = envInt("WEBHOOK_MAX_ATTEMPTS", cfg.Webhook.MaxAttempts)

	cfg.Trace.Exporter = env("TRACE_EXPORTER", cfg.Trace.Exporter)
	cfg.Trace.OTLPEndpoint = env("TRACE_OTLP_ENDPOINT", cfg.Trace.OTLPEndpoint)
	cfg.Trace.OTLPInsecure = envBool("TRACE_OTLP_INSECURE", cfg.Trace.OTLPInsecure)

	cfg.Ingest.InputDir = env("INGEST_INPUT_DIR", cfg.Ingest.InputDir)
	cfg.Ingest.PipelineFile = env("INGEST_PIPELINE_FILE", cfg.Ingest.PipelineFile)
	cfg.Ingest.Debounce = envDuration("INGEST_DEBOUNCE", cfg.Ingest.Debounce)
}

func env(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setSeconds(dst *time.Duration, src *int) {
	if src != nil {
		*dst = time.Duration(*src) * time.Second
	}
}

func setMinutes(dst *time.Duration, src *int) {
	if src != nil {
		*dst = time.Duration(*src) * time.Minute
	}
}

func setMillis(dst *time.Duration, src *int) {
	if src != nil {
		*dst = time.Duration(*src) * time.Millisecond
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
