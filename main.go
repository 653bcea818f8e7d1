package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"

	log "go-id-register/logging"
	"go-id-register/metrics"
	"go-id-register/models"
	redis "go-id-register/redis"
)

type OcrConfig struct {
	// Mode selects the provider strategy at startup: "real" or "simulated".
	// Simulated mode substitutes the placeholder document whenever the real
	// call fails and must never be used against a live provider.
	Mode              string      `json:"mode"`
	Endpoint          string      `json:"endpoint"`
	Credential        string      `json:"credential,omitempty"`
	TimeoutSeconds    int         `json:"timeout_seconds,omitempty"`
	FieldMap          OcrFieldMap `json:"field_map"`
	PlaceholderName   string      `json:"placeholder_name,omitempty"`
	PlaceholderNumber string      `json:"placeholder_number,omitempty"`
}

type Config struct {
	ServerConfig ServerConfig `json:"server_config"`

	LogLevel  string `json:"log_level,omitempty"`
	LogFormat string `json:"log_format,omitempty"`

	PostgresDsn string `json:"postgres_dsn"`

	Ocr OcrConfig `json:"ocr"`

	TokenSigningSecret string `json:"token_signing_secret"`
	TokenTtlMinutes    int    `json:"token_ttl_minutes,omitempty"`

	StorageType         string                    `json:"storage_type"`
	RedisConfig         redis.RedisConfig         `json:"redis_config,omitempty"`
	RedisSentinelConfig redis.RedisSentinelConfig `json:"redis_sentinel_config,omitempty"`
}

const defaultTokenTtl = 10 * time.Minute
const defaultOcrTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "Path for the config.json to use")
	flag.Parse()

	if *configPath == "" {
		log.GetLogger().Error("please provide a config path using the --config flag")
		os.Exit(1)
	}

	config, err := readConfigFile(*configPath)
	if err != nil {
		log.GetLogger().Error("failed to read config file", "error", err)
		os.Exit(1)
	}

	log.InitLogger(config.LogLevel, config.LogFormat)
	log.GetLogger().Info("using config", "path", *configPath)

	m := metrics.New()

	tokenTtl := defaultTokenTtl
	if config.TokenTtlMinutes > 0 {
		tokenTtl = time.Duration(config.TokenTtlMinutes) * time.Minute
	}

	tokenCreator, err := NewHmacTokenCreator(config.TokenSigningSecret, tokenTtl)
	if err != nil {
		log.GetLogger().Error("failed to instantiate token creator", "error", err)
		os.Exit(1)
	}

	tokenStorage, err := createTokenStorage(&config, tokenTtl)
	if err != nil {
		log.GetLogger().Error("failed to instantiate token storage", "error", err)
		os.Exit(1)
	}

	ocrClient, err := createOcrClient(&config.Ocr, m)
	if err != nil {
		log.GetLogger().Error("failed to instantiate OCR client", "error", err)
		os.Exit(1)
	}

	db, err := sql.Open("postgres", config.PostgresDsn)
	if err != nil {
		log.GetLogger().Error("failed to open postgres connection", "error", err)
		os.Exit(1)
	}
	if err := db.Ping(); err != nil {
		log.GetLogger().Error("failed to reach postgres", "error", err)
		os.Exit(1)
	}

	store := NewPostgresRegistrationStore(db)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := store.EnsureSchema(ctx); err != nil {
		cancel()
		log.GetLogger().Error("failed to ensure registrations schema", "error", err)
		os.Exit(1)
	}
	cancel()

	serverState := ServerState{
		ocrClient:         ocrClient,
		crossValidator:    CrossValidator{},
		registrationStore: store,
		tokenStorage:      tokenStorage,
		tokenCreator:      tokenCreator,
		metrics:           m,
	}

	server, err := NewServer(&serverState, config.ServerConfig)
	if err != nil {
		log.GetLogger().Error("failed to create server", "error", err)
		os.Exit(1)
	}

	log.GetLogger().Info("hosting on", "host", config.ServerConfig.Host, "port", config.ServerConfig.Port)

	err = server.ListenAndServe()
	if err != nil {
		log.GetLogger().Error("failed to listen and serve", "error", err)
		os.Exit(1)
	}
}

func readConfigFile(path string) (Config, error) {
	configBytes, err := os.ReadFile(path)

	if err != nil {
		return Config{}, err
	}

	var config Config
	err = json.Unmarshal(configBytes, &config)

	if err != nil {
		return Config{}, err
	}

	return config, nil
}

func createTokenStorage(config *Config, ttl time.Duration) (TokenStorage, error) {
	if config.StorageType == "redis" {
		log.GetLogger().Info("Using redis token storage")
		client, err := redis.NewRedisClient(&config.RedisConfig)
		if err != nil {
			return nil, err
		}
		return NewRedisTokenStorage(client, config.RedisConfig.Namespace, ttl), nil
	}
	if config.StorageType == "redis_sentinel" {
		log.GetLogger().Info("Using redis sentinel token storage")
		client, err := redis.NewRedisSentinelClient(&config.RedisSentinelConfig)
		if err != nil {
			return nil, err
		}
		return NewRedisTokenStorage(client, config.RedisSentinelConfig.Namespace, ttl), nil
	}
	if config.StorageType == "memory" {
		log.GetLogger().Info("Using in memory token storage")
		return NewInMemoryTokenStorage(ttl), nil
	}
	return nil, fmt.Errorf("%v is not a valid storage type", config.StorageType)
}

func createOcrClient(config *OcrConfig, m *metrics.Metrics) (OcrClient, error) {
	timeout := defaultOcrTimeout
	if config.TimeoutSeconds > 0 {
		timeout = time.Duration(config.TimeoutSeconds) * time.Second
	}

	if config.Endpoint == "" {
		return nil, fmt.Errorf("ocr endpoint is not configured")
	}

	real := NewRestOcrClient(config.Endpoint, config.Credential, config.FieldMap, timeout, m)

	if config.Mode == "real" {
		return real, nil
	}
	if config.Mode == "simulated" {
		log.GetLogger().Warn("OCR simulation mode is enabled, extraction failures will return the configured placeholder")
		placeholder := models.ExtractedDocument{
			Name:           config.PlaceholderName,
			IdentityNumber: config.PlaceholderNumber,
		}
		return NewSimulatedOcrClient(real, placeholder, m), nil
	}
	return nil, fmt.Errorf("%v is not a valid ocr mode", config.Mode)
}
