package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Admin     AdminConfig
	Chain     ChainConfig
	Pinata    PinataConfig
	Exports   ExportsConfig
	Reconcile ReconcileConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AdminConfig carries the configured platform administrator account.
type AdminConfig struct {
	Address string
}

// ChainConfig points the chain client at the signing provider and contracts.
type ChainConfig struct {
	RPCURL                   string
	FallbackRPCURL           string
	ChainID                  uint64
	ChainName                string
	RegistryAddress          string
	TranscriptManagerAddress string
	ConfirmationTimeout      time.Duration
	ReadCacheTTL             time.Duration
}

// PinataConfig configures the IPFS pinning service.
type PinataConfig struct {
	JWT              string
	GatewayURL       string
	MaxFileSizeBytes int64
}

// ExportsConfig toggles the credential register export endpoints.
type ExportsConfig struct {
	Enabled bool
}

// ReconcileConfig tunes the dual-write repair worker.
type ReconcileConfig struct {
	Enabled    bool
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: v.GetDuration("JWT_EXPIRATION"),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{
		AllowedOrigins: splitAndTrim(v.GetString("CORS_ALLOWED_ORIGINS")),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Admin = AdminConfig{
		Address: v.GetString("ADMIN_ADDRESS"),
	}

	cfg.Chain = ChainConfig{
		RPCURL:                   v.GetString("CHAIN_RPC_URL"),
		FallbackRPCURL:           v.GetString("CHAIN_FALLBACK_RPC_URL"),
		ChainID:                  v.GetUint64("CHAIN_ID"),
		ChainName:                v.GetString("CHAIN_NAME"),
		RegistryAddress:          v.GetString("INSTITUTION_REGISTRY_ADDRESS"),
		TranscriptManagerAddress: v.GetString("TRANSCRIPT_MANAGER_ADDRESS"),
		ConfirmationTimeout:      v.GetDuration("CHAIN_CONFIRMATION_TIMEOUT"),
		ReadCacheTTL:             v.GetDuration("CHAIN_READ_CACHE_TTL"),
	}

	cfg.Pinata = PinataConfig{
		JWT:              v.GetString("PINATA_JWT"),
		GatewayURL:       strings.TrimRight(v.GetString("PINATA_GATEWAY"), "/"),
		MaxFileSizeBytes: v.GetInt64("PINATA_MAX_FILE_SIZE_BYTES"),
	}

	cfg.Exports = ExportsConfig{
		Enabled: v.GetBool("EXPORTS_ENABLED"),
	}

	cfg.Reconcile = ReconcileConfig{
		Enabled:    v.GetBool("RECONCILE_ENABLED"),
		Workers:    v.GetInt("RECONCILE_WORKERS"),
		MaxRetries: v.GetInt("RECONCILE_MAX_RETRIES"),
		RetryDelay: v.GetDuration("RECONCILE_RETRY_DELAY"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "credchain")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_session_secret")
	v.SetDefault("JWT_EXPIRATION", "12h")
	v.SetDefault("JWT_ISSUER", "credchain-api")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CHAIN_ID", 11155111)
	v.SetDefault("CHAIN_NAME", "Ethereum Sepolia Testnet")
	v.SetDefault("CHAIN_CONFIRMATION_TIMEOUT", "5m")
	v.SetDefault("CHAIN_READ_CACHE_TTL", "30s")

	v.SetDefault("PINATA_GATEWAY", "https://gateway.pinata.cloud")
	v.SetDefault("PINATA_MAX_FILE_SIZE_BYTES", 10*1024*1024)

	v.SetDefault("EXPORTS_ENABLED", true)

	v.SetDefault("RECONCILE_ENABLED", true)
	v.SetDefault("RECONCILE_WORKERS", 1)
	v.SetDefault("RECONCILE_MAX_RETRIES", 5)
	v.SetDefault("RECONCILE_RETRY_DELAY", "10s")
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
