package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string        `mapstructure:"PORT"`
	Env            string        `mapstructure:"ENV"`
	AuthMode       string        `mapstructure:"AUTH_MODE"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL       string        `mapstructure:"REDIS_URL"`
	AuthIssuer     string        `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL    string        `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience   string        `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey string        `mapstructure:"AUTH_SIGNING_KEY"`
	AuthTokenTTL   time.Duration `mapstructure:"AUTH_TOKEN_TTL"`
	SessionIdleTTL time.Duration `mapstructure:"SESSION_IDLE_TTL"`
	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	PredictorURL   string        `mapstructure:"PREDICTOR_URL"`
	KafkaBrokers   []string      `mapstructure:"KAFKA_BROKERS"`
	KafkaCaseTopic string        `mapstructure:"KAFKA_CASE_TOPIC"`
	KafkaGroupID   string        `mapstructure:"KAFKA_GROUP_ID"`
	S3Bucket       string        `mapstructure:"S3_BUCKET"`
	S3Region       string        `mapstructure:"S3_REGION"`
	S3Endpoint     string        `mapstructure:"S3_ENDPOINT"`
	S3AccessKey    string        `mapstructure:"S3_ACCESS_KEY"`
	S3SecretKey    string        `mapstructure:"S3_SECRET_KEY"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("AUTH_MODE", "") // "" -> inferred from AUTH_ISSUER
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("AUTH_TOKEN_TTL", "24h")
	v.SetDefault("SESSION_IDLE_TTL", "30m")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("PREDICTOR_URL", "http://localhost:5000")
	v.SetDefault("KAFKA_CASE_TOPIC", "surgical-case-events")
	v.SetDefault("KAFKA_GROUP_ID", "surgicast-api")
	v.SetDefault("S3_REGION", "us-east-1")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "AUTH_MODE", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"REDIS_URL", "AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE", "AUTH_SIGNING_KEY",
		"AUTH_TOKEN_TTL", "SESSION_IDLE_TTL", "CORS_ORIGINS", "PREDICTOR_URL", "KAFKA_BROKERS",
		"KAFKA_CASE_TOPIC", "KAFKA_GROUP_ID", "S3_BUCKET", "S3_REGION", "S3_ENDPOINT",
		"S3_ACCESS_KEY", "S3_SECRET_KEY",
	} {
		v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(cfg.CORSOrigins, v.GetString("CORS_ORIGINS"))
	cfg.KafkaBrokers = splitList(cfg.KafkaBrokers, v.GetString("KAFKA_BROKERS"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() && cfg.AuthSigningKey == "" {
		log.Println("WARNING: AUTH_SIGNING_KEY is not set; using the development signing key.")
		log.Println("WARNING: Do NOT use this configuration in production.")
		cfg.AuthSigningKey = DevSigningKey
	}

	return cfg, nil
}

// DevSigningKey signs standalone tokens when ENV=development and no key is configured.
const DevSigningKey = "surgicast-development-signing-key"

// splitList normalizes comma-separated env values, whether viper already
// split them or left the raw string.
func splitList(parsed []string, raw string) []string {
	if len(parsed) == 0 && raw != "" {
		parsed = []string{raw}
	}
	var out []string
	for _, entry := range parsed {
		for _, item := range strings.Split(entry, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ResolvedAuthMode returns the effective auth mode. If AUTH_MODE is explicitly
// set, it is returned. Otherwise:
//   - AUTH_ISSUER set → "external" (tokens verified against the issuer's JWKS)
//   - Otherwise       → "standalone" (built-in identity provider)
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return c.AuthMode
	}
	if c.AuthIssuer != "" {
		return "external"
	}
	return "standalone"
}

// KafkaEnabled reports whether the surgical case event consumer should run.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0 && c.KafkaCaseTopic != ""
}

// S3Enabled reports whether profile picture uploads are configured.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != ""
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	mode := c.ResolvedAuthMode()
	switch mode {
	case "standalone":
		if c.AuthSigningKey == "" {
			return fmt.Errorf("AUTH_SIGNING_KEY is required when AUTH_MODE is \"standalone\"")
		}
		if c.IsProduction() && c.AuthSigningKey == DevSigningKey {
			return fmt.Errorf("the development signing key must not be used in production")
		}
		if len(c.AuthSigningKey) < 32 && c.IsProduction() {
			return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 characters in production, got %d", len(c.AuthSigningKey))
		}
	case "external":
		if c.AuthIssuer == "" {
			return fmt.Errorf("AUTH_ISSUER must be set when AUTH_MODE is \"external\" (current ENV=%q)", c.Env)
		}
	default:
		return fmt.Errorf("AUTH_MODE must be \"standalone\" or \"external\", got %q", mode)
	}

	if c.AuthTokenTTL <= 0 {
		return fmt.Errorf("AUTH_TOKEN_TTL must be positive, got %s", c.AuthTokenTTL)
	}

	if c.SessionIdleTTL <= 0 {
		return fmt.Errorf("SESSION_IDLE_TTL must be positive, got %s", c.SessionIdleTTL)
	}

	if c.S3Enabled() && (c.S3AccessKey == "") != (c.S3SecretKey == "") {
		return fmt.Errorf("S3_ACCESS_KEY and S3_SECRET_KEY must be set together")
	}

	return nil
}
