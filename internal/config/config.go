package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port               string        `envconfig:"PORT" default:"8080"`
	Environment        string        `envconfig:"ENV" default:"development"`
	DBConnectionString string        `envconfig:"DB_CONNECTION_STRING" required:"true"`
	JWTSecret          string        `envconfig:"JWT_SECRET" required:"true"`
	JWTTTL             time.Duration `envconfig:"JWT_TTL" default:"168h"`

	// Stripe
	StripeSecretKey       string `envconfig:"STRIPE_SECRET_KEY" required:"true"`
	StripeWebhookSecret   string `envconfig:"STRIPE_WEBHOOK_SECRET" required:"true"`
	StripePortalReturnURL string `envconfig:"STRIPE_PORTAL_RETURN_URL" default:"http://localhost:3000/account/subscription"`

	// Credits
	FreePlanCredits float64       `envconfig:"FREE_PLAN_CREDITS" default:"400"`
	RenewalInterval time.Duration `envconfig:"RENEWAL_INTERVAL" default:"0"` // 0 leaves renewal to bakeryctl

	// Redis (optional, webhook dedupe and catalogue cache)
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisTLS      bool   `envconfig:"REDIS_TLS" default:"false"`

	// S3-compatible storage for generated media (optional)
	S3URL       string `envconfig:"S3_URL"`
	S3Bucket    string `envconfig:"S3_BUCKET"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY"`

	// Pub/Sub usage events (optional)
	GCPProjectID       string `envconfig:"GCP_PROJECT_ID"`
	GCPCredentialsFile string `envconfig:"GCP_CREDENTIALS_FILE"`
	PubSubEmulatorHost string `envconfig:"PUBSUB_EMULATOR_HOST"`
	PubSubUsageTopic   string `envconfig:"PUBSUB_USAGE_TOPIC" default:"credit-usage"`

	SentryDSN string `envconfig:"SENTRY_DSN"`

	// Catalogue served while the database holds none. Empty uses the built-in one.
	CatalogFile string `envconfig:"CATALOG_FILE"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// StorageEnabled reports whether media uploads and downloads can be signed.
func (c *Config) StorageEnabled() bool {
	return c.S3Bucket != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

// UsageEventsEnabled reports whether usage events should be published.
func (c *Config) UsageEventsEnabled() bool {
	return c.GCPProjectID != "" && c.PubSubUsageTopic != ""
}

// ToolConfig is the part of Config the bakeryctl commands need. It leaves
// out the Stripe and JWT secrets so operators can run it with database
// access alone.
type ToolConfig struct {
	Environment        string  `envconfig:"ENV" default:"development"`
	DBConnectionString string  `envconfig:"DB_CONNECTION_STRING" required:"true"`
	FreePlanCredits    float64 `envconfig:"FREE_PLAN_CREDITS" default:"400"`

	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisTLS      bool   `envconfig:"REDIS_TLS" default:"false"`
}

func LoadTool() (*ToolConfig, error) {
	var cfg ToolConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
