package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration required by the API process.
// All values come from env; a .env file in the working directory is loaded first when present.
type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Provider ProviderConfig
	Tools    ToolsConfig
	Campaign CampaignConfig
	Tenancy  TenancyConfig
}

type AppConfig struct {
	Env  string
	Port int
	// MigrationsAuto applies embedded migrations on startup.
	MigrationsAuto bool
	// WorkerEnabled runs the campaign dial worker in-process.
	WorkerEnabled bool
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
}

type AuthConfig struct {
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
}

// ProviderConfig configures the external voice-AI call provider.
type ProviderConfig struct {
	APIURL        string
	APIKey        string
	PhoneNumberID string
	// WebhookSecret is compared against the X-Vapi-Secret header of inbound webhooks.
	WebhookSecret string
}

type ToolsConfig struct {
	// Timeout bounds each tool-call handler individually.
	Timeout     time.Duration
	Concurrency int
}

type CampaignConfig struct {
	InterCallGap       time.Duration
	MaxConcurrentCalls int
	RecentActivity     int
	Queue              string
	WorkerConcurrency  int
	// SlotTTL is how long a dialed call may hold an in-flight slot without
	// reaching a terminal status. It should exceed the longest expected call.
	SlotTTL time.Duration
}

type TenancyConfig struct {
	PhoneDefaultRegion string
	CacheTTL           time.Duration
}

func Load() (Config, error) {
	_ = godotenv.Load()

	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	c.App.Port, parseErrs = requiredInt(parseErrs, "APP_PORT")
	c.App.MigrationsAuto = optionalBool("MIGRATIONS_AUTO", false)
	c.App.WorkerEnabled = optionalBool("WORKER_ENABLED", true)

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	c.DB.Port, parseErrs = requiredInt(parseErrs, "DB_PORT")
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	c.Redis.Port, parseErrs = requiredInt(parseErrs, "REDIS_PORT")
	c.Redis.Password = os.Getenv("REDIS_PASSWORD")

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))

	c.Provider.APIURL = strings.TrimSpace(os.Getenv("PROVIDER_API_URL"))
	c.Provider.APIKey = os.Getenv("PROVIDER_API_KEY")
	c.Provider.PhoneNumberID = strings.TrimSpace(os.Getenv("PROVIDER_PHONE_NUMBER_ID"))
	c.Provider.WebhookSecret = os.Getenv("PROVIDER_WEBHOOK_SECRET")

	c.Tools.Timeout, parseErrs = optionalDuration(parseErrs, "TOOL_CALL_TIMEOUT")
	c.Tools.Concurrency, parseErrs = optionalInt(parseErrs, "TOOL_CALL_CONCURRENCY")

	c.Campaign.InterCallGap, parseErrs = optionalDuration(parseErrs, "CAMPAIGN_INTER_CALL_GAP")
	c.Campaign.MaxConcurrentCalls, parseErrs = optionalInt(parseErrs, "CAMPAIGN_MAX_CONCURRENT_CALLS")
	c.Campaign.RecentActivity, parseErrs = optionalInt(parseErrs, "CAMPAIGN_RECENT_ACTIVITY")
	c.Campaign.Queue = strings.TrimSpace(os.Getenv("CAMPAIGN_QUEUE"))
	c.Campaign.WorkerConcurrency, parseErrs = optionalInt(parseErrs, "WORKER_CONCURRENCY")
	c.Campaign.SlotTTL, parseErrs = optionalDuration(parseErrs, "CAMPAIGN_SLOT_TTL")

	c.Tenancy.PhoneDefaultRegion = strings.ToUpper(strings.TrimSpace(os.Getenv("PHONE_DEFAULT_REGION")))
	c.Tenancy.CacheTTL, parseErrs = optionalDuration(parseErrs, "TENANCY_CACHE_TTL")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks required values and fills defaults in place.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.DB.SSLMode == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
		if c.Provider.WebhookSecret == "" {
			errs = append(errs, errors.New("PROVIDER_WEBHOOK_SECRET is required in production"))
		}
	}

	if c.Provider.APIURL == "" {
		c.Provider.APIURL = "https://api.vapi.ai"
	}

	if c.Tools.Timeout <= 0 {
		c.Tools.Timeout = 3 * time.Second
	}
	if c.Tools.Concurrency <= 0 {
		c.Tools.Concurrency = 8
	}

	if c.Campaign.InterCallGap <= 0 {
		c.Campaign.InterCallGap = 30 * time.Second
	}
	if c.Campaign.MaxConcurrentCalls <= 0 {
		c.Campaign.MaxConcurrentCalls = 5
	}
	if c.Campaign.RecentActivity <= 0 {
		c.Campaign.RecentActivity = 10
	}
	if c.Campaign.Queue == "" {
		c.Campaign.Queue = "campaigns"
	}
	if c.Campaign.WorkerConcurrency <= 0 {
		c.Campaign.WorkerConcurrency = 10
	}
	if c.Campaign.SlotTTL <= 0 {
		c.Campaign.SlotTTL = time.Hour
	}

	if c.Tenancy.PhoneDefaultRegion == "" {
		c.Tenancy.PhoneDefaultRegion = "US"
	}
	if c.Tenancy.CacheTTL <= 0 {
		c.Tenancy.CacheTTL = 5 * time.Minute
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Contains secrets; never log.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func requiredInt(errs []error, key string) (int, []error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, append(errs, fmt.Errorf("%s is required", key))
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, append(errs, fmt.Errorf("%s must be an integer, got %q", key, v))
	}
	return n, errs
}

func optionalInt(errs []error, key string) (int, []error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, errs
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, append(errs, fmt.Errorf("%s must be an integer, got %q", key, v))
	}
	return n, errs
}

func optionalDuration(errs []error, key string) (time.Duration, []error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, errs
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, append(errs, fmt.Errorf("%s must be a duration, got %q", key, v))
	}
	return d, errs
}

func optionalBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
