package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Eligibility policies
const (
	PolicyCalendarYear    = "calendar_year"
	PolicyRollingInterval = "rolling_interval"
)

type Config struct {
	Port        string
	Environment string

	// Persistence
	StoreType          string
	MongoURI           string
	MongoDB            string
	FirestoreProjectID string
	PostgresDSN        string

	// Per-farm claim lock
	LockBackend   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration

	// Hotspot detection
	DetectionProvider string
	GistdaURL         string
	DetectionTimeout  time.Duration
	DetectionBufferKm float64

	// Attestation
	AppID             string
	TemplateID        string
	AttestationSalt   string
	AttestorKeySeed   []byte
	AttestationTTL    time.Duration
	StrictAttestation bool
	BatchConcurrency  int

	// Rewards
	PrimaryPerHectare   decimal.Decimal
	PrimaryCurrency     string
	SecondaryPerHectare decimal.Decimal
	SecondaryCurrency   string

	// Eligibility
	EligibilityPolicy string
	MinClaimInterval  time.Duration
	ClaimTimezone     *time.Location

	// Settlement
	SettlementMode       string
	SettlementRelayURL   string
	SettlementRelayToken string

	// HTTP
	RateLimitRPS    float64
	RateLimitBurst  int
	EventWebhookURL string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		StoreType:          getEnv("STORE_TYPE", "memory"),
		MongoURI:           getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:            getEnv("MONGO_DB", "cleanfield"),
		FirestoreProjectID: getEnv("FIRESTORE_PROJECT_ID", ""),
		PostgresDSN:        getEnv("POSTGRES_DSN", "postgres://localhost:5432/cleanfield?sslmode=disable"),

		LockBackend:   getEnv("LOCK_BACKEND", "local"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		DetectionProvider: getEnv("DETECTION_PROVIDER", "mock"),
		GistdaURL:         getEnv("GISTDA_URL", "https://gistdaportal.gistda.or.th/data/rest/services/FR_Fire/hotspot_npp_daily/MapServer/0/query"),

		AppID:           getEnv("ATTESTATION_APP_ID", "demo_cleanfield_app"),
		TemplateID:      getEnv("ATTESTATION_TEMPLATE_ID", "gistda_hotspot_verification_v1"),
		AttestationSalt: getEnv("ATTESTATION_SALT", "cleanfield_v1"),

		PrimaryCurrency:   getEnv("REWARD_PRIMARY_CURRENCY", "USDC"),
		SecondaryCurrency: getEnv("REWARD_SECONDARY_CURRENCY", "THB"),

		EligibilityPolicy: getEnv("ELIGIBILITY_POLICY", PolicyCalendarYear),

		SettlementMode:       getEnv("SETTLEMENT_MODE", "mock"),
		SettlementRelayURL:   getEnv("SETTLEMENT_RELAY_URL", ""),
		SettlementRelayToken: getEnv("SETTLEMENT_RELAY_TOKEN", ""),

		EventWebhookURL: getEnv("EVENT_WEBHOOK_URL", ""),
	}

	var err error
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.LockTTL, err = getEnvDuration("LOCK_TTL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.DetectionTimeout, err = getEnvDuration("DETECTION_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.DetectionBufferKm, err = getEnvFloat("DETECTION_BUFFER_KM", 1); err != nil {
		return nil, err
	}
	if cfg.AttestationTTL, err = getEnvDuration("ATTESTATION_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.StrictAttestation, err = getEnvBool("ATTESTATION_STRICT", cfg.Environment == "production"); err != nil {
		return nil, err
	}
	if cfg.BatchConcurrency, err = getEnvInt("BATCH_CONCURRENCY", 5); err != nil {
		return nil, err
	}
	if cfg.PrimaryPerHectare, err = getEnvDecimal("REWARD_PRIMARY_PER_HECTARE", "150"); err != nil {
		return nil, err
	}
	if cfg.SecondaryPerHectare, err = getEnvDecimal("REWARD_SECONDARY_PER_HECTARE", "5000"); err != nil {
		return nil, err
	}
	if cfg.RateLimitRPS, err = getEnvFloat("RATE_LIMIT_RPS", 20); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = getEnvInt("RATE_LIMIT_BURST", 40); err != nil {
		return nil, err
	}

	defaultInterval := 0
	if cfg.EligibilityPolicy == PolicyRollingInterval {
		defaultInterval = 365
	}
	days, err := getEnvInt("CLAIM_MIN_INTERVAL_DAYS", defaultInterval)
	if err != nil {
		return nil, err
	}
	cfg.MinClaimInterval = time.Duration(days) * 24 * time.Hour

	cfg.ClaimTimezone, err = time.LoadLocation(getEnv("CLAIM_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("CLAIM_TIMEZONE: %w", err)
	}

	if seed := getEnv("ATTESTOR_KEY_SEED", ""); seed != "" {
		cfg.AttestorKeySeed, err = hex.DecodeString(seed)
		if err != nil {
			return nil, fmt.Errorf("ATTESTOR_KEY_SEED: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	switch c.StoreType {
	case "memory", "mongo", "firestore", "postgres":
	default:
		return fmt.Errorf("unknown STORE_TYPE %q", c.StoreType)
	}
	if c.StoreType == "firestore" && c.FirestoreProjectID == "" {
		return fmt.Errorf("FIRESTORE_PROJECT_ID is required for firestore store")
	}
	switch c.LockBackend {
	case "local", "redis":
	default:
		return fmt.Errorf("unknown LOCK_BACKEND %q", c.LockBackend)
	}
	switch c.DetectionProvider {
	case "mock", "gistda":
	default:
		return fmt.Errorf("unknown DETECTION_PROVIDER %q", c.DetectionProvider)
	}
	switch c.EligibilityPolicy {
	case PolicyCalendarYear, PolicyRollingInterval:
	default:
		return fmt.Errorf("unknown ELIGIBILITY_POLICY %q", c.EligibilityPolicy)
	}
	if c.EligibilityPolicy == PolicyRollingInterval && c.MinClaimInterval <= 0 {
		return fmt.Errorf("rolling_interval policy requires CLAIM_MIN_INTERVAL_DAYS > 0")
	}
	switch c.SettlementMode {
	case "mock":
	case "relay":
		if c.SettlementRelayURL == "" {
			return fmt.Errorf("SETTLEMENT_RELAY_URL is required for relay settlement")
		}
	default:
		return fmt.Errorf("unknown SETTLEMENT_MODE %q", c.SettlementMode)
	}
	if !c.PrimaryPerHectare.IsPositive() || !c.SecondaryPerHectare.IsPositive() {
		return fmt.Errorf("reward rates must be positive")
	}
	if c.DetectionTimeout <= 0 {
		return fmt.Errorf("DETECTION_TIMEOUT must be positive")
	}
	if c.AttestationTTL <= 0 {
		return fmt.Errorf("ATTESTATION_TTL must be positive")
	}
	if c.BatchConcurrency < 1 {
		return fmt.Errorf("BATCH_CONCURRENCY must be at least 1")
	}
	if len(c.AttestorKeySeed) != 0 && len(c.AttestorKeySeed) != 32 {
		return fmt.Errorf("ATTESTOR_KEY_SEED must be 32 bytes, got %d", len(c.AttestorKeySeed))
	}
	if c.Environment == "production" {
		if !c.StrictAttestation {
			return fmt.Errorf("production requires ATTESTATION_STRICT")
		}
		if len(c.AttestorKeySeed) == 0 {
			return fmt.Errorf("production requires ATTESTOR_KEY_SEED")
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getEnvDecimal(key, defaultValue string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(getEnv(key, defaultValue))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
