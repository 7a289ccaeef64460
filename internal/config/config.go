package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName        = "SangoOnboard"
	defaultAppEnv         = "development"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultChannel        = "TELEGRAM_MINIAPP"
	defaultClientVersion  = "1.4.2"
	defaultHostReadyGrace = 3 * time.Second
	defaultGeoTimeout     = 2 * time.Second
	defaultOTPTTL         = 5 * time.Minute
	defaultShutdownDelay  = 10 * time.Second
	otpTTLSecondsEnvVar   = "OTP_TTL_SECONDS"
	otpTTLDurEnvVar       = "OTP_TTL"
	graceSecondsEnvVar    = "HOST_READY_GRACE_SECONDS"
	graceDurationEnvVar   = "HOST_READY_GRACE"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	BackendURL     string
	RedisURL       string
	Channel        string
	ClientVersion  string
	GeoLookupURL   string
	GeoTimeout     time.Duration
	HostReadyGrace time.Duration
	OTPTTL         time.Duration
	ShutdownPeriod time.Duration

	// Identity sources forwarded by the mini-app wrapper. Empty values are
	// valid; resolution falls through them in order.
	WebAppData       string
	WebAppHostObject string
	WebAppURL        string
}

// Load reads configuration values from the environment and populates a Config
// instance for the wizard binary. The backend origin is mandatory: its absence
// is a configuration error, not something to retry at runtime.
func Load() (Config, error) {
	cfg := baseConfig()
	cfg.BackendURL = strings.TrimRight(os.Getenv("BACKEND_URL"), "/")

	if cfg.BackendURL == "" {
		return Config{}, fmt.Errorf("BACKEND_URL must be set")
	}

	return cfg, nil
}

// LoadSandbox reads configuration for the sandbox backend binary. Redis is
// optional; the code store degrades when it is absent.
func LoadSandbox() (Config, error) {
	cfg := baseConfig()
	cfg.RedisURL = os.Getenv("REDIS_URL")

	if v := os.Getenv(otpTTLSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", otpTTLSecondsEnvVar, err)
		}
		cfg.OTPTTL = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(otpTTLDurEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", otpTTLDurEnvVar, err)
		}
		cfg.OTPTTL = d
	}

	return cfg, nil
}

func baseConfig() Config {
	cfg := Config{
		AppName:          getEnv("APP_NAME", defaultAppName),
		AppEnv:           getEnv("APP_ENV", defaultAppEnv),
		Port:             getEnv("PORT", defaultPort),
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		Channel:          getEnv("CHANNEL_ID", defaultChannel),
		ClientVersion:    getEnv("CLIENT_VERSION", defaultClientVersion),
		GeoLookupURL:     os.Getenv("GEO_LOOKUP_URL"),
		GeoTimeout:       defaultGeoTimeout,
		HostReadyGrace:   defaultHostReadyGrace,
		OTPTTL:           defaultOTPTTL,
		ShutdownPeriod:   defaultShutdownDelay,
		WebAppData:       os.Getenv("TG_WEBAPP_DATA"),
		WebAppHostObject: os.Getenv("TG_WEBAPP_HOST_OBJECT"),
		WebAppURL:        os.Getenv("TG_WEBAPP_URL"),
	}

	if v := os.Getenv(graceSecondsEnvVar); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil {
			cfg.HostReadyGrace = time.Duration(seconds) * time.Second
		}
	} else if v := os.Getenv(graceDurationEnvVar); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HostReadyGrace = d
		}
	}

	return cfg
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
