package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Probe     ProbeConfig
	Scheduler SchedulerConfig
	Metrics   MetricsConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port string
	Mode string
	// TriggerRate is the per-owner manual check rate in checks per second.
	TriggerRate  float64
	TriggerBurst int
}

type DatabaseConfig struct {
	URL            string
	MaxConnections int
	MaxIdleConns   int
	Migrate        bool
}

type AuthConfig struct {
	JWTSecret string
	JWKSURL   string
	Issuer    string
}

type ProbeConfig struct {
	HTTPTimeout    time.Duration
	PingTimeout    time.Duration
	WriteTimeout   time.Duration
	DNSDiagnostics bool
	Resolver       string
}

type SchedulerConfig struct {
	Enabled     bool
	WorkerCount int
	Tick        time.Duration
	RateLimit   float64
	BatchSize   int
}

type MetricsConfig struct {
	Port           string
	RemoteWriteURL string
	TenantHeader   string
	TenantID       string
	AuthToken      string
	BatchSize      int
	FlushInterval  time.Duration
}

type LogConfig struct {
	Level string
	Dir   string
}

// Load reads config.yaml from . or ./config, then UPTIME_* environment
// variables. A local .env file is loaded first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("UPTIME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
	if url := os.Getenv("MIMIR_URL"); url != "" {
		cfg.Metrics.RemoteWriteURL = url
	}
	if token := os.Getenv("MIMIR_AUTH_TOKEN"); token != "" {
		cfg.Metrics.AuthToken = token
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.triggerrate", 1.0)
	v.SetDefault("server.triggerburst", 5)
	v.SetDefault("database.url", "")
	v.SetDefault("database.maxconnections", 25)
	v.SetDefault("database.maxidleconns", 5)
	v.SetDefault("database.migrate", true)
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.jwksurl", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("probe.httptimeout", "10s")
	v.SetDefault("probe.pingtimeout", "5s")
	v.SetDefault("probe.writetimeout", "5s")
	v.SetDefault("probe.dnsdiagnostics", true)
	v.SetDefault("probe.resolver", "8.8.8.8:53")
	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.workercount", 10)
	v.SetDefault("scheduler.tick", "10s")
	v.SetDefault("scheduler.ratelimit", 20)
	v.SetDefault("scheduler.batchsize", 100)
	v.SetDefault("metrics.port", "9090")
	v.SetDefault("metrics.remotewriteurl", "")
	v.SetDefault("metrics.tenantheader", "X-Scope-OrgID")
	v.SetDefault("metrics.tenantid", "")
	v.SetDefault("metrics.authtoken", "")
	v.SetDefault("metrics.batchsize", 1000)
	v.SetDefault("metrics.flushinterval", "10s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.dir", "")
}

func (c *Config) Validate() error {
	switch {
	case c.Probe.HTTPTimeout <= 0:
		return errors.New("probe.httptimeout must be positive")
	case c.Probe.PingTimeout <= 0:
		return errors.New("probe.pingtimeout must be positive")
	case c.Probe.WriteTimeout <= 0:
		return errors.New("probe.writetimeout must be positive")
	case c.Scheduler.WorkerCount < 1:
		return errors.New("scheduler.workercount must be at least 1")
	case c.Scheduler.Tick <= 0:
		return errors.New("scheduler.tick must be positive")
	case c.Server.TriggerRate <= 0 || c.Server.TriggerBurst < 1:
		return errors.New("server.triggerrate and server.triggerburst must be positive")
	}
	return nil
}
