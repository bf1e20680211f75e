package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/smartcity/traffic-analyzer/internal/service"
)

// Config holds process settings. Environment variables use the upper-cased keys.
type Config struct {
	Port        string `mapstructure:"port" yaml:"port"`
	Env         string `mapstructure:"env" yaml:"env"`
	DatabaseURL string `mapstructure:"database_url" yaml:"database_url"`
	MaxUploadMB int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
	SampleLimit int    `mapstructure:"sample_limit" yaml:"sample_limit"`

	AnalysisServiceURL  string        `mapstructure:"analysis_service_url" yaml:"analysis_service_url"`
	UseLocalAnalyzer    bool          `mapstructure:"use_local_analyzer" yaml:"use_local_analyzer"`
	AnalysisAPIKey      string        `mapstructure:"analysis_api_key" yaml:"analysis_api_key"`
	AnalysisMaxAttempts int           `mapstructure:"analysis_max_attempts" yaml:"analysis_max_attempts"`
	AnalysisTimeout     time.Duration `mapstructure:"analysis_timeout" yaml:"analysis_timeout"`
	AnalysisRetryDelay  time.Duration `mapstructure:"analysis_retry_delay" yaml:"analysis_retry_delay"`
}

// Load reads configuration from defaults, an optional config file and the environment.
// Precedence: env > config file > defaults. A .env file in the working
// directory is loaded first when present.
func Load(cfgFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := service.DefaultDelegationConfig()
	v.SetDefault("port", "8080")
	v.SetDefault("env", "development")
	v.SetDefault("database_url", "")
	v.SetDefault("max_upload_mb", 10)
	v.SetDefault("sample_limit", service.DefaultSampleLimit)
	v.SetDefault("analysis_service_url", defaults.ServiceURL)
	v.SetDefault("use_local_analyzer", defaults.UseLocalAnalyzer)
	v.SetDefault("analysis_api_key", "")
	v.SetDefault("analysis_max_attempts", defaults.MaxAttempts)
	v.SetDefault("analysis_timeout", defaults.Timeout)
	v.SetDefault("analysis_retry_delay", defaults.RetryDelay)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", cfgFile, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal: %w", err)
	}
	c.normalize()
	return &c, nil
}

// normalize replaces out-of-range values with defaults
func (c *Config) normalize() {
	defaults := service.DefaultDelegationConfig()
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.MaxUploadMB <= 0 {
		c.MaxUploadMB = 10
	}
	if c.SampleLimit < 1 {
		c.SampleLimit = service.DefaultSampleLimit
	}
	if c.AnalysisMaxAttempts < 1 {
		c.AnalysisMaxAttempts = defaults.MaxAttempts
	}
	if c.AnalysisTimeout <= 0 {
		c.AnalysisTimeout = defaults.Timeout
	}
	if c.AnalysisRetryDelay < 0 {
		c.AnalysisRetryDelay = defaults.RetryDelay
	}
}

// Delegation returns the settings consumed by the delegation client
func (c *Config) Delegation() service.DelegationConfig {
	return service.DelegationConfig{
		ServiceURL:       c.AnalysisServiceURL,
		UseLocalAnalyzer: c.UseLocalAnalyzer,
		APIKey:           c.AnalysisAPIKey,
		MaxAttempts:      c.AnalysisMaxAttempts,
		Timeout:          c.AnalysisTimeout,
		RetryDelay:       c.AnalysisRetryDelay,
	}
}

// MaskedAPIKey returns a prefix of the credential safe for logs
func (c *Config) MaskedAPIKey() string {
	if c.AnalysisAPIKey == "" {
		return ""
	}
	if len(c.AnalysisAPIKey) <= 8 {
		return "***"
	}
	return c.AnalysisAPIKey[:8] + "..."
}
