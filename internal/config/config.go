package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Geocoder GeocoderConfig `yaml:"geocoder" mapstructure:"geocoder"`
	Images   ImagesConfig   `yaml:"images" mapstructure:"images"`
	Blob     BlobConfig     `yaml:"blob" mapstructure:"blob"`
	Batch    BatchConfig    `yaml:"batch" mapstructure:"batch"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the catalog database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// GeocoderConfig configures the address resolution client.
type GeocoderConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	CountryCode string  `yaml:"country_code" mapstructure:"country_code"`
	RateRPS     float64 `yaml:"rate_rps" mapstructure:"rate_rps"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ImagesConfig configures the image migration downloads.
type ImagesConfig struct {
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	Referer     string `yaml:"referer" mapstructure:"referer"`
	Resolution  string `yaml:"resolution" mapstructure:"resolution"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// BlobConfig configures object storage for migrated images.
type BlobConfig struct {
	Endpoint      string `yaml:"endpoint" mapstructure:"endpoint"`
	AccessKey     string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey     string `yaml:"secret_key" mapstructure:"secret_key"`
	Bucket        string `yaml:"bucket" mapstructure:"bucket"`
	UseSSL        bool   `yaml:"use_ssl" mapstructure:"use_ssl"`
	PublicBaseURL string `yaml:"public_base_url" mapstructure:"public_base_url"`
}

// BatchConfig configures the resumable batch runner.
type BatchConfig struct {
	Size            int    `yaml:"size" mapstructure:"size"`
	CheckpointEvery int    `yaml:"checkpoint_every" mapstructure:"checkpoint_every"`
	CheckpointDir   string `yaml:"checkpoint_dir" mapstructure:"checkpoint_dir"`
	ItemDelayMS     int    `yaml:"item_delay_ms" mapstructure:"item_delay_ms"`
	BatchPauseMS    int    `yaml:"batch_pause_ms" mapstructure:"batch_pause_ms"`
}

// ItemDelay returns the pause between consecutive entities.
func (b BatchConfig) ItemDelay() time.Duration {
	return time.Duration(b.ItemDelayMS) * time.Millisecond
}

// BatchPause returns the pause between consecutive batches.
func (b BatchConfig) BatchPause() time.Duration {
	return time.Duration(b.BatchPauseMS) * time.Millisecond
}

// ServerConfig configures the notification relay server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks that the fields required by the given mode are present.
// Modes: "geocode", "images", "seed", "serve".
func (c *Config) Validate(mode string) error {
	var missing []string

	if c.Batch.Size < 1 {
		missing = append(missing, "batch.size must be >= 1")
	}
	if c.Batch.CheckpointEvery < 1 {
		missing = append(missing, "batch.checkpoint_every must be >= 1")
	}

	switch mode {
	case "geocode":
		if c.Store.DatabaseURL == "" && c.Store.Driver == "postgres" {
			missing = append(missing, "store.database_url is required")
		}
		if c.Geocoder.UserAgent == "" {
			missing = append(missing, "geocoder.user_agent is required")
		}
	case "images":
		if c.Store.DatabaseURL == "" && c.Store.Driver == "postgres" {
			missing = append(missing, "store.database_url is required")
		}
		if c.Blob.Endpoint == "" {
			missing = append(missing, "blob.endpoint is required")
		}
		if c.Blob.Bucket == "" {
			missing = append(missing, "blob.bucket is required")
		}
	case "seed":
		if c.Store.DatabaseURL == "" && c.Store.Driver == "postgres" {
			missing = append(missing, "store.database_url is required")
		}
	case "serve":
		if c.Server.Port <= 0 {
			missing = append(missing, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(missing, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MARKETPLACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("geocoder.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocoder.user_agent", "plannora-backfill/1.0 (ops@plannora.fr)")
	v.SetDefault("geocoder.country_code", "fr")
	v.SetDefault("geocoder.rate_rps", 1)
	v.SetDefault("geocoder.timeout_secs", 15)
	v.SetDefault("images.user_agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36")
	v.SetDefault("images.resolution", "original")
	v.SetDefault("images.timeout_secs", 30)
	v.SetDefault("blob.bucket", "marketplace-media")
	v.SetDefault("batch.size", 100)
	v.SetDefault("batch.checkpoint_every", 10)
	v.SetDefault("batch.checkpoint_dir", ".")
	v.SetDefault("batch.item_delay_ms", 1000)
	v.SetDefault("batch.batch_pause_ms", 5000)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
