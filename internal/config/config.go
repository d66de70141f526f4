package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Providers ProvidersConfig `yaml:"providers" mapstructure:"providers"`
	Centroid  CentroidConfig  `yaml:"centroid" mapstructure:"centroid"`
	Share     ShareConfig     `yaml:"share" mapstructure:"share"`
	Region    RegionConfig    `yaml:"region" mapstructure:"region"`
	Census    CensusConfig    `yaml:"census" mapstructure:"census"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// ProvidersConfig holds credentials for the address validation vendors.
type ProvidersConfig struct {
	Google GoogleConfig `yaml:"google" mapstructure:"google"`
	Lob    LobConfig    `yaml:"lob" mapstructure:"lob"`
}

// GoogleConfig holds Google Address Validation API settings (primary provider).
type GoogleConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// LobConfig holds Lob US verification API settings (secondary provider).
type LobConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// CentroidConfig configures the ZIP-to-centroid rescue lookup.
type CentroidConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ShareConfig configures the remote heatmap persistence API.
type ShareConfig struct {
	APIURL string `yaml:"api_url" mapstructure:"api_url"`
}

// RegionConfig configures the county polygon dataset.
type RegionConfig struct {
	// Source is a file path or http(s) URL of the enriched county GeoJSON.
	Source string `yaml:"source" mapstructure:"source"`
	// Units selects the display unit for density: "km" or "mi".
	Units string `yaml:"units" mapstructure:"units"`
}

// CensusConfig configures the dataset build against the Census ACS API.
type CensusConfig struct {
	Key  string `yaml:"api_key" mapstructure:"api_key"`
	Year string `yaml:"year" mapstructure:"year"`
}

// BatchConfig configures batch processing pace.
type BatchConfig struct {
	// ItemsPerSecond paces the sequential resolution loop to stay inside
	// vendor rate limits.
	ItemsPerSecond float64 `yaml:"items_per_second" mapstructure:"items_per_second"`
}

// StoreConfig configures the share persistence backend for `serve`.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the local share API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("HEATMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("providers.google.base_url", "https://addressvalidation.googleapis.com")
	v.SetDefault("providers.lob.base_url", "https://api.lob.com/v1")
	v.SetDefault("centroid.base_url", "https://api.assetval.com/zip-centroids")
	v.SetDefault("share.api_url", "http://localhost:8080")
	v.SetDefault("region.source", "data/counties-with-population.geojson")
	v.SetDefault("region.units", "km")
	v.SetDefault("census.year", "2022")
	v.SetDefault("batch.items_per_second", 2.0)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "heatmap.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
