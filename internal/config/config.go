// Package config loads runtime configuration for the boardkeeper client.
//
// Sources, lowest precedence first:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. An optional config file; JSON, YAML and TOML are recognised by extension.
//  3. BOARDKEEPER_* environment variables, nested keys joined by "_"
//     (BOARDKEEPER_S3_BUCKET, BOARDKEEPER_LOG_LEVEL).
//  4. Command-line flags registered with RegisterFlags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/boardkeeper/internal/blobstore"
	"github.com/dmitrijs2005/boardkeeper/internal/common"
	"github.com/dmitrijs2005/boardkeeper/internal/logging"
	"github.com/dmitrijs2005/boardkeeper/internal/models"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "BOARDKEEPER"

type Config struct {
	DataDir       string        `mapstructure:"data_dir"`
	Actor         string        `mapstructure:"actor"`
	PrivateStore  string        `mapstructure:"private_store"`
	SharedStore   string        `mapstructure:"shared_store"`
	CloudEndpoint string        `mapstructure:"cloud_endpoint"`
	AccessToken   string        `mapstructure:"access_token"`
	SyncInterval  time.Duration `mapstructure:"sync_interval"`
	S3            S3Config      `mapstructure:"s3"`
	Ingest        IngestConfig  `mapstructure:"ingest"`
	Log           LogConfig     `mapstructure:"log"`
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

func (s S3Config) Blobstore() blobstore.Config {
	return blobstore.Config{
		Bucket:    s.Bucket,
		Region:    s.Region,
		Endpoint:  s.Endpoint,
		AccessKey: s.AccessKey,
		SecretKey: s.SecretKey,
		Prefix:    s.Prefix,
	}
}

type IngestConfig struct {
	ThumbnailSize    int           `mapstructure:"thumbnail_size"`
	ThumbnailTimeout time.Duration `mapstructure:"thumbnail_timeout"`
	MetadataTimeout  time.Duration `mapstructure:"metadata_timeout"`
	LinkCacheSize    int           `mapstructure:"link_cache_size"`
	MaxParallel      int           `mapstructure:"max_parallel"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

func (l LogConfig) Options() logging.Options {
	return logging.Options{
		Level:      l.Level,
		Format:     l.Format,
		File:       l.File,
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAgeDays: l.MaxAgeDays,
	}
}

// LoadDefaults populates c with settings for a local, offline installation.
func (c *Config) LoadDefaults() {
	c.DataDir = defaultDataDir()
	c.Actor = string(models.ActorMainApp)
	c.PrivateStore = "private.db"
	c.SharedStore = "shared.db"
	c.CloudEndpoint = ""
	c.AccessToken = ""
	c.SyncInterval = time.Minute
	c.S3 = S3Config{Region: "us-east-1", Prefix: "assets"}
	c.Ingest = IngestConfig{
		ThumbnailSize:    256,
		ThumbnailTimeout: 5 * time.Second,
		MetadataTimeout:  10 * time.Second,
		LinkCacheSize:    256,
	}
	c.Log = LogConfig{Level: "info", Format: "text", MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 28}
}

func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".boardkeeper"
	}
	return filepath.Join(dir, "boardkeeper")
}

// StorePath returns the database file of the store serving scope.
func (c *Config) StorePath(scope models.Scope) string {
	name := c.PrivateStore
	if scope == models.ScopeShared {
		name = c.SharedStore
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

func (c *Config) Validate() error {
	switch models.Actor(c.Actor) {
	case models.ActorMainApp, models.ActorShareExtension:
	default:
		return common.Wrapf(common.ErrDataValidation, "actor must be %q or %q, got %q",
			models.ActorMainApp, models.ActorShareExtension, c.Actor)
	}
	if c.DataDir == "" {
		return common.Wrapf(common.ErrDataValidation, "data_dir is required")
	}
	if c.PrivateStore == "" || c.SharedStore == "" || c.StorePath(models.ScopePrivate) == c.StorePath(models.ScopeShared) {
		return common.Wrapf(common.ErrDataValidation, "private and shared stores must be distinct files")
	}
	return nil
}

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	"data-dir":      "data_dir",
	"actor":         "actor",
	"cloud":         "cloud_endpoint",
	"token":         "access_token",
	"sync-interval": "sync_interval",
	"log-level":     "log.level",
	"log-file":      "log.file",
}

// RegisterFlags declares the configuration flags on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	var d Config
	d.LoadDefaults()

	fs.String("config", "", "config file (json, yaml or toml)")
	fs.String("data-dir", d.DataDir, "directory holding the stores")
	fs.String("actor", d.Actor, "writer identity: mainApp or shareExtension")
	fs.String("cloud", d.CloudEndpoint, "cloud container gRPC endpoint (host:port)")
	fs.String("token", d.AccessToken, "cloud access token")
	fs.Duration("sync-interval", d.SyncInterval, "background sync interval")
	fs.String("log-level", d.Log.Level, "log level: debug, info, warn, error")
	fs.String("log-file", d.Log.File, "log file; empty logs to stderr")
}

// Load builds a Config from defaults, the file at path (if any), the
// environment and flags (if non-nil).
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	var d Config
	d.LoadDefaults()
	setDefaults(v, d)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("actor", d.Actor)
	v.SetDefault("private_store", d.PrivateStore)
	v.SetDefault("shared_store", d.SharedStore)
	v.SetDefault("cloud_endpoint", d.CloudEndpoint)
	v.SetDefault("access_token", d.AccessToken)
	v.SetDefault("sync_interval", d.SyncInterval)

	v.SetDefault("s3.bucket", d.S3.Bucket)
	v.SetDefault("s3.region", d.S3.Region)
	v.SetDefault("s3.endpoint", d.S3.Endpoint)
	v.SetDefault("s3.access_key", d.S3.AccessKey)
	v.SetDefault("s3.secret_key", d.S3.SecretKey)
	v.SetDefault("s3.prefix", d.S3.Prefix)

	v.SetDefault("ingest.thumbnail_size", d.Ingest.ThumbnailSize)
	v.SetDefault("ingest.thumbnail_timeout", d.Ingest.ThumbnailTimeout)
	v.SetDefault("ingest.metadata_timeout", d.Ingest.MetadataTimeout)
	v.SetDefault("ingest.link_cache_size", d.Ingest.LinkCacheSize)
	v.SetDefault("ingest.max_parallel", d.Ingest.MaxParallel)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
}
