// Package config loads pagecached's configuration from a YAML file
// via viper, falling back to DefaultConfig's struct-literal defaults
// when no file is supplied.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/mnohosten/pagecache/pkg/pagestore"
)

// Config holds pagecached's runtime configuration.
type Config struct {
	ListenAddr string `mapstructure:"listen_addr"` // admin HTTP server bind address

	DataDir  string `mapstructure:"data_dir"`  // path of the page store file itself
	PoolSize int    `mapstructure:"pool_size"` // number of frames in the buffer pool
	K        int    `mapstructure:"k"`         // LRU-K's K

	Compression string `mapstructure:"compression"` // "none" or "zstd"
	Encryption  string `mapstructure:"encryption"`  // "none" or "aes256gcm"
	Passphrase  string `mapstructure:"passphrase"`  // required when encryption is enabled

	FlushInterval time.Duration `mapstructure:"flush_interval"` // background flusher period, 0 disables it

	SchedulerWorkers int `mapstructure:"scheduler_workers"`
	SchedulerQueue   int `mapstructure:"scheduler_queue"`
}

// DefaultConfig returns a configuration with sensible defaults, in the
// shape of the teacher's server.DefaultConfig.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:       ":8080",
		DataDir:          "./data/pagecache.db",
		PoolSize:         1000,
		K:                2,
		Compression:      "none",
		Encryption:       "none",
		FlushInterval:    5 * time.Second,
		SchedulerWorkers: 4,
		SchedulerQueue:   256,
	}
}

// Load reads a YAML config file at path and merges it over
// DefaultConfig's values. An empty path returns the defaults
// unchanged.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	return cfg, nil
}

// CodecConfig translates the Compression/Encryption/Passphrase string
// fields into a pagestore.CodecConfig, rejecting unknown algorithm
// names so a typo in a config file fails at startup rather than
// silently disabling a codec stage.
func (c *Config) CodecConfig() (pagestore.CodecConfig, error) {
	cc := pagestore.CodecConfig{Passphrase: c.Passphrase}

	switch c.Compression {
	case "", "none":
		cc.Compression = pagestore.CompressionNone
	case "zstd":
		cc.Compression = pagestore.CompressionZstd
	default:
		return cc, fmt.Errorf("config: unknown compression algorithm %q", c.Compression)
	}

	switch c.Encryption {
	case "", "none":
		cc.Encryption = pagestore.EncryptionNone
	case "aes256gcm":
		cc.Encryption = pagestore.EncryptionAES256GCM
	default:
		return cc, fmt.Errorf("config: unknown encryption algorithm %q", c.Encryption)
	}

	return cc, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("listen_addr", cfg.ListenAddr)
	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("pool_size", cfg.PoolSize)
	v.SetDefault("k", cfg.K)
	v.SetDefault("compression", cfg.Compression)
	v.SetDefault("encryption", cfg.Encryption)
	v.SetDefault("flush_interval", cfg.FlushInterval)
	v.SetDefault("scheduler_workers", cfg.SchedulerWorkers)
	v.SetDefault("scheduler_queue", cfg.SchedulerQueue)
}
