// Package config loads the small set of knobs a slowfs host program
// needs: disk size, descriptor limit, default mountpoint, and log
// level. Values come from (in increasing priority) defaults, a config
// file, and SLOWFS_-prefixed environment variables, via viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the resource bounds of spec.md §5 and the ambient
// logging level.
type Config struct {
	// DiskSize is the size in bytes of a freshly formatted image.
	DiskSize int64 `mapstructure:"disk_size"`
	// NumOpenFiles bounds a process's open-file table (the
	// RLIMIT_NOFILE analog).
	NumOpenFiles int `mapstructure:"num_open_files"`
	// DefaultMountpoint is a default mountpoint for host programs.
	// cmd/slowfs-shell does not read it: its scenario mounts at fixed
	// paths.
	DefaultMountpoint string `mapstructure:"default_mountpoint"`
	// LogLevel is a logrus level name ("debug", "info", "warn", ...).
	LogLevel string `mapstructure:"log_level"`
}

func defaults() Config {
	return Config{
		DiskSize:          20 * 4096,
		NumOpenFiles:      32,
		DefaultMountpoint: "/mnt",
		LogLevel:          "info",
	}
}

// Load reads configuration from cfgFile (if non-empty) layered over
// defaults and SLOWFS_-prefixed environment variables. cfgFile may
// name any format viper supports (yaml, toml, json, ...).
func Load(cfgFile string) (Config, error) {
	v := viper.New()
	cfg := defaults()

	v.SetDefault("disk_size", cfg.DiskSize)
	v.SetDefault("num_open_files", cfg.NumOpenFiles)
	v.SetDefault("default_mountpoint", cfg.DefaultMountpoint)
	v.SetDefault("log_level", cfg.LogLevel)

	v.SetEnvPrefix("slowfs")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", cfgFile, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshaling: %w", err)
	}
	return cfg, nil
}
