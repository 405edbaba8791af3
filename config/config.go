// Package config holds the storage core's sizing knobs: buffer pool
// size, parallel instance count, page size, and hash table bucket
// capacity bounds. It mirrors the teacher's server/conf package in
// shape (a defaulted struct, optionally overridden from a file) but
// swaps ini.v1 for a TOML loader, since this module carries no other
// ini.v1 consumer.
package config

import (
	"os"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// Storage holds the [storage] table's sizing knobs.
type Storage struct {
	PoolSize       int `toml:"pool_size"`
	NumInstances   int `toml:"num_instances"`
	BucketKeyWidth int `toml:"bucket_key_width"`
}

// Config is the top-level document; today it only carries [storage],
// but is structured to grow the way the teacher's Cfg grew additional
// sections over time.
type Config struct {
	Storage Storage `toml:"storage"`
}

// Default returns the sizing used when no config file is supplied:
// a modest single-process buffer pool over 4-byte keys.
func Default() *Config {
	return &Config{
		Storage: Storage{
			PoolSize:       128,
			NumInstances:   1,
			BucketKeyWidth: 4,
		},
	}
}

// LoadTOML reads path and overlays it onto Default(); a missing file
// is not an error, matching the teacher's "file absent -> use
// defaults" convention in server/conf.Cfg.loadConfiguration.
func LoadTOML(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "config: read %s", path)
	}
	if err := toml.Unmarshal(raw, cfg); err != nil {
		return nil, errors.Wrapf(err, "config: parse %s", path)
	}
	return cfg, nil
}
