// Package vaultconfig implements VaultConfig (spec.md §3/§6): the
// on-disk config.json describing whether an archive is encrypted, its
// KDF salt, its password check value, and its partition size.
package vaultconfig

import (
	"encoding/base64"
	"encoding/json"
	"os"

	"github.com/dlfi/archive/internal/archiveerr"
)

// CurrentVersion is the VaultConfig.version written by this
// implementation. spec.md §6 pins it at 2.
const CurrentVersion = 2

// DefaultPartitionSize is used when config.json is absent or
// unreadable (spec.md §6: "load failure ... yields defaults").
const DefaultPartitionSize = 50 * 1024 * 1024 // 50 MiB

// Config is the JSON-serializable VaultConfig wire format.
type Config struct {
	Encrypted     bool    `json:"encrypted"`
	Salt          *string `json:"salt"`
	CheckValue    *string `json:"check_value"`
	PartitionSize int64   `json:"partition_size"`
	Version       int     `json:"version"`
}

// Default returns the unencrypted, 50 MiB-partition default config.
func Default() *Config {
	return &Config{
		Encrypted:     false,
		Salt:          nil,
		CheckValue:    nil,
		PartitionSize: DefaultPartitionSize,
		Version:       CurrentVersion,
	}
}

// Validate enforces spec.md §3's VaultConfig invariant: encrypted
// implies salt and check_value are both present.
func (c *Config) Validate() error {
	if c.Encrypted && (c.Salt == nil || c.CheckValue == nil) {
		return &archiveerr.ConfigError{Reason: "encrypted=true requires both salt and check_value"}
	}
	return nil
}

// SaltBytes decodes the stored base64 salt, or nil if absent.
func (c *Config) SaltBytes() ([]byte, error) {
	if c.Salt == nil {
		return nil, nil
	}
	b, err := base64.StdEncoding.DecodeString(*c.Salt)
	if err != nil {
		return nil, &archiveerr.ConfigError{Reason: "salt is not valid base64"}
	}
	return b, nil
}

// SetSalt stores raw salt bytes as base64.
func (c *Config) SetSalt(salt []byte) {
	s := base64.StdEncoding.EncodeToString(salt)
	c.Salt = &s
}

// Load reads and parses config.json at path. Per spec.md §6, any
// failure to load (missing file, unreadable, malformed JSON) yields the
// defaults rather than propagating the error — the archive falls back
// to "unencrypted, 50 MiB partition, version 2".
func Load(path string) *Config {
	data, err := os.ReadFile(path)
	if err != nil {
		return Default()
	}
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return Default()
	}
	if c.Version == 0 {
		c.Version = CurrentVersion
	}
	return &c
}

// Save writes c to path as indented JSON.
func Save(path string, c *Config) error {
	if err := c.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return &archiveerr.IOError{Op: "marshal config", Err: err}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return &archiveerr.IOError{Op: "write config", Err: err}
	}
	return nil
}
