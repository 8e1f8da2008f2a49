// Package archiveopts holds process-level options for an opened
// archive that are deliberately NOT part of the on-disk VaultConfig
// wire format (SPEC_FULL.md §2): log level, a default chunk size, and a
// temp-directory purge interval. The archive uses only the log level:
// DefaultChunkSize and TempCleanupInterval are loaded but read by no
// other package, so a new archive takes its partition size from
// vaultconfig's defaults and the blob store purges its temp directory
// only when it is opened. VaultConfig stays hand-rolled encoding/json because a
// browser-side viewer reads it directly; these options have no such
// compatibility contract, so they use the teacher's own
// github.com/spf13/viper, layered over defaults, a config file, and
// environment variables the way the teacher's main.go wires logrus
// levels from its own config source.
package archiveopts

import (
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Options are the process-level knobs for one archive-opening session.
type Options struct {
	LogLevel            string
	DefaultChunkSize    int64
	TempCleanupInterval string
}

func defaults() *viper.Viper {
	v := viper.New()
	v.SetDefault("log_level", "info")
	v.SetDefault("default_chunk_size", 50*1024*1024)
	v.SetDefault("temp_cleanup_interval", "1h")
	v.SetEnvPrefix("DLFI")
	v.AutomaticEnv()
	return v
}

// Load reads process options from an optional config file at path
// (YAML/JSON/TOML, viper auto-detects by extension), falling back to
// defaults and DLFI_-prefixed environment variables for anything the
// file omits or if the file is absent.
func Load(path string) (*Options, error) {
	v := defaults()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return nil, err
			}
		}
	}
	return &Options{
		LogLevel:            v.GetString("log_level"),
		DefaultChunkSize:    v.GetInt64("default_chunk_size"),
		TempCleanupInterval: v.GetString("temp_cleanup_interval"),
	}, nil
}

// Logger builds the process-wide *logrus.Logger at the configured
// level, passed explicitly into the catalog and blob store
// constructors rather than kept as a package global (spec.md §9: "avoid process-wide
// singletons").
func (o *Options) Logger() *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(strings.ToLower(o.LogLevel))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
