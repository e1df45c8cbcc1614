// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardenid Contributors

package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/wardenid/wardenid/internal/identity"
	"github.com/wardenid/wardenid/internal/notify"
	"github.com/wardenid/wardenid/internal/xdg"
)

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Config is the resolved CLI configuration: built-in defaults, overlaid by
// the YAML config file, overlaid by command-line flags. DATABASE_URL in the
// environment wins over both for the database URL.
type Config struct {
	DatabaseURL   string        `koanf:"database-url"`
	LogFormat     string        `koanf:"log-format"`
	SessionMaxAge time.Duration `koanf:"session-max-age"`
	PendingExpiry time.Duration `koanf:"pending-expiry"`

	Notify struct {
		Driver string `koanf:"driver"` // "log" or "smtp"
		SMTP   struct {
			Host     string `koanf:"host"`
			Port     int    `koanf:"port"`
			Username string `koanf:"username"`
			Password string `koanf:"password"`
			From     string `koanf:"from"`
		} `koanf:"smtp"`
	} `koanf:"notify"`
}

// loadConfig resolves the configuration layers. flags may be nil. When path
// is empty the XDG default config file is used if it exists.
func loadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	if path == "" {
		if p := xdg.DefaultConfigFile(); fileExists(p) {
			path = p
		}
	}

	cfg := &Config{
		LogFormat:     "json",
		SessionMaxAge: identity.DefaultSessionMaxAge,
		PendingExpiry: 24 * time.Hour,
	}
	cfg.Notify.Driver = "log"
	cfg.Notify.SMTP.Port = 587

	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_INVALID").
				With("path", path).
				Wrap(err)
		}
	}
	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_INVALID").
				With("operation", "load flags").
				Wrap(err)
		}
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").
			With("operation", "unmarshal config").
			Wrap(err)
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.DatabaseURL = url
	}
	return cfg, nil
}

// requireDatabaseURL returns the configured database URL or an error.
func (c *Config) requireDatabaseURL() (string, error) {
	if c.DatabaseURL == "" {
		return "", oops.Code("CONFIG_INVALID").
			Errorf("database URL is required (set database-url or DATABASE_URL)")
	}
	return c.DatabaseURL, nil
}

// buildNotifier constructs the configured notifier.
func (c *Config) buildNotifier(logger *slog.Logger) (identity.Notifier, error) {
	switch c.Notify.Driver {
	case "", "log":
		return notify.NewLogNotifier(logger), nil
	case "smtp":
		return notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:     c.Notify.SMTP.Host,
			Port:     c.Notify.SMTP.Port,
			Username: c.Notify.SMTP.Username,
			Password: c.Notify.SMTP.Password,
			From:     c.Notify.SMTP.From,
		})
	default:
		return nil, oops.Code("CONFIG_INVALID").
			With("driver", c.Notify.Driver).
			Errorf("unknown notify driver %q", c.Notify.Driver)
	}
}
