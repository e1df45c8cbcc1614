// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardenid Contributors

// Package xdg provides XDG Base Directory paths for wardenid.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "wardenid"

// ConfigDir returns the XDG config directory for wardenid.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// DefaultConfigFile returns the path of the default config file. The file
// may or may not exist.
func DefaultConfigFile() string {
	return filepath.Join(ConfigDir(), "wardenid.yaml")
}
