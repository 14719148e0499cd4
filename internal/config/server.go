/*
 * bundle store (bundlestore): content-addressed bundle store
 * Copyright © 2026 Mario Finelli
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

// Package config loads layered configuration (flag > environment >
// config file > default) for both binaries via viper, the same layering
// the teacher's cmd/root.go uses.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// ServerConfig is the fully resolved configuration for bundle-server.
type ServerConfig struct {
	DataDir         string
	MaxUploadBytes  int64
	ListenAddr      string
	RequestTimeoutS int
	DefaultPageSize int
	MaxPageSize     int
}

const defaultMaxUploadBytes = 1 << 30 // 1 GiB, per the specification's default

// InitServerDefaults registers viper defaults and env bindings for the
// server. Call once, from the root command's cobra.OnInitialize hook.
func InitServerDefaults(cfgFile string, verbose bool) error {
	dataDir, err := xdg.DataFile(filepath.Join("bundle-server", "data"))
	if err != nil {
		return fmt.Errorf("resolve default data dir: %w", err)
	}
	viper.SetDefault("data_dir", dataDir)
	_ = viper.BindEnv("data_dir", "DATA_DIR")

	viper.SetDefault("max_upload_bytes", defaultMaxUploadBytes)
	_ = viper.BindEnv("max_upload_bytes", "MAX_UPLOAD_BYTES")

	viper.SetDefault("listen_addr", ":8080")
	viper.SetDefault("request_timeout_seconds", 60)
	viper.SetDefault("default_page_size", 50)
	viper.SetDefault("max_page_size", 200)

	return loadConfigFile(cfgFile, "bundle-server", verbose)
}

// LoadServer resolves ServerConfig from viper after InitServerDefaults
// (and any flag binding) has run.
func LoadServer() ServerConfig {
	return ServerConfig{
		DataDir:         viper.GetString("data_dir"),
		MaxUploadBytes:  viper.GetInt64("max_upload_bytes"),
		ListenAddr:      viper.GetString("listen_addr"),
		RequestTimeoutS: viper.GetInt("request_timeout_seconds"),
		DefaultPageSize: viper.GetInt("default_page_size"),
		MaxPageSize:     viper.GetInt("max_page_size"),
	}
}

// loadConfigFile mirrors the teacher's cmd/root.go initConfig: an
// explicit --config must parse cleanly; a default location is optional.
func loadConfigFile(cfgFile, appName string, verbose bool) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		viper.SetConfigType("toml")
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file %s: %w", cfgFile, err)
		}
		if verbose {
			fmt.Fprintln(os.Stderr, "using config file:", viper.ConfigFileUsed())
		}
		return nil
	}

	defaultPath, err := xdg.ConfigFile(filepath.Join(appName, "config.toml"))
	if err != nil {
		return fmt.Errorf("resolve default config path: %w", err)
	}

	if _, statErr := os.Stat(defaultPath); errors.Is(statErr, os.ErrNotExist) {
		return nil
	}

	viper.SetConfigFile(defaultPath)
	viper.SetConfigType("toml")
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config file %s: %w", defaultPath, err)
	}

	if verbose {
		fmt.Fprintln(os.Stderr, "using config file:", viper.ConfigFileUsed())
	}
	return nil
}
