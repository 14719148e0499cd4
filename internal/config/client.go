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

package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// ClientConfig is the fully resolved configuration for bundlectl.
type ClientConfig struct {
	APIURL        string
	APITimeoutS   int
	UploadWorkers int
}

// InitClientDefaults registers viper defaults and env bindings for the
// client, then loads an optional config file the same way
// InitServerDefaults does for the server.
func InitClientDefaults(cfgFile string, verbose bool) error {
	viper.SetDefault("api_url", "http://127.0.0.1:8080")
	_ = viper.BindEnv("api_url", "API_URL")

	viper.SetDefault("api_timeout", 30)
	_ = viper.BindEnv("api_timeout", "API_TIMEOUT")

	viper.SetDefault("upload_workers", 8)

	if err := loadConfigFile(cfgFile, "bundlectl", verbose); err != nil {
		return fmt.Errorf("load client config: %w", err)
	}
	return nil
}

// LoadClient resolves ClientConfig from viper after InitClientDefaults
// (and any flag binding) has run.
func LoadClient() ClientConfig {
	return ClientConfig{
		APIURL:        viper.GetString("api_url"),
		APITimeoutS:   viper.GetInt("api_timeout"),
		UploadWorkers: viper.GetInt("upload_workers"),
	}
}
