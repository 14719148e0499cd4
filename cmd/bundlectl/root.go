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

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mfinelli/bundlestore/internal/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "bundlectl",
	Short: "bundlectl: client for the bundle store",
	Long: `bundlectl is the client half of bundlestore: discover, hash and upload a
directory of files as a content-addressed bundle, list bundles on a server,
and download one back as a zip archive.

bundlectl  Copyright © 2026  Mario Finelli
This program comes with ABSOLUTELY NO WARRANTY; This program is free
software, and you are welcome to redistribute it under certain conditions;
You should have received a copy of the GNU General Public License (version
3) along with this program. If not, see https://www.gnu.org/licenses/.`,
	Version: "1.0.0",
}

// Execute adds all child commands to the root command. Called once from
// main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"config file (default is $XDG_CONFIG_HOME/bundlectl/config.toml)",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"enable verbose output",
	)
}

func initConfig() {
	if err := config.InitClientDefaults(cfgFile, verbose); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
