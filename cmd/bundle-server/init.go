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
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mfinelli/bundlestore/internal/verifydb"
)

// initCmd represents the init command.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "initializes the bundle store's data directory",
	Long: `Initialize bundle-server's local state.

Creates the required data directories (blobs, bundles, tmp) and initializes
or upgrades the verification cache database. This command is safe to run
multiple times and will not overwrite existing data.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		dataDir := viper.GetString("data_dir")

		for _, sub := range []string{"blobs", "bundles/manifests", "bundles/summaries", "tmp"} {
			if err := os.MkdirAll(filepath.Join(dataDir, sub), 0o755); err != nil {
				return fmt.Errorf("error creating %s directory: %w", sub, err)
			}
		}

		db, err := verifydb.Open(filepath.Join(dataDir, "verify.db"))
		if err != nil {
			return fmt.Errorf("error opening verification database: %w", err)
		}
		defer db.Close()

		if err := verifydb.Migrate(ctx, db); err != nil {
			return fmt.Errorf("error migrating verification database: %w", err)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
