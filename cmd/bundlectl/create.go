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
	"os/signal"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/mfinelli/bundlestore/internal/apiclient"
	"github.com/mfinelli/bundlestore/internal/bundlemodel"
	"github.com/mfinelli/bundlestore/internal/clientpipeline"
	"github.com/mfinelli/bundlestore/internal/config"
)

var (
	createID     string
	createDryRun bool
)

var createCmd = &cobra.Command{
	Use:   "create <path>...",
	Short: "hash, upload and commit one or more paths as a bundle",
	Long: `Create a bundle from every regular file reachable from one or more input
paths, each a file or a directory (directories are walked recursively).

Bundle-relative paths are computed against a base directory: the parent of
the single input when exactly one path is given, so a single directory's own
name is preserved in its files' bundle paths, or the nearest common ancestor
of all inputs when more than one is given.

bundlectl hashes every file, asks the server which blobs it hasn't seen yet,
uploads the missing ones with bounded concurrency, then commits the bundle
manifest. The local and server-computed Merkle roots are cross-checked as
part of the commit, so a successful create means both sides agree on the
bundle's exact contents.

With --dry-run, bundlectl stops after hashing and prints the resulting file
count, total size and Merkle root without contacting the server.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		subtleStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
		okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("2"))

		var totalBytes int64
		var hashedCount int
		plan, err := clientpipeline.BuildPlan(args, clientpipeline.Progress{
			OnHashed: func(f bundlemodel.File) {
				hashedCount++
				totalBytes += f.SizeBytes
				if verbose {
					fmt.Println(subtleStyle.Render(fmt.Sprintf("  hashed %s (%d bytes)", f.BundlePath, f.SizeBytes)))
				}
			},
		})
		if err != nil {
			return fmt.Errorf("build bundle plan: %w", err)
		}

		fmt.Printf("%d file(s), %d bytes, merkle root %s\n", hashedCount, totalBytes, plan.MerkleRoot())

		if createDryRun {
			return nil
		}

		cfg := config.LoadClient()
		client := apiclient.New(cfg.APIURL, time.Duration(cfg.APITimeoutS)*time.Second)

		resp, err := clientpipeline.Upload(ctx, client, plan, createID, cfg.UploadWorkers, clientpipeline.Progress{
			OnUploaded: func(hash string, created bool) {
				if !verbose {
					return
				}
				verb := "exists"
				if created {
					verb = "uploaded"
				}
				fmt.Println(subtleStyle.Render(fmt.Sprintf("  %s %s", verb, hash)))
			},
		})
		if err != nil {
			return fmt.Errorf("upload bundle: %w", err)
		}

		fmt.Println(okStyle.Render(fmt.Sprintf("bundle %s created at %s", resp.ID, resp.CreatedAt)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createCmd)
	createCmd.Flags().StringVar(&createID, "id", "", "client-supplied bundle id (default: server-assigned ULID)")
	createCmd.Flags().BoolVar(&createDryRun, "dry-run", false, "hash files and print the plan without contacting the server")
}
