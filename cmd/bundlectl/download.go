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
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/mfinelli/bundlestore/internal/apiclient"
	"github.com/mfinelli/bundlestore/internal/completion"
	"github.com/mfinelli/bundlestore/internal/config"
)

var (
	downloadOut    string
	downloadFormat string
)

var downloadCmd = &cobra.Command{
	Use:   "download <id>",
	Short: "download a bundle as a zip archive",
	Long: `Download a bundle's files as a zip archive.

The archive streams to a temp file in the destination directory and is
atomically renamed into place once fully written. If a file with the target
name already exists, the name is suffixed .1, .2, ... until one is free,
so a download never silently overwrites a prior one.`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completion.BundleIDs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		subtleStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
		okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("2"))

		id := args[0]

		cfg := config.LoadClient()
		client := apiclient.New(cfg.APIURL, time.Duration(cfg.APITimeoutS)*time.Second)

		body, err := client.Download(ctx, id, downloadFormat)
		if err != nil {
			return fmt.Errorf("download bundle %s: %w", id, err)
		}
		defer body.Close()

		destDir := downloadOut
		if destDir == "" {
			destDir = "."
		}
		if err := os.MkdirAll(destDir, 0o755); err != nil {
			return fmt.Errorf("create destination directory: %w", err)
		}

		finalPath := uniqueName(filepath.Join(destDir, fmt.Sprintf("bundle_%s.zip", id)))

		tmp, err := os.CreateTemp(destDir, "bundlectl-download-*.tmp")
		if err != nil {
			return fmt.Errorf("create temp download file: %w", err)
		}
		tmpName := tmp.Name()

		var written int64
		buf := make([]byte, 256*1024)
		for {
			n, readErr := body.Read(buf)
			if n > 0 {
				if _, writeErr := tmp.Write(buf[:n]); writeErr != nil {
					_ = tmp.Close()
					_ = os.Remove(tmpName)
					return fmt.Errorf("write download: %w", writeErr)
				}
				written += int64(n)
				fmt.Printf("\rdownloading %s (%d bytes)", id, written)
			}
			if readErr != nil {
				if readErr == io.EOF {
					break
				}
				_ = tmp.Close()
				_ = os.Remove(tmpName)
				fmt.Println()
				return fmt.Errorf("read download stream: %w", readErr)
			}
		}
		fmt.Println()

		if err := tmp.Sync(); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
			return fmt.Errorf("fsync download: %w", err)
		}
		if err := tmp.Close(); err != nil {
			_ = os.Remove(tmpName)
			return fmt.Errorf("close download: %w", err)
		}

		if err := os.Rename(tmpName, finalPath); err != nil {
			_ = os.Remove(tmpName)
			return fmt.Errorf("rename download into place: %w", err)
		}

		fmt.Println(subtleStyle.Render(fmt.Sprintf("  wrote %d bytes", written)))
		fmt.Println(okStyle.Render("saved to " + finalPath))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(downloadCmd)
	downloadCmd.Flags().StringVar(&downloadOut, "out", "", "destination directory (default: current directory)")
	downloadCmd.Flags().StringVar(&downloadFormat, "format", "zip", "archive format to request (only zip is supported)")
}

// uniqueName returns path if it doesn't exist, or else the first free
// name with .1, .2, ... inserted before the extension
// (bundle_x.zip -> bundle_x.1.zip), per the specification's collision rule.
func uniqueName(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}

	ext := filepath.Ext(path)
	base := path[:len(path)-len(ext)]
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s.%d%s", base, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
