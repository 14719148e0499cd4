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
	"github.com/mfinelli/bundlestore/internal/config"
)

var (
	listPage     int
	listPageSize int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "list bundles known to the server",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
		subtleStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

		cfg := config.LoadClient()
		client := apiclient.New(cfg.APIURL, time.Duration(cfg.APITimeoutS)*time.Second)

		bundles, err := client.ListBundles(ctx, listPage, listPageSize)
		if err != nil {
			return fmt.Errorf("list bundles: %w", err)
		}

		if len(bundles) == 0 {
			fmt.Println(subtleStyle.Render("no bundles found"))
			return nil
		}

		fmt.Println(headerStyle.Render(fmt.Sprintf("%-28s %10s %12s  %s", "ID", "FILES", "BYTES", "CREATED")))
		for _, b := range bundles {
			fmt.Printf("%-28s %10d %12d  %s\n", b.ID, b.FileCount, b.TotalBytes, b.CreatedAt)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().IntVar(&listPage, "page", 1, "page number (1-indexed)")
	listCmd.Flags().IntVar(&listPageSize, "page-size", 0, "page size (default: server default)")
}
