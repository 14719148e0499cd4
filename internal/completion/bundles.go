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

// Package completion provides cobra shell-completion functions for
// bundlectl, querying the running server the same way the completion
// functions query a local database.
package completion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mfinelli/bundlestore/internal/apiclient"
	"github.com/mfinelli/bundlestore/internal/config"
)

// BundleIDs completes "bundlectl download <id>" against the configured
// server's bundle listing. A server that can't be reached yields no
// completions rather than falling back to file completion, since a
// bundle id never corresponds to a local path.
func BundleIDs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	cfg := config.LoadClient()
	client := apiclient.New(cfg.APIURL, time.Duration(cfg.APITimeoutS)*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	summaries, err := client.ListBundles(ctx, 1, 200)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	prefix := strings.TrimSpace(toComplete)
	out := make([]string, 0, len(summaries))
	for _, s := range summaries {
		if prefix != "" && !strings.HasPrefix(s.ID, prefix) {
			continue
		}
		out = append(out, fmt.Sprintf("%s\t%d files, created %s", s.ID, s.FileCount, s.CreatedAt))
	}

	return out, cobra.ShellCompDirectiveNoFileComp
}
