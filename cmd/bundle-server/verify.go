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
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mfinelli/bundlestore/internal/registry"
	"github.com/mfinelli/bundlestore/internal/verifydb"
)

var verifyRecheck bool
var verifySince string

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "rehash stored blobs and cross-check referential integrity",
	Long: `Run a read-only health check of the data directory.

Verify confirms:
  - every manifest's referenced blobs are still present on disk
  - blob file sizes match the manifest's declared size
  - (with --recheck) blob bytes still hash to their filename, skipping any
    blob last verified at or after the --since timestamp

Verify never rewrites a manifest or a blob; it only reports, and (with
--recheck) records a timestamp in the verification cache.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		dataDir := viper.GetString("data_dir")

		headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
		subtleStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
		errStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
		okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
		warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("3"))

		fmt.Println(headerStyle.Render("Referential Integrity"))
		fmt.Println(subtleStyle.Render("  data dir: " + dataDir))
		fmt.Println()

		reg := registry.Registry{Root: dataDir}
		summaries, err := reg.ListSummaries()
		if err != nil {
			fmt.Println(errStyle.Render("  ✗ could not list bundles"))
			return fmt.Errorf("list bundles: %w", err)
		}

		var missingBlobs, sizeMismatches int
		var totalFiles int

		for _, sum := range summaries {
			manifest, gerr := reg.GetManifest(sum.ID)
			if gerr != nil {
				fmt.Println(errStyle.Render(fmt.Sprintf("  ✗ %s: manifest unreadable", sum.ID)))
				continue
			}

			for _, f := range manifest.Files {
				totalFiles++
				path := filepath.Join(dataDir, "blobs", f.Hash[0:2], f.Hash[2:4], f.Hash)

				st, statErr := os.Stat(path)
				if statErr != nil {
					if errors.Is(statErr, os.ErrNotExist) {
						fmt.Println(errStyle.Render(fmt.Sprintf("  ✗ %s: missing blob %s (%s)", sum.ID, f.Hash, f.BundlePath)))
						missingBlobs++
						continue
					}
					return fmt.Errorf("stat blob %s: %w", f.Hash, statErr)
				}

				if st.Size() != f.SizeBytes {
					fmt.Println(errStyle.Render(fmt.Sprintf("  ✗ %s: size mismatch for %s", sum.ID, f.Hash)))
					sizeMismatches++
				}
			}
		}

		switch {
		case missingBlobs == 0 && sizeMismatches == 0:
			fmt.Println(okStyle.Render(fmt.Sprintf("  ✓ %d bundle(s), %d file(s): all present and size-correct", len(summaries), totalFiles)))
		default:
			fmt.Println(warnStyle.Render(fmt.Sprintf("  ⚠ %d missing, %d size mismatch(es)", missingBlobs, sizeMismatches)))
		}
		fmt.Println()

		if !verifyRecheck {
			if missingBlobs > 0 || sizeMismatches > 0 {
				return fmt.Errorf("referential integrity check failed")
			}
			return nil
		}

		return rehashBlobs(ctx, dataDir, verifySince, subtleStyle, okStyle, errStyle)
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().BoolVar(&verifyRecheck, "recheck", false, "rehash every blob, skipping ones verified recently")
	verifyCmd.Flags().StringVar(&verifySince, "since", "", "RFC3339 cutoff: skip blobs verified at or after this time (default: always rehash)")
}

// rehashBlobs streams every blob under dataDir/blobs and confirms its
// filename still matches its content, recording a verification
// timestamp for each one whose content matches.
func rehashBlobs(ctx context.Context, dataDir, since string, subtleStyle, okStyle, errStyle lipgloss.Style) error {
	fmt.Println(headerStyle().Render("Blob Rehash"))

	db, err := verifydb.Open(filepath.Join(dataDir, "verify.db"))
	if err != nil {
		return fmt.Errorf("open verification cache: %w", err)
	}
	defer db.Close()
	if err := verifydb.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrate verification cache: %w", err)
	}

	var hashes []string
	blobsRoot := filepath.Join(dataDir, "blobs")
	walkErr := filepath.WalkDir(blobsRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		hashes = append(hashes, d.Name())
		return nil
	})
	if walkErr != nil && !errors.Is(walkErr, os.ErrNotExist) {
		return fmt.Errorf("walk blobs directory: %w", walkErr)
	}

	total := len(hashes)
	if total == 0 {
		fmt.Println(subtleStyle.Render("  (no blobs on disk)"))
		fmt.Println()
		return nil
	}

	buf := make([]byte, 1024*1024)
	var verified, skipped, failed int

	for i, hash := range hashes {
		select {
		case <-ctx.Done():
			fmt.Print("\n")
			return ctx.Err()
		default:
		}

		fmt.Printf("\r  rehash (%d/%d)", i+1, total)

		if since != "" {
			stale, staleErr := verifydb.StaleBefore(ctx, db, hash, since)
			if staleErr == nil && !stale {
				skipped++
				continue
			}
		}

		path := filepath.Join(blobsRoot, hash[0:2], hash[2:4], hash)
		f, openErr := os.Open(path)
		if openErr != nil {
			failed++
			continue
		}

		h := sha256.New()
		n, copyErr := copyWithContext(ctx, h, f, buf)
		_ = f.Close()
		if copyErr != nil {
			failed++
			continue
		}

		sumHex := hex.EncodeToString(h.Sum(nil))
		if sumHex != hash {
			fmt.Print("\n")
			fmt.Println(errStyle.Render(fmt.Sprintf("  ✗ corrupt blob: %s hashes to %s", hash, sumHex)))
			failed++
			continue
		}

		if recErr := verifydb.RecordVerification(ctx, db, hash, n); recErr != nil {
			fmt.Print("\n")
			return fmt.Errorf("record verification for %s: %w", hash, recErr)
		}
		verified++
	}

	fmt.Print("\r")
	fmt.Printf("  rehash (%d/%d)\n", total, total)
	fmt.Println(okStyle.Render(fmt.Sprintf("  ✓ verified %d, skipped %d (recently checked), failed %d", verified, skipped, failed)))
	fmt.Println()

	if failed > 0 {
		return fmt.Errorf("%d blob(s) failed rehash", failed)
	}
	return nil
}

func headerStyle() lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader, buf []byte) (int64, error) {
	var total int64
	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}
		nr, er := src.Read(buf)
		if nr > 0 {
			nw, ew := dst.Write(buf[:nr])
			if nw > 0 {
				total += int64(nw)
			}
			if ew != nil {
				return total, ew
			}
		}
		if er != nil {
			if errors.Is(er, io.EOF) {
				return total, nil
			}
			return total, er
		}
	}
}
