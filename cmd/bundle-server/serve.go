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
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mfinelli/bundlestore/internal/blobstore"
	"github.com/mfinelli/bundlestore/internal/config"
	"github.com/mfinelli/bundlestore/internal/registry"
	"github.com/mfinelli/bundlestore/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "start the bundle store HTTP server",
	Long: `Start the HTTP server exposing the blob store and bundle registry.

Listens until interrupted (SIGINT), then drains in-flight requests
before exiting.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		cfg := config.LoadServer()

		log := logrus.New()
		if verbose {
			log.SetLevel(logrus.DebugLevel)
		}

		blobs := blobstore.Store{Root: cfg.DataDir, MaxUploadSiz: cfg.MaxUploadBytes}
		reg := registry.Registry{Root: cfg.DataDir}

		if err := os.MkdirAll(filepath.Join(cfg.DataDir, "blobs"), 0o755); err != nil {
			return fmt.Errorf("ensure blobs directory: %w", err)
		}
		if err := os.MkdirAll(filepath.Join(cfg.DataDir, "bundles"), 0o755); err != nil {
			return fmt.Errorf("ensure bundles directory: %w", err)
		}

		handler := server.New(cfg, blobs, reg, log)

		httpServer := &http.Server{
			Addr:    cfg.ListenAddr,
			Handler: handler,
		}

		errCh := make(chan error, 1)
		go func() {
			log.WithField("addr", cfg.ListenAddr).Info("bundle-server listening")
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()

		select {
		case err := <-errCh:
			return fmt.Errorf("serve: %w", err)
		case <-ctx.Done():
			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
