// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/latiju/wastectl/internal/mockserver"
	"github.com/latiju/wastectl/pkg/wasteapi"
)

var (
	demoAddr      string
	demoSeed      int
	demoLatency   time.Duration
	demoSampleCSV string
)

// Styles for demo output
var (
	demoTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	demoInfoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("51"))
	demoDimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
)

var demoServerCmd = &cobra.Command{
	Use:   "demo-server",
	Short: "Run an in-memory backend to try wastectl against",
	Long: `Run an in-memory stand-in for the waste transport web app.

It serves the same routes, enforces the anti-forgery token and keeps
manifests in memory until it exits.

Examples:
  wastectl demo-server
  wastectl demo-server --seed 50 --latency 400ms
  wastectl demo-server --sample-csv sample.csv

  # In another terminal
  wastectl --base-url http://127.0.0.1:8765 manifests
  wastectl --base-url http://127.0.0.1:8765 import sample.csv
`,
	Args: cobra.NoArgs,
	RunE: runDemoServer,
}

func init() {
	rootCmd.AddCommand(demoServerCmd)
	demoServerCmd.Flags().StringVar(&demoAddr, "addr", "127.0.0.1:8765", "Listen address")
	demoServerCmd.Flags().IntVar(&demoSeed, "seed", 20, "Number of demo manifests to start with")
	demoServerCmd.Flags().DurationVar(&demoLatency, "latency", 0, "Delay added to every response")
	demoServerCmd.Flags().StringVar(&demoSampleCSV, "sample-csv", "", "Write a CSV that collides with the seed data to this file")
}

func runDemoServer(cmd *cobra.Command, args []string) error {
	srv := mockserver.New(mockserver.Options{Latency: demoLatency, Logger: log})
	seed := mockserver.DemoData(demoSeed)
	srv.Seed(seed...)

	out := cmd.OutOrStdout()
	if demoSampleCSV != "" {
		sample := mockserver.DemoData(demoSeed + 5)
		if len(sample) > 8 {
			sample = sample[len(sample)-8:]
		}
		for i := range sample {
			sample[i].Weight = fmt.Sprintf("%d.5", 100+i)
		}
		if err := os.WriteFile(demoSampleCSV, []byte(mockserver.SampleCSV(sample)), 0644); err != nil {
			return fmt.Errorf("write sample csv: %w", err)
		}
		fmt.Fprintln(out, demoDimStyle.Render("Sample CSV: "+demoSampleCSV))
	}

	ln, err := net.Listen("tcp", demoAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", demoAddr, err)
	}
	base := "http://" + ln.Addr().String()

	fmt.Fprintln(out, demoTitleStyle.Render("wastectl demo server"))
	fmt.Fprintf(out, "  %s %s\n", demoInfoStyle.Render("URL:       "), base+wasteapi.ListPath)
	fmt.Fprintf(out, "  %s %s\n", demoInfoStyle.Render("CSRF token:"), srv.CSRFToken())
	fmt.Fprintf(out, "  %s %d\n", demoInfoStyle.Render("Manifests: "), len(seed))
	fmt.Fprintln(out)
	fmt.Fprintln(out, demoDimStyle.Render("  wastectl --base-url "+base+" manifests"))
	fmt.Fprintln(out, demoDimStyle.Render("  Press Ctrl+C to stop"))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hs := &http.Server{Handler: srv, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- hs.Serve(ln) }()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	fmt.Fprintf(out, "\nStopped after %d imports\n", len(srv.History()))
	return nil
}
