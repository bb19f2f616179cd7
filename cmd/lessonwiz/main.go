// Package main implements the lessonwiz CLI, which drives the lesson
// wizard headlessly through a resumegate gateway.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// version information
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// globalOptions are shared by every subcommand.
type globalOptions struct {
	gatewayURL string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "lessonwiz",
		Short: "Run the lesson wizard against a resumegate gateway",
		Long: `lessonwiz walks a lesson-planning session through every wizard step:
start, song selection, activity selection, plan review, refinement,
approval and downloads. Each step prints one JSON line saying whether
the result came from the engine or from the offline fallback.`,
		Version:      version,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.gatewayURL, "gateway", "http://localhost:9090", "resumegate gateway URL")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "client log level written to stderr")

	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newHealthCmd(opts))
	return root
}

// HealthResponse matches internal/http HealthResponse
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

func newHealthCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check gateway health",
		Long: `Check the health status of the resumegate gateway.

Examples:
  # Check health
  lessonwiz health

  # Check health on a different gateway
  lessonwiz health --gateway http://localhost:8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealth(cmd, opts)
		},
	}
}

// runHealth handles the health command
func runHealth(cmd *cobra.Command, opts *globalOptions) error {
	url := strings.TrimRight(opts.gatewayURL, "/") + "/health"

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if readErr != nil {
			return fmt.Errorf("gateway returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, string(body))
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Gateway Status: %s\n", health.Status)
	fmt.Fprintf(out, "Service: %s\n", health.Service)
	fmt.Fprintf(out, "Gateway URL: %s\n", opts.gatewayURL)
	return nil
}
