package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/haukened/decoy-dns/internal/dns/config"
	"github.com/haukened/decoy-dns/internal/dns/repos/archive"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           appName,
		Short:         "Decoy DNS responder for honeypot networks",
		Long:          "decoy-dnsd answers A, AAAA and PTR queries with synthetic data and records every query as a telemetry event.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), configPath)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML configuration file (DNS_* environment variables override it)")

	root.AddCommand(newVersionCmd(), newEventsCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", appName, version)
		},
	}
}

func newEventsCmd() *cobra.Command {
	var (
		dbPath string
		last   int
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print archived telemetry events as NDJSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if last < 1 {
				return fmt.Errorf("--last must be at least 1")
			}
			return printEvents(cmd.OutOrStdout(), dbPath, last)
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", config.DEFAULT_APP_CONFIG.Telemetry.Archive.Path, "path to the event archive")
	cmd.Flags().IntVarP(&last, "last", "n", 20, "number of most recent events to print")
	return cmd
}

// printEvents writes the newest n archived events to w, oldest first.
func printEvents(w io.Writer, path string, n int) error {
	store, err := archive.OpenReadOnly(path)
	if err != nil {
		return err
	}
	defer store.Close()

	events, err := store.Recent(n)
	if err != nil {
		return fmt.Errorf("read archive: %w", err)
	}

	enc := json.NewEncoder(w)
	for _, ev := range events {
		if err := enc.Encode(ev); err != nil {
			return err
		}
	}
	return nil
}
