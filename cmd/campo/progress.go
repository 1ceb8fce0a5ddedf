package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mveloso/campo/internal/progress"
	"github.com/spf13/cobra"
)

func newProgressCmd() *cobra.Command {
	var serverURL string

	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Show the current import progress",
		Long:  "Queries a running Campo server for the state of the current (or last) import run.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgress(cmd, serverURL)
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "base URL of the Campo server")
	return cmd
}

func runProgress(cmd *cobra.Command, serverURL string) error {
	out := cmd.OutOrStdout()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(serverURL + "/api/progress")
	if err != nil {
		return fmt.Errorf("progress: is the server running? %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("progress: server returned %s", resp.Status)
	}

	var snap progress.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return fmt.Errorf("progress: decode response: %w", err)
	}

	switch snap.Status {
	case progress.Running:
		fmt.Fprintf(out, "%s: %d/%d (%s)\n", snap.Status, snap.Current, snap.Total, snap.Message)
	case progress.Idle:
		fmt.Fprintln(out, "No import has run yet.")
	default:
		fmt.Fprintf(out, "%s: %s\n", snap.Status, snap.Message)
	}
	return nil
}
