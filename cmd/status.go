package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/koopa0/ragd/internal/config"
)

var statusAddr string

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show the state of an ingestion job",
	Long: `Show the state of an ingestion job on a running ragd server.

Jobs live in the server process, so this command queries the server's
/api/jobs endpoint rather than the database.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus(cmd, args[0])
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "", "server address (overrides config)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, jobID string) error {
	addr := statusAddr
	if addr == "" {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		addr = cfg.ServeAddr
	}

	url := fmt.Sprintf("http://%s/api/jobs/%s", addr, jobID)
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("querying %s (is 'ragd serve' running?): %w", addr, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return fmt.Errorf("no such job %s", jobID)
	default:
		return fmt.Errorf("server returned %s: %s", resp.Status, body)
	}

	var job struct {
		DocumentID string `json:"document_id"`
		Status     string `json:"status"`
		Stage      string `json:"stage"`
		Chunks     int    `json:"chunks"`
		Unchanged  bool   `json:"unchanged"`
		Error      string `json:"error"`
	}
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}

	fmt.Printf("job %s\n", jobID)
	fmt.Printf("  document: %s\n", job.DocumentID)
	fmt.Printf("  status:   %s\n", job.Status)
	if job.Status == "failed" {
		fmt.Printf("  stage:    %s\n", job.Stage)
		fmt.Printf("  error:    %s\n", job.Error)
	} else {
		fmt.Printf("  chunks:   %d\n", job.Chunks)
	}
	if job.Unchanged {
		fmt.Println("  unchanged: content already ingested")
	}
	return nil
}
