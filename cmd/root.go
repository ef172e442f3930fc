// Package cmd implements the ragd command-line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ragd",
	Short: "ragd - retrieval-augmented document service",
	Long: `ragd ingests documents into a PostgreSQL + pgvector corpus and answers
questions over it: documents are chunked, embedded and stored
transactionally; queries retrieve the most similar chunks and generate a
grounded answer.

Run 'ragd serve' to start the HTTP API, or use 'ragd ingest' and
'ragd query' directly from the terminal.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
