package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var queryShowSources bool

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Ask a question over the ingested corpus",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, strings.Join(args, " "))
	},
}

func init() {
	queryCmd.Flags().BoolVar(&queryShowSources, "sources", false, "print the source chunks")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, question string) error {
	ctx := cmd.Context()
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.orchestrator.Answer(ctx, question)
	if err != nil {
		return fmt.Errorf("answering query: %w", err)
	}

	if resp.Partial {
		fmt.Println("Generation failed; showing the retrieved sources instead.")
	} else {
		fmt.Println(resp.Answer)
	}

	if queryShowSources || resp.Partial {
		fmt.Println()
		for i, s := range resp.Sources {
			fmt.Printf("[%d] %s (chunk %d, similarity %.3f)\n    %s\n",
				i+1, s.DocumentID, s.Position, s.Similarity, s.Content)
		}
	}
	return nil
}
