package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/koopa0/ragd/internal/ingest"
)

var (
	ingestID      string
	ingestTitle   string
	ingestOrigin  string
	ingestVersion string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Ingest a document into the corpus",
	Long: `Ingest a text file: chunk it, embed each chunk and store everything in
one transaction. Re-ingesting unchanged content is a no-op; changed
content replaces the previous version atomically.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd, args[0])
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestID, "id", "", "document id (defaults to the file name)")
	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "document title")
	ingestCmd.Flags().StringVar(&ingestOrigin, "origin", "", "document origin, e.g. a URL")
	ingestCmd.Flags().StringVar(&ingestVersion, "version", "", "document version label")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, path string) error {
	content, err := os.ReadFile(path) // #nosec G304 -- user-supplied path is the point
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	id := ingestID
	if id == "" {
		id = filepath.Base(path)
	}
	title := ingestTitle
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	ctx := cmd.Context()
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	job, err := a.pipeline.Run(ctx, ingest.Document{
		ID:      id,
		Title:   title,
		Origin:  ingestOrigin,
		Version: ingestVersion,
		Content: string(content),
	})
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", id, err)
	}

	if job.Unchanged {
		fmt.Printf("%s: unchanged, nothing to do\n", id)
		return nil
	}
	fmt.Printf("%s: ingested %d chunks\n", id, job.Chunks)
	return nil
}
