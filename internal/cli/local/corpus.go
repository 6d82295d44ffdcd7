package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cloo-solutions/askme/internal/cli"
	"github.com/cloo-solutions/askme/internal/domain"
	"github.com/cloo-solutions/askme/internal/service"
	"github.com/spf13/cobra"
)

type corpusSummary struct {
	Files  []service.FileSummary `json:"files"`
	Chunks int                   `json:"chunks"`
}

func summarize(c *service.Corpus) corpusSummary {
	return corpusSummary{Files: c.Files(), Chunks: c.Len()}
}

func printSummary(w io.Writer, c *service.Corpus) {
	files := c.Files()
	if len(files) == 0 {
		fmt.Fprintln(w, "Corpus is empty.")
		return
	}
	fmt.Fprintf(w, "%d chunks from %d sources:\n", c.Len(), len(files))
	for _, f := range files {
		fmt.Fprintf(w, "  %-40s %d\n", f.Name, f.Chunks)
	}
}

func renderCorpus(cmd *cobra.Command, c *service.Corpus) error {
	if outputJSON(cmd) {
		return printJSON(cmd.OutOrStdout(), summarize(c))
	}
	printSummary(cmd.OutOrStdout(), c)
	return nil
}

// IngestCmd creates the ingest command.
func IngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Embed new files from the corpus directory",
		Long: `Scans the corpus directory and embeds every supported file that is not yet
part of the corpus. Files already embedded keep their stored vectors.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(cmd, func(ctx context.Context, stack *cli.Stack) error {
				c, err := stack.Session.Ingest(ctx)
				if err != nil {
					return fmt.Errorf("ingest failed: %w", err)
				}
				return renderCorpus(cmd, c)
			})
		},
	}
}

// AddCmd creates the add command.
func AddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <file>",
		Short: "Add a single file to the corpus",
		Long: `Adds one .txt, .pdf or audio file. Files outside the corpus directory are
copied into it first. Unsupported types and failed transcriptions are errors.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(cmd, func(ctx context.Context, stack *cli.Stack) error {
				c, err := addFile(ctx, stack, args[0])
				if err != nil {
					return err
				}
				return renderCorpus(cmd, c)
			})
		},
	}
}

func addFile(ctx context.Context, stack *cli.Stack, path string) (*service.Corpus, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	dir, err := filepath.Abs(stack.Corpus.Dir())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve corpus directory: %w", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, domain.WithCause(domain.ErrFileNotFound, err)
	}

	if filepath.Dir(abs) == dir {
		return stack.Session.AddFile(ctx, abs)
	}

	f, err := os.Open(abs)
	if err != nil {
		return nil, domain.WithCause(domain.ErrFileNotFound, err)
	}
	defer f.Close()
	return stack.Session.Upload(ctx, filepath.Base(abs), f)
}

// QACmd creates the qa command.
func QACmd() *cobra.Command {
	var question, answer string

	cmd := &cobra.Command{
		Use:   "qa",
		Short: "Add a manual question and answer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(cmd, func(ctx context.Context, stack *cli.Stack) error {
				c, err := stack.Session.AddManualEntry(ctx, question, answer)
				if err != nil {
					return err
				}
				return renderCorpus(cmd, c)
			})
		},
	}

	cmd.Flags().StringVarP(&question, "question", "q", "", "Question text")
	cmd.Flags().StringVarP(&answer, "answer", "a", "", "Answer text")
	cmd.MarkFlagRequired("question")
	cmd.MarkFlagRequired("answer")

	return cmd
}

// FilesCmd creates the files command.
func FilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "files",
		Short: "List embedded sources and their chunk counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(cmd, func(ctx context.Context, stack *cli.Stack) error {
				return renderCorpus(cmd, stack.Session.Corpus())
			})
		},
	}
}

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	var k int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Show the chunks nearest to a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(cmd, func(ctx context.Context, stack *cli.Stack) error {
				hits, err := stack.Session.Search(ctx, args[0], k)
				if err != nil {
					return fmt.Errorf("search failed: %w", err)
				}
				if outputJSON(cmd) {
					return printJSON(cmd.OutOrStdout(), hits)
				}
				printHits(cmd.OutOrStdout(), hits)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&k, "limit", "k", 5, "Number of chunks to return")

	return cmd
}

func printHits(w io.Writer, hits []domain.SearchHit) {
	if len(hits) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}
	for i, h := range hits {
		text := h.Text
		if len([]rune(text)) > 200 {
			text = string([]rune(text)[:197]) + "..."
		}
		fmt.Fprintf(w, "%d. [%s] (%.4f)\n   %s\n", i+1, h.File, h.Distance, text)
	}
}
