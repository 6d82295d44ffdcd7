package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/askme/internal/cli"
	"github.com/cloo-solutions/askme/internal/cli/client"
	"github.com/cloo-solutions/askme/internal/cli/local"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "askme",
		Short: "askme - ask questions of your personal knowledge base",
		Long: `askme embeds your notes, PDFs and recordings and answers questions from them
in your own voice.

Environment variables:
  ASKME_OPENAI_API_KEY   API key for embeddings and chat (required)
  ASKME_CORPUS_DIR       Corpus directory (default: data)
  ASKME_API_URL          askmed URL for the remote commands`,
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("dir", "", "Corpus directory (overrides ASKME_CORPUS_DIR)")
	cli.AddHelpJSONFlag(rootCmd)

	for _, cmd := range local.Commands() {
		rootCmd.AddCommand(cmd)
	}
	rootCmd.AddCommand(client.RemoteCmd())

	if handled, err := cli.HandleHelpJSON(rootCmd, os.Args[1:], os.Stdout); handled {
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
