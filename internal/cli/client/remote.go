// Package client implements the askme commands that talk to a running
// askmed server instead of opening the corpus directly.
package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/cloo-solutions/askme/internal/cli"
	"github.com/spf13/cobra"
)

type FileSummary struct {
	Name   string `json:"name"`
	Chunks int    `json:"chunks"`
}

type CorpusResponse struct {
	File   string        `json:"file,omitempty"`
	Files  []FileSummary `json:"files"`
	Chunks int           `json:"chunks"`
}

type SearchHit struct {
	Text     string  `json:"text"`
	File     string  `json:"file"`
	Position int     `json:"position"`
	Distance float32 `json:"distance"`
}

type SearchResponse struct {
	Hits []SearchHit `json:"hits"`
}

type AnswerResponse struct {
	Text   string `json:"text"`
	Tone   string `json:"tone"`
	Failed bool   `json:"failed"`
}

type Tone struct {
	Name        string `json:"name"`
	Instruction string `json:"instruction"`
}

type TonesResponse struct {
	Default string `json:"default"`
	Tones   []Tone `json:"tones"`
}

// RemoteCmd groups the commands that call the askmed HTTP API.
func RemoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Talk to a running askmed server",
		Long: `Runs corpus and chat operations against an askmed server.

Environment variables:
  ASKME_API_URL   API base URL (default: http://localhost:8080)`,
	}

	cmd.PersistentFlags().String("api-url", "", "API base URL (overrides env)")
	cli.Annotate(cmd, cli.ModeRemote, cli.EnvRemote...)

	cmd.AddCommand(filesCmd())
	cmd.AddCommand(ingestCmd())
	cmd.AddCommand(uploadCmd())
	cmd.AddCommand(qaCmd())
	cmd.AddCommand(searchCmd())
	cmd.AddCommand(askCmd())
	cmd.AddCommand(tonesCmd())
	cmd.AddCommand(suggestCmd())
	cmd.AddCommand(personaCmd())

	return cmd
}

func outputJSON(cmd *cobra.Command) bool {
	asJSON, _ := cmd.Flags().GetBool("output")
	return asJSON
}

func printRaw(w io.Writer, resp *APIResponse) error {
	var v interface{}
	if err := resp.Decode(&v); err != nil {
		return err
	}
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	fmt.Fprintln(w, string(output))
	return nil
}

func renderCorpus(cmd *cobra.Command, resp *APIResponse) error {
	if outputJSON(cmd) {
		return printRaw(cmd.OutOrStdout(), resp)
	}
	var corpus CorpusResponse
	if err := resp.Decode(&corpus); err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if corpus.File != "" {
		fmt.Fprintf(w, "Added %s\n", corpus.File)
	}
	if len(corpus.Files) == 0 {
		fmt.Fprintln(w, "Corpus is empty.")
		return nil
	}
	fmt.Fprintf(w, "%d chunks from %d sources:\n", corpus.Chunks, len(corpus.Files))
	for _, f := range corpus.Files {
		fmt.Fprintf(w, "  %-40s %d\n", f.Name, f.Chunks)
	}
	return nil
}

func filesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "files",
		Short: "List embedded sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := NewAPIClientWithCmd(cmd).Get("/files")
			if err != nil {
				return err
			}
			return renderCorpus(cmd, resp)
		},
	}
}

func ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Ask the server to embed new files from its corpus directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := NewAPIClientWithCmd(cmd).Post("/ingest", nil)
			if err != nil {
				return err
			}
			return renderCorpus(cmd, resp)
		},
	}
}

func uploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a .txt, .pdf or audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var onProgress ProgressFunc
			if !outputJSON(cmd) {
				errOut := cmd.ErrOrStderr()
				onProgress = func(current, total int64) {
					if total > 0 {
						fmt.Fprintf(errOut, "\rUploading... %d%%", current*100/total)
					}
				}
			}
			resp, err := NewAPIClientWithCmd(cmd).UploadFile(args[0], onProgress)
			if onProgress != nil {
				fmt.Fprintln(cmd.ErrOrStderr())
			}
			if err != nil {
				return err
			}
			return renderCorpus(cmd, resp)
		},
	}
}

func qaCmd() *cobra.Command {
	var question, answer string

	cmd := &cobra.Command{
		Use:   "qa",
		Short: "Add a manual question and answer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := NewAPIClientWithCmd(cmd).Post("/qa", map[string]string{
				"question": question,
				"answer":   answer,
			})
			if err != nil {
				return err
			}
			return renderCorpus(cmd, resp)
		},
	}

	cmd.Flags().StringVarP(&question, "question", "q", "", "Question text")
	cmd.Flags().StringVarP(&answer, "answer", "a", "", "Answer text")
	cmd.MarkFlagRequired("question")
	cmd.MarkFlagRequired("answer")

	return cmd
}

func searchCmd() *cobra.Command {
	var k int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Show the chunks nearest to a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := NewAPIClientWithCmd(cmd).Post("/search", map[string]interface{}{
				"query": args[0],
				"k":     k,
			})
			if err != nil {
				return err
			}
			if outputJSON(cmd) {
				return printRaw(cmd.OutOrStdout(), resp)
			}

			var result SearchResponse
			if err := resp.Decode(&result); err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(result.Hits) == 0 {
				fmt.Fprintln(w, "No results found.")
				return nil
			}
			for i, h := range result.Hits {
				fmt.Fprintf(w, "%d. [%s] (%.4f)\n   %s\n", i+1, h.File, h.Distance, h.Text)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&k, "limit", "k", 5, "Number of chunks to return")

	return cmd
}

func askCmd() *cobra.Command {
	var tone string

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question answered from the corpus",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := NewAPIClientWithCmd(cmd).Post("/ask", map[string]string{
				"question": args[0],
				"tone":     tone,
			})
			if err != nil {
				return err
			}
			if outputJSON(cmd) {
				return printRaw(cmd.OutOrStdout(), resp)
			}

			var answer AnswerResponse
			if err := resp.Decode(&answer); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), answer.Text)
			return nil
		},
	}

	cmd.Flags().StringVarP(&tone, "tone", "t", "", "Answer tone")

	return cmd
}

func tonesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tones",
		Short: "List the server's answer tones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := NewAPIClientWithCmd(cmd).Get("/tones")
			if err != nil {
				return err
			}
			if outputJSON(cmd) {
				return printRaw(cmd.OutOrStdout(), resp)
			}

			var result TonesResponse
			if err := resp.Decode(&result); err != nil {
				return err
			}
			for _, t := range result.Tones {
				marker := " "
				if t.Name == result.Default {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %-14s %s\n", marker, t.Name, t.Instruction)
			}
			return nil
		},
	}
}

func suggestCmd() *cobra.Command {
	var n int

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Suggest questions worth answering manually",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{"n": {strconv.Itoa(n)}}
			resp, err := NewAPIClientWithCmd(cmd).Get("/suggestions?" + q.Encode())
			if err != nil {
				return err
			}
			if outputJSON(cmd) {
				return printRaw(cmd.OutOrStdout(), resp)
			}

			var result struct {
				Suggestions []string `json:"suggestions"`
			}
			if err := resp.Decode(&result); err != nil {
				return err
			}
			for i, s := range result.Suggestions {
				fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n", i+1, s)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&n, "count", "n", 3, "Number of questions (1-10)")

	return cmd
}

func personaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "persona",
		Short: "Show the server's persona prompt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := NewAPIClientWithCmd(cmd).Get("/persona")
			if err != nil {
				return err
			}
			if outputJSON(cmd) {
				return printRaw(cmd.OutOrStdout(), resp)
			}

			var result struct {
				Persona string `json:"persona"`
			}
			if err := resp.Decode(&result); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Persona)
			return nil
		},
	}
}
