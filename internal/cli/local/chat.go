package local

import (
	"context"
	"fmt"
	"io"

	"github.com/cloo-solutions/askme/internal/cli"
	"github.com/cloo-solutions/askme/internal/service"
	"github.com/spf13/cobra"
)

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	var tone string

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question answered from the corpus",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(cmd, func(ctx context.Context, stack *cli.Stack) error {
				answer, err := stack.Answers.Ask(ctx, stack.Session.Corpus(), args[0], tone)
				if err != nil {
					return err
				}
				if outputJSON(cmd) {
					return printJSON(cmd.OutOrStdout(), answer)
				}
				fmt.Fprintln(cmd.OutOrStdout(), answer.Text)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&tone, "tone", "t", "", "Answer tone (see 'askme tones')")

	return cmd
}

// TonesCmd creates the tones command.
func TonesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tones",
		Short: "List the available answer tones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			tones, err := service.LoadToneCatalog(cfg.TonesFile)
			if err != nil {
				return err
			}
			if outputJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), tones.List())
			}
			printTones(cmd.OutOrStdout(), tones)
			return nil
		},
	}
}

func printTones(w io.Writer, tones *service.ToneCatalog) {
	def := tones.Default().Name
	for _, t := range tones.List() {
		marker := " "
		if t.Name == def {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %-14s %s\n", marker, t.Name, t.Instruction)
	}
}

// SuggestCmd creates the suggest command.
func SuggestCmd() *cobra.Command {
	var n int

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Suggest questions worth answering manually",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(cmd, func(ctx context.Context, stack *cli.Stack) error {
				questions := stack.Suggestions.Suggest(ctx, n)
				if outputJSON(cmd) {
					return printJSON(cmd.OutOrStdout(), questions)
				}
				for i, q := range questions {
					fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n", i+1, q)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&n, "count", "n", 3, "Number of questions (1-10)")

	return cmd
}

// PersonaCmd creates the persona command.
func PersonaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "persona",
		Short: "Show the persona derived from intro.txt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(cmd, func(ctx context.Context, stack *cli.Stack) error {
				persona, err := stack.Persona.Lookup(ctx)
				failed := err != nil
				if failed {
					persona = service.PersonaErrorText(err)
				}
				if outputJSON(cmd) {
					return printJSON(cmd.OutOrStdout(), map[string]interface{}{"persona": persona, "failed": failed})
				}
				if persona == "" {
					fmt.Fprintf(cmd.OutOrStdout(), "No persona yet. Add %s to the corpus directory.\n", service.IntroFile)
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), persona)
				return nil
			})
		},
	}
}
