// Package local implements the askme commands that operate directly on the
// corpus directory and persisted state.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"github.com/cloo-solutions/askme/internal/cli"
	"github.com/cloo-solutions/askme/internal/config"
	"github.com/cloo-solutions/askme/internal/telemetry"
	"github.com/spf13/cobra"
)

// Commands returns every local subcommand
func Commands() []*cobra.Command {
	cmds := []*cobra.Command{
		IngestCmd(),
		AddCmd(),
		QACmd(),
		SearchCmd(),
		AskCmd(),
		FilesCmd(),
		SuggestCmd(),
		PersonaCmd(),
	}
	for _, cmd := range cmds {
		cli.Annotate(cmd, cli.ModeLocal, cli.EnvCorpus...)
	}

	// tones only reads the catalog and needs no API key
	tones := TonesCmd()
	cli.Annotate(tones, cli.ModeLocal, cli.EnvTones...)
	return append(cmds, tones)
}

// withStack loads configuration, wires the services and runs fn inside a
// telemetry transaction named after the command.
func withStack(cmd *cobra.Command, fn func(ctx context.Context, stack *cli.Stack) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	shutdown, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.SentryEnvironment,
		TracesSampleRate: cfg.SentrySampleRate,
		Debug:            cfg.Debug,
	})
	if err != nil {
		log.Printf("telemetry init failed (continuing without tracing): %v", err)
	} else {
		defer shutdown()
	}

	ctx, span := telemetry.StartTransaction(cmd.Context(), "askme "+cmd.Name(), "cli")
	defer span.End()

	stack, err := cli.NewStack(ctx, cfg)
	if err != nil {
		return err
	}
	if err := fn(ctx, stack); err != nil {
		span.SetError(err)
		return err
	}
	return nil
}

// loadConfig reads the environment and applies the --dir override.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		cfg.CorpusDir = dir
	}
	return cfg, nil
}

func outputJSON(cmd *cobra.Command) bool {
	asJSON, _ := cmd.Flags().GetBool("output")
	return asJSON
}

func printJSON(w io.Writer, v interface{}) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	fmt.Fprintln(w, string(output))
	return nil
}
