// Package cli provides shared CLI utilities and service wiring for askme and askmed.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Command modes reported by --help-json.
const (
	ModeLocal  = "local"
	ModeRemote = "remote"
	ModeDaemon = "daemon"
)

const (
	annotationMode = "askme.mode"
	annotationEnv  = "askme.env"
	helpJSONFlag   = "help-json"
)

// Environment variables read by each kind of command.
var (
	EnvCorpus = []string{
		"ASKME_OPENAI_API_KEY",
		"ASKME_OPENAI_BASE_URL",
		"ASKME_CHAT_API_KEY",
		"ASKME_CHAT_BASE_URL",
		"ASKME_CORPUS_DIR",
		"ASKME_STATE_BACKEND",
		"ASKME_S3_BUCKET",
		"ASKME_TRANSCRIBE_PROVIDER",
		"ASKME_TONES_FILE",
	}
	EnvTones  = []string{"ASKME_TONES_FILE"}
	EnvRemote = []string{"ASKME_API_URL"}
	EnvDaemon = append([]string{"ASKME_PORT", "ASKME_RESCAN_INTERVAL", "ASKME_WATCH", "ASKME_MAX_UPLOAD_BYTES", "ASKME_SENTRY_DSN"}, EnvCorpus...)
)

// FlagSchema describes one flag.
type FlagSchema struct {
	Name        string `json:"name"`
	Shorthand   string `json:"shorthand,omitempty"`
	Type        string `json:"type"`
	Default     string `json:"default,omitempty"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

// CommandSchema describes a command, where it runs and what it reads.
type CommandSchema struct {
	Name        string          `json:"name"`
	Use         string          `json:"use,omitempty"`
	Args        []string        `json:"args,omitempty"`
	Description string          `json:"description,omitempty"`
	Mode        string          `json:"mode,omitempty"`
	Env         []string        `json:"env,omitempty"`
	Flags       []FlagSchema    `json:"flags,omitempty"`
	GlobalFlags []FlagSchema    `json:"global_flags,omitempty"`
	Subcommands []CommandSchema `json:"subcommands,omitempty"`
}

// Annotate records the mode of cmd and the environment variables it reads.
// Subcommands inherit both unless they are annotated themselves.
func Annotate(cmd *cobra.Command, mode string, env ...string) {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[annotationMode] = mode
	if len(env) > 0 {
		cmd.Annotations[annotationEnv] = strings.Join(env, ",")
	}
}

var argPattern = regexp.MustCompile(`<[^>]+>|\[[^\]]+\]`)

// GenerateSchema describes cmd and its visible subcommands.
func GenerateSchema(cmd *cobra.Command) CommandSchema {
	schema := CommandSchema{
		Name:        cmd.Name(),
		Use:         cmd.Use,
		Args:        argPattern.FindAllString(cmd.Use, -1),
		Description: cmd.Short,
		Mode:        inherited(cmd, annotationMode),
	}
	if env := inherited(cmd, annotationEnv); env != "" {
		schema.Env = strings.Split(env, ",")
	}
	if cmd.HasParent() {
		schema.Flags = flagSchemas(cmd.LocalFlags())
	} else {
		schema.Flags = flagSchemas(cmd.LocalNonPersistentFlags())
		schema.GlobalFlags = flagSchemas(cmd.PersistentFlags())
	}

	for _, sub := range cmd.Commands() {
		if sub.Name() == "help" || sub.Name() == "completion" || sub.Hidden {
			continue
		}
		schema.Subcommands = append(schema.Subcommands, GenerateSchema(sub))
	}
	sort.Slice(schema.Subcommands, func(i, j int) bool {
		return schema.Subcommands[i].Name < schema.Subcommands[j].Name
	})
	return schema
}

func inherited(cmd *cobra.Command, key string) string {
	for c := cmd; c != nil; c = c.Parent() {
		if v, ok := c.Annotations[key]; ok {
			return v
		}
	}
	return ""
}

func flagSchemas(set *pflag.FlagSet) []FlagSchema {
	var flags []FlagSchema
	set.VisitAll(func(f *pflag.Flag) {
		if f.Name == helpJSONFlag || f.Name == "help" || f.Name == "version" {
			return
		}
		_, required := f.Annotations[cobra.BashCompOneRequiredFlag]
		flags = append(flags, FlagSchema{
			Name:        f.Name,
			Shorthand:   f.Shorthand,
			Type:        f.Value.Type(),
			Default:     f.DefValue,
			Description: f.Usage,
			Required:    required,
		})
	})
	return flags
}

// AddHelpJSONFlag adds the --help-json flag to a command.
func AddHelpJSONFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().Bool(helpJSONFlag, false, "Output command schema as JSON")
}

// HandleHelpJSON writes the schema of the command addressed by args when
// they contain --help-json. It reports whether the flag was present, so the
// caller can skip Execute and its argument validation.
func HandleHelpJSON(root *cobra.Command, args []string, w io.Writer) (bool, error) {
	for i, arg := range args {
		if arg != "--"+helpJSONFlag {
			continue
		}
		output, err := json.MarshalIndent(GenerateSchema(findTargetCommand(root, args[:i])), "", "  ")
		if err != nil {
			return true, fmt.Errorf("failed to generate schema: %w", err)
		}
		fmt.Fprintln(w, string(output))
		return true, nil
	}
	return false, nil
}

func findTargetCommand(cmd *cobra.Command, args []string) *cobra.Command {
	if len(args) == 0 {
		return cmd
	}

	for _, sub := range cmd.Commands() {
		if sub.Name() == args[0] || sub.HasAlias(args[0]) {
			return findTargetCommand(sub, args[1:])
		}
	}

	return cmd
}
