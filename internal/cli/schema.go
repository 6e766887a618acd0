// Package cli holds what agentkb and agentkbd share: machine-readable
// command descriptions for tooling that drives the CLIs.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const helpJSONFlag = "help-json"

type FlagSchema struct {
	Name        string `json:"name"`
	Shorthand   string `json:"shorthand,omitempty"`
	Type        string `json:"type"`
	Default     string `json:"default,omitempty"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
	Inherited   bool   `json:"inherited,omitempty"`
}

// CommandSchema describes one command and, recursively, its subcommands.
// Args lists the positional placeholders from Use, e.g. <agent-id>.
type CommandSchema struct {
	Name        string          `json:"name"`
	Path        string          `json:"path"`
	Use         string          `json:"use,omitempty"`
	Aliases     []string        `json:"aliases,omitempty"`
	Args        []string        `json:"args,omitempty"`
	Description string          `json:"description,omitempty"`
	Long        string          `json:"long,omitempty"`
	Flags       []FlagSchema    `json:"flags,omitempty"`
	Subcommands []CommandSchema `json:"subcommands,omitempty"`
}

func Describe(cmd *cobra.Command) CommandSchema {
	s := CommandSchema{
		Name:        cmd.Name(),
		Path:        cmd.CommandPath(),
		Use:         cmd.Use,
		Aliases:     cmd.Aliases,
		Args:        positionalArgs(cmd.Use),
		Description: cmd.Short,
		Long:        cmd.Long,
	}

	cmd.LocalNonPersistentFlags().VisitAll(func(f *pflag.Flag) {
		s.Flags = appendFlag(s.Flags, f, false)
	})
	cmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		s.Flags = appendFlag(s.Flags, f, false)
	})
	cmd.InheritedFlags().VisitAll(func(f *pflag.Flag) {
		s.Flags = appendFlag(s.Flags, f, true)
	})

	for _, sub := range cmd.Commands() {
		if sub.Hidden || sub.Name() == "help" || sub.Name() == "completion" {
			continue
		}
		s.Subcommands = append(s.Subcommands, Describe(sub))
	}
	return s
}

func appendFlag(flags []FlagSchema, f *pflag.Flag, inherited bool) []FlagSchema {
	if f.Hidden || f.Name == "help" || f.Name == helpJSONFlag {
		return flags
	}
	_, required := f.Annotations[cobra.BashCompOneRequiredFlag]
	return append(flags, FlagSchema{
		Name:        f.Name,
		Shorthand:   f.Shorthand,
		Type:        f.Value.Type(),
		Default:     f.DefValue,
		Description: f.Usage,
		Required:    required,
		Inherited:   inherited,
	})
}

func positionalArgs(use string) []string {
	fields := strings.Fields(use)
	if len(fields) < 2 {
		return nil
	}
	return fields[1:]
}

// AddHelpJSONFlag registers --help-json on root and all its descendants.
func AddHelpJSONFlag(root *cobra.Command) {
	root.PersistentFlags().Bool(helpJSONFlag, false, "Print the command's schema as JSON and exit")
}

// WriteHelpJSON writes the schema of the command addressed by args when args
// contain --help-json. It reports whether it did.
func WriteHelpJSON(root *cobra.Command, args []string, w io.Writer) (bool, error) {
	path := make([]string, 0, len(args))
	for _, arg := range args {
		if arg == "--"+helpJSONFlag {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return true, enc.Encode(Describe(resolve(root, path)))
		}
		if !strings.HasPrefix(arg, "-") {
			path = append(path, arg)
		}
	}
	return false, nil
}

// CheckHelpJSON handles --help-json before cobra validates positional args.
func CheckHelpJSON(root *cobra.Command) {
	handled, err := WriteHelpJSON(root, os.Args[1:], os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating schema: %v\n", err)
		os.Exit(1)
	}
	if handled {
		os.Exit(0)
	}
}

func resolve(cmd *cobra.Command, path []string) *cobra.Command {
	for _, name := range path {
		next := findSub(cmd, name)
		if next == nil {
			break
		}
		cmd = next
	}
	return cmd
}

func findSub(cmd *cobra.Command, name string) *cobra.Command {
	for _, sub := range cmd.Commands() {
		if sub.Name() == name || sub.HasAlias(name) {
			return sub
		}
	}
	return nil
}
