// Package commands implements the seenindex subcommands.
package commands

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/danish45007/seenindex/internal/config"
	"github.com/danish45007/seenindex/internal/logger"
)

// Version is stamped at build time with -ldflags "-X ...commands.Version=...".
var Version = "dev"

// app carries state shared by every subcommand.
type app struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg    *config.Config
	logger *slog.Logger

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// NewRootCommand builds the seenindex command tree bound to the given streams.
func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}

	rootCmd := &cobra.Command{
		Use:   "seenindex",
		Short: "Build and query Bloom filters of already seen strings",
		Long: `seenindex builds fixed-size Bloom filters from newline-separated strings
and answers "has this string probably been seen?" against them.

Commands:
  create    Build a filter from input lines
  query     Test strings against a filter
  merge     Union filters of the same size
  inspect   Show filter parameters and load
  store     Manage named filters kept in a directory`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default .seenindex.yaml in . or $HOME)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "log format: text or json")

	rootCmd.AddCommand(a.newCreateCommand())
	rootCmd.AddCommand(a.newQueryCommand())
	rootCmd.AddCommand(a.newMergeCommand())
	rootCmd.AddCommand(a.newInspectCommand())
	rootCmd.AddCommand(a.newStoreCommand())
	rootCmd.AddCommand(a.newVersionCommand())

	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	return rootCmd
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Log.Format = a.logFormat
	}
	a.cfg = cfg

	a.logger, err = logger.Setup(a.stderr, cmd.Name(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	return nil
}

func (a *app) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(a.stdout, "seenindex %s\n", Version)
		},
	}
}
