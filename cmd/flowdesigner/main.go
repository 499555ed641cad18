package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rendis/flowdesigner/internal/logging"
)

// app carries what every subcommand shares once flags are parsed.
type app struct {
	cfg    Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var logLevel, logFormat string

	root := &cobra.Command{
		Use:   "flowdesigner",
		Short: "Inspect, validate and edit Elsa-style workflow documents",
		Long: "flowdesigner maps nested workflow documents to flat graphs, resolves\n" +
			"activity ports, validates documents and serves the designer tools over MCP.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.cfg = loadConfig()
			if logLevel != "" {
				a.cfg.LogLevel = logLevel
			}
			if logFormat != "" {
				a.cfg.LogFormat = logFormat
			}
			a.logger = logging.NewLogger(cmd.ErrOrStderr(), a.cfg.LogLevel, a.cfg.LogFormat)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json")

	root.AddCommand(
		newGraphCmd(a),
		newPortsCmd(a),
		newValidateCmd(a),
		newServeCmd(a),
		newEditCmd(a),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the flowdesigner version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
