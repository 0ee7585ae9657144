package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/llmcodec/llmcodec/cmd/shape"
	"github.com/llmcodec/llmcodec/config"
	"github.com/llmcodec/llmcodec/logging"
)

var logLevel string
var debugLogging bool

// cfg is the configuration loaded by the root PersistentPreRun and
// shared with every subcommand.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "llmc",
	Short: "llmc extracts structured data from free-form text using a configured LLM",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		var err error
		cfg, err = config.Load(".")
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		if debugLogging {
			cfg.Logging.RequestResponseDebug = true
		}

		if logLevel == "" {
			logLevel = cfg.Logging.Level
		}

		if logLevel == "" {
			logLevel = "info"
		}

		if err := logging.Init(logLevel); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		// If no subcommand is provided, print usage.
		fmt.Println(cmd.UsageString())
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (e.g. debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().BoolVar(&debugLogging, "debug", false, "enable request/response debug logging")

	if err := shape.Register(rootCmd, func() *config.Config { return cfg }); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(versionCmd)
}
