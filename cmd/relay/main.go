package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Abraxas-365/ollamarelay/config"
	"github.com/Abraxas-365/ollamarelay/logging"
)

var version = "dev"

// app carries what every subcommand needs once flags are parsed.
type app struct {
	v          *viper.Viper
	configPath string
	cfg        *config.Config
	logger     zerolog.Logger
}

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "relay",
		Short:         "Relay prompts to a local Ollama server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.v, a.configPath)
			if err != nil {
				return errors.Wrap(err, "failed to load configuration")
			}
			a.cfg = cfg
			a.logger = logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
			a.logger.Debug().Str("config", a.v.ConfigFileUsed()).Msg("loaded configuration")
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default: ./relay.yaml)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "console", "log format (console, json)")
	flags.String("ollama-url", config.DefaultURL, "Ollama server URL")
	flags.String("model", config.DefaultModel, "model to use")
	bindFlags(a.v, flags, map[string]string{
		"log.level":    "log-level",
		"log.format":   "log-format",
		"ollama.url":   "ollama-url",
		"ollama.model": "model",
	})

	rootCmd.AddCommand(
		newServeCommand(a),
		newChatCommand(a),
		newAskCommand(a),
		newStatusCommand(a),
		newTranscriptCommand(a),
	)
	return rootCmd
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a := &app{v: config.New(), logger: zerolog.Nop()}
	if err := newRootCommand(a).ExecuteContext(ctx); err != nil {
		color.Red("Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}
