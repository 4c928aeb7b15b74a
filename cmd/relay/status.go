package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Abraxas-365/ollamarelay/server"
)

func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check that the Ollama server is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := a.newOllama()
			models, err := client.ListModels(cmd.Context())
			if err != nil {
				return errors.Wrapf(err, "ollama at %s is not reachable", a.cfg.Ollama.URL)
			}

			green := color.New(color.FgGreen)
			yellow := color.New(color.FgYellow)
			green.Print("✔ ")
			fmt.Printf("ollama is up at %s\n", a.cfg.Ollama.URL)

			if server.ModelInstalled(client.Model(), models) {
				green.Print("✔ ")
				fmt.Printf("model %s is installed\n", client.Model())
			} else {
				yellow.Print("! ")
				fmt.Printf("model %s is not installed (try: ollama pull %s)\n", client.Model(), client.Model())
			}
			if len(models) > 0 {
				fmt.Printf("  models: %s\n", strings.Join(models, ", "))
			}
			return nil
		},
	}
}
