package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Abraxas-365/ollamarelay/server"
)

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP relay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().Int("port", 3000, "port to listen on")
	bindFlags(a.v, cmd.Flags(), map[string]string{"server.port": "port"})
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	client := a.newOllama()
	srv := server.New(client, client, client.Model(),
		server.WithLogger(a.logger.With().Str("component", "http").Logger()),
		server.WithVersion(version),
		server.WithDefaultOptions(a.cfg.Ollama.Options),
	)

	httpServer := &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(a.cfg.Server.Port)),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: a.cfg.Server.ReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	green := color.New(color.FgGreen)
	green.Print("▶ ")
	fmt.Printf("ollama-relay listening on http://localhost:%d (model %s, backend %s)\n",
		a.cfg.Server.Port, client.Model(), a.cfg.Ollama.URL)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server failed")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
