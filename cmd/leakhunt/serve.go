package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/flashbots/leakhunt/api/httpserver"
	"github.com/flashbots/leakhunt/cmd/common"
	"github.com/flashbots/leakhunt/services"
)

func serveCmd() *cobra.Command {
	var listenAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP control API",
		Long: `Serve the control API:

  POST /api/session        start a hunt
  POST /api/session/stop   stop it and restore roles
  GET  /api/session        current status and round history
  GET  /api/events         server-sent progress events
  GET  /api/sessions[/id]  recorded sessions

The hunt section of the config supplies defaults for start requests.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadApp()
			if err != nil {
				return err
			}
			if listenAddr != "" {
				cfg.Server.ListenAddr = listenAddr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			platform, err := common.NewPlatform(ctx, cfg, log)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer platform.Close()

			store, err := common.NewHistoryStore(cfg.Store)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			svc := services.NewHuntService(ctx, &services.HuntServiceConfig{
				Platform: platform,
				Defaults: cfg.SessionDefaults(platform),
				Store:    store,
				Log:      log,
			})

			srv, err := httpserver.New(&httpserver.HTTPServerConfig{
				ListenAddr:               cfg.Server.ListenAddr,
				EnablePprof:              cfg.Server.EnablePprof,
				AllowedOrigins:           cfg.Server.AllowedOrigins,
				Log:                      log,
				DrainDuration:            cfg.Server.DrainDuration,
				GracefulShutdownDuration: cfg.Server.GracefulShutdownDuration,
				ReadTimeout:              cfg.Server.ReadTimeout,
			}, svc)
			if err != nil {
				return err
			}
			svc.SetReadiness(srv.Ready)

			srv.RunInBackground()
			<-ctx.Done()

			log.Info("Shutting down")
			svc.Stop()
			svc.Wait()
			srv.Shutdown()
			return nil
		},
	}
	cmd.Flags().StringVar(&listenAddr, "addr", "", "listen address, overrides server.listen_addr")
	return cmd
}
