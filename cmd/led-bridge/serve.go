package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"led-bridge/internal/bridge"
	"led-bridge/internal/hostmsg"
	"led-bridge/internal/metrics"
	"led-bridge/internal/server"
	"led-bridge/internal/status"
	"led-bridge/pkg/config"
	"led-bridge/pkg/transport"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the host page and relay frames to the listener",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := viper.BindPFlag("bridge.default_url", cmd.Flags().Lookup("url")); err != nil {
			return err
		}
		if err := viper.BindPFlag("bridge.auto_connect", cmd.Flags().Lookup("auto-connect")); err != nil {
			return err
		}
		return viper.BindPFlag("http.listen_address", cmd.Flags().Lookup("listen"))
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runServe(ctx, cfg)
	},
}

func init() {
	serveCmd.Flags().String("listen", "", "HTTP listen address (default 127.0.0.1:8095)")
	serveCmd.Flags().String("url", "", "default listener URL (ws:// or wss://)")
	serveCmd.Flags().Bool("auto-connect", false, "connect to the default URL on startup")
}

func runServe(ctx context.Context, cfg *config.Config) error {
	log.Info().Msg("Starting LED bridge")
	log.Info().
		Str("listen_address", cfg.HTTP.ListenAddress).
		Str("default_url", cfg.Bridge.DefaultURL).
		Str("host_origin", cfg.Bridge.HostOrigin).
		Bool("auto_connect", cfg.Bridge.AutoConnect).
		Msg("Bridge configuration")

	hub := hostmsg.NewHub(cfg.Bridge.HostOrigin)
	board := status.NewBoard(status.LogReporter{Logger: log.Logger}, hub)

	ctrl := bridge.New(bridge.Options{
		Dialer:        transport.NewWebSocketDialer(cfg.Bridge.WebSocketOptions()),
		Poster:        hub,
		Reporter:      board,
		TrustedOrigin: cfg.Bridge.HostOrigin,
		DefaultURL:    cfg.Bridge.DefaultURL,
		SendTimeout:   cfg.Bridge.WriteTimeout,
	})
	hub.SetHandler(func(ctx context.Context, data []byte) {
		if err := ctrl.HandleHostMessage(ctx, data); err != nil {
			log.Debug().Err(err).Msg("Host message not handled")
		}
	})

	srv := server.New(server.Options{
		ListenAddress:  cfg.HTTP.ListenAddress,
		DefaultURL:     cfg.Bridge.DefaultURL,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		// ReadTimeout would cut long-lived host channel sockets
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
	}, ctrl, hub, board)

	runDone := make(chan error, 1)
	go func() {
		runDone <- ctrl.Run(ctx)
	}()

	if cfg.Metrics.Enabled {
		collector := metrics.NewCollector(ctrl, 0)
		go collector.Start(ctx)
	}

	if err := srv.Start(); err != nil {
		return err
	}
	log.Info().Msgf("Host page: http://%s/", srv.Addr())

	if cfg.Bridge.AutoConnect {
		if err := ctrl.Connect(ctx, ""); err != nil {
			log.Error().Err(err).Msg("Auto connect failed")
		}
	}

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := hub.Close(); err != nil {
		log.Debug().Err(err).Msg("Error closing host channel")
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during HTTP shutdown")
	}
	if err := <-runDone; err != nil {
		log.Error().Err(err).Msg("Bridge controller stopped with error")
	}

	log.Info().Msg("LED bridge stopped")
	return nil
}
