package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	baseconf "led-bridge/internal/config"
	"led-bridge/pkg/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "led-bridge",
	Short: "Relay simulated NeoPixel frames to a WebSocket listener",
	Long: `led-bridge receives pixel frames from a simulator host page and forwards
them to a remote listener over a WebSocket, one binary message per frame,
three bytes (red, green, blue) per pixel.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initViper)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./led-bridge.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (console|json)")

	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(serveCmd, sendCmd, transcodeCmd)
}

func initViper() {
	viper.SetEnvPrefix("LEDBRIDGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// loadConfig loads the service configuration and overlays flags bound
// through viper. Logging is configured from the result.
func loadConfig() (*config.Config, error) {
	configFile := cfgFile
	if configFile != "" {
		if _, err := os.Stat(configFile); err != nil {
			return nil, fmt.Errorf("configuration file %s: %w", configFile, err)
		}
	} else {
		configFile = baseconf.FindConfigFile(config.ServiceName)
	}
	envFile := baseconf.FindEnvironmentFile(config.ServiceName)

	cfg, err := config.Load(configFile, envFile)
	if err != nil {
		return nil, err
	}

	applyOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg.Log.ConfigureZerolog(os.Stderr)

	log.Debug().
		Str("config_file", configFile).
		Str("env_file", envFile).
		Msg("Configuration loaded")
	return cfg, nil
}

func applyOverrides(cfg *config.Config) {
	if v := viper.GetString("log.level"); v != "" {
		cfg.Log.Level = v
	}
	if v := viper.GetString("log.format"); v != "" {
		cfg.Log.Format = v
	}
	if v := viper.GetString("bridge.default_url"); v != "" {
		cfg.Bridge.DefaultURL = v
	}
	if viper.GetBool("bridge.auto_connect") {
		cfg.Bridge.AutoConnect = true
	}
	if v := viper.GetString("http.listen_address"); v != "" {
		cfg.HTTP.ListenAddress = v
	}
}
