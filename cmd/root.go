package cmd

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/himanshujainsanghai/up-igrs-new-sub002/core/config"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "igrs",
	Short: "WhatsApp grievance intake for the public grievance office",
	Long: `Receives WhatsApp Cloud API webhooks, walks citizens through filing or
tracking a grievance and stores submitted complaints.`,
}

func init() {
	time.Local = time.UTC

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	initFlags()

	cobra.OnInitialize(initEnvConfig)
}

func initFlags() {
	rootCmd.PersistentFlags().StringP(
		"port", "p", "",
		"change port number with --port <number> | example: --port=8080",
	)
	rootCmd.PersistentFlags().BoolP(
		"debug", "d", false,
		"hide or displaying log with --debug <true/false> | example: --debug=true",
	)

	_ = viper.BindPFlag("app_port", rootCmd.PersistentFlags().Lookup("port"))
	_ = viper.BindPFlag("app_debug", rootCmd.PersistentFlags().Lookup("debug"))
}

// initEnvConfig loads .env, builds config.Global and applies flag overrides.
func initEnvConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.WithError(err).Warn("[CONFIG] Failed to read .env file")
	}
	viper.AutomaticEnv()

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("[CONFIG] Invalid configuration: %v", err)
	}

	if port := viper.GetString("app_port"); port != "" {
		cfg.App.Port = port
	}
	if viper.GetBool("app_debug") {
		cfg.App.Debug = true
	}

	if cfg.App.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.WithFields(logrus.Fields(config.GetAllSettings())).Debug("[CONFIG] Settings loaded")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
