package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "slidekiosk",
		Short: "slidekiosk - kiosk slideshow frame pipeline",
		Long: `slidekiosk cycles through configured web pages, captures their
rendered output off-screen, and delivers the frames to a GPU compositor
over a best-effort transport bridge.

Features:
  • One off-screen capture surface per configured page
  • Per-surface frame-rate throttling and paint coalescing
  • Initial-frame handshake with timeout fallback
  • Shared-buffer transport with graceful per-platform degradation
  • Control API and MJPEG surface previews`,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/slidekiosk/config.yaml)")
	rootCmd.PersistentFlags().Int("port", 0, "control server port (default is 8080)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("pretty", false, "human-readable console logging")

	// Bind flags to viper
	viper.BindPFlag("server_port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("pretty", rootCmd.PersistentFlags().Lookup("pretty"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}
