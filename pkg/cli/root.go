// pkg/cli/root.go
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bstardust/takeout-geotag/internal/config"
	"github.com/bstardust/takeout-geotag/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interruption signals
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalCh
		logger.Info("Received interrupt signal, finishing files in progress...")
		cancel()
	}()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		logger.Error("Error executing command: %v", err)
		os.Exit(1)
	}
}

// NewRootCommand builds the command tree. Configuration is resolved before
// any subcommand runs.
func NewRootCommand() *cobra.Command {
	v := viper.New()
	cfg := config.New()
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "takeout-geotag",
		Short: "Write Google Takeout locations and dates back into photos",
		Long: `Google Takeout keeps the location and capture time of each photo in a JSON
sidecar file. takeout-geotag writes them into the JPEG and PNG files as EXIF
metadata, in place, into another folder, or into an S3-compatible bucket.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(v, cfgFile)
			if err != nil {
				return err
			}
			*cfg = *loaded
			logger.SetLevel(cfg.LogLevel)
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (YAML, JSON or TOML)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	v.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(newEmbedCommand())
	rootCmd.AddCommand(newFixCommand(v, cfg))
	rootCmd.AddCommand(newInspectCommand())

	return rootCmd
}
