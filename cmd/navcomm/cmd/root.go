package cmd

import (
	"context"

	"github.com/roffe/navcomm/pkg/config"
	"github.com/roffe/navcomm/pkg/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "navcomm",
	Short:        "marine instrument bus tool",
	Long:         `Read and write NMEA 0183, NMEA 2000 and Signal K over serial, network and CAN connections`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

const (
	flagConfig = "config"
	flagDebug  = "debug"
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringP(flagConfig, "c", config.DefaultFile, "config file, created if missing")
	pf.BoolP(flagDebug, "d", false, "debug logging")
}

func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	path, err := cmd.Flags().GetString(flagConfig)
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(path)
	return cfg, path, err
}

func newLogger(cmd *cobra.Command, cfg *config.Config) (*logging.Logger, error) {
	lc := cfg.Log
	if debug, _ := cmd.Flags().GetBool(flagDebug); debug {
		lc.Level = "debug"
	}
	return logging.New(lc)
}
