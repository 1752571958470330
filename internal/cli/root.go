// Package cli implements the roadscore command line tool.
package cli

import (
	"fmt"
	"os"

	"github.com/dpup/prefab/logging"
	"github.com/spf13/cobra"

	"github.com/roadwatch/server/internal/cache"
	"github.com/roadwatch/server/internal/config"
	"github.com/roadwatch/server/internal/services"
)

var (
	configPath  string
	networkPath string
)

var rootCmd = &cobra.Command{
	Use:   "roadscore",
	Short: "Score and map road damage offline",
	Long: `roadscore runs the road damage pipeline without a server.
It snaps observations to the reference network, groups them by road,
and ranks roads by AHP repair priority.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		cmd.SetContext(logging.EnsureLogger(cmd.Context()))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&networkPath, "network", "", "GeoJSON road network (default: embedded Bunkyo network)")
}

// Execute runs the root command. Output goes to stdout so results can be piped.
func Execute() error {
	rootCmd.SetOut(os.Stdout)
	return rootCmd.Execute()
}

// loadService builds an assessment service from the flags
func loadService() (*services.AssessmentService, *config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	path := cfg.Network.Path
	if networkPath != "" {
		path = networkPath
	}
	net, err := services.LoadNetwork(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load network: %w", err)
	}

	svc, err := services.NewAssessmentService(net, cache.NewCache(), cfg)
	if err != nil {
		return nil, nil, err
	}
	return svc, cfg, nil
}
