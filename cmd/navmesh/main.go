package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gorustyt/solonav/common/logger"
	"github.com/gorustyt/solonav/config"
)

var VERSION = "dev"

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configFile string
	logLevel   string
}

func (g *globalFlags) load() (*config.Config, *zap.Logger, error) {
	cfg := config.Default()
	if g.configFile != "" {
		var err error
		if cfg, err = config.Load(g.configFile); err != nil {
			return nil, nil, err
		}
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func rootCmd() *cobra.Command {
	g := &globalFlags{}
	c := &cobra.Command{
		Use:           "navmesh",
		Short:         "bake navigation meshes and query them",
		Version:       VERSION,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	c.PersistentFlags().StringVar(&g.configFile, "config", "", "hjson config file")
	c.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	c.AddCommand(
		BakeCmd(g),
		PathCmd(g),
		NearestCmd(g),
		RaycastCmd(g),
		DumpCmd(g),
		ServeCmd(g),
		ConfigCmd(g),
	)
	return c
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
