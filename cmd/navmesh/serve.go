package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gorustyt/solonav/bake"
	"github.com/gorustyt/solonav/navsys"
	"github.com/gorustyt/solonav/server"
)

func ServeCmd(g *globalFlags) *cobra.Command {
	var (
		mesh string
		addr string
	)
	c := &cobra.Command{
		Use:   "serve",
		Short: "serve navmesh queries over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.load()
			if err != nil {
				return err
			}
			defer log.Sync()
			if mesh == "" {
				mesh = cfg.NavMesh
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if cfg.Server.MeshDir == "" {
				cfg.Server.MeshDir = filepath.Dir(mesh)
			}

			ns := navsys.New(log)
			if err := cfg.Query.Apply(ns); err != nil {
				return err
			}
			// Start empty when the mesh is missing; /api/reload or /api/bake
			// can fill it later.
			if err := ns.LoadFromFile(mesh); err != nil {
				log.Warn("navmesh not loaded", zap.String("path", mesh), zap.Error(err))
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			srv := server.New(ns, bake.NewBaker(cfg.Bake, log), cfg.Server, log)
			return srv.Run(ctx)
		},
	}
	c.Flags().StringVarP(&mesh, "mesh", "m", "", "navmesh file, defaults to the config navmesh path")
	c.Flags().StringVar(&addr, "addr", "", "listen address override")
	return c
}

func ConfigCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "print the effective configuration as hjson",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.load()
			if err != nil {
				return err
			}
			data, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(append(data, '\n'))
			return err
		},
	}
}
