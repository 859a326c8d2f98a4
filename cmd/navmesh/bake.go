package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gorustyt/solonav/bake"
	"github.com/gorustyt/solonav/geometry"
)

// loadGeometry reads an OBJ model or a msgpack soup cache, picked by
// extension.
func loadGeometry(path string, scale float32) (*geometry.TriangleSoup, geometry.GatherStats, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".obj":
		soup, err := geometry.LoadObj(path, scale)
		if err != nil {
			return nil, geometry.GatherStats{}, err
		}
		return soup, geometry.GatherStats{TrianglesProduced: soup.TriCount()}, nil
	case ".soup", ".msgpack":
		return geometry.LoadSoup(path)
	}
	return nil, geometry.GatherStats{}, fmt.Errorf("unsupported geometry file %q, want .obj or .soup", path)
}

func BakeCmd(g *globalFlags) *cobra.Command {
	var (
		output   string
		report   string
		saveSoup string
		scale    float32
	)
	c := &cobra.Command{
		Use:   "bake <geometry.obj|geometry.soup>",
		Short: "bake a navmesh from level geometry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.load()
			if err != nil {
				return err
			}
			defer log.Sync()

			soup, stats, err := loadGeometry(args[0], scale)
			if err != nil {
				return err
			}
			if saveSoup != "" {
				if err := geometry.SaveSoup(saveSoup, soup, stats); err != nil {
					return err
				}
			}
			if output == "" {
				output = cfg.NavMesh
			}
			baker := bake.NewBaker(cfg.Bake, log)
			rep, err := baker.BakeToFile(soup, output)
			if err != nil {
				return err
			}
			rep.Gather = stats
			log.Info("bake done",
				zap.Int("polys", rep.Polys),
				zap.Int("bytes", rep.Bytes),
				zap.Duration("total", rep.Total))
			if report != "" {
				return rep.WriteFile(report)
			}
			return nil
		},
	}
	c.Flags().StringVarP(&output, "output", "o", "", "navmesh output file, defaults to the config navmesh path")
	c.Flags().StringVar(&report, "report", "", "write the bake report (protobuf Struct) to this file")
	c.Flags().StringVar(&saveSoup, "save-soup", "", "cache the gathered triangle soup to this file")
	c.Flags().Float32Var(&scale, "scale", 1, "OBJ scale factor")
	return c
}
