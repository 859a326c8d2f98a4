package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gorustyt/solonav/navsys"
)

func parseVecs(args []string) ([]mgl32.Vec3, error) {
	if len(args)%3 != 0 {
		return nil, fmt.Errorf("want x y z triples, got %d numbers", len(args))
	}
	out := make([]mgl32.Vec3, len(args)/3)
	for i, a := range args {
		f, err := strconv.ParseFloat(a, 32)
		if err != nil {
			return nil, fmt.Errorf("bad coordinate %q: %w", a, err)
		}
		out[i/3][i%3] = float32(f)
	}
	return out, nil
}

// queryCommand loads the navmesh, applies the query config and hands the
// parsed positions to run. The result is printed as JSON.
func queryCommand(g *globalFlags, use, short string, nvec int, run func(ns *navsys.NavSystem, v []mgl32.Vec3) any) *cobra.Command {
	var mesh string
	c := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nvec * 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.load()
			if err != nil {
				return err
			}
			defer log.Sync()
			vecs, err := parseVecs(args)
			if err != nil {
				return err
			}
			if mesh == "" {
				mesh = cfg.NavMesh
			}
			ns := navsys.New(log)
			if err := cfg.Query.Apply(ns); err != nil {
				return err
			}
			if err := ns.LoadFromFile(mesh); err != nil {
				return err
			}
			log.Debug("query", zap.String("cmd", cmd.Name()), zap.Any("args", vecs))
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(run(ns, vecs))
		},
	}
	c.Flags().StringVarP(&mesh, "mesh", "m", "", "navmesh file, defaults to the config navmesh path")
	return c
}

type pathOutput struct {
	Found  bool         `json:"found"`
	Points []mgl32.Vec3 `json:"points"`
	Polys  int          `json:"polys"`
}

func PathCmd(g *globalFlags) *cobra.Command {
	return queryCommand(g, "path sx sy sz ex ey ez", "find a straight path between two points", 2,
		func(ns *navsys.NavSystem, v []mgl32.Vec3) any {
			res := ns.FindPath(v[0], v[1])
			return pathOutput{Found: res.Success, Points: res.Points, Polys: len(res.Polys)}
		})
}

type nearestOutput struct {
	Found bool       `json:"found"`
	Point mgl32.Vec3 `json:"point"`
	Ref   uint32     `json:"ref"`
}

func NearestCmd(g *globalFlags) *cobra.Command {
	return queryCommand(g, "nearest x y z", "snap a point onto the navmesh", 1,
		func(ns *navsys.NavSystem, v []mgl32.Vec3) any {
			pt, ref, ok := ns.NearestPoint(v[0])
			return nearestOutput{Found: ok, Point: pt, Ref: uint32(ref)}
		})
}

type raycastOutput struct {
	OK       bool       `json:"ok"`
	Hit      bool       `json:"hit"`
	T        float32    `json:"t"`
	Position mgl32.Vec3 `json:"position"`
	Normal   mgl32.Vec3 `json:"normal"`
}

func RaycastCmd(g *globalFlags) *cobra.Command {
	return queryCommand(g, "raycast sx sy sz ex ey ez", "cast a ray along the navmesh surface", 2,
		func(ns *navsys.NavSystem, v []mgl32.Vec3) any {
			res, ok := ns.RaycastSurface(v[0], v[1])
			return raycastOutput{OK: ok, Hit: res.Hit, T: res.T, Position: res.Position, Normal: res.Normal}
		})
}
