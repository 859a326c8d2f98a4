package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gorustyt/solonav/bake"
	"github.com/gorustyt/solonav/debug_utils"
	"github.com/gorustyt/solonav/detour"
)

const (
	dumpNavMesh  = "navmesh"
	dumpDraw     = "draw"
	dumpPolyMesh = "polymesh"
	dumpDetail   = "detail"
)

// DumpCmd exports meshes as OBJ. A .bin input is a baked navmesh; anything
// else is geometry that is baked in memory first.
func DumpCmd(g *globalFlags) *cobra.Command {
	var (
		output string
		what   string
		scale  float32
		bvtree bool
	)
	c := &cobra.Command{
		Use:   "dump <navmesh.bin|geometry>",
		Short: "export a navmesh or an intermediate bake mesh as OBJ",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.load()
			if err != nil {
				return err
			}
			defer log.Sync()

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			if strings.ToLower(filepath.Ext(args[0])) == ".bin" {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return err
				}
				nav, err := detour.NewDtNavMesh(data)
				if err != nil {
					return fmt.Errorf("%s: %w", args[0], err)
				}
				switch what {
				case dumpNavMesh:
					return debug_utils.DuDumpNavMeshToObj(nav, w)
				case dumpDraw:
					dd := debug_utils.NewDuDisplayList()
					var flags debug_utils.DrawNavMeshFlags
					if bvtree {
						flags |= debug_utils.DU_DRAWNAVMESH_BVTREE
					}
					debug_utils.DuDebugDrawNavMesh(dd, nav, flags)
					return dd.WriteObj(w)
				}
				return fmt.Errorf("%q cannot be dumped from a navmesh file, want %s or %s", what, dumpNavMesh, dumpDraw)
			}

			soup, _, err := loadGeometry(args[0], scale)
			if err != nil {
				return err
			}
			res, err := bake.NewBaker(cfg.Bake, log).Build(soup)
			if err != nil {
				return err
			}
			switch what {
			case dumpPolyMesh:
				return debug_utils.DuDumpPolyMeshToObj(res.PolyMesh, w)
			case dumpDetail:
				if res.Detail == nil {
					return fmt.Errorf("bake produced no detail mesh")
				}
				return debug_utils.DuDumpPolyMeshDetailToObj(res.Detail, w)
			case dumpDraw:
				dd := debug_utils.NewDuDisplayList()
				debug_utils.DuDebugDrawPolyMesh(dd, res.PolyMesh)
				return dd.WriteObj(w)
			}
			return fmt.Errorf("%q cannot be dumped from geometry, want %s, %s or %s", what, dumpPolyMesh, dumpDetail, dumpDraw)
		},
	}
	c.Flags().StringVarP(&output, "output", "o", "", "output OBJ file, stdout when empty")
	c.Flags().StringVar(&what, "what", dumpNavMesh, "navmesh|draw for .bin input, polymesh|detail|draw for geometry")
	c.Flags().Float32Var(&scale, "scale", 1, "OBJ scale factor")
	c.Flags().BoolVar(&bvtree, "bvtree", false, "include bounding volume boxes with --what draw")
	return c
}
