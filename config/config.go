package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/hjson/hjson-go/v4"

	"github.com/gorustyt/solonav/bake"
	"github.com/gorustyt/solonav/common/logger"
	"github.com/gorustyt/solonav/detour"
	"github.com/gorustyt/solonav/navsys"
)

// Config is the whole tool configuration, read from an hjson file.
type Config struct {
	NavMesh string          `json:"navmesh"` // Mesh file loaded by serve and the query commands.
	Bake    bake.BakeConfig `json:"bake"`
	Query   QueryConfig     `json:"query"`
	Server  ServerConfig    `json:"server"`
	Log     logger.Config   `json:"log"`
}

type QueryConfig struct {
	Extents             [3]float32         `json:"extents"`
	IncludeFlags        uint16             `json:"includeFlags"`
	ExcludeFlags        uint16             `json:"excludeFlags"`
	StraightPathOptions int                `json:"straightPathOptions"`
	AreaCosts           map[string]float32 `json:"areaCosts"` // area id -> traversal cost
}

type ServerConfig struct {
	Addr           string   `json:"addr"`
	AllowedOrigins []string `json:"allowedOrigins"`
	// MeshDir is the only directory /api/reload may load from. Empty means
	// the directory of the navmesh path.
	MeshDir string `json:"meshDir"`
}

func Default() *Config {
	ext := navsys.DefaultSearchExtents
	f := navsys.NewDefaultFilter()
	return &Config{
		NavMesh: "navmesh.bin",
		Bake:    bake.DefaultBakeConfig(),
		Query: QueryConfig{
			Extents:      [3]float32{ext[0], ext[1], ext[2]},
			IncludeFlags: f.GetIncludeFlags(),
			ExcludeFlags: f.GetExcludeFlags(),
		},
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
		},
		Log: logger.Config{
			Level:      "info",
			MaxSizeMB:  logger.DefaultFileMaxSizeMB,
			MaxBackups: logger.DefaultMaxBackups,
			MaxAgeDays: logger.DefaultMaxAgeDays,
		},
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default value.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func Parse(data []byte) (*Config, error) {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		data = data[3:]
	}
	cfg := Default()
	if err := hjson.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := c.Bake.Validate(); err != nil {
		return err
	}
	for i, e := range c.Query.Extents {
		if !(e > 0) {
			return fmt.Errorf("query extents[%d] must be positive, got %v", i, e)
		}
	}
	if _, err := c.Query.areaCosts(); err != nil {
		return err
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server addr is empty")
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

func (q *QueryConfig) areaCosts() (map[int]float32, error) {
	costs := make(map[int]float32, len(q.AreaCosts))
	for k, v := range q.AreaCosts {
		area, err := strconv.Atoi(k)
		if err != nil || area < 0 || area >= detour.DT_MAX_AREAS {
			return nil, fmt.Errorf("query areaCosts: bad area id %q", k)
		}
		if v < 0 {
			return nil, fmt.Errorf("query areaCosts: negative cost %v for area %d", v, area)
		}
		costs[area] = v
	}
	return costs, nil
}

// Apply pushes the query settings into a nav system.
func (q *QueryConfig) Apply(ns *navsys.NavSystem) error {
	costs, err := q.areaCosts()
	if err != nil {
		return err
	}
	ns.SetDefaultSearchExtents(mgl32.Vec3(q.Extents))
	ns.SetFilter(q.IncludeFlags, q.ExcludeFlags)
	for area, cost := range costs {
		if err := ns.SetAreaCost(area, cost); err != nil {
			return err
		}
	}
	ns.SetStraightPathOptions(q.StraightPathOptions)
	return nil
}

// Marshal renders the config as hjson, used by "config print".
func (c *Config) Marshal() ([]byte, error) {
	return hjson.MarshalWithOptions(c, hjson.DefaultOptions())
}
