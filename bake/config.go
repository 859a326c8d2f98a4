package bake

import (
	"fmt"

	"github.com/gorustyt/solonav/common"
	"github.com/gorustyt/solonav/recast"
)

// BakeConfig holds the agent and voxelization settings in world units.
type BakeConfig struct {
	CellSize             float32 `json:"cellSize"`
	CellHeight           float32 `json:"cellHeight"`
	AgentHeight          float32 `json:"agentHeight"`
	AgentRadius          float32 `json:"agentRadius"`
	AgentMaxClimb        float32 `json:"agentMaxClimb"`
	AgentMaxSlope        float32 `json:"agentMaxSlope"` // degrees
	RegionMinArea        int     `json:"regionMinArea"`
	RegionMergeArea      int     `json:"regionMergeArea"`
	EdgeMaxLen           float32 `json:"edgeMaxLen"`
	EdgeMaxError         float32 `json:"edgeMaxError"`
	VertsPerPoly         int     `json:"vertsPerPoly"`
	DetailSampleDist     float32 `json:"detailSampleDist"`     // cells, below 0.1 disables sampling
	DetailSampleMaxError float32 `json:"detailSampleMaxError"` // cell heights
	BuildBvTree          bool    `json:"buildBvTree"`
}

func DefaultBakeConfig() BakeConfig {
	return BakeConfig{
		CellSize:             0.3,
		CellHeight:           0.2,
		AgentHeight:          2.0,
		AgentRadius:          0.6,
		AgentMaxClimb:        0.9,
		AgentMaxSlope:        45,
		RegionMinArea:        8,
		RegionMergeArea:      20,
		EdgeMaxLen:           12,
		EdgeMaxError:         1.3,
		VertsPerPoly:         6,
		DetailSampleDist:     6,
		DetailSampleMaxError: 1,
		BuildBvTree:          true,
	}
}

type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string { return fmt.Sprintf("bake config %s: %s", e.Field, e.Reason) }

func (c *BakeConfig) Validate() error {
	positive := []struct {
		name string
		v    float32
	}{
		{"cellSize", c.CellSize},
		{"cellHeight", c.CellHeight},
		{"agentHeight", c.AgentHeight},
		{"edgeMaxError", c.EdgeMaxError},
	}
	for _, p := range positive {
		if !(p.v > 0) || !common.IsFinite(p.v) {
			return &ConfigError{Field: p.name, Reason: fmt.Sprintf("must be positive, got %v", p.v)}
		}
	}
	nonNegative := []struct {
		name string
		v    float32
	}{
		{"agentRadius", c.AgentRadius},
		{"agentMaxClimb", c.AgentMaxClimb},
		{"edgeMaxLen", c.EdgeMaxLen},
		{"detailSampleDist", c.DetailSampleDist},
		{"detailSampleMaxError", c.DetailSampleMaxError},
	}
	for _, p := range nonNegative {
		if !(p.v >= 0) || !common.IsFinite(p.v) {
			return &ConfigError{Field: p.name, Reason: fmt.Sprintf("must not be negative, got %v", p.v)}
		}
	}
	if !(c.AgentMaxSlope >= 0 && c.AgentMaxSlope < 90) {
		return &ConfigError{Field: "agentMaxSlope", Reason: fmt.Sprintf("must be in [0,90), got %v", c.AgentMaxSlope)}
	}
	if c.VertsPerPoly < 3 || c.VertsPerPoly > recast.RC_VERTS_PER_POLYGON {
		return &ConfigError{Field: "vertsPerPoly", Reason: fmt.Sprintf("must be in [3,%d], got %d", recast.RC_VERTS_PER_POLYGON, c.VertsPerPoly)}
	}
	if c.RegionMinArea < 0 || c.RegionMergeArea < 0 {
		return &ConfigError{Field: "regionMinArea", Reason: "region areas must not be negative"}
	}
	return nil
}

// RcConfig converts the world unit settings into voxel units for the given
// bounds.
func (c *BakeConfig) RcConfig(bmin, bmax [3]float32) recast.RcConfig {
	cfg := recast.RcConfig{
		Cs:                     c.CellSize,
		Ch:                     c.CellHeight,
		Bmin:                   bmin,
		Bmax:                   bmax,
		WalkableSlopeAngle:     c.AgentMaxSlope,
		WalkableHeight:         int(common.Ceilf(c.AgentHeight / c.CellHeight)),
		WalkableClimb:          int(common.Floorf(c.AgentMaxClimb / c.CellHeight)),
		WalkableRadius:         int(common.Ceilf(c.AgentRadius / c.CellSize)),
		MaxEdgeLen:             int(c.EdgeMaxLen / c.CellSize),
		MaxSimplificationError: c.EdgeMaxError,
		MinRegionArea:          c.RegionMinArea,
		MergeRegionArea:        c.RegionMergeArea,
		MaxVertsPerPoly:        c.VertsPerPoly,
		DetailSampleMaxError:   c.DetailSampleMaxError * c.CellHeight,
	}
	if c.DetailSampleDist >= 0.1 {
		cfg.DetailSampleDist = c.DetailSampleDist * c.CellSize
	}
	cfg.Width, cfg.Height = recast.RcCalcGridSize(bmin, bmax, cfg.Cs)
	return cfg
}
