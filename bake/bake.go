package bake

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/gorustyt/solonav/detour"
	"github.com/gorustyt/solonav/geometry"
	"github.com/gorustyt/solonav/recast"
)

// Baker turns triangle soup into a navmesh. A Baker is not safe for
// concurrent use; create one per bake.
type Baker struct {
	cfg BakeConfig
	log *zap.Logger
}

func NewBaker(cfg BakeConfig, log *zap.Logger) *Baker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Baker{cfg: cfg, log: log}
}

func (b *Baker) Config() BakeConfig { return b.cfg }

// buildPolyMeshDetail is swapped out by tests that need the detail stage
// to fail.
var buildPolyMeshDetail = recast.RcBuildPolyMeshDetail

// Result holds the meshes produced by Build.
type Result struct {
	Config   recast.RcConfig
	PolyMesh *recast.RcPolyMesh
	Detail   *recast.RcPolyMeshDetail
	Report   *Report
}

func (b *Baker) newRcContext() *recast.RcContext {
	log := b.log.Named("recast")
	return recast.NewRcContext(func(category recast.RcLogCategory, msg string) {
		switch category {
		case recast.RC_LOG_WARNING:
			log.Warn(msg)
		case recast.RC_LOG_ERROR:
			log.Error(msg)
		default:
			log.Debug(msg)
		}
	})
}

// Build runs the voxel, region and polygon stages over soup.
func (b *Baker) Build(soup *geometry.TriangleSoup) (*Result, error) {
	if err := b.cfg.Validate(); err != nil {
		return nil, stageErr(StageConfig, err)
	}
	if err := soup.Validate(); err != nil {
		return nil, stageErr(StageGeometry, err)
	}

	ctx := b.newRcContext()
	ctx.ResetTimers()
	ctx.StartTimer(recast.RC_TIMER_TOTAL)

	bmin, bmax := recast.RcCalcBounds(soup.Verts)
	cfg := b.cfg.RcConfig(bmin, bmax)
	report := &Report{
		InputVerts: soup.VertCount(),
		InputTris:  soup.TriCount(),
		GridWidth:  cfg.Width,
		GridHeight: cfg.Height,
	}
	b.log.Info("bake started",
		zap.Int("verts", report.InputVerts),
		zap.Int("tris", report.InputTris),
		zap.Int("gridWidth", cfg.Width),
		zap.Int("gridHeight", cfg.Height))

	hf, err := recast.RcCreateHeightfield(ctx, cfg.Width, cfg.Height, cfg.Bmin, cfg.Bmax, cfg.Cs, cfg.Ch)
	if err != nil {
		return nil, stageErr(StageRasterize, err)
	}
	// Only triangles below the slope limit are walkable.
	areas := make([]uint8, soup.TriCount())
	recast.RcMarkWalkableTriangles(ctx, cfg.WalkableSlopeAngle, soup.Verts, soup.Tris, areas)
	if err := recast.RcRasterizeTriangles(ctx, soup.Verts, soup.Tris, areas, hf, cfg.WalkableClimb); err != nil {
		return nil, stageErr(StageRasterize, err)
	}

	recast.RcFilterLowHangingWalkableObstacles(ctx, cfg.WalkableClimb, hf)
	recast.RcFilterLedgeSpans(ctx, cfg.WalkableHeight, cfg.WalkableClimb, hf)
	recast.RcFilterWalkableLowHeightSpans(ctx, cfg.WalkableHeight, hf)

	chf, err := recast.RcBuildCompactHeightfield(ctx, cfg.WalkableHeight, cfg.WalkableClimb, hf)
	if err != nil {
		return nil, stageErr(StageCompact, err)
	}
	report.CompactSpans = chf.SpanCount
	recast.RcErodeWalkableArea(ctx, cfg.WalkableRadius, chf)

	recast.RcBuildDistanceField(ctx, chf)
	if err := recast.RcBuildRegions(ctx, chf, cfg.MinRegionArea, cfg.MergeRegionArea); err != nil {
		return nil, stageErr(StageRegions, err)
	}
	report.Regions = int(chf.MaxRegions)

	cset, err := recast.RcBuildContours(ctx, chf, cfg.MaxSimplificationError, cfg.MaxEdgeLen, recast.RC_CONTOUR_TESS_WALL_EDGES)
	if err != nil {
		return nil, stageErr(StageContours, err)
	}
	report.Contours = len(cset.Conts)

	pmesh, err := recast.RcBuildPolyMesh(ctx, cset, cfg.MaxVertsPerPoly)
	if err != nil {
		return nil, stageErr(StagePolyMesh, err)
	}
	report.PolyVerts = pmesh.NVerts
	report.Polys = pmesh.NPolys
	report.WalkablePolys = markPolyFlags(pmesh)

	dmesh, err := buildPolyMeshDetail(ctx, pmesh, chf, cfg.DetailSampleDist, cfg.DetailSampleMaxError)
	if err != nil {
		return nil, stageErr(StageDetail, err)
	}
	report.DetailVerts = dmesh.NVerts
	report.DetailTris = dmesh.NTris

	ctx.StopTimer(recast.RC_TIMER_TOTAL)
	report.collectTimers(ctx)
	b.log.Info("polygon mesh built",
		zap.Int("regions", report.Regions),
		zap.Int("verts", report.PolyVerts),
		zap.Int("polys", report.Polys),
		zap.Int("walkablePolys", report.WalkablePolys),
		zap.Int("detailVerts", report.DetailVerts),
		zap.Int("detailTris", report.DetailTris),
		zap.Duration("elapsed", report.Total))
	return &Result{Config: cfg, PolyMesh: pmesh, Detail: dmesh, Report: report}, nil
}

// markPolyFlags flags every walkable polygon as walkable and returns how
// many there are.
func markPolyFlags(pmesh *recast.RcPolyMesh) int {
	n := 0
	for i := 0; i < pmesh.NPolys; i++ {
		if pmesh.Areas[i] == recast.RC_WALKABLE_AREA {
			pmesh.Flags[i] = detour.DT_POLYFLAGS_WALK
			n++
		} else {
			pmesh.Flags[i] = 0
		}
	}
	return n
}

// CreateParams hands the built meshes to the navmesh packer.
func (r *Result) CreateParams(cfg BakeConfig) *detour.DtNavMeshCreateParams {
	pmesh := r.PolyMesh
	p := &detour.DtNavMeshCreateParams{
		Verts:          pmesh.Verts,
		VertCount:      pmesh.NVerts,
		Polys:          pmesh.Polys,
		PolyFlags:      pmesh.Flags,
		PolyAreas:      pmesh.Areas,
		PolyCount:      pmesh.NPolys,
		Nvp:            pmesh.Nvp,
		WalkableHeight: cfg.AgentHeight,
		WalkableRadius: cfg.AgentRadius,
		WalkableClimb:  cfg.AgentMaxClimb,
		Bmin:           pmesh.Bmin,
		Bmax:           pmesh.Bmax,
		Cs:             pmesh.Cs,
		Ch:             pmesh.Ch,
		BuildBvTree:    cfg.BuildBvTree,
	}
	if d := r.Detail; d != nil {
		p.DetailMeshes = d.Meshes
		p.DetailVerts = d.Verts
		p.DetailVertsCount = d.NVerts
		p.DetailTris = d.Tris
		p.DetailTriCount = d.NTris
	}
	return p
}

// Bake builds and packs soup, returning the navmesh blob.
func (b *Baker) Bake(soup *geometry.TriangleSoup) ([]byte, *Report, error) {
	res, err := b.Build(soup)
	if err != nil {
		b.log.Error("bake failed", zap.String("stage", FailedStage(err)), zap.Error(err))
		return nil, nil, err
	}
	data, stripped, err := PackNavMesh(res.CreateParams(b.cfg), b.log)
	if err != nil {
		b.log.Error("bake failed", zap.String("stage", StageSerialize), zap.Error(err))
		return nil, res.Report, stageErr(StageSerialize, err)
	}
	res.Report.DetailStripped = res.Report.DetailStripped || stripped
	res.Report.Bytes = len(data)
	return data, res.Report, nil
}

// BakeToFile bakes soup and writes the navmesh to path. The file is only
// touched when every stage succeeded.
func (b *Baker) BakeToFile(soup *geometry.TriangleSoup, path string) (*Report, error) {
	data, report, err := b.Bake(soup)
	if err != nil {
		return report, err
	}
	if err := writeFileAtomic(path, data); err != nil {
		b.log.Error("bake failed", zap.String("stage", StageWrite), zap.Error(err))
		return report, stageErr(StageWrite, fmt.Errorf("write %s: %w", path, err))
	}
	b.log.Info("navmesh written", zap.String("path", path), zap.Int("bytes", len(data)))
	return report, nil
}
