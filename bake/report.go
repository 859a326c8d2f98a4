package bake

import (
	"os"
	"time"

	"github.com/gorustyt/solonav/common/message"
	"github.com/gorustyt/solonav/geometry"
	"github.com/gorustyt/solonav/recast"
)

// Report summarises one bake.
type Report struct {
	InputVerts     int
	InputTris      int
	Gather         geometry.GatherStats
	GridWidth      int
	GridHeight     int
	CompactSpans   int
	Regions        int
	Contours       int
	PolyVerts      int
	Polys          int
	WalkablePolys  int
	DetailVerts    int
	DetailTris     int
	DetailStripped bool
	Bytes          int
	Stages         map[string]time.Duration
	Total          time.Duration
}

var reportTimers = []recast.RcTimerLabel{
	recast.RC_TIMER_RASTERIZE_TRIANGLES,
	recast.RC_TIMER_FILTER_LOW_OBSTACLES,
	recast.RC_TIMER_FILTER_BORDER,
	recast.RC_TIMER_FILTER_WALKABLE,
	recast.RC_TIMER_BUILD_COMPACTHEIGHTFIELD,
	recast.RC_TIMER_ERODE_AREA,
	recast.RC_TIMER_BUILD_DISTANCEFIELD,
	recast.RC_TIMER_BUILD_REGIONS,
	recast.RC_TIMER_BUILD_CONTOURS,
	recast.RC_TIMER_BUILD_POLYMESH,
	recast.RC_TIMER_BUILD_POLYMESHDETAIL,
}

func (r *Report) collectTimers(ctx *recast.RcContext) {
	r.Stages = make(map[string]time.Duration, len(reportTimers))
	for _, label := range reportTimers {
		r.Stages[label.String()] = ctx.AccumulatedTime(label)
	}
	r.Total = ctx.AccumulatedTime(recast.RC_TIMER_TOTAL)
}

// Fields flattens the report. Durations are in milliseconds.
func (r *Report) Fields() map[string]interface{} {
	stages := make(map[string]interface{}, len(r.Stages))
	for k, v := range r.Stages {
		stages[k] = float64(v.Microseconds()) / 1000
	}
	return map[string]interface{}{
		"inputVerts":        r.InputVerts,
		"inputTris":         r.InputTris,
		"entitiesScanned":   r.Gather.EntitiesScanned,
		"submeshesUsed":     r.Gather.SubmeshesUsed,
		"trianglesProduced": r.Gather.TrianglesProduced,
		"gridWidth":         r.GridWidth,
		"gridHeight":        r.GridHeight,
		"compactSpans":      r.CompactSpans,
		"regions":           r.Regions,
		"contours":          r.Contours,
		"polyVerts":         r.PolyVerts,
		"polys":             r.Polys,
		"walkablePolys":     r.WalkablePolys,
		"detailVerts":       r.DetailVerts,
		"detailTris":        r.DetailTris,
		"detailStripped":    r.DetailStripped,
		"bytes":             r.Bytes,
		"totalMs":           float64(r.Total.Microseconds()) / 1000,
		"stagesMs":          stages,
	}
}

// Encode packs the report as a protobuf Struct.
func (r *Report) Encode() ([]byte, error) {
	return message.EncodeMap(r.Fields())
}

func (r *Report) WriteFile(path string) error {
	data, err := r.Encode()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
