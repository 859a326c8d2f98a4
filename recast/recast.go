package recast

import (
	"errors"
	"math"

	"github.com/gorustyt/solonav/common"
)

// / Specifies a configuration to use when performing Recast builds.
type RcConfig struct {
	/// The width of the field along the x-axis. [Units: vx]
	Width int

	/// The height of the field along the z-axis. [Units: vx]
	Height int

	/// The xz-plane cell size to use for fields. [Units: wu]
	Cs float32

	/// The y-axis cell size to use for fields. [Units: wu]
	Ch float32

	Bmin [3]float32

	Bmax [3]float32

	/// The maximum slope that is considered walkable. [Limits: 0 <= value < 90] [Units: Degrees]
	WalkableSlopeAngle float32

	/// Minimum floor to 'ceiling' height that will still allow the floor area to
	/// be considered walkable. [Units: vx]
	WalkableHeight int

	/// Maximum ledge height that is considered to still be traversable. [Units: vx]
	WalkableClimb int

	/// The distance to erode/shrink the walkable area away from obstructions. [Units: vx]
	WalkableRadius int

	/// The maximum allowed length for contour edges along the border of the mesh. [Units: vx]
	MaxEdgeLen int

	/// The maximum distance a simplified contour's border edges should deviate
	/// the original raw contour. [Units: vx]
	MaxSimplificationError float32

	/// The minimum number of cells allowed to form isolated island areas. [Units: vx]
	MinRegionArea int

	/// Any regions with a span count smaller than this value will, if possible,
	/// be merged with larger regions. [Units: vx]
	MergeRegionArea int

	MaxVertsPerPoly int

	/// Sets the sampling distance to use when generating the detail mesh. [Units: wu]
	DetailSampleDist float32

	/// The maximum distance the detail mesh surface should deviate from heightfield data. [Units: wu]
	DetailSampleMaxError float32
}

const (
	// RC_WALKABLE_AREA is the only non-null area id produced by the bake.
	RC_WALKABLE_AREA uint8 = 63
	RC_NULL_AREA     uint8 = 0

	RC_NOT_CONNECTED = 0x3f

	// Polygon vertex/neighbour slot sentinel.
	RC_MESH_NULL_IDX uint16 = 0xffff

	// Upper bound on vertices per polygon accepted by the poly mesh builder.
	RC_VERTS_PER_POLYGON = 6

	// Grid limits. Polygon vertices store cell coordinates as uint16, and
	// the cell count bounds the span column array.
	RC_MAX_GRID_SIZE  = 0xffff
	RC_MAX_GRID_CELLS = 1 << 26
)

var (
	ErrEmptyInput         = errors.New("recast: empty input geometry")
	ErrEmptyGrid          = errors.New("recast: heightfield grid has zero size")
	ErrGridTooLarge       = errors.New("recast: heightfield grid too large")
	ErrNoWalkableSpans    = errors.New("recast: no walkable spans")
	ErrTooManyVertices    = errors.New("recast: too many vertices")
	ErrTooManyPolygons    = errors.New("recast: too many polygons")
	ErrTooManySpans       = errors.New("recast: too many spans")
	ErrRegionIdOverflow   = errors.New("recast: region id overflow")
	ErrDetailMeshTooLarge = errors.New("recast: detail mesh exceeds limits")
)

// RcCalcBounds returns the axis-aligned bounds of a flat xyz vertex array.
func RcCalcBounds(verts []float32) (bmin, bmax [3]float32) {
	if len(verts) < 3 {
		return
	}
	copy(bmin[:], verts[:3])
	copy(bmax[:], verts[:3])
	for i := 1; i < len(verts)/3; i++ {
		v := common.GetVert3(verts, i)
		common.Vmin(bmin[:], v)
		common.Vmax(bmax[:], v)
	}
	return bmin, bmax
}

// RcCalcGridSize returns the number of cells covering the bounds. Partial
// cells at the max edge are kept so no geometry falls outside the grid.
func RcCalcGridSize(bmin, bmax [3]float32, cs float32) (width, height int) {
	width = int(common.Ceilf((bmax[0] - bmin[0]) / cs))
	height = int(common.Ceilf((bmax[2] - bmin[2]) / cs))
	return width, height
}

func calcTriNormal(v0, v1, v2 []float32, norm []float32) {
	var e0, e1 [3]float32
	common.Vsub(e0[:], v1, v0)
	common.Vsub(e1[:], v2, v0)
	common.Vcross(norm, e0[:], e1[:])
	common.Vnormalize(norm)
}

// RcMarkWalkableTriangles sets the area of every triangle whose slope is
// below walkableSlopeAngle to RC_WALKABLE_AREA. Other areas are untouched.
func RcMarkWalkableTriangles(ctx *RcContext, walkableSlopeAngle float32, verts []float32, tris []int32, areas []uint8) {
	walkableThr := float32(math.Cos(float64(walkableSlopeAngle) / 180.0 * math.Pi))
	var norm [3]float32
	for i := 0; i < len(tris)/3; i++ {
		tri := common.GetVert3(tris, i)
		calcTriNormal(common.GetVert3(verts, tri[0]), common.GetVert3(verts, tri[1]), common.GetVert3(verts, tri[2]), norm[:])
		// Check if the face is walkable.
		if norm[1] > walkableThr {
			areas[i] = RC_WALKABLE_AREA
		}
	}
}

// RcClearUnwalkableTriangles is the inverse of RcMarkWalkableTriangles.
func RcClearUnwalkableTriangles(ctx *RcContext, walkableSlopeAngle float32, verts []float32, tris []int32, areas []uint8) {
	walkableThr := float32(math.Cos(float64(walkableSlopeAngle) / 180.0 * math.Pi))
	var norm [3]float32
	for i := 0; i < len(tris)/3; i++ {
		tri := common.GetVert3(tris, i)
		calcTriNormal(common.GetVert3(verts, tri[0]), common.GetVert3(verts, tri[1]), common.GetVert3(verts, tri[2]), norm[:])
		if norm[1] <= walkableThr {
			areas[i] = RC_NULL_AREA
		}
	}
}
