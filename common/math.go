package common

import (
	"math"
)

const Epsilon = 1.0 / 16384.0

// / Returns the square of the value.
func Sqr[T IT](a T) T {
	return a * a
}

// / Returns the absolute value.
func Abs[T IT](a T) T {
	if a < 0 {
		return -a
	}
	return a
}

// / Clamps the value to the specified range.
func Clamp[T IT](v, mn, mx T) T {
	if v < mn {
		return mn
	}
	if v > mx {
		return mx
	}
	return v
}

func Sqrtf(v float32) float32 {
	return float32(math.Sqrt(float64(v)))
}

func Floorf(v float32) float32 {
	return float32(math.Floor(float64(v)))
}

func Ceilf(v float32) float32 {
	return float32(math.Ceil(float64(v)))
}

func IsFinite(v float32) bool {
	return !math.IsInf(float64(v), 0) && !math.IsNaN(float64(v))
}

func VisFinite(v []float32) bool {
	return IsFinite(v[0]) && IsFinite(v[1]) && IsFinite(v[2])
}

// / Performs a vector addition. (v1 + v2)
func Vadd(res, v1, v2 []float32) {
	res[0] = v1[0] + v2[0]
	res[1] = v1[1] + v2[1]
	res[2] = v1[2] + v2[2]
}

// / Performs a vector subtraction. (v1 - v2)
func Vsub(res, v1, v2 []float32) {
	res[0] = v1[0] - v2[0]
	res[1] = v1[1] - v2[1]
	res[2] = v1[2] - v2[2]
}

// / Performs a scaled vector addition. (v1 + (v2 * s))
func Vmad(res, v1, v2 []float32, s float32) {
	res[0] = v1[0] + v2[0]*s
	res[1] = v1[1] + v2[1]*s
	res[2] = v1[2] + v2[2]*s
}

// / Performs a linear interpolation between two vectors. (v1 toward v2)
func Vlerp(res, v1, v2 []float32, t float32) {
	res[0] = v1[0] + (v2[0]-v1[0])*t
	res[1] = v1[1] + (v2[1]-v1[1])*t
	res[2] = v1[2] + (v2[2]-v1[2])*t
}

func Vscale(res, v []float32, t float32) {
	res[0] = v[0] * t
	res[1] = v[1] * t
	res[2] = v[2] * t
}

func Vcopy(res, v []float32) {
	res[0] = v[0]
	res[1] = v[1]
	res[2] = v[2]
}

func Vset(res []float32, x, y, z float32) {
	res[0] = x
	res[1] = y
	res[2] = z
}

// / Selects the minimum value of each element from the specified vectors.
func Vmin(mn, v []float32) {
	mn[0] = min(mn[0], v[0])
	mn[1] = min(mn[1], v[1])
	mn[2] = min(mn[2], v[2])
}

// / Selects the maximum value of each element from the specified vectors.
func Vmax(mx, v []float32) {
	mx[0] = max(mx[0], v[0])
	mx[1] = max(mx[1], v[1])
	mx[2] = max(mx[2], v[2])
}

func Vdot(v1, v2 []float32) float32 {
	return v1[0]*v2[0] + v1[1]*v2[1] + v1[2]*v2[2]
}

func Vcross(res, v1, v2 []float32) {
	res[0] = v1[1]*v2[2] - v1[2]*v2[1]
	res[1] = v1[2]*v2[0] - v1[0]*v2[2]
	res[2] = v1[0]*v2[1] - v1[1]*v2[0]
}

func Vlen(v []float32) float32 {
	return Sqrtf(VlenSqr(v))
}

func VlenSqr(v []float32) float32 {
	return v[0]*v[0] + v[1]*v[1] + v[2]*v[2]
}

func Vdist(v1, v2 []float32) float32 {
	return Sqrtf(VdistSqr(v1, v2))
}

func VdistSqr(v1, v2 []float32) float32 {
	dx := v2[0] - v1[0]
	dy := v2[1] - v1[1]
	dz := v2[2] - v1[2]
	return dx*dx + dy*dy + dz*dz
}

// / Derives the distance between the specified points on the xz-plane.
func Vdist2D(v1, v2 []float32) float32 {
	return Sqrtf(Vdist2DSqr(v1, v2))
}

func Vdist2DSqr(v1, v2 []float32) float32 {
	dx := v2[0] - v1[0]
	dz := v2[2] - v1[2]
	return dx*dx + dz*dz
}

func Vnormalize(v []float32) {
	d := Vlen(v)
	if d == 0 {
		return
	}
	d = 1.0 / d
	v[0] *= d
	v[1] *= d
	v[2] *= d
}

// / Performs a 'sloppy' colocation check of the specified points.
func Vequal(p0, p1 []float32) bool {
	return VdistSqr(p0, p1) < Sqr(float32(Epsilon))
}

// / Derives the dot product of two vectors on the xz-plane.
func Vdot2D(u, v []float32) float32 {
	return u[0]*v[0] + u[2]*v[2]
}

// / Derives the xz-plane 2D perp product of the two vectors. (uz*vx - ux*vz)
func Vperp2D(u, v []float32) float32 {
	return u[2]*v[0] - u[0]*v[2]
}

// / Derives the signed xz-plane area of the triangle ABC, or the relationship of line AB to point C.
func TriArea2D(a, b, c []float32) float32 {
	abx := b[0] - a[0]
	abz := b[2] - a[2]
	acx := c[0] - a[0]
	acz := c[2] - a[2]
	return acx*abz - abx*acz
}

// / Determines if two axis-aligned bounding boxes overlap.
func OverlapBounds(amin, amax, bmin, bmax []float32) bool {
	if amin[0] > bmax[0] || amax[0] < bmin[0] {
		return false
	}
	if amin[1] > bmax[1] || amax[1] < bmin[1] {
		return false
	}
	if amin[2] > bmax[2] || amax[2] < bmin[2] {
		return false
	}
	return true
}

func OverlapQuantBounds(amin, amax, bmin, bmax []uint16) bool {
	if amin[0] > bmax[0] || amax[0] < bmin[0] {
		return false
	}
	if amin[1] > bmax[1] || amax[1] < bmin[1] {
		return false
	}
	if amin[2] > bmax[2] || amax[2] < bmin[2] {
		return false
	}
	return true
}

// DistancePtSegSqr2D returns the squared xz distance from pt to segment pq
// and the parameter of the closest point along the segment.
func DistancePtSegSqr2D(pt, p, q []float32) (dist, t float32) {
	pqx := q[0] - p[0]
	pqz := q[2] - p[2]
	dx := pt[0] - p[0]
	dz := pt[2] - p[2]
	d := pqx*pqx + pqz*pqz
	t = pqx*dx + pqz*dz
	if d > 0 {
		t /= d
	}
	t = Clamp(t, 0, 1)
	dx = p[0] + t*pqx - pt[0]
	dz = p[2] + t*pqz - pt[2]
	return dx*dx + dz*dz, t
}

var (
	dirOffsetX = [4]int{-1, 0, 1, 0}
	dirOffsetZ = [4]int{0, 1, 0, -1}
)

// GetDirOffsetX returns the x offset of the neighbour in direction dir.
// Directions are 0:-x 1:+z 2:+x 3:-z.
func GetDirOffsetX(dir int) int {
	return dirOffsetX[dir&0x03]
}

func GetDirOffsetZ(dir int) int {
	return dirOffsetZ[dir&0x03]
}

// GetDirForOffset maps a unit (x,z) offset back to its direction.
func GetDirForOffset(offsetX, offsetZ int) int {
	dirs := [5]int{3, 0, -1, 2, 1}
	return dirs[((offsetZ+1)<<1)+offsetX]
}

func Align4(x int) int {
	return (x + 3) &^ 3
}
