package common

// Integer predicates on the xz-plane. Points are slices whose element 0 is x
// and element 2 is z, which lets contour vertices (x,y,z,flags) be passed
// without copying.

func Area2(a, b, c []int) int {
	return (b[0]-a[0])*(c[2]-a[2]) - (c[0]-a[0])*(b[2]-a[2])
}

// Left returns true iff c is strictly to the left of the directed line a->b.
func Left(a, b, c []int) bool {
	return Area2(a, b, c) < 0
}

func LeftOn(a, b, c []int) bool {
	return Area2(a, b, c) <= 0
}

func Collinear(a, b, c []int) bool {
	return Area2(a, b, c) == 0
}

func Xorb(x, y bool) bool {
	return x != y
}

// IntersectProp returns true iff ab properly intersects cd: they share a
// point interior to both segments.
func IntersectProp(a, b, c, d []int) bool {
	if Collinear(a, b, c) || Collinear(a, b, d) ||
		Collinear(c, d, a) || Collinear(c, d, b) {
		return false
	}
	return Xorb(Left(a, b, c), Left(a, b, d)) && Xorb(Left(c, d, a), Left(c, d, b))
}

// Between returns true iff a, b and c are collinear and c lies on the closed
// segment ab.
func Between(a, b, c []int) bool {
	if !Collinear(a, b, c) {
		return false
	}
	// If ab not vertical, check betweenness on x; else on z.
	if a[0] != b[0] {
		return (a[0] <= c[0] && c[0] <= b[0]) || (a[0] >= c[0] && c[0] >= b[0])
	}
	return (a[2] <= c[2] && c[2] <= b[2]) || (a[2] >= c[2] && c[2] >= b[2])
}

// Intersect returns true iff segments ab and cd intersect, properly or improperly.
func Intersect(a, b, c, d []int) bool {
	if IntersectProp(a, b, c, d) {
		return true
	}
	return Between(a, b, c) || Between(a, b, d) ||
		Between(c, d, a) || Between(c, d, b)
}

func Vequal2(a, b []int) bool {
	return a[0] == b[0] && a[2] == b[2]
}
