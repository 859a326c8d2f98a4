package common

import "github.com/go-gl/mathgl/mgl32"

type Vec3 = mgl32.Vec3
type Mat4 = mgl32.Mat4

type IT interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

type IIndex interface {
	~int | ~int8 | ~int16 | ~int32 | ~uint | ~uint8 | ~uint16 | ~uint32
}

func GetVert3[T any, I IIndex](verts []T, index I) []T {
	return verts[index*3 : index*3+3]
}

func GetVert4[T any, I IIndex](verts []T, index I) []T {
	return verts[index*4 : index*4+4]
}

// Prev and Next walk a ring of n elements.
func Prev[T IT](i, n T) T {
	if i-1 >= 0 {
		return i - 1
	}
	return n - 1
}

func Next[T IT](i, n T) T {
	if i+1 < n {
		return i + 1
	}
	return 0
}

// ToVec3 reads a float triple into an mgl32 vector.
func ToVec3(v []float32) Vec3 {
	return Vec3{v[0], v[1], v[2]}
}
