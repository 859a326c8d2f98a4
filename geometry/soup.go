package geometry

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	ErrEmptyGeometry = errors.New("geometry: empty triangle soup")
	ErrBadIndex      = errors.New("geometry: triangle index out of range")
)

// TriangleSoup is world-space geometry handed to the bake: xyz triples and
// index triples into them.
type TriangleSoup struct {
	Verts []float32 `msgpack:"verts"`
	Tris  []int32   `msgpack:"tris"`
}

func (s *TriangleSoup) VertCount() int { return len(s.Verts) / 3 }
func (s *TriangleSoup) TriCount() int  { return len(s.Tris) / 3 }

// Validate reports whether the soup can be fed to the voxelizer.
func (s *TriangleSoup) Validate() error {
	if s == nil || len(s.Verts) == 0 || len(s.Tris) == 0 {
		return ErrEmptyGeometry
	}
	if len(s.Verts)%3 != 0 {
		return fmt.Errorf("geometry: vertex array length %d is not a multiple of 3", len(s.Verts))
	}
	if len(s.Tris)%3 != 0 {
		return fmt.Errorf("geometry: index array length %d is not a multiple of 3", len(s.Tris))
	}
	nv := int32(s.VertCount())
	for i, idx := range s.Tris {
		if idx < 0 || idx >= nv {
			return fmt.Errorf("%w: triangle %d index %d, %d vertices", ErrBadIndex, i/3, idx, nv)
		}
	}
	return nil
}

// AddVertex appends a vertex and returns its index.
func (s *TriangleSoup) AddVertex(v mgl32.Vec3) int32 {
	s.Verts = append(s.Verts, v[0], v[1], v[2])
	return int32(s.VertCount() - 1)
}

func (s *TriangleSoup) AddTriangle(a, b, c int32) {
	s.Tris = append(s.Tris, a, b, c)
}

// Append merges other into s, rebasing its indices.
func (s *TriangleSoup) Append(other *TriangleSoup) {
	base := int32(s.VertCount())
	s.Verts = append(s.Verts, other.Verts...)
	for _, idx := range other.Tris {
		s.Tris = append(s.Tris, idx+base)
	}
}

// Bounds returns the axis-aligned bounds of the vertices. An empty soup
// returns zero vectors.
func (s *TriangleSoup) Bounds() (bmin, bmax mgl32.Vec3) {
	if len(s.Verts) < 3 {
		return
	}
	copy(bmin[:], s.Verts[:3])
	copy(bmax[:], s.Verts[:3])
	for i := 3; i+2 < len(s.Verts); i += 3 {
		for j := 0; j < 3; j++ {
			v := s.Verts[i+j]
			if v < bmin[j] {
				bmin[j] = v
			}
			if v > bmax[j] {
				bmax[j] = v
			}
		}
	}
	return
}
