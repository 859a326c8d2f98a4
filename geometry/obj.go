package geometry

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// maxFaceVerts caps the polygon size of an OBJ face; longer faces are cut.
const maxFaceVerts = 32

// LoadObj reads the positions and faces of a Wavefront OBJ file into a
// soup, scaling every position by scale. Faces are fan triangulated.
func LoadObj(path string, scale float32) (*TriangleSoup, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	soup, err := ParseObj(f, scale)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return soup, nil
}

func ParseObj(r io.Reader, scale float32) (*TriangleSoup, error) {
	if scale == 0 {
		scale = 1
	}
	soup := &TriangleSoup{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		row := strings.TrimSpace(scanner.Text())
		if row == "" || strings.HasPrefix(row, "#") {
			continue
		}
		fields := strings.Fields(row)
		switch fields[0] {
		case "v":
			if err := parseVertex(soup, fields[1:], scale); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
		case "f":
			if err := parseFace(soup, fields[1:]); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return soup, nil
}

func parseVertex(soup *TriangleSoup, ss []string, scale float32) error {
	if len(ss) < 3 {
		return fmt.Errorf("vertex needs 3 components, got %d", len(ss))
	}
	var v [3]float32
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(ss[i], 32)
		if err != nil {
			return fmt.Errorf("vertex component %q: %w", ss[i], err)
		}
		v[i] = float32(f) * scale
	}
	soup.Verts = append(soup.Verts, v[0], v[1], v[2])
	return nil
}

// parseFace resolves 1-based and negative (relative) indices. Triangles
// touching an index outside the vertices read so far are skipped.
func parseFace(soup *TriangleSoup, ss []string) error {
	nv := soup.VertCount()
	data := make([]int, 0, len(ss))
	for _, s := range ss {
		vs := strings.SplitN(s, "/", 2)
		vi, err := strconv.Atoi(vs[0])
		if err != nil {
			return fmt.Errorf("face index %q: %w", s, err)
		}
		if vi < 0 {
			vi += nv
		} else {
			vi--
		}
		data = append(data, vi)
		if len(data) >= maxFaceVerts {
			break
		}
	}
	for i := 2; i < len(data); i++ {
		a, b, c := data[0], data[i-1], data[i]
		if a < 0 || a >= nv || b < 0 || b >= nv || c < 0 || c >= nv {
			continue
		}
		soup.AddTriangle(int32(a), int32(b), int32(c))
	}
	return nil
}
