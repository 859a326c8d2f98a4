package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/gorustyt/solonav/detour"
	"github.com/gorustyt/solonav/geometry"
	"github.com/gorustyt/solonav/navsys"
)

type PathRequest struct {
	Start   mgl32.Vec3  `json:"start"`
	End     mgl32.Vec3  `json:"end"`
	Extents *mgl32.Vec3 `json:"extents,omitempty"`
}

type PathResponse struct {
	Found  bool               `json:"found"`
	Points []mgl32.Vec3       `json:"points"`
	Polys  []detour.DtPolyRef `json:"polys"`
}

type NearestRequest struct {
	Pos     mgl32.Vec3  `json:"pos"`
	Extents *mgl32.Vec3 `json:"extents,omitempty"`
}

type NearestResponse struct {
	Found bool             `json:"found"`
	Point mgl32.Vec3       `json:"point"`
	Ref   detour.DtPolyRef `json:"ref"`
}

type RaycastRequest struct {
	Start   mgl32.Vec3  `json:"start"`
	End     mgl32.Vec3  `json:"end"`
	Extents *mgl32.Vec3 `json:"extents,omitempty"`
}

type RaycastResponse struct {
	OK       bool               `json:"ok"`
	Hit      bool               `json:"hit"`
	T        float32            `json:"t"`
	Position mgl32.Vec3         `json:"position"`
	Normal   mgl32.Vec3         `json:"normal"`
	Polys    []detour.DtPolyRef `json:"polys"`
}

type ReloadRequest struct {
	Path string `json:"path,omitempty"` // relative to the mesh dir, empty reloads the last file
}

type DebugLineResponse struct {
	A    mgl32.Vec3       `json:"a"`
	B    mgl32.Vec3       `json:"b"`
	Kind string           `json:"kind"`
	Ref  detour.DtPolyRef `json:"ref"`
}

func queryOpts(ext *mgl32.Vec3) []navsys.QueryOption {
	if ext == nil {
		return nil
	}
	return []navsys.QueryOption{navsys.WithExtents(*ext)}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]bool{"loaded": s.ns.Loaded()})
}

func (s *Server) info(w http.ResponseWriter, r *http.Request) {
	info, err := s.ns.Info()
	if err != nil {
		s.writeError(w, statusOf(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) findPath(w http.ResponseWriter, r *http.Request) {
	var req PathRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, statusOf(err), err)
		return
	}
	if !s.ns.Loaded() {
		s.writeError(w, http.StatusServiceUnavailable, navsys.ErrNotLoaded)
		return
	}
	res := s.ns.FindPath(req.Start, req.End, queryOpts(req.Extents)...)
	resp := PathResponse{Found: res.Success, Points: res.Points, Polys: res.Polys}
	if resp.Points == nil {
		resp.Points = []mgl32.Vec3{}
		resp.Polys = []detour.DtPolyRef{}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) nearest(w http.ResponseWriter, r *http.Request) {
	var req NearestRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, statusOf(err), err)
		return
	}
	if !s.ns.Loaded() {
		s.writeError(w, http.StatusServiceUnavailable, navsys.ErrNotLoaded)
		return
	}
	pt, ref, ok := s.ns.NearestPoint(req.Pos, queryOpts(req.Extents)...)
	s.writeJSON(w, http.StatusOK, NearestResponse{Found: ok, Point: pt, Ref: ref})
}

func (s *Server) raycast(w http.ResponseWriter, r *http.Request) {
	var req RaycastRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, statusOf(err), err)
		return
	}
	if !s.ns.Loaded() {
		s.writeError(w, http.StatusServiceUnavailable, navsys.ErrNotLoaded)
		return
	}
	res, ok := s.ns.RaycastSurface(req.Start, req.End, queryOpts(req.Extents)...)
	resp := RaycastResponse{
		OK:       ok,
		Hit:      res.Hit,
		T:        res.T,
		Position: res.Position,
		Normal:   res.Normal,
		Polys:    res.Polys,
	}
	if resp.Polys == nil {
		resp.Polys = []detour.DtPolyRef{}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) reload(w http.ResponseWriter, r *http.Request) {
	var req ReloadRequest
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &req); err != nil {
			s.writeError(w, statusOf(err), err)
			return
		}
	}
	var err error
	if req.Path == "" {
		err = s.ns.ReloadLast()
	} else {
		var path string
		if path, err = s.meshPath(req.Path); err == nil {
			err = s.ns.ReloadFromFile(path)
		}
	}
	if err != nil {
		s.log.Warn("reload failed", zap.String("path", req.Path), zap.Error(err))
		status := statusOf(err)
		if status == http.StatusInternalServerError {
			status = http.StatusUnprocessableEntity
		}
		s.writeError(w, status, err)
		return
	}
	s.info(w, r)
}

func (s *Server) unload(w http.ResponseWriter, r *http.Request) {
	s.ns.Unload()
	s.writeJSON(w, http.StatusOK, map[string]bool{"loaded": false})
}

func floatParam(r *http.Request, name string, def float32) (float32, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", errBadRequest, name, err)
	}
	return float32(f), nil
}

// debugEdges serves GET /api/debug/edges?x=&y=&z=&r=.
func (s *Server) debugEdges(w http.ResponseWriter, r *http.Request) {
	var c mgl32.Vec3
	var err error
	for i, name := range []string{"x", "y", "z"} {
		if c[i], err = floatParam(r, name, 0); err != nil {
			s.writeError(w, statusOf(err), err)
			return
		}
	}
	radius, err := floatParam(r, "r", 10)
	if err != nil {
		s.writeError(w, statusOf(err), err)
		return
	}
	if !s.ns.Loaded() {
		s.writeError(w, http.StatusServiceUnavailable, navsys.ErrNotLoaded)
		return
	}
	lines := s.ns.DebugEdges(c, radius)
	out := make([]DebugLineResponse, 0, len(lines))
	for _, l := range lines {
		kind := "boundary"
		if l.Kind == navsys.EdgeCentroid {
			kind = "centroid"
		}
		out = append(out, DebugLineResponse{A: l.A, B: l.B, Kind: kind, Ref: l.Ref})
	}
	s.writeJSON(w, http.StatusOK, out)
}

// bakeObj bakes an OBJ request body and loads the result. The optional
// scale query parameter scales the model.
func (s *Server) bakeObj(w http.ResponseWriter, r *http.Request) {
	scale, err := floatParam(r, "scale", 1)
	if err != nil {
		s.writeError(w, statusOf(err), err)
		return
	}
	soup, err := geometry.ParseObj(http.MaxBytesReader(w, r.Body, maxBodyBytes), scale)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	data, report, err := s.baker.Bake(soup)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if err := s.ns.LoadFromMemory(data); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report.Fields())
}
