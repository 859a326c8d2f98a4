package navsys

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/gorustyt/solonav/common"
	"github.com/gorustyt/solonav/detour"
)

const (
	MaxPathPolys    = 256
	MaxStraightPath = 256
	MaxSearchNodes  = 2048

	DefaultIncludeFlags = detour.DT_POLYFLAGS_WALK | detour.DT_POLYFLAGS_DOOR
	DefaultExcludeFlags = detour.DT_POLYFLAGS_DISABLED
)

var (
	ErrNotLoaded  = errors.New("navsys: no navmesh loaded")
	ErrNoLastFile = errors.New("navsys: no file loaded yet")
	ErrBadArea    = errors.New("navsys: area id out of range")
)

// DefaultSearchExtents are the half extents used to snap positions onto
// the mesh when a query does not pass its own.
var DefaultSearchExtents = mgl32.Vec3{2, 4, 2}

// PathResult is the outcome of FindPath. Points and Polys are empty unless
// Success is set.
type PathResult struct {
	Success bool
	Points  []mgl32.Vec3
	Polys   []detour.DtPolyRef
}

// NavSystem owns the loaded navmesh and answers queries against it. All
// methods are safe for concurrent use; queries run in parallel and
// load/unload wait for them.
type NavSystem struct {
	mu       sync.RWMutex
	nav      *detour.DtNavMesh
	queries  *sync.Pool
	lastFile string

	extents         mgl32.Vec3
	filter          detour.DtQueryFilter
	straightOptions int

	log *zap.Logger
}

func NewDefaultFilter() *detour.DtQueryFilter {
	f := detour.NewDtQueryFilter()
	f.SetIncludeFlags(DefaultIncludeFlags)
	f.SetExcludeFlags(DefaultExcludeFlags)
	return f
}

func New(log *zap.Logger) *NavSystem {
	if log == nil {
		log = zap.NewNop()
	}
	return &NavSystem{
		extents: DefaultSearchExtents,
		filter:  *NewDefaultFilter(),
		log:     log,
	}
}

func (s *NavSystem) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nav != nil
}

// NavMesh returns the loaded mesh, or nil.
func (s *NavSystem) NavMesh() *detour.DtNavMesh {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nav
}

func (s *NavSystem) LastFile() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastFile
}

func newQueryPool(nav *detour.DtNavMesh) *sync.Pool {
	return &sync.Pool{New: func() any {
		q, _ := detour.NewDtNavMeshQuery(nav, MaxSearchNodes)
		return q
	}}
}

// LoadFromMemory decodes a navmesh blob and makes it the active mesh. The
// blob is copied, the caller keeps ownership of data. On error the system
// is left unloaded.
func (s *NavSystem) LoadFromMemory(data []byte) error {
	if len(data) == 0 {
		s.Unload()
		return fmt.Errorf("navsys: load: empty navmesh data")
	}
	nav, err := detour.NewDtNavMesh(data)
	if err != nil {
		s.Unload()
		return fmt.Errorf("navsys: load: %w", err)
	}
	s.mu.Lock()
	s.nav = nav
	s.queries = newQueryPool(nav)
	s.mu.Unlock()
	h := nav.GetHeader()
	s.log.Info("navmesh loaded",
		zap.Int32("polys", h.PolyCount),
		zap.Int32("verts", h.VertCount),
		zap.Int("bytes", len(data)))
	return nil
}

// LoadFromFile loads a navmesh file and remembers its path for ReloadLast.
func (s *NavSystem) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		s.Unload()
		return fmt.Errorf("navsys: load: %w", err)
	}
	if err := s.LoadFromMemory(data); err != nil {
		return fmt.Errorf("%w (%s)", err, path)
	}
	s.mu.Lock()
	s.lastFile = path
	s.mu.Unlock()
	return nil
}

// ReloadFromFile drops the current mesh, restores the default filter and
// loads path. On error the system is left unloaded.
func (s *NavSystem) ReloadFromFile(path string) error {
	s.Unload()
	s.mu.Lock()
	s.filter = *NewDefaultFilter()
	s.mu.Unlock()
	return s.LoadFromFile(path)
}

// ReloadLast reloads the last file that loaded successfully.
func (s *NavSystem) ReloadLast() error {
	path := s.LastFile()
	if path == "" {
		return ErrNoLastFile
	}
	return s.ReloadFromFile(path)
}

// Unload drops the active mesh. Calling it when nothing is loaded is a
// no-op.
func (s *NavSystem) Unload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nav == nil {
		return
	}
	s.nav = nil
	s.queries = nil
	s.log.Info("navmesh unloaded")
}

func (s *NavSystem) SetDefaultSearchExtents(ext mgl32.Vec3) {
	s.mu.Lock()
	s.extents = ext
	s.mu.Unlock()
}

func (s *NavSystem) DefaultSearchExtents() mgl32.Vec3 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.extents
}

// SetFilter sets the include and exclude flags of the default filter.
func (s *NavSystem) SetFilter(include, exclude uint16) {
	s.mu.Lock()
	s.filter.SetIncludeFlags(include)
	s.filter.SetExcludeFlags(exclude)
	s.mu.Unlock()
}

// SetAreaCost sets the default filter's cost for an area id in [0,64).
func (s *NavSystem) SetAreaCost(area int, cost float32) error {
	s.mu.Lock()
	ok := s.filter.SetAreaCost(area, cost)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrBadArea, area)
	}
	return nil
}

// Filter returns a copy of the default filter.
func (s *NavSystem) Filter() *detour.DtQueryFilter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f := s.filter
	return &f
}

// SetStraightPathOptions sets the detour.DT_STRAIGHTPATH_* options used by
// FindPath. The default is 0, corners only.
func (s *NavSystem) SetStraightPathOptions(options int) {
	s.mu.Lock()
	s.straightOptions = options
	s.mu.Unlock()
}

// QueryOption overrides a default for one query.
type QueryOption func(*queryOptions)

type queryOptions struct {
	filter  *detour.DtQueryFilter
	extents mgl32.Vec3
}

func WithFilter(f *detour.DtQueryFilter) QueryOption {
	return func(o *queryOptions) { o.filter = f }
}

func WithExtents(ext mgl32.Vec3) QueryOption {
	return func(o *queryOptions) { o.extents = ext }
}

func newPolyStack() *common.FixedStack[detour.DtPolyRef] {
	return common.NewFixedStack[detour.DtPolyRef](MaxPathPolys)
}

func newStraightStack() *common.FixedStack[detour.DtStraightPathPoint] {
	return common.NewFixedStack[detour.DtStraightPathPoint](MaxStraightPath)
}

// session is one query call holding the read lock and a pooled query.
type session struct {
	s       *NavSystem
	q       *detour.DtNavMeshQuery
	filter  *detour.DtQueryFilter
	extents []float32
	options int
}

// acquire read-locks the system; release must be called when done.
func (s *NavSystem) acquire(opts []QueryOption) (*session, error) {
	s.mu.RLock()
	if s.nav == nil {
		s.mu.RUnlock()
		return nil, ErrNotLoaded
	}
	o := queryOptions{extents: s.extents}
	for _, opt := range opts {
		opt(&o)
	}
	if o.filter == nil {
		f := s.filter
		o.filter = &f
	}
	q, _ := s.queries.Get().(*detour.DtNavMeshQuery)
	if q == nil {
		s.mu.RUnlock()
		return nil, fmt.Errorf("navsys: cannot create navmesh query")
	}
	return &session{s: s, q: q, filter: o.filter, extents: o.extents[:], options: s.straightOptions}, nil
}

func (ss *session) release() {
	ss.s.queries.Put(ss.q)
	ss.s.mu.RUnlock()
}

func (ss *session) snap(pos mgl32.Vec3) (detour.DtPolyRef, []float32, bool) {
	ref, pt, status := ss.q.FindNearestPoly(pos[:], ss.extents, ss.filter)
	if status.Failed() || ref == 0 {
		return 0, nil, false
	}
	return ref, pt, true
}

// NearestPoint snaps pos to the closest point on the mesh within the
// search extents. ok is false when no polygon is inside the box.
func (s *NavSystem) NearestPoint(pos mgl32.Vec3, opts ...QueryOption) (pt mgl32.Vec3, ref detour.DtPolyRef, ok bool) {
	ss, err := s.acquire(opts)
	if err != nil {
		return pt, 0, false
	}
	defer ss.release()
	ref, p, ok := ss.snap(pos)
	if !ok {
		return pt, 0, false
	}
	return mgl32.Vec3{p[0], p[1], p[2]}, ref, true
}

// FindPath snaps both ends onto the mesh, searches a polygon corridor and
// pulls the straight path through it. Any failure, including a corridor
// that does not reach the end or does not fit the path bounds, gives an
// empty result.
func (s *NavSystem) FindPath(start, end mgl32.Vec3, opts ...QueryOption) PathResult {
	var res PathResult
	ss, err := s.acquire(opts)
	if err != nil {
		return res
	}
	defer ss.release()

	startRef, ns, ok := ss.snap(start)
	if !ok {
		return res
	}
	endRef, ne, ok := ss.snap(end)
	if !ok {
		return res
	}

	polys := newPolyStack()
	status := ss.q.FindPath(startRef, endRef, ns, ne, ss.filter, polys)
	if status.Failed() || polys.Empty() ||
		status.Detail(detour.DT_PARTIAL_RESULT) || status.Detail(detour.DT_BUFFER_TOO_SMALL) {
		return res
	}

	straight := newStraightStack()
	status = ss.q.FindStraightPath(ns, ne, polys.Slice(), straight, ss.options)
	if status.Failed() || straight.Empty() {
		return res
	}
	if status.Detail(detour.DT_BUFFER_TOO_SMALL) {
		last, _ := straight.Top()
		if last.Flags&detour.DT_STRAIGHTPATH_END == 0 {
			return res
		}
	}

	res.Points = make([]mgl32.Vec3, 0, straight.Len())
	for _, p := range straight.Slice() {
		res.Points = append(res.Points, mgl32.Vec3(p.Pos))
	}
	res.Polys = append([]detour.DtPolyRef(nil), polys.Slice()...)
	res.Success = true
	return res
}

// RaycastResult describes a surface raycast. T is the hit fraction along
// start->end; it is math.MaxFloat32 when the ray reached the end.
type RaycastResult struct {
	Hit      bool
	T        float32
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	Polys    []detour.DtPolyRef
}

// RaycastSurface walks the mesh surface from start toward end. ok is false
// when start cannot be snapped or the query failed.
func (s *NavSystem) RaycastSurface(start, end mgl32.Vec3, opts ...QueryOption) (res RaycastResult, ok bool) {
	ss, err := s.acquire(opts)
	if err != nil {
		return res, false
	}
	defer ss.release()

	startRef, ns, ok := ss.snap(start)
	if !ok {
		return res, false
	}
	hit := detour.DtRaycastHit{Path: newPolyStack()}
	status := ss.q.Raycast(startRef, ns, end[:], ss.filter, &hit)
	if status.Failed() {
		return res, false
	}
	res.T = hit.T
	res.Polys = append([]detour.DtPolyRef(nil), hit.Path.Slice()...)
	if hit.T > 1 {
		res.Position = end
		return res, true
	}
	res.Hit = true
	res.Normal = mgl32.Vec3(hit.HitNormal)
	snapped := mgl32.Vec3{ns[0], ns[1], ns[2]}
	res.Position = snapped.Add(end.Sub(snapped).Mul(hit.T))
	return res, true
}
