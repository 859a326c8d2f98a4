package detour

import (
	"container/heap"
)

const (
	DT_NODE_OPEN   = 0x01
	DT_NODE_CLOSED = 0x02
)

type DtNodeIndex uint16

const DT_NULL_NODE_IDX = DtNodeIndex(^uint16(0))

type DtNode struct {
	Pos   [3]float32 // Position of the node.
	Cost  float32    // Cost from previous node to current node.
	Total float32    // Cost up to the node.
	Pidx  uint32     // Index to parent node, 0 is none.
	Flags uint32     // Node flags. A combination of DT_NODE_OPEN and DT_NODE_CLOSED.
	Id    DtPolyRef  // Polygon ref the node corresponds to.

	poolIdx uint32 // 1-based index in the owning pool
	heapIdx int    // position in the open list
}

func (node *DtNode) SetIndex(index int) { node.heapIdx = index }
func (node *DtNode) GetIndex() int      { return node.heapIdx }

type NodeQueueIndex interface {
	SetIndex(index int)
	GetIndex() int
}

// NodeQueue is a priority queue.
type NodeQueue[T NodeQueueIndex] interface {
	Peek() T  // top of the heap, not removed
	Poll() T  // removes and returns the top of the heap
	Update(T) // restores heap order after the element's key changed
	Offer(T)  // inserts an element
	Reset()
	Empty() bool
	Len() int
}

type nodeQueue[T NodeQueueIndex] struct {
	data []T
	less func(t1, t2 T) bool
}

func NewNodeQueue[T NodeQueueIndex](less func(t1, t2 T) bool) NodeQueue[T] {
	q := &nodeQueue[T]{less: less}
	heap.Init(q)
	return q
}

func (q *nodeQueue[T]) Reset()         { q.data = q.data[:0] }
func (q *nodeQueue[T]) Peek() T        { return q.data[0] }
func (q *nodeQueue[T]) Poll() T        { return heap.Pop(q).(T) }
func (q *nodeQueue[T]) Update(value T) { heap.Fix(q, value.GetIndex()) }
func (q *nodeQueue[T]) Offer(value T)  { heap.Push(q, value) }
func (q *nodeQueue[T]) Empty() bool    { return len(q.data) == 0 }

// heap.Interface

func (q *nodeQueue[T]) Push(x any) {
	v := x.(T)
	v.SetIndex(len(q.data))
	q.data = append(q.data, v)
}

func (q *nodeQueue[T]) Pop() any {
	n := len(q.data)
	v := q.data[n-1]
	var zero T
	q.data[n-1] = zero
	q.data = q.data[:n-1]
	v.SetIndex(-1)
	return v
}

func (q *nodeQueue[T]) Len() int           { return len(q.data) }
func (q *nodeQueue[T]) Less(i, j int) bool { return q.less(q.data[i], q.data[j]) }
func (q *nodeQueue[T]) Swap(i, j int) {
	q.data[i], q.data[j] = q.data[j], q.data[i]
	q.data[i].SetIndex(i)
	q.data[j].SetIndex(j)
}

// NewDtNodeQueue orders nodes by total cost, cheapest first.
func NewDtNodeQueue() NodeQueue[*DtNode] {
	return NewNodeQueue(func(a, b *DtNode) bool { return a.Total < b.Total })
}

func dtHashRef(a DtPolyRef) uint32 {
	a += ^(a << 15)
	a ^= a >> 10
	a += a << 3
	a ^= a >> 6
	a += ^(a << 11)
	a ^= a >> 16
	return uint32(a)
}

// DtNodePool hands out search nodes keyed by polygon ref. Nodes are
// preallocated so pointers stay valid until Clear.
type DtNodePool struct {
	nodes     []DtNode
	first     []DtNodeIndex
	next      []DtNodeIndex
	hashSize  int
	nodeCount int
}

func NewDtNodePool(maxNodes, hashSize int) *DtNodePool {
	// pidx is special as 0 means "none" and 1 is the first node.
	if maxNodes <= 0 || maxNodes >= int(DT_NULL_NODE_IDX) {
		panic("detour: node pool size out of range")
	}
	if hashSize <= 0 || hashSize&(hashSize-1) != 0 {
		panic("detour: node pool hash size must be a power of two")
	}
	p := &DtNodePool{
		nodes:    make([]DtNode, maxNodes),
		first:    make([]DtNodeIndex, hashSize),
		next:     make([]DtNodeIndex, maxNodes),
		hashSize: hashSize,
	}
	p.Clear()
	return p
}

func (p *DtNodePool) Clear() {
	for i := range p.first {
		p.first[i] = DT_NULL_NODE_IDX
	}
	p.nodeCount = 0
}

func (p *DtNodePool) MaxNodes() int  { return len(p.nodes) }
func (p *DtNodePool) NodeCount() int { return p.nodeCount }

func (p *DtNodePool) GetNodeIdx(node *DtNode) uint32 {
	if node == nil {
		return 0
	}
	return node.poolIdx
}

func (p *DtNodePool) GetNodeAtIdx(idx uint32) *DtNode {
	if idx == 0 {
		return nil
	}
	return &p.nodes[idx-1]
}

func (p *DtNodePool) FindNode(id DtPolyRef) *DtNode {
	bucket := dtHashRef(id) & uint32(p.hashSize-1)
	for i := p.first[bucket]; i != DT_NULL_NODE_IDX; i = p.next[i] {
		if p.nodes[i].Id == id {
			return &p.nodes[i]
		}
	}
	return nil
}

// GetNode returns the node for id, allocating it if needed. It returns nil
// once the pool is exhausted.
func (p *DtNodePool) GetNode(id DtPolyRef) *DtNode {
	if node := p.FindNode(id); node != nil {
		return node
	}
	if p.nodeCount >= len(p.nodes) {
		return nil
	}
	i := DtNodeIndex(p.nodeCount)
	p.nodeCount++

	// Init node
	node := &p.nodes[i]
	*node = DtNode{Id: id, poolIdx: uint32(i) + 1, heapIdx: -1}

	bucket := dtHashRef(id) & uint32(p.hashSize-1)
	p.next[i] = p.first[bucket]
	p.first[bucket] = i
	return node
}
