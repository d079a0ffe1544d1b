// Package quadtree implements an arena backed quadtree over a 2D domain,
// addressed by (level, x, y) keys.
package quadtree

import "fmt"

// NodeID addresses a node in a Tree's arena. IDs of removed nodes may be
// reused by later subdivisions.
type NodeID int32

const InvalidNode NodeID = -1

// TileCreator builds the payload for a new node.
type TileCreator[T any] func(key Key, bounds Box) T

type node[T any] struct {
	key      Key
	bounds   Box
	data     T
	parent   NodeID
	children [4]NodeID
	alive    bool
}

// Tree is a quadtree whose nodes live in an arena. Children are owned by
// their parent through IDs, parents are plain back references.
// A Tree is not safe for concurrent mutation.
type Tree[T any] struct {
	create TileCreator[T]
	nodes  []node[T]
	free   []NodeID
	root   NodeID
	count  int
}

func New[T any](create TileCreator[T], rootKey Key, rootBounds Box) *Tree[T] {
	t := &Tree[T]{create: create}
	t.root = t.alloc(rootKey, rootBounds, InvalidNode)
	return t
}

func (t *Tree[T]) alloc(key Key, bounds Box, parent NodeID) NodeID {
	n := node[T]{
		key:      key,
		bounds:   bounds,
		parent:   parent,
		children: [4]NodeID{InvalidNode, InvalidNode, InvalidNode, InvalidNode},
		alive:    true,
	}
	if t.create != nil {
		n.data = t.create(key, bounds)
	}

	t.count++
	if l := len(t.free); l > 0 {
		id := t.free[l-1]
		t.free = t.free[:l-1]
		t.nodes[id] = n
		return id
	}
	t.nodes = append(t.nodes, n)
	return NodeID(len(t.nodes) - 1)
}

func (t *Tree[T]) release(id NodeID) {
	t.nodes[id] = node[T]{parent: InvalidNode}
	t.free = append(t.free, id)
	t.count--
}

func (t *Tree[T]) get(id NodeID) *node[T] {
	if id < 0 || int(id) >= len(t.nodes) || !t.nodes[id].alive {
		panic(fmt.Sprintf("quadtree: invalid node %d", id))
	}
	return &t.nodes[id]
}

func (t *Tree[T]) Root() NodeID {
	return t.root
}

// Len returns the number of live nodes.
func (t *Tree[T]) Len() int {
	return t.count
}

// Valid reports whether id refers to a live node.
func (t *Tree[T]) Valid(id NodeID) bool {
	return id >= 0 && int(id) < len(t.nodes) && t.nodes[id].alive
}

func (t *Tree[T]) Key(id NodeID) Key {
	return t.get(id).key
}

func (t *Tree[T]) Bounds(id NodeID) Box {
	return t.get(id).bounds
}

func (t *Tree[T]) Data(id NodeID) T {
	return t.get(id).data
}

func (t *Tree[T]) SetData(id NodeID, data T) {
	t.get(id).data = data
}

// Parent returns InvalidNode for the root.
func (t *Tree[T]) Parent(id NodeID) NodeID {
	return t.get(id).parent
}

// Child returns child i (NW, NE, SW, SE) or InvalidNode.
func (t *Tree[T]) Child(id NodeID, i int) NodeID {
	return t.get(id).children[i]
}

func (t *Tree[T]) Children(id NodeID) [4]NodeID {
	return t.get(id).children
}

// HasChildren reports whether any child slot of id is occupied.
func (t *Tree[T]) HasChildren(id NodeID) bool {
	for _, c := range t.get(id).children {
		if c != InvalidNode {
			return true
		}
	}
	return false
}

// Subdivide creates the four children of a node that has none.
func (t *Tree[T]) Subdivide(id NodeID) [4]NodeID {
	if t.HasChildren(id) {
		panic(fmt.Sprintf("quadtree: subdivide of node %v which has children", t.Key(id)))
	}

	key := t.get(id).key
	bounds := t.get(id).bounds

	var children [4]NodeID
	for i := range children {
		// alloc may grow the arena, so the parent is looked up again below.
		children[i] = t.alloc(key.Child(i), bounds.Quadrant(i), id)
	}
	t.get(id).children = children
	return children
}

// SubdivideRecursively subdivides every leaf reached from id for which
// required holds.
func (t *Tree[T]) SubdivideRecursively(id NodeID, required func(NodeID) bool) {
	if !required(id) {
		return
	}
	if !t.HasChildren(id) {
		t.Subdivide(id)
	}
	for _, c := range t.Children(id) {
		if c != InvalidNode {
			t.SubdivideRecursively(c, required)
		}
	}
}

// Merge removes every descendant of id. onRemove, if set, sees each removed
// node before it is freed, children before parents.
func (t *Tree[T]) Merge(id NodeID, onRemove func(NodeID)) {
	n := t.get(id)
	children := n.children
	n.children = [4]NodeID{InvalidNode, InvalidNode, InvalidNode, InvalidNode}
	for _, c := range children {
		if c != InvalidNode {
			t.removeSubtree(c, onRemove)
		}
	}
}

func (t *Tree[T]) removeSubtree(id NodeID, onRemove func(NodeID)) {
	for _, c := range t.get(id).children {
		if c != InvalidNode {
			t.removeSubtree(c, onRemove)
		}
	}
	if onRemove != nil {
		onRemove(id)
	}
	t.release(id)
}

// detach removes a leaf from its parent and frees it.
func (t *Tree[T]) detach(id NodeID) {
	parent := t.get(id).parent
	if parent != InvalidNode {
		p := t.get(parent)
		for i, c := range p.children {
			if c == id {
				p.children[i] = InvalidNode
			}
		}
	}
	t.release(id)
}

// IntersectLeaf returns the leaf below id whose bounds contain p.
func (t *Tree[T]) IntersectLeaf(id NodeID, p Vec2) (NodeID, bool) {
	n := t.get(id)
	if !n.bounds.Contains(p) {
		return InvalidNode, false
	}
	if !t.HasChildren(id) {
		return id, true
	}
	for _, c := range n.children {
		if c == InvalidNode {
			continue
		}
		if leaf, ok := t.IntersectLeaf(c, p); ok {
			return leaf, true
		}
	}
	return InvalidNode, false
}

// Intersect returns the shallowest node below id containing p for which
// predicate holds.
func (t *Tree[T]) Intersect(id NodeID, p Vec2, predicate func(NodeID) bool) (NodeID, bool) {
	n := t.get(id)
	if !n.bounds.Contains(p) {
		return InvalidNode, false
	}
	if predicate(id) {
		return id, true
	}
	for _, c := range n.children {
		if c == InvalidNode {
			continue
		}
		if found, ok := t.Intersect(c, p, predicate); ok {
			return found, true
		}
	}
	return InvalidNode, false
}

// Walk visits id and all its descendants, parents before children.
func (t *Tree[T]) Walk(id NodeID, visit func(NodeID)) {
	visit(id)
	for _, c := range t.get(id).children {
		if c != InvalidNode {
			t.Walk(c, visit)
		}
	}
}
