package quadtree

// VisitHierarchyToKey walks from start toward key, calling visitor on each
// node of the path, start first. It stops at the node matching key or at the
// deepest existing ancestor of key, and returns that node. It never
// subdivides.
func (t *Tree[T]) VisitHierarchyToKey(start NodeID, key Key, visitor func(NodeID)) NodeID {
	current := start
	for {
		visitor(current)

		k := t.Key(current)
		if k.Level >= key.Level {
			return current
		}

		childKey := CreateAncestorKey(key, k.Level+1)
		next := InvalidNode
		for _, c := range t.Children(current) {
			if c != InvalidNode && t.Key(c) == childKey {
				next = c
				break
			}
		}
		if next == InvalidNode {
			return current
		}
		current = next
	}
}

// PruneTree removes nodes below and including start, bottom-up.
// Nodes for which shouldTraverse is false are left alone together with their
// subtree. A traversed node is pruned when it is not the tree root, has no
// remaining children and shouldKeep is false. onPrune runs exactly once per
// pruned node, children before parents, while the node is still readable.
func (t *Tree[T]) PruneTree(start NodeID, shouldTraverse, shouldKeep func(NodeID) bool, onPrune func(NodeID)) {
	t.prune(start, shouldTraverse, shouldKeep, onPrune)
}

func (t *Tree[T]) prune(id NodeID, shouldTraverse, shouldKeep func(NodeID) bool, onPrune func(NodeID)) bool {
	if !shouldTraverse(id) {
		return false
	}

	for _, c := range t.Children(id) {
		if c != InvalidNode {
			t.prune(c, shouldTraverse, shouldKeep, onPrune)
		}
	}

	if id == t.root || t.HasChildren(id) || shouldKeep(id) {
		return false
	}

	if onPrune != nil {
		onPrune(id)
	}
	t.detach(id)
	return true
}
