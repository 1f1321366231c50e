package transform

// TreeNode is one node of a forest built by BuildTree.
type TreeNode[T any] struct {
	Item     T              `json:"item"`
	Children []*TreeNode[T] `json:"children"`
}

// BuildTree arranges a flat list into a forest using parent references.
//
// An item whose parent is empty, unknown or itself becomes a root.
// Within a parent cycle the member that comes first in the input becomes
// a root and the rest hang below it. Siblings keep their input order.
// When IDs repeat, children attach to the first item with that ID.
func BuildTree[T any](items []T, id func(T) string, parent func(T) string) []*TreeNode[T] {
	nodes := make([]*TreeNode[T], len(items))
	index := make(map[string]int, len(items))
	for i, item := range items {
		nodes[i] = &TreeNode[T]{Item: item, Children: []*TreeNode[T]{}}
		if _, dup := index[id(item)]; !dup {
			index[id(item)] = i
		}
	}

	parentOf := func(i int) (int, bool) {
		p := parent(items[i])
		if p == "" {
			return 0, false
		}
		j, ok := index[p]
		if !ok || j == i {
			return 0, false
		}
		return j, true
	}

	roots := make([]*TreeNode[T], 0)
	for i := range items {
		j, ok := parentOf(i)
		if !ok || cycleHead(i, parentOf, len(items)) == i {
			roots = append(roots, nodes[i])
			continue
		}
		nodes[j].Children = append(nodes[j].Children, nodes[i])
	}
	return roots
}

// cycleHead returns the lowest index on the parent cycle through start,
// or -1 when start is not on a cycle.
func cycleHead(start int, parentOf func(int) (int, bool), limit int) int {
	head := start
	cur := start
	for steps := 0; steps < limit; steps++ {
		next, ok := parentOf(cur)
		if !ok {
			return -1
		}
		if next == start {
			return head
		}
		if next < head {
			head = next
		}
		cur = next
	}
	return -1
}
