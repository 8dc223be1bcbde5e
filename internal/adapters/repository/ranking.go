package repository

import "math/rand/v2"

// ranking is a treap ordered by XP desc, then player id asc, with subtree
// sizes so top-N walks stop early. It is not safe for concurrent use.
type ranking struct {
	root *node
	xp   map[int64]int
}

type node struct {
	id    int64
	xp    int
	prio  uint64
	left  *node
	right *node
	size  int
}

func newRanking() *ranking {
	return &ranking{xp: make(map[int64]int)}
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less reports whether (aXP, aID) ranks before (bXP, bID).
func less(aXP int, aID int64, bXP int, bID int64) bool {
	if aXP != bXP {
		return aXP > bXP
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id int64, xp int) *node {
	if n == nil {
		return &node{id: id, xp: xp, prio: rand.Uint64(), size: 1}
	}
	if less(xp, id, n.xp, n.id) {
		n.left = insert(n.left, id, xp)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, xp)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func remove(n *node, id int64, xp int) *node {
	if n == nil {
		return nil
	}
	switch {
	case n.id == id && n.xp == xp:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = remove(n.right, id, xp)
		} else {
			n = rotateLeft(n)
			n.left = remove(n.left, id, xp)
		}
	case less(xp, id, n.xp, n.id):
		n.left = remove(n.left, id, xp)
	default:
		n.right = remove(n.right, id, xp)
	}
	fix(n)
	return n
}

// set places id at xp, moving it if it was already ranked.
func (r *ranking) set(id int64, xp int) {
	if old, ok := r.xp[id]; ok {
		if old == xp {
			return
		}
		r.root = remove(r.root, id, old)
	}
	r.xp[id] = xp
	r.root = insert(r.root, id, xp)
}

// top returns up to limit ids in rank order.
func (r *ranking) top(limit int) []int64 {
	out := make([]int64, 0, min(limit, nsize(r.root)))
	collectTop(r.root, limit, &out)
	return out
}

func collectTop(n *node, limit int, out *[]int64) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTop(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n.id)
	}
	if len(*out) < limit {
		collectTop(n.right, limit, out)
	}
}

// rank returns the 1-based position of id, or 0 when unranked.
func (r *ranking) rank(id int64) int {
	xp, ok := r.xp[id]
	if !ok {
		return 0
	}
	pos := 0
	for n := r.root; n != nil; {
		switch {
		case n.id == id:
			return pos + nsize(n.left) + 1
		case less(xp, id, n.xp, n.id):
			n = n.left
		default:
			pos += nsize(n.left) + 1
			n = n.right
		}
	}
	return 0
}

func (r *ranking) size() int { return nsize(r.root) }
