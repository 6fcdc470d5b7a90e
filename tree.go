package hmap

import (
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Tree bins are red-black trees ordered by hash, then by the configured
// key comparator, then by entry handle. Every tree bin also keeps its
// entries in a doubly linked list (next/prev), the "linked view", which
// iteration and resize splitting walk. The bin head is the first entry of
// that list; movable operations make it the tree root as well.

// treeRoot returns the root of the tree that h belongs to.
func (m *Map[K, V]) treeRoot(h Handle) Handle {
	s := m.arena.slots
	for h != 0 && s[h].parent != 0 {
		h = s[h].parent
	}
	return h
}

// findTreeNode searches the subtree rooted at p for key.
func (m *Map[K, V]) findTreeNode(p Handle, hash uint32, key K) Handle {
	s := m.arena.slots
	for p != 0 {
		e := &s[p]
		pl, pr := e.left, e.right
		switch {
		case e.hash > hash:
			p = pl
		case e.hash < hash:
			p = pr
		case m.keyEqual(e.key, key):
			return p
		case pl == 0:
			p = pr
		case pr == 0:
			p = pl
		default:
			if m.keyCompare != nil {
				if dir := m.keyCompare(key, e.key); dir != 0 {
					if dir < 0 {
						p = pl
					} else {
						p = pr
					}
					continue
				}
			}
			// Equal hashes and no usable order: the key may be on either side.
			if q := m.findTreeNode(pr, hash, key); q != 0 {
				return q
			}
			p = pl
		}
	}
	return 0
}

// treeDir orders entry x relative to entry p for insertion. It never
// returns 0.
func (m *Map[K, V]) treeDir(x, p Handle) int {
	s := m.arena.slots
	xh, ph := s[x].hash, s[p].hash
	if ph > xh {
		return -1
	}
	if ph < xh {
		return 1
	}
	if m.keyCompare != nil {
		if dir := m.keyCompare(s[x].key, s[p].key); dir != 0 {
			return dir
		}
	}
	if x <= p {
		return -1
	}
	return 1
}

// moveRootToFront makes root the head of the linked view of bin index.
func (m *Map[K, V]) moveRootToFront(index int, root Handle) {
	if root == 0 {
		return
	}
	s := m.arena.slots
	first := m.table[index].head
	if root == first {
		return
	}
	m.table[index].head = root
	rp, rn := s[root].prev, s[root].next
	if rn != 0 {
		s[rn].prev = rp
	}
	if rp != 0 {
		s[rp].next = rn
	}
	if first != 0 {
		s[first].prev = root
	}
	s[root].next = first
	s[root].prev = 0
}

// treeifyBin converts the chain in bin index into a tree, or resizes the
// table instead when it is still smaller than MinTreeifyCapacity.
func (m *Map[K, V]) treeifyBin(index int) {
	if len(m.table) < MinTreeifyCapacity {
		m.resize()
		return
	}
	b := m.table[index]
	if b.kind != chainBin {
		return
	}
	s := m.arena.slots
	var prev Handle
	n := 0
	for e := b.head; e != 0; e = s[e].next {
		s[e].prev = prev
		prev = e
		n++
	}
	m.treeify(index, b.head)
	m.totalTreeifies++
	if ce := m.logger.Check(zap.DebugLevel, "hmap: treeify bin"); ce != nil {
		ce.Write(zap.Int("index", index), zap.Int("entries", n), zap.Int("capacity", len(m.table)))
	}
}

// treeify builds a red-black tree over the linked entries starting at head
// and stores it in bin index. The prev/next links must already be set.
func (m *Map[K, V]) treeify(index int, head Handle) {
	s := m.arena.slots
	var root Handle
	for x := head; x != 0; x = s[x].next {
		s[x].left, s[x].right = 0, 0
		if root == 0 {
			s[x].parent = 0
			s[x].red = false
			root = x
			continue
		}
		for p := root; ; {
			dir := m.treeDir(x, p)
			xp := p
			if dir <= 0 {
				p = s[p].left
			} else {
				p = s[p].right
			}
			if p == 0 {
				s[x].parent = xp
				if dir <= 0 {
					s[xp].left = x
				} else {
					s[xp].right = x
				}
				root = m.balanceInsertion(root, x)
				break
			}
		}
	}
	m.table[index] = bin{kind: treeBin, head: head}
	m.moveRootToFront(index, root)
}

// untreeify turns the linked view starting at head into a plain chain
// stored in bin index.
func (m *Map[K, V]) untreeify(index int, head Handle) {
	s := m.arena.slots
	for e := head; e != 0; e = s[e].next {
		s[e].prev, s[e].parent, s[e].left, s[e].right = 0, 0, 0, 0
		s[e].red = false
	}
	m.table[index] = bin{kind: chainBin, head: head}
	m.totalUntreeifies++
	if ce := m.logger.Check(zap.DebugLevel, "hmap: untreeify bin"); ce != nil {
		ce.Write(zap.Int("index", index), zap.Int("capacity", len(m.table)))
	}
}

// treeInsert links the freshly allocated entry x into the tree of bin
// index. The key of x must not already be present.
func (m *Map[K, V]) treeInsert(index int, x Handle) {
	s := m.arena.slots
	root := m.treeRoot(m.table[index].head)
	for p := root; ; {
		dir := m.treeDir(x, p)
		xp := p
		if dir <= 0 {
			p = s[p].left
		} else {
			p = s[p].right
		}
		if p != 0 {
			continue
		}
		// New entries follow their tree parent in the linked view.
		xpn := s[xp].next
		if dir <= 0 {
			s[xp].left = x
		} else {
			s[xp].right = x
		}
		s[xp].next = x
		s[x].next = xpn
		s[x].parent, s[x].prev = xp, xp
		if xpn != 0 {
			s[xpn].prev = x
		}
		m.moveRootToFront(index, m.balanceInsertion(root, x))
		return
	}
}

// removeTreeNode unlinks p from the tree bin index. When movable is set the
// root is moved to the front afterwards, and a bin that became too small
// is converted back into a chain. Iterator removal passes movable=false so
// that the linked order of the remaining entries is left alone.
func (m *Map[K, V]) removeTreeNode(index int, p Handle, movable bool) {
	s := m.arena.slots
	first := m.table[index].head
	succ, pred := s[p].next, s[p].prev
	if pred == 0 {
		first = succ
		m.table[index].head = succ
	} else {
		s[pred].next = succ
	}
	if succ != 0 {
		s[succ].prev = pred
	}
	if first == 0 {
		m.table[index] = bin{}
		return
	}
	// p is still part of the tree here, so this may be p itself.
	root := m.treeRoot(first)
	if movable {
		rl := s[root].left
		if s[root].right == 0 || rl == 0 || s[rl].left == 0 {
			m.untreeify(index, first)
			return
		}
	}

	pl, pr := s[p].left, s[p].right
	var replacement Handle
	if pl != 0 && pr != 0 {
		sc := pr
		for s[sc].left != 0 {
			sc = s[sc].left
		}
		s[sc].red, s[p].red = s[p].red, s[sc].red
		sr := s[sc].right
		pp := s[p].parent
		if sc == pr {
			s[p].parent = sc
			s[sc].right = p
		} else {
			sp := s[sc].parent
			s[p].parent = sp
			if sp != 0 {
				if sc == s[sp].left {
					s[sp].left = p
				} else {
					s[sp].right = p
				}
			}
			s[sc].right = pr
			if pr != 0 {
				s[pr].parent = sc
			}
		}
		s[p].left = 0
		s[p].right = sr
		if sr != 0 {
			s[sr].parent = p
		}
		s[sc].left = pl
		if pl != 0 {
			s[pl].parent = sc
		}
		s[sc].parent = pp
		switch {
		case pp == 0:
			root = sc
		case p == s[pp].left:
			s[pp].left = sc
		default:
			s[pp].right = sc
		}
		if sr != 0 {
			replacement = sr
		} else {
			replacement = p
		}
	} else if pl != 0 {
		replacement = pl
	} else if pr != 0 {
		replacement = pr
	} else {
		replacement = p
	}

	if replacement != p {
		pp := s[p].parent
		s[replacement].parent = pp
		switch {
		case pp == 0:
			root = replacement
			s[root].red = false
		case p == s[pp].left:
			s[pp].left = replacement
		default:
			s[pp].right = replacement
		}
		s[p].left, s[p].right, s[p].parent = 0, 0, 0
	}

	r := root
	if !s[p].red {
		r = m.balanceDeletion(root, replacement)
	}

	if replacement == p {
		m.detachTreeNode(p)
	}
	if movable {
		m.moveRootToFront(index, r)
	}
}

// detachTreeNode clears the parent's link to p.
func (m *Map[K, V]) detachTreeNode(p Handle) {
	s := m.arena.slots
	pp := s[p].parent
	s[p].parent = 0
	if pp != 0 {
		if p == s[pp].left {
			s[pp].left = 0
		} else if p == s[pp].right {
			s[pp].right = 0
		}
	}
}

// splitTree divides the tree bin at index of the old table into the lo
// bin (same index) and hi bin (index+bit) of the new table. The caller has
// already installed the new table.
func (m *Map[K, V]) splitTree(head Handle, index int, bit int) {
	s := m.arena.slots
	var loHead, loTail, hiHead, hiTail Handle
	lc, hc := 0, 0
	for e := head; e != 0; {
		next := s[e].next
		s[e].next = 0
		if s[e].hash&uint32(bit) == 0 {
			s[e].prev = loTail
			if loTail == 0 {
				loHead = e
			} else {
				s[loTail].next = e
			}
			loTail = e
			lc++
		} else {
			s[e].prev = hiTail
			if hiTail == 0 {
				hiHead = e
			} else {
				s[hiTail].next = e
			}
			hiTail = e
			hc++
		}
		e = next
	}
	if loHead != 0 {
		if lc <= UntreeifyThreshold {
			m.untreeify(index, loHead)
		} else {
			m.table[index] = bin{kind: treeBin, head: loHead}
			if hiHead != 0 {
				m.treeify(index, loHead)
			}
		}
	}
	if hiHead != 0 {
		if hc <= UntreeifyThreshold {
			m.untreeify(index+bit, hiHead)
		} else {
			m.table[index+bit] = bin{kind: treeBin, head: hiHead}
			if loHead != 0 {
				m.treeify(index+bit, hiHead)
			}
		}
	}
}

func (m *Map[K, V]) isRed(h Handle) bool {
	return h != 0 && m.arena.slots[h].red
}

func (m *Map[K, V]) rotateLeft(root, p Handle) Handle {
	s := m.arena.slots
	if p == 0 || s[p].right == 0 {
		return root
	}
	r := s[p].right
	rl := s[r].left
	s[p].right = rl
	if rl != 0 {
		s[rl].parent = p
	}
	pp := s[p].parent
	s[r].parent = pp
	switch {
	case pp == 0:
		root = r
		s[r].red = false
	case s[pp].left == p:
		s[pp].left = r
	default:
		s[pp].right = r
	}
	s[r].left = p
	s[p].parent = r
	return root
}

func (m *Map[K, V]) rotateRight(root, p Handle) Handle {
	s := m.arena.slots
	if p == 0 || s[p].left == 0 {
		return root
	}
	l := s[p].left
	lr := s[l].right
	s[p].left = lr
	if lr != 0 {
		s[lr].parent = p
	}
	pp := s[p].parent
	s[l].parent = pp
	switch {
	case pp == 0:
		root = l
		s[l].red = false
	case s[pp].right == p:
		s[pp].right = l
	default:
		s[pp].left = l
	}
	s[l].right = p
	s[p].parent = l
	return root
}

func (m *Map[K, V]) balanceInsertion(root, x Handle) Handle {
	s := m.arena.slots
	s[x].red = true
	for {
		xp := s[x].parent
		if xp == 0 {
			s[x].red = false
			return x
		}
		if !s[xp].red {
			return root
		}
		xpp := s[xp].parent
		if xpp == 0 {
			return root
		}
		if xppl := s[xpp].left; xp == xppl {
			if xppr := s[xpp].right; m.isRed(xppr) {
				s[xppr].red = false
				s[xp].red = false
				s[xpp].red = true
				x = xpp
				continue
			}
			if x == s[xp].right {
				x = xp
				root = m.rotateLeft(root, x)
				xp = s[x].parent
				xpp = 0
				if xp != 0 {
					xpp = s[xp].parent
				}
			}
			if xp != 0 {
				s[xp].red = false
				if xpp != 0 {
					s[xpp].red = true
					root = m.rotateRight(root, xpp)
				}
			}
		} else {
			if m.isRed(xppl) {
				s[xppl].red = false
				s[xp].red = false
				s[xpp].red = true
				x = xpp
				continue
			}
			if x == s[xp].left {
				x = xp
				root = m.rotateRight(root, x)
				xp = s[x].parent
				xpp = 0
				if xp != 0 {
					xpp = s[xp].parent
				}
			}
			if xp != 0 {
				s[xp].red = false
				if xpp != 0 {
					s[xpp].red = true
					root = m.rotateLeft(root, xpp)
				}
			}
		}
	}
}

func (m *Map[K, V]) balanceDeletion(root, x Handle) Handle {
	s := m.arena.slots
	for {
		if x == 0 || x == root {
			return root
		}
		xp := s[x].parent
		if xp == 0 {
			s[x].red = false
			return x
		}
		if s[x].red {
			s[x].red = false
			return root
		}
		if xpl := s[xp].left; xpl == x {
			xpr := s[xp].right
			if m.isRed(xpr) {
				s[xpr].red = false
				s[xp].red = true
				root = m.rotateLeft(root, xp)
				xp = s[x].parent
				xpr = 0
				if xp != 0 {
					xpr = s[xp].right
				}
			}
			if xpr == 0 {
				x = xp
				continue
			}
			sl, sr := s[xpr].left, s[xpr].right
			if !m.isRed(sr) && !m.isRed(sl) {
				s[xpr].red = true
				x = xp
				continue
			}
			if !m.isRed(sr) {
				if sl != 0 {
					s[sl].red = false
				}
				s[xpr].red = true
				root = m.rotateRight(root, xpr)
				xp = s[x].parent
				xpr = 0
				if xp != 0 {
					xpr = s[xp].right
				}
			}
			if xpr != 0 {
				s[xpr].red = xp != 0 && s[xp].red
				if sr = s[xpr].right; sr != 0 {
					s[sr].red = false
				}
			}
			if xp != 0 {
				s[xp].red = false
				root = m.rotateLeft(root, xp)
			}
			x = root
		} else {
			if m.isRed(xpl) {
				s[xpl].red = false
				s[xp].red = true
				root = m.rotateRight(root, xp)
				xp = s[x].parent
				xpl = 0
				if xp != 0 {
					xpl = s[xp].left
				}
			}
			if xpl == 0 {
				x = xp
				continue
			}
			sl, sr := s[xpl].left, s[xpl].right
			if !m.isRed(sl) && !m.isRed(sr) {
				s[xpl].red = true
				x = xp
				continue
			}
			if !m.isRed(sl) {
				if sr != 0 {
					s[sr].red = false
				}
				s[xpl].red = true
				root = m.rotateLeft(root, xpl)
				xp = s[x].parent
				xpl = 0
				if xp != 0 {
					xpl = s[xp].left
				}
			}
			if xpl != 0 {
				s[xpl].red = xp != 0 && s[xp].red
				if sl = s[xpl].left; sl != 0 {
					s[sl].red = false
				}
			}
			if xp != 0 {
				s[xp].red = false
				root = m.rotateRight(root, xp)
			}
			x = root
		}
	}
}

// verifyTree checks the structural invariants of the tree bin at index:
// linked view consistency, parent links, hash ordering, bucket placement
// and the red-black properties. It returns the number of entries.
func (m *Map[K, V]) verifyTree(index int) (int, error) {
	b := m.table[index]
	if b.kind != treeBin {
		return 0, errors.Newf("bin %d is %s, not a tree", index, b.kind)
	}
	s := m.arena.slots
	mask := uint32(len(m.table) - 1)
	n := 0
	var prev Handle
	for e := b.head; e != 0; e = s[e].next {
		if s[e].prev != prev {
			return 0, errors.Newf("bin %d: entry %d has prev %d, want %d", index, e, s[e].prev, prev)
		}
		if int(s[e].hash&mask) != index {
			return 0, errors.Newf("bin %d: entry %d belongs to bin %d", index, e, s[e].hash&mask)
		}
		prev = e
		n++
	}
	root := m.treeRoot(b.head)
	if s[root].red {
		return 0, errors.Newf("bin %d: red root %d", index, root)
	}
	count, _, err := m.verifySubtree(root)
	if err != nil {
		return 0, errors.Wrapf(err, "bin %d", index)
	}
	if count != n {
		return 0, errors.Newf("bin %d: tree holds %d entries, linked view %d", index, count, n)
	}
	return n, nil
}

// verifySubtree returns the node count and black height of the subtree at t.
func (m *Map[K, V]) verifySubtree(t Handle) (count, blackHeight int, err error) {
	if t == 0 {
		return 0, 1, nil
	}
	s := m.arena.slots
	tl, tr := s[t].left, s[t].right
	if tl != 0 && (s[tl].parent != t || s[tl].hash > s[t].hash) {
		return 0, 0, errors.Newf("entry %d: bad left child %d", t, tl)
	}
	if tr != 0 && (s[tr].parent != t || s[tr].hash < s[t].hash) {
		return 0, 0, errors.Newf("entry %d: bad right child %d", t, tr)
	}
	if s[t].red && (m.isRed(tl) || m.isRed(tr)) {
		return 0, 0, errors.Newf("entry %d: red entry with red child", t)
	}
	lc, lh, err := m.verifySubtree(tl)
	if err != nil {
		return 0, 0, err
	}
	rc, rh, err := m.verifySubtree(tr)
	if err != nil {
		return 0, 0, err
	}
	if lh != rh {
		return 0, 0, errors.Newf("entry %d: black heights %d and %d", t, lh, rh)
	}
	if !s[t].red {
		lh++
	}
	return lc + rc + 1, lh, nil
}
