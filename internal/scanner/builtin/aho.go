package builtin

import "github.com/lefred/mysql-component-viruscan/internal/sigdb"

// acNode is one state of the Aho-Corasick automaton.
type acNode struct {
	next map[byte]*acNode
	fail *acNode
	out  []int // indexes into automaton.sigs
}

// automaton is a multi-pattern matcher over body signatures. It is
// read-only after build and safe for concurrent use.
type automaton struct {
	root *acNode
	sigs []sigdb.BodySignature
}

func buildAutomaton(sigs []sigdb.BodySignature) *automaton {
	root := &acNode{next: make(map[byte]*acNode)}
	for i, s := range sigs {
		cur := root
		for _, b := range s.Pattern {
			nxt, ok := cur.next[b]
			if !ok {
				nxt = &acNode{next: make(map[byte]*acNode)}
				cur.next[b] = nxt
			}
			cur = nxt
		}
		cur.out = append(cur.out, i)
	}
	// BFS failure links
	queue := make([]*acNode, 0, len(root.next))
	for _, n := range root.next {
		n.fail = root
		queue = append(queue, n)
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for b, nxt := range n.next {
			f := n.fail
			for f != nil && f.next[b] == nil {
				f = f.fail
			}
			if f == nil {
				nxt.fail = root
			} else {
				nxt.fail = f.next[b]
			}
			if len(nxt.fail.out) > 0 {
				nxt.out = append(nxt.out, nxt.fail.out...)
			}
			queue = append(queue, nxt)
		}
	}
	return &automaton{root: root, sigs: sigs}
}

// match calls hit with the index of each signature as its pattern ends in
// data. hit returns false to stop the walk.
func (a *automaton) match(data []byte, hit func(sig int) bool) {
	n := a.root
	for _, b := range data {
		for n != a.root && n.next[b] == nil {
			n = n.fail
		}
		if nxt := n.next[b]; nxt != nil {
			n = nxt
		}
		for _, i := range n.out {
			if !hit(i) {
				return
			}
		}
	}
}
