package metainfo

// segment selects one of the three maps of a node.
type segment int

const (
	segPersistent segment = iota
	segTransient
	// segStale holds data flowing against the node's direction: upstream
	// values in the forward node, downstream values in the backward node.
	segStale
	segCount
)

func (s segment) String() string {
	switch s {
	case segPersistent:
		return "persistent"
	case segTransient:
		return "transient"
	case segStale:
		return "stale"
	default:
		return "unknown"
	}
}

// node is the string k-v store of one direction. A nil segment map and an
// empty one both mean "no entries"; maps are allocated on first write.
type node struct {
	segs [segCount]map[string]string
}

func (n *node) get(seg segment, key string) (string, bool) {
	if n == nil || n.segs[seg] == nil {
		return "", false
	}
	v, ok := n.segs[seg][key]
	return v, ok
}

func (n *node) set(seg segment, key, value string) {
	if n.segs[seg] == nil {
		n.segs[seg] = make(map[string]string, defaultMapSize)
	}
	n.segs[seg][key] = value
}

func (n *node) del(seg segment, key string) (string, bool) {
	if n == nil || n.segs[seg] == nil {
		return "", false
	}
	v, ok := n.segs[seg][key]
	if ok {
		delete(n.segs[seg], key)
	}
	return v, ok
}

// all returns the live map of seg, nil if it was never allocated.
func (n *node) all(seg segment) map[string]string {
	if n == nil {
		return nil
	}
	return n.segs[seg]
}

func (n *node) len(seg segment) int {
	if n == nil {
		return 0
	}
	return len(n.segs[seg])
}

// extend merges other into n. A segment missing in n is adopted wholesale,
// otherwise other's values win key by key.
func (n *node) extend(other *node) {
	if other == nil {
		return
	}
	for seg, m := range other.segs {
		if m == nil {
			continue
		}
		if n.segs[seg] == nil {
			n.segs[seg] = m
			continue
		}
		for k, v := range m {
			n.segs[seg][k] = v
		}
	}
}

func (n *node) clone() *node {
	if n == nil {
		return nil
	}
	c := &node{}
	for seg, m := range n.segs {
		if m == nil {
			continue
		}
		cm := make(map[string]string, max(len(m), defaultMapSize))
		for k, v := range m {
			cm[k] = v
		}
		c.segs[seg] = cm
	}
	return c
}

func (n *node) clear() {
	if n == nil {
		return
	}
	for _, m := range n.segs {
		clear(m)
	}
}
