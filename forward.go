package metainfo

// direction selects the forward (caller to callee) or backward (callee to
// caller) node of a MetaInfo.
type direction int

const (
	dirForward direction = iota
	dirBackward
)

func (mi *MetaInfo) getKV(dir direction, seg segment, key string) (string, bool) {
	return mi.node(dir).get(seg, key)
}

func (mi *MetaInfo) setKV(dir direction, seg segment, key, value string) {
	mi.ensureNode(dir).set(seg, key, value)
}

func (mi *MetaInfo) delKV(dir direction, seg segment, key string) (string, bool) {
	return mi.node(dir).del(seg, key)
}

func (mi *MetaInfo) allKV(dir direction, seg segment) map[string]string {
	return mi.node(dir).all(seg)
}

// stripAndSetKV writes value under key minus its prefix. Keys without the
// prefix are ignored.
func (mi *MetaInfo) stripAndSetKV(dir direction, seg segment, strip func(string) (string, bool), key, value string) {
	if k, ok := strip(key); ok {
		mi.setKV(dir, seg, k, value)
	}
}

func (mi *MetaInfo) GetPersistent(key string) (string, bool) {
	return mi.getKV(dirForward, segPersistent, key)
}

func (mi *MetaInfo) GetTransient(key string) (string, bool) {
	return mi.getKV(dirForward, segTransient, key)
}

// GetUpstream returns a transient value received from the caller.
func (mi *MetaInfo) GetUpstream(key string) (string, bool) {
	return mi.getKV(dirForward, segStale, key)
}

// GetAllPersistents returns the live persistent map, nil if none was ever
// set. Callers must not modify it.
func (mi *MetaInfo) GetAllPersistents() map[string]string {
	return mi.allKV(dirForward, segPersistent)
}

func (mi *MetaInfo) GetAllTransients() map[string]string {
	return mi.allKV(dirForward, segTransient)
}

func (mi *MetaInfo) GetAllUpstreams() map[string]string {
	return mi.allKV(dirForward, segStale)
}

func (mi *MetaInfo) SetPersistent(key, value string) {
	mi.setKV(dirForward, segPersistent, key, value)
}

func (mi *MetaInfo) SetTransient(key, value string) {
	mi.setKV(dirForward, segTransient, key, value)
}

func (mi *MetaInfo) SetUpstream(key, value string) {
	mi.setKV(dirForward, segStale, key, value)
}

func (mi *MetaInfo) DelPersistent(key string) (string, bool) {
	return mi.delKV(dirForward, segPersistent, key)
}

func (mi *MetaInfo) DelTransient(key string) (string, bool) {
	return mi.delKV(dirForward, segTransient, key)
}

func (mi *MetaInfo) DelUpstream(key string) (string, bool) {
	return mi.delKV(dirForward, segStale, key)
}

// StripRPCPrefixAndSetPersistent sets RPC_PERSIST_KEY as persistent KEY.
func (mi *MetaInfo) StripRPCPrefixAndSetPersistent(key, value string) {
	mi.stripAndSetKV(dirForward, segPersistent, RPCConverter{}.RemovePersistentPrefix, key, value)
}

// StripRPCPrefixAndSetUpstream sets RPC_TRANSIT_KEY as upstream KEY: what
// the caller sent as transient is upstream data for the callee.
func (mi *MetaInfo) StripRPCPrefixAndSetUpstream(key, value string) {
	mi.stripAndSetKV(dirForward, segStale, RPCConverter{}.RemoveTransientPrefix, key, value)
}

func (mi *MetaInfo) StripHTTPPrefixAndSetPersistent(key, value string) {
	mi.stripAndSetKV(dirForward, segPersistent, HTTPConverter{}.RemovePersistentPrefix, key, value)
}

func (mi *MetaInfo) StripHTTPPrefixAndSetUpstream(key, value string) {
	mi.stripAndSetKV(dirForward, segStale, HTTPConverter{}.RemoveTransientPrefix, key, value)
}

// GetAllPersistentsAndTransientsWithRPCPrefix returns persistents and
// transients merged into a new map with RPC prefixes, or nil when both are
// empty.
func (mi *MetaInfo) GetAllPersistentsAndTransientsWithRPCPrefix() map[string]string {
	return mi.persistentsAndTransients(RPCConverter{})
}

func (mi *MetaInfo) GetAllPersistentsAndTransientsWithHTTPPrefix() map[string]string {
	return mi.persistentsAndTransients(HTTPConverter{})
}

// RangePersistentsAndTransientsWithRPCPrefix calls fn for each prefixed
// persistent then each prefixed transient until fn returns false.
func (mi *MetaInfo) RangePersistentsAndTransientsWithRPCPrefix(fn func(key, value string) bool) {
	mi.rangePersistentsAndTransients(RPCConverter{}, fn)
}

func (mi *MetaInfo) RangePersistentsAndTransientsWithHTTPPrefix(fn func(key, value string) bool) {
	mi.rangePersistentsAndTransients(HTTPConverter{}, fn)
}

func (mi *MetaInfo) persistentsAndTransients(c Converter) map[string]string {
	n := mi.node(dirForward)
	size := n.len(segPersistent) + n.len(segTransient)
	if size == 0 {
		return nil
	}
	out := make(map[string]string, size)
	mi.rangePersistentsAndTransients(c, func(k, v string) bool {
		out[k] = v
		return true
	})
	return out
}

func (mi *MetaInfo) rangePersistentsAndTransients(c Converter, fn func(key, value string) bool) {
	n := mi.node(dirForward)
	for k, v := range n.all(segPersistent) {
		if !fn(c.AddPersistentPrefix(k), v) {
			return
		}
	}
	for k, v := range n.all(segTransient) {
		if !fn(c.AddTransientPrefix(k), v) {
			return
		}
	}
}
