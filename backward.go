package metainfo

// Backward data has no persistent segment: a response only travels one hop.

func (mi *MetaInfo) GetBackwardTransient(key string) (string, bool) {
	return mi.getKV(dirBackward, segTransient, key)
}

// GetBackwardDownstream returns a backward transient received from the
// callee.
func (mi *MetaInfo) GetBackwardDownstream(key string) (string, bool) {
	return mi.getKV(dirBackward, segStale, key)
}

func (mi *MetaInfo) GetAllBackwardTransients() map[string]string {
	return mi.allKV(dirBackward, segTransient)
}

func (mi *MetaInfo) GetAllBackwardDownstreams() map[string]string {
	return mi.allKV(dirBackward, segStale)
}

func (mi *MetaInfo) SetBackwardTransient(key, value string) {
	mi.setKV(dirBackward, segTransient, key, value)
}

func (mi *MetaInfo) SetBackwardDownstream(key, value string) {
	mi.setKV(dirBackward, segStale, key, value)
}

func (mi *MetaInfo) DelBackwardTransient(key string) (string, bool) {
	return mi.delKV(dirBackward, segTransient, key)
}

func (mi *MetaInfo) DelBackwardDownstream(key string) (string, bool) {
	return mi.delKV(dirBackward, segStale, key)
}

// StripRPCPrefixAndSetBackwardDownstream sets RPC_BACKWARD_KEY as backward
// downstream KEY.
func (mi *MetaInfo) StripRPCPrefixAndSetBackwardDownstream(key, value string) {
	mi.stripAndSetKV(dirBackward, segStale, RPCConverter{}.RemoveBackwardPrefix, key, value)
}

func (mi *MetaInfo) StripHTTPPrefixAndSetBackwardDownstream(key, value string) {
	mi.stripAndSetKV(dirBackward, segStale, HTTPConverter{}.RemoveBackwardPrefix, key, value)
}

// GetAllBackwardTransientsWithRPCPrefix returns the backward transients in
// a new map keyed with RPC_BACKWARD_, or nil when there are none. The peer
// reads them back with StripRPCPrefixAndSetBackwardDownstream.
//
// Peers built on the Rust metainfo crate export backward transients with the
// transient prefix (RPC_TRANSIT_, rpc-transit-) but strip the backward prefix
// on receipt. Values sent from here reach them; values they send back are
// not seen as downstreams here unless the transport renames the keys.
func (mi *MetaInfo) GetAllBackwardTransientsWithRPCPrefix() map[string]string {
	return mi.backwardTransients(RPCConverter{})
}

func (mi *MetaInfo) GetAllBackwardTransientsWithHTTPPrefix() map[string]string {
	return mi.backwardTransients(HTTPConverter{})
}

func (mi *MetaInfo) backwardTransients(c Converter) map[string]string {
	t := mi.allKV(dirBackward, segTransient)
	if len(t) == 0 {
		return nil
	}
	out := make(map[string]string, len(t))
	for k, v := range t {
		out[c.AddBackwardPrefix(k)] = v
	}
	return out
}
