// Package metainfo carries out-of-band request metadata between components
// of one process and between client and server across process boundaries.
//
// A MetaInfo holds two kinds of information:
//
//   - typed values, keyed by their Go type (Insert, Get, Remove, Contains)
//     plus string values keyed by a marker type (InsertFastStr, GetFastStr)
//     and plain string key/values (InsertString, GetString);
//   - string key/values meant for the wire, split by direction. Forward data
//     flows from caller to callee and is either persistent (survives the whole
//     call chain) or transient (survives one hop). Backward data flows from
//     callee back to caller.
//
// MetaInfo values form a tree. Derive splits a scope into two siblings so a
// nested call cannot corrupt its caller's view; lookups fall back to the
// parent chain, writes and removals only touch the current scope. A parent is
// never mutated once shared, so concurrent children may read it without
// locks. A single MetaInfo must not be written from more than one goroutine.
//
// Wire keys use fixed prefixes, RPC_PERSIST_, RPC_TRANSIT_ and RPC_BACKWARD_
// for RPC transports and rpc-persist-, rpc-transit- and rpc-backward- for
// HTTP style transports. See RPCConverter and HTTPConverter.
package metainfo
