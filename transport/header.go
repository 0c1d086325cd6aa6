package transport

import (
	"net/http"
	"strings"

	"github.com/wukong-cloud/metainfo"
)

// Header is the string metadata of one request or response frame. Keys with
// metainfo prefixes carry MetaInfo data, the others belong to the framework.
type Header map[string]string

const (
	EncodeType     = "encode-type"
	HeaderStyleKey = "header-style"
)

// HeaderStyle selects the key format a client writes metainfo with.
type HeaderStyle string

const (
	StyleRPC  HeaderStyle = "rpc"
	StyleHTTP HeaderStyle = "http"
)

func ParseHeaderStyle(s string) HeaderStyle {
	if HeaderStyle(strings.ToLower(strings.TrimSpace(s))) == StyleHTTP {
		return StyleHTTP
	}
	return StyleRPC
}

func (h Header) Set(k, v string) {
	if h == nil {
		return
	}
	h[k] = v
}

func (h Header) Get(k string) string {
	if h == nil {
		return ""
	}
	return h[k]
}

func (h Header) Has(k string) bool {
	if h == nil {
		return false
	}
	_, ok := h[k]
	return ok
}

func (h Header) Clone() Header {
	if h == nil {
		return nil
	}
	c := make(Header, len(h))
	for k, v := range h {
		c[k] = v
	}
	return c
}

// InjectRequest copies the forward persistents and transients of mi into h
// and returns how many keys were written.
func InjectRequest(mi *metainfo.MetaInfo, h Header, style HeaderStyle) int {
	n := 0
	fn := func(k, v string) bool {
		h[k] = v
		n++
		return true
	}
	if style == StyleHTTP {
		mi.RangePersistentsAndTransientsWithHTTPPrefix(fn)
	} else {
		mi.RangePersistentsAndTransientsWithRPCPrefix(fn)
	}
	return n
}

// ExtractRequest loads a received request header into mi: persistents stay
// persistent, transients become upstream values. Both key styles are read.
// It returns how many keys carried metainfo.
func ExtractRequest(mi *metainfo.MetaInfo, h Header) int {
	n := 0
	for k, v := range h {
		if extractForward(mi, rpcConv, k, v) || extractForward(mi, httpConv, k, v) {
			n++
		}
	}
	return n
}

var (
	rpcConv  metainfo.Converter = metainfo.RPCConverter{}
	httpConv metainfo.Converter = metainfo.HTTPConverter{}
)

func extractForward(mi *metainfo.MetaInfo, c metainfo.Converter, k, v string) bool {
	if key, ok := c.RemovePersistentPrefix(k); ok {
		mi.SetPersistent(key, v)
		return true
	}
	if key, ok := c.RemoveTransientPrefix(k); ok {
		mi.SetUpstream(key, v)
		return true
	}
	return false
}

func extractBackward(mi *metainfo.MetaInfo, c metainfo.Converter, k, v string) bool {
	if key, ok := c.RemoveBackwardPrefix(k); ok {
		mi.SetBackwardDownstream(key, v)
		return true
	}
	return false
}

// InjectResponse copies the backward transients of mi into h.
func InjectResponse(mi *metainfo.MetaInfo, h Header, style HeaderStyle) int {
	var all map[string]string
	if style == StyleHTTP {
		all = mi.GetAllBackwardTransientsWithHTTPPrefix()
	} else {
		all = mi.GetAllBackwardTransientsWithRPCPrefix()
	}
	for k, v := range all {
		h[k] = v
	}
	return len(all)
}

// ExtractResponse loads a received response header into mi as backward
// downstream values and returns how many keys it set.
func ExtractResponse(mi *metainfo.MetaInfo, h Header) int {
	n := 0
	for k, v := range h {
		if extractBackward(mi, rpcConv, k, v) || extractBackward(mi, httpConv, k, v) {
			n++
		}
	}
	return n
}

// net/http canonicalises header names (Rpc-Persist-Test-Key) while metainfo
// http keys are lower-kebab, so names are lower-cased before stripping.

func InjectHTTPRequest(mi *metainfo.MetaInfo, h http.Header) int {
	n := 0
	mi.RangePersistentsAndTransientsWithHTTPPrefix(func(k, v string) bool {
		h.Set(k, v)
		n++
		return true
	})
	return n
}

func ExtractHTTPRequest(mi *metainfo.MetaInfo, h http.Header) int {
	n := 0
	for k, vs := range h {
		if len(vs) == 0 {
			continue
		}
		if extractForward(mi, httpConv, strings.ToLower(k), vs[0]) {
			n++
		}
	}
	return n
}

func InjectHTTPResponse(mi *metainfo.MetaInfo, h http.Header) int {
	all := mi.GetAllBackwardTransientsWithHTTPPrefix()
	for k, v := range all {
		h.Set(k, v)
	}
	return len(all)
}

func ExtractHTTPResponse(mi *metainfo.MetaInfo, h http.Header) int {
	n := 0
	for k, vs := range h {
		if len(vs) == 0 {
			continue
		}
		if extractBackward(mi, httpConv, strings.ToLower(k), vs[0]) {
			n++
		}
	}
	return n
}
