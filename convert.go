package metainfo

import (
	"strings"
	"unicode/utf8"
)

// Prefixes every framework must use on the wire.
const (
	RPCPrefixPersistent = "RPC_PERSIST_"
	RPCPrefixTransient  = "RPC_TRANSIT_"
	RPCPrefixBackward   = "RPC_BACKWARD_"

	HTTPPrefixPersistent = "rpc-persist-"
	HTTPPrefixTransient  = "rpc-transit-"
	HTTPPrefixBackward   = "rpc-backward-"
)

// inlineSize is the key length below which HTTP prefixing translates into a
// stack buffer.
const inlineSize = 24

// Converter adds and removes the wire prefixes of one naming style.
// Keys stored in a MetaInfo are always upper-snake without prefix.
type Converter interface {
	AddPersistentPrefix(key string) string
	AddTransientPrefix(key string) string
	AddBackwardPrefix(key string) string

	RemovePersistentPrefix(key string) (string, bool)
	RemoveTransientPrefix(key string) (string, bool)
	RemoveBackwardPrefix(key string) (string, bool)
}

var (
	_ Converter = RPCConverter{}
	_ Converter = HTTPConverter{}
)

// RPCConverter handles RPC_PERSIST_TEST_KEY style keys. The suffix is kept
// verbatim.
type RPCConverter struct{}

func (RPCConverter) addPrefix(prefix, key string) string {
	return prefix + key
}

func (RPCConverter) removePrefix(prefix, key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, prefix)
	if !ok {
		return "", false
	}
	return rest, true
}

func (c RPCConverter) AddPersistentPrefix(key string) string {
	return c.addPrefix(RPCPrefixPersistent, key)
}

func (c RPCConverter) AddTransientPrefix(key string) string {
	return c.addPrefix(RPCPrefixTransient, key)
}

func (c RPCConverter) AddBackwardPrefix(key string) string {
	return c.addPrefix(RPCPrefixBackward, key)
}

func (c RPCConverter) RemovePersistentPrefix(key string) (string, bool) {
	return c.removePrefix(RPCPrefixPersistent, key)
}

func (c RPCConverter) RemoveTransientPrefix(key string) (string, bool) {
	return c.removePrefix(RPCPrefixTransient, key)
}

func (c RPCConverter) RemoveBackwardPrefix(key string) (string, bool) {
	return c.removePrefix(RPCPrefixBackward, key)
}

// HTTPConverter handles rpc-persist-test-key style keys. Adding a prefix
// turns the upper-snake suffix into lower-kebab, removing one turns it back.
type HTTPConverter struct{}

// ToHTTPFormat converts RPC_PERSIST_TEST_KEY to rpc-persist-test-key.
// Characters other than A-Z and '_' are left untouched.
func ToHTTPFormat(key string) string {
	buf := make([]byte, 0, len(key))
	return string(appendHTTPFormat(buf, key))
}

// ToRPCFormat converts rpc-persist-test-key to RPC_PERSIST_TEST_KEY.
// Characters other than a-z and '-' are left untouched.
func ToRPCFormat(key string) string {
	buf := make([]byte, 0, len(key))
	return string(appendRPCFormat(buf, key))
}

func appendHTTPFormat(dst []byte, key string) []byte {
	return appendMapped(dst, key, func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		case r == '_':
			return '-'
		}
		return r
	})
}

func appendRPCFormat(dst []byte, key string) []byte {
	return appendMapped(dst, key, func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - ('a' - 'A')
		case r == '-':
			return '_'
		}
		return r
	})
}

// appendMapped maps key character by character. Multi-byte characters and
// invalid bytes are copied as they are, so the output has the same length as
// the input.
func appendMapped(dst []byte, key string, mapping func(rune) rune) []byte {
	for i := 0; i < len(key); {
		r, size := utf8.DecodeRuneInString(key[i:])
		if size == 1 && r < utf8.RuneSelf {
			dst = append(dst, byte(mapping(r)))
		} else {
			dst = append(dst, key[i:i+size]...)
		}
		i += size
	}
	return dst
}

func (HTTPConverter) addPrefix(prefix, key string) string {
	n := len(prefix) + len(key)
	if n <= inlineSize {
		var buf [inlineSize]byte
		b := append(buf[:0], prefix...)
		b = appendHTTPFormat(b, key)
		return string(b)
	}
	b := make([]byte, 0, n)
	b = append(b, prefix...)
	return string(appendHTTPFormat(b, key))
}

func (HTTPConverter) removePrefix(prefix, key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, prefix)
	if !ok {
		return "", false
	}
	if len(rest) <= inlineSize {
		var buf [inlineSize]byte
		return string(appendRPCFormat(buf[:0], rest)), true
	}
	return ToRPCFormat(rest), true
}

func (c HTTPConverter) AddPersistentPrefix(key string) string {
	return c.addPrefix(HTTPPrefixPersistent, key)
}

func (c HTTPConverter) AddTransientPrefix(key string) string {
	return c.addPrefix(HTTPPrefixTransient, key)
}

func (c HTTPConverter) AddBackwardPrefix(key string) string {
	return c.addPrefix(HTTPPrefixBackward, key)
}

func (c HTTPConverter) RemovePersistentPrefix(key string) (string, bool) {
	return c.removePrefix(HTTPPrefixPersistent, key)
}

func (c HTTPConverter) RemoveTransientPrefix(key string) (string, bool) {
	return c.removePrefix(HTTPPrefixTransient, key)
}

func (c HTTPConverter) RemoveBackwardPrefix(key string) (string, bool) {
	return c.removePrefix(HTTPPrefixBackward, key)
}
