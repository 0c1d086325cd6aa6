package transport

import (
	"encoding/json"
	"fmt"
	"sync"

	"google.golang.org/protobuf/proto"
)

type Encoder interface {
	Encode(v any) ([]byte, error)
	Decode(bs []byte, addr any) error
	Name() string
}

var (
	encMu  sync.RWMutex
	encMap = make(map[string]Encoder)
)

func init() {
	RegisterEncoder(&jsonEncoder{})
	RegisterEncoder(&protoEncoder{})
}

func RegisterEncoder(enc Encoder) {
	if enc == nil || enc.Name() == "" {
		return
	}
	encMu.Lock()
	encMap[enc.Name()] = enc
	encMu.Unlock()
}

func GetEncoder(name string) Encoder {
	encMu.RLock()
	defer encMu.RUnlock()
	return encMap[name]
}

const (
	EncoderJSON  = "json"
	EncoderProto = "proto"
)

type jsonEncoder struct{}

func (*jsonEncoder) Encode(v any) ([]byte, error)     { return json.Marshal(v) }
func (*jsonEncoder) Decode(bs []byte, addr any) error { return json.Unmarshal(bs, addr) }
func (*jsonEncoder) Name() string                     { return EncoderJSON }

type protoEncoder struct{}

func (*protoEncoder) Encode(v any) ([]byte, error) {
	msg, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("type %T not proto.Message", v)
	}
	return proto.Marshal(msg)
}

func (*protoEncoder) Decode(bs []byte, addr any) error {
	msg, ok := addr.(proto.Message)
	if !ok {
		return fmt.Errorf("type %T not proto.Message", addr)
	}
	return proto.Unmarshal(bs, msg)
}

func (*protoEncoder) Name() string {
	return EncoderProto
}
