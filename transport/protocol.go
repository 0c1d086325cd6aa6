package transport

import (
	"encoding/binary"
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	framePrefixSize = 4
	maxFrameSize    = 64 << 20
)

var (
	ErrFrameTooShort = errors.New("rpc: frame too short")
	ErrFrameLength   = errors.New("rpc: frame length mismatch")
)

type Request struct {
	RequestId int64
	Method    string
	Body      []byte
	Meta      Header
}

type Response struct {
	RequestId  int64
	Body       []byte
	Meta       Header
	Code       int32
	CodeStatus string
}

type Protocol interface {
	PacketRequest(request *Request) ([]byte, error)
	UnPacketRequest(frame []byte) (*Request, error)

	PacketResponse(response *Response) ([]byte, error)
	UnPacketResponse(frame []byte) (*Response, error)

	Name() string
}

// wrpcProtocol frames a protobuf encoded message behind a little-endian
// uint32 holding the total frame length, prefix included.
type wrpcProtocol struct{}

func newWRPCProtocol() Protocol {
	return &wrpcProtocol{}
}

const (
	reqFieldId     protowire.Number = 1
	reqFieldMethod protowire.Number = 2
	reqFieldBody   protowire.Number = 3
	reqFieldMeta   protowire.Number = 4

	respFieldId     protowire.Number = 1
	respFieldBody   protowire.Number = 2
	respFieldMeta   protowire.Number = 3
	respFieldCode   protowire.Number = 4
	respFieldStatus protowire.Number = 5
)

func (wp *wrpcProtocol) PacketRequest(request *Request) ([]byte, error) {
	b := make([]byte, framePrefixSize, 64+len(request.Body))
	if request.RequestId != 0 {
		b = protowire.AppendTag(b, reqFieldId, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(request.RequestId))
	}
	if request.Method != "" {
		b = protowire.AppendTag(b, reqFieldMethod, protowire.BytesType)
		b = protowire.AppendString(b, request.Method)
	}
	if len(request.Body) > 0 {
		b = protowire.AppendTag(b, reqFieldBody, protowire.BytesType)
		b = protowire.AppendBytes(b, request.Body)
	}
	b = appendMeta(b, reqFieldMeta, request.Meta)
	binary.LittleEndian.PutUint32(b, uint32(len(b)))
	return b, nil
}

func (wp *wrpcProtocol) UnPacketRequest(frame []byte) (*Request, error) {
	body, err := frameBody(frame)
	if err != nil {
		return nil, err
	}
	req := &Request{}
	err = consumeFields(body, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == reqFieldId && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			req.RequestId = int64(v)
			return n, nil
		case num == reqFieldMethod && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			req.Method = v
			return n, nil
		case num == reqFieldBody && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			req.Body = append([]byte(nil), v...)
			return n, nil
		case num == reqFieldMeta && typ == protowire.BytesType:
			if req.Meta == nil {
				req.Meta = make(Header)
			}
			return consumeMetaEntry(b, req.Meta)
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	if err != nil {
		return nil, fmt.Errorf("rpc: unpacket request: %w", err)
	}
	return req, nil
}

func (wp *wrpcProtocol) PacketResponse(response *Response) ([]byte, error) {
	b := make([]byte, framePrefixSize, 64+len(response.Body))
	if response.RequestId != 0 {
		b = protowire.AppendTag(b, respFieldId, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(response.RequestId))
	}
	if len(response.Body) > 0 {
		b = protowire.AppendTag(b, respFieldBody, protowire.BytesType)
		b = protowire.AppendBytes(b, response.Body)
	}
	b = appendMeta(b, respFieldMeta, response.Meta)
	if response.Code != 0 {
		b = protowire.AppendTag(b, respFieldCode, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(int64(response.Code)))
	}
	if response.CodeStatus != "" {
		b = protowire.AppendTag(b, respFieldStatus, protowire.BytesType)
		b = protowire.AppendString(b, response.CodeStatus)
	}
	binary.LittleEndian.PutUint32(b, uint32(len(b)))
	return b, nil
}

func (wp *wrpcProtocol) UnPacketResponse(frame []byte) (*Response, error) {
	body, err := frameBody(frame)
	if err != nil {
		return nil, err
	}
	resp := &Response{}
	err = consumeFields(body, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == respFieldId && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			resp.RequestId = int64(v)
			return n, nil
		case num == respFieldBody && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			resp.Body = append([]byte(nil), v...)
			return n, nil
		case num == respFieldMeta && typ == protowire.BytesType:
			if resp.Meta == nil {
				resp.Meta = make(Header)
			}
			return consumeMetaEntry(b, resp.Meta)
		case num == respFieldCode && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			resp.Code = int32(v)
			return n, nil
		case num == respFieldStatus && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			resp.CodeStatus = v
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	if err != nil {
		return nil, fmt.Errorf("rpc: unpacket response: %w", err)
	}
	return resp, nil
}

func (wp *wrpcProtocol) Name() string {
	return "proto-protocol"
}

func frameBody(frame []byte) ([]byte, error) {
	if len(frame) < framePrefixSize {
		return nil, ErrFrameTooShort
	}
	if int(binary.LittleEndian.Uint32(frame)) != len(frame) {
		return nil, ErrFrameLength
	}
	return frame[framePrefixSize:], nil
}

// appendMeta writes h as a protobuf map<string, string>: one length
// delimited entry per pair with key=1 and value=2.
func appendMeta(b []byte, num protowire.Number, h Header) []byte {
	for k, v := range h {
		size := protowire.SizeTag(1) + protowire.SizeBytes(len(k)) +
			protowire.SizeTag(2) + protowire.SizeBytes(len(v))
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendVarint(b, uint64(size))
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, k)
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendString(b, v)
	}
	return b
}

func consumeMetaEntry(b []byte, h Header) (int, error) {
	entry, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return n, nil
	}
	var k, v string
	err := consumeFields(entry, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ == protowire.BytesType && (num == 1 || num == 2) {
			s, m := protowire.ConsumeString(b)
			if num == 1 {
				k = s
			} else {
				v = s
			}
			return m, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	if err != nil {
		return 0, err
	}
	h[k] = v
	return n, nil
}

func consumeFields(b []byte, field func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		m, err := field(num, typ, b)
		if err != nil {
			return err
		}
		if m < 0 {
			return protowire.ParseError(m)
		}
		b = b[m:]
	}
	return nil
}

type frameState int

const (
	frameFull frameState = iota + 1
	frameNeedRead
	frameErr
)

// readFrame splits the first complete frame off bs.
func readFrame(bs []byte, maxSize int) ([]byte, int, frameState) {
	if len(bs) < framePrefixSize {
		return nil, 0, frameNeedRead
	}
	n := int(binary.LittleEndian.Uint32(bs))
	if n <= framePrefixSize || (maxSize > 0 && n > maxSize) {
		return nil, 0, frameErr
	}
	if n <= len(bs) {
		return bs[:n], n, frameFull
	}
	return nil, 0, frameNeedRead
}
