package transport

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProtocolRequest(t *testing.T) {
	p := newWRPCProtocol()
	req := &Request{
		RequestId: 42,
		Method:    "SayHello",
		Body:      []byte(`{"name":"world"}`),
		Meta: Header{
			EncodeType:             EncoderJSON,
			"RPC_PERSIST_TRACE_ID": "t1",
			"RPC_TRANSIT_HOP":      "",
		},
	}
	frame, err := p.PacketRequest(req)
	require.NoError(t, err)
	assert.Equal(t, uint32(len(frame)), binary.LittleEndian.Uint32(frame))

	got, err := p.UnPacketRequest(frame)
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestProtocolResponse(t *testing.T) {
	p := newWRPCProtocol()
	resp := &Response{
		RequestId:  7,
		Body:       []byte("ok"),
		Meta:       Header{"RPC_BACKWARD_COST": "3"},
		Code:       404,
		CodeStatus: "method not found",
	}
	frame, err := p.PacketResponse(resp)
	require.NoError(t, err)

	got, err := p.UnPacketResponse(frame)
	require.NoError(t, err)
	assert.Equal(t, resp, got)
}

func TestProtocolEmptyFields(t *testing.T) {
	p := newWRPCProtocol()
	frame, err := p.PacketResponse(&Response{})
	require.NoError(t, err)
	assert.Len(t, frame, framePrefixSize)

	got, err := p.UnPacketResponse(frame)
	require.NoError(t, err)
	assert.Equal(t, &Response{}, got)
}

func TestProtocolMalformed(t *testing.T) {
	p := newWRPCProtocol()

	_, err := p.UnPacketRequest([]byte{1, 0})
	assert.ErrorIs(t, err, ErrFrameTooShort)

	frame, err := p.PacketRequest(&Request{RequestId: 1, Method: "m"})
	require.NoError(t, err)
	_, err = p.UnPacketRequest(frame[:len(frame)-1])
	assert.ErrorIs(t, err, ErrFrameLength)

	// length prefix is right but the body is a truncated field
	bad := make([]byte, framePrefixSize, 8)
	bad = append(bad, 0x12, 0x05, 'a')
	binary.LittleEndian.PutUint32(bad, uint32(len(bad)))
	_, err = p.UnPacketRequest(bad)
	assert.Error(t, err)
	_, err = p.UnPacketResponse(bad)
	assert.Error(t, err)
}

func TestProtocolSkipsUnknownFields(t *testing.T) {
	p := newWRPCProtocol()
	frame, err := p.PacketRequest(&Request{RequestId: 3, Method: "m"})
	require.NoError(t, err)
	// field 15, varint 1
	frame = append(frame, 0x78, 0x01)
	binary.LittleEndian.PutUint32(frame, uint32(len(frame)))

	got, err := p.UnPacketRequest(frame)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.RequestId)
	assert.Equal(t, "m", got.Method)
}

func TestReadFrame(t *testing.T) {
	p := newWRPCProtocol()
	a, _ := p.PacketRequest(&Request{RequestId: 1, Method: "a"})
	b, _ := p.PacketRequest(&Request{RequestId: 2, Method: "b"})
	buf := append(append([]byte{}, a...), b[:3]...)

	frame, n, state := readFrame(buf, maxFrameSize)
	assert.Equal(t, frameFull, state)
	assert.Equal(t, len(a), n)
	assert.Equal(t, a, frame)

	_, _, state = readFrame(buf[n:], maxFrameSize)
	assert.Equal(t, frameNeedRead, state)

	_, _, state = readFrame([]byte{4, 0, 0, 0}, maxFrameSize)
	assert.Equal(t, frameErr, state)

	_, _, state = readFrame(a, len(a)-1)
	assert.Equal(t, frameErr, state)
}
