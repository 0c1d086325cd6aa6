package handler

import (
	"context"
	"fmt"

	"github.com/wukong-cloud/metainfo"
	"github.com/wukong-cloud/metainfo/transport"
	"github.com/wukong-cloud/metainfo/util/logx"
	"github.com/wukong-cloud/metainfo/util/uerror"
)

const (
	ServerName     = "HelloServer"
	MethodSayHello = "SayHello"
)

type HelloReq struct {
	Name string `json:"name"`
}

type HelloResp struct {
	Message string `json:"message"`
}

type HelloServer interface {
	SayHello(ctx context.Context, req *HelloReq) (*HelloResp, error)
}

type HelloServerImpl struct{}

func (s *HelloServerImpl) SayHello(ctx context.Context, req *HelloReq) (*HelloResp, error) {
	mi, _ := metainfo.FromContext(ctx)
	logID, _ := mi.GetPersistent(transport.LogIDKey)
	logx.Log("say hello", logx.Kv("name", req.Name), logx.Kv("log-id", logID))
	mi.SetBackwardTransient("SERVED_BY", ServerName)
	return &HelloResp{Message: "hello " + req.Name}, nil
}

// Dispatch routes a request to impl, which must implement HelloServer.
func Dispatch(ctx context.Context, impl any, req *transport.Request, enc transport.Encoder) ([]byte, error) {
	srv, ok := impl.(HelloServer)
	if !ok {
		return nil, fmt.Errorf("impl %T is not a HelloServer", impl)
	}
	switch req.Method {
	case MethodSayHello:
		in := &HelloReq{}
		if err := enc.Decode(req.Body, in); err != nil {
			return nil, err
		}
		out, err := srv.SayHello(ctx, in)
		if err != nil {
			return nil, err
		}
		return enc.Encode(out)
	}
	return nil, uerror.ErrMethodNotFound
}
