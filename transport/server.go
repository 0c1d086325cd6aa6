package transport

import (
	"context"
	"net"
	"time"
)

// Dispatcher runs one decoded request. ctx carries the request's MetaInfo;
// backward values the handler sets on it are returned to the caller.
type Dispatcher func(ctx context.Context, impl any, req *Request, enc Encoder) ([]byte, error)

type Server interface {
	Start() error
	Stop(ctx context.Context) error
	Name() string
}

type ServerOptions struct {
	Addr          string
	MaxInvoke     int32
	InvokeTimeout time.Duration
	ReadSize      int
	Tick          chan struct{}
}

func (opt *ServerOptions) hostPort() (string, string) {
	host, port, err := net.SplitHostPort(opt.Addr)
	if err != nil {
		return opt.Addr, ""
	}
	return host, port
}

// loadServerOptions starts from the server-config entry named name, when
// there is one, and applies opts on top.
func loadServerOptions(name string, opts ...ServerOption) *ServerOptions {
	option := &ServerOptions{
		ReadSize:  defaultReadBufSize,
		MaxInvoke: defaultMaxInvoke,
	}
	if cfg := GetServerConfig(name); cfg != nil {
		option.Addr = cfg.Addr()
		option.MaxInvoke = cfg.MaxInvoke
		option.ReadSize = int(cfg.ReadBufferSize)
		option.InvokeTimeout = cfg.InvokeTimeout
	}

	for _, opt := range opts {
		opt(option)
	}

	if option.MaxInvoke <= 0 {
		option.MaxInvoke = defaultMaxInvoke
	}
	if option.ReadSize <= 0 {
		option.ReadSize = defaultReadBufSize
	}
	option.Tick = make(chan struct{}, option.MaxInvoke)
	return option
}

type ServerOption func(opt *ServerOptions)

func WithServerOptionReadSize(size int) ServerOption {
	return func(opt *ServerOptions) {
		opt.ReadSize = size
	}
}

func WithServerOptionAddr(addr string) ServerOption {
	return func(opt *ServerOptions) {
		opt.Addr = addr
	}
}

func WithServerOptionMaxInvoke(n int32) ServerOption {
	return func(opt *ServerOptions) {
		opt.MaxInvoke = n
	}
}

func WithServerOptionInvokeTimeout(d time.Duration) ServerOption {
	return func(opt *ServerOptions) {
		opt.InvokeTimeout = d
	}
}
