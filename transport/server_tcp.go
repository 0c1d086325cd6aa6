package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/wukong-cloud/metainfo"
	"github.com/wukong-cloud/metainfo/internal/register"
	"github.com/wukong-cloud/metainfo/util/logx"
	"github.com/wukong-cloud/metainfo/util/uerror"
)

var (
	ErrServerIsRunning = errors.New("rpc: server is running")
	ErrServerIsClosed  = errors.New("rpc: server is closed")
)

const sideServer = "server"

type TcpServer struct {
	name     string
	opts     *ServerOptions
	listen   net.Listener
	conns    map[*tcpConn]struct{}
	mu       sync.Mutex
	protocol Protocol

	target *register.Target

	impl       any
	dispatcher Dispatcher

	doneChan chan struct{}
	running  bool
}

func NewRPCServer(name string, impl any, dispatcher Dispatcher, opts ...ServerOption) *TcpServer {
	srv := &TcpServer{
		name:     name,
		conns:    make(map[*tcpConn]struct{}),
		protocol: newWRPCProtocol(),

		impl:       impl,
		dispatcher: dispatcher,
	}
	srv.opts = loadServerOptions(name, opts...)
	ip, port := srv.opts.hostPort()
	srv.target = &register.Target{
		Name: name,
		IP:   ip,
		Port: port,
	}
	return srv
}

func (srv *TcpServer) Start() error {
	listen, err := net.Listen("tcp", srv.opts.Addr)
	if err != nil {
		return err
	}
	return srv.Serve(listen)
}

// Serve accepts connections on listen until Stop is called.
func (srv *TcpServer) Serve(listen net.Listener) error {
	srv.mu.Lock()
	if srv.running {
		srv.mu.Unlock()
		listen.Close()
		return ErrServerIsRunning
	}
	select {
	case <-srv.getDoneChanLocked():
		srv.mu.Unlock()
		listen.Close()
		return ErrServerIsClosed
	default:
	}

	logx.Logf("start rpc server %s listen %s", srv.name, listen.Addr())

	srv.listen = listen
	srv.running = true
	srv.mu.Unlock()

	var tempDelay time.Duration

	for {
		rw, err := listen.Accept()
		if err != nil {
			select {
			case <-srv.getDoneChan():
				return nil
			default:
			}
			logx.Logf("server %s listen accept failed:%v", srv.Name(), err)
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else {
					tempDelay *= 2
				}
				if max := 1 * time.Second; tempDelay > max {
					tempDelay = max
				}
				time.Sleep(tempDelay)
				continue
			}
			return err
		}
		tempDelay = 0
		conn := newConn(srv, rw)
		srv.addConn(conn)
		go conn.handle()
	}
}

func (srv *TcpServer) Stop(ctx context.Context) error {
	srv.mu.Lock()
	srv.closeDoneChanLocked()
	if !srv.running {
		srv.mu.Unlock()
		return nil
	}
	srv.listen.Close()
	srv.running = false
	conns := srv.conns
	srv.conns = make(map[*tcpConn]struct{})
	srv.mu.Unlock()

	for conn := range conns {
		conn.close()
	}
	return nil
}

func (srv *TcpServer) Name() string {
	return srv.name
}

func (srv *TcpServer) Target() *register.Target {
	return srv.target
}

func (srv *TcpServer) getDoneChan() <-chan struct{} {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return srv.getDoneChanLocked()
}

func (srv *TcpServer) getDoneChanLocked() chan struct{} {
	if srv.doneChan == nil {
		srv.doneChan = make(chan struct{})
	}
	return srv.doneChan
}

func (srv *TcpServer) closeDoneChanLocked() {
	ch := srv.getDoneChanLocked()
	select {
	case <-ch:
	default:
		close(ch)
	}
}

func (srv *TcpServer) addConn(conn *tcpConn) {
	srv.mu.Lock()
	srv.conns[conn] = struct{}{}
	srv.mu.Unlock()
}

func (srv *TcpServer) removeConn(conn *tcpConn) {
	srv.mu.Lock()
	delete(srv.conns, conn)
	srv.mu.Unlock()
}

type tcpConn struct {
	ip   string
	port string
	rw   net.Conn
	srv  *TcpServer
	mu   sync.Mutex
}

func newConn(srv *TcpServer, rw net.Conn) *tcpConn {
	ip, port, _ := net.SplitHostPort(rw.RemoteAddr().String())
	conn := &tcpConn{
		rw:   rw,
		srv:  srv,
		ip:   ip,
		port: port,
	}
	return conn
}

func (conn *tcpConn) handle() {
	defer logx.Recover()
	defer conn.close()

	var (
		buf     = make([]byte, 0, conn.srv.opts.ReadSize)
		readBuf = make([]byte, conn.srv.opts.ReadSize)
	)

	for {
		n, err := conn.rw.Read(readBuf)
		if err != nil {
			return
		}
		buf = append(buf, readBuf[:n]...)
		for {
			frame, n, state := readFrame(buf, maxFrameSize)
			if state == frameFull {
				body := append([]byte(nil), frame...)
				buf = buf[n:]
				go conn.invoke(body)
				continue
			}
			if state == frameNeedRead {
				break
			}
			logx.Log(logx.Kv("message", "bad frame"), logx.Kv("server", conn.srv.Name()), logx.Kv("remote", conn.ip))
			return
		}
	}
}

func (conn *tcpConn) close() {
	conn.srv.removeConn(conn)
	conn.rw.Close()
}

func (conn *tcpConn) invoke(frame []byte) {
	defer logx.Recover()

	req, err := conn.srv.protocol.UnPacketRequest(frame)
	if err != nil {
		logx.Log(logx.Kv("message", "unpacket failed"), logx.Kv("protocol", conn.srv.protocol.Name()), logx.Kv("error", err))
		return
	}

	var resp *Response
	encName := req.Meta.Get(EncodeType)
	style := ParseHeaderStyle(req.Meta.Get(HeaderStyleKey))
	start := time.Now()
	defer func() {
		interval := time.Since(start)
		desc := ""
		code := int32(0)
		if resp != nil {
			code = resp.Code
			desc = resp.CodeStatus
		}
		observeRequest(sideServer, req.Method, code)
		logx.Log("request call time", logx.Kv("protocol", conn.srv.protocol.Name()), logx.Kv("server", conn.srv.Name()), logx.Kv("method", req.Method), logx.Kv("interval", int32(interval/time.Millisecond)), logx.Kv("code", code), logx.Kv("status", desc), logx.Kv("encoder", encName), logx.Kv("spend", interval.String()))
	}()

	mi := metainfo.New()
	observeHeaders(dirRequestIn, ExtractRequest(mi, req.Meta))

	ctx := ExtractTrace(metainfo.WithMetaInfo(context.Background(), mi), mi)
	var cancel context.CancelFunc
	if conn.srv.opts.InvokeTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, conn.srv.opts.InvokeTimeout)
	}
	if cancel != nil {
		defer cancel()
	}

	select {
	case <-ctx.Done():
		resp = GetResponse(req, nil, uerror.ErrRequestFull)
	case conn.srv.opts.Tick <- struct{}{}:
		defer func() {
			<-conn.srv.opts.Tick
		}()
	}

	enc := GetEncoder(encName)
	if enc == nil && resp == nil {
		resp = GetResponse(req, nil, uerror.ErrEncoderNotFound)
	}

	if resp == nil {
		respChan := make(chan *Response, 1)
		go func() {
			var (
				bin []byte
				err = uerror.NewError(uerror.CodeUnknown, "handler panic")
			)
			defer func() {
				respChan <- GetResponse(req, bin, err)
			}()
			defer logx.Recover()
			bin, err = conn.srv.dispatcher(ctx, conn.srv.impl, req, enc)
		}()

		select {
		case <-ctx.Done():
			resp = GetResponse(req, nil, uerror.ErrRequestTimeout)
		case resp = <-respChan:
			observeHeaders(dirResponseOut, InjectResponse(mi, resp.Meta, style))
		}
	}

	bs, err := conn.srv.protocol.PacketResponse(resp)
	if err != nil {
		logx.Log(logx.Kv("message", "packet failed"), logx.Kv("method", req.Method), logx.Kv("error", err))
		return
	}
	if err := conn.send(bs); err != nil {
		logx.Log(logx.Kv("message", "send failed"), logx.Kv("remote", conn.ip), logx.Kv("error", err))
	}
}

func (conn *tcpConn) send(body []byte) error {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	_, err := conn.rw.Write(body)
	return err
}
