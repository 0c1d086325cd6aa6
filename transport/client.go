package transport

import (
	"context"
	"errors"
	"math"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/serialx/hashring"
	"github.com/wukong-cloud/metainfo"
	"github.com/wukong-cloud/metainfo/internal/discovery"
	"github.com/wukong-cloud/metainfo/util/logx"
	"github.com/wukong-cloud/metainfo/util/uerror"
)

var ErrConnectNotFound = errors.New("connect not found")

// Persistent keys the client reads or writes.
const (
	ConsistentHashKey = "HASH_KEY"
	LogIDKey          = "LOG_ID"
)

const sideClient = "client"

var requestId int64

func nextRequestId() int64 {
	if atomic.CompareAndSwapInt64(&requestId, math.MaxInt32, 1) {
		return 1
	}
	return atomic.AddInt64(&requestId, 1)
}

type ClientOptions struct {
	addr           string
	maxConn        int
	requestTimeout time.Duration
	maxIdleTime    time.Duration
	readSize       int32
	encodeType     string
	reTry          int
	discover       discovery.Discover
	refresh        time.Duration

	headerStyle HeaderStyle
	assignLogID bool
	hashKey     string
}

type ClientOption func(opt *ClientOptions)

func WithClientOptionAddr(addr string) ClientOption {
	return func(opt *ClientOptions) {
		opt.addr = addr
	}
}

func WithClientOptionMaxConn(max int) ClientOption {
	return func(opt *ClientOptions) {
		opt.maxConn = max
	}
}

func WithClientOptionEncodeType(encodeType string) ClientOption {
	return func(opt *ClientOptions) {
		opt.encodeType = encodeType
	}
}

func WithClientOptionsDiscover(discover discovery.Discover) ClientOption {
	return func(opt *ClientOptions) {
		opt.discover = discover
	}
}

func WithClientOptionRequestTimeout(d time.Duration) ClientOption {
	return func(opt *ClientOptions) {
		opt.requestTimeout = d
	}
}

func WithClientOptionRetry(n int) ClientOption {
	return func(opt *ClientOptions) {
		opt.reTry = n
	}
}

func WithClientOptionHeaderStyle(style HeaderStyle) ClientOption {
	return func(opt *ClientOptions) {
		opt.headerStyle = style
	}
}

func WithClientOptionAssignLogID(assign bool) ClientOption {
	return func(opt *ClientOptions) {
		opt.assignLogID = assign
	}
}

func WithClientOptionHashKey(key string) ClientOption {
	return func(opt *ClientOptions) {
		opt.hashKey = key
	}
}

func loadClientOptions(opts ...ClientOption) *ClientOptions {
	cfg := GetClientConfig()
	mcfg := GetMetaInfoConfig()
	options := &ClientOptions{
		requestTimeout: cfg.RequestTimeout,
		readSize:       cfg.ReadBufferSize,
		maxConn:        cfg.Thread,
		maxIdleTime:    cfg.MaxIdleTime,
		encodeType:     cfg.EncodeType,
		reTry:          cfg.ReTry,
		refresh:        10 * time.Second,
		headerStyle:    ParseHeaderStyle(mcfg.HeaderStyle),
		assignLogID:    mcfg.AssignLogID,
		hashKey:        mcfg.HashKey,
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.maxConn <= 0 {
		options.maxConn = 1
	}
	if options.readSize <= 0 {
		options.readSize = defaultReadBufSize
	}
	return options
}

type Client struct {
	name       string
	opts       *ClientOptions
	mu         sync.Mutex
	protocol   Protocol
	idx        int
	connectors []*connector
	reqMap     map[int64]chan *Response
	rwLock     sync.Mutex
	discover   discovery.Discover
	hasher     *hashring.HashRing
	stopChan   chan struct{}
	stopOnce   sync.Once
}

func NewClient(name string, opts ...ClientOption) *Client {
	client := &Client{
		name:       name,
		protocol:   newWRPCProtocol(),
		connectors: make([]*connector, 0),
		reqMap:     make(map[int64]chan *Response),
		hasher:     hashring.New([]string{}),
		stopChan:   make(chan struct{}),
	}
	client.opts = loadClientOptions(opts...)
	if client.opts.discover != nil {
		client.discover = client.opts.discover
	} else {
		client.discover = discovery.NewDiscover(GetConfig().DiscoverConfig)
	}
	client.initConnect()
	return client
}

func (client *Client) initConnect() {
	if client.opts.addr != "" {
		client.updateConnector(client.opts.addr, true)
	}
	endpoints := client.discover.Find(client.name)
	if len(endpoints) > 0 {
		client.updateConnector(strings.Join(endpoints, ";"), false)
	}
	go func() {
		defer logx.Recover()
		timer := time.NewTicker(client.opts.refresh)
		defer timer.Stop()
		watch := client.discover.Watch(client.name)
		for {
			select {
			case <-timer.C:
				endpoints := client.discover.Find(client.name)
				client.updateConnector(strings.Join(endpoints, ";"), false)
			case endpoints := <-watch:
				client.updateConnector(strings.Join(endpoints, ";"), false)
			case <-client.stopChan:
				return
			}
		}
	}()
}

// Close stops endpoint refresh and closes every connection.
func (client *Client) Close() {
	client.stopOnce.Do(func() {
		close(client.stopChan)
		client.mu.Lock()
		connectors := client.connectors
		client.connectors = nil
		client.mu.Unlock()
		for _, c := range connectors {
			c.close()
		}
	})
}

func (client *Client) updateConnector(addr string, isFixed bool) {
	client.mu.Lock()

	addrs := strings.Split(addr, ";")
	oldConnectors := client.connectors
	newConnectors := make([]*connector, 0)

	for _, addr := range addrs {
		addr := strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		var connect *connector
		for _, old := range oldConnectors {
			if old.addr == addr {
				connect = old
				break
			}
		}
		if connect == nil {
			connect = newConnector(client, addr, isFixed)
		}
		newConnectors = append(newConnectors, connect)
	}

	delConnectors := make([]*connector, 0)
	for _, oldConn := range oldConnectors {
		isFound := false
		for _, newConn := range newConnectors {
			if oldConn == newConn {
				isFound = true
				break
			}
		}
		if isFound {
			continue
		}
		if oldConn.isFixed {
			newConnectors = append(newConnectors, oldConn)
			continue
		}
		delConnectors = append(delConnectors, oldConn)
	}
	newNodes := map[string]int{}
	for _, node := range newConnectors {
		newNodes[node.addr] = 10
	}
	client.hasher = hashring.NewWithWeights(newNodes)
	client.connectors = newConnectors
	client.mu.Unlock()

	if len(delConnectors) > 0 {
		go func() {
			for _, delConn := range delConnectors {
				delConn.close()
			}
		}()
	}
}

const (
	findTypeNext = iota + 1
	findTypeAddr
	findTypeConsistentHash
)

func (client *Client) connector(key string, findType int) *connector {
	switch findType {
	case findTypeAddr:
		return client.findConnector(key)
	case findTypeConsistentHash:
		return client.consistentHashConnector(key)
	default:
		return client.nextConnector()
	}
}

func (client *Client) findConnector(addr string) *connector {
	client.mu.Lock()
	defer client.mu.Unlock()
	for _, c := range client.connectors {
		if c.addr == addr {
			return c
		}
	}
	return nil
}

func (client *Client) consistentHashConnector(key string) *connector {
	client.mu.Lock()
	node, ok := client.hasher.GetNode(key)
	client.mu.Unlock()
	if !ok {
		return nil
	}
	return client.findConnector(node)
}

func (client *Client) nextConnector() *connector {
	client.mu.Lock()
	defer client.mu.Unlock()
	connectNum := len(client.connectors)
	if connectNum == 0 {
		return nil
	}
	if client.idx >= connectNum {
		client.idx = 0
	}
	connect := client.connectors[client.idx]
	client.idx++
	return connect
}

func (client *Client) GetAllEndpoints() []string {
	addrs := make([]string, 0)
	client.mu.Lock()
	for _, connect := range client.connectors {
		addrs = append(addrs, connect.addr)
	}
	client.mu.Unlock()
	return addrs
}

// Call encodes in with the client's encoder, invokes method and decodes the
// reply into out.
func (client *Client) Call(ctx context.Context, method string, in, out any) error {
	enc := GetEncoder(client.opts.encodeType)
	if enc == nil {
		return uerror.ErrEncoderNotFound
	}
	bs, err := enc.Encode(in)
	if err != nil {
		return err
	}
	resp, err := client.Invoke(ctx, enc.Name(), "", method, bs)
	if err != nil {
		return err
	}
	if out == nil || len(resp) == 0 {
		return nil
	}
	return enc.Decode(resp, out)
}

// Invoke sends one request. The MetaInfo in ctx supplies the request header
// through a per-call scope, so it is only read and ctx may be shared by
// concurrent calls. Backward values in the reply are recorded on the
// MetaInfo set by WithDownstream and dropped otherwise. addr pins the
// endpoint, otherwise the hash key persistent or round robin picks one.
func (client *Client) Invoke(ctx context.Context, encName, addr, method string, in []byte) (out []byte, err error) {
	code := uerror.CodeOK
	defer func() {
		if err != nil {
			code = uerror.ParseError(err).Code
		}
		observeRequest(sideClient, method, code)
	}()

	var cancel context.CancelFunc
	if client.opts.requestTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, client.opts.requestTimeout)
		defer cancel()
	}
	mi := callScope(ctx)
	if client.opts.assignLogID {
		if _, ok := mi.GetPersistent(LogIDKey); !ok {
			mi.SetPersistent(LogIDKey, uuid.NewString())
		}
	}
	InjectTrace(ctx, mi)

	if encName == "" {
		encName = client.opts.encodeType
	}
	header := Header{
		EncodeType:     encName,
		HeaderStyleKey: string(client.opts.headerStyle),
	}
	observeHeaders(dirRequestOut, InjectRequest(mi, header, client.opts.headerStyle))

	req := &Request{
		RequestId: nextRequestId(),
		Method:    method,
		Body:      in,
		Meta:      header,
	}

	respChan := make(chan *Response, 1)
	client.rwLock.Lock()
	client.reqMap[req.RequestId] = respChan
	client.rwLock.Unlock()

	hashKey, _ := mi.GetPersistent(client.opts.hashKey)
	if err := client.sendRequest(addr, hashKey, req); err != nil {
		client.forget(req.RequestId)
		return nil, err
	}

	select {
	case <-ctx.Done():
		client.forget(req.RequestId)
		return nil, uerror.ErrRequestTimeout
	case resp := <-respChan:
		observeHeaders(dirResponseIn, ExtractResponse(downstream(ctx, mi), resp.Meta))
		if err := resp.Err(); err != nil {
			return nil, err
		}
		return resp.Body, nil
	}
}

type downstreamKey struct{}

// WithDownstream returns a ctx whose calls record the reply's backward values
// on dst as downstream values. dst is written when the reply arrives, so it
// should belong to a single call.
func WithDownstream(ctx context.Context, dst *metainfo.MetaInfo) context.Context {
	return context.WithValue(ctx, downstreamKey{}, dst)
}

// callScope returns a scope for one outgoing call that inherits the MetaInfo
// of ctx without writing it.
func callScope(ctx context.Context) *metainfo.MetaInfo {
	mi, _ := metainfo.FromContext(ctx)
	return metainfo.From(mi)
}

func downstream(ctx context.Context, call *metainfo.MetaInfo) *metainfo.MetaInfo {
	if dst, ok := ctx.Value(downstreamKey{}).(*metainfo.MetaInfo); ok && dst != nil {
		return dst
	}
	return call
}

func (client *Client) forget(id int64) {
	client.rwLock.Lock()
	delete(client.reqMap, id)
	client.rwLock.Unlock()
}

func (client *Client) deliver(resp *Response) {
	client.rwLock.Lock()
	respChan, ok := client.reqMap[resp.RequestId]
	if ok {
		delete(client.reqMap, resp.RequestId)
	}
	client.rwLock.Unlock()
	if ok {
		respChan <- resp
	}
}

func (client *Client) sendRequest(addr, hashKey string, req *Request) error {
	bs, err := client.protocol.PacketRequest(req)
	if err != nil {
		return err
	}

	tryTime := client.opts.reTry
	if tryTime <= 0 {
		tryTime = 1
	}

	findType := findTypeNext
	key := ""
	if addr != "" {
		key = addr
		findType = findTypeAddr
	} else if hashKey != "" {
		key = hashKey
		findType = findTypeConsistentHash
	}

	for i := 0; i < tryTime; i++ {
		if i > 0 && findType != findTypeAddr {
			findType = findTypeNext
		}
		connect := client.connector(key, findType)
		if connect == nil {
			return ErrConnectNotFound
		}
		conn, cerr := connect.getConn()
		if cerr != nil {
			time.Sleep(time.Millisecond * 10)
			err = cerr
			continue
		}
		if serr := conn.send(bs); serr != nil {
			time.Sleep(time.Millisecond * 10)
			err = serr
			continue
		}
		err = nil
		break
	}
	return err
}

type connector struct {
	addr    string
	client  *Client
	nextId  int32
	idx     int
	conns   []*clientConn
	mu      sync.Mutex
	isFixed bool
}

func newConnector(client *Client, addr string, isFixed bool) *connector {
	c := &connector{
		client:  client,
		addr:    addr,
		isFixed: isFixed,
		conns:   make([]*clientConn, 0, client.opts.maxConn),
	}
	return c
}

func (c *connector) getConn() (*clientConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	connNum := len(c.conns)
	if connNum == 0 {
		conn, err := net.Dial("tcp", c.addr)
		if err != nil {
			return nil, err
		}
		c.conns = append(c.conns, newClientConn(c, conn))
		connNum++
	}
	if c.idx >= connNum && connNum < c.client.opts.maxConn {
		conn, err := net.Dial("tcp", c.addr)
		if err == nil {
			c.conns = append(c.conns, newClientConn(c, conn))
			connNum++
		}
	}
	if c.idx >= connNum {
		c.idx = 0
	}
	conn := c.conns[c.idx]
	c.idx++
	return conn, nil
}

func (c *connector) nextConnId() int32 {
	return atomic.AddInt32(&c.nextId, 1)
}

func (c *connector) removeConn(connId int32) {
	conns := make([]*clientConn, 0)
	c.mu.Lock()
	for _, conn := range c.conns {
		if conn.connId == connId {
			continue
		}
		conns = append(conns, conn)
	}
	c.conns = conns
	c.mu.Unlock()
}

func (c *connector) close() {
	c.mu.Lock()
	conns := c.conns
	c.mu.Unlock()
	for _, conn := range conns {
		conn.close()
	}
}

type clientConn struct {
	connId   int32
	connect  *connector
	rw       net.Conn
	running  bool
	createAt time.Time
	useAt    time.Time
	mu       sync.Mutex
	wmu      sync.Mutex
}

func newClientConn(c *connector, rw net.Conn) *clientConn {
	conn := &clientConn{
		connId:   c.nextConnId(),
		connect:  c,
		running:  true,
		rw:       rw,
		createAt: time.Now(),
	}
	go conn.recv(rw)
	return conn
}

// reconnect redials a closed or idle-expired connection.
func (conn *clientConn) reconnect() (net.Conn, error) {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.running && !conn.expired() {
		return conn.rw, nil
	}
	rw, err := net.Dial("tcp", conn.connect.addr)
	if err != nil {
		return nil, err
	}
	old := conn.rw
	conn.rw = rw
	conn.running = true
	conn.createAt = time.Now()
	if old != nil {
		old.Close()
	}
	go conn.recv(rw)
	return rw, nil
}

func (conn *clientConn) expired() bool {
	if conn.connect.client.opts.maxIdleTime > 0 {
		return time.Since(conn.createAt) >= conn.connect.client.opts.maxIdleTime
	}
	return false
}

func (conn *clientConn) close() {
	conn.mu.Lock()
	if !conn.running {
		conn.mu.Unlock()
		return
	}
	conn.running = false
	rw := conn.rw
	conn.mu.Unlock()
	rw.Close()
	conn.connect.removeConn(conn.connId)
}

// closeRW handles the end of a read loop; a loop over a replaced net.Conn
// must not take the current one down.
func (conn *clientConn) closeRW(rw net.Conn) {
	conn.mu.Lock()
	current := conn.rw == rw
	conn.mu.Unlock()
	if current {
		conn.close()
		return
	}
	rw.Close()
}

func (conn *clientConn) recv(rw net.Conn) {
	defer logx.Recover()
	defer conn.closeRW(rw)

	var (
		buf     = make([]byte, 0, conn.connect.client.opts.readSize)
		readBuf = make([]byte, conn.connect.client.opts.readSize)
	)

	for {
		n, err := rw.Read(readBuf)
		if err != nil {
			return
		}
		buf = append(buf, readBuf[:n]...)
		for {
			frame, n, state := readFrame(buf, maxFrameSize)
			if state == frameFull {
				buf = buf[n:]
				conn.invoke(frame)
				continue
			}
			if state == frameNeedRead {
				break
			}
			return
		}
	}
}

func (conn *clientConn) invoke(frame []byte) {
	resp, err := conn.connect.client.protocol.UnPacketResponse(frame)
	if err != nil {
		logx.Log(logx.Kv("message", "unpacket response failed"), logx.Kv("addr", conn.connect.addr), logx.Kv("error", err))
		return
	}
	conn.connect.client.deliver(resp)
}

func (conn *clientConn) send(pkg []byte) error {
	rw, err := conn.reconnect()
	if err != nil {
		return err
	}
	conn.wmu.Lock()
	defer conn.wmu.Unlock()
	_, err = rw.Write(pkg)
	conn.useAt = time.Now()
	return err
}
