package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/wukong-cloud/metainfo"
	"github.com/wukong-cloud/metainfo/util/logx"
	"github.com/wukong-cloud/metainfo/util/uerror"
)

var (
	ErrPageNotFound   = errors.New("404 page not found")
	ErrMethodNotFound = errors.New("method not found")
)

type HttpServer struct {
	*http.Server
	opts *ServerOptions
	name string
}

// NewHttpServer serves handler behind panic recovery and the metainfo
// middleware.
func NewHttpServer(name string, handler http.Handler, opts ...ServerOption) *HttpServer {
	srv := &HttpServer{
		Server: &http.Server{
			Handler: withHttpHandlerRecover(NewHTTPHandler(handler)),
		},
		name: name,
	}
	srv.opts = loadServerOptions(name, opts...)
	srv.Server.Addr = srv.opts.Addr
	return srv
}

// NewHttpRPCServer exposes dispatch over HTTP: POST {route}/{method} with
// the encoded request as body.
func NewHttpRPCServer(name, route string, impl any, dispatch Dispatcher, opts ...ServerOption) *HttpServer {
	handler := &HttpHandlerRPC{
		route:    strings.TrimSuffix(route, "/"),
		impl:     impl,
		dispatch: dispatch,
	}
	return NewHttpServer(name, handler, opts...)
}

func (srv *HttpServer) Start() error {
	listen, err := net.Listen("tcp", srv.opts.Addr)
	if err != nil {
		return err
	}
	err = srv.Serve(listen)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (srv *HttpServer) Stop(ctx context.Context) error {
	return srv.Shutdown(ctx)
}

func (srv *HttpServer) Name() string {
	return srv.name
}

func (srv *HttpServer) String() string {
	return srv.name
}

type httpHandlerRecover struct {
	http.Handler
}

func withHttpHandlerRecover(parent http.Handler) http.Handler {
	return &httpHandlerRecover{Handler: parent}
}

func (mux *httpHandlerRecover) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	defer logx.Recover()
	mux.Handler.ServeHTTP(rw, req)
}

// NewHTTPHandler gives every request a fresh MetaInfo filled from the
// rpc-persist- and rpc-transit- headers, and writes the handler's backward
// transients as rpc-backward- headers before the status line goes out.
func NewHTTPHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		mi := metainfo.New()
		observeHeaders(dirRequestIn, ExtractHTTPRequest(mi, req.Header))
		ctx := ExtractTrace(metainfo.WithMetaInfo(req.Context(), mi), mi)

		w := &metaResponseWriter{ResponseWriter: rw, mi: mi}
		next.ServeHTTP(w, req.WithContext(ctx))
		if !w.wroteHeader {
			w.WriteHeader(http.StatusOK)
		}
	})
}

type metaResponseWriter struct {
	http.ResponseWriter
	mi          *metainfo.MetaInfo
	wroteHeader bool
}

func (w *metaResponseWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		observeHeaders(dirResponseOut, InjectHTTPResponse(w.mi, w.ResponseWriter.Header()))
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *metaResponseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// Flush sends the backward headers with the status line if nothing was
// written yet, then flushes the underlying writer when it can.
func (w *metaResponseWriter) Flush() {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *metaResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

type HttpHandlerRPC struct {
	route    string
	impl     any
	dispatch Dispatcher
}

func (mux *HttpHandlerRPC) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	method, err := mux.checkRequest(req)
	if err != nil {
		mux.ReturnError(rw, http.StatusNotFound, err)
		return
	}
	encName := req.Header.Get(EncodeType)
	if encName == "" {
		encName = EncoderJSON
	}
	enc := GetEncoder(encName)
	if enc == nil {
		mux.ReturnError(rw, http.StatusBadRequest, uerror.ErrEncoderNotFound)
		return
	}
	body, err := io.ReadAll(req.Body)
	if err != nil {
		mux.ReturnError(rw, http.StatusBadRequest, err)
		return
	}
	r := &Request{Method: method, Body: body, Meta: Header{EncodeType: encName}}
	out, err := mux.dispatch(req.Context(), mux.impl, r, enc)
	observeRequest(sideServer, method, uerror.ParseError(err).GetCode())
	if err != nil {
		werr := uerror.ParseError(err)
		mux.ReturnJson(rw, http.StatusInternalServerError, werr)
		return
	}
	rw.Header().Set(EncodeType, encName)
	rw.WriteHeader(http.StatusOK)
	rw.Write(out)
}

func (mux *HttpHandlerRPC) checkRequest(req *http.Request) (string, error) {
	if req.Method != http.MethodPost {
		return "", ErrMethodNotFound
	}
	method, ok := strings.CutPrefix(req.URL.Path, mux.route+"/")
	if !ok || method == "" {
		return "", ErrPageNotFound
	}
	return method, nil
}

func (mux *HttpHandlerRPC) ReturnError(rw http.ResponseWriter, code int, err error) {
	rw.WriteHeader(code)
	rw.Write([]byte(err.Error()))
}

func (mux *HttpHandlerRPC) ReturnJson(rw http.ResponseWriter, code int, v any) {
	rw.Header().Set("Content-Type", "application/json;charset=UTF-8")
	rw.WriteHeader(code)
	if v == nil {
		rw.Write([]byte("{}"))
		return
	}
	bs, _ := json.Marshal(v)
	rw.Write(bs)
}

// RoundTripper carries the MetaInfo of each request's context over HTTP. The
// reply's rpc-backward- headers are recorded on the MetaInfo set by
// WithDownstream.
type RoundTripper struct {
	Base http.RoundTripper
}

func NewRoundTripper(base http.RoundTripper) *RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &RoundTripper{Base: base}
}

func (rt *RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	base := rt.Base
	if base == nil {
		base = http.DefaultTransport
	}
	ctx := req.Context()
	if _, ok := metainfo.FromContext(ctx); !ok {
		return base.RoundTrip(req)
	}
	mi := callScope(ctx)
	InjectTrace(ctx, mi)
	out := req.Clone(ctx)
	observeHeaders(dirRequestOut, InjectHTTPRequest(mi, out.Header))
	resp, err := base.RoundTrip(out)
	if err != nil {
		return nil, err
	}
	observeHeaders(dirResponseIn, ExtractHTTPResponse(downstream(ctx, mi), resp.Header))
	return resp, nil
}
