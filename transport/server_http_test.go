package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wukong-cloud/metainfo"
	"github.com/wukong-cloud/metainfo/util/uerror"
)

func TestHTTPHandlerMetaInfo(t *testing.T) {
	handler := NewHTTPHandler(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		mi, ok := metainfo.FromContext(req.Context())
		require.True(t, ok)
		user, _ := mi.GetPersistent("USER_ID")
		hop, _ := mi.GetUpstream("HOP")
		mi.SetBackwardTransient("SERVED_BY", "web")
		io.WriteString(rw, user+"/"+hop)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("rpc-persist-user-id", "u1")
	req.Header.Set("rpc-transit-hop", "gw")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1/gw", rec.Body.String())
	assert.Equal(t, "web", rec.Header().Get("Rpc-Backward-Served-By"))
}

func TestHTTPHandlerNoBody(t *testing.T) {
	handler := NewHTTPHandler(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		mi, _ := metainfo.FromContext(req.Context())
		mi.SetBackwardTransient("EMPTY", "yes")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "yes", rec.Header().Get("rpc-backward-empty"))
}

func TestHTTPHandlerFlush(t *testing.T) {
	handler := NewHTTPHandler(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		mi, _ := metainfo.FromContext(req.Context())
		mi.SetBackwardTransient("STREAM", "on")
		io.WriteString(rw, "chunk")
		flusher, ok := rw.(http.Flusher)
		require.True(t, ok)
		flusher.Flush()
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, rec.Flushed)
	assert.Equal(t, "on", rec.Header().Get("rpc-backward-stream"))

	// flushing first still sends the backward headers
	handler = NewHTTPHandler(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		mi, _ := metainfo.FromContext(req.Context())
		mi.SetBackwardTransient("EARLY", "yes")
		rw.(http.Flusher).Flush()
	}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, rec.Flushed)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "yes", rec.Header().Get("rpc-backward-early"))
}

func TestRoundTripperSharedContext(t *testing.T) {
	srv := httptest.NewServer(NewHTTPHandler(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		mi, _ := metainfo.FromContext(req.Context())
		mi.SetBackwardTransient("ECHO", "1")
	})))
	defer srv.Close()
	client := &http.Client{Transport: NewRoundTripper(nil)}

	mi := metainfo.New()
	mi.SetPersistent("TENANT", "acme")
	ctx := metainfo.WithMetaInfo(context.Background(), mi)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
			if !assert.NoError(t, err) {
				return
			}
			resp, err := client.Do(req)
			if !assert.NoError(t, err) {
				return
			}
			resp.Body.Close()
		}()
	}
	wg.Wait()
	assert.Empty(t, mi.GetAllBackwardDownstreams())
}

func TestRoundTripper(t *testing.T) {
	srv := httptest.NewServer(NewHTTPHandler(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		mi, _ := metainfo.FromContext(req.Context())
		v, _ := mi.GetPersistent("TENANT")
		mi.SetBackwardTransient("TENANT_ECHO", v)
		rw.WriteHeader(http.StatusAccepted)
	})))
	defer srv.Close()

	client := &http.Client{Transport: NewRoundTripper(nil)}

	mi := metainfo.New()
	mi.SetPersistent("TENANT", "acme")
	dst := metainfo.New()
	ctx := WithDownstream(metainfo.WithMetaInfo(context.Background(), mi), dst)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Empty(t, req.Header.Get("rpc-persist-tenant"))
	v, ok := dst.GetBackwardDownstream("TENANT_ECHO")
	require.True(t, ok)
	assert.Equal(t, "acme", v)
	assert.Empty(t, mi.GetAllBackwardDownstreams())

	// no MetaInfo in the context: plain pass through
	plain, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err = client.Do(plain)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestHttpRPCServer(t *testing.T) {
	rpc := NewHttpRPCServer("EchoServer", "/rpc", "EchoServer", echoDispatch)
	srv := httptest.NewServer(rpc.Handler)
	defer srv.Close()

	post := func(path string, body []byte, header http.Header) *http.Response {
		req, err := http.NewRequest(http.MethodPost, srv.URL+path, bytes.NewReader(body))
		require.NoError(t, err)
		for k, vs := range header {
			req.Header[k] = vs
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		return resp
	}

	body, _ := json.Marshal(&echoReq{Msg: "over http"})
	resp := post("/rpc/Echo", body, http.Header{"Rpc-Persist-Trace-Id": {"t-9"}})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := &echoResp{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	assert.Equal(t, "over http", out.Msg)
	assert.Equal(t, "t-9", out.Trace)
	assert.Equal(t, "EchoServer", resp.Header.Get("Rpc-Backward-Served-By"))

	deny := post("/rpc/Deny", nil, nil)
	defer deny.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, deny.StatusCode)
	werr := &uerror.Error{}
	require.NoError(t, json.NewDecoder(deny.Body).Decode(werr))
	assert.Equal(t, int32(403), werr.Code)

	missing := post("/other/Echo", nil, nil)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)

	get, err := http.Get(srv.URL + "/rpc/Echo")
	require.NoError(t, err)
	get.Body.Close()
	assert.Equal(t, http.StatusNotFound, get.StatusCode)

	badEnc := post("/rpc/Echo", body, http.Header{"Encode-Type": {"xml"}})
	badEnc.Body.Close()
	assert.Equal(t, http.StatusBadRequest, badEnc.StatusCode)
}
