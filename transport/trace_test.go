package transport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wukong-cloud/metainfo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func withTraceContext(t *testing.T) trace.Tracer {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() {
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator())
		_ = tp.Shutdown(context.Background())
	})
	return tp.Tracer("metainfo-test")
}

func TestCarrierKeys(t *testing.T) {
	mi := metainfo.New()
	c := NewCarrier(mi)
	c.Set("traceparent", "00-abc")
	v, ok := mi.GetPersistent("TRACEPARENT")
	require.True(t, ok)
	assert.Equal(t, "00-abc", v)
	assert.Equal(t, "00-abc", c.Get("traceparent"))

	mi.SetPersistent("X_B3_SAMPLED", "1")
	assert.Equal(t, "1", c.Get("x-b3-sampled"))
	assert.ElementsMatch(t, []string{"traceparent", "x-b3-sampled"}, c.Keys())
}

func TestTraceAcrossHeaders(t *testing.T) {
	tracer := withTraceContext(t)
	ctx, span := tracer.Start(context.Background(), "call")
	defer span.End()

	caller := metainfo.New()
	InjectTrace(ctx, caller)
	h := Header{}
	InjectRequest(caller, h, StyleRPC)
	assert.Contains(t, h, "RPC_PERSIST_TRACEPARENT")

	callee := metainfo.New()
	ExtractRequest(callee, h)
	got := trace.SpanContextFromContext(ExtractTrace(context.Background(), callee))
	assert.True(t, got.IsRemote())
	assert.Equal(t, span.SpanContext().TraceID(), got.TraceID())
	assert.Equal(t, span.SpanContext().SpanID(), got.SpanID())
}

func TestTraceNilMetaInfo(t *testing.T) {
	ctx := context.Background()
	InjectTrace(ctx, nil)
	assert.Equal(t, ctx, ExtractTrace(ctx, nil))
}
