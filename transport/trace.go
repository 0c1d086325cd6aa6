package transport

import (
	"context"
	"strings"

	"github.com/wukong-cloud/metainfo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Carrier exposes the forward persistents of a MetaInfo as an otel
// TextMapCarrier, so trace context set at the edge follows every hop.
// Propagator keys (traceparent) map to persistent keys (TRACEPARENT).
type Carrier struct {
	mi *metainfo.MetaInfo
}

var _ propagation.TextMapCarrier = Carrier{}

func NewCarrier(mi *metainfo.MetaInfo) Carrier {
	return Carrier{mi: mi}
}

func (c Carrier) Get(key string) string {
	v, _ := c.mi.GetPersistent(carrierKey(key))
	return v
}

func (c Carrier) Set(key, value string) {
	c.mi.SetPersistent(carrierKey(key), value)
}

func (c Carrier) Keys() []string {
	all := c.mi.GetAllPersistents()
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, strings.ReplaceAll(strings.ToLower(k), "_", "-"))
	}
	return keys
}

func carrierKey(key string) string {
	return strings.ReplaceAll(strings.ToUpper(key), "-", "_")
}

// InjectTrace writes the span context of ctx into mi with the global
// propagator.
func InjectTrace(ctx context.Context, mi *metainfo.MetaInfo) {
	if mi == nil {
		return
	}
	otel.GetTextMapPropagator().Inject(ctx, NewCarrier(mi))
}

// ExtractTrace returns ctx carrying the remote span context found in mi.
func ExtractTrace(ctx context.Context, mi *metainfo.MetaInfo) context.Context {
	if mi == nil {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, NewCarrier(mi))
}
