package metainfo

import "context"

type metainfoKey struct{}

// WithMetaInfo returns a copy of ctx carrying mi.
func WithMetaInfo(ctx context.Context, mi *MetaInfo) context.Context {
	return context.WithValue(ctx, metainfoKey{}, mi)
}

// FromContext returns the MetaInfo carried by ctx.
func FromContext(ctx context.Context) (*MetaInfo, bool) {
	if ctx == nil {
		return nil, false
	}
	mi, ok := ctx.Value(metainfoKey{}).(*MetaInfo)
	return mi, ok && mi != nil
}

// GetOrNew returns the MetaInfo carried by ctx, attaching a new root when
// there is none.
func GetOrNew(ctx context.Context) (context.Context, *MetaInfo) {
	if mi, ok := FromContext(ctx); ok {
		return ctx, mi
	}
	mi := New()
	return WithMetaInfo(ctx, mi), mi
}

// DeriveContext forks the MetaInfo of ctx and returns two contexts, one
// per sibling scope. The caller keeps the first and hands the second to the
// nested operation. The MetaInfo already in ctx is only read, so goroutines
// sharing ctx may each derive from it. A ctx without MetaInfo gets two fresh
// roots.
func DeriveContext(ctx context.Context) (context.Context, context.Context) {
	mi, _ := FromContext(ctx)
	a, b := mi.Fork()
	return WithMetaInfo(ctx, a), WithMetaInfo(ctx, b)
}
