package logx

import (
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
)

type Field struct {
	key string
	val interface{}
}

func Kv(k string, v interface{}) *Field {
	return &Field{key: k, val: v}
}

func (f *Field) zap() zap.Field {
	switch v := f.val.(type) {
	case nil:
		return zap.Skip()
	case error:
		return zap.NamedError(f.key, v)
	case []byte:
		return zap.ByteString(f.key, v)
	default:
		return zap.Any(f.key, v)
	}
}

func (f *Field) String() string {
	if f == nil {
		return ""
	}
	return fmt.Sprintf("%s:%v", f.key, f.val)
}

var inLog atomic.Pointer[zap.Logger]

func init() {
	l, err := zap.NewProduction(zap.AddCallerSkip(1))
	if err != nil {
		l = zap.NewNop()
	}
	inLog.Store(l)
}

// SetLogger replaces the backend. Log calls add one frame, callers that want
// accurate call sites should build l with zap.AddCallerSkip(1).
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	inLog.Store(l)
}

func Logger() *zap.Logger {
	return inLog.Load()
}

// Log writes one entry. *Field arguments become structured fields, anything
// else is joined into the message.
func Log(args ...interface{}) {
	var (
		msg    []string
		fields []zap.Field
	)
	for _, arg := range args {
		switch v := arg.(type) {
		case *Field:
			if v != nil {
				fields = append(fields, v.zap())
			}
		case string:
			msg = append(msg, v)
		default:
			msg = append(msg, fmt.Sprint(v))
		}
	}
	inLog.Load().Info(strings.Join(msg, " "), fields...)
}

func Logf(format string, args ...interface{}) {
	inLog.Load().Info(fmt.Sprintf(format, args...))
}

// Recover logs a recovered panic with its stack. It must be deferred
// directly.
func Recover() {
	if err := recover(); err != nil {
		const size = 64 << 10
		buf := make([]byte, size)
		buf = buf[:runtime.Stack(buf, false)]
		inLog.Load().Error("panic recover", zap.Any("panic", err), zap.ByteString("stack", buf))
	}
}
