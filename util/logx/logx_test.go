package logx

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T) *observer.ObservedLogs {
	core, logs := observer.New(zap.InfoLevel)
	prev := Logger()
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(prev) })
	return logs
}

func TestLogFields(t *testing.T) {
	logs := observe(t)

	Log("request call", "done", Kv("method", "Echo"), Kv("code", int32(200)), Kv("error", errors.New("boom")), Kv("nothing", nil))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "request call done", entry.Message)
	ctx := entry.ContextMap()
	assert.Equal(t, "Echo", ctx["method"])
	assert.Equal(t, int32(200), ctx["code"])
	assert.Equal(t, "boom", ctx["error"])
	assert.NotContains(t, ctx, "nothing")
}

func TestLogf(t *testing.T) {
	logs := observe(t)
	Logf("start rpc server %s listen %s", "echo", ":9092")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "start rpc server echo listen :9092", logs.All()[0].Message)
}

func TestRecover(t *testing.T) {
	logs := observe(t)
	func() {
		defer Recover()
		panic("boom")
	}()
	require.Equal(t, 1, logs.FilterMessage("panic recover").Len())
}

func TestFieldString(t *testing.T) {
	assert.Equal(t, "k:v", Kv("k", "v").String())
	var f *Field
	assert.Equal(t, "", f.String())
}
