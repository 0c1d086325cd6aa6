package transport

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wukong-cloud/metainfo/internal/register"
	"github.com/wukong-cloud/metainfo/util/logx"
)

const defaultKeepAlive = 10 * time.Second

type AppOption interface {
	apply(app *App)
}

type AppOptionFunc func(app *App)

func (f AppOptionFunc) apply(app *App) {
	f(app)
}

func WithServer(server Server) AppOption {
	return AppOptionFunc(func(app *App) {
		app.serverMap[server.Name()] = server
	})
}

func WithRegister(reg register.Register) AppOption {
	return AppOptionFunc(func(app *App) {
		app.register = reg
	})
}

func WithKeepAlive(d time.Duration) AppOption {
	return AppOptionFunc(func(app *App) {
		app.keepAlive = d
	})
}

// targeter is implemented by servers that can be found through the
// registry.
type targeter interface {
	Target() *register.Target
}

type App struct {
	serverMap map[string]Server
	register  register.Register
	keepAlive time.Duration
	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

func NewApp(opts ...AppOption) *App {
	app := &App{
		serverMap: make(map[string]Server),
		keepAlive: defaultKeepAlive,
		stopChan:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt.apply(app)
	}
	if app.register == nil {
		app.register = register.NewRegister(GetConfig().RegisterConfig)
	}
	return app
}

func (app *App) AddServer(server Server) {
	app.serverMap[server.Name()] = server
}

// Run starts every server, registers their targets and blocks until Stop.
func (app *App) Run() error {
	if len(app.serverMap) == 0 {
		return errors.New("server not found")
	}
	for _, server := range app.serverMap {
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			if err := server.Start(); err != nil {
				logx.Log(logx.Kv("message", "server stop"), logx.Kv("server", server.Name()), logx.Kv("error", err))
			}
		}()
	}
	app.eachTarget(func(t register.Target) error {
		return app.register.Register(t)
	}, "register")
	return app.loop()
}

func (app *App) Stop() {
	app.stopOnce.Do(func() {
		close(app.stopChan)
	})
}

func (app *App) loop() error {
	timer := time.NewTicker(app.keepAlive)
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
			app.eachTarget(func(t register.Target) error {
				return app.register.KeepAlive(t)
			}, "keepalive")
		case <-app.stopChan:
			app.eachTarget(func(t register.Target) error {
				return app.register.UnRegister(t)
			}, "unregister")
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			for _, server := range app.serverMap {
				if err := server.Stop(ctx); err != nil {
					logx.Log(logx.Kv("message", "server stop failed"), logx.Kv("server", server.Name()), logx.Kv("error", err))
				}
			}
			cancel()
			app.wg.Wait()
			return nil
		}
	}
}

func (app *App) eachTarget(fn func(t register.Target) error, action string) {
	for _, server := range app.serverMap {
		ts, ok := server.(targeter)
		if !ok || ts.Target() == nil {
			continue
		}
		t := *ts.Target()
		if err := fn(t); err != nil {
			logx.Log(logx.Kv("message", action+" failed"), logx.Kv("target", t.String()), logx.Kv("error", err))
		}
	}
}
