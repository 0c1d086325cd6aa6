package discovery

import (
	"sync"

	"github.com/wukong-cloud/metainfo/util/logx"
)

// Discover resolves a service name to "ip:port" endpoints.
type Discover interface {
	Find(name string) []string
	// Watch delivers the full endpoint list whenever it changes. A nil
	// channel means changes are never pushed.
	Watch(name string) <-chan []string
}

type DiscoverConfig struct {
	Name  string `yaml:"name"`
	Hosts string `yaml:"hosts"`
}

var (
	mu       sync.Mutex
	discover Discover
)

// NewDiscover returns the process-wide discover, building it from conf on
// first use. Unknown or missing configs give a discover that finds nothing.
func NewDiscover(conf *DiscoverConfig) Discover {
	mu.Lock()
	defer mu.Unlock()
	if discover != nil {
		return discover
	}
	if conf == nil {
		return &nopDiscover{}
	}
	switch conf.Name {
	case "etcd":
		d, err := NewEtcdDiscover(conf.Hosts)
		if err != nil {
			logx.Log(logx.Kv("message", "new etcd discover failed"), logx.Kv("hosts", conf.Hosts), logx.Kv("error", err))
			return &nopDiscover{}
		}
		discover = d
		return discover
	}
	return &nopDiscover{}
}

// NewStatic returns a discover with a fixed endpoint table.
func NewStatic(endpoints map[string][]string) Discover {
	return &staticDiscover{endpoints: endpoints}
}

type nopDiscover struct{}

func (*nopDiscover) Find(name string) []string         { return nil }
func (*nopDiscover) Watch(name string) <-chan []string { return nil }

type staticDiscover struct {
	endpoints map[string][]string
}

func (d *staticDiscover) Find(name string) []string {
	return append([]string(nil), d.endpoints[name]...)
}

func (d *staticDiscover) Watch(name string) <-chan []string { return nil }
